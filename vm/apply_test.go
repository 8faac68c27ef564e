package vm

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

func newCertifiedChain(t *testing.T, balance uint64, caps ...types.Capability) (*state.ChainState, crypto.KeyPair) {
	t.Helper()
	cs := state.New(memdb.New())
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	genesis := &types.GenesisConfig{
		ChainID:         1,
		InitialBalances: []types.GenesisBalance{{Pubkey: agent.Public, Balance: balance}},
	}
	require.NoError(t, state.InitGenesis(cs, genesis))

	if len(caps) == 0 {
		caps = []types.Capability{
			types.CapTxSubmit, types.CapClaim, types.CapAttest, types.CapKvWrite,
		}
	}
	cert := types.AgentCertificate{
		AgentPubkey:  agent.Public,
		ExpiresAt:    1_000_000,
		Capabilities: caps,
	}
	require.NoError(t, state.PutAgentCert(cs, cert))
	return cs, agent
}

func applyOne(t *testing.T, cs *state.ChainState, tx *types.Transaction, validators []crypto.PublicKey) []types.Event {
	t.Helper()
	sp := cs.Begin()
	events, err := ApplyTx(sp, tx, 1, 1000, validators)
	require.NoError(t, err)
	require.NoError(t, sp.Commit())
	return events
}

func TestExecTransferMovesBalance(t *testing.T) {
	cs, agent := newCertifiedChain(t, 10_000)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := &types.Transaction{
		Nonce: 1, Fee: 10,
		Ops: []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: receiver.Public, Amount: 1000}}},
	}
	tx.Sign(agent)

	events := applyOne(t, cs, tx, nil)
	assert.Equal(t, types.EventTxApplied, events[0].Kind)

	senderAcct, err := state.GetAccount(cs, agent.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(10_000-1000-10), senderAcct.Balance)
	assert.Equal(t, uint64(1), senderAcct.Nonce)

	recvAcct, err := state.GetAccount(cs, receiver.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), recvAcct.Balance)
}

func TestExecTransferRejectsBadNonce(t *testing.T) {
	cs, agent := newCertifiedChain(t, 10_000)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := &types.Transaction{
		Nonce: 2, // should be 1
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: receiver.Public, Amount: 1}}},
	}
	tx.Sign(agent)

	sp := cs.Begin()
	_, err = ApplyTx(sp, tx, 1, 1000, nil)
	assert.ErrorIs(t, err, seloriaerr.ErrBadNonce)
	sp.Abort()
}

func TestExecTransferRejectsInsufficientBalance(t *testing.T) {
	cs, agent := newCertifiedChain(t, 100)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: receiver.Public, Amount: 10_000}}},
	}
	tx.Sign(agent)

	sp := cs.Begin()
	_, err = ApplyTx(sp, tx, 1, 1000, nil)
	assert.ErrorIs(t, err, seloriaerr.ErrInsufficient)
	sp.Abort()
}

func TestExecAgentCertRegister(t *testing.T) {
	cs := state.New(memdb.New())
	issuer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	genesis := &types.GenesisConfig{ChainID: 1, TrustedIssuers: []crypto.PublicKey{issuer.Public}}
	require.NoError(t, state.InitGenesis(cs, genesis))

	newAgent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cert := types.AgentCertificate{
		IssuerID:     state.ComputeIssuerID(issuer.Public),
		AgentPubkey:  newAgent.Public,
		ExpiresAt:    1_000_000,
		Capabilities: []types.Capability{types.CapTxSubmit},
	}
	body := &types.OpAgentCertRegisterBody{Cert: cert, IssuerSig: issuer.Sign(cert.Bytes())}
	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpAgentCertRegister, AgentCertRegister: body}},
	}
	tx.Sign(newAgent)

	events := applyOne(t, cs, tx, nil)
	assert.Equal(t, types.EventTxApplied, events[0].Kind)

	stored, ok, err := state.GetAgentCert(cs, newAgent.Public)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, stored.HasCapability(types.CapTxSubmit))
}

func TestExecTransferRejectsUncertifiedSender(t *testing.T) {
	cs := state.New(memdb.New())
	stranger, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	genesis := &types.GenesisConfig{
		ChainID:         1,
		InitialBalances: []types.GenesisBalance{{Pubkey: stranger.Public, Balance: 1000}},
	}
	require.NoError(t, state.InitGenesis(cs, genesis))

	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: receiver.Public, Amount: 1}}},
	}
	tx.Sign(stranger)

	sp := cs.Begin()
	_, err = ApplyTx(sp, tx, 1, 1000, nil)
	assert.ErrorIs(t, err, seloriaerr.ErrNotCertified)
	sp.Abort()
}

func TestClaimLifecycleFinalizesYes(t *testing.T) {
	cs, creator := newCertifiedChain(t, 10_000)
	attester, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	// Fund and certify the attester too.
	acctGenesis := &types.Account{Balance: 10_000}
	require.NoError(t, state.PutAccount(cs, attester.Public, acctGenesis))
	require.NoError(t, state.PutAgentCert(cs, types.AgentCertificate{
		AgentPubkey: attester.Public, ExpiresAt: 1_000_000,
		Capabilities: []types.Capability{types.CapTxSubmit, types.CapAttest},
	}))

	createTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind: types.OpClaimCreate,
			ClaimCreate: &types.OpClaimCreateBody{
				ClaimType: "delivery", PayloadHash: crypto.Sum([]byte("payload")), Stake: 100,
			},
		}},
	}
	createTx.Sign(creator)
	applyOne(t, cs, createTx, nil)

	claimID := types.ComputeClaimID(creator.Public, 1)
	claim, ok, err := state.GetClaim(cs, claimID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ClaimPending, claim.Status)
	assert.Equal(t, uint64(100), claim.YesStake)

	attestTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind:   types.OpAttest,
			Attest: &types.OpAttestBody{ClaimID: claimID, Vote: types.VoteYes, Stake: 200},
		}},
	}
	attestTx.Sign(attester)
	events := applyOne(t, cs, attestTx, nil)

	var sawFinalized bool
	for _, ev := range events {
		if ev.Kind == types.EventClaimFinalized {
			sawFinalized = true
			assert.Equal(t, types.ClaimFinalizedYes, ev.Status)
		}
	}
	assert.True(t, sawFinalized)

	finalized, ok, err := state.GetClaim(cs, claimID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.ClaimFinalizedYes, finalized.Status)
}

func TestAttestRejectsDoubleVote(t *testing.T) {
	cs, creator := newCertifiedChain(t, 10_000)

	createTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind:        types.OpClaimCreate,
			ClaimCreate: &types.OpClaimCreateBody{ClaimType: "x", PayloadHash: crypto.Sum([]byte("p")), Stake: 100},
		}},
	}
	createTx.Sign(creator)
	applyOne(t, cs, createTx, nil)
	claimID := types.ComputeClaimID(creator.Public, 1)

	attestTx := &types.Transaction{
		Nonce: 2,
		Ops: []types.Op{{
			Kind:   types.OpAttest,
			Attest: &types.OpAttestBody{ClaimID: claimID, Vote: types.VoteNo, Stake: 10},
		}},
	}
	attestTx.Sign(creator)

	sp := cs.Begin()
	_, err := ApplyTx(sp, attestTx, 1, 1000, nil)
	assert.ErrorIs(t, err, seloriaerr.ErrAlreadyAttested)
	sp.Abort()
}

func TestNamespaceAndKVRoundTrip(t *testing.T) {
	cs, owner := newCertifiedChain(t, 10_000)

	nsTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind: types.OpNamespaceCreate,
			NamespaceCreate: &types.OpNamespaceCreateBody{
				Name: "configs", AppID: crypto.Sum([]byte("app")), Policy: types.PolicyOwnerOnly,
			},
		}},
	}
	nsTx.Sign(owner)
	applyOne(t, cs, nsTx, nil)

	nsID := types.ComputeNamespaceID(crypto.Sum([]byte("app")), owner.Public, "configs")

	putTx := &types.Transaction{
		Nonce: 2,
		Ops: []types.Op{{
			Kind:  types.OpKVPut,
			KVPut: &types.OpKVPutBody{NsID: nsID, Key: "greeting", Codec: "raw", Value: []byte("hello")},
		}},
	}
	putTx.Sign(owner)
	applyOne(t, cs, putTx, nil)

	entry, ok, err := state.GetKV(cs, nsID, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), entry.Inline)

	appendTx := &types.Transaction{
		Nonce: 3,
		Ops: []types.Op{{
			Kind:      types.OpKVAppend,
			KVAppend:  &types.OpKVAppendBody{NsID: nsID, Key: "greeting", Chunk: []byte(" world")},
		}},
	}
	appendTx.Sign(owner)
	applyOne(t, cs, appendTx, nil)

	entry, ok, err = state.GetKV(cs, nsID, "greeting")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello world"), entry.Inline)

	delTx := &types.Transaction{
		Nonce: 4,
		Ops:   []types.Op{{Kind: types.OpKVDel, KVDel: &types.OpKVDelBody{NsID: nsID, Key: "greeting"}}},
	}
	delTx.Sign(owner)
	applyOne(t, cs, delTx, nil)

	_, ok, err = state.GetKV(cs, nsID, "greeting")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVAppendJSONCodecAppendsArrayElement(t *testing.T) {
	cs, owner := newCertifiedChain(t, 10_000)

	nsTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind: types.OpNamespaceCreate,
			NamespaceCreate: &types.OpNamespaceCreateBody{
				Name: "events", AppID: crypto.Sum([]byte("app")), Policy: types.PolicyOwnerOnly,
			},
		}},
	}
	nsTx.Sign(owner)
	applyOne(t, cs, nsTx, nil)
	nsID := types.ComputeNamespaceID(crypto.Sum([]byte("app")), owner.Public, "events")

	firstAppend := &types.Transaction{
		Nonce: 2,
		Ops: []types.Op{{
			Kind:     types.OpKVAppend,
			KVAppend: &types.OpKVAppendBody{NsID: nsID, Key: "log", Codec: "json", Chunk: []byte(`{"n":1}`)},
		}},
	}
	firstAppend.Sign(owner)
	applyOne(t, cs, firstAppend, nil)

	entry, ok, err := state.GetKV(cs, nsID, "log")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"n":1}]`, string(entry.Inline))

	secondAppend := &types.Transaction{
		Nonce: 3,
		Ops: []types.Op{{
			Kind:     types.OpKVAppend,
			KVAppend: &types.OpKVAppendBody{NsID: nsID, Key: "log", Codec: "json", Chunk: []byte(`{"n":2}`)},
		}},
	}
	secondAppend.Sign(owner)
	applyOne(t, cs, secondAppend, nil)

	entry, ok, err = state.GetKV(cs, nsID, "log")
	require.NoError(t, err)
	require.True(t, ok)
	assert.JSONEq(t, `[{"n":1},{"n":2}]`, string(entry.Inline))
}

func TestKVPutRejectsPolicyDenied(t *testing.T) {
	cs, owner := newCertifiedChain(t, 10_000)
	stranger, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	require.NoError(t, state.PutAccount(cs, stranger.Public, &types.Account{Balance: 1000}))
	require.NoError(t, state.PutAgentCert(cs, types.AgentCertificate{
		AgentPubkey: stranger.Public, ExpiresAt: 1_000_000,
		Capabilities: []types.Capability{types.CapTxSubmit, types.CapKvWrite},
	}))

	nsTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind: types.OpNamespaceCreate,
			NamespaceCreate: &types.OpNamespaceCreateBody{
				Name: "private", AppID: crypto.Sum([]byte("app")), Policy: types.PolicyOwnerOnly,
			},
		}},
	}
	nsTx.Sign(owner)
	applyOne(t, cs, nsTx, nil)
	nsID := types.ComputeNamespaceID(crypto.Sum([]byte("app")), owner.Public, "private")

	putTx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpKVPut, KVPut: &types.OpKVPutBody{NsID: nsID, Key: "k", Value: []byte("v")}}},
	}
	putTx.Sign(stranger)

	sp := cs.Begin()
	_, err = ApplyTx(sp, putTx, 1, 1000, nil)
	assert.ErrorIs(t, err, seloriaerr.ErrPolicyDenied)
	sp.Abort()
}

func TestTokenCreateAndTransfer(t *testing.T) {
	cs, creator := newCertifiedChain(t, 10_000)
	receiver, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	createTx := &types.Transaction{
		Nonce: 1,
		Ops: []types.Op{{
			Kind:        types.OpTokenCreate,
			TokenCreate: &types.OpTokenCreateBody{Name: "Widget", Symbol: "WGT", Decimals: 2, TotalSupply: 5000},
		}},
	}
	createTx.Sign(creator)
	applyOne(t, cs, createTx, nil)

	tokenID := types.ComputeTokenID(creator.Public, 1)
	bal, err := state.GetTokenBalance(cs, tokenID, creator.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), bal)

	transferTx := &types.Transaction{
		Nonce: 2,
		Ops: []types.Op{{
			Kind:          types.OpTokenTransfer,
			TokenTransfer: &types.OpTokenTransferBody{TokenID: tokenID, To: receiver.Public, Amount: 1500},
		}},
	}
	transferTx.Sign(creator)
	applyOne(t, cs, transferTx, nil)

	senderBal, err := state.GetTokenBalance(cs, tokenID, creator.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(3500), senderBal)

	recvBal, err := state.GetTokenBalance(cs, tokenID, receiver.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), recvBal)
}

// TestSwapMatchesWorkedExample reproduces the constant-product swap
// numbers a 1000/5000 reserve pool produces for a 100-unit swap in:
// out=453, new reserves (1100, 4547).
func TestSwapMatchesWorkedExample(t *testing.T) {
	cs, trader := newCertifiedChain(t, 100_000)

	mkToken := func(nonce uint64, supply uint64) crypto.Hash {
		tx := &types.Transaction{
			Nonce: nonce,
			Ops: []types.Op{{
				Kind:        types.OpTokenCreate,
				TokenCreate: &types.OpTokenCreateBody{Name: "T", Symbol: "T", Decimals: 0, TotalSupply: supply},
			}},
		}
		tx.Sign(trader)
		applyOne(t, cs, tx, nil)
		return types.ComputeTokenID(trader.Public, nonce)
	}

	tokenA := mkToken(1, 1_000_000)
	tokenB := mkToken(2, 1_000_000)

	// Create the pool with the pair in canonical order so pool.TokenA is the
	// side holding the 1000 reserve.
	a, b, _, _ := types.CanonicalPair(tokenA, tokenB, 1000, 5000)
	poolTx := &types.Transaction{
		Nonce: 3,
		Ops: []types.Op{{
			Kind: types.OpPoolCreate,
			PoolCreate: &types.OpPoolCreateBody{
				TokenA: a, TokenB: b, AmountA: 1000, AmountB: 5000,
			},
		}},
	}
	poolTx.Sign(trader)
	applyOne(t, cs, poolTx, nil)

	poolID := types.ComputePoolID(a, b)
	pool, ok, err := state.GetPool(cs, poolID)
	require.NoError(t, err)
	require.True(t, ok)

	swapTx := &types.Transaction{
		Nonce: 4,
		Ops: []types.Op{{
			Kind: types.OpSwap,
			Swap: &types.OpSwapBody{PoolID: poolID, TokenIn: pool.TokenA, AmountIn: 100},
		}},
	}
	swapTx.Sign(trader)
	events := applyOne(t, cs, swapTx, nil)

	var swapEvent types.Event
	for _, ev := range events {
		if ev.Kind == types.EventSwapExecuted {
			swapEvent = ev
		}
	}
	assert.Equal(t, uint64(453), swapEvent.Amount)

	after, ok, err := state.GetPool(cs, poolID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1100), after.ReserveA)
	assert.Equal(t, uint64(4547), after.ReserveB)
}

func TestPoolAddAndRemoveRoundTrip(t *testing.T) {
	cs, lp := newCertifiedChain(t, 1_000_000)

	mkToken := func(nonce uint64) crypto.Hash {
		tx := &types.Transaction{
			Nonce: nonce,
			Ops: []types.Op{{
				Kind:        types.OpTokenCreate,
				TokenCreate: &types.OpTokenCreateBody{Name: "T", Symbol: "T", TotalSupply: 1_000_000},
			}},
		}
		tx.Sign(lp)
		applyOne(t, cs, tx, nil)
		return types.ComputeTokenID(lp.Public, nonce)
	}
	tokenA := mkToken(1)
	tokenB := mkToken(2)

	poolTx := &types.Transaction{
		Nonce: 3,
		Ops: []types.Op{{
			Kind:       types.OpPoolCreate,
			PoolCreate: &types.OpPoolCreateBody{TokenA: tokenA, TokenB: tokenB, AmountA: 1000, AmountB: 1000},
		}},
	}
	poolTx.Sign(lp)
	applyOne(t, cs, poolTx, nil)

	a, b, _, _ := types.CanonicalPair(tokenA, tokenB, 1000, 1000)
	poolID := types.ComputePoolID(a, b)

	addTx := &types.Transaction{
		Nonce: 4,
		Ops: []types.Op{{
			Kind:    types.OpPoolAdd,
			PoolAdd: &types.OpPoolAddBody{PoolID: poolID, AmountA: 500, AmountB: 500},
		}},
	}
	addTx.Sign(lp)
	applyOne(t, cs, addTx, nil)

	lpBal, err := state.GetLPBalance(cs, poolID, lp.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), lpBal)

	removeTx := &types.Transaction{
		Nonce: 5,
		Ops: []types.Op{{
			Kind:       types.OpPoolRemove,
			PoolRemove: &types.OpPoolRemoveBody{PoolID: poolID, LPAmount: 750},
		}},
	}
	removeTx.Sign(lp)
	applyOne(t, cs, removeTx, nil)

	remaining, err := state.GetLPBalance(cs, poolID, lp.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(750), remaining)

	pool, ok, err := state.GetPool(cs, poolID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(750), pool.ReserveA+0) // sanity: reserves shrank proportionally (1500 - 1500*750/1500)
	_ = pool
}
