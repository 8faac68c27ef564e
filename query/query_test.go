package query

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/state"
)

func newTestChain(t *testing.T) (*state.ChainState, crypto.KeyPair) {
	t.Helper()
	cs := state.New(memdb.New())
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	genesis := &types.GenesisConfig{
		ChainID:         7,
		InitialBalances: []types.GenesisBalance{{Pubkey: agent.Public, Balance: 5000}},
	}
	require.NoError(t, state.InitGenesis(cs, genesis))
	return cs, agent
}

func TestAccountReportsAvailableAndTotalBalance(t *testing.T) {
	cs, agent := newTestChain(t)
	acct, err := state.GetAccount(cs, agent.Public)
	require.NoError(t, err)
	acct.Locked[crypto.Sum([]byte("lock"))] = 1000
	require.NoError(t, state.PutAccount(cs, agent.Public, acct))

	summary, err := Account(cs, agent.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(5000), summary.TotalBalance)
	assert.Equal(t, uint64(4000), summary.Balance)
}

func TestAccountDefaultsToZeroValue(t *testing.T) {
	cs, _ := newTestChain(t)
	unknown, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	summary, err := Account(cs, unknown.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), summary.TotalBalance)
	assert.Equal(t, uint64(0), summary.Nonce)
}

func TestClaimNotFound(t *testing.T) {
	cs, _ := newTestChain(t)
	_, ok, err := Claim(cs, crypto.Sum([]byte("nope")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestClaimReportsAttestationCount(t *testing.T) {
	cs, agent := newTestChain(t)
	claim := &types.Claim{
		ID:      crypto.Sum([]byte("claim-1")),
		Creator: agent.Public,
		Attestations: []types.Attestation{
			{Attester: agent.Public, Vote: types.VoteYes, Stake: 10},
		},
	}
	require.NoError(t, state.PutClaim(cs, claim))

	summary, ok, err := Claim(cs, claim.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, summary.AttestationCount)
}

func TestBlockAndTransactionLookup(t *testing.T) {
	cs, agent := newTestChain(t)

	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: agent.Public, Amount: 1}}},
	}
	tx.Sign(agent)

	block := &types.Block{
		Header: types.BlockHeader{ChainID: 7, Height: 1, Timestamp: 10},
		Txs:    []*types.Transaction{tx},
	}
	require.NoError(t, cs.PutBlock(block))

	got, ok, err := Block(cs, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Header.Height)
	require.Len(t, got.Txs, 1)

	loc, ok, err := Transaction(cs, tx.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), loc.Height)
	assert.Equal(t, tx.Hash(), loc.Tx.Hash())

	_, ok, err = Transaction(cs, crypto.Sum([]byte("missing")))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestKVKeysAndValue(t *testing.T) {
	cs, agent := newTestChain(t)
	nsID := crypto.Sum([]byte("namespace-a"))
	otherNs := crypto.Sum([]byte("namespace-b"))

	require.NoError(t, state.PutKV(cs, &types.KVEntry{NsID: nsID, Key: "alpha", Inline: []byte("1"), Updater: agent.Public}))
	require.NoError(t, state.PutKV(cs, &types.KVEntry{NsID: nsID, Key: "beta", Inline: []byte("2"), Updater: agent.Public}))
	require.NoError(t, state.PutKV(cs, &types.KVEntry{NsID: otherNs, Key: "gamma", Inline: []byte("3"), Updater: agent.Public}))

	keys, err := KVKeys(cs, nsID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alpha", "beta"}, keys)

	value, ok, err := KVValue(cs, nsID, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("1"), value.Inline)
}

func TestNodeStatusReportsMempoolSize(t *testing.T) {
	cs, agent := newTestChain(t)
	mp := mempool.New(mempool.Config{MaxSize: 10, MaxPerSender: 10})

	cert := types.AgentCertificate{AgentPubkey: agent.Public, ExpiresAt: 1_000_000, Capabilities: []types.Capability{types.CapTxSubmit}}
	require.NoError(t, state.PutAgentCert(cs, cert))

	tx := &types.Transaction{Nonce: 1, Ops: []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: agent.Public, Amount: 1}}}}
	tx.Sign(agent)
	_, err := mp.Add(cs, tx, 0)
	require.NoError(t, err)

	status, err := NodeStatus(cs, mp, 7)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), status.ChainID)
	assert.Equal(t, 1, status.MempoolSize)
}

func TestCertIssueSignsWithIssuerKey(t *testing.T) {
	issuer, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	signed, err := CertIssue(issuer, types.AgentCertificate{
		AgentPubkey: agent.Public,
		ExpiresAt:   1000,
	})
	require.NoError(t, err)
	assert.True(t, crypto.Verify(issuer.Public, signed.Cert.Bytes(), signed.IssuerSig))
}

func TestRequireIssuerConfigured(t *testing.T) {
	assert.NoError(t, RequireIssuerConfigured(true))
	assert.Error(t, RequireIssuerConfigured(false))
}
