package mempool

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

func newTestChain(t *testing.T) *state.ChainState {
	t.Helper()
	return state.New(memdb.New())
}

func certifiedSender(t *testing.T, cs *state.ChainState, now uint64) crypto.KeyPair {
	t.Helper()
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	cert := types.AgentCertificate{
		AgentPubkey: sender.Public,
		AgentID:     crypto.Sum([]byte("agent")),
		IssuedAt:    0,
		ExpiresAt:   now + 1_000_000,
		Capabilities: []types.Capability{
			types.CapTxSubmit, types.CapClaim, types.CapAttest, types.CapKvWrite,
		},
	}
	require.NoError(t, state.PutAgentCert(cs, cert))
	return sender
}

func txWithNonce(sender crypto.KeyPair, nonce uint64) *types.Transaction {
	tx := &types.Transaction{Nonce: nonce, Fee: 1}
	tx.Sign(sender)
	return tx
}

func TestAddRejectsBadSignature(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)
	tx := txWithNonce(sender, 1)
	tx.Fee = 2 // mutate after signing so the signature no longer covers the body

	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	_, err := mp.Add(cs, tx, 0)
	assert.ErrorIs(t, err, seloriaerr.ErrBadSignature)
}

func TestAddRejectsUncertifiedSender(t *testing.T) {
	cs := newTestChain(t)
	sender, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tx := txWithNonce(sender, 1)

	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	_, err = mp.Add(cs, tx, 0)
	assert.ErrorIs(t, err, seloriaerr.ErrNotCertified)
}

func TestAddRejectsNonceNotGreaterThanAccount(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)
	account, err := state.GetAccount(cs, sender.Public)
	require.NoError(t, err)
	account.Nonce = 5
	require.NoError(t, state.PutAccount(cs, sender.Public, account))

	tx := txWithNonce(sender, 5)
	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	_, err = mp.Add(cs, tx, 0)
	assert.ErrorIs(t, err, seloriaerr.ErrBadNonce)
}

func TestAddAcceptsAndDedupes(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)
	tx := txWithNonce(sender, 1)

	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	h1, err := mp.Add(cs, tx, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, mp.Len())

	_, err = mp.Add(cs, tx, 0)
	assert.ErrorIs(t, err, seloriaerr.ErrDuplicate)
	assert.Equal(t, tx.Hash(), h1)

	select {
	case <-mp.Notify():
	default:
		t.Fatal("expected a notification after the first accepted Add")
	}
}

func TestAddEvictsHighestNonceOnPerSenderOverflow(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)

	mp := New(Config{MaxSize: 10, MaxPerSender: 2})
	tx1 := txWithNonce(sender, 1)
	tx2 := txWithNonce(sender, 2)
	tx3 := txWithNonce(sender, 3)

	_, err := mp.Add(cs, tx1, 0)
	require.NoError(t, err)
	_, err = mp.Add(cs, tx2, 0)
	require.NoError(t, err)
	_, err = mp.Add(cs, tx3, 0)
	require.NoError(t, err)

	assert.Equal(t, 2, mp.Len())
	txs, err := mp.Drain(cs, 10)
	require.NoError(t, err)
	var nonces []uint64
	for _, tx := range txs {
		nonces = append(nonces, tx.Nonce)
	}
	assert.Equal(t, []uint64{1, 2}, nonces)
}

func TestDrainOrdersBySenderThenNonceAndSkipsGaps(t *testing.T) {
	cs := newTestChain(t)
	senderA := certifiedSender(t, cs, 0)
	senderB := certifiedSender(t, cs, 0)

	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	require.NoError(t, addOK(t, mp, cs, senderA, 1))
	require.NoError(t, addOK(t, mp, cs, senderA, 3)) // gap: nonce 2 never arrives
	require.NoError(t, addOK(t, mp, cs, senderB, 1))

	txs, err := mp.Drain(cs, 10)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	for _, tx := range txs {
		assert.Equal(t, uint64(1), tx.Nonce)
	}
}

func TestDrainRespectsMaxBlockTxs(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)
	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	require.NoError(t, addOK(t, mp, cs, sender, 1))
	require.NoError(t, addOK(t, mp, cs, sender, 2))
	require.NoError(t, addOK(t, mp, cs, sender, 3))

	txs, err := mp.Drain(cs, 2)
	require.NoError(t, err)
	assert.Len(t, txs, 2)
}

func TestRemoveDropsCommittedTxs(t *testing.T) {
	cs := newTestChain(t)
	sender := certifiedSender(t, cs, 0)
	mp := New(Config{MaxSize: 10, MaxPerSender: 10})
	tx := txWithNonce(sender, 1)
	hash, err := mp.Add(cs, tx, 0)
	require.NoError(t, err)

	mp.Remove([]crypto.Hash{hash})
	assert.Equal(t, 0, mp.Len())
}

func addOK(t *testing.T, mp *Mempool, cs *state.ChainState, sender crypto.KeyPair, nonce uint64) error {
	t.Helper()
	_, err := mp.Add(cs, txWithNonce(sender, nonce), 0)
	return err
}
