package state

import (
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
)

func newTestGenesisChain(t *testing.T) (*ChainState, crypto.KeyPair) {
	t.Helper()
	cs := New(memdb.New())
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	genesis := &types.GenesisConfig{
		ChainID:         1,
		InitialBalances: []types.GenesisBalance{{Pubkey: agent.Public, Balance: 500}},
	}
	require.NoError(t, InitGenesis(cs, genesis))
	return cs, agent
}

func TestSnapshotRoundTrip(t *testing.T) {
	cs, agent := newTestGenesisChain(t)

	block := &types.Block{Header: types.BlockHeader{ChainID: 1, Height: 1}}
	require.NoError(t, cs.PutBlock(block))
	require.NoError(t, cs.Commit())

	wantRoot, err := cs.StateRoot()
	require.NoError(t, err)

	blob, err := cs.Snapshot()
	require.NoError(t, err)
	require.NotEmpty(t, blob)

	restored := New(memdb.New())
	require.NoError(t, restored.LoadSnapshot(blob))

	gotRoot, err := restored.StateRoot()
	require.NoError(t, err)
	assert.Equal(t, wantRoot, gotRoot)

	acct, err := GetAccount(restored, agent.Public)
	require.NoError(t, err)
	assert.Equal(t, uint64(500), acct.Balance)

	got, ok, err := restored.GetBlockByHeight(1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), got.Header.Height)
}

func TestPutBlockIndexesTransactions(t *testing.T) {
	cs, agent := newTestGenesisChain(t)

	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: agent.Public, Amount: 1}}},
	}
	tx.Sign(agent)
	block := &types.Block{
		Header: types.BlockHeader{ChainID: 1, Height: 1},
		Txs:    []*types.Transaction{tx},
	}
	require.NoError(t, cs.PutBlock(block))

	got, height, ok, err := cs.GetTransaction(tx.Hash())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1), height)
	assert.Equal(t, tx.Nonce, got.Nonce)
}

func TestGetBlockByHeightNotFound(t *testing.T) {
	cs, _ := newTestGenesisChain(t)
	_, ok, err := cs.GetBlockByHeight(99)
	require.NoError(t, err)
	assert.False(t, ok)
}
