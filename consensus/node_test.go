package consensus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/eventbus"
	"github.com/seloria/seloria/mempool"
)

// noopTransport is unused in single-validator tests since the leader's own
// signature alone reaches quorum (threshold 1), but Node always requires a
// Transport value.
type noopTransport struct{}

func (noopTransport) RequestSignature(ctx context.Context, ep ValidatorEndpoint, block *types.Block) (crypto.Signature, error) {
	return crypto.Signature{}, context.DeadlineExceeded
}

func (noopTransport) SendCommit(ctx context.Context, ep ValidatorEndpoint, block *types.Block) error {
	return nil
}

func TestOnRoundTickSingleValidatorCommits(t *testing.T) {
	cs, _, _, proposer := setupTestChain(t)
	mp := mempool.New(mempool.Config{MaxSize: 100, MaxPerSender: 10})
	bus := eventbus.New()
	cfg := Config{ChainID: 1, MaxBlockTxs: 1000}

	n := NewNode(cfg, proposer, []crypto.PublicKey{proposer.Public}, nil, 1000, cs, mp, bus, noopTransport{})

	ch, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	n.onRoundTick(context.Background())

	height, _, err := cs.LastAccepted()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)

	select {
	case ev := <-ch:
		assert.Equal(t, types.EventBlockCommitted, ev.Kind)
	default:
		t.Fatal("expected BLOCK_COMMITTED to be published")
	}
}

func TestOnRoundTickSkipsWhenNotLeader(t *testing.T) {
	cs, _, _, proposer := setupTestChain(t)
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	mp := mempool.New(mempool.Config{MaxSize: 100, MaxPerSender: 10})
	bus := eventbus.New()
	cfg := Config{ChainID: 1, MaxBlockTxs: 1000}

	// validators[0] is the leader at height 1; "other" is validators[1].
	n := NewNode(cfg, other, []crypto.PublicKey{proposer.Public, other.Public}, nil, 1000, cs, mp, bus, noopTransport{})
	n.onRoundTick(context.Background())

	height, _, err := cs.LastAccepted()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), height)
}

func TestHandleProposeAndCommitFollowerFlow(t *testing.T) {
	cs, _, _, proposer := setupTestChain(t)
	mp := mempool.New(mempool.Config{MaxSize: 100, MaxPerSender: 10})
	bus := eventbus.New()
	cfg := Config{ChainID: 1, MaxBlockTxs: 1000}
	validators := []crypto.PublicKey{proposer.Public}

	leaderNode := NewNode(cfg, proposer, validators, nil, 1000, cs, mp, bus, noopTransport{})

	block, err := BuildBlock(cs, mp, cfg, proposer.Public, validators, 1000)
	require.NoError(t, err)

	sig, err := leaderNode.onPropose(block)
	require.NoError(t, err)

	blockHash := block.Header.Hash()
	assert.True(t, crypto.Verify(proposer.Public, blockHash[:], sig))

	builder := NewQCBuilder(blockHash, validators, Threshold(len(validators)))
	_, err = builder.AddSignature(proposer.Public, sig)
	require.NoError(t, err)
	qc, err := builder.Build()
	require.NoError(t, err)
	block.QC = qc

	err = leaderNode.onCommit(block)
	require.NoError(t, err)

	height, _, err := cs.LastAccepted()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), height)
}
