package client

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/ava-labs/avalanchego/database/memdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/eventbus"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/rpcapi"
	"github.com/seloria/seloria/state"
)

type noopTransport struct{}

func (noopTransport) RequestSignature(ctx context.Context, ep consensus.ValidatorEndpoint, block *types.Block) (crypto.Signature, error) {
	return crypto.Signature{}, context.DeadlineExceeded
}
func (noopTransport) SendCommit(ctx context.Context, ep consensus.ValidatorEndpoint, block *types.Block) error {
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, crypto.KeyPair) {
	t.Helper()
	cs := state.New(memdb.New())
	validator, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	genesis := &types.GenesisConfig{ChainID: 3, Validators: []crypto.PublicKey{validator.Public}}
	require.NoError(t, state.InitGenesis(cs, genesis))

	mp := mempool.New(mempool.Config{MaxSize: 100, MaxPerSender: 10})
	bus := eventbus.New()
	cfg := consensus.Config{ChainID: 3, MaxBlockTxs: 1000}
	node := consensus.NewNode(cfg, validator, []crypto.PublicKey{validator.Public}, nil, 1000, cs, mp, bus, noopTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go node.Run(ctx)

	srv := rpcapi.New(node, mp, bus, rpcapi.Config{ChainID: 3}, nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, validator
}

func TestRequestSignatureRoundTrip(t *testing.T) {
	ts, validator := newTestServer(t)
	transport := NewTransport(nil)

	mirrorCS := state.New(memdb.New())
	genesis := &types.GenesisConfig{ChainID: 3, Validators: []crypto.PublicKey{validator.Public}}
	require.NoError(t, state.InitGenesis(mirrorCS, genesis))

	block, err := consensus.BuildBlock(mirrorCS, mempool.New(mempool.Config{MaxSize: 1, MaxPerSender: 1}), consensus.Config{ChainID: 3, MaxBlockTxs: 10}, validator.Public, []crypto.PublicKey{validator.Public}, 1000)
	require.NoError(t, err)

	endpoint := consensus.ValidatorEndpoint{Pubkey: validator.Public, Address: ts.URL}
	sig, err := transport.RequestSignature(context.Background(), endpoint, block)
	require.NoError(t, err)

	blockHash := block.Header.Hash()
	assert.True(t, crypto.Verify(validator.Public, blockHash[:], sig))
}
