package rpcapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
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
	"github.com/seloria/seloria/state"
)

type fakeTransport struct{}

func (fakeTransport) RequestSignature(ctx context.Context, ep consensus.ValidatorEndpoint, block *types.Block) (crypto.Signature, error) {
	return crypto.Signature{}, context.DeadlineExceeded
}
func (fakeTransport) SendCommit(ctx context.Context, ep consensus.ValidatorEndpoint, block *types.Block) error {
	return nil
}

func newTestServer(t *testing.T) (*Server, crypto.KeyPair, func()) {
	t.Helper()
	cs := state.New(memdb.New())
	validator, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	agent, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	genesis := &types.GenesisConfig{
		ChainID:         9,
		InitialBalances: []types.GenesisBalance{{Pubkey: agent.Public, Balance: 10_000}},
		Validators:      []crypto.PublicKey{validator.Public},
	}
	require.NoError(t, state.InitGenesis(cs, genesis))
	// POST /tx checks the cert against wall-clock time, so it must not expire.
	cert := types.AgentCertificate{AgentPubkey: agent.Public, ExpiresAt: 1 << 62, Capabilities: []types.Capability{types.CapTxSubmit}}
	require.NoError(t, state.PutAgentCert(cs, cert))

	mp := mempool.New(mempool.Config{MaxSize: 100, MaxPerSender: 10})
	bus := eventbus.New()
	cfg := consensus.Config{ChainID: 9, MaxBlockTxs: 1000}
	node := consensus.NewNode(cfg, validator, []crypto.PublicKey{validator.Public}, nil, 1000, cs, mp, bus, fakeTransport{})

	ctx, cancel := context.WithCancel(context.Background())
	go node.Run(ctx)

	srv := New(node, mp, bus, Config{ChainID: 9}, nil)
	return srv, agent, cancel
}

func TestHandleStatus(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var status struct {
		ChainID uint64 `json:"chain_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, uint64(9), status.ChainID)
}

func TestHandleSubmitTxAndGetAccount(t *testing.T) {
	srv, agent, cancel := newTestServer(t)
	defer cancel()

	tx := &types.Transaction{
		Nonce: 1,
		Ops:   []types.Op{{Kind: types.OpTransfer, Transfer: &types.OpTransferBody{To: agent.Public, Amount: 1}}},
	}
	tx.Sign(agent)
	body, err := json.Marshal(tx)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/tx", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	req2 := httptest.NewRequest(http.MethodGet, "/account/"+agent.Public.String(), nil)
	w2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w2, req2)
	require.Equal(t, http.StatusOK, w2.Code)
}

func TestHandleGetAccountUnknownDefaultsZero(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()
	other, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/account/"+other.Public.String(), nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleGetBlockNotFound(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/block/42", nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleCertIssueRequiresIssuerKey(t *testing.T) {
	srv, _, cancel := newTestServer(t)
	defer cancel()

	req := httptest.NewRequest(http.MethodPost, "/cert/issue", bytes.NewReader([]byte(`{}`)))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	// Not registered when no issuer key is configured.
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandleConsensusProposeRejectsWrongHeight(t *testing.T) {
	srv, proposer, cancel := newTestServer(t)
	defer cancel()

	block := &types.Block{Header: types.BlockHeader{ChainID: 9, Height: 99, ProposerPubkey: proposer.Public}}
	block.Header.TxRoot = types.ComputeTxRoot(nil)
	payload, err := json.Marshal(proposeRequestBody{Block: block})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/consensus/propose", bytes.NewReader(payload))
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

