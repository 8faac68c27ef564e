// Package rpcapi implements spec.md §6's external interfaces: a REST/JSON
// surface for reads and tx submission, a gorilla/rpc JSON-RPC service for
// the two consensus endpoints and certificate issuance, and a WebSocket
// event stream. Routing follows the teacher's CreateHandlers wiring
// (gorilla/rpc's Server plus a mux for path-parameterized routes), adapted
// from a single avalanchego plugin handler into a standalone HTTP server
// since this node runs outside the subnet-VM plugin framework.
package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/inconshreveable/log15"

	"github.com/seloria/seloria/consensus"
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/eventbus"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/query"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// Server wires consensus.Node's external API, the query package's read
// accessors, and an eventbus subscription into spec.md §6's HTTP/WS
// surface.
type Server struct {
	node      *consensus.Node
	mp        *mempool.Mempool
	bus       *eventbus.Bus
	chainID   uint64
	issuerKey *crypto.KeyPair // nil unless issuer_key is configured

	log    log15.Logger
	router *mux.Router
}

// Config bundles what Server needs beyond the Node/Bus it's handed at
// construction.
type Config struct {
	ChainID   uint64
	IssuerKey *crypto.KeyPair
	EnableWS  bool
}

// New builds a Server and registers every route from spec.md §6.
func New(node *consensus.Node, mp *mempool.Mempool, bus *eventbus.Bus, cfg Config, logger log15.Logger) *Server {
	if logger == nil {
		logger = log15.New("component", "rpcapi")
	}
	s := &Server{
		node:      node,
		mp:        mp,
		bus:       bus,
		chainID:   cfg.ChainID,
		issuerKey: cfg.IssuerKey,
		log:       logger,
		router:    mux.NewRouter(),
	}
	s.routes(cfg.EnableWS)
	return s
}

// Handler returns the http.Handler to pass to http.Serve/http.ListenAndServe.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes(enableWS bool) {
	s.router.HandleFunc("/tx", s.handleSubmitTx).Methods(http.MethodPost)
	s.router.HandleFunc("/tx/{hash}", s.handleGetTx).Methods(http.MethodGet)
	s.router.HandleFunc("/block/{height}", s.handleGetBlock).Methods(http.MethodGet)
	s.router.HandleFunc("/account/{pubkey}", s.handleGetAccount).Methods(http.MethodGet)
	s.router.HandleFunc("/claim/{id}", s.handleGetClaim).Methods(http.MethodGet)
	s.router.HandleFunc("/kv/{ns_id}", s.handleListKV).Methods(http.MethodGet)
	s.router.HandleFunc("/kv/{ns_id}/{key}", s.handleGetKV).Methods(http.MethodGet)
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/consensus/propose", s.handleConsensusPropose).Methods(http.MethodPost)
	s.router.HandleFunc("/consensus/commit", s.handleConsensusCommit).Methods(http.MethodPost)
	if s.issuerKey != nil {
		s.router.HandleFunc("/cert/issue", s.handleCertIssue).Methods(http.MethodPost)
	}
	// The same three operations are additionally reachable as JSON-RPC
	// methods at /rpc, mirroring the teacher's CreateHandlers, which
	// exposes its VM through exactly one gorilla/rpc Service rather than
	// one REST route per method.
	s.router.Handle("/rpc", s.rpcService()).Methods(http.MethodPost)
	if enableWS {
		s.router.HandleFunc("/ws", s.handleWS)
	}
}

// writeJSON writes v as the JSON response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err to a 4xx/5xx response, per spec.md §7's "every
// fallible operation returns a typed error" carried over the wire as
// {"error": "..."}
func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// requireIssuerConfigured mirrors query.RequireIssuerConfigured but takes
// the *crypto.KeyPair directly, since that's the shape Server carries it
// in.
func requireIssuerConfigured(key *crypto.KeyPair) error {
	if key == nil {
		return seloriaerr.ErrUnknownIssuer
	}
	return nil
}

// issueCert signs cert on behalf of issuerKey.
func issueCert(issuerKey crypto.KeyPair, cert types.AgentCertificate) (*types.SignedAgentCertificate, error) {
	return query.CertIssue(issuerKey, cert)
}

// query runs fn against a consistent ChainState snapshot via the node's
// state-machine task, with a bounded deadline so a stuck RPC can't hang
// the whole HTTP server indefinitely.
func (s *Server) query(r *http.Request, fn func(*state.ChainState)) error {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	return s.node.Query(ctx, fn)
}
