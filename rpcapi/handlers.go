package rpcapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/gorilla/mux"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/query"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

func parseID(s string) (ids.ID, error) { return ids.FromString(s) }

// handleSubmitTx implements POST /tx: decode, hand to the mempool via the
// state-machine task, and report the resulting tx_hash.
func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var tx types.Transaction
	if err := json.NewDecoder(r.Body).Decode(&tx); err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	hash, err := s.node.SubmitTx(ctx, &tx, uint64(time.Now().Unix()))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"tx_hash": hash.String()})
}

func (s *Server) handleGetTx(w http.ResponseWriter, r *http.Request) {
	hash, err := parseID(mux.Vars(r)["hash"])
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var loc *query.TxLocation
	var found bool
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		loc, found, qerr = query.Transaction(cs, hash)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, loc)
}

func (s *Server) handleGetBlock(w http.ResponseWriter, r *http.Request) {
	height, err := strconv.ParseUint(mux.Vars(r)["height"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var block *types.Block
	var found bool
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		block, found, qerr = query.Block(cs, height)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, block)
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	pubkey, err := parseID(mux.Vars(r)["pubkey"])
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var summary *query.AccountSummary
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		summary, qerr = query.Account(cs, crypto.PublicKey(pubkey))
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleGetClaim(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var summary *query.ClaimSummary
	var found bool
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		summary, found, qerr = query.Claim(cs, id)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleListKV(w http.ResponseWriter, r *http.Request) {
	nsID, err := parseID(mux.Vars(r)["ns_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var keys []string
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		keys, qerr = query.KVKeys(cs, nsID)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"keys": keys})
}

func (s *Server) handleGetKV(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	nsID, err := parseID(vars["ns_id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	var entry *types.KVEntry
	var found bool
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		entry, found, qerr = query.KVValue(cs, nsID, vars["key"])
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	if !found {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// proposeRequestBody is POST /consensus/propose's body: {block}.
type proposeRequestBody struct {
	Block *types.Block `json:"block"`
}

// handleConsensusPropose implements POST /consensus/propose: a follower
// validates the proposal and signs it if it checks out.
func (s *Server) handleConsensusPropose(w http.ResponseWriter, r *http.Request) {
	var body proposeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Block == nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	sig, err := s.node.HandlePropose(ctx, body.Block)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]crypto.Signature{"signature": sig})
}

// commitRequestBody is POST /consensus/commit's body: {block, qc}. qc is
// carried separately since types.Block.QC may arrive unset from a leader
// that assembles the two independently.
type commitRequestBody struct {
	Block *types.Block `json:"block"`
	QC    *types.QC    `json:"qc"`
}

// handleConsensusCommit implements POST /consensus/commit: a follower
// verifies the attached QC and applies the block for real.
func (s *Server) handleConsensusCommit(w http.ResponseWriter, r *http.Request) {
	var body commitRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Block == nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	if body.QC != nil {
		body.Block.QC = body.QC
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.node.HandleCommit(ctx, body.Block); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// handleCertIssue implements POST /cert/issue, only registered when an
// issuer key is configured.
func (s *Server) handleCertIssue(w http.ResponseWriter, r *http.Request) {
	var cert types.AgentCertificate
	if err := json.NewDecoder(r.Body).Decode(&cert); err != nil {
		writeError(w, http.StatusBadRequest, seloriaerr.ErrBadEncoding)
		return
	}
	signed, err := query.CertIssue(*s.issuerKey, cert)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, signed)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status *query.Status
	var qerr error
	if err := s.query(r, func(cs *state.ChainState) {
		status, qerr = query.NodeStatus(cs, s.mp, s.chainID)
	}); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if qerr != nil {
		writeError(w, http.StatusInternalServerError, qerr)
		return
	}
	writeJSON(w, http.StatusOK, status)
}
