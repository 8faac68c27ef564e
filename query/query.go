// Package query implements the read-only accessors behind spec.md §6's GET
// routes. Every function here takes a *state.ChainState directly; rpcapi
// calls them from inside a consensus.Node.Query closure so each read sees a
// consistent snapshot of committed state without itself needing to touch
// the state-machine task's internals.
package query

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// AccountSummary is the response shape for GET /account/:pubkey.
type AccountSummary struct {
	Pubkey       crypto.PublicKey `json:"pubkey"`
	Balance      uint64           `json:"balance"` // available = gross balance minus every outstanding lock
	Nonce        uint64           `json:"nonce"`
	TotalBalance uint64           `json:"total_balance"` // gross balance, including locked amounts
}

// Account looks up pubkey's account, defaulting to a fresh zero-value
// account (matching spec.md §3's "accounts are created implicitly on first
// credit") rather than a not-found error.
func Account(cs *state.ChainState, pubkey crypto.PublicKey) (*AccountSummary, error) {
	acct, err := state.GetAccount(cs, pubkey)
	if err != nil {
		return nil, err
	}
	return &AccountSummary{
		Pubkey:       pubkey,
		Balance:      acct.Available(),
		Nonce:        acct.Nonce,
		TotalBalance: acct.Balance,
	}, nil
}

// ClaimSummary is the response shape for GET /claim/:id.
type ClaimSummary struct {
	Claim            *types.Claim `json:"claim"`
	AttestationCount int          `json:"attestation_count"`
}

// Claim looks up the claim with the given ID.
func Claim(cs *state.ChainState, id crypto.Hash) (*ClaimSummary, bool, error) {
	c, ok, err := state.GetClaim(cs, id)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &ClaimSummary{Claim: c, AttestationCount: len(c.Attestations)}, true, nil
}

// Block looks up the archived block at height.
func Block(cs *state.ChainState, height uint64) (*types.Block, bool, error) {
	return cs.GetBlockByHeight(height)
}

// TxLocation is the response shape for GET /tx/:hash.
type TxLocation struct {
	Tx     *types.Transaction
	Height uint64
}

// Transaction locates a committed transaction by its content hash.
func Transaction(cs *state.ChainState, hash crypto.Hash) (*TxLocation, bool, error) {
	tx, height, ok, err := cs.GetTransaction(hash)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &TxLocation{Tx: tx, Height: height}, true, nil
}

// KVKeys lists every key stored in namespace nsID.
func KVKeys(cs *state.ChainState, nsID crypto.Hash) ([]string, error) {
	return state.ListKVKeys(cs, nsID)
}

// KVValue looks up a single key's value record in namespace nsID.
func KVValue(cs *state.ChainState, nsID crypto.Hash, key string) (*types.KVEntry, bool, error) {
	return state.GetKV(cs, nsID, key)
}

// Status is the response shape for GET /status.
type Status struct {
	ChainID       uint64      `json:"chain_id"`
	Height        uint64      `json:"height"`
	HeadBlockHash crypto.Hash `json:"head_block_hash"`
	MempoolSize   int         `json:"mempool_size"`
}

// NodeStatus summarizes the chain's current head and mempool occupancy.
// mp.Len() is safe to call concurrently with the state-machine task since
// Mempool guards its own mutex independent of ChainState.
func NodeStatus(cs *state.ChainState, mp *mempool.Mempool, chainID uint64) (*Status, error) {
	height, hash, err := cs.LastAccepted()
	if err != nil {
		return nil, err
	}
	return &Status{
		ChainID:       chainID,
		Height:        height,
		HeadBlockHash: hash,
		MempoolSize:   mp.Len(),
	}, nil
}

// CertIssue builds a signed certificate payload for GET-adjacent POST
// /cert/issue, per spec.md §6 ("if issuer key configured"). issuerKey
// signs the certificate's canonical encoding on behalf of the configured
// trusted issuer.
func CertIssue(issuerKey crypto.KeyPair, cert types.AgentCertificate) (*types.SignedAgentCertificate, error) {
	cert.IssuerID = state.ComputeIssuerID(issuerKey.Public)
	sig := issuerKey.Sign(cert.Bytes())
	return &types.SignedAgentCertificate{Cert: cert, IssuerSig: sig}, nil
}

// RequireIssuerConfigured is a small guard for callers of CertIssue, since
// spec.md §6 makes /cert/issue conditional on an issuer key being present
// in config. rpcapi does not call it; it uses its own
// requireIssuerConfigured, which takes the key pointer.
func RequireIssuerConfigured(configured bool) error {
	if !configured {
		return seloriaerr.ErrUnknownIssuer
	}
	return nil
}
