package types

import (
	"encoding/json"

	"github.com/seloria/seloria/core/crypto"
)

// EventKind enumerates the execution events emitted by apply_tx, per
// spec.md §4.4 and §4.5. The taxonomy is broader than the minimal set
// spec.md names: every state-mutating opcode gets its own event so
// subscribers never have to re-derive "what changed" from a generic
// TX_APPLIED notification (supplemented from original_source's
// seloria-vm/src/events.rs ExecutionEvent enum; see SPEC_FULL.md §C).
type EventKind uint8

const (
	EventBlockCommitted EventKind = iota
	EventTxApplied
	EventAgentRegistered
	EventTransfer
	EventClaimCreated
	EventAttestationAdded
	EventClaimFinalized
	EventNamespaceCreated
	EventKVUpdated
	EventKVDeleted
	EventTokenCreated
	EventTokenTransfer
	EventAppRegistered
	EventPoolCreated
	EventPoolLiquidityAdded
	EventPoolLiquidityRemoved
	EventSwapExecuted
)

// eventKindNames maps EventKind to the wire tag WS subscribers match on.
// BLOCK_COMMITTED, TX_APPLIED, CLAIM_CREATED, ATTEST_ADDED,
// CLAIM_FINALIZED, and KV_UPDATED are spec.md §6's named tags; the rest
// extend the same SCREAMING_SNAKE_CASE scheme to the broader taxonomy
// SPEC_FULL.md §C adds.
var eventKindNames = [...]string{
	EventBlockCommitted:       "BLOCK_COMMITTED",
	EventTxApplied:            "TX_APPLIED",
	EventAgentRegistered:      "AGENT_REGISTERED",
	EventTransfer:             "TRANSFER",
	EventClaimCreated:         "CLAIM_CREATED",
	EventAttestationAdded:     "ATTEST_ADDED",
	EventClaimFinalized:       "CLAIM_FINALIZED",
	EventNamespaceCreated:     "NAMESPACE_CREATED",
	EventKVUpdated:            "KV_UPDATED",
	EventKVDeleted:            "KV_DELETED",
	EventTokenCreated:         "TOKEN_CREATED",
	EventTokenTransfer:        "TOKEN_TRANSFER",
	EventAppRegistered:        "APP_REGISTERED",
	EventPoolCreated:          "POOL_CREATED",
	EventPoolLiquidityAdded:   "POOL_LIQUIDITY_ADDED",
	EventPoolLiquidityRemoved: "POOL_LIQUIDITY_REMOVED",
	EventSwapExecuted:         "SWAP_EXECUTED",
}

// String returns the wire tag for k, per eventKindNames.
func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return "UNKNOWN"
}

// MarshalJSON encodes k as its wire tag string rather than its numeric
// value, so WS frames match spec.md §6's documented {type, data} envelope.
func (k EventKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Event is a single notification published on the event bus. Fields not
// relevant to Kind are left zero-valued; consumers switch on Kind.
type Event struct {
	Kind      EventKind
	Height    uint64
	TxHash    crypto.Hash
	BlockHash crypto.Hash

	Sender crypto.PublicKey
	To     crypto.PublicKey
	Amount uint64

	AgentID crypto.Hash
	IssuerID crypto.Hash

	ClaimID   crypto.Hash
	ClaimType string
	Vote      Vote
	Stake     uint64
	Status    ClaimStatus

	NsID crypto.Hash
	Key  string

	TokenID crypto.Hash
	PoolID  crypto.Hash

	AppID crypto.Hash
}
