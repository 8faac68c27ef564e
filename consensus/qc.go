// Package consensus implements the committee-based round state machine of
// spec.md §4.3: fixed validator set, deterministic leader rotation,
// quorum-certificate finality, and re-execution-on-commit, grounded on
// original_source's seloria-consensus crate (qc.rs, proposer.rs,
// validator.rs, block_builder.rs), translated from its async/Arc<RwLock<>>
// single-process model into the teacher's message-passing style: one
// goroutine owns the ChainState and communicates with I/O goroutines over
// buffered channels (see node.go).
package consensus

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
)

// Threshold returns T = floor(2N/3) + 1 for a validator set of size n,
// per spec.md §4.3.
func Threshold(n int) int {
	return (2*n)/3 + 1
}

// LeaderForHeight returns V[h mod N], per spec.md §4.3. Returns the zero
// PublicKey and false if validators is empty.
func LeaderForHeight(validators []crypto.PublicKey, height uint64) (crypto.PublicKey, bool) {
	if len(validators) == 0 {
		return crypto.PublicKey{}, false
	}
	return validators[int(height)%len(validators)], true
}

// QCBuilder collects validator signatures over one block hash until quorum
// is reached, grounded on qc.rs's QcBuilder.
type QCBuilder struct {
	blockHash crypto.Hash
	threshold int
	validator map[crypto.PublicKey]struct{}
	seen      map[crypto.PublicKey]struct{}
	sigs      []types.ValidatorSignature
}

// NewQCBuilder starts a collector for blockHash against validators, needing
// threshold distinct signatures to finalize.
func NewQCBuilder(blockHash crypto.Hash, validators []crypto.PublicKey, threshold int) *QCBuilder {
	set := make(map[crypto.PublicKey]struct{}, len(validators))
	for _, v := range validators {
		set[v] = struct{}{}
	}
	return &QCBuilder{
		blockHash: blockHash,
		threshold: threshold,
		validator: set,
		seen:      make(map[crypto.PublicKey]struct{}),
	}
}

// AddSignature verifies sig is a valid signature by validator over the
// block hash and records it, reporting whether quorum is now reached.
// Duplicate signatures from the same validator are accepted idempotently
// (no error), matching qc.rs's debug-and-return-current-state behavior.
func (b *QCBuilder) AddSignature(validator crypto.PublicKey, sig crypto.Signature) (bool, error) {
	if _, ok := b.validator[validator]; !ok {
		return false, seloriaerr.ErrValidatorUnknown
	}
	if !crypto.Verify(validator, b.blockHash[:], sig) {
		return false, seloriaerr.ErrBadSignature
	}
	if _, dup := b.seen[validator]; dup {
		return b.HasQuorum(), nil
	}
	b.seen[validator] = struct{}{}
	b.sigs = append(b.sigs, types.ValidatorSignature{ValidatorPubkey: validator, Signature: sig})
	return b.HasQuorum(), nil
}

// HasQuorum reports whether enough distinct signatures have been collected.
func (b *QCBuilder) HasQuorum() bool {
	return len(b.sigs) >= b.threshold
}

// SignatureCount returns the number of distinct signatures collected so far.
func (b *QCBuilder) SignatureCount() int {
	return len(b.sigs)
}

// Build returns the finished QC, failing if quorum was never reached.
func (b *QCBuilder) Build() (*types.QC, error) {
	if !b.HasQuorum() {
		return nil, seloriaerr.ErrQuorumUnmet
	}
	return &types.QC{BlockHash: b.blockHash, Signatures: b.sigs}, nil
}

// VerifyQC checks that qc carries at least threshold valid signatures from
// distinct members of validators, grounded on qc.rs's verify_qc. Used by a
// follower validating an inbound commit message.
func VerifyQC(qc *types.QC, validators []crypto.PublicKey, threshold int) error {
	set := make(map[crypto.PublicKey]struct{}, len(validators))
	for _, v := range validators {
		set[v] = struct{}{}
	}

	seen := make(map[crypto.PublicKey]struct{}, len(qc.Signatures))
	for _, vs := range qc.Signatures {
		if _, ok := set[vs.ValidatorPubkey]; !ok {
			return seloriaerr.ErrValidatorUnknown
		}
		if _, dup := seen[vs.ValidatorPubkey]; dup {
			return seloriaerr.ErrDuplicateSig
		}
		seen[vs.ValidatorPubkey] = struct{}{}
		if !crypto.Verify(vs.ValidatorPubkey, qc.BlockHash[:], vs.Signature) {
			return seloriaerr.ErrBadSignature
		}
	}
	if len(seen) < threshold {
		return seloriaerr.ErrQuorumUnmet
	}
	return nil
}
