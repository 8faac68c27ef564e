package types

import (
	"sort"

	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// Vote is an attestation's direction.
type Vote uint8

const (
	VoteYes Vote = iota
	VoteNo
)

// ClaimStatus tracks a claim's lifecycle; it transitions only
// Pending -> FinalizedYes | FinalizedNo (spec.md §3).
type ClaimStatus uint8

const (
	ClaimPending ClaimStatus = iota
	ClaimFinalizedYes
	ClaimFinalizedNo
)

// SlashBps is the basis-point share of a loser's stake forfeited on
// settlement: 20% per spec.md §4.4.
const SlashBps = 2000

// Attestation is a single stake-backed YES/NO vote on a claim.
type Attestation struct {
	Attester crypto.PublicKey
	Vote     Vote
	Stake    uint64
}

// Claim is a stake-backed assertion agents can attest to.
type Claim struct {
	ID            crypto.Hash
	ClaimType     string
	PayloadHash   crypto.Hash
	Creator       crypto.PublicKey
	CreatorStake  uint64
	YesStake      uint64
	NoStake       uint64
	Status        ClaimStatus
	CreatedAt     uint64
	Attestations  []Attestation
}

// HasAttested reports whether pubkey has already attested to this claim.
func (c *Claim) HasAttested(pubkey crypto.PublicKey) bool {
	for _, a := range c.Attestations {
		if a.Attester == pubkey {
			return true
		}
	}
	return false
}

// AddAttestation tallies attestation into the claim's running stake and
// appends it to the attestation log. It does not check finality.
func (c *Claim) AddAttestation(a Attestation) {
	switch a.Vote {
	case VoteYes:
		c.YesStake += a.Stake
	case VoteNo:
		c.NoStake += a.Stake
	}
	c.Attestations = append(c.Attestations, a)
}

// CheckFinality reports the status the claim should transition to, if any,
// given its current tallies: YES finalizes at yes_stake >= 2*creator_stake,
// NO finalizes at no_stake >= 2*creator_stake.
func (c *Claim) CheckFinality() (ClaimStatus, bool) {
	threshold := 2 * c.CreatorStake
	if c.YesStake >= threshold {
		return ClaimFinalizedYes, true
	}
	if c.NoStake >= threshold {
		return ClaimFinalizedNo, true
	}
	return ClaimPending, false
}

// TryFinalize finalizes the claim in place if its thresholds are met.
func (c *Claim) TryFinalize() bool {
	status, ok := c.CheckFinality()
	if ok {
		c.Status = status
	}
	return ok
}

// SettlementEntry is one participant's net balance adjustment from
// settling a finalized claim. Delta is signed: positive for a credit,
// negative for a debit.
type SettlementEntry struct {
	Pubkey crypto.PublicKey
	Delta  int64
}

// Settle computes per-participant balance deltas for a finalized claim,
// per spec.md §4.4: losers forfeit 20% of their locked stake (integer
// floor); the forfeited pool is distributed to winners pro-rata by stake,
// with any rounding remainder credited to the winner with the lowest
// pubkey in byte order, for determinism. The claim creator is treated as
// an implicit YES attester for settlement purposes.
func Settle(c *Claim) []SettlementEntry {
	if c.Status == ClaimPending {
		return nil
	}

	type side struct {
		pubkey crypto.PublicKey
		stake  uint64
	}
	var winners, losers []side
	winners = append(winners, side{c.Creator, c.CreatorStake})
	for _, a := range c.Attestations {
		s := side{a.Attester, a.Stake}
		if (c.Status == ClaimFinalizedYes) == (a.Vote == VoteYes) {
			winners = append(winners, s)
		} else {
			losers = append(losers, s)
		}
	}
	if c.Status == ClaimFinalizedNo {
		// Creator implicitly voted YES; if NO won, the creator is a loser
		// and is not also counted among winners above.
		winners = winners[1:]
		losers = append([]side{{c.Creator, c.CreatorStake}}, losers...)
	}

	// Every entry's Delta is relative to the participant's own original
	// stake (which the caller's account already carries as locked balance):
	// 0 for an untouched winner, -slashed for a loser, +share for a winner
	// receiving redistribution. The caller applies Delta directly to the
	// account's balance after releasing the lock.
	entries := make([]SettlementEntry, 0, len(winners)+len(losers))

	if len(losers) == 0 {
		for _, w := range winners {
			entries = append(entries, SettlementEntry{w.pubkey, 0})
		}
		return entries
	}

	var totalSlashed, totalWinningStake uint64
	for _, l := range losers {
		totalSlashed += l.stake * SlashBps / 10000
	}
	for _, w := range winners {
		totalWinningStake += w.stake
	}

	for _, l := range losers {
		slashed := l.stake * SlashBps / 10000
		entries = append(entries, SettlementEntry{l.pubkey, -int64(slashed)})
	}

	var distributed uint64
	shareOf := make(map[crypto.Hash]uint64, len(winners))
	for _, w := range winners {
		var share uint64
		if totalWinningStake > 0 {
			share = totalSlashed * w.stake / totalWinningStake
		}
		shareOf[w.pubkey] = share
		distributed += share
	}
	remainder := totalSlashed - distributed
	if remainder > 0 && len(winners) > 0 {
		lowest := winners[0].pubkey
		for _, w := range winners[1:] {
			if lessBytes(w.pubkey, lowest) {
				lowest = w.pubkey
			}
		}
		shareOf[lowest] += remainder
	}

	for _, w := range winners {
		entries = append(entries, SettlementEntry{w.pubkey, int64(shareOf[w.pubkey])})
	}
	return entries
}

func lessBytes(a, b crypto.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// ComputeClaimID computes id = Blake3("claim" || creator || nonce), per
// spec.md §3.
func ComputeClaimID(creator crypto.PublicKey, nonce uint64) crypto.Hash {
	w := codec.NewWriter()
	w.U64(nonce)
	return crypto.SumAll([]byte("claim"), creator[:], w.Bytes())
}

// AttestationLockID derives the lock identifier an ATTEST op uses to
// reserve its stake, scoped to (claim, attester) so repeated attestations
// from different agents never collide.
func AttestationLockID(claimID crypto.Hash, attester crypto.PublicKey) crypto.Hash {
	return crypto.SumAll(claimID[:], attester[:])
}

// Encode writes the canonical encoding of the claim, attestations sorted
// only by insertion order (already deterministic: the order ops were
// applied in).
func (c *Claim) Encode(w *codec.Writer) {
	w.Fixed32(c.ID)
	w.String(c.ClaimType)
	w.Fixed32(c.PayloadHash)
	w.Fixed32(c.Creator)
	w.U64(c.CreatorStake)
	w.U64(c.YesStake)
	w.U64(c.NoStake)
	w.U8(uint8(c.Status))
	w.U64(c.CreatedAt)
	w.U64(uint64(len(c.Attestations)))
	for _, a := range c.Attestations {
		w.Fixed32(a.Attester)
		w.U8(uint8(a.Vote))
		w.U64(a.Stake)
	}
}

// DecodeClaim reads a Claim from its canonical encoding.
func DecodeClaim(r *codec.Reader) (*Claim, error) {
	c := &Claim{}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	c.ID = fx
	if c.ClaimType, err = r.String(); err != nil {
		return nil, err
	}
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	c.PayloadHash = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	c.Creator = fx
	if c.CreatorStake, err = r.U64(); err != nil {
		return nil, err
	}
	if c.YesStake, err = r.U64(); err != nil {
		return nil, err
	}
	if c.NoStake, err = r.U64(); err != nil {
		return nil, err
	}
	status, err := r.U8()
	if err != nil {
		return nil, err
	}
	c.Status = ClaimStatus(status)
	if c.CreatedAt, err = r.U64(); err != nil {
		return nil, err
	}
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		attester, err := r.Fixed32()
		if err != nil {
			return nil, err
		}
		vote, err := r.U8()
		if err != nil {
			return nil, err
		}
		stake, err := r.U64()
		if err != nil {
			return nil, err
		}
		c.Attestations = append(c.Attestations, Attestation{
			Attester: attester,
			Vote:     Vote(vote),
			Stake:    stake,
		})
	}
	return c, nil
}

// SortClaimIDs returns claim IDs sorted for deterministic iteration.
func SortClaimIDs(ids []crypto.Hash) []crypto.Hash {
	out := append([]crypto.Hash{}, ids...)
	sort.Slice(out, func(i, j int) bool { return lessBytes(out[i], out[j]) })
	return out
}
