package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execClaimCreate locks the creator's stake, records it as the claim's
// implicit YES vote, and stores the new claim, grounded on
// original_source's execute_claim_create (the yes_stake == stake at
// creation is confirmed by its test_claim_create unit test).
func execClaimCreate(sp *state.Scratchpad, sender crypto.PublicKey, nonce uint64, body *types.OpClaimCreateBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	account, err := state.GetAccount(sp, sender)
	if err != nil {
		return types.Event{}, err
	}
	claimID := types.ComputeClaimID(sender, nonce)
	if !account.Lock(claimID, body.Stake) {
		return types.Event{}, seloriaerr.ErrInsufficient
	}
	if err := state.PutAccount(sp, sender, account); err != nil {
		return types.Event{}, err
	}

	claim := &types.Claim{
		ID:           claimID,
		ClaimType:    body.ClaimType,
		PayloadHash:  body.PayloadHash,
		Creator:      sender,
		CreatorStake: body.Stake,
		YesStake:     body.Stake,
		Status:       types.ClaimPending,
		CreatedAt:    height,
	}
	if err := state.PutClaim(sp, claim); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventClaimCreated, Height: height, TxHash: txHash,
		Sender: sender, ClaimID: claimID, ClaimType: body.ClaimType, Stake: body.Stake,
	}, nil
}

// execAttest locks the attester's stake, tallies the vote, and settles the
// claim immediately if it finalizes, grounded on execute_attest/settle_claim.
func execAttest(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpAttestBody, txHash crypto.Hash, height uint64) ([]types.Event, error) {
	claim, ok, err := state.GetClaim(sp, body.ClaimID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, seloriaerr.ErrNoClaim
	}
	if claim.Status != types.ClaimPending {
		return nil, seloriaerr.ErrFinalized
	}
	// The creator's stake already stands as its YES vote on the claim.
	if claim.HasAttested(sender) || sender == claim.Creator {
		return nil, seloriaerr.ErrAlreadyAttested
	}

	account, err := state.GetAccount(sp, sender)
	if err != nil {
		return nil, err
	}
	lockID := types.AttestationLockID(body.ClaimID, sender)
	if !account.Lock(lockID, body.Stake) {
		return nil, seloriaerr.ErrInsufficient
	}
	if err := state.PutAccount(sp, sender, account); err != nil {
		return nil, err
	}

	claim.AddAttestation(types.Attestation{Attester: sender, Vote: body.Vote, Stake: body.Stake})

	events := []types.Event{{
		Kind: types.EventAttestationAdded, Height: height, TxHash: txHash,
		Sender: sender, ClaimID: body.ClaimID, Vote: body.Vote, Stake: body.Stake,
	}}

	if claim.TryFinalize() {
		settleEvents, err := settleClaim(sp, claim, txHash, height)
		if err != nil {
			return nil, err
		}
		events = append(events, types.Event{
			Kind: types.EventClaimFinalized, Height: height, TxHash: txHash,
			ClaimID: claim.ID, Status: claim.Status,
		})
		events = append(events, settleEvents...)
	}

	if err := state.PutClaim(sp, claim); err != nil {
		return nil, err
	}
	return events, nil
}

// settleClaim releases every participant's lock and applies the signed
// balance deltas types.Settle computes, grounded on execute_attest's
// inline settle_claim.
func settleClaim(sp *state.Scratchpad, claim *types.Claim, txHash crypto.Hash, height uint64) ([]types.Event, error) {
	entries := types.Settle(claim)
	var events []types.Event
	for _, e := range entries {
		account, err := state.GetAccount(sp, e.Pubkey)
		if err != nil {
			return nil, err
		}
		var lockID crypto.Hash
		if e.Pubkey == claim.Creator {
			lockID = claim.ID
		} else {
			lockID = types.AttestationLockID(claim.ID, e.Pubkey)
		}
		account.Unlock(lockID)
		if e.Delta >= 0 {
			account.Balance += uint64(e.Delta)
		} else {
			account.Balance -= uint64(-e.Delta)
		}
		if err := state.PutAccount(sp, e.Pubkey, account); err != nil {
			return nil, err
		}
		events = append(events, types.Event{
			Kind: types.EventTransfer, Height: height, TxHash: txHash,
			Sender: e.Pubkey, ClaimID: claim.ID, Amount: uint64(abs64(e.Delta)),
		})
	}
	return events, nil
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
