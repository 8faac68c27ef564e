// Package vm implements apply_tx, the deterministic pure function that
// simulates one transaction's opcodes against a state scratchpad and
// either commits the effect or rejects it, grounded on
// original_source's seloria-vm crate (executor.rs/validation.rs) and
// reimplemented in Go against the state package's Scratchpad overlay.
package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// requiredCapability returns the capability an op needs the sender's
// agent certificate to carry, or "" if none is required (certificate
// registration needs no prior capability).
func requiredCapability(op types.Op) types.Capability {
	switch op.Kind {
	case types.OpAgentCertRegister:
		return ""
	case types.OpClaimCreate:
		return types.CapClaim
	case types.OpAttest:
		return types.CapAttest
	case types.OpKVPut, types.OpKVDel, types.OpKVAppend:
		return types.CapKvWrite
	default:
		return types.CapTxSubmit
	}
}

// estimatedCost sums the native-token amounts a transaction's ops need up
// front: the fee, transfer amounts, claim and attestation stakes, and
// native-token pool-creation deposits, per spec.md §4.4 step 4. Native
// debits of other ops (pool adds, swaps, native token transfers) are not
// counted here; each is checked when its op runs.
func estimatedCost(tx *types.Transaction) uint64 {
	cost := tx.Fee
	for _, op := range tx.Ops {
		switch op.Kind {
		case types.OpTransfer:
			cost += op.Transfer.Amount
		case types.OpClaimCreate:
			cost += op.ClaimCreate.Stake
		case types.OpAttest:
			cost += op.Attest.Stake
		case types.OpPoolCreate:
			if op.PoolCreate.TokenA == types.NativeTokenID {
				cost += op.PoolCreate.AmountA
			}
			if op.PoolCreate.TokenB == types.NativeTokenID {
				cost += op.PoolCreate.AmountB
			}
		}
	}
	return cost
}

// validateTransaction performs spec.md §4.4 steps 1-4 against v, the
// per-block scratchpad during block application (so a later tx from the
// same sender in the same block sees the nonce/balance effects of earlier
// ones). Mempool admission does not call it; mempool.Add runs its own
// checks.
func validateTransaction(v state.View, tx *types.Transaction, now uint64) error {
	if !tx.VerifySignature() {
		return seloriaerr.ErrBadSignature
	}

	isCertRegistration := false
	for _, op := range tx.Ops {
		if op.Kind == types.OpAgentCertRegister {
			isCertRegistration = true
			break
		}
	}

	if !isCertRegistration {
		cert, ok, err := state.GetAgentCert(v, tx.SenderPubkey)
		if err != nil {
			return err
		}
		if !ok || !cert.ActiveAt(now) {
			return seloriaerr.ErrNotCertified
		}
		for _, op := range tx.Ops {
			if reqCap := requiredCapability(op); reqCap != "" && !cert.HasCapability(reqCap) {
				return seloriaerr.ErrNotCertified
			}
		}
	}

	account, err := state.GetAccount(v, tx.SenderPubkey)
	if err != nil {
		return err
	}
	if tx.Nonce != account.Nonce+1 {
		return seloriaerr.ErrBadNonce
	}

	if account.Available() < estimatedCost(tx) {
		return seloriaerr.ErrInsufficient
	}

	return nil
}

// debitNative removes amount from pubkey's available native balance,
// failing with Insufficient if unavailable.
func debitNative(sp *state.Scratchpad, pubkey crypto.PublicKey, amount uint64) error {
	a, err := state.GetAccount(sp, pubkey)
	if err != nil {
		return err
	}
	if a.Available() < amount {
		return seloriaerr.ErrInsufficient
	}
	a.Balance -= amount
	return state.PutAccount(sp, pubkey, a)
}

// creditNative adds amount to pubkey's native balance, creating the
// account implicitly if absent.
func creditNative(sp *state.Scratchpad, pubkey crypto.PublicKey, amount uint64) error {
	a, err := state.GetAccount(sp, pubkey)
	if err != nil {
		return err
	}
	a.Balance += amount
	return state.PutAccount(sp, pubkey, a)
}
