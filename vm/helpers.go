package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// tokenBalance returns holder's balance of tokenID, reading from the
// account's native balance when tokenID is the native token and from the
// token-balance table otherwise, per spec.md §3 ("native token ... uses
// account.balance") and original_source's get_token_balance, which treats
// the native token as just another entry of the same balance table.
func tokenBalance(sp *state.Scratchpad, tokenID crypto.Hash, holder crypto.PublicKey) (uint64, error) {
	if tokenID == types.NativeTokenID {
		a, err := state.GetAccount(sp, holder)
		if err != nil {
			return 0, err
		}
		return a.Available(), nil
	}
	return state.GetTokenBalance(sp, tokenID, holder)
}

// debitToken removes amount of tokenID from holder, failing with
// Insufficient if unavailable.
func debitToken(sp *state.Scratchpad, tokenID crypto.Hash, holder crypto.PublicKey, amount uint64) error {
	if tokenID == types.NativeTokenID {
		return debitNative(sp, holder, amount)
	}
	bal, err := state.GetTokenBalance(sp, tokenID, holder)
	if err != nil {
		return err
	}
	if bal < amount {
		return seloriaerr.ErrInsufficient
	}
	return state.PutTokenBalance(sp, tokenID, holder, bal-amount)
}

// creditToken adds amount of tokenID to holder.
func creditToken(sp *state.Scratchpad, tokenID crypto.Hash, holder crypto.PublicKey, amount uint64) error {
	if tokenID == types.NativeTokenID {
		return creditNative(sp, holder, amount)
	}
	bal, err := state.GetTokenBalance(sp, tokenID, holder)
	if err != nil {
		return err
	}
	return state.PutTokenBalance(sp, tokenID, holder, bal+amount)
}

// tokenExists reports whether tokenID is a registered token or the native
// token, which always exists implicitly.
func tokenExists(sp *state.Scratchpad, tokenID crypto.Hash) (bool, error) {
	if tokenID == types.NativeTokenID {
		return true, nil
	}
	_, ok, err := state.GetToken(sp, tokenID)
	return ok, err
}
