package vm

import (
	"strings"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execTokenCreate registers a new fungible token and credits its full
// supply to sender, grounded on original_source's execute_token_create.
func execTokenCreate(sp *state.Scratchpad, sender crypto.PublicKey, tx *types.Transaction, body *types.OpTokenCreateBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if strings.TrimSpace(body.Name) == "" || strings.TrimSpace(body.Symbol) == "" {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	if body.TotalSupply == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}

	tokenID := types.ComputeTokenID(sender, tx.Nonce)
	if tokenID == types.NativeTokenID {
		return types.Event{}, seloriaerr.ErrDuplicate
	}
	if _, ok, err := state.GetToken(sp, tokenID); err != nil {
		return types.Event{}, err
	} else if ok {
		return types.Event{}, seloriaerr.ErrDuplicate
	}

	token := &types.Token{
		TokenID: tokenID, Name: body.Name, Symbol: body.Symbol,
		Decimals: body.Decimals, TotalSupply: body.TotalSupply,
	}
	if err := state.PutToken(sp, token); err != nil {
		return types.Event{}, err
	}
	if err := creditToken(sp, tokenID, sender, body.TotalSupply); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventTokenCreated, Height: height, TxHash: txHash,
		Sender: sender, TokenID: tokenID, Amount: body.TotalSupply,
	}, nil
}

// execTokenTransfer moves a non-native token balance from sender to
// body.To, grounded on execute_token_transfer.
func execTokenTransfer(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpTokenTransferBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if body.Amount == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	if exists, err := tokenExists(sp, body.TokenID); err != nil {
		return types.Event{}, err
	} else if !exists {
		return types.Event{}, seloriaerr.ErrNoToken
	}
	if err := debitToken(sp, body.TokenID, sender, body.Amount); err != nil {
		return types.Event{}, err
	}
	if err := creditToken(sp, body.TokenID, body.To, body.Amount); err != nil {
		return types.Event{}, err
	}
	return types.Event{
		Kind: types.EventTokenTransfer, Height: height, TxHash: txHash,
		Sender: sender, To: body.To, TokenID: body.TokenID, Amount: body.Amount,
	}, nil
}
