package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/state"
)

// execTransfer moves native balance from sender to body.To, grounded on
// original_source's execute_transfer.
func execTransfer(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpTransferBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if err := debitNative(sp, sender, body.Amount); err != nil {
		return types.Event{}, err
	}
	if err := creditNative(sp, body.To, body.Amount); err != nil {
		return types.Event{}, err
	}
	return types.Event{
		Kind: types.EventTransfer, Height: height, TxHash: txHash,
		Sender: sender, To: body.To, Amount: body.Amount,
	}, nil
}
