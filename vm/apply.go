package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// ApplyTx runs spec.md §4.4's apply_tx against block, the in-progress
// block-level scratchpad: it validates tx against block (so later txs
// from the same sender in the same block see earlier ones' nonce/balance
// effects), simulates every op on a nested scratchpad so a mid-tx failure
// leaves block untouched, and on success deducts the fee, advances the
// nonce, splits the fee across validators, and folds the nested
// scratchpad back into block. Returns the ordered events the tx produced,
// or the first error encountered.
func ApplyTx(block *state.Scratchpad, tx *types.Transaction, height uint64, now uint64, validators []crypto.PublicKey) ([]types.Event, error) {
	if err := validateTransaction(block, tx, now); err != nil {
		return nil, err
	}

	sim := block.Begin()
	txHash := tx.Hash()
	events := []types.Event{{
		Kind: types.EventTxApplied, Height: height, TxHash: txHash, Sender: tx.SenderPubkey,
	}}

	for _, op := range tx.Ops {
		opEvents, err := applyOp(sim, tx, op, txHash, height, now)
		if err != nil {
			sim.Abort()
			return nil, err
		}
		events = append(events, opEvents...)
	}

	if err := debitNative(sim, tx.SenderPubkey, tx.Fee); err != nil {
		sim.Abort()
		return nil, err
	}
	account, err := state.GetAccount(sim, tx.SenderPubkey)
	if err != nil {
		sim.Abort()
		return nil, err
	}
	account.Nonce = tx.Nonce
	if err := state.PutAccount(sim, tx.SenderPubkey, account); err != nil {
		sim.Abort()
		return nil, err
	}

	if err := distributeFee(sim, tx.Fee, validators); err != nil {
		sim.Abort()
		return nil, err
	}

	if err := sim.Commit(); err != nil {
		return nil, err
	}

	return events, nil
}

// distributeFee splits fee equally across validators, crediting the
// remainder to validator 0, per spec.md §4.4 step 6.
func distributeFee(sp *state.Scratchpad, fee uint64, validators []crypto.PublicKey) error {
	if fee == 0 || len(validators) == 0 {
		return nil
	}
	n := uint64(len(validators))
	share := fee / n
	remainder := fee % n
	for i, v := range validators {
		credit := share
		if i == 0 {
			credit += remainder
		}
		if credit == 0 {
			continue
		}
		if err := creditNative(sp, v, credit); err != nil {
			return err
		}
	}
	return nil
}

// applyOp dispatches op to its opcode handler.
func applyOp(sp *state.Scratchpad, tx *types.Transaction, op types.Op, txHash crypto.Hash, height, now uint64) ([]types.Event, error) {
	sender := tx.SenderPubkey
	switch op.Kind {
	case types.OpAgentCertRegister:
		e, err := execAgentCertRegister(sp, sender, op.AgentCertRegister, txHash, height, now)
		return []types.Event{e}, err
	case types.OpTransfer:
		e, err := execTransfer(sp, sender, op.Transfer, txHash, height)
		return []types.Event{e}, err
	case types.OpClaimCreate:
		e, err := execClaimCreate(sp, sender, tx.Nonce, op.ClaimCreate, txHash, height)
		return []types.Event{e}, err
	case types.OpAttest:
		return execAttest(sp, sender, op.Attest, txHash, height)
	case types.OpAppRegister:
		e, err := execAppRegister(sp, sender, op.AppRegister, txHash, height)
		return []types.Event{e}, err
	case types.OpNamespaceCreate:
		e, err := execNamespaceCreate(sp, sender, op.NamespaceCreate, txHash, height)
		return []types.Event{e}, err
	case types.OpKVPut:
		e, err := execKVPut(sp, sender, op.KVPut, txHash, height)
		return []types.Event{e}, err
	case types.OpKVDel:
		e, err := execKVDel(sp, sender, op.KVDel, txHash, height)
		return []types.Event{e}, err
	case types.OpKVAppend:
		e, err := execKVAppend(sp, sender, op.KVAppend, txHash, height)
		return []types.Event{e}, err
	case types.OpTokenCreate:
		e, err := execTokenCreate(sp, sender, tx, op.TokenCreate, txHash, height)
		return []types.Event{e}, err
	case types.OpTokenTransfer:
		e, err := execTokenTransfer(sp, sender, op.TokenTransfer, txHash, height)
		return []types.Event{e}, err
	case types.OpPoolCreate:
		e, err := execPoolCreate(sp, sender, op.PoolCreate, txHash, height)
		return []types.Event{e}, err
	case types.OpPoolAdd:
		e, err := execPoolAdd(sp, sender, op.PoolAdd, txHash, height)
		return []types.Event{e}, err
	case types.OpSwap:
		e, err := execSwap(sp, sender, op.Swap, txHash, height)
		return []types.Event{e}, err
	case types.OpPoolRemove:
		e, err := execPoolRemove(sp, sender, op.PoolRemove, txHash, height)
		return []types.Event{e}, err
	default:
		return nil, seloriaerr.ErrBadEncoding
	}
}
