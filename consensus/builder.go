package consensus

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
	"github.com/seloria/seloria/vm"
)

// Config bounds block construction, grounded on block_builder.rs's
// BlockBuilderConfig.
type Config struct {
	ChainID     uint64
	MaxBlockTxs int
}

// BuildBlock drains mp, simulates each transaction against a throwaway
// scratchpad over cs in order, keeps the ones that apply cleanly (logging
// nothing for the ones that don't — they simply remain in the mempool for
// a later round), and assembles the resulting header, grounded on
// block_builder.rs's build_block.
func BuildBlock(cs *state.ChainState, mp *mempool.Mempool, cfg Config, proposer crypto.PublicKey, validators []crypto.PublicKey, timestamp uint64) (*types.Block, error) {
	height, prevHash, err := nextHeightAndPrevHash(cs)
	if err != nil {
		return nil, err
	}

	candidates, err := mp.Drain(cs, cfg.MaxBlockTxs)
	if err != nil {
		return nil, err
	}

	sim := cs.Begin()
	var included []*types.Transaction
	for _, tx := range candidates {
		if _, err := vm.ApplyTx(sim, tx, height, timestamp, validators); err != nil {
			continue
		}
		included = append(included, tx)
	}

	stateRoot, err := sim.StateRoot()
	if err != nil {
		return nil, err
	}
	sim.Abort()

	header := types.BlockHeader{
		ChainID:        cfg.ChainID,
		Height:         height,
		PrevHash:       prevHash,
		Timestamp:      timestamp,
		TxRoot:         types.ComputeTxRoot(included),
		StateRoot:      stateRoot,
		ProposerPubkey: proposer,
	}
	return &types.Block{Header: header, Txs: included}, nil
}

// ValidateHeader checks block's header fields against cs's current head,
// per spec.md §4.3 step 3 ("validate header fields (chain_id, prev_hash ==
// head.hash, height == head.height+1, timestamp not earlier than
// head.timestamp)"), grounded on block_builder.rs's validate_block.
func ValidateHeader(cs *state.ChainState, cfg Config, block *types.Block) error {
	height, prevHash, err := nextHeightAndPrevHash(cs)
	if err != nil {
		return err
	}
	headTimestamp, err := cs.LastAcceptedTimestamp()
	if err != nil {
		return err
	}
	if block.Header.ChainID != cfg.ChainID {
		return seloriaerr.ErrChainIDMismatch
	}
	if block.Header.Height != height {
		return seloriaerr.ErrHeightMismatch
	}
	if block.Header.PrevHash != prevHash {
		return seloriaerr.ErrPrevHashMismatch
	}
	if block.Header.Timestamp < headTimestamp {
		return seloriaerr.ErrInvalidProposal
	}
	if block.Header.TxRoot != types.ComputeTxRoot(block.Txs) {
		return seloriaerr.ErrInvalidTxRoot
	}
	return nil
}

// VerifyExecution re-executes block's transactions against a throwaway
// scratchpad over cs and requires the resulting state_root equal
// block.Header.StateRoot, grounded on block_builder.rs's verify_execution.
// Used by a follower deciding whether to sign a proposal.
func VerifyExecution(cs *state.ChainState, block *types.Block, validators []crypto.PublicKey) error {
	sim := cs.Begin()
	defer sim.Abort()

	for _, tx := range block.Txs {
		if _, err := vm.ApplyTx(sim, tx, block.Header.Height, block.Header.Timestamp, validators); err != nil {
			return err
		}
	}
	computed, err := sim.StateRoot()
	if err != nil {
		return err
	}
	if computed != block.Header.StateRoot {
		return seloriaerr.ErrInvalidStateRoot
	}
	return nil
}

// ApplyBlock verifies block's QC against validators, re-executes block's
// transactions against cs for real (not a throwaway scratchpad), verifies
// the resulting state_root still matches,
// folds the scratchpad into cs, advances last-accepted, and persists —
// grounded on block_builder.rs's apply_block. Returns the ordered events
// the block produced (BLOCK_COMMITTED first, per spec.md §4.5).
func ApplyBlock(cs *state.ChainState, block *types.Block, validators []crypto.PublicKey) ([]types.Event, error) {
	blockHash := block.Header.Hash()

	lastHeight, lastHash, err := cs.LastAccepted()
	if err != nil {
		return nil, err
	}
	if block.Header.Height <= lastHeight {
		if block.Header.Height == lastHeight && blockHash == lastHash {
			// Commit is idempotent keyed by block_hash: a retried commit for
			// the block already at the head is a no-op success, not a
			// re-execution (which would fail re-applying already-spent
			// nonces).
			return nil, nil
		}
		existing, ok, err := cs.GetBlockByHeight(block.Header.Height)
		if err != nil {
			return nil, err
		}
		if ok && existing.Header.Hash() == blockHash {
			return nil, nil
		}
		return nil, seloriaerr.ErrInvalidProposal
	}

	if block.QC == nil {
		return nil, seloriaerr.ErrQuorumUnmet
	}
	if block.QC.BlockHash != blockHash {
		return nil, seloriaerr.ErrInvalidProposal
	}
	if err := VerifyQC(block.QC, validators, Threshold(len(validators))); err != nil {
		return nil, err
	}

	events := []types.Event{{Kind: types.EventBlockCommitted, Height: block.Header.Height, BlockHash: blockHash}}

	sim := cs.Begin()
	for _, tx := range block.Txs {
		txEvents, err := vm.ApplyTx(sim, tx, block.Header.Height, block.Header.Timestamp, validators)
		if err != nil {
			sim.Abort()
			return nil, err
		}
		events = append(events, txEvents...)
	}

	computed, err := sim.StateRoot()
	if err != nil {
		sim.Abort()
		return nil, err
	}
	if computed != block.Header.StateRoot {
		sim.Abort()
		return nil, seloriaerr.ErrInvalidStateRoot
	}

	if err := sim.Commit(); err != nil {
		return nil, err
	}
	if err := cs.SetLastAccepted(block.Header.Height, blockHash, block.Header.Timestamp); err != nil {
		return nil, err
	}
	if err := cs.PutBlock(block); err != nil {
		return nil, err
	}
	if err := cs.Commit(); err != nil {
		return nil, err
	}

	return events, nil
}

func nextHeightAndPrevHash(cs *state.ChainState) (uint64, crypto.Hash, error) {
	height, hash, err := cs.LastAccepted()
	if err != nil {
		return 0, crypto.Hash{}, err
	}
	return height + 1, hash, nil
}
