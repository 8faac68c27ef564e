package consensus

import (
	"context"
	"time"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/eventbus"
	"github.com/seloria/seloria/mempool"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// ValidatorEndpoint pairs a validator's identity with the network address
// its propose/commit RPCs are reached at, grounded on proposer.rs's
// ValidatorEndpoint.
type ValidatorEndpoint struct {
	Pubkey  crypto.PublicKey
	Address string
}

// Transport reaches other validators over the network. Implemented by the
// client package against the real HTTP propose/commit endpoints (spec.md
// §6); swappable in tests for a fake. Grounded on proposer.rs's
// collect_signatures/broadcast_commit, which does the equivalent over
// reqwest directly — here abstracted so the consensus package has no HTTP
// dependency of its own.
type Transport interface {
	// RequestSignature POSTs block to endpoint's propose RPC and returns the
	// responding validator's signature over the block hash.
	RequestSignature(ctx context.Context, endpoint ValidatorEndpoint, block *types.Block) (crypto.Signature, error)
	// SendCommit POSTs the finalized block (with its QC attached) to
	// endpoint's commit RPC. The caller discards the returned error,
	// per spec.md §5 ("failures reduce the count of collected
	// signatures but do not abort the round").
	SendCommit(ctx context.Context, endpoint ValidatorEndpoint, block *types.Block) error
}

// RoundState enumerates spec.md §4.3's per-node state machine.
type RoundState int

const (
	RoundIdle RoundState = iota
	RoundProposing
	RoundCollecting
	RoundVerifying
	RoundCommitting
)

type submitRequest struct {
	tx     *types.Transaction
	now    uint64
	result chan<- submitResult
}

type submitResult struct {
	hash crypto.Hash
	err  error
}

type queryRequest struct {
	fn   func(*state.ChainState)
	done chan<- struct{}
}

// proposeRequest carries an inbound proposal from the leader to a follower,
// asking the state-machine task to validate it and return a signature.
type proposeRequest struct {
	block  *types.Block
	result chan<- proposeResult
}

type proposeResult struct {
	sig crypto.Signature
	err error
}

// commitRequest carries an inbound finalized block (with its QC) from the
// leader to a follower, asking the state-machine task to apply it.
type commitRequest struct {
	block  *types.Block
	result chan<- error
}

// Node is the state-machine task of spec.md §5: it alone mutates cs, and
// every other goroutine reaches it only by sending on one of its four
// channels, the same message-passing shape as the teacher's
// `toEngine chan<- common.Message`, generalized from one notification type
// to four distinct request types.
type Node struct {
	cfg        Config
	self       crypto.KeyPair
	validators []crypto.PublicKey
	endpoints  []ValidatorEndpoint
	roundTime  time.Duration
	peerDeadline time.Duration

	cs        *state.ChainState
	mp        *mempool.Mempool
	bus       *eventbus.Bus
	transport Transport
	round     RoundState

	submitCh    chan submitRequest
	queryCh     chan queryRequest
	proposeInCh chan proposeRequest
	commitInCh  chan commitRequest
}

// NewNode constructs a state-machine task. roundTimeMs is spec.md §4.3's R;
// endpoints may be empty for a single-node deployment, in which case the
// node's own signature alone must reach quorum (threshold 1).
func NewNode(cfg Config, self crypto.KeyPair, validators []crypto.PublicKey, endpoints []ValidatorEndpoint, roundTimeMs uint64, cs *state.ChainState, mp *mempool.Mempool, bus *eventbus.Bus, transport Transport) *Node {
	return &Node{
		cfg:          cfg,
		self:         self,
		validators:   validators,
		endpoints:    endpoints,
		roundTime:    time.Duration(roundTimeMs) * time.Millisecond,
		peerDeadline: time.Duration(roundTimeMs) * time.Millisecond,
		cs:           cs,
		mp:           mp,
		bus:          bus,
		transport:    transport,
		round:        RoundIdle,
		submitCh:     make(chan submitRequest, 256),
		queryCh:      make(chan queryRequest, 256),
		proposeInCh:  make(chan proposeRequest, 16),
		commitInCh:   make(chan commitRequest, 16),
	}
}

// SubmitTx hands tx to the state-machine task for mempool admission and
// waits for the result. Safe to call from any goroutine.
func (n *Node) SubmitTx(ctx context.Context, tx *types.Transaction, now uint64) (crypto.Hash, error) {
	result := make(chan submitResult, 1)
	select {
	case n.submitCh <- submitRequest{tx: tx, now: now, result: result}:
	case <-ctx.Done():
		return crypto.Hash{}, ctx.Err()
	}
	select {
	case r := <-result:
		return r.hash, r.err
	case <-ctx.Done():
		return crypto.Hash{}, ctx.Err()
	}
}

// Query runs fn against the committed ChainState on the state-machine task,
// blocking the caller but not any other task, used by read-only RPC
// handlers that need a consistent view.
func (n *Node) Query(ctx context.Context, fn func(*state.ChainState)) error {
	done := make(chan struct{})
	select {
	case n.queryCh <- queryRequest{fn: fn, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandlePropose is called by the propose RPC handler when another
// validator is acting as leader; it asks the state-machine task to
// validate the proposal and, if valid, sign it.
func (n *Node) HandlePropose(ctx context.Context, block *types.Block) (crypto.Signature, error) {
	result := make(chan proposeResult, 1)
	select {
	case n.proposeInCh <- proposeRequest{block: block, result: result}:
	case <-ctx.Done():
		return crypto.Signature{}, ctx.Err()
	}
	select {
	case r := <-result:
		return r.sig, r.err
	case <-ctx.Done():
		return crypto.Signature{}, ctx.Err()
	}
}

// HandleCommit is called by the commit RPC handler when the leader
// broadcasts a finalized block; it asks the state-machine task to verify
// the QC and apply the block.
func (n *Node) HandleCommit(ctx context.Context, block *types.Block) error {
	result := make(chan error, 1)
	select {
	case n.commitInCh <- commitRequest{block: block, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the state-machine task's main loop: a round timer drives proposal
// attempts while submit/query/propose/commit requests are serviced as they
// arrive, all against the single ChainState this Node owns exclusively.
// Run blocks until ctx is canceled.
func (n *Node) Run(ctx context.Context) {
	ticker := time.NewTicker(n.roundTime)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			n.onRoundTick(ctx)

		case req := <-n.submitCh:
			hash, err := n.mp.Add(n.cs, req.tx, req.now)
			req.result <- submitResult{hash: hash, err: err}

		case req := <-n.queryCh:
			req.fn(n.cs)
			close(req.done)

		case req := <-n.proposeInCh:
			sig, err := n.onPropose(req.block)
			req.result <- proposeResult{sig: sig, err: err}

		case req := <-n.commitInCh:
			req.result <- n.onCommit(req.block)
		}
	}
}

// onRoundTick implements spec.md §4.3's round cycle for the leader: drain
// the mempool, build a block, collect quorum signatures (from self alone
// in single-node mode, or also from peers via n.transport), apply it
// locally, and broadcast the commit.
func (n *Node) onRoundTick(ctx context.Context) {
	height, _, err := n.cs.LastAccepted()
	if err != nil {
		return
	}
	// A node whose head is at height h follows V[h mod N] as the proposer
	// of block h+1.
	leader, ok := LeaderForHeight(n.validators, height)
	if !ok || leader != n.self.Public {
		return
	}

	n.round = RoundProposing
	timestamp := uint64(time.Now().Unix())
	block, err := BuildBlock(n.cs, n.mp, n.cfg, n.self.Public, n.validators, timestamp)
	if err != nil {
		n.round = RoundIdle
		return
	}

	n.round = RoundCollecting
	blockHash := block.Header.Hash()
	qcBuilder := NewQCBuilder(blockHash, n.validators, Threshold(len(n.validators)))
	ownSig := n.self.Sign(blockHash[:])
	if _, err := qcBuilder.AddSignature(n.self.Public, ownSig); err != nil {
		n.round = RoundIdle
		return
	}

	if len(n.endpoints) > 0 {
		n.collectSignatures(ctx, block, qcBuilder)
	}

	if !qcBuilder.HasQuorum() {
		n.round = RoundIdle
		return
	}
	qc, err := qcBuilder.Build()
	if err != nil {
		n.round = RoundIdle
		return
	}
	block.QC = qc

	n.round = RoundCommitting
	events, err := n.commitLocally(block)
	if err != nil {
		n.round = RoundIdle
		return
	}
	n.bus.PublishAll(events)

	for _, ep := range n.endpoints {
		if ep.Pubkey == n.self.Public {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, n.peerDeadline)
		_ = n.transport.SendCommit(cctx, ep, block)
		cancel()
	}

	n.round = RoundIdle
}

func (n *Node) collectSignatures(ctx context.Context, block *types.Block, qcBuilder *QCBuilder) {
	for _, ep := range n.endpoints {
		if ep.Pubkey == n.self.Public {
			continue
		}
		if qcBuilder.HasQuorum() {
			return
		}
		cctx, cancel := context.WithTimeout(ctx, n.peerDeadline)
		sig, err := n.transport.RequestSignature(cctx, ep, block)
		cancel()
		if err != nil {
			continue
		}
		if _, err := qcBuilder.AddSignature(ep.Pubkey, sig); err != nil {
			continue
		}
	}
}

// onPropose handles an inbound proposal as a follower: validate the
// header, re-execute, and sign if everything checks out, grounded on
// validator.rs's validate_and_sign.
func (n *Node) onPropose(block *types.Block) (crypto.Signature, error) {
	n.round = RoundVerifying
	defer func() { n.round = RoundIdle }()

	if err := ValidateHeader(n.cs, n.cfg, block); err != nil {
		return crypto.Signature{}, err
	}
	if err := VerifyExecution(n.cs, block, n.validators); err != nil {
		return crypto.Signature{}, err
	}
	blockHash := block.Header.Hash()
	return n.self.Sign(blockHash[:]), nil
}

// onCommit handles an inbound finalized block as a follower: verify its
// QC, then apply it for real.
func (n *Node) onCommit(block *types.Block) error {
	if block.QC == nil {
		return seloriaerr.ErrQuorumUnmet
	}
	if err := VerifyQC(block.QC, n.validators, Threshold(len(n.validators))); err != nil {
		return err
	}
	events, err := n.commitLocally(block)
	if err != nil {
		return err
	}
	n.bus.PublishAll(events)
	return nil
}

// commitLocally applies block to n.cs and drops its transactions from the
// mempool, used by both the leader (after collecting its own quorum) and a
// follower (after verifying an inbound commit).
func (n *Node) commitLocally(block *types.Block) ([]types.Event, error) {
	events, err := ApplyBlock(n.cs, block, n.validators)
	if err != nil {
		return nil, err
	}
	hashes := make([]crypto.Hash, len(block.Txs))
	for i, tx := range block.Txs {
		hashes[i] = tx.Hash()
	}
	n.mp.Remove(hashes)
	return events, nil
}
