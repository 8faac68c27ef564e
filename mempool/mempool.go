// Package mempool implements the bounded pending-transaction pool described
// in spec.md §4.2: per-sender nonce-ordered indexing, admission checks run
// against the committed chain state, and deterministic draining for block
// proposal. Structurally grounded on original_source's seloria-mempool
// crate (MempoolConfig, the by-sender index, and per-sender eviction);
// the non-blocking notification channel follows the teacher's
// examples/timestampchain/vm/mempool.go Add/Next idiom, generalized from a
// single unbounded channel to a size- and sender-capped indexed pool.
package mempool

import (
	"sort"
	"sync"

	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// Config bounds pool size, grounded on original_source's MempoolConfig.
type Config struct {
	MaxSize      int
	MaxPerSender int
}

// entry is one pending transaction plus its content hash, cached at insert
// time so draining and removal never re-hash.
type entry struct {
	tx   *types.Transaction
	hash crypto.Hash
}

// Mempool is a lock-guarded pending-transaction pool, per spec.md §5's
// "mempool is lock-guarded (one mutex)" shared-resource rule.
type Mempool struct {
	cfg Config

	mu     sync.Mutex
	byHash map[crypto.Hash]*entry
	bySend map[crypto.PublicKey]map[uint64]*entry // sender -> nonce -> entry
	notify chan struct{}
}

// New returns an empty pool bounded by cfg.
func New(cfg Config) *Mempool {
	return &Mempool{
		cfg:    cfg,
		byHash: make(map[crypto.Hash]*entry),
		bySend: make(map[crypto.PublicKey]map[uint64]*entry),
		notify: make(chan struct{}, 1),
	}
}

// Notify returns a channel that receives a value (non-blocking, best
// effort) whenever Add admits a transaction, mirroring the teacher's
// toEngine <- common.PendingTxs wakeup used to nudge the consensus engine
// without ever blocking the caller.
func (m *Mempool) Notify() <-chan struct{} {
	return m.notify
}

// Add runs spec.md §4.2's admission checks — signature, current
// certification, nonce strictly greater than the account's — against cs,
// evicts the sender's highest-nonce pending tx if the per-sender cap would
// be exceeded, and inserts tx. Returns the tx's content hash on success.
func (m *Mempool) Add(cs *state.ChainState, tx *types.Transaction, now uint64) (crypto.Hash, error) {
	if !tx.VerifySignature() {
		return crypto.Hash{}, seloriaerr.ErrBadSignature
	}

	isCertRegistration := false
	for _, op := range tx.Ops {
		if op.Kind == types.OpAgentCertRegister {
			isCertRegistration = true
			break
		}
	}
	if !isCertRegistration {
		cert, ok, err := state.GetAgentCert(cs, tx.SenderPubkey)
		if err != nil {
			return crypto.Hash{}, err
		}
		if !ok || !cert.ActiveAt(now) {
			return crypto.Hash{}, seloriaerr.ErrNotCertified
		}
	}

	account, err := state.GetAccount(cs, tx.SenderPubkey)
	if err != nil {
		return crypto.Hash{}, err
	}
	if tx.Nonce <= account.Nonce {
		return crypto.Hash{}, seloriaerr.ErrBadNonce
	}

	hash := tx.Hash()

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.byHash[hash]; dup {
		return crypto.Hash{}, seloriaerr.ErrDuplicate
	}
	if len(m.byHash) >= m.cfg.MaxSize {
		return crypto.Hash{}, seloriaerr.ErrMempoolFull
	}

	senderTxs := m.bySend[tx.SenderPubkey]
	if senderTxs == nil {
		senderTxs = make(map[uint64]*entry)
		m.bySend[tx.SenderPubkey] = senderTxs
	}
	if len(senderTxs) >= m.cfg.MaxPerSender {
		m.evictHighestNonce(senderTxs)
	}

	e := &entry{tx: tx, hash: hash}
	senderTxs[tx.Nonce] = e
	m.byHash[hash] = e

	select {
	case m.notify <- struct{}{}:
	default:
	}

	return hash, nil
}

// evictHighestNonce drops the sender's highest-nonce pending tx, per
// spec.md §4.2's "evict highest nonce on overflow from same sender".
func (m *Mempool) evictHighestNonce(senderTxs map[uint64]*entry) {
	var highest uint64
	first := true
	for nonce := range senderTxs {
		if first || nonce > highest {
			highest = nonce
			first = false
		}
	}
	if victim, ok := senderTxs[highest]; ok {
		delete(m.byHash, victim.hash)
		delete(senderTxs, highest)
	}
}

// Remove discards the transactions identified by hashes, called after a
// block committing them finalizes.
func (m *Mempool) Remove(hashes []crypto.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range hashes {
		e, ok := m.byHash[h]
		if !ok {
			continue
		}
		delete(m.byHash, h)
		if senderTxs := m.bySend[e.tx.SenderPubkey]; senderTxs != nil {
			delete(senderTxs, e.tx.Nonce)
			if len(senderTxs) == 0 {
				delete(m.bySend, e.tx.SenderPubkey)
			}
		}
	}
}

// Len reports the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byHash)
}

// Drain produces spec.md §4.2's deterministic proposal ordering: every
// pending transaction sorted by (sender_pubkey, nonce) ascending, truncated
// to maxBlockTxs while skipping any sender's tx once a gap breaks its
// nonce contiguity from account.Nonce, so a later, higher-nonce tx from a
// sender is never included without every intermediate nonce.
func (m *Mempool) Drain(cs *state.ChainState, maxBlockTxs int) ([]*types.Transaction, error) {
	m.mu.Lock()
	senders := make([]crypto.PublicKey, 0, len(m.bySend))
	for sender := range m.bySend {
		senders = append(senders, sender)
	}
	sort.Slice(senders, func(i, j int) bool { return lessPubkey(senders[i], senders[j]) })

	type pending struct {
		sender crypto.PublicKey
		nonces []uint64
	}
	plan := make([]pending, 0, len(senders))
	for _, sender := range senders {
		senderTxs := m.bySend[sender]
		nonces := make([]uint64, 0, len(senderTxs))
		for nonce := range senderTxs {
			nonces = append(nonces, nonce)
		}
		sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
		plan = append(plan, pending{sender, nonces})
	}
	m.mu.Unlock()

	out := make([]*types.Transaction, 0, maxBlockTxs)
	for _, p := range plan {
		if len(out) >= maxBlockTxs {
			break
		}
		account, err := state.GetAccount(cs, p.sender)
		if err != nil {
			return nil, err
		}
		want := account.Nonce + 1
		for _, nonce := range p.nonces {
			if len(out) >= maxBlockTxs {
				break
			}
			if nonce != want {
				break
			}
			m.mu.Lock()
			e := m.bySend[p.sender][nonce]
			m.mu.Unlock()
			if e == nil {
				break
			}
			out = append(out, e.tx)
			want++
		}
	}
	return out, nil
}

// lessPubkey orders pubkeys by byte value, the same tie-break rule
// core/types.Claim uses for its settlement remainder.
func lessPubkey(a, b crypto.PublicKey) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
