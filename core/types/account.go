package types

import (
	"sort"

	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// LockID identifies one reserved portion of an account's balance, keyed by
// whatever created it (a claim ID, an attestation lock ID, ...).
type LockID = crypto.Hash

// Account is a native-token balance with a nonce and a set of locks backing
// outstanding stakes. Accounts are created implicitly on first credit and
// are never destroyed, per spec.md §3.
type Account struct {
	Balance uint64
	Nonce   uint64
	Locked  map[LockID]uint64
}

// NewAccount returns a zeroed account with an initialized lock map.
func NewAccount() *Account {
	return &Account{Locked: make(map[LockID]uint64)}
}

// LockedTotal sums every outstanding lock.
func (a *Account) LockedTotal() uint64 {
	var total uint64
	for _, v := range a.Locked {
		total += v
	}
	return total
}

// Available returns Balance minus the sum of all locks; debits must never
// reduce this below zero.
func (a *Account) Available() uint64 {
	locked := a.LockedTotal()
	if locked > a.Balance {
		return 0
	}
	return a.Balance - locked
}

// Lock reserves amount under id, failing if the account lacks sufficient
// available balance. Re-locking under an existing id replaces its amount.
func (a *Account) Lock(id LockID, amount uint64) bool {
	if a.Available() < amount {
		return false
	}
	a.Locked[id] = amount
	return true
}

// Unlock releases the lock under id, returning the amount that was locked.
func (a *Account) Unlock(id LockID) uint64 {
	amt := a.Locked[id]
	delete(a.Locked, id)
	return amt
}

// Encode writes the canonical encoding of the account.
func (a *Account) Encode(w *codec.Writer) {
	w.U64(a.Balance)
	w.U64(a.Nonce)
	ids := make([]LockID, 0, len(a.Locked))
	for id := range a.Locked {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return lessID(ids[i], ids[j]) })
	w.U64(uint64(len(ids)))
	for _, id := range ids {
		w.Fixed32(id)
		w.U64(a.Locked[id])
	}
}

// DecodeAccount reads an Account from its canonical encoding.
func DecodeAccount(r *codec.Reader) (*Account, error) {
	a := NewAccount()
	var err error
	if a.Balance, err = r.U64(); err != nil {
		return nil, err
	}
	if a.Nonce, err = r.U64(); err != nil {
		return nil, err
	}
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		idb, err := r.Fixed32()
		if err != nil {
			return nil, err
		}
		amt, err := r.U64()
		if err != nil {
			return nil, err
		}
		a.Locked[LockID(idb)] = amt
	}
	return a, nil
}

func lessID(a, b LockID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}
