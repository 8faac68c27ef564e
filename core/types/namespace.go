package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// NamespacePolicy controls who may write into a namespace's KV space.
type NamespacePolicy uint8

const (
	PolicyOwnerOnly NamespacePolicy = iota
	PolicyAllowlist
	PolicyStakeGated
)

// Namespace is a policy-gated key space for application data.
type Namespace struct {
	NsID          crypto.Hash
	Owner         crypto.PublicKey
	Policy        NamespacePolicy
	Allowlist     map[crypto.PublicKey]struct{}
	MinWriteStake uint64
}

// CanWrite reports whether writer may write under this namespace's policy.
// writerStake is the writer's available native balance, consulted only
// for PolicyStakeGated.
func (ns *Namespace) CanWrite(writer crypto.PublicKey, writerStake uint64) bool {
	switch ns.Policy {
	case PolicyOwnerOnly:
		return writer == ns.Owner
	case PolicyAllowlist:
		if writer == ns.Owner {
			return true
		}
		_, ok := ns.Allowlist[writer]
		return ok
	case PolicyStakeGated:
		return writerStake >= ns.MinWriteStake
	default:
		return false
	}
}

// ComputeNamespaceID computes ns_id = Blake3("ns" || app_id || publisher ||
// name), per spec.md §3.
func ComputeNamespaceID(appID crypto.Hash, publisher crypto.PublicKey, name string) crypto.Hash {
	return crypto.SumAll([]byte("ns"), appID[:], publisher[:], []byte(name))
}

// Encode writes the canonical encoding of the namespace.
func (ns *Namespace) Encode(w *codec.Writer) {
	w.Fixed32(ns.NsID)
	w.Fixed32(ns.Owner)
	w.U8(uint8(ns.Policy))
	keys := codec.SortedIDKeys(ns.Allowlist)
	w.U64(uint64(len(keys)))
	for _, k := range keys {
		w.Fixed32(k)
	}
	w.U64(ns.MinWriteStake)
}

// DecodeNamespace reads a Namespace from its canonical encoding.
func DecodeNamespace(r *codec.Reader) (*Namespace, error) {
	ns := &Namespace{Allowlist: make(map[crypto.PublicKey]struct{})}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	ns.NsID = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	ns.Owner = fx
	policy, err := r.U8()
	if err != nil {
		return nil, err
	}
	ns.Policy = NamespacePolicy(policy)
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		k, err := r.Fixed32()
		if err != nil {
			return nil, err
		}
		ns.Allowlist[k] = struct{}{}
	}
	if ns.MinWriteStake, err = r.U64(); err != nil {
		return nil, err
	}
	return ns, nil
}

// KVEntry is one value stored under (ns_id, key).
type KVEntry struct {
	NsID      crypto.Hash
	Key       string
	Codec     string
	Hash      crypto.Hash
	Inline    []byte
	UpdatedAt uint64
	Updater   crypto.PublicKey
}

// Encode writes the canonical encoding of the KV entry.
func (e *KVEntry) Encode(w *codec.Writer) {
	w.Fixed32(e.NsID)
	w.String(e.Key)
	w.String(e.Codec)
	w.Fixed32(e.Hash)
	w.VarBytes(e.Inline)
	w.U64(e.UpdatedAt)
	w.Fixed32(e.Updater)
}

// DecodeKVEntry reads a KVEntry from its canonical encoding.
func DecodeKVEntry(r *codec.Reader) (*KVEntry, error) {
	e := &KVEntry{}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	e.NsID = fx
	if e.Key, err = r.String(); err != nil {
		return nil, err
	}
	if e.Codec, err = r.String(); err != nil {
		return nil, err
	}
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	e.Hash = fx
	if e.Inline, err = r.VarBytes(); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = r.U64(); err != nil {
		return nil, err
	}
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	e.Updater = fx
	return e, nil
}
