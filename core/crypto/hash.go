// Package crypto wraps Ed25519 signing and Blake3 content hashing behind the
// fixed-size identifier types used across the state store and VM.
package crypto

import (
	"encoding/hex"

	"github.com/ava-labs/avalanchego/ids"
	"lukechampine.com/blake3"
)

// Hash is a 32-byte Blake3 digest, reused as a content identifier for
// blocks, transactions, claims, namespaces, tokens and pools. It is backed
// by avalanchego's ids.ID so it sorts, maps and strings the same way the
// teacher's block/account identifiers do.
type Hash = ids.ID

// ZeroHash is the all-zero identifier used for "no parent" / "no value".
var ZeroHash = ids.Empty

// Sum computes the Blake3 hash of data.
func Sum(data []byte) Hash {
	digest := blake3.Sum256(data)
	return Hash(digest)
}

// SumAll hashes the concatenation of each chunk, in order, as a single
// message (used for e.g. claim IDs and pool IDs built from several fields).
func SumAll(chunks ...[]byte) Hash {
	h := blake3.New(32, nil)
	for _, c := range chunks {
		h.Write(c) //nolint:errcheck // hash.Hash.Write never errors
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// MerkleRoot computes a binary Blake3 merkle root over leaves, duplicating
// the final node at each level when the level has odd length. An empty
// input returns the zero hash, and a single leaf returns itself.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			left := level[i]
			right := level[i]
			if i+1 < len(level) {
				right = level[i+1]
			}
			next = append(next, SumAll(left[:], right[:]))
		}
		level = next
	}
	return level[0]
}

// HashHex renders a Hash as lowercase hex, for JSON/RPC surfaces.
func HashHex(h Hash) string { return hex.EncodeToString(h[:]) }

// HashFromHex parses a lowercase hex string back into a Hash.
func HashFromHex(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ZeroHash, err
	}
	return ids.ToID(b)
}
