package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"

	"github.com/ava-labs/avalanchego/ids"
)

// PublicKey is a raw 32-byte Ed25519 public key. It shares ids.ID's
// comparability and byte-order so it can key every map in the state store
// and sort deterministically alongside block/tx/claim hashes.
type PublicKey = ids.ID

// Signature is a raw 64-byte Ed25519 signature.
type Signature [ed25519.SignatureSize]byte

// KeyPair holds an Ed25519 signing key and its derived public key.
type KeyPair struct {
	Public PublicKey
	secret ed25519.PrivateKey
}

// GenerateKeyPair creates a new random Ed25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	var pk PublicKey
	copy(pk[:], pub)
	return KeyPair{Public: pk, secret: priv}, nil
}

// KeyPairFromSeed derives a deterministic key pair from a 32-byte seed, the
// same seed format validator_key/issuer_key/faucet_secret carry in config.
func KeyPairFromSeed(seed [ed25519.SeedSize]byte) KeyPair {
	priv := ed25519.NewKeyFromSeed(seed[:])
	pub := priv.Public().(ed25519.PublicKey)
	var pk PublicKey
	copy(pk[:], pub)
	return KeyPair{Public: pk, secret: priv}
}

// Sign signs msg and returns the raw signature.
func (k KeyPair) Sign(msg []byte) Signature {
	var sig Signature
	copy(sig[:], ed25519.Sign(k.secret, msg))
	return sig
}

// Verify reports whether sig is a valid Ed25519 signature over msg by pub.
// It returns no error; callers turn a false result into
// seloriaerr.ErrBadSignature at the call site.
func Verify(pub PublicKey, msg []byte, sig Signature) bool {
	return ed25519.Verify(pub[:], msg, sig[:])
}

// SignatureFromBytes validates length and converts a byte slice to a
// Signature, returning an error for any other length (malformed wire data).
func SignatureFromBytes(b []byte) (Signature, error) {
	var sig Signature
	if len(b) != ed25519.SignatureSize {
		return sig, errors.New("signature: wrong length")
	}
	copy(sig[:], b)
	return sig, nil
}
