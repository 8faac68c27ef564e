package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// Capability is a named permission granted by an AgentCertificate.
type Capability string

const (
	CapTxSubmit Capability = "tx_submit"
	CapClaim    Capability = "claim"
	CapAttest   Capability = "attest"
	CapKvWrite  Capability = "kv_write"
)

// AgentCertificate grants a pubkey the right to act as a certified agent for
// a bounded time window, per spec.md §3.
type AgentCertificate struct {
	IssuerID     crypto.Hash
	AgentPubkey  crypto.PublicKey
	AgentID      crypto.Hash
	IssuedAt     uint64
	ExpiresAt    uint64
	Capabilities []Capability
	MetadataHash crypto.Hash
}

// SignedAgentCertificate pairs a certificate with the trusted issuer's
// signature over its canonical encoding.
type SignedAgentCertificate struct {
	Cert      AgentCertificate
	IssuerSig crypto.Signature
}

// ActiveAt reports whether the certificate covers time t:
// issued_at <= t < expires_at.
func (c AgentCertificate) ActiveAt(t uint64) bool {
	return c.IssuedAt <= t && t < c.ExpiresAt
}

// HasCapability reports whether the certificate grants cap.
func (c AgentCertificate) HasCapability(cap Capability) bool {
	for _, have := range c.Capabilities {
		if have == cap {
			return true
		}
	}
	return false
}

// Encode writes the canonical encoding of the certificate body (excluding
// the issuer's signature, which is what the signature itself covers).
func (c AgentCertificate) Encode(w *codec.Writer) {
	w.Fixed32(c.IssuerID)
	w.Fixed32(c.AgentPubkey)
	w.Fixed32(c.AgentID)
	w.U64(c.IssuedAt)
	w.U64(c.ExpiresAt)
	w.U64(uint64(len(c.Capabilities)))
	for _, cap := range c.Capabilities {
		w.String(string(cap))
	}
	w.Fixed32(c.MetadataHash)
}

// Bytes returns the canonical encoding of the certificate body.
func (c AgentCertificate) Bytes() []byte {
	w := codec.NewWriter()
	c.Encode(w)
	return w.Bytes()
}

// DecodeAgentCertificate reads a certificate body from its canonical
// encoding.
func DecodeAgentCertificate(r *codec.Reader) (AgentCertificate, error) {
	var c AgentCertificate
	var err error
	var fx [32]byte
	if fx, err = r.Fixed32(); err != nil {
		return c, err
	}
	c.IssuerID = fx
	if fx, err = r.Fixed32(); err != nil {
		return c, err
	}
	c.AgentPubkey = fx
	if fx, err = r.Fixed32(); err != nil {
		return c, err
	}
	c.AgentID = fx
	if c.IssuedAt, err = r.U64(); err != nil {
		return c, err
	}
	if c.ExpiresAt, err = r.U64(); err != nil {
		return c, err
	}
	n, err := r.U64()
	if err != nil {
		return c, err
	}
	for i := uint64(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			return c, err
		}
		c.Capabilities = append(c.Capabilities, Capability(s))
	}
	if fx, err = r.Fixed32(); err != nil {
		return c, err
	}
	c.MetadataHash = fx
	return c, nil
}
