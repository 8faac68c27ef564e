package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// Transaction is a signed, ordered list of kernel opcodes submitted by a
// single certified agent, per spec.md §3.
type Transaction struct {
	SenderPubkey crypto.PublicKey
	Nonce        uint64
	Fee          uint64
	Ops          []Op
	Signature    crypto.Signature
}

// encodeBody writes every field except the signature: this is what gets
// hashed and what gets signed.
func (tx *Transaction) encodeBody(w *codec.Writer) {
	w.Fixed32(tx.SenderPubkey)
	w.U64(tx.Nonce)
	w.U64(tx.Fee)
	w.U64(uint64(len(tx.Ops)))
	for _, op := range tx.Ops {
		op.Encode(w)
	}
}

// SigningBytes returns the canonical encoding of the transaction body,
// excluding the signature field — what gets signed and verified.
func (tx *Transaction) SigningBytes() []byte {
	w := codec.NewWriter()
	tx.encodeBody(w)
	return w.Bytes()
}

// Hash returns the transaction's content hash: Blake3 of the canonical
// encoding excluding the signature, per spec.md §3.
func (tx *Transaction) Hash() crypto.Hash {
	return crypto.Sum(tx.SigningBytes())
}

// Sign signs the transaction body with key and stores the signature.
func (tx *Transaction) Sign(key crypto.KeyPair) {
	tx.SenderPubkey = key.Public
	tx.Signature = key.Sign(tx.SigningBytes())
}

// VerifySignature reports whether tx.Signature is a valid signature by
// tx.SenderPubkey over the transaction body.
func (tx *Transaction) VerifySignature() bool {
	return crypto.Verify(tx.SenderPubkey, tx.SigningBytes(), tx.Signature)
}

// Encode writes the full canonical encoding of the transaction, including
// its signature — the wire/persistence format.
func (tx *Transaction) Encode(w *codec.Writer) {
	tx.encodeBody(w)
	w.VarBytes(tx.Signature[:])
}

// Bytes returns the full canonical encoding, including the signature.
func (tx *Transaction) Bytes() []byte {
	w := codec.NewWriter()
	tx.Encode(w)
	return w.Bytes()
}

// DecodeTransaction reads a full transaction (body + signature) from its
// canonical encoding.
func DecodeTransaction(r *codec.Reader) (*Transaction, error) {
	tx := &Transaction{}
	var err error
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	tx.SenderPubkey = fx
	if tx.Nonce, err = r.U64(); err != nil {
		return nil, err
	}
	if tx.Fee, err = r.U64(); err != nil {
		return nil, err
	}
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		op, err := DecodeOp(r)
		if err != nil {
			return nil, err
		}
		tx.Ops = append(tx.Ops, op)
	}
	sigb, err := r.VarBytes()
	if err != nil {
		return nil, err
	}
	sig, err := crypto.SignatureFromBytes(sigb)
	if err != nil {
		return nil, codec.ErrBadEncoding
	}
	tx.Signature = sig
	return tx, nil
}
