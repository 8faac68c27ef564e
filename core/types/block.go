package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// BlockHeader carries everything about a block except its transaction
// bodies and quorum certificate, per spec.md §3.
type BlockHeader struct {
	ChainID        uint64
	Height         uint64
	PrevHash       crypto.Hash
	Timestamp      uint64
	TxRoot         crypto.Hash
	StateRoot      crypto.Hash
	ProposerPubkey crypto.PublicKey
}

// Encode writes the canonical encoding of the header.
func (h *BlockHeader) Encode(w *codec.Writer) {
	w.U64(h.ChainID)
	w.U64(h.Height)
	w.Fixed32(h.PrevHash)
	w.U64(h.Timestamp)
	w.Fixed32(h.TxRoot)
	w.Fixed32(h.StateRoot)
	w.Fixed32(h.ProposerPubkey)
}

// Bytes returns the canonical encoding of the header.
func (h *BlockHeader) Bytes() []byte {
	w := codec.NewWriter()
	h.Encode(w)
	return w.Bytes()
}

// Hash returns H(header) = Blake3 of the header's canonical encoding, the
// value validators sign to form a quorum certificate.
func (h *BlockHeader) Hash() crypto.Hash {
	return crypto.Sum(h.Bytes())
}

// ValidatorSignature pairs a validator's identity with its signature over
// a block hash.
type ValidatorSignature struct {
	ValidatorPubkey crypto.PublicKey
	Signature       crypto.Signature
}

// QC is a quorum certificate: at least T distinct validator signatures
// over a block hash, per spec.md §3.
type QC struct {
	BlockHash  crypto.Hash
	Signatures []ValidatorSignature
}

// Encode writes the canonical encoding of a QC.
func (qc *QC) Encode(w *codec.Writer) {
	w.Fixed32(qc.BlockHash)
	w.U64(uint64(len(qc.Signatures)))
	for _, sig := range qc.Signatures {
		w.Fixed32(sig.ValidatorPubkey)
		w.VarBytes(sig.Signature[:])
	}
}

// DecodeQC reads a QC from its canonical encoding.
func DecodeQC(r *codec.Reader) (*QC, error) {
	qc := &QC{}
	var err error
	if qc.BlockHash, err = r.Fixed32(); err != nil {
		return nil, err
	}
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		var sig ValidatorSignature
		if sig.ValidatorPubkey, err = r.Fixed32(); err != nil {
			return nil, err
		}
		raw, err := r.VarBytes()
		if err != nil {
			return nil, err
		}
		if len(raw) != len(sig.Signature) {
			return nil, codec.ErrBadEncoding
		}
		copy(sig.Signature[:], raw)
		qc.Signatures = append(qc.Signatures, sig)
	}
	return qc, nil
}

// Block is a header, its ordered transactions, and the QC that finalized
// it (QC is nil for a block not yet committed, e.g. mid-proposal).
type Block struct {
	Header BlockHeader
	Txs    []*Transaction
	QC     *QC
}

// ComputeTxRoot computes tx_root = Blake3 of the concatenation of tx
// hashes in order, per spec.md §3 (not a merkle tree: a flat
// concatenation hash, since re-execution always has the full ordered
// list available and never needs an inclusion proof).
func ComputeTxRoot(txs []*Transaction) crypto.Hash {
	w := codec.NewWriter()
	for _, tx := range txs {
		h := tx.Hash()
		w.Fixed32(h)
	}
	return crypto.Sum(w.Bytes())
}

// Encode writes the canonical encoding of the block (header + txs; the QC
// is attached out of band by the consensus layer and is not part of the
// hashed/canonical block body).
func (b *Block) Encode(w *codec.Writer) {
	b.Header.Encode(w)
	w.U64(uint64(len(b.Txs)))
	for _, tx := range b.Txs {
		tx.Encode(w)
	}
}

// Bytes returns the canonical encoding of the block body.
func (b *Block) Bytes() []byte {
	w := codec.NewWriter()
	b.Encode(w)
	return w.Bytes()
}

// DecodeBlock reads a block body (header + txs) from its canonical
// encoding. The caller attaches the QC separately.
func DecodeBlock(r *codec.Reader) (*Block, error) {
	b := &Block{}
	var err error
	if b.Header.ChainID, err = r.U64(); err != nil {
		return nil, err
	}
	if b.Header.Height, err = r.U64(); err != nil {
		return nil, err
	}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	b.Header.PrevHash = fx
	if b.Header.Timestamp, err = r.U64(); err != nil {
		return nil, err
	}
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	b.Header.TxRoot = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	b.Header.StateRoot = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	b.Header.ProposerPubkey = fx
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < n; i++ {
		tx, err := DecodeTransaction(r)
		if err != nil {
			return nil, err
		}
		b.Txs = append(b.Txs, tx)
	}
	return b, nil
}

// EncodeStored writes the archival encoding of a block: its canonical body
// plus its QC (present for every committed block), used by the block
// store rather than by hashing or signing.
func (b *Block) EncodeStored(w *codec.Writer) {
	b.Encode(w)
	w.Bool(b.QC != nil)
	if b.QC != nil {
		b.QC.Encode(w)
	}
}

// DecodeStoredBlock reads a block back from EncodeStored's encoding.
func DecodeStoredBlock(r *codec.Reader) (*Block, error) {
	b, err := DecodeBlock(r)
	if err != nil {
		return nil, err
	}
	hasQC, err := r.Bool()
	if err != nil {
		return nil, err
	}
	if hasQC {
		if b.QC, err = DecodeQC(r); err != nil {
			return nil, err
		}
	}
	return b, nil
}
