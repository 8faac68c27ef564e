package types

import (
	"fmt"

	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// OpKind discriminates the kernel opcode carried by an Op.
type OpKind uint8

const (
	OpAgentCertRegister OpKind = iota
	OpTransfer
	OpClaimCreate
	OpAttest
	OpAppRegister
	OpNamespaceCreate
	OpKVPut
	OpKVDel
	OpKVAppend
	OpTokenCreate
	OpTokenTransfer
	OpPoolCreate
	OpPoolAdd
	OpSwap
	OpPoolRemove
)

// Op is one kernel operation inside a transaction. Exactly one of the typed
// fields is populated, selected by Kind; this mirrors a tagged union the way
// Go idiomatically represents one without language-level sum types.
type Op struct {
	Kind OpKind

	AgentCertRegister *OpAgentCertRegisterBody
	Transfer          *OpTransferBody
	ClaimCreate       *OpClaimCreateBody
	Attest            *OpAttestBody
	AppRegister       *OpAppRegisterBody
	NamespaceCreate   *OpNamespaceCreateBody
	KVPut             *OpKVPutBody
	KVDel             *OpKVDelBody
	KVAppend          *OpKVAppendBody
	TokenCreate       *OpTokenCreateBody
	TokenTransfer     *OpTokenTransferBody
	PoolCreate        *OpPoolCreateBody
	PoolAdd           *OpPoolAddBody
	Swap              *OpSwapBody
	PoolRemove        *OpPoolRemoveBody
}

type OpAgentCertRegisterBody struct {
	Cert      AgentCertificate
	IssuerSig crypto.Signature
}

type OpTransferBody struct {
	To     crypto.PublicKey
	Amount uint64
}

type OpClaimCreateBody struct {
	ClaimType   string
	PayloadHash crypto.Hash
	Stake       uint64
}

type OpAttestBody struct {
	ClaimID crypto.Hash
	Vote    Vote
	Stake   uint64
}

type OpAppRegisterBody struct {
	AppID        crypto.Hash
	Version      string
	MetadataHash crypto.Hash
	Namespaces   []string
	Schemas      []string
	Recipes      []string
}

type OpNamespaceCreateBody struct {
	Name          string
	AppID         crypto.Hash
	Policy        NamespacePolicy
	Allowlist     []crypto.PublicKey
	MinWriteStake uint64
}

type OpKVPutBody struct {
	NsID  crypto.Hash
	Key   string
	Codec string
	Value []byte
}

type OpKVDelBody struct {
	NsID crypto.Hash
	Key  string
}

type OpKVAppendBody struct {
	NsID  crypto.Hash
	Key   string
	Codec string
	Chunk []byte
}

type OpTokenCreateBody struct {
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply uint64
}

type OpTokenTransferBody struct {
	TokenID crypto.Hash
	To      crypto.PublicKey
	Amount  uint64
}

type OpPoolCreateBody struct {
	TokenA   crypto.Hash
	TokenB   crypto.Hash
	AmountA  uint64
	AmountB  uint64
}

type OpPoolAddBody struct {
	PoolID  crypto.Hash
	AmountA uint64
	AmountB uint64
	MinLP   uint64
}

type OpSwapBody struct {
	PoolID    crypto.Hash
	TokenIn   crypto.Hash
	AmountIn  uint64
	MinOut    uint64
}

type OpPoolRemoveBody struct {
	PoolID   crypto.Hash
	LPAmount uint64
	MinA     uint64
	MinB     uint64
}

// Encode writes the canonical encoding of op: a kind byte followed by its
// body's fields, in declaration order.
func (op Op) Encode(w *codec.Writer) {
	w.U8(uint8(op.Kind))
	switch op.Kind {
	case OpAgentCertRegister:
		b := op.AgentCertRegister
		b.Cert.Encode(w)
		w.VarBytes(b.IssuerSig[:])
	case OpTransfer:
		b := op.Transfer
		w.Fixed32(b.To)
		w.U64(b.Amount)
	case OpClaimCreate:
		b := op.ClaimCreate
		w.String(b.ClaimType)
		w.Fixed32(b.PayloadHash)
		w.U64(b.Stake)
	case OpAttest:
		b := op.Attest
		w.Fixed32(b.ClaimID)
		w.U8(uint8(b.Vote))
		w.U64(b.Stake)
	case OpAppRegister:
		b := op.AppRegister
		w.Fixed32(b.AppID)
		w.String(b.Version)
		w.Fixed32(b.MetadataHash)
		writeStrings(w, b.Namespaces)
		writeStrings(w, b.Schemas)
		writeStrings(w, b.Recipes)
	case OpNamespaceCreate:
		b := op.NamespaceCreate
		w.String(b.Name)
		w.Fixed32(b.AppID)
		w.U8(uint8(b.Policy))
		w.U64(uint64(len(b.Allowlist)))
		for _, pk := range b.Allowlist {
			w.Fixed32(pk)
		}
		w.U64(b.MinWriteStake)
	case OpKVPut:
		b := op.KVPut
		w.Fixed32(b.NsID)
		w.String(b.Key)
		w.String(b.Codec)
		w.VarBytes(b.Value)
	case OpKVDel:
		b := op.KVDel
		w.Fixed32(b.NsID)
		w.String(b.Key)
	case OpKVAppend:
		b := op.KVAppend
		w.Fixed32(b.NsID)
		w.String(b.Key)
		w.String(b.Codec)
		w.VarBytes(b.Chunk)
	case OpTokenCreate:
		b := op.TokenCreate
		w.String(b.Name)
		w.String(b.Symbol)
		w.U8(b.Decimals)
		w.U64(b.TotalSupply)
	case OpTokenTransfer:
		b := op.TokenTransfer
		w.Fixed32(b.TokenID)
		w.Fixed32(b.To)
		w.U64(b.Amount)
	case OpPoolCreate:
		b := op.PoolCreate
		w.Fixed32(b.TokenA)
		w.Fixed32(b.TokenB)
		w.U64(b.AmountA)
		w.U64(b.AmountB)
	case OpPoolAdd:
		b := op.PoolAdd
		w.Fixed32(b.PoolID)
		w.U64(b.AmountA)
		w.U64(b.AmountB)
		w.U64(b.MinLP)
	case OpSwap:
		b := op.Swap
		w.Fixed32(b.PoolID)
		w.Fixed32(b.TokenIn)
		w.U64(b.AmountIn)
		w.U64(b.MinOut)
	case OpPoolRemove:
		b := op.PoolRemove
		w.Fixed32(b.PoolID)
		w.U64(b.LPAmount)
		w.U64(b.MinA)
		w.U64(b.MinB)
	}
}

func writeStrings(w *codec.Writer, ss []string) {
	w.U64(uint64(len(ss)))
	for _, s := range ss {
		w.String(s)
	}
}

func readStrings(r *codec.Reader) ([]string, error) {
	n, err := r.U64()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := r.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// DecodeOp reads an Op from its canonical encoding.
func DecodeOp(r *codec.Reader) (Op, error) {
	kb, err := r.U8()
	if err != nil {
		return Op{}, err
	}
	op := Op{Kind: OpKind(kb)}
	switch op.Kind {
	case OpAgentCertRegister:
		cert, err := DecodeAgentCertificate(r)
		if err != nil {
			return op, err
		}
		sigb, err := r.VarBytes()
		if err != nil {
			return op, err
		}
		sig, err := crypto.SignatureFromBytes(sigb)
		if err != nil {
			return op, codec.ErrBadEncoding
		}
		op.AgentCertRegister = &OpAgentCertRegisterBody{Cert: cert, IssuerSig: sig}
	case OpTransfer:
		to, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		amt, err := r.U64()
		if err != nil {
			return op, err
		}
		op.Transfer = &OpTransferBody{To: to, Amount: amt}
	case OpClaimCreate:
		ct, err := r.String()
		if err != nil {
			return op, err
		}
		ph, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		stake, err := r.U64()
		if err != nil {
			return op, err
		}
		op.ClaimCreate = &OpClaimCreateBody{ClaimType: ct, PayloadHash: ph, Stake: stake}
	case OpAttest:
		cid, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		vb, err := r.U8()
		if err != nil {
			return op, err
		}
		stake, err := r.U64()
		if err != nil {
			return op, err
		}
		op.Attest = &OpAttestBody{ClaimID: cid, Vote: Vote(vb), Stake: stake}
	case OpAppRegister:
		appID, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		ver, err := r.String()
		if err != nil {
			return op, err
		}
		mh, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		ns, err := readStrings(r)
		if err != nil {
			return op, err
		}
		sc, err := readStrings(r)
		if err != nil {
			return op, err
		}
		rc, err := readStrings(r)
		if err != nil {
			return op, err
		}
		op.AppRegister = &OpAppRegisterBody{AppID: appID, Version: ver, MetadataHash: mh, Namespaces: ns, Schemas: sc, Recipes: rc}
	case OpNamespaceCreate:
		name, err := r.String()
		if err != nil {
			return op, err
		}
		appID, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		pb, err := r.U8()
		if err != nil {
			return op, err
		}
		n, err := r.U64()
		if err != nil {
			return op, err
		}
		allow := make([]crypto.PublicKey, 0, n)
		for i := uint64(0); i < n; i++ {
			pk, err := r.Fixed32()
			if err != nil {
				return op, err
			}
			allow = append(allow, pk)
		}
		mw, err := r.U64()
		if err != nil {
			return op, err
		}
		op.NamespaceCreate = &OpNamespaceCreateBody{Name: name, AppID: appID, Policy: NamespacePolicy(pb), Allowlist: allow, MinWriteStake: mw}
	case OpKVPut:
		ns, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		key, err := r.String()
		if err != nil {
			return op, err
		}
		cdc, err := r.String()
		if err != nil {
			return op, err
		}
		val, err := r.VarBytes()
		if err != nil {
			return op, err
		}
		op.KVPut = &OpKVPutBody{NsID: ns, Key: key, Codec: cdc, Value: val}
	case OpKVDel:
		ns, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		key, err := r.String()
		if err != nil {
			return op, err
		}
		op.KVDel = &OpKVDelBody{NsID: ns, Key: key}
	case OpKVAppend:
		ns, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		key, err := r.String()
		if err != nil {
			return op, err
		}
		cdc, err := r.String()
		if err != nil {
			return op, err
		}
		chunk, err := r.VarBytes()
		if err != nil {
			return op, err
		}
		op.KVAppend = &OpKVAppendBody{NsID: ns, Key: key, Codec: cdc, Chunk: chunk}
	case OpTokenCreate:
		name, err := r.String()
		if err != nil {
			return op, err
		}
		sym, err := r.String()
		if err != nil {
			return op, err
		}
		dec, err := r.U8()
		if err != nil {
			return op, err
		}
		supply, err := r.U64()
		if err != nil {
			return op, err
		}
		op.TokenCreate = &OpTokenCreateBody{Name: name, Symbol: sym, Decimals: dec, TotalSupply: supply}
	case OpTokenTransfer:
		tid, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		to, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		amt, err := r.U64()
		if err != nil {
			return op, err
		}
		op.TokenTransfer = &OpTokenTransferBody{TokenID: tid, To: to, Amount: amt}
	case OpPoolCreate:
		ta, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		tb, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		aa, err := r.U64()
		if err != nil {
			return op, err
		}
		ab, err := r.U64()
		if err != nil {
			return op, err
		}
		op.PoolCreate = &OpPoolCreateBody{TokenA: ta, TokenB: tb, AmountA: aa, AmountB: ab}
	case OpPoolAdd:
		pid, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		aa, err := r.U64()
		if err != nil {
			return op, err
		}
		ab, err := r.U64()
		if err != nil {
			return op, err
		}
		minLP, err := r.U64()
		if err != nil {
			return op, err
		}
		op.PoolAdd = &OpPoolAddBody{PoolID: pid, AmountA: aa, AmountB: ab, MinLP: minLP}
	case OpSwap:
		pid, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		tin, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		ain, err := r.U64()
		if err != nil {
			return op, err
		}
		minOut, err := r.U64()
		if err != nil {
			return op, err
		}
		op.Swap = &OpSwapBody{PoolID: pid, TokenIn: tin, AmountIn: ain, MinOut: minOut}
	case OpPoolRemove:
		pid, err := r.Fixed32()
		if err != nil {
			return op, err
		}
		lp, err := r.U64()
		if err != nil {
			return op, err
		}
		ma, err := r.U64()
		if err != nil {
			return op, err
		}
		mb, err := r.U64()
		if err != nil {
			return op, err
		}
		op.PoolRemove = &OpPoolRemoveBody{PoolID: pid, LPAmount: lp, MinA: ma, MinB: mb}
	default:
		return op, fmt.Errorf("codec: unknown op kind %d", kb)
	}
	return op, nil
}
