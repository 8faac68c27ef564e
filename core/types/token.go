package types

import (
	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// NativeTokenID is the reserved token_id for the chain's native token,
// whose balances live on Account.Balance rather than the token balance
// table, per spec.md §3.
var NativeTokenID = crypto.ZeroHash

// Token describes a fungible asset other than the native token.
type Token struct {
	TokenID     crypto.Hash
	Name        string
	Symbol      string
	Decimals    uint8
	TotalSupply uint64
}

// ComputeTokenID computes token_id = Blake3("tok" || sender || nonce), per
// spec.md §4.4.
func ComputeTokenID(sender crypto.PublicKey, nonce uint64) crypto.Hash {
	w := codec.NewWriter()
	w.U64(nonce)
	return crypto.SumAll([]byte("tok"), sender[:], w.Bytes())
}

// Encode writes the canonical encoding of the token.
func (t *Token) Encode(w *codec.Writer) {
	w.Fixed32(t.TokenID)
	w.String(t.Name)
	w.String(t.Symbol)
	w.U8(t.Decimals)
	w.U64(t.TotalSupply)
}

// DecodeToken reads a Token from its canonical encoding.
func DecodeToken(r *codec.Reader) (*Token, error) {
	t := &Token{}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	t.TokenID = fx
	if t.Name, err = r.String(); err != nil {
		return nil, err
	}
	if t.Symbol, err = r.String(); err != nil {
		return nil, err
	}
	if t.Decimals, err = r.U8(); err != nil {
		return nil, err
	}
	if t.TotalSupply, err = r.U64(); err != nil {
		return nil, err
	}
	return t, nil
}
