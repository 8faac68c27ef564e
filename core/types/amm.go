package types

import (
	"bytes"
	"math/big"

	"github.com/seloria/seloria/core/codec"
	"github.com/seloria/seloria/core/crypto"
)

// SwapFeeBps is the constant-product swap fee: 0.3%, per spec.md §4.4.
const SwapFeeBps = 30

// BpsDenom is the basis-point denominator (10000 = 100%, so 30bps = 0.3%).
const BpsDenom = 10000

// Pool is a constant-product AMM liquidity pool between two tokens.
type Pool struct {
	PoolID   crypto.Hash
	TokenA   crypto.Hash
	TokenB   crypto.Hash
	ReserveA uint64
	ReserveB uint64
	LPSupply uint64
}

// CanonicalPair orders (tokenA, tokenB, amountA, amountB) so a pool between
// two tokens always has the same identity regardless of which order a
// caller names them in: the lexicographically smaller token id becomes A.
func CanonicalPair(tokenA, tokenB crypto.Hash, amountA, amountB uint64) (a, b crypto.Hash, ra, rb uint64) {
	if bytes.Compare(tokenA[:], tokenB[:]) <= 0 {
		return tokenA, tokenB, amountA, amountB
	}
	return tokenB, tokenA, amountB, amountA
}

// ComputePoolID computes pool_id = Blake3("pool" || token_a || token_b),
// per spec.md §4.4, using the canonically ordered pair.
func ComputePoolID(tokenA, tokenB crypto.Hash) crypto.Hash {
	return crypto.SumAll([]byte("pool"), tokenA[:], tokenB[:])
}

// IntegerSqrtProduct returns floor(sqrt(a*b)), computing the product in
// arbitrary precision since a*b can exceed 64 bits for large deposits.
func IntegerSqrtProduct(a, b uint64) uint64 {
	prod := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	return new(big.Int).Sqrt(prod).Uint64()
}

// SwapOut computes the constant-product output amount for amountIn against
// reserves (reserveIn, reserveOut) after the 0.3% fee, per spec.md §4.4:
// out = (amountIn * 997 * reserveOut) / (reserveIn * 1000 + amountIn * 997).
// Intermediate products are computed in arbitrary precision since
// amountIn*997*reserveOut can exceed 64 bits for large balances.
func SwapOut(amountIn, reserveIn, reserveOut uint64) uint64 {
	amountInWithFee := new(big.Int).Mul(big.NewInt(int64(amountIn)), big.NewInt(BpsDenom-SwapFeeBps))
	numerator := new(big.Int).Mul(amountInWithFee, big.NewInt(int64(reserveOut)))
	denominator := new(big.Int).Mul(big.NewInt(int64(reserveIn)), big.NewInt(BpsDenom))
	denominator.Add(denominator, amountInWithFee)
	if denominator.Sign() == 0 {
		return 0
	}
	out := new(big.Int).Div(numerator, denominator)
	return out.Uint64()
}

// MulDivU64 computes floor(a*b/c) in arbitrary precision, used for LP
// mint/burn math where a*b can exceed 64 bits.
func MulDivU64(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	num := new(big.Int).Mul(big.NewInt(int64(a)), big.NewInt(int64(b)))
	return num.Div(num, big.NewInt(int64(c))).Uint64()
}

// Encode writes the canonical encoding of the pool.
func (p *Pool) Encode(w *codec.Writer) {
	w.Fixed32(p.PoolID)
	w.Fixed32(p.TokenA)
	w.Fixed32(p.TokenB)
	w.U64(p.ReserveA)
	w.U64(p.ReserveB)
	w.U64(p.LPSupply)
}

// DecodePool reads a Pool from its canonical encoding.
func DecodePool(r *codec.Reader) (*Pool, error) {
	p := &Pool{}
	fx, err := r.Fixed32()
	if err != nil {
		return nil, err
	}
	p.PoolID = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	p.TokenA = fx
	if fx, err = r.Fixed32(); err != nil {
		return nil, err
	}
	p.TokenB = fx
	if p.ReserveA, err = r.U64(); err != nil {
		return nil, err
	}
	if p.ReserveB, err = r.U64(); err != nil {
		return nil, err
	}
	if p.LPSupply, err = r.U64(); err != nil {
		return nil, err
	}
	return p, nil
}
