package vm

import (
	"github.com/seloria/seloria/core/crypto"
	"github.com/seloria/seloria/core/types"
	"github.com/seloria/seloria/seloriaerr"
	"github.com/seloria/seloria/state"
)

// execPoolCreate debits the founding liquidity from sender and mints the
// initial LP supply as floor(sqrt(reserveA*reserveB)), grounded on
// original_source's execute_pool_create.
func execPoolCreate(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpPoolCreateBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if body.TokenA == body.TokenB {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	if body.AmountA == 0 || body.AmountB == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	for _, t := range []crypto.Hash{body.TokenA, body.TokenB} {
		if exists, err := tokenExists(sp, t); err != nil {
			return types.Event{}, err
		} else if !exists {
			return types.Event{}, seloriaerr.ErrNoToken
		}
	}

	a, b, ra, rb := types.CanonicalPair(body.TokenA, body.TokenB, body.AmountA, body.AmountB)
	poolID := types.ComputePoolID(a, b)
	if _, ok, err := state.GetPool(sp, poolID); err != nil {
		return types.Event{}, err
	} else if ok {
		return types.Event{}, seloriaerr.ErrDuplicate
	}

	if err := debitToken(sp, a, sender, ra); err != nil {
		return types.Event{}, err
	}
	if err := debitToken(sp, b, sender, rb); err != nil {
		return types.Event{}, err
	}

	lpMinted := types.IntegerSqrtProduct(ra, rb)
	if lpMinted == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}

	pool := &types.Pool{PoolID: poolID, TokenA: a, TokenB: b, ReserveA: ra, ReserveB: rb, LPSupply: lpMinted}
	if err := state.PutPool(sp, pool); err != nil {
		return types.Event{}, err
	}
	if err := state.PutLPBalance(sp, poolID, sender, lpMinted); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventPoolCreated, Height: height, TxHash: txHash,
		Sender: sender, PoolID: poolID, Amount: lpMinted,
	}, nil
}

// execPoolAdd mints LP proportional to the smaller of the two deposits'
// share of the existing reserves, grounded on execute_pool_add.
func execPoolAdd(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpPoolAddBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if body.AmountA == 0 || body.AmountB == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	pool, ok, err := state.GetPool(sp, body.PoolID)
	if err != nil {
		return types.Event{}, err
	}
	if !ok {
		return types.Event{}, seloriaerr.ErrNoPool
	}
	if pool.LPSupply == 0 || pool.ReserveA == 0 || pool.ReserveB == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}

	lpFromA := types.MulDivU64(body.AmountA, pool.LPSupply, pool.ReserveA)
	lpFromB := types.MulDivU64(body.AmountB, pool.LPSupply, pool.ReserveB)
	lpMinted := lpFromA
	if lpFromB < lpMinted {
		lpMinted = lpFromB
	}
	if lpMinted == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	if lpMinted < body.MinLP {
		return types.Event{}, seloriaerr.ErrSlippage
	}

	if err := debitToken(sp, pool.TokenA, sender, body.AmountA); err != nil {
		return types.Event{}, err
	}
	if err := debitToken(sp, pool.TokenB, sender, body.AmountB); err != nil {
		return types.Event{}, err
	}

	pool.ReserveA += body.AmountA
	pool.ReserveB += body.AmountB
	pool.LPSupply += lpMinted
	if err := state.PutPool(sp, pool); err != nil {
		return types.Event{}, err
	}

	lpBal, err := state.GetLPBalance(sp, body.PoolID, sender)
	if err != nil {
		return types.Event{}, err
	}
	if err := state.PutLPBalance(sp, body.PoolID, sender, lpBal+lpMinted); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventPoolLiquidityAdded, Height: height, TxHash: txHash,
		Sender: sender, PoolID: body.PoolID, Amount: lpMinted,
	}, nil
}

// execPoolRemove burns LP and returns a pro-rata share of both reserves,
// grounded on execute_pool_remove.
func execPoolRemove(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpPoolRemoveBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if body.LPAmount == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	pool, ok, err := state.GetPool(sp, body.PoolID)
	if err != nil {
		return types.Event{}, err
	}
	if !ok {
		return types.Event{}, seloriaerr.ErrNoPool
	}
	if pool.LPSupply == 0 || pool.ReserveA == 0 || pool.ReserveB == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}

	lpBal, err := state.GetLPBalance(sp, body.PoolID, sender)
	if err != nil {
		return types.Event{}, err
	}
	if lpBal < body.LPAmount {
		return types.Event{}, seloriaerr.ErrInsufficient
	}

	amountA := types.MulDivU64(body.LPAmount, pool.ReserveA, pool.LPSupply)
	amountB := types.MulDivU64(body.LPAmount, pool.ReserveB, pool.LPSupply)
	if amountA < body.MinA || amountB < body.MinB {
		return types.Event{}, seloriaerr.ErrSlippage
	}

	if err := state.PutLPBalance(sp, body.PoolID, sender, lpBal-body.LPAmount); err != nil {
		return types.Event{}, err
	}
	pool.ReserveA -= amountA
	pool.ReserveB -= amountB
	pool.LPSupply -= body.LPAmount
	if err := state.PutPool(sp, pool); err != nil {
		return types.Event{}, err
	}

	if err := creditToken(sp, pool.TokenA, sender, amountA); err != nil {
		return types.Event{}, err
	}
	if err := creditToken(sp, pool.TokenB, sender, amountB); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventPoolLiquidityRemoved, Height: height, TxHash: txHash,
		Sender: sender, PoolID: body.PoolID, Amount: body.LPAmount,
	}, nil
}

// execSwap swaps body.AmountIn of body.TokenIn for the pool's other token
// using the constant-product formula, grounded on execute_swap.
func execSwap(sp *state.Scratchpad, sender crypto.PublicKey, body *types.OpSwapBody, txHash crypto.Hash, height uint64) (types.Event, error) {
	if body.AmountIn == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	pool, ok, err := state.GetPool(sp, body.PoolID)
	if err != nil {
		return types.Event{}, err
	}
	if !ok {
		return types.Event{}, seloriaerr.ErrNoPool
	}

	var reserveIn, reserveOut uint64
	var tokenOut crypto.Hash
	switch body.TokenIn {
	case pool.TokenA:
		reserveIn, reserveOut, tokenOut = pool.ReserveA, pool.ReserveB, pool.TokenB
	case pool.TokenB:
		reserveIn, reserveOut, tokenOut = pool.ReserveB, pool.ReserveA, pool.TokenA
	default:
		return types.Event{}, seloriaerr.ErrBadAmount
	}
	if reserveIn == 0 || reserveOut == 0 {
		return types.Event{}, seloriaerr.ErrBadAmount
	}

	amountOut := types.SwapOut(body.AmountIn, reserveIn, reserveOut)
	if amountOut == 0 || amountOut < body.MinOut {
		return types.Event{}, seloriaerr.ErrSlippage
	}

	if err := debitToken(sp, body.TokenIn, sender, body.AmountIn); err != nil {
		return types.Event{}, err
	}
	if err := creditToken(sp, tokenOut, sender, amountOut); err != nil {
		return types.Event{}, err
	}

	if body.TokenIn == pool.TokenA {
		pool.ReserveA += body.AmountIn
		pool.ReserveB -= amountOut
	} else {
		pool.ReserveB += body.AmountIn
		pool.ReserveA -= amountOut
	}
	if err := state.PutPool(sp, pool); err != nil {
		return types.Event{}, err
	}

	return types.Event{
		Kind: types.EventSwapExecuted, Height: height, TxHash: txHash,
		Sender: sender, PoolID: body.PoolID, TokenID: body.TokenIn, Amount: amountOut,
	}, nil
}
