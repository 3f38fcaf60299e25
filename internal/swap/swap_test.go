package swap_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
)

var (
	pairUSDC  = common.HexToAddress("0x00000000000000000000000000000000000000c1")
	pairINTEL = common.HexToAddress("0x00000000000000000000000000000000000000c2")
)

// withPools MNT/USDC: 1000 MNT : 500 USDC；INTEL/MNT: 2000 INTEL : 1000 MNT
func withPools(t *testing.T) *fixture {
	f := newFixture(t)
	f.addPair(pairUSDC, mnt, usdc, amt(1000, 18), amt(500, 6), amt(100, 18))
	f.addPair(pairINTEL, intel, mnt, amt(2000, 18), amt(1000, 18), amt(1000, 18))
	return f
}

func TestSlippageMin(t *testing.T) {
	cases := []struct {
		amount int64
		bps    int64
		want   int64
	}{
		{1000, 50, 995},
		{1000, 0, 1000},
		{1000, 10000, 0},
		{1000, 25000, 0},
		{1000, -10, 1000},
		{999, 1, 999},
		{1, 9999, 1},
	}
	for _, c := range cases {
		got := swap.SlippageMin(big.NewInt(c.amount), c.bps)
		assert.Zero(t, big.NewInt(c.want).Cmp(got), "amount=%d bps=%d got=%s", c.amount, c.bps, got)
		assert.GreaterOrEqual(t, got.Sign(), 0)
	}
	assert.Equal(t, 0, swap.SlippageMin(nil, 50).Sign())
}

func TestPathRoutesThroughBase(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, []common.Address{mnt.Address, usdc.Address}, f.svc.Path(mnt.Address, usdc.Address))
	assert.Equal(t, []common.Address{usdc.Address, mnt.Address}, f.svc.Path(usdc.Address, mnt.Address))
	assert.Equal(t, []common.Address{usdc.Address, mnt.Address, intel.Address}, f.svc.Path(usdc.Address, intel.Address))
}

func TestQuoteSwapTwoHop(t *testing.T) {
	f := withPools(t)
	ctx := context.Background()

	in := amt(100, 6)
	q, err := f.svc.QuoteSwap(ctx, in, usdc, intel, 50)
	require.NoError(t, err)
	require.NotNil(t, q)
	path := []common.Address{usdc.Address, mnt.Address, intel.Address}
	assert.Equal(t, path, q.Path)
	want := f.amountsOut(in, path)[2]
	assert.Equal(t, want, q.AmountOut)
	assert.Equal(t, swap.SlippageMin(want, 50), q.MinReceived)
	assert.True(t, q.PriceImpact.IsPositive(), "大额交易有价格影响")
	assert.True(t, q.HighImpact)
	assert.Equal(t, "0.3", q.LPFee.String())

	small, err := f.svc.QuoteSwap(ctx, amt(1, 6), usdc, intel, 50)
	require.NoError(t, err)
	assert.False(t, small.HighImpact)
	assert.True(t, small.PriceImpact.LessThan(q.PriceImpact))
	// 1 USDC ≈ 2 MNT ≈ 4 INTEL，扣掉两次手续费和滑点
	assert.Equal(t, "3.9", small.Rate.Truncate(1).String())
}

func TestQuoteSwapWithoutPairIsEmpty(t *testing.T) {
	f := newFixture(t)
	f.addPair(pairUSDC, mnt, usdc, amt(1000, 18), amt(500, 6), amt(100, 18))

	q, err := f.svc.QuoteSwap(context.Background(), amt(1, 6), usdc, intel, 50)
	require.NoError(t, err)
	assert.Nil(t, q)
	assert.Equal(t, 0, f.fb.CallCountFor(routerAddr, "getAmountsOut"))

	_, err = f.svc.QuoteSwap(context.Background(), big.NewInt(0), usdc, mnt, 50)
	require.Error(t, err)
}

func TestQuoteAddLiquidity(t *testing.T) {
	f := withPools(t)
	q, err := f.svc.QuoteAddLiquidity(context.Background(), usdc, mnt, amt(10, 6))
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, amt(500, 6), q.Pool.ReserveA, "储备按调用方的代币顺序排列")
	assert.Equal(t, amt(20, 18), q.AmountB)
	assert.Equal(t, amt(2, 18), q.Liquidity)
	assert.Equal(t, "1.96", q.Share.Round(2).String())
	assert.Equal(t, "2", q.Pool.PriceAPerB().String())
	assert.Equal(t, "0.5", q.Pool.PriceBPerA().String())

	none, err := f.svc.QuoteAddLiquidity(context.Background(), usdc, intel, amt(10, 6))
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestScanPositionsAndDetails(t *testing.T) {
	f := withPools(t)
	p := f.pairs[key(intel.Address, mnt.Address)]
	p.lp[f.user] = amt(100, 18)
	f.fb.Fails(pairUSDC, contracts.Pair, "balanceOf", chaintest.ErrRPC)

	list := []tokens.Token{mnt, usdc, intel}
	positions, err := f.svc.ScanPositions(context.Background(), f.user, list)
	require.NoError(t, err)
	require.Len(t, positions, 1)
	pos := positions[0]
	assert.Equal(t, pairINTEL, pos.Pair)
	assert.Equal(t, "MNT", pos.TokenA.Symbol)
	assert.Equal(t, "INTEL", pos.TokenB.Symbol)

	d, err := f.svc.PositionDetails(context.Background(), pos)
	require.NoError(t, err)
	assert.Equal(t, amt(100, 18), d.AmountA)
	assert.Equal(t, amt(200, 18), d.AmountB)
	assert.Equal(t, "10", d.Share.String())

	rq, err := f.svc.QuoteRemoveLiquidity(context.Background(), pos, 50, 50)
	require.NoError(t, err)
	assert.Equal(t, amt(50, 18), rq.Liquidity)
	assert.Equal(t, amt(50, 18), rq.AmountA)
	assert.Equal(t, amt(100, 18), rq.AmountB)
	assert.Equal(t, new(big.Int).Sub(amt(50, 18), amt(25, 16)), rq.MinA)

	_, err = f.svc.QuoteRemoveLiquidity(context.Background(), pos, 0, 50)
	require.Error(t, err)
	_, err = f.svc.QuoteRemoveLiquidity(context.Background(), pos, 101, 50)
	require.Error(t, err)
}

func TestSwapNativeSendsValue(t *testing.T) {
	f := withPools(t)
	in := amt(2, 18)
	_, err := f.svc.Swap(context.Background(), in, mnt, usdc, 100)
	require.NoError(t, err)

	sent := f.fb.Sent()
	require.Len(t, sent, 1, "原生币兑换不需要授权")
	assert.Equal(t, "swapExactETHForTokens", sent[0].Method)
	assert.Equal(t, in, sent[0].Value)
	out := f.amountsOut(in, []common.Address{mnt.Address, usdc.Address})[1]
	assert.Equal(t, swap.SlippageMin(out, 100), sent[0].Args[0])
	assert.Equal(t, f.user, sent[0].Args[2])
	assert.Equal(t, big.NewInt(blockTime+1800), sent[0].Args[3])
}

func TestSwapApprovesWhenAllowanceShort(t *testing.T) {
	f := withPools(t)
	ctx := context.Background()

	_, err := f.svc.Swap(ctx, amt(10, 6), usdc, mnt, 50)
	require.NoError(t, err)
	sent := f.fb.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, routerAddr, sent[0].Args[0])
	assert.Equal(t, math.MaxBig256, sent[0].Args[1])
	assert.Equal(t, "swapExactTokensForETH", sent[1].Method)

	// 额度已足够，不再授权
	_, err = f.svc.Swap(ctx, amt(10, 6), usdc, intel, 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "swapExactTokensForETH", "swapExactTokensForTokens"}, f.fb.SentMethods())
}

func TestSwapFailureAfterApprovalKeepsApproval(t *testing.T) {
	f := withPools(t)
	ctx := context.Background()
	f.fb.FailEstimate(routerAddr, contracts.Router, "swapExactTokensForTokens", chaintest.Revert("UniswapV2Router: INSUFFICIENT_OUTPUT_AMOUNT"))

	_, err := f.svc.Swap(ctx, amt(10, 6), usdc, intel, 0)
	var se *chain.SagaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"approve USDC"}, se.Completed)
	assert.Equal(t, "swapExactTokensForTokens", se.Failed)
	var te *chain.TxError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, chain.TxReverted, te.Kind)

	f.fb.ClearEstimateFailure(routerAddr, contracts.Router, "swapExactTokensForTokens")
	_, err = f.svc.Swap(ctx, amt(10, 6), usdc, intel, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "swapExactTokensForTokens"}, f.fb.SentMethods())

	// 只有拒绝，没有授权上链时不是 SagaError
	f.fb.FailEstimate(intel.Address, contracts.ERC20, "approve", chaintest.RejectError{})
	_, err = f.svc.Swap(ctx, amt(1, 18), intel, usdc, 0)
	require.ErrorIs(t, err, chain.ErrUserRejected)
	assert.False(t, errors.As(err, &se))
}

func TestAddLiquidityETH(t *testing.T) {
	f := withPools(t)
	_, err := f.svc.AddLiquidity(context.Background(), usdc, mnt, amt(10, 6), amt(20, 18), 50)
	require.NoError(t, err)

	sent := f.fb.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "approve", sent[0].Method)
	add := sent[1]
	assert.Equal(t, "addLiquidityETH", add.Method)
	assert.Equal(t, amt(20, 18), add.Value)
	assert.Equal(t, usdc.Address, add.Args[0])
	assert.Equal(t, amt(10, 6), add.Args[1])
	assert.Equal(t, big.NewInt(9_950_000), add.Args[2])
	assert.Equal(t, new(big.Int).Sub(amt(20, 18), amt(1, 17)), add.Args[3])
}

func TestAddLiquidityTokens(t *testing.T) {
	f := withPools(t)
	f.setAllowance(usdc.Address, math.MaxBig256)
	_, err := f.svc.AddLiquidity(context.Background(), usdc, intel, amt(10, 6), amt(40, 18), 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "addLiquidity"}, f.fb.SentMethods(), "只授权额度不足的一侧")
	assert.Equal(t, intel.Address, *f.fb.Sent()[0].To)
}

func TestRemoveLiquidityETH(t *testing.T) {
	f := withPools(t)
	pos := swap.Position{Pair: pairINTEL, TokenA: mnt, TokenB: intel, LPBalance: amt(100, 18)}
	_, err := f.svc.RemoveLiquidity(context.Background(), pos, 50, 50)
	require.NoError(t, err)

	sent := f.fb.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "approve", sent[0].Method)
	assert.Equal(t, pairINTEL, *sent[0].To, "授权的是 LP 代币")
	rm := sent[1]
	assert.Equal(t, "removeLiquidityETH", rm.Method)
	assert.Equal(t, intel.Address, rm.Args[0])
	assert.Equal(t, amt(50, 18), rm.Args[1])
	assert.Equal(t, new(big.Int).Sub(amt(100, 18), amt(5, 17)), rm.Args[2], "代币侧最小值")
	assert.Equal(t, new(big.Int).Sub(amt(50, 18), amt(25, 16)), rm.Args[3], "原生币侧最小值")
}
