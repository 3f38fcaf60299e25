package swap

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/betbot/betdex/pkg/units"
)

// MaxBps 100% 滑点
const MaxBps = 10_000

var (
	bpsDenom    = big.NewInt(MaxBps)
	lpFeeRate   = decimal.NewFromFloat(0.003)
	hundredPct  = decimal.NewFromInt(100)
	referenceIn = decimal.New(1, -3) // 0.001
)

// SlippageMin amount − amount×bps/10000，整数运算。bps 会被限制在 [0, 10000]，结果不会为负。
func SlippageMin(amount *big.Int, bps int64) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	if bps < 0 {
		bps = 0
	}
	if bps > MaxBps {
		bps = MaxBps
	}
	cut := new(big.Int).Mul(amount, big.NewInt(bps))
	cut.Quo(cut, bpsDenom)
	return new(big.Int).Sub(amount, cut)
}

// mulDiv a*b/c，c 为 0 时返回 0
func mulDiv(a, b, c *big.Int) *big.Int {
	if c == nil || c.Sign() == 0 || a == nil || b == nil {
		return new(big.Int)
	}
	out := new(big.Int).Mul(a, b)
	return out.Quo(out, c)
}

// referenceAmount 0.001 个代币对应的最小单位；精度不足 3 位时取 1
func referenceAmount(decimals int32) *big.Int {
	if decimals < 3 {
		return big.NewInt(1)
	}
	return units.FromDecimal(referenceIn, decimals)
}

// priceImpact (参考汇率 − 实际汇率) / 参考汇率 × 100
func priceImpact(refRate, rate decimal.Decimal) decimal.Decimal {
	if !refRate.IsPositive() {
		return decimal.Zero
	}
	impact := refRate.Sub(rate).Div(refRate).Mul(hundredPct)
	if impact.IsNegative() {
		return decimal.Zero
	}
	return impact
}

// ratio a/b，b 为 0 时返回 0
func ratio(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}
