// Package units 处理链上整数金额与展示用小数之间的转换。
// 链上计算全部用 *big.Int，只有展示字符串才经过 decimal。
package units

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	dustBalance = decimal.New(1, -4) // 0.0001
	dustSwap    = decimal.New(1, -6) // 0.000001
	hundred     = decimal.NewFromInt(100)
)

// ParseUnits 把 "1.5" 这样的数量转换为最小单位整数，小数位超过 decimals 视为错误
func ParseUnits(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("无效金额 %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("金额不能为负数: %s", amount)
	}
	scaled := d.Shift(decimals)
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("金额 %s 小数位超过 %d 位", amount, decimals)
	}
	return scaled.BigInt(), nil
}

// ToDecimal 最小单位整数转小数
func ToDecimal(v *big.Int, decimals int32) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v, -decimals)
}

// FromDecimal 小数转最小单位整数（向下取整）
func FromDecimal(d decimal.Decimal, decimals int32) *big.Int {
	return d.Shift(decimals).Truncate(0).BigInt()
}

// FormatUnits 完整精度的字符串，去掉尾随 0
func FormatUnits(v *big.Int, decimals int32) string {
	return ToDecimal(v, decimals).String()
}

// FormatBalance 余额展示：最多 maxDecimals 位小数，去掉尾随 0；
// 非零但小于 0.0001 时显示 "< 0.0001"
func FormatBalance(d decimal.Decimal, maxDecimals int32) string {
	if d.IsZero() {
		return "0"
	}
	if d.IsPositive() && d.LessThan(dustBalance) {
		return "< 0.0001"
	}
	return d.Round(maxDecimals).String()
}

// FormatAmount FormatBalance 的整数入口，默认 4 位小数
func FormatAmount(v *big.Int, decimals int32) string {
	return FormatBalance(ToDecimal(v, decimals), 4)
}

// FormatSwapAmount 兑换数量展示：截断到 6 位小数
func FormatSwapAmount(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	if d.IsPositive() && d.LessThan(dustSwap) {
		return "< 0.000001"
	}
	return d.Truncate(6).String()
}

// FormatAPY 两位小数
func FormatAPY(d decimal.Decimal) string {
	if d.IsZero() {
		return "0"
	}
	return d.Round(2).String()
}

// OddsMultiplier 250 -> 2.5
func OddsMultiplier(odds uint64) decimal.Decimal {
	return decimal.NewFromInt(int64(odds)).Div(hundred)
}

// ParseOdds 把 "2.5" 这样的赔率转为 ×100 整数，向下取整
func ParseOdds(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("无效赔率 %q: %w", s, err)
	}
	if !d.GreaterThan(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("赔率必须大于 1.00: %s", s)
	}
	return uint64(d.Mul(hundred).Floor().IntPart()), nil
}
