package betting

import (
	"errors"
	"fmt"
	"math/big"
)

// ErrUnknownShape 返回数据长度不属于任何已知形态
var ErrUnknownShape = errors.New("无法识别的比赛合约返回数据")

// ErrVariantMismatch 比赛实际形态与所在列表不一致
var ErrVariantMismatch = errors.New("比赛合约形态与列表不一致")

// DecodeMatchInfo 按返回数据的形状识别形态后解码 getMatchInfo。
// 返回值以两个 string 开头，第一个槽位是第一个字符串的偏移量，恰好等于头部长度：
// 9 个槽位为 WithDraw，8 个槽位为 NoDraw。
func DecodeMatchInfo(raw []byte) (MatchInfo, error) {
	if len(raw) < slot {
		return MatchInfo{}, fmt.Errorf("%w: getMatchInfo 长度 %d", ErrUnknownShape, len(raw))
	}
	head := new(big.Int).SetBytes(raw[:slot])
	var v MatchVariant
	switch {
	case head.IsUint64() && head.Uint64() == infoSlotsWithDraw*slot:
		v = WithDraw
	case head.IsUint64() && head.Uint64() == infoSlotsNoDraw*slot:
		v = NoDraw
	default:
		return MatchInfo{}, fmt.Errorf("%w: getMatchInfo 头部偏移 %s", ErrUnknownShape, head)
	}

	values, err := v.ABI().Unpack("getMatchInfo", raw)
	if err != nil {
		return MatchInfo{}, fmt.Errorf("解码 getMatchInfo(%s) 失败: %w", v, err)
	}
	n := v.Outcomes()
	info := MatchInfo{Variant: v, Odds: make([]uint64, n)}
	info.TeamA, _ = values[0].(string)
	info.TeamB, _ = values[1].(string)
	info.StartTime = u64(values[2])
	info.BettingCloseTime = u64(values[3])
	for i := 0; i < n; i++ {
		info.Odds[i] = u64(values[4+i])
	}
	// result 与 finalized 总是最后两个槽位
	info.Result, _ = values[len(values)-2].(uint8)
	info.Finalized, _ = values[len(values)-1].(bool)
	return info, nil
}

// DecodePools 按长度识别形态后解码 getBettingPools：4 个槽位 WithDraw，3 个 NoDraw。
// 最后一个槽位总是 owner liquidity。
func DecodePools(raw []byte) (Pools, error) {
	v, err := variantByLength(raw, poolSlotsWithDraw, poolSlotsNoDraw, "getBettingPools")
	if err != nil {
		return Pools{}, err
	}
	values, err := v.ABI().Unpack("getBettingPools", raw)
	if err != nil {
		return Pools{}, fmt.Errorf("解码 getBettingPools(%s) 失败: %w", v, err)
	}
	p := Pools{Variant: v, Totals: make([]*big.Int, v.Outcomes())}
	for i := range p.Totals {
		p.Totals[i] = bigOf(values[i])
	}
	p.OwnerLiquidity = bigOf(values[len(values)-1])
	return p, nil
}

// DecodeUserBets 按长度识别形态后解码 getUserBets：4 个槽位 WithDraw，3 个 NoDraw。
// 最后一个槽位总是 hasClaimed。
func DecodeUserBets(raw []byte) (UserBets, error) {
	v, err := variantByLength(raw, betSlotsWithDraw, betSlotsNoDraw, "getUserBets")
	if err != nil {
		return UserBets{}, err
	}
	values, err := v.ABI().Unpack("getUserBets", raw)
	if err != nil {
		return UserBets{}, fmt.Errorf("解码 getUserBets(%s) 失败: %w", v, err)
	}
	b := UserBets{Variant: v, Amounts: make([]*big.Int, v.Outcomes())}
	for i := range b.Amounts {
		b.Amounts[i] = bigOf(values[i])
	}
	b.HasClaimed, _ = values[len(values)-1].(bool)
	return b, nil
}

func variantByLength(raw []byte, withDraw, noDraw int, method string) (MatchVariant, error) {
	switch len(raw) {
	case withDraw * slot:
		return WithDraw, nil
	case noDraw * slot:
		return NoDraw, nil
	default:
		return 0, fmt.Errorf("%w: %s 长度 %d", ErrUnknownShape, method, len(raw))
	}
}

func u64(v interface{}) uint64 {
	if b, ok := v.(*big.Int); ok && b.IsUint64() {
		return b.Uint64()
	}
	return 0
}

func bigOf(v interface{}) *big.Int {
	if b, ok := v.(*big.Int); ok && b != nil {
		return b
	}
	return new(big.Int)
}
