// Package betting 读取比赛合约状态，推导下注上限、赔付和用户视图，并提交下注相关交易。
package betting

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/betbot/betdex/internal/contracts"
)

// MatchVariant 比赛合约的两种形态
type MatchVariant int

const (
	// NoDraw 两个结果：A / B
	NoDraw MatchVariant = iota + 1
	// WithDraw 三个结果：主 / 客 / 平
	WithDraw
)

func (v MatchVariant) String() string {
	switch v {
	case NoDraw:
		return "noDraw"
	case WithDraw:
		return "withDraw"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Outcomes 可下注的结果数
func (v MatchVariant) Outcomes() int {
	if v == WithDraw {
		return 3
	}
	return 2
}

// CancelCode 表示比赛取消的结果码
func (v MatchVariant) CancelCode() uint8 {
	if v == WithDraw {
		return 4
	}
	return 3
}

// ABI 对应的合约 ABI
func (v MatchVariant) ABI() *abi.ABI {
	if v == WithDraw {
		return contracts.MatchWithDraw
	}
	return contracts.MatchNoDraw
}

// 每种形态返回数据的头部长度（ABI 编码的 32 字节槽位数）
const (
	slot = 32

	infoSlotsWithDraw = 9
	infoSlotsNoDraw   = 8
	poolSlotsWithDraw = 4
	poolSlotsNoDraw   = 3
	betSlotsWithDraw  = 4
	betSlotsNoDraw    = 3
)

// Choice 下注选项，与合约的 uint8 编码一致
type Choice uint8

const (
	ChoiceA    Choice = 1 // 主队 / A 队
	ChoiceB    Choice = 2 // 客队 / B 队
	ChoiceDraw Choice = 3 // 平局，仅 WithDraw
)

// Valid 该选项在此形态下是否合法
func (c Choice) Valid(v MatchVariant) bool {
	return c >= ChoiceA && int(c) <= v.Outcomes()
}

// MatchInfo getMatchInfo 的解码结果
type MatchInfo struct {
	Variant          MatchVariant
	TeamA            string
	TeamB            string
	StartTime        uint64
	BettingCloseTime uint64
	// Odds 按 Choice-1 索引，×100 整数
	Odds      []uint64
	Result    uint8
	Finalized bool
}

// OddsFor 某个选项的赔率，0 视为 100（1.00×）
func (m MatchInfo) OddsFor(c Choice) uint64 {
	if !c.Valid(m.Variant) || int(c) > len(m.Odds) {
		return 100
	}
	if o := m.Odds[c-1]; o != 0 {
		return o
	}
	return 100
}

// Cancelled 结果码是否为取消
func (m MatchInfo) Cancelled() bool {
	return m.Result == m.Variant.CancelCode()
}

// OpenForBetting 未结算且尚未开赛
func (m MatchInfo) OpenForBetting(now time.Time) bool {
	return !m.Finalized && m.StartTime > uint64(now.Unix())
}

// Label 选项对应的名称
func (m MatchInfo) Label(c Choice) string {
	switch c {
	case ChoiceA:
		return m.TeamA
	case ChoiceB:
		return m.TeamB
	case ChoiceDraw:
		if m.Variant == WithDraw {
			return "Draw"
		}
	}
	return fmt.Sprintf("Choice %d", c)
}

// ResultLabel 结果展示文案
func (m MatchInfo) ResultLabel() string {
	switch {
	case m.Result == 0:
		return "Pending"
	case m.Cancelled():
		return "Cancelled"
	default:
		return m.Label(Choice(m.Result))
	}
}

// Pools getBettingPools 的解码结果
type Pools struct {
	Variant MatchVariant
	// Totals 按 Choice-1 索引的下注总额
	Totals         []*big.Int
	OwnerLiquidity *big.Int
}

// TotalBets 所有选项的下注总额
func (p Pools) TotalBets() *big.Int {
	return sum(p.Totals)
}

// UserBets getUserBets 的解码结果
type UserBets struct {
	Variant    MatchVariant
	Amounts    []*big.Int
	HasClaimed bool
}

// Amount 某个选项的下注额
func (b UserBets) Amount(c Choice) *big.Int {
	if !c.Valid(b.Variant) || int(c) > len(b.Amounts) {
		return new(big.Int)
	}
	return b.Amounts[c-1]
}

// Total 所有选项的下注额之和
func (b UserBets) Total() *big.Int {
	return sum(b.Amounts)
}

func sum(xs []*big.Int) *big.Int {
	total := new(big.Int)
	for _, x := range xs {
		if x != nil {
			total.Add(total, x)
		}
	}
	return total
}

// MarshalText JSON 中以名称输出
func (v MatchVariant) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// ParseVariant 解析 "withDraw" / "noDraw"
func ParseVariant(s string) (MatchVariant, error) {
	switch s {
	case "withDraw", "withdraw", "draw", "3":
		return WithDraw, nil
	case "noDraw", "nodraw", "2":
		return NoDraw, nil
	default:
		return 0, fmt.Errorf("未知比赛类型 %q", s)
	}
}
