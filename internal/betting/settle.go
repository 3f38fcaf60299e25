package betting

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/betbot/betdex/pkg/units"
)

var (
	hundred      = big.NewInt(100)
	safetyMargin = decimal.RequireFromString("0.99")
)

// NativeDecimals 原生币精度
const NativeDecimals = 18

// Payout 赢得的金额 floor(stake * odds / 100)；odds 为 0 时按 100 计
func Payout(stake *big.Int, odds uint64) *big.Int {
	if stake == nil || stake.Sign() <= 0 {
		return new(big.Int)
	}
	if odds == 0 {
		odds = 100
	}
	out := new(big.Int).Mul(stake, new(big.Int).SetUint64(odds))
	return out.Quo(out, hundred)
}

// Outcome 用户在一场比赛中的结局
type Outcome string

const (
	OutcomeNone     Outcome = "none"     // 没有下注
	OutcomeOpen     Outcome = "open"     // 尚未结算
	OutcomeWon      Outcome = "won"      // 押中结果
	OutcomeLost     Outcome = "lost"     // 未押中
	OutcomeRefunded Outcome = "refunded" // 比赛取消，全额退款
)

// Settlement 结算推导
type Settlement struct {
	Outcome Outcome  `json:"outcome"`
	Payout  *big.Int `json:"payout"`
	// Claimable 已结算、有可领金额且尚未领取
	Claimable bool `json:"claimable"`
}

// Settle 根据比赛结果和用户下注推导结局与可领金额。
// 取消时退还所有选项的下注；赢时只按结果对应选项计算赔付。
func Settle(info MatchInfo, bets UserBets) Settlement {
	total := bets.Total()
	s := Settlement{Payout: new(big.Int)}
	switch {
	case total.Sign() == 0:
		s.Outcome = OutcomeNone
		return s
	case !info.Finalized:
		s.Outcome = OutcomeOpen
		return s
	case info.Cancelled():
		s.Outcome = OutcomeRefunded
		s.Payout = total
	default:
		winner := Choice(info.Result)
		if stake := bets.Amount(winner); winner.Valid(info.Variant) && stake.Sign() > 0 {
			s.Outcome = OutcomeWon
			s.Payout = Payout(stake, info.OddsFor(winner))
		} else {
			s.Outcome = OutcomeLost
		}
	}
	s.Claimable = !bets.HasClaimed && s.Payout.Sign() > 0
	return s
}

// Position 用户在某个选项上的下注
type Position struct {
	Choice Choice   `json:"choice"`
	Label  string   `json:"label"`
	Amount *big.Int `json:"amount"`
	Odds   uint64   `json:"odds"`
	// PotentialPayout 该选项获胜时的赔付
	PotentialPayout *big.Int `json:"potentialPayout"`
	// Won 已结算且为获胜选项（取消时所有选项都视为退款，不算获胜）
	Won bool `json:"won"`
}

// Positions 列出用户有下注的选项
func Positions(info MatchInfo, bets UserBets) []Position {
	var out []Position
	for c := ChoiceA; int(c) <= info.Variant.Outcomes(); c++ {
		amount := bets.Amount(c)
		if amount.Sign() <= 0 {
			continue
		}
		odds := info.OddsFor(c)
		out = append(out, Position{
			Choice:          c,
			Label:           info.Label(c),
			Amount:          amount,
			Odds:            odds,
			PotentialPayout: Payout(amount, odds),
			Won:             info.Finalized && !info.Cancelled() && uint8(c) == info.Result,
		})
	}
	return out
}

// MaxBet 某个选项允许的最大下注额
type MaxBet struct {
	// PoolCap (ownerLiquidity + totalBets) / (odds/100)
	PoolCap *big.Int `json:"poolCap"`
	// ContractCap getMaxBetAmount，nil 表示合约没有该方法
	ContractCap *big.Int `json:"contractCap,omitempty"`
	// Max min(PoolCap, ContractCap) × 0.99，向下取整到 4 位小数
	Max decimal.Decimal `json:"max"`
}

// Wei Max 对应的最小单位整数
func (m MaxBet) Wei() *big.Int {
	return units.FromDecimal(m.Max, NativeDecimals)
}

// Limited 是否有上限；为 0 时客户端不做上限校验，交给合约
func (m MaxBet) Limited() bool {
	return m.Max.IsPositive()
}

// ComputeMaxBet 计算最大下注额，contractCap 为 nil 表示无合约上限
func ComputeMaxBet(pools Pools, odds uint64, contractCap *big.Int) MaxBet {
	if odds == 0 {
		odds = 100
	}
	total := new(big.Int).Add(pools.TotalBets(), bigOf(pools.OwnerLiquidity))
	poolCap := new(big.Int).Mul(total, hundred)
	poolCap.Quo(poolCap, new(big.Int).SetUint64(odds))

	effective := poolCap
	if contractCap != nil && contractCap.Cmp(effective) < 0 {
		effective = contractCap
	}
	capped := units.ToDecimal(effective, NativeDecimals).Mul(safetyMargin).Truncate(4)
	return MaxBet{PoolCap: poolCap, ContractCap: contractCap, Max: capped}
}
