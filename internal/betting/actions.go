package betting

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/betbot/betdex/pkg/units"
)

// ErrInvalidAmount 金额不合法
var ErrInvalidAmount = errors.New("金额必须大于 0")

// ErrExceedsMaxBet 超过最大下注额
var ErrExceedsMaxBet = errors.New("超过最大下注额")

// ErrInvalidChoice 选项或结果码不适用于该比赛形态
var ErrInvalidChoice = errors.New("无效选项")

// BetResult 下注结果；Match 为下注后重新读取的比赛，读取失败时为 nil
type BetResult struct {
	Receipt *types.Receipt
	Match   *MatchCard
}

// PlaceBet 校验金额后下注。金额必须大于 0，且在有上限时不超过 MaxBet。
// 用户拒绝与合约 revert 以 *chain.TxError 区分返回，不重试。
func (s *Service) PlaceBet(ctx context.Context, addr common.Address, choice Choice, amount *big.Int) (*BetResult, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	info, err := s.readInfo(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	if !choice.Valid(info.Variant) {
		return nil, fmt.Errorf("%w: 选项 %d 对 %s 比赛无效", ErrInvalidChoice, choice, info.Variant)
	}
	pools, err := s.readPools(ctx, addr, info.Variant)
	if err != nil {
		return nil, err
	}
	limit := ComputeMaxBet(pools, info.OddsFor(choice), s.readContractCap(ctx, addr, info.Variant))
	if limit.Limited() && units.ToDecimal(amount, NativeDecimals).GreaterThan(limit.Max) {
		return nil, fmt.Errorf("%w: %s > %s", ErrExceedsMaxBet, units.FormatUnits(amount, NativeDecimals), limit.Max.StringFixed(4))
	}

	receipt, err := s.bind(addr, info.Variant).Transact(ctx, amount, "bet", uint8(choice))
	if err != nil {
		return nil, err
	}
	s.log().WithField("match", addr.Hex()).Infof("下注成功: %s %s", info.Label(choice), units.FormatUnits(amount, NativeDecimals))

	res := &BetResult{Receipt: receipt}
	if card, err := s.Match(ctx, MatchRef{Address: addr, Variant: info.Variant}); err != nil {
		s.log().WithField("match", addr.Hex()).Warnf("下注后刷新比赛失败: %v", err)
	} else {
		res.Match = card
	}
	return res, nil
}

// Claim 领取奖金或退款
func (s *Service) Claim(ctx context.Context, addr common.Address) (*types.Receipt, error) {
	return s.transact(ctx, addr, nil, "claim")
}

// DepositLiquidity 庄家注入流动性
func (s *Service) DepositLiquidity(ctx context.Context, addr common.Address, amount *big.Int) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.transact(ctx, addr, amount, "depositLiquidity")
}

// WithdrawProfit 庄家提取利润
func (s *Service) WithdrawProfit(ctx context.Context, addr common.Address) (*types.Receipt, error) {
	return s.transact(ctx, addr, nil, "withdrawProfit")
}

// SetTeamImages 设置队伍图片 URI（ipfs:// 或 http(s)://）
func (s *Service) SetTeamImages(ctx context.Context, addr common.Address, teamA, teamB string) (*types.Receipt, error) {
	return s.transact(ctx, addr, nil, "setTeamImages", teamA, teamB)
}

// SetMaxBetAmount 设置单注上限
func (s *Service) SetMaxBetAmount(ctx context.Context, addr common.Address, amount *big.Int) (*types.Receipt, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return s.transact(ctx, addr, nil, "setMaxBetAmount", amount)
}

// SetMatchVisible 在 factory 列表中显示/隐藏比赛，不删除合约
func (s *Service) SetMatchVisible(ctx context.Context, fac, addr common.Address, visible bool) (*types.Receipt, error) {
	return s.dir.Contract(fac).Transact(ctx, nil, "setMatchActive", addr, visible)
}

// transact 先识别比赛形态再发送交易
func (s *Service) transact(ctx context.Context, addr common.Address, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	info, err := s.readInfo(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	return s.bind(addr, info.Variant).Transact(ctx, value, method, args...)
}
