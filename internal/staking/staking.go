// Package staking 质押池：读取质押信息、APY、奖励池，执行质押/解押/领取奖励。
package staking

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/units"
)

var (
	// ErrUnknownPool 没有该 ID 的质押池
	ErrUnknownPool = errors.New("未知质押池")
	// ErrNotDeployed 质押合约地址为空或链上没有代码
	ErrNotDeployed = errors.New("质押合约尚未部署")
	// ErrInvalidAmount 数量必须大于 0
	ErrInvalidAmount = errors.New("数量必须大于 0")
	// ErrBelowMinimum 低于最小质押量
	ErrBelowMinimum = errors.New("低于最小质押数量")
	// ErrExceedsStake 解押数量超过已质押数量
	ErrExceedsStake = errors.New("解押数量超过已质押数量")
	// ErrNothingToClaim 没有待领取奖励
	ErrNothingToClaim = errors.New("没有可领取的奖励")
)

// PoolType 质押资产类型
type PoolType string

const (
	Native PoolType = "native"
	Token  PoolType = "token"
)

// Pool 一个质押池
type Pool struct {
	ID            string
	Name          string
	Type          PoolType
	Symbol        string
	TokenAddress  common.Address // Native 池为零地址
	Decimals      int32
	Contract      common.Address
	ConfiguredAPY decimal.Decimal
	MinStake      *big.Int
}

// Configured 合约地址非零
func (p Pool) Configured() bool {
	return p.Contract != (common.Address{})
}

func (p Pool) abi() *abi.ABI {
	if p.Type == Native {
		return contracts.NativeStaking
	}
	return contracts.TokenStaking
}

// PoolsFromConfig 解析配置里的质押池
func PoolsFromConfig(list []config.StakingPoolConfig) ([]Pool, error) {
	pools := make([]Pool, 0, len(list))
	for _, c := range list {
		p := Pool{
			ID:            c.ID,
			Name:          c.Name,
			Type:          PoolType(strings.ToLower(c.Type)),
			Symbol:        c.TokenSymbol,
			Decimals:      c.TokenDecimals,
			ConfiguredAPY: decimal.NewFromFloat(c.APY),
			MinStake:      new(big.Int),
		}
		if p.Type != Native && p.Type != Token {
			return nil, fmt.Errorf("质押池 %s: 未知类型 %q", c.ID, c.Type)
		}
		if c.ContractAddress != "" {
			p.Contract = common.HexToAddress(c.ContractAddress)
		}
		if p.Type == Token {
			if !common.IsHexAddress(c.TokenAddress) {
				return nil, fmt.Errorf("质押池 %s: 无效代币地址 %q", c.ID, c.TokenAddress)
			}
			p.TokenAddress = common.HexToAddress(c.TokenAddress)
		}
		if c.MinStake != "" {
			minStake, err := units.ParseUnits(c.MinStake, c.TokenDecimals)
			if err != nil {
				return nil, fmt.Errorf("质押池 %s: min_stake: %w", c.ID, err)
			}
			p.MinStake = minStake
		}
		pools = append(pools, p)
	}
	return pools, nil
}

// StakeInfo getStakeInfo 返回值
type StakeInfo struct {
	Amount            *big.Int `json:"amount"`
	StartTime         *big.Int `json:"startTime"`
	LastClaimTime     *big.Int `json:"lastClaimTime"`
	TotalClaimed      *big.Int `json:"totalClaimed"`
	PendingRewards    *big.Int `json:"pendingRewards"`
	UnlockTime        *big.Int `json:"unlockTime"`
	PendingBonus      *big.Int `json:"pendingBonus"`
	TotalBonusClaimed *big.Int `json:"totalBonusClaimed"`
}

func zeroInfo() StakeInfo {
	return StakeInfo{
		Amount: new(big.Int), StartTime: new(big.Int), LastClaimTime: new(big.Int), TotalClaimed: new(big.Int),
		PendingRewards: new(big.Int), UnlockTime: new(big.Int), PendingBonus: new(big.Int), TotalBonusClaimed: new(big.Int),
	}
}

// Claimable 待领取奖励 + 待领取 bonus
func (i StakeInfo) Claimable() *big.Int {
	return new(big.Int).Add(i.PendingRewards, i.PendingBonus)
}

// BonusPool getBonusPoolInfo 返回值
type BonusPool struct {
	TotalBonusPool   *big.Int `json:"totalBonusPool"`
	AccBonusPerShare *big.Int `json:"accBonusPerShare"`
}

// Service 质押服务
type Service struct {
	session *chain.Session
	pools   []Pool
}

// NewService 创建质押服务
func NewService(s *chain.Session, pools []Pool) *Service {
	return &Service{session: s, pools: pools}
}

func (s *Service) log() *logrus.Entry {
	return logger.WithField("component", "staking")
}

// Pools 全部质押池（配置顺序）
func (s *Service) Pools() []Pool {
	return append([]Pool(nil), s.pools...)
}

// Pool 按 ID 查找
func (s *Service) Pool(id string) (Pool, error) {
	for _, p := range s.pools {
		if strings.EqualFold(p.ID, id) {
			return p, nil
		}
	}
	return Pool{}, fmt.Errorf("%w: %s", ErrUnknownPool, id)
}

func (s *Service) contract(p Pool) *chain.Contract {
	return chain.NewContract(s.session, p.ID+"-staking", p.Contract, p.abi())
}

// Deployed 合约地址已配置且链上有代码
func (s *Service) Deployed(ctx context.Context, p Pool) (bool, error) {
	if !p.Configured() {
		return false, nil
	}
	return s.session.HasCode(ctx, p.Contract)
}

func (s *Service) requireDeployed(ctx context.Context, p Pool) error {
	ok, err := s.Deployed(ctx, p)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotDeployed, p.Name)
	}
	return nil
}

// StakeInfo 用户在池中的质押信息。合约未部署时返回全 0。
func (s *Service) StakeInfo(ctx context.Context, p Pool, user common.Address) (StakeInfo, error) {
	ok, err := s.Deployed(ctx, p)
	if err != nil {
		return zeroInfo(), err
	}
	if !ok {
		return zeroInfo(), nil
	}
	info := zeroInfo()
	if err := s.contract(p).CallInto(ctx, &info, "getStakeInfo", user); err != nil {
		return zeroInfo(), err
	}
	return info, nil
}

// BonusPoolInfo 奖励池信息，合约未部署时返回 0
func (s *Service) BonusPoolInfo(ctx context.Context, p Pool) (BonusPool, error) {
	out := BonusPool{TotalBonusPool: new(big.Int), AccBonusPerShare: new(big.Int)}
	ok, err := s.Deployed(ctx, p)
	if err != nil || !ok {
		return out, err
	}
	if err := s.contract(p).CallInto(ctx, &out, "getBonusPoolInfo"); err != nil {
		return BonusPool{TotalBonusPool: new(big.Int), AccBonusPerShare: new(big.Int)}, err
	}
	return out, nil
}

// APY 合约返回的年化（百分比整数）；合约未部署或读取失败时使用配置值
func (s *Service) APY(ctx context.Context, p Pool) decimal.Decimal {
	ok, err := s.Deployed(ctx, p)
	if err != nil || !ok {
		return p.ConfiguredAPY
	}
	v, err := s.contract(p).Call(ctx, "getAPY")
	if err != nil {
		s.log().Debugf("%s getAPY 失败，使用配置值: %v", p.ID, err)
		return p.ConfiguredAPY
	}
	apy, ok := v[0].(*big.Int)
	if !ok {
		return p.ConfiguredAPY
	}
	return decimal.NewFromBigInt(apy, 0)
}

// WalletBalance 用户持有的可质押资产
func (s *Service) WalletBalance(ctx context.Context, p Pool, user common.Address) (*big.Int, error) {
	if p.Type == Native {
		return s.session.NativeBalance(ctx, user)
	}
	v, err := s.erc20(p).Call(ctx, "balanceOf", user)
	if err != nil {
		return nil, err
	}
	bal, ok := v[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf 返回值类型错误")
	}
	return bal, nil
}

func (s *Service) erc20(p Pool) *chain.Contract {
	return chain.NewContract(s.session, p.Symbol, p.TokenAddress, contracts.ERC20)
}

// Overview 质押页面一个池的全部展示数据
type Overview struct {
	Pool     Pool
	Deployed bool
	Info     StakeInfo
	Bonus    BonusPool
	APY      decimal.Decimal
	Wallet   *big.Int
}

// Display 展示字符串
func (o *Overview) Display() map[string]string {
	d := o.Pool.Decimals
	return map[string]string{
		"apy":                 units.FormatAPY(o.APY) + "%",
		"staked":              units.FormatAmount(o.Info.Amount, d),
		"pending_rewards":     units.FormatAmount(o.Info.PendingRewards, d),
		"pending_bonus":       units.FormatAmount(o.Info.PendingBonus, d),
		"total_claimed":       units.FormatAmount(o.Info.TotalClaimed, d),
		"total_bonus_claimed": units.FormatAmount(o.Info.TotalBonusClaimed, d),
		"bonus_pool":          units.FormatAmount(o.Bonus.TotalBonusPool, d),
		"wallet":              units.FormatAmount(o.Wallet, d),
		"min_stake":           units.FormatUnits(o.Pool.MinStake, d),
	}
}

// Overview 并发读取一个池的展示数据。单项读取失败按 0 处理并记录日志。
func (s *Service) Overview(ctx context.Context, id string, user common.Address) (*Overview, error) {
	p, err := s.Pool(id)
	if err != nil {
		return nil, err
	}
	deployed, err := s.Deployed(ctx, p)
	if err != nil {
		return nil, err
	}
	o := &Overview{Pool: p, Deployed: deployed, Info: zeroInfo(), Wallet: new(big.Int),
		Bonus: BonusPool{TotalBonusPool: new(big.Int), AccBonusPerShare: new(big.Int)}}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := s.StakeInfo(gctx, p, user)
		if err != nil {
			s.log().Warnf("%s 读取质押信息失败: %v", p.ID, err)
			return nil
		}
		o.Info = info
		return nil
	})
	g.Go(func() error {
		bonus, err := s.BonusPoolInfo(gctx, p)
		if err != nil {
			s.log().Warnf("%s 读取奖励池失败: %v", p.ID, err)
			return nil
		}
		o.Bonus = bonus
		return nil
	})
	g.Go(func() error {
		o.APY = s.APY(gctx, p)
		return nil
	})
	g.Go(func() error {
		bal, err := s.WalletBalance(gctx, p, user)
		if err != nil {
			s.log().Warnf("%s 读取钱包余额失败: %v", p.ID, err)
			return nil
		}
		o.Wallet = bal
		return nil
	})
	_ = g.Wait()
	return o, nil
}

// Stake 质押 amount。代币池 allowance 不足时先授权质押合约。
func (s *Service) Stake(ctx context.Context, id string, amount *big.Int) (*types.Receipt, error) {
	p, err := s.Pool(id)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if amount.Cmp(p.MinStake) < 0 {
		return nil, fmt.Errorf("%w: 最少 %s %s", ErrBelowMinimum, units.FormatUnits(p.MinStake, p.Decimals), p.Symbol)
	}
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	if err := s.requireDeployed(ctx, p); err != nil {
		return nil, err
	}
	entry := s.log().WithFields(logrus.Fields{"pool": p.ID, "amount": units.FormatUnits(amount, p.Decimals)})

	if p.Type == Native {
		receipt, err := s.contract(p).Transact(ctx, amount, "stake")
		if err == nil {
			entry.Info("质押成功")
		}
		return receipt, err
	}

	ap := s.session.NewApproval("stake", p.Contract)
	if err := ap.Ensure(ctx, s.erc20(p), p.Symbol, owner, amount); err != nil {
		return nil, err
	}
	receipt, err := s.contract(p).Transact(ctx, nil, "stake", amount)
	if err != nil {
		return receipt, ap.Wrap("stake", err)
	}
	entry.Info("质押成功")
	return receipt, nil
}

// Unstake 解押 amount。已质押数量可读时先检查是否足够。
func (s *Service) Unstake(ctx context.Context, id string, amount *big.Int) (*types.Receipt, error) {
	p, err := s.Pool(id)
	if err != nil {
		return nil, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	if err := s.requireDeployed(ctx, p); err != nil {
		return nil, err
	}
	if info, err := s.StakeInfo(ctx, p, owner); err == nil && amount.Cmp(info.Amount) > 0 {
		return nil, fmt.Errorf("%w: 已质押 %s %s", ErrExceedsStake, units.FormatUnits(info.Amount, p.Decimals), p.Symbol)
	}
	receipt, err := s.contract(p).Transact(ctx, nil, "unstake", amount)
	if err == nil {
		s.log().WithField("pool", p.ID).Infof("解押 %s %s", units.FormatUnits(amount, p.Decimals), p.Symbol)
	}
	return receipt, err
}

// ClaimRewards 领取奖励；待领取奖励与 bonus 都为 0 时拒绝
func (s *Service) ClaimRewards(ctx context.Context, id string) (*types.Receipt, error) {
	p, err := s.Pool(id)
	if err != nil {
		return nil, err
	}
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	if err := s.requireDeployed(ctx, p); err != nil {
		return nil, err
	}
	info, err := s.StakeInfo(ctx, p, owner)
	if err != nil {
		return nil, err
	}
	claimable := info.Claimable()
	if claimable.Sign() == 0 {
		return nil, ErrNothingToClaim
	}
	receipt, err := s.contract(p).Transact(ctx, nil, "claimRewards")
	if err == nil {
		s.log().WithField("pool", p.ID).Infof("领取奖励 %s %s", units.FormatAmount(claimable, p.Decimals), p.Symbol)
	}
	return receipt, err
}
