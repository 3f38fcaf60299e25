package betting

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/ipfs"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/units"
)

// DefaultLeague 没有联赛信息时的展示名
const DefaultLeague = "Sports Betting"

// Directory factory 目录，*factory.Directory 满足该接口
type Directory interface {
	ListFactories(ctx context.Context) []factory.Factory
	Current(ctx context.Context) factory.Factory
	Contract(addr common.Address) *chain.Contract
}

// Options 服务参数
type Options struct {
	// Concurrency 并发读取比赛的上限
	Concurrency int
	// Gateway IPFS 网关域名
	Gateway       string
	DefaultLeague string
	// DefaultMaxBet 新建比赛时合约自带的单注上限，与之不同才额外发交易设置
	DefaultMaxBet string
	// HistoryBlocks BetHistory 回看的区块数
	HistoryBlocks uint64
	// PastWindow 新建比赛允许的开赛时间最早早于链上时间多久
	PastWindow time.Duration
	// Pinner 图片上传，nil 表示未配置
	Pinner ipfs.Pinner
}

// OptionsFromConfig 从配置构建参数
func OptionsFromConfig(cfg *config.Config, pinner ipfs.Pinner) Options {
	return Options{
		Concurrency:   cfg.Betting.Concurrency,
		Gateway:       cfg.IPFS.Gateway,
		DefaultLeague: cfg.Betting.DefaultLeague,
		DefaultMaxBet: cfg.Betting.DefaultMaxBet,
		HistoryBlocks: cfg.Betting.HistoryBlocks,
		PastWindow:    time.Duration(cfg.Betting.MatchPastWindowHr) * time.Hour,
		Pinner:        pinner,
	}
}

// Service 比赛读取、聚合与下注
type Service struct {
	session *chain.Session
	dir     Directory
	opts    Options
}

// NewService 创建服务
func NewService(s *chain.Session, dir Directory, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	if opts.DefaultLeague == "" {
		opts.DefaultLeague = DefaultLeague
	}
	if opts.DefaultMaxBet == "" {
		opts.DefaultMaxBet = "10"
	}
	if opts.HistoryBlocks == 0 {
		opts.HistoryBlocks = 10_000
	}
	if opts.PastWindow <= 0 {
		opts.PastWindow = 7 * 24 * time.Hour
	}
	return &Service{session: s, dir: dir, opts: opts}
}

func (s *Service) log() *logrus.Entry {
	return logger.WithField("component", "betting")
}

func (s *Service) bind(addr common.Address, v MatchVariant) *chain.Contract {
	return chain.NewContract(s.session, "match", addr, v.ABI())
}

// readInfo 读取并解码 getMatchInfo；expect 为 0 时接受任意形态
func (s *Service) readInfo(ctx context.Context, addr common.Address, expect MatchVariant) (MatchInfo, error) {
	v := expect
	if v == 0 {
		// 两种形态的 getMatchInfo selector 相同
		v = WithDraw
	}
	raw, err := s.bind(addr, v).CallRaw(ctx, "getMatchInfo")
	if err != nil {
		return MatchInfo{}, err
	}
	info, err := DecodeMatchInfo(raw)
	if err != nil {
		return MatchInfo{}, err
	}
	if expect != 0 && info.Variant != expect {
		return MatchInfo{}, fmt.Errorf("%w: 列表为 %s，合约为 %s", ErrVariantMismatch, expect, info.Variant)
	}
	return info, nil
}

func (s *Service) readUserBets(ctx context.Context, addr common.Address, v MatchVariant, user common.Address) (UserBets, error) {
	raw, err := s.bind(addr, v).CallRaw(ctx, "getUserBets", user)
	if err != nil {
		return UserBets{}, err
	}
	bets, err := DecodeUserBets(raw)
	if err != nil {
		return UserBets{}, err
	}
	if bets.Variant != v {
		return UserBets{}, fmt.Errorf("%w: getUserBets 为 %s", ErrVariantMismatch, bets.Variant)
	}
	return bets, nil
}

func (s *Service) readPools(ctx context.Context, addr common.Address, v MatchVariant) (Pools, error) {
	raw, err := s.bind(addr, v).CallRaw(ctx, "getBettingPools")
	if err != nil {
		return Pools{}, err
	}
	pools, err := DecodePools(raw)
	if err != nil {
		return Pools{}, err
	}
	if pools.Variant != v {
		return Pools{}, fmt.Errorf("%w: getBettingPools 为 %s", ErrVariantMismatch, pools.Variant)
	}
	return pools, nil
}

// TeamImages 队伍图片的 HTTP 地址，空串表示使用占位图
type TeamImages struct {
	TeamA string `json:"teamA"`
	TeamB string `json:"teamB"`
}

// For 选项对应的图片（平局没有图片）
func (t TeamImages) For(c Choice) string {
	switch c {
	case ChoiceA:
		return t.TeamA
	case ChoiceB:
		return t.TeamB
	default:
		return ""
	}
}

// readImages 读取队伍图片；旧合约没有该方法或读取失败时返回空
func (s *Service) readImages(ctx context.Context, addr common.Address, v MatchVariant) TeamImages {
	out, err := s.bind(addr, v).Call(ctx, "getTeamImages")
	if err != nil {
		s.log().WithField("match", addr.Hex()).Debugf("读取队伍图片失败: %v", err)
		return TeamImages{}
	}
	a, _ := out[0].(string)
	b, _ := out[1].(string)
	return TeamImages{TeamA: ipfs.GatewayURL(s.opts.Gateway, a), TeamB: ipfs.GatewayURL(s.opts.Gateway, b)}
}

// readContractCap getMaxBetAmount；旧合约没有该方法时返回 nil
func (s *Service) readContractCap(ctx context.Context, addr common.Address, v MatchVariant) *big.Int {
	out, err := s.bind(addr, v).Call(ctx, "getMaxBetAmount")
	if err != nil {
		s.log().WithField("match", addr.Hex()).Debugf("读取合约单注上限失败，视为无上限: %v", err)
		return nil
	}
	if limit, ok := out[0].(*big.Int); ok {
		return limit
	}
	return nil
}

// league 联赛名：显式传入 > factory.matchLeague > 默认
func (s *Service) league(ctx context.Context, explicit string, fac common.Address, match common.Address) string {
	if l := strings.TrimSpace(explicit); l != "" {
		return l
	}
	if fac != (common.Address{}) {
		out, err := s.dir.Contract(fac).Call(ctx, "matchLeague", match)
		if err == nil {
			if l, _ := out[0].(string); strings.TrimSpace(l) != "" {
				return l
			}
		}
	}
	return s.opts.DefaultLeague
}

// MatchStatus 比赛卡片状态
type MatchStatus string

const (
	StatusUpcoming MatchStatus = "upcoming"
	StatusLive     MatchStatus = "live"
	StatusFinished MatchStatus = "finished"
)

// StatusOf 比赛状态：已结算为 finished，未开赛为 upcoming，否则 live
func StatusOf(info MatchInfo, now time.Time) MatchStatus {
	switch {
	case info.Finalized:
		return StatusFinished
	case info.StartTime > uint64(now.Unix()):
		return StatusUpcoming
	default:
		return StatusLive
	}
}

// MatchCard 单场比赛的完整展示数据
type MatchCard struct {
	Address          common.Address `json:"address"`
	Factory          common.Address `json:"factory"`
	FactoryName      string         `json:"factoryName,omitempty"`
	League           string         `json:"league"`
	Variant          MatchVariant   `json:"variant"`
	TeamA            string         `json:"teamA"`
	TeamB            string         `json:"teamB"`
	StartTime        uint64         `json:"startTime"`
	BettingCloseTime uint64         `json:"bettingCloseTime"`
	Odds             []uint64       `json:"odds"`
	Result           uint8          `json:"result"`
	ResultLabel      string         `json:"resultLabel"`
	Finalized        bool           `json:"finalized"`
	Status           MatchStatus    `json:"status"`
	Open             bool           `json:"open"`
	PoolTotals       []*big.Int     `json:"poolTotals"`
	OwnerLiquidity   *big.Int       `json:"ownerLiquidity"`
	// TotalPool 比赛合约的原生币余额
	TotalPool *big.Int   `json:"totalPool"`
	Images    TeamImages `json:"images"`
	Info      MatchInfo  `json:"-"`
}

// TotalPoolDisplay 展示用
func (c MatchCard) TotalPoolDisplay() string {
	return units.FormatAmount(c.TotalPool, NativeDecimals)
}

// MatchRef 读取单场比赛时的上下文
type MatchRef struct {
	Address     common.Address
	Variant     MatchVariant // 0 表示按返回数据识别
	Factory     common.Address
	FactoryName string
	League      string
}

// Match 读取单场比赛卡片。Factory 为空时使用当前 factory 查询联赛名。
func (s *Service) Match(ctx context.Context, ref MatchRef) (*MatchCard, error) {
	info, err := s.readInfo(ctx, ref.Address, ref.Variant)
	if err != nil {
		return nil, err
	}
	return s.card(ctx, ref, info)
}

func (s *Service) card(ctx context.Context, ref MatchRef, info MatchInfo) (*MatchCard, error) {
	pools, err := s.readPools(ctx, ref.Address, info.Variant)
	if err != nil {
		return nil, err
	}
	balance, err := s.session.NativeBalance(ctx, ref.Address)
	if err != nil {
		return nil, err
	}
	fac := ref.Factory
	if fac == (common.Address{}) {
		fac = s.dir.Current(ctx).Address
	}
	now := s.session.Now()
	return &MatchCard{
		Address:          ref.Address,
		Factory:          fac,
		FactoryName:      ref.FactoryName,
		League:           s.league(ctx, ref.League, fac, ref.Address),
		Variant:          info.Variant,
		TeamA:            info.TeamA,
		TeamB:            info.TeamB,
		StartTime:        info.StartTime,
		BettingCloseTime: info.BettingCloseTime,
		Odds:             info.Odds,
		Result:           info.Result,
		ResultLabel:      info.ResultLabel(),
		Finalized:        info.Finalized,
		Status:           StatusOf(info, now),
		Open:             info.OpenForBetting(now),
		PoolTotals:       pools.Totals,
		OwnerLiquidity:   pools.OwnerLiquidity,
		TotalPool:        balance,
		Images:           s.readImages(ctx, ref.Address, info.Variant),
		Info:             info,
	}, nil
}

// MaxBet 某场比赛某个选项的最大下注额
func (s *Service) MaxBet(ctx context.Context, addr common.Address, choice Choice) (MaxBet, error) {
	info, err := s.readInfo(ctx, addr, 0)
	if err != nil {
		return MaxBet{}, err
	}
	if !choice.Valid(info.Variant) {
		return MaxBet{}, fmt.Errorf("%w: 选项 %d 对 %s 比赛无效", ErrInvalidChoice, choice, info.Variant)
	}
	pools, err := s.readPools(ctx, addr, info.Variant)
	if err != nil {
		return MaxBet{}, err
	}
	return ComputeMaxBet(pools, info.OddsFor(choice), s.readContractCap(ctx, addr, info.Variant)), nil
}
