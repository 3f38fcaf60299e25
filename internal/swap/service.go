// Package swap 计算兑换与流动性报价并提交路由交易。
// 链上金额全部是 *big.Int，decimal 只用于汇率、占比等展示值。
package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/units"
)

// LPDecimals LP 代币精度
const LPDecimals = 18

// Options 兑换参数
type Options struct {
	// SlippageBps 默认滑点，50 = 0.5%
	SlippageBps int64
	// DeadlineSeconds 交易截止时间，从最新区块时间算起
	DeadlineSeconds int64
	// HighImpactPct 价格影响超过该值时需要确认
	HighImpactPct decimal.Decimal
	// Concurrency 扫描 LP 仓位时的并发数
	Concurrency int
}

// OptionsFromConfig 从配置构建参数
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SlippageBps:     cfg.Swap.SlippageBps,
		DeadlineSeconds: cfg.Swap.DeadlineSeconds,
		HighImpactPct:   decimal.NewFromFloat(cfg.Swap.HighImpactPct),
		Concurrency:     cfg.Betting.Concurrency,
	}
}

// Service 兑换与流动性
type Service struct {
	session *chain.Session
	addrs   contracts.Addresses
	router  *chain.Contract
	factory *chain.Contract
	opts    Options
}

// NewService 创建服务
func NewService(s *chain.Session, addrs contracts.Addresses, opts Options) *Service {
	if opts.DeadlineSeconds <= 0 {
		opts.DeadlineSeconds = 1800
	}
	if opts.HighImpactPct.IsZero() {
		opts.HighImpactPct = decimal.NewFromInt(5)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &Service{
		session: s,
		addrs:   addrs,
		router:  chain.NewContract(s, "router", addrs.Router, contracts.Router),
		factory: chain.NewContract(s, "swapFactory", addrs.SwapFactory, contracts.SwapFactory),
		opts:    opts,
	}
}

func (s *Service) log() *logrus.Entry {
	return logger.WithField("component", "swap")
}

// DefaultSlippage 配置的默认滑点
func (s *Service) DefaultSlippage() int64 { return s.opts.SlippageBps }

func (s *Service) isNative(a common.Address) bool {
	return a == s.addrs.WrappedNative
}

// Path 任一侧是基础资产时直连，否则经基础资产两跳
func (s *Service) Path(from, to common.Address) []common.Address {
	base := s.addrs.WrappedNative
	if from == base || to == base {
		return []common.Address{from, to}
	}
	return []common.Address{from, base, to}
}

// PairAddress getPair，不存在时返回零地址
func (s *Service) PairAddress(ctx context.Context, a, b common.Address) (common.Address, error) {
	v, err := s.factory.Call(ctx, "getPair", a, b)
	if err != nil {
		return common.Address{}, err
	}
	pair, _ := v[0].(common.Address)
	return pair, nil
}

// pathExists 路径上每一跳都有交易对
func (s *Service) pathExists(ctx context.Context, path []common.Address) (bool, error) {
	for i := 0; i+1 < len(path); i++ {
		pair, err := s.PairAddress(ctx, path[i], path[i+1])
		if err != nil {
			return false, err
		}
		if contracts.IsZero(pair) {
			return false, nil
		}
	}
	return true, nil
}

func (s *Service) amountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	v, err := s.router.Call(ctx, "getAmountsOut", amountIn, path)
	if err != nil {
		return nil, err
	}
	amounts, _ := v[0].([]*big.Int)
	if len(amounts) != len(path) {
		return nil, fmt.Errorf("getAmountsOut 返回 %d 个数量，路径长度 %d", len(amounts), len(path))
	}
	return amounts[len(amounts)-1], nil
}

// Quote 兑换报价
type Quote struct {
	From        tokens.Token     `json:"from"`
	To          tokens.Token     `json:"to"`
	Path        []common.Address `json:"path"`
	AmountIn    *big.Int         `json:"amountIn"`
	AmountOut   *big.Int         `json:"amountOut"`
	MinReceived *big.Int         `json:"minReceived"`
	SlippageBps int64            `json:"slippageBps"`
	// PriceImpact 百分比
	PriceImpact decimal.Decimal `json:"priceImpact"`
	// LPFee 以输入代币计的 0.3% 手续费
	LPFee decimal.Decimal `json:"lpFee"`
	// Rate 1 个输入代币可换的输出数量；InverseRate 反之
	Rate        decimal.Decimal `json:"rate"`
	InverseRate decimal.Decimal `json:"inverseRate"`
	// HighImpact 需要用户确认
	HighImpact bool `json:"highImpact"`
}

// Display 展示用字符串
func (q *Quote) Display() map[string]string {
	return map[string]string{
		"amountOut":   units.FormatSwapAmount(units.ToDecimal(q.AmountOut, q.To.Decimals)),
		"minReceived": units.FormatSwapAmount(units.ToDecimal(q.MinReceived, q.To.Decimals)),
		"priceImpact": units.FormatSwapAmount(q.PriceImpact),
		"lpFee":       units.FormatSwapAmount(q.LPFee),
		"rate":        units.FormatSwapAmount(q.Rate),
	}
}

// QuoteSwap 通过路由 getAmountsOut 报价，并用 0.001 个输入代币的参考交易估算价格影响。
// 路径上缺少交易对时返回 nil, nil。
func (s *Service) QuoteSwap(ctx context.Context, amountIn *big.Int, from, to tokens.Token, slippageBps int64) (*Quote, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("兑换数量必须大于 0")
	}
	if from.Address == to.Address {
		return nil, fmt.Errorf("不能兑换同一种代币")
	}
	path := s.Path(from.Address, to.Address)
	ok, err := s.pathExists(ctx, path)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log().WithFields(logrus.Fields{"from": from.Symbol, "to": to.Symbol}).Debug("没有交易对，跳过报价")
		return nil, nil
	}

	out, err := s.amountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}
	ref := referenceAmount(from.Decimals)
	refOut, err := s.amountsOut(ctx, ref, path)
	if err != nil {
		return nil, err
	}

	in := units.ToDecimal(amountIn, from.Decimals)
	outD := units.ToDecimal(out, to.Decimals)
	rate := ratio(outD, in)
	refRate := ratio(units.ToDecimal(refOut, to.Decimals), units.ToDecimal(ref, from.Decimals))
	impact := priceImpact(refRate, rate)

	return &Quote{
		From:        from,
		To:          to,
		Path:        path,
		AmountIn:    amountIn,
		AmountOut:   out,
		MinReceived: SlippageMin(out, slippageBps),
		SlippageBps: slippageBps,
		PriceImpact: impact,
		LPFee:       in.Mul(lpFeeRate),
		Rate:        rate,
		InverseRate: ratio(in, outD),
		HighImpact:  impact.GreaterThan(s.opts.HighImpactPct),
	}, nil
}
