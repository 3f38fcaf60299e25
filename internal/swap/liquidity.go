package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/units"
)

// Pool 交易对当前状态，储备按 TokenA/TokenB 的顺序排列
type Pool struct {
	Pair        common.Address `json:"pair"`
	TokenA      tokens.Token   `json:"tokenA"`
	TokenB      tokens.Token   `json:"tokenB"`
	ReserveA    *big.Int       `json:"reserveA"`
	ReserveB    *big.Int       `json:"reserveB"`
	TotalSupply *big.Int       `json:"totalSupply"`
}

// PriceAPerB 1 个 A 值多少 B
func (p *Pool) PriceAPerB() decimal.Decimal {
	return ratio(units.ToDecimal(p.ReserveB, p.TokenB.Decimals), units.ToDecimal(p.ReserveA, p.TokenA.Decimals))
}

// PriceBPerA 1 个 B 值多少 A
func (p *Pool) PriceBPerA() decimal.Decimal {
	return ratio(units.ToDecimal(p.ReserveA, p.TokenA.Decimals), units.ToDecimal(p.ReserveB, p.TokenB.Decimals))
}

func (s *Service) pair(addr common.Address) *chain.Contract {
	return chain.NewContract(s.session, "pair", addr, contracts.Pair)
}

// Pool 读取交易对储备与 LP 总量；交易对不存在时返回 nil, nil
func (s *Service) Pool(ctx context.Context, a, b tokens.Token) (*Pool, error) {
	addr, err := s.PairAddress(ctx, a.Address, b.Address)
	if err != nil {
		return nil, err
	}
	if contracts.IsZero(addr) {
		return nil, nil
	}
	return s.readPool(ctx, addr, a, b)
}

func (s *Service) readPool(ctx context.Context, addr common.Address, a, b tokens.Token) (*Pool, error) {
	pc := s.pair(addr)
	var (
		reserves []interface{}
		token0   common.Address
		supply   *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := pc.Call(gctx, "getReserves")
		reserves = v
		return err
	})
	g.Go(func() error {
		v, err := pc.Call(gctx, "token0")
		if err == nil {
			token0, _ = v[0].(common.Address)
		}
		return err
	})
	g.Go(func() error {
		v, err := pc.Call(gctx, "totalSupply")
		if err == nil {
			supply, _ = v[0].(*big.Int)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("读取交易对 %s 失败: %w", addr.Hex(), err)
	}
	r0, _ := reserves[0].(*big.Int)
	r1, _ := reserves[1].(*big.Int)
	p := &Pool{Pair: addr, TokenA: a, TokenB: b, ReserveA: r0, ReserveB: r1, TotalSupply: supply}
	if token0 != a.Address {
		p.ReserveA, p.ReserveB = r1, r0
	}
	if p.TotalSupply == nil {
		p.TotalSupply = new(big.Int)
	}
	return p, nil
}

// AddQuote 添加流动性报价
type AddQuote struct {
	Pool *Pool `json:"pool"`
	// AmountB 按当前储备比例对应的 B 数量；空池时为 nil，由用户自定
	AmountA   *big.Int `json:"amountA"`
	AmountB   *big.Int `json:"amountB"`
	Liquidity *big.Int `json:"liquidity"`
	// Share 添加后占池子的百分比
	Share decimal.Decimal `json:"share"`
}

// QuoteAddLiquidity 给定 A 的数量，按储备比例算出 B 与可得 LP。交易对不存在时返回 nil, nil。
// 以 B 为输入时交换 a、b 调用即可。
func (s *Service) QuoteAddLiquidity(ctx context.Context, a, b tokens.Token, amountA *big.Int) (*AddQuote, error) {
	if amountA == nil || amountA.Sign() <= 0 {
		return nil, fmt.Errorf("数量必须大于 0")
	}
	pool, err := s.Pool(ctx, a, b)
	if err != nil || pool == nil {
		return nil, err
	}
	q := &AddQuote{Pool: pool, AmountA: amountA}
	if pool.ReserveA.Sign() == 0 || pool.ReserveB.Sign() == 0 {
		q.Share = hundredPct
		return q, nil
	}
	q.AmountB = mulDiv(amountA, pool.ReserveB, pool.ReserveA)
	if pool.TotalSupply.Sign() > 0 {
		q.Liquidity = mulDiv(amountA, pool.TotalSupply, pool.ReserveA)
		lp := units.ToDecimal(q.Liquidity, LPDecimals)
		total := units.ToDecimal(pool.TotalSupply, LPDecimals).Add(lp)
		q.Share = ratio(lp, total).Mul(hundredPct)
	}
	return q, nil
}

// Position 用户的 LP 仓位
type Position struct {
	Pair      common.Address `json:"pair"`
	TokenA    tokens.Token   `json:"tokenA"`
	TokenB    tokens.Token   `json:"tokenB"`
	LPBalance *big.Int       `json:"lpBalance"`
}

// ScanPositions 检查列表中两两组合的交易对，返回 LP 余额大于 0 的仓位。
// 单个交易对读取失败时跳过。结果按列表顺序排列。
func (s *Service) ScanPositions(ctx context.Context, owner common.Address, list []tokens.Token) ([]Position, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	type combo struct{ a, b tokens.Token }
	var combos []combo
	for i := 0; i < len(list); i++ {
		for j := i + 1; j < len(list); j++ {
			combos = append(combos, combo{list[i], list[j]})
		}
	}

	found := make([]*Position, len(combos))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, c := range combos {
		g.Go(func() error {
			addr, err := s.PairAddress(gctx, c.a.Address, c.b.Address)
			if err != nil {
				s.log().Warnf("读取交易对 %s/%s 失败，跳过: %v", c.a.Symbol, c.b.Symbol, err)
				return nil
			}
			if contracts.IsZero(addr) {
				return nil
			}
			v, err := s.pair(addr).Call(gctx, "balanceOf", owner)
			if err != nil {
				s.log().Warnf("读取 %s/%s LP 余额失败，跳过: %v", c.a.Symbol, c.b.Symbol, err)
				return nil
			}
			bal, _ := v[0].(*big.Int)
			if bal != nil && bal.Sign() > 0 {
				found[i] = &Position{Pair: addr, TokenA: c.a, TokenB: c.b, LPBalance: bal}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []Position
	for _, p := range found {
		if p != nil {
			out = append(out, *p)
		}
	}
	return out, nil
}

// PositionDetails 仓位对应的代币数量与份额
type PositionDetails struct {
	Position Position `json:"position"`
	AmountA  *big.Int `json:"amountA"`
	AmountB  *big.Int `json:"amountB"`
	// Share 百分比，精确到 0.01%
	Share decimal.Decimal `json:"share"`
}

// PositionDetails 按储备与 LP 总量折算仓位
func (s *Service) PositionDetails(ctx context.Context, p Position) (*PositionDetails, error) {
	pool, err := s.readPool(ctx, p.Pair, p.TokenA, p.TokenB)
	if err != nil {
		return nil, err
	}
	if pool.TotalSupply.Sign() == 0 {
		return nil, fmt.Errorf("交易对 %s 没有流动性", p.Pair.Hex())
	}
	shareBps := mulDiv(p.LPBalance, bpsDenom, pool.TotalSupply)
	return &PositionDetails{
		Position: p,
		AmountA:  mulDiv(pool.ReserveA, p.LPBalance, pool.TotalSupply),
		AmountB:  mulDiv(pool.ReserveB, p.LPBalance, pool.TotalSupply),
		Share:    decimal.NewFromBigInt(shareBps, -2),
	}, nil
}

// RemoveQuote 移除流动性报价
type RemoveQuote struct {
	Position  Position `json:"position"`
	Percent   int64    `json:"percent"`
	Liquidity *big.Int `json:"liquidity"`
	AmountA   *big.Int `json:"amountA"`
	AmountB   *big.Int `json:"amountB"`
	MinA      *big.Int `json:"minA"`
	MinB      *big.Int `json:"minB"`
}

// QuoteRemoveLiquidity 移除 percent% 的仓位可得的代币数量，以及按滑点计算的最小值
func (s *Service) QuoteRemoveLiquidity(ctx context.Context, p Position, percent, slippageBps int64) (*RemoveQuote, error) {
	if percent <= 0 || percent > 100 {
		return nil, fmt.Errorf("移除比例必须在 1-100 之间，当前 %d", percent)
	}
	pool, err := s.readPool(ctx, p.Pair, p.TokenA, p.TokenB)
	if err != nil {
		return nil, err
	}
	if pool.TotalSupply.Sign() == 0 {
		return nil, fmt.Errorf("交易对 %s 没有流动性", p.Pair.Hex())
	}
	lp := mulDiv(p.LPBalance, big.NewInt(percent), big.NewInt(100))
	q := &RemoveQuote{
		Position:  p,
		Percent:   percent,
		Liquidity: lp,
		AmountA:   mulDiv(pool.ReserveA, lp, pool.TotalSupply),
		AmountB:   mulDiv(pool.ReserveB, lp, pool.TotalSupply),
	}
	q.MinA = SlippageMin(q.AmountA, slippageBps)
	q.MinB = SlippageMin(q.AmountB, slippageBps)
	return q, nil
}
