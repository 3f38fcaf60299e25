package swap

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/units"
)

func (s *Service) erc20(addr common.Address) *chain.Contract {
	return chain.NewContract(s.session, "erc20", addr, contracts.ERC20)
}

// deadline 最新区块时间 + DeadlineSeconds
func (s *Service) deadline(ctx context.Context) (*big.Int, error) {
	t, err := s.session.BlockTime(ctx)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetUint64(t + uint64(s.opts.DeadlineSeconds)), nil
}

// Swap 按 slippageBps 计算最小输出后兑换。输入为基础资产时附带原生币，
// 否则先检查 allowance，不足时授权。
func (s *Service) Swap(ctx context.Context, amountIn *big.Int, from, to tokens.Token, slippageBps int64) (*types.Receipt, error) {
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, fmt.Errorf("兑换数量必须大于 0")
	}
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	path := s.Path(from.Address, to.Address)
	out, err := s.amountsOut(ctx, amountIn, path)
	if err != nil {
		return nil, err
	}
	minOut := SlippageMin(out, slippageBps)
	deadline, err := s.deadline(ctx)
	if err != nil {
		return nil, err
	}

	entry := s.log().WithFields(logrus.Fields{"from": from.Symbol, "to": to.Symbol, "amount": units.FormatUnits(amountIn, from.Decimals)})
	if s.isNative(from.Address) {
		receipt, err := s.router.Transact(ctx, amountIn, "swapExactETHForTokens", minOut, path, owner, deadline)
		if err == nil {
			entry.Info("兑换成功")
		}
		return receipt, err
	}

	a := s.session.NewApproval("swap", s.addrs.Router)
	if err := a.Ensure(ctx, s.erc20(from.Address), from.Symbol, owner, amountIn); err != nil {
		return nil, err
	}
	method := "swapExactTokensForTokens"
	if s.isNative(to.Address) {
		method = "swapExactTokensForETH"
	}
	receipt, err := s.router.Transact(ctx, nil, method, amountIn, minOut, path, owner, deadline)
	if err != nil {
		return receipt, a.Wrap(method, err)
	}
	entry.Info("兑换成功")
	return receipt, nil
}

// AddLiquidity 添加流动性，最小值按 slippageBps 计算。任一侧是基础资产时走 addLiquidityETH。
func (s *Service) AddLiquidity(ctx context.Context, a, b tokens.Token, amountA, amountB *big.Int, slippageBps int64) (*types.Receipt, error) {
	if amountA == nil || amountB == nil || amountA.Sign() <= 0 || amountB.Sign() <= 0 {
		return nil, fmt.Errorf("两侧数量都必须大于 0")
	}
	if a.Address == b.Address {
		return nil, fmt.Errorf("不能用同一种代币组成交易对")
	}
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	deadline, err := s.deadline(ctx)
	if err != nil {
		return nil, err
	}
	minA, minB := SlippageMin(amountA, slippageBps), SlippageMin(amountB, slippageBps)
	ap := s.session.NewApproval("add liquidity", s.addrs.Router)

	if s.isNative(a.Address) || s.isNative(b.Address) {
		token, tokenAmt, tokenMin, nativeAmt, nativeMin := b, amountB, minB, amountA, minA
		if s.isNative(b.Address) {
			token, tokenAmt, tokenMin, nativeAmt, nativeMin = a, amountA, minA, amountB, minB
		}
		if err := ap.Ensure(ctx, s.erc20(token.Address), token.Symbol, owner, tokenAmt); err != nil {
			return nil, err
		}
		receipt, err := s.router.Transact(ctx, nativeAmt, "addLiquidityETH",
			token.Address, tokenAmt, tokenMin, nativeMin, owner, deadline)
		return receipt, ap.Wrap("addLiquidityETH", err)
	}

	if err := ap.Ensure(ctx, s.erc20(a.Address), a.Symbol, owner, amountA); err != nil {
		return nil, err
	}
	if err := ap.Ensure(ctx, s.erc20(b.Address), b.Symbol, owner, amountB); err != nil {
		return nil, err
	}
	receipt, err := s.router.Transact(ctx, nil, "addLiquidity",
		a.Address, b.Address, amountA, amountB, minA, minB, owner, deadline)
	return receipt, ap.Wrap("addLiquidity", err)
}

// RemoveLiquidity 移除 percent% 的仓位。LP 授权不足时先授权交易对代币。
func (s *Service) RemoveLiquidity(ctx context.Context, p Position, percent, slippageBps int64) (*types.Receipt, error) {
	owner, err := s.session.Account()
	if err != nil {
		return nil, err
	}
	q, err := s.QuoteRemoveLiquidity(ctx, p, percent, slippageBps)
	if err != nil {
		return nil, err
	}
	deadline, err := s.deadline(ctx)
	if err != nil {
		return nil, err
	}
	ap := s.session.NewApproval("remove liquidity", s.addrs.Router)
	if err := ap.Ensure(ctx, s.pair(p.Pair), "LP", owner, q.Liquidity); err != nil {
		return nil, err
	}

	if s.isNative(p.TokenA.Address) || s.isNative(p.TokenB.Address) {
		token, tokenMin, nativeMin := p.TokenB.Address, q.MinB, q.MinA
		if s.isNative(p.TokenB.Address) {
			token, tokenMin, nativeMin = p.TokenA.Address, q.MinA, q.MinB
		}
		receipt, err := s.router.Transact(ctx, nil, "removeLiquidityETH",
			token, q.Liquidity, tokenMin, nativeMin, owner, deadline)
		return receipt, ap.Wrap("removeLiquidityETH", err)
	}
	receipt, err := s.router.Transact(ctx, nil, "removeLiquidity",
		p.TokenA.Address, p.TokenB.Address, q.Liquidity, q.MinA, q.MinB, owner, deadline)
	return receipt, ap.Wrap("removeLiquidity", err)
}
