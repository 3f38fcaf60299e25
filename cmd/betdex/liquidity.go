package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/units"
)

func liquidityCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "add-liquidity",
			Usage:     "添加流动性；不给 amountB 时按池子比例计算",
			ArgsUsage: "<tokenA> <tokenB> <amountA> [amountB]",
			Flags: []cli.Flag{
				slippageFlag(),
				&cli.BoolFlag{Name: "dry-run", Usage: "只显示报价"},
			},
			Action: withApp(runAddLiquidity),
		},
		{
			Name:      "remove-liquidity",
			Usage:     "按百分比移除流动性",
			ArgsUsage: "<tokenA> <tokenB> <percent>",
			Flags: []cli.Flag{
				slippageFlag(),
				&cli.BoolFlag{Name: "dry-run", Usage: "只显示报价"},
			},
			Action: withApp(runRemoveLiquidity),
		},
	}
}

// tokenPair <tokenA> <tokenB>
func (a *app) tokenPair(cmd *cli.Command) (tokens.Token, tokens.Token, error) {
	var pair [2]tokens.Token
	for i, name := range []string{"tokenA", "tokenB"} {
		ref, err := arg(cmd, i, name)
		if err != nil {
			return tokens.Token{}, tokens.Token{}, err
		}
		if pair[i], err = a.tokens.Find(ref); err != nil {
			return tokens.Token{}, tokens.Token{}, fmt.Errorf("%s: %w", ref, err)
		}
	}
	if pair[0].Address == pair[1].Address {
		return tokens.Token{}, tokens.Token{}, fmt.Errorf("不能用同一种代币组成交易对")
	}
	return pair[0], pair[1], nil
}

func runAddLiquidity(ctx context.Context, cmd *cli.Command, a *app) error {
	ta, tb, err := a.tokenPair(cmd)
	if err != nil {
		return err
	}
	rawA, err := arg(cmd, 2, "amountA")
	if err != nil {
		return err
	}
	amountA, err := units.ParseUnits(rawA, ta.Decimals)
	if err != nil {
		return err
	}
	bps, err := a.slippage(cmd)
	if err != nil {
		return err
	}
	q, err := a.swap.QuoteAddLiquidity(ctx, ta, tb, amountA)
	if err != nil {
		return err
	}
	var amountB *big.Int
	if q != nil {
		amountB = q.AmountB
	}
	if cmd.Args().Len() > 3 {
		if amountB, err = units.ParseUnits(cmd.Args().Get(3), tb.Decimals); err != nil {
			return err
		}
	}
	if amountB == nil {
		return fmt.Errorf("%s/%s 池子为空或不存在，需要指定 amountB", ta.Symbol, tb.Symbol)
	}

	if a.json && cmd.Bool("dry-run") {
		return printJSON(map[string]any{"quote": q, "amountB": amountB})
	}
	if !a.json {
		if err := printAddQuote(q, ta, tb, amountA, amountB); err != nil {
			return err
		}
	}
	if cmd.Bool("dry-run") {
		return nil
	}
	r, err := a.swap.AddLiquidity(ctx, ta, tb, amountA, amountB, bps)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("添加流动性", r)
}

func printAddQuote(q *swap.AddQuote, ta, tb tokens.Token, amountA, amountB *big.Int) error {
	t := newTable("", "")
	t.row("存入", units.FormatAmount(amountA, ta.Decimals)+" "+ta.Symbol)
	t.row("存入", units.FormatAmount(amountB, tb.Decimals)+" "+tb.Symbol)
	if q == nil {
		t.row("池子", "新建")
		return t.flush()
	}
	t.row("池子", q.Pool.Pair.Hex())
	t.row("份额", q.Share.StringFixed(2)+"%")
	if q.Liquidity != nil {
		t.row("LP", units.FormatAmount(q.Liquidity, swap.LPDecimals))
	}
	return t.flush()
}

func runRemoveLiquidity(ctx context.Context, cmd *cli.Command, a *app) error {
	ta, tb, err := a.tokenPair(cmd)
	if err != nil {
		return err
	}
	rawPct, err := arg(cmd, 2, "percent")
	if err != nil {
		return err
	}
	percent, err := strconv.ParseInt(rawPct, 10, 64)
	if err != nil {
		return fmt.Errorf("无效比例 %q", rawPct)
	}
	bps, err := a.slippage(cmd)
	if err != nil {
		return err
	}
	owner, err := a.session.Account()
	if err != nil {
		return err
	}
	found, err := a.swap.ScanPositions(ctx, owner, []tokens.Token{ta, tb})
	if err != nil {
		return err
	}
	if len(found) == 0 {
		return fmt.Errorf("没有 %s/%s 的 LP 仓位", ta.Symbol, tb.Symbol)
	}
	q, err := a.swap.QuoteRemoveLiquidity(ctx, found[0], percent, bps)
	if err != nil {
		return err
	}
	if a.json && cmd.Bool("dry-run") {
		return printJSON(q)
	}
	if !a.json {
		t := newTable("", "")
		t.row("移除 LP", units.FormatAmount(q.Liquidity, swap.LPDecimals)+fmt.Sprintf("（%d%%）", q.Percent))
		t.row("收到", units.FormatAmount(q.AmountA, ta.Decimals)+" "+ta.Symbol)
		t.row("收到", units.FormatAmount(q.AmountB, tb.Decimals)+" "+tb.Symbol)
		t.row("最少收到", units.FormatAmount(q.MinA, ta.Decimals)+" "+ta.Symbol+" / "+
			units.FormatAmount(q.MinB, tb.Decimals)+" "+tb.Symbol)
		if err := t.flush(); err != nil {
			return err
		}
	}
	if cmd.Bool("dry-run") {
		return nil
	}
	r, err := a.swap.RemoveLiquidity(ctx, found[0], percent, bps)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("移除流动性", r)
}
