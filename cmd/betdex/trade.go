package main

import (
	"context"
	"fmt"
	"math/big"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/staking"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/units"
)

func slippageFlag() cli.Flag {
	return &cli.Int64Flag{Name: "slippage-bps", Usage: "滑点（基点），缺省取配置"}
}

func tradeCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "balances",
			Usage:  "代币余额",
			Flags:  []cli.Flag{userFlag()},
			Action: withApp(runBalances),
		},
		{
			Name:      "quote",
			Usage:     "兑换报价",
			ArgsUsage: "<from> <to> <amount>",
			Flags:     []cli.Flag{slippageFlag()},
			Action:    withApp(runQuote),
		},
		{
			Name:      "swap",
			Usage:     "兑换",
			ArgsUsage: "<from> <to> <amount>",
			Flags: []cli.Flag{
				slippageFlag(),
				&cli.BoolFlag{Name: "yes", Usage: "价格影响过高时仍然兑换"},
			},
			Action: withApp(runSwap),
		},
		{
			Name:   "positions",
			Usage:  "LP 仓位",
			Flags:  []cli.Flag{userFlag()},
			Action: withApp(runPositions),
		},
		{
			Name:      "stake",
			Usage:     "质押",
			ArgsUsage: "<pool> <amount>",
			Action:    withApp(runStake),
		},
		{
			Name:      "unstake",
			Usage:     "取回质押",
			ArgsUsage: "<pool> <amount>",
			Action:    withApp(runUnstake),
		},
		{
			Name:      "claim-rewards",
			Usage:     "领取质押奖励",
			ArgsUsage: "<pool>",
			Action:    withApp(runClaimRewards),
		},
		{
			Name:      "stake-info",
			Usage:     "质押池概况",
			ArgsUsage: "[pool]",
			Flags:     []cli.Flag{userFlag()},
			Action:    withApp(runStakeInfo),
		},
	}
}

func runBalances(ctx context.Context, cmd *cli.Command, a *app) error {
	owner, err := a.user(cmd)
	if err != nil {
		return err
	}
	list := a.tokens.Balances(ctx, owner)
	if a.json {
		return printJSON(list)
	}
	t := newTable("SYMBOL", "NAME", "BALANCE", "ADDRESS")
	for _, h := range list {
		t.row(h.Token.Symbol, h.Token.Name, h.Display, h.Token.Address.Hex())
	}
	return t.flush()
}

// tradeArgs <from> <to> <amount>
func (a *app) tradeArgs(cmd *cli.Command) (from, to tokens.Token, amount string, err error) {
	refs := make([]string, 3)
	for i, name := range []string{"from", "to", "amount"} {
		if refs[i], err = arg(cmd, i, name); err != nil {
			return from, to, "", err
		}
	}
	if from, err = a.tokens.Find(refs[0]); err != nil {
		return from, to, "", fmt.Errorf("%s: %w", refs[0], err)
	}
	if to, err = a.tokens.Find(refs[1]); err != nil {
		return from, to, "", fmt.Errorf("%s: %w", refs[1], err)
	}
	if from.Address == to.Address {
		return from, to, "", fmt.Errorf("不能兑换同一种代币")
	}
	return from, to, refs[2], nil
}

func (a *app) slippage(cmd *cli.Command) (int64, error) {
	if !cmd.IsSet("slippage-bps") {
		return a.swap.DefaultSlippage(), nil
	}
	bps := cmd.Int64("slippage-bps")
	if bps < 0 || bps > swap.MaxBps {
		return 0, fmt.Errorf("滑点必须在 0 到 %d 之间", swap.MaxBps)
	}
	return bps, nil
}

func (a *app) quote(ctx context.Context, cmd *cli.Command) (*swap.Quote, error) {
	from, to, raw, err := a.tradeArgs(cmd)
	if err != nil {
		return nil, err
	}
	amount, err := units.ParseUnits(raw, from.Decimals)
	if err != nil {
		return nil, err
	}
	bps, err := a.slippage(cmd)
	if err != nil {
		return nil, err
	}
	q, err := a.swap.QuoteSwap(ctx, amount, from, to, bps)
	if err != nil {
		return nil, err
	}
	if q == nil {
		return nil, fmt.Errorf("没有可用的交易对: %s/%s", from.Symbol, to.Symbol)
	}
	return q, nil
}

func (a *app) printQuote(q *swap.Quote) error {
	if a.json {
		return printJSON(map[string]any{"quote": q, "display": q.Display()})
	}
	d := q.Display()
	t := newTable("", "")
	t.row("收到", d["amountOut"]+" "+q.To.Symbol)
	t.row("最少收到", d["minReceived"]+" "+q.To.Symbol)
	t.row("汇率", fmt.Sprintf("1 %s = %s %s", q.From.Symbol, d["rate"], q.To.Symbol))
	t.row("价格影响", d["priceImpact"]+"%")
	t.row("手续费", d["lpFee"]+" "+q.From.Symbol)
	t.row("滑点", strconv.FormatFloat(float64(q.SlippageBps)/100, 'f', -1, 64)+"%")
	return t.flush()
}

func runQuote(ctx context.Context, cmd *cli.Command, a *app) error {
	q, err := a.quote(ctx, cmd)
	if err != nil {
		return err
	}
	return a.printQuote(q)
}

func runSwap(ctx context.Context, cmd *cli.Command, a *app) error {
	q, err := a.quote(ctx, cmd)
	if err != nil {
		return err
	}
	if q.HighImpact && !cmd.Bool("yes") {
		if err := a.printQuote(q); err != nil {
			return err
		}
		return fmt.Errorf("价格影响 %s%% 过高，确认后加 --yes 重试", q.Display()["priceImpact"])
	}
	r, err := a.swap.Swap(ctx, q.AmountIn, q.From, q.To, q.SlippageBps)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("兑换", r)
}

func runPositions(ctx context.Context, cmd *cli.Command, a *app) error {
	owner, err := a.user(cmd)
	if err != nil {
		return err
	}
	list, err := a.swap.ScanPositions(ctx, owner, a.tokens.All())
	if err != nil {
		return err
	}
	details := make([]*swap.PositionDetails, 0, len(list))
	for _, p := range list {
		d, err := a.swap.PositionDetails(ctx, p)
		if err != nil {
			logger.Warnf("读取仓位 %s 失败: %v", p.Pair.Hex(), err)
			d = &swap.PositionDetails{Position: p}
		}
		details = append(details, d)
	}
	if a.json {
		return printJSON(details)
	}
	t := newTable("PAIR", "TOKENS", "LP", "POOLED", "SHARE")
	for _, d := range details {
		p := d.Position
		pooled, share := "-", "-"
		if d.AmountA != nil {
			pooled = units.FormatAmount(d.AmountA, p.TokenA.Decimals) + " " + p.TokenA.Symbol + " / " +
				units.FormatAmount(d.AmountB, p.TokenB.Decimals) + " " + p.TokenB.Symbol
			share = d.Share.StringFixed(2) + "%"
		}
		t.row(p.Pair.Hex(), p.TokenA.Symbol+"/"+p.TokenB.Symbol, units.FormatAmount(p.LPBalance, swap.LPDecimals), pooled, share)
	}
	return t.flush()
}

// poolAmount <pool> <amount>，金额按池子代币精度解析
func (a *app) poolAmount(cmd *cli.Command) (staking.Pool, *big.Int, error) {
	id, err := arg(cmd, 0, "pool")
	if err != nil {
		return staking.Pool{}, nil, err
	}
	raw, err := arg(cmd, 1, "amount")
	if err != nil {
		return staking.Pool{}, nil, err
	}
	p, err := a.staking.Pool(id)
	if err != nil {
		return staking.Pool{}, nil, err
	}
	amount, err := units.ParseUnits(raw, p.Decimals)
	if err != nil {
		return staking.Pool{}, nil, err
	}
	return p, amount, nil
}

func runStake(ctx context.Context, cmd *cli.Command, a *app) error {
	p, amount, err := a.poolAmount(cmd)
	if err != nil {
		return err
	}
	r, err := a.staking.Stake(ctx, p.ID, amount)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("质押", r)
}

func runUnstake(ctx context.Context, cmd *cli.Command, a *app) error {
	p, amount, err := a.poolAmount(cmd)
	if err != nil {
		return err
	}
	r, err := a.staking.Unstake(ctx, p.ID, amount)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("取回", r)
}

func runClaimRewards(ctx context.Context, cmd *cli.Command, a *app) error {
	id, err := arg(cmd, 0, "pool")
	if err != nil {
		return err
	}
	r, err := a.staking.ClaimRewards(ctx, id)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("领取奖励", r)
}

func runStakeInfo(ctx context.Context, cmd *cli.Command, a *app) error {
	owner, err := a.user(cmd)
	if err != nil {
		return err
	}
	pools := a.staking.Pools()
	if cmd.Args().Len() > 0 {
		p, err := a.staking.Pool(cmd.Args().First())
		if err != nil {
			return err
		}
		pools = []staking.Pool{p}
	}
	views := make([]*staking.Overview, 0, len(pools))
	for _, p := range pools {
		o, err := a.staking.Overview(ctx, p.ID, owner)
		if err != nil {
			return err
		}
		views = append(views, o)
	}
	if a.json {
		out := make([]map[string]any, 0, len(views))
		for _, o := range views {
			out = append(out, map[string]any{"pool": o.Pool, "deployed": o.Deployed, "display": o.Display()})
		}
		return printJSON(out)
	}
	t := newTable("POOL", "APY", "STAKED", "REWARDS", "BONUS", "WALLET", "MIN")
	for _, o := range views {
		d := o.Display()
		name := o.Pool.Name
		if !o.Deployed {
			name += "（未部署）"
		}
		t.row(name, d["apy"], d["staked"], d["pending_rewards"], d["pending_bonus"],
			d["wallet"]+" "+o.Pool.Symbol, d["min_stake"])
	}
	return t.flush()
}
