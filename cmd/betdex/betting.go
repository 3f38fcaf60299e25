package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/pkg/units"
)

func scopeFlag() cli.Flag {
	return &cli.StringFlag{Name: "scope", Usage: "all / current / factory 地址", Value: "current"}
}

func userFlag() cli.Flag {
	return &cli.StringFlag{Name: "user", Usage: "查询地址，缺省为当前账户"}
}

func parseChoice(v string) (betting.Choice, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "a", "home":
		return betting.ChoiceA, nil
	case "2", "b", "away":
		return betting.ChoiceB, nil
	case "3", "draw", "x":
		return betting.ChoiceDraw, nil
	}
	return 0, fmt.Errorf("无效选项 %q（可用 a/b/draw）", v)
}

func bettingCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:   "factories",
			Usage:  "列出 betting factory",
			Action: withApp(runFactories),
		},
		{
			Name:      "select-factory",
			Usage:     "选择当前 factory",
			ArgsUsage: "<factory>",
			Action:    withApp(runSelectFactory),
		},
		{
			Name:   "matches",
			Usage:  "可下注的比赛",
			Flags:  []cli.Flag{scopeFlag()},
			Action: withApp(runMatches),
		},
		{
			Name:   "bets",
			Usage:  "未结算比赛上的下注",
			Flags:  []cli.Flag{scopeFlag(), userFlag()},
			Action: withApp(runBets),
		},
		{
			Name:   "claimable",
			Usage:  "可领取的奖金或退款",
			Flags:  []cli.Flag{scopeFlag(), userFlag()},
			Action: withApp(runClaimable),
		},
		{
			Name:   "history",
			Usage:  "已结算比赛的下注记录",
			Flags:  []cli.Flag{scopeFlag(), userFlag()},
			Action: withApp(runHistory),
		},
		{
			Name:      "bet",
			Usage:     "下注",
			ArgsUsage: "<match> <a|b|draw> <amount>",
			Action:    withApp(runBet),
		},
		{
			Name:      "claim",
			Usage:     "领取奖金或退款",
			ArgsUsage: "<match>",
			Action:    withApp(runClaim),
		},
		{
			Name:      "finalize",
			Usage:     "结算比赛并下架（管理员）",
			ArgsUsage: "<match> <result>",
			Flags: []cli.Flag{
				factoryFlag(),
				&cli.BoolFlag{Name: "retry-deactivation", Usage: "结果已上链，只重试下架"},
			},
			Action: withApp(runFinalize),
		},
	}
}

func runFactories(ctx context.Context, _ *cli.Command, a *app) error {
	list := a.factories.ListFactories(ctx)
	current := a.factories.Current(ctx)
	if a.json {
		return printJSON(map[string]any{"factories": list, "current": current.Address})
	}
	t := newTable("", "NAME", "ADDRESS", "ACTIVE", "MATCHES")
	for _, f := range list {
		mark := ""
		if f.Address == current.Address {
			mark = "*"
		}
		t.row(mark, f.Name, f.Address.Hex(), strconv.FormatBool(f.Active), strconv.FormatUint(f.TotalMatches(), 10))
	}
	return t.flush()
}

func runSelectFactory(ctx context.Context, cmd *cli.Command, a *app) error {
	v, err := arg(cmd, 0, "factory")
	if err != nil {
		return err
	}
	addr, err := parseAddress(v)
	if err != nil {
		return err
	}
	if _, ok := a.factories.Lookup(ctx, addr); !ok {
		return fmt.Errorf("factory %s 不在列表中", addr.Hex())
	}
	return a.factories.SelectFactory(addr)
}

func runMatches(ctx context.Context, cmd *cli.Command, a *app) error {
	sc, err := scope(cmd)
	if err != nil {
		return err
	}
	cards, err := a.betting.ActiveMatches(ctx, sc)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(cards)
	}
	t := newTable("MATCH", "LEAGUE", "TEAMS", "START", "ODDS", "POOL", "STATUS")
	for _, c := range cards {
		odds := make([]string, 0, len(c.Odds))
		for i := range c.Odds {
			odds = append(odds, units.OddsMultiplier(c.Info.OddsFor(betting.Choice(i+1))).StringFixed(2))
		}
		league := c.League
		if c.FactoryName != "" {
			league = c.FactoryName + " / " + league
		}
		t.row(c.Address.Hex(), league, c.TeamA+" vs "+c.TeamB, when(c.StartTime),
			strings.Join(odds, " / "), c.TotalPoolDisplay(), string(c.Status))
	}
	return t.flush()
}

func runBets(ctx context.Context, cmd *cli.Command, a *app) error {
	user, sc, err := userScope(cmd, a)
	if err != nil {
		return err
	}
	bets, err := a.betting.MyActiveBets(ctx, user, sc)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(bets)
	}
	t := newTable("MATCH", "TEAMS", "START", "PICK", "AMOUNT", "TO WIN")
	for _, b := range bets {
		for _, p := range b.Positions {
			t.row(short(b.Address.Hex()), b.TeamA+" vs "+b.TeamB, when(b.StartTime), p.Label,
				units.FormatAmount(p.Amount, betting.NativeDecimals), units.FormatAmount(p.PotentialPayout, betting.NativeDecimals))
		}
	}
	return t.flush()
}

func runClaimable(ctx context.Context, cmd *cli.Command, a *app) error {
	user, sc, err := userScope(cmd, a)
	if err != nil {
		return err
	}
	items, err := a.betting.ClaimableRewards(ctx, user, sc)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(items)
	}
	t := newTable("MATCH", "TEAMS", "RESULT", "OUTCOME", "PAYOUT")
	for _, c := range items {
		t.row(c.Address.Hex(), c.TeamA+" vs "+c.TeamB, c.ResultLabel, string(c.Outcome),
			units.FormatAmount(c.Payout, betting.NativeDecimals))
	}
	return t.flush()
}

func runHistory(ctx context.Context, cmd *cli.Command, a *app) error {
	user, sc, err := userScope(cmd, a)
	if err != nil {
		return err
	}
	items, err := a.betting.History(ctx, user, sc)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(items)
	}
	t := newTable("MATCH", "TEAMS", "START", "RESULT", "OUTCOME", "PAYOUT", "CLAIMED")
	for _, h := range items {
		t.row(short(h.Address.Hex()), h.TeamA+" vs "+h.TeamB, when(h.StartTime), h.ResultLabel, string(h.Outcome),
			units.FormatAmount(h.Payout, betting.NativeDecimals), strconv.FormatBool(h.Claimed))
	}
	return t.flush()
}

func userScope(cmd *cli.Command, a *app) (common.Address, betting.Scope, error) {
	user, err := a.user(cmd)
	if err != nil {
		return common.Address{}, betting.Scope{}, err
	}
	sc, err := scope(cmd)
	return user, sc, err
}

func runBet(ctx context.Context, cmd *cli.Command, a *app) error {
	rawMatch, err := arg(cmd, 0, "match")
	if err != nil {
		return err
	}
	rawChoice, err := arg(cmd, 1, "choice")
	if err != nil {
		return err
	}
	rawAmount, err := arg(cmd, 2, "amount")
	if err != nil {
		return err
	}
	addr, err := parseAddress(rawMatch)
	if err != nil {
		return err
	}
	choice, err := parseChoice(rawChoice)
	if err != nil {
		return err
	}
	amount, err := units.ParseUnits(rawAmount, betting.NativeDecimals)
	if err != nil {
		return err
	}
	res, err := a.betting.PlaceBet(ctx, addr, choice, amount)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("下注", res.Receipt)
}

func runClaim(ctx context.Context, cmd *cli.Command, a *app) error {
	v, err := arg(cmd, 0, "match")
	if err != nil {
		return err
	}
	addr, err := parseAddress(v)
	if err != nil {
		return err
	}
	r, err := a.betting.Claim(ctx, addr)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("领取", r)
}

func runFinalize(ctx context.Context, cmd *cli.Command, a *app) error {
	v, err := arg(cmd, 0, "match")
	if err != nil {
		return err
	}
	addr, err := parseAddress(v)
	if err != nil {
		return err
	}
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return err
	}
	if cmd.Bool("retry-deactivation") {
		r, err := a.betting.RetryDeactivation(ctx, fac, addr)
		if err != nil {
			return explain(err)
		}
		return a.printReceipt("下架", r)
	}
	rawResult, err := arg(cmd, 1, "result")
	if err != nil {
		return err
	}
	result, err := strconv.ParseUint(rawResult, 10, 8)
	if err != nil {
		return fmt.Errorf("无效结果 %q", rawResult)
	}
	r, err := a.betting.FinalizeResult(ctx, fac, addr, uint8(result))
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("结算", r)
}
