package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/pkg/units"
)

func factoryFlag() cli.Flag {
	return &cli.StringFlag{Name: "factory", Usage: "factory 地址，缺省为当前 factory"}
}

// adminCommands factory 与比赛的管理操作，需要对应合约的 owner 权限
func adminCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "register-factory",
			Usage:     "把已部署的 factory 登记到 master registry",
			ArgsUsage: "<factory> <name>",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "with-staking", Usage: "同时配置质押分成"},
			},
			Action: withApp(runRegisterFactory),
		},
		{
			Name:      "deploy-factory",
			Usage:     "部署新 factory 并登记",
			ArgsUsage: "<name>",
			Action:    withApp(runDeployFactory),
		},
		{
			Name:      "set-factory-active",
			Usage:     "在 registry 中启用或归档 factory",
			ArgsUsage: "<factory> <true|false>",
			Action:    withApp(runSetFactoryActive),
		},
		{
			Name:      "staking-addresses",
			Usage:     "查看或设置 factory 的质押分成地址",
			ArgsUsage: "[<native> <token>]",
			Flags:     []cli.Flag{factoryFlag()},
			Action:    withApp(runStakingAddresses),
		},
		{
			Name:  "create-match",
			Usage: "创建比赛",
			Flags: []cli.Flag{
				factoryFlag(),
				&cli.StringFlag{Name: "variant", Usage: "draw / nodraw", Value: "draw"},
				&cli.StringFlag{Name: "league", Usage: "联赛名称，缺省取配置"},
				&cli.StringFlag{Name: "team-a", Usage: "主队", Required: true},
				&cli.StringFlag{Name: "team-b", Usage: "客队", Required: true},
				&cli.StringFlag{Name: "start", Usage: "开赛时间，RFC3339 或 2006-01-02 15:04（本地时间）", Required: true},
				&cli.StringFlag{Name: "odds", Usage: "小数赔率，逗号分隔，顺序为 A,B[,平]", Required: true},
				&cli.StringFlag{Name: "max-bet", Usage: "单注上限"},
				&cli.StringFlag{Name: "image-a", Usage: "主队图片 URI 或本地文件"},
				&cli.StringFlag{Name: "image-b", Usage: "客队图片 URI 或本地文件"},
			},
			Action: withApp(runCreateMatch),
		},
		{
			Name:   "admin-matches",
			Usage:  "factory 的全部比赛与显示状态",
			Flags:  []cli.Flag{factoryFlag()},
			Action: withApp(runAdminMatches),
		},
		{
			Name:      "retry-deactivation",
			Usage:     "结果已上链后重试下架",
			ArgsUsage: "<match>",
			Flags:     []cli.Flag{factoryFlag()},
			Action:    withApp(runRetryDeactivation),
		},
		{
			Name:      "set-visible",
			Usage:     "在 factory 列表中显示或隐藏比赛",
			ArgsUsage: "<match> <true|false>",
			Flags:     []cli.Flag{factoryFlag()},
			Action:    withApp(runSetVisible),
		},
		{
			Name:      "deposit",
			Usage:     "向比赛注入庄家流动性",
			ArgsUsage: "<match> <amount>",
			Action:    withApp(runDeposit),
		},
		{
			Name:      "withdraw-profit",
			Usage:     "提取比赛利润",
			ArgsUsage: "<match>",
			Action:    withApp(runWithdrawProfit),
		},
		{
			Name:      "set-images",
			Usage:     "设置队伍图片",
			ArgsUsage: "<match> <imageA> <imageB>",
			Action:    withApp(runSetImages),
		},
		{
			Name:      "set-max-bet",
			Usage:     "设置单注上限",
			ArgsUsage: "<match> <amount>",
			Action:    withApp(runSetMaxBet),
		},
	}
}

// factoryOf --factory，缺省为当前 factory
func (a *app) factoryOf(ctx context.Context, cmd *cli.Command) (common.Address, error) {
	if v := cmd.String("factory"); v != "" {
		return parseAddress(v)
	}
	return a.factories.Current(ctx).Address, nil
}

func addressArg(cmd *cli.Command, i int, name string) (common.Address, error) {
	v, err := arg(cmd, i, name)
	if err != nil {
		return common.Address{}, err
	}
	return parseAddress(v)
}

func boolArg(cmd *cli.Command, i int, name string) (bool, error) {
	v, err := arg(cmd, i, name)
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("无效的 <%s> %q（可用 true/false）", name, v)
	}
	return b, nil
}

func runRegisterFactory(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "factory")
	if err != nil {
		return err
	}
	name, err := arg(cmd, 1, "name")
	if err != nil {
		return err
	}
	register := a.factories.RegisterFactory
	if cmd.Bool("with-staking") {
		register = a.factories.RegisterFactoryWithStaking
	}
	r, err := register(ctx, addr, name)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("登记 factory", r)
}

func runDeployFactory(ctx context.Context, cmd *cli.Command, a *app) error {
	name, err := arg(cmd, 0, "name")
	if err != nil {
		return err
	}
	addr, err := a.factories.DeployAndRegisterFactory(ctx, name)
	if err != nil {
		return explain(err)
	}
	if a.json {
		return printJSON(map[string]any{"factory": addr})
	}
	fmt.Fprintf(stdout, "factory 已部署并登记: %s\n", addr.Hex())
	return nil
}

func runSetFactoryActive(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "factory")
	if err != nil {
		return err
	}
	active, err := boolArg(cmd, 1, "active")
	if err != nil {
		return err
	}
	r, err := a.factories.SetFactoryActive(ctx, addr, active)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("更新 factory 状态", r)
}

func runStakingAddresses(ctx context.Context, cmd *cli.Command, a *app) error {
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return err
	}
	if cmd.Args().Len() > 0 {
		native, err := addressArg(cmd, 0, "native")
		if err != nil {
			return err
		}
		token, err := addressArg(cmd, 1, "token")
		if err != nil {
			return err
		}
		r, err := a.factories.SetStakingAddresses(ctx, fac, native, token)
		if err != nil {
			return explain(err)
		}
		return a.printReceipt("设置质押分成地址", r)
	}
	sa, err := a.factories.StakingAddresses(ctx, fac)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(sa)
	}
	t := newTable("", "")
	t.row("native", sa.NativeLabel())
	t.row("token", sa.TokenLabel())
	return t.flush()
}

// parseStart RFC3339，或按本地时区解析的 "2006-01-02 15:04"
func parseStart(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", v, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("无效开赛时间 %q", v)
	}
	return t, nil
}

func parseVariant(v string) (betting.MatchVariant, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "draw", "withdraw", "3":
		return betting.WithDraw, nil
	case "nodraw", "no-draw", "2":
		return betting.NoDraw, nil
	}
	return 0, fmt.Errorf("无效比赛类型 %q（可用 draw/nodraw）", v)
}

// imageInput 带 scheme 的值当作 URI，否则当作待上传的本地文件
func imageInput(v string) (*betting.ImageInput, func(), error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, func() {}, nil
	}
	if strings.Contains(v, "://") {
		return &betting.ImageInput{URI: v}, func() {}, nil
	}
	f, err := os.Open(v)
	if err != nil {
		return nil, func() {}, fmt.Errorf("打开图片失败: %w", err)
	}
	return &betting.ImageInput{Name: filepath.Base(v), Data: f}, func() { f.Close() }, nil
}

func createRequest(ctx context.Context, cmd *cli.Command, a *app) (betting.CreateMatchRequest, func(), error) {
	noop := func() {}
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return betting.CreateMatchRequest{}, noop, err
	}
	variant, err := parseVariant(cmd.String("variant"))
	if err != nil {
		return betting.CreateMatchRequest{}, noop, err
	}
	start, err := parseStart(cmd.String("start"))
	if err != nil {
		return betting.CreateMatchRequest{}, noop, err
	}
	var odds []string
	for _, o := range strings.Split(cmd.String("odds"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			odds = append(odds, o)
		}
	}
	imgA, closeA, err := imageInput(cmd.String("image-a"))
	if err != nil {
		return betting.CreateMatchRequest{}, noop, err
	}
	imgB, closeB, err := imageInput(cmd.String("image-b"))
	if err != nil {
		closeA()
		return betting.CreateMatchRequest{}, noop, err
	}
	return betting.CreateMatchRequest{
		Factory:   fac,
		Variant:   variant,
		League:    cmd.String("league"),
		TeamA:     cmd.String("team-a"),
		TeamB:     cmd.String("team-b"),
		StartTime: start,
		Odds:      odds,
		MaxBet:    cmd.String("max-bet"),
		ImageA:    imgA,
		ImageB:    imgB,
	}, func() { closeA(); closeB() }, nil
}

func runCreateMatch(ctx context.Context, cmd *cli.Command, a *app) error {
	req, done, err := createRequest(ctx, cmd, a)
	if err != nil {
		return err
	}
	defer done()
	res, err := a.betting.CreateMatch(ctx, req)
	if err != nil {
		if res != nil && res.Receipt != nil {
			return fmt.Errorf("交易 %s: %w", res.Receipt.TxHash.Hex(), explain(err))
		}
		return explain(err)
	}
	if a.json {
		return printJSON(res)
	}
	fmt.Fprintf(stdout, "比赛已创建: %s\n", res.Match.Hex())
	for _, w := range res.Warnings {
		fmt.Fprintf(stdout, "  未完成: %s\n", w)
	}
	return nil
}

func runAdminMatches(ctx context.Context, cmd *cli.Command, a *app) error {
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return err
	}
	list, err := a.betting.AdminMatches(ctx, fac)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(list)
	}
	t := newTable("MATCH", "TYPE", "LEAGUE", "TEAMS", "START", "RESULT", "VISIBLE")
	for _, m := range list {
		result := "-"
		if m.Finalized {
			result = m.ResultLabel
		}
		t.row(m.Address.Hex(), m.Variant.String(), m.League, m.TeamA+" vs "+m.TeamB, when(m.StartTime),
			result, strconv.FormatBool(m.Active))
	}
	return t.flush()
}

func runRetryDeactivation(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "match")
	if err != nil {
		return err
	}
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return err
	}
	r, err := a.betting.RetryDeactivation(ctx, fac, addr)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("下架", r)
}

func runSetVisible(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "match")
	if err != nil {
		return err
	}
	visible, err := boolArg(cmd, 1, "visible")
	if err != nil {
		return err
	}
	fac, err := a.factoryOf(ctx, cmd)
	if err != nil {
		return err
	}
	r, err := a.betting.SetMatchVisible(ctx, fac, addr, visible)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("更新显示状态", r)
}

// matchAmount <match> <amount>，金额为原生币
func matchAmount(cmd *cli.Command) (common.Address, string, error) {
	addr, err := addressArg(cmd, 0, "match")
	if err != nil {
		return common.Address{}, "", err
	}
	raw, err := arg(cmd, 1, "amount")
	return addr, raw, err
}

func runDeposit(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, raw, err := matchAmount(cmd)
	if err != nil {
		return err
	}
	amount, err := units.ParseUnits(raw, betting.NativeDecimals)
	if err != nil {
		return err
	}
	r, err := a.betting.DepositLiquidity(ctx, addr, amount)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("注入流动性", r)
}

func runWithdrawProfit(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "match")
	if err != nil {
		return err
	}
	r, err := a.betting.WithdrawProfit(ctx, addr)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("提取利润", r)
}

func runSetImages(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "match")
	if err != nil {
		return err
	}
	imgA, err := arg(cmd, 1, "imageA")
	if err != nil {
		return err
	}
	imgB, err := arg(cmd, 2, "imageB")
	if err != nil {
		return err
	}
	r, err := a.betting.SetTeamImages(ctx, addr, imgA, imgB)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("设置队伍图片", r)
}

func runSetMaxBet(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, raw, err := matchAmount(cmd)
	if err != nil {
		return err
	}
	amount, err := units.ParseUnits(raw, betting.NativeDecimals)
	if err != nil {
		return err
	}
	r, err := a.betting.SetMaxBetAmount(ctx, addr, amount)
	if err != nil {
		return explain(err)
	}
	return a.printReceipt("设置单注上限", r)
}
