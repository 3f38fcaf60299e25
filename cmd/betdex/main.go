package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/api"
	"github.com/betbot/betdex/internal/metrics"
	"github.com/betbot/betdex/pkg/logger"
)

func main() {
	// .env 可选，缺失时直接用环境变量
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	if err := newCommand().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	var commands []*cli.Command
	for _, group := range [][]*cli.Command{
		bettingCommands(), tradeCommands(), liquidityCommands(), adminCommands(), networkCommands(),
	} {
		commands = append(commands, group...)
	}
	commands = append(commands, &cli.Command{
		Name:  "serve",
		Usage: "启动只读 HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "API 监听地址，缺省取配置", Sources: cli.EnvVars("BETDEX_LISTEN")},
			&cli.StringFlag{Name: "debug-listen", Usage: "pprof 调试服务监听地址，为空不启动", Sources: cli.EnvVars("BETDEX_DEBUG_LISTEN")},
		},
		Action: withApp(runServe),
	})
	return &cli.Command{
		Name:  "betdex",
		Usage: "比赛下注、兑换与质押客户端",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML 配置文件", Sources: cli.EnvVars("BETDEX_CONFIG")},
			&cli.StringFlag{Name: "log-level", Usage: "覆盖配置中的日志级别"},
			&cli.BoolFlag{Name: "json", Usage: "以 JSON 输出"},
		},
		Commands: commands,
	}
}

func runServe(ctx context.Context, cmd *cli.Command, a *app) error {
	srv, err := api.New(api.Deps{
		Session:   a.session,
		Factories: a.factories,
		Betting:   a.betting,
		Swap:      a.swap,
		Tokens:    a.tokens,
		Staking:   a.staking,
	})
	if err != nil {
		return err
	}
	if dbg := cmd.String("debug-listen"); dbg != "" {
		d, err := metrics.StartDebug(ctx, dbg)
		if err != nil {
			return fmt.Errorf("启动调试服务失败: %w", err)
		}
		logger.Infof("调试服务监听 %s", d.Addr())
	}
	listen := a.cfg.Listen
	if v := cmd.String("listen"); v != "" {
		listen = v
	}
	return srv.Run(ctx, listen)
}
