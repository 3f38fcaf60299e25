package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/pkg/clientstate"
)

func networkCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "switch-network",
			Usage:     "切换 RPC 节点，成功后保存供之后使用",
			ArgsUsage: "[rpc-url]",
			Flags: []cli.Flag{
				&cli.BoolFlag{Name: "reset", Usage: "清除保存的节点，回到配置中的节点"},
			},
			Action: withAnyNetwork(runSwitchNetwork),
		},
		{
			Name:      "tokens",
			Usage:     "代币列表",
			ArgsUsage: "[query]",
			Action:    withApp(runTokens),
		},
		{
			Name:      "import-token",
			Usage:     "按合约地址导入 ERC-20 代币",
			ArgsUsage: "<address>",
			Action:    withApp(runImportToken),
		},
		{
			Name:      "remove-token",
			Usage:     "移除导入的代币",
			ArgsUsage: "<address>",
			Action:    withApp(runRemoveToken),
		},
	}
}

func runSwitchNetwork(ctx context.Context, cmd *cli.Command, a *app) error {
	target := strings.TrimSpace(cmd.Args().First())
	if cmd.Bool("reset") {
		if err := a.store.Delete(clientstate.KeyRPCEndpoint); err != nil {
			return err
		}
		target = a.cfg.Network.RPCURL
	}
	if err := a.session.SwitchNetwork(ctx, target); err != nil {
		return err
	}
	if target != "" && !cmd.Bool("reset") {
		if err := a.store.Set(clientstate.KeyRPCEndpoint, target); err != nil {
			return fmt.Errorf("保存节点失败: %w", err)
		}
	}
	return a.printNetwork()
}

func (a *app) printNetwork() error {
	state := a.session.State()
	if a.json {
		return printJSON(map[string]any{"state": state.String(), "chainId": a.session.ChainID()})
	}
	fmt.Fprintf(stdout, "%s chainId=%d\n", state, a.session.ChainID())
	if state == chain.WrongNetwork {
		fmt.Fprintf(stdout, "期望 chainId=%d\n", a.cfg.Network.ChainID)
	}
	return nil
}

func runTokens(_ context.Context, cmd *cli.Command, a *app) error {
	list := a.tokens.All()
	if q := strings.TrimSpace(cmd.Args().First()); q != "" {
		list = a.tokens.Search(q)
	}
	if a.json {
		return printJSON(list)
	}
	t := newTable("SYMBOL", "NAME", "DECIMALS", "ADDRESS", "")
	for _, tk := range list {
		mark := ""
		if tk.Custom {
			mark = "imported"
		}
		t.row(tk.Symbol, tk.Name, fmt.Sprint(tk.Decimals), tk.Address.Hex(), mark)
	}
	return t.flush()
}

func runImportToken(ctx context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "address")
	if err != nil {
		return err
	}
	tk, err := a.tokens.ImportToken(ctx, addr)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(tk)
	}
	fmt.Fprintf(stdout, "已导入 %s (%s), decimals=%d\n", tk.Symbol, tk.Name, tk.Decimals)
	return nil
}

func runRemoveToken(_ context.Context, cmd *cli.Command, a *app) error {
	addr, err := addressArg(cmd, 0, "address")
	if err != nil {
		return err
	}
	return a.tokens.RemoveToken(addr)
}
