package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/internal/staking"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/clientstate"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/ipfs"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/shutdown"
)

// app 一次命令运行所需的全部服务
type app struct {
	cfg       *config.Config
	addrs     contracts.Addresses
	session   *chain.Session
	factories *factory.Directory
	betting   *betting.Service
	swap      *swap.Service
	tokens    *tokens.Directory
	staking   *staking.Service
	store     clientstate.Store
	closer    *shutdown.Manager
	json      bool
}

func newSigner(w config.WalletConfig) (chain.Signer, error) {
	switch {
	case strings.TrimSpace(w.PrivateKey) != "":
		return chain.NewKeySigner(w.PrivateKey)
	case strings.TrimSpace(w.Mnemonic) != "":
		return chain.NewMnemonicSigner(w.Mnemonic, w.DerivationPath)
	default:
		return nil, nil
	}
}

// openApp anyNetwork 为 true 时节点链 ID 不一致也返回 app（会话处于 WrongNetwork）
func openApp(ctx context.Context, cmd *cli.Command, anyNetwork bool) (*app, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := cmd.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   true,
		Redact:     []string{cfg.Wallet.PrivateKey, cfg.Wallet.Mnemonic, cfg.IPFS.JWT, cfg.Store.EncryptionKey},
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	addrs, err := contracts.AddressesFromConfig(cfg.Contracts)
	if err != nil {
		return nil, err
	}
	closer := shutdown.NewManager()
	a := &app{cfg: cfg, addrs: addrs, closer: closer, json: cmd.Bool("json")}

	store, err := clientstate.Open(clientstate.Options{
		Backend:       cfg.Store.Backend,
		Path:          cfg.Store.Path,
		EncryptionKey: cfg.Store.EncryptionKey,
	})
	if err != nil {
		return nil, fmt.Errorf("打开本地状态失败: %w", err)
	}
	closer.OnShutdown("store", shutdown.Closer(store))
	a.store = store

	signer, err := newSigner(cfg.Wallet)
	if err != nil {
		a.close()
		return nil, err
	}
	opts := chain.Options{
		RPCURL:   rpcEndpoint(cfg, store),
		ChainID:  cfg.Network.ChainID,
		Store:    store,
		CacheTTL: cfg.CacheTTL,

		RPCRateLimit: cfg.Network.RPCRateLimit,
		RPCBurst:     cfg.Network.RPCBurst,
	}
	if signer != nil {
		opts.Signer = signer
	}
	if common.IsHexAddress(cfg.Wallet.WatchAddress) {
		opts.WatchAddress = common.HexToAddress(cfg.Wallet.WatchAddress)
	}
	a.session = chain.NewSession(opts)
	a.session.OnChange(logSessionEvent)
	closer.OnShutdown("session", func(context.Context) error {
		a.session.Close()
		return nil
	})
	if err := connectSession(ctx, a.session); err != nil {
		if !anyNetwork || !errors.Is(err, chain.ErrWrongNetwork) {
			a.close()
			return nil, err
		}
	}

	var pinner ipfs.Pinner
	if client := ipfs.NewClient(cfg.IPFS.PinningURL, cfg.IPFS.JWT); client.Configured() {
		pinner = client
	}
	pools, err := staking.PoolsFromConfig(cfg.Staking)
	if err != nil {
		a.close()
		return nil, err
	}

	a.factories = factory.NewDirectory(a.session, addrs, store)
	a.betting = betting.NewService(a.session, a.factories, betting.OptionsFromConfig(cfg, pinner))
	a.swap = swap.NewService(a.session, addrs, swap.OptionsFromConfig(cfg))
	a.tokens = tokens.NewDirectory(a.session, cfg.Tokens, addrs.WrappedNative, store)
	a.staking = staking.NewService(a.session, pools)
	return a, nil
}

// rpcEndpoint switch-network 保存过的节点优先于配置
func rpcEndpoint(cfg *config.Config, store clientstate.Store) string {
	saved, ok, err := store.Get(clientstate.KeyRPCEndpoint)
	if err != nil {
		logger.Warnf("读取已保存的节点失败: %v", err)
	}
	if ok && strings.TrimSpace(saved) != "" {
		logger.Debugf("使用已保存的节点 %s", saved)
		return saved
	}
	return cfg.Network.RPCURL
}

// connectSession 有连接标记时按标记恢复连接，否则首次连接
func connectSession(ctx context.Context, s *chain.Session) error {
	tried, err := s.Reconnect(ctx)
	if tried {
		return err
	}
	if err != nil {
		logger.Warnf("读取连接标记失败: %v", err)
	}
	return s.Connect(ctx)
}

func logSessionEvent(ev chain.Event) {
	entry := logger.WithFields(logrus.Fields{"state": ev.State.String(), "chainId": ev.ChainID})
	switch {
	case ev.State == chain.WrongNetwork:
		entry.Warn("节点链 ID 与配置不一致，可以用 switch-network 切换节点")
	case ev.Kind == chain.EventChainChanged:
		entry.Info("已切换网络")
	case ev.Kind == chain.EventAccountChanged:
		entry.WithField("account", ev.Account.Hex()).Info("账户已切换")
	default:
		entry.Debug("会话状态变更")
	}
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.closer.Shutdown(ctx); err != nil {
		logger.Warnf("关闭资源: %v", err)
	}
}

// user --user 参数，缺省为当前账户
func (a *app) user(cmd *cli.Command) (common.Address, error) {
	if v := cmd.String("user"); v != "" {
		return parseAddress(v)
	}
	return a.session.Account()
}

func parseAddress(v string) (common.Address, error) {
	v = strings.TrimSpace(v)
	if !common.IsHexAddress(v) {
		return common.Address{}, fmt.Errorf("无效地址: %q", v)
	}
	return common.HexToAddress(v), nil
}

// scope --scope: all / current / factory 地址
func scope(cmd *cli.Command) (betting.Scope, error) {
	v := strings.TrimSpace(cmd.String("scope"))
	switch {
	case v == "" || v == "current":
		return betting.OneFactory(common.Address{}), nil
	case strings.EqualFold(v, "all"):
		return betting.AllFactories(), nil
	default:
		addr, err := parseAddress(v)
		if err != nil {
			return betting.Scope{}, err
		}
		return betting.OneFactory(addr), nil
	}
}

type appAction func(ctx context.Context, cmd *cli.Command, a *app) error

// withApp 打开服务、执行 fn，结束后关闭
func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := openApp(ctx, cmd, false)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a)
	}
}

// withAnyNetwork 同 withApp，但节点在错误网络上时也执行 fn
func withAnyNetwork(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		a, err := openApp(ctx, cmd, true)
		if err != nil {
			return err
		}
		defer a.close()
		return fn(ctx, cmd, a)
	}
}

// arg 第 i 个位置参数，缺失时报错
func arg(cmd *cli.Command, i int, name string) (string, error) {
	if cmd.Args().Len() <= i {
		return "", fmt.Errorf("缺少参数 <%s>", name)
	}
	return strings.TrimSpace(cmd.Args().Get(i)), nil
}
