package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// NetworkConfig 链配置
type NetworkConfig struct {
	RPCURL       string `yaml:"rpc_url" json:"rpc_url"`
	ChainID      int64  `yaml:"chain_id" json:"chain_id"`
	ChainName    string `yaml:"chain_name" json:"chain_name"`
	NativeSymbol string `yaml:"native_symbol" json:"native_symbol"`
	ExplorerURL  string `yaml:"explorer_url" json:"explorer_url"`
	// RPCRateLimit 每秒只读调用上限，0 不限速
	RPCRateLimit float64 `yaml:"rpc_rate_limit" json:"rpc_rate_limit"`
	RPCBurst     int     `yaml:"rpc_burst" json:"rpc_burst"`
}

// ContractsConfig 合约地址
type ContractsConfig struct {
	Router         string `yaml:"router" json:"router"`
	SwapFactory    string `yaml:"swap_factory" json:"swap_factory"`
	WrappedNative  string `yaml:"wrapped_native" json:"wrapped_native"` // 路由的中间资产（WMNT）
	MasterRegistry string `yaml:"master_registry" json:"master_registry"`
	LegacyFactory  string `yaml:"legacy_factory" json:"legacy_factory"`
	// FactoryBytecode 部署新 factory 用的 creation bytecode（hex），为空则不支持部署
	FactoryBytecode string `yaml:"factory_bytecode" json:"factory_bytecode"`
}

// StakingPoolConfig 质押池配置
type StakingPoolConfig struct {
	ID              string  `yaml:"id" json:"id"`
	Name            string  `yaml:"name" json:"name"`
	Type            string  `yaml:"type" json:"type"` // native 或 token
	TokenSymbol     string  `yaml:"token_symbol" json:"token_symbol"`
	TokenAddress    string  `yaml:"token_address" json:"token_address"` // native 池为空
	TokenDecimals   int32   `yaml:"token_decimals" json:"token_decimals"`
	ContractAddress string  `yaml:"contract_address" json:"contract_address"`
	APY             float64 `yaml:"apy" json:"apy"` // 合约 getAPY 失败时的展示值
	MinStake        string  `yaml:"min_stake" json:"min_stake"`
}

// TokenConfig 内置代币
type TokenConfig struct {
	Address  string `yaml:"address" json:"address"`
	Symbol   string `yaml:"symbol" json:"symbol"`
	Name     string `yaml:"name" json:"name"`
	Decimals int32  `yaml:"decimals" json:"decimals"`
	LogoURI  string `yaml:"logo_uri" json:"logo_uri"`
}

// WalletConfig 钱包配置，PrivateKey 与 Mnemonic 二选一
type WalletConfig struct {
	PrivateKey     string `yaml:"private_key" json:"private_key"`
	Mnemonic       string `yaml:"mnemonic" json:"mnemonic"`
	DerivationPath string `yaml:"derivation_path" json:"derivation_path"`
	// WatchAddress 只读模式下的查询地址（无签名能力）
	WatchAddress string `yaml:"watch_address" json:"watch_address"`
}

// IPFSConfig 图片上传与网关
type IPFSConfig struct {
	PinningURL string `yaml:"pinning_url" json:"pinning_url"`
	JWT        string `yaml:"jwt" json:"jwt"`
	Gateway    string `yaml:"gateway" json:"gateway"`
}

// StoreConfig 客户端状态存储
type StoreConfig struct {
	Backend       string `yaml:"backend" json:"backend"` // badger 或 json
	Path          string `yaml:"path" json:"path"`
	EncryptionKey string `yaml:"encryption_key" json:"encryption_key"` // 仅 badger，hex/base64 32 字节
}

// BettingConfig 聚合相关参数
type BettingConfig struct {
	Concurrency       int    `yaml:"concurrency" json:"concurrency"`
	HistoryBlocks     uint64 `yaml:"history_blocks" json:"history_blocks"`
	DefaultMaxBet     string `yaml:"default_max_bet" json:"default_max_bet"`
	DefaultLeague     string `yaml:"default_league" json:"default_league"`
	MatchPastWindowHr int    `yaml:"match_past_window_hours" json:"match_past_window_hours"`
}

// SwapConfig 兑换参数
type SwapConfig struct {
	SlippageBps     int64   `yaml:"slippage_bps" json:"slippage_bps"`
	DeadlineSeconds int64   `yaml:"deadline_seconds" json:"deadline_seconds"`
	HighImpactPct   float64 `yaml:"high_impact_pct" json:"high_impact_pct"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	File       string `yaml:"file" json:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days" json:"max_age_days"`
}

// Config 应用配置
type Config struct {
	Network   NetworkConfig       `yaml:"network" json:"network"`
	Contracts ContractsConfig     `yaml:"contracts" json:"contracts"`
	Staking   []StakingPoolConfig `yaml:"staking" json:"staking"`
	Tokens    []TokenConfig       `yaml:"tokens" json:"tokens"`
	Wallet    WalletConfig        `yaml:"wallet" json:"wallet"`
	IPFS      IPFSConfig          `yaml:"ipfs" json:"ipfs"`
	Store     StoreConfig         `yaml:"store" json:"store"`
	Betting   BettingConfig       `yaml:"betting" json:"betting"`
	Swap      SwapConfig          `yaml:"swap" json:"swap"`
	Log       LogConfig           `yaml:"log" json:"log"`
	// CacheTTL 读缓存有效期，0 表示不缓存
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl"`
	Listen   string        `yaml:"listen" json:"listen"`
}

var globalConfig *Config

// Default Mantle Sepolia 上的默认部署
func Default() *Config {
	return &Config{
		Network: NetworkConfig{
			RPCURL:       "https://rpc.sepolia.mantle.xyz",
			ChainID:      5003,
			ChainName:    "Mantle Sepolia Testnet",
			NativeSymbol: "MNT",
			ExplorerURL:  "https://sepolia.mantlescan.xyz",
		},
		Contracts: ContractsConfig{
			Router:         "0x313049192Cb0d4027A0De419a1dD169F9eFB48c7",
			SwapFactory:    "0x48e72A7FEAeA5e7B6DADbc7D82ac706F93CEf96C",
			WrappedNative:  "0xf42548Ba89dc2314408f44b16506F88769abDED5",
			MasterRegistry: "0xd2Bf50640E601060a35303e0A4cbE5aDaD8eD394",
		},
		Staking: []StakingPoolConfig{
			{
				ID: "mnt", Name: "MNT Staking", Type: "native", TokenSymbol: "MNT", TokenDecimals: 18,
				ContractAddress: "0xD642Fb88DA5Bd4e7d90F829298Ee12dda158A1d7", APY: 14, MinStake: "0.01",
			},
			{
				ID: "intel", Name: "INTEL Staking", Type: "token", TokenSymbol: "INTEL", TokenDecimals: 18,
				TokenAddress:    "0xBd5447Ff67852627c841bC695b99626BB60AcC8a",
				ContractAddress: "0x91F193c3F24BaE45A0c592E7833354DE00A872C2", APY: 7, MinStake: "1",
			},
			{
				ID: "usdc", Name: "USDC Staking", Type: "token", TokenSymbol: "USDC", TokenDecimals: 18,
				TokenAddress:    "0xE1010F50c511938699fDcac5520b0AdEd090b922",
				ContractAddress: "0xB8ADd9fFDA88b7ED72371B30710B60362082B070", APY: 7, MinStake: "1",
			},
		},
		Tokens: []TokenConfig{
			{Address: "0xf42548Ba89dc2314408f44b16506F88769abDED5", Symbol: "MNT", Name: "Mantle Testnet", Decimals: 18},
			{Address: "0xE1010F50c511938699fDcac5520b0AdEd090b922", Symbol: "USDC", Name: "USDC", Decimals: 18},
			{Address: "0xBd5447Ff67852627c841bC695b99626BB60AcC8a", Symbol: "INTEL", Name: "IntellSwap", Decimals: 18},
		},
		Wallet: WalletConfig{DerivationPath: "m/44'/60'/0'/0/0"},
		IPFS: IPFSConfig{
			PinningURL: "https://api.pinata.cloud",
			Gateway:    "gateway.pinata.cloud",
		},
		Store:   StoreConfig{Backend: "json", Path: "data/state"},
		Betting: BettingConfig{Concurrency: 8, HistoryBlocks: 10000, DefaultMaxBet: "10", DefaultLeague: "Sports Betting", MatchPastWindowHr: 24 * 7},
		Swap:    SwapConfig{SlippageBps: 50, DeadlineSeconds: 1800, HighImpactPct: 5},
		Log:     LogConfig{Level: "info", Format: "text", MaxSizeMB: 100, MaxBackups: 3, MaxAgeDays: 7},
		Listen:  "127.0.0.1:8088",
	}
}

// Load 加载配置：默认值 < 配置文件 < 环境变量
func Load(filePath string) (*Config, error) {
	cfg := Default()
	if filePath != "" {
		if err := loadConfigFile(filePath, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// loadConfigFile 按扩展名解析 YAML/JSON 配置文件
func loadConfigFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("读取配置文件失败: %w", err)
	}
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".json":
		err = json.Unmarshal(data, cfg)
	default:
		err = yaml.Unmarshal(data, cfg)
	}
	if err != nil {
		return fmt.Errorf("解析配置文件失败 %s: %w", filePath, err)
	}
	return nil
}

// applyEnv 环境变量覆盖（BETDEX_ 前缀）
func applyEnv(cfg *Config) {
	cfg.Network.RPCURL = getEnv("BETDEX_RPC_URL", cfg.Network.RPCURL)
	cfg.Network.ChainID = int64(parseIntEnv("BETDEX_CHAIN_ID", int(cfg.Network.ChainID)))
	cfg.Network.RPCRateLimit = parseFloatEnv("BETDEX_RPC_RATE_LIMIT", cfg.Network.RPCRateLimit)
	cfg.Contracts.Router = getEnv("BETDEX_ROUTER", cfg.Contracts.Router)
	cfg.Contracts.SwapFactory = getEnv("BETDEX_SWAP_FACTORY", cfg.Contracts.SwapFactory)
	cfg.Contracts.WrappedNative = getEnv("BETDEX_WRAPPED_NATIVE", cfg.Contracts.WrappedNative)
	cfg.Contracts.MasterRegistry = getEnv("BETDEX_MASTER_REGISTRY", cfg.Contracts.MasterRegistry)
	cfg.Contracts.LegacyFactory = getEnv("BETDEX_LEGACY_FACTORY", cfg.Contracts.LegacyFactory)
	cfg.Contracts.FactoryBytecode = getEnv("BETDEX_FACTORY_BYTECODE", cfg.Contracts.FactoryBytecode)
	cfg.Wallet.PrivateKey = getEnv("BETDEX_PRIVATE_KEY", cfg.Wallet.PrivateKey)
	cfg.Wallet.Mnemonic = getEnv("BETDEX_MNEMONIC", cfg.Wallet.Mnemonic)
	cfg.Wallet.DerivationPath = getEnv("BETDEX_DERIVATION_PATH", cfg.Wallet.DerivationPath)
	cfg.Wallet.WatchAddress = getEnv("BETDEX_WATCH_ADDRESS", cfg.Wallet.WatchAddress)
	cfg.IPFS.JWT = getEnv("BETDEX_PINATA_JWT", cfg.IPFS.JWT)
	cfg.IPFS.Gateway = getEnv("BETDEX_IPFS_GATEWAY", cfg.IPFS.Gateway)
	cfg.Store.Backend = getEnv("BETDEX_STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = getEnv("BETDEX_STORE_PATH", cfg.Store.Path)
	cfg.Store.EncryptionKey = getEnv("BETDEX_STORE_KEY", cfg.Store.EncryptionKey)
	cfg.Betting.Concurrency = parseIntEnv("BETDEX_CONCURRENCY", cfg.Betting.Concurrency)
	cfg.Swap.SlippageBps = int64(parseIntEnv("BETDEX_SLIPPAGE_BPS", int(cfg.Swap.SlippageBps)))
	cfg.Swap.HighImpactPct = parseFloatEnv("BETDEX_HIGH_IMPACT_PCT", cfg.Swap.HighImpactPct)
	cfg.Log.Level = getEnv("BETDEX_LOG_LEVEL", cfg.Log.Level)
	cfg.Log.File = getEnv("BETDEX_LOG_FILE", cfg.Log.File)
	cfg.Listen = getEnv("BETDEX_LISTEN", cfg.Listen)
	if v := getEnv("BETDEX_CACHE_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}
}

// Get 获取全局配置
func Get() *Config {
	return globalConfig
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Network.RPCURL == "" {
		return fmt.Errorf("network.rpc_url 不能为空")
	}
	if c.Network.ChainID <= 0 {
		return fmt.Errorf("network.chain_id 必须大于0")
	}
	required := map[string]string{
		"contracts.router":         c.Contracts.Router,
		"contracts.swap_factory":   c.Contracts.SwapFactory,
		"contracts.wrapped_native": c.Contracts.WrappedNative,
	}
	for name, v := range required {
		if !common.IsHexAddress(v) {
			return fmt.Errorf("%s 不是有效地址: %q", name, v)
		}
	}
	optional := map[string]string{
		"contracts.master_registry": c.Contracts.MasterRegistry,
		"contracts.legacy_factory":  c.Contracts.LegacyFactory,
		"wallet.watch_address":      c.Wallet.WatchAddress,
	}
	for name, v := range optional {
		if v != "" && !common.IsHexAddress(v) {
			return fmt.Errorf("%s 不是有效地址: %q", name, v)
		}
	}
	if c.Wallet.PrivateKey != "" && c.Wallet.Mnemonic != "" {
		return fmt.Errorf("wallet.private_key 与 wallet.mnemonic 只能配置一个")
	}
	seen := make(map[string]struct{}, len(c.Staking))
	for i, p := range c.Staking {
		if p.ID == "" {
			return fmt.Errorf("staking[%d].id 不能为空", i)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("staking[%d].id 重复: %s", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		switch p.Type {
		case "native":
		case "token":
			if !common.IsHexAddress(p.TokenAddress) {
				return fmt.Errorf("staking[%s].token_address 不是有效地址", p.ID)
			}
		default:
			return fmt.Errorf("staking[%s].type 必须是 native 或 token，当前: %s", p.ID, p.Type)
		}
		if p.ContractAddress != "" && !common.IsHexAddress(p.ContractAddress) {
			return fmt.Errorf("staking[%s].contract_address 不是有效地址", p.ID)
		}
	}
	if c.Swap.SlippageBps < 0 || c.Swap.SlippageBps > 10000 {
		return fmt.Errorf("swap.slippage_bps 必须在 [0, 10000] 之间")
	}
	switch c.Store.Backend {
	case "badger", "json", "memory":
	default:
		return fmt.Errorf("store.backend 必须是 badger/json/memory，当前: %s", c.Store.Backend)
	}
	if c.Betting.Concurrency <= 0 {
		c.Betting.Concurrency = 1
	}
	return nil
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseIntEnv 解析整数环境变量
func parseIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// parseFloatEnv 解析浮点数环境变量
func parseFloatEnv(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return floatValue
}
