// Package contracts 保存客户端使用的合约地址表和最小 ABI。
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/betdex/pkg/config"
)

// 解析好的 ABI，包初始化时校验
var (
	ERC20          = mustParse("ERC20", ERC20ABI)
	Router         = mustParse("Router", RouterABI)
	SwapFactory    = mustParse("SwapFactory", SwapFactoryABI)
	Pair           = mustParse("Pair", PairABI)
	BettingFactory = mustParse("BettingFactory", BettingFactoryABI)
	MasterRegistry = mustParse("MasterRegistry", MasterRegistryABI)
	MatchWithDraw  = mustParse("MatchWithDraw", MatchWithDrawABI)
	MatchNoDraw    = mustParse("MatchNoDraw", MatchNoDrawABI)
	NativeStaking  = mustParse("NativeStaking", NativeStakingABI)
	TokenStaking   = mustParse("TokenStaking", TokenStakingABI)
)

func mustParse(name, raw string) *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("解析 %s ABI 失败: %v", name, err))
	}
	return &parsed
}

// Addresses 当前链上的合约地址
type Addresses struct {
	Router         common.Address
	SwapFactory    common.Address
	WrappedNative  common.Address
	MasterRegistry common.Address // 零地址表示未部署 master registry
	LegacyFactory  common.Address
	// FactoryBytecode 部署新 factory 的 creation code，为空则不支持部署
	FactoryBytecode []byte
}

// AddressesFromConfig 从配置构建地址表
func AddressesFromConfig(c config.ContractsConfig) (Addresses, error) {
	a := Addresses{
		Router:        common.HexToAddress(c.Router),
		SwapFactory:   common.HexToAddress(c.SwapFactory),
		WrappedNative: common.HexToAddress(c.WrappedNative),
	}
	if c.MasterRegistry != "" {
		a.MasterRegistry = common.HexToAddress(c.MasterRegistry)
	}
	if c.LegacyFactory != "" {
		a.LegacyFactory = common.HexToAddress(c.LegacyFactory)
	}
	if c.FactoryBytecode != "" {
		code := common.FromHex(strings.TrimSpace(c.FactoryBytecode))
		if len(code) == 0 {
			return Addresses{}, fmt.Errorf("factory_bytecode 不是有效的 hex")
		}
		a.FactoryBytecode = code
	}
	return a, nil
}

// IsZero 是否零地址
func IsZero(a common.Address) bool {
	return a == (common.Address{})
}
