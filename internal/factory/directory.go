// Package factory 发现链上的 betting factory，并维护用户当前选中的 factory。
package factory

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/pkg/clientstate"
	"github.com/betbot/betdex/pkg/logger"
)

// LegacyName master registry 不可用时的兜底 factory 名称
const LegacyName = "Legacy Factory"

// Factory 一个 betting factory 的展示信息
type Factory struct {
	Address         common.Address `json:"address"`
	Name            string         `json:"name"`
	Active          bool           `json:"active"`
	MatchesWithDraw uint64         `json:"matchesWithDraw"`
	MatchesNoDraw   uint64         `json:"matchesNoDraw"`
	Legacy          bool           `json:"legacy"`
}

// TotalMatches 两种比赛的总数
func (f Factory) TotalMatches() uint64 {
	return f.MatchesWithDraw + f.MatchesNoDraw
}

// Directory factory 目录
type Directory struct {
	session *chain.Session
	addrs   contracts.Addresses
	store   clientstate.Store

	mu       sync.RWMutex
	selected common.Address
}

// NewDirectory 创建目录并恢复上次保存的选择
func NewDirectory(s *chain.Session, addrs contracts.Addresses, store clientstate.Store) *Directory {
	if store == nil {
		store = s.Store()
	}
	d := &Directory{session: s, addrs: addrs, store: store}
	if v, ok, err := store.Get(clientstate.KeySelectedFactory); err != nil {
		d.log().Warnf("读取已选 factory 失败: %v", err)
	} else if ok && common.IsHexAddress(v) {
		d.selected = common.HexToAddress(v)
	}
	return d
}

func (d *Directory) log() *logrus.Entry {
	return logger.WithField("component", "factory")
}

func (d *Directory) registry() (*chain.Contract, error) {
	if contracts.IsZero(d.addrs.MasterRegistry) {
		return nil, fmt.Errorf("%w: master registry", chain.ErrNotConfigured)
	}
	return chain.NewContract(d.session, "registry", d.addrs.MasterRegistry, contracts.MasterRegistry), nil
}

// Contract 绑定 betting factory 合约
func (d *Directory) Contract(addr common.Address) *chain.Contract {
	return chain.NewContract(d.session, "factory", addr, contracts.BettingFactory)
}

func (d *Directory) legacy() []Factory {
	return []Factory{{Address: d.addrs.LegacyFactory, Name: LegacyName, Active: true, Legacy: true}}
}

// ListFactories 从 master registry 读取全部 factory。任何失败（未配置、未连接、
// revert、列表为空、全部条目读取失败）都回退到单个 legacy factory，从不返回错误。
func (d *Directory) ListFactories(ctx context.Context) []Factory {
	reg, err := d.registry()
	if err != nil {
		return d.legacy()
	}
	out, err := reg.Call(ctx, "getAllFactories")
	if err != nil {
		d.log().Warnf("读取 factory 列表失败，使用 legacy factory: %v", err)
		return d.legacy()
	}
	addrs, _ := out[0].([]common.Address)

	var list []Factory
	for _, addr := range addrs {
		info, err := reg.Call(ctx, "getFactoryInfo", addr)
		if err != nil {
			d.log().WithField("factory", addr.Hex()).Warnf("读取 factory 信息失败，跳过: %v", err)
			continue
		}
		f := Factory{Address: addr}
		f.Name, _ = info[0].(string)
		f.Active, _ = info[1].(bool)
		if n, ok := info[2].(*big.Int); ok {
			f.MatchesWithDraw = n.Uint64()
		}
		if n, ok := info[3].(*big.Int); ok {
			f.MatchesNoDraw = n.Uint64()
		}
		if strings.TrimSpace(f.Name) == "" {
			f.Name = shortAddress(addr)
		}
		list = append(list, f)
	}
	if len(list) == 0 {
		return d.legacy()
	}
	return list
}

// Current 当前 factory：已保存且仍在列表中的选择，否则第一个 active，否则第一个
func (d *Directory) Current(ctx context.Context) Factory {
	list := d.ListFactories(ctx)
	d.mu.RLock()
	selected := d.selected
	d.mu.RUnlock()

	if selected != (common.Address{}) {
		for _, f := range list {
			if f.Address == selected {
				return f
			}
		}
	}
	for _, f := range list {
		if f.Active {
			return f
		}
	}
	return list[0]
}

// Lookup 在列表中查找 factory
func (d *Directory) Lookup(ctx context.Context, addr common.Address) (Factory, bool) {
	for _, f := range d.ListFactories(ctx) {
		if f.Address == addr {
			return f, true
		}
	}
	return Factory{}, false
}

// SelectFactory 记录用户选择并持久化
func (d *Directory) SelectFactory(addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("factory 地址不能为空")
	}
	if err := d.store.Set(clientstate.KeySelectedFactory, addr.Hex()); err != nil {
		return fmt.Errorf("保存已选 factory 失败: %w", err)
	}
	d.mu.Lock()
	d.selected = addr
	d.mu.Unlock()
	d.log().Infof("已选择 factory %s", addr.Hex())
	return nil
}

// Selected 已保存的选择（可能为零地址）
func (d *Directory) Selected() common.Address {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.selected
}

// RegisterFactory 把已部署的 factory 登记到 master registry
func (d *Directory) RegisterFactory(ctx context.Context, addr common.Address, name string) (*types.Receipt, error) {
	return d.register(ctx, "addFactory", addr, name)
}

// RegisterFactoryWithStaking 登记 factory 并让 registry 为它配置质押分成
func (d *Directory) RegisterFactoryWithStaking(ctx context.Context, addr common.Address, name string) (*types.Receipt, error) {
	return d.register(ctx, "addFactoryWithStaking", addr, name)
}

func (d *Directory) register(ctx context.Context, method string, addr common.Address, name string) (*types.Receipt, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("factory 名称不能为空")
	}
	if addr == (common.Address{}) {
		return nil, fmt.Errorf("factory 地址不能为空")
	}
	reg, err := d.registry()
	if err != nil {
		return nil, err
	}
	receipt, err := reg.Transact(ctx, nil, method, addr, name)
	if err != nil {
		return receipt, err
	}
	d.log().WithField("factory", addr.Hex()).Infof("factory %q 已登记", name)
	return receipt, nil
}

// DeployAndRegisterFactory 用配置的 creation code 部署新 factory，然后登记（带质押分成）。
// 部署成功但登记失败时返回已部署的地址和错误，可以用 RegisterFactoryWithStaking 补登记。
func (d *Directory) DeployAndRegisterFactory(ctx context.Context, name string) (common.Address, error) {
	if len(d.addrs.FactoryBytecode) == 0 {
		return common.Address{}, fmt.Errorf("%w: factory bytecode", chain.ErrNotConfigured)
	}
	if _, err := d.registry(); err != nil {
		return common.Address{}, err
	}
	if strings.TrimSpace(name) == "" {
		return common.Address{}, fmt.Errorf("factory 名称不能为空")
	}
	addr, _, err := d.session.Deploy(ctx, d.addrs.FactoryBytecode, "factory.deploy")
	if err != nil {
		return common.Address{}, err
	}
	d.log().WithField("factory", addr.Hex()).Info("factory 已部署")
	if _, err := d.RegisterFactoryWithStaking(ctx, addr, name); err != nil {
		return addr, fmt.Errorf("factory %s 已部署但登记失败: %w", addr.Hex(), err)
	}
	return addr, nil
}

// SetFactoryActive 在 registry 中启用/归档 factory
func (d *Directory) SetFactoryActive(ctx context.Context, addr common.Address, active bool) (*types.Receipt, error) {
	reg, err := d.registry()
	if err != nil {
		return nil, err
	}
	return reg.Transact(ctx, nil, "setFactoryActive", addr, active)
}

// StakingAddresses factory 的收益分成地址，零地址表示未设置
type StakingAddresses struct {
	Native common.Address `json:"native"`
	Token  common.Address `json:"token"`
}

// NativeLabel 展示用
func (s StakingAddresses) NativeLabel() string { return labelOrUnset(s.Native) }

// TokenLabel 展示用
func (s StakingAddresses) TokenLabel() string { return labelOrUnset(s.Token) }

func labelOrUnset(a common.Address) string {
	if a == (common.Address{}) {
		return "unset"
	}
	return a.Hex()
}

// StakingAddresses 读取 factory 的质押分成地址
func (d *Directory) StakingAddresses(ctx context.Context, factory common.Address) (StakingAddresses, error) {
	out, err := d.Contract(factory).Call(ctx, "getStakingAddresses")
	if err != nil {
		return StakingAddresses{}, err
	}
	var sa StakingAddresses
	sa.Native, _ = out[0].(common.Address)
	sa.Token, _ = out[1].(common.Address)
	return sa, nil
}

// SetStakingAddresses 设置 factory 的质押分成地址
func (d *Directory) SetStakingAddresses(ctx context.Context, factory, native, token common.Address) (*types.Receipt, error) {
	return d.Contract(factory).Transact(ctx, nil, "setStakingAddresses", native, token)
}

func shortAddress(a common.Address) string {
	h := a.Hex()
	return h[:6] + "..." + h[len(h)-4:]
}
