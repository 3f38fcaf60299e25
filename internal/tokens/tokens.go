// Package tokens 管理可选代币列表（默认代币、内置列表、用户导入）并读取余额。
package tokens

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/pkg/clientstate"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/units"
)

// ErrUnknownToken 列表中没有该代币
var ErrUnknownToken = errors.New("未知代币")

// Token 代币描述，JSON 形状与 customTokens 中保存的一致
type Token struct {
	Address  common.Address `json:"address"`
	Name     string         `json:"name"`
	Symbol   string         `json:"symbol"`
	Decimals int32          `json:"decimals"`
	LogoURI  string         `json:"logoURI,omitempty"`
	ChainID  int64          `json:"chainId,omitempty"`
	Custom   bool           `json:"-"`
}

// balanceRetryDelays 余额读取失败后的等待时间，第 n 次重试等待 n 秒
var balanceRetryDelays = []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}

// Directory 代币目录。列表第一项是默认代币（包装的原生币）。
type Directory struct {
	session *chain.Session
	store   clientstate.Store
	native  common.Address
	builtin []Token

	mu     sync.Mutex
	custom []Token

	// sleep 重试等待，测试中替换
	sleep func(ctx context.Context, d time.Duration) error
}

// NewDirectory 用配置中的代币列表创建目录，并从 store 载入用户导入的代币。
// wrapped 为路由使用的包装原生币地址，余额按原生币读取。
func NewDirectory(s *chain.Session, list []config.TokenConfig, wrapped common.Address, store clientstate.Store) *Directory {
	if store == nil && s != nil {
		store = s.Store()
	}
	d := &Directory{session: s, store: store, native: wrapped, sleep: sleepCtx}
	for _, t := range list {
		d.builtin = append(d.builtin, Token{
			Address:  common.HexToAddress(t.Address),
			Name:     t.Name,
			Symbol:   t.Symbol,
			Decimals: t.Decimals,
			LogoURI:  t.LogoURI,
		})
	}
	if store != nil {
		var saved []Token
		if _, err := clientstate.GetJSON(store, clientstate.KeyCustomTokens, &saved); err != nil {
			logger.Warnf("读取自定义代币失败，忽略: %v", err)
		}
		for i := range saved {
			saved[i].Custom = true
		}
		d.custom = saved
	}
	return d
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsNative 是否按原生币处理
func (d *Directory) IsNative(addr common.Address) bool {
	return addr == d.native
}

// Native 包装原生币地址
func (d *Directory) Native() common.Address { return d.native }

// All 内置代币 + 导入代币，按地址去重，保持顺序
func (d *Directory) All() []Token {
	d.mu.Lock()
	defer d.mu.Unlock()
	seen := make(map[common.Address]struct{}, len(d.builtin)+len(d.custom))
	out := make([]Token, 0, len(d.builtin)+len(d.custom))
	for _, list := range [][]Token{d.builtin, d.custom} {
		for _, t := range list {
			if _, dup := seen[t.Address]; dup {
				continue
			}
			seen[t.Address] = struct{}{}
			out = append(out, t)
		}
	}
	return out
}

// Default 默认代币
func (d *Directory) Default() (Token, bool) {
	all := d.All()
	if len(all) == 0 {
		return Token{}, false
	}
	return all[0], true
}

// Lookup 按地址查找
func (d *Directory) Lookup(addr common.Address) (Token, bool) {
	for _, t := range d.All() {
		if t.Address == addr {
			return t, true
		}
	}
	return Token{}, false
}

// Find 按符号（不区分大小写）或地址查找
func (d *Directory) Find(ref string) (Token, error) {
	ref = strings.TrimSpace(ref)
	if common.IsHexAddress(ref) {
		if t, ok := d.Lookup(common.HexToAddress(ref)); ok {
			return t, nil
		}
		return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
	}
	for _, t := range d.All() {
		if strings.EqualFold(t.Symbol, ref) {
			return t, nil
		}
	}
	return Token{}, fmt.Errorf("%w: %s", ErrUnknownToken, ref)
}

// Search 名称、符号或地址包含 query 的代币
func (d *Directory) Search(query string) []Token {
	q := strings.ToLower(strings.TrimSpace(query))
	var out []Token
	for _, t := range d.All() {
		if q == "" ||
			strings.Contains(strings.ToLower(t.Name), q) ||
			strings.Contains(strings.ToLower(t.Symbol), q) ||
			strings.Contains(strings.ToLower(t.Address.Hex()), q) {
			out = append(out, t)
		}
	}
	return out
}

// ImportToken 读取 ERC-20 的 name/symbol/decimals 并加入自定义列表。已在列表中时直接返回。
func (d *Directory) ImportToken(ctx context.Context, addr common.Address) (Token, error) {
	if t, ok := d.Lookup(addr); ok {
		return t, nil
	}
	erc20 := chain.NewContract(d.session, "erc20", addr, contracts.ERC20)
	var (
		name, symbol string
		decimals     uint8
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := erc20.Call(gctx, "name")
		if err == nil {
			name, _ = v[0].(string)
		}
		return err
	})
	g.Go(func() error {
		v, err := erc20.Call(gctx, "symbol")
		if err == nil {
			symbol, _ = v[0].(string)
		}
		return err
	})
	g.Go(func() error {
		v, err := erc20.Call(gctx, "decimals")
		if err == nil {
			decimals, _ = v[0].(uint8)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return Token{}, fmt.Errorf("读取代币 %s 信息失败: %w", addr.Hex(), err)
	}
	if symbol == "" {
		return Token{}, fmt.Errorf("代币 %s 没有 symbol", addr.Hex())
	}

	t := Token{
		Address:  addr,
		Name:     name,
		Symbol:   symbol,
		Decimals: int32(decimals),
		LogoURI:  "https://placehold.co/40x40/8B5CF6/ffffff?text=" + symbol[:1],
		ChainID:  int64(d.session.ChainID()),
		Custom:   true,
	}
	d.mu.Lock()
	d.custom = append(d.custom, t)
	saved := append([]Token(nil), d.custom...)
	d.mu.Unlock()
	if err := d.save(saved); err != nil {
		return t, err
	}
	logger.WithFields(logrus.Fields{"token": addr.Hex(), "symbol": symbol}).Info("已导入代币")
	return t, nil
}

// RemoveToken 从自定义列表移除；内置代币不能移除
func (d *Directory) RemoveToken(addr common.Address) error {
	d.mu.Lock()
	kept := d.custom[:0:0]
	removed := false
	for _, t := range d.custom {
		if t.Address == addr {
			removed = true
			continue
		}
		kept = append(kept, t)
	}
	d.custom = kept
	saved := append([]Token(nil), kept...)
	d.mu.Unlock()
	if !removed {
		return fmt.Errorf("%w: %s 不是导入的代币", ErrUnknownToken, addr.Hex())
	}
	return d.save(saved)
}

func (d *Directory) save(list []Token) error {
	if d.store == nil {
		return nil
	}
	if err := clientstate.SetJSON(d.store, clientstate.KeyCustomTokens, list); err != nil {
		return fmt.Errorf("保存自定义代币失败: %w", err)
	}
	return nil
}

// Balance 读取余额：包装原生币按原生余额读取，其余按 ERC-20 balanceOf。
// 失败时按 1s/2s/3s 重试最多 3 次。
func (d *Directory) Balance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	var lastErr error
	for attempt := 0; attempt <= len(balanceRetryDelays); attempt++ {
		if attempt > 0 {
			if err := d.sleep(ctx, balanceRetryDelays[attempt-1]); err != nil {
				return nil, err
			}
			logger.Debugf("重试读取余额 %s（第 %d 次）", token.Hex(), attempt)
		}
		bal, err := d.readBalance(ctx, token, owner)
		if err == nil {
			return bal, nil
		}
		if errors.Is(err, chain.ErrNotConnected) {
			return nil, err
		}
		lastErr = err
		logger.Warnf("读取余额失败 %s (%d/%d): %v", token.Hex(), attempt+1, len(balanceRetryDelays)+1, err)
	}
	return nil, lastErr
}

func (d *Directory) readBalance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	if d.IsNative(token) {
		return d.session.NativeBalance(ctx, owner)
	}
	v, err := chain.NewContract(d.session, "erc20", token, contracts.ERC20).Call(ctx, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	bal, _ := v[0].(*big.Int)
	if bal == nil {
		bal = new(big.Int)
	}
	return bal, nil
}

// Holding 代币及余额
type Holding struct {
	Token   Token    `json:"token"`
	Balance *big.Int `json:"balance"`
	Display string   `json:"display"`
}

// Balances 列表中所有代币的余额，按余额从大到小排序；读取失败的余额记为 0
func (d *Directory) Balances(ctx context.Context, owner common.Address) []Holding {
	all := d.All()
	out := make([]Holding, len(all))
	var g errgroup.Group
	g.SetLimit(4)
	for i, t := range all {
		g.Go(func() error {
			bal, err := d.readBalance(ctx, t.Address, owner)
			if err != nil {
				logger.WithField("token", t.Address.Hex()).Warnf("读取余额失败: %v", err)
				bal = new(big.Int)
			}
			out[i] = Holding{Token: t, Balance: bal, Display: units.FormatAmount(bal, t.Decimals)}
			return nil
		})
	}
	_ = g.Wait()
	sort.SliceStable(out, func(i, j int) bool {
		return units.ToDecimal(out[i].Balance, out[i].Token.Decimals).
			GreaterThan(units.ToDecimal(out[j].Balance, out[j].Token.Decimals))
	})
	return out
}
