package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/betbot/betdex/internal/metrics"
)

// Contract 绑定了 ABI 与地址的合约句柄
type Contract struct {
	Address common.Address
	name    string
	abi     *abi.ABI
	session *Session
}

// NewContract 绑定合约；name 只用于日志与指标
func NewContract(s *Session, name string, addr common.Address, parsed *abi.ABI) *Contract {
	return &Contract{Address: addr, name: name, abi: parsed, session: s}
}

// ABI 合约 ABI
func (c *Contract) ABI() *abi.ABI { return c.abi }

func (c *Contract) label(method string) string {
	return c.name + "." + method
}

// CallRaw 只读调用，返回未解码的返回数据。结果按 (chain, 地址, calldata) 缓存。
func (c *Contract) CallRaw(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("打包%s参数失败: %w", c.label(method), err)
	}
	backend, err := c.session.Backend()
	if err != nil {
		return nil, err
	}

	key := readKey(c.session.ChainID(), c.Address, data)
	if cached, ok := c.session.reads.get(key); ok {
		return cached, nil
	}

	var from common.Address
	if acct, accErr := c.session.Account(); accErr == nil {
		from = acct
	}
	if c.session.limiter != nil {
		if err := c.session.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	to := c.Address
	out, err := backend.CallContract(ctx, ethereum.CallMsg{From: from, To: &to, Data: data}, nil)
	if err != nil {
		metrics.ChainCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("调用%s失败: %w", c.label(method), err)
	}
	if len(out) == 0 && len(c.abi.Methods[method].Outputs) > 0 {
		metrics.ChainCalls.WithLabelValues(method, "error").Inc()
		return nil, fmt.Errorf("%s @ %s: %w", c.label(method), c.Address.Hex(), ErrEmptyResult)
	}
	metrics.ChainCalls.WithLabelValues(method, "ok").Inc()
	c.session.reads.set(key, out)
	return out, nil
}

// Call 只读调用并按 ABI 解码为值列表
func (c *Contract) Call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	raw, err := c.CallRaw(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	values, err := c.abi.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("解析%s返回值失败: %w", c.label(method), err)
	}
	return values, nil
}

// CallInto 只读调用并解码到结构体
func (c *Contract) CallInto(ctx context.Context, out interface{}, method string, args ...interface{}) error {
	raw, err := c.CallRaw(ctx, method, args...)
	if err != nil {
		return err
	}
	if err := c.abi.UnpackIntoInterface(out, method, raw); err != nil {
		return fmt.Errorf("解析%s返回值失败: %w", c.label(method), err)
	}
	return nil
}

// Transact 发送交易并等待上链；value 为 nil 表示不附带原生币
func (c *Contract) Transact(ctx context.Context, value *big.Int, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("打包%s参数失败: %w", c.label(method), err)
	}
	to := c.Address
	return c.session.SendTx(ctx, &to, value, data, c.label(method))
}

// Events 从回执中按事件名筛选日志
func (c *Contract) Events(receipt *types.Receipt, event string) []*types.Log {
	ev, ok := c.abi.Events[event]
	if !ok || receipt == nil {
		return nil
	}
	var out []*types.Log
	for _, l := range receipt.Logs {
		if len(l.Topics) > 0 && l.Topics[0] == ev.ID {
			out = append(out, l)
		}
	}
	return out
}

// UnpackLog 解码事件日志中非 indexed 的字段
func (c *Contract) UnpackLog(out interface{}, event string, l types.Log) error {
	if len(l.Data) == 0 {
		return nil
	}
	return c.abi.UnpackIntoInterface(out, event, l.Data)
}
