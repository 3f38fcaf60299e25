package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/google/uuid"
)

// Approval "先授权再执行"的两步操作。授权上链后不会回滚，
// 后一步失败时 Wrap 返回 *SagaError，调用方只需重试后一步。
type Approval struct {
	OpID      string
	operation string
	spender   common.Address
	session   *Session
	completed []string
}

// NewApproval spender 为被授权的合约（路由或质押合约）
func (s *Session) NewApproval(operation string, spender common.Address) *Approval {
	return &Approval{OpID: uuid.NewString(), operation: operation, spender: spender, session: s}
}

// Ensure allowance 小于 amount 时授权 MaxUint256。token 需要有 allowance/approve 方法；
// 读取 allowance 失败按 0 处理。
func (a *Approval) Ensure(ctx context.Context, token *Contract, symbol string, owner common.Address, amount *big.Int) error {
	allowance := new(big.Int)
	if v, err := token.Call(ctx, "allowance", owner, a.spender); err == nil {
		if got, ok := v[0].(*big.Int); ok {
			allowance = got
		}
	} else {
		a.session.log().Warnf("读取 %s allowance 失败，按 0 处理: %v", symbol, err)
	}
	if allowance.Cmp(amount) >= 0 {
		return nil
	}
	a.session.log().WithField("op", a.OpID).Infof("%s: 授权 %s 给 %s", a.operation, symbol, a.spender.Hex())
	if _, err := token.Transact(ctx, nil, "approve", a.spender, math.MaxBig256); err != nil {
		if len(a.completed) > 0 {
			return a.Wrap("approve "+symbol, err)
		}
		return err
	}
	a.completed = append(a.completed, "approve "+symbol)
	return nil
}

// Approved 本次操作已上链的授权
func (a *Approval) Approved() []string {
	return append([]string(nil), a.completed...)
}

// Wrap err 为 nil 或没有授权上链时原样返回
func (a *Approval) Wrap(method string, err error) error {
	if err == nil || len(a.completed) == 0 {
		return err
	}
	return &SagaError{
		OpID:      a.OpID,
		Operation: a.operation,
		Completed: a.Approved(),
		Failed:    method,
		Recovery:  "approval kept, retry " + a.operation + " only",
		Err:       err,
	}
}
