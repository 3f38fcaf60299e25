package chain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrNotConnected 会话未连接
	ErrNotConnected = errors.New("钱包未连接")
	// ErrWrongNetwork 节点链 ID 与配置不一致
	ErrWrongNetwork = errors.New("网络不匹配")
	// ErrNoSigner 只读会话无法发送交易
	ErrNoSigner = errors.New("未配置签名账户")
	// ErrNoAccount 既没有签名账户也没有观察地址
	ErrNoAccount = errors.New("未设置账户地址")
	// ErrEmptyResult 合约调用返回空数据（合约不存在或方法缺失）
	ErrEmptyResult = errors.New("合约调用返回空数据")
	// ErrUserRejected 用户拒绝签名
	ErrUserRejected = errors.New("transaction rejected by user")
	// ErrNotConfigured 缺少外部依赖配置（master registry、factory bytecode 等）
	ErrNotConfigured = errors.New("未配置")
)

// rejectCode EIP-1193 用户拒绝
const rejectCode = 4001

// TxErrorKind 交易失败分类
type TxErrorKind string

const (
	TxRejected TxErrorKind = "rejected"
	TxReverted TxErrorKind = "reverted"
	TxFailed   TxErrorKind = "failed"
)

// TxError 交易失败，区分用户拒绝、合约 revert 与其他错误
type TxError struct {
	Kind   TxErrorKind
	Method string
	Reason string // revert reason，可能为空
	TxHash common.Hash
	Err    error
}

func (e *TxError) Error() string {
	switch e.Kind {
	case TxRejected:
		return fmt.Sprintf("%s: %s", e.Method, ErrUserRejected)
	case TxReverted:
		if e.Reason != "" {
			return fmt.Sprintf("%s reverted: %s", e.Method, e.Reason)
		}
		return fmt.Sprintf("%s reverted", e.Method)
	default:
		return fmt.Sprintf("%s failed: %v", e.Method, e.Err)
	}
}

func (e *TxError) Unwrap() error { return e.Err }

// Is 让 errors.Is(err, ErrUserRejected) 对拒绝类错误成立
func (e *TxError) Is(target error) bool {
	return target == ErrUserRejected && e.Kind == TxRejected
}

// ClassifyError 把 RPC/签名错误归类为 *TxError，已分类的原样返回
func ClassifyError(method string, err error) error {
	if err == nil {
		return nil
	}
	var te *TxError
	if errors.As(err, &te) {
		return te
	}
	if isRejection(err) {
		return &TxError{Kind: TxRejected, Method: method, Err: err}
	}
	if reason, ok := RevertReason(err); ok {
		return &TxError{Kind: TxReverted, Method: method, Reason: reason, Err: err}
	}
	return &TxError{Kind: TxFailed, Method: method, Err: err}
}

func isRejection(err error) bool {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == rejectCode {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"user rejected", "user denied", "action_rejected", "rejected by user"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// RevertReason 从错误中提取 revert 原因：优先解码 Error(string) 数据，其次解析消息文本
func RevertReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason, true
				}
			}
		}
	}
	msg := err.Error()
	const marker = "execution reverted"
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	reason := strings.TrimSpace(strings.TrimPrefix(msg[idx+len(marker):], ":"))
	return reason, true
}

// knownReasons revert 原因关键字到提示文案
var knownReasons = []struct {
	marker  string
	message string
}{
	{"insufficient liquidity", "Insufficient liquidity in the contract. Please try a smaller amount."},
	{"betting closed", "Betting is closed for this match."},
	{"no winnings", "No winnings to claim for this match."},
	{"already claimed", "Rewards for this match were already claimed."},
	{"not finalized", "The match has not been finalized yet."},
	{"already finalized", "The match result was already finalized."},
	{"insufficient balance", "Insufficient balance."},
	{"exceeds max bet", "Bet exceeds the maximum allowed amount."},
	{"insufficient_output_amount", "Price moved beyond your slippage tolerance."},
	{"expired", "Transaction deadline expired."},
	{"ownable: caller is not the owner", "Only the contract owner can do this."},
}

// FriendlyMessage 面向用户的错误提示
func FriendlyMessage(err error) string {
	if err == nil {
		return ""
	}
	var se *SagaError
	if errors.As(err, &se) {
		return fmt.Sprintf("%s partially completed: %s", se.Operation, se.Recovery)
	}
	if errors.Is(err, ErrUserRejected) {
		return "Transaction rejected by user"
	}
	var te *TxError
	if errors.As(err, &te) && te.Kind == TxReverted {
		lower := strings.ToLower(te.Reason)
		for _, k := range knownReasons {
			if strings.Contains(lower, k.marker) {
				return k.message
			}
		}
		if te.Reason != "" {
			return "Transaction failed: " + te.Reason
		}
		return "Transaction failed"
	}
	if errors.Is(err, ErrNoSigner) || errors.Is(err, ErrNotConnected) {
		return "Please connect your wallet first"
	}
	if errors.Is(err, ErrWrongNetwork) {
		return "Please switch to the configured network"
	}
	return "Transaction failed. Please try again."
}

// SagaError 两步操作中第一步已上链、后一步失败。Completed 为已完成的步骤，
// Recovery 告诉调用方只需重试哪一步。
type SagaError struct {
	OpID      string
	Operation string
	Completed []string
	Failed    string
	Recovery  string
	Err       error
}

func (e *SagaError) Error() string {
	return fmt.Sprintf("%s: %s 已完成，%s 失败（%s）: %v",
		e.Operation, strings.Join(e.Completed, ","), e.Failed, e.Recovery, e.Err)
}

func (e *SagaError) Unwrap() error { return e.Err }
