package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/metrics"
	"github.com/betbot/betdex/pkg/logger"
)

// gasBufferPercent 在估算值上额外预留的 gas
const gasBufferPercent = 20

// SendTx 构造、签名、发送交易并等待回执。to 为 nil 表示部署合约。
// 发送前后都会清空读缓存；revert 与用户拒绝会被归类为 *TxError。
func (s *Session) SendTx(ctx context.Context, to *common.Address, value *big.Int, data []byte, label string) (*types.Receipt, error) {
	backend, err := s.Backend()
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	signer := s.signer
	chainID := s.chainID
	s.mu.RUnlock()
	if signer == nil {
		return nil, ErrNoSigner
	}
	if value == nil {
		value = big.NewInt(0)
	}
	from := signer.Address()
	s.reads.clear()

	nonce, err := backend.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, s.txFailed(label, fmt.Errorf("获取nonce失败: %w", err))
	}
	gasPrice, err := backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, s.txFailed(label, fmt.Errorf("获取gas价格失败: %w", err))
	}
	msg := ethereum.CallMsg{From: from, To: to, Value: value, Data: data}
	gasLimit, err := backend.EstimateGas(ctx, msg)
	if err != nil {
		// 大部分 revert 在估算阶段就会暴露
		return nil, s.txFailed(label, err)
	}
	gasLimit += gasLimit * gasBufferPercent / 100

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	})
	signed, err := signer.SignTx(tx, chainID)
	if err != nil {
		return nil, s.txFailed(label, err)
	}
	if err := backend.SendTransaction(ctx, signed); err != nil {
		return nil, s.txFailed(label, fmt.Errorf("发送交易失败: %w", err))
	}

	entry := logger.WithFields(logrus.Fields{"tx": signed.Hash().Hex(), "method": label})
	entry.Info("交易已发送，等待确认")

	receipt, err := s.WaitMined(ctx, signed.Hash())
	s.reads.clear()
	if err != nil {
		return nil, s.txFailed(label, err)
	}
	if receipt.Status == types.ReceiptStatusFailed {
		reason := s.replayRevert(ctx, backend, msg, receipt.BlockNumber)
		metrics.Transactions.WithLabelValues(label, string(TxReverted)).Inc()
		entry.Warnf("交易回滚: %s", reason)
		return receipt, &TxError{Kind: TxReverted, Method: label, Reason: reason, TxHash: signed.Hash()}
	}
	metrics.Transactions.WithLabelValues(label, "mined").Inc()
	entry.WithField("block", receipt.BlockNumber).Info("交易已确认")
	return receipt, nil
}

func (s *Session) txFailed(label string, err error) error {
	classified := ClassifyError(label, err)
	var te *TxError
	if errors.As(classified, &te) {
		metrics.Transactions.WithLabelValues(label, string(te.Kind)).Inc()
	}
	return classified
}

// replayRevert 在回执所在区块重放调用以取得 revert 原因
func (s *Session) replayRevert(ctx context.Context, backend Backend, msg ethereum.CallMsg, block *big.Int) string {
	_, err := backend.CallContract(ctx, msg, block)
	if reason, ok := RevertReason(err); ok {
		return reason
	}
	return ""
}

// WaitMined 轮询交易回执直到上链或 ctx 结束
func (s *Session) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	backend, err := s.Backend()
	if err != nil {
		return nil, err
	}
	ticker := time.NewTicker(s.receiptPoll)
	defer ticker.Stop()
	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("获取交易回执失败: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Deploy 部署合约，返回合约地址
func (s *Session) Deploy(ctx context.Context, bytecode []byte, label string) (common.Address, *types.Receipt, error) {
	if len(bytecode) == 0 {
		return common.Address{}, nil, fmt.Errorf("部署 %s: bytecode 为空", label)
	}
	receipt, err := s.SendTx(ctx, nil, nil, bytecode, label)
	if err != nil {
		return common.Address{}, receipt, err
	}
	if receipt.ContractAddress == (common.Address{}) {
		return common.Address{}, receipt, fmt.Errorf("部署 %s: 回执中没有合约地址", label)
	}
	return receipt.ContractAddress, receipt, nil
}

// NativeBalance 原生币余额
func (s *Session) NativeBalance(ctx context.Context, addr common.Address) (*big.Int, error) {
	backend, err := s.Backend()
	if err != nil {
		return nil, err
	}
	bal, err := backend.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("查询余额失败: %w", err)
	}
	return bal, nil
}

// BlockNumber 最新区块高度
func (s *Session) BlockNumber(ctx context.Context) (uint64, error) {
	backend, err := s.Backend()
	if err != nil {
		return 0, err
	}
	return backend.BlockNumber(ctx)
}

// BlockTime 最新区块时间戳
func (s *Session) BlockTime(ctx context.Context) (uint64, error) {
	backend, err := s.Backend()
	if err != nil {
		return 0, err
	}
	header, err := backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("获取最新区块失败: %w", err)
	}
	return header.Time, nil
}

// FilterLogs 查询日志
func (s *Session) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	backend, err := s.Backend()
	if err != nil {
		return nil, err
	}
	return backend.FilterLogs(ctx, q)
}

// HasCode 地址上是否部署了合约
func (s *Session) HasCode(ctx context.Context, addr common.Address) (bool, error) {
	backend, err := s.Backend()
	if err != nil {
		return false, err
	}
	code, err := backend.CodeAt(ctx, addr, nil)
	if err != nil {
		return false, err
	}
	return len(code) > 0, nil
}
