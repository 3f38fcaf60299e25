package chain_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
)

var tokenAddr = common.HexToAddress("0x00000000000000000000000000000000000000c1")

func TestContractCallReadThroughCache(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	owner := common.HexToAddress("0x1000000000000000000000000000000000000001")
	fb.Returns(tokenAddr, contracts.ERC20, "balanceOf", big.NewInt(42))

	s, err := chaintest.Connect(fb, chaintest.NewSigner(), func(o *chain.Options) { o.CacheTTL = time.Minute })
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	for i := 0; i < 3; i++ {
		out, err := token.Call(context.Background(), "balanceOf", owner)
		require.NoError(t, err)
		assert.Equal(t, int64(42), out[0].(*big.Int).Int64())
	}
	assert.Equal(t, 1, fb.CallCountFor(tokenAddr, "balanceOf"))

	// 不同参数是不同的缓存 key
	_, err = token.Call(context.Background(), "balanceOf", common.HexToAddress("0x2"))
	require.NoError(t, err)
	assert.Equal(t, 2, fb.CallCountFor(tokenAddr, "balanceOf"))

	// 写操作后缓存失效
	_, err = token.Transact(context.Background(), nil, "approve", owner, big.NewInt(1))
	require.NoError(t, err)
	_, err = token.Call(context.Background(), "balanceOf", owner)
	require.NoError(t, err)
	assert.Equal(t, 3, fb.CallCountFor(tokenAddr, "balanceOf"))
}

func TestContractCallWithoutCacheAlwaysHitsNode(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	fb.Returns(tokenAddr, contracts.ERC20, "decimals", uint8(6))
	s, err := chaintest.Connect(fb, nil)
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	for i := 0; i < 2; i++ {
		out, err := token.Call(context.Background(), "decimals")
		require.NoError(t, err)
		assert.Equal(t, uint8(6), out[0])
	}
	assert.Equal(t, 2, fb.CallCountFor(tokenAddr, "decimals"))
}

func TestContractCallEmptyResult(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, nil)
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	_, err = token.Call(context.Background(), "symbol")
	require.ErrorIs(t, err, chain.ErrEmptyResult)
}

func TestTransactRequiresSigner(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, nil)
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)
	_, err = token.Transact(context.Background(), nil, "approve", tokenAddr, big.NewInt(1))
	require.ErrorIs(t, err, chain.ErrNoSigner)
}

func TestTransactRevertAtEstimate(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	fb.FailEstimate(tokenAddr, contracts.ERC20, "approve", chaintest.Revert("Betting closed"))
	s, err := chaintest.Connect(fb, chaintest.NewSigner())
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	_, err = token.Transact(context.Background(), nil, "approve", tokenAddr, big.NewInt(1))
	var te *chain.TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, chain.TxReverted, te.Kind)
	assert.Equal(t, "Betting closed", te.Reason)
	assert.Equal(t, "Betting is closed for this match.", chain.FriendlyMessage(err))
	assert.Empty(t, fb.Sent())
}

func TestTransactUserRejected(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	fb.FailEstimate(tokenAddr, contracts.ERC20, "approve", chaintest.RejectError{})
	s, err := chaintest.Connect(fb, chaintest.NewSigner())
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	_, err = token.Transact(context.Background(), nil, "approve", tokenAddr, big.NewInt(1))
	require.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, "Transaction rejected by user", chain.FriendlyMessage(err))
}

func TestTransactOnChainRevertReplaysReason(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	fb.OnTx(tokenAddr, contracts.ERC20, "approve", func(common.Address, *big.Int, []interface{}) ([]*types.Log, error) {
		return nil, chaintest.Revert("Insufficient liquidity")
	})
	s, err := chaintest.Connect(fb, chaintest.NewSigner())
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	receipt, err := token.Transact(context.Background(), nil, "approve", tokenAddr, big.NewInt(1))
	require.NotNil(t, receipt)
	var te *chain.TxError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, chain.TxReverted, te.Kind)
	assert.Equal(t, "Insufficient liquidity", te.Reason)
	assert.Equal(t, receipt.TxHash, te.TxHash)
}

func TestTransactSendsValueAndDecodesArgs(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	signer := chaintest.NewSigner()
	s, err := chaintest.Connect(fb, signer)
	require.NoError(t, err)
	m := chain.NewContract(s, "match", tokenAddr, contracts.MatchWithDraw)
	fb.OnTx(tokenAddr, contracts.MatchWithDraw, "bet", nil)

	_, err = m.Transact(context.Background(), big.NewInt(10), "bet", uint8(1))
	require.NoError(t, err)
	sent := fb.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bet", sent[0].Method)
	assert.Equal(t, uint8(1), sent[0].Args[0])
	assert.Equal(t, int64(10), sent[0].Value.Int64())
	assert.Equal(t, signer.Address(), sent[0].From)
}

func TestDeploy(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, chaintest.NewSigner())
	require.NoError(t, err)

	addr, _, err := s.Deploy(context.Background(), []byte{0x60, 0x80, 0x60, 0x40}, "factory")
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, addr)
	ok, err := s.HasCode(context.Background(), addr)
	require.NoError(t, err)
	assert.True(t, ok)

	_, _, err = s.Deploy(context.Background(), nil, "factory")
	require.Error(t, err)
}

func TestWaitMinedHonoursContext(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.WaitMined(ctx, common.HexToHash("0xdead"))
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestContractCallRateLimited(t *testing.T) {
	fb := chaintest.NewFakeBackend(5003)
	fb.Returns(tokenAddr, contracts.ERC20, "decimals", uint8(6))
	s, err := chaintest.Connect(fb, nil, func(o *chain.Options) {
		o.RPCRateLimit = 0.001
		o.RPCBurst = 1
	})
	require.NoError(t, err)
	token := chain.NewContract(s, "erc20", tokenAddr, contracts.ERC20)

	_, err = token.Call(context.Background(), "decimals")
	require.NoError(t, err)

	// 令牌用完后等待受 ctx 约束
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = token.Call(ctx, "decimals")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, fb.CallCountFor(tokenAddr, "decimals"))
}
