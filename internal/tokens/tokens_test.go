package tokens

import (
	"context"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/pkg/clientstate"
	"github.com/betbot/betdex/pkg/config"
	"github.com/betbot/betdex/pkg/logger"
)

var (
	wmnt  = common.HexToAddress("0xf42548Ba89dc2314408f44b16506F88769abDED5")
	usdc  = common.HexToAddress("0xE1010F50c511938699fDcac5520b0AdEd090b922")
	newTk = common.HexToAddress("0x00000000000000000000000000000000000000d1")
	owner = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

func newDir(t *testing.T, store clientstate.Store) (*Directory, *chaintest.FakeBackend, *[]time.Duration) {
	t.Helper()
	logger.Discard()
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, nil)
	require.NoError(t, err)
	if store == nil {
		store = s.Store()
	}
	d := NewDirectory(s, []config.TokenConfig{
		{Address: wmnt.Hex(), Symbol: "MNT", Name: "Mantle", Decimals: 18},
		{Address: usdc.Hex(), Symbol: "USDC", Name: "USD Coin", Decimals: 6},
	}, wmnt, store)
	var waits []time.Duration
	d.sleep = func(_ context.Context, dur time.Duration) error {
		waits = append(waits, dur)
		return nil
	}
	return d, fb, &waits
}

func TestDirectoryLookup(t *testing.T) {
	d, _, _ := newDir(t, nil)

	def, ok := d.Default()
	require.True(t, ok)
	assert.Equal(t, "MNT", def.Symbol)
	assert.True(t, d.IsNative(def.Address))

	tk, err := d.Find("usdc")
	require.NoError(t, err)
	assert.Equal(t, usdc, tk.Address)
	tk, err = d.Find(usdc.Hex())
	require.NoError(t, err)
	assert.Equal(t, int32(6), tk.Decimals)

	_, err = d.Find("DOGE")
	assert.ErrorIs(t, err, ErrUnknownToken)
	assert.Len(t, d.Search("coin"), 1)
	assert.Len(t, d.Search(""), 2)
}

func TestImportTokenPersists(t *testing.T) {
	store := clientstate.NewMemoryStore()
	d, fb, _ := newDir(t, store)
	fb.Returns(newTk, contracts.ERC20, "name", "Intel Token")
	fb.Returns(newTk, contracts.ERC20, "symbol", "INTEL")
	fb.Returns(newTk, contracts.ERC20, "decimals", uint8(8))

	tk, err := d.ImportToken(context.Background(), newTk)
	require.NoError(t, err)
	assert.Equal(t, "INTEL", tk.Symbol)
	assert.Equal(t, int32(8), tk.Decimals)
	assert.True(t, tk.Custom)
	assert.Equal(t, int64(5003), tk.ChainID)
	assert.Len(t, d.All(), 3)

	// 重新加载后仍然存在
	reloaded := NewDirectory(d.session, nil, wmnt, store)
	got, ok := reloaded.Lookup(newTk)
	require.True(t, ok)
	assert.True(t, got.Custom)

	// 重复导入不产生重复项
	_, err = d.ImportToken(context.Background(), newTk)
	require.NoError(t, err)
	assert.Len(t, d.All(), 3)

	require.NoError(t, d.RemoveToken(newTk))
	assert.Len(t, d.All(), 2)
	assert.ErrorIs(t, d.RemoveToken(usdc), ErrUnknownToken)
}

func TestImportTokenRejectsNonToken(t *testing.T) {
	d, _, _ := newDir(t, nil)
	_, err := d.ImportToken(context.Background(), newTk)
	require.Error(t, err)
	assert.Len(t, d.All(), 2)
}

func TestBalanceNativeAndERC20(t *testing.T) {
	d, fb, waits := newDir(t, nil)
	fb.SetBalance(owner, big.NewInt(5e18))
	fb.Returns(usdc, contracts.ERC20, "balanceOf", big.NewInt(2_500_000))

	bal, err := d.Balance(context.Background(), wmnt, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(5e18), bal)

	bal, err = d.Balance(context.Background(), usdc, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(2_500_000), bal)
	assert.Empty(t, *waits)

	hs := d.Balances(context.Background(), owner)
	require.Len(t, hs, 2)
	assert.Equal(t, "MNT", hs[0].Token.Symbol)
	assert.Equal(t, "5", hs[0].Display)
	assert.Equal(t, "2.5", hs[1].Display)
}

func TestBalanceRetriesWithBackoff(t *testing.T) {
	d, fb, waits := newDir(t, nil)
	var calls int32
	fb.Handle(usdc, contracts.ERC20, "balanceOf", func([]interface{}) ([]interface{}, error) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return nil, chaintest.ErrRPC
		}
		return []interface{}{big.NewInt(7)}, nil
	})

	bal, err := d.Balance(context.Background(), usdc, owner)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), bal)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestBalanceGivesUpAfterThreeRetries(t *testing.T) {
	d, fb, waits := newDir(t, nil)
	fb.Fails(usdc, contracts.ERC20, "balanceOf", chaintest.ErrRPC)

	_, err := d.Balance(context.Background(), usdc, owner)
	require.ErrorIs(t, err, chaintest.ErrRPC)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 3 * time.Second}, *waits)
	assert.Equal(t, 4, fb.CallCountFor(usdc, "balanceOf"))
}

func TestBalanceStopsOnCancel(t *testing.T) {
	d, fb, _ := newDir(t, nil)
	fb.Fails(usdc, contracts.ERC20, "balanceOf", chaintest.ErrRPC)
	d.sleep = sleepCtx

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Balance(ctx, usdc, owner)
	require.ErrorIs(t, err, context.Canceled)
}
