package factory_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/pkg/clientstate"
)

var (
	master  = common.HexToAddress("0x00000000000000000000000000000000000000f0")
	legacy  = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	sports  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	esports = common.HexToAddress("0x00000000000000000000000000000000000000a2")
	broken  = common.HexToAddress("0x00000000000000000000000000000000000000a3")
)

func setup(t *testing.T, withMaster bool) (*chaintest.FakeBackend, *chain.Session, contracts.Addresses) {
	t.Helper()
	fb := chaintest.NewFakeBackend(5003)
	s, err := chaintest.Connect(fb, chaintest.NewSigner())
	require.NoError(t, err)
	addrs := contracts.Addresses{LegacyFactory: legacy}
	if withMaster {
		addrs.MasterRegistry = master
	}
	return fb, s, addrs
}

func registerFactories(fb *chaintest.FakeBackend) {
	fb.Returns(master, contracts.MasterRegistry, "getAllFactories", []common.Address{sports, broken, esports})
	fb.Handle(master, contracts.MasterRegistry, "getFactoryInfo", func(args []interface{}) ([]interface{}, error) {
		switch args[0].(common.Address) {
		case sports:
			return []interface{}{"Football", false, big.NewInt(3), big.NewInt(2)}, nil
		case esports:
			return []interface{}{"Esports", true, big.NewInt(0), big.NewInt(4)}, nil
		default:
			return nil, chaintest.Revert("unknown factory")
		}
	})
}

func TestListFactoriesFromRegistry(t *testing.T) {
	fb, s, addrs := setup(t, true)
	registerFactories(fb)
	d := factory.NewDirectory(s, addrs, nil)

	list := d.ListFactories(context.Background())
	require.Len(t, list, 2, "读取失败的 factory 应被跳过")
	assert.Equal(t, "Football", list[0].Name)
	assert.Equal(t, uint64(5), list[0].TotalMatches())
	assert.Equal(t, "Esports", list[1].Name)
	assert.True(t, list[1].Active)

	// 没有保存的选择时取第一个 active
	assert.Equal(t, esports, d.Current(context.Background()).Address)
}

func TestListFactoriesFallsBackToLegacy(t *testing.T) {
	t.Run("no registry configured", func(t *testing.T) {
		_, s, addrs := setup(t, false)
		list := factory.NewDirectory(s, addrs, nil).ListFactories(context.Background())
		require.Len(t, list, 1)
		assert.Equal(t, legacy, list[0].Address)
		assert.Equal(t, factory.LegacyName, list[0].Name)
		assert.True(t, list[0].Legacy)
	})
	t.Run("registry reverts", func(t *testing.T) {
		fb, s, addrs := setup(t, true)
		fb.Fails(master, contracts.MasterRegistry, "getAllFactories", chaintest.Revert("nope"))
		list := factory.NewDirectory(s, addrs, nil).ListFactories(context.Background())
		require.Len(t, list, 1)
		assert.True(t, list[0].Legacy)
	})
	t.Run("registry missing on chain", func(t *testing.T) {
		_, s, addrs := setup(t, true)
		list := factory.NewDirectory(s, addrs, nil).ListFactories(context.Background())
		require.Len(t, list, 1)
		assert.True(t, list[0].Legacy)
	})
	t.Run("empty registry", func(t *testing.T) {
		fb, s, addrs := setup(t, true)
		fb.Returns(master, contracts.MasterRegistry, "getAllFactories", []common.Address{})
		list := factory.NewDirectory(s, addrs, nil).ListFactories(context.Background())
		require.Len(t, list, 1)
		assert.True(t, list[0].Legacy)
	})
	t.Run("session disconnected", func(t *testing.T) {
		fb, s, addrs := setup(t, true)
		registerFactories(fb)
		s.Disconnect()
		list := factory.NewDirectory(s, addrs, nil).ListFactories(context.Background())
		require.Len(t, list, 1)
		assert.True(t, list[0].Legacy)
	})
}

func TestSelectFactoryPersists(t *testing.T) {
	fb, s, addrs := setup(t, true)
	registerFactories(fb)
	store := clientstate.NewMemoryStore()

	d := factory.NewDirectory(s, addrs, store)
	require.NoError(t, d.SelectFactory(sports))
	assert.Equal(t, sports, d.Current(context.Background()).Address)

	v, ok, err := store.Get(clientstate.KeySelectedFactory)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sports.Hex(), v)

	// 重新加载后沿用保存的选择
	reloaded := factory.NewDirectory(s, addrs, store)
	assert.Equal(t, sports, reloaded.Selected())
	assert.Equal(t, sports, reloaded.Current(context.Background()).Address)

	// 已保存的 factory 不再在列表中时回退到第一个 active
	require.NoError(t, store.Set(clientstate.KeySelectedFactory, broken.Hex()))
	assert.Equal(t, esports, factory.NewDirectory(s, addrs, store).Current(context.Background()).Address)

	require.Error(t, d.SelectFactory(common.Address{}))
}

func TestRegisterFactory(t *testing.T) {
	fb, s, addrs := setup(t, true)
	fb.OnTx(master, contracts.MasterRegistry, "addFactory", nil)
	d := factory.NewDirectory(s, addrs, nil)

	_, err := d.RegisterFactory(context.Background(), sports, "Football")
	require.NoError(t, err)
	sent := fb.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "addFactory", sent[0].Method)
	assert.Equal(t, sports, sent[0].Args[0])
	assert.Equal(t, "Football", sent[0].Args[1])

	_, err = d.RegisterFactory(context.Background(), sports, " ")
	require.Error(t, err)
}

func TestRegisterFactorySurfacesRevertReason(t *testing.T) {
	fb, s, addrs := setup(t, true)
	fb.FailEstimate(master, contracts.MasterRegistry, "addFactoryWithStaking", chaintest.Revert("Factory already registered"))
	d := factory.NewDirectory(s, addrs, nil)

	_, err := d.RegisterFactoryWithStaking(context.Background(), sports, "Football")
	var te *chain.TxError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "Factory already registered", te.Reason)
}

func TestRegisterWithoutRegistryIsNotConfigured(t *testing.T) {
	_, s, addrs := setup(t, false)
	d := factory.NewDirectory(s, addrs, nil)
	_, err := d.RegisterFactory(context.Background(), sports, "Football")
	require.ErrorIs(t, err, chain.ErrNotConfigured)
	_, err = d.SetFactoryActive(context.Background(), sports, false)
	require.ErrorIs(t, err, chain.ErrNotConfigured)
}

func TestDeployAndRegisterFactory(t *testing.T) {
	fb, s, addrs := setup(t, true)
	d := factory.NewDirectory(s, addrs, nil)

	_, err := d.DeployAndRegisterFactory(context.Background(), "New")
	require.ErrorIs(t, err, chain.ErrNotConfigured)

	addrs.FactoryBytecode = []byte{0x60, 0x80, 0x60, 0x40, 0x52}
	fb.OnTx(master, contracts.MasterRegistry, "addFactoryWithStaking", nil)
	d = factory.NewDirectory(s, addrs, nil)
	addr, err := d.DeployAndRegisterFactory(context.Background(), "New")
	require.NoError(t, err)
	assert.NotEqual(t, common.Address{}, addr)
	assert.Equal(t, []string{"<deploy>", "addFactoryWithStaking"}, fb.SentMethods())
	assert.Equal(t, addr, fb.Sent()[1].Args[0])
}

func TestStakingAddresses(t *testing.T) {
	fb, s, addrs := setup(t, true)
	native := common.HexToAddress("0x00000000000000000000000000000000000000b1")
	fb.Returns(sports, contracts.BettingFactory, "getStakingAddresses", native, common.Address{})
	d := factory.NewDirectory(s, addrs, nil)

	sa, err := d.StakingAddresses(context.Background(), sports)
	require.NoError(t, err)
	assert.Equal(t, native.Hex(), sa.NativeLabel())
	assert.Equal(t, "unset", sa.TokenLabel())

	fb.OnTx(sports, contracts.BettingFactory, "setStakingAddresses", nil)
	_, err = d.SetStakingAddresses(context.Background(), sports, native, native)
	require.NoError(t, err)
	assert.Equal(t, []string{"setStakingAddresses"}, fb.SentMethods())
}
