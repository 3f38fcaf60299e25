package swap_test

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/logger"
)

const blockTime = 1_700_000_000

var (
	routerAddr  = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	factoryAddr = common.HexToAddress("0x00000000000000000000000000000000000000a2")

	mnt   = tokens.Token{Address: common.HexToAddress("0x0000000000000000000000000000000000000b01"), Symbol: "MNT", Decimals: 18}
	usdc  = tokens.Token{Address: common.HexToAddress("0x0000000000000000000000000000000000000b02"), Symbol: "USDC", Decimals: 6}
	intel = tokens.Token{Address: common.HexToAddress("0x0000000000000000000000000000000000000b03"), Symbol: "INTEL", Decimals: 18}
)

func amt(n int64, decimals int) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil))
}

type fakePair struct {
	addr     common.Address
	token0   common.Address
	token1   common.Address
	reserve0 *big.Int
	reserve1 *big.Int
	supply   *big.Int
	lp       map[common.Address]*big.Int
}

type fixture struct {
	t    *testing.T
	fb   *chaintest.FakeBackend
	svc  *swap.Service
	user common.Address

	mu         sync.Mutex
	pairs      map[[2]common.Address]*fakePair
	allowances map[common.Address]*big.Int // 代币或 LP -> 用户给路由的额度
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger.Discard()
	fb := chaintest.NewFakeBackend(5003)
	fb.SetBlock(500, blockTime)
	signer := chaintest.NewSigner()
	s, err := chaintest.Connect(fb, signer)
	require.NoError(t, err)

	f := &fixture{
		t:          t,
		fb:         fb,
		user:       signer.Address(),
		pairs:      make(map[[2]common.Address]*fakePair),
		allowances: make(map[common.Address]*big.Int),
	}
	f.svc = swap.NewService(s, contracts.Addresses{
		Router:        routerAddr,
		SwapFactory:   factoryAddr,
		WrappedNative: mnt.Address,
	}, swap.Options{SlippageBps: 50, HighImpactPct: decimal.NewFromInt(5), Concurrency: 4})

	fb.Handle(factoryAddr, contracts.SwapFactory, "getPair", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		p := f.pairs[key(args[0].(common.Address), args[1].(common.Address))]
		if p == nil {
			return []interface{}{common.Address{}}, nil
		}
		return []interface{}{p.addr}, nil
	})
	fb.Handle(routerAddr, contracts.Router, "getAmountsOut", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{f.amountsOut(args[0].(*big.Int), args[1].([]common.Address))}, nil
	})
	for _, m := range []string{"swapExactETHForTokens", "swapExactTokensForETH", "swapExactTokensForTokens",
		"addLiquidity", "addLiquidityETH", "removeLiquidity", "removeLiquidityETH"} {
		fb.OnTx(routerAddr, contracts.Router, m, nil)
	}
	for _, tk := range []tokens.Token{usdc, intel} {
		f.bindAllowance(tk.Address, false)
	}
	return f
}

func key(a, b common.Address) [2]common.Address {
	if a.Cmp(b) > 0 {
		a, b = b, a
	}
	return [2]common.Address{a, b}
}

// addPair 以 token0 = a 创建交易对
func (f *fixture) addPair(pairAddr common.Address, a, b tokens.Token, ra, rb, supply *big.Int) *fakePair {
	p := &fakePair{addr: pairAddr, token0: a.Address, token1: b.Address, reserve0: ra, reserve1: rb, supply: supply,
		lp: make(map[common.Address]*big.Int)}
	f.mu.Lock()
	f.pairs[key(a.Address, b.Address)] = p
	f.mu.Unlock()

	f.fb.Handle(pairAddr, contracts.Pair, "getReserves", func([]interface{}) ([]interface{}, error) {
		return []interface{}{p.reserve0, p.reserve1, uint32(blockTime)}, nil
	})
	f.fb.Returns(pairAddr, contracts.Pair, "token0", p.token0)
	f.fb.Returns(pairAddr, contracts.Pair, "token1", p.token1)
	f.fb.Handle(pairAddr, contracts.Pair, "totalSupply", func([]interface{}) ([]interface{}, error) {
		return []interface{}{p.supply}, nil
	})
	f.fb.Handle(pairAddr, contracts.Pair, "balanceOf", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if v := p.lp[args[0].(common.Address)]; v != nil {
			return []interface{}{v}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	f.bindAllowance(pairAddr, true)
	return p
}

// bindAllowance allowance 与 approve 共用一份额度表
func (f *fixture) bindAllowance(addr common.Address, isPair bool) {
	parsed := contracts.ERC20
	if isPair {
		parsed = contracts.Pair
	}
	f.fb.Handle(addr, parsed, "allowance", func([]interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if v := f.allowances[addr]; v != nil {
			return []interface{}{v}, nil
		}
		return []interface{}{new(big.Int)}, nil
	})
	f.fb.OnTx(addr, parsed, "approve", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.allowances[addr] = args[1].(*big.Int)
		return nil, nil
	})
}

func (f *fixture) setAllowance(addr common.Address, v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowances[addr] = v
}

// amountsOut 常数乘积公式，0.3% 手续费
func (f *fixture) amountsOut(in *big.Int, path []common.Address) []*big.Int {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*big.Int{in}
	cur := in
	for i := 0; i+1 < len(path); i++ {
		p := f.pairs[key(path[i], path[i+1])]
		rIn, rOut := p.reserve0, p.reserve1
		if p.token0 != path[i] {
			rIn, rOut = p.reserve1, p.reserve0
		}
		withFee := new(big.Int).Mul(cur, big.NewInt(997))
		num := new(big.Int).Mul(withFee, rOut)
		den := new(big.Int).Add(new(big.Int).Mul(rIn, big.NewInt(1000)), withFee)
		cur = num.Quo(num, den)
		out = append(out, cur)
	}
	return out
}
