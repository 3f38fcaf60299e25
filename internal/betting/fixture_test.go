package betting_test

import (
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/pkg/logger"
)

const now = 1_700_000_000

var (
	legacyFactory = common.HexToAddress("0x00000000000000000000000000000000000000f1")
	ether         = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)
)

func eth(n int64) *big.Int { return new(big.Int).Mul(big.NewInt(n), ether) }

func addr(n int) common.Address { return common.BigToAddress(big.NewInt(int64(0x1000 + n))) }

// fakeMatch 一场比赛在 fake 链上的状态
type fakeMatch struct {
	Variant   betting.MatchVariant
	TeamA     string
	TeamB     string
	Start     int64
	Odds      []int64
	Result    uint8
	Finalized bool
	Pools     []*big.Int // 各选项下注总额 + owner liquidity
	Bets      map[common.Address][]*big.Int
	Claimed   map[common.Address]bool
	Images    [2]string
	MaxBet    *big.Int // nil 表示合约没有 getMaxBetAmount
	Balance   *big.Int
	League    string
}

type fixture struct {
	t    *testing.T
	fb   *chaintest.FakeBackend
	s    *chain.Session
	dir  *factory.Directory
	svc  *betting.Service
	user common.Address

	mu      sync.Mutex
	matches map[common.Address]*fakeMatch
	lists   map[common.Address]map[string][]common.Address
	active  map[common.Address]bool
}

func newFixture(t *testing.T, opts ...func(*betting.Options)) *fixture {
	t.Helper()
	logger.Discard()
	fb := chaintest.NewFakeBackend(5003)
	fb.SetBlock(1000, now)
	signer := chaintest.NewSigner()
	s, err := chaintest.Connect(fb, signer)
	require.NoError(t, err)

	dir := factory.NewDirectory(s, contracts.Addresses{LegacyFactory: legacyFactory}, nil)
	o := betting.Options{Gateway: "gw.test", Concurrency: 4}
	for _, fn := range opts {
		fn(&o)
	}
	f := &fixture{
		t:       t,
		fb:      fb,
		s:       s,
		dir:     dir,
		svc:     betting.NewService(s, dir, o),
		user:    signer.Address(),
		matches: make(map[common.Address]*fakeMatch),
		lists:   make(map[common.Address]map[string][]common.Address),
		active:  make(map[common.Address]bool),
	}
	f.registerFactory(legacyFactory)
	return f
}

func (f *fixture) registerFactory(fac common.Address) {
	f.lists[fac] = make(map[string][]common.Address)
	for _, method := range []string{"getAllMatchesWithDraw", "getAllMatchesNoDraw", "getActiveMatchesWithDraw", "getActiveMatchesNoDraw"} {
		method := method
		f.fb.Handle(fac, contracts.BettingFactory, method, func([]interface{}) ([]interface{}, error) {
			f.mu.Lock()
			defer f.mu.Unlock()
			return []interface{}{append([]common.Address{}, f.lists[fac][method]...)}, nil
		})
	}
	f.fb.Handle(fac, contracts.BettingFactory, "matchLeague", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		m := f.matches[args[0].(common.Address)]
		if m == nil {
			return []interface{}{""}, nil
		}
		return []interface{}{m.League}, nil
	})
	f.fb.Handle(fac, contracts.BettingFactory, "isMatchActive", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		return []interface{}{f.active[args[0].(common.Address)]}, nil
	})
	f.fb.OnTx(fac, contracts.BettingFactory, "setMatchActive", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.active[args[0].(common.Address)] = args[1].(bool)
		return nil, nil
	})
}

// add 把比赛登记到 factory；active 决定是否出现在 active 列表
func (f *fixture) add(fac, a common.Address, m *fakeMatch, active bool) {
	f.mu.Lock()
	suffix := "NoDraw"
	if m.Variant == betting.WithDraw {
		suffix = "WithDraw"
	}
	f.lists[fac]["getAllMatches"+suffix] = append(f.lists[fac]["getAllMatches"+suffix], a)
	if active {
		f.lists[fac]["getActiveMatches"+suffix] = append(f.lists[fac]["getActiveMatches"+suffix], a)
	}
	f.active[a] = active
	if m.Bets == nil {
		m.Bets = make(map[common.Address][]*big.Int)
	}
	if m.Claimed == nil {
		m.Claimed = make(map[common.Address]bool)
	}
	if m.Balance == nil {
		m.Balance = new(big.Int)
	}
	f.matches[a] = m
	f.mu.Unlock()

	f.bindMatch(a, m)
}

func (f *fixture) bindMatch(a common.Address, m *fakeMatch) {
	parsed := m.Variant.ABI()
	n := m.Variant.Outcomes()
	f.fb.SetBalance(a, m.Balance)

	f.fb.Handle(a, parsed, "getMatchInfo", func([]interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := []interface{}{m.TeamA, m.TeamB, big.NewInt(m.Start), big.NewInt(m.Start - 600)}
		for i := 0; i < n; i++ {
			out = append(out, big.NewInt(m.Odds[i]))
		}
		return append(out, m.Result, m.Finalized), nil
	})
	f.fb.Handle(a, parsed, "getBettingPools", func([]interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		out := make([]interface{}, 0, n+1)
		for i := 0; i <= n; i++ {
			v := new(big.Int)
			if i < len(m.Pools) && m.Pools[i] != nil {
				v = m.Pools[i]
			}
			out = append(out, v)
		}
		return out, nil
	})
	f.fb.Handle(a, parsed, "getUserBets", func(args []interface{}) ([]interface{}, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		user := args[0].(common.Address)
		out := make([]interface{}, 0, n+1)
		bets := m.Bets[user]
		for i := 0; i < n; i++ {
			v := new(big.Int)
			if i < len(bets) && bets[i] != nil {
				v = bets[i]
			}
			out = append(out, v)
		}
		return append(out, m.Claimed[user]), nil
	})
	f.fb.Handle(a, parsed, "getTeamImages", func([]interface{}) ([]interface{}, error) {
		return []interface{}{m.Images[0], m.Images[1]}, nil
	})
	if m.MaxBet != nil {
		f.fb.Returns(a, parsed, "getMaxBetAmount", m.MaxBet)
	}
	f.fb.OnTx(a, parsed, "bet", func(from common.Address, value *big.Int, args []interface{}) ([]*types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		choice := int(args[0].(uint8))
		bets := m.Bets[from]
		for len(bets) < n {
			bets = append(bets, new(big.Int))
		}
		bets[choice-1] = new(big.Int).Add(bets[choice-1], value)
		m.Bets[from] = bets
		return []*types.Log{chaintest.EventLog(a, parsed, "BetPlaced",
			[]common.Hash{common.BytesToHash(from.Bytes())}, uint8(choice), value)}, nil
	})
	f.fb.OnTx(a, parsed, "claim", func(from common.Address, _ *big.Int, _ []interface{}) ([]*types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if m.Claimed[from] {
			return nil, chaintest.Revert("Already claimed")
		}
		m.Claimed[from] = true
		return nil, nil
	})
	f.fb.OnTx(a, parsed, "finalizeResult", func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, error) {
		f.mu.Lock()
		defer f.mu.Unlock()
		m.Result = args[0].(uint8)
		m.Finalized = true
		return nil, nil
	})
	for _, method := range []string{"depositLiquidity", "withdrawProfit", "setTeamImages", "setMaxBetAmount"} {
		f.fb.OnTx(a, parsed, method, nil)
	}
}

func (f *fixture) match(a common.Address) *fakeMatch {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.matches[a]
}
