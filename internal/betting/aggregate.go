package betting

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/internal/metrics"
)

// 视图名，用于日志与指标
const (
	ViewActiveMatches = "active_matches"
	ViewMyActiveBets  = "my_active_bets"
	ViewClaimable     = "claimable"
	ViewHistory       = "history"
	ViewAdmin         = "admin"
)

// Scope 聚合范围：All 为所有 factory，否则为 Factory（零地址表示当前 factory）
type Scope struct {
	All     bool
	Factory common.Address
}

// AllFactories 所有 factory
func AllFactories() Scope { return Scope{All: true} }

// OneFactory 单个 factory
func OneFactory(addr common.Address) Scope { return Scope{Factory: addr} }

// listed 列表中的一场比赛
type listed struct {
	addr    common.Address
	variant MatchVariant
	factory factory.Factory
	tagged  bool
}

func (l listed) factoryName() string {
	if l.tagged {
		return l.factory.Name
	}
	return ""
}

func (s *Service) resolve(ctx context.Context, scope Scope) []factory.Factory {
	if scope.All {
		return s.dir.ListFactories(ctx)
	}
	if scope.Factory == (common.Address{}) {
		return []factory.Factory{s.dir.Current(ctx)}
	}
	for _, f := range s.dir.ListFactories(ctx) {
		if f.Address == scope.Factory {
			return []factory.Factory{f}
		}
	}
	return []factory.Factory{{Address: scope.Factory}}
}

// listMatches 读取各 factory 的比赛列表；active 为 true 时只取 active 列表。
// 某个列表读取失败时跳过该列表。
func (s *Service) listMatches(ctx context.Context, view string, scope Scope, active bool) []listed {
	withDraw, noDraw := "getAllMatchesWithDraw", "getAllMatchesNoDraw"
	if active {
		withDraw, noDraw = "getActiveMatchesWithDraw", "getActiveMatchesNoDraw"
	}
	var out []listed
	for _, f := range s.resolve(ctx, scope) {
		fc := s.dir.Contract(f.Address)
		for _, src := range []struct {
			method  string
			variant MatchVariant
		}{{withDraw, WithDraw}, {noDraw, NoDraw}} {
			values, err := fc.Call(ctx, src.method)
			if err != nil {
				s.skip(view, "list", logrus.Fields{"factory": f.Address.Hex(), "method": src.method}, err)
				continue
			}
			addrs, _ := values[0].([]common.Address)
			for _, a := range addrs {
				out = append(out, listed{addr: a, variant: src.variant, factory: f, tagged: scope.All})
			}
		}
	}
	return out
}

func (s *Service) skip(view, stage string, fields logrus.Fields, err error) {
	metrics.AggregationSkipped.WithLabelValues(view, stage).Inc()
	s.log().WithFields(fields).WithField("view", view).Warnf("读取失败，跳过: %v", err)
}

// each 以有限并发对每场比赛执行 fn；单场失败只记录并跳过，不影响其他比赛
func (s *Service) each(ctx context.Context, view string, items []listed, fn func(context.Context, listed) error) {
	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for _, it := range items {
		g.Go(func() error {
			if err := fn(ctx, it); err != nil {
				s.skip(view, "match", logrus.Fields{"match": it.addr.Hex(), "factory": it.factory.Address.Hex()}, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

func observe(view string, start time.Time) {
	metrics.AggregationDuration.WithLabelValues(view).Observe(time.Since(start).Seconds())
}

// ActiveMatches 可下注的比赛（未结算且未开赛），按开赛时间倒序
func (s *Service) ActiveMatches(ctx context.Context, scope Scope) ([]MatchCard, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	defer observe(ViewActiveMatches, time.Now())

	items := s.listMatches(ctx, ViewActiveMatches, scope, true)
	now := s.session.Now()
	var (
		mu  sync.Mutex
		out []MatchCard
	)
	s.each(ctx, ViewActiveMatches, items, func(ctx context.Context, it listed) error {
		info, err := s.readInfo(ctx, it.addr, it.variant)
		if err != nil {
			return err
		}
		if !info.OpenForBetting(now) {
			return nil
		}
		card, err := s.card(ctx, MatchRef{Address: it.addr, Variant: it.variant, Factory: it.factory.Address, FactoryName: it.factoryName()}, info)
		if err != nil {
			return err
		}
		mu.Lock()
		out = append(out, *card)
		mu.Unlock()
		return nil
	})
	sortByStart(out, func(c MatchCard) (uint64, common.Address) { return c.StartTime, c.Address })
	return out, nil
}

// ActiveBet 用户在未结算比赛上的下注
type ActiveBet struct {
	Address     common.Address `json:"address"`
	FactoryName string         `json:"factoryName,omitempty"`
	Variant     MatchVariant   `json:"variant"`
	TeamA       string         `json:"teamA"`
	TeamB       string         `json:"teamB"`
	StartTime   uint64         `json:"startTime"`
	Images      TeamImages     `json:"images"`
	Positions   []Position     `json:"positions"`
	Total       *big.Int       `json:"total"`
}

// MyActiveBets 用户在 active 列表中未结算比赛上的下注
func (s *Service) MyActiveBets(ctx context.Context, user common.Address, scope Scope) ([]ActiveBet, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	defer observe(ViewMyActiveBets, time.Now())

	items := s.listMatches(ctx, ViewMyActiveBets, scope, true)
	var (
		mu  sync.Mutex
		out []ActiveBet
	)
	s.each(ctx, ViewMyActiveBets, items, func(ctx context.Context, it listed) error {
		info, err := s.readInfo(ctx, it.addr, it.variant)
		if err != nil || info.Finalized {
			return err
		}
		bets, err := s.readUserBets(ctx, it.addr, it.variant, user)
		if err != nil {
			return err
		}
		total := bets.Total()
		if total.Sign() == 0 {
			return nil
		}
		entry := ActiveBet{
			Address:     it.addr,
			FactoryName: it.factoryName(),
			Variant:     info.Variant,
			TeamA:       info.TeamA,
			TeamB:       info.TeamB,
			StartTime:   info.StartTime,
			Images:      s.readImages(ctx, it.addr, info.Variant),
			Positions:   Positions(info, bets),
			Total:       total,
		}
		mu.Lock()
		out = append(out, entry)
		mu.Unlock()
		return nil
	})
	sortByStart(out, func(b ActiveBet) (uint64, common.Address) { return b.StartTime, b.Address })
	return out, nil
}

// Claimable 可领取的奖金或退款
type Claimable struct {
	Address     common.Address `json:"address"`
	FactoryName string         `json:"factoryName,omitempty"`
	Variant     MatchVariant   `json:"variant"`
	TeamA       string         `json:"teamA"`
	TeamB       string         `json:"teamB"`
	StartTime   uint64         `json:"startTime"`
	Result      uint8          `json:"result"`
	ResultLabel string         `json:"resultLabel"`
	Outcome     Outcome        `json:"outcome"`
	Payout      *big.Int       `json:"payout"`
}

// ClaimableRewards 已结算、押中或被取消、且尚未领取的比赛
func (s *Service) ClaimableRewards(ctx context.Context, user common.Address, scope Scope) ([]Claimable, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	defer observe(ViewClaimable, time.Now())

	items := s.listMatches(ctx, ViewClaimable, scope, false)
	var (
		mu  sync.Mutex
		out []Claimable
	)
	s.each(ctx, ViewClaimable, items, func(ctx context.Context, it listed) error {
		info, err := s.readInfo(ctx, it.addr, it.variant)
		if err != nil || !info.Finalized {
			return err
		}
		bets, err := s.readUserBets(ctx, it.addr, it.variant, user)
		if err != nil {
			return err
		}
		st := Settle(info, bets)
		if !st.Claimable {
			return nil
		}
		entry := Claimable{
			Address:     it.addr,
			FactoryName: it.factoryName(),
			Variant:     info.Variant,
			TeamA:       info.TeamA,
			TeamB:       info.TeamB,
			StartTime:   info.StartTime,
			Result:      info.Result,
			ResultLabel: info.ResultLabel(),
			Outcome:     st.Outcome,
			Payout:      st.Payout,
		}
		mu.Lock()
		out = append(out, entry)
		mu.Unlock()
		return nil
	})
	sortByStart(out, func(c Claimable) (uint64, common.Address) { return c.StartTime, c.Address })
	return out, nil
}

// HistoryEntry 用户参与过的已结算比赛
type HistoryEntry struct {
	Address     common.Address `json:"address"`
	FactoryName string         `json:"factoryName,omitempty"`
	Variant     MatchVariant   `json:"variant"`
	TeamA       string         `json:"teamA"`
	TeamB       string         `json:"teamB"`
	StartTime   uint64         `json:"startTime"`
	Images      TeamImages     `json:"images"`
	Result      uint8          `json:"result"`
	ResultLabel string         `json:"resultLabel"`
	Outcome     Outcome        `json:"outcome"`
	Positions   []Position     `json:"positions"`
	Payout      *big.Int       `json:"payout"`
	Claimed     bool           `json:"claimed"`
}

// History 用户参与过的所有已结算比赛
func (s *Service) History(ctx context.Context, user common.Address, scope Scope) ([]HistoryEntry, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	defer observe(ViewHistory, time.Now())

	items := s.listMatches(ctx, ViewHistory, scope, false)
	var (
		mu  sync.Mutex
		out []HistoryEntry
	)
	s.each(ctx, ViewHistory, items, func(ctx context.Context, it listed) error {
		info, err := s.readInfo(ctx, it.addr, it.variant)
		if err != nil || !info.Finalized {
			return err
		}
		bets, err := s.readUserBets(ctx, it.addr, it.variant, user)
		if err != nil {
			return err
		}
		st := Settle(info, bets)
		if st.Outcome == OutcomeNone {
			return nil
		}
		entry := HistoryEntry{
			Address:     it.addr,
			FactoryName: it.factoryName(),
			Variant:     info.Variant,
			TeamA:       info.TeamA,
			TeamB:       info.TeamB,
			StartTime:   info.StartTime,
			Images:      s.readImages(ctx, it.addr, info.Variant),
			Result:      info.Result,
			ResultLabel: info.ResultLabel(),
			Outcome:     st.Outcome,
			Positions:   Positions(info, bets),
			Payout:      st.Payout,
			Claimed:     bets.HasClaimed,
		}
		mu.Lock()
		out = append(out, entry)
		mu.Unlock()
		return nil
	})
	sortByStart(out, func(h HistoryEntry) (uint64, common.Address) { return h.StartTime, h.Address })
	return out, nil
}

// sortByStart 开赛时间倒序，相同时按地址升序；并发读取的完成顺序不确定
func sortByStart[T any](xs []T, key func(T) (uint64, common.Address)) {
	sort.SliceStable(xs, func(i, j int) bool {
		ti, ai := key(xs[i])
		tj, aj := key(xs[j])
		if ti != tj {
			return ti > tj
		}
		return ai.Cmp(aj) < 0
	})
}
