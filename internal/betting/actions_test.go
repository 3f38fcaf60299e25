package betting_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/chain/chaintest"
	"github.com/betbot/betdex/internal/contracts"
)

func openMatch(f *fixture, a common.Address, maxBet *big.Int) {
	f.add(legacyFactory, a, &fakeMatch{
		Variant: betting.NoDraw, TeamA: "A", TeamB: "B", Start: now + 3600,
		Odds:   []int64{200, 250},
		Pools:  []*big.Int{eth(5), eth(5), eth(10)},
		MaxBet: maxBet,
	}, true)
}

func TestMaxBetUsesSmallerCap(t *testing.T) {
	f := newFixture(t)
	openMatch(f, addr(1), eth(3))
	openMatch(f, addr(2), nil)

	m, err := f.svc.MaxBet(context.Background(), addr(1), betting.ChoiceA)
	require.NoError(t, err)
	assert.Equal(t, "2.97", m.Max.String())

	// 没有 getMaxBetAmount：只受池子限制 (20 / 2.00) * 0.99
	m, err = f.svc.MaxBet(context.Background(), addr(2), betting.ChoiceA)
	require.NoError(t, err)
	assert.Nil(t, m.ContractCap)
	assert.Equal(t, "9.9", m.Max.String())

	_, err = f.svc.MaxBet(context.Background(), addr(2), betting.ChoiceDraw)
	require.ErrorIs(t, err, betting.ErrInvalidChoice)
}

func TestPlaceBet(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, eth(3))
	ctx := context.Background()

	_, err := f.svc.PlaceBet(ctx, m, betting.ChoiceA, big.NewInt(0))
	require.ErrorIs(t, err, betting.ErrInvalidAmount)

	_, err = f.svc.PlaceBet(ctx, m, betting.ChoiceDraw, eth(1))
	require.ErrorIs(t, err, betting.ErrInvalidChoice)

	_, err = f.svc.PlaceBet(ctx, m, betting.ChoiceA, eth(3))
	require.ErrorIs(t, err, betting.ErrExceedsMaxBet)
	assert.Empty(t, f.fb.Sent(), "超过上限时不应发送交易")

	res, err := f.svc.PlaceBet(ctx, m, betting.ChoiceB, eth(2))
	require.NoError(t, err)
	sent := f.fb.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "bet", sent[0].Method)
	assert.Equal(t, uint8(2), sent[0].Args[0])
	assert.Equal(t, eth(2), sent[0].Value)
	require.NotNil(t, res.Match, "下注后应重新读取比赛")
	assert.Equal(t, m, res.Match.Address)

	bets, err := f.svc.MyActiveBets(ctx, f.user, betting.Scope{})
	require.NoError(t, err)
	require.Len(t, bets, 1)
	assert.Equal(t, eth(2), bets[0].Total)
}

func TestPlaceBetDistinguishesRejectionAndRevert(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, nil)
	ctx := context.Background()

	f.fb.FailEstimate(m, contracts.MatchNoDraw, "bet", chaintest.RejectError{})
	_, err := f.svc.PlaceBet(ctx, m, betting.ChoiceA, eth(1))
	require.ErrorIs(t, err, chain.ErrUserRejected)
	assert.Equal(t, "Transaction rejected by user", chain.FriendlyMessage(err))

	f.fb.FailEstimate(m, contracts.MatchNoDraw, "bet", chaintest.Revert("Betting closed"))
	_, err = f.svc.PlaceBet(ctx, m, betting.ChoiceA, eth(1))
	var te *chain.TxError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, chain.TxReverted, te.Kind)
	assert.Equal(t, "Betting is closed for this match.", chain.FriendlyMessage(err))
	assert.Empty(t, f.fb.Sent(), "失败的下注不重试")
}

func TestFinalizeResultSaga(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, nil)
	ctx := context.Background()

	_, err := f.svc.FinalizeResult(ctx, legacyFactory, m, 4)
	require.ErrorIs(t, err, betting.ErrInvalidChoice, "NoDraw 比赛没有结果码 4")

	f.fb.FailEstimate(legacyFactory, contracts.BettingFactory, "setMatchActive", chaintest.ErrRPC)
	_, err = f.svc.FinalizeResult(ctx, legacyFactory, m, 1)
	var se *chain.SagaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{"finalizeResult"}, se.Completed)
	assert.Equal(t, "setMatchActive", se.Failed)
	assert.Equal(t, "retry deactivation only", se.Recovery)
	assert.NotEmpty(t, se.OpID)
	assert.Contains(t, chain.FriendlyMessage(err), "retry deactivation only")
	assert.True(t, f.match(m).Finalized, "第一步已经上链")
	assert.Equal(t, []string{"finalizeResult"}, f.fb.SentMethods())

	f.fb.ClearEstimateFailure(legacyFactory, contracts.BettingFactory, "setMatchActive")
	_, err = f.svc.RetryDeactivation(ctx, legacyFactory, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"finalizeResult", "setMatchActive"}, f.fb.SentMethods())

	admin, err := f.svc.AdminMatches(ctx, legacyFactory)
	require.NoError(t, err)
	require.Len(t, admin, 1)
	assert.False(t, admin[0].Active)
	assert.True(t, admin[0].Finalized)
	assert.Equal(t, "A", admin[0].ResultLabel)
}

func TestFinalizeResultPhaseOneFailure(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, nil)

	f.fb.FailEstimate(m, contracts.MatchNoDraw, "finalizeResult", chaintest.Revert("Ownable: caller is not the owner"))
	_, err := f.svc.FinalizeResult(context.Background(), legacyFactory, m, 3)
	var se *chain.SagaError
	assert.False(t, errors.As(err, &se))
	var te *chain.TxError
	require.True(t, errors.As(err, &te))
	assert.Empty(t, f.fb.Sent(), "第一步失败时不应下架")
}

type fakePinner struct {
	uploads []string
	err     error
}

func (p *fakePinner) Upload(_ context.Context, name string, r io.Reader) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	data, _ := io.ReadAll(r)
	p.uploads = append(p.uploads, name)
	return "ipfs://Qm" + string(data), nil
}

func expectCreate(f *fixture, created common.Address, event string, method string) {
	f.fb.OnTx(legacyFactory, contracts.BettingFactory, method, func(_ common.Address, _ *big.Int, args []interface{}) ([]*types.Log, error) {
		return []*types.Log{chaintest.EventLog(legacyFactory, contracts.BettingFactory, event,
			[]common.Hash{common.BytesToHash(created.Bytes())}, args[0], args[1], args[2], args[3])}, nil
	})
}

func TestCreateMatchWithExtras(t *testing.T) {
	pinner := &fakePinner{}
	f := newFixture(t, func(o *betting.Options) { o.Pinner = pinner })
	created := addr(50)
	expectCreate(f, created, "MatchWithDrawCreated", "createMatchWithDraw")
	f.fb.OnTx(created, contracts.MatchWithDraw, "setMaxBetAmount", nil)
	f.fb.OnTx(created, contracts.MatchWithDraw, "setTeamImages", nil)

	res, err := f.svc.CreateMatch(context.Background(), betting.CreateMatchRequest{
		Factory:   legacyFactory,
		Variant:   betting.WithDraw,
		TeamA:     "Home",
		TeamB:     "Away",
		StartTime: time.Unix(now+86400, 0),
		Odds:      []string{"1.8", "2.205", "3.5"},
		MaxBet:    "25",
		ImageA:    &betting.ImageInput{Name: "home.png", Data: bytes.NewBufferString("home")},
		ImageB:    &betting.ImageInput{URI: "ipfs://QmAway"},
	})
	require.NoError(t, err)
	assert.False(t, res.Partial())
	assert.Equal(t, created, res.Match)
	assert.NotEmpty(t, res.OpID)

	sent := f.fb.Sent()
	require.Len(t, sent, 3)
	assert.Equal(t, "createMatchWithDraw", sent[0].Method)
	assert.Equal(t, betting.DefaultLeague, sent[0].Args[0])
	assert.Equal(t, big.NewInt(180), sent[0].Args[4])
	assert.Equal(t, big.NewInt(220), sent[0].Args[5], "赔率向下取整")
	assert.Equal(t, big.NewInt(350), sent[0].Args[6])
	assert.Equal(t, "setMaxBetAmount", sent[1].Method)
	assert.Equal(t, eth(25), sent[1].Args[0])
	assert.Equal(t, "setTeamImages", sent[2].Method)
	assert.Equal(t, "ipfs://Qmhome", sent[2].Args[0])
	assert.Equal(t, "ipfs://QmAway", sent[2].Args[1])
	assert.Equal(t, []string{"home.png"}, pinner.uploads)
}

func TestCreateMatchPartialSuccess(t *testing.T) {
	f := newFixture(t)
	created := addr(51)
	expectCreate(f, created, "MatchNoDrawCreated", "createMatchNoDraw")

	res, err := f.svc.CreateMatch(context.Background(), betting.CreateMatchRequest{
		Factory:   legacyFactory,
		Variant:   betting.NoDraw,
		League:    "LCK",
		TeamA:     "T1",
		TeamB:     "GenG",
		StartTime: time.Unix(now-3600, 0),
		Odds:      []string{"1.5", "2.6"},
		MaxBet:    "10",
		ImageA:    &betting.ImageInput{Name: "t1.png", Data: bytes.NewBufferString("x")},
	})
	require.NoError(t, err, "比赛已创建，附加步骤失败只算部分成功")
	assert.Equal(t, created, res.Match)
	assert.True(t, res.Partial())
	assert.Contains(t, res.Warnings[0], "未配置")
	// 默认上限不额外发交易；图片未上传也就不设置
	assert.Equal(t, []string{"createMatchNoDraw"}, f.fb.SentMethods())
	assert.Equal(t, "LCK", f.fb.Sent()[0].Args[0])
}

func TestCreateMatchValidation(t *testing.T) {
	f := newFixture(t)
	base := betting.CreateMatchRequest{
		Factory: legacyFactory, Variant: betting.NoDraw, TeamA: "A", TeamB: "B",
		StartTime: time.Unix(now+60, 0), Odds: []string{"1.5", "2.5"},
	}
	cases := map[string]func(r *betting.CreateMatchRequest){
		"too far in the past": func(r *betting.CreateMatchRequest) { r.StartTime = time.Unix(now-8*24*3600, 0) },
		"missing team":        func(r *betting.CreateMatchRequest) { r.TeamB = " " },
		"wrong odds count":    func(r *betting.CreateMatchRequest) { r.Odds = []string{"1.5", "2.5", "3"} },
		"odds not above one":  func(r *betting.CreateMatchRequest) { r.Odds = []string{"1", "2.5"} },
		"bad max bet":         func(r *betting.CreateMatchRequest) { r.MaxBet = "-1" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := f.svc.CreateMatch(context.Background(), req)
			require.Error(t, err)
		})
	}
	assert.Empty(t, f.fb.Sent())
}

func TestBetHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, nil)
	f.fb.SetBlock(20_000, now)

	bettor := common.HexToAddress("0x00000000000000000000000000000000000000b0")
	add := func(block uint64, choice uint8, amount *big.Int) {
		l := chaintest.EventLog(m, contracts.MatchNoDraw, "BetPlaced", []common.Hash{common.BytesToHash(bettor.Bytes())}, choice, amount)
		l.BlockNumber = block
		f.fb.AddLog(*l)
	}
	add(5_000, 1, eth(1)) // 超出 10000 个区块的窗口
	add(15_000, 2, eth(2))
	add(19_500, 1, eth(3))
	add(12_000, 1, eth(4))

	events, err := f.svc.BetHistory(context.Background(), m)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(19_500), events[0].Block)
	assert.Equal(t, uint64(15_000), events[1].Block)
	assert.Equal(t, "B", events[1].Label)
	assert.Equal(t, eth(2), events[1].Amount)
	assert.Equal(t, bettor, events[1].User)
	assert.Equal(t, uint64(12_000), events[2].Block)
}

func TestAdminActionsUseDetectedVariant(t *testing.T) {
	f := newFixture(t)
	m := addr(1)
	openMatch(f, m, nil)
	ctx := context.Background()

	_, err := f.svc.DepositLiquidity(ctx, m, eth(5))
	require.NoError(t, err)
	_, err = f.svc.DepositLiquidity(ctx, m, nil)
	require.ErrorIs(t, err, betting.ErrInvalidAmount)
	_, err = f.svc.WithdrawProfit(ctx, m)
	require.NoError(t, err)
	_, err = f.svc.SetTeamImages(ctx, m, "ipfs://a", "ipfs://b")
	require.NoError(t, err)
	_, err = f.svc.SetMaxBetAmount(ctx, m, eth(1))
	require.NoError(t, err)
	_, err = f.svc.SetMatchVisible(ctx, legacyFactory, m, false)
	require.NoError(t, err)

	assert.Equal(t, []string{"depositLiquidity", "withdrawProfit", "setTeamImages", "setMaxBetAmount", "setMatchActive"}, f.fb.SentMethods())
	assert.Equal(t, eth(5), f.fb.Sent()[0].Value)
}
