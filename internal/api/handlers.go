package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/staking"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/units"
)

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct{ msg string }

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }

// statusFor 错误到 HTTP 状态码
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, betting.ErrInvalidChoice),
		errors.Is(err, betting.ErrInvalidAmount):
		return http.StatusBadRequest
	case errors.Is(err, tokens.ErrUnknownToken), errors.Is(err, staking.ErrUnknownPool):
		return http.StatusNotFound
	case errors.Is(err, chain.ErrNotConnected), errors.Is(err, chain.ErrWrongNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, chain.ErrEmptyResult):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func addressParam(c *gin.Context, name string) (common.Address, error) {
	v := strings.TrimSpace(c.Param(name))
	if !common.IsHexAddress(v) {
		return common.Address{}, badRequest("无效地址: " + v)
	}
	return common.HexToAddress(v), nil
}

// scopeQuery ?scope=all 所有 factory；?scope=<地址> 指定 factory；缺省为当前 factory
func scopeQuery(c *gin.Context) (betting.Scope, error) {
	v := strings.TrimSpace(c.Query("scope"))
	switch {
	case v == "" || v == "current":
		return betting.OneFactory(common.Address{}), nil
	case strings.EqualFold(v, "all"):
		return betting.AllFactories(), nil
	case common.IsHexAddress(v):
		return betting.OneFactory(common.HexToAddress(v)), nil
	default:
		return betting.Scope{}, badRequest("无效 scope: " + v)
	}
}

// list nil 切片输出为 []
func list[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func (s *Server) handleHealth(c *gin.Context) {
	state := s.deps.Session.State()
	status := http.StatusOK
	if state != chain.Connected {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"state": state.String(), "chainId": s.deps.Session.ChainID()})
}

func (s *Server) handleFactories(c *gin.Context) {
	ctx := c.Request.Context()
	c.JSON(http.StatusOK, gin.H{
		"factories": list(s.deps.Factories.ListFactories(ctx)),
		"current":   s.deps.Factories.Current(ctx),
	})
}

func (s *Server) handleTokens(c *gin.Context) {
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		c.JSON(http.StatusOK, gin.H{"tokens": list(s.deps.Tokens.Search(q))})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokens": list(s.deps.Tokens.All())})
}

func (s *Server) handleMatches(c *gin.Context) {
	scope, err := scopeQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	cards, err := s.deps.Betting.ActiveMatches(c.Request.Context(), scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list(cards)})
}

func (s *Server) handleMatch(c *gin.Context) {
	addr, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	card, err := s.deps.Betting.Match(c.Request.Context(), betting.MatchRef{Address: addr})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": card, "totalPoolDisplay": card.TotalPoolDisplay()})
}

func (s *Server) handleMaxBet(c *gin.Context) {
	addr, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	n, err := strconv.ParseUint(c.DefaultQuery("choice", "1"), 10, 8)
	if err != nil {
		s.fail(c, badRequest("无效选项: "+c.Query("choice")))
		return
	}
	limit, err := s.deps.Betting.MaxBet(c.Request.Context(), addr, betting.Choice(n))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"maxBet": limit, "limited": limit.Limited()})
}

func (s *Server) handleBetHistory(c *gin.Context) {
	addr, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	events, err := s.deps.Betting.BetHistory(c.Request.Context(), addr)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"bets": list(events)})
}

// userView /api/users/:addr/* 的公共部分
func userView[T any](s *Server, c *gin.Context, key string, fn func(common.Address, betting.Scope) ([]T, error)) {
	user, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	scope, err := scopeQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	items, err := fn(user, scope)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: list(items)})
}

func (s *Server) handleUserBets(c *gin.Context) {
	userView(s, c, "bets", func(u common.Address, sc betting.Scope) ([]betting.ActiveBet, error) {
		return s.deps.Betting.MyActiveBets(c.Request.Context(), u, sc)
	})
}

func (s *Server) handleClaimable(c *gin.Context) {
	userView(s, c, "claimable", func(u common.Address, sc betting.Scope) ([]betting.Claimable, error) {
		return s.deps.Betting.ClaimableRewards(c.Request.Context(), u, sc)
	})
}

func (s *Server) handleHistory(c *gin.Context) {
	userView(s, c, "history", func(u common.Address, sc betting.Scope) ([]betting.HistoryEntry, error) {
		return s.deps.Betting.History(c.Request.Context(), u, sc)
	})
}

func (s *Server) handleBalances(c *gin.Context) {
	user, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balances": list(s.deps.Tokens.Balances(c.Request.Context(), user))})
}

func (s *Server) handleSwapQuote(c *gin.Context) {
	from, err := s.deps.Tokens.Find(c.Query("from"))
	if err != nil {
		s.fail(c, err)
		return
	}
	to, err := s.deps.Tokens.Find(c.Query("to"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if from.Address == to.Address {
		s.fail(c, badRequest("from 与 to 不能相同"))
		return
	}
	amount, err := units.ParseUnits(c.Query("amount"), from.Decimals)
	if err != nil || amount.Sign() <= 0 {
		s.fail(c, badRequest("无效数量: "+c.Query("amount")))
		return
	}
	bps, err := s.slippageQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	q, err := s.deps.Swap.QuoteSwap(c.Request.Context(), amount, from, to, bps)
	if err != nil {
		s.fail(c, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "没有可用的交易对: " + from.Symbol + "/" + to.Symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q, "display": q.Display()})
}

// slippageQuery ?slippage_bps=，缺省取配置
func (s *Server) slippageQuery(c *gin.Context) (int64, error) {
	v := c.Query("slippage_bps")
	if v == "" {
		return s.deps.Swap.DefaultSlippage(), nil
	}
	bps, err := strconv.ParseInt(v, 10, 64)
	if err != nil || bps < 0 || bps > swap.MaxBps {
		return 0, badRequest("无效滑点: " + v)
	}
	return bps, nil
}

// tokenPairQuery ?a=&b= 两个不同的代币
func (s *Server) tokenPairQuery(c *gin.Context) (tokens.Token, tokens.Token, error) {
	a, err := s.deps.Tokens.Find(c.Query("a"))
	if err != nil {
		return tokens.Token{}, tokens.Token{}, err
	}
	b, err := s.deps.Tokens.Find(c.Query("b"))
	if err != nil {
		return tokens.Token{}, tokens.Token{}, err
	}
	if a.Address == b.Address {
		return tokens.Token{}, tokens.Token{}, badRequest("a 与 b 不能相同")
	}
	return a, b, nil
}

func (s *Server) handleAddQuote(c *gin.Context) {
	a, b, err := s.tokenPairQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	amount, err := units.ParseUnits(c.Query("amount"), a.Decimals)
	if err != nil || amount.Sign() <= 0 {
		s.fail(c, badRequest("无效数量: "+c.Query("amount")))
		return
	}
	q, err := s.deps.Swap.QuoteAddLiquidity(c.Request.Context(), a, b, amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	if q == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "交易对不存在: " + a.Symbol + "/" + b.Symbol})
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q})
}

func (s *Server) handlePositions(c *gin.Context) {
	owner, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	found, err := s.deps.Swap.ScanPositions(ctx, owner, s.deps.Tokens.All())
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]*swap.PositionDetails, 0, len(found))
	for _, p := range found {
		d, err := s.deps.Swap.PositionDetails(ctx, p)
		if err != nil {
			s.log().Warnf("读取仓位 %s 失败: %v", p.Pair.Hex(), err)
			d = &swap.PositionDetails{Position: p}
		}
		out = append(out, d)
	}
	c.JSON(http.StatusOK, gin.H{"positions": out})
}

func (s *Server) handleRemoveQuote(c *gin.Context) {
	owner, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	a, b, err := s.tokenPairQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	percent, err := strconv.ParseInt(c.DefaultQuery("percent", "100"), 10, 64)
	if err != nil || percent <= 0 || percent > 100 {
		s.fail(c, badRequest("无效比例: "+c.Query("percent")))
		return
	}
	bps, err := s.slippageQuery(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	ctx := c.Request.Context()
	found, err := s.deps.Swap.ScanPositions(ctx, owner, []tokens.Token{a, b})
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(found) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "没有 LP 仓位: " + a.Symbol + "/" + b.Symbol})
		return
	}
	q, err := s.deps.Swap.QuoteRemoveLiquidity(ctx, found[0], percent, bps)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": q})
}

func (s *Server) handleAdminMatches(c *gin.Context) {
	fac, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	matches, err := s.deps.Betting.AdminMatches(c.Request.Context(), fac)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matches": list(matches)})
}

func (s *Server) handleStakingAddresses(c *gin.Context) {
	fac, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	sa, err := s.deps.Factories.StakingAddresses(c.Request.Context(), fac)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"native": sa.NativeLabel(), "token": sa.TokenLabel()})
}

func (s *Server) handleStakingPools(c *gin.Context) {
	type poolView struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Type     string `json:"type"`
		Symbol   string `json:"symbol"`
		Contract string `json:"contract"`
		MinStake string `json:"minStake"`
	}
	pools := s.deps.Staking.Pools()
	out := make([]poolView, 0, len(pools))
	for _, p := range pools {
		out = append(out, poolView{
			ID: p.ID, Name: p.Name, Type: string(p.Type), Symbol: p.Symbol,
			Contract: p.Contract.Hex(), MinStake: units.FormatUnits(p.MinStake, p.Decimals),
		})
	}
	c.JSON(http.StatusOK, gin.H{"pools": out})
}

func (s *Server) handleStaking(c *gin.Context) {
	user, err := addressParam(c, "addr")
	if err != nil {
		s.fail(c, err)
		return
	}
	o, err := s.deps.Staking.Overview(c.Request.Context(), c.Param("pool"), user)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"pool":     o.Pool.ID,
		"deployed": o.Deployed,
		"info":     o.Info,
		"bonus":    o.Bonus,
		"display":  o.Display(),
	})
}
