// Package api 本地只读 JSON API：比赛、下注、兑换报价、质押信息。
// 所有数据都实时从链上读取，服务本身不保存状态。
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/betting"
	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/factory"
	"github.com/betbot/betdex/internal/metrics"
	"github.com/betbot/betdex/internal/staking"
	"github.com/betbot/betdex/internal/swap"
	"github.com/betbot/betdex/internal/tokens"
	"github.com/betbot/betdex/pkg/logger"
)

// Deps 各个服务，全部必填
type Deps struct {
	Session   *chain.Session
	Factories *factory.Directory
	Betting   *betting.Service
	Swap      *swap.Service
	Tokens    *tokens.Directory
	Staking   *staking.Service
}

type Server struct {
	deps Deps
}

func New(deps Deps) (*Server, error) {
	if deps.Session == nil || deps.Factories == nil || deps.Betting == nil ||
		deps.Swap == nil || deps.Tokens == nil || deps.Staking == nil {
		return nil, errors.New("api: 缺少依赖")
	}
	return &Server{deps: deps}, nil
}

func (s *Server) log() *logrus.Entry {
	return logger.WithField("component", "api")
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.GET("/factories", s.handleFactories)
	api.GET("/factories/:addr/matches", s.handleAdminMatches)
	api.GET("/factories/:addr/staking", s.handleStakingAddresses)
	api.GET("/tokens", s.handleTokens)

	matches := api.Group("/matches")
	matches.GET("", s.handleMatches)
	matchAddr := matches.Group("/:addr")
	matchAddr.GET("", s.handleMatch)
	matchAddr.GET("/maxbet", s.handleMaxBet)
	matchAddr.GET("/bets", s.handleBetHistory)

	users := api.Group("/users/:addr")
	users.GET("/bets", s.handleUserBets)
	users.GET("/claimable", s.handleClaimable)
	users.GET("/history", s.handleHistory)
	users.GET("/balances", s.handleBalances)
	users.GET("/positions", s.handlePositions)
	users.GET("/positions/remove-quote", s.handleRemoveQuote)

	api.GET("/swap/quote", s.handleSwapQuote)
	api.GET("/liquidity/quote", s.handleAddQuote)

	api.GET("/staking", s.handleStakingPools)
	api.GET("/staking/:pool/:addr", s.handleStaking)

	return r
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log().WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": c.Writer.Status(),
			"cost":   time.Since(start).Round(time.Millisecond),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("请求失败")
			return
		}
		entry.Debug("请求完成")
	}
}

// Run 阻塞监听 addr，ctx 结束时优雅关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.log().Infof("API 已启动: http://%s", ln.Addr())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.log().Info("API 已关闭")
	return nil
}
