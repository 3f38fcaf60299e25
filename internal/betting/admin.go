package betting

import (
	"context"
	"fmt"
	"io"
	"math/big"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/internal/contracts"
	"github.com/betbot/betdex/pkg/units"
)

// ImageInput 队伍图片：已有 URI，或需要上传的内容
type ImageInput struct {
	URI  string
	Name string
	Data io.Reader
}

// CreateMatchRequest 新建比赛参数
type CreateMatchRequest struct {
	Factory   common.Address
	Variant   MatchVariant
	League    string
	TeamA     string
	TeamB     string
	StartTime time.Time
	// Odds 小数赔率，如 "1.8"，顺序为 A、B、平
	Odds []string
	// MaxBet 单注上限（原生币），空或等于默认值时不额外设置
	MaxBet string
	ImageA *ImageInput
	ImageB *ImageInput
}

// CreateMatchResult 新建比赛结果。比赛创建成功后的附加步骤失败只记录在 Warnings 中。
type CreateMatchResult struct {
	OpID     string         `json:"opId"`
	Match    common.Address `json:"match"`
	Receipt  *types.Receipt `json:"-"`
	Warnings []string       `json:"warnings,omitempty"`
}

// Partial 比赛已创建但有附加步骤失败
func (r *CreateMatchResult) Partial() bool {
	return len(r.Warnings) > 0
}

type validatedMatch struct {
	odds   []*big.Int
	maxBet *big.Int
	league string
}

func (s *Service) validateCreate(ctx context.Context, req CreateMatchRequest) (validatedMatch, error) {
	var v validatedMatch
	if req.Variant != WithDraw && req.Variant != NoDraw {
		return v, fmt.Errorf("未知比赛类型")
	}
	if strings.TrimSpace(req.TeamA) == "" || strings.TrimSpace(req.TeamB) == "" {
		return v, fmt.Errorf("队伍名称不能为空")
	}
	if len(req.Odds) != req.Variant.Outcomes() {
		return v, fmt.Errorf("%s 比赛需要 %d 个赔率，实际 %d 个", req.Variant, req.Variant.Outcomes(), len(req.Odds))
	}
	for _, raw := range req.Odds {
		o, err := units.ParseOdds(raw)
		if err != nil {
			return v, err
		}
		v.odds = append(v.odds, new(big.Int).SetUint64(o))
	}

	blockTime, err := s.session.BlockTime(ctx)
	if err != nil {
		return v, err
	}
	earliest := int64(blockTime) - int64(s.opts.PastWindow/time.Second)
	if req.StartTime.Unix() < earliest {
		return v, fmt.Errorf("开赛时间 %s 早于链上时间允许的范围（最早 %s）",
			req.StartTime.UTC().Format(time.RFC3339), time.Unix(earliest, 0).UTC().Format(time.RFC3339))
	}

	if m := strings.TrimSpace(req.MaxBet); m != "" {
		d, err := decimal.NewFromString(m)
		if err != nil || !d.IsPositive() {
			return v, fmt.Errorf("无效的单注上限 %q", req.MaxBet)
		}
		def, _ := decimal.NewFromString(s.opts.DefaultMaxBet)
		if !d.Equal(def) {
			if v.maxBet, err = units.ParseUnits(m, NativeDecimals); err != nil {
				return v, err
			}
		}
	}
	v.league = strings.TrimSpace(req.League)
	if v.league == "" {
		v.league = s.opts.DefaultLeague
	}
	return v, nil
}

// CreateMatch 在 factory 上创建比赛，并从回执事件中取得新比赛地址；
// 之后按需设置单注上限、上传并设置队伍图片。附加步骤失败时比赛仍然创建成功，返回部分成功。
func (s *Service) CreateMatch(ctx context.Context, req CreateMatchRequest) (*CreateMatchResult, error) {
	v, err := s.validateCreate(ctx, req)
	if err != nil {
		return nil, err
	}
	res := &CreateMatchResult{OpID: uuid.NewString()}
	entry := s.log().WithFields(logrus.Fields{"op": res.OpID, "factory": req.Factory.Hex()})

	fc := s.dir.Contract(req.Factory)
	start := big.NewInt(req.StartTime.Unix())
	method, event := "createMatchNoDraw", "MatchNoDrawCreated"
	args := []interface{}{v.league, req.TeamA, req.TeamB, start, v.odds[0], v.odds[1]}
	if req.Variant == WithDraw {
		method, event = "createMatchWithDraw", "MatchWithDrawCreated"
		args = append(args, v.odds[2])
	}
	receipt, err := fc.Transact(ctx, nil, method, args...)
	if err != nil {
		return nil, err
	}
	res.Receipt = receipt

	logs := fc.Events(receipt, event)
	if len(logs) == 0 || len(logs[0].Topics) < 2 {
		return res, fmt.Errorf("比赛已创建，但回执中没有 %s 事件", event)
	}
	res.Match = common.BytesToAddress(logs[0].Topics[1].Bytes())
	entry = entry.WithField("match", res.Match.Hex())
	entry.Infof("比赛已创建: %s vs %s", req.TeamA, req.TeamB)

	match := s.bind(res.Match, req.Variant)
	if v.maxBet != nil {
		if _, err := match.Transact(ctx, nil, "setMaxBetAmount", v.maxBet); err != nil {
			entry.Warnf("设置单注上限失败: %v", err)
			res.Warnings = append(res.Warnings, fmt.Sprintf("set max bet: %s", chain.FriendlyMessage(err)))
		}
	}

	if req.ImageA != nil || req.ImageB != nil {
		uriA, errA := s.imageURI(ctx, req.ImageA)
		uriB, errB := s.imageURI(ctx, req.ImageB)
		for _, e := range []error{errA, errB} {
			if e != nil {
				entry.Warnf("上传图片失败: %v", e)
				res.Warnings = append(res.Warnings, fmt.Sprintf("upload image: %v", e))
			}
		}
		if uriA != "" || uriB != "" {
			if _, err := match.Transact(ctx, nil, "setTeamImages", uriA, uriB); err != nil {
				entry.Warnf("设置队伍图片失败: %v", err)
				res.Warnings = append(res.Warnings, fmt.Sprintf("set team images: %s", chain.FriendlyMessage(err)))
			}
		}
	}
	return res, nil
}

func (s *Service) imageURI(ctx context.Context, in *ImageInput) (string, error) {
	if in == nil {
		return "", nil
	}
	if in.URI != "" {
		return in.URI, nil
	}
	if in.Data == nil {
		return "", nil
	}
	if s.opts.Pinner == nil {
		return "", fmt.Errorf("%w: ipfs pinning", chain.ErrNotConfigured)
	}
	if c, ok := s.opts.Pinner.(interface{ Configured() bool }); ok && !c.Configured() {
		return "", fmt.Errorf("%w: ipfs pinning", chain.ErrNotConfigured)
	}
	return s.opts.Pinner.Upload(ctx, in.Name, in.Data)
}

// 结算后从 factory 列表下架比赛的恢复提示
const recoverDeactivation = "retry deactivation only"

// FinalizeResult 两步操作：先 finalizeResult(code)，再在 factory 中 setMatchActive(false)。
// 第二步失败时比赛已经结算，返回 *chain.SagaError，调用方只需 RetryDeactivation。
func (s *Service) FinalizeResult(ctx context.Context, fac, addr common.Address, result uint8) (*types.Receipt, error) {
	info, err := s.readInfo(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	if result == 0 || result > info.Variant.CancelCode() {
		return nil, fmt.Errorf("%w: 结果码 %d 对 %s 比赛无效", ErrInvalidChoice, result, info.Variant)
	}
	opID := uuid.NewString()
	entry := s.log().WithFields(logrus.Fields{"op": opID, "match": addr.Hex()})

	receipt, err := s.bind(addr, info.Variant).Transact(ctx, nil, "finalizeResult", result)
	if err != nil {
		return nil, err
	}
	entry.Infof("比赛已结算，结果 %d", result)

	if _, err := s.SetMatchVisible(ctx, fac, addr, false); err != nil {
		entry.Errorf("比赛已结算但下架失败，需要重试下架: %v", err)
		return receipt, &chain.SagaError{
			OpID:      opID,
			Operation: "finalize",
			Completed: []string{"finalizeResult"},
			Failed:    "setMatchActive",
			Recovery:  recoverDeactivation,
			Err:       err,
		}
	}
	return receipt, nil
}

// RetryDeactivation 只执行 FinalizeResult 的第二步
func (s *Service) RetryDeactivation(ctx context.Context, fac, addr common.Address) (*types.Receipt, error) {
	return s.SetMatchVisible(ctx, fac, addr, false)
}

// AdminMatch 管理视图中的比赛
type AdminMatch struct {
	Address     common.Address `json:"address"`
	Variant     MatchVariant   `json:"variant"`
	League      string         `json:"league"`
	TeamA       string         `json:"teamA"`
	TeamB       string         `json:"teamB"`
	StartTime   uint64         `json:"startTime"`
	Finalized   bool           `json:"finalized"`
	Result      uint8          `json:"result"`
	ResultLabel string         `json:"resultLabel"`
	Active      bool           `json:"active"`
}

// AdminMatches factory 的全部比赛及其是否在列表中显示
func (s *Service) AdminMatches(ctx context.Context, fac common.Address) ([]AdminMatch, error) {
	if _, err := s.session.Backend(); err != nil {
		return nil, err
	}
	defer observe(ViewAdmin, time.Now())

	items := s.listMatches(ctx, ViewAdmin, OneFactory(fac), false)
	fc := s.dir.Contract(fac)
	var (
		mu  sync.Mutex
		out []AdminMatch
	)
	s.each(ctx, ViewAdmin, items, func(ctx context.Context, it listed) error {
		info, err := s.readInfo(ctx, it.addr, it.variant)
		if err != nil {
			return err
		}
		active := false
		if v, err := fc.Call(ctx, "isMatchActive", it.addr); err == nil {
			active, _ = v[0].(bool)
		}
		m := AdminMatch{
			Address:     it.addr,
			Variant:     info.Variant,
			League:      s.league(ctx, "", fac, it.addr),
			TeamA:       info.TeamA,
			TeamB:       info.TeamB,
			StartTime:   info.StartTime,
			Finalized:   info.Finalized,
			Result:      info.Result,
			ResultLabel: info.ResultLabel(),
			Active:      active,
		}
		mu.Lock()
		out = append(out, m)
		mu.Unlock()
		return nil
	})
	sortByStart(out, func(m AdminMatch) (uint64, common.Address) { return m.StartTime, m.Address })
	return out, nil
}

// BetEvent 一条 BetPlaced 事件
type BetEvent struct {
	User   common.Address `json:"user"`
	Choice Choice         `json:"choice"`
	Label  string         `json:"label"`
	Amount *big.Int       `json:"amount"`
	Block  uint64         `json:"block"`
	TxHash common.Hash    `json:"txHash"`
	index  uint
}

// BetHistory 比赛最近 HistoryBlocks 个区块内的下注事件，按区块号倒序
func (s *Service) BetHistory(ctx context.Context, addr common.Address) ([]BetEvent, error) {
	info, err := s.readInfo(ctx, addr, 0)
	if err != nil {
		return nil, err
	}
	head, err := s.session.BlockNumber(ctx)
	if err != nil {
		return nil, err
	}
	var from uint64
	if head > s.opts.HistoryBlocks {
		from = head - s.opts.HistoryBlocks
	}
	ev := contracts.MatchWithDraw.Events["BetPlaced"]
	logs, err := s.session.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(head),
		Addresses: []common.Address{addr},
		Topics:    [][]common.Hash{{ev.ID}},
	})
	if err != nil {
		return nil, fmt.Errorf("查询下注事件失败: %w", err)
	}

	match := s.bind(addr, info.Variant)
	out := make([]BetEvent, 0, len(logs))
	for _, l := range logs {
		if len(l.Topics) < 2 {
			continue
		}
		var data struct {
			Choice uint8
			Amount *big.Int
		}
		if err := match.UnpackLog(&data, "BetPlaced", l); err != nil {
			s.log().WithField("tx", l.TxHash.Hex()).Warnf("解析下注事件失败: %v", err)
			continue
		}
		out = append(out, BetEvent{
			User:   common.BytesToAddress(l.Topics[1].Bytes()),
			Choice: Choice(data.Choice),
			Label:  info.Label(Choice(data.Choice)),
			Amount: data.Amount,
			Block:  l.BlockNumber,
			TxHash: l.TxHash,
			index:  l.Index,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Block != out[j].Block {
			return out[i].Block > out[j].Block
		}
		return out[i].index > out[j].index
	})
	return out, nil
}
