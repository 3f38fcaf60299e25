package chain

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/betbot/betdex/pkg/clientstate"
	"github.com/betbot/betdex/pkg/logger"
	"github.com/betbot/betdex/pkg/ratelimit"
)

// State 会话状态
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	WrongNetwork
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case WrongNetwork:
		return "wrong_network"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventKind 会话事件类型
type EventKind int

const (
	EventStateChanged EventKind = iota
	EventAccountChanged
	EventChainChanged
)

// Event 会话变更通知
type Event struct {
	Kind    EventKind
	State   State
	Account common.Address
	ChainID uint64
}

// Options 会话参数
type Options struct {
	RPCURL  string
	ChainID int64 // 期望的链 ID
	Signer  Signer
	// WatchAddress 无签名账户时用于查询的地址
	WatchAddress common.Address
	Store        clientstate.Store
	CacheTTL     time.Duration
	Dial         Dialer
	// ReceiptPoll 等待交易回执的轮询间隔
	ReceiptPoll time.Duration
	Now         func() time.Time
	// RPCRateLimit 每秒最多发出的只读调用数，0 不限速；RPCBurst 为突发容量
	RPCRateLimit float64
	RPCBurst     int
}

// Session 显式的钱包/节点会话。状态迁移：
//
//	Disconnected -> Connecting -> Connected
//	Connecting -> WrongNetwork -> (SwitchNetwork) -> Connected
//	任意状态 -> Disconnected
type Session struct {
	mu       sync.RWMutex
	state    State
	backend  Backend
	rpcURL   string
	expected *big.Int
	chainID  *big.Int
	signer   Signer
	watch    common.Address

	dial        Dialer
	store       clientstate.Store
	reads       *readCache
	limiter     *ratelimit.TokenBucket
	receiptPoll time.Duration
	now         func() time.Time

	listenersMu sync.Mutex
	listeners   []func(Event)
}

// NewSession 创建会话，初始为 Disconnected
func NewSession(opts Options) *Session {
	if opts.Dial == nil {
		opts.Dial = DialRPC
	}
	if opts.Store == nil {
		opts.Store = clientstate.NewMemoryStore()
	}
	if opts.ReceiptPoll <= 0 {
		opts.ReceiptPoll = 2 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Session{
		state:       Disconnected,
		rpcURL:      opts.RPCURL,
		expected:    big.NewInt(opts.ChainID),
		signer:      opts.Signer,
		watch:       opts.WatchAddress,
		dial:        opts.Dial,
		store:       opts.Store,
		reads:       newReadCache(opts.CacheTTL),
		limiter:     ratelimit.NewTokenBucket(opts.RPCBurst, opts.RPCRateLimit),
		receiptPoll: opts.ReceiptPoll,
		now:         opts.Now,
	}
}

// OnChange 注册变更回调，回调在状态锁之外同步执行
func (s *Session) OnChange(fn func(Event)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Session) emit(ev Event) {
	s.listenersMu.Lock()
	fns := append([]func(Event){}, s.listeners...)
	s.listenersMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

func (s *Session) log() *logrus.Entry {
	return logger.WithField("component", "session")
}

// State 当前状态
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Now 会话时钟
func (s *Session) Now() time.Time {
	return s.now()
}

// Store 客户端状态存储
func (s *Session) Store() clientstate.Store {
	return s.store
}

// Connect 连接节点并校验链 ID。链 ID 不一致时进入 WrongNetwork 并返回 ErrWrongNetwork。
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case Connected:
		s.mu.Unlock()
		return nil
	case Connecting:
		s.mu.Unlock()
		return fmt.Errorf("连接进行中")
	}
	s.state = Connecting
	rpcURL := s.rpcURL
	s.mu.Unlock()
	s.emit(Event{Kind: EventStateChanged, State: Connecting})

	st, err := s.attach(ctx, rpcURL)
	if err != nil && st == Disconnected {
		s.emit(Event{Kind: EventStateChanged, State: Disconnected})
		return err
	}
	s.emit(Event{Kind: EventStateChanged, State: st, Account: s.accountOrZero(), ChainID: s.ChainID()})
	return err
}

// attach 拨号并根据链 ID 决定 Connected / WrongNetwork；失败回到 Disconnected
func (s *Session) attach(ctx context.Context, rpcURL string) (State, error) {
	backend, err := s.dial(ctx, rpcURL)
	if err != nil {
		s.setDisconnected()
		return Disconnected, err
	}
	chainID, err := backend.ChainID(ctx)
	if err != nil {
		backend.Close()
		s.setDisconnected()
		return Disconnected, fmt.Errorf("获取链ID失败: %w", err)
	}

	s.mu.Lock()
	if s.backend != nil && s.backend != backend {
		s.backend.Close()
	}
	s.backend = backend
	s.rpcURL = rpcURL
	s.chainID = chainID
	if chainID.Cmp(s.expected) != 0 {
		s.state = WrongNetwork
		s.mu.Unlock()
		s.log().Warnf("链ID不匹配: 期望 %s, 实际 %s", s.expected, chainID)
		return WrongNetwork, fmt.Errorf("%w: 期望 %s, 实际 %s", ErrWrongNetwork, s.expected, chainID)
	}
	s.state = Connected
	s.mu.Unlock()

	s.reads.clear()
	if err := s.store.Set(clientstate.KeyWalletConnected, "true"); err != nil {
		s.log().Warnf("保存连接标记失败: %v", err)
	}
	s.log().Infof("已连接 %s chainId=%s", rpcURL, chainID)
	return Connected, nil
}

func (s *Session) setDisconnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Disconnected
}

// Reconnect 启动时根据保存的连接标记自动连接，返回是否尝试了连接
func (s *Session) Reconnect(ctx context.Context) (bool, error) {
	v, ok, err := s.store.Get(clientstate.KeyWalletConnected)
	if err != nil {
		return false, err
	}
	if !ok || v != "true" {
		return false, nil
	}
	return true, s.Connect(ctx)
}

// Disconnect 断开连接并清除连接标记
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
	s.chainID = nil
	prev := s.state
	s.state = Disconnected
	s.mu.Unlock()

	s.reads.clear()
	if err := s.store.Delete(clientstate.KeyWalletConnected); err != nil {
		s.log().Warnf("清除连接标记失败: %v", err)
	}
	if prev != Disconnected {
		s.emit(Event{Kind: EventStateChanged, State: Disconnected})
	}
}

// SwitchNetwork 切换到另一个 RPC 端点（rpcURL 为空则重连当前端点），成功后读缓存失效
func (s *Session) SwitchNetwork(ctx context.Context, rpcURL string) error {
	s.mu.RLock()
	st := s.state
	if rpcURL == "" {
		rpcURL = s.rpcURL
	}
	s.mu.RUnlock()
	if st != WrongNetwork && st != Connected {
		return ErrNotConnected
	}

	next, err := s.attach(ctx, rpcURL)
	s.emit(Event{Kind: EventChainChanged, State: next, ChainID: s.ChainID()})
	if next != st {
		s.emit(Event{Kind: EventStateChanged, State: next, Account: s.accountOrZero(), ChainID: s.ChainID()})
	}
	return err
}

// SetSigner 切换签名账户；nil 等价于钱包断开所有账户
func (s *Session) SetSigner(signer Signer) {
	if signer == nil {
		s.mu.Lock()
		s.signer = nil
		s.mu.Unlock()
		s.Disconnect()
		return
	}
	s.mu.Lock()
	s.signer = signer
	s.mu.Unlock()
	s.emit(Event{Kind: EventAccountChanged, State: s.State(), Account: signer.Address()})
}

// Account 当前账户：签名账户优先，其次观察地址，这是唯一的地址来源
func (s *Session) Account() (common.Address, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.signer != nil {
		return s.signer.Address(), nil
	}
	if s.watch != (common.Address{}) {
		return s.watch, nil
	}
	return common.Address{}, ErrNoAccount
}

func (s *Session) accountOrZero() common.Address {
	a, _ := s.Account()
	return a
}

// CanSign 是否可以发送交易
func (s *Session) CanSign() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.signer != nil
}

// ChainID 当前连接的链 ID，未连接返回 0
func (s *Session) ChainID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chainID == nil {
		return 0
	}
	return s.chainID.Uint64()
}

// Backend 已连接且网络正确时返回 RPC 后端
func (s *Session) Backend() (Backend, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case Connected:
		return s.backend, nil
	case WrongNetwork:
		return nil, ErrWrongNetwork
	default:
		return nil, ErrNotConnected
	}
}

// InvalidateReads 清空读缓存
func (s *Session) InvalidateReads() {
	s.reads.clear()
}

// Close 释放连接与缓存
func (s *Session) Close() {
	s.mu.Lock()
	if s.backend != nil {
		s.backend.Close()
		s.backend = nil
	}
	s.state = Disconnected
	s.mu.Unlock()
	s.reads.close()
}
