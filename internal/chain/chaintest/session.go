package chaintest

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/betbot/betdex/internal/chain"
	"github.com/betbot/betdex/pkg/clientstate"
)

// NewSigner 随机生成测试用签名账户
func NewSigner() *chain.KeySigner {
	key, err := crypto.GenerateKey()
	if err != nil {
		panic(err)
	}
	return chain.FromECDSA(key)
}

// Dialer 总是返回同一个 fake 节点
func (f *FakeBackend) Dialer() chain.Dialer {
	return func(context.Context, string) (chain.Backend, error) { return f, nil }
}

// Connect 创建已连接到 fake 节点的会话；signer 为 nil 时为只读会话
func Connect(f *FakeBackend, signer chain.Signer, mutate ...func(*chain.Options)) (*chain.Session, error) {
	opts := chain.Options{
		RPCURL:      "fake://node",
		ChainID:     f.chainID.Int64(),
		Dial:        f.Dialer(),
		Store:       clientstate.NewMemoryStore(),
		ReceiptPoll: time.Millisecond,
		Now:         f.Now,
	}
	if signer != nil {
		opts.Signer = signer
	}
	for _, m := range mutate {
		m(&opts)
	}
	s := chain.NewSession(opts)
	if err := s.Connect(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

// Now 以最新区块时间作为会话时钟
func (f *FakeBackend) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return time.Unix(int64(f.blockTime), 0)
}
