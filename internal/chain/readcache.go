package chain

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/betbot/betdex/internal/metrics"
	"github.com/betbot/betdex/pkg/cache"
)

// readCache 短期读缓存，key = (chain, contract, calldata)；
// calldata 已包含方法 selector 和参数。任何写操作都会整体清空。
type readCache struct {
	store *cache.InMemoryCache[string, []byte]
	ttl   time.Duration
}

// maxReadEntries 单个会话缓存的调用结果上限
const maxReadEntries = 4096

func newReadCache(ttl time.Duration) *readCache {
	if ttl <= 0 {
		return nil
	}
	return &readCache{store: cache.NewInMemoryCache[string, []byte](ttl, maxReadEntries), ttl: ttl}
}

func readKey(chainID uint64, to common.Address, data []byte) string {
	return fmt.Sprintf("%d:%s:%s", chainID, to.Hex(), hex.EncodeToString(data))
}

func (c *readCache) get(key string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.store.Get(key)
	if ok {
		metrics.CacheLookups.WithLabelValues("hit").Inc()
	} else {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}
	return v, ok
}

func (c *readCache) set(key string, v []byte) {
	if c == nil {
		return
	}
	c.store.Set(key, v, c.ttl)
}

func (c *readCache) clear() {
	if c == nil {
		return
	}
	c.store.Clear()
}

func (c *readCache) close() {
	if c == nil {
		return
	}
	c.store.Close()
}
