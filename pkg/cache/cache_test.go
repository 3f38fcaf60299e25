package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInMemoryCacheExpiry(t *testing.T) {
	c := NewInMemoryCache[string, int](time.Minute, 0)
	defer c.Close()

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }

	c.Set("a", 1, 0)
	c.Set("b", 2, 10*time.Second)

	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(30 * time.Second)
	_, ok = c.Get("b")
	assert.False(t, ok, "b 已过期")
	_, ok = c.Get("a")
	assert.True(t, ok, "a 使用默认 TTL")

	c.Clear()
	assert.Equal(t, 0, c.Size())
}

func TestInMemoryCacheCapacity(t *testing.T) {
	c := NewInMemoryCache[int, string](time.Hour, 2)
	defer c.Close()
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }

	c.Set(1, "x", time.Second)
	c.Set(2, "y", 0)

	// 满了：先清理过期项
	now = now.Add(2 * time.Second)
	c.Set(3, "z", 0)
	assert.Equal(t, 2, c.Size())
	_, ok := c.Get(1)
	assert.False(t, ok)

	// 仍然满：淘汰最早过期的 2
	c.Set(4, "w", 0)
	assert.Equal(t, 2, c.Size())
	_, ok = c.Get(2)
	assert.False(t, ok)
	_, ok = c.Get(4)
	assert.True(t, ok)

	// 覆盖已有 key 不淘汰
	c.Set(4, "w2", 0)
	v, _ := c.Get(3)
	assert.Equal(t, "z", v)

	c.Delete(4)
	assert.Equal(t, 1, c.Size())
}
