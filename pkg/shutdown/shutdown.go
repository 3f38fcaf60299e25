// Package shutdown 按注册的逆序关闭资源（API -> 存储 -> 会话）。
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/betbot/betdex/pkg/logger"
)

// Handler 关闭回调
type Handler func(ctx context.Context) error

type entry struct {
	name string
	fn   Handler
}

// Manager 优雅关闭管理器
type Manager struct {
	mu       sync.Mutex
	handlers []entry
	done     bool
}

// NewManager 创建新的关闭管理器
func NewManager() *Manager {
	return &Manager{}
}

// OnShutdown 注册关闭回调，后注册的先执行
func (m *Manager) OnShutdown(name string, fn Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, entry{name: name, fn: fn})
}

// Closer 把 Close() error 包装为 Handler
func Closer(c interface{ Close() error }) Handler {
	return func(context.Context) error { return c.Close() }
}

// Shutdown 逆序执行全部回调，只执行一次。ctx 超时后剩余回调不再执行。
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.done {
		m.mu.Unlock()
		return nil
	}
	m.done = true
	handlers := m.handlers
	m.mu.Unlock()

	var errs []error
	for i := len(handlers) - 1; i >= 0; i-- {
		h := handlers[i]
		if err := ctx.Err(); err != nil {
			logger.Warnf("关闭超时，跳过 %s: %v", h.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		if err := h.fn(ctx); err != nil {
			logger.Warnf("关闭 %s 失败: %v", h.name, err)
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
			continue
		}
		logger.Debugf("已关闭 %s", h.name)
	}
	return errors.Join(errs...)
}
