// Package clientstate 保存本地客户端状态（当前 factory、钱包连接标记、自定义代币列表、切换后的节点）。
// 单用户单进程使用，不做跨进程加锁，后写覆盖先写。
package clientstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// 已知的 key
const (
	KeySelectedFactory = "selectedFactory"
	KeyWalletConnected = "walletConnected"
	KeyCustomTokens    = "customTokens"
	KeyRPCEndpoint     = "rpcEndpoint"
)

// ErrEmptyKey key 为空
var ErrEmptyKey = errors.New("clientstate: key is empty")

// Store 字符串 KV 存储
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(key string) error
	Close() error
}

// Options 打开存储的参数
type Options struct {
	Backend       string // badger / json / memory
	Path          string
	EncryptionKey string
}

// Open 按 backend 打开存储
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "badger":
		key, err := ParseKey(opts.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("解析存储加密密钥失败: %w", err)
		}
		return OpenBadger(BadgerOptions{Path: opts.Path, EncryptionKey: key})
	case "json", "":
		return NewJSONFileStore(opts.Path), nil
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("clientstate: unknown backend %q", opts.Backend)
	}
}

// GetJSON 读取 JSON 编码的值，不存在时返回 false
func GetJSON(s Store, key string, out any) (bool, error) {
	raw, ok, err := s.Get(key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return false, fmt.Errorf("clientstate: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON 以 JSON 编码写入
func SetJSON(s Store, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.Set(key, string(b))
}

func normalizeKey(key string) (string, error) {
	k := strings.TrimSpace(key)
	if k == "" {
		return "", ErrEmptyKey
	}
	return k, nil
}

// MemoryStore 进程内存储，测试和 watch-only 模式使用
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore 创建内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (m *MemoryStore) Get(key string) (string, bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[k]
	return v, ok, nil
}

func (m *MemoryStore) Set(key, value string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = value
	return nil
}

func (m *MemoryStore) Delete(key string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, k)
	return nil
}

func (m *MemoryStore) Close() error { return nil }
