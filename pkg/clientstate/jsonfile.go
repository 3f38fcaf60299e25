package clientstate

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/betbot/betdex/pkg/logger"
)

// JSONFileStore 单个 JSON 文件保存全部 key，写入走 tmp+rename
type JSONFileStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONFileStore 创建 JSON 文件存储；dir 下生成 state.json
func NewJSONFileStore(dir string) *JSONFileStore {
	return &JSONFileStore{path: filepath.Join(dir, "state.json")}
}

func (s *JSONFileStore) load() (map[string]string, error) {
	data := make(map[string]string)
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return data, nil
		}
		return nil, err
	}
	if len(b) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(b, &data); err != nil {
		return nil, err
	}
	return data, nil
}

func (s *JSONFileStore) save(data map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *JSONFileStore) Get(key string) (string, bool, error) {
	k, err := normalizeKey(key)
	if err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := data[k]
	return v, ok, nil
}

func (s *JSONFileStore) Set(key, value string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	logger.Debugf("[clientstate] Set: key=%s", k)
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	data[k] = value
	return s.save(data)
}

func (s *JSONFileStore) Delete(key string) error {
	k, err := normalizeKey(key)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := data[k]; !ok {
		return nil
	}
	delete(data, k)
	return s.save(data)
}

func (s *JSONFileStore) Close() error { return nil }
