package session

import (
	"context"
	"sync"
)

// 会话在持久化层中使用的固定 key，三者一起写入、一起删除
const (
	KeyAccessToken  = "session:access_token"
	KeyRefreshToken = "session:refresh_token"
	KeyUser         = "session:user"
)

// Keys 全部会话 key
var Keys = []string{KeyAccessToken, KeyRefreshToken, KeyUser}

// KV 会话的持久化后端。Save 必须原子地写入整批数据，
// Load 对不存在的 key 不返回条目而不是报错。
type KV interface {
	Load(ctx context.Context, keys ...string) (map[string]string, error)
	Save(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// MemoryKV 进程内实现，用于开发与测试
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Load(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryKV) Save(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len 当前条目数
func (m *MemoryKV) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
