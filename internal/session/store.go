package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"Investa/internal/model"
	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/token"
)

// Codec 持久化前对值做的可逆变换，通常是 utils.Cipher
type Codec interface {
	Encrypt(plain string) (string, error)
	Decrypt(encoded string) (string, error)
}

// Store 会话的唯一持有者。
//
// 内存中的 Session 是权威状态：mu 只保护内存读写，持久化在 writeMu 下按写入顺序执行，
// 读者永远不会等待 KV 的 I/O，也不会看到清理了一半的会话。
type Store struct {
	writeMu sync.Mutex
	mu      sync.RWMutex
	session model.Session

	kv     KV
	codec  Codec
	leeway time.Duration
	now    func() time.Time

	listenersMu sync.Mutex
	listeners   []func(model.Session)
}

// Option 配置 Store
type Option func(*Store)

// WithCodec 持久化时加密
func WithCodec(c Codec) Option {
	return func(s *Store) { s.codec = c }
}

// WithLeeway access token 提前多久视为过期
func WithLeeway(d time.Duration) Option {
	return func(s *Store) { s.leeway = d }
}

// WithClock 测试用
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore kv 为 nil 时退化为纯内存
func NewStore(kv KV, opts ...Option) *Store {
	if kv == nil {
		kv = NewMemoryKV()
	}
	s := &Store{kv: kv, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetTokens 同时写入 access 与 refresh token，缺任意一个都会被拒绝
func (s *Store) SetTokens(ctx context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return errors.TokenPairIncomplete
	}

	s.writeMu.Lock()
	s.mu.Lock()
	s.session.AccessToken = access
	s.session.RefreshToken = refresh
	snap := s.snapshotLocked()
	s.mu.Unlock()

	err := s.save(ctx, map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})
	s.writeMu.Unlock()

	s.notify(snap)
	if err != nil {
		return fmt.Errorf("failed to persist tokens: %w", err)
	}
	return nil
}

// CompareAndSetTokens 只有当前 refresh token 仍是 expected 时才写入新的 token 对，
// 刷新期间会话被清除或被替换时返回 false
func (s *Store) CompareAndSetTokens(ctx context.Context, expected, access, refresh string) (bool, error) {
	if access == "" || refresh == "" {
		return false, errors.TokenPairIncomplete
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if s.session.RefreshToken != expected {
		s.mu.Unlock()
		s.writeMu.Unlock()
		return false, nil
	}
	s.session.AccessToken = access
	s.session.RefreshToken = refresh
	snap := s.snapshotLocked()
	s.mu.Unlock()

	err := s.save(ctx, map[string]string{
		KeyAccessToken:  access,
		KeyRefreshToken: refresh,
	})
	s.writeMu.Unlock()

	s.notify(snap)
	if err != nil {
		return true, fmt.Errorf("failed to persist tokens: %w", err)
	}
	return true, nil
}

// SetUser 替换当前用户记录，nil 表示清除
func (s *Store) SetUser(ctx context.Context, user *model.UserRecord) error {
	s.writeMu.Lock()
	s.mu.Lock()
	s.session.User = user.Clone()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	var err error
	if user == nil {
		err = s.kv.Delete(ctx, KeyUser)
	} else {
		var raw []byte
		raw, err = json.Marshal(user)
		if err == nil {
			err = s.save(ctx, map[string]string{KeyUser: string(raw)})
		}
	}
	s.writeMu.Unlock()

	s.notify(snap)
	if err != nil {
		return fmt.Errorf("failed to persist user: %w", err)
	}
	return nil
}

// ClearAll 清除内存与持久化中的全部会话数据。内存总是会被清空，
// 返回的错误只表示持久化层删除失败。
func (s *Store) ClearAll(ctx context.Context) error {
	s.writeMu.Lock()
	s.mu.Lock()
	s.session = model.Session{}
	s.mu.Unlock()

	err := s.kv.Delete(ctx, Keys...)
	s.writeMu.Unlock()

	s.notify(model.Session{})
	if err != nil {
		logger.Logger.Warn("Failed to clear persisted session", zap.Error(err))
		return fmt.Errorf("failed to clear persisted session: %w", err)
	}
	return nil
}

// VerifyToken 当前 access token 存在、结构合法且未过期
func (s *Store) VerifyToken() bool {
	_, ok := s.UsableAccessToken()
	return ok
}

// UsableAccessToken 在同一次读锁内取 token 并校验
func (s *Store) UsableAccessToken() (string, bool) {
	s.mu.RLock()
	access := s.session.AccessToken
	s.mu.RUnlock()

	if !token.IsUsable(access, s.now(), s.leeway) {
		return "", false
	}
	return access, true
}

// Usable 按 Store 的时钟与 leeway 判断任意 access token，不读写会话
func (s *Store) Usable(access string) bool {
	return token.IsUsable(access, s.now(), s.leeway)
}

// AuthState 在同一次读锁内取认证状态与用户，派生判断基于一致的快照
func (s *Store) AuthState() (authenticated bool, user *model.UserRecord) {
	s.mu.RLock()
	access := s.session.AccessToken
	user = s.session.User.Clone()
	s.mu.RUnlock()

	return token.IsUsable(access, s.now(), s.leeway), user
}

// GetUser 返回用户记录副本
func (s *Store) GetUser() *model.UserRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.User.Clone()
}

// Tokens 返回当前 token 对
func (s *Store) Tokens() (access, refresh string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken, s.session.RefreshToken
}

// Snapshot 返回会话副本
func (s *Store) Snapshot() model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Restore 从持久化层恢复会话。只有一半的 token 对会被丢弃，
// 无法解码的用户记录也会被丢弃。
func (s *Store) Restore(ctx context.Context) error {
	s.writeMu.Lock()

	entries, err := s.kv.Load(ctx, Keys...)
	if err != nil {
		s.writeMu.Unlock()
		return fmt.Errorf("failed to load session: %w", err)
	}

	restored := model.Session{}
	var broken []string

	access, okA := s.decode(entries, KeyAccessToken)
	refresh, okR := s.decode(entries, KeyRefreshToken)
	switch {
	case okA && okR:
		restored.AccessToken, restored.RefreshToken = access, refresh
	case okA || okR:
		logger.Logger.Warn("Discarding incomplete persisted token pair")
		broken = append(broken, KeyAccessToken, KeyRefreshToken)
	}

	if raw, ok := s.decode(entries, KeyUser); ok {
		user := &model.UserRecord{}
		if err := json.Unmarshal([]byte(raw), user); err != nil {
			logger.Logger.Warn("Discarding undecodable persisted user", zap.Error(err))
			broken = append(broken, KeyUser)
		} else {
			restored.User = user
		}
	}

	if len(broken) > 0 {
		if err := s.kv.Delete(ctx, broken...); err != nil {
			logger.Logger.Warn("Failed to delete broken session entries", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.session = restored
	snap := s.snapshotLocked()
	s.mu.Unlock()
	s.writeMu.Unlock()

	s.notify(snap)
	return nil
}

// OnChange 注册变更监听，在每次修改成功后、锁外调用
func (s *Store) OnChange(fn func(model.Session)) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(snap model.Session) {
	s.listenersMu.Lock()
	listeners := make([]func(model.Session), len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() model.Session {
	snap := s.session
	snap.User = s.session.User.Clone()
	return snap
}

func (s *Store) save(ctx context.Context, entries map[string]string) error {
	if s.codec != nil {
		encoded := make(map[string]string, len(entries))
		for k, v := range entries {
			enc, err := s.codec.Encrypt(v)
			if err != nil {
				return fmt.Errorf("failed to encrypt %s: %w", k, err)
			}
			encoded[k] = enc
		}
		entries = encoded
	}
	return s.kv.Save(ctx, entries)
}

// decode 值不存在、为空或解密失败都视为不存在
func (s *Store) decode(entries map[string]string, key string) (string, bool) {
	v, ok := entries[key]
	if !ok || v == "" {
		return "", false
	}
	if s.codec == nil {
		return v, true
	}
	plain, err := s.codec.Decrypt(v)
	if err != nil {
		logger.Logger.Warn("Failed to decrypt session entry", zap.String("key", key), zap.Error(err))
		return "", false
	}
	return plain, plain != ""
}
