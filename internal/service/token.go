package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"Investa/internal/model/dto"
	"Investa/internal/session"
	"Investa/pkg/errors"
	"Investa/pkg/logger"
	"Investa/pkg/metrics"
)

// RefreshAPI 刷新 token 的后端接口
type RefreshAPI interface {
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
}

// TokenManager 保证任意时刻最多只有一个刷新请求在进行，
// 同时到达的调用方共享同一次刷新的结果。
type TokenManager struct {
	store      *session.Store
	api        RefreshAPI
	retryDelay time.Duration
	group      singleflight.Group
	log        *zap.Logger
}

func NewTokenManager(store *session.Store, api RefreshAPI, retryDelay time.Duration) *TokenManager {
	return &TokenManager{
		store:      store,
		api:        api,
		retryDelay: retryDelay,
		log:        logger.Named("token"),
	}
}

// EnsureValidAccessToken 返回可用的 access token，必要时刷新。
// 刷新失败时会话已被清除，返回 errors.LoggedOut。
func (m *TokenManager) EnsureValidAccessToken(ctx context.Context) (string, error) {
	if access, ok := m.store.UsableAccessToken(); ok {
		return access, nil
	}
	return m.shared(ctx, "")
}

// RefreshRejected 服务端拒绝了 rejected 时调用：即使它在本地看来未过期也强制刷新。
// 其他调用方已经换过 token 时直接返回新的。
func (m *TokenManager) RefreshRejected(ctx context.Context, rejected string) (string, error) {
	if access, ok := m.store.UsableAccessToken(); ok && access != rejected {
		return access, nil
	}
	return m.shared(ctx, rejected)
}

// EndSession 刷新后的 token 仍被拒绝，会话无法恢复
func (m *TokenManager) EndSession(ctx context.Context, cause error) error {
	return m.forceLogout(ctx, "rejected_after_refresh", cause)
}

func (m *TokenManager) shared(ctx context.Context, rejected string) (string, error) {
	// 刷新不跟随单个调用方的取消，其他等待者仍需要结果
	ch := m.group.DoChan("refresh", func() (interface{}, error) {
		return m.refresh(context.WithoutCancel(ctx), rejected)
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

func (m *TokenManager) refresh(ctx context.Context, rejected string) (string, error) {
	// 排在上一次刷新之后进入的调用方直接使用新 token
	if access, ok := m.store.UsableAccessToken(); ok && access != rejected {
		return access, nil
	}

	_, refreshToken := m.store.Tokens()
	if refreshToken == "" {
		return "", m.forceLogout(ctx, "missing_refresh_token", nil)
	}

	start := time.Now()
	outcome := "success"

	resp, err := m.api.RefreshToken(ctx, refreshToken)
	if errors.IsKind(err, errors.KindNetwork) {
		m.log.Warn("Token refresh failed with network error, retrying once",
			zap.Duration("delay", m.retryDelay),
			zap.Error(err),
		)
		wait(ctx, m.retryDelay)
		resp, err = m.api.RefreshToken(ctx, refreshToken)
		if err == nil {
			outcome = "retried_success"
		}
	}
	if err == nil && !m.store.Usable(resp.AccessToken) {
		err = errors.RefreshTokenInvalid.WithMessage("Refreshed access token is already expired or malformed")
	}

	if err != nil {
		metrics.GetMetrics().RecordTokenRefresh(ctx, "logged_out", time.Since(start))
		return "", m.forceLogout(ctx, string(errors.KindOf(err)), err)
	}

	ok, err := m.store.CompareAndSetTokens(ctx, refreshToken, resp.AccessToken, resp.RefreshToken)
	switch {
	case !ok && err == nil:
		// 刷新期间用户已登出或会话被替换，丢弃这次结果
		m.log.Info("Discarding refreshed tokens for a session that changed meanwhile")
		return "", errors.LoggedOut
	case !ok:
		metrics.GetMetrics().RecordTokenRefresh(ctx, "logged_out", time.Since(start))
		return "", m.forceLogout(ctx, "incomplete_pair", err)
	case err != nil:
		// 内存已更新，只是持久化失败
		m.log.Warn("Refreshed tokens not persisted", zap.Error(err))
	}

	if resp.User != nil {
		if err := m.store.SetUser(ctx, resp.User); err != nil {
			m.log.Warn("Refreshed user not persisted", zap.Error(err))
		}
	}

	metrics.GetMetrics().RecordTokenRefresh(ctx, outcome, time.Since(start))
	m.log.Debug("Token refreshed", zap.String("outcome", outcome))
	return resp.AccessToken, nil
}

func (m *TokenManager) forceLogout(ctx context.Context, reason string, cause error) error {
	m.log.Info("Refresh failed, clearing session", zap.String("reason", reason), zap.Error(cause))
	metrics.GetMetrics().RecordForcedLogout(ctx, reason)

	if err := m.store.ClearAll(ctx); err != nil {
		m.log.Warn("Failed to clear persisted session", zap.Error(err))
	}
	return errors.LoggedOut.Wrap(cause)
}

func wait(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
