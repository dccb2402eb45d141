package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Investa/pkg/response"
)

// SessionGate 由 service.AuthService 实现，必要时会先刷新 access token
type SessionGate interface {
	EnsureSession(ctx context.Context) error
}

// RequireSession 需要已登录会话的路由组使用
func RequireSession(gate SessionGate) app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		if err := gate.EnsureSession(ctx); err != nil {
			response.Error(ctx, c, err)
			c.Abort()
			return
		}
		c.Next(ctx)
	}
}
