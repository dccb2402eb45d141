package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"go.uber.org/zap"

	"Investa/internal/model/dto"
	"Investa/pkg/logger"
	"Investa/pkg/response"
)

// GetSession 当前会话视图，access token 过期时先尝试刷新
// GET /v1/session
func (h *Handler) GetSession(ctx context.Context, c *app.RequestContext) {
	if _, refresh := h.store.Tokens(); refresh != "" {
		// 刷新失败时会话已被清除；网络错误时保留会话，视图照实返回
		if err := h.auth.EnsureSession(ctx); err != nil {
			logger.Logger.Debug("Session not restored", zap.Error(err))
		}
	}
	response.Success(ctx, c, h.sessionView())
}

// Login 邮箱密码登录
// POST /v1/auth/login
func (h *Handler) Login(ctx context.Context, c *app.RequestContext) {
	var req dto.LoginRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	if _, err := h.auth.Login(ctx, req); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, h.sessionView())
}

// Register 注册并开始新的引导流程
// POST /v1/auth/register
func (h *Handler) Register(ctx context.Context, c *app.RequestContext) {
	var req dto.RegisterRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	o, err := h.auth.Register(ctx, req)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	resp := dto.RegisterResponse{Session: h.sessionView()}
	if o != nil {
		resp.Onboarding = o.State()
	}
	response.Success(ctx, c, resp)
}

// VerifyPhone 校验短信验证码
// POST /v1/auth/phone/verify
func (h *Handler) VerifyPhone(ctx context.Context, c *app.RequestContext) {
	var req dto.VerifyPhoneRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	if _, err := h.auth.VerifyPhone(ctx, req.Code); err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, h.sessionView())
}

// Logout 总是成功，本地会话一定被清除
// POST /v1/auth/logout
func (h *Handler) Logout(ctx context.Context, c *app.RequestContext) {
	h.auth.Logout(ctx)
	response.NoContent(ctx, c)
}
