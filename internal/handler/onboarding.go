package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Investa/internal/model"
	"Investa/internal/service"
	"Investa/pkg/response"
)

// onboarding 取当前引导流程，会话无法恢复时直接写错误响应
func (h *Handler) onboarding(ctx context.Context, c *app.RequestContext) (*service.Orchestrator, bool) {
	o, err := h.auth.Onboarding(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return nil, false
	}
	return o, true
}

// stepError 失败时把最新的引导状态一起返回，UI 不用再查一次
func stepError(ctx context.Context, c *app.RequestContext, o *service.Orchestrator, err error) {
	response.ErrorWithDetails(ctx, c, err, map[string]interface{}{
		"onboarding": o.State(),
	})
}

// StartOnboarding 根据已有资料与订阅决定起始步骤
// POST /v1/onboarding/start
func (h *Handler) StartOnboarding(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}
	response.Success(ctx, c, o.Start(ctx))
}

// GetOnboarding 当前引导状态
// GET /v1/onboarding
func (h *Handler) GetOnboarding(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}
	response.Success(ctx, c, o.State())
}

// SubmitProfile 提交资料
// POST /v1/onboarding/profile
func (h *Handler) SubmitProfile(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}

	var req model.ProfileData
	if err := c.BindJSON(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	if err := o.SubmitProfile(ctx, req); err != nil {
		stepError(ctx, c, o, err)
		return
	}
	response.Success(ctx, c, o.State())
}

// ActivateTrial 开始免费试用
// POST /v1/onboarding/trial
func (h *Handler) ActivateTrial(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}

	if err := o.ActivateTrial(ctx); err != nil {
		stepError(ctx, c, o, err)
		return
	}
	response.Success(ctx, c, o.State())
}

// SkipOnboarding 跳过剩余步骤
// POST /v1/onboarding/skip
func (h *Handler) SkipOnboarding(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}

	if err := o.Skip(ctx); err != nil {
		stepError(ctx, c, o, err)
		return
	}
	response.Success(ctx, c, o.State())
}

// ClearOnboardingError 用户关闭错误提示
// POST /v1/onboarding/clear-error
func (h *Handler) ClearOnboardingError(ctx context.Context, c *app.RequestContext) {
	o, ok := h.onboarding(ctx, c)
	if !ok {
		return
	}
	o.ClearError()
	response.Success(ctx, c, o.State())
}
