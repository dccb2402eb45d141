package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Investa/pkg/response"
)

// GetMySubscription 当前用户订阅
// GET /v1/subscriptions/me
func (h *Handler) GetMySubscription(ctx context.Context, c *app.RequestContext) {
	sub, err := h.auth.MySubscription(ctx)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, sub)
}

// CancelSubscription 取消订阅
// POST /v1/subscriptions/:id/cancel
func (h *Handler) CancelSubscription(ctx context.Context, c *app.RequestContext) {
	sub, err := h.auth.CancelSubscription(ctx, c.Param("id"))
	if err != nil {
		response.Error(ctx, c, err)
		return
	}
	response.Success(ctx, c, sub)
}
