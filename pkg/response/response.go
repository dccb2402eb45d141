package response

import (
	"context"
	"net/http"

	"github.com/cloudwego/hertz/pkg/app"

	"Investa/internal/model"
	"Investa/pkg/errors"
)

// StatusFor 按错误类别映射 HTTP 状态码
func StatusFor(err error) int {
	switch errors.KindOf(err) {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindAuth:
		return http.StatusUnauthorized
	case errors.KindForbidden:
		return http.StatusForbidden
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindConflict:
		return http.StatusConflict
	case errors.KindLimited:
		return http.StatusTooManyRequests
	case errors.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Error 返回错误响应，未知错误不暴露内部信息
func Error(ctx context.Context, c *app.RequestContext, err error) {
	ErrorWithDetails(ctx, c, err, nil)
}

func ErrorWithDetails(ctx context.Context, c *app.RequestContext, err error, details map[string]interface{}) {
	def, ok := errors.As(err)
	if !ok {
		def = errors.Internal
	}

	resp := model.NewErrorResponse(def.Code, def.Message, details)
	resp.Meta.RequestID = string(c.GetHeader("X-Request-Id"))
	c.JSON(StatusFor(err), resp)
}

func Success(ctx context.Context, c *app.RequestContext, data interface{}) {
	resp := model.NewSuccessResponse(data)
	resp.Meta.RequestID = string(c.GetHeader("X-Request-Id"))
	c.JSON(http.StatusOK, resp)
}

func BindError(ctx context.Context, c *app.RequestContext, err error) {
	c.JSON(http.StatusBadRequest, model.NewErrorResponse(errors.InvalidRequest.Code, err.Error(), nil))
}

// NoContent 返回 204 No Content
func NoContent(ctx context.Context, c *app.RequestContext) {
	c.Status(http.StatusNoContent)
}
