package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"Investa/internal/model/dto"
	"Investa/pkg/metrics"
	"Investa/pkg/phone"
	"Investa/pkg/response"
)

// ListCountries 支持的国家及号码规则，供 UI 渲染国家选择器
// GET /v1/phone/countries
func (h *Handler) ListCountries(ctx context.Context, c *app.RequestContext) {
	rules := phone.Rules()
	out := make([]dto.CountryRuleView, 0, len(rules))
	for _, r := range rules {
		out = append(out, dto.CountryRuleView{
			CountryCode: r.CountryCode,
			Name:        r.Name,
			CallingCode: r.CallingCode,
			MinLength:   r.MinLength,
			MaxLength:   r.MaxLength,
			FormatHint:  r.FormatHint,
			Example:     r.Example,
		})
	}
	response.Success(ctx, c, out)
}

// NormalizePhone 输入过程中的实时校验，校验失败也返回 200
// POST /v1/phone/normalize
func (h *Handler) NormalizePhone(ctx context.Context, c *app.RequestContext) {
	var req dto.NormalizePhoneRequest
	if err := c.BindAndValidate(&req); err != nil {
		response.BindError(ctx, c, err)
		return
	}

	res := phone.Normalize(req.Phone, req.CountryCode)
	outcome := "valid"
	if !res.Valid {
		outcome = string(res.ErrorKind)
	}
	metrics.GetMetrics().RecordPhoneValidation(ctx, req.CountryCode, outcome)

	response.Success(ctx, c, res)
}
