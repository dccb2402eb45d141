package metrics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OTelMetrics OpenTelemetry 指标集合
type OTelMetrics struct {
	// token 刷新
	TokenRefreshTotal    metric.Int64Counter
	TokenRefreshDuration metric.Float64Histogram
	ForcedLogoutTotal    metric.Int64Counter

	// 引导流程
	OnboardingTransitionTotal metric.Int64Counter

	// 手机号校验
	PhoneValidationTotal metric.Int64Counter

	// 后端 API 调用
	APIRequestTotal    metric.Int64Counter
	APIRequestDuration metric.Float64Histogram
}

var (
	metrics  *OTelMetrics
	initOnce sync.Once
	initErr  error
)

// InitMetrics 初始化指标。全局 MeterProvider 设置之前创建的 instrument 会在设置后自动生效，
// 因此可以早于 otel 初始化调用。
func InitMetrics() error {
	initOnce.Do(func() {
		meter := otel.Meter("investa")
		m := &OTelMetrics{}

		if m.TokenRefreshTotal, initErr = meter.Int64Counter(
			"token_refresh_total",
			metric.WithDescription("Token refresh attempts by outcome"),
			metric.WithUnit("{refresh}"),
		); initErr != nil {
			return
		}
		if m.TokenRefreshDuration, initErr = meter.Float64Histogram(
			"token_refresh_duration_seconds",
			metric.WithDescription("Time spent on a token refresh including the retry"),
			metric.WithUnit("s"),
		); initErr != nil {
			return
		}
		if m.ForcedLogoutTotal, initErr = meter.Int64Counter(
			"session_forced_logout_total",
			metric.WithDescription("Sessions cleared because the refresh failed"),
			metric.WithUnit("{logout}"),
		); initErr != nil {
			return
		}
		if m.OnboardingTransitionTotal, initErr = meter.Int64Counter(
			"onboarding_transition_total",
			metric.WithDescription("Onboarding state transitions"),
			metric.WithUnit("{transition}"),
		); initErr != nil {
			return
		}
		if m.PhoneValidationTotal, initErr = meter.Int64Counter(
			"phone_validation_total",
			metric.WithDescription("Phone normalizations by country and result"),
			metric.WithUnit("{validation}"),
		); initErr != nil {
			return
		}
		if m.APIRequestTotal, initErr = meter.Int64Counter(
			"api_client_request_total",
			metric.WithDescription("Backend API requests by endpoint and status"),
			metric.WithUnit("{request}"),
		); initErr != nil {
			return
		}
		if m.APIRequestDuration, initErr = meter.Float64Histogram(
			"api_client_request_duration_seconds",
			metric.WithDescription("Backend API request duration"),
			metric.WithUnit("s"),
		); initErr != nil {
			return
		}

		metrics = m
	})
	return initErr
}

// GetMetrics 未初始化时返回 nil，所有记录方法对 nil 安全
func GetMetrics() *OTelMetrics {
	return metrics
}

// RecordTokenRefresh outcome: success, retried_success, logged_out
func (m *OTelMetrics) RecordTokenRefresh(ctx context.Context, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.TokenRefreshTotal.Add(ctx, 1, attrs)
	m.TokenRefreshDuration.Record(ctx, elapsed.Seconds(), attrs)
}

func (m *OTelMetrics) RecordForcedLogout(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.ForcedLogoutTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *OTelMetrics) RecordOnboardingTransition(ctx context.Context, from, to, trigger string) {
	if m == nil {
		return
	}
	m.OnboardingTransitionTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("from", from),
		attribute.String("to", to),
		attribute.String("trigger", trigger),
	))
}

func (m *OTelMetrics) RecordPhoneValidation(ctx context.Context, country, result string) {
	if m == nil {
		return
	}
	m.PhoneValidationTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("country", country),
		attribute.String("result", result),
	))
}

func (m *OTelMetrics) RecordAPIRequest(ctx context.Context, endpoint string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.Int("status", status),
	)
	m.APIRequestTotal.Add(ctx, 1, attrs)
	m.APIRequestDuration.Record(ctx, elapsed.Seconds(), attrs)
}
