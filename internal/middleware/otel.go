package middleware

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/config"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"

	"Investa/pkg/logger"
)

// httpMetrics 网关 HTTP 指标；trace 由 hertz-contrib 的 ServerMiddleware 负责
type httpMetrics struct {
	requests metric.Int64Counter
	duration metric.Float64Histogram
	active   metric.Int64UpDownCounter
}

var (
	gatewayMetrics     *httpMetrics
	gatewayMetricsOnce sync.Once
)

// toValidUTF8 统一清洗用户可控字符串，防止非法 UTF-8 触发指标序列化失败
func toValidUTF8(val string) string {
	return strings.ToValidUTF8(val, "")
}

// getHTTPMetrics 首次使用时从全局 MeterProvider 创建，未配置导出器时为 no-op
func getHTTPMetrics() *httpMetrics {
	gatewayMetricsOnce.Do(func() {
		meter := otel.Meter("investa-gateway")
		m := &httpMetrics{}
		var err error

		if m.requests, err = meter.Int64Counter(
			"http.server.requests.total",
			metric.WithDescription("Total number of HTTP requests"),
			metric.WithUnit("{request}"),
		); err != nil {
			logger.Logger.Warn("Failed to create http request counter", zap.Error(err))
		}

		if m.duration, err = meter.Float64Histogram(
			"http.server.duration",
			metric.WithDescription("HTTP request duration"),
			metric.WithUnit("s"),
			metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0),
		); err != nil {
			logger.Logger.Warn("Failed to create http duration histogram", zap.Error(err))
		}

		if m.active, err = meter.Int64UpDownCounter(
			"http.server.active_requests",
			metric.WithDescription("Number of active HTTP requests"),
			metric.WithUnit("{request}"),
		); err != nil {
			logger.Logger.Warn("Failed to create active request counter", zap.Error(err))
		}

		gatewayMetrics = m
	})
	return gatewayMetrics
}

// MetricsMiddleware 记录请求数、耗时与并发数
func MetricsMiddleware() app.HandlerFunc {
	m := getHTTPMetrics()

	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		if m.active != nil {
			m.active.Add(ctx, 1)
			defer m.active.Add(ctx, -1)
		}

		c.Next(ctx)

		// 用路由模板而不是原始路径，避免订阅 id 撑爆基数
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := metric.WithAttributes(
			semconv.HTTPMethod(toValidUTF8(string(c.Method()))),
			semconv.HTTPRoute(toValidUTF8(route)),
			semconv.HTTPStatusCode(c.Response.StatusCode()),
			attribute.Bool("http.error", c.Response.StatusCode() >= 400),
		)

		if m.requests != nil {
			m.requests.Add(ctx, 1, labels)
		}
		if m.duration != nil {
			m.duration.Record(ctx, time.Since(start).Seconds(), labels)
		}
	}
}

// NewServerTracerConfig 创建 Hertz Server 的追踪配置
// 返回用于初始化 Hertz server 的配置选项和追踪中间件
func NewServerTracerConfig(opts ...hertztracing.Option) (config.Option, app.HandlerFunc) {
	tracer, cfg := hertztracing.NewServerTracer(opts...)
	return tracer, hertztracing.ServerMiddleware(cfg)
}
