package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// TracingHook Redis 追踪 Hook。
// 会话 key 下存的是 token，span 上只记录命令名和脱敏后的 key，从不记录参数值。
type TracingHook struct {
	tracer   trace.Tracer
	attrs    []attribute.KeyValue
	commands metric.Int64Counter
	duration metric.Float64Histogram
}

// NewTracingHook 创建追踪 Hook，指标创建失败时只做追踪
func NewTracingHook(serviceName string, db int) *TracingHook {
	meter := otel.Meter(serviceName + ".redis")

	th := &TracingHook{
		tracer: otel.Tracer(serviceName + ".redis"),
		attrs: []attribute.KeyValue{
			attribute.String("db.system", "redis"),
			attribute.Int("db.redis.database_index", db),
		},
	}

	th.commands, _ = meter.Int64Counter(
		"redis.commands.total",
		metric.WithDescription("Total number of Redis commands"),
		metric.WithUnit("{command}"),
	)
	th.duration, _ = meter.Float64Histogram(
		"redis.command.duration",
		metric.WithDescription("Redis command duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0),
	)

	return th
}

// DialHook 实现 redis.Hook 接口
func (th *TracingHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

// ProcessHook 实现 redis.Hook 接口
func (th *TracingHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis."+cmd.Name(),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		span.SetAttributes(
			attribute.String("db.operation", cmd.Name()),
			attribute.StringSlice("redis.keys", commandKeys(cmd)),
		)

		start := time.Now()
		err := next(ctx, cmd)
		th.record(ctx, span, cmd.Name(), err, time.Since(start))
		return err
	}
}

// ProcessPipelineHook 实现 redis.Hook 接口，MULTI/EXEC 也走这里
func (th *TracingHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		ctx, span := th.tracer.Start(ctx, "redis.pipeline",
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(th.attrs...),
		)
		defer span.End()

		names := make([]string, 0, len(cmds))
		for _, cmd := range cmds {
			names = append(names, cmd.Name())
		}
		span.SetAttributes(
			attribute.Int("redis.pipeline.count", len(cmds)),
			attribute.String("redis.pipeline.commands", strings.Join(names, ";")),
		)

		start := time.Now()
		err := next(ctx, cmds)
		th.record(ctx, span, "pipeline", err, time.Since(start))
		return err
	}
}

func (th *TracingHook) record(ctx context.Context, span trace.Span, op string, err error, elapsed time.Duration) {
	status := "success"
	switch {
	case errors.Is(err, redis.Nil):
		status = "not_found"
	case err != nil:
		status = "error"
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	}

	labels := metric.WithAttributes(
		attribute.String("redis.command", op),
		attribute.String("redis.status", status),
	)
	if th.commands != nil {
		th.commands.Add(ctx, 1, labels)
	}
	if th.duration != nil {
		th.duration.Record(ctx, elapsed.Seconds(), labels)
	}
}

// commandKeys 只取第一个参数作为 key，并且做脱敏
func commandKeys(cmd redis.Cmder) []string {
	args := cmd.Args()
	if len(args) < 2 {
		return nil
	}
	key, ok := args[1].(string)
	if !ok {
		return nil
	}
	return []string{SanitizeKey(key)}
}

// SanitizeKey 含敏感片段的 key 只保留前缀
func SanitizeKey(key string) string {
	lower := strings.ToLower(key)
	for _, s := range []string{"token", "password", "secret", "session"} {
		if strings.Contains(lower, s) {
			if i := strings.Index(key, ":"); i > 0 {
				return key[:i] + ":***"
			}
			return "***"
		}
	}
	return key
}
