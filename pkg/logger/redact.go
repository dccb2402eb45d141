package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// sensitiveKeys 按字段名匹配，忽略大小写
var sensitiveKeys = map[string]bool{
	"access_token":      true,
	"refresh_token":     true,
	"token":             true,
	"authorization":     true,
	"password":          true,
	"verification_code": true,
	"phone":             true,
}

type redactCore struct {
	zapcore.Core
}

// Redact 包装 core，敏感字段的值替换为 [REDACTED]
func Redact(core zapcore.Core) zapcore.Core {
	return &redactCore{Core: core}
}

func (c *redactCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactCore{Core: c.Core.With(scrub(fields))}
}

func (c *redactCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

func (c *redactCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(ent, scrub(fields))
}

func scrub(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		if !sensitiveKeys[strings.ToLower(f.Key)] {
			continue
		}
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i] = zap.String(f.Key, redacted)
	}
	if out == nil {
		return fields
	}
	return out
}
