// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"nexus-mall/internal/pkg/tracing"
)

// Init 配置全局 zerolog：unix 时间戳 + service 字段。
func Init(serviceName, level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	zlog.Logger = zerolog.New(os.Stdout).With().Timestamp().Str("service", serviceName).Logger()
}

// Ctx 返回带有 trace_id / span_id 的 logger。
// 如果 context 中已经注入了 logger（中间件），优先使用它。
func Ctx(ctx context.Context) *zerolog.Logger {
	base := zerolog.Ctx(ctx)
	if base.GetLevel() == zerolog.Disabled {
		base = &zlog.Logger
	}

	traceID := tracing.GetTraceIDFromContext(ctx)
	if traceID == "" {
		return base
	}
	l := base.With().
		Str("trace_id", traceID).
		Str("span_id", tracing.GetSpanIDFromContext(ctx)).
		Logger()
	return &l
}
