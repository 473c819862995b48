// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的 zerolog 实例，由 Init 初始化。
// 各组件优先使用 Ctx(ctx) 以便自动携带 trace 信息。
var Logger zerolog.Logger

func init() {
	// 未显式 Init 时也要有可用的兜底 Logger
	Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// Init 初始化全局 Logger。
// level 从 LOG_LEVEL 环境变量读取，默认 info。
func Init(serviceName string) {
	level := zerolog.InfoLevel
	if lv, err := zerolog.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL"))); err == nil && lv != zerolog.NoLevel {
		level = lv
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).
		Level(level).
		With().
		Timestamp().
		Str("service", serviceName).
		Logger()
}

// Ctx 返回一个绑定了当前链路信息的 Logger。
// 如果 ctx 中存在有效的 Span，会自动附加 trace_id/span_id 字段。
func Ctx(ctx context.Context) *zerolog.Logger {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return &Logger
	}
	l := Logger.With().
		Str("trace_id", spanCtx.TraceID().String()).
		Str("span_id", spanCtx.SpanID().String()).
		Logger()
	return &l
}
