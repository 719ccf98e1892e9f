// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"
)

// Logger 是全局的 zerolog 实例，所有服务共用同一份配置。
var Logger zerolog.Logger

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	Logger = zerolog.New(os.Stdout).With().Timestamp().Caller().Logger()
}

// Init 设置服务名等全局字段，应在进程启动时调用一次。
func Init(serviceName string) {
	Logger = Logger.With().Str("service", serviceName).Logger()
}

// Ctx 返回一个携带当前链路 trace_id/span_id 的 Logger。
// 日志与 Jaeger 中的 Trace 通过这两个字段关联。
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
