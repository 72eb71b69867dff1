// Package logger 基于 zerolog 提供全局日志，并把链路信息带进每条日志。
package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

type requestIDKey struct{}

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// Init 根据服务名、日志级别和输出格式初始化全局 logger。
func Init(serviceName, level string, pretty bool) {
	var out io.Writer = os.Stdout
	if pretty {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	base = zerolog.New(out).With().Timestamp().Str("service", serviceName).Logger()
	log.Logger = base
}

// L 返回不带上下文信息的全局 logger。
func L() *zerolog.Logger {
	return &base
}

// Ctx 返回携带 trace_id / span_id / request_id 的 logger。
func Ctx(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return &base
	}
	c := base.With()
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		c = c.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok && rid != "" {
		c = c.Str("request_id", rid)
	}
	l := c.Logger()
	return &l
}

// WithRequestID 把请求 ID 放进 context。
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}
