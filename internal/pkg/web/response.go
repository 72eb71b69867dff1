// Package web 提供各服务 HTTP 层共用的响应写法与中间件。
package web

import (
	"context"
	"encoding/json"
	"net/http"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/logger"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// ErrorBody 是所有服务统一的错误响应体。
type ErrorBody struct {
	Error   apperr.Kind `json:"error"`
	Message string      `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// WriteError 根据错误类别写出状态码与错误体，5xx 会记录日志。
func WriteError(ctx context.Context, w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Ctx(ctx).Error().Err(err).Int("status", status).Msg("request failed")
	}
	WriteJSON(w, status, ErrorBody{Error: apperr.KindOf(err), Message: err.Error()})
}

// Traced 从请求头恢复上游链路，并为每个请求分配 request id。
func Traced(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		rid := r.Header.Get("X-Request-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", rid)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(ctx, rid)))
	})
}

// Healthz 是存活探针。
func Healthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
