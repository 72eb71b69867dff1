// internal/pkg/httpclient/client.go

package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Resolver 把服务名解析为基础地址，例如 "http://10.0.0.3:8082"。
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) (string, error)
}

// StaticResolver 使用配置中的固定地址。
type StaticResolver map[string]string

func (r StaticResolver) Resolve(_ context.Context, serviceName string) (string, error) {
	base, ok := r[serviceName]
	if !ok || base == "" {
		return "", errors.Errorf("no static address configured for service %q", serviceName)
	}
	return strings.TrimRight(base, "/"), nil
}

// FallbackResolver 依次尝试多个 Resolver。
type FallbackResolver []Resolver

func (r FallbackResolver) Resolve(ctx context.Context, serviceName string) (string, error) {
	var lastErr error
	for _, res := range r {
		if res == nil {
			continue
		}
		base, err := res.Resolve(ctx, serviceName)
		if err == nil {
			return base, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.Errorf("no resolver available for service %q", serviceName)
	}
	return "", lastErr
}

// StatusError 表示下游返回了非 2xx 状态码。
type StatusError struct {
	Service    string
	StatusCode int
	Kind       string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("service %s returned %d (%s): %s", e.Service, e.StatusCode, e.Kind, e.Message)
	}
	return fmt.Sprintf("service %s returned %d", e.Service, e.StatusCode)
}

// Request 描述一次对内部服务的调用。
type Request struct {
	Method      string
	Service     string
	Path        string
	Query       url.Values
	BearerToken string
}

// Client 是一个可追踪的 HTTP 客户端，超时完全由调用方的 context 控制。
type Client struct {
	Tracer     trace.Tracer
	HTTPClient *http.Client
	resolver   Resolver
}

func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	httpClient := &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
		},
	}
	return &Client{
		Tracer:     tracer,
		HTTPClient: httpClient,
		resolver:   resolver,
	}
}

// Do 发起请求并把 JSON 响应解码到 out（out 可为 nil）。
func (c *Client) Do(ctx context.Context, r Request, out interface{}) error {
	base, err := c.resolver.Resolve(ctx, r.Service)
	if err != nil {
		return errors.Wrapf(err, "resolve %s", r.Service)
	}

	target, err := url.Parse(base + r.Path)
	if err != nil {
		return errors.Wrap(err, "build request url")
	}
	if len(r.Query) > 0 {
		target.RawQuery = r.Query.Encode()
	}

	ctx, span := c.Tracer.Start(ctx, fmt.Sprintf("call-%s", r.Service), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", target.String()),
		attribute.String("http.method", r.Method),
	)

	req, err := http.NewRequestWithContext(ctx, r.Method, target.String(), nil)
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if r.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+r.BearerToken)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.Wrapf(err, "%s %s", r.Method, r.Path)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{Service: r.Service, StatusCode: resp.StatusCode}
		var payload struct {
			Error   string `json:"error"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body, &payload) == nil {
			statusErr.Kind = payload.Error
			statusErr.Message = payload.Message
		}
		span.RecordError(statusErr)
		span.SetStatus(codes.Error, statusErr.Error())
		return statusErr
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			span.RecordError(err)
			return errors.Wrap(err, "decode response body")
		}
	}
	return nil
}
