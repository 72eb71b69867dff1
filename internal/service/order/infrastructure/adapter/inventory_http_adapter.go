package adapter

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/httpclient"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// InventoryGatewayConfig 控制单次调用超时、只读调用的重试以及熔断阈值。
type InventoryGatewayConfig struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

func (c InventoryGatewayConfig) withDefaults() InventoryGatewayConfig {
	if c.Timeout <= 0 {
		c.Timeout = 3 * time.Second
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 100 * time.Millisecond
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 30 * time.Second
	}
	return c
}

type productPayload struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status string          `json:"status"`
}

// InventoryHTTPAdapter 实现了 port.InventoryGateway 接口。
// 所有调用共用一个熔断器，只有"不可达"类错误会计入失败。
type InventoryHTTPAdapter struct {
	client  *httpclient.Client
	cfg     InventoryGatewayConfig
	breaker *gobreaker.CircuitBreaker[any]
}

var _ port.InventoryGateway = (*InventoryHTTPAdapter)(nil)

// NewInventoryHTTPAdapter 创建一个新的库存服务适配器。
func NewInventoryHTTPAdapter(client *httpclient.Client, cfg InventoryGatewayConfig) *InventoryHTTPAdapter {
	cfg = cfg.withDefaults()
	threshold := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        constants.InventoryService,
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// 业务拒绝 (404/409) 说明下游是健康的
		IsSuccessful: func(err error) bool {
			return err == nil || !errors.Is(err, apperr.ErrUnreachable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.L().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("⚡ Inventory circuit breaker state changed")
		},
	})
	return &InventoryHTTPAdapter{client: client, cfg: cfg, breaker: breaker}
}

// FetchProduct 读取商品快照。只读调用在不可达时按退避重试。
func (a *InventoryHTTPAdapter) FetchProduct(ctx context.Context, productID string) (*port.ProductSnapshot, error) {
	var payload productPayload
	req := httpclient.Request{
		Method:  http.MethodGet,
		Service: constants.InventoryService,
		Path:    "/api/products/" + url.PathEscape(productID),
	}

	var err error
	for attempt := 0; attempt <= a.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			wait := a.cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			logger.Ctx(ctx).Warn().Err(err).Str("product_id", productID).Int("attempt", attempt).
				Dur("backoff", wait).Msg("🔁 Retrying inventory lookup")
			select {
			case <-ctx.Done():
				return nil, errors.Wrap(apperr.ErrUnreachable, ctx.Err().Error())
			case <-time.After(wait):
			}
		}
		err = a.call(ctx, req, &payload)
		if err == nil || !errors.Is(err, apperr.ErrUnreachable) {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	return &port.ProductSnapshot{
		ID:     payload.ID,
		Name:   payload.Name,
		Price:  payload.Price,
		Stock:  payload.Stock,
		Status: payload.Status,
	}, nil
}

// ReserveStock 扣减库存。修改类调用不重试。
func (a *InventoryHTTPAdapter) ReserveStock(ctx context.Context, credential, productID string, quantity int) error {
	return a.adjust(ctx, credential, productID, quantity, false)
}

// ReleaseStock 归还库存，是 ReserveStock 的补偿操作。
func (a *InventoryHTTPAdapter) ReleaseStock(ctx context.Context, credential, productID string, quantity int) error {
	return a.adjust(ctx, credential, productID, quantity, true)
}

func (a *InventoryHTTPAdapter) adjust(ctx context.Context, credential, productID string, quantity int, isAddition bool) error {
	if quantity < 1 {
		return apperr.Validation("quantity must be at least 1, got %d", quantity)
	}
	q := url.Values{}
	q.Set("quantity", strconv.Itoa(quantity))
	q.Set("isAddition", strconv.FormatBool(isAddition))
	return a.call(ctx, httpclient.Request{
		Method:      http.MethodPatch,
		Service:     constants.InventoryService,
		Path:        "/api/products/" + url.PathEscape(productID) + "/stock",
		Query:       q,
		BearerToken: credential,
	}, nil)
}

// call 在熔断器内以独立超时发起一次请求，并把结果归类到网关错误约定。
func (a *InventoryHTTPAdapter) call(ctx context.Context, req httpclient.Request, out interface{}) error {
	_, err := a.breaker.Execute(func() (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
		return nil, classify(a.client.Do(callCtx, req, out), req.Path)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Wrapf(apperr.ErrUnreachable, "inventory circuit open: %v", err)
	}
	return err
}

func classify(err error, path string) error {
	if err == nil {
		return nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.StatusCode {
		case http.StatusNotFound:
			return errors.Wrapf(apperr.ErrNotFound, "%s: %s", path, statusErr.Message)
		case http.StatusConflict:
			return errors.Wrapf(apperr.ErrInsufficientStock, "%s: %s", path, statusErr.Message)
		}
		// 认证/校验失败与 5xx 一样，对订单侧而言都是下游不可用
		return errors.Wrap(apperr.ErrUnreachable, statusErr.Error())
	}
	return errors.Wrap(apperr.ErrUnreachable, err.Error())
}
