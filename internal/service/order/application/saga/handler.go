package saga

import (
	"context"
	"sync"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/service/order/domain"
	"nexus-commerce/internal/service/order/domain/port"

	"go.opentelemetry.io/otel/trace"
)

// LineRequest 是下单请求中的一行，尚未经过库存校验。
type LineRequest struct {
	ProductID string
	Quantity  int
}

// Compensation 是针对单个订单行的补偿动作。
type Compensation struct {
	ProductID string
	Quantity  int
	Run       func(ctx context.Context) error
}

// OrderContext 在 Saga 流程中传递上下文数据。
type OrderContext struct {
	Ctx       context.Context
	Order     *domain.Order
	Principal *auth.Principal
	Tracer    trace.Tracer

	// 依赖出站端口
	Inventory port.InventoryGateway
	Publisher port.EventPublisher

	// 创建流程的输入
	Lines           []LineRequest
	ShippingAddress string
	Notes           string

	// 状态流转的目标状态
	Target domain.Status

	// Drift 记录订单已提交但库存未能同步调整的行
	Drift []contract.DriftItem

	compensations []Compensation
	compLock      sync.Mutex
}

// Credential 返回调用方原始令牌，修改库存时显式转发。
func (c *OrderContext) Credential() string {
	if c.Principal == nil {
		return ""
	}
	return c.Principal.Token
}

// AddCompensation 以 LIFO 顺序登记补偿动作。
func (c *OrderContext) AddCompensation(comp Compensation) {
	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.compensations = append([]Compensation{comp}, c.compensations...)
}

// TriggerCompensation 执行全部补偿，单个失败不影响其余补偿，失败行记入 Drift。
func (c *OrderContext) TriggerCompensation(ctx context.Context, direction string) int {
	c.compLock.Lock()
	comps := c.compensations
	c.compensations = nil
	c.compLock.Unlock()

	logger.Ctx(ctx).Info().Str("order_id", c.Order.ID).Int("count", len(comps)).
		Msg("↩️ Executing compensation functions")

	failed := 0
	for _, comp := range comps {
		if err := comp.Run(ctx); err != nil {
			failed++
			c.RecordDrift(ctx, comp.ProductID, comp.Quantity, direction, err)
		}
	}
	return failed
}

// RecordDrift 记录一行库存漂移：写日志、计数，并留待发布 ORDER_STOCK_DRIFT。
func (c *OrderContext) RecordDrift(ctx context.Context, productID string, quantity int, direction string, err error) {
	kind := apperr.KindOf(err)
	metrics.StockDriftTotal.WithLabelValues(direction, string(kind)).Inc()

	orderID := ""
	if c.Order != nil {
		orderID = c.Order.ID
	}
	logger.Ctx(ctx).Error().Err(err).
		Str("order_id", orderID).
		Str("product_id", productID).
		Int("quantity", quantity).
		Str("direction", direction).
		Str("kind", string(kind)).
		Msg("🚨 Stock drift: order committed but inventory not adjusted")

	c.compLock.Lock()
	defer c.compLock.Unlock()
	c.Drift = append(c.Drift, contract.DriftItem{
		ProductID: productID,
		Quantity:  quantity,
		Direction: direction,
		Reason:    string(kind),
		Message:   err.Error(),
	})
}

type Handler interface {
	SetNext(handler Handler) Handler
	Handle(orderCtx *OrderContext) error
}

type NextHandler struct {
	next Handler
}

func (h *NextHandler) SetNext(handler Handler) Handler {
	h.next = handler
	return handler
}

func (h *NextHandler) executeNext(orderCtx *OrderContext) error {
	if h.next != nil {
		return h.next.Handle(orderCtx)
	}
	return nil
}

// Chain 依次连接处理器并返回链头。
func Chain(first Handler, rest ...Handler) Handler {
	cur := first
	for _, h := range rest {
		cur = cur.SetNext(h)
	}
	return first
}
