// internal/service/order/application/service.go
package application

import (
	"context"
	"strings"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/pkg/validation"
	"nexus-commerce/internal/service/order/application/saga"
	"nexus-commerce/internal/service/order/domain"
	"nexus-commerce/internal/service/order/domain/port"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	flowCreate = "create"
	flowCancel = "cancel"
	flowUpdate = "update"
)

// OrderApplicationService 只关注业务流程编排，每个用例对应一条责任链。
type OrderApplicationService struct {
	orderRepo domain.OrderRepository
	tracer    trace.Tracer
	inventory port.InventoryGateway
	publisher port.EventPublisher
}

func NewOrderApplicationService(orderRepo domain.OrderRepository, tracer trace.Tracer, inventory port.InventoryGateway, publisher port.EventPublisher) *OrderApplicationService {
	return &OrderApplicationService{
		orderRepo: orderRepo,
		tracer:    tracer,
		inventory: inventory,
		publisher: publisher,
	}
}

// CreateOrder 校验商品后落库，再在提交后预留库存并发布 ORDER_CREATED。
// 预留失败不会让创建失败，只会额外上报库存漂移。
func (s *OrderApplicationService) CreateOrder(ctx context.Context, principal *auth.Principal, req *CreateOrderRequest) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CreateOrder")
	defer span.End()

	if principal == nil {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, "missing principal")
	}
	if err := validation.Struct(req); err != nil {
		span.RecordError(err)
		metrics.OrderSagaTotal.WithLabelValues(flowCreate, string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	lines := make([]saga.LineRequest, 0, len(req.Items))
	for _, it := range req.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, apperr.Validation("productId must not be blank")
		}
		lines = append(lines, saga.LineRequest{ProductID: it.ProductID, Quantity: it.Quantity})
	}

	orderCtx := s.newContext(ctx, principal)
	orderCtx.Lines = lines
	orderCtx.ShippingAddress = req.ShippingAddress
	orderCtx.Notes = req.Notes

	chain := saga.Chain(
		new(saga.ProductCheckHandler),
		saga.NewPersistOrderHandler(s.orderRepo),
		new(saga.ReserveStockHandler),
		saga.NewPublishEventHandler(contract.EventOrderCreated),
	)
	if err := s.run(ctx, span, flowCreate, chain, orderCtx); err != nil {
		return nil, err
	}

	span.SetAttributes(attribute.String("order.id", orderCtx.Order.ID))
	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Str("user_id", principal.UserID).
		Str("total", orderCtx.Order.TotalAmount.String()).Int("drift", len(orderCtx.Drift)).
		Msg("✅ Order created")
	return orderCtx.Order, nil
}

// CancelOrder 由订单所有人或管理员发起，先流转到 CANCELLED，再逐行释放库存。
func (s *OrderApplicationService) CancelOrder(ctx context.Context, principal *auth.Principal, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID))

	order, err := s.loadAuthorized(ctx, principal, orderID)
	if err != nil {
		span.RecordError(err)
		metrics.OrderSagaTotal.WithLabelValues(flowCancel, string(apperr.KindOf(err))).Inc()
		return nil, err
	}
	// 终态订单不触碰库存
	if !order.Status.CanTransitionTo(domain.StatusCancelled) {
		err := errors.Wrapf(domain.ErrInvalidStatusTransition, "%s -> %s", order.Status, domain.StatusCancelled)
		span.RecordError(err)
		metrics.OrderSagaTotal.WithLabelValues(flowCancel, string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	orderCtx := s.newContext(ctx, principal)
	orderCtx.Order = order
	orderCtx.Target = domain.StatusCancelled

	// 先认领 CANCELLED 再释放库存，并发取消只有一个会释放
	chain := saga.Chain(
		saga.NewStatusTransitionHandler(s.orderRepo),
		new(saga.ReleaseStockHandler),
		saga.NewPublishEventHandler(contract.EventOrderCancelled),
	)
	if err := s.run(ctx, span, flowCancel, chain, orderCtx); err != nil {
		return nil, err
	}
	return orderCtx.Order, nil
}

// UpdateStatus 仅管理员可用。取消必须走 CancelOrder，以便释放库存。
func (s *OrderApplicationService) UpdateStatus(ctx context.Context, principal *auth.Principal, orderID, status string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.UpdateOrderStatus")
	defer span.End()
	span.SetAttributes(attribute.String("order.id", orderID), attribute.String("order.status.to", status))

	fail := func(err error) (*domain.Order, error) {
		span.RecordError(err)
		metrics.OrderSagaTotal.WithLabelValues(flowUpdate, string(apperr.KindOf(err))).Inc()
		return nil, err
	}

	if principal == nil || !principal.IsAdmin() {
		return fail(errors.WithMessage(domain.ErrForbidden, "only administrators may update order status"))
	}
	target, err := domain.ParseStatus(status)
	if err != nil {
		return fail(err)
	}
	if target == domain.StatusCancelled {
		return fail(apperr.Validation("use the cancel endpoint to cancel an order"))
	}

	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return fail(err)
	}

	orderCtx := s.newContext(ctx, principal)
	orderCtx.Order = order
	orderCtx.Target = target

	chain := saga.Chain(
		saga.NewStatusTransitionHandler(s.orderRepo),
		saga.NewPublishEventHandler(contract.EventOrderUpdated),
	)
	if err := s.run(ctx, span, flowUpdate, chain, orderCtx); err != nil {
		return nil, err
	}
	return orderCtx.Order, nil
}

// GetOrder 返回订单详情，非所有人且非管理员时返回 Forbidden。
func (s *OrderApplicationService) GetOrder(ctx context.Context, principal *auth.Principal, orderID string) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.GetOrder")
	defer span.End()

	order, err := s.loadAuthorized(ctx, principal, orderID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return order, nil
}

// ListOrders 列出调用方自己的订单；管理员可以通过 userID 查看其他用户。
func (s *OrderApplicationService) ListOrders(ctx context.Context, principal *auth.Principal, userID, status string) ([]*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "app.ListOrders")
	defer span.End()

	if principal == nil {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, "missing principal")
	}
	owner := principal.UserID
	if userID != "" && userID != principal.UserID {
		if !principal.IsAdmin() {
			return nil, errors.WithMessage(domain.ErrForbidden, "cannot list another user's orders")
		}
		owner = userID
	}

	var filter *domain.Status
	if status != "" {
		st, err := domain.ParseStatus(status)
		if err != nil {
			return nil, err
		}
		filter = &st
	}

	orders, err := s.orderRepo.FindByUser(ctx, owner, filter)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("order.count", len(orders)))
	return orders, nil
}

func (s *OrderApplicationService) loadAuthorized(ctx context.Context, principal *auth.Principal, orderID string) (*domain.Order, error) {
	if principal == nil {
		return nil, errors.WithMessage(apperr.ErrUnauthorized, "missing principal")
	}
	order, err := s.orderRepo.FindByIDWithItems(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !order.OwnedBy(principal.UserID) && !principal.IsAdmin() {
		return nil, errors.Wrapf(domain.ErrForbidden, "order %s", orderID)
	}
	return order, nil
}

func (s *OrderApplicationService) newContext(ctx context.Context, principal *auth.Principal) *saga.OrderContext {
	return &saga.OrderContext{
		Ctx:       ctx,
		Principal: principal,
		Tracer:    s.tracer,
		Inventory: s.inventory,
		Publisher: s.publisher,
	}
}

func (s *OrderApplicationService) run(ctx context.Context, span trace.Span, flow string, chain saga.Handler, orderCtx *saga.OrderContext) error {
	if err := chain.Handle(orderCtx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, flow+" saga failed")
		metrics.OrderSagaTotal.WithLabelValues(flow, string(apperr.KindOf(err))).Inc()
		logger.Ctx(ctx).Warn().Err(err).Str("flow", flow).Msg("❌ Order saga failed")
		return err
	}
	outcome := "ok"
	if len(orderCtx.Drift) > 0 {
		outcome = "drift"
	}
	metrics.OrderSagaTotal.WithLabelValues(flow, outcome).Inc()
	return nil
}
