package saga

import (
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/order/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// StatusTransitionHandler 把订单流转到 OrderContext.Target，并以条件更新在库里认领这次流转。
// 同一旧状态上的并发请求只有一个能走到后续步骤。
type StatusTransitionHandler struct {
	NextHandler
	repo domain.OrderRepository
}

func NewStatusTransitionHandler(repo domain.OrderRepository) *StatusTransitionHandler {
	return &StatusTransitionHandler{repo: repo}
}

func (h *StatusTransitionHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.StatusTransition")
	defer span.End()

	order := orderCtx.Order
	from, fromUpdated := order.Status, order.UpdatedAt
	span.SetAttributes(
		attribute.String("order.status.from", string(from)),
		attribute.String("order.status.to", string(orderCtx.Target)),
	)
	if err := order.TransitionTo(orderCtx.Target); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition rejected")
		return err
	}
	if err := h.repo.TransitionStatus(ctx, order.ID, from, orderCtx.Target, order.UpdatedAt); err != nil {
		order.Status, order.UpdatedAt = from, fromUpdated
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition claim failed")
		logger.Ctx(ctx).Warn().Err(err).Str("order_id", order.ID).
			Str("from", string(from)).Str("to", string(orderCtx.Target)).
			Msg("⚠️ Order status changed concurrently")
		return err
	}
	logger.Ctx(ctx).Info().Str("order_id", order.ID).
		Str("from", string(from)).Str("to", string(orderCtx.Target)).
		Msg("🔄 Order status changed")

	return h.executeNext(orderCtx)
}
