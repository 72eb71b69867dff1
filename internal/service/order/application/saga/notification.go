package saga

import (
	"context"

	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
)

// PublishEventHandler 是 Saga 流程的最后一步，发布订单生命周期事件。
// 有库存漂移时额外发布一条 ORDER_STOCK_DRIFT。
// 发布失败只记录，不影响已提交的订单。
type PublishEventHandler struct {
	NextHandler
	eventType contract.EventType
}

func NewPublishEventHandler(eventType contract.EventType) *PublishEventHandler {
	return &PublishEventHandler{eventType: eventType}
}

func (h *PublishEventHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(context.WithoutCancel(orderCtx.Ctx), "saga.PublishEvent")
	defer span.End()

	span.SetAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.event_type", string(h.eventType)),
	)

	h.publish(ctx, orderCtx, NewOrderEvent(orderCtx.Order, h.eventType))
	if len(orderCtx.Drift) > 0 {
		drift := NewOrderEvent(orderCtx.Order, contract.EventOrderStockDrift)
		drift.DriftItems = append([]contract.DriftItem(nil), orderCtx.Drift...)
		h.publish(ctx, orderCtx, drift)
	}

	span.AddEvent("Lifecycle event published (or attempted).")
	return h.executeNext(orderCtx)
}

func (h *PublishEventHandler) publish(ctx context.Context, orderCtx *OrderContext, event *contract.OrderEvent) {
	if err := orderCtx.Publisher.Publish(ctx, event); err != nil {
		spanFrom(ctx).RecordError(err)
		logger.Ctx(ctx).Error().Err(err).
			Str("order_id", event.OrderID).
			Str("event_type", string(event.EventType)).
			Msg("⚠️ Failed to publish order event")
		return
	}
	logger.Ctx(ctx).Info().Str("order_id", event.OrderID).Str("event_type", string(event.EventType)).
		Str("event_id", event.EventID).Msg("📤 Order event published")
}
