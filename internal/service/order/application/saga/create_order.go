package saga

import (
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/order/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// PersistOrderHandler 负责持久化订单。之后的步骤都发生在事务提交之后。
type PersistOrderHandler struct {
	NextHandler
	repo domain.OrderRepository // <-- 注入仓储接口
}

func NewPersistOrderHandler(repo domain.OrderRepository) *PersistOrderHandler {
	return &PersistOrderHandler{repo: repo}
}

func (h *PersistOrderHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.PersistOrder")
	defer span.End()

	if err := h.repo.Save(ctx, orderCtx.Order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save order failed")
		return errors.WithMessage(err, "failed to save order")
	}
	span.SetAttributes(
		attribute.String("order.id", orderCtx.Order.ID),
		attribute.String("order.status", string(orderCtx.Order.Status)),
	)
	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Str("status", string(orderCtx.Order.Status)).
		Msg("【Saga】=> 订单已落库")

	return h.executeNext(orderCtx)
}
