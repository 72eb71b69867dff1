package saga

import (
	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/order/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ProductCheckHandler 读取每个商品的快照，校验可售后构建订单实体。此时尚未落库。
type ProductCheckHandler struct {
	NextHandler
}

func (h *ProductCheckHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(orderCtx.Ctx, "saga.ProductCheck")
	defer span.End()
	span.SetAttributes(attribute.Int("order.lines", len(orderCtx.Lines)))

	logger.Ctx(ctx).Info().Int("lines", len(orderCtx.Lines)).Msg("【Saga】=> 步骤 1: 校验商品与库存快照...")

	items := make([]domain.Item, 0, len(orderCtx.Lines))
	for _, line := range orderCtx.Lines {
		snapshot, err := orderCtx.Inventory.FetchProduct(ctx, line.ProductID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "product lookup failed")
			if errors.Is(err, apperr.ErrNotFound) {
				return errors.Wrapf(domain.ErrProductNotAvailable, "product %s does not exist", line.ProductID)
			}
			return err
		}
		if !snapshot.Available(line.Quantity) {
			span.SetStatus(codes.Error, "insufficient stock")
			return errors.Wrapf(domain.ErrProductNotAvailable,
				"product %s: requested %d, available %d", line.ProductID, line.Quantity, snapshot.Stock)
		}
		items = append(items, domain.Item{
			ProductID:   snapshot.ID,
			ProductName: snapshot.Name,
			UnitPrice:   snapshot.Price,
			Quantity:    line.Quantity,
		})
	}

	p := orderCtx.Principal
	order, err := domain.NewOrder(p.UserID, domain.Customer{Email: p.Email, Username: p.Username},
		items, orderCtx.ShippingAddress, orderCtx.Notes)
	if err != nil {
		span.RecordError(err)
		return err
	}
	orderCtx.Order = order
	span.SetAttributes(attribute.String("order.total", order.TotalAmount.String()))
	span.AddEvent("All products available")

	return h.executeNext(orderCtx)
}
