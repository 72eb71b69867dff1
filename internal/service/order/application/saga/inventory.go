package saga

import (
	"context"

	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// ReserveStockHandler 在订单提交后逐行预留库存。
// 预留失败不回滚订单，只记录漂移，由 ORDER_STOCK_DRIFT 事件上报。
type ReserveStockHandler struct {
	NextHandler
}

func (h *ReserveStockHandler) Handle(orderCtx *OrderContext) error {
	// 预留一旦开始就不随请求取消而中断，每次调用由网关自己的超时兜底
	ctx, span := orderCtx.Tracer.Start(context.WithoutCancel(orderCtx.Ctx), "saga.ReserveStock")
	defer span.End()

	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Msg("【Saga】=> 步骤 2: 预留库存...")

	reserved := 0
	for _, item := range orderCtx.Order.Items {
		err := orderCtx.Inventory.ReserveStock(ctx, orderCtx.Credential(), item.ProductID, item.Quantity)
		if err != nil {
			span.RecordError(err, spanItemAttrs(item.ProductID, item.Quantity))
			orderCtx.RecordDrift(ctx, item.ProductID, item.Quantity, contract.DriftReserve, err)
			continue
		}
		reserved++
	}

	span.SetAttributes(attribute.Int("stock.reserved", reserved), attribute.Int("stock.drift", len(orderCtx.Drift)))
	if len(orderCtx.Drift) > 0 {
		span.SetStatus(codes.Error, "some reservations failed")
	} else {
		span.AddEvent("All items reserved successfully")
	}

	return h.executeNext(orderCtx)
}

// ReleaseStockHandler 为订单的每一行登记一个释放库存的补偿，然后全部执行。
// 每行独立尝试，失败行记入漂移，流程继续。
type ReleaseStockHandler struct {
	NextHandler
}

func (h *ReleaseStockHandler) Handle(orderCtx *OrderContext) error {
	ctx, span := orderCtx.Tracer.Start(context.WithoutCancel(orderCtx.Ctx), "saga.ReleaseStock")
	defer span.End()

	logger.Ctx(ctx).Info().Str("order_id", orderCtx.Order.ID).Msg("【Saga】=> 释放订单占用的库存...")

	credential := orderCtx.Credential()
	for _, item := range orderCtx.Order.Items {
		orderCtx.AddCompensation(Compensation{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Run: func(compCtx context.Context) error {
				compCtx, compSpan := orderCtx.Tracer.Start(compCtx, "saga.compensation.ReleaseStock")
				defer compSpan.End()
				compSpan.SetAttributes(attribute.String("product.id", item.ProductID), attribute.Int("stock.quantity", item.Quantity))

				if err := orderCtx.Inventory.ReleaseStock(compCtx, credential, item.ProductID, item.Quantity); err != nil {
					compSpan.RecordError(err)
					compSpan.SetStatus(codes.Error, "release failed")
					return err
				}
				return nil
			},
		})
	}

	if failed := orderCtx.TriggerCompensation(ctx, contract.DriftRelease); failed > 0 {
		span.SetStatus(codes.Error, "some releases failed")
		span.SetAttributes(attribute.Int("stock.drift", failed))
	}

	return h.executeNext(orderCtx)
}
