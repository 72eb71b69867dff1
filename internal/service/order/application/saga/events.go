package saga

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/service/order/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// NewOrderEvent 从订单当前状态构造事件，收件人取自下单时保存的客户快照。
func NewOrderEvent(order *domain.Order, eventType contract.EventType) *contract.OrderEvent {
	items := make([]contract.OrderEventItem, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, contract.OrderEventItem{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.UnitPrice,
		})
	}
	return &contract.OrderEvent{
		EventID:     uuid.NewString(),
		EventType:   eventType,
		OrderID:     order.ID,
		UserID:      order.UserID,
		UserEmail:   order.Customer.Email,
		Username:    order.Customer.Username,
		Status:      string(order.Status),
		TotalAmount: order.TotalAmount,
		CreatedAt:   order.CreatedAt,
		UpdatedAt:   order.UpdatedAt,
		OccurredAt:  time.Now().UTC(),
		Items:       items,
	}
}

func spanFrom(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

func spanItemAttrs(productID string, quantity int) trace.EventOption {
	return trace.WithAttributes(
		attribute.String("product.id", productID),
		attribute.Int("stock.quantity", quantity),
	)
}
