package port

import (
	"context"

	"nexus-commerce/internal/pkg/contract"
)

// EventPublisher 把订单生命周期事件交给消息中间件，按订单 ID 分区保证同一订单有序。
type EventPublisher interface {
	Publish(ctx context.Context, event *contract.OrderEvent) error
}
