package domain

import (
	"context"
	"time"
)

// OrderRepository 负责订单持久化。
// Save 在一个事务内写入订单头和全部订单行；FindByIDWithItems 保证订单行在事务内预加载。
// TransitionStatus 仅当订单当前仍处于 from 时才改为 to，否则返回 ErrInvalidStatusTransition。
type OrderRepository interface {
	Save(ctx context.Context, order *Order) error
	FindByID(ctx context.Context, id string) (*Order, error)
	FindByIDWithItems(ctx context.Context, id string) (*Order, error)
	FindByUser(ctx context.Context, userID string, status *Status) ([]*Order, error)
	TransitionStatus(ctx context.Context, id string, from, to Status, at time.Time) error
}
