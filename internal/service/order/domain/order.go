// internal/service/order/domain/order.go
package domain

import (
	"strings"
	"time"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound           = errors.WithMessage(apperr.ErrNotFound, "order not found")
	ErrEmptyOrder              = errors.WithMessage(apperr.ErrValidation, "order must contain at least one item")
	ErrInvalidStatusTransition = errors.WithMessage(apperr.ErrInvalidStatusTransition, "invalid status transition")
	ErrProductNotAvailable     = errors.WithMessage(apperr.ErrProductNotAvailable, "product not available")
	ErrForbidden               = errors.WithMessage(apperr.ErrForbidden, "not allowed to access this order")
)

// Item 是订单行。商品名与单价在下单时快照，之后目录价格变化不影响历史订单。
type Item struct {
	ProductID   string
	ProductName string
	UnitPrice   decimal.Decimal
	Quantity    int
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer 是下单人的快照，后续事件用它通知订单所有人。
type Customer struct {
	Email    string
	Username string
}

// Order 是订单聚合的根实体
type Order struct {
	ID              string
	UserID          string
	Customer        Customer
	Items           []Item
	TotalAmount     decimal.Decimal
	Status          Status
	ShippingAddress string
	Notes           string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewOrder 创建一个 PENDING 状态的订单并计算总额。ID 与时间戳由仓储在保存时生成。
func NewOrder(userID string, customer Customer, items []Item, shippingAddress, notes string) (*Order, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Validation("user id is required")
	}
	o := &Order{
		UserID:          userID,
		Customer:        customer,
		Items:           items,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		Notes:           notes,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	o.CalculateTotal()
	return o, nil
}

// Validate 检查订单行是否合法。
func (o *Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyOrder
	}
	for i, it := range o.Items {
		if strings.TrimSpace(it.ProductID) == "" {
			return apperr.Validation("items[%d]: product id is required", i)
		}
		if it.Quantity < 1 {
			return apperr.Validation("items[%d]: quantity must be at least 1, got %d", i, it.Quantity)
		}
		if it.UnitPrice.IsNegative() {
			return apperr.Validation("items[%d]: unit price must not be negative", i)
		}
	}
	return nil
}

// CalculateTotal 重新计算并写回总额。
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.Items {
		total = total.Add(it.Subtotal())
	}
	o.TotalAmount = total
	return total
}

// TransitionTo 按状态机流转订单状态。
func (o *Order) TransitionTo(next Status) error {
	if !o.Status.CanTransitionTo(next) {
		return transitionError(o.Status, next)
	}
	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

func (o *Order) OwnedBy(userID string) bool {
	return o.UserID == userID
}
