package infrastructure

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderModel 对应数据库中的 orders 表
type OrderModel struct {
	ID              string          `gorm:"primaryKey;size:36"`
	UserID          string          `gorm:"size:64;index:idx_orders_user_status,priority:1;not null"`
	CustomerEmail   string          `gorm:"size:255"`
	CustomerName    string          `gorm:"size:128"`
	TotalAmount     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Status          string          `gorm:"size:16;index:idx_orders_user_status,priority:2;not null"`
	ShippingAddress string          `gorm:"size:500"`
	Notes           string          `gorm:"type:text"`
	CreatedAt       time.Time
	UpdatedAt       time.Time

	// 关联关系
	Items []OrderItemModel `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
}

func (OrderModel) TableName() string {
	return "orders"
}

// OrderItemModel 对应 order_items 表，Position 保留下单时的行顺序。
type OrderItemModel struct {
	ID          uint            `gorm:"primaryKey"`
	OrderID     string          `gorm:"size:36;index;not null"`
	Position    int             `gorm:"not null"`
	ProductID   string          `gorm:"size:64;not null"`
	ProductName string          `gorm:"size:255;not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity    int             `gorm:"not null"`
	Subtotal    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (OrderItemModel) TableName() string {
	return "order_items"
}
