package domain

import (
	"context"
	"strings"
	"time"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Status 由库存数量推导，不单独修改。
type Status string

const (
	StatusAvailable  Status = "AVAILABLE"
	StatusOutOfStock Status = "OUT_OF_STOCK"
)

var (
	ErrProductNotFound   = errors.WithMessage(apperr.ErrNotFound, "product not found")
	ErrInsufficientStock = errors.WithMessage(apperr.ErrInsufficientStock, "insufficient stock")
	ErrProductExists     = errors.WithMessage(apperr.ErrValidation, "product already exists")
)

// StatusFor 返回某个库存数量对应的状态。
func StatusFor(quantity int) Status {
	if quantity > 0 {
		return StatusAvailable
	}
	return StatusOutOfStock
}

// Product 是一条商品库存记录，Quantity 永远非负。
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	Quantity  int
	Status    Status
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewProduct(id, name string, price decimal.Decimal, quantity int) (*Product, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apperr.Validation("product id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("product name is required")
	}
	if price.IsNegative() {
		return nil, apperr.Validation("price must not be negative")
	}
	if quantity < 0 {
		return nil, apperr.Validation("quantity must not be negative")
	}
	now := time.Now().UTC()
	return &Product{
		ID:        id,
		Name:      name,
		Price:     price,
		Quantity:  quantity,
		Status:    StatusFor(quantity),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Adjustment 是一次库存调整请求。Delta 总是正数，方向由 IsAddition 决定。
type Adjustment struct {
	ProductID  string
	Delta      int
	IsAddition bool
}

func (a Adjustment) Validate() error {
	if strings.TrimSpace(a.ProductID) == "" {
		return apperr.Validation("product id is required")
	}
	if a.Delta <= 0 {
		return apperr.Validation("quantity must be positive, got %d", a.Delta)
	}
	return nil
}

// Signed 返回带符号的变化量。
func (a Adjustment) Signed() int {
	if a.IsAddition {
		return a.Delta
	}
	return -a.Delta
}

func (a Adjustment) Direction() string {
	if a.IsAddition {
		return "increment"
	}
	return "decrement"
}

// StockStore 持有库存记录。Adjust 必须是单次原子读改写：
// 扣减后数量为负时返回 ErrInsufficientStock 且不做任何修改。
type StockStore interface {
	Create(ctx context.Context, p *Product) error
	Get(ctx context.Context, productID string) (*Product, error)
	Adjust(ctx context.Context, adj Adjustment) (*Product, error)
}
