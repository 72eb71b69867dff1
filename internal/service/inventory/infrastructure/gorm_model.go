package infrastructure

import (
	"time"

	"nexus-commerce/internal/service/inventory/domain"

	"github.com/shopspring/decimal"
)

// ProductModel 对应 inventory_product 表。
// 不使用 gorm.Model：原子扣减走原生 SQL，软删除条件不会自动附加。
type ProductModel struct {
	ID        uint            `gorm:"primaryKey"`
	ProductID string          `gorm:"size:64;uniqueIndex;not null"`
	Name      string          `gorm:"size:255;not null"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Quantity  int             `gorm:"not null;check:quantity >= 0"`
	Status    string          `gorm:"size:16;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ProductModel) TableName() string {
	return "inventory_product"
}

func toDomainProduct(m *ProductModel) *domain.Product {
	return &domain.Product{
		ID:        m.ProductID,
		Name:      m.Name,
		Price:     m.Price,
		Quantity:  m.Quantity,
		Status:    domain.Status(m.Status),
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func toProductModel(p *domain.Product) *ProductModel {
	return &ProductModel{
		ProductID: p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Quantity:  p.Quantity,
		Status:    string(domain.StatusFor(p.Quantity)),
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}
