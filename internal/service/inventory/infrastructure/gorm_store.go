package infrastructure

import (
	"context"
	"time"

	"nexus-commerce/internal/service/inventory/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// status 必须写在 quantity 前面：MySQL 按从左到右求值 SET 子句，
// 这样 CASE 看到的仍是旧值，与 SQLite 的语义一致。
const adjustStockSQL = `UPDATE inventory_product
SET status = CASE WHEN quantity + ? > 0 THEN ? ELSE ? END,
    quantity = quantity + ?,
    updated_at = ?
WHERE product_id = ? AND quantity + ? >= 0`

// GormStockStore 是 domain.StockStore 的 GORM 实现。
type GormStockStore struct {
	db *gorm.DB
}

func NewGormStockStore(db *gorm.DB) *GormStockStore {
	return &GormStockStore{db: db}
}

func (s *GormStockStore) Create(ctx context.Context, p *domain.Product) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&ProductModel{}).Where("product_id = ?", p.ID).Count(&n).Error; err != nil {
			return errors.Wrap(err, "check product existence")
		}
		if n > 0 {
			return errors.Wrapf(domain.ErrProductExists, "product %s", p.ID)
		}
		if err := tx.Create(toProductModel(p)).Error; err != nil {
			return errors.Wrap(err, "insert product")
		}
		return nil
	})
}

func (s *GormStockStore) Get(ctx context.Context, productID string) (*domain.Product, error) {
	var m ProductModel
	err := s.db.WithContext(ctx).Where("product_id = ?", productID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.Wrapf(domain.ErrProductNotFound, "product %s", productID)
		}
		return nil, errors.Wrap(err, "query product")
	}
	return toDomainProduct(&m), nil
}

// Adjust 用一条带条件的 UPDATE 完成检查与修改，行锁保证并发安全。
func (s *GormStockStore) Adjust(ctx context.Context, adj domain.Adjustment) (*domain.Product, error) {
	if err := adj.Validate(); err != nil {
		return nil, err
	}
	signed := adj.Signed()

	var out *domain.Product
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Exec(adjustStockSQL,
			signed, string(domain.StatusAvailable), string(domain.StatusOutOfStock),
			signed,
			time.Now().UTC(),
			adj.ProductID, signed,
		)
		if res.Error != nil {
			return errors.Wrap(res.Error, "adjust stock")
		}

		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&ProductModel{}).Where("product_id = ?", adj.ProductID).Count(&n).Error; err != nil {
				return errors.Wrap(err, "check product existence")
			}
			if n == 0 {
				return errors.Wrapf(domain.ErrProductNotFound, "product %s", adj.ProductID)
			}
			return errors.Wrapf(domain.ErrInsufficientStock, "product %s cannot %s by %d", adj.ProductID, adj.Direction(), adj.Delta)
		}

		var m ProductModel
		if err := tx.Where("product_id = ?", adj.ProductID).First(&m).Error; err != nil {
			return errors.Wrap(err, "reload product")
		}
		out = toDomainProduct(&m)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
