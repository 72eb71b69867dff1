package infrastructure

import (
	"context"
	"time"

	"nexus-commerce/internal/service/order/domain"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormOrderRepository 是 OrderRepository 的 GORM 实现
type GormOrderRepository struct {
	db *gorm.DB
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db}
}

// Save 在一个事务内 upsert 订单头并整体替换订单行。
// 成功后回写生成的 ID 与时间戳；失败时订单对象保持不变。
func (r *GormOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	if err := order.Validate(); err != nil {
		return err
	}

	now := time.Now().UTC()
	snapshot := *order
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = now
	}
	snapshot.UpdatedAt = now
	snapshot.CalculateTotal()

	model := toOrderModel(&snapshot)
	items := model.Items

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{UpdateAll: true}).
			Create(model).Error; err != nil {
			return errors.Wrap(err, "upsert order")
		}
		if err := tx.Where("order_id = ?", model.ID).Delete(&OrderItemModel{}).Error; err != nil {
			return errors.Wrap(err, "delete order items")
		}
		if err := tx.Create(&items).Error; err != nil {
			return errors.Wrap(err, "insert order items")
		}
		return nil
	})
	if err != nil {
		return err
	}

	*order = snapshot
	return nil
}

func (r *GormOrderRepository) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		return nil, mapFindError(err, id)
	}
	return toDomainOrder(&model), nil
}

// FindByIDWithItems 使用 Preload 预加载订单行
func (r *GormOrderRepository) FindByIDWithItems(ctx context.Context, id string) (*domain.Order, error) {
	var model OrderModel
	err := r.db.WithContext(ctx).
		Preload("Items", orderedItems).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		return nil, mapFindError(err, id)
	}
	return toDomainOrder(&model), nil
}

func (r *GormOrderRepository) FindByUser(ctx context.Context, userID string, status *domain.Status) ([]*domain.Order, error) {
	q := r.db.WithContext(ctx).Preload("Items", orderedItems).Where("user_id = ?", userID)
	if status != nil {
		q = q.Where("status = ?", string(*status))
	}

	var models []OrderModel
	if err := q.Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, errors.Wrap(err, "query orders by user")
	}

	orders := make([]*domain.Order, 0, len(models))
	for i := range models {
		orders = append(orders, toDomainOrder(&models[i]))
	}
	return orders, nil
}

// TransitionStatus 执行 UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?，
// 没有命中行时区分订单不存在与状态已被他人改动。
func (r *GormOrderRepository) TransitionStatus(ctx context.Context, id string, from, to domain.Status, at time.Time) error {
	db := r.db.WithContext(ctx)
	res := db.Model(&OrderModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{"status": string(to), "updated_at": at.UTC()})
	if res.Error != nil {
		return errors.Wrap(res.Error, "update order status")
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var current OrderModel
	if err := db.Select("status").Where("id = ?", id).First(&current).Error; err != nil {
		return mapFindError(err, id)
	}
	return errors.Wrapf(domain.ErrInvalidStatusTransition, "order %s is %s, not %s", id, current.Status, from)
}

func orderedItems(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

func mapFindError(err error, id string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errors.Wrapf(domain.ErrOrderNotFound, "order %s", id)
	}
	return errors.Wrap(err, "query order")
}
