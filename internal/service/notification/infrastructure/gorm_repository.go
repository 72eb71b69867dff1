package infrastructure

import (
	"context"

	"nexus-commerce/internal/service/notification/domain"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// GormAuditRepository 只追加写入审计记录
type GormAuditRepository struct {
	db *gorm.DB
}

func NewGormAuditRepository(db *gorm.DB) *GormAuditRepository {
	return &GormAuditRepository{db: db}
}

func (r *GormAuditRepository) Save(ctx context.Context, a *domain.AuditLog) error {
	model := toAuditModel(a)
	// ID 始终由数据库生成，重复事件得到新的记录
	model.ID = 0
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(err, "insert audit log")
	}
	a.ID = model.ID
	return nil
}

func (r *GormAuditRepository) FindByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("timestamp ASC, id ASC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query audit logs by entity")
	}
	return toAuditLogs(models), nil
}

func (r *GormAuditRepository) FindByUser(ctx context.Context, userID string) ([]*domain.AuditLog, error) {
	var models []AuditLogModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query audit logs by user")
	}
	return toAuditLogs(models), nil
}

func toAuditLogs(models []AuditLogModel) []*domain.AuditLog {
	out := make([]*domain.AuditLog, 0, len(models))
	for i := range models {
		out = append(out, toDomainAudit(&models[i]))
	}
	return out
}

type GormNotificationRepository struct {
	db *gorm.DB
}

func NewGormNotificationRepository(db *gorm.DB) *GormNotificationRepository {
	return &GormNotificationRepository{db: db}
}

// Save 插入新通知，或在 ID 已分配时更新投递结果。
func (r *GormNotificationRepository) Save(ctx context.Context, n *domain.Notification) error {
	model := toNotificationModel(n)
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return errors.Wrap(err, "save notification")
	}
	n.ID = model.ID
	return nil
}

func (r *GormNotificationRepository) FindByRecipient(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	var models []NotificationModel
	err := r.db.WithContext(ctx).
		Where("recipient = ?", recipient).
		Order("created_at DESC, id DESC").
		Find(&models).Error
	if err != nil {
		return nil, errors.Wrap(err, "query notifications by recipient")
	}
	out := make([]*domain.Notification, 0, len(models))
	for i := range models {
		out = append(out, toDomainNotification(&models[i]))
	}
	return out, nil
}
