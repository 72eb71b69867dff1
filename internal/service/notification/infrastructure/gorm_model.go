package infrastructure

import (
	"time"

	"nexus-commerce/internal/service/notification/domain"
)

// AuditLogModel 对应 audit_logs 表
type AuditLogModel struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	EntityType    string    `gorm:"size:64;index:idx_audit_entity,priority:1;not null"`
	EntityID      string    `gorm:"size:64;index:idx_audit_entity,priority:2;not null"`
	UserID        string    `gorm:"size:64;index"`
	Username      string    `gorm:"size:128"`
	Action        string    `gorm:"size:16;not null"`
	Details       string    `gorm:"type:text"`
	PreviousState string    `gorm:"type:text"`
	NewState      string    `gorm:"type:text"`
	IPAddress     string    `gorm:"size:64"`
	UserAgent     string    `gorm:"size:255"`
	Timestamp     time.Time `gorm:"index;not null"`
}

func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// NotificationModel 对应 notifications 表
type NotificationModel struct {
	ID                uint64 `gorm:"primaryKey;autoIncrement"`
	Recipient         string `gorm:"size:255;index;not null"`
	Subject           string `gorm:"size:255;not null"`
	Body              string `gorm:"type:text"`
	Type              string `gorm:"size:32;not null"`
	Status            string `gorm:"size:16;not null"`
	ErrorMessage      string `gorm:"type:text"`
	RelatedEntityID   string `gorm:"size:64"`
	RelatedEntityType string `gorm:"size:64"`
	CreatedAt         time.Time
	SentAt            *time.Time
}

func (NotificationModel) TableName() string {
	return "notifications"
}

func toAuditModel(a *domain.AuditLog) *AuditLogModel {
	return &AuditLogModel{
		ID:            a.ID,
		EntityType:    a.EntityType,
		EntityID:      a.EntityID,
		UserID:        a.UserID,
		Username:      a.Username,
		Action:        string(a.Action),
		Details:       a.Details,
		PreviousState: a.PreviousState,
		NewState:      a.NewState,
		IPAddress:     a.IPAddress,
		UserAgent:     a.UserAgent,
		Timestamp:     a.Timestamp,
	}
}

func toDomainAudit(m *AuditLogModel) *domain.AuditLog {
	return &domain.AuditLog{
		ID:            m.ID,
		EntityType:    m.EntityType,
		EntityID:      m.EntityID,
		UserID:        m.UserID,
		Username:      m.Username,
		Action:        domain.AuditAction(m.Action),
		Details:       m.Details,
		PreviousState: m.PreviousState,
		NewState:      m.NewState,
		IPAddress:     m.IPAddress,
		UserAgent:     m.UserAgent,
		Timestamp:     m.Timestamp,
	}
}

func toNotificationModel(n *domain.Notification) *NotificationModel {
	return &NotificationModel{
		ID:                n.ID,
		Recipient:         n.Recipient,
		Subject:           n.Subject,
		Body:              n.Body,
		Type:              string(n.Type),
		Status:            string(n.Status),
		ErrorMessage:      n.ErrorMessage,
		RelatedEntityID:   n.RelatedEntityID,
		RelatedEntityType: n.RelatedEntityType,
		CreatedAt:         n.CreatedAt,
		SentAt:            n.SentAt,
	}
}

func toDomainNotification(m *NotificationModel) *domain.Notification {
	return &domain.Notification{
		ID:                m.ID,
		Recipient:         m.Recipient,
		Subject:           m.Subject,
		Body:              m.Body,
		Type:              domain.NotificationType(m.Type),
		Status:            domain.NotificationStatus(m.Status),
		ErrorMessage:      m.ErrorMessage,
		RelatedEntityID:   m.RelatedEntityID,
		RelatedEntityType: m.RelatedEntityType,
		CreatedAt:         m.CreatedAt,
		SentAt:            m.SentAt,
	}
}
