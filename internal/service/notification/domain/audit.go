package domain

import (
	"context"
	"time"
)

// AuditAction 是审计记录的动作类型
type AuditAction string

const (
	ActionCreate   AuditAction = "CREATE"
	ActionUpdate   AuditAction = "UPDATE"
	ActionDelete   AuditAction = "DELETE"
	ActionRead     AuditAction = "READ"
	ActionLogin    AuditAction = "LOGIN"
	ActionLogout   AuditAction = "LOGOUT"
	ActionPayment  AuditAction = "PAYMENT"
	ActionShipment AuditAction = "SHIPMENT"
	ActionOther    AuditAction = "OTHER"
)

// AuditLog 是只追加的审计记录，重复投递会产生重复记录。
type AuditLog struct {
	ID            uint64
	EntityType    string
	EntityID      string
	UserID        string
	Username      string
	Action        AuditAction
	Details       string
	PreviousState string
	NewState      string
	IPAddress     string
	UserAgent     string
	Timestamp     time.Time
}

type AuditRepository interface {
	Save(ctx context.Context, log *AuditLog) error
	FindByEntity(ctx context.Context, entityType, entityID string) ([]*AuditLog, error)
	FindByUser(ctx context.Context, userID string) ([]*AuditLog, error)
}
