package domain

import (
	"context"
	"time"
)

type NotificationType string

const (
	TypeOrderCreated     NotificationType = "ORDER_CREATED"
	TypeOrderUpdated     NotificationType = "ORDER_UPDATED"
	TypeOrderCancelled   NotificationType = "ORDER_CANCELLED"
	TypePaymentConfirmed NotificationType = "PAYMENT_CONFIRMED"
	TypeShipmentUpdated  NotificationType = "SHIPMENT_UPDATED"
	TypeGeneral          NotificationType = "GENERAL"
)

// NotificationStatus 只会 PENDING -> SENT 或 PENDING -> FAILED
type NotificationStatus string

const (
	StatusPending NotificationStatus = "PENDING"
	StatusSent    NotificationStatus = "SENT"
	StatusFailed  NotificationStatus = "FAILED"
)

type Notification struct {
	ID                uint64
	Recipient         string
	Subject           string
	Body              string
	Type              NotificationType
	Status            NotificationStatus
	ErrorMessage      string
	RelatedEntityID   string
	RelatedEntityType string
	CreatedAt         time.Time
	SentAt            *time.Time
}

func (n *Notification) MarkSent(at time.Time) {
	n.Status = StatusSent
	n.SentAt = &at
	n.ErrorMessage = ""
}

func (n *Notification) MarkFailed(err error) {
	n.Status = StatusFailed
	n.ErrorMessage = err.Error()
}

type NotificationRepository interface {
	Save(ctx context.Context, n *Notification) error
	FindByRecipient(ctx context.Context, recipient string) ([]*Notification, error)
}

// Mailer 是发送 HTML 邮件的出站端口
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}
