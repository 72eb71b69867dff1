package application

import (
	"context"
	"fmt"

	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/notification/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var auditActions = map[contract.EventType]domain.AuditAction{
	contract.EventOrderCreated:   domain.ActionCreate,
	contract.EventOrderUpdated:   domain.ActionUpdate,
	contract.EventOrderCancelled: domain.ActionDelete,
}

func auditActionFor(t contract.EventType) domain.AuditAction {
	if a, ok := auditActions[t]; ok {
		return a
	}
	return domain.ActionOther
}

// EventProcessor 处理一条订单生命周期事件：写审计，再通知客户。
// 返回错误表示需要重投；重复投递会产生重复记录。
type EventProcessor struct {
	audit         *AuditService
	notifications *NotificationService
	tracer        trace.Tracer
}

func NewEventProcessor(audit *AuditService, notifications *NotificationService, tracer trace.Tracer) *EventProcessor {
	return &EventProcessor{audit: audit, notifications: notifications, tracer: tracer}
}

func (p *EventProcessor) Process(ctx context.Context, e *contract.OrderEvent) error {
	ctx, span := p.tracer.Start(ctx, "notification.ProcessOrderEvent")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.id", e.OrderID),
		attribute.String("event.type", string(e.EventType)),
		attribute.String("event.id", e.EventID),
	)

	entry := &domain.AuditLog{
		EntityType: constants.EntityTypeOrder,
		EntityID:   e.OrderID,
		UserID:     e.UserID,
		Username:   e.Username,
		Action:     auditActionFor(e.EventType),
		Details:    auditDetails(e),
		NewState:   e.Status,
	}
	if err := p.audit.Record(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}

	// 库存漂移只进审计，不打扰客户
	if e.EventType == contract.EventOrderStockDrift {
		logger.Ctx(ctx).Warn().Str("order_id", e.OrderID).Int("drift_items", len(e.DriftItems)).
			Msg("🚨 Stock drift reported for order")
		return nil
	}

	if e.UserEmail == "" {
		logger.Ctx(ctx).Warn().Str("order_id", e.OrderID).Str("user_id", e.UserID).
			Msg("No email address for user, skipping notification")
		return nil
	}

	subject, body, err := renderOrderEmail(e)
	if err != nil {
		span.RecordError(err)
		return err
	}
	_, err = p.notifications.CreateAndSend(ctx, SendRequest{
		Recipient:         e.UserEmail,
		Subject:           subject,
		Body:              body,
		Type:              styleFor(e.EventType).kind,
		RelatedEntityID:   e.OrderID,
		RelatedEntityType: constants.EntityTypeOrder,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func auditDetails(e *contract.OrderEvent) string {
	details := fmt.Sprintf("Order %s - Status: %s - Total: $%s - Items: %d",
		e.EventType, e.Status, e.TotalAmount.StringFixed(2), len(e.Items))
	for _, d := range e.DriftItems {
		details += fmt.Sprintf(" | drift %s %s x%d (%s)", d.Direction, d.ProductID, d.Quantity, d.Reason)
	}
	return details
}
