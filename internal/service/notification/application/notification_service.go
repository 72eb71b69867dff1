package application

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/service/notification/domain"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type SendRequest struct {
	Recipient         string
	Subject           string
	Body              string
	Type              domain.NotificationType
	RelatedEntityID   string
	RelatedEntityType string
}

// NotificationService 负责通知的落库与投递
type NotificationService struct {
	repo   domain.NotificationRepository
	mailer domain.Mailer
	tracer trace.Tracer
	now    func() time.Time
}

func NewNotificationService(repo domain.NotificationRepository, mailer domain.Mailer, tracer trace.Tracer) *NotificationService {
	return &NotificationService{
		repo:   repo,
		mailer: mailer,
		tracer: tracer,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// CreateAndSend 先以 PENDING 落库，再投递并把结果写回。
// 投递失败只会把通知标记为 FAILED；只有存储失败才返回错误。
func (s *NotificationService) CreateAndSend(ctx context.Context, req SendRequest) (*domain.Notification, error) {
	ctx, span := s.tracer.Start(ctx, "notification.CreateAndSend")
	defer span.End()
	span.SetAttributes(
		attribute.String("notification.type", string(req.Type)),
		attribute.String("notification.related_entity_id", req.RelatedEntityID),
	)

	n := &domain.Notification{
		Recipient:         req.Recipient,
		Subject:           req.Subject,
		Body:              req.Body,
		Type:              req.Type,
		Status:            domain.StatusPending,
		RelatedEntityID:   req.RelatedEntityID,
		RelatedEntityType: req.RelatedEntityType,
		CreatedAt:         s.now(),
	}
	if err := s.repo.Save(ctx, n); err != nil {
		span.RecordError(err)
		return nil, errors.WithMessage(err, "save pending notification")
	}

	if err := s.mailer.Send(ctx, n.Recipient, n.Subject, n.Body); err != nil {
		n.MarkFailed(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "delivery failed")
		logger.Ctx(ctx).Error().Err(err).Uint64("notification_id", n.ID).Str("recipient", n.Recipient).
			Msg("❌ Failed to send notification")
	} else {
		n.MarkSent(s.now())
		logger.Ctx(ctx).Info().Uint64("notification_id", n.ID).Str("recipient", n.Recipient).
			Msg("📧 Notification sent")
	}
	metrics.NotificationsTotal.WithLabelValues(string(n.Type), string(n.Status)).Inc()

	if err := s.repo.Save(ctx, n); err != nil {
		span.RecordError(err)
		return nil, errors.WithMessage(err, "save notification result")
	}
	return n, nil
}

func (s *NotificationService) ListByRecipient(ctx context.Context, recipient string) ([]*domain.Notification, error) {
	if recipient == "" {
		return nil, apperr.Validation("recipient is required")
	}
	return s.repo.FindByRecipient(ctx, recipient)
}
