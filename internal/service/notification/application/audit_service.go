package application

import (
	"context"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/service/notification/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AuditService 写入与查询审计记录
type AuditService struct {
	repo   domain.AuditRepository
	tracer trace.Tracer
}

func NewAuditService(repo domain.AuditRepository, tracer trace.Tracer) *AuditService {
	return &AuditService{repo: repo, tracer: tracer}
}

func (s *AuditService) Record(ctx context.Context, entry *domain.AuditLog) error {
	ctx, span := s.tracer.Start(ctx, "audit.Record")
	defer span.End()
	span.SetAttributes(
		attribute.String("audit.entity_type", entry.EntityType),
		attribute.String("audit.entity_id", entry.EntityID),
		attribute.String("audit.action", string(entry.Action)),
	)

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	if err := s.repo.Save(ctx, entry); err != nil {
		span.RecordError(err)
		return err
	}
	logger.Ctx(ctx).Debug().Uint64("audit_id", entry.ID).Str("entity_id", entry.EntityID).
		Str("action", string(entry.Action)).Msg("📝 Audit log recorded")
	return nil
}

func (s *AuditService) ByEntity(ctx context.Context, entityType, entityID string) ([]*domain.AuditLog, error) {
	if entityType == "" || entityID == "" {
		return nil, apperr.Validation("entityType and entityId are required")
	}
	return s.repo.FindByEntity(ctx, entityType, entityID)
}

func (s *AuditService) ByUser(ctx context.Context, userID string) ([]*domain.AuditLog, error) {
	if userID == "" {
		return nil, apperr.Validation("userId is required")
	}
	return s.repo.FindByUser(ctx, userID)
}
