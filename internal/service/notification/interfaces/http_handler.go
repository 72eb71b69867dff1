package interfaces

import (
	"net/http"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/web"
	"nexus-commerce/internal/service/notification/application"
	"nexus-commerce/internal/service/notification/domain"

	"github.com/pkg/errors"
)

type AuditLogResponse struct {
	ID            uint64    `json:"id"`
	EntityType    string    `json:"entityType"`
	EntityID      string    `json:"entityId"`
	UserID        string    `json:"userId"`
	Username      string    `json:"username"`
	Action        string    `json:"action"`
	Details       string    `json:"details"`
	PreviousState string    `json:"previousState,omitempty"`
	NewState      string    `json:"newState,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

type NotificationResponse struct {
	ID                uint64     `json:"id"`
	Recipient         string     `json:"recipient"`
	Subject           string     `json:"subject"`
	Type              string     `json:"type"`
	Status            string     `json:"status"`
	ErrorMessage      string     `json:"errorMessage,omitempty"`
	RelatedEntityID   string     `json:"relatedEntityId"`
	RelatedEntityType string     `json:"relatedEntityType"`
	CreatedAt         time.Time  `json:"createdAt"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
}

// QueryHandler 暴露只读的审计与通知查询接口，仅管理员与本人可访问。
type QueryHandler struct {
	audit         *application.AuditService
	notifications *application.NotificationService
	verifier      *auth.Verifier
}

func NewQueryHandler(audit *application.AuditService, notifications *application.NotificationService, verifier *auth.Verifier) *QueryHandler {
	return &QueryHandler{audit: audit, notifications: notifications, verifier: verifier}
}

func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("GET /api/audit", h.verifier.Middleware(http.HandlerFunc(h.auditByEntity)))
	mux.Handle("GET /api/audit/users/{userId}", h.verifier.Middleware(http.HandlerFunc(h.auditByUser)))
	mux.Handle("GET /api/notifications", h.verifier.Middleware(http.HandlerFunc(h.notificationsByRecipient)))
}

// auditByEntity 处理 GET /api/audit?entityType=ORDER&entityId=...，仅管理员
func (h *QueryHandler) auditByEntity(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	if !p.IsAdmin() {
		web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrForbidden, "audit history is restricted to administrators"))
		return
	}
	q := r.URL.Query()
	logs, err := h.audit.ByEntity(r.Context(), q.Get("entityType"), q.Get("entityId"))
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toAuditResponses(logs))
}

func (h *QueryHandler) auditByUser(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	userID := r.PathValue("userId")
	if p.UserID != userID && !p.IsAdmin() {
		web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrForbidden, "cannot read another user's audit history"))
		return
	}
	logs, err := h.audit.ByUser(r.Context(), userID)
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, toAuditResponses(logs))
}

// notificationsByRecipient 默认查询调用方自己的邮箱
func (h *QueryHandler) notificationsByRecipient(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	recipient := r.URL.Query().Get("recipient")
	if recipient == "" {
		recipient = p.Email
	}
	if recipient != p.Email && !p.IsAdmin() {
		web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrForbidden, "cannot read another user's notifications"))
		return
	}
	list, err := h.notifications.ListByRecipient(r.Context(), recipient)
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	out := make([]NotificationResponse, 0, len(list))
	for _, n := range list {
		out = append(out, NotificationResponse{
			ID:                n.ID,
			Recipient:         n.Recipient,
			Subject:           n.Subject,
			Type:              string(n.Type),
			Status:            string(n.Status),
			ErrorMessage:      n.ErrorMessage,
			RelatedEntityID:   n.RelatedEntityID,
			RelatedEntityType: n.RelatedEntityType,
			CreatedAt:         n.CreatedAt,
			SentAt:            n.SentAt,
		})
	}
	web.WriteJSON(w, http.StatusOK, out)
}

func toAuditResponses(logs []*domain.AuditLog) []AuditLogResponse {
	out := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, AuditLogResponse{
			ID:            l.ID,
			EntityType:    l.EntityType,
			EntityID:      l.EntityID,
			UserID:        l.UserID,
			Username:      l.Username,
			Action:        string(l.Action),
			Details:       l.Details,
			PreviousState: l.PreviousState,
			NewState:      l.NewState,
			Timestamp:     l.Timestamp,
		})
	}
	return out
}
