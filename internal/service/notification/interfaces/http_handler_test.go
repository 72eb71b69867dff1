package interfaces

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/service/notification/application"
	"nexus-commerce/internal/service/notification/domain"
	"nexus-commerce/internal/service/notification/infrastructure"

	"go.opentelemetry.io/otel/trace/noop"
)

type queryFixture struct {
	mux      *http.ServeMux
	verifier *auth.Verifier
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	db, err := database.OpenInMemory(&infrastructure.AuditLogModel{}, &infrastructure.NotificationModel{})
	if err != nil {
		t.Fatal(err)
	}
	tracer := noop.NewTracerProvider().Tracer("test")
	audit := application.NewAuditService(infrastructure.NewGormAuditRepository(db), tracer)
	notes := application.NewNotificationService(infrastructure.NewGormNotificationRepository(db),
		infrastructure.NewLogMailer("noreply@example.com"), tracer)

	ctx := context.Background()
	for _, id := range []string{"o-1", "o-1", "o-2"} {
		if err := audit.Record(ctx, &domain.AuditLog{EntityType: constants.EntityTypeOrder, EntityID: id, UserID: "u-1", Action: domain.ActionCreate}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := notes.CreateAndSend(ctx, application.SendRequest{
		Recipient: "u-1@example.com", Subject: "hi", Body: "<p>hi</p>", Type: domain.TypeOrderCreated,
		RelatedEntityID: "o-1", RelatedEntityType: constants.EntityTypeOrder,
	}); err != nil {
		t.Fatal(err)
	}

	verifier := auth.NewVerifier("test-secret", "")
	mux := http.NewServeMux()
	NewQueryHandler(audit, notes, verifier).RegisterRoutes(mux)
	return &queryFixture{mux: mux, verifier: verifier}
}

func (f *queryFixture) get(t *testing.T, target, userID string, roles ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if userID != "" {
		tok, err := f.verifier.Issue(auth.Principal{UserID: userID, Email: userID + "@example.com", Roles: roles}, time.Minute)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpointsAccess(t *testing.T) {
	f := newQueryFixture(t)
	cases := []struct {
		name   string
		target string
		user   string
		roles  []string
		status int
		count  int
	}{
		{"anonymous", "/api/audit?entityType=ORDER&entityId=o-1", "", nil, http.StatusUnauthorized, -1},
		{"audit needs admin", "/api/audit?entityType=ORDER&entityId=o-1", "u-1", nil, http.StatusForbidden, -1},
		{"audit by entity", "/api/audit?entityType=ORDER&entityId=o-1", "admin", []string{constants.RoleAdmin}, http.StatusOK, 2},
		{"audit missing params", "/api/audit?entityType=ORDER", "admin", []string{constants.RoleAdmin}, http.StatusBadRequest, -1},
		{"own audit trail", "/api/audit/users/u-1", "u-1", nil, http.StatusOK, 3},
		{"other user's trail", "/api/audit/users/u-1", "u-2", nil, http.StatusForbidden, -1},
		{"own notifications", "/api/notifications", "u-1", nil, http.StatusOK, 1},
		{"other recipient", "/api/notifications?recipient=u-1@example.com", "u-2", nil, http.StatusForbidden, -1},
		{"admin reads any recipient", "/api/notifications?recipient=u-1@example.com", "admin", []string{constants.RoleAdmin}, http.StatusOK, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.get(t, tc.target, tc.user, tc.roles...)
			if rec.Code != tc.status {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tc.status, rec.Body.String())
			}
			if tc.count < 0 {
				return
			}
			var out []json.RawMessage
			if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
				t.Fatal(err)
			}
			if len(out) != tc.count {
				t.Errorf("rows = %d, want %d", len(out), tc.count)
			}
		})
	}
}

func TestNotificationResponseShape(t *testing.T) {
	f := newQueryFixture(t)
	rec := f.get(t, "/api/notifications", "u-1")
	var out []NotificationResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 1 || out[0].Status != string(domain.StatusSent) || out[0].SentAt == nil || out[0].RelatedEntityID != "o-1" {
		t.Fatalf("response = %+v", out)
	}
}
