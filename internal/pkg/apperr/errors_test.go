package apperr

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/pkg/errors"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"wrapped not found", errors.Wrap(ErrNotFound, "order 42"), KindNotFound, http.StatusNotFound},
		{"with message", errors.WithMessage(ErrInsufficientStock, "sku-1"), KindInsufficientStock, http.StatusConflict},
		{"product not available wins", fmt.Errorf("%w: %w", ErrProductNotAvailable, ErrInsufficientStock), KindProductNotAvailable, http.StatusConflict},
		{"fmt wrapped", fmt.Errorf("call failed: %w", ErrUnreachable), KindUnreachable, http.StatusServiceUnavailable},
		{"validation helper", Validation("quantity must be positive, got %d", 0), KindValidation, http.StatusBadRequest},
		{"unknown", errors.New("boom"), KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.kind {
				t.Fatalf("KindOf() = %s, want %s", got, tt.kind)
			}
			if got := HTTPStatus(tt.err); got != tt.status {
				t.Fatalf("HTTPStatus() = %d, want %d", got, tt.status)
			}
		})
	}
}
