package contract

import (
	"strings"
	"testing"
	"time"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func TestEncodeUsesWireFieldNames(t *testing.T) {
	e := &OrderEvent{
		EventID:     "e-1",
		EventType:   EventOrderCreated,
		OrderID:     "o-1",
		UserID:      "u-1",
		UserEmail:   "a@example.com",
		Username:    "alice",
		Status:      "PENDING",
		TotalAmount: decimal.RequireFromString("29.97"),
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items:       []OrderEventItem{{ProductID: "p-1", ProductName: "Mug", Quantity: 3, Price: decimal.RequireFromString("9.99")}},
	}
	b, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"orderId":"o-1"`, `"eventType":"ORDER_CREATED"`, `"totalAmount":29.97`, `"price":9.99`, `"userEmail":"a@example.com"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("encoded event %s missing %s", s, want)
		}
	}
	if strings.Contains(s, "driftItems") {
		t.Fatalf("empty drift items should be omitted: %s", s)
	}

	back, err := DecodeOrderEvent(b)
	if err != nil {
		t.Fatalf("DecodeOrderEvent: %v", err)
	}
	if !back.TotalAmount.Equal(e.TotalAmount) || back.Items[0].Quantity != 3 {
		t.Fatalf("decoded %+v", back)
	}
}

func TestDecodeOrderEventRejectsCorruptPayloads(t *testing.T) {
	for name, payload := range map[string]string{
		"not json":      "{oops",
		"no order id":   `{"eventType":"ORDER_CREATED"}`,
		"no event type": `{"orderId":"o-1"}`,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeOrderEvent([]byte(payload)); !errors.Is(err, apperr.ErrUnrecoverable) {
				t.Fatalf("expected unrecoverable, got %v", err)
			}
		})
	}
}

func TestDecodeOrderEventKeepsUnknownType(t *testing.T) {
	e, err := DecodeOrderEvent([]byte(`{"orderId":"o-1","eventType":"ORDER_REFUNDED"}`))
	if err != nil {
		t.Fatalf("unknown type should decode: %v", err)
	}
	if e.EventType != "ORDER_REFUNDED" {
		t.Fatalf("event type = %s", e.EventType)
	}
}
