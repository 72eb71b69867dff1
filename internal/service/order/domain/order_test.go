package domain

import (
	"testing"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func item(id, price string, qty int) Item {
	return Item{ProductID: id, ProductName: "p-" + id, UnitPrice: decimal.RequireFromString(price), Quantity: qty}
}

func TestNewOrderComputesTotal(t *testing.T) {
	o, err := NewOrder("u-1", Customer{}, []Item{item("a", "9.99", 3), item("b", "0.10", 7)}, "street 1", "")
	if err != nil {
		t.Fatalf("NewOrder: %v", err)
	}
	if o.Status != StatusPending {
		t.Fatalf("status = %s", o.Status)
	}
	if !o.Items[0].Subtotal().Equal(decimal.RequireFromString("29.97")) {
		t.Fatalf("subtotal = %s", o.Items[0].Subtotal())
	}

	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	if !o.TotalAmount.Equal(sum) || !o.TotalAmount.Equal(decimal.RequireFromString("30.67")) {
		t.Fatalf("total = %s, sum = %s", o.TotalAmount, sum)
	}
}

func TestNewOrderValidation(t *testing.T) {
	cases := map[string][]Item{
		"no items":      nil,
		"zero quantity": {item("a", "1", 0)},
		"blank product": {item(" ", "1", 1)},
		"negative":      {item("a", "-1", 1)},
	}
	for name, items := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := NewOrder("u-1", Customer{}, items, "", ""); !errors.Is(err, apperr.ErrValidation) {
				t.Fatalf("expected validation failure, got %v", err)
			}
		})
	}
	if _, err := NewOrder("", Customer{}, []Item{item("a", "1", 1)}, "", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("missing user should fail, got %v", err)
	}
}

func TestStatusTransitions(t *testing.T) {
	all := []Status{StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}
	allowed := map[Status][]Status{
		StatusPending:    {StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
		StatusConfirmed:  {StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled},
		StatusProcessing: {StatusShipped, StatusDelivered, StatusCancelled},
		StatusShipped:    {StatusDelivered, StatusCancelled},
	}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}
			o := &Order{Status: from}
			err := o.TransitionTo(to)
			if want && err != nil {
				t.Fatalf("%s -> %s should be allowed: %v", from, to, err)
			}
			if !want {
				if !errors.Is(err, apperr.ErrInvalidStatusTransition) {
					t.Fatalf("%s -> %s: expected invalid transition, got %v", from, to, err)
				}
				if o.Status != from {
					t.Fatalf("%s -> %s: status changed on rejected transition", from, to)
				}
			}
		}
	}
}

func TestTerminalStatesRejectEverything(t *testing.T) {
	for _, terminal := range []Status{StatusDelivered, StatusCancelled} {
		o := &Order{Status: terminal}
		if err := o.TransitionTo(StatusCancelled); !errors.Is(err, ErrInvalidStatusTransition) {
			t.Fatalf("cancel from %s: %v", terminal, err)
		}
	}
}

func TestStatusSkipsForwardButNeverBack(t *testing.T) {
	o := &Order{Status: StatusPending}
	if err := o.TransitionTo(StatusShipped); err != nil {
		t.Fatalf("PENDING -> SHIPPED: %v", err)
	}
	for _, back := range []Status{StatusPending, StatusConfirmed, StatusShipped} {
		if err := o.TransitionTo(back); !errors.Is(err, ErrInvalidStatusTransition) {
			t.Fatalf("SHIPPED -> %s: %v", back, err)
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" shipped "); err != nil || s != StatusShipped {
		t.Fatalf("ParseStatus = %s, %v", s, err)
	}
	if _, err := ParseStatus("LOST"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation failure, got %v", err)
	}
}
