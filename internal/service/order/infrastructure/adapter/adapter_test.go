package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/httpclient"
	"nexus-commerce/internal/pkg/mq"

	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
)

func newGateway(t *testing.T, h http.HandlerFunc, cfg InventoryGatewayConfig) *InventoryHTTPAdapter {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	client := httpclient.NewClient(noop.NewTracerProvider().Tracer("test"),
		httpclient.StaticResolver{constants.InventoryService: srv.URL})
	return NewInventoryHTTPAdapter(client, cfg)
}

func TestInventoryAdapter_FetchProduct(t *testing.T) {
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/products/sku-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`{"id":"sku-1","name":"Lamp","price":12.5,"stock":4,"status":"AVAILABLE"}`))
	}, InventoryGatewayConfig{})

	p, err := gw.FetchProduct(context.Background(), "sku-1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if p.Name != "Lamp" || p.Stock != 4 || !p.Price.Equal(decimal.RequireFromString("12.5")) {
		t.Fatalf("unexpected snapshot %+v", p)
	}
	if !p.Available(4) || p.Available(5) {
		t.Errorf("availability check wrong for stock %d", p.Stock)
	}
}

func TestInventoryAdapter_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, apperr.ErrNotFound},
		{"conflict", http.StatusConflict, apperr.ErrInsufficientStock},
		{"unauthorized", http.StatusUnauthorized, apperr.ErrUnreachable},
		{"bad request", http.StatusBadRequest, apperr.ErrUnreachable},
		{"server error", http.StatusInternalServerError, apperr.ErrUnreachable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":"X","message":"boom"}`))
			}, InventoryGatewayConfig{MaxRetries: 0})

			err := gw.ReserveStock(context.Background(), "tok", "sku-1", 1)
			if !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestInventoryAdapter_ReserveAndReleaseQuery(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery+" "+r.Header.Get("Authorization"))
		mu.Unlock()
		_, _ = w.Write([]byte(`{}`))
	}, InventoryGatewayConfig{})

	ctx := context.Background()
	if err := gw.ReserveStock(ctx, "tok", "sku-1", 3); err != nil {
		t.Fatal(err)
	}
	if err := gw.ReleaseStock(ctx, "tok", "sku-1", 3); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"PATCH /api/products/sku-1/stock?isAddition=false&quantity=3 Bearer tok",
		"PATCH /api/products/sku-1/stock?isAddition=true&quantity=3 Bearer tok",
	}
	if len(seen) != 2 || seen[0] != want[0] || seen[1] != want[1] {
		t.Fatalf("requests = %v", seen)
	}
}

func TestInventoryAdapter_RetriesOnlyReads(t *testing.T) {
	var gets, patches atomic.Int32
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			if gets.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			_, _ = w.Write([]byte(`{"id":"sku-1","stock":1,"status":"AVAILABLE"}`))
			return
		}
		patches.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, InventoryGatewayConfig{MaxRetries: 2, RetryBackoff: time.Millisecond, BreakerFailures: 100})

	if _, err := gw.FetchProduct(context.Background(), "sku-1"); err != nil {
		t.Fatalf("fetch should succeed on third attempt: %v", err)
	}
	if gets.Load() != 3 {
		t.Errorf("gets = %d, want 3", gets.Load())
	}

	if err := gw.ReserveStock(context.Background(), "tok", "sku-1", 1); !errors.Is(err, apperr.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if patches.Load() != 1 {
		t.Errorf("mutations must not be retried, patches = %d", patches.Load())
	}
}

func TestInventoryAdapter_BreakerOpensOnUnreachableOnly(t *testing.T) {
	var calls atomic.Int32
	var fail atomic.Bool
	gw := newGateway(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if fail.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusConflict)
	}, InventoryGatewayConfig{BreakerFailures: 2, BreakerOpenFor: time.Minute})

	ctx := context.Background()
	// 业务拒绝不计入熔断
	for i := 0; i < 5; i++ {
		if err := gw.ReserveStock(ctx, "tok", "sku-1", 1); !errors.Is(err, apperr.ErrInsufficientStock) {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	fail.Store(true)
	for i := 0; i < 2; i++ {
		_ = gw.ReserveStock(ctx, "tok", "sku-1", 1)
	}
	before := calls.Load()
	err := gw.ReserveStock(ctx, "tok", "sku-1", 1)
	if !errors.Is(err, apperr.ErrUnreachable) {
		t.Fatalf("expected unreachable from open breaker, got %v", err)
	}
	if calls.Load() != before {
		t.Errorf("open breaker should short-circuit the request")
	}
}

type recordingWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestOrderEventKafkaAdapter_Publish(t *testing.T) {
	w := &recordingWriter{}
	pub := NewOrderEventKafkaAdapter(w, time.Second)

	ev := &contract.OrderEvent{EventID: "e-1", EventType: contract.EventOrderCreated, OrderID: "o-1", Status: "PENDING"}
	if err := pub.Publish(context.Background(), ev); err != nil {
		t.Fatal(err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "o-1" {
		t.Errorf("key = %q, want order id", msg.Key)
	}
	if got := mq.HeaderValue(msg.Headers, headerEventType); got != string(contract.EventOrderCreated) {
		t.Errorf("eventType header = %q", got)
	}
	decoded, err := contract.DecodeOrderEvent(msg.Value)
	if err != nil {
		t.Fatal(err)
	}
	if decoded.EventID != "e-1" {
		t.Errorf("decoded %+v", decoded)
	}
}

func TestOrderEventKafkaAdapter_PublishError(t *testing.T) {
	w := &recordingWriter{err: errors.New("broker down")}
	pub := NewOrderEventKafkaAdapter(w, time.Second)
	err := pub.Publish(context.Background(), &contract.OrderEvent{EventType: contract.EventOrderUpdated, OrderID: "o-1"})
	if err == nil {
		t.Fatal("expected error")
	}
}
