package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/constants"
	"nexus-commerce/internal/pkg/contract"
	"nexus-commerce/internal/pkg/database"
	"nexus-commerce/internal/service/order/domain"
	"nexus-commerce/internal/service/order/domain/port"
	"nexus-commerce/internal/service/order/infrastructure"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeInventory struct {
	mu          sync.Mutex
	products    map[string]*port.ProductSnapshot
	fetchErr    error
	reserveErr  error
	releaseErr  error
	credentials []string
	releases    int
	// releaseDelay 拉长释放耗时，放大并发取消的竞争窗口
	releaseDelay time.Duration
}

func newFakeInventory() *fakeInventory {
	return &fakeInventory{products: map[string]*port.ProductSnapshot{
		"sku-1": {ID: "sku-1", Name: "Desk Lamp", Price: decimal.RequireFromString("25.00"), Stock: 5, Status: "AVAILABLE"},
		"sku-2": {ID: "sku-2", Name: "Bulb", Price: decimal.RequireFromString("3.50"), Stock: 10, Status: "AVAILABLE"},
	}}
}

func (f *fakeInventory) FetchProduct(_ context.Context, id string) (*port.ProductSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, errors.Wrap(apperr.ErrNotFound, id)
	}
	cp := *p
	return &cp, nil
}

func (f *fakeInventory) ReserveStock(_ context.Context, cred, id string, qty int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = append(f.credentials, cred)
	if f.reserveErr != nil {
		return f.reserveErr
	}
	p := f.products[id]
	if p.Stock < qty {
		return apperr.ErrInsufficientStock
	}
	p.Stock -= qty
	return nil
}

func (f *fakeInventory) ReleaseStock(_ context.Context, cred, id string, qty int) error {
	time.Sleep(f.releaseDelay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.credentials = append(f.credentials, cred)
	f.releases++
	if f.releaseErr != nil {
		return f.releaseErr
	}
	f.products[id].Stock += qty
	return nil
}

func (f *fakeInventory) stock(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.products[id].Stock
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*contract.OrderEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, e *contract.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	return nil
}

func (p *fakePublisher) types() []contract.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]contract.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.EventType)
	}
	return out
}

type fixture struct {
	svc  *OrderApplicationService
	inv  *fakeInventory
	pub  *fakePublisher
	repo domain.OrderRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.OpenInMemory(&infrastructure.OrderModel{}, &infrastructure.OrderItemModel{})
	if err != nil {
		t.Fatal(err)
	}
	repo := infrastructure.NewGormOrderRepository(db)
	inv := newFakeInventory()
	pub := &fakePublisher{}
	svc := NewOrderApplicationService(repo, noop.NewTracerProvider().Tracer("test"), inv, pub)
	return &fixture{svc: svc, inv: inv, pub: pub, repo: repo}
}

var (
	alice = &auth.Principal{UserID: "u-alice", Username: "alice", Email: "alice@example.com", Roles: []string{constants.RoleUser}, Token: "alice-token"}
	bob   = &auth.Principal{UserID: "u-bob", Username: "bob", Email: "bob@example.com", Roles: []string{constants.RoleUser}, Token: "bob-token"}
	admin = &auth.Principal{UserID: "u-admin", Username: "root", Roles: []string{constants.RoleAdmin}, Token: "admin-token"}
)

func orderOf(productID string, qty int) *CreateOrderRequest {
	return &CreateOrderRequest{
		Items:           []OrderItemRequest{{ProductID: productID, Quantity: qty}},
		ShippingAddress: "221B Baker St",
	}
}

func TestCreateAndCancelRestoresStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 3))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.Status != domain.StatusPending {
		t.Errorf("status = %s, want PENDING", order.Status)
	}
	if !order.TotalAmount.Equal(decimal.RequireFromString("75")) {
		t.Errorf("total = %s, want 75", order.TotalAmount)
	}
	if got := f.inv.stock("sku-1"); got != 2 {
		t.Fatalf("stock after create = %d, want 2", got)
	}

	cancelled, err := f.svc.CancelOrder(ctx, alice, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}
	if got := f.inv.stock("sku-1"); got != 5 {
		t.Fatalf("stock after cancel = %d, want 5", got)
	}

	types := f.pub.types()
	if len(types) != 2 || types[0] != contract.EventOrderCreated || types[1] != contract.EventOrderCancelled {
		t.Fatalf("events = %v", types)
	}
	for _, c := range f.inv.credentials {
		if c != "alice-token" {
			t.Errorf("credential %q was not the caller's token", c)
		}
	}

	created := f.pub.events[0]
	if created.UserEmail != "alice@example.com" || created.OrderID != order.ID || len(created.Items) != 1 {
		t.Errorf("created event = %+v", created)
	}
}

func TestCreateRejectsUnavailableProduct(t *testing.T) {
	cases := []struct {
		name string
		req  *CreateOrderRequest
	}{
		{"quantity above stock", orderOf("sku-1", 6)},
		{"unknown product", orderOf("sku-404", 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			_, err := f.svc.CreateOrder(context.Background(), alice, tc.req)
			if apperr.KindOf(err) != apperr.KindProductNotAvailable {
				t.Fatalf("expected PRODUCT_NOT_AVAILABLE, got %v", err)
			}
			orders, err := f.svc.ListOrders(context.Background(), alice, "", "")
			if err != nil {
				t.Fatal(err)
			}
			if len(orders) != 0 {
				t.Errorf("no order must be persisted, got %d", len(orders))
			}
			if len(f.pub.types()) != 0 {
				t.Errorf("no event must be published")
			}
		})
	}
}

func TestCreateFailsWhenInventoryUnreachable(t *testing.T) {
	f := newFixture(t)
	f.inv.fetchErr = errors.Wrap(apperr.ErrUnreachable, "connection refused")

	_, err := f.svc.CreateOrder(context.Background(), alice, orderOf("sku-1", 1))
	if !errors.Is(err, apperr.ErrUnreachable) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	orders, _ := f.repo.FindByUser(context.Background(), alice.UserID, nil)
	if len(orders) != 0 {
		t.Errorf("nothing may be persisted when lookup fails")
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	cases := []*CreateOrderRequest{
		{},
		{Items: []OrderItemRequest{{ProductID: "sku-1", Quantity: 0}}},
		{Items: []OrderItemRequest{{ProductID: "", Quantity: 1}}},
		{Items: []OrderItemRequest{{ProductID: "   ", Quantity: 1}}},
	}
	for i, req := range cases {
		_, err := f.svc.CreateOrder(context.Background(), alice, req)
		if apperr.KindOf(err) != apperr.KindValidation {
			t.Errorf("case %d: expected validation failure, got %v", i, err)
		}
	}
}

func TestCreateReportsReservationDrift(t *testing.T) {
	f := newFixture(t)
	f.inv.reserveErr = errors.Wrap(apperr.ErrUnreachable, "timeout")

	order, err := f.svc.CreateOrder(context.Background(), alice, &CreateOrderRequest{
		Items: []OrderItemRequest{{ProductID: "sku-1", Quantity: 1}, {ProductID: "sku-2", Quantity: 2}},
	})
	if err != nil {
		t.Fatalf("create must still succeed: %v", err)
	}
	if order.ID == "" {
		t.Fatal("order must be persisted")
	}

	types := f.pub.types()
	if len(types) != 2 || types[0] != contract.EventOrderCreated || types[1] != contract.EventOrderStockDrift {
		t.Fatalf("events = %v", types)
	}
	drift := f.pub.events[1].DriftItems
	if len(drift) != 2 {
		t.Fatalf("drift items = %+v", drift)
	}
	for _, d := range drift {
		if d.Direction != contract.DriftReserve || d.Reason != string(apperr.KindUnreachable) {
			t.Errorf("unexpected drift item %+v", d)
		}
	}
}

func TestCreateSucceedsWhenPublishFails(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("broker down")

	if _, err := f.svc.CreateOrder(context.Background(), alice, orderOf("sku-1", 1)); err != nil {
		t.Fatalf("publish failure must not fail the order: %v", err)
	}
	if got := f.inv.stock("sku-1"); got != 4 {
		t.Errorf("stock = %d, want 4", got)
	}
}

func TestCancelAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 2))
	if err != nil {
		t.Fatal(err)
	}

	_, err = f.svc.CancelOrder(ctx, bob, order.ID)
	if apperr.KindOf(err) != apperr.KindForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	if f.inv.releases != 0 {
		t.Errorf("forbidden cancel must not touch stock")
	}

	if _, err := f.svc.CancelOrder(ctx, admin, order.ID); err != nil {
		t.Fatalf("admin cancel: %v", err)
	}

	_, err = f.svc.CancelOrder(ctx, alice, "missing")
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestCancelTerminalOrderLeavesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 3))
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range []domain.Status{domain.StatusConfirmed, domain.StatusProcessing, domain.StatusShipped, domain.StatusDelivered} {
		if _, err := f.svc.UpdateStatus(ctx, admin, order.ID, string(st)); err != nil {
			t.Fatalf("advance to %s: %v", st, err)
		}
	}

	_, err = f.svc.CancelOrder(ctx, alice, order.ID)
	if apperr.KindOf(err) != apperr.KindInvalidStatusTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if f.inv.releases != 0 || f.inv.stock("sku-1") != 2 {
		t.Errorf("stock touched: releases=%d stock=%d", f.inv.releases, f.inv.stock("sku-1"))
	}
}

func TestCancelReportsReleaseDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, &CreateOrderRequest{
		Items: []OrderItemRequest{{ProductID: "sku-1", Quantity: 1}, {ProductID: "sku-2", Quantity: 1}},
	})
	if err != nil {
		t.Fatal(err)
	}
	f.inv.releaseErr = errors.Wrap(apperr.ErrUnreachable, "503")

	cancelled, err := f.svc.CancelOrder(ctx, alice, order.ID)
	if err != nil {
		t.Fatalf("cancel must still succeed: %v", err)
	}
	if cancelled.Status != domain.StatusCancelled {
		t.Errorf("status = %s", cancelled.Status)
	}
	if f.inv.releases != 2 {
		t.Errorf("each line must be attempted, releases = %d", f.inv.releases)
	}

	types := f.pub.types()
	last := f.pub.events[len(types)-1]
	if last.EventType != contract.EventOrderStockDrift || len(last.DriftItems) != 2 {
		t.Fatalf("events = %v, last = %+v", types, last)
	}
	if last.DriftItems[0].Direction != contract.DriftRelease {
		t.Errorf("direction = %s", last.DriftItems[0].Direction)
	}
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 1))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.UpdateStatus(ctx, alice, order.ID, "CONFIRMED"); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("non-admin: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, order.ID, "CANCELLED"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("cancel via update: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, order.ID, "bogus"); apperr.KindOf(err) != apperr.KindValidation {
		t.Errorf("unknown status: %v", err)
	}

	updated, err := f.svc.UpdateStatus(ctx, admin, order.ID, "confirmed")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.StatusConfirmed {
		t.Errorf("status = %s", updated.Status)
	}
	types := f.pub.types()
	if types[len(types)-1] != contract.EventOrderUpdated {
		t.Errorf("events = %v", types)
	}

	stored, err := f.svc.GetOrder(ctx, alice, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.StatusConfirmed {
		t.Errorf("stored status = %s", stored.Status)
	}

	if _, err := f.svc.UpdateStatus(ctx, admin, order.ID, "PENDING"); apperr.KindOf(err) != apperr.KindInvalidStatusTransition {
		t.Errorf("moving back: %v", err)
	}
	if _, err := f.svc.UpdateStatus(ctx, admin, order.ID, "CONFIRMED"); apperr.KindOf(err) != apperr.KindInvalidStatusTransition {
		t.Errorf("same status: %v", err)
	}
	shipped, err := f.svc.UpdateStatus(ctx, admin, order.ID, "SHIPPED")
	if err != nil {
		t.Fatalf("skipping PROCESSING: %v", err)
	}
	if shipped.Status != domain.StatusShipped {
		t.Errorf("status = %s", shipped.Status)
	}
}

func TestConcurrentCancelReleasesStockOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 3))
	if err != nil {
		t.Fatal(err)
	}
	f.inv.releaseDelay = 100 * time.Millisecond

	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.CancelOrder(ctx, alice, order.ID)
		}(i)
	}
	close(start)
	wg.Wait()

	var succeeded, rejected int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case apperr.KindOf(err) == apperr.KindInvalidStatusTransition:
			rejected++
		default:
			t.Errorf("unexpected cancel error: %v", err)
		}
	}
	if succeeded != 1 || rejected != 1 {
		t.Fatalf("cancel errs = %v", errs)
	}
	if f.inv.releases != 1 {
		t.Errorf("releases = %d, want 1", f.inv.releases)
	}
	if got := f.inv.stock("sku-1"); got != 5 {
		t.Errorf("stock = %d, want 5", got)
	}

	var cancelEvents int
	for _, et := range f.pub.types() {
		if et == contract.EventOrderCancelled {
			cancelEvents++
		}
	}
	if cancelEvents != 1 {
		t.Errorf("ORDER_CANCELLED events = %d, want 1", cancelEvents)
	}
}

// racingRepo 在 UpdateStatus 读出订单之后、认领之前插入一次并发操作
type racingRepo struct {
	domain.OrderRepository
	once sync.Once
	race func()
}

func (r *racingRepo) FindByIDWithItems(ctx context.Context, id string) (*domain.Order, error) {
	o, err := r.OrderRepository.FindByIDWithItems(ctx, id)
	r.once.Do(r.race)
	return o, err
}

func TestUpdateStatusLosesToConcurrentCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-1", 2))
	if err != nil {
		t.Fatal(err)
	}

	racing := &racingRepo{OrderRepository: f.repo, race: func() {
		if _, err := f.svc.CancelOrder(ctx, alice, order.ID); err != nil {
			t.Errorf("cancel: %v", err)
		}
	}}
	adminSvc := NewOrderApplicationService(racing, noop.NewTracerProvider().Tracer("test"), f.inv, f.pub)

	_, err = adminSvc.UpdateStatus(ctx, admin, order.ID, "SHIPPED")
	if apperr.KindOf(err) != apperr.KindInvalidStatusTransition {
		t.Fatalf("expected invalid transition, got %v", err)
	}

	stored, err := f.repo.FindByID(ctx, order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.StatusCancelled {
		t.Errorf("stored status = %s, want CANCELLED", stored.Status)
	}
	types := f.pub.types()
	if types[len(types)-1] != contract.EventOrderCancelled {
		t.Errorf("events = %v", types)
	}
}

func TestGetAndListOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order, err := f.svc.CreateOrder(ctx, alice, orderOf("sku-2", 1))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := f.svc.GetOrder(ctx, bob, order.ID); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("bob get: %v", err)
	}
	if _, err := f.svc.GetOrder(ctx, admin, order.ID); err != nil {
		t.Errorf("admin get: %v", err)
	}

	mine, err := f.svc.ListOrders(ctx, bob, "", "")
	if err != nil || len(mine) != 0 {
		t.Errorf("bob list = %d, %v", len(mine), err)
	}
	if _, err := f.svc.ListOrders(ctx, bob, alice.UserID, ""); apperr.KindOf(err) != apperr.KindForbidden {
		t.Errorf("bob listing alice: %v", err)
	}
	theirs, err := f.svc.ListOrders(ctx, admin, alice.UserID, "PENDING")
	if err != nil || len(theirs) != 1 {
		t.Errorf("admin list = %d, %v", len(theirs), err)
	}
}
