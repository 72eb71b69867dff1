package application

import (
	"context"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/metrics"
	"nexus-commerce/internal/service/inventory/domain"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type CreateProductRequest struct {
	ID       string          `json:"id" validate:"required,max=64"`
	Name     string          `json:"name" validate:"required,max=255"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"stock" validate:"min=0"`
}

// ProductResponse 是库存接口的响应体，订单侧的 InventoryGateway 依赖这些字段。
type ProductResponse struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Price  decimal.Decimal `json:"price"`
	Stock  int             `json:"stock"`
	Status string          `json:"status"`
}

func ToProductResponse(p *domain.Product) *ProductResponse {
	return &ProductResponse{
		ID:     p.ID,
		Name:   p.Name,
		Price:  p.Price,
		Stock:  p.Quantity,
		Status: string(p.Status),
	}
}

// InventoryService 是库存台账的应用服务。
type InventoryService struct {
	store  domain.StockStore
	tracer trace.Tracer
}

func NewInventoryService(store domain.StockStore, tracer trace.Tracer) *InventoryService {
	return &InventoryService{store: store, tracer: tracer}
}

func (s *InventoryService) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.String("product.id", productID))

	p, err := s.store.Get(ctx, productID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return p, nil
}

// AdjustStock 原子地增减库存，扣减不足时返回 InsufficientStock 且不修改记录。
func (s *InventoryService) AdjustStock(ctx context.Context, productID string, delta int, isAddition bool) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.AdjustStock")
	defer span.End()

	adj := domain.Adjustment{ProductID: productID, Delta: delta, IsAddition: isAddition}
	span.SetAttributes(
		attribute.String("product.id", productID),
		attribute.Int("stock.delta", delta),
		attribute.Bool("stock.is_addition", isAddition),
	)

	p, err := s.store.Adjust(ctx, adj)
	if err != nil {
		metrics.StockAdjustTotal.WithLabelValues(adj.Direction(), string(apperr.KindOf(err))).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "stock adjustment rejected")
		logger.Ctx(ctx).Warn().Err(err).
			Str("product_id", productID).
			Int("delta", delta).
			Bool("is_addition", isAddition).
			Msg("⚠️ Stock adjustment rejected")
		return nil, err
	}

	metrics.StockAdjustTotal.WithLabelValues(adj.Direction(), "ok").Inc()
	logger.Ctx(ctx).Info().
		Str("product_id", productID).
		Int("delta", adj.Signed()).
		Int("quantity", p.Quantity).
		Str("status", string(p.Status)).
		Msg("📦 Stock adjusted")
	return p, nil
}

func (s *InventoryService) CreateProduct(ctx context.Context, req *CreateProductRequest) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "inventory.CreateProduct")
	defer span.End()

	p, err := domain.NewProduct(req.ID, req.Name, req.Price, req.Quantity)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := s.store.Create(ctx, p); err != nil {
		span.RecordError(err)
		return nil, err
	}
	logger.Ctx(ctx).Info().Str("product_id", p.ID).Int("quantity", p.Quantity).Msg("✅ Product created")
	return p, nil
}
