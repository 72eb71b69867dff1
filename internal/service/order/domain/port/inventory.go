package port

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductSnapshot 是下单时从库存服务读取到的商品信息。
type ProductSnapshot struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stock  int
	Status string
}

// Available 判断快照是否能满足 quantity，最终以预留调用的结果为准。
func (p ProductSnapshot) Available(quantity int) bool {
	return p.Status != "OUT_OF_STOCK" && p.Stock >= quantity
}

// InventoryGateway 是订单侧访问库存台账的出站端口。
//
// 错误约定:
//   - apperr.ErrNotFound: 商品不存在
//   - apperr.ErrInsufficientStock: 库存不足
//   - apperr.ErrUnreachable: 网络错误、超时、熔断或远端校验失败
//
// 修改库存的调用必须显式传入调用方凭证，网关自身不签发凭证。
type InventoryGateway interface {
	FetchProduct(ctx context.Context, productID string) (*ProductSnapshot, error)
	ReserveStock(ctx context.Context, credential, productID string, quantity int) error
	ReleaseStock(ctx context.Context, credential, productID string, quantity int) error
}
