// Package contract 定义订单服务与通知服务之间的事件格式。
package contract

import (
	"encoding/json"
	"time"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func init() {
	// 金额以 JSON number 传输
	decimal.MarshalJSONWithoutQuotes = true
}

type EventType string

const (
	EventOrderCreated    EventType = "ORDER_CREATED"
	EventOrderUpdated    EventType = "ORDER_UPDATED"
	EventOrderCancelled  EventType = "ORDER_CANCELLED"
	EventOrderStockDrift EventType = "ORDER_STOCK_DRIFT"
)

// 库存漂移方向
const (
	DriftReserve = "RESERVE"
	DriftRelease = "RELEASE"
)

type OrderEventItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// DriftItem 描述订单已落库但库存调整失败的一行。
type DriftItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Direction string `json:"direction"`
	Reason    string `json:"reason"`
	Message   string `json:"message,omitempty"`
}

// OrderEvent 是 order-events topic 上的消息体，key 为订单 ID。
type OrderEvent struct {
	EventID     string           `json:"eventId"`
	EventType   EventType        `json:"eventType"`
	OrderID     string           `json:"orderId"`
	UserID      string           `json:"userId"`
	UserEmail   string           `json:"userEmail"`
	Username    string           `json:"username"`
	Status      string           `json:"status"`
	TotalAmount decimal.Decimal  `json:"totalAmount"`
	CreatedAt   time.Time        `json:"createdAt"`
	UpdatedAt   time.Time        `json:"updatedAt"`
	OccurredAt  time.Time        `json:"occurredAt"`
	Items       []OrderEventItem `json:"items"`
	DriftItems  []DriftItem      `json:"driftItems,omitempty"`
}

func (e *OrderEvent) Encode() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal order event")
	}
	return b, nil
}

// DecodeOrderEvent 解析消息体。无法解析或缺少订单号/事件类型的消息视为不可恢复，
// 重投也不会成功。未知的事件类型会原样保留，由消费端走默认分支。
func DecodeOrderEvent(b []byte) (*OrderEvent, error) {
	var e OrderEvent
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, errors.Wrap(apperr.ErrUnrecoverable, err.Error())
	}
	if e.OrderID == "" {
		return nil, errors.WithMessage(apperr.ErrUnrecoverable, "order event has no orderId")
	}
	if e.EventType == "" {
		return nil, errors.WithMessage(apperr.ErrUnrecoverable, "order event has no eventType")
	}
	return &e, nil
}
