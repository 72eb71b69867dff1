// internal/service/order/domain/state.go
package domain

import (
	"strings"

	"nexus-commerce/internal/pkg/apperr"

	"github.com/pkg/errors"
)

// Status 定义了订单的生命周期状态
type Status string

const (
	StatusPending    Status = "PENDING"    // 已落库，库存预留中或已预留
	StatusConfirmed  Status = "CONFIRMED"  // 已确认
	StatusProcessing Status = "PROCESSING" // 备货中
	StatusShipped    Status = "SHIPPED"    // 已发货
	StatusDelivered  Status = "DELIVERED"  // 已签收 (终态)
	StatusCancelled  Status = "CANCELLED"  // 已取消 (终态)
)

// 正向流转的先后次序，允许跳级，不允许原地或回退
var rank = map[Status]int{
	StatusPending:    0,
	StatusConfirmed:  1,
	StatusProcessing: 2,
	StatusShipped:    3,
	StatusDelivered:  4,
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return st, nil
	}
	return "", apperr.Validation("unknown order status %q", s)
}

func (s Status) IsTerminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

// CanTransitionTo 报告状态机是否允许 s -> next。
// 终态拒绝一切流转；CANCELLED 可由任意非终态到达。
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusCancelled {
		return true
	}
	to, ok := rank[next]
	return ok && to > rank[s]
}

func transitionError(from, to Status) error {
	return errors.Wrapf(ErrInvalidStatusTransition, "%s -> %s", from, to)
}
