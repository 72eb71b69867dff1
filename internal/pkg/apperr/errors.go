// Package apperr 定义了跨服务共享的错误分类。
// 各领域包用 errors.WithMessage 包装这里的哨兵错误，调用方通过 errors.Is 判断类别。
package apperr

import (
	"net/http"

	"github.com/pkg/errors"
)

// Kind 是稳定的错误类别，会原样出现在 HTTP 错误响应体中。
type Kind string

const (
	KindNotFound                Kind = "NOT_FOUND"
	KindValidation              Kind = "VALIDATION_FAILURE"
	KindInsufficientStock       Kind = "INSUFFICIENT_STOCK"
	KindProductNotAvailable     Kind = "PRODUCT_NOT_AVAILABLE"
	KindInvalidStatusTransition Kind = "INVALID_STATUS_TRANSITION"
	KindForbidden               Kind = "FORBIDDEN"
	KindUnauthorized            Kind = "UNAUTHORIZED"
	KindUnreachable             Kind = "UNREACHABLE"
	KindUnrecoverable           Kind = "UNRECOVERABLE"
	KindInternal                Kind = "INTERNAL"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrValidation              = errors.New("validation failure")
	ErrInsufficientStock       = errors.New("insufficient stock")
	ErrProductNotAvailable     = errors.New("product not available")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrForbidden               = errors.New("forbidden")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrUnreachable             = errors.New("remote dependency unreachable")
	ErrUnrecoverable           = errors.New("unrecoverable message")
)

// 顺序有意义: ProductNotAvailable 可能包装 InsufficientStock，需要先匹配。
var kinds = []struct {
	err    error
	kind   Kind
	status int
}{
	{ErrProductNotAvailable, KindProductNotAvailable, http.StatusConflict},
	{ErrNotFound, KindNotFound, http.StatusNotFound},
	{ErrValidation, KindValidation, http.StatusBadRequest},
	{ErrInsufficientStock, KindInsufficientStock, http.StatusConflict},
	{ErrInvalidStatusTransition, KindInvalidStatusTransition, http.StatusConflict},
	{ErrForbidden, KindForbidden, http.StatusForbidden},
	{ErrUnauthorized, KindUnauthorized, http.StatusUnauthorized},
	{ErrUnreachable, KindUnreachable, http.StatusServiceUnavailable},
	{ErrUnrecoverable, KindUnrecoverable, http.StatusInternalServerError},
}

// KindOf 返回错误链中第一个可识别的类别，无法识别时为 KindInternal。
func KindOf(err error) Kind {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// HTTPStatus 把错误映射为 HTTP 状态码。
func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Validation 构造一个带说明的校验错误。
func Validation(format string, args ...interface{}) error {
	return errors.Wrapf(ErrValidation, format, args...)
}
