package interfaces

import (
	"encoding/json"
	"net/http"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/logger"
	"nexus-commerce/internal/pkg/validation"
	"nexus-commerce/internal/pkg/web"
	"nexus-commerce/internal/service/order/application"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OrderHandler 封装了 order 服务的 HTTP 处理器，所有接口都要求 Bearer JWT。
type OrderHandler struct {
	service  *application.OrderApplicationService
	verifier *auth.Verifier
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService, verifier *auth.Verifier) *OrderHandler {
	return &OrderHandler{service: service, verifier: verifier}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("POST /api/orders", h.secured(h.createOrder))
	mux.Handle("GET /api/orders", h.secured(h.listOrders))
	mux.Handle("GET /api/orders/{id}", h.secured(h.getOrder))
	mux.Handle("PATCH /api/orders/{id}/status", h.secured(h.updateStatus))
	mux.Handle("DELETE /api/orders/{id}", h.secured(h.cancelOrder))
}

type principalHandler func(w http.ResponseWriter, r *http.Request, p *auth.Principal)

func (h *OrderHandler) secured(fn principalHandler) http.Handler {
	return h.verifier.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := auth.FromContext(r.Context())
		if !ok {
			web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrUnauthorized, "missing principal"))
			return
		}
		trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("user.id", p.UserID))
		fn(w, r, p)
	}))
}

func (h *OrderHandler) createOrder(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req application.CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.WriteError(r.Context(), w, apperr.Validation("invalid request body"))
		return
	}
	if err := validation.Struct(&req); err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}

	order, err := h.service.CreateOrder(r.Context(), p, &req)
	if err != nil {
		logger.Ctx(r.Context()).Warn().Err(err).Str("user_id", p.UserID).Msg("Order creation rejected")
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, application.ToOrderResponse(order))
}

// listOrders 处理 GET /api/orders?status=PENDING&userId=...
func (h *OrderHandler) listOrders(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	q := r.URL.Query()
	orders, err := h.service.ListOrders(r.Context(), p, q.Get("userId"), q.Get("status"))
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToOrderResponses(orders))
}

func (h *OrderHandler) getOrder(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	order, err := h.service.GetOrder(r.Context(), p, r.PathValue("id"))
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) updateStatus(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	var req application.UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.WriteError(r.Context(), w, apperr.Validation("invalid request body"))
		return
	}
	if err := validation.Struct(&req); err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), p, r.PathValue("id"), req.Status)
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToOrderResponse(order))
}

func (h *OrderHandler) cancelOrder(w http.ResponseWriter, r *http.Request, p *auth.Principal) {
	order, err := h.service.CancelOrder(r.Context(), p, r.PathValue("id"))
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToOrderResponse(order))
}
