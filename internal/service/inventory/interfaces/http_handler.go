package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"nexus-commerce/internal/pkg/apperr"
	"nexus-commerce/internal/pkg/auth"
	"nexus-commerce/internal/pkg/validation"
	"nexus-commerce/internal/pkg/web"
	"nexus-commerce/internal/service/inventory/application"

	"github.com/pkg/errors"
)

// InventoryHandler 暴露库存台账的 HTTP 接口。
type InventoryHandler struct {
	service  *application.InventoryService
	verifier *auth.Verifier
}

func NewInventoryHandler(service *application.InventoryService, verifier *auth.Verifier) *InventoryHandler {
	return &InventoryHandler{service: service, verifier: verifier}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *InventoryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/products/{id}", h.getProduct)
	mux.Handle("PATCH /api/products/{id}/stock", h.verifier.Middleware(http.HandlerFunc(h.adjustStock)))
	mux.Handle("POST /api/products", h.verifier.Middleware(http.HandlerFunc(h.createProduct)))
}

func (h *InventoryHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.service.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToProductResponse(p))
}

// adjustStock 处理 PATCH /api/products/{id}/stock?quantity=3&isAddition=false
func (h *InventoryHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	quantity, err := strconv.Atoi(q.Get("quantity"))
	if err != nil {
		web.WriteError(r.Context(), w, apperr.Validation("quantity must be an integer"))
		return
	}
	isAddition := false
	if raw := q.Get("isAddition"); raw != "" {
		if isAddition, err = strconv.ParseBool(raw); err != nil {
			web.WriteError(r.Context(), w, apperr.Validation("isAddition must be a boolean"))
			return
		}
	}

	p, err := h.service.AdjustStock(r.Context(), r.PathValue("id"), quantity, isAddition)
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusOK, application.ToProductResponse(p))
}

func (h *InventoryHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.FromContext(r.Context())
	if principal == nil || !principal.IsAdmin() {
		web.WriteError(r.Context(), w, errors.WithMessage(apperr.ErrForbidden, "only administrators may create products"))
		return
	}

	var req application.CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		web.WriteError(r.Context(), w, apperr.Validation("invalid request body"))
		return
	}
	if err := validation.Struct(&req); err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}

	p, err := h.service.CreateProduct(r.Context(), &req)
	if err != nil {
		web.WriteError(r.Context(), w, err)
		return
	}
	web.WriteJSON(w, http.StatusCreated, application.ToProductResponse(p))
}
