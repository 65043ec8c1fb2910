package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// OrderHandler handles purchase order endpoints
type OrderHandler struct {
	service *service.OrderService
	logger  *logger.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(svc *service.OrderService, log *logger.Logger) *OrderHandler {
	return &OrderHandler{
		service: svc,
		logger:  log,
	}
}

// OrderLineRequest is one line of a new order
type OrderLineRequest struct {
	HerbID    string          `json:"herb_id" validate:"required"`
	HerbName  *string         `json:"herb_name" validate:"omitempty,max=200"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
	Unit      string          `json:"unit" validate:"omitempty,max=20"`
	UnitPrice decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// CreateOrderRequest is the body of POST /orders
type CreateOrderRequest struct {
	SupplierID   *string            `json:"supplier_id"`
	Lines        []OrderLineRequest `json:"lines" validate:"required,min=1,dive"`
	ShippingFee  decimal.Decimal    `json:"shipping_fee" validate:"gte=0"`
	Discount     decimal.Decimal    `json:"discount" validate:"gte=0"`
	ExpectedDate *string            `json:"expected_date" validate:"omitempty,datetime=2006-01-02"`
	Notes        *string            `json:"notes" validate:"omitempty,max=1000"`
}

// UpdateStatusRequest is the body of PUT /orders/{id}/status
type UpdateStatusRequest struct {
	Status string `json:"status" validate:"required"`
}

// Create creates a draft order
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	lines := make([]domain.OrderLine, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = domain.OrderLine{
			HerbID:    l.HerbID,
			HerbName:  l.HerbName,
			Quantity:  l.Quantity,
			Unit:      l.Unit,
			UnitPrice: l.UnitPrice,
		}
	}

	in := service.CreateOrderRequest{
		SupplierID:  req.SupplierID,
		Lines:       lines,
		ShippingFee: req.ShippingFee,
		Discount:    req.Discount,
		Notes:       req.Notes,
	}
	if req.ExpectedDate != nil {
		expected, _ := time.Parse(time.DateOnly, *req.ExpectedDate)
		in.ExpectedDate = &expected
	}

	order, err := h.service.Create(r.Context(), in)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, order)
}

// List lists orders, newest first
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := domain.OrderFilter{Limit: perPage, Offset: (page - 1) * perPage}
	if raw := r.URL.Query().Get("status"); raw != "" {
		status, err := domain.ParseOrderStatus(raw)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		filter.Status = status
	}

	orders, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, orders, &httputil.Meta{Page: page, PerPage: perPage})
}

// Get gets an order by ID
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// UpdateStatus moves an order forward or cancels it
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	status, err := domain.ParseOrderStatus(req.Status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	order, err := h.service.UpdateStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}

// Receive books the order into stock
func (h *OrderHandler) Receive(w http.ResponseWriter, r *http.Request) {
	order, err := h.service.Receive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, order)
}
