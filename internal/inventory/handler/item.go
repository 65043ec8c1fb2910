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

// ItemHandler handles item endpoints
type ItemHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(svc *service.InventoryService, log *logger.Logger) *ItemHandler {
	return &ItemHandler{
		service: svc,
		logger:  log,
	}
}

// UpsertItemRequest is the body of POST /items
type UpsertItemRequest struct {
	HerbID          string           `json:"herb_id" validate:"required"`
	HerbName        *string          `json:"herb_name" validate:"omitempty,max=200"`
	SupplierID      *string          `json:"supplier_id"`
	Unit            *string          `json:"unit" validate:"omitempty,max=20"`
	MinStockLevel   *decimal.Decimal `json:"min_stock_level" validate:"omitempty,gte=0"`
	ReorderPoint    *decimal.Decimal `json:"reorder_point" validate:"omitempty,gte=0"`
	UnitPrice       *decimal.Decimal `json:"unit_price" validate:"omitempty,gte=0"`
	BatchNumber     *string          `json:"batch_number" validate:"omitempty,max=100"`
	StorageLocation *string          `json:"storage_location" validate:"omitempty,max=100"`
	ExpiryDate      *string          `json:"expiry_date" validate:"omitempty,datetime=2006-01-02"`
	Quantity        *decimal.Decimal `json:"quantity" validate:"omitempty,gte=0"`
}

// List lists items of the caller's location
func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListItems(r.Context(), service.ItemQuery{
		Keyword:      r.URL.Query().Get("keyword"),
		LowStockOnly: queryBool(r, "low_stock"),
		ExpiringOnly: queryBool(r, "expiring"),
		SupplierID:   r.URL.Query().Get("supplier_id"),
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, items)
}

// Get gets an item by ID
func (h *ItemHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	item, err := h.service.GetItem(r.Context(), id)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// Upsert creates the item stocking a herb, or updates it when it exists
func (h *ItemHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	attrs := domain.ItemAttributes{
		HerbName:        req.HerbName,
		SupplierID:      req.SupplierID,
		Unit:            req.Unit,
		MinStockLevel:   req.MinStockLevel,
		ReorderPoint:    req.ReorderPoint,
		UnitPrice:       req.UnitPrice,
		BatchNumber:     req.BatchNumber,
		StorageLocation: req.StorageLocation,
	}
	if req.ExpiryDate != nil {
		// validated above
		expiry, _ := time.Parse(time.DateOnly, *req.ExpiryDate)
		attrs.ExpiryDate = &expiry
	}

	item, err := h.service.UpsertItem(r.Context(), service.UpsertItemRequest{
		HerbID:     req.HerbID,
		Attributes: attrs,
		Quantity:   req.Quantity,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, item)
}

// VerifyLedger replays the item's ledger and reports whether it is intact
func (h *ItemHandler) VerifyLedger(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.VerifyLedger(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, report)
}
