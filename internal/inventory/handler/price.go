package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// PriceHandler handles price history endpoints
type PriceHandler struct {
	service *service.PriceService
	logger  *logger.Logger
}

// NewPriceHandler creates a new price handler
func NewPriceHandler(svc *service.PriceService, log *logger.Logger) *PriceHandler {
	return &PriceHandler{
		service: svc,
		logger:  log,
	}
}

// RecordPriceRequest is the body of POST /prices
type RecordPriceRequest struct {
	HerbID     string          `json:"herb_id" validate:"required"`
	SupplierID *string         `json:"supplier_id"`
	Price      decimal.Decimal `json:"price" validate:"gt=0"`
	Source     *string         `json:"source" validate:"omitempty,max=100"`
}

// Record appends an observed price
func (h *PriceHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordPriceRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	rec, err := h.service.RecordPrice(r.Context(), service.RecordPriceRequest{
		HerbID:     req.HerbID,
		SupplierID: req.SupplierID,
		Price:      req.Price,
		Source:     req.Source,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, rec)
}

// Compare lines up suppliers of a herb
func (h *PriceHandler) Compare(w http.ResponseWriter, r *http.Request) {
	cmp, err := h.service.Compare(r.Context(), chi.URLParam(r, "herbId"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, cmp)
}

// History lists a herb's prices, oldest first
func (h *PriceHandler) History(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	history, err := h.service.History(r.Context(), chi.URLParam(r, "herbId"), queryString(r, "supplier_id"), days)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, history)
}
