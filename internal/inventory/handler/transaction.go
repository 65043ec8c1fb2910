package handler

import (
	"net/http"

	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
	"github.com/shopspring/decimal"
)

// TransactionHandler handles ledger endpoints
type TransactionHandler struct {
	recorder  *service.Recorder
	inventory *service.InventoryService
	logger    *logger.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(recorder *service.Recorder, inventory *service.InventoryService, log *logger.Logger) *TransactionHandler {
	return &TransactionHandler{
		recorder:  recorder,
		inventory: inventory,
		logger:    log,
	}
}

// RecordTransactionRequest is the body of POST /transactions
type RecordTransactionRequest struct {
	ItemID         string           `json:"item_id" validate:"required,uuid"`
	Kind           string           `json:"kind" validate:"required"`
	Quantity       decimal.Decimal  `json:"quantity"`
	UnitPrice      *decimal.Decimal `json:"unit_price"`
	Note           *string          `json:"note" validate:"omitempty,max=500"`
	PrescriptionID *string          `json:"prescription_id"`
}

// Record books one stock movement
func (h *TransactionHandler) Record(w http.ResponseWriter, r *http.Request) {
	var req RecordTransactionRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.Error(w, err)
		return
	}
	if err := httputil.Validate(req); err != nil {
		httputil.Error(w, err)
		return
	}

	kind, err := domain.ParseTransactionKind(req.Kind)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	entry, err := h.recorder.Record(r.Context(), service.RecordRequest{
		ItemID:         req.ItemID,
		Kind:           kind,
		Quantity:       req.Quantity,
		UnitPrice:      req.UnitPrice,
		Note:           req.Note,
		PrescriptionID: req.PrescriptionID,
	})
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.Created(w, entry)
}

// List lists ledger entries, newest first
func (h *TransactionHandler) List(w http.ResponseWriter, r *http.Request) {
	page, perPage := httputil.Pagination(r)

	filter := domain.TransactionFilter{
		ItemID: r.URL.Query().Get("item_id"),
		Limit:  perPage,
		Offset: (page - 1) * perPage,
	}
	if raw := r.URL.Query().Get("kind"); raw != "" {
		kind, err := domain.ParseTransactionKind(raw)
		if err != nil {
			httputil.Error(w, err)
			return
		}
		filter.Kind = kind
	}

	var err error
	if filter.From, err = queryTime(r, "from", false); err != nil {
		httputil.Error(w, err)
		return
	}
	if filter.To, err = queryTime(r, "to", true); err != nil {
		httputil.Error(w, err)
		return
	}

	entries, err := h.inventory.ListTransactions(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSONWithMeta(w, http.StatusOK, entries, &httputil.Meta{Page: page, PerPage: perPage})
}
