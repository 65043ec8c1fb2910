package handler

import (
	"net/http"
	"time"

	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
)

// defaultUsageWindow is the look-back of the usage report when no range is given
const defaultUsageWindow = 30 * 24 * time.Hour

// ReportHandler handles summary and usage reports
type ReportHandler struct {
	service *service.InventoryService
	logger  *logger.Logger
}

// NewReportHandler creates a new report handler
func NewReportHandler(svc *service.InventoryService, log *logger.Logger) *ReportHandler {
	return &ReportHandler{
		service: svc,
		logger:  log,
	}
}

// Summary returns the stock overview of the caller's location
func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Summary(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, summary)
}

// Usage reports usage per herb over [from, to], the last 30 days by default
func (h *ReportHandler) Usage(w http.ResponseWriter, r *http.Request) {
	to := time.Now()
	from := to.Add(-defaultUsageWindow)

	if t, err := queryTime(r, "to", true); err != nil {
		httputil.Error(w, err)
		return
	} else if t != nil {
		to = *t
	}
	if t, err := queryTime(r, "from", false); err != nil {
		httputil.Error(w, err)
		return
	} else if t != nil {
		from = *t
	}

	stats, err := h.service.UsageAnalysis(r.Context(), from, to)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, stats)
}
