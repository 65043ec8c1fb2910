package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/herbstock/herbstock-backend/internal/inventory/domain"
	"github.com/herbstock/herbstock-backend/internal/inventory/service"
	"github.com/herbstock/herbstock-backend/pkg/httputil"
	"github.com/herbstock/herbstock-backend/pkg/logger"
)

// AlertHandler handles alert endpoints
type AlertHandler struct {
	service *service.AlertService
	logger  *logger.Logger
}

// NewAlertHandler creates a new alert handler
func NewAlertHandler(svc *service.AlertService, log *logger.Logger) *AlertHandler {
	return &AlertHandler{
		service: svc,
		logger:  log,
	}
}

// List lists alerts, most severe first. Only open alerts unless all=true.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := domain.AlertFilter{
		UnresolvedOnly: !queryBool(r, "all"),
		ItemID:         r.URL.Query().Get("item_id"),
		Type:           domain.AlertType(r.URL.Query().Get("type")),
	}

	alerts, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alerts)
}

// Resolve resolves an alert in the caller's name
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	alert, err := h.service.Resolve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.Error(w, err)
		return
	}

	httputil.JSON(w, http.StatusOK, alert)
}

// Sweep re-evaluates every item of the caller's location now
func (h *AlertHandler) Sweep(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.SweepLocation(r.Context())
	if err != nil {
		httputil.Error(w, err)
		return
	}

	h.logger.Info().
		Int("items", result.Items).
		Int("alerts_raised", result.AlertsRaised).
		Msg("manual alert sweep finished")
	httputil.JSON(w, http.StatusOK, result)
}
