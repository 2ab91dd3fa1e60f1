package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"outbreakwatch/internal/core"
	"outbreakwatch/internal/types"
)

// AlertAdmin is the alert administration contract used by AlertHandler.
type AlertAdmin interface {
	List(ctx context.Context, filter types.AlertFilter) ([]types.Alert, error)
	Resolve(ctx context.Context, id string) (*types.Alert, error)
}

// AlertHandler lists and resolves outbreak alerts.
type AlertHandler struct {
	service   AlertAdmin
	validator *core.Validator
	logger    *slog.Logger

	// requireOperator guards resolution. Nil leaves the route open.
	requireOperator func(http.Handler) http.Handler
}

// NewAlertHandler creates an AlertHandler. requireOperator is typically
// Server.RequireOperator.
func NewAlertHandler(svc AlertAdmin, val *core.Validator, requireOperator func(http.Handler) http.Handler, logger *slog.Logger) *AlertHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AlertHandler{
		service:         svc,
		validator:       val,
		logger:          logger,
		requireOperator: requireOperator,
	}
}

// RegisterRoutes mounts the alert endpoints onto r.
func (h *AlertHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Group(func(r chi.Router) {
		if h.requireOperator != nil {
			r.Use(h.requireOperator)
		}
		r.Post("/{id}/resolve", h.HandleResolve)
	})
}

// AlertListResponse is the body of GET /v1/alerts.
type AlertListResponse struct {
	Success bool          `json:"success"`
	Alerts  []types.Alert `json:"alerts"`
}

// AlertResponse wraps a single alert.
type AlertResponse struct {
	Success bool        `json:"success"`
	Alert   types.Alert `json:"alert"`
}

type alertListQuery struct {
	Status string `json:"status" validate:"omitempty,oneof=ACTIVE RESOLVED"`
	Area   string `json:"area" validate:"omitempty,area_filter"`
}

// HandleList handles GET /v1/alerts?status=ACTIVE|RESOLVED&area=<key>.
func (h *AlertHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q := alertListQuery{
		Status: r.URL.Query().Get("status"),
		Area:   r.URL.Query().Get("area"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}

	alerts, err := h.service.List(r.Context(), types.AlertFilter{
		Status:  types.AlertStatus(q.Status),
		AreaKey: q.Area,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "alert listing failed", "error", err)
		core.Error(w, r, err)
		return
	}
	if alerts == nil {
		alerts = []types.Alert{}
	}

	core.JSON(w, r, http.StatusOK, AlertListResponse{Success: true, Alerts: alerts})
}

// HandleResolve handles POST /v1/alerts/{id}/resolve.
func (h *AlertHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	alert, err := h.service.Resolve(r.Context(), id)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, AlertResponse{Success: true, Alert: *alert})
}
