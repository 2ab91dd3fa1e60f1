// Package handlers contains the HTTP handlers of the outbreak API:
//   - Risk query (GET /v1/outbreak/risk)
//   - Per-area brief (POST /v1/outbreak/brief)
//   - Alert listing and resolution (GET /v1/alerts, POST /v1/alerts/{id}/resolve)
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"outbreakwatch/internal/core"
	"outbreakwatch/internal/outbreak"
	"outbreakwatch/internal/types"
)

// RiskService is the engine contract used by OutbreakHandler. It is defined
// here so handlers can be tested without stores.
type RiskService interface {
	GetOutbreakRisk(ctx context.Context, opts outbreak.QueryOptions) (*types.RiskReport, error)
	AreaBrief(ctx context.Context, area string, symptoms, waterFails int) (string, error)
}

// OutbreakHandler serves the risk query and per-area brief.
type OutbreakHandler struct {
	service   RiskService
	validator *core.Validator
	logger    *slog.Logger
}

// NewOutbreakHandler creates an OutbreakHandler.
func NewOutbreakHandler(svc RiskService, val *core.Validator, logger *slog.Logger) *OutbreakHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OutbreakHandler{service: svc, validator: val, logger: logger}
}

// RegisterRoutes mounts the outbreak endpoints onto r.
func (h *OutbreakHandler) RegisterRoutes(r chi.Router) {
	r.Get("/risk", h.HandleGetRisk)
	r.Post("/brief", h.HandleBrief)
}

// RiskResponse is the body of GET /v1/outbreak/risk.
type RiskResponse struct {
	Success   bool                  `json:"success"`
	Since     time.Time             `json:"since"`
	Areas     []types.AreaAggregate `json:"areas"`
	AISummary string                `json:"aiSummary,omitempty"`
}

type riskQuery struct {
	Area    string `json:"area" validate:"omitempty,area_filter"`
	Summary string `json:"summary" validate:"omitempty,oneof=true false"`
}

// HandleGetRisk handles GET /v1/outbreak/risk?area=<key>&summary=false.
// Persistence failures fail the request; summary failures only drop
// aiSummary.
func (h *OutbreakHandler) HandleGetRisk(w http.ResponseWriter, r *http.Request) {
	q := riskQuery{
		Area:    r.URL.Query().Get("area"),
		Summary: r.URL.Query().Get("summary"),
	}
	if err := h.validator.ValidateStruct(q); err != nil {
		core.Error(w, r, err)
		return
	}
	skipSummary := false
	if q.Summary != "" {
		withSummary, _ := strconv.ParseBool(q.Summary)
		skipSummary = !withSummary
	}

	report, err := h.service.GetOutbreakRisk(r.Context(), outbreak.QueryOptions{
		AreaKey:     q.Area,
		SkipSummary: skipSummary,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "risk query failed", "area", q.Area, "error", err)
		core.Error(w, r, err)
		return
	}

	areas := report.Areas
	if areas == nil {
		areas = []types.AreaAggregate{}
	}
	core.JSON(w, r, http.StatusOK, RiskResponse{
		Success:   true,
		Since:     report.Since,
		Areas:     areas,
		AISummary: report.AISummary,
	})
}

// BriefRequest is the body of POST /v1/outbreak/brief.
type BriefRequest struct {
	Area           string `json:"area" validate:"required,area_key"`
	SymptomCount   int    `json:"symptomCount" validate:"count"`
	WaterFailCount int    `json:"waterFailCount" validate:"count"`
}

// BriefResponse is the body of a successful brief.
type BriefResponse struct {
	Success bool   `json:"success"`
	Summary string `json:"summary"`
}

// HandleBrief handles POST /v1/outbreak/brief. Unlike the risk query it
// reports an unconfigured or failing text generator as an error.
func (h *OutbreakHandler) HandleBrief(w http.ResponseWriter, r *http.Request) {
	var req BriefRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	summary, err := h.service.AreaBrief(r.Context(), req.Area, req.SymptomCount, req.WaterFailCount)
	if err != nil {
		h.logger.WarnContext(r.Context(), "area brief failed", "area", req.Area, "error", err)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, BriefResponse{Success: true, Summary: summary})
}
