package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"pulse/internal/insights/cache"
	"pulse/internal/insights/export"
	"pulse/internal/insights/models"
	"pulse/pkg/platform/httputil"
	"pulse/pkg/requestcontext"
)

// Service defines the insights operations the HTTP layer needs.
type Service interface {
	GetInsights(ctx context.Context, filters models.FilterSignature) (*models.InsightsResult, error)
	GetKPIs(ctx context.Context, filters models.FilterSignature) (*models.KPISnapshot, error)
	ExportInsight(ctx context.Context, id string) ([]byte, error)
	Refresh(ctx context.Context) int
	DataSlice(ctx context.Context, filters models.FilterSignature) ([]models.AlignedRecord, error)
	CacheStats() cache.Stats
}

// Handler wires the dashboard endpoints to the insights service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs an insights handler.
func New(service Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts the health probe and the /api/v1 endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/health", h.HandleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/insights", h.HandleInsights)
		r.Post("/insights/refresh", h.HandleRefresh)
		r.Get("/insights/{id}/export", h.HandleExport)
		r.Get("/kpis", h.HandleKPIs)
		r.Get("/data/slice", h.HandleDataSlice)
	})
}

// HandleInsights handles GET /api/v1/insights.
func (h *Handler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()
	filters := filtersFromQuery(r.URL.Query())

	result, err := h.service.GetInsights(ctx, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "insights request failed",
			"request_id", requestID,
			"filters", filters.Canonical(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "insights served",
		"request_id", requestID,
		"filters", filters.Canonical(),
		"records", len(result.Records),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, insightsResponse(result))
}

// HandleKPIs handles GET /api/v1/kpis.
func (h *Handler) HandleKPIs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	filters := filtersFromQuery(r.URL.Query())

	snap, err := h.service.GetKPIs(ctx, filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "kpi request failed",
			"request_id", requestID,
			"filters", filters.Canonical(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, kpiResponse(snap))
}

// HandleExport handles GET /api/v1/insights/{id}/export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	id := chi.URLParam(r, "id")

	body, err := h.service.ExportInsight(ctx, id)
	if err != nil {
		h.logger.WarnContext(ctx, "insight export failed",
			"request_id", requestID,
			"insight_id", id,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+strconv.Quote(export.Filename(id)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// HandleRefresh handles POST /api/v1/insights/refresh.
func (h *Handler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	removed := h.service.Refresh(ctx)
	h.logger.InfoContext(ctx, "cache refresh requested",
		"request_id", requestcontext.RequestID(ctx),
		"invalidated", removed,
	)
	httputil.WriteJSON(w, http.StatusOK, ok(RefreshResponse{Invalidated: removed}, nil))
}

// HandleDataSlice handles GET /api/v1/data/slice.
func (h *Handler) HandleDataSlice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := parseSliceRequest(r.URL.Query())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	records, err := h.service.DataSlice(ctx, req.Filters)
	if err != nil {
		h.logger.ErrorContext(ctx, "data slice failed",
			"request_id", requestID,
			"filters", req.Filters.Canonical(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sliceResponse(req, records))
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Cache:  fromStats(h.service.CacheStats()),
	})
}
