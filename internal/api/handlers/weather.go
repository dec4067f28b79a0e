// Package handlers contains the HTTP handler implementations for the
// Superior Weather API.
//
// Routes (mounted under /v1):
//   - POST /refresh         run a fetch cycle, or enqueue one when async
//   - GET  /alerts          preview the alerts for a location without scheduling
//   - GET  /notifications   list the pending schedule
//   - GET  /snapshot        the snapshot of the latest successful cycle
package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"superiorweather/internal/alerts"
	"superiorweather/internal/core"
	"superiorweather/internal/scheduler"
	"superiorweather/internal/types"
)

// Refresher runs fetch cycles. *scheduler.Refresher satisfies it; it is
// declared locally so tests can substitute a fake.
type Refresher interface {
	Refresh(ctx context.Context, in scheduler.RefreshInput) (scheduler.RefreshResult, error)
	Latest() (types.Snapshot, bool)
}

// WeatherProvider fetches current conditions for the alert preview.
type WeatherProvider interface {
	Current(ctx context.Context, loc types.Location) (types.Snapshot, error)
}

// PendingLister lists the notifications that have not fired yet.
type PendingLister interface {
	Pending(ctx context.Context) ([]types.ScheduledNotification, error)
}

// RefreshEnqueuer hands a refresh to the background worker.
// *queue.RefreshTrigger satisfies it.
type RefreshEnqueuer interface {
	TriggerRefresh(ctx context.Context, loc types.Location, reason types.RefreshReason) error
}

// RefreshRequest is the body of POST /v1/refresh. An empty body refreshes
// the default location.
type RefreshRequest struct {
	Latitude  *float64 `json:"latitude" validate:"required,latitude"`
	Longitude *float64 `json:"longitude" validate:"required,longitude"`
	Label     string   `json:"label,omitempty" validate:"max=200"`
	Reason    string   `json:"reason,omitempty" validate:"omitempty,oneof=location_change hourly_check background_timer manual"`
	// Async enqueues the cycle for the refresh worker instead of running it inline.
	Async bool `json:"async,omitempty"`
}

// RefreshResponse is returned by a synchronous refresh.
type RefreshResponse struct {
	Snapshot   types.Snapshot      `json:"snapshot"`
	Alerts     []string            `json:"alerts"`
	Scheduled  int                 `json:"scheduled"`
	Fired      int                 `json:"fired"`
	Failures   int                 `json:"failures"`
	Cancelled  bool                `json:"cancelled"`
	Reason     types.RefreshReason `json:"reason"`
	DurationMS int64               `json:"duration_ms"`
}

// AlertsResponse is returned by the alert preview.
type AlertsResponse struct {
	Snapshot   types.Snapshot `json:"snapshot"`
	Alerts     []string       `json:"alerts"`
	Categories []string       `json:"categories"`
}

// WeatherHandler maps HTTP requests onto the refresh pipeline.
type WeatherHandler struct {
	refresher Refresher
	weather   WeatherProvider
	pending   PendingLister
	enqueuer  RefreshEnqueuer
	fallback  types.Location
	validator *core.Validator
	logger    *slog.Logger
}

// NewWeatherHandler creates a WeatherHandler. fallback is refreshed when
// POST /v1/refresh has no body.
func NewWeatherHandler(
	refresher Refresher,
	weather WeatherProvider,
	pending PendingLister,
	fallback types.Location,
	val *core.Validator,
	logger *slog.Logger,
) *WeatherHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WeatherHandler{
		refresher: refresher,
		weather:   weather,
		pending:   pending,
		fallback:  fallback,
		validator: val,
		logger:    logger,
	}
}

// WithEnqueuer enables async refreshes.
func (h *WeatherHandler) WithEnqueuer(e RefreshEnqueuer) *WeatherHandler {
	h.enqueuer = e
	return h
}

// RegisterRoutes mounts the weather endpoints onto the mux.
func (h *WeatherHandler) RegisterRoutes(r chi.Router) {
	r.Post("/refresh", h.HandleRefresh)
	r.Get("/alerts", h.HandleAlerts)
	r.Get("/notifications", h.HandleListPending)
	r.Get("/snapshot", h.HandleGetSnapshot)
}

// HandleRefresh handles POST /v1/refresh.
func (h *WeatherHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	loc := h.fallback
	reason := types.RefreshManual
	async := false

	var req RefreshRequest
	err := core.DecodeJSON(w, r, &req)
	switch {
	case errors.Is(err, io.EOF):
		// empty body
	case err != nil:
		core.Error(w, r, err)
		return
	default:
		if err := h.validator.ValidateStruct(req); err != nil {
			core.Error(w, r, err)
			return
		}
		loc = types.Location{Latitude: *req.Latitude, Longitude: *req.Longitude, Label: req.Label}
		if req.Reason != "" {
			reason = types.RefreshReason(req.Reason)
		}
		async = req.Async
	}

	if async {
		if h.enqueuer == nil {
			core.Error(w, r, types.NewAppError(types.ErrCodeUpstreamUnavailable, "async refresh is not configured", nil))
			return
		}
		if err := h.enqueuer.TriggerRefresh(r.Context(), loc, reason); err != nil {
			core.Error(w, r, err)
			return
		}
		core.Data(w, r, http.StatusAccepted, map[string]any{
			"queued":   true,
			"location": loc,
			"reason":   reason,
		})
		return
	}

	res, err := h.refresher.Refresh(r.Context(), scheduler.RefreshInput{Location: loc, Reason: reason})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	alertsOut := res.Report.Alerts
	if alertsOut == nil {
		alertsOut = []string{}
	}
	core.Data(w, r, http.StatusOK, RefreshResponse{
		Snapshot:   res.Snapshot,
		Alerts:     alertsOut,
		Scheduled:  res.Report.Scheduled,
		Fired:      res.Report.Fired,
		Failures:   res.Report.Failures,
		Cancelled:  res.Report.Cancelled,
		Reason:     res.Reason,
		DurationMS: res.Duration.Milliseconds(),
	})
}

// HandleAlerts handles GET /v1/alerts?lat=&lon=. Missing coordinates fall
// back to the default location.
func (h *WeatherHandler) HandleAlerts(w http.ResponseWriter, r *http.Request) {
	loc, err := h.parseLocation(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	snap, err := h.weather.Current(r.Context(), loc)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if err := scheduler.ValidateSnapshot(snap); err != nil {
		core.Error(w, r, err)
		return
	}

	core.Data(w, r, http.StatusOK, AlertsResponse{
		Snapshot:   snap,
		Alerts:     alerts.GenerateAlerts(snap),
		Categories: alerts.Categories(),
	})
}

// HandleListPending handles GET /v1/notifications.
func (h *WeatherHandler) HandleListPending(w http.ResponseWriter, r *http.Request) {
	pending, err := h.pending.Pending(r.Context())
	if err != nil {
		types.LoggerOr(r.Context(), types.NewSlogAdapter(h.logger)).Error("failed to list pending notifications", "error", err)
		core.Error(w, r, err)
		return
	}
	if pending == nil {
		pending = []types.ScheduledNotification{}
	}
	core.Data(w, r, http.StatusOK, pending)
}

// HandleGetSnapshot handles GET /v1/snapshot.
func (h *WeatherHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.refresher.Latest()
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundSnapshot, "no refresh cycle has completed yet", nil))
		return
	}
	core.Data(w, r, http.StatusOK, snap)
}

func (h *WeatherHandler) parseLocation(r *http.Request) (types.Location, error) {
	q := r.URL.Query()
	latStr, lonStr := q.Get("lat"), q.Get("lon")
	if latStr == "" && lonStr == "" {
		return h.fallback, nil
	}
	if latStr == "" || lonStr == "" {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationMissingField,
			"lat and lon must be provided together",
			nil,
		)
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil || math.IsNaN(lat) || lat < -90 || lat > 90 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLat,
			"lat must be a number between -90 and 90",
			nil,
		)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil || math.IsNaN(lon) || lon < -180 || lon > 180 {
		return types.Location{}, types.NewAppError(
			types.ErrCodeValidationInvalidLon,
			"lon must be a number between -180 and 180",
			nil,
		)
	}
	return types.Location{Latitude: lat, Longitude: lon, Label: q.Get("label")}, nil
}
