// This file implements the metered API surface. Every request pays one
// call against the key owner's monthly quota before any work is done.
package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/metrics"
	"github.com/scrapegate/scrapegate/internal/places"
	"github.com/scrapegate/scrapegate/internal/service"
)

// APIKeyHeader carries the credential for metered calls.
const APIKeyHeader = "X-Api-Key"

// APIHandler handles quota-gated data requests.
//
// Routes handled:
//   - GET /api/places -> Places
type APIHandler struct {
	guard    service.GuardService
	provider places.Provider
	snapshot service.SnapshotService // nil disables archiving
	logger   *slog.Logger
}

// NewAPIHandler creates a new APIHandler. snapshot may be nil, in which
// case results are served without being archived.
func NewAPIHandler(guard service.GuardService, provider places.Provider, snapshot service.SnapshotService, logger *slog.Logger) *APIHandler {
	return &APIHandler{
		guard:    guard,
		provider: provider,
		snapshot: snapshot,
		logger:   logger,
	}
}

// RegisterRoutes wires the metered endpoints onto mux.
func (h *APIHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/places", h.Places)
}

// usageEnvelope reports the caller's position against their quota after
// the call was charged.
type usageEnvelope struct {
	CallsToday     int `json:"calls_today"`
	CallsThisMonth int `json:"calls_this_month"`
	PlanLimit      int `json:"plan_limit"`
}

// Places authorizes the call against the key's quota, then performs a
// nearby-places lookup. The charge is taken at permission time: a failed
// lookup after an allowed decision stays counted.
func (h *APIHandler) Places(w http.ResponseWriter, r *http.Request) {
	const op = "handler.places"

	decision := h.guard.Authorize(r.Context(), r.Header.Get(APIKeyHeader))
	switch decision.Kind {
	case domain.DecisionAllowed:
		// fall through to the lookup
	case domain.DecisionUnauthorized:
		ErrorResponse(w, r, h.logger, domain.Unauthorized(op, "Invalid API key"))
		return
	case domain.DecisionQuotaExceeded:
		writeJSON(w, http.StatusForbidden, map[string]any{
			"error": map[string]any{
				"code":       domain.EFORBIDDEN,
				"message":    "Monthly quota exceeded",
				"limit":      decision.Limit,
				"calls_made": decision.CallsMade,
			},
		})
		return
	default:
		ErrorResponse(w, r, h.logger, domain.Unavailable(nil, op, "Service temporarily unavailable, please retry"))
		return
	}

	params, err := placesParams(r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.provider.Search(r.Context(), params)
	if err != nil {
		metrics.PlacesFetches.WithLabelValues("error").Inc()
		switch {
		case errors.Is(err, places.ErrLocationNotFound):
			ErrorResponse(w, r, h.logger, domain.NotFound(op, "location", params.Location))
		default:
			ErrorResponse(w, r, h.logger, domain.Unavailable(err, op, "Places upstream failed"))
		}
		return
	}
	metrics.PlacesFetches.WithLabelValues("ok").Inc()

	h.archive(r, decision, result)

	writeJSON(w, http.StatusOK, map[string]any{
		"location": result.Location,
		"kinds":    result.Kinds,
		"radius_m": result.RadiusM,
		"results":  result.Places,
		"usage": usageEnvelope{
			CallsToday:     decision.CallsToday,
			CallsThisMonth: decision.CallsThisMonth,
			PlanLimit:      decision.Limit,
		},
	})
}

// archive stores the result snapshot. Best effort: failures are logged
// and the response is served anyway.
func (h *APIHandler) archive(r *http.Request, decision domain.Decision, result *places.SearchResult) {
	if h.snapshot == nil {
		return
	}

	if _, err := h.snapshot.Archive(r.Context(), decision.UserID, result); err != nil {
		h.logger.Warn("snapshot archive failed", "user_id", decision.UserID, "error", err)
	}
}

// placesParams parses and validates the lookup query parameters.
func placesParams(r *http.Request) (places.SearchParams, error) {
	const op = "handler.places_params"

	q := r.URL.Query()

	location := strings.TrimSpace(q.Get("location"))
	if location == "" {
		return places.SearchParams{}, domain.Invalid(op, "Query parameter 'location' is required")
	}

	var kinds []string
	for _, k := range strings.Split(q.Get("kinds"), ",") {
		if k = strings.TrimSpace(k); k != "" {
			kinds = append(kinds, k)
		}
	}

	radius, err := intParam(q.Get("radius_m"))
	if err != nil {
		return places.SearchParams{}, domain.Invalid(op, "Query parameter 'radius_m' must be a positive number")
	}
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		return places.SearchParams{}, domain.Invalid(op, "Query parameter 'limit' must be a positive number")
	}

	return places.SearchParams{
		Location: location,
		Kinds:    kinds,
		RadiusM:  radius,
		Limit:    limit,
	}.Normalize(), nil
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("not a positive number")
	}
	return n, nil
}
