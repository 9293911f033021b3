// This file implements the usage dashboard endpoint.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/service"
)

// UsageHandler serves usage statistics to authenticated users.
//
// Routes handled:
//   - GET /usage/dashboard -> Dashboard (authenticated)
type UsageHandler struct {
	usageService service.UsageService
	logger       *slog.Logger
}

// NewUsageHandler creates a new UsageHandler.
func NewUsageHandler(usageService service.UsageService, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
		logger:       logger,
	}
}

// RegisterRoutes wires the usage endpoints onto mux. requireUser is the
// middleware stack applied to authenticated routes.
func (h *UsageHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("GET /usage/dashboard", requireUser(http.HandlerFunc(h.Dashboard)))
}

// Dashboard returns the caller's plan, current counters, and the recent
// daily call trend. The optional days parameter sizes the trend window.
func (h *UsageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	const op = "handler.dashboard"

	user := userFromContext(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	days := 0
	if raw := r.URL.Query().Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			ErrorResponse(w, r, h.logger, domain.Invalid(op, "Query parameter 'days' must be a positive number"))
			return
		}
		days = n
	}

	stats, err := h.usageService.Dashboard(r.Context(), user.ID, days)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, stats)
}
