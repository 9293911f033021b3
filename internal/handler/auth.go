// This file implements the account endpoints: registration, login, API
// key minting, profile, and plan changes.
package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/metrics"
	"github.com/scrapegate/scrapegate/internal/service"
)

// AuthHandler handles account-related HTTP requests.
//
// Routes handled:
//   - POST /auth/register       -> Register
//   - POST /auth/login          -> Login
//   - POST /auth/api-key        -> GenerateAPIKey (authenticated)
//   - GET  /auth/me             -> Me             (authenticated)
//   - POST /auth/upgrade/{plan} -> Upgrade        (authenticated)
type AuthHandler struct {
	userService service.UserService
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		logger:      logger,
	}
}

// AuthRouteMiddleware carries the middleware stacks the auth routes are
// wired with: requireUser for authenticated routes, and brute-force rate
// limits for the credential endpoints.
type AuthRouteMiddleware struct {
	RequireUser   func(http.Handler) http.Handler
	LimitLogin    func(http.Handler) http.Handler
	LimitRegister func(http.Handler) http.Handler
}

// RegisterRoutes wires the auth endpoints onto mux.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, mw AuthRouteMiddleware) {
	mux.Handle("POST /auth/register", mw.LimitRegister(http.HandlerFunc(h.Register)))
	mux.Handle("POST /auth/login", mw.LimitLogin(http.HandlerFunc(h.Login)))
	mux.Handle("POST /auth/api-key", mw.RequireUser(http.HandlerFunc(h.GenerateAPIKey)))
	mux.Handle("GET /auth/me", mw.RequireUser(http.HandlerFunc(h.Me)))
	mux.Handle("POST /auth/upgrade/{plan}", mw.RequireUser(http.HandlerFunc(h.Upgrade)))
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Plan      int    `json:"plan"`
	HasAPIKey bool   `json:"has_api_key"`
	CreatedAt string `json:"created_at"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Plan:      int(u.Plan),
		HasAPIKey: u.HasAPIKey(),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
}

// Register creates a new account on the free plan.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	metrics.UsersRegistered.Inc()
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

// Login exchanges credentials for a signed access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"token":      result.Token,
		"expires_at": result.ExpiresAt.Format(time.RFC3339),
		"user":       toUserResponse(result.User),
	})
}

// GenerateAPIKey mints a fresh API key for the authenticated user. The raw
// key appears in this response only; any previous key stops working.
func (h *AuthHandler) GenerateAPIKey(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	key, err := h.userService.GenerateAPIKey(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"api_key": key,
	})
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// Upgrade moves the authenticated user to the plan tier named in the path.
// Downgrades use the same endpoint; the quota guard reads the tier fresh
// on every metered call.
func (h *AuthHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	const op = "handler.upgrade"

	user := userFromContext(r)
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	tier, err := strconv.Atoi(r.PathValue("plan"))
	if err != nil {
		ErrorResponse(w, r, h.logger, domain.Invalid(op, "Plan must be a number"))
		return
	}

	if err := h.userService.ChangePlan(r.Context(), user.ID, domain.PlanTier(tier)); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	fresh, err := h.userService.GetByID(r.Context(), user.ID)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(fresh))
}
