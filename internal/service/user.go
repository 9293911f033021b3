// Package service contains the business logic layer.
//
// Services orchestrate repositories, external APIs, and domain logic.
// They validate input, enforce business rules, and translate database
// errors into domain errors.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const (
	// BcryptCost is the cost factor for bcrypt password hashing.
	// Cost 12 is ~250ms on current hardware, acceptable for login flows.
	BcryptCost = 12

	// APIKeyBytes is the number of random bytes in an API key.
	// 32 bytes = 256 bits of entropy, hex-encoded to 64 characters.
	APIKeyBytes = 32

	// apiKeyLength is the length of the hex-encoded key presented by callers.
	apiKeyLength = APIKeyBytes * 2

	// DefaultTokenTTL is how long an access token stays valid when the
	// config does not override it.
	DefaultTokenTTL = time.Hour

	// MinPasswordLength follows NIST SP 800-63B.
	MinPasswordLength = 8

	// MaxPasswordLength stays under bcrypt's 72-byte input limit.
	MaxPasswordLength = 72

	// MinUsernameLength and MaxUsernameLength bound usernames.
	MinUsernameLength = 3
	MaxUsernameLength = 64
)

// UserService defines account, login-token, and API-key operations.
type UserService interface {
	// Register creates a new account on the free plan with a zeroed usage
	// record. Returns domain.ECONFLICT if the username is taken.
	Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error)

	// Login authenticates a user and returns a signed access token.
	// Returns domain.EUNAUTHORIZED for invalid credentials.
	Login(ctx context.Context, username, password string) (*domain.LoginResult, error)

	// VerifyAccessToken validates a signed access token and returns the
	// user it belongs to. Returns domain.EUNAUTHORIZED for bad or expired
	// tokens.
	VerifyAccessToken(ctx context.Context, token string) (*domain.User, error)

	// GenerateAPIKey mints a fresh API key for the user and stores its
	// hash. The raw key is returned exactly once; any previous key stops
	// working.
	GenerateAPIKey(ctx context.Context, userID uuid.UUID) (string, error)

	// ResolveAPIKey maps a presented API key to the identity it belongs
	// to, re-reading the plan tier on every call. Returns
	// domain.EUNAUTHORIZED for unknown keys.
	ResolveAPIKey(ctx context.Context, key string) (*domain.Identity, error)

	// GetByID retrieves a user. Returns domain.ENOTFOUND if absent.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// ChangePlan moves the user to a different plan tier. The quota guard
	// picks the new tier up on the next authorize call.
	ChangePlan(ctx context.Context, userID uuid.UUID, tier domain.PlanTier) error
}

// UserServiceConfig holds token-signing configuration.
type UserServiceConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type userService struct {
	queries *repository.Queries
	catalog domain.PlanCatalog
	cfg     UserServiceConfig
	logger  *slog.Logger
}

// NewUserService creates a UserService.
func NewUserService(queries *repository.Queries, catalog domain.PlanCatalog, cfg UserServiceConfig, logger *slog.Logger) UserService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	return &userService{
		queries: queries,
		catalog: catalog,
		cfg:     cfg,
		logger:  logger,
	}
}

func (s *userService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	const op = "user.register"

	username := strings.ToLower(strings.TrimSpace(params.Username))
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(params.Password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(params.Password), BcryptCost)
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to hash password")
	}

	repoUser, err := s.queries.CreateUser(ctx, repository.CreateUserParams{
		ID:           uuid.New(),
		Username:     username,
		PasswordHash: string(hash),
		Plan:         int(domain.PlanFree),
	})
	if err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, domain.Conflict(op, "Username already exists")
		}
		return nil, domain.Internal(err, op, "Failed to create user")
	}

	// Seed the usage ledger so the first metered call starts from a clean
	// row. The guard upserts anyway, so a failure here is not fatal.
	today := time.Now().UTC().Format(domain.DateLayout)
	if _, err := s.queries.GetOrCreateUsageRecord(ctx, repoUser.ID, today); err != nil {
		s.logger.Warn("failed to seed usage record", "user_id", repoUser.ID, "error", err)
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

func (s *userService) Login(ctx context.Context, username, password string) (*domain.LoginResult, error) {
	const op = "user.login"

	username = strings.ToLower(strings.TrimSpace(username))

	repoUser, err := s.queries.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Burn a bcrypt comparison so unknown usernames take as long
			// as wrong passwords.
			dummyHash := "$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW"
			_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
			return nil, domain.Unauthorized(op, "Invalid username or password")
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(repoUser.PasswordHash), []byte(password)); err != nil {
		return nil, domain.Unauthorized(op, "Invalid username or password")
	}

	expiresAt := time.Now().Add(s.cfg.TokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   repoUser.ID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, domain.Internal(err, op, "Failed to sign access token")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""

	s.logger.Info("user logged in", "user_id", user.ID, "username", user.Username)

	return &domain.LoginResult{
		User:      user,
		Token:     token,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *userService) VerifyAccessToken(ctx context.Context, token string) (*domain.User, error) {
	const op = "user.verify_token"

	if token == "" {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}

	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, domain.Unauthorized(op, "Invalid or expired token")
	}

	return s.GetByID(ctx, userID)
}

func (s *userService) GenerateAPIKey(ctx context.Context, userID uuid.UUID) (string, error) {
	const op = "user.generate_api_key"

	raw := make([]byte, APIKeyBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", domain.Internal(err, op, "Failed to generate API key")
	}
	key := hex.EncodeToString(raw)

	if err := s.queries.UpdateUserAPIKeyHash(ctx, userID, hashAPIKey(key)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NotFound(op, "user", userID.String())
		}
		return "", domain.Internal(err, op, "Failed to store API key")
	}

	s.logger.Info("api key minted", "user_id", userID)
	return key, nil
}

func (s *userService) ResolveAPIKey(ctx context.Context, key string) (*domain.Identity, error) {
	const op = "user.resolve_api_key"

	// Reject malformed keys before touching the store.
	if len(key) != apiKeyLength {
		return nil, domain.Unauthorized(op, "Invalid API key")
	}

	repoUser, err := s.queries.GetUserByAPIKeyHash(ctx, hashAPIKey(key))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.Unauthorized(op, "Invalid API key")
		}
		return nil, domain.Unavailable(err, op, "Failed to resolve API key")
	}

	return &domain.Identity{
		ID:   repoUser.ID,
		Plan: domain.PlanTier(repoUser.Plan),
	}, nil
}

func (s *userService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	const op = "user.get_by_id"

	repoUser, err := s.queries.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound(op, "user", id.String())
		}
		return nil, domain.Internal(err, op, "Failed to retrieve user")
	}

	user := repoUserToDomain(repoUser)
	user.PasswordHash = ""
	return user, nil
}

func (s *userService) ChangePlan(ctx context.Context, userID uuid.UUID, tier domain.PlanTier) error {
	const op = "user.change_plan"

	if !s.catalog.Known(tier) {
		return domain.Invalid(op, "Unknown plan tier")
	}

	if err := s.queries.UpdateUserPlan(ctx, userID, int(tier)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound(op, "user", userID.String())
		}
		return domain.Internal(err, op, "Failed to update plan")
	}

	s.logger.Info("plan changed", "user_id", userID, "plan", tier)
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// hashAPIKey returns the SHA-256 hex digest stored in place of the raw key.
func hashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Plan:         domain.PlanTier(u.Plan),
		APIKeyHash:   u.APIKeyHash.String,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func validateUsername(username string) error {
	const op = "user.validate_username"
	if len(username) < MinUsernameLength {
		return domain.Invalid(op, "Username must be at least 3 characters")
	}
	if len(username) > MaxUsernameLength {
		return domain.Invalid(op, "Username must be at most 64 characters")
	}
	for _, r := range username {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-' || r == '.') {
			return domain.Invalid(op, "Username may only contain letters, digits, '_', '-' and '.'")
		}
	}
	return nil
}

func validatePassword(password string) error {
	const op = "user.validate_password"
	if len(password) < MinPasswordLength {
		return domain.Invalid(op, "Password must be at least 8 characters")
	}
	if len(password) > MaxPasswordLength {
		return domain.Invalid(op, "Password must be at most 72 characters")
	}
	return nil
}
