package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/scrapegate/scrapegate/internal/domain"
	"github.com/scrapegate/scrapegate/internal/places"
)

// stubGuard returns a canned decision and records the credential it saw.
type stubGuard struct {
	decision domain.Decision
	gotKey   string
}

func (g *stubGuard) Authorize(ctx context.Context, credential string) domain.Decision {
	g.gotKey = credential
	return g.decision
}

// stubProvider returns a canned result or error.
type stubProvider struct {
	result *places.SearchResult
	err    error
	calls  int
}

func (p *stubProvider) Search(ctx context.Context, params places.SearchParams) (*places.SearchResult, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// stubSnapshot records archive calls.
type stubSnapshot struct {
	calls  int
	userID uuid.UUID
	err    error
}

func (s *stubSnapshot) Archive(ctx context.Context, userID uuid.UUID, result *places.SearchResult) (string, error) {
	s.calls++
	s.userID = userID
	return "snapshots/key", s.err
}

func allowedDecision(userID uuid.UUID) domain.Decision {
	return domain.Decision{
		Kind:           domain.DecisionAllowed,
		UserID:         userID,
		CallsToday:     1,
		CallsThisMonth: 3,
		Limit:          10,
	}
}

func placesRequest(target string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.Header.Set(APIKeyHeader, "test-key")
	return req
}

func TestPlaces_Allowed(t *testing.T) {
	userID := uuid.New()
	guard := &stubGuard{decision: allowedDecision(userID)}
	provider := &stubProvider{result: &places.SearchResult{
		Location: "London",
		Kinds:    []string{"restaurant"},
		RadiusM:  5000,
		Places:   []places.Place{{Name: "A", Kind: "restaurant"}},
	}}
	snapshot := &stubSnapshot{}
	h := NewAPIHandler(guard, provider, snapshot, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London&kinds=restaurant"))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body: %s", rec.Code, rec.Body.String())
	}
	if guard.gotKey != "test-key" {
		t.Errorf("guard saw credential %q", guard.gotKey)
	}

	var body struct {
		Location string         `json:"location"`
		Results  []places.Place `json:"results"`
		Usage    struct {
			CallsToday     int `json:"calls_today"`
			CallsThisMonth int `json:"calls_this_month"`
			PlanLimit      int `json:"plan_limit"`
		} `json:"usage"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Location != "London" || len(body.Results) != 1 {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Usage.CallsThisMonth != 3 || body.Usage.PlanLimit != 10 {
		t.Errorf("usage envelope = %+v", body.Usage)
	}

	if snapshot.calls != 1 {
		t.Errorf("snapshot calls = %d, want 1", snapshot.calls)
	}
	if snapshot.userID != userID {
		t.Errorf("snapshot archived for user %s, want %s", snapshot.userID, userID)
	}
}

func TestPlaces_Unauthorized(t *testing.T) {
	guard := &stubGuard{decision: domain.Decision{Kind: domain.DecisionUnauthorized}}
	provider := &stubProvider{}
	h := NewAPIHandler(guard, provider, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London"))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called when the key is rejected")
	}
}

func TestPlaces_QuotaExceeded(t *testing.T) {
	guard := &stubGuard{decision: domain.Decision{
		Kind:      domain.DecisionQuotaExceeded,
		UserID:    uuid.New(),
		Limit:     10,
		CallsMade: 10,
	}}
	provider := &stubProvider{}
	h := NewAPIHandler(guard, provider, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London"))

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if provider.calls != 0 {
		t.Error("provider must not be called once the quota is spent")
	}

	var body struct {
		Error struct {
			Code      string `json:"code"`
			Limit     int    `json:"limit"`
			CallsMade int    `json:"calls_made"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if body.Error.Code != domain.EFORBIDDEN {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Limit != 10 || body.Error.CallsMade != 10 {
		t.Errorf("quota details = %+v", body.Error)
	}
}

func TestPlaces_TransientFailure(t *testing.T) {
	guard := &stubGuard{decision: domain.Decision{Kind: domain.DecisionTransientFailure}}
	h := NewAPIHandler(guard, &stubProvider{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestPlaces_MissingLocation(t *testing.T) {
	guard := &stubGuard{decision: allowedDecision(uuid.New())}
	h := NewAPIHandler(guard, &stubProvider{}, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places"))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestPlaces_LocationNotFound(t *testing.T) {
	guard := &stubGuard{decision: allowedDecision(uuid.New())}
	provider := &stubProvider{err: places.ErrLocationNotFound}
	h := NewAPIHandler(guard, provider, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=Nowhereville"))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestPlaces_UpstreamFailure(t *testing.T) {
	guard := &stubGuard{decision: allowedDecision(uuid.New())}
	provider := &stubProvider{err: places.ErrUpstream}
	h := NewAPIHandler(guard, provider, nil, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestPlaces_SnapshotFailureDoesNotFailRequest(t *testing.T) {
	guard := &stubGuard{decision: allowedDecision(uuid.New())}
	provider := &stubProvider{result: &places.SearchResult{Location: "London"}}
	snapshot := &stubSnapshot{err: domain.Unavailable(nil, "snapshot.archive", "bucket down")}
	h := NewAPIHandler(guard, provider, snapshot, testLogger())

	rec := httptest.NewRecorder()
	h.Places(rec, placesRequest("/api/places?location=London"))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 despite snapshot failure", rec.Code)
	}
}

func TestPlacesParams(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		wantErr bool
		check   func(t *testing.T, p places.SearchParams)
	}{
		{
			name:  "kinds split and trimmed",
			query: "location=London&kinds=restaurant,%20cafe,",
			check: func(t *testing.T, p places.SearchParams) {
				if len(p.Kinds) != 2 || p.Kinds[1] != "cafe" {
					t.Errorf("Kinds = %v", p.Kinds)
				}
			},
		},
		{
			name:  "defaults applied",
			query: "location=London",
			check: func(t *testing.T, p places.SearchParams) {
				if p.RadiusM != places.DefaultRadiusM || p.Limit != places.DefaultLimit {
					t.Errorf("got radius %d limit %d", p.RadiusM, p.Limit)
				}
			},
		},
		{name: "negative radius", query: "location=London&radius_m=-5", wantErr: true},
		{name: "non-numeric limit", query: "location=London&limit=abc", wantErr: true},
		{name: "missing location", query: "kinds=cafe", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/places?"+tt.query, nil)
			params, err := placesParams(req)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, params)
			}
		})
	}
}
