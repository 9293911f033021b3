package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMetricsAuth_DisabledPassesThrough(t *testing.T) {
	mw := NewMetricsAuthMiddleware("", "")
	wrapped := mw.Handler(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with auth disabled, got %d", rec.Code)
	}
}

func TestMetricsAuth_MissingCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prom", "secret")
	wrapped := mw.Handler(okHandler())

	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without credentials, got %d", rec.Code)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("expected WWW-Authenticate header")
	}
}

func TestMetricsAuth_WrongCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prom", "secret")
	wrapped := mw.Handler(okHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("prom", "wrong")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong password, got %d", rec.Code)
	}
}

func TestMetricsAuth_ValidCredentials(t *testing.T) {
	mw := NewMetricsAuthMiddleware("prom", "secret")
	wrapped := mw.Handler(okHandler())

	req := httptest.NewRequest("GET", "/metrics", nil)
	req.SetBasicAuth("prom", "secret")
	rec := httptest.NewRecorder()
	wrapped.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 with valid credentials, got %d", rec.Code)
	}
}
