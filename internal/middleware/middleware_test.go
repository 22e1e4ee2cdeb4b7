package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"petlink-go/internal/auth"
	"petlink-go/internal/config"
	"petlink-go/internal/logging"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := config.AuthConfig{JWTSecretKey: "secret", JWTExpiry: time.Minute, Issuer: "test"}
	token, err := auth.GenerateToken(42, "biscuit", cfg)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}

	var gotID uint
	handler := AuthMiddleware(cfg.JWTSecretKey, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"valid token", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
		})
	}
	if gotID != 42 {
		t.Fatalf("user id in context = %d, want 42", gotID)
	}
}

func TestWithUserTagsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	ctx := logging.WithLogger(context.Background(), slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx = WithUser(ctx, 42, "biscuit")
	if id, ok := GetUserIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("GetUserIDFromContext() = %d, %v", id, ok)
	}
	logging.FromContext(ctx).Info("loaded")
	out := buf.String()
	if !strings.Contains(out, `"user_id":42`) || !strings.Contains(out, `"username":"biscuit"`) {
		t.Fatalf("log line missing caller fields: %s", out)
	}
}

func TestRequestLoggerAttachesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	var ctxRequestID string
	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxRequestID = logging.RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil))

	if ctxRequestID == "" || rec.Header().Get(RequestIDHeader) != ctxRequestID {
		t.Fatalf("request id mismatch: ctx=%q header=%q", ctxRequestID, rec.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"status":418`) {
		t.Fatalf("expected status in log line, got %s", buf.String())
	}
}

func TestRequestLoggerRecoversPanic(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	handler := RequestLogger(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}

func TestKeyedRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	l := NewKeyedRateLimiter(60, 2, time.Minute)
	l.WithNowFunc(func() time.Time { return now })

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst should be allowed")
	}
	if l.Allow("a") {
		t.Fatalf("third immediate call should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("keys must be limited independently")
	}

	now = now.Add(time.Second)
	if !l.Allow("a") {
		t.Fatalf("token should refill after one second")
	}

	now = now.Add(2 * time.Minute)
	l.Allow("c")
	l.mu.Lock()
	_, stale := l.buckets["a"]
	l.mu.Unlock()
	if stale {
		t.Fatalf("idle bucket should have been collected")
	}
}
