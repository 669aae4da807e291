package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRequestIDGenerated(t *testing.T) {
	var seenID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if seenID == "" {
		t.Fatal("expected a generated request ID in the context")
	}
	if rec.Header().Get("X-Request-ID") != seenID {
		t.Errorf("expected response header %q to match context ID %q",
			rec.Header().Get("X-Request-ID"), seenID)
	}
}

func TestRequestIDFromClient(t *testing.T) {
	var seenID string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied-id")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seenID != "client-supplied-id" {
		t.Errorf("expected client-supplied ID, got %q", seenID)
	}
	if rec.Header().Get("X-Request-ID") != "client-supplied-id" {
		t.Errorf("expected client ID echoed, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestGetRequestIDMissing(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("expected empty ID for bare context, got %q", got)
	}
}
