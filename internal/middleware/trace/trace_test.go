package trace

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"loanwise/internal/log"
)

func TestMiddleware_AssignsRequestID(t *testing.T) {
	m := NewMiddleware(func(*http.Request) string { return "10.0.0.1" }, log.Discard())

	var seenID string
	var seenLogger *log.Logger
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		seenLogger = log.FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/loans", nil))

	if !strings.HasPrefix(seenID, "req_") {
		t.Errorf("request id = %q, want generated id", seenID)
	}
	if rec.Header().Get(RequestIDHeader) != seenID {
		t.Errorf("response header %q does not match context id %q", rec.Header().Get(RequestIDHeader), seenID)
	}
	if seenLogger.Component() != log.ComponentHTTP {
		t.Errorf("logger component = %q, want %q", seenLogger.Component(), log.ComponentHTTP)
	}
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d", rec.Code)
	}
	if got := m.GetMetrics().TotalRequests; got != 1 {
		t.Errorf("total requests = %d, want 1", got)
	}
}

func TestMiddleware_RequestIDHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{name: "valid id reused", header: "abc-123", reuse: true},
		{name: "unsafe id replaced", header: "bad id\nwith newline", reuse: false},
		{name: "too long replaced", header: strings.Repeat("a", 65), reuse: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMiddleware(nil, log.Discard())
			handler := m.Middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set(RequestIDHeader, tt.header)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			if (got == tt.header) != tt.reuse {
				t.Errorf("response id = %q, reuse expected %v", got, tt.reuse)
			}
		})
	}
}
