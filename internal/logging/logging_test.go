package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	tests := []struct {
		verbose bool
		debugOn bool
		warnOn  bool
	}{
		{verbose: false, debugOn: false, warnOn: true},
		{verbose: true, debugOn: true, warnOn: true},
	}

	for _, tt := range tests {
		logger, err := New(tt.verbose)
		if err != nil {
			t.Fatalf("New(%v) error = %v", tt.verbose, err)
		}
		if got := logger.Core().Enabled(zapcore.DebugLevel); got != tt.debugOn {
			t.Errorf("New(%v) debug enabled = %v, want %v", tt.verbose, got, tt.debugOn)
		}
		if got := logger.Core().Enabled(zapcore.WarnLevel); got != tt.warnOn {
			t.Errorf("New(%v) warn enabled = %v, want %v", tt.verbose, got, tt.warnOn)
		}
	}
}

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/graph", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d", rec.Code)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d log entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/graph" {
		t.Errorf("path = %v", fields["path"])
	}
	if fields["status"] != int64(http.StatusTeapot) {
		t.Errorf("status = %v (%T)", fields["status"], fields["status"])
	}
	if fields["bytes"] != int64(len("short and stout")) {
		t.Errorf("bytes = %v", fields["bytes"])
	}
}
