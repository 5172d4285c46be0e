package http

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestRequestIDMiddleware(t *testing.T) {
	tests := []struct {
		name     string
		incoming string
	}{
		{name: "generated", incoming: ""},
		{name: "propagated", incoming: "req-123"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var seenID string
			var seenLogger bool
			h := RequestIDMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenID = RequestIDFromContext(r.Context())
				seenLogger = LoggerFromContext(r.Context()) != nil
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.incoming != "" {
				req.Header.Set("X-Request-ID", tt.incoming)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if seenID == "" {
				t.Fatal("no request ID in context")
			}
			if tt.incoming != "" && seenID != tt.incoming {
				t.Errorf("request ID = %q, want %q", seenID, tt.incoming)
			}
			if rec.Header().Get("X-Request-ID") != seenID {
				t.Errorf("response header = %q, want %q", rec.Header().Get("X-Request-ID"), seenID)
			}
			if !seenLogger {
				t.Error("no logger in context")
			}
		})
	}
}

func TestLoggerFromContext_Default(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if LoggerFromContext(req.Context()) == nil {
		t.Error("LoggerFromContext() = nil, want slog.Default()")
	}
	if RequestIDFromContext(req.Context()) != "" {
		t.Error("RequestIDFromContext() on a bare context should be empty")
	}
}

func TestRequestIDMiddleware_TraceID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestIDMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		LoggerFromContext(r.Context()).Info("guarded")
	}))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02},
		SpanID:     trace.SpanID{0x03},
		TraceFlags: trace.FlagsSampled,
	})
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(trace.ContextWithSpanContext(req.Context(), sc))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "trace_id="+sc.TraceID().String()) {
		t.Errorf("log line missing trace_id: %s", buf.String())
	}
	if !strings.Contains(buf.String(), "request_id=") {
		t.Errorf("log line missing request_id: %s", buf.String())
	}
}
