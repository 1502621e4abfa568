package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" WARN ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"chatty":  slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{Level: slog.LevelDebug, Component: component, Output: buf})
}

func TestLogger_AddsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	l := newBufferLogger(&buf, ComponentWorker)

	l.InfoContext(context.Background(), "synced", FieldRecordID, "r1")
	out := buf.String()
	if strings.Count(out, "component=worker") != 1 || !strings.Contains(out, "record_id=r1") {
		t.Fatalf("unexpected log line %q", out)
	}
	if l.With(FieldYear, 2024).Component() != ComponentWorker {
		t.Error("With should keep the component")
	}
}

func TestNew_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: slog.LevelWarn, Component: ComponentApp, Output: &buf})

	l.Info("quiet")
	l.Warn("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("level not applied: %q", buf.String())
	}
}

func TestFields_KeepOrder(t *testing.T) {
	f := NewFields().
		WithOperation(OpImport).
		WithRecord("report", "r1").
		WithPeriod(2024, 2).
		WithClientIP("").
		WithError(errors.New("boom")).
		WithError(nil)

	var keys []string
	for _, a := range f {
		keys = append(keys, a.Key)
	}
	want := []string{FieldOperation, FieldRecordKind, FieldRecordID, FieldYear, FieldMonth, FieldError}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Fatalf("keys = %v, want %v", keys, want)
	}
	if len(f.Args()) != len(f) {
		t.Fatal("Args should hold one entry per attribute")
	}
}

func TestMiddleware_RequestLogger(t *testing.T) {
	var buf bytes.Buffer
	base := newBufferLogger(&buf, ComponentHTTP)

	var seen *Logger
	h := Middleware(base)(RequestIDMiddleware(func(*http.Request) string { return "req-42" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = FromContext(r.Context())
			seen.Info("handled")
		})))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/records", nil))
	if seen == nil {
		t.Fatal("handler did not run")
	}
	if !strings.Contains(buf.String(), "request_id=req-42") {
		t.Fatalf("request id missing from %q", buf.String())
	}

	if FromContext(context.Background()).Component() != "unknown" {
		t.Error("context without logger should fall back to the default logger")
	}
}

func TestStructuredLogger(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentHTTP))
	ctx := context.Background()

	sl.LogRecordChange(ctx, OpCreate, "transaction", "t1", 7)
	out := buf.String()
	for _, want := range []string{"record_kind=transaction", "record_id=t1", "operation=create", "store_version=7"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	buf.Reset()
	r := httptest.NewRequest(http.MethodPost, "/api/reports?x=1", nil)
	sl.LogHTTPEnd(ctx, r, http.StatusUnprocessableEntity, 3, "10.0.0.1")
	out = buf.String()
	for _, want := range []string{"level=WARN", "status_code=422", "success=false", "path=/api/reports", "client_ip=10.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}

	buf.Reset()
	sl.LogError(ctx, "Request failed", errors.New("disk full"), "POST /api/reports", NewFields())
	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("unexpected error line %q", buf.String())
	}
}
