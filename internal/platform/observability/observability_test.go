package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Young-Z-Generation-YZG/Backend-Mobile-HCMUTE/internal/platform/requestctx"
)

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := parseCloudTraceContext("105445aa7843bc8bf206b12000100000/1;o=1")
	if !ok {
		t.Fatal("expected header to parse")
	}
	if sc.TraceID().String() != "105445aa7843bc8bf206b12000100000" {
		t.Fatalf("unexpected trace id %s", sc.TraceID())
	}
	if sc.SpanID().String() != "0000000000000001" {
		t.Fatalf("unexpected span id %s", sc.SpanID())
	}
	if !sc.IsSampled() || !sc.IsRemote() {
		t.Fatal("expected sampled remote span context")
	}

	for _, header := range []string{"", "nope", "zz/1", "105445aa7843bc8bf206b12000100000/abc"} {
		if _, ok := parseCloudTraceContext(header); ok {
			t.Errorf("expected %q to be rejected", header)
		}
	}
}

func TestFormatCloudTraceHeader(t *testing.T) {
	got := formatCloudTraceHeader(requestctx.TraceInfo{TraceID: "abc", SpanID: "00000000000000ff", Sampled: true})
	if got != "abc/255;o=1" {
		t.Fatalf("unexpected header %s", got)
	}
}

func TestEventLoggerPrefersRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	fallbackCore, fallbackLogs := observer.New(zapcore.DebugLevel)

	log := EventLogger(zap.New(fallbackCore))

	ctx := requestctx.WithLogger(context.Background(), zap.New(core))
	log(ctx, "invoice.event.publish.failed", map[string]any{"invoiceId": "inv_1", "error": errors.New("boom")})
	log(context.Background(), "scheduler.armed", map[string]any{"invoiceId": "inv_2"})

	if logs.Len() != 1 || fallbackLogs.Len() != 1 {
		t.Fatalf("expected one entry per logger, got %d and %d", logs.Len(), fallbackLogs.Len())
	}
	entry := logs.All()[0]
	if entry.Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for failures, got %s", entry.Level)
	}
	if entry.ContextMap()["invoiceId"] != "inv_1" || entry.ContextMap()["error"] != "boom" {
		t.Fatalf("unexpected fields %v", entry.ContextMap())
	}
	if fallbackLogs.All()[0].Level != zapcore.DebugLevel {
		t.Fatalf("expected debug level for regular events")
	}
}

func TestRecoveryMiddlewareWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if logs.Len() != 1 {
		t.Fatalf("expected panic to be logged")
	}
}

func TestSanitizeStringDropsControlCharacters(t *testing.T) {
	if got := SanitizeRoute("/a\nb\x00c"); got != "/abc" {
		t.Fatalf("unexpected route %q", got)
	}
	if got := SanitizeMethod("GETTTTTTTTTTTT"); len(got) != 10 {
		t.Fatalf("expected truncation, got %q", got)
	}
}

func TestEventLoggerMasksContactFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := EventLogger(zap.New(core))

	log(context.Background(), "invoice.created", map[string]any{
		"contact_phone": "0901234567",
		"note":          "leave at\ndoor",
		"quantity":      2,
	})

	fields := logs.All()[0].ContextMap()
	if fields["contact_phone"] != "*******567" {
		t.Fatalf("expected masked phone, got %v", fields["contact_phone"])
	}
	if fields["note"] != "leave atdoor" {
		t.Fatalf("expected control characters removed, got %q", fields["note"])
	}
	if fields["quantity"] != int64(2) {
		t.Fatalf("expected non-string values untouched, got %v", fields["quantity"])
	}
}
