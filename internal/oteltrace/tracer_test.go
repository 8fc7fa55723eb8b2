package oteltrace

import (
	"context"
	"testing"
)

func TestNoopStartAttemptReturnsUsableSpan(t *testing.T) {
	tr := Noop()
	ctx, span := tr.StartAttempt(context.Background(), "run-1", "ep", "GET", "http://example.invalid")
	if ctx == nil {
		t.Fatal("StartAttempt returned a nil context")
	}
	span.End()

	if err := tr.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v, want nil for a disabled provider", err)
	}
}

func TestNewRejectsUnknownExporter(t *testing.T) {
	cfg := Config{Enabled: true, Exporter: Exporter("bogus")}
	if _, err := New(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for an unknown exporter type")
	}
}
