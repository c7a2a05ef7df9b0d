package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsIdentity(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/access/validate"),
		attribute.String("member_id", "m-1"),
		attribute.String("api_key", "secret"),
	)
	if len(attrs) != 1 {
		t.Fatalf("expected 1 attribute, got %d", len(attrs))
	}
	if attrs[0].Key != "http.route" {
		t.Fatalf("expected http.route to be retained, got %s", attrs[0].Key)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}

	err := SafeError(errors.New("vendor failed\n{\"api_key\":\"secret\"}"))
	if err.Error() != "vendor failed" {
		t.Fatalf("expected first line only, got %q", err.Error())
	}

	long := SafeError(errors.New(strings.Repeat("x", 1000)))
	if len(long.Error()) != 256 {
		t.Fatalf("expected message capped at 256, got %d", len(long.Error()))
	}
}
