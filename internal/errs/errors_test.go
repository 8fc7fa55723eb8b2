package errs

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadErrorFormatsWithAndWithoutEndpoint(t *testing.T) {
	withEp := New(ConfigError, "plan", "checkout", ErrEmptyEndpointName)
	if !strings.Contains(withEp.Error(), "checkout") {
		t.Fatalf("Error() = %q, want it to mention the endpoint", withEp.Error())
	}

	withoutEp := New(ConfigError, "plan", "", ErrEmptyEndpointName)
	if strings.Contains(withoutEp.Error(), "[]") {
		t.Fatalf("Error() = %q, want no empty bracket pair when endpoint is blank", withoutEp.Error())
	}
}

func TestLoadErrorUnwrapsToSentinel(t *testing.T) {
	wrapped := New(ConfigError, "plan", "a", ErrDuplicateEndpointName)
	if !errors.Is(wrapped, ErrDuplicateEndpointName) {
		t.Fatal("errors.Is did not find the sentinel through Unwrap")
	}
}

func TestLoadErrorAsMatchesKind(t *testing.T) {
	var target *LoadError
	err := error(New(WorkerFatal, "buildRequest", "a", ErrInvalidMethod))
	if !errors.As(err, &target) {
		t.Fatal("errors.As failed to match *LoadError")
	}
	if target.Kind != WorkerFatal {
		t.Fatalf("Kind = %v, want WorkerFatal", target.Kind)
	}
}
