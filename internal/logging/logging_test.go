package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitJSONOutputProducesParsableLines(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	Logger.Info().Str("key", "value").Msg("hello")

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("log line is not valid JSON: %v (line: %s)", err, buf.String())
	}
	if decoded["message"] != "hello" {
		t.Fatalf("message = %v, want hello", decoded["message"])
	}
}

func TestWithRunAndWithEndpointScopeFields(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: InfoLevel, JSONOutput: true, Output: &buf})

	scoped := WithEndpoint(WithRun("run-123"), "checkout")
	scoped.Info().Msg("scoped line")

	out := buf.String()
	if !strings.Contains(out, "run-123") || !strings.Contains(out, "checkout") {
		t.Fatalf("log line = %q, want run_id and endpoint fields present", out)
	}
}

func TestInitDefaultsUnknownLevelToInfo(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: Level("bogus"), JSONOutput: true, Output: &buf})

	Logger.Debug().Msg("should be suppressed")
	if buf.Len() != 0 {
		t.Fatalf("debug line was emitted at the default info level: %q", buf.String())
	}

	Logger.Info().Msg("should appear")
	if buf.Len() == 0 {
		t.Fatal("info line was suppressed unexpectedly")
	}
}
