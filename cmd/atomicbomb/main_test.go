package main

import "testing"

func TestParseHeadersSplitsNameValue(t *testing.T) {
	got := parseHeaders([]string{"X-Trace: abc", "Authorization: Bearer xyz", "malformed"})
	if got["X-Trace"] != "abc" {
		t.Fatalf("X-Trace = %q, want abc", got["X-Trace"])
	}
	if got["Authorization"] != "Bearer xyz" {
		t.Fatalf("Authorization = %q, want %q", got["Authorization"], "Bearer xyz")
	}
	if _, ok := got["malformed"]; ok {
		t.Fatal("a line with no colon should be skipped, not stored")
	}
}

func TestParseHeadersEmptyReturnsNil(t *testing.T) {
	if got := parseHeaders(nil); got != nil {
		t.Fatalf("parseHeaders(nil) = %v, want nil", got)
	}
}

func TestParseFormSplitsPairs(t *testing.T) {
	fields := parseForm("a=1&b=2&c")
	if len(fields) != 3 {
		t.Fatalf("len(fields) = %d, want 3", len(fields))
	}
	if fields[0].Key != "a" || fields[0].Value != "1" {
		t.Fatalf("fields[0] = %+v", fields[0])
	}
	if fields[2].Key != "c" || fields[2].Value != "" {
		t.Fatalf("fields[2] = %+v, want key-only field", fields[2])
	}
}

func TestParseJSONBodyParsesObject(t *testing.T) {
	parsed, err := parseJSONBody(`{"x":1}`)
	if err != nil {
		t.Fatalf("parseJSONBody() error = %v", err)
	}
	m, ok := parsed.(map[string]any)
	if !ok {
		t.Fatalf("parsed = %T, want map[string]any", parsed)
	}
	if m["x"] != float64(1) {
		t.Fatalf("x = %v, want 1", m["x"])
	}
}

func TestParseJSONBodyRejectsInvalidJSON(t *testing.T) {
	if _, err := parseJSONBody("not json"); err == nil {
		t.Fatal("expected an error for invalid JSON")
	}
}
