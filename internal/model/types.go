// Package model holds the plain data types shared across the load
// generator: endpoint input, assertions, and the ApiResult/BatchResult
// output snapshots. None of these types carry behavior of their own —
// mutation lives in internal/stats, internal/planner, and internal/pipeline.
package model

// Endpoint is one target the load generator drives requests against.
// Immutable for the duration of a run once planned (SPEC_FULL.md §3).
type Endpoint struct {
	Name       string            `json:"name"`
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	TimeoutSec int               `json:"timeout_seconds"`
	Weight     int               `json:"weight"`
	JSONBody   any               `json:"json_body,omitempty"`
	FormFields []FormField       `json:"form_fields,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Cookie     string            `json:"cookie_header,omitempty"`
	Assertions []Assertion       `json:"assertions,omitempty"`
}

// FormField is one entry of an ordered key/value form body. A slice, not a
// map, because form-encoded bodies are order-sensitive for some servers and
// the spec's data model describes the field as "ordered key/value pairs."
type FormField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Assertion checks one JSON-path extraction against an expected value. An
// endpoint may carry several; all must match (SPEC_FULL.md §4.5).
type Assertion struct {
	JSONPath string `json:"jsonpath"`
	Expected any    `json:"expected_value"`
}

// StepProfile configures the concurrency controller's ramp (SPEC_FULL.md §4.2).
// Nil means immediate release of all permits.
type StepProfile struct {
	IncreaseStep           float64 `json:"increase_step"`
	IncreaseIntervalSecond int     `json:"increase_interval_seconds"`
}

// Batch is the programmatic entry point's input (SPEC_FULL.md §6).
type Batch struct {
	Endpoints      []Endpoint   `json:"endpoints"`
	ConcurrentReqs int          `json:"concurrent_requests"`
	DurationSec    int          `json:"test_duration_secs"`
	Verbose        bool         `json:"verbose"`
	PreventSleep   bool         `json:"should_prevent_sleep"`
	Step           *StepProfile `json:"step,omitempty"`
	TargetRPS      float64      `json:"target_rps,omitempty"`
}

// ApiResult is the derived per-endpoint snapshot (SPEC_FULL.md §4.6).
type ApiResult struct {
	Name                 string  `json:"name"`
	URL                  string  `json:"url"`
	Method               string  `json:"method"`
	SuccessRate          float64 `json:"success_rate"`
	ErrorRate            float64 `json:"error_rate"`
	MedianResponseTimeMs int64   `json:"median_response_time"`
	ResponseTime95Ms     int64   `json:"response_time_95"`
	ResponseTime99Ms     int64   `json:"response_time_99"`
	TotalRequests        int64   `json:"total_requests"`
	RPS                  float64 `json:"rps"`
	MaxResponseTimeMs    int64   `json:"max_response_time"`
	MinResponseTimeMs    int64   `json:"min_response_time"`
	TotalDataKB          float64 `json:"total_data_kb"`
	ThroughputPerSecKB   float64 `json:"throughput_per_second_kb"`
	ConcurrentNumber     int     `json:"concurrent_number"`
}

// HTTPErrorEntry is one row of the global HTTP/transport error table, keyed
// by (status_code, message, url) per SPEC_FULL.md §3.
type HTTPErrorEntry struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	URL        string `json:"url"`
	Count      uint32 `json:"count"`
}

// AssertErrorEntry is one row of the assertion-error table, keyed by
// (url, message).
type AssertErrorEntry struct {
	URL     string `json:"url"`
	Message string `json:"message"`
	Count   uint32 `json:"count"`
}

// TestResult is the single-endpoint convenience-mode snapshot (SPEC_FULL.md §6).
type TestResult struct {
	TotalDurationSec     float64          `json:"total_duration"`
	SuccessRate          float64          `json:"success_rate"`
	MedianResponseTimeMs int64            `json:"median_response_time"`
	ResponseTime95Ms     int64            `json:"response_time_95"`
	ResponseTime99Ms     int64            `json:"response_time_99"`
	TotalRequests        int64            `json:"total_requests"`
	RPS                  float64          `json:"rps"`
	MaxResponseTimeMs    int64            `json:"max_response_time"`
	MinResponseTimeMs    int64            `json:"min_response_time"`
	ErrCount             int64            `json:"err_count"`
	TotalDataKB          float64          `json:"total_data_kb"`
	ThroughputPerSecKB   float64          `json:"throughput_per_second_kb"`
	HTTPErrors           []HTTPErrorEntry `json:"http_errors"`
}

// BatchResult is the multi-endpoint output snapshot (SPEC_FULL.md §3), both
// the 1Hz live publication and the final return value share this shape.
type BatchResult struct {
	TimestampMs          int64              `json:"timestamp_ms"`
	TotalDurationSec     float64            `json:"total_duration"`
	SuccessRate          float64            `json:"success_rate"`
	ErrorRate            float64            `json:"error_rate"`
	MedianResponseTimeMs int64              `json:"median_response_time"`
	ResponseTime95Ms     int64              `json:"response_time_95"`
	ResponseTime99Ms     int64              `json:"response_time_99"`
	TotalRequests        int64              `json:"total_requests"`
	SuccessfulRequests   int64              `json:"successful_requests"`
	ErrorCount           int64              `json:"error_count"`
	RPS                  float64            `json:"rps"`
	MaxResponseTimeMs    int64              `json:"max_response_time"`
	MinResponseTimeMs    int64              `json:"min_response_time"`
	TotalDataKB          float64            `json:"total_data_kb"`
	ThroughputPerSecKB   float64            `json:"throughput_per_second_kb"`
	HTTPErrors           []HTTPErrorEntry   `json:"http_errors"`
	AssertErrors         []AssertErrorEntry `json:"assert_errors"`
	ApiResults           []ApiResult        `json:"api_results"`
}
