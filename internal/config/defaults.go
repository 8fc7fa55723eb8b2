// Package config holds the load generator's default tunables: the
// values a batch or single-endpoint run falls back to when the caller
// does not override them. Adapted from the teacher's flat
// const-block-of-defaults idiom (this file originally held session/event
// buffer sizing for the control plane; it now holds the equivalent
// constants for this domain).
package config

const (
	// AppName and AppVersion compose the fixed User-Agent every outbound
	// request carries (SPEC_FULL.md §4.3 step 3): "<name> <version>
	// (<GOOS>; <GOARCH>)".
	AppName    = "atomic-bomb-engine"
	AppVersion = "0.1.0"

	// DefaultEndpointWeight is substituted for an endpoint with weight <= 0
	// (internal/planner treats it as 1, matching this constant).
	DefaultEndpointWeight = 1

	// LivePublishIntervalSeconds is the live result publisher's tick period.
	LivePublishIntervalSeconds = 1

	// MaxVerboseBodyBytes caps how much of a response body verbose mode
	// prints to stdout, restored from original_source/src/core/execute.rs's
	// verbose-mode body print (SPEC_FULL.md §2.3).
	MaxVerboseBodyBytes = 64 * 1024
)
