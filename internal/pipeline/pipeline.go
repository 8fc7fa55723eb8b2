// Package pipeline implements one request-pipeline attempt (SPEC_FULL.md
// §4.3/§4.4): build, send, classify, and fold into stats. Grounded on
// original_source/src/core/execute.rs's per-iteration loop body, with the
// allow-set widened from "2xx only" to the spec's explicit redirect-
// inclusive set and assertion evaluation added (§4.5, absent from that
// Rust snapshot — grounded instead on models/setup.rs's assertion shape).
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/qyzhg/atomic-bomb-engine/internal/assertion"
	"github.com/qyzhg/atomic-bomb-engine/internal/concurrency"
	"github.com/qyzhg/atomic-bomb-engine/internal/config"
	"github.com/qyzhg/atomic-bomb-engine/internal/errs"
	"github.com/qyzhg/atomic-bomb-engine/internal/model"
	"github.com/qyzhg/atomic-bomb-engine/internal/otelmetrics"
	"github.com/qyzhg/atomic-bomb-engine/internal/oteltrace"
	"github.com/qyzhg/atomic-bomb-engine/internal/stats"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// allowSet is the status-code allow-list of SPEC_FULL.md §4.3: 2xx plus
// the listed redirects.
var allowSet = map[int]struct{}{
	200: {}, 201: {}, 202: {}, 203: {}, 204: {}, 205: {}, 206: {}, 207: {}, 208: {}, 226: {},
	300: {}, 301: {}, 302: {}, 303: {}, 304: {}, 305: {}, 307: {}, 308: {},
}

// userAgent composes the fixed User-Agent of SPEC_FULL.md §4.3 step 3 as
// "<app-name> <app-version> (<GOOS>; <GOARCH>)". The parenthesised part
// carries the OS name and CPU architecture; no OS version is included.
func userAgent() string {
	return fmt.Sprintf("%s %s (%s; %s)", config.AppName, config.AppVersion, runtime.GOOS, runtime.GOARCH)
}

// Deps bundles the optional telemetry wrappers and shared state an
// Attempt call needs beyond its own arguments. Both wrappers default to
// no-op instances (SPEC_FULL.md §2.2) so Deps{} is always safe to pass.
type Deps struct {
	Metrics *otelmetrics.Metrics
	Tracer  *oteltrace.Tracer
	Limiter *concurrency.RateLimiter
	RunID   string
	Verbose bool
}

// Attempt runs one request against endpoint using client, folding the
// outcome into bundle (per-endpoint) and global (cross-endpoint) stats,
// and writing the endpoint's current ApiResult into resultSlot.
// Returns a *errs.LoadError only for a WorkerFatal condition (bad header,
// bad method); transport/HTTP/assertion failures are counted, not
// returned, so the worker pump's open loop continues.
func Attempt(ctx context.Context, ep *model.Endpoint, client *http.Client, bundle *stats.Bundle, global *stats.GlobalBundle, resultSlot *atomic.Pointer[model.ApiResult], concurrentWorkers int, deps Deps) error {
	if deps.Limiter != nil {
		if err := deps.Limiter.Acquire(ctx); err != nil {
			return nil
		}
	}

	req, err := buildRequest(ctx, ep)
	if err != nil {
		if fatal, ok := err.(*errs.LoadError); ok {
			return fatal
		}
		return errs.New(errs.WorkerFatal, "pipeline.buildRequest", ep.Name, err)
	}

	reqCtx := ctx
	var span trace.Span
	if deps.Tracer != nil {
		reqCtx, span = deps.Tracer.StartAttempt(ctx, deps.RunID, ep.Name, ep.Method, ep.URL)
		defer span.End()
	}
	req = req.WithContext(reqCtx)

	global.TotalRequests.Add(1)
	bundle.TotalRequests.Add(1)

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	durationMs := duration.Milliseconds()

	if err != nil {
		recordTransportError(ep, global, bundle, err)
		if span != nil {
			span.SetStatus(codes.Error, err.Error())
		}
		if deps.Metrics != nil {
			deps.Metrics.RecordLatency(ctx, ep.Name, durationMs, false)
			deps.Metrics.RecordError(ctx, ep.Name, "transport_error")
		}
		publishResult(ep, bundle, concurrentWorkers, resultSlot)
		return nil
	}
	defer resp.Body.Close()

	if span != nil {
		span.SetAttributes(httpStatusAttr(resp.StatusCode))
	}

	if _, ok := allowSet[resp.StatusCode]; !ok {
		recordHTTPError(ep, global, bundle, resp)
		if span != nil {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		}
		if deps.Metrics != nil {
			deps.Metrics.RecordLatency(ctx, ep.Name, durationMs, false)
			deps.Metrics.RecordError(ctx, ep.Name, "http_error")
		}
		publishResult(ep, bundle, concurrentWorkers, resultSlot)
		return nil
	}

	global.ObserveLatency(durationMs)
	bundle.ObserveLatency(durationMs)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		// Treated as a transport-level failure: the status was
		// acceptable but the body never arrived intact.
		recordTransportError(ep, global, bundle, err)
		publishResult(ep, bundle, concurrentWorkers, resultSlot)
		return nil
	}

	n := int64(len(body))
	if cl := resp.ContentLength; cl > 0 {
		n = cl
	}
	global.AddResponseBytes(n)
	bundle.AddResponseBytes(n)

	if len(ep.Assertions) > 0 {
		if failErr := assertion.Evaluate(body, ep.Assertions, ep.Name); failErr != nil {
			global.ErrorCount.Add(1)
			bundle.ErrorCount.Add(1)
			global.AssertErrors().Increment(ep.URL, failErr.Error())
			if span != nil {
				span.SetStatus(codes.Error, failErr.Error())
			}
			if deps.Metrics != nil {
				deps.Metrics.RecordError(ctx, ep.Name, "assertion_error")
			}
			publishResult(ep, bundle, concurrentWorkers, resultSlot)
			return nil
		}
	}

	global.SuccessfulRequests.Add(1)
	bundle.SuccessfulRequests.Add(1)

	if deps.Metrics != nil {
		deps.Metrics.RecordLatency(ctx, ep.Name, durationMs, true)
	}

	if deps.Verbose {
		printVerboseBody(body)
	}

	publishResult(ep, bundle, concurrentWorkers, resultSlot)
	return nil
}

func recordTransportError(ep *model.Endpoint, global *stats.GlobalBundle, bundle *stats.Bundle, err error) {
	global.ErrorCount.Add(1)
	bundle.ErrorCount.Add(1)
	global.HTTPErrors().Increment(0, err.Error(), ep.URL)
}

func recordHTTPError(ep *model.Endpoint, global *stats.GlobalBundle, bundle *stats.Bundle, resp *http.Response) {
	global.ErrorCount.Add(1)
	bundle.ErrorCount.Add(1)
	message := fmt.Sprintf("HTTP 错误: 状态码 %d", resp.StatusCode)
	global.HTTPErrors().Increment(resp.StatusCode, message, ep.URL)
}

func publishResult(ep *model.Endpoint, bundle *stats.Bundle, concurrentWorkers int, slot *atomic.Pointer[model.ApiResult]) {
	if slot == nil {
		return
	}
	snap := bundle.Snapshot()
	result := stats.DeriveApiResult(*ep, concurrentWorkers, snap, snap.ElapsedSec)
	slot.Store(&result)
}

func httpStatusAttr(code int) attribute.KeyValue {
	return attribute.Int("http.status_code", code)
}

func printVerboseBody(body []byte) {
	if len(body) > config.MaxVerboseBodyBytes {
		body = body[:config.MaxVerboseBodyBytes]
	}
	fmt.Println(string(body))
}

// buildRequest assembles one *http.Request per SPEC_FULL.md §4.3 steps
// 1-4: method, URL, headers (fixed User-Agent overlaid by endpoint
// headers, then Cookie), and a JSON or form body. Invalid header name/
// value or an unparseable method is fatal to the worker.
func buildRequest(ctx context.Context, ep *model.Endpoint) (*http.Request, error) {
	method := strings.ToUpper(ep.Method)
	if !validMethod(method) {
		return nil, errs.New(errs.WorkerFatal, "buildRequest", ep.Name, errs.ErrInvalidMethod)
	}

	body, contentType, err := buildBody(ep)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, ep.URL, body)
	if err != nil {
		return nil, errs.New(errs.WorkerFatal, "buildRequest", ep.Name, err)
	}

	req.Header.Set("User-Agent", userAgent())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for name, value := range ep.Headers {
		if !validHeaderName(name) || !validHeaderValue(value) {
			return nil, errs.New(errs.WorkerFatal, "buildRequest", ep.Name, errs.ErrInvalidHeader)
		}
		req.Header.Set(name, value)
	}

	if ep.Cookie != "" {
		req.Header.Set("Cookie", ep.Cookie)
	}

	return req, nil
}

func buildBody(ep *model.Endpoint) (io.Reader, string, error) {
	if ep.JSONBody != nil {
		encoded, err := json.Marshal(ep.JSONBody)
		if err != nil {
			return nil, "", errs.New(errs.WorkerFatal, "buildBody", ep.Name, err)
		}
		return bytes.NewReader(encoded), "application/json", nil
	}

	if len(ep.FormFields) > 0 {
		values := url.Values{}
		for _, f := range ep.FormFields {
			values.Add(f.Key, f.Value)
		}
		return strings.NewReader(values.Encode()), "application/x-www-form-urlencoded", nil
	}

	return nil, "", nil
}

// validMethod checks the method against RFC 7230's token grammar (1*tchar)
// rather than a fixed verb whitelist, matching original_source's use of
// Rust's http::Method::from_str — which accepts any valid method token,
// including CONNECT/TRACE and extension verbs, not just the common seven.
func validMethod(m string) bool {
	if m == "" {
		return false
	}
	for _, r := range m {
		if !isTchar(r) {
			return false
		}
	}
	return true
}

// isTchar reports whether r is an RFC 7230 tchar.
func isTchar(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case strings.ContainsRune("!#$%&'*+-.^_`|~", r):
		return true
	default:
		return false
	}
}

func validHeaderName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r == ':' || r == 0x7f {
			return false
		}
	}
	return true
}

// validHeaderValue checks value against RFC 7230's field-value grammar:
// visible ASCII plus space/tab, no other control characters.
func validHeaderValue(value string) bool {
	for _, r := range value {
		if r == '\t' {
			continue
		}
		if r < ' ' || r == 0x7f {
			return false
		}
	}
	return true
}
