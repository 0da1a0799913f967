// Package health serves parley's liveness and readiness endpoints.
//
// GET /healthz answers 200 while the process can serve HTTP, with the build
// version and uptime. GET /readyz runs every registered [Checker] in parallel,
// each under its own deadline, and answers 503 when any of them fails.
//
// A check reports one of three states. [StatusBusy] means the dependency is
// held by a listening session and was left alone; it counts as ready.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a check whose [Checker.Timeout] is zero.
const DefaultTimeout = 5 * time.Second

// Status is the state of a single check or of the whole endpoint.
type Status string

const (
	StatusOK   Status = "ok"
	StatusBusy Status = "busy"
	StatusFail Status = "fail"
)

// Report is what a passing check has to say. An empty Status means ok.
type Report struct {
	Status Status
	Detail string
}

// Checker is a named readiness check.
type Checker struct {
	// Name keys the check in the /readyz body, e.g. "audio".
	Name string

	// Timeout bounds one run of Check. Zero means [DefaultTimeout]. A check
	// still running at the deadline is reported as failed; its result is
	// discarded when it returns.
	Timeout time.Duration

	// Check returns an error when the dependency is unusable.
	Check func(ctx context.Context) (Report, error)
}

// checkResult is one entry of the /readyz "checks" map.
type checkResult struct {
	Status    Status `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	ElapsedMS int64  `json:"elapsed_ms"`
	TimeoutMS int64  `json:"timeout_ms"`
}

type readyBody struct {
	Status Status                 `json:"status"`
	Checks map[string]checkResult `json:"checks,omitempty"`
}

type liveBody struct {
	Status  Status  `json:"status"`
	Version string  `json:"version,omitempty"`
	UptimeS float64 `json:"uptime_s"`
}

// Handler serves /healthz and /readyz. The checker list is fixed at
// construction, so a Handler is safe for concurrent use.
type Handler struct {
	version  string
	started  time.Time
	now      func() time.Time
	checkers []Checker
}

// New creates a Handler reporting version on /healthz and running checkers
// on each /readyz request.
func New(version string, checkers ...Checker) *Handler {
	return &Handler{
		version:  version,
		started:  time.Now(),
		now:      time.Now,
		checkers: append([]Checker(nil), checkers...),
	}
}

// Healthz always answers 200.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, liveBody{
		Status:  StatusOK,
		Version: h.version,
		UptimeS: h.now().Sub(h.started).Seconds(),
	})
}

// Readyz answers 200 when no check failed and 503 otherwise.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	results := make([]checkResult, len(h.checkers))
	var wg sync.WaitGroup
	for i, c := range h.checkers {
		wg.Go(func() { results[i] = c.run(r.Context()) })
	}
	wg.Wait()

	body := readyBody{Status: StatusOK, Checks: make(map[string]checkResult, len(results))}
	for i, res := range results {
		body.Checks[h.checkers[i].Name] = res
		if res.Status == StatusFail {
			body.Status = StatusFail
		}
	}
	code := http.StatusOK
	if body.Status == StatusFail {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, body)
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

type outcome struct {
	report Report
	err    error
}

func (c Checker) run(parent context.Context) checkResult {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		rep, err := c.Check(ctx)
		done <- outcome{rep, err}
	}()

	var res checkResult
	select {
	case o := <-done:
		switch {
		case o.err != nil:
			res = checkResult{Status: StatusFail, Error: o.err.Error()}
		case o.report.Status == "":
			res = checkResult{Status: StatusOK, Detail: o.report.Detail}
		default:
			res = checkResult{Status: o.report.Status, Detail: o.report.Detail}
		}
	case <-ctx.Done():
		msg := "cancelled"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("timed out after %s", timeout)
		}
		res = checkResult{Status: StatusFail, Error: msg}
	}
	res.ElapsedMS = time.Since(start).Milliseconds()
	res.TimeoutMS = timeout.Milliseconds()
	return res
}

// writeJSON encodes v as JSON and writes it with the given status code. On
// encoding failure it falls back to a plain-text 500 response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
