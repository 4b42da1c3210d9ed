package security

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"advisor-marketplace-backend/internal/logger"
	"advisor-marketplace-backend/internal/metrics"
)

const (
	HeaderCronSecret    = "x-cron-secret"
	HeaderCronTimestamp = "x-cron-timestamp"
)

// Rejection reasons returned to callers and written to the audit log.
const (
	ReasonMissingSecretHeader  = "missing_secret_header"
	ReasonInvalidSecret        = "invalid_secret"
	ReasonMissingTimestamp     = "missing_timestamp"
	ReasonUnparseableTimestamp = "unparseable_timestamp"
	ReasonReplayRejected       = "replay_rejected"
)

const (
	AuthMethodCurrent  = "current_secret"
	AuthMethodPrevious = "previous_secret"
	AuthMethodNone     = "none"
)

// CronAuthResult describes one gate decision. It is never persisted.
type CronAuthResult struct {
	Valid        bool     `json:"valid"`
	Method       string   `json:"auth_method"`
	DriftSeconds *float64 `json:"timestamp_delta_seconds,omitempty"`
	Reason       string   `json:"reason,omitempty"`
}

// CronGate authenticates scheduled-job requests with a rotating shared secret and a
// timestamp freshness check. Only the current and previous secrets are accepted.
type CronGate struct {
	current  []byte
	previous []byte
	maxDrift time.Duration
	now      func() time.Time
}

func NewCronGate(current, previous string, maxDrift time.Duration) *CronGate {
	return &CronGate{
		current:  []byte(current),
		previous: []byte(previous),
		maxDrift: maxDrift,
		now:      time.Now,
	}
}

// WithClock replaces the time source
func (g *CronGate) WithClock(now func() time.Time) *CronGate {
	g.now = now
	return g
}

// Authenticate decides whether the request may run the job and writes one audit line.
func (g *CronGate) Authenticate(r *http.Request) CronAuthResult {
	res := g.evaluate(r.Header.Get(HeaderCronSecret), r.Header.Get(HeaderCronTimestamp))

	args := []any{
		"path", r.URL.Path,
		"auth_method", res.Method,
		"valid", res.Valid,
	}
	if res.DriftSeconds != nil {
		args = append(args, "timestamp_delta_seconds", *res.DriftSeconds)
	}
	if res.Reason != "" {
		args = append(args, "reason", res.Reason)
	}
	logger.Audit("cron_auth", args...)
	metrics.ObserveCronAuth(res.Valid, res.Reason)

	return res
}

func (g *CronGate) evaluate(secret, timestamp string) CronAuthResult {
	if secret == "" {
		return reject(AuthMethodNone, ReasonMissingSecretHeader, nil)
	}

	method := g.match(secret)
	if method == AuthMethodNone {
		return reject(method, ReasonInvalidSecret, nil)
	}

	timestamp = strings.TrimSpace(timestamp)
	if timestamp == "" {
		return reject(method, ReasonMissingTimestamp, nil)
	}

	sent, err := strconv.ParseFloat(timestamp, 64)
	if err != nil || math.IsNaN(sent) || math.IsInf(sent, 0) {
		return reject(method, ReasonUnparseableTimestamp, nil)
	}

	now := float64(g.now().UnixNano()) / float64(time.Second)
	drift := math.Abs(now - sent)
	if drift > g.maxDrift.Seconds() {
		return reject(method, ReasonReplayRejected, &drift)
	}

	return CronAuthResult{Valid: true, Method: method, DriftSeconds: &drift}
}

func (g *CronGate) match(secret string) string {
	candidate := []byte(secret)
	if len(g.current) > 0 && subtle.ConstantTimeCompare(candidate, g.current) == 1 {
		return AuthMethodCurrent
	}
	if len(g.previous) > 0 && subtle.ConstantTimeCompare(candidate, g.previous) == 1 {
		return AuthMethodPrevious
	}
	return AuthMethodNone
}

func reject(method, reason string, drift *float64) CronAuthResult {
	return CronAuthResult{Valid: false, Method: method, Reason: reason, DriftSeconds: drift}
}

// SignCronRequest sets the headers a scheduled trigger must send.
func SignCronRequest(h http.Header, secret string, now time.Time) {
	h.Set(HeaderCronSecret, secret)
	h.Set(HeaderCronTimestamp, strconv.FormatInt(now.Unix(), 10))
}

// JobFunc runs one scheduled job and returns the summary sent back to the trigger.
type JobFunc func(ctx context.Context) (any, error)

// Wrap guards job behind the gate: 401 {error, reason} on rejection, 500 {error} when the
// job fails or panics, otherwise 200 with the job summary.
func (g *CronGate) Wrap(name string, job JobFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res := g.Authenticate(r)
		if !res.Valid {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized", "reason": res.Reason})
			return
		}

		summary, err := runJob(r.Context(), job)
		if err != nil {
			logger.Error("Scheduled job failed", "job", name, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, summary)
	})
}

func runJob(ctx context.Context, job JobFunc) (summary any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()
	return job(ctx)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("Failed to write response", "error", err)
	}
}
