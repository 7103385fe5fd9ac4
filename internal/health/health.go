// SPDX-License-Identifier: MIT

// Package health provides liveness and readiness checks for the watcher
// daemon. It supports Docker HEALTHCHECK and Kubernetes-style probes with
// per-component status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sd-tools/sd-watcher-afk/internal/idle"
	"github.com/sd-tools/sd-watcher-afk/internal/log"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of a single component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness probe payload.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    string                 `json:"uptime,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness probe payload.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is a single component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager aggregates health and readiness checks.
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager creates a health check manager.
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		started:  time.Now(),
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a component check to the manager.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	checks := make(map[string]CheckResult, len(m.checkers))
	status := StatusHealthy
	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			status = StatusUnhealthy
		case StatusDegraded:
			if status != StatusUnhealthy {
				status = StatusDegraded
			}
		}
	}
	return checks, status
}

// Health performs the liveness check. The process being alive is always
// healthy; component checks are only attached when verbose is requested.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    time.Since(m.started).Round(time.Second).String(),
		Timestamp: time.Now(),
	}

	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready performs the readiness check. The daemon is not ready while any
// component reports unhealthy.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		return resp
	}

	resp.Checks, resp.Status = m.runChecks(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth handles HTTP liveness requests.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady handles HTTP readiness requests.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")

	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str(log.FieldEvent, "readiness.checked").
		Str(log.FieldStatus, string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// ProviderChecker verifies the idle provider can still be queried.
type ProviderChecker struct {
	provider idle.Provider
}

// NewProviderChecker creates a checker that polls the idle provider once.
func NewProviderChecker(provider idle.Provider) *ProviderChecker {
	return &ProviderChecker{provider: provider}
}

func (c *ProviderChecker) Name() string { return "idle_provider" }

func (c *ProviderChecker) Check(ctx context.Context) CheckResult {
	idleFor, err := c.provider.SecondsSinceLastInput(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: c.provider.Name(),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("%s: idle %s", c.provider.Name(), idleFor.Round(time.Second)),
	}
}

// QueueChecker reports the heartbeat queue backlog. A non-empty queue means
// the server is (or recently was) unreachable, which degrades but does not
// fail the daemon.
type QueueChecker struct {
	depth    func() (int, error)
	maxItems int
}

// NewQueueChecker creates a checker over the queue depth.
func NewQueueChecker(depth func() (int, error), maxItems int) *QueueChecker {
	return &QueueChecker{depth: depth, maxItems: maxItems}
}

func (c *QueueChecker) Name() string { return "heartbeat_queue" }

func (c *QueueChecker) Check(_ context.Context) CheckResult {
	n, err := c.depth()
	if err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	switch {
	case c.maxItems > 0 && n >= c.maxItems:
		return CheckResult{
			Status:  StatusUnhealthy,
			Message: fmt.Sprintf("queue full (%d items), oldest heartbeats are being dropped", n),
		}
	case n > 0:
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("%d heartbeats queued for replay", n),
		}
	default:
		return CheckResult{Status: StatusHealthy, Message: "queue empty"}
	}
}

// HeartbeatChecker verifies heartbeats keep reaching the server. The
// watcher pings every poll interval, so a last-success older than a few
// intervals means delivery has stalled.
type HeartbeatChecker struct {
	lastSent func() time.Time
	pollTime func() time.Duration
}

// NewHeartbeatChecker creates a checker over the last accepted heartbeat.
func NewHeartbeatChecker(lastSent func() time.Time, pollTime func() time.Duration) *HeartbeatChecker {
	return &HeartbeatChecker{lastSent: lastSent, pollTime: pollTime}
}

func (c *HeartbeatChecker) Name() string { return "last_heartbeat" }

func (c *HeartbeatChecker) Check(_ context.Context) CheckResult {
	last := c.lastSent()
	if last.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no heartbeat accepted by the server yet",
		}
	}

	age := time.Since(last)
	if age > 5*c.pollTime() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last accepted heartbeat %s ago", age.Round(time.Second)),
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: fmt.Sprintf("last accepted heartbeat %s ago", age.Round(time.Second)),
	}
}
