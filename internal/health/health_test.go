// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sd-tools/sd-watcher-afk/internal/idle"
)

type staticChecker struct {
	name   string
	result CheckResult
}

func (c staticChecker) Name() string { return c.name }

func (c staticChecker) Check(_ context.Context) CheckResult { return c.result }

func TestHealthAlwaysHealthyWithoutVerbose(t *testing.T) {
	m := NewManager("1.2.3")
	m.RegisterChecker(staticChecker{"broken", CheckResult{Status: StatusUnhealthy}})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Empty(t, resp.Checks)
}

func TestHealthVerboseAggregates(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"ok", CheckResult{Status: StatusHealthy}})
	m.RegisterChecker(staticChecker{"slow", CheckResult{Status: StatusDegraded}})

	resp := m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestReadyNotReadyWhenUnhealthy(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"queue", CheckResult{Status: StatusUnhealthy, Error: "full"}})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestReadyDegradedStaysReady(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"queue", CheckResult{Status: StatusDegraded}})

	resp := m.Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusDegraded, resp.Status)
}

func TestServeReadyStatusCodes(t *testing.T) {
	m := NewManager("test")

	rec := httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 200, rec.Code)

	m.RegisterChecker(staticChecker{"down", CheckResult{Status: StatusUnhealthy}})
	rec = httptest.NewRecorder()
	m.ServeReady(rec, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, 503, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Ready)
}

func TestServeHealthVerbose(t *testing.T) {
	m := NewManager("test")
	m.RegisterChecker(staticChecker{"down", CheckResult{Status: StatusUnhealthy}})

	rec := httptest.NewRecorder()
	m.ServeHealth(rec, httptest.NewRequest("GET", "/healthz?verbose=true", nil))
	assert.Equal(t, 200, rec.Code) // liveness never fails

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Contains(t, resp.Checks, "down")
}

func TestProviderChecker(t *testing.T) {
	sim := idle.NewSimulated(3 * time.Second)
	c := NewProviderChecker(sim)
	assert.Equal(t, "idle_provider", c.Name())

	result := c.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)
	assert.Contains(t, result.Message, "simulated")
}

func TestQueueChecker(t *testing.T) {
	depth := 0
	var depthErr error
	c := NewQueueChecker(func() (int, error) { return depth, depthErr }, 10)

	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	depth = 3
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	depth = 10
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)

	depthErr = errors.New("store closed")
	assert.Equal(t, StatusUnhealthy, c.Check(context.Background()).Status)
}

func TestHeartbeatChecker(t *testing.T) {
	var last time.Time
	c := NewHeartbeatChecker(
		func() time.Time { return last },
		func() time.Duration { return time.Second },
	)

	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)

	last = time.Now()
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)

	last = time.Now().Add(-time.Minute)
	assert.Equal(t, StatusDegraded, c.Check(context.Background()).Status)
}
