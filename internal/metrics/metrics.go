// SPDX-License-Identifier: MIT

// Package metrics holds the prometheus collectors for the watcher.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pollsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "afk_polls_total",
		Help: "Total number of idle-time polls",
	})

	pollErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afk_poll_errors_total",
		Help: "Total number of failed idle-time polls by provider",
	}, []string{"provider"})

	pollDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "afk_poll_duration_seconds",
		Help:    "Duration of idle-time polls in seconds",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4.0, 8), // 0.5ms .. ~8s
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afk_transitions_total",
		Help: "AFK state transitions by direction",
	}, []string{"direction"}) // direction=to_afk|to_active

	heartbeatsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afk_heartbeats_total",
		Help: "Heartbeats handed to the dispatcher by outcome",
	}, []string{"outcome"}) // outcome=sent|queued|dropped|error

	lastHeartbeat = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "afk_last_heartbeat_timestamp",
		Help: "Unix timestamp of the last heartbeat accepted by the server",
	})

	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "afk_queue_depth",
		Help: "Number of heartbeats waiting in the durable queue",
	})

	queueDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "afk_queue_dropped_total",
		Help: "Heartbeats dropped because the queue was full",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "afk_server_request_duration_seconds",
		Help:    "Duration of requests to the activity-watch server",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "outcome"}) // outcome=success|failure

	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "afk_circuit_breaker_state",
		Help: "Circuit breaker state by component (active state has value 1)",
	}, []string{"component", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "afk_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"component", "reason"})
)

func IncPoll()                     { pollsTotal.Inc() }
func IncPollError(provider string) { pollErrorsTotal.WithLabelValues(provider).Inc() }

func ObservePoll(d time.Duration) { pollDuration.Observe(d.Seconds()) }

// RecordTransition counts a state flip. toAFK is true when the user went AFK.
func RecordTransition(toAFK bool) {
	direction := "to_active"
	if toAFK {
		direction = "to_afk"
	}
	transitionsTotal.WithLabelValues(direction).Inc()
}

func IncHeartbeat(outcome string) { heartbeatsTotal.WithLabelValues(outcome).Inc() }

func RecordHeartbeatAccepted() { lastHeartbeat.Set(float64(time.Now().Unix())) }

func SetQueueDepth(n int) { queueDepth.Set(float64(n)) }
func IncQueueDropped()    { queueDroppedTotal.Inc() }

// ObserveServerRequest records the latency of one server round trip.
func ObserveServerRequest(operation string, err error, d time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	requestDuration.WithLabelValues(operation, outcome).Observe(d.Seconds())
}

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a component.
func SetCircuitBreakerState(component, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(component, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(component, reason string) {
	circuitBreakerTrips.WithLabelValues(component, reason).Inc()
}
