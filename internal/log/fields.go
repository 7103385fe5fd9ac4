// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldBucketID  = "bucket_id"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// Watcher fields
	FieldStatus     = "status"
	FieldIdle       = "idle_seconds"
	FieldTimeout    = "timeout"
	FieldPollTime   = "poll_time"
	FieldProvider   = "provider"
	FieldQueueDepth = "queue_depth"

	// Network fields
	FieldServerURL = "server_url"
	FieldListen    = "listen_addr"
)
