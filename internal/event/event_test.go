// SPDX-License-Identifier: MIT

package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventWireFormat(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	e := New(ts, AFKData(true))
	e.Duration = Duration(1500 * time.Millisecond)

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "2025-03-14T09:26:53Z", decoded["timestamp"])
	assert.Equal(t, 1.5, decoded["duration"])

	data, ok := decoded["data"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, StatusAFK, data["status"])
	assert.Equal(t, "afk", data["app"])
	assert.Equal(t, "Idle time", data["title"])
}

func TestEventRoundTrip(t *testing.T) {
	e := New(time.Now(), AFKData(false))
	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var back Event
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, StatusNotAFK, back.Status())
	assert.True(t, e.Timestamp.Equal(back.Timestamp))
	assert.Equal(t, e.Duration, back.Duration)
}

func TestDurationUnmarshalRejectsGarbage(t *testing.T) {
	var d Duration
	assert.Error(t, d.UnmarshalJSON([]byte(`"five"`)))
}

func TestTimestampNormalisedToUTC(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	e := New(time.Date(2025, 1, 1, 12, 0, 0, 0, loc), AFKData(true))
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, 11, e.Timestamp.Hour())
}
