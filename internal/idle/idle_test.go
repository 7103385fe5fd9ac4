// SPDX-License-Identifier: MIT

package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdleFromTicks(t *testing.T) {
	assert.Equal(t, 5*time.Second, idleFromTicks(15000, 10000))
	assert.Equal(t, time.Duration(0), idleFromTicks(42, 42))

	// Across a 32-bit tick wrap the unsigned distance is still correct.
	assert.Equal(t, 2*time.Second, idleFromTicks(1000, 4294966296))
}

func TestParseIdleMillis(t *testing.T) {
	d, err := parseIdleMillis("12500\n")
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Millisecond, d)

	_, err = parseIdleMillis("not-a-number")
	assert.Error(t, err)
}

func TestSimulatedProvider(t *testing.T) {
	p := NewSimulated(3 * time.Second)
	d, err := p.SecondsSinceLastInput(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, d)

	p.Set(10 * time.Minute)
	d, err = p.SecondsSinceLastInput(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 10*time.Minute, d)
}

func TestTrackerIdleGrowsAndResets(t *testing.T) {
	tr := NewTracker()
	base := time.Now()
	tr.now = func() time.Time { return base }
	tr.Touch()

	tr.now = func() time.Time { return base.Add(90 * time.Second) }
	d, err := tr.SecondsSinceLastInput(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	tr.Touch()
	d, err = tr.SecondsSinceLastInput(t.Context())
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
	assert.Equal(t, base.Add(90*time.Second), tr.LastActivity())
}

func TestNewSelector(t *testing.T) {
	p, err := New(SelectorSimulated)
	require.NoError(t, err)
	assert.Equal(t, SelectorSimulated, p.Name())

	p, err = New(SelectorTracker)
	require.NoError(t, err)
	assert.Equal(t, SelectorTracker, p.Name())

	_, err = New("teleport")
	assert.Error(t, err)
}
