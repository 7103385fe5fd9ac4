// SPDX-License-Identifier: MIT

package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProviderDisabled(t *testing.T) {
	p, err := NewProvider(context.Background(), Config{})
	require.NoError(t, err)
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestTracerAlwaysAvailable(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{ServiceName: "sd-watcher-afk"})
	require.NoError(t, err)

	tr := Tracer("test")
	_, span := tr.Start(context.Background(), "noop-span")
	span.End()
	assert.NotNil(t, tr)
}
