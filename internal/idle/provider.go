// SPDX-License-Identifier: MIT

// Package idle answers the one question the watcher asks the platform:
// how long since the user last touched an input device.
package idle

import (
	"context"
	"fmt"
	"time"
)

// Provider reports the time elapsed since the last user input.
type Provider interface {
	Name() string
	SecondsSinceLastInput(ctx context.Context) (time.Duration, error)
}

// Provider selector names accepted in configuration.
const (
	SelectorAuto       = "auto"
	SelectorSimulated  = "simulated"
	SelectorXprintidle = "xprintidle"
	SelectorTracker    = "tracker"
)

// New returns the provider for the given selector. "auto" picks the platform
// default (GetLastInputInfo on Windows, Quartz on macOS, xprintidle with a
// tracker fallback on Linux).
func New(selector string) (Provider, error) {
	switch selector {
	case "", SelectorAuto:
		return systemProvider()
	case SelectorSimulated:
		return NewSimulated(0), nil
	case SelectorXprintidle:
		return newXprintidle()
	case SelectorTracker:
		return NewTracker(), nil
	default:
		return nil, fmt.Errorf("idle: unknown provider %q", selector)
	}
}
