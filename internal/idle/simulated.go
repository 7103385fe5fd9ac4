// SPDX-License-Identifier: MIT

package idle

import (
	"context"
	"sync"
	"time"
)

// Simulated is a programmable provider for tests and the testing profile.
type Simulated struct {
	mu   sync.Mutex
	idle time.Duration
}

// NewSimulated returns a provider that always reports the given idle time
// until Set is called.
func NewSimulated(idle time.Duration) *Simulated {
	return &Simulated{idle: idle}
}

func (s *Simulated) Name() string { return SelectorSimulated }

// Set overrides the reported idle time.
func (s *Simulated) Set(idle time.Duration) {
	s.mu.Lock()
	s.idle = idle
	s.mu.Unlock()
}

func (s *Simulated) SecondsSinceLastInput(_ context.Context) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idle, nil
}
