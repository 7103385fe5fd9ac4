// SPDX-License-Identifier: MIT

package idle

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// xprintidle queries the X11 screensaver extension through the xprintidle
// binary, which prints milliseconds since the last input event.
type xprintidle struct {
	path string
}

func newXprintidle() (Provider, error) {
	path, err := exec.LookPath("xprintidle")
	if err != nil {
		return nil, fmt.Errorf("idle: xprintidle not found in PATH: %w", err)
	}
	return &xprintidle{path: path}, nil
}

func (x *xprintidle) Name() string { return SelectorXprintidle }

func (x *xprintidle) SecondsSinceLastInput(ctx context.Context) (time.Duration, error) {
	out, err := exec.CommandContext(ctx, x.path).Output()
	if err != nil {
		return 0, fmt.Errorf("idle: xprintidle: %w", err)
	}
	return parseIdleMillis(string(out))
}

func parseIdleMillis(out string) (time.Duration, error) {
	ms, err := strconv.ParseInt(strings.TrimSpace(out), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("idle: unexpected xprintidle output %q: %w", out, err)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
