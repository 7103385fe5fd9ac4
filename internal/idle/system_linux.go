//go:build linux

// SPDX-License-Identifier: MIT

package idle

// systemProvider prefers the X idle counter and falls back to the in-process
// tracker on headless or Wayland-only hosts.
func systemProvider() (Provider, error) {
	if p, err := newXprintidle(); err == nil {
		return p, nil
	}
	return NewTracker(), nil
}
