//go:build !linux && !darwin

// SPDX-License-Identifier: MIT

package watcher

// Windows has no reparenting-to-init convention; rely on signals instead.
func parentAlive() bool { return true }
