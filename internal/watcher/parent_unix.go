//go:build linux || darwin

// SPDX-License-Identifier: MIT

package watcher

import "os"

// parentAlive reports whether the launching process still exists. When the
// watcher is reparented to init the desktop session that started it is gone
// and polling input makes no sense anymore.
func parentAlive() bool {
	return os.Getppid() != 1
}
