//go:build !windows && !linux && !(darwin && cgo)

// SPDX-License-Identifier: MIT

package idle

import (
	"fmt"
	"runtime"
)

func systemProvider() (Provider, error) {
	return nil, fmt.Errorf("idle: no system idle provider for %s/%s", runtime.GOOS, runtime.GOARCH)
}
