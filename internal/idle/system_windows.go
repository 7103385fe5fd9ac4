//go:build windows

// SPDX-License-Identifier: MIT

package idle

import (
	"context"
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32               = syscall.NewLazyDLL("user32.dll")
	kernel32             = syscall.NewLazyDLL("kernel32.dll")
	procGetLastInputInfo = user32.NewProc("GetLastInputInfo")
	procGetTickCount     = kernel32.NewProc("GetTickCount")
)

type lastInputInfo struct {
	cbSize uint32
	dwTime uint32
}

type winProvider struct{}

func systemProvider() (Provider, error) {
	return &winProvider{}, nil
}

func (*winProvider) Name() string { return "windows" }

func (*winProvider) SecondsSinceLastInput(_ context.Context) (time.Duration, error) {
	var info lastInputInfo
	info.cbSize = uint32(unsafe.Sizeof(info))

	ret, _, err := procGetLastInputInfo.Call(uintptr(unsafe.Pointer(&info)))
	if ret == 0 {
		return 0, fmt.Errorf("idle: GetLastInputInfo: %w", err)
	}

	tick, _, _ := procGetTickCount.Call()
	return idleFromTicks(uint32(tick), info.dwTime), nil
}
