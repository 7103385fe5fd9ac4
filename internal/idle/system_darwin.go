//go:build darwin && cgo

// SPDX-License-Identifier: MIT

package idle

/*
#cgo LDFLAGS: -framework CoreGraphics
#include <CoreGraphics/CoreGraphics.h>

static double secondsSinceAnyInput(void) {
	return CGEventSourceSecondsSinceLastEventType(
		kCGEventSourceStateHIDSystemState, kCGAnyInputEventType);
}
*/
import "C"

import (
	"context"
	"time"
)

type quartzProvider struct{}

func systemProvider() (Provider, error) {
	return &quartzProvider{}, nil
}

func (*quartzProvider) Name() string { return "quartz" }

func (*quartzProvider) SecondsSinceLastInput(_ context.Context) (time.Duration, error) {
	secs := float64(C.secondsSinceAnyInput())
	return time.Duration(secs * float64(time.Second)), nil
}
