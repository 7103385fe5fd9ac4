// SPDX-License-Identifier: MIT

package idle

import "time"

// idleFromTicks converts GetTickCount/GetLastInputInfo millisecond ticks to
// an idle duration. Both counters are 32-bit and wrap after ~49.7 days; the
// unsigned subtraction yields the correct distance across a single wrap.
func idleFromTicks(nowTick, lastInputTick uint32) time.Duration {
	return time.Duration(nowTick-lastInputTick) * time.Millisecond
}
