//go:build windows

package cache

import (
	"time"

	"golang.org/x/sys/windows"
)

// processCPUTime returns user plus kernel CPU time of this process.
func processCPUTime() time.Duration {
	var creation, exit, kernel, user windows.Filetime
	if err := windows.GetProcessTimes(windows.CurrentProcess(), &creation, &exit, &kernel, &user); err != nil {
		return 0
	}
	// FILETIME durations count 100ns ticks.
	ticks := func(ft windows.Filetime) int64 {
		return int64(ft.HighDateTime)<<32 | int64(ft.LowDateTime)
	}
	return time.Duration((ticks(kernel) + ticks(user)) * 100)
}
