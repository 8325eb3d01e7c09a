//go:build !unix && !windows

package cache

import "time"

func processCPUTime() time.Duration { return 0 }
