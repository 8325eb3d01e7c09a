package cache

import "time"

// Stats is the measurement stored with every entry.
type Stats struct {
	FunctionName string
	TimeWall     float64 // seconds
	TimeCPU      float64 // seconds of process CPU time
	SaveDate     time.Time
}

// Wall returns TimeWall as a Duration.
func (s Stats) Wall() time.Duration { return seconds(s.TimeWall) }

// CPU returns TimeCPU as a Duration.
func (s Stats) CPU() time.Duration { return seconds(s.TimeCPU) }

// Header is the part of an entry that does not depend on the result type.
type Header struct {
	Digest string // full hex digest the entry was saved under
	Label  string
	Stats  Stats
}

// Record is the persisted unit: a header plus the function's result.
// Results held in interface-typed fields must have their concrete types
// registered with encoding/gob. gob does not distinguish empty from nil
// slices and maps: an empty non-nil result comes back nil on a hit.
type Record[R any] struct {
	Header
	Result R
}

func (r *Record[R]) header() *Header { return &r.Header }

// headered is implemented by *Record[R] for any R.
type headered interface{ header() *Header }

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
