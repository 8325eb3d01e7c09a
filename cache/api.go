package cache

import (
	"reflect"
	"time"

	"github.com/IvanBrykalov/memocache/hashing"
)

// Call is one invocation to memoize: who is called and with what.
// Args and Kwargs are hashed structurally; Kwargs order is irrelevant.
type Call struct {
	Callee hashing.Callee
	Args   []any
	Kwargs map[string]any
	// Result is the type the entry is stored as. Do fills it in from its
	// type parameter, so one callee cached under two result types keeps
	// two entries.
	Result reflect.Type
}

// Report describes how a Do call was served.
type Report struct {
	Key  Key
	Path string

	Hit      bool
	Bypassed bool
	// Shared is set when the result came from a concurrent caller's
	// computation (Options.SingleFlight); the rest of the report is theirs.
	Shared bool

	HashTime time.Duration // key derivation
	LoadTime time.Duration // hit only
	SaveTime time.Duration // miss only

	ComputeWall time.Duration // miss only
	ComputeCPU  time.Duration // miss only

	// Recorded holds the stats stored with the entry that served a hit.
	Recorded Stats
}

// Saved estimates the time a hit saved: the originally recorded wall
// time minus the load time. It is zero for anything but a hit.
func (r Report) Saved() time.Duration {
	if !r.Hit {
		return 0
	}
	return r.Recorded.Wall() - r.LoadTime
}
