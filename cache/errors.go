package cache

import (
	"errors"

	"github.com/IvanBrykalov/memocache/hashing"
)

var (
	// ErrNotFound is returned by Store.Lookup when no entry exists for a key.
	// It is the expected outcome of a miss, not a failure.
	ErrNotFound = errors.New("cache: entry not found")

	// ErrNotFunc is returned by Cached for arguments that are not funcs.
	ErrNotFunc = hashing.ErrNotFunc

	// ErrNoDir is returned by New and NewStore when no cache directory is set.
	ErrNoDir = errors.New("cache: no cache directory configured")
)

// StorageError is an I/O or decoding failure of the cache directory other
// than a missing entry.
type StorageError struct {
	Op   string // "lookup", "decode" or "save"
	Path string
	Err  error
}

func (e *StorageError) Error() string {
	return "cache: " + e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }
