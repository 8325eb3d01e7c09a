package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
)

// salt separates composite kinds whose folded bytes could otherwise coincide.
const salt = "3.14159265358979323"

// Digest is the SHA-256 fingerprint of everything folded into a Hasher.
type Digest [sha256.Size]byte

// Hex returns the lowercase hex encoding of d.
func (d Digest) Hex() string { return hex.EncodeToString(d[:]) }

func (d Digest) String() string { return d.Hex() }

// Options configures a Hasher. Zero values are safe.
type Options struct {
	// Verbosity >= 3 logs every fold step at debug level.
	Verbosity int
	// Logger receives fold traces; nil => log.Default().
	Logger *log.Logger
	// MaxDepth bounds nesting; 0 => DefaultMaxDepth.
	MaxDepth int
}

// Hasher folds values into a running SHA-256 state. The same sequence of
// structurally equal values always yields the same Digest, in any process.
// A Hasher is not safe for concurrent use.
type Hasher struct {
	h     hash.Hash
	opt   Options
	count int
	buf   [8]byte
}

// New returns a Hasher with fresh state.
func New(opt Options) *Hasher {
	if opt.MaxDepth <= 0 {
		opt.MaxDepth = DefaultMaxDepth
	}
	if opt.Logger == nil {
		opt.Logger = log.Default()
	}
	hs := &Hasher{h: sha256.New(), opt: opt}
	if opt.Verbosity >= 3 {
		hs.trace(0, "start")
	}
	return hs
}

// Sum folds vs into a fresh Hasher and returns the digest.
func Sum(vs ...any) (Digest, error) {
	hs := New(Options{})
	for _, v := range vs {
		if err := hs.Update(v); err != nil {
			return Digest{}, err
		}
	}
	return hs.Digest(), nil
}

// Update converts v into the Value model and folds it.
// On error the state is unspecified and the Hasher should be discarded.
func (hs *Hasher) Update(v any) error {
	if val, ok := v.(Value); ok {
		return hs.UpdateValue(val)
	}
	val, err := convert(v, hs.opt.MaxDepth)
	if err != nil {
		return err
	}
	return hs.fold(val, 0)
}

// Convert turns v into the Value model under this Hasher's depth limit,
// without folding it.
func (hs *Hasher) Convert(v any) (Value, error) {
	if val, ok := v.(Value); ok {
		return val, nil
	}
	return convert(v, hs.opt.MaxDepth)
}

// UpdateValue folds an already converted value.
func (hs *Hasher) UpdateValue(v Value) error {
	return hs.fold(v, 0)
}

// Digest returns the fingerprint of the state so far. It does not reset
// the Hasher; further updates continue from the same state.
func (hs *Hasher) Digest() Digest {
	var d Digest
	hs.h.Sum(d[:0])
	return d
}

// Count returns the number of values folded so far, nested ones included.
func (hs *Hasher) Count() int { return hs.count }

func (hs *Hasher) fold(v Value, level int) error {
	if level > hs.opt.MaxDepth {
		return tooDeep(hs.opt.MaxDepth)
	}
	switch v := v.(type) {
	case Scalar:
		hs.writeString(v.canonical())

	case Callee:
		hs.writeString(v.Name)
		if v.Body != nil {
			hs.writeBytes(v.Body)
		}

	case Array:
		hs.writeString(salt + "array:" + v.DType + shapeString(v.Shape))
		hs.writeBytes(v.Data)

	case Mapping:
		hs.writeString(salt + "mapping")
		hs.writeUint(uint64(len(v.Entries)))
		entries, err := hs.sortedEntries(v.Entries, level)
		if err != nil {
			return err
		}
		for _, e := range entries {
			hs.writeString(e.keyHash)
			if err := hs.fold(e.value, level+1); err != nil {
				return err
			}
		}

	case Sequence:
		hs.writeString(salt + v.Tag)
		hs.writeUint(uint64(len(v.Items)))
		for _, item := range v.Items {
			if err := hs.fold(item, level+1); err != nil {
				return err
			}
		}

	case nil:
		hs.writeString(Nil.canonical())

	default:
		return &UnsupportedTypeError{Type: "hashing.Value", Reason: "unknown variant"}
	}

	hs.count++
	if hs.opt.Verbosity >= 3 {
		kind := "nil"
		if v != nil {
			kind = v.Kind().String()
		}
		hs.trace(level, kind)
	}
	return nil
}

type keyedEntry struct {
	keyHash string
	value   Value
	tie     string // digest of value, only computed on key collisions
}

// sortedEntries orders mapping entries by key hash. Scalar keys hash to
// their canonical text; composite keys to the hex digest of their fold.
func (hs *Hasher) sortedEntries(in []Entry, level int) ([]keyedEntry, error) {
	out := make([]keyedEntry, len(in))
	for i, e := range in {
		kh, err := hs.keyHash(e.Key, level)
		if err != nil {
			return nil, err
		}
		out[i] = keyedEntry{keyHash: kh, value: e.Value}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].keyHash < out[j].keyHash })

	// Equal key hashes only arise from keys like NaN; order those by value
	// so the result stays deterministic.
	for i := 1; i < len(out); i++ {
		if out[i].keyHash != out[i-1].keyHash {
			continue
		}
		j := i - 1
		for i < len(out) && out[i].keyHash == out[j].keyHash {
			i++
		}
		run := out[j:i]
		for k := range run {
			d, err := hs.sub(run[k].value, level)
			if err != nil {
				return nil, err
			}
			run[k].tie = d
		}
		sort.Slice(run, func(a, b int) bool { return run[a].tie < run[b].tie })
	}
	return out, nil
}

func (hs *Hasher) keyHash(k Value, level int) (string, error) {
	if s, ok := k.(Scalar); ok {
		return s.canonical(), nil
	}
	if k == nil {
		return Nil.canonical(), nil
	}
	d, err := hs.sub(k, level)
	if err != nil {
		return "", err
	}
	return "h:" + d, nil
}

// sub hashes v with an independent state, for use as a sort key.
func (hs *Hasher) sub(v Value, level int) (string, error) {
	child := &Hasher{h: sha256.New(), opt: hs.opt}
	child.opt.Verbosity = 0
	if err := child.fold(v, level+1); err != nil {
		return "", err
	}
	return child.Digest().Hex(), nil
}

func (hs *Hasher) writeUint(n uint64) {
	binary.LittleEndian.PutUint64(hs.buf[:], n)
	_, _ = hs.h.Write(hs.buf[:])
}

func (hs *Hasher) writeString(s string) {
	hs.writeUint(uint64(len(s)))
	_, _ = hs.h.Write([]byte(s))
}

func (hs *Hasher) writeBytes(b []byte) {
	hs.writeUint(uint64(len(b)))
	_, _ = hs.h.Write(b)
}

func (hs *Hasher) trace(level int, kind string) {
	hs.opt.Logger.Debug(strings.Repeat("    ", level)+"hashed",
		"objects", hs.count,
		"hash", hs.Digest().Hex()[:4],
		"latest", kind,
	)
}

func shapeString(shape []int) string {
	var b strings.Builder
	b.WriteByte('(')
	for i, d := range shape {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(d))
	}
	b.WriteByte(')')
	return b.String()
}
