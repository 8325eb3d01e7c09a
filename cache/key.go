package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/IvanBrykalov/memocache/hashing"
)

// Key addresses one cache entry. Label is the human-readable callee name;
// it only names files and log lines, the digest alone identifies the call.
type Key struct {
	Digest hashing.Digest
	Label  string
}

func (k Key) String() string { return k.Digest.Hex()[:16] + "." + k.Label }

// KeyFor derives the key of a call: the callee identity, then the result
// type when set, then the positional arguments as a sequence, then the keyword arguments as a
// mapping, all folded into one fresh Hasher.
func KeyFor(call Call, opt hashing.Options) (Key, error) {
	hs := hashing.New(opt)
	if err := hs.UpdateValue(call.Callee); err != nil {
		return Key{}, err
	}
	if call.Result != nil {
		if err := hs.UpdateValue(hashing.Scalar{Type: "result", Text: typeName(call.Result)}); err != nil {
			return Key{}, err
		}
	}

	args := hashing.Sequence{Tag: "args", Items: make([]hashing.Value, len(call.Args))}
	for i, a := range call.Args {
		v, err := hs.Convert(a)
		if err != nil {
			return Key{}, fmt.Errorf("argument %d: %w", i, err)
		}
		args.Items[i] = v
	}
	if err := hs.UpdateValue(args); err != nil {
		return Key{}, err
	}

	names := make([]string, 0, len(call.Kwargs))
	for name := range call.Kwargs {
		names = append(names, name)
	}
	sort.Strings(names)
	kwargs := hashing.Mapping{Entries: make([]hashing.Entry, 0, len(names))}
	for _, name := range names {
		v, err := hs.Convert(call.Kwargs[name])
		if err != nil {
			return Key{}, fmt.Errorf("argument %q: %w", name, err)
		}
		kwargs.Entries = append(kwargs.Entries, hashing.Entry{Key: hashing.String(name), Value: v})
	}
	if err := hs.UpdateValue(kwargs); err != nil {
		return Key{}, err
	}

	return Key{Digest: hs.Digest(), Label: Label(call.Callee.Name)}, nil
}

// typeName qualifies named types with their package path.
func typeName(t reflect.Type) string {
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// Label turns a qualified function name into a file-name-safe label,
// e.g. "github.com/x/y.(*T).M" becomes "y.__T_.M".
func Label(name string) string {
	name = hashing.ShortName(name)
	if name == "" {
		return "anonymous"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '_', r == '.', r == '-':
			return r
		}
		return '_'
	}, name)
}
