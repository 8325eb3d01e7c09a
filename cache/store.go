package cache

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// StoreOptions configures a Store. Dir is required; a nil Codec means
// GobCodec with zstd and a nil Logger means log.Default().
type StoreOptions struct {
	Dir       string
	Codec     Codec
	Logger    *log.Logger
	Verbosity int
}

// Store maps keys to files under a root directory, sharded by the first
// two hex characters of the digest:
//
//	<dir>/<2-hex>/<16-hex>.<label>.<ext>
//
// Writes go to a temp file in the destination shard and are renamed into
// place, so readers in any process see either no entry or a complete one.
// Concurrent writers of the same key race benignly: last rename wins and
// every candidate is a complete record for that key.
type Store struct {
	dir   string
	codec Codec
	log   *log.Logger
	verb  int
}

// EntryInfo describes one file in the store.
type EntryInfo struct {
	Path    string
	Prefix  string // 16-hex digest prefix
	Label   string
	Size    int64
	ModTime time.Time
}

// NewStore creates the root directory if needed.
func NewStore(opt StoreOptions) (*Store, error) {
	if opt.Dir == "" {
		return nil, ErrNoDir
	}
	if opt.Codec == nil {
		opt.Codec = GobCodec{}
	}
	if opt.Logger == nil {
		opt.Logger = log.Default()
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		return nil, &StorageError{Op: "init", Path: opt.Dir, Err: err}
	}
	return &Store{dir: opt.Dir, codec: opt.Codec, log: opt.Logger, verb: opt.Verbosity}, nil
}

// Dir returns the root directory.
func (s *Store) Dir() string { return s.dir }

// Codec returns the codec entries are written with.
func (s *Store) Codec() Codec { return s.codec }

// Path returns the file an entry for k lives in. It is a pure function of
// the key and the codec extension.
func (s *Store) Path(k Key) string {
	hex := k.Digest.Hex()
	return filepath.Join(s.dir, hex[:2], hex[:16]+"."+k.Label+"."+s.codec.Ext())
}

// Lookup decodes the entry for k into into, which should be a *Record[R].
// A missing file yields ErrNotFound; anything else that prevents a full
// decode, including an entry saved under a different digest that shares
// the 16-hex prefix, yields a *StorageError.
func (s *Store) Lookup(k Key, into any) error {
	path := s.Path(k)
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return &StorageError{Op: "lookup", Path: path, Err: err}
	}
	defer f.Close()

	if err := s.codec.Decode(f, into); err != nil {
		return &StorageError{Op: "decode", Path: path, Err: err}
	}
	if h, ok := into.(headered); ok {
		if want := k.Digest.Hex(); h.header().Digest != want {
			return &StorageError{Op: "decode", Path: path,
				Err: fmt.Errorf("entry digest %.16s… does not match key %.16s…", h.header().Digest, want)}
		}
	}
	return nil
}

// Save writes record atomically as the entry for k and returns the number
// of bytes written. Temp files are removed on every failure path.
func (s *Store) Save(k Key, record any) (int64, error) {
	path := s.Path(k)
	shard := filepath.Dir(path)
	if err := os.MkdirAll(shard, 0o755); err != nil {
		return 0, &StorageError{Op: "save", Path: path, Err: err}
	}

	pattern := fmt.Sprintf(".%s-%06d-*.tmp", filepath.Base(path), time.Now().Nanosecond()/1000)
	tmp, err := os.CreateTemp(shard, pattern)
	if err != nil {
		return 0, &StorageError{Op: "save", Path: path, Err: err}
	}
	tmpName := tmp.Name()
	fail := func(err error) (int64, error) {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return 0, &StorageError{Op: "save", Path: path, Err: err}
	}

	cw := &countingWriter{w: tmp}
	if err := s.codec.Encode(cw, record); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return 0, &StorageError{Op: "save", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return 0, &StorageError{Op: "save", Path: path, Err: err}
	}
	return cw.n, nil
}

// Entries lists the entries written with this store's codec, sorted by
// path. Temp files and foreign files are skipped.
func (s *Store) Entries() ([]EntryInfo, error) {
	shards, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &StorageError{Op: "list", Path: s.dir, Err: err}
	}
	suffix := "." + s.codec.Ext()

	var out []EntryInfo
	for _, sh := range shards {
		if !sh.IsDir() || len(sh.Name()) != 2 {
			continue
		}
		dir := filepath.Join(s.dir, sh.Name())
		files, err := os.ReadDir(dir)
		if err != nil {
			return nil, &StorageError{Op: "list", Path: dir, Err: err}
		}
		for _, f := range files {
			name := f.Name()
			if f.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, suffix) {
				continue
			}
			prefix, label, ok := splitEntryName(strings.TrimSuffix(name, suffix))
			if !ok || !strings.HasPrefix(prefix, sh.Name()) {
				continue
			}
			fi, err := f.Info()
			if err != nil {
				continue // removed since ReadDir
			}
			out = append(out, EntryInfo{
				Path:    filepath.Join(dir, name),
				Prefix:  prefix,
				Label:   label,
				Size:    fi.Size(),
				ModTime: fi.ModTime(),
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// ReadHeader decodes only the header of the entry at path.
func (s *Store) ReadHeader(path string) (Header, error) {
	var rec struct{ Header Header }
	f, err := os.Open(path)
	if err != nil {
		return Header{}, &StorageError{Op: "lookup", Path: path, Err: err}
	}
	defer f.Close()
	if err := s.codec.Decode(f, &rec); err != nil {
		return Header{}, &StorageError{Op: "decode", Path: path, Err: err}
	}
	return rec.Header, nil
}

// ReadStats decodes only the stats of the entry at path.
func (s *Store) ReadStats(path string) (Stats, error) {
	h, err := s.ReadHeader(path)
	return h.Stats, err
}

// CleanTemp removes temp files older than olderThan, left behind by
// writers that died between create and rename. It returns the number of
// files removed.
func (s *Store) CleanTemp(olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	removed := 0
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		name := d.Name()
		if d.IsDir() || !strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ".tmp") {
			return nil
		}
		fi, err := d.Info()
		if err != nil || fi.ModTime().After(cutoff) {
			return nil
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		removed++
		if s.verb >= 2 {
			s.log.Info("removed temp file", "path", path)
		}
		return nil
	})
	if err != nil {
		return removed, &StorageError{Op: "clean", Path: s.dir, Err: err}
	}
	return removed, nil
}

// splitEntryName splits "<16-hex>.<label>" as produced by Path.
func splitEntryName(s string) (prefix, label string, ok bool) {
	if len(s) < 18 || s[16] != '.' {
		return "", "", false
	}
	for _, c := range s[:16] {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return "", "", false
		}
	}
	return s[:16], s[17:], true
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
