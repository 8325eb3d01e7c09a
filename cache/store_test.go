package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IvanBrykalov/memocache/hashing"
	"github.com/stretchr/testify/require"
)

func testKey(t testing.TB, label string, vs ...any) Key {
	t.Helper()
	d, err := hashing.Sum(vs...)
	require.NoError(t, err)
	return Key{Digest: d, Label: label}
}

func newStore(t testing.TB, codec Codec) *Store {
	t.Helper()
	s, err := NewStore(StoreOptions{Dir: t.TempDir(), Codec: codec})
	require.NoError(t, err)
	return s
}

func testRecord(k Key, result []int) *Record[[]int] {
	return &Record[[]int]{
		Header: Header{
			Digest: k.Digest.Hex(),
			Label:  k.Label,
			Stats:  Stats{FunctionName: k.Label, TimeWall: 1.5, TimeCPU: 1.25, SaveDate: time.Unix(1700000000, 0)},
		},
		Result: result,
	}
}

func TestStore_Path(t *testing.T) {
	t.Parallel()

	s := newStore(t, GobCodec{})
	k := testKey(t, "pkg.invert", 1)
	hex := k.Digest.Hex()

	want := filepath.Join(s.Dir(), hex[:2], hex[:16]+".pkg.invert.gob.zst")
	require.Equal(t, want, s.Path(k))
	require.Equal(t, s.Path(k), s.Path(k))

	s2, err := NewStore(StoreOptions{Dir: s.Dir(), Codec: GobCodec{Compression: CompressGzip}})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(s2.Path(k), ".pkg.invert.gob.gz"))
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, c := range []Compression{CompressZstd, CompressGzip, CompressNone} {
		t.Run(string(c), func(t *testing.T) {
			t.Parallel()

			s := newStore(t, GobCodec{Compression: c})
			k := testKey(t, "f", "args")

			var got Record[[]int]
			require.ErrorIs(t, s.Lookup(k, &got), ErrNotFound)

			in := testRecord(k, []int{1, 2, 3})
			n, err := s.Save(k, in)
			require.NoError(t, err)

			fi, err := os.Stat(s.Path(k))
			require.NoError(t, err)
			require.Equal(t, fi.Size(), n)
			require.Equal(t, os.FileMode(0o644), fi.Mode().Perm())

			require.NoError(t, s.Lookup(k, &got))
			require.Equal(t, in.Result, got.Result)
			require.Equal(t, in.Stats.FunctionName, got.Stats.FunctionName)
			require.True(t, in.Stats.SaveDate.Equal(got.Stats.SaveDate))

			st, err := s.ReadStats(s.Path(k))
			require.NoError(t, err)
			require.Equal(t, 1.5, st.TimeWall)
			require.Equal(t, 1250*time.Millisecond, st.CPU())
		})
	}
}

func TestStore_OverwriteLastWins(t *testing.T) {
	t.Parallel()

	s := newStore(t, GobCodec{})
	k := testKey(t, "f", 1)
	_, err := s.Save(k, testRecord(k, []int{1}))
	require.NoError(t, err)
	_, err = s.Save(k, testRecord(k, []int{2}))
	require.NoError(t, err)

	var got Record[[]int]
	require.NoError(t, s.Lookup(k, &got))
	require.Equal(t, []int{2}, got.Result)
}

// An entry written for another digest with the same 16-hex prefix must not
// be served.
func TestStore_DigestMismatch(t *testing.T) {
	t.Parallel()

	s := newStore(t, GobCodec{})
	k := testKey(t, "f", 1)
	rec := testRecord(k, []int{1})
	rec.Digest = strings.Repeat("0", 64)
	_, err := s.Save(k, rec)
	require.NoError(t, err)

	var got Record[[]int]
	err = s.Lookup(k, &got)
	var se *StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "decode", se.Op)
	require.NotErrorIs(t, err, ErrNotFound)
}

func TestStore_Truncated(t *testing.T) {
	t.Parallel()

	s := newStore(t, GobCodec{Compression: CompressNone})
	k := testKey(t, "f", 1)
	n, err := s.Save(k, testRecord(k, []int{1, 2, 3}))
	require.NoError(t, err)
	require.NoError(t, os.Truncate(s.Path(k), n/2))

	var got Record[[]int]
	var se *StorageError
	require.ErrorAs(t, s.Lookup(k, &got), &se)
}

func TestStore_EntriesAndCleanTemp(t *testing.T) {
	t.Parallel()

	s := newStore(t, GobCodec{})
	k1 := testKey(t, "a.f", 1)
	k2 := testKey(t, "b.g", 2)
	for _, k := range []Key{k1, k2} {
		_, err := s.Save(k, testRecord(k, nil))
		require.NoError(t, err)
	}

	// An orphaned temp file from a writer that died before rename.
	shard := filepath.Dir(s.Path(k1))
	orphan := filepath.Join(shard, "."+filepath.Base(s.Path(k1))+"-000001-123.tmp")
	require.NoError(t, os.WriteFile(orphan, []byte("partial"), 0o600))
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(orphan, old, old))
	// A foreign file is ignored.
	require.NoError(t, os.WriteFile(filepath.Join(shard, "README"), nil, 0o644))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	labels := map[string]string{}
	for _, e := range entries {
		labels[e.Label] = e.Prefix
		require.Positive(t, e.Size)
	}
	require.Equal(t, k1.Digest.Hex()[:16], labels["a.f"])
	require.Equal(t, k2.Digest.Hex()[:16], labels["b.g"])

	n, err := s.CleanTemp(time.Hour)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.NoFileExists(t, orphan)
	require.FileExists(t, s.Path(k1))
}

func TestStore_NoDir(t *testing.T) {
	t.Parallel()

	_, err := NewStore(StoreOptions{})
	require.ErrorIs(t, err, ErrNoDir)
	_, err = New(Options{})
	require.ErrorIs(t, err, ErrNoDir)
}

func TestSplitEntryName(t *testing.T) {
	t.Parallel()

	p, l, ok := splitEntryName("0123456789abcdef.cache.__Manager_.Do")
	require.True(t, ok)
	require.Equal(t, "0123456789abcdef", p)
	require.Equal(t, "cache.__Manager_.Do", l)

	_, _, ok = splitEntryName("0123456789abcdeX.f")
	require.False(t, ok)
	_, _, ok = splitEntryName("short.f")
	require.False(t, ok)
}

func TestLabel(t *testing.T) {
	t.Parallel()

	require.Equal(t, "cache.__Manager_.Do", Label("github.com/IvanBrykalov/memocache/cache.(*Manager).Do"))
	require.Equal(t, "main.run.func1", Label("main.run.func1"))
	require.Equal(t, "pkg.Map_go.shape.int_", Label("example.com/pkg.Map[go.shape.int]"))
	require.Equal(t, "anonymous", Label(""))
}
