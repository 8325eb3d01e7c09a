package hashing

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func mustSum(t *testing.T, vs ...any) Digest {
	t.Helper()
	d, err := Sum(vs...)
	require.NoError(t, err)
	return d
}

type point struct {
	X, Y  float64
	label string
}

type celsius float64

func TestHasher_Deterministic(t *testing.T) {
	t.Parallel()

	v := func() any {
		return []any{
			1, "two", 3.5, true, nil,
			map[string]any{"a": []int{1, 2, 3}, "b": point{1, 2, "p"}},
			&point{X: 4},
		}
	}
	require.Equal(t, mustSum(t, v()), mustSum(t, v()))
}

func TestHasher_MappingOrderInsensitive(t *testing.T) {
	t.Parallel()

	a := Mapping{Entries: []Entry{{Key: String("k1"), Value: Int(1)}, {Key: String("k2"), Value: Int(2)}}}
	b := Mapping{Entries: []Entry{{Key: String("k2"), Value: Int(2)}, {Key: String("k1"), Value: Int(1)}}}
	require.Equal(t, mustSum(t, a), mustSum(t, b))

	// Go maps iterate in random order; many keys make a lucky pass unlikely.
	m1 := map[int]string{}
	m2 := map[int]string{}
	for i := 0; i < 200; i++ {
		m1[i] = strings.Repeat("x", i%7)
	}
	for i := 199; i >= 0; i-- {
		m2[i] = strings.Repeat("x", i%7)
	}
	require.Equal(t, mustSum(t, m1), mustSum(t, m2))
}

func TestHasher_SequenceOrderSensitive(t *testing.T) {
	t.Parallel()

	require.NotEqual(t, mustSum(t, []any{"a", "b"}), mustSum(t, []any{"b", "a"}))
	require.NotEqual(t, mustSum(t, "a", "b"), mustSum(t, "b", "a"))
}

func TestHasher_Sensitivity(t *testing.T) {
	t.Parallel()

	base := mustSum(t, map[string]any{"n": 1, "xs": []string{"a"}})
	require.NotEqual(t, base, mustSum(t, map[string]any{"n": 2, "xs": []string{"a"}}))
	require.NotEqual(t, base, mustSum(t, map[string]any{"n": 1, "xs": []string{"b"}}))
	require.NotEqual(t, base, mustSum(t, map[string]any{"m": 1, "xs": []string{"a"}}))

	// Scalars of different types never collide.
	require.NotEqual(t, mustSum(t, 1), mustSum(t, "1"))
	require.NotEqual(t, mustSum(t, 1), mustSum(t, uint(1)))
	require.NotEqual(t, mustSum(t, 1), mustSum(t, 1.0))
}

func TestHasher_CompositeKindsDoNotCollide(t *testing.T) {
	t.Parallel()

	seq := Sequence{Tag: "list", Items: []Value{String("a"), Int(1)}}
	mp := Mapping{Entries: []Entry{{Key: String("a"), Value: Int(1)}}}
	tuple := Sequence{Tag: "tuple", Items: []Value{String("a"), Int(1)}}

	require.NotEqual(t, mustSum(t, seq), mustSum(t, mp))
	require.NotEqual(t, mustSum(t, seq), mustSum(t, tuple))
	// Nested boundaries are part of the digest.
	require.NotEqual(t,
		mustSum(t, []any{[]any{1, 2}, 3}),
		mustSum(t, []any{[]any{1}, 2, 3}))
}

func TestHasher_PointersHashByContent(t *testing.T) {
	t.Parallel()

	p1 := &point{X: 1, Y: 2}
	p2 := &point{X: 1, Y: 2}
	require.Equal(t, mustSum(t, p1), mustSum(t, p2))
	require.Equal(t, mustSum(t, p1), mustSum(t, *p1))

	var nilSlice []int
	require.Equal(t, mustSum(t, nilSlice), mustSum(t, []int{}))
}

func TestHasher_Arrays(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewSource(0))
	data := make([]float64, 500*500)
	for i := range data {
		data[i] = r.Float64()
	}
	same := append([]float64(nil), data...)

	a := NewArray([]int{500, 500}, data)
	b := NewArray([]int{500, 500}, same)
	require.Equal(t, mustSum(t, a), mustSum(t, b))

	same[12345] += 1e-12
	require.NotEqual(t, mustSum(t, a), mustSum(t, NewArray([]int{500, 500}, same)))

	// Shape is part of the tag.
	require.NotEqual(t, mustSum(t, a), mustSum(t, NewArray([]int{250, 1000}, data)))

	// Plain numeric slices and NewArray with the same shape agree.
	xs := []float64{1, 2, 3}
	require.Equal(t, mustSum(t, xs), mustSum(t, NewArray([]int{3}, xs)))

	// dtype is part of the tag even when bytes match.
	require.NotEqual(t, mustSum(t, []int64{0}), mustSum(t, []float64{0}))

	// Named element types hash like their underlying kind.
	require.Equal(t, mustSum(t, []celsius{1.5}), mustSum(t, []float64{1.5}))
	require.Equal(t, mustSum(t, [2]float64{1, 2}), mustSum(t, []float64{1, 2}))
}

func TestHasher_FloatEdgeCases(t *testing.T) {
	t.Parallel()

	require.Equal(t, mustSum(t, math.NaN()), mustSum(t, math.NaN()))
	require.NotEqual(t, mustSum(t, 0.0), mustSum(t, math.Copysign(0, -1)))

	m1 := map[float64]int{math.NaN(): 1, math.NaN(): 2}
	m2 := map[float64]int{math.NaN(): 2, math.NaN(): 1}
	require.Equal(t, mustSum(t, m1), mustSum(t, m2))
}

func TestHasher_Time(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	local := ts.In(time.FixedZone("X", 3600))
	require.Equal(t, mustSum(t, ts), mustSum(t, local))
	require.NotEqual(t, mustSum(t, ts), mustSum(t, ts.Add(time.Nanosecond)))
}

func TestHasher_UnsupportedClassObject(t *testing.T) {
	t.Parallel()

	_, err := Sum(reflect.TypeOf(point{}))
	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	require.Equal(t, "reflect.Type", ute.Type)

	_, err = Sum([]any{1, map[string]any{"cls": reflect.TypeOf(0)}})
	require.ErrorAs(t, err, &ute)
	require.Equal(t, "[1][cls]", ute.Path)
}

func TestHasher_UnsupportedChan(t *testing.T) {
	t.Parallel()

	type holder struct {
		Name string
		Ch   chan int
	}
	_, err := Sum(holder{Name: "x", Ch: make(chan int)})
	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)
	require.Equal(t, ".Ch", ute.Path)
	require.Contains(t, ute.Error(), "chan int")
}

type node struct {
	Next *node
	V    int
}

func TestHasher_CyclicValueFailsExplicitly(t *testing.T) {
	t.Parallel()

	n := &node{V: 1}
	n.Next = n
	_, err := Sum(n)
	require.True(t, errors.Is(err, ErrTooDeep), "got %v", err)

	hs := New(Options{MaxDepth: 3})
	deep := []any{[]any{[]any{[]any{[]any{1}}}}}
	require.ErrorIs(t, hs.Update(deep), ErrTooDeep)
}

type version struct {
	Major, Minor int
	cache        map[string]string // must not influence the digest
}

func (v version) HashValue() (Value, error) {
	return Sequence{Tag: "version", Items: []Value{Int(int64(v.Major)), Int(int64(v.Minor))}}, nil
}

type handle struct {
	ID  string
	ptr uintptr
}

func TestHasher_ExtensionPoints(t *testing.T) {
	t.Parallel()

	a := version{1, 2, map[string]string{"x": "y"}}
	b := version{1, 2, nil}
	require.Equal(t, mustSum(t, a), mustSum(t, b))

	// Without a converter the uintptr field is rejected.
	_, err := Sum(handle{ID: "h", ptr: 0xdead})
	var ute *UnsupportedTypeError
	require.ErrorAs(t, err, &ute)

	Register(func(h handle) (Value, error) { return String(h.ID), nil })
	require.Equal(t, mustSum(t, handle{ID: "h", ptr: 1}), mustSum(t, handle{ID: "h", ptr: 2}))
}

type stamped struct {
	Name string
	at   time.Time
}

type revision struct {
	N    int
	memo string
}

func (r *revision) HashValue() (Value, error) { return Int(int64(r.N)), nil }

// Values stored in interfaces and maps are not addressable; they must hash
// the same as the variables they were copied from.
func TestHasher_NestedInInterfaceAndMap(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := stamped{Name: "a", at: ts}
	direct := mustSum(t, s)
	inSlice := mustSum(t, []any{s})
	require.NotEqual(t, direct, inSlice)
	require.Equal(t, inSlice, mustSum(t, []any{stamped{Name: "a", at: ts.In(time.FixedZone("X", 3600))}}))
	require.NotEqual(t, inSlice, mustSum(t, []any{stamped{Name: "a", at: ts.Add(time.Second)}}))

	byName := mustSum(t, map[string]stamped{"k": s})
	require.NotEqual(t, byName, mustSum(t, map[string]stamped{"k": {Name: "a", at: ts.Add(time.Second)}}))
	mustSum(t, map[stamped]int{s: 1})
	mustSum(t, map[string]any{"k": s})

	// A pointer-receiver Valuer is used whether the value is a variable,
	// a map value or an interface element.
	r := revision{N: 3, memo: "x"}
	require.Equal(t, mustSum(t, Int(3)), mustSum(t, r))
	require.Equal(t,
		mustSum(t, map[string]revision{"r": {N: 3, memo: "x"}}),
		mustSum(t, map[string]revision{"r": {N: 3, memo: "y"}}))
	require.NotEqual(t,
		mustSum(t, map[string]revision{"r": {N: 3}}),
		mustSum(t, map[string]revision{"r": {N: 4}}))
	require.Equal(t, mustSum(t, []any{r}), mustSum(t, []any{revision{N: 3, memo: "z"}}))
}

func TestHasher_Count(t *testing.T) {
	t.Parallel()

	hs := New(Options{})
	require.NoError(t, hs.Update([]any{1, 2, []any{3}}))
	// 3 scalars + inner list + outer list
	require.Equal(t, 5, hs.Count())
}

func TestDigest_Hex(t *testing.T) {
	t.Parallel()

	d := mustSum(t, "x")
	require.Len(t, d.Hex(), 64)
	require.Equal(t, d.Hex(), d.String())
}
