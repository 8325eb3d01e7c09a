package hashing

import (
	"encoding/binary"
	"math"
	"reflect"
	"strconv"
)

// Kind identifies the variant of a Value.
type Kind uint8

const (
	// KindScalar is a single value with a canonical text form.
	KindScalar Kind = iota + 1
	// KindArray is a numeric array hashed by its raw element bytes.
	KindArray
	// KindMapping is an unordered set of key/value pairs.
	KindMapping
	// KindSequence is an ordered list of values.
	KindSequence
	// KindCallee is the identity of a callable.
	KindCallee
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindMapping:
		return "mapping"
	case KindSequence:
		return "sequence"
	case KindCallee:
		return "callee"
	default:
		return "unknown"
	}
}

// Value is the closed set of shapes the hasher understands:
// Scalar, Array, Mapping, Sequence and Callee.
// New Go types are brought into the model through Register or Valuer,
// never by adding variants.
type Value interface {
	Kind() Kind
	sealed()
}

// Scalar is a leaf value. Text is canonical: equal scalars always have
// equal Type and Text.
type Scalar struct {
	Type string
	Text string
}

func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) sealed()    {}

func (s Scalar) canonical() string { return s.Type + ":" + s.Text }

// Nil is the scalar used for nil pointers, interfaces and funcs.
var Nil = Scalar{Type: "nil"}

// Bool returns a boolean scalar.
func Bool(b bool) Scalar { return Scalar{Type: "bool", Text: strconv.FormatBool(b)} }

// Int returns a signed integer scalar.
func Int(i int64) Scalar { return Scalar{Type: "int", Text: strconv.FormatInt(i, 10)} }

// Uint returns an unsigned integer scalar.
func Uint(u uint64) Scalar { return Scalar{Type: "uint", Text: strconv.FormatUint(u, 10)} }

// Float returns a floating point scalar using the shortest exact representation.
func Float(f float64) Scalar {
	return Scalar{Type: "float", Text: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Complex returns a complex scalar.
func Complex(c complex128) Scalar {
	return Scalar{Type: "complex", Text: strconv.FormatComplex(c, 'g', -1, 128)}
}

// String returns a string scalar.
func String(s string) Scalar { return Scalar{Type: "string", Text: s} }

// Bytes returns a byte-string scalar.
func Bytes(b []byte) Scalar { return Scalar{Type: "bytes", Text: string(b)} }

// Array is a numeric array. Data holds the elements in native layout,
// row-major for multi-dimensional shapes.
type Array struct {
	DType string
	Shape []int
	Data  []byte
}

func (Array) Kind() Kind { return KindArray }
func (Array) sealed()    {}

// Numeric is the set of element types NewArray accepts.
type Numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// NewArray builds an Array with an explicit shape (e.g. {500, 500} for a
// matrix). It panics if the shape does not match len(data).
func NewArray[T Numeric](shape []int, data []T) Array {
	n := 1
	for _, d := range shape {
		n *= d
	}
	if n != len(data) {
		panic("hashing.NewArray: shape does not match data length")
	}
	rt := reflect.TypeFor[T]()
	buf := make([]byte, 0, len(data)*int(rt.Size()))
	for _, v := range data {
		buf = appendNative(buf, reflect.ValueOf(v))
	}
	return Array{DType: rt.Kind().String(), Shape: append([]int(nil), shape...), Data: buf}
}

// appendNative appends the native-endian bytes of a numeric reflect value.
func appendNative(buf []byte, rv reflect.Value) []byte {
	ne := binary.NativeEndian
	switch rv.Kind() {
	case reflect.Int8:
		return append(buf, byte(rv.Int()))
	case reflect.Uint8:
		return append(buf, byte(rv.Uint()))
	case reflect.Int16:
		return ne.AppendUint16(buf, uint16(rv.Int()))
	case reflect.Uint16:
		return ne.AppendUint16(buf, uint16(rv.Uint()))
	case reflect.Int32:
		return ne.AppendUint32(buf, uint32(rv.Int()))
	case reflect.Uint32:
		return ne.AppendUint32(buf, uint32(rv.Uint()))
	case reflect.Float32:
		return ne.AppendUint32(buf, math.Float32bits(float32(rv.Float())))
	case reflect.Int, reflect.Int64:
		if rv.Type().Size() == 4 {
			return ne.AppendUint32(buf, uint32(rv.Int()))
		}
		return ne.AppendUint64(buf, uint64(rv.Int()))
	case reflect.Uint, reflect.Uint64:
		if rv.Type().Size() == 4 {
			return ne.AppendUint32(buf, uint32(rv.Uint()))
		}
		return ne.AppendUint64(buf, rv.Uint())
	case reflect.Float64:
		return ne.AppendUint64(buf, math.Float64bits(rv.Float()))
	case reflect.Complex64:
		c := rv.Complex()
		buf = ne.AppendUint32(buf, math.Float32bits(float32(real(c))))
		return ne.AppendUint32(buf, math.Float32bits(float32(imag(c))))
	case reflect.Complex128:
		c := rv.Complex()
		buf = ne.AppendUint64(buf, math.Float64bits(real(c)))
		return ne.AppendUint64(buf, math.Float64bits(imag(c)))
	}
	return buf
}

// Entry is one key/value pair of a Mapping.
type Entry struct {
	Key   Value
	Value Value
}

// Mapping is hashed independently of entry order.
type Mapping struct {
	Entries []Entry
}

func (Mapping) Kind() Kind { return KindMapping }
func (Mapping) sealed()    {}

// Sequence is hashed in order. Tag separates sequences of different
// nature ("list", "args", "struct:pkg.T") that hold the same items.
type Sequence struct {
	Tag   string
	Items []Value
}

func (Sequence) Kind() Kind { return KindSequence }
func (Sequence) sealed()    {}

// Callee identifies a callable. A nil Body marks an opaque callable whose
// name is all that is hashed.
type Callee struct {
	Name string
	Body []byte
}

func (Callee) Kind() Kind { return KindCallee }
func (Callee) sealed()    {}

// Opaque reports whether only the name of the callee is known.
func (c Callee) Opaque() bool { return c.Body == nil }

// Named returns an explicit callee identity. Bumping version changes every
// digest derived from it, which is how callers invalidate results of
// functions whose source is not available at run time.
func Named(name, version string) Callee {
	if version == "" {
		return Callee{Name: name}
	}
	return Callee{Name: name, Body: []byte("version:" + version)}
}
