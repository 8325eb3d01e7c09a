package hashing

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"
	"time"
	"unsafe"
)

// DefaultMaxDepth bounds recursion when Options.MaxDepth is zero.
const DefaultMaxDepth = 512

// Valuer is implemented by types that describe themselves to the hasher.
// The returned Value must depend only on the receiver's content.
type Valuer interface {
	HashValue() (Value, error)
}

var (
	typeType   = reflect.TypeFor[reflect.Type]()
	valueType  = reflect.TypeFor[Value]()
	valuerType = reflect.TypeFor[Valuer]()

	// registry maps reflect.Type to func(reflect.Value) (Value, error).
	registry sync.Map
)

func init() {
	Register(func(t time.Time) (Value, error) {
		return Scalar{Type: "time", Text: t.UTC().Format(time.RFC3339Nano)}, nil
	})
}

// Register installs a converter for values of type T. It takes precedence
// over Valuer and the built-in rules, and is the extension point for types
// whose structure is not their identity (handles, caches, clocks).
// Registering the same type twice replaces the earlier converter.
func Register[T any](fn func(T) (Value, error)) {
	registry.Store(reflect.TypeFor[T](), func(rv reflect.Value) (Value, error) {
		x, ok := interfaceOf(rv)
		if !ok {
			return nil, &UnsupportedTypeError{Type: rv.Type().String(), Reason: "registered type is not reachable"}
		}
		return fn(x.(T))
	})
}

// Of converts a Go value into the Value model.
func Of(v any) (Value, error) {
	return convert(v, DefaultMaxDepth)
}

func convert(v any, maxDepth int) (Value, error) {
	if v == nil {
		return Nil, nil
	}
	// Work on an addressable copy so that nested unexported fields can
	// still reach registered converters.
	rv := reflect.ValueOf(v)
	root := reflect.New(rv.Type()).Elem()
	root.Set(rv)
	c := converter{maxDepth: maxDepth}
	return c.convert(root, 0)
}

type converter struct {
	maxDepth int
}

func (c converter) convert(rv reflect.Value, depth int) (Value, error) {
	if depth > c.maxDepth {
		return nil, tooDeep(c.maxDepth)
	}
	if !rv.IsValid() {
		return Nil, nil
	}
	if rv.CanAddr() && !rv.CanInterface() {
		// Reached through an unexported field: re-derive it from its address
		// so that its elements can be copied and inspected.
		rv = reflect.NewAt(rv.Type(), rv.Addr().UnsafePointer()).Elem()
	}
	t := rv.Type()

	if t.Kind() != reflect.Interface && t.Implements(valueType) {
		if x, ok := interfaceOf(rv); ok {
			return x.(Value), nil
		}
	}
	if fn, ok := registry.Load(t); ok {
		return fn.(func(reflect.Value) (Value, error))(rv)
	}
	if t.Implements(typeType) && t.Kind() != reflect.Interface {
		return nil, &UnsupportedTypeError{
			Type:   "reflect.Type",
			Reason: "class objects cannot be hashed structurally",
		}
	}
	if t.Kind() != reflect.Interface {
		if t.Implements(valuerType) {
			if rv.Kind() == reflect.Pointer && rv.IsNil() {
				return Nil, nil
			}
			if x, ok := interfaceOf(rv); ok {
				return x.(Valuer).HashValue()
			}
		} else if rv.CanAddr() && reflect.PointerTo(t).Implements(valuerType) {
			if x, ok := interfaceOf(rv.Addr()); ok {
				return x.(Valuer).HashValue()
			}
		}
	}

	switch rv.Kind() {
	case reflect.Bool:
		return Bool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Uint(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float()), nil
	case reflect.Complex64, reflect.Complex128:
		return Complex(rv.Complex()), nil
	case reflect.String:
		return String(rv.String()), nil

	case reflect.Interface:
		if rv.IsNil() {
			return Nil, nil
		}
		return c.convert(addressable(rv.Elem()), depth)

	case reflect.Pointer:
		if rv.IsNil() {
			return Nil, nil
		}
		return c.convert(rv.Elem(), depth+1)

	case reflect.Func:
		if rv.IsNil() {
			return Nil, nil
		}
		return funcAt(rv.Pointer()), nil

	case reflect.Slice:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes()), nil
		}
		if isNumeric(elem.Kind()) {
			n := rv.Len() * int(elem.Size())
			var raw []byte
			if n > 0 {
				raw = unsafe.Slice((*byte)(rv.UnsafePointer()), n)
			}
			return Array{DType: elem.Kind().String(), Shape: []int{rv.Len()}, Data: bytes.Clone(raw)}, nil
		}
		return c.sequence(rv, "list", depth)

	case reflect.Array:
		elem := t.Elem()
		if elem.Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			for i := range b {
				b[i] = byte(rv.Index(i).Uint())
			}
			return Bytes(b), nil
		}
		if isNumeric(elem.Kind()) {
			buf := make([]byte, 0, rv.Len()*int(elem.Size()))
			for i := 0; i < rv.Len(); i++ {
				buf = appendNative(buf, rv.Index(i))
			}
			return Array{DType: elem.Kind().String(), Shape: []int{rv.Len()}, Data: buf}, nil
		}
		return c.sequence(rv, "list", depth)

	case reflect.Map:
		m := Mapping{Entries: make([]Entry, 0, rv.Len())}
		iter := rv.MapRange()
		for iter.Next() {
			k, err := c.convert(addressable(iter.Key()), depth+1)
			if err != nil {
				return nil, within(err, "{key}")
			}
			v, err := c.convert(addressable(iter.Value()), depth+1)
			if err != nil {
				return nil, within(err, fmt.Sprintf("[%v]", keyLabel(k)))
			}
			m.Entries = append(m.Entries, Entry{Key: k, Value: v})
		}
		return m, nil

	case reflect.Struct:
		seq := Sequence{Tag: "struct:" + t.String(), Items: make([]Value, 0, rv.NumField())}
		for i := 0; i < rv.NumField(); i++ {
			v, err := c.convert(rv.Field(i), depth+1)
			if err != nil {
				return nil, within(err, "."+t.Field(i).Name)
			}
			seq.Items = append(seq.Items, v)
		}
		return seq, nil
	}

	// Chan, UnsafePointer, Uintptr: only meaningful as identities.
	return nil, &UnsupportedTypeError{
		Type:   t.String(),
		Reason: rv.Kind().String() + " values have no reproducible content",
	}
}

func (c converter) sequence(rv reflect.Value, tag string, depth int) (Value, error) {
	seq := Sequence{Tag: tag, Items: make([]Value, 0, rv.Len())}
	for i := 0; i < rv.Len(); i++ {
		v, err := c.convert(rv.Index(i), depth+1)
		if err != nil {
			return nil, within(err, fmt.Sprintf("[%d]", i))
		}
		seq.Items = append(seq.Items, v)
	}
	return seq, nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}

// addressable returns rv itself or an addressable copy of it, so that
// registered converters and pointer-receiver Valuers see values held in
// interfaces and maps the same way as values held in variables.
func addressable(rv reflect.Value) reflect.Value {
	if rv.CanAddr() || !rv.CanInterface() {
		return rv
	}
	tmp := reflect.New(rv.Type()).Elem()
	tmp.Set(rv)
	return tmp
}

// interfaceOf returns rv as an interface value, also for values reached
// through unexported fields as long as they are addressable.
func interfaceOf(rv reflect.Value) (any, bool) {
	if rv.CanInterface() {
		return rv.Interface(), true
	}
	if rv.CanAddr() {
		return reflect.NewAt(rv.Type(), rv.Addr().UnsafePointer()).Elem().Interface(), true
	}
	return nil, false
}

func keyLabel(k Value) string {
	if s, ok := k.(Scalar); ok {
		return s.Text
	}
	return k.Kind().String()
}
