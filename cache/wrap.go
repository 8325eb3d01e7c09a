package cache

import (
	"context"
	"fmt"
	"reflect"

	"github.com/IvanBrykalov/memocache/hashing"
)

// Wrap1 returns a memoized version of fn. The callee identity of fn is
// resolved once; the context is passed through and never hashed.
// It panics if fn is nil.
func Wrap1[A, R any](m *Manager, fn func(context.Context, A) (R, error)) func(context.Context, A) (R, error) {
	callee := mustCallee(fn)
	return func(ctx context.Context, a A) (R, error) {
		v, _, err := Do(ctx, m, Call{Callee: callee, Args: []any{a}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a)
		})
		return v, err
	}
}

// Wrap2 is Wrap1 for two-argument functions.
func Wrap2[A, B, R any](m *Manager, fn func(context.Context, A, B) (R, error)) func(context.Context, A, B) (R, error) {
	callee := mustCallee(fn)
	return func(ctx context.Context, a A, b B) (R, error) {
		v, _, err := Do(ctx, m, Call{Callee: callee, Args: []any{a, b}}, func(ctx context.Context) (R, error) {
			return fn(ctx, a, b)
		})
		return v, err
	}
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// Cached calls fn with args through m and returns its first result.
// fn may be any function returning R or (R, error); a leading
// context.Context parameter receives ctx and is not part of the key.
// Variadic functions take their variadic arguments unpacked.
func Cached[R any](ctx context.Context, m *Manager, fn any, args ...any) (R, error) {
	var zero R
	callee, err := hashing.FuncOf(fn)
	if err != nil {
		return zero, err
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()

	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	in, err := callArgs(ft, withCtx, args)
	if err != nil {
		return zero, err
	}
	withErr := ft.NumOut() == 2 && ft.Out(1) == errorType
	if !(ft.NumOut() == 1 || withErr) {
		return zero, fmt.Errorf("cache: %s must return R or (R, error)", ft)
	}
	if rt := reflect.TypeFor[R](); !ft.Out(0).AssignableTo(rt) {
		return zero, fmt.Errorf("cache: %s result %s is not assignable to %s", ft, ft.Out(0), rt)
	}

	v, _, err := Do(ctx, m, Call{Callee: callee, Args: args}, func(ctx context.Context) (R, error) {
		if withCtx {
			in[0] = reflect.ValueOf(&ctx).Elem()
		}
		out := fv.Call(in)
		var r R
		if res := out[0]; res.IsValid() {
			if x, ok := res.Interface().(R); ok {
				r = x
			}
		}
		if withErr {
			if e, _ := out[1].Interface().(error); e != nil {
				return r, e
			}
		}
		return r, nil
	})
	return v, err
}

// callArgs checks args against ft and converts them to reflect values,
// leaving slot 0 free for the context when withCtx is set.
func callArgs(ft reflect.Type, withCtx bool, args []any) ([]reflect.Value, error) {
	off := 0
	if withCtx {
		off = 1
	}
	fixed := ft.NumIn() - off
	if ft.IsVariadic() {
		fixed--
		if len(args) < fixed {
			return nil, fmt.Errorf("cache: %s wants at least %d arguments, got %d", ft, fixed, len(args))
		}
	} else if len(args) != fixed {
		return nil, fmt.Errorf("cache: %s wants %d arguments, got %d", ft, fixed, len(args))
	}

	in := make([]reflect.Value, off+len(args))
	for i, a := range args {
		var pt reflect.Type
		if ft.IsVariadic() && i >= fixed {
			pt = ft.In(ft.NumIn() - 1).Elem()
		} else {
			pt = ft.In(off + i)
		}
		if a == nil {
			switch pt.Kind() {
			case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Pointer, reflect.Slice:
				in[off+i] = reflect.Zero(pt)
				continue
			}
			return nil, fmt.Errorf("cache: argument %d: nil is not a valid %s", i, pt)
		}
		av := reflect.ValueOf(a)
		switch {
		case av.Type().AssignableTo(pt):
			in[off+i] = av
		case av.Type().ConvertibleTo(pt) && av.Kind() == pt.Kind():
			in[off+i] = av.Convert(pt)
		default:
			return nil, fmt.Errorf("cache: argument %d: %s is not assignable to %s", i, av.Type(), pt)
		}
	}
	return in, nil
}

func mustCallee(fn any) hashing.Callee {
	c, err := hashing.FuncOf(fn)
	if err != nil {
		panic(err)
	}
	return c
}
