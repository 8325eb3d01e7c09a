// Package hashing computes deterministic, structural fingerprints of Go
// values, suitable as content-addressed cache keys that stay valid across
// process runs.
//
// Design
//
//   - Model: values are first converted into a closed set of variants
//     (Scalar, Array, Mapping, Sequence, Callee). Conversion is
//     type-directed; types the built-in rules do not cover can be brought in
//     with Register or by implementing Valuer.
//
//   - Folding: each variant is written into a SHA-256 state with
//     length-prefixed fields. Composite kinds are introduced by a salted
//     type tag so that, e.g., a list and a mapping with the same bytes never
//     collide. Mappings are folded in key order, sequences in item order.
//
//   - Identity: nothing depends on addresses. Pointers hash like their
//     pointee, funcs hash by name and source (see FuncOf), and values that
//     only make sense as identities (channels, unsafe pointers, reflect.Type)
//     are rejected with *UnsupportedTypeError.
//
//   - Limits: there is no cycle detection. Recursion is bounded by
//     Options.MaxDepth and fails with ErrTooDeep.
//
// Basic usage
//
//	hs := hashing.New(hashing.Options{})
//	if err := hs.Update(map[string]any{"n": 3, "xs": []float64{1, 2}}); err != nil {
//	    return err
//	}
//	key := hs.Digest().Hex()
//
// Matrices
//
//	m := hashing.NewArray([]int{500, 500}, data) // data is []float64 of len 250000
//	d, err := hashing.Sum(m)
package hashing
