package hashing

import (
	"bytes"
	"errors"
	"go/ast"
	"go/parser"
	"go/printer"
	"go/token"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// ErrNotFunc is returned by FuncOf for arguments that are not funcs.
var ErrNotFunc = errors.New("hashing: not a func")

// bodies memoises the source fingerprint per function entry PC.
var bodies sync.Map // uintptr -> []byte (nil for opaque)

// FuncOf returns the identity of fn: its qualified name plus a fingerprint
// of its source. The fingerprint is the gofmt-normalised text of the
// declaration or literal found at the function's entry line, so editing the
// body changes every digest that includes fn, while comments and
// formatting do not.
//
// Functions without reachable Go source (assembly, stripped deployments,
// compiler-generated wrappers such as method values) are opaque: only the
// name is hashed. Calls made by fn into other functions are not followed.
func FuncOf(fn any) (Callee, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return Callee{}, ErrNotFunc
	}
	if rv.IsNil() {
		return Callee{}, ErrNotFunc
	}
	return funcAt(rv.Pointer()), nil
}

func funcAt(pc uintptr) Callee {
	f := runtime.FuncForPC(pc)
	if f == nil {
		return Callee{Name: "unknown"}
	}
	name := f.Name()
	if body, ok := bodies.Load(f.Entry()); ok {
		return Callee{Name: name, Body: body.([]byte)}
	}
	file, line := f.FileLine(f.Entry())
	body := sourceOf(file, line)
	bodies.Store(f.Entry(), body)
	return Callee{Name: name, Body: body}
}

// ShortName trims the package path from a qualified function name:
// "github.com/x/y.(*T).M" becomes "y.(*T).M".
func ShortName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func sourceOf(file string, line int) []byte {
	if file == "" || !strings.HasSuffix(file, ".go") {
		return nil
	}
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, file, nil, parser.SkipObjectResolution)
	if err != nil {
		return nil
	}

	// The entry line is the func keyword for functions with a stack check
	// prologue and the first statement for leaf functions, so take the
	// innermost declaration or literal whose lines span it.
	var found ast.Node
	ast.Inspect(f, func(n ast.Node) bool {
		if n == nil {
			return false
		}
		if fset.Position(n.Pos()).Line > line || fset.Position(n.End()).Line < line {
			return false
		}
		switch n.(type) {
		case *ast.FuncDecl, *ast.FuncLit:
			if found == nil || (n.Pos() >= found.Pos() && n.End() <= found.End()) {
				found = n
			}
		}
		return true
	})
	if found == nil {
		return nil
	}

	if fd, ok := found.(*ast.FuncDecl); ok {
		// Doc comments are not part of the behaviour.
		fd.Doc = nil
	}
	var buf bytes.Buffer
	cfg := printer.Config{Mode: printer.UseSpaces | printer.TabIndent, Tabwidth: 8}
	if err := cfg.Fprint(&buf, fset, found); err != nil {
		return nil
	}
	return buf.Bytes()
}
