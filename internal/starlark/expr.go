package starlark

import (
	"fmt"

	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Predeclared returns the globals visible to row expressions.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"json": json.Module,
		"math": math.Module,
	}
}

// Expr is a compiled row expression. The source is evaluated with the current
// row bound to the name "row", a dict keyed by column name.
//
// An Expr is frozen after compilation and safe for concurrent use as long as
// each goroutine evaluates with its own thread.
type Expr struct {
	name string
	src  string
	fn   starlark.Callable
}

// Compile parses src as a single Starlark expression. name identifies the
// expression in error messages.
func Compile(name, src string) (*Expr, error) {
	if _, err := syntax.ParseExpr(name, src, 0); err != nil { //nolint:staticcheck // SA1019: FileOptions.ParseExpr once the minimum starlark version allows
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	thread := &starlark.Thread{Name: name, Print: func(*starlark.Thread, string) {}}
	v, err := starlark.EvalOptions(&syntax.FileOptions{}, thread, name, "lambda row: ("+src+"\n)", Predeclared())
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}
	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("compile %s: got %s, want function", name, v.Type())
	}
	v.Freeze()
	return &Expr{name: name, src: src, fn: fn}, nil
}

// String returns the expression source.
func (e *Expr) String() string {
	return e.src
}

// Eval evaluates the expression for one row and returns the Starlark result.
func (e *Expr) Eval(thread *starlark.Thread, columns []string, row []any) (starlark.Value, error) {
	rowVal, err := RowToStarlark(columns, row)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	v, err := starlark.Call(thread, e.fn, starlark.Tuple{rowVal}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", e.name, err)
	}
	return v, nil
}

// EvalGo is like Eval but converts the result to a Go value.
func (e *Expr) EvalGo(thread *starlark.Thread, columns []string, row []any) (any, error) {
	v, err := e.Eval(thread, columns, row)
	if err != nil {
		return nil, err
	}
	return ToGo(v)
}

// EvalBool evaluates the expression and reports its truth value.
func (e *Expr) EvalBool(thread *starlark.Thread, columns []string, row []any) (bool, error) {
	v, err := e.Eval(thread, columns, row)
	if err != nil {
		return false, err
	}
	return bool(v.Truth()), nil
}
