// Package formula compiles the derived-sensor expressions found in display
// profiles. The grammar is deliberately small:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/" | "%") unary }
//	unary   = ("-" | "+") unary | primary
//	primary = number | read | call | "(" expr ")"
//	read    = ("r.get" | "get") "(" string ")"
//	call    = ("min" | "max" | "abs" | "float" | "int" | "round") "(" expr { "," expr } ")"
//
// Nothing else is accepted: there are no variables, attribute lookups or
// user-defined functions.
package formula

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/gadgetini/display-agent/internal/cerrors"
)

// Reader resolves a telemetry key to a number.
type Reader func(ctx context.Context, key string) (float64, error)

type evalFn func(ctx context.Context, read Reader) (float64, error)

// Program is a compiled formula. It is immutable and safe for concurrent use.
type Program struct {
	source string
	keys   []string
	eval   evalFn
}

// Compile parses expr once. The returned Program never re-parses.
func Compile(expr string) (*Program, error) {
	toks, err := tokenize(expr)
	if err != nil {
		return nil, cerrors.ErrInvalidFormula.WithCause(err).WithMessage("invalid formula %q: %v", expr, err)
	}
	p := &parser{toks: toks}
	fn, err := p.parseExpr()
	if err == nil && p.peek().kind != tokEOF {
		err = fmt.Errorf("unexpected %s at offset %d", p.peek(), p.peek().pos)
	}
	if err != nil {
		return nil, cerrors.ErrInvalidFormula.WithCause(err).WithMessage("invalid formula %q: %v", expr, err)
	}
	slices.Sort(p.keys)
	return &Program{source: expr, keys: slices.Compact(p.keys), eval: fn}, nil
}

// MustCompile is like Compile but panics on error. Used for built-in
// profiles only.
func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// Eval evaluates the program. Any read error, division by zero or non-finite
// result is returned as an error.
func (p *Program) Eval(ctx context.Context, read Reader) (float64, error) {
	v, err := p.eval(ctx, read)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("formula %q produced a non-finite value", p.source)
	}
	return v, nil
}

// Keys returns the telemetry keys the program reads, sorted and unique.
func (p *Program) Keys() []string {
	return slices.Clone(p.keys)
}

func (p *Program) String() string {
	return p.source
}

type builtin struct {
	minArgs, maxArgs int
	apply            func(args []float64) (float64, error)
}

var builtins = map[string]builtin{
	"min":   {1, -1, func(a []float64) (float64, error) { return slices.Min(a), nil }},
	"max":   {1, -1, func(a []float64) (float64, error) { return slices.Max(a), nil }},
	"abs":   {1, 1, func(a []float64) (float64, error) { return math.Abs(a[0]), nil }},
	"float": {1, 1, func(a []float64) (float64, error) { return a[0], nil }},
	"int":   {1, 1, func(a []float64) (float64, error) { return math.Trunc(a[0]), nil }},
	"round": {1, 2, func(a []float64) (float64, error) {
		if len(a) == 1 {
			return math.RoundToEven(a[0]), nil
		}
		scale := math.Pow(10, math.Trunc(a[1]))
		return math.Round(a[0]*scale) / scale, nil
	}},
}
