// Package calc evaluates the small arithmetic language used by field
// calculations, e.g. "round(value - 273.15, 1)" or "[wind.speed] * 3.6".
//
// Identifiers resolve to the current field value ("value"), to variables
// computed earlier in the same run, or to top-level keys of the flattened
// response. Bracketed references address any flattened key directly.
package calc

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/i474232898/openweather-collector/internal/jsonflat"
)

var (
	ErrSyntax     = errors.New("calc: syntax error")
	ErrUndefined  = errors.New("calc: undefined name")
	ErrArithmetic = errors.New("calc: arithmetic error")
)

// Env supplies the names an expression can see.
type Env struct {
	// Value is bound to the identifier "value".
	Value     any
	Variables map[string]any
	Flat      map[string]any
}

// Expr is a compiled expression. It is safe for concurrent use.
type Expr struct {
	src  string
	root *expression
}

// Compile parses src.
func Compile(src string) (*Expr, error) {
	root, err := parser.ParseString("", src)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrSyntax, src, err)
	}
	return &Expr{src: src, root: root}, nil
}

// MustCompile is Compile for expressions known to be valid.
func MustCompile(src string) *Expr {
	e, err := Compile(src)
	if err != nil {
		panic(err)
	}
	return e
}

func (e *Expr) String() string { return e.src }

// Eval computes the expression. Results that are NaN or infinite are errors.
func (e *Expr) Eval(env Env) (float64, error) {
	v, err := env.expression(e.root)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q is not a finite number", ErrArithmetic, e.src)
	}
	return v, nil
}

// Eval compiles and evaluates src in one step.
func Eval(src string, env Env) (float64, error) {
	e, err := Compile(src)
	if err != nil {
		return 0, err
	}
	return e.Eval(env)
}

func (env Env) expression(x *expression) (float64, error) {
	acc, err := env.term(x.Left)
	if err != nil {
		return 0, err
	}
	for _, r := range x.Right {
		v, err := env.term(r.Term)
		if err != nil {
			return 0, err
		}
		if r.Op == "+" {
			acc += v
		} else {
			acc -= v
		}
	}
	return acc, nil
}

func (env Env) term(x *term) (float64, error) {
	acc, err := env.unary(x.Left)
	if err != nil {
		return 0, err
	}
	for _, r := range x.Right {
		v, err := env.unary(r.Unary)
		if err != nil {
			return 0, err
		}
		switch r.Op {
		case "*":
			acc *= v
		case "/":
			if v == 0 {
				return 0, fmt.Errorf("%w: division by zero", ErrArithmetic)
			}
			acc /= v
		case "%":
			if v == 0 {
				return 0, fmt.Errorf("%w: modulo by zero", ErrArithmetic)
			}
			acc = math.Mod(acc, v)
		}
	}
	return acc, nil
}

func (env Env) unary(x *unary) (float64, error) {
	v, err := env.power(x.Power)
	if err != nil {
		return 0, err
	}
	if x.Sign == "-" {
		return -v, nil
	}
	return v, nil
}

func (env Env) power(x *power) (float64, error) {
	base, err := env.primary(x.Base)
	if err != nil {
		return 0, err
	}
	if x.Exponent == nil {
		return base, nil
	}
	exp, err := env.unary(x.Exponent)
	if err != nil {
		return 0, err
	}
	return math.Pow(base, exp), nil
}

func (env Env) primary(x *primary) (float64, error) {
	switch {
	case x.Number != nil:
		return *x.Number, nil
	case x.Reference != nil:
		key := strings.TrimSpace(strings.Trim(*x.Reference, "[]"))
		return env.reference(key)
	case x.Symbol != nil:
		if x.Symbol.Call != nil {
			return env.call(x.Symbol.Name, x.Symbol.Call.Args)
		}
		return env.identifier(x.Symbol.Name)
	default:
		return env.expression(x.Sub)
	}
}

func (env Env) identifier(name string) (float64, error) {
	switch name {
	case "value":
		if env.Value == nil {
			return 0, fmt.Errorf("%w: value (field has no source)", ErrUndefined)
		}
		return number(name, env.Value)
	case "pi":
		return math.Pi, nil
	}
	if v, ok := env.Variables[name]; ok {
		return number(name, v)
	}
	if v, ok := env.Flat[name]; ok {
		return number(name, v)
	}
	return 0, fmt.Errorf("%w: %s", ErrUndefined, name)
}

func (env Env) reference(key string) (float64, error) {
	if v, ok := env.Flat[key]; ok {
		return number(key, v)
	}
	if v, ok := env.Variables[key]; ok {
		return number(key, v)
	}
	return 0, fmt.Errorf("%w: [%s]", ErrUndefined, key)
}

func number(name string, v any) (float64, error) {
	if jsonflat.IsNull(v) {
		return 0, fmt.Errorf("%w: %s is null", ErrUndefined, name)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not numeric: %v", ErrArithmetic, name, err)
	}
	return f, nil
}

func (env Env) call(name string, args []*expression) (float64, error) {
	vals := make([]float64, len(args))
	for i, a := range args {
		v, err := env.expression(a)
		if err != nil {
			return 0, err
		}
		vals[i] = v
	}

	arity := func(lo, hi int) error {
		if len(vals) < lo || len(vals) > hi {
			return fmt.Errorf("%w: %s takes %d to %d arguments, got %d", ErrArithmetic, name, lo, hi, len(vals))
		}
		return nil
	}

	switch name {
	case "abs", "floor", "ceil", "sqrt":
		if err := arity(1, 1); err != nil {
			return 0, err
		}
		x := vals[0]
		switch name {
		case "abs":
			return math.Abs(x), nil
		case "floor":
			return math.Floor(x), nil
		case "ceil":
			return math.Ceil(x), nil
		}
		if x < 0 {
			return 0, fmt.Errorf("%w: sqrt of negative number", ErrArithmetic)
		}
		return math.Sqrt(x), nil
	case "round":
		if err := arity(1, 2); err != nil {
			return 0, err
		}
		digits := 0.0
		if len(vals) == 2 {
			digits = vals[1]
		}
		return Round(vals[0], int(digits)), nil
	case "min", "max":
		if err := arity(1, math.MaxInt); err != nil {
			return 0, err
		}
		out := vals[0]
		for _, v := range vals[1:] {
			if name == "min" {
				out = math.Min(out, v)
			} else {
				out = math.Max(out, v)
			}
		}
		return out, nil
	}
	return 0, fmt.Errorf("%w: function %s", ErrUndefined, name)
}

// Round rounds x half away from zero to the given number of decimal places.
// Negative digits round to tens, hundreds and so on.
func Round(x float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(x*p) / p
}
