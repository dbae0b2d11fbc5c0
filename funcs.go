package varcalc

import (
	"math"
	"strconv"
)

// Func is a function from reals to reals.
type Func interface {
	// Call evaluates the function. The arguments are passed in args, which
	// has a length for which CanCall returned true. Call may modify the
	// elements of args. Arguments outside the function's domain should
	// produce NaN, unless NaN would hide the mistake, in which case Call
	// returns a *DomainError.
	Call(args []float64) (float64, error)

	// CanCall returns whether the function can be called with n arguments.
	// The parser rejects calls with any other number of arguments.
	CanCall(n int) bool
}

// globalfuncs is the default function table. It is never modified after
// initialization.
var globalfuncs = map[string]Func{
	"fact":      Partial(factorial),
	"factorial": Partial(factorial),

	"log10": Monadic(math.Log10),
	"log2":  Monadic(math.Log2),
	"ln":    Monadic(math.Log),
	"log": Dyadic(func(base, x float64) float64 {
		return math.Log(x) / math.Log(base)
	}),

	"abs":   Monadic(math.Abs),
	"sqrt":  Monadic(math.Sqrt),
	"cbrt":  Monadic(math.Cbrt),
	"round": Monadic(round),
	"trunc": Monadic(math.Trunc),
	"ceil":  Monadic(math.Ceil),
	"floor": Monadic(math.Floor),

	"sin":  Monadic(math.Sin),
	"cos":  Monadic(math.Cos),
	"tan":  Monadic(math.Tan),
	"asin": Monadic(math.Asin),
	"acos": Monadic(math.Acos),
	"atan": Monadic(math.Atan),
}

// Funcs returns a copy of the default function table.
func Funcs() map[string]Func {
	m := make(map[string]Func, len(globalfuncs))
	for k, v := range globalfuncs {
		m[k] = v
	}
	return m
}

// Arity returns the smallest number of arguments up to limit with which fn
// can be called, or -1 if there is none.
func Arity(fn Func, limit int) int {
	for n := 0; n <= limit; n++ {
		if fn.CanCall(n) {
			return n
		}
	}
	return -1
}

type monadic struct {
	f func(float64) float64
}

func (m monadic) Call(args []float64) (float64, error) {
	return m.f(args[0]), nil
}

func (m monadic) CanCall(n int) bool {
	return n == 1
}

// Monadic wraps a function of one variable into a Func.
func Monadic(f func(x float64) float64) Func {
	return monadic{f}
}

type dyadic struct {
	f func(x, y float64) float64
}

func (d dyadic) Call(args []float64) (float64, error) {
	return d.f(args[0], args[1]), nil
}

func (d dyadic) CanCall(n int) bool {
	return n == 2
}

// Dyadic wraps a function of two variables into a Func. The first argument in
// an expression is passed as x.
func Dyadic(f func(x, y float64) float64) Func {
	return dyadic{f}
}

type partial struct {
	f func(float64) (float64, error)
}

func (p partial) Call(args []float64) (float64, error) {
	return p.f(args[0])
}

func (p partial) CanCall(n int) bool {
	return n == 1
}

// Partial wraps a function of one variable which is undefined for some
// arguments into a Func. f should return a *DomainError for those arguments.
func Partial(f func(x float64) (float64, error)) Func {
	return partial{f}
}

// factorial computes x! by iterated multiplication. x must be a non-negative
// integer.
func factorial(x float64) (float64, error) {
	if x < 0 || x != math.Trunc(x) {
		// NaN also lands here.
		return math.NaN(), &DomainError{X: x, Func: "factorial"}
	}
	r := 1.0
	for i := 2.0; i <= x && !math.IsInf(r, 1); i++ {
		r *= i
	}
	return r, nil
}

// round rounds to the nearest integer, with halves rounding toward positive
// infinity.
func round(x float64) float64 {
	r := math.Floor(x)
	if x-r >= 0.5 {
		r++
	}
	if r == 0 {
		return math.Copysign(0, x)
	}
	return r
}

// DomainError is an error returned when a function is called on arguments
// outside its domain and the result cannot be represented as NaN.
type DomainError struct {
	// X is the out-of-domain argument.
	X float64
	// Arg is the 1-based index of the argument.
	Arg int
	// Func is a name identifying the function.
	Func string
}

func (err *DomainError) Error() string {
	r := strconv.FormatFloat(err.X, 'g', -1, 64) + " outside domain"
	if err.Func != "" {
		r += " of " + err.Func
	}
	if err.Arg > 0 {
		r += " (argument " + strconv.Itoa(err.Arg) + ")"
	}
	return r
}
