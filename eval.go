package varcalc

import (
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
)

// Context holds variable values for evaluating expressions. A Context is
// never modified after it is created, so it is safe to use concurrently.
type Context struct {
	names map[string]float64
}

// ContextOption is an option used when creating a context.
type ContextOption interface {
	ctxOption()
}

type (
	varopt struct {
		name string
		val  float64
	}
	varsopt map[string]float64
)

func (varopt) ctxOption()  {}
func (varsopt) ctxOption() {}

// SetVar sets the value of a variable in the context.
func SetVar(name string, val float64) ContextOption {
	return varopt{name, val}
}

// SetVars sets the values of any number of variables in the context. The map
// is copied.
func SetVars(vars map[string]float64) ContextOption {
	return varsopt(vars)
}

// NewContext creates a new evaluation context.
func NewContext(opts ...ContextOption) *Context {
	var ctx Context
	return ctx.Clone(opts...)
}

// Clone creates a copy of a context and applies options to it. Later options
// override earlier ones.
func (ctx *Context) Clone(opts ...ContextOption) *Context {
	n := Context{names: make(map[string]float64)}
	if ctx != nil {
		for name, val := range ctx.names {
			n.names[name] = val
		}
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		switch opt := opt.(type) {
		case varopt:
			n.names[opt.name] = opt.val
		case varsopt:
			for k, v := range opt {
				n.names[k] = v
			}
		default:
			panic("varcalc: unknown option type")
		}
	}
	return &n
}

// Lookup returns the value of a variable. If there is no such variable in the
// context, then the result is NaN and false. Reserved constants are not
// variables.
func (ctx *Context) Lookup(name string) (float64, bool) {
	if ctx == nil {
		return math.NaN(), false
	}
	v, ok := ctx.names[name]
	if !ok {
		return math.NaN(), false
	}
	return v, true
}

// Eval evaluates an expression in the context. It is the same as e.Eval(ctx).
func (ctx *Context) Eval(e *Expr) (float64, error) {
	return e.Eval(ctx)
}

// Eval evaluates the expression with variables from ctx, which may be nil.
// Variables missing from the context evaluate to NaN. The only errors come
// from function domain checks, e.g. the factorial of a negative number.
func (e *Expr) Eval(ctx *Context) (float64, error) {
	return e.n.eval(ctx)
}

// isReserved reports whether name is a constant that variables cannot shadow.
func isReserved(name string) bool {
	return name == "PI" || name == "E"
}

// value resolves a name. Reserved constants come before the context.
func (ctx *Context) value(name string) float64 {
	switch name {
	case "PI":
		return math.Pi
	case "E":
		return math.E
	}
	v, _ := ctx.Lookup(name)
	return v
}

// eval computes the node's value.
func (n *node) eval(ctx *Context) (float64, error) {
	switch n.kind {
	case nodeNum:
		return n.val, nil
	case nodeName:
		return ctx.value(n.name), nil
	case nodeCall:
		args := make([]float64, len(n.args))
		for i, arg := range n.args {
			v, err := arg.eval(ctx)
			if err != nil {
				return math.NaN(), err
			}
			args[i] = v
		}
		return n.fn.Call(args)
	case nodeNeg, nodeNot, nodeCpl, nodeFact:
		x, err := n.left.eval(ctx)
		if err != nil {
			return math.NaN(), err
		}
		switch n.kind {
		case nodeNeg:
			return -x, nil
		case nodeNot:
			return truth(x == 0), nil
		case nodeCpl:
			return float64(^toInt32(x)), nil
		default:
			return factorial(x)
		}
	case nodeLAnd, nodeLOr:
		l, err := n.left.eval(ctx)
		if err != nil {
			return math.NaN(), err
		}
		// The left side decides && when false and || when true.
		if (l != 0) == (n.kind == nodeLOr) {
			return truth(l != 0), nil
		}
		r, err := n.right.eval(ctx)
		if err != nil {
			return math.NaN(), err
		}
		return truth(r != 0), nil
	case nodeNone:
		panic("varcalc: invalid AST node " + n.kind.String())
	}
	l, err := n.left.eval(ctx)
	if err != nil {
		return math.NaN(), err
	}
	r, err := n.right.eval(ctx)
	if err != nil {
		return math.NaN(), err
	}
	return binary(n.kind, l, r), nil
}

// binary applies a non-short-circuiting binary operator.
func binary(op nodeKind, l, r float64) float64 {
	switch op {
	case nodeAdd:
		return l + r
	case nodeSub:
		return l - r
	case nodeMul:
		return l * r
	case nodeDiv:
		return l / r
	case nodePow:
		return math.Pow(l, r)
	case nodeEq:
		return truth(l == r)
	case nodeNe:
		return truth(l != r)
	case nodeLt:
		return truth(l < r)
	case nodeLe:
		return truth(l <= r)
	case nodeGt:
		return truth(l > r)
	case nodeGe:
		return truth(l >= r)
	case nodeShl:
		return float64(toInt32(l) << shiftCount(r))
	case nodeShr:
		return float64(toInt32(l) >> shiftCount(r))
	case nodeUshr:
		return float64(uint32(toInt32(l)) >> shiftCount(r))
	case nodeAnd:
		return float64(toInt32(l) & toInt32(r))
	case nodeXor:
		return float64(toInt32(l) ^ toInt32(r))
	case nodeXnor:
		return float64(^(toInt32(l) ^ toInt32(r)))
	case nodeOr:
		return float64(toInt32(l) | toInt32(r))
	default:
		panic("varcalc: invalid AST node " + op.String())
	}
}

func truth(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// toInt32 truncates x toward zero and reduces it modulo 2^32 into a signed
// 32-bit integer. NaN and infinities become 0.
func toInt32(x float64) int32 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(x), 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return int32(uint32(m))
}

// shiftCount gives the low five bits of the 32-bit truncation of x.
func shiftCount(x float64) uint32 {
	return uint32(toInt32(x)) & 31
}

// Eval is a shortcut to parse an expression and return its result using the
// default functions. Any failure is an *InvalidExpressionError.
func Eval(src io.RuneScanner, opts ...ContextOption) (float64, error) {
	a, err := Parse(src)
	if err != nil {
		return math.NaN(), &InvalidExpressionError{Err: err}
	}
	r, err := a.Eval(NewContext(opts...))
	if err != nil {
		return math.NaN(), &InvalidExpressionError{Err: err}
	}
	return r, nil
}

// EvalString is a shortcut to parse and evaluate a string expression.
func EvalString(src string, opts ...ContextOption) (float64, error) {
	r, err := Eval(strings.NewReader(src), opts...)
	var ie *InvalidExpressionError
	if errors.As(err, &ie) {
		ie.Expr = src
	}
	return r, err
}

// Evaluate evaluates an expression with variables taken from vars, which may
// be nil. Variables absent from vars evaluate to NaN. Any lexical, syntax,
// call, or domain error is reported as an *InvalidExpressionError.
func Evaluate(expression string, vars map[string]float64) (float64, error) {
	return EvalString(expression, SetVars(vars))
}

// InvalidExpressionError is the error returned by Eval, EvalString, and
// Evaluate for any expression that cannot be evaluated.
type InvalidExpressionError struct {
	// Expr is the expression text, if it is known.
	Expr string
	// Err is the underlying error.
	Err error
}

func (err *InvalidExpressionError) Error() string {
	if err.Expr == "" {
		return "invalid expression: " + err.Err.Error()
	}
	return "invalid expression " + strconv.Quote(err.Expr) + ": " + err.Err.Error()
}

func (err *InvalidExpressionError) Unwrap() error {
	return err.Err
}
