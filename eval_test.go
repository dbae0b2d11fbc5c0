package varcalc_test

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zephyrtronium/varcalc"
)

func TestEvaluate(t *testing.T) {
	cases := []struct {
		name string
		src  string
		vars map[string]float64
		r    float64
	}{
		{"num", "1", nil, 1},
		{"precedence", "1 + 2 * 3", nil, 7},
		{"neg", "-2 + 3", nil, 1},
		{"frac", "1.5 * 2", nil, 3},
		{"parens", "(1 + 2) * (3+4)", nil, 21},
		{"pow", "2^10 + 2^4", nil, 1040},
		{"powright", "2^3^2", nil, 512},
		{"negpow", "-2^2", nil, 4},
		{"fact", "4!", nil, 24},
		{"fact0", "0!", nil, 1},
		{"factfunc", "fact(5) + factorial(3)", nil, 126},
		{"negfact", "-3!", nil, -6},
		{"sqrt", "sqrt(4) + sqrt(9)", nil, 5},
		{"abs", "abs(-123) + abs(456)", nil, 579},
		{"round", "round(3.14) + round(2.718)", nil, 6},
		{"roundhalf", "round(2.5) + round(-2.5)", nil, 1},
		{"trunc", "trunc(3.14) + trunc(2.718)", nil, 5},
		{"ceilfloor", "ceil(1.2) + floor(-1.2)", nil, 0},
		{"cbrt", "cbrt(27)", nil, 3},
		{"logs", "log10(100) + log2(1024) + ln(E)", nil, 13},
		{"div", "4/5/6", nil, 4.0 / 5.0 / 6.0},
		{"sub", "4-5-6", nil, -7},

		{"or", "3 | 5", nil, 7},
		{"and", "3 & 5", nil, 1},
		{"cpl", "~3", nil, -4},
		{"shl", "3 << 2", nil, 12},
		{"shr", "5 >> 2", nil, 1},
		{"shrneg", "-5 >> 2", nil, -2},
		{"ushr", "-5 >>> 2", nil, 1073741822},
		{"ushrpos", "5 >>> 1", nil, 2},
		{"shlmod", "1 << 33", nil, 2},
		{"shlwrap", "1 << 31", nil, -2147483648},
		{"trunc32", "4294967297 | 0", nil, 1},
		{"truncfrac", "-7.9 | 0", nil, -7},
		{"nanbits", "(0/0) | 0", nil, 0},
		{"xor", "0b1010 xor 0b1100", nil, 6},
		{"xnor", "0b1010 xnor 0b1100", nil, -7},
		{"bitprec", "1 | 2 xor 3 & 6", nil, 1 | (2 ^ (3 & 6))},

		{"eq", "2 == 2", nil, 1},
		{"ne", "2 != 2", nil, 0},
		{"lt", "1 < 2", nil, 1},
		{"le", "2 <= 1", nil, 0},
		{"gt", "2 > 1", nil, 1},
		{"ge", "2 >= 2", nil, 1},
		{"not", "!0 + !5", nil, 1},
		{"land", "2 && 3", nil, 1},
		{"landf", "2 && 0", nil, 0},
		{"lor", "0 || 0", nil, 0},
		{"lort", "0 || -1", nil, 1},
		{"nancmp", "(0/0) == (0/0)", nil, 0},

		{"literals", "123_456", nil, 123456},
		{"grouped", "12_00 + 0b10_00 + 0x00_0a", nil, 1218},

		{"var", "a", map[string]float64{"a": 123}, 123},
		{"vars", "1 + a * 3 + b", map[string]float64{"a": 2, "b": 5}, 12},
		{"varfuncs", "log2(m) + ln(E) + n", map[string]float64{"m": 1024, "n": 8}, 19},
		{"ratio", "(a * b) / (a + b) * 7", map[string]float64{"a": 3, "b": 4}, 12},
		{"underscore", "x_1 * 2", map[string]float64{"x_1": 4}, 8},
		{"piconst", "PI", map[string]float64{"PI": 3}, math.Pi},
		{"econst", "E", map[string]float64{"E": 3}, math.E},
		{"lowercase", "e + pi", map[string]float64{"e": 1, "pi": 2}, 3},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := varcalc.Evaluate(c.src, c.vars)
			require.NoError(t, err)
			assert.InDelta(t, c.r, r, 1e-9, "evaluating %q", c.src)
		})
	}
}

func TestEvaluateApprox(t *testing.T) {
	cases := []struct {
		src string
		r   float64
	}{
		{"log(10, 1000)", 3},
		{"log(2, 8)", 3},
		{"2 * PI * 3", 2 * math.Pi * 3},
		{"sin(PI/2) + cos(0)", 2},
		{"tan(PI/4)", 1},
		{"asin(1) + acos(1) + atan(1)", math.Pi/2 + math.Pi/4},
	}
	for _, c := range cases {
		r, err := varcalc.EvalString(c.src)
		if assert.NoError(t, err, c.src) {
			assert.InDelta(t, c.r, r, 1e-12, c.src)
		}
	}
}

func TestEvalNaN(t *testing.T) {
	cases := []struct {
		name string
		src  string
		vars map[string]float64
	}{
		{"unset", "c", map[string]float64{"a": 123}},
		{"nilvars", "x", nil},
		{"add", "x + 1", nil},
		{"call", "sqrt(x)", nil},
		{"sqrtneg", "sqrt(-1)", nil},
		{"lnneg", "ln(-1)", nil},
		{"asin", "asin(2)", nil},
		{"zerozero", "0/0", nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := varcalc.Evaluate(c.src, c.vars)
			require.NoError(t, err)
			assert.True(t, math.IsNaN(r), "%q gave %g", c.src, r)
		})
	}
}

func TestEvalInf(t *testing.T) {
	r, err := varcalc.EvalString("1/0")
	require.NoError(t, err)
	assert.True(t, math.IsInf(r, 1))
	r, err = varcalc.EvalString("-1/0")
	require.NoError(t, err)
	assert.True(t, math.IsInf(r, -1))
	r, err = varcalc.EvalString("171!")
	require.NoError(t, err)
	assert.True(t, math.IsInf(r, 1))
}

func TestEvaluateInvalid(t *testing.T) {
	cases := []struct {
		name  string
		src   string
		cause error
	}{
		{"words", "foo bar", new(varcalc.TrailingError)},
		{"negfact", "(-1)!", new(varcalc.DomainError)},
		{"fracfact", "2.5!", new(varcalc.DomainError)},
		{"nanfact", "fact(x)", new(varcalc.DomainError)},
		{"underscore", "1_23", new(varcalc.LexError)},
		{"leading", "_123", new(varcalc.LexError)},
		{"trailing", "123_", new(varcalc.LexError)},
		{"char", "1 # 2", new(varcalc.LexError)},
		{"upper", "X + 1", new(varcalc.LexError)},
		{"unknown", "foo(1)", new(varcalc.FuncError)},
		{"arity", "log(8)", new(varcalc.CallError)},
		{"arity2", "sqrt(1, 2)", new(varcalc.CallError)},
		{"unclosed", "(1 + 2", new(varcalc.BracketError)},
		{"empty", "", new(varcalc.EmptyExpressionError)},
		{"sep", "1, 2", new(varcalc.SeparatorError)},
		{"binary", "* 2", new(varcalc.OperatorError)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r, err := varcalc.Evaluate(c.src, nil)
			require.Error(t, err)
			assert.True(t, math.IsNaN(r))
			var ie *varcalc.InvalidExpressionError
			require.ErrorAs(t, err, &ie)
			assert.Equal(t, c.src, ie.Expr)
			if c.src != "" {
				assert.Contains(t, err.Error(), strconv.Quote(c.src))
			}
			assert.IsType(t, c.cause, errors.Unwrap(err))
		})
	}
}

func TestShortCircuit(t *testing.T) {
	// fact(-1) fails, so these only succeed if the right side is skipped.
	r, err := varcalc.EvalString("0 && fact(-1)")
	require.NoError(t, err)
	assert.Equal(t, 0.0, r)
	r, err = varcalc.EvalString("2 || fact(-1)")
	require.NoError(t, err)
	assert.Equal(t, 1.0, r)

	_, err = varcalc.EvalString("1 && fact(-1)")
	assert.Error(t, err)
	_, err = varcalc.EvalString("0 || fact(-1)")
	assert.Error(t, err)
}

func TestContext(t *testing.T) {
	vars := map[string]float64{"a": 1}
	ctx := varcalc.NewContext(varcalc.SetVars(vars), varcalc.SetVar("b", 2))
	vars["a"] = 100
	v, ok := ctx.Lookup("a")
	assert.True(t, ok)
	assert.Equal(t, 1.0, v, "context shares the caller's map")

	child := ctx.Clone(varcalc.SetVar("a", 3))
	v, _ = child.Lookup("a")
	assert.Equal(t, 3.0, v)
	v, _ = ctx.Lookup("a")
	assert.Equal(t, 1.0, v, "Clone modified the original")

	v, ok = ctx.Lookup("c")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))

	var nilctx *varcalc.Context
	v, ok = nilctx.Lookup("a")
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))

	e, err := varcalc.ParseString("a + b")
	require.NoError(t, err)
	r, err := ctx.Eval(e)
	require.NoError(t, err)
	assert.Equal(t, 3.0, r)
	r, err = e.Eval(child)
	require.NoError(t, err)
	assert.Equal(t, 5.0, r)
	r, err = e.Eval(nil)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(r))
}

func TestEvaluateDoesNotModifyVars(t *testing.T) {
	vars := map[string]float64{"a": 1}
	_, err := varcalc.Evaluate("a + b", vars)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 1}, vars)
}

func TestEvalIdempotent(t *testing.T) {
	srcs := []string{"a / 3", "sin(a) * PI", "a! / 7", "-a >>> 1", "0/0 + a"}
	vars := map[string]float64{"a": 7}
	for _, src := range srcs {
		r1, err1 := varcalc.Evaluate(src, vars)
		r2, err2 := varcalc.Evaluate(src, vars)
		require.NoError(t, err1)
		require.NoError(t, err2)
		assert.Equal(t, math.Float64bits(r1), math.Float64bits(r2), src)
	}
}

func TestEvalOrderIndependent(t *testing.T) {
	c1 := map[string]float64{"x": 1, "y": 2}
	c2 := map[string]float64{"x": 10}
	const src = "x * 3 + y"
	a1, _ := varcalc.Evaluate(src, c1)
	a2, _ := varcalc.Evaluate(src, c2)
	b2, _ := varcalc.Evaluate(src, c2)
	b1, _ := varcalc.Evaluate(src, c1)
	assert.Equal(t, 5.0, a1)
	assert.Equal(t, a1, b1)
	assert.True(t, math.IsNaN(a2))
	assert.True(t, math.IsNaN(b2))
}

func TestEvalConcurrent(t *testing.T) {
	e, err := varcalc.ParseString("x * x + y")
	require.NoError(t, err)
	const n = 64
	results := make([]float64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ctx := varcalc.NewContext(varcalc.SetVar("x", float64(i)), varcalc.SetVar("y", 1))
			for k := 0; k < 100; k++ {
				r, err := e.Eval(ctx)
				if err != nil || r != float64(i*i+1) {
					results[i] = math.NaN()
					return
				}
				results[i] = r
			}
		}(i)
	}
	wg.Wait()
	for i, r := range results {
		assert.Equal(t, float64(i*i+1), r, "goroutine %d", i)
	}
}

func TestEvaluateConcurrent(t *testing.T) {
	const n = 32
	errs := make(chan error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			vars := map[string]float64{"v": float64(i)}
			for k := 0; k < 100; k++ {
				r, err := varcalc.Evaluate("v + 0 * w", vars)
				if err != nil {
					errs <- err
					return
				}
				// w is unset, so the result is NaN for every i.
				if !math.IsNaN(r) {
					errs <- errors.New("leaked variable w in goroutine " + strconv.Itoa(i))
					return
				}
				r, _ = varcalc.Evaluate("v", vars)
				if r != float64(i) {
					errs <- errors.New("wrong variable in goroutine " + strconv.Itoa(i))
					return
				}
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestEvalReader(t *testing.T) {
	r, err := varcalc.Eval(strings.NewReader("x ^ 2"), varcalc.SetVar("x", 3))
	require.NoError(t, err)
	assert.Equal(t, 9.0, r)

	_, err = varcalc.Eval(strings.NewReader("x ^"))
	var ie *varcalc.InvalidExpressionError
	require.ErrorAs(t, err, &ie)
	assert.Empty(t, ie.Expr)
	assert.Regexp(t, `^invalid expression: `, err.Error())
	var ee *varcalc.EmptyExpressionError
	assert.ErrorAs(t, err, &ee)
}
