package sandbox

import (
	"context"
	"fmt"
	"math"

	"github.com/cwbudde/algo-vecmath"
)

// value 标量或长度为 n 的列向量
type value struct {
	s   float64
	col []float64
}

func scalar(v float64) value { return value{s: v} }

func (v value) isScalar() bool { return v.col == nil }

// at 取第 i 个点的值（标量广播）
func (v value) at(i int) float64 {
	if v.col == nil {
		return v.s
	}
	return v.col[i]
}

// env 一次求值的独立环境
type env struct {
	ctx  context.Context
	n    int
	vars map[string]value
}

func (e *env) column(v value) []float64 {
	if !v.isScalar() {
		return v.col
	}
	out := make([]float64, e.n)
	for i := range out {
		out[i] = v.s
	}
	return out
}

func (e *env) run(src *Source) error {
	for _, st := range src.Statements {
		if err := e.ctx.Err(); err != nil {
			return err
		}
		v, err := e.expr(st.Value)
		if err != nil {
			return err
		}
		e.vars[st.Name] = v
	}
	return nil
}

func (e *env) expr(x *Expr) (value, error) {
	acc, err := e.term(x.Left)
	if err != nil {
		return value{}, err
	}
	for _, r := range x.Right {
		rhs, err := e.term(r.Term)
		if err != nil {
			return value{}, err
		}
		acc = e.binary(r.Op, acc, rhs)
	}
	return acc, nil
}

func (e *env) term(t *Term) (value, error) {
	acc, err := e.unary(t.Left)
	if err != nil {
		return value{}, err
	}
	for _, r := range t.Right {
		rhs, err := e.unary(r.Unary)
		if err != nil {
			return value{}, err
		}
		acc = e.binary(r.Op, acc, rhs)
	}
	return acc, nil
}

func (e *env) unary(u *Unary) (value, error) {
	base, err := e.primary(u.Power.Base)
	if err != nil {
		return value{}, err
	}
	if u.Power.Exp != nil {
		exp, err := e.unary(u.Power.Exp)
		if err != nil {
			return value{}, err
		}
		base = e.binary("^", base, exp)
	}
	if u.Neg {
		base = e.mapUnary(base, func(v float64) float64 { return -v })
	}
	return base, nil
}

func (e *env) primary(p *Primary) (value, error) {
	switch {
	case p.Number != nil:
		return scalar(*p.Number), nil
	case p.Call != nil:
		return e.call(p.Call)
	case p.Sub != nil:
		return e.expr(p.Sub)
	}
	if v, ok := e.vars[p.Ident]; ok {
		return v, nil
	}
	if c, ok := constants[p.Ident]; ok {
		return scalar(c), nil
	}
	return value{}, fmt.Errorf("%s: undefined %q", p.Pos, p.Ident)
}

func (e *env) call(c *Call) (value, error) {
	if err := e.ctx.Err(); err != nil {
		return value{}, err
	}
	args := make([]value, len(c.Args))
	for i, a := range c.Args {
		v, err := e.expr(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}

	if f, ok := unaryFuncs[c.Name]; ok {
		return e.mapUnary(args[0], f), nil
	}
	switch c.Name {
	case "atan2":
		return e.binary("atan2", args[0], args[1]), nil
	case "pow":
		return e.binary("^", args[0], args[1]), nil
	case "mod":
		return e.binary("mod", args[0], args[1]), nil
	case "step":
		return e.binary("step", args[0], args[1]), nil
	case "min", "max":
		acc := args[0]
		for _, a := range args[1:] {
			acc = e.binary(c.Name, acc, a)
		}
		return acc, nil
	case "clamp":
		return e.ternary(args, func(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }), nil
	case "mix":
		return e.ternary(args, func(a, b, t float64) float64 { return a + (b-a)*t }), nil
	case "smoothstep":
		return e.ternary(args, smoothstep), nil
	}
	return value{}, fmt.Errorf("%s: function %q is not allowed", c.Pos, c.Name)
}

func (e *env) mapUnary(v value, f func(float64) float64) value {
	if v.isScalar() {
		return scalar(f(v.s))
	}
	out := make([]float64, len(v.col))
	for i, x := range v.col {
		out[i] = f(x)
	}
	return value{col: out}
}

func (e *env) binary(op string, a, b value) value {
	f := binaryFuncs[op]
	if a.isScalar() && b.isScalar() {
		return scalar(f(a.s, b.s))
	}
	out := make([]float64, e.n)
	if op == "*" && !a.isScalar() && !b.isScalar() {
		vecmath.MulBlock(out, a.col, b.col)
		return value{col: out}
	}
	for i := range out {
		out[i] = f(a.at(i), b.at(i))
	}
	return value{col: out}
}

func (e *env) ternary(args []value, f func(a, b, c float64) float64) value {
	if args[0].isScalar() && args[1].isScalar() && args[2].isScalar() {
		return scalar(f(args[0].s, args[1].s, args[2].s))
	}
	out := make([]float64, e.n)
	for i := range out {
		out[i] = f(args[0].at(i), args[1].at(i), args[2].at(i))
	}
	return value{col: out}
}

var unaryFuncs = map[string]func(float64) float64{
	"sin": math.Sin, "cos": math.Cos, "tan": math.Tan,
	"asin": math.Asin, "acos": math.Acos, "atan": math.Atan,
	"sinh": math.Sinh, "cosh": math.Cosh, "tanh": math.Tanh,
	"exp": math.Exp, "log": math.Log, "sqrt": math.Sqrt,
	"abs": math.Abs, "floor": math.Floor, "ceil": math.Ceil, "round": math.Round,
	"fract": func(v float64) float64 { return v - math.Floor(v) },
	"sign": func(v float64) float64 {
		switch {
		case v > 0:
			return 1
		case v < 0:
			return -1
		default:
			return 0
		}
	},
	"hash": hash,
}

var binaryFuncs = map[string]func(a, b float64) float64{
	"+":     func(a, b float64) float64 { return a + b },
	"-":     func(a, b float64) float64 { return a - b },
	"*":     func(a, b float64) float64 { return a * b },
	"/":     func(a, b float64) float64 { return a / b },
	"%":     mod,
	"mod":   mod,
	"^":     math.Pow,
	"atan2": math.Atan2,
	"min":   math.Min,
	"max":   math.Max,
	"step": func(edge, v float64) float64 {
		if v < edge {
			return 0
		}
		return 1
	},
}

// mod 与除数同号的取模
func mod(a, b float64) float64 {
	return a - b*math.Floor(a/b)
}

// hash 确定性伪随机数，结果在 [0,1)
func hash(v float64) float64 {
	s := math.Sin(v*12.9898) * 43758.5453
	return s - math.Floor(s)
}

func smoothstep(e0, e1, v float64) float64 {
	if e0 == e1 {
		if v < e0 {
			return 0
		}
		return 1
	}
	t := math.Max(0, math.Min(1, (v-e0)/(e1-e0)))
	return t * t * (3 - 2*t)
}
