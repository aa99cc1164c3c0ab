package sandbox

import (
	"fmt"

	"splat-anim-ai/internal/domain/entity"
)

// 逐点输入
var pointInputs = map[string]struct{}{
	"x": {}, "y": {}, "z": {},
	"r": {}, "g": {}, "b": {},
	"a": {}, "i": {}, "n": {},
}

// 逐帧输入
var frameInputs = map[string]struct{}{
	"t": {}, "frame": {}, "fps": {}, "duration": {}, "frames": {}, "p": {},
}

var constants = map[string]float64{
	"pi":  3.141592653589793,
	"tau": 6.283185307179586,
	"e":   2.718281828459045,
}

// arity 允许调用的函数及参数个数；-1 表示至少两个
var arity = map[string]int{
	"sin": 1, "cos": 1, "tan": 1, "asin": 1, "acos": 1, "atan": 1,
	"sinh": 1, "cosh": 1, "tanh": 1, "exp": 1, "log": 1, "sqrt": 1,
	"abs": 1, "floor": 1, "ceil": 1, "round": 1, "fract": 1, "sign": 1,
	"hash": 1,
	"atan2": 2, "pow": 2, "mod": 2, "step": 2,
	"min": -1, "max": -1,
	"clamp": 3, "mix": 3, "smoothstep": 3,
}

// Outputs 每类函数可写的输出变量
func Outputs(kind entity.FunctionKind) []string {
	switch kind {
	case entity.FunctionCenters:
		return []string{"x", "y", "z"}
	case entity.FunctionRGBs:
		return []string{"r", "g", "b"}
	case entity.FunctionOpacities:
		return []string{"a"}
	default:
		return nil
	}
}

// checker 对单个函数体做静态检查
type checker struct {
	limits  Limits
	outputs map[string]struct{}
	locals  map[string]struct{}
	nodes   int
}

func check(kind entity.FunctionKind, src *Source, limits Limits) error {
	c := &checker{
		limits:  limits,
		outputs: make(map[string]struct{}),
		locals:  make(map[string]struct{}),
	}
	for _, o := range Outputs(kind) {
		c.outputs[o] = struct{}{}
	}

	if limits.MaxStatements > 0 && len(src.Statements) > limits.MaxStatements {
		return fmt.Errorf("too many statements: %d > %d", len(src.Statements), limits.MaxStatements)
	}

	for _, st := range src.Statements {
		// 右侧先检查，避免 `v = v + 1` 引用尚未定义的局部变量
		if err := c.expr(st.Value, 1); err != nil {
			return err
		}
		if err := c.assign(st); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) assign(st *Statement) error {
	name := st.Name
	if _, ok := c.outputs[name]; ok {
		return nil
	}
	if _, ok := pointInputs[name]; ok {
		return fmt.Errorf("%s: cannot assign read-only input %q", st.Pos, name)
	}
	if _, ok := frameInputs[name]; ok {
		return fmt.Errorf("%s: cannot assign read-only input %q", st.Pos, name)
	}
	if _, ok := constants[name]; ok {
		return fmt.Errorf("%s: cannot assign constant %q", st.Pos, name)
	}
	if _, ok := arity[name]; ok {
		return fmt.Errorf("%s: cannot assign to function name %q", st.Pos, name)
	}
	if name == "let" {
		return fmt.Errorf("%s: %q is reserved", st.Pos, name)
	}
	c.locals[name] = struct{}{}
	return nil
}

func (c *checker) node(depth int) error {
	c.nodes++
	if c.limits.MaxNodes > 0 && c.nodes > c.limits.MaxNodes {
		return fmt.Errorf("expression too large: more than %d nodes", c.limits.MaxNodes)
	}
	if c.limits.MaxDepth > 0 && depth > c.limits.MaxDepth {
		return fmt.Errorf("expression nested deeper than %d", c.limits.MaxDepth)
	}
	return nil
}

func (c *checker) expr(e *Expr, depth int) error {
	if e == nil {
		return fmt.Errorf("missing expression")
	}
	if err := c.node(depth); err != nil {
		return err
	}
	if err := c.term(e.Left, depth+1); err != nil {
		return err
	}
	for _, r := range e.Right {
		if err := c.term(r.Term, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) term(t *Term, depth int) error {
	if err := c.node(depth); err != nil {
		return err
	}
	if err := c.unary(t.Left, depth+1); err != nil {
		return err
	}
	for _, r := range t.Right {
		if err := c.unary(r.Unary, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (c *checker) unary(u *Unary, depth int) error {
	if err := c.node(depth); err != nil {
		return err
	}
	if err := c.primary(u.Power.Base, depth+1); err != nil {
		return err
	}
	if u.Power.Exp != nil {
		return c.unary(u.Power.Exp, depth+1)
	}
	return nil
}

func (c *checker) primary(p *Primary, depth int) error {
	if err := c.node(depth); err != nil {
		return err
	}
	switch {
	case p.Number != nil:
		return nil
	case p.Call != nil:
		want, ok := arity[p.Call.Name]
		if !ok {
			return fmt.Errorf("%s: function %q is not allowed", p.Call.Pos, p.Call.Name)
		}
		got := len(p.Call.Args)
		if (want == -1 && got < 2) || (want >= 0 && got != want) {
			return fmt.Errorf("%s: %s expects %s arguments, got %d", p.Call.Pos, p.Call.Name, arityText(want), got)
		}
		for _, arg := range p.Call.Args {
			if err := c.expr(arg, depth+1); err != nil {
				return err
			}
		}
		return nil
	case p.Sub != nil:
		return c.expr(p.Sub, depth+1)
	default:
		return c.ident(p)
	}
}

func (c *checker) ident(p *Primary) error {
	name := p.Ident
	if _, ok := pointInputs[name]; ok {
		return nil
	}
	if _, ok := frameInputs[name]; ok {
		return nil
	}
	if _, ok := constants[name]; ok {
		return nil
	}
	if _, ok := c.locals[name]; ok {
		return nil
	}
	if _, ok := arity[name]; ok {
		return fmt.Errorf("%s: function %q used as a value", p.Pos, name)
	}
	return fmt.Errorf("%s: unknown identifier %q", p.Pos, name)
}

func arityText(n int) string {
	if n == -1 {
		return "at least 2"
	}
	return fmt.Sprintf("%d", n)
}
