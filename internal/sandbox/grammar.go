// Package sandbox 提供动画函数的受限表达式语言：解析、静态检查与按列求值
package sandbox

import (
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Source 一个函数体：若干条赋值语句
type Source struct {
	Statements []*Statement `@@*`
}

// Statement 赋值语句，let 可省略
type Statement struct {
	Pos lexer.Position

	Let   bool   `@"let"?`
	Name  string `@Ident "="`
	Value *Expr  `@@ ";"?`
}

// Expr 加减表达式
type Expr struct {
	Left  *Term     `@@`
	Right []*OpTerm `@@*`
}

// OpTerm 加减运算的右操作数
type OpTerm struct {
	Op   string `@("+" | "-")`
	Term *Term  `@@`
}

// Term 乘除取模表达式
type Term struct {
	Left  *Unary     `@@`
	Right []*OpUnary `@@*`
}

// OpUnary 乘除取模运算的右操作数
type OpUnary struct {
	Op    string `@("*" | "/" | "%")`
	Unary *Unary `@@`
}

// Unary 可选取负
type Unary struct {
	Neg   bool   `@"-"?`
	Power *Power `@@`
}

// Power 右结合的乘方
type Power struct {
	Base *Primary `@@`
	Exp  *Unary   `( "^" @@ )?`
}

// Primary 原子表达式
type Primary struct {
	Pos lexer.Position

	Number *float64 `  @Number`
	Call   *Call    `| @@`
	Ident  string   `| @Ident`
	Sub    *Expr    `| "(" @@ ")"`
}

// Call 函数调用
type Call struct {
	Pos lexer.Position

	Name string  `@Ident "("`
	Args []*Expr `( @@ ( "," @@ )* )? ")"`
}

var parser = participle.MustBuild[Source](
	participle.Lexer(lexer.MustSimple([]lexer.SimpleRule{
		{Name: "comment", Pattern: `#[^\n]*`},
		{Name: "whitespace", Pattern: `[\s]+`},
		{Name: "Number", Pattern: `(\d+\.?\d*|\.\d+)([eE][-+]?\d+)?`},
		{Name: "Ident", Pattern: `[a-zA-Z_]\w*`},
		{Name: "Punct", Pattern: `[-+*/%^(),=;]`},
	})),
	participle.UseLookahead(2),
)

// Parse 解析函数体源码
func Parse(src string) (*Source, error) {
	return parser.ParseString("", strings.TrimSpace(src))
}
