package calc

import (
	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

// Grammar, lowest precedence first:
//
//	expression = term { ("+" | "-") term }
//	term       = unary { ("*" | "/" | "%") unary }
//	unary      = [ "-" | "+" ] power
//	power      = primary [ "^" unary ]
//	primary    = number | reference | symbol | "(" expression ")"
//	symbol     = ident [ "(" [ expression { "," expression } ] ")" ]
//	reference  = "[" flat.key "]"

type expression struct {
	Left  *term     `parser:"@@"`
	Right []*opTerm `parser:"@@*"`
}

type opTerm struct {
	Op   string `parser:"@( '+' | '-' )"`
	Term *term  `parser:"@@"`
}

type term struct {
	Left  *unary     `parser:"@@"`
	Right []*opUnary `parser:"@@*"`
}

type opUnary struct {
	Op    string `parser:"@( '*' | '/' | '%' )"`
	Unary *unary `parser:"@@"`
}

type unary struct {
	Sign  string `parser:"@( '-' | '+' )?"`
	Power *power `parser:"@@"`
}

type power struct {
	Base     *primary `parser:"@@"`
	Exponent *unary   `parser:"( '^' @@ )?"`
}

type primary struct {
	Number    *float64    `parser:"  @Number"`
	Reference *string     `parser:"| @Reference"`
	Symbol    *symbol     `parser:"| @@"`
	Sub       *expression `parser:"| '(' @@ ')'"`
}

type symbol struct {
	Name string   `parser:"@Ident"`
	Call *argList `parser:"@@?"`
}

type argList struct {
	Open bool          `parser:"@'('"`
	Args []*expression `parser:"( @@ ( ',' @@ )* )? ')'"`
}

var calcLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Reference", Pattern: `\[[^\]\[]+\]`},
	{Name: "Number", Pattern: `(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "Punct", Pattern: `[-+*/%^(),]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var parser = participle.MustBuild[expression](
	participle.Lexer(calcLexer),
	participle.Elide("Whitespace"),
	participle.UseLookahead(2),
)
