// Package syntax defines the HTSQL abstract syntax tree (spec §4.2, §6).
//
// Grounded on ha1tch-tsqlparser/ast/ast.go's Node/Expression interface
// split and its per-variant String()/TokenLiteral() methods; HTSQL has no
// statement/expression distinction (everything below the top-level query
// is an expression), so this package keeps only the Node/Expression shape
// and drops the Statement side.
package syntax

import (
	"strings"

	"github.com/htsql-go/htsql/herr"
)

// Node is any syntax tree node; every node knows its own source span so
// later phases can attach precise error positions.
type Node interface {
	Span() herr.Span
	String() string
}

// Expression is the marker interface implemented by every expression
// variant in the grammar.
type Expression interface {
	Node
	expressionNode()
}

// Query is the root node: `/ expr [ /:ident ]` (spec §6).
type Query struct {
	Body   Expression
	Format string // the trailing /:name decorator, "" if absent
	Sp     herr.Span
}

func (q *Query) Span() herr.Span { return q.Sp }
func (q *Query) String() string {
	var b strings.Builder
	b.WriteByte('/')
	b.WriteString(q.Body.String())
	if q.Format != "" {
		b.WriteString("/:")
		b.WriteString(q.Format)
	}
	return b.String()
}

// Identifier is a bare NAME reference.
type Identifier struct {
	Name string
	Sp   herr.Span
}

func (i *Identifier) expressionNode() {}
func (i *Identifier) Span() herr.Span { return i.Sp }
func (i *Identifier) String() string  { return i.Name }

// IntLiteral, DecimalLiteral, FloatLiteral, StringLiteral are untyped
// literal atoms; their domain is resolved in bind.
type IntLiteral struct {
	Text string
	Sp   herr.Span
}

func (l *IntLiteral) expressionNode() {}
func (l *IntLiteral) Span() herr.Span { return l.Sp }
func (l *IntLiteral) String() string  { return l.Text }

type DecimalLiteral struct {
	Text string
	Sp   herr.Span
}

func (l *DecimalLiteral) expressionNode() {}
func (l *DecimalLiteral) Span() herr.Span { return l.Sp }
func (l *DecimalLiteral) String() string  { return l.Text }

type FloatLiteral struct {
	Text string
	Sp   herr.Span
}

func (l *FloatLiteral) expressionNode() {}
func (l *FloatLiteral) Span() herr.Span { return l.Sp }
func (l *FloatLiteral) String() string  { return l.Text }

type StringLiteral struct {
	Value string
	Sp    herr.Span
}

func (l *StringLiteral) expressionNode() {}
func (l *StringLiteral) Span() herr.Span { return l.Sp }
func (l *StringLiteral) String() string  { return "'" + strings.ReplaceAll(l.Value, "'", "''") + "'" }

// Reference is a `$name` reference into the parallel reference namespace.
type Reference struct {
	Name string
	Sp   herr.Span
}

func (r *Reference) expressionNode() {}
func (r *Reference) Span() herr.Span { return r.Sp }
func (r *Reference) String() string  { return "$" + r.Name }

// Wildcard is the `*` or `*N` atom (all attributes, or the Nth).
type Wildcard struct {
	Index *string // nil for bare '*'
	Sp    herr.Span
}

func (w *Wildcard) expressionNode() {}
func (w *Wildcard) Span() herr.Span { return w.Sp }
func (w *Wildcard) String() string {
	if w.Index == nil {
		return "*"
	}
	return "*" + *w.Index
}

// Complement is the `^` atom referring to a projection's complement link.
type Complement struct{ Sp herr.Span }

func (c *Complement) expressionNode() {}
func (c *Complement) Span() herr.Span { return c.Sp }
func (c *Complement) String() string  { return "^" }

// Call is a function call `name(args)` or the infix form `x:name(args)`
// folded to the same node by the parser (spec §6 grammar rule 1).
type Call struct {
	Name string
	Args []Expression
	Sp   herr.Span
}

func (c *Call) expressionNode() {}
func (c *Call) Span() herr.Span { return c.Sp }
func (c *Call) String() string {
	var parts []string
	for _, a := range c.Args {
		parts = append(parts, a.String())
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

// Composition is left-associative `.`.
type Composition struct {
	Left, Right Expression
	Sp          herr.Span
}

func (c *Composition) expressionNode() {}
func (c *Composition) Span() herr.Span { return c.Sp }
func (c *Composition) String() string  { return c.Left.String() + "." + c.Right.String() }

// Sieve is the `?` filter postfix.
type Sieve struct {
	Base, Predicate Expression
	Sp              herr.Span
}

func (s *Sieve) expressionNode() {}
func (s *Sieve) Span() herr.Span { return s.Sp }
func (s *Sieve) String() string  { return s.Base.String() + "?" + s.Predicate.String() }

// Projection is the `^` infix projection operator (base ^ kernel).
type Projection struct {
	Base, Kernel Expression
	Sp           herr.Span
}

func (p *Projection) expressionNode() {}
func (p *Projection) Span() herr.Span { return p.Sp }
func (p *Projection) String() string  { return p.Base.String() + "^" + p.Kernel.String() }

// Selection is the postfix `{items}` list.
type Selection struct {
	Base  Expression
	Items []Expression
	Sp    herr.Span
}

func (s *Selection) expressionNode() {}
func (s *Selection) Span() herr.Span { return s.Sp }
func (s *Selection) String() string {
	var parts []string
	for _, it := range s.Items {
		parts = append(parts, it.String())
	}
	return s.Base.String() + "{" + strings.Join(parts, ", ") + "}"
}

// ListLiteral is the atomic `{items}` form (no base), used for in-list
// literals (e.g. `x = {1, 2, 3}`).
type ListLiteral struct {
	Items []Expression
	Sp    herr.Span
}

func (l *ListLiteral) expressionNode() {}
func (l *ListLiteral) Span() herr.Span { return l.Sp }
func (l *ListLiteral) String() string {
	var parts []string
	for _, it := range l.Items {
		parts = append(parts, it.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Segment is a nested `/expr` selection item, producing a list-valued
// output column (spec §8 scenario f: `/school{code, /program{title}}`).
type Segment struct {
	Inner Expression
	Sp    herr.Span
}

func (s *Segment) expressionNode() {}
func (s *Segment) Span() herr.Span { return s.Sp }
func (s *Segment) String() string  { return "/" + s.Inner.String() }

// Group is a parenthesized `(expr)`, kept as its own node so the parser's
// round-trip property (spec §8.3) can re-render the parentheses.
type Group struct {
	Inner Expression
	Sp    herr.Span
}

func (g *Group) expressionNode() {}
func (g *Group) Span() herr.Span { return g.Sp }
func (g *Group) String() string  { return "(" + g.Inner.String() + ")" }

// Sort is the postfix `+`/`-` sort decorator.
type SortDir int

const (
	SortAsc SortDir = iota
	SortDesc
)

type Sort struct {
	Base Expression
	Dir  SortDir
	Sp   herr.Span
}

func (s *Sort) expressionNode() {}
func (s *Sort) Span() herr.Span { return s.Sp }
func (s *Sort) String() string {
	if s.Dir == SortDesc {
		return s.Base.String() + "-"
	}
	return s.Base.String() + "+"
}

// BinOp covers logical (| & ), comparison, additive and multiplicative
// infix operators; Op is the operator's literal spelling.
type BinOp struct {
	Op          string
	Left, Right Expression
	Sp          herr.Span
}

func (b *BinOp) expressionNode() {}
func (b *BinOp) Span() herr.Span { return b.Sp }
func (b *BinOp) String() string  { return b.Left.String() + b.Op + b.Right.String() }

// UnaryOp covers prefix `!` and prefix `-`.
type UnaryOp struct {
	Op   string
	Expr Expression
	Sp   herr.Span
}

func (u *UnaryOp) expressionNode() {}
func (u *UnaryOp) Span() herr.Span { return u.Sp }
func (u *UnaryOp) String() string  { return u.Op + u.Expr.String() }

// Link is the non-associative `->` linking operator.
type Link struct {
	Left, Right Expression
	Sp          herr.Span
}

func (l *Link) expressionNode() {}
func (l *Link) Span() herr.Span { return l.Sp }
func (l *Link) String() string  { return l.Left.String() + "->" + l.Right.String() }

// Assign is `name := expr`, legal only inside selection items and define
// calls (spec §6 grammar rule 12).
type Assign struct {
	Name string
	Expr Expression
	Sp   herr.Span
}

func (a *Assign) expressionNode() {}
func (a *Assign) Span() herr.Span { return a.Sp }
func (a *Assign) String() string  { return a.Name + ":=" + a.Expr.String() }

// InfixFuncCall is the lowest-precedence `base:name[(args)]` form before
// it is normalized into a Call by the parser's desugaring step; kept as a
// distinct node so String() round-trips the original colon spelling
// (spec §8.3).
type InfixFuncCall struct {
	Base Expression
	Name string
	Args []Expression
	Sp   herr.Span
}

func (f *InfixFuncCall) expressionNode() {}
func (f *InfixFuncCall) Span() herr.Span { return f.Sp }
func (f *InfixFuncCall) String() string {
	var b strings.Builder
	b.WriteString(f.Base.String())
	b.WriteByte(':')
	b.WriteString(f.Name)
	if len(f.Args) > 0 {
		var parts []string
		for _, a := range f.Args {
			parts = append(parts, a.String())
		}
		b.WriteByte('(')
		b.WriteString(strings.Join(parts, ", "))
		b.WriteByte(')')
	}
	return b.String()
}
