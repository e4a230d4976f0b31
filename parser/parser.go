// Package parser implements the HTSQL operator-precedence recursive
// descent parser (spec §4.2, grammar in §6).
//
// Grounded on ha1tch-tsqlparser/parser/parser.go's cursor shape
// (curToken/peekToken advanced by nextToken) and its precedence-table
// style, adapted from a Pratt (prefix/infix parse function table) parser
// to a recursive descent parser with one method per binary precedence
// level, plus a flat postfix pipeline loop on top for the five flow
// operators (infix function call, sort, sieve, projection, selection):
// those five chain in left-to-right source order onto a single
// accumulating flow expression (spec §6 items 1-5 behave like stages of
// a pipeline, not like nested binary operators competing for the same
// operand), while comparisons/arithmetic/logic/linking/assignment/
// composition (spec §6 items 6-13) form a conventional nested precedence
// ladder, each level calling the next tighter level for its operands -
// the same "walk the precedence ladder" idea the teacher's precedences
// map encodes, expressed as call structure rather than a map.
package parser

import (
	"strconv"

	"github.com/htsql-go/htsql/herr"
	"github.com/htsql-go/htsql/scanner"
	"github.com/htsql-go/htsql/syntax"
	"github.com/htsql-go/htsql/token"
)

// Parser turns HTSQL source into a syntax.Query.
type Parser struct {
	sc *scanner.Scanner

	cur  token.Token
	peek token.Token
}

// Parse scans and parses src into a syntax.Query.
func Parse(src string) (*syntax.Query, *herr.Error) {
	sc, err := scanner.New(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{sc: sc}
	if err := p.init(); err != nil {
		return nil, err
	}
	return p.parseQuery()
}

// ParseExpression parses src as a bare expression with no leading `/` and
// no format decorator. Catalog overrides (calculated fields, globals) are
// declared in this form.
func ParseExpression(src string) (syntax.Expression, *herr.Error) {
	sc, err := scanner.New(src)
	if err != nil {
		return nil, err
	}
	p := &Parser{sc: sc}
	if err := p.init(); err != nil {
		return nil, err
	}
	expr, perr := p.parseExpr()
	if perr != nil {
		return nil, perr
	}
	if p.cur.Kind != token.END {
		return nil, p.unexpected("end of input")
	}
	return expr, nil
}

func (p *Parser) init() *herr.Error {
	if err := p.advance(); err != nil {
		return err
	}
	return p.advance()
}

func (p *Parser) advance() *herr.Error {
	p.cur = p.peek
	tok, err := p.sc.NextToken()
	if err != nil {
		return err
	}
	p.peek = tok
	return nil
}

func (p *Parser) isSymbol(lit string) bool {
	return p.cur.Kind == token.SYMBOL && p.cur.Literal == lit
}

func (p *Parser) peekIsSymbol(lit string) bool {
	return p.peek.Kind == token.SYMBOL && p.peek.Literal == lit
}

func (p *Parser) expectSymbol(lit string) *herr.Error {
	if !p.isSymbol(lit) {
		return p.unexpected(lit)
	}
	return p.advance()
}

func (p *Parser) unexpected(expected string) *herr.Error {
	return herr.Parse(herr.Span{Start: p.cur.Start, End: p.cur.End, Line: p.cur.Line, Col: p.cur.Column},
		"unexpected {}, expected {}", p.describeCur(), expected)
}

func (p *Parser) describeCur() string {
	if p.cur.Kind == token.END {
		return "end of input"
	}
	return p.cur.Literal
}

func (p *Parser) span(start herr.Span) herr.Span {
	return herr.Span{Start: start.Start, End: p.cur.Start, Line: start.Line, Col: start.Col}
}

func curSpan(tok token.Token) herr.Span {
	return herr.Span{Start: tok.Start, End: tok.End, Line: tok.Line, Col: tok.Column}
}

// canStartOperand reports whether tok can begin an operand expression;
// used to tell binary `+`/`-` apart from the postfix sort decorator that
// shares the same spelling (spec §6 items 2 and 8).
func canStartOperand(tok token.Token) bool {
	switch tok.Kind {
	case token.NAME, token.INT, token.DECIMAL, token.FLOAT, token.STRING:
		return true
	case token.SYMBOL:
		switch tok.Literal {
		case "(", "{", "*", "^", "$", "-", "!":
			return true
		}
	}
	return false
}

// parseQuery parses `/ expr [ /:ident ]` (spec §6 entry production).
func (p *Parser) parseQuery() (*syntax.Query, *herr.Error) {
	start := curSpan(p.cur)
	if err := p.expectSymbol("/"); err != nil {
		return nil, err
	}
	body, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	q := &syntax.Query{Body: body}

	if p.isSymbol("/") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if err := p.expectSymbol(":"); err != nil {
			return nil, err
		}
		if p.cur.Kind != token.NAME {
			return nil, p.unexpected("a format name")
		}
		q.Format = p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if p.cur.Kind != token.END {
		return nil, p.unexpected("end of input")
	}
	q.Sp = p.span(start)
	return q, nil
}

// parseExpr parses a full flow expression: a value built by the binary
// precedence ladder, then zero or more chained pipeline stages applied in
// source order (spec §6 items 1-5). Used everywhere a complete, possibly
// piped, (sub)expression is expected: the query body, selection items,
// call/infix-function arguments, and parenthesized groups.
func (p *Parser) parseExpr() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseLogicalOr()
	if err != nil {
		return nil, err
	}

	for {
		switch {
		case p.isSymbol(":"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.cur.Kind != token.NAME {
				return nil, p.unexpected("a function name")
			}
			name := p.cur.Literal
			if err := p.advance(); err != nil {
				return nil, err
			}
			var args []syntax.Expression
			if p.isSymbol("(") {
				args, err = p.parseArgList()
				if err != nil {
					return nil, err
				}
			} else if p.cur.Kind == token.NAME || p.cur.Kind == token.INT ||
				p.cur.Kind == token.DECIMAL || p.cur.Kind == token.FLOAT ||
				p.cur.Kind == token.STRING || p.isSymbol("$") {
				// The bare single-argument form `:name arg` (spec §6 item 1).
				arg, aerr := p.parseLogicalOr()
				if aerr != nil {
					return nil, aerr
				}
				args = []syntax.Expression{arg}
			}
			left = &syntax.InfixFuncCall{Base: left, Name: name, Args: args, Sp: p.span(start)}

		case p.isSymbol("?"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			// Predicate is a plain value expression (no further pipeline
			// chaining): a trailing `{...}`/`?...`/`^...` belongs to the
			// enclosing flow, not to the predicate.
			predicate, err := p.parseLogicalOr()
			if err != nil {
				return nil, err
			}
			left = &syntax.Sieve{Base: left, Predicate: predicate, Sp: p.span(start)}

		case p.isSymbol("^"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			kernel, err := p.parseLogicalOr()
			if err != nil {
				return nil, err
			}
			left = &syntax.Projection{Base: left, Kernel: kernel, Sp: p.span(start)}

		case p.isSymbol("{"):
			items, err := p.parseBraceItems()
			if err != nil {
				return nil, err
			}
			left = &syntax.Selection{Base: left, Items: items, Sp: p.span(start)}

		case p.isSymbol("+"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			left = &syntax.Sort{Base: left, Dir: syntax.SortAsc, Sp: p.span(start)}

		case p.isSymbol("-"):
			if err := p.advance(); err != nil {
				return nil, err
			}
			left = &syntax.Sort{Base: left, Dir: syntax.SortDesc, Sp: p.span(start)}

		default:
			return left, nil
		}
	}
}

func (p *Parser) parseBraceItems() ([]syntax.Expression, *herr.Error) {
	if err := p.expectSymbol("{"); err != nil {
		return nil, err
	}
	var items []syntax.Expression
	if !p.isSymbol("}") {
		for {
			var item syntax.Expression
			var err *herr.Error
			if p.isSymbol("/") {
				// A nested segment item: `/expr` produces a list-valued column.
				start := curSpan(p.cur)
				if err = p.advance(); err != nil {
					return nil, err
				}
				inner, ierr := p.parseExpr()
				if ierr != nil {
					return nil, ierr
				}
				item = &syntax.Segment{Inner: inner, Sp: p.span(start)}
			} else if item, err = p.parseExpr(); err != nil {
				return nil, err
			}
			items = append(items, item)
			if p.isSymbol(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectSymbol("}"); err != nil {
		return nil, err
	}
	return items, nil
}

// Logical `|` (or), then `&` (and), then prefix `!` (spec §6 item 6).
func (p *Parser) parseLogicalOr() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseLogicalAnd()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("|") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalAnd()
		if err != nil {
			return nil, err
		}
		left = &syntax.BinOp{Op: "|", Left: left, Right: right, Sp: p.span(start)}
	}
	return left, nil
}

func (p *Parser) parseLogicalAnd() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseLogicalNot()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("&") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseLogicalNot()
		if err != nil {
			return nil, err
		}
		left = &syntax.BinOp{Op: "&", Left: left, Right: right, Sp: p.span(start)}
	}
	return left, nil
}

func (p *Parser) parseLogicalNot() (syntax.Expression, *herr.Error) {
	if p.isSymbol("!") {
		start := curSpan(p.cur)
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parseLogicalNot()
		if err != nil {
			return nil, err
		}
		return &syntax.UnaryOp{Op: "!", Expr: expr, Sp: p.span(start)}, nil
	}
	return p.parseComparison()
}

var comparisonOps = map[string]bool{
	"=": true, "!=": true, "==": true, "!==": true,
	"~": true, "!~": true, "<": true, "<=": true, ">": true, ">=": true,
}

// Comparisons, non-associative (spec §6 item 7).
func (p *Parser) parseComparison() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == token.SYMBOL && comparisonOps[p.cur.Literal] {
		op := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &syntax.BinOp{Op: op, Left: left, Right: right, Sp: p.span(start)}, nil
	}
	return left, nil
}

// Additive `+`/`-`, left-assoc (spec §6 item 8). Guarded by
// canStartOperand so a trailing `+`/`-` with no right operand (the sort
// decorator) is left for parseExpr's pipeline loop instead.
func (p *Parser) parseAdditive() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for (p.isSymbol("+") || p.isSymbol("-")) && canStartOperand(p.peek) {
		op := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &syntax.BinOp{Op: op, Left: left, Right: right, Sp: p.span(start)}
	}
	return left, nil
}

// Multiplicative `*`/`/`, left-assoc (spec §6 item 9).
func (p *Parser) parseMultiplicative() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parsePrefixMinus()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") {
		op := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parsePrefixMinus()
		if err != nil {
			return nil, err
		}
		left = &syntax.BinOp{Op: op, Left: left, Right: right, Sp: p.span(start)}
	}
	return left, nil
}

// Prefix `-` (spec §6 item 10).
func (p *Parser) parsePrefixMinus() (syntax.Expression, *herr.Error) {
	if p.isSymbol("-") {
		start := curSpan(p.cur)
		if err := p.advance(); err != nil {
			return nil, err
		}
		expr, err := p.parsePrefixMinus()
		if err != nil {
			return nil, err
		}
		return &syntax.UnaryOp{Op: "-", Expr: expr, Sp: p.span(start)}, nil
	}
	return p.parseLinking()
}

// Linking `->`, non-associative (spec §6 item 11).
func (p *Parser) parseLinking() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseAssignment()
	if err != nil {
		return nil, err
	}
	if p.isSymbol("->") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &syntax.Link{Left: left, Right: right, Sp: p.span(start)}, nil
	}
	return left, nil
}

// Assignment `name := expr`, right-assoc (spec §6 item 12); legal only in
// restricted positions (selection items, define arguments) - enforced by
// bind, not here, since the parser accepts the production wherever it
// appears syntactically and lets bind reject stray uses.
func (p *Parser) parseAssignment() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseComposition()
	if err != nil {
		return nil, err
	}
	if p.isSymbol(":=") {
		name, ok := left.(*syntax.Identifier)
		if !ok {
			return nil, p.unexpected("a name before ':='")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return &syntax.Assign{Name: name.Name, Expr: right, Sp: p.span(start)}, nil
	}
	return left, nil
}

// Composition `.`, left-assoc (spec §6 item 13).
func (p *Parser) parseComposition() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.isSymbol(".") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &syntax.Composition{Left: left, Right: right, Sp: p.span(start)}
	}
	return left, nil
}

func (p *Parser) parseArgList() ([]syntax.Expression, *herr.Error) {
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	var args []syntax.Expression
	if !p.isSymbol(")") {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			if p.isSymbol(",") {
				if err := p.advance(); err != nil {
					return nil, err
				}
				continue
			}
			break
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return args, nil
}

// Atoms (spec §6 item 14).
func (p *Parser) parseAtom() (syntax.Expression, *herr.Error) {
	start := curSpan(p.cur)

	switch {
	case p.isSymbol("{"):
		items, err := p.parseBraceItems()
		if err != nil {
			return nil, err
		}
		return &syntax.ListLiteral{Items: items, Sp: p.span(start)}, nil

	case p.isSymbol("("):
		if err := p.advance(); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return &syntax.Group{Inner: inner, Sp: p.span(start)}, nil

	case p.isSymbol("*"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind == token.INT {
			idx := p.cur.Literal
			if err := p.advance(); err != nil {
				return nil, err
			}
			return &syntax.Wildcard{Index: &idx, Sp: p.span(start)}, nil
		}
		return &syntax.Wildcard{Sp: p.span(start)}, nil

	case p.isSymbol("^"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.Complement{Sp: p.span(start)}, nil

	case p.isSymbol("$"):
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.cur.Kind != token.NAME {
			return nil, p.unexpected("a reference name")
		}
		name := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.Reference{Name: name, Sp: p.span(start)}, nil

	case p.cur.Kind == token.NAME:
		name := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isSymbol("(") {
			args, err := p.parseArgList()
			if err != nil {
				return nil, err
			}
			return &syntax.Call{Name: name, Args: args, Sp: p.span(start)}, nil
		}
		return &syntax.Identifier{Name: name, Sp: p.span(start)}, nil

	case p.cur.Kind == token.INT:
		text := p.cur.Literal
		if _, convErr := strconv.ParseInt(text, 10, 64); convErr != nil {
			return nil, herr.Parse(curSpan(p.cur), "integer literal out of range: {}", text)
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.IntLiteral{Text: text, Sp: p.span(start)}, nil

	case p.cur.Kind == token.DECIMAL:
		text := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.DecimalLiteral{Text: text, Sp: p.span(start)}, nil

	case p.cur.Kind == token.FLOAT:
		text := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.FloatLiteral{Text: text, Sp: p.span(start)}, nil

	case p.cur.Kind == token.STRING:
		value := p.cur.Literal
		if err := p.advance(); err != nil {
			return nil, err
		}
		return &syntax.StringLiteral{Value: value, Sp: p.span(start)}, nil

	default:
		return nil, p.unexpected("an expression")
	}
}
