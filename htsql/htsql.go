// Package htsql is the package root: it wires scanner -> parser -> bind ->
// flow -> term -> frame into the single pure entry point spec §1 names,
// Compile(catalog, dialect, source) -> (sql, Profile, error). No teacher
// file plays this role (sqldef's analogue, schema.GenerateIdempotentDDLs,
// is itself the top-level entry point it composes toward, which is why
// this file's shape -- a handful of sequential phase calls, each returning
// early on error -- mirrors that function's straight-line structure rather
// than any one single teacher file).
package htsql

import (
	"github.com/htsql-go/htsql/bind"
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/dialect"
	"github.com/htsql-go/htsql/flow"
	"github.com/htsql-go/htsql/frame"
	"github.com/htsql-go/htsql/herr"
	"github.com/htsql-go/htsql/parser"
	"github.com/htsql-go/htsql/term"
)

// Profile describes the structure of the rows a compiled query produces
// (spec §3: "Ordered tree of (label, domain, nullable, children?)").
// Nested segments (spec §8 scenario f) contribute a child Profile whose
// own Children recurse the same way.
type Profile struct {
	Label    string
	Domain   catalog.Type
	Nullable bool
	Children []Profile
}

// Result is everything one Compile call produces for one query segment:
// the rendered SQL text and the row-shape Profile a formatter needs to
// materialize rows from it. Nested list columns (flow.SegmentCode) are
// compiled as independent statements; NestedSQL holds each one's Result
// keyed by its position in Profile.Children, since the assembler does not
// embed a nested result set into the outer row (see DESIGN.md). A nested
// statement's first LinkWidth select columns are the linking key of the
// enclosing segment's class, prepended so the formatter can stitch inner
// rows to outer rows; they precede the columns Profile describes and the
// rows arrive grouped by them. Format carries the query's trailing /:name
// decorator for the formatter, "" if absent.
type Result struct {
	SQL       string
	Profile   Profile
	NestedSQL map[int]*Result
	LinkWidth int
	Format    string
}

// Compile turns src into dialect-specific SQL plus an output Profile,
// against the given catalog view and target dialect. It performs no I/O,
// reads no clock, and touches no process-wide state (spec §5): every
// intermediate tree it builds is owned exclusively by this call, and v/m
// are read-only and safe to share across concurrent Compile calls.
func Compile(v *catalog.View, dialectName dialect.Name, src string) (*Result, *herr.Error) {
	policy, ok := dialect.Lookup(dialectName)
	if !ok {
		return nil, herr.Dialect(herr.Span{}, "unknown dialect {}", string(dialectName))
	}
	m, merr := catalog.BuildModel(v)
	if merr != nil {
		return nil, merr
	}
	return compileWith(v, m, policy, src)
}

// CompileWithModel is Compile's variant for callers that already built
// (and want to reuse, across many Compile calls against the same schema)
// the derived catalog.Model graph, since BuildModel's arrow-naming pass
// is pure but not free.
func CompileWithModel(v *catalog.View, m *catalog.Model, policy *dialect.Policy, src string) (*Result, *herr.Error) {
	return compileWith(v, m, policy, src)
}

func compileWith(v *catalog.View, m *catalog.Model, policy *dialect.Policy, src string) (*Result, *herr.Error) {
	q, err := parser.Parse(src)
	if err != nil {
		return nil, err
	}

	root := bind.NewRootScope(m, v)
	binding, err := bind.Bind(q, root)
	if err != nil {
		return nil, err
	}

	seg, err := flow.Encode(binding)
	if err != nil {
		return nil, err
	}
	seg = term.FoldSegment(seg)

	res, err := compileSegment(seg, policy)
	if err != nil {
		return nil, err
	}
	res.Format = q.Format
	return res, nil
}

// compileSegment compiles one flow.Segment (the top-level query output,
// or a nested SegmentCode's Inner) all the way to SQL text, recursing into
// nested list columns and threading each one's Result back by its
// position among the parent's output codes.
func compileSegment(seg *flow.Segment, policy *dialect.Policy) (*Result, *herr.Error) {
	st, routes, err := term.Compile(seg)
	if err != nil {
		return nil, err
	}

	sf, err := frame.Assemble(st, routes, policy)
	if err != nil {
		return nil, err
	}
	sqlText := frame.Serialize(sf, policy)

	profile := Profile{Children: make([]Profile, len(seg.Codes))}
	nested := map[int]*Result{}
	for i, code := range seg.Codes {
		label := ""
		if i < len(seg.Labels) {
			label = seg.Labels[i]
		}
		if sc, ok := code.(*flow.SegmentCode); ok {
			linked, width := linkSegment(seg.Flow, sc.Inner)
			inner, err := compileSegment(linked, policy)
			if err != nil {
				return nil, err
			}
			inner.LinkWidth = width
			inner.Profile.Children = inner.Profile.Children[width:]
			profile.Children[i] = Profile{
				Label:    label,
				Domain:   code.Domain(),
				Nullable: false,
				Children: inner.Profile.Children,
			}
			nested[i] = inner
			continue
		}
		profile.Children[i] = Profile{
			Label:    label,
			Domain:   code.Domain(),
			Nullable: isNullable(code),
		}
	}
	if seg.RecordOf != "" {
		profile.Label = seg.RecordOf
	}

	return &Result{SQL: sqlText, Profile: profile, NestedSQL: nested}, nil
}

// linkSegment prepends the outer segment's linking key -- the primary key
// of outerFlow's innermost class -- to a nested segment's output, so the
// inner statement's rows can be stitched back to their outer rows. The
// inner flow chain shares the outer class flow node (the encoder interns
// flows), so the key columns route through the join the nested statement
// already performs.
func linkSegment(outerFlow flow.Flow, inner *flow.Segment) (*flow.Segment, int) {
	cf := flow.InnermostClass(outerFlow)
	if cf == nil || cf.Table == nil {
		return inner, 0
	}
	pk := cf.Table.PrimaryKey()
	if pk == nil {
		return inner, 0
	}
	var codes []flow.Code
	var labels []string
	for _, name := range pk.Columns {
		col, ok := cf.Table.Column(name)
		if !ok {
			continue
		}
		codes = append(codes, &flow.ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: cf})
		labels = append(labels, col.Name)
	}
	return &flow.Segment{
		Flow:     inner.Flow,
		Codes:    append(codes, inner.Codes...),
		Labels:   append(labels, inner.Labels...),
		RecordOf: inner.RecordOf,
	}, len(codes)
}

// isNullable derives a code's output nullability from its shape and, for
// a plain column/covering read, from the totality of every ClassFlow arrow
// between the segment root and the code's own flow (spec §4.6: "nullability
// from arrow totality propagated through joins").
func isNullable(c flow.Code) bool {
	switch n := c.(type) {
	case *flow.LiteralCode:
		return n.Text == "" && n.Typ.Domain == catalog.DomainUntyped
	case *flow.CastCode:
		return isNullable(n.Operand)
	case *flow.FormulaCode:
		for _, op := range n.Operands {
			if isNullable(op) {
				return true
			}
		}
		return false
	case *flow.ListCode:
		return false
	case *flow.ColumnUnit:
		return n.Nullable || flowIsPartial(n.On)
	case *flow.CompoundUnit:
		return isNullable(n.Inner) || flowIsPartial(n.On)
	case *flow.KernelUnit:
		return false
	case *flow.CoveringUnit:
		return false
	case *flow.AggregateUnit:
		switch n.Name {
		case "count", "exists", "sum", "every":
			return false
		default: // min, max, avg
			return true
		}
	default:
		return true
	}
}

// flowIsPartial walks f's chain toward the root looking for any ClassFlow
// reached by a partial (non-total) arrow, which makes every column read
// at or below that point potentially null after the corresponding left
// join (spec §3's arrow totality, spec §4.5.2's ClassFlow join-kind rule).
func flowIsPartial(f flow.Flow) bool {
	for f != nil {
		switch n := f.(type) {
		case *flow.ClassFlow:
			if n.Arrow != nil && !n.Arrow.Total {
				return true
			}
			f = n.BaseFlow
		case *flow.FilteredFlow:
			f = n.BaseFlow
		case *flow.OrderedFlow:
			f = n.BaseFlow
		case *flow.QuotientFlow:
			f = n.BaseFlow
		case *flow.ComplementFlow:
			f = n.Quotient
		case *flow.ProductFlow:
			f = n.BaseFlow
		default:
			return false
		}
	}
	return false
}
