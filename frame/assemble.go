package frame

import (
	"strconv"
	"strings"

	"github.com/htsql-go/htsql/bind"
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/dialect"
	"github.com/htsql-go/htsql/flow"
	"github.com/htsql-go/htsql/herr"
	"github.com/htsql-go/htsql/term"
)

// assembler walks a term.Term tree once, building its SQL shape and
// rendering every flow.Code it encounters to text along the way. The
// where/groupBy/orderBy/limit/offset fields accumulate the clauses of
// whichever SELECT is currently being built; assembleSubquery saves and
// clears them around a nested aggregate subquery so the two levels never
// bleed into each other.
type assembler struct {
	routes *term.Routes
	policy *dialect.Policy

	aliasOf  map[term.Tag]string            // every table/subquery-producing term's SQL alias
	subAlias map[term.Tag]string             // ProjectionTerm tags rendered as a derived subquery
	ptByTag  map[term.Tag]*term.ProjectionTerm // every ProjectionTerm encountered, top-level or nested

	tagSeq int

	where   []string
	groupBy []string
	orderBy []string
	limit   *int
	offset  *int
}

// Assemble lowers a compiled segment into a SelectFrame (spec §4.6).
func Assemble(st *term.SegmentTerm, routes *term.Routes, policy *dialect.Policy) (*SelectFrame, *herr.Error) {
	a := &assembler{
		routes:   routes,
		policy:   policy,
		aliasOf:  map[term.Tag]string{},
		subAlias: map[term.Tag]string{},
		ptByTag:  map[term.Tag]*term.ProjectionTerm{},
	}
	from, err := a.assembleFrom(st.Child)
	if err != nil {
		return nil, err
	}

	var cols []ColumnExpr
	for i, code := range st.Codes {
		if _, ok := code.(*flow.SegmentCode); ok {
			// Embedded list columns are compiled and assembled as their own
			// independent SegmentTerm by the caller (spec §4.5.4's per-code
			// Nested map); they contribute no column to this SELECT.
			continue
		}
		s, rerr := a.renderCode(code)
		if rerr != nil {
			return nil, rerr
		}
		// A boolean output column must be projected as 0/1 on engines
		// without a native boolean (spec §4.7: "explicit CASE wrapping in
		// SELECT").
		s = a.asValue(code, s)
		label := ""
		if i < len(st.Labels) {
			label = st.Labels[i]
		}
		cols = append(cols, ColumnExpr{Expr: s, Alias: label})
	}

	return &SelectFrame{
		From: from, Columns: cols,
		Where: a.where, GroupBy: a.groupBy, OrderBy: a.orderBy,
		Limit: a.limit, Offset: a.offset,
	}, nil
}

func (a *assembler) nextAlias() string {
	a.tagSeq++
	return "t" + strconv.Itoa(a.tagSeq)
}

// assembleFrom builds the FROM-clause shape for t, accumulating any
// WHERE/GROUP BY/ORDER BY/LIMIT/OFFSET it carries into the assembler's
// current (possibly nested-subquery-scoped) clause lists.
func (a *assembler) assembleFrom(t term.Term) (Frame, *herr.Error) {
	switch n := t.(type) {
	case *term.ScalarTerm:
		return nil, nil

	case *term.TableTerm:
		alias := a.nextAlias()
		a.aliasOf[n.Tag()] = alias
		return &TableFrame{Table: n.Table.Name, Alias: alias}, nil

	case *term.JoinTerm:
		left, err := a.assembleFrom(n.Left)
		if err != nil {
			return nil, err
		}
		var right Frame
		if pt, ok := n.Right.(*term.ProjectionTerm); ok {
			sub, serr := a.assembleSubquery(pt)
			if serr != nil {
				return nil, serr
			}
			right = sub
		} else {
			right, err = a.assembleFrom(n.Right)
			if err != nil {
				return nil, err
			}
		}
		conds := make([]string, len(n.Conditions))
		for i, c := range n.Conditions {
			l, lerr := a.renderCode(c.Left)
			if lerr != nil {
				return nil, lerr
			}
			r, rerr := a.renderCode(c.Right)
			if rerr != nil {
				return nil, rerr
			}
			conds[i] = l + " = " + r
		}
		kind := JoinInner
		switch n.Kind {
		case term.JoinLeft:
			kind = JoinLeft
		case term.JoinCross:
			kind = JoinCross
		}
		return &JoinFrame{Left: left, Right: right, Kind: kind, On: conds}, nil

	case *term.FilterTerm:
		from, err := a.assembleFrom(n.Child)
		if err != nil {
			return nil, err
		}
		pred, perr := a.renderCode(n.Predicate)
		if perr != nil {
			return nil, perr
		}
		a.where = append(a.where, a.asPredicate(n.Predicate, pred))
		return from, nil

	case *term.OrderTerm:
		from, err := a.assembleFrom(n.Child)
		if err != nil {
			return nil, err
		}
		for _, ordk := range n.Order {
			s, oerr := a.renderCode(ordk.Code)
			if oerr != nil {
				return nil, oerr
			}
			if ordk.Desc {
				s += " DESC"
			}
			a.orderBy = append(a.orderBy, s)
		}
		// Stacked OrderedFlows (an explicit sort over a limit, or the
		// segment tie-break over either) share one SELECT; an outer level
		// without its own limit must not erase the inner one's.
		if n.Limit != nil {
			a.limit = n.Limit
		}
		if n.Offset != nil {
			a.offset = n.Offset
		}
		return from, nil

	case *term.ProjectionTerm:
		from, err := a.assembleFrom(n.Child)
		if err != nil {
			return nil, err
		}
		for _, k := range n.Kernel {
			s, kerr := a.renderCode(k)
			if kerr != nil {
				return nil, kerr
			}
			// A quotient drops rows whose kernel is null (spec: a null kernel
			// value is excluded from the projection, not grouped on its own).
			a.where = append(a.where, s+" IS NOT NULL")
			a.groupBy = append(a.groupBy, s)
		}
		a.ptByTag[n.Tag()] = n
		return from, nil

	case *term.WrapperTerm:
		return a.assembleFrom(n.Child)

	default:
		return nil, herr.Internal("frame: unsupported term kind")
	}
}

// assembleSubquery renders pt (and the chain beneath it) as a fully
// independent SELECT, isolating its own WHERE/GROUP BY state from
// whatever SELECT is being built around it (spec §4.5.3's bundled
// aggregate subquery).
func (a *assembler) assembleSubquery(pt *term.ProjectionTerm) (*SubqueryFrame, *herr.Error) {
	savedWhere, savedGroupBy, savedOrderBy := a.where, a.groupBy, a.orderBy
	savedLimit, savedOffset := a.limit, a.offset
	a.where, a.groupBy, a.orderBy, a.limit, a.offset = nil, nil, nil, nil, nil

	from, err := a.assembleFrom(pt.Child)
	if err != nil {
		return nil, err
	}
	for _, k := range pt.Kernel {
		s, kerr := a.renderCode(k)
		if kerr != nil {
			return nil, kerr
		}
		a.where = append(a.where, s+" IS NOT NULL")
		a.groupBy = append(a.groupBy, s)
	}
	a.ptByTag[pt.Tag()] = pt
	alias := a.nextAlias()
	a.subAlias[pt.Tag()] = alias

	var cols []ColumnExpr
	for i := range pt.Kernel {
		cols = append(cols, ColumnExpr{Expr: a.groupBy[i], Alias: pt.KernelAlias(i)})
	}
	for _, agg := range pt.Aggregates {
		s, aerr := a.renderAggregate(agg)
		if aerr != nil {
			return nil, aerr
		}
		cols = append(cols, ColumnExpr{Expr: s, Alias: pt.AggAlias(agg.Unit)})
	}

	sf := &SelectFrame{From: from, Columns: cols, Where: a.where, GroupBy: a.groupBy, OrderBy: a.orderBy, Limit: a.limit, Offset: a.offset}
	a.where, a.groupBy, a.orderBy, a.limit, a.offset = savedWhere, savedGroupBy, savedOrderBy, savedLimit, savedOffset
	a.aliasOf[pt.Tag()] = alias
	return &SubqueryFrame{Select: sf, Alias: alias}, nil
}

func (a *assembler) resolveAlias(f flow.Flow) (string, bool) {
	tag, ok := a.routes.Flows[f]
	if !ok {
		return "", false
	}
	alias, ok := a.aliasOf[tag]
	return alias, ok
}

// renderCode renders c to SQL text against the term tree already
// assembled, consulting Routes/aliasOf to resolve cross-flow references
// and subAlias/ptByTag to tell an inline aggregate/kernel reference
// (computed directly in the SELECT/GROUP BY currently being built) apart
// from one bundled into an already-rendered derived subquery.
func (a *assembler) renderCode(c flow.Code) (string, *herr.Error) {
	switch n := c.(type) {
	case *flow.LiteralCode:
		return renderLiteral(a.policy, n), nil

	case *flow.CastCode:
		inner, err := a.renderCode(n.Operand)
		if err != nil {
			return "", err
		}
		if n.Typ.Domain == n.Operand.Domain().Domain {
			return inner, nil
		}
		if n.Typ.Domain == catalog.DomainEnum && !a.policy.NativeEnum {
			return "", herr.Dialect(herr.Span{}, "enum values are not representable in dialect {}", string(a.policy.Name))
		}
		return "CAST(" + inner + " AS " + sqlTypeName(n.Typ) + ")", nil

	case *flow.FormulaCode:
		return a.renderFormula(n)

	case *flow.ListCode:
		parts := make([]string, len(n.Items))
		for i, it := range n.Items {
			s, err := a.renderCode(it)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, ", ") + ")", nil

	case *flow.ColumnUnit:
		alias, ok := a.resolveAlias(n.On)
		if !ok {
			return "", herr.Internal("frame: column {} read against an unrouted flow", n.Column)
		}
		return alias + "." + a.policy.QuoteIdent(n.Column), nil

	case *flow.CompoundUnit:
		return a.renderCode(n.Inner)

	case *flow.KernelUnit:
		tag, ok := a.routes.Flows[n.Quotient]
		if !ok {
			return "", herr.Internal("frame: kernel read against an unrouted quotient")
		}
		if subAlias, ok := a.subAlias[tag]; ok {
			pt := a.ptByTag[tag]
			return subAlias + "." + pt.KernelAlias(n.Index), nil
		}
		if n.Index >= len(a.groupBy) {
			return "", herr.Internal("frame: kernel index {} out of range", strconv.Itoa(n.Index))
		}
		return a.groupBy[n.Index], nil

	case *flow.CoveringUnit:
		return a.renderExistence(n.On)

	case *flow.AggregateUnit:
		tag, ok := a.routes.AggTag[n]
		if !ok {
			return "", herr.Internal("frame: aggregate was never bundled")
		}
		if subAlias, ok := a.subAlias[tag]; ok {
			// A left-joined aggregate subquery yields null for an empty
			// plural set; apply the per-function empty-set rule (spec
			// §4.5.3, §8 property 8).
			pt := a.ptByTag[tag]
			return a.applyEmptySetRule(n.Name, subAlias+"."+pt.AggAlias(n)), nil
		}
		pt := a.ptByTag[tag]
		for _, agg := range pt.Aggregates {
			if agg.Unit == n {
				return a.renderAggregate(agg)
			}
		}
		return "", herr.Internal("frame: aggregate not found in its own bundled term")

	default:
		return "", herr.Internal("frame: unsupported code kind")
	}
}

func (a *assembler) renderExistence(f flow.Flow) (string, *herr.Error) {
	cf := flow.InnermostClass(f)
	if cf == nil || cf.Table == nil {
		return "", herr.Internal("frame: existence check on a flow with no backing table")
	}
	pk := cf.Table.PrimaryKey()
	if pk == nil || len(pk.Columns) == 0 {
		return "", herr.Internal("frame: table {} has no primary key", cf.Table.Name)
	}
	alias, ok := a.resolveAlias(f)
	if !ok {
		return "", herr.Internal("frame: existence check against an unrouted flow")
	}
	return alias + "." + a.policy.QuoteIdent(pk.Columns[0]) + " IS NOT NULL", nil
}

func (a *assembler) renderAggregate(agg term.AggregateExpr) (string, *herr.Error) {
	zeroOne := a.policy.Boolean == dialect.BooleanZeroOne
	switch agg.Func {
	case "count":
		if agg.Operand == nil {
			return "COUNT(*)", nil
		}
		inner, err := a.renderCode(agg.Operand)
		if err != nil {
			return "", err
		}
		return "COUNT(" + inner + ")", nil
	case "exists":
		// Within a group at least one row exists; the interesting case --
		// the empty group, absent after the left join -- is handled at the
		// reference site by applyEmptySetRule.
		if zeroOne {
			return "(CASE WHEN COUNT(*) > 0 THEN 1 ELSE 0 END)", nil
		}
		return "(COUNT(*) > 0)", nil
	case "every":
		inner, err := a.renderCode(agg.Operand)
		if err != nil {
			return "", err
		}
		val := "MIN(CASE WHEN " + a.asPredicate(agg.Operand, inner) + " THEN 1 ELSE 0 END)"
		if zeroOne {
			return val, nil
		}
		return "(" + val + " = 1)", nil
	case "sum", "avg", "min", "max":
		inner, err := a.renderCode(agg.Operand)
		if err != nil {
			return "", err
		}
		return strings.ToUpper(agg.Func) + "(" + inner + ")", nil
	default:
		return "", herr.Internal("frame: unknown aggregate function {}", agg.Func)
	}
}

// applyEmptySetRule converts the null a left-joined aggregate subquery
// yields for an empty plural set into the aggregate's defined empty-set
// value (spec §8 property 8: count/exists/sum give 0/false/0, every gives
// true, min/max/avg stay null).
func (a *assembler) applyEmptySetRule(fn, ref string) string {
	isNull, lit := bind.EmptySetResult(fn, a.policy.EveryEmptyTrue)
	if isNull {
		return ref
	}
	def := lit
	switch lit {
	case "false":
		if a.policy.Boolean == dialect.BooleanZeroOne {
			def = "0"
		} else {
			def = "FALSE"
		}
	case "true":
		if a.policy.Boolean == dialect.BooleanZeroOne {
			def = "1"
		} else {
			def = "TRUE"
		}
	}
	return "COALESCE(" + ref + ", " + def + ")"
}

// predicateShaped reports whether renderCode produced SQL in predicate
// form (a comparison, logical connective, pattern match, or existence
// test) rather than value form, which decides where a boolean conversion
// is needed on engines representing booleans as 0/1 integers.
func predicateShaped(c flow.Code) bool {
	switch n := c.(type) {
	case *flow.FormulaCode:
		switch n.Signature {
		case "=", "!=", "==", "!==", "<", "<=", ">", ">=", "~", "!~", "|", "&", "!", "in", "!in":
			return true
		}
		return false
	case *flow.CoveringUnit:
		return true
	case *flow.CastCode:
		return predicateShaped(n.Operand)
	case *flow.CompoundUnit:
		return predicateShaped(n.Inner)
	default:
		return false
	}
}

// asPredicate coerces a rendered boolean value into predicate position for
// engines whose booleans are 0/1 integers.
func (a *assembler) asPredicate(c flow.Code, s string) string {
	if a.policy.Boolean == dialect.BooleanZeroOne && !predicateShaped(c) && c.Domain().Domain == catalog.DomainBoolean {
		return "(" + s + " = 1)"
	}
	return s
}

// asValue coerces a rendered predicate into value position for the same
// engines (spec §4.7's "explicit CASE wrapping in SELECT").
func (a *assembler) asValue(c flow.Code, s string) string {
	if a.policy.Boolean == dialect.BooleanZeroOne && predicateShaped(c) && c.Domain().Domain == catalog.DomainBoolean {
		return "(CASE WHEN " + s + " THEN 1 ELSE 0 END)"
	}
	return s
}

func sqlTypeName(t catalog.Type) string {
	switch t.Domain {
	case catalog.DomainInteger:
		return "INTEGER"
	case catalog.DomainDecimal:
		return "DECIMAL"
	case catalog.DomainFloat:
		return "DOUBLE PRECISION"
	case catalog.DomainString, catalog.DomainEnum:
		return "VARCHAR"
	case catalog.DomainBoolean:
		return "BOOLEAN"
	case catalog.DomainDate:
		return "DATE"
	case catalog.DomainTime:
		return "TIME"
	case catalog.DomainDateTime:
		return "TIMESTAMP"
	default:
		return "VARCHAR"
	}
}

func renderLiteral(p *dialect.Policy, n *flow.LiteralCode) string {
	switch n.Typ.Domain {
	case catalog.DomainBoolean:
		if p.Boolean == dialect.BooleanZeroOne {
			if n.Text == "true" {
				return "1"
			}
			return "0"
		}
		return strings.ToUpper(n.Text)
	case catalog.DomainInteger, catalog.DomainDecimal, catalog.DomainFloat:
		return n.Text
	case catalog.DomainDate:
		if p.DateLiteral != nil {
			return p.DateLiteral(n.Text)
		}
		return quoteStringLiteral(n.Text)
	case catalog.DomainTime:
		if p.TimeLiteral != nil {
			return p.TimeLiteral(n.Text)
		}
		return quoteStringLiteral(n.Text)
	case catalog.DomainDateTime:
		if p.DateTimeLiteral != nil {
			return p.DateTimeLiteral(n.Text)
		}
		return quoteStringLiteral(n.Text)
	default:
		return quoteStringLiteral(n.Text)
	}
}

func quoteStringLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// renderFormula renders a primitive operator or scalar function call
// (spec §4.3's signature families; §4.7 routes the dialect-sensitive ones
// through Policy).
func (a *assembler) renderFormula(n *flow.FormulaCode) (string, *herr.Error) {
	switch n.Signature {
	case "!":
		s, err := a.renderCode(n.Operands[0])
		if err != nil {
			return "", err
		}
		return "(NOT " + a.asPredicate(n.Operands[0], s) + ")", nil
	case "neg":
		s, err := a.renderCode(n.Operands[0])
		if err != nil {
			return "", err
		}
		return "(-" + s + ")", nil
	}

	if len(n.Operands) != 2 {
		args := make([]string, len(n.Operands))
		for i, op := range n.Operands {
			s, err := a.renderCode(op)
			if err != nil {
				return "", err
			}
			args[i] = s
		}
		return strings.ToUpper(n.Signature) + "(" + strings.Join(args, ", ") + ")", nil
	}

	l, err := a.renderCode(n.Operands[0])
	if err != nil {
		return "", err
	}
	r, err := a.renderCode(n.Operands[1])
	if err != nil {
		return "", err
	}

	switch n.Signature {
	case "+":
		if n.Typ.Domain == catalog.DomainString {
			return a.policy.Concat([]string{l, r}), nil
		}
		return "(" + l + " + " + r + ")", nil
	case "-", "*":
		return "(" + l + " " + n.Signature + " " + r + ")", nil
	case "/":
		if n.Typ.Domain == catalog.DomainInteger && a.policy.IntDivOperator != "" {
			return "(" + l + " " + a.policy.IntDivOperator + " " + r + ")", nil
		}
		return "(" + l + " / " + r + ")", nil
	case "<", "<=", ">", ">=", "=", "!=":
		return "(" + l + " " + n.Signature + " " + r + ")", nil
	case "==":
		return a.renderDistinctFrom(true, l, r), nil
	case "!==":
		return a.renderDistinctFrom(false, l, r), nil
	case "~", "!~":
		return a.renderMatch(n.Signature == "!~", l, r, n.Operands[1]), nil
	case "in":
		return "(" + l + " IN " + r + ")", nil
	case "!in":
		return "(" + l + " NOT IN " + r + ")", nil
	case "|":
		return "(" + a.asPredicate(n.Operands[0], l) + " OR " + a.asPredicate(n.Operands[1], r) + ")", nil
	case "&":
		return "(" + a.asPredicate(n.Operands[0], l) + " AND " + a.asPredicate(n.Operands[1], r) + ")", nil
	default:
		return strings.ToUpper(n.Signature) + "(" + l + ", " + r + ")", nil
	}
}

// renderMatch renders the `~`/`!~` containment match: the pattern wraps the
// right operand in `%...%` and the match is case-insensitive, routed per
// dialect (spec §4.7: "case-sensitivity of LIKE/ILIKE"): a native ILIKE
// when the engine has one, plain LIKE when the engine's LIKE is already
// case-insensitive, LOWER-folding otherwise.
func (a *assembler) renderMatch(negate bool, l, r string, right flow.Code) string {
	var pattern string
	if lit, ok := right.(*flow.LiteralCode); ok {
		pattern = quoteStringLiteral("%" + lit.Text + "%")
	} else {
		pattern = a.policy.Concat([]string{"'%'", r, "'%'"})
	}

	op := "LIKE"
	switch {
	case a.policy.ILikeOperator != "":
		op = a.policy.ILikeOperator
	case a.policy.LikeCaseSensitive:
		l = "LOWER(" + l + ")"
		pattern = "LOWER(" + pattern + ")"
	}
	if negate {
		op = "NOT " + op
	}
	return "(" + l + " " + op + " " + pattern + ")"
}

// renderDistinctFrom implements spec §9 open question (ii): null-aware
// equality. wantEqual is true for `==`, false for `!==`. Engines with a
// native null-safe equality use it directly; others get a single CASE
// expansion. Every `==`/`!==` operand pair the compiler produces is
// scalar, so one expansion level always suffices; the policy's
// MaxDistinctExpansion is not consulted here and no depth check is made.
func (a *assembler) renderDistinctFrom(wantEqual bool, l, r string) string {
	if a.policy.DistinctEq != nil {
		eq := a.policy.DistinctEq(l, r)
		if wantEqual {
			return eq
		}
		return "(NOT " + eq + ")"
	}
	bothNull := "(" + l + " IS NULL AND " + r + " IS NULL)"
	neitherNull := "(" + l + " IS NOT NULL AND " + r + " IS NOT NULL AND " + l + " = " + r + ")"
	expr := "(CASE WHEN " + bothNull + " OR " + neitherNull + " THEN 1 ELSE 0 END)"
	if wantEqual {
		return expr + " = 1"
	}
	return expr + " = 0"
}
