// compile.go implements spec §4.5's compiler: lowering a flow.Segment
// (after the rewrite stage) to a SegmentTerm plus the Routes index every
// later code reference resolves through.
package term

import (
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/flow"
	"github.com/htsql-go/htsql/herr"
)

type compiler struct {
	tagSeq int
}

func (c *compiler) next() Tag {
	c.tagSeq++
	return Tag(c.tagSeq)
}

// Compile lowers seg into a SegmentTerm and its Routes (spec §4.5).
func Compile(seg *flow.Segment) (*SegmentTerm, *Routes, *herr.Error) {
	seg = FoldSegment(seg)
	c := &compiler{}
	return c.compileSegment(seg)
}

func (c *compiler) compileSegment(seg *flow.Segment) (*SegmentTerm, *Routes, *herr.Error) {
	scalarTerm := &ScalarTerm{base{tag: c.next(), space: flow.ScalarFlow{}}}
	routes := NewRoutes()
	routes.Flows[flow.ScalarFlow{}] = scalarTerm.Tag()

	cur, routes, err := c.ensureFlow(Term(scalarTerm), routes, seg.Flow)
	if err != nil {
		return nil, nil, err
	}

	st := &SegmentTerm{base: base{tag: c.next(), space: seg.Flow}, Labels: seg.Labels, Nested: map[int]*SegmentTerm{}}
	for i, code := range seg.Codes {
		if sc, ok := code.(*flow.SegmentCode); ok {
			nestedTerm, _, nerr := c.compileSegment(sc.Inner)
			if nerr != nil {
				return nil, nil, nerr
			}
			st.Nested[i] = nestedTerm
			st.Codes = append(st.Codes, code)
			continue
		}
		var rerr *herr.Error
		cur, routes, rerr = c.resolve(cur, routes, code)
		if rerr != nil {
			return nil, nil, rerr
		}
		st.Codes = append(st.Codes, code)
	}
	st.Child = cur
	return st, routes, nil
}

// ensureFlow guarantees f's rows are reachable from cur, extending cur
// with injected joins along f's base chain when they are not already
// routed (spec §4.5.3's "Inject").
func (c *compiler) ensureFlow(cur Term, routes *Routes, f flow.Flow) (Term, *Routes, *herr.Error) {
	if _, ok := routes.Flows[f]; ok {
		return cur, routes, nil
	}

	switch w := f.(type) {
	case flow.ScalarFlow:
		return cur, routes, nil

	case *flow.ClassFlow:
		cur, routes, err := c.ensureFlow(cur, routes, w.BaseFlow)
		if err != nil {
			return nil, nil, err
		}
		target := &TableTerm{base: base{tag: c.next(), space: w}, Table: w.Table, Class: w.Class}

		if w.Arrow == nil {
			if _, isScalar := w.BaseFlow.(flow.ScalarFlow); isScalar {
				routes2 := routes.clone()
				routes2.Flows[w] = target.Tag()
				return target, routes2, nil
			}
			jt := &JoinTerm{base: base{tag: c.next(), space: w}, Left: cur, Right: target, Kind: JoinCross}
			routes2 := routes.clone()
			// The flow routes to the TableTerm, not the join: a column read
			// off this flow resolves to the table's own alias.
			routes2.Flows[w] = target.Tag()
			return jt, routes2, nil
		}

		conds, cerr := joinConditions(w.Arrow, w.BaseFlow, w)
		if cerr != nil {
			return nil, nil, cerr
		}
		// A singular partial arrow joins left so a lookup never drops base
		// rows; a plural arrow multiplies base rows by their images, which
		// is inner-join semantics -- a base row with no image contributes
		// no row to the flow, not a null-padded one.
		kind := JoinInner
		if w.Arrow.Singular && !w.Arrow.Total {
			kind = JoinLeft
		}
		jt := &JoinTerm{base: base{tag: c.next(), space: w}, Left: cur, Right: target, Kind: kind, Conditions: conds}
		routes2 := routes.clone()
		routes2.Flows[w] = target.Tag()
		return jt, routes2, nil

	case *flow.FilteredFlow:
		cur, routes, err := c.ensureFlow(cur, routes, w.BaseFlow)
		if err != nil {
			return nil, nil, err
		}
		cur, routes, err = c.resolve(cur, routes, w.Predicate)
		if err != nil {
			return nil, nil, err
		}
		ft := &FilterTerm{base: base{tag: c.next(), space: w}, Child: cur, Predicate: w.Predicate}
		routes2 := routes.clone()
		routes2.Flows[w] = ft.Tag()
		return ft, routes2, nil

	case *flow.OrderedFlow:
		cur, routes, err := c.ensureFlow(cur, routes, w.BaseFlow)
		if err != nil {
			return nil, nil, err
		}
		for _, ok := range w.Order {
			cur, routes, err = c.resolve(cur, routes, ok.Code)
			if err != nil {
				return nil, nil, err
			}
		}
		ot := &OrderTerm{base: base{tag: c.next(), space: w}, Child: cur, Order: w.Order, Limit: w.Limit, Offset: w.Offset}
		routes2 := routes.clone()
		routes2.Flows[w] = ot.Tag()
		return ot, routes2, nil

	case *flow.QuotientFlow:
		cur, routes, err := c.ensureFlow(cur, routes, w.BaseFlow)
		if err != nil {
			return nil, nil, err
		}
		for _, k := range w.Kernel {
			cur, routes, err = c.resolve(cur, routes, k)
			if err != nil {
				return nil, nil, err
			}
		}
		pt := &ProjectionTerm{base: base{tag: c.next(), space: w}, Child: cur, Kernel: w.Kernel}
		routes2 := routes.clone()
		routes2.Flows[w] = pt.Tag()
		return pt, routes2, nil

	case *flow.ComplementFlow:
		// A bare reference to the complement outside an aggregate reduces
		// to "this group's rows exist", which the quotient's own term
		// already witnesses; the aggregate path (ensureAggregate) handles
		// the case that actually needs the ungrouped rows themselves.
		cur, routes, err := c.ensureFlow(cur, routes, w.Quotient)
		if err != nil {
			return nil, nil, err
		}
		routes2 := routes.clone()
		routes2.Flows[w] = routes2.Flows[w.Quotient]
		return cur, routes2, nil

	default:
		return nil, nil, herr.Internal("compile: unsupported flow kind")
	}
}

// resolve ensures every unit referenced by code is routable, injecting
// joins (ensureFlow) or bundling aggregates (ensureAggregate) as needed.
func (c *compiler) resolve(cur Term, routes *Routes, code flow.Code) (Term, *Routes, *herr.Error) {
	switch u := code.(type) {
	case *flow.LiteralCode:
		return cur, routes, nil
	case *flow.CastCode:
		return c.resolve(cur, routes, u.Operand)
	case *flow.FormulaCode:
		var err *herr.Error
		for _, op := range u.Operands {
			cur, routes, err = c.resolve(cur, routes, op)
			if err != nil {
				return nil, nil, err
			}
		}
		return cur, routes, nil
	case *flow.ListCode:
		var err *herr.Error
		for _, it := range u.Items {
			cur, routes, err = c.resolve(cur, routes, it)
			if err != nil {
				return nil, nil, err
			}
		}
		return cur, routes, nil
	case *flow.ColumnUnit:
		return c.ensureFlow(cur, routes, u.On)
	case *flow.CompoundUnit:
		cur, routes, err := c.resolve(cur, routes, u.Inner)
		if err != nil {
			return nil, nil, err
		}
		return c.ensureFlow(cur, routes, u.On)
	case *flow.KernelUnit:
		return c.ensureFlow(cur, routes, u.Quotient)
	case *flow.CoveringUnit:
		return c.ensureFlow(cur, routes, u.On)
	case *flow.AggregateUnit:
		return c.ensureAggregate(cur, routes, u)
	default:
		return nil, nil, herr.Internal("compile: unsupported code kind")
	}
}

// joinConditions builds the per-column equality conditions for traversing
// arrow from base to target (spec §4.5.2's "condition is derived from the
// foreign key").
func joinConditions(arrow *catalog.Arrow, base, target flow.Flow) ([]JoinCondition, *herr.Error) {
	baseClass := flow.InnermostClass(base)
	if baseClass == nil || baseClass.Table == nil {
		return nil, herr.Internal("join: base flow has no backing table")
	}
	targetClass, ok := target.(*flow.ClassFlow)
	if !ok || targetClass.Table == nil {
		return nil, herr.Internal("join: target flow has no backing table")
	}
	if len(arrow.Columns) != len(arrow.TargetColumns) {
		return nil, herr.Internal("join: arrow {} has mismatched column counts", arrow.Name)
	}
	conds := make([]JoinCondition, len(arrow.Columns))
	for i, lc := range arrow.Columns {
		lcol, ok := baseClass.Table.Column(lc)
		if !ok {
			return nil, herr.Internal("join: column {} not found", lc)
		}
		rc := arrow.TargetColumns[i]
		rcol, ok := targetClass.Table.Column(rc)
		if !ok {
			return nil, herr.Internal("join: column {} not found", rc)
		}
		conds[i] = JoinCondition{
			Left:  &flow.ColumnUnit{Typ: lcol.Type, Column: lcol.SQLName(), On: base},
			Right: &flow.ColumnUnit{Typ: rcol.Type, Column: rcol.SQLName(), On: target},
		}
	}
	return conds, nil
}
