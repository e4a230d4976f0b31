// aggregate.go implements spec §4.5.3's aggregate bundling: "all
// aggregates sharing (plural_flow, base_flow) are grouped and computed in
// a single ProjectionTerm joined back with left join", plus tie-break (c):
// "aggregate units whose base is the quotient are lowered to aggregate
// expressions over the pre-projection term" -- handled inline, with no
// join at all, since the quotient's own ProjectionTerm already groups the
// rows the aggregate needs.
package term

import (
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/flow"
	"github.com/htsql-go/htsql/herr"
)

// ensureAggregate routes u. The first aggregate over a given
// (plural_flow, base_flow) pair builds the group's ProjectionTerm and the
// left join back; every later aggregate over the same pair appends its own
// AggregateExpr to that term (spec §4.5.3: "all aggregates sharing
// (plural_flow, base_flow) are grouped and computed in a single
// ProjectionTerm joined back with left join"). The pair lookup works on
// flow identity because the encoder hash-conses flows.
func (c *compiler) ensureAggregate(cur Term, routes *Routes, u *flow.AggregateUnit) (Term, *Routes, *herr.Error) {
	if _, ok := routes.AggTag[u]; ok {
		return cur, routes, nil
	}

	// Tie-break (c): aggregate of a quotient's own complement inlines into
	// the ProjectionTerm already grouping that quotient.
	if qf, ok := u.BaseFlow.(*flow.QuotientFlow); ok {
		if cf, ok2 := u.PluralFlow.(*flow.ComplementFlow); ok2 && cf.Quotient == qf {
			tag, ok3 := routes.Flows[qf]
			if !ok3 {
				return nil, nil, herr.Internal("aggregate: quotient not yet compiled")
			}
			pt, ok4 := findTerm(cur, tag).(*ProjectionTerm)
			if !ok4 {
				return nil, nil, herr.Internal("aggregate: quotient term not found")
			}
			var operand flow.Code
			if u.Operand != nil {
				var err *herr.Error
				cur, routes, err = c.resolve(cur, routes, u.Operand)
				if err != nil {
					return nil, nil, err
				}
				operand = u.Operand
			}
			pt.Aggregates = append(pt.Aggregates, AggregateExpr{Func: u.Name, Operand: operand, Unit: u})
			routes2 := routes.clone()
			routes2.AggTag[u] = pt.Tag()
			return cur, routes2, nil
		}
	}

	// A group for this (plural_flow, base_flow) pair already exists: append
	// this aggregate's column to it. The operand's units resolve against
	// the merged routes, where the group's own flows are already present,
	// so the render-time lookup lands inside the group's subquery.
	pair := AggPair{Plural: u.PluralFlow, Base: u.BaseFlow}
	if tag, ok := routes.AggGroups[pair]; ok {
		pt, ok2 := findTerm(cur, tag).(*ProjectionTerm)
		if !ok2 {
			return nil, nil, herr.Internal("aggregate: bundled group term not found")
		}
		var operand flow.Code
		if u.Operand != nil {
			var err *herr.Error
			cur, routes, err = c.resolve(cur, routes, u.Operand)
			if err != nil {
				return nil, nil, err
			}
			operand = u.Operand
		}
		pt.Aggregates = append(pt.Aggregates, AggregateExpr{Func: u.Name, Operand: operand, Unit: u})
		routes2 := routes.clone()
		routes2.AggTag[u] = pt.Tag()
		return cur, routes2, nil
	}

	group, groupRoutes, kernelUnits, err := c.compileAggregateGroup(u)
	if err != nil {
		return nil, nil, err
	}

	cur, routes, err = c.ensureFlow(cur, routes, u.BaseFlow)
	if err != nil {
		return nil, nil, err
	}
	pk, pkClass, err := primaryKeyOf(u.BaseFlow)
	if err != nil {
		return nil, nil, err
	}

	conds := make([]JoinCondition, len(pk))
	for i, col := range pk {
		conds[i] = JoinCondition{
			Left:  &flow.ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: pkClass},
			Right: kernelUnits[i],
		}
	}
	jt := &JoinTerm{base: base{tag: c.next(), space: cur.Space()}, Left: cur, Right: group, Kind: JoinLeft, Conditions: conds}

	routes2 := routes.clone()
	routes2.merge(groupRoutes)
	routes2.AggTag[u] = group.Tag()
	routes2.AggGroups[pair] = group.Tag()
	return jt, routes2, nil
}

// compileAggregateGroup builds the ProjectionTerm opening a new bundling
// group: it computes u, and ensureAggregate appends any later aggregate
// sharing u's (plural_flow, base_flow) pair to the same term.
func (c *compiler) compileAggregateGroup(u *flow.AggregateUnit) (*ProjectionTerm, *Routes, []*flow.KernelUnit, *herr.Error) {
	if hop, ok := u.PluralFlow.(*flow.ClassFlow); ok && hop.Arrow != nil && flow.SameFlow(hop.BaseFlow, u.BaseFlow) {
		return c.compileAggregateGroupDirect(u, hop)
	}
	return c.compileAggregateGroupGeneric(u)
}

// compileAggregateGroupDirect handles the single-hop case (spec §8
// scenario b: `count(department)` from `/school{...}`): group the target
// table directly by its own foreign-key column, with no join back to the
// base flow inside the subquery at all.
func (c *compiler) compileAggregateGroupDirect(u *flow.AggregateUnit, hop *flow.ClassFlow) (*ProjectionTerm, *Routes, []*flow.KernelUnit, *herr.Error) {
	tableTerm := &TableTerm{base: base{tag: c.next(), space: hop}, Table: hop.Table, Class: hop.Class}
	routes := NewRoutes()
	routes.Flows[hop] = tableTerm.Tag()

	kernel := make([]flow.Code, len(hop.Arrow.TargetColumns))
	for i, colName := range hop.Arrow.TargetColumns {
		col, ok := hop.Table.Column(colName)
		if !ok {
			return nil, nil, nil, herr.Internal("aggregate: column {} not found", colName)
		}
		kernel[i] = &flow.ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: hop}
	}
	qf := &flow.QuotientFlow{BaseFlow: hop, Kernel: kernel}

	var cur Term = tableTerm
	var operand flow.Code
	if u.Operand != nil {
		var err *herr.Error
		cur, routes, err = c.resolve(cur, routes, u.Operand)
		if err != nil {
			return nil, nil, nil, err
		}
		operand = u.Operand
	}

	pt := &ProjectionTerm{
		base:       base{tag: c.next(), space: qf},
		Child:      cur,
		Kernel:     kernel,
		Aggregates: []AggregateExpr{{Func: u.Name, Operand: operand, Unit: u}},
	}
	routes.Flows[qf] = pt.Tag()

	kernelUnits := make([]*flow.KernelUnit, len(kernel))
	for i, k := range kernel {
		kernelUnits[i] = &flow.KernelUnit{Typ: k.Domain(), Quotient: qf, Index: i}
	}
	return pt, routes, kernelUnits, nil
}

// compileAggregateGroupGeneric handles any aggregate whose PluralFlow
// isn't a direct single-hop link off BaseFlow: it recompiles PluralFlow's
// entire chain independently (re-joining BaseFlow's own ancestors inside
// the subquery), then groups by BaseFlow's primary key. Less optimal SQL
// than the direct form but always correct.
func (c *compiler) compileAggregateGroupGeneric(u *flow.AggregateUnit) (*ProjectionTerm, *Routes, []*flow.KernelUnit, *herr.Error) {
	scalarTerm := &ScalarTerm{base{tag: c.next(), space: flow.ScalarFlow{}}}
	routes := NewRoutes()
	routes.Flows[flow.ScalarFlow{}] = scalarTerm.Tag()

	cur, routes, err := c.ensureFlow(Term(scalarTerm), routes, u.PluralFlow)
	if err != nil {
		return nil, nil, nil, err
	}

	pk, pkClass, err := primaryKeyOf(u.BaseFlow)
	if err != nil {
		return nil, nil, nil, err
	}
	kernel := make([]flow.Code, len(pk))
	for i, col := range pk {
		kernel[i] = &flow.ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: pkClass}
	}
	qf := &flow.QuotientFlow{BaseFlow: u.PluralFlow, Kernel: kernel}

	var operand flow.Code
	if u.Operand != nil {
		cur, routes, err = c.resolve(cur, routes, u.Operand)
		if err != nil {
			return nil, nil, nil, err
		}
		operand = u.Operand
	}

	pt := &ProjectionTerm{
		base:       base{tag: c.next(), space: qf},
		Child:      cur,
		Kernel:     kernel,
		Aggregates: []AggregateExpr{{Func: u.Name, Operand: operand, Unit: u}},
	}
	routes.Flows[qf] = pt.Tag()

	kernelUnits := make([]*flow.KernelUnit, len(kernel))
	for i, k := range kernel {
		kernelUnits[i] = &flow.KernelUnit{Typ: k.Domain(), Quotient: qf, Index: i}
	}
	return pt, routes, kernelUnits, nil
}

// primaryKeyOf returns the primary-key columns of f's innermost class flow,
// alongside that class flow itself (the On a ColumnUnit reading one of
// those columns outside the class's own scope must use).
func primaryKeyOf(f flow.Flow) ([]catalog.Column, *flow.ClassFlow, *herr.Error) {
	cf := flow.InnermostClass(f)
	if cf == nil || cf.Table == nil {
		return nil, nil, herr.Internal("aggregate: base flow has no backing table")
	}
	pk := cf.Table.PrimaryKey()
	if pk == nil {
		return nil, nil, herr.Internal("aggregate: table {} has no primary key", cf.Table.Name)
	}
	cols := make([]catalog.Column, len(pk.Columns))
	for i, name := range pk.Columns {
		col, ok := cf.Table.Column(name)
		if !ok {
			return nil, nil, herr.Internal("aggregate: column {} not found", name)
		}
		cols[i] = col
	}
	return cols, cf, nil
}

// findTerm locates the term tree node tagged tag within t, or nil.
func findTerm(t Term, tag Tag) Term {
	if t == nil {
		return nil
	}
	if t.Tag() == tag {
		return t
	}
	switch n := t.(type) {
	case *JoinTerm:
		if found := findTerm(n.Left, tag); found != nil {
			return found
		}
		return findTerm(n.Right, tag)
	case *FilterTerm:
		return findTerm(n.Child, tag)
	case *OrderTerm:
		return findTerm(n.Child, tag)
	case *ProjectionTerm:
		return findTerm(n.Child, tag)
	case *WrapperTerm:
		return findTerm(n.Child, tag)
	case *SegmentTerm:
		return findTerm(n.Child, tag)
	default:
		return nil
	}
}
