// encode.go implements spec §4.4's lowering of a bound bind.Binding tree
// into the flow/code algebra defined in flow.go/code.go.
//
// Grounded on the same hand-rolled recursive-descent idiom as bind/bind.go
// (one method per binding variant, switch dispatch rather than a visitor
// interface); no teacher file lowers an expression tree into a separate
// "what collection of rows is this evaluated over" algebra, so the shape
// here follows spec §4.4's own rule list directly.
package flow

import (
	"github.com/htsql-go/htsql/bind"
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/herr"
)

type classKey struct {
	base  Flow
	class string
	arrow string
}

// projInfo records how a projection's kernel elements map into the
// expanded QuotientFlow.Kernel slice: a scalar kernel element occupies one
// slot at start[i]; a class-valued kernel element (grouping by a singular
// link) expands to the target's primary-key columns read off classFlow[i].
type projInfo struct {
	qf        *QuotientFlow
	start     []int
	classFlow []*ClassFlow // nil for scalar kernel elements
}

type encoder struct {
	flowMemo map[bind.Binding]Flow
	projMemo map[*bind.ProjectionBinding]*projInfo
	// classMemo interns ClassFlow nodes by (base, class, arrow name), so
	// the same link traversed from two independently bound expressions (a
	// selection item and a sieve predicate, say) lands on one flow node and
	// therefore one join (spec §9's hash-consing design note).
	classMemo map[classKey]*ClassFlow
	// currentBase is the flow of the selection item list currently being
	// encoded; it is the "base_flow" of any AggregateUnit produced while
	// encoding one of that selection's items (spec §4.4).
	currentBase Flow
}

// Encode lowers root (the top-level binding produced by bind.Bind) into a
// Segment (spec §4.4).
func Encode(root bind.Binding) (*Segment, *herr.Error) {
	e := &encoder{
		flowMemo:  map[bind.Binding]Flow{},
		projMemo:  map[*bind.ProjectionBinding]*projInfo{},
		classMemo: map[classKey]*ClassFlow{},
	}
	return e.encodeSegment(root)
}

func (e *encoder) encodeSegment(b bind.Binding) (*Segment, *herr.Error) {
	sel, ok := b.(*bind.SelectionBinding)
	if !ok {
		f, err := e.flowOf(b)
		if err != nil {
			return nil, err
		}
		savedBase := e.currentBase
		e.currentBase = f
		code, err := e.encodeCode(b)
		e.currentBase = savedBase
		if err != nil {
			return nil, err
		}
		return &Segment{Flow: f, Codes: []Code{code}, Labels: []string{""}}, nil
	}

	base, err := e.flowOf(sel.BaseFlow)
	if err != nil {
		return nil, err
	}

	savedBase := e.currentBase
	e.currentBase = base

	var order []OrderKey
	var codes []Code
	for _, it := range sel.Items {
		var code Code
		if sortB, ok := it.(*bind.SortBinding); ok {
			kc, kerr := e.encodeCode(sortB.Key)
			if kerr != nil {
				e.currentBase = savedBase
				return nil, kerr
			}
			order = append(order, OrderKey{Code: kc, Desc: sortB.Desc})
			code = kc
		} else if nested, ok := it.(*bind.SelectionBinding); ok {
			nestedSeg, nerr := e.encodeSegment(nested)
			if nerr != nil {
				e.currentBase = savedBase
				return nil, nerr
			}
			code = &SegmentCode{Inner: nestedSeg}
		} else {
			var cerr *herr.Error
			code, cerr = e.encodeCode(it)
			if cerr != nil {
				e.currentBase = savedBase
				return nil, cerr
			}
		}
		codes = append(codes, code)
	}
	e.currentBase = savedBase

	// spec §4.5.4.d: ordering is stable -- explicit sort keys first, then
	// the primary key of the innermost class flow, ascending.
	if pk := primaryKeyTiebreak(base); len(pk) > 0 {
		order = append(order, pk...)
	}

	finalFlow := base
	if len(order) > 0 {
		finalFlow = &OrderedFlow{BaseFlow: base, Order: order}
	}

	return &Segment{Flow: finalFlow, Codes: codes, Labels: sel.Labels, RecordOf: sel.BaseFlow.Domain().RecordOf}, nil
}

// primaryKeyTiebreak produces the implicit trailing sort keys of a segment
// (spec §4.5.4.d): for a class flow, its primary key ascending; for a
// quotient, its kernel ascending (the primary key of the pre-projection
// class is not grouped and must not be ordered on).
func primaryKeyTiebreak(f Flow) []OrderKey {
	for {
		switch w := f.(type) {
		case *FilteredFlow:
			f = w.BaseFlow
			continue
		case *OrderedFlow:
			f = w.BaseFlow
			continue
		case *QuotientFlow:
			var out []OrderKey
			for i, k := range w.Kernel {
				out = append(out, OrderKey{Code: &KernelUnit{Typ: k.Domain(), Quotient: w, Index: i}})
			}
			return out
		}
		break
	}
	cf := InnermostClass(f)
	if cf == nil || cf.Table == nil {
		return nil
	}
	pk := cf.Table.PrimaryKey()
	if pk == nil {
		return nil
	}
	var out []OrderKey
	for _, name := range pk.Columns {
		col, ok := cf.Table.Column(name)
		if !ok {
			continue
		}
		out = append(out, OrderKey{Code: &ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: cf}, Desc: false})
	}
	return out
}

// flowOf returns the flow that b (a flow-valued or flow-derived binding)
// ranges over, memoized by binding identity so repeated references to the
// same sub-expression (e.g. a composition's left side reused by several
// selection items) produce the identical flow node rather than distinct,
// un-joinable copies.
func (e *encoder) flowOf(b bind.Binding) (Flow, *herr.Error) {
	if b == nil {
		return ScalarFlow{}, nil
	}
	if f, ok := e.flowMemo[b]; ok {
		return f, nil
	}
	f, err := e.computeFlow(b)
	if err != nil {
		return nil, err
	}
	e.flowMemo[b] = f
	return f, nil
}

func (e *encoder) computeFlow(b bind.Binding) (Flow, *herr.Error) {
	switch n := b.(type) {
	case *bind.ClassBinding:
		base, err := e.flowOf(n.Base)
		if err != nil {
			return nil, err
		}
		return e.internClass(base, n.Class, n.Table, n.Arrow), nil
	case *bind.ColumnBinding:
		return e.flowOf(n.Base)
	case *bind.CompositionBinding:
		return e.flowOf(n.Right)
	case *bind.SieveBinding:
		base, err := e.flowOf(n.BaseFlow)
		if err != nil {
			return nil, err
		}
		savedBase := e.currentBase
		e.currentBase = base
		pred, perr := e.encodeCode(n.Predicate)
		e.currentBase = savedBase
		if perr != nil {
			return nil, perr
		}
		return &FilteredFlow{BaseFlow: base, Predicate: pred}, nil
	case *bind.ProjectionBinding:
		return e.encodeProjection(n)
	case *bind.ComplementBinding:
		qf, err := e.flowOf(n.Projection)
		if err != nil {
			return nil, err
		}
		return &ComplementFlow{Quotient: qf.(*QuotientFlow)}, nil
	case *bind.SelectionBinding:
		return e.flowOf(n.BaseFlow)
	case *bind.SortBinding:
		return e.flowOf(n.Key)
	case *bind.LinkBinding:
		return e.flowOf(n.Right)
	case *bind.AssignBinding:
		return e.flowOf(n.Expr)
	case *bind.ReferenceBinding:
		return e.flowOf(n.Target)
	case *bind.DefineBinding:
		return e.flowOf(n.Base)
	case *bind.LimitBinding:
		base, err := e.flowOf(n.Base)
		if err != nil {
			return nil, err
		}
		return &OrderedFlow{BaseFlow: base, Limit: n.Limit, Offset: n.Offset}, nil
	case *bind.OrderBinding:
		base, err := e.flowOf(n.Base)
		if err != nil {
			return nil, err
		}
		savedBase := e.currentBase
		e.currentBase = base
		var order []OrderKey
		for _, k := range n.Keys {
			if sb, ok := k.(*bind.SortBinding); ok {
				kc, kerr := e.encodeCode(sb.Key)
				if kerr != nil {
					e.currentBase = savedBase
					return nil, kerr
				}
				order = append(order, OrderKey{Code: kc, Desc: sb.Desc})
				continue
			}
			kc, kerr := e.encodeCode(k)
			if kerr != nil {
				e.currentBase = savedBase
				return nil, kerr
			}
			order = append(order, OrderKey{Code: kc})
		}
		e.currentBase = savedBase
		return &OrderedFlow{BaseFlow: base, Order: order}, nil
	case *bind.KernelRefBinding:
		info, err := e.projInfoFor(n.Projection)
		if err != nil {
			return nil, err
		}
		if cf := info.classFlow[n.Index]; cf != nil {
			return cf, nil
		}
		return info.qf, nil
	case *bind.CallBinding:
		// A scalar formula introduces no flow of its own; it ranges over
		// whatever its operands range over (they must agree, or an earlier
		// binder/plurality check would already have rejected the mix).
		if len(n.Args) > 0 {
			return e.flowOf(n.Args[0])
		}
		if e.currentBase != nil {
			return e.currentBase, nil
		}
		return ScalarFlow{}, nil
	default:
		// Scalar-valued bindings (literals, formulas, kernel refs, ...)
		// range over whatever flow is already current; they never extend
		// it themselves.
		if e.currentBase != nil {
			return e.currentBase, nil
		}
		return ScalarFlow{}, nil
	}
}

// encodeCode lowers b to a Code, evaluated against e.currentBase (spec
// §4.4: "column references become ColumnUnit(column, current_flow)").
func (e *encoder) encodeCode(b bind.Binding) (Code, *herr.Error) {
	switch n := b.(type) {
	case *bind.LiteralBinding:
		return &LiteralCode{Typ: n.Domain(), Text: n.Text}, nil

	case *bind.ColumnBinding:
		f, err := e.flowOf(n.Base)
		if err != nil {
			return nil, err
		}
		return &ColumnUnit{Typ: n.Domain(), Column: n.Column, Nullable: n.Nullable, On: f}, nil

	case *bind.ClassBinding:
		f, err := e.flowOf(b)
		if err != nil {
			return nil, err
		}
		return &CoveringUnit{On: f}, nil

	case *bind.ComplementBinding:
		f, err := e.flowOf(b)
		if err != nil {
			return nil, err
		}
		return &CoveringUnit{On: f}, nil

	case *bind.KernelRefBinding:
		info, err := e.projInfoFor(n.Projection)
		if err != nil {
			return nil, err
		}
		if cf := info.classFlow[n.Index]; cf != nil {
			return &CoveringUnit{On: cf}, nil
		}
		return &KernelUnit{Typ: n.Domain(), Quotient: info.qf, Index: info.start[n.Index]}, nil

	case *bind.CallBinding:
		if n.Aggregate {
			return e.encodeAggregate(n)
		}
		ops := make([]Code, len(n.Args))
		for i, a := range n.Args {
			c, err := e.encodeCode(a)
			if err != nil {
				return nil, err
			}
			ops[i] = c
		}
		return &FormulaCode{Typ: n.Domain(), Signature: n.Name, Operands: ops}, nil

	case *bind.LinkBinding:
		return e.encodeCode(n.Right)

	case *bind.AssignBinding:
		inner, err := e.encodeCode(n.Expr)
		if err != nil {
			return nil, err
		}
		return &CompoundUnit{Typ: n.Domain(), Inner: inner, On: e.currentBase}, nil

	case *bind.ReferenceBinding:
		return e.encodeCode(n.Target)

	case *bind.DefineBinding:
		return e.encodeCode(n.Base)

	case *bind.ListBinding:
		items := make([]Code, len(n.Items))
		for i, it := range n.Items {
			c, err := e.encodeCode(it)
			if err != nil {
				return nil, err
			}
			items[i] = c
		}
		return &ListCode{Typ: n.Domain(), Items: items}, nil

	case *bind.SortBinding:
		return e.encodeCode(n.Key)

	case *bind.CompositionBinding:
		return e.encodeCode(n.Right)

	case *bind.ProjectionBinding:
		f, err := e.flowOf(b)
		if err != nil {
			return nil, err
		}
		return &CoveringUnit{On: f}, nil

	case *bind.SelectionBinding:
		return nil, herr.Internal("encode: nested selection outside item position")

	default:
		return nil, herr.Internal("encode: unsupported binding kind")
	}
}

// internClass returns the one ClassFlow node for (base, class, arrow):
// independently bound references to the same link off the same base flow
// share a node, so the compiler later injects a single join for all of them.
func (e *encoder) internClass(base Flow, class string, table *catalog.Table, arrow *catalog.Arrow) *ClassFlow {
	key := classKey{base: base, class: class}
	if arrow != nil {
		key.arrow = arrow.Name
	}
	if cf, ok := e.classMemo[key]; ok {
		return cf
	}
	cf := &ClassFlow{BaseFlow: base, Class: class, Table: table, Arrow: arrow}
	e.classMemo[key] = cf
	return cf
}

// encodeProjection lowers a projection to a QuotientFlow, expanding each
// class-valued kernel element (grouping by a singular link) into the
// target class's primary-key columns and recording the element-to-slot
// mapping for later KernelRefBinding references.
func (e *encoder) encodeProjection(n *bind.ProjectionBinding) (Flow, *herr.Error) {
	base, err := e.flowOf(n.BaseFlow)
	if err != nil {
		return nil, err
	}

	savedBase := e.currentBase
	e.currentBase = base
	defer func() { e.currentBase = savedBase }()

	info := &projInfo{
		start:     make([]int, len(n.Kernel)),
		classFlow: make([]*ClassFlow, len(n.Kernel)),
	}
	var kernel []Code
	for i, k := range n.Kernel {
		info.start[i] = len(kernel)
		if k.Domain().Domain == catalog.DomainRecord {
			kf, kerr := e.flowOf(k)
			if kerr != nil {
				return nil, kerr
			}
			cf, ok := kf.(*ClassFlow)
			if !ok || cf.Table == nil {
				return nil, herr.Link(k.Span(), "cannot group by a flow without a backing class").InPhase(herr.PhaseEncode)
			}
			pk := cf.Table.PrimaryKey()
			if pk == nil {
				return nil, herr.Link(k.Span(), "cannot group by class {} without a primary key", cf.Class).InPhase(herr.PhaseEncode)
			}
			info.classFlow[i] = cf
			for _, name := range pk.Columns {
				col, ok := cf.Table.Column(name)
				if !ok {
					return nil, herr.Internal("kernel column {} not found", name)
				}
				kernel = append(kernel, &ColumnUnit{Typ: col.Type, Column: col.SQLName(), On: cf})
			}
			continue
		}
		kc, kerr := e.encodeCode(k)
		if kerr != nil {
			return nil, kerr
		}
		kernel = append(kernel, kc)
	}

	qf := &QuotientFlow{BaseFlow: base, Kernel: kernel}
	info.qf = qf
	e.projMemo[n] = info
	return qf, nil
}

// projInfoFor returns the kernel-slot mapping for p, computing p's flow
// first if this is the first reference to it.
func (e *encoder) projInfoFor(p *bind.ProjectionBinding) (*projInfo, *herr.Error) {
	if info, ok := e.projMemo[p]; ok {
		return info, nil
	}
	if _, err := e.flowOf(p); err != nil {
		return nil, err
	}
	info, ok := e.projMemo[p]
	if !ok {
		return nil, herr.Internal("projection was encoded without recording its kernel mapping")
	}
	return info, nil
}

// encodeAggregate implements spec §4.4: produce an
// AggregateUnit whose plural_flow is the flow of the aggregate's argument
// and whose base_flow is e.currentBase, the flow of the aggregate's
// enclosing context.
func (e *encoder) encodeAggregate(n *bind.CallBinding) (Code, *herr.Error) {
	arg := n.Args[0]
	pluralFlow, err := e.flowOf(arg)
	if err != nil {
		return nil, err
	}

	var operand Code
	if arg.Domain().Domain != catalog.DomainRecord {
		savedBase := e.currentBase
		e.currentBase = pluralFlow
		operand, err = e.encodeCode(arg)
		e.currentBase = savedBase
		if err != nil {
			return nil, err
		}
	}

	return &AggregateUnit{
		Typ:        n.Domain(),
		Name:       n.Name,
		Operand:    operand,
		PluralFlow: pluralFlow,
		BaseFlow:   e.currentBase,
	}, nil
}
