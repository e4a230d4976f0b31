// bind.go implements spec §4.3's depth-first binding algorithm: walk the
// syntax tree produced by parser.Parse, resolving every identifier against
// a Scope, attaching a catalog.Type and plurality to every node, and
// reporting herr.Bind/herr.Type/herr.Plurality errors on failure.
//
// Grounded on the same struct-tree idiom as binding.go; the traversal
// itself follows the teacher's recursive-descent shape (one method per
// node kind, mirroring parser/parser.go's one-method-per-precedence-level
// style) rather than a visitor interface, since the teacher never uses
// the visitor pattern for its own AST walks (schema/generator.go switches
// on concrete DDL node types directly).
package bind

import (
	"strconv"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/herr"
	"github.com/htsql-go/htsql/parser"
	"github.com/htsql-go/htsql/syntax"
)

var aggregateNames = map[string]bool{
	"count": true, "exists": true, "sum": true,
	"min": true, "max": true, "avg": true, "every": true,
}

type binder struct {
	model *catalog.Model
	view  *catalog.View
	root  *RootScope

	// overrideDepth guards against a calculated field or global whose
	// expression refers back to itself (directly or through another
	// override).
	overrideDepth map[string]bool
}

// Bind resolves q's body against root, returning the bound tree or the
// first error encountered (spec §4.3: binding fails fast on the first
// unresolved name, type mismatch, or plurality violation).
func Bind(q *syntax.Query, root *RootScope) (Binding, *herr.Error) {
	b := &binder{model: root.Model, view: root.View, root: root, overrideDepth: map[string]bool{}}
	return b.bindExpr(q.Body, root)
}

func (b *binder) tableFor(class string) *catalog.Table {
	for i := range b.model.Classes {
		if b.model.Classes[i].Name == class {
			return b.model.Classes[i].Table
		}
	}
	return nil
}

// classScopeFor builds the ClassScope that bases's rows open onto, used
// whenever a sub-expression (sieve predicate, projection kernel, selection
// item, composition right side) must resolve names against the row
// currently in hand rather than against the enclosing scope.
func (b *binder) classScopeFor(parent Scope, base Binding) (*ClassScope, *herr.Error) {
	t := base.Domain()
	if t.Domain != catalog.DomainRecord {
		return nil, herr.Bind(base.Span(), "expected a class-valued flow, found domain {}", t.Domain.String())
	}
	table := b.tableFor(t.RecordOf)
	if table == nil {
		return nil, herr.Internal("class {} has no backing table", t.RecordOf)
	}
	cs := NewClassScope(parent, t.RecordOf, table, b.model, base)
	// Calculated attributes introduced by define() on any wrapper in base's
	// chain stay visible from the new scope.
	for bd := base; bd != nil; {
		switch w := bd.(type) {
		case *DefineBinding:
			for _, d := range w.Defs {
				cs.Define(d.Name, d.Expr)
				cs.CaptureReference(d.Name, d.Expr)
			}
			bd = w.Base
		case *SieveBinding:
			bd = w.BaseFlow
		case *LimitBinding:
			bd = w.Base
		case *OrderBinding:
			bd = w.Base
		default:
			bd = nil
		}
	}
	return cs, nil
}

func (b *binder) bindExpr(e syntax.Expression, scope Scope) (Binding, *herr.Error) {
	switch n := e.(type) {
	case *syntax.Identifier:
		return b.bindIdentifier(n, scope)
	case *syntax.IntLiteral:
		return &LiteralBinding{base: base{typ: catalog.Simple(catalog.DomainInteger), sp: n.Sp}, Text: n.Text}, nil
	case *syntax.DecimalLiteral:
		return &LiteralBinding{base: base{typ: catalog.Simple(catalog.DomainDecimal), sp: n.Sp}, Text: n.Text}, nil
	case *syntax.FloatLiteral:
		return &LiteralBinding{base: base{typ: catalog.Simple(catalog.DomainFloat), sp: n.Sp}, Text: n.Text}, nil
	case *syntax.StringLiteral:
		// Quoted literals are untyped until coerced toward a target domain
		// (spec §4.3); the encoder/assembler resolve the final rendering.
		return &LiteralBinding{base: base{typ: catalog.Simple(catalog.DomainUntyped), sp: n.Sp}, Text: n.Value}, nil
	case *syntax.Reference:
		return b.bindReference(n, scope)
	case *syntax.Wildcard:
		return nil, herr.Bind(n.Sp, "'*' is only valid as a selection item")
	case *syntax.Complement:
		return b.bindComplement(n, scope)
	case *syntax.Call:
		return b.bindCall(n, scope)
	case *syntax.InfixFuncCall:
		return b.bindInfixFuncCall(n, scope)
	case *syntax.Composition:
		return b.bindComposition(n, scope)
	case *syntax.Sieve:
		return b.bindSieve(n, scope)
	case *syntax.Projection:
		return b.bindProjection(n, scope)
	case *syntax.Selection:
		return b.bindSelection(n, scope)
	case *syntax.ListLiteral:
		return b.bindListLiteral(n, scope)
	case *syntax.Group:
		return b.bindExpr(n.Inner, scope)
	case *syntax.Sort:
		return b.bindSort(n, scope)
	case *syntax.BinOp:
		return b.bindBinOp(n, scope)
	case *syntax.UnaryOp:
		return b.bindUnaryOp(n, scope)
	case *syntax.Link:
		return b.bindLink(n, scope)
	case *syntax.Assign:
		return b.bindAssign(n, scope)
	case *syntax.Segment:
		return b.bindSegment(n, scope)
	}
	return nil, herr.Internal("unhandled syntax node {}", e.String())
}

// bindSegment binds a nested `/expr` selection item (spec §8 scenario f):
// the inner expression is a selection already, or a bare class reference
// expanded to all of its attributes.
func (b *binder) bindSegment(n *syntax.Segment, scope Scope) (Binding, *herr.Error) {
	inner, err := b.bindExpr(n.Inner, scope)
	if err != nil {
		return nil, err
	}
	if sel, ok := inner.(*SelectionBinding); ok {
		return sel, nil
	}
	if inner.Domain().Domain != catalog.DomainRecord {
		return nil, herr.Bind(n.Sp, "a nested segment must produce rows, found domain {}", inner.Domain().Domain.String())
	}
	cs, cerr := b.classScopeFor(scope, inner)
	if cerr != nil {
		return nil, cerr
	}
	var items []Binding
	var labels []string
	for _, col := range cs.Table.Columns {
		items = append(items, &ColumnBinding{base: base{typ: col.Type, sp: n.Sp}, Column: col.SQLName(), Nullable: col.Nullable, Base: inner})
		labels = append(labels, col.Name)
	}
	listOf := catalog.Type{Domain: catalog.DomainRecord, RecordOf: inner.Domain().RecordOf}
	return &SelectionBinding{
		base:     base{typ: catalog.Type{Domain: catalog.DomainList, ListOf: &listOf}, plural: inner.Plural(), sp: n.Sp},
		BaseFlow: inner, Items: items, Labels: labels,
	}, nil
}

func (b *binder) bindIdentifier(n *syntax.Identifier, scope Scope) (Binding, *herr.Error) {
	bd, ok := scope.Lookup(n.Name)
	if ok {
		return withSpan(bd, n.Sp), nil
	}
	if bd, found, err := b.bindOverrideName(n, scope); found {
		return bd, err
	}
	return nil, herr.Bind(n.Sp, "unresolved name '{}'", n.Name)
}

// bindOverrideName resolves n against catalog overrides: a calculated field
// of the nearest enclosing class scope, or a user global. The override's
// expression text is parsed and bound where the reference occurs, so it
// sees the same names the user's own expression would (spec §3:
// "user-defined globals (name -> parsed expression)").
func (b *binder) bindOverrideName(n *syntax.Identifier, scope Scope) (Binding, bool, *herr.Error) {
	if b.view == nil {
		return nil, false, nil
	}
	name := catalog.NormalizeName(n.Name)

	if cs, ok := scope.(*ClassScope); ok {
		for _, cf := range b.view.Overrides.Calculated {
			if catalog.NormalizeName(cf.Table) != cs.Class || catalog.NormalizeName(cf.Name) != name {
				continue
			}
			key := cs.Class + "." + name
			if b.overrideDepth[key] {
				return nil, true, herr.Catalog(n.Sp, "calculated field {} refers to itself", cf.Name)
			}
			expr, perr := parser.ParseExpression(cf.Expression)
			if perr != nil {
				return nil, true, herr.Catalog(n.Sp, "calculated field {} has a malformed expression: {}", cf.Name, perr.Message())
			}
			b.overrideDepth[key] = true
			bd, berr := b.bindExpr(expr, cs)
			delete(b.overrideDepth, key)
			return bd, true, berr
		}
	}

	for _, g := range b.view.Overrides.Globals {
		if catalog.NormalizeName(g.Name) != name {
			continue
		}
		key := "$" + name
		if b.overrideDepth[key] {
			return nil, true, herr.Catalog(n.Sp, "global {} refers to itself", g.Name)
		}
		expr, perr := parser.ParseExpression(g.Expression)
		if perr != nil {
			return nil, true, herr.Catalog(n.Sp, "global {} has a malformed expression: {}", g.Name, perr.Message())
		}
		b.overrideDepth[key] = true
		bd, berr := b.bindExpr(expr, b.root)
		delete(b.overrideDepth, key)
		return bd, true, berr
	}

	return nil, false, nil
}

func (b *binder) bindReference(n *syntax.Reference, scope Scope) (Binding, *herr.Error) {
	bd, ok := scope.LookupReference(n.Name)
	if !ok {
		return nil, herr.Bind(n.Sp, "unresolved reference '${}'", n.Name)
	}
	return &ReferenceBinding{base: base{typ: bd.Domain(), plural: bd.Plural(), sp: n.Sp}, Name: n.Name, Target: bd}, nil
}

func (b *binder) bindComplement(n *syntax.Complement, scope Scope) (Binding, *herr.Error) {
	ps, ok := scope.(*ProjectionScope)
	if !ok {
		bd, found := scope.Lookup("^")
		if found {
			return withSpan(bd, n.Sp), nil
		}
		return nil, herr.Bind(n.Sp, "'^' is only valid inside a projection kernel or selection")
	}
	return &ComplementBinding{base: base{typ: catalog.Type{Domain: catalog.DomainRecord, RecordOf: ps.Projection.BaseFlow.Domain().RecordOf}, plural: true, sp: n.Sp}, Projection: ps.Projection}, nil
}

func (b *binder) bindComposition(n *syntax.Composition, scope Scope) (Binding, *herr.Error) {
	left, err := b.bindExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	inner, err := b.classScopeFor(scope, left)
	if err != nil {
		return nil, err
	}
	right, err := b.bindExpr(n.Right, inner)
	if err != nil {
		return nil, err
	}
	return &CompositionBinding{
		base: base{typ: right.Domain(), plural: left.Plural() || right.Plural(), sp: n.Sp},
		Left: left, Right: right,
	}, nil
}

// requireSingular rejects bd if it is plural and not itself a nested
// selection (spec §4.3 testable property 5: "No non-aggregate singular
// position contains a binding flagged plural"). A SelectionBinding is
// exempt because it is a list-valued nested segment by construction (spec
// §8 scenario f), not a plain plural value leaking into a singular slot.
func requireSingular(context string, bd Binding) *herr.Error {
	if !bd.Plural() {
		return nil
	}
	if _, ok := bd.(*SelectionBinding); ok {
		return nil
	}
	return herr.Plurality(bd.Span(), "plural value used directly in a singular context ({}); wrap it in an aggregate or a nested selection", context)
}

func (b *binder) bindSieve(n *syntax.Sieve, scope Scope) (Binding, *herr.Error) {
	baseFlow, err := b.bindExpr(n.Base, scope)
	if err != nil {
		return nil, err
	}

	// A sieve written after a selection (`/department{...}?cond`, spec §8
	// scenario e) filters the selection's rows: rebase the selection onto
	// the filtered flow rather than filtering a list value.
	if sel, ok := baseFlow.(*SelectionBinding); ok {
		sieved, serr := b.sieveOver(n, scope, sel.BaseFlow)
		if serr != nil {
			return nil, serr
		}
		return &SelectionBinding{
			base:     base{typ: sel.Domain(), plural: sel.Plural(), sp: n.Sp},
			BaseFlow: sieved, Items: sel.Items, Labels: sel.Labels,
		}, nil
	}

	return b.sieveOver(n, scope, baseFlow)
}

func (b *binder) sieveOver(n *syntax.Sieve, scope Scope, baseFlow Binding) (Binding, *herr.Error) {
	inner, err := b.classScopeFor(scope, baseFlow)
	if err != nil {
		return nil, err
	}
	pred, err := b.bindExpr(n.Predicate, inner)
	if err != nil {
		return nil, err
	}
	if serr := requireSingular("sieve predicate", pred); serr != nil {
		return nil, serr
	}
	if pred.Domain().Domain != catalog.DomainBoolean && pred.Domain().Domain != catalog.DomainUntyped {
		return nil, herr.Type(pred.Span(), "sieve predicate must be boolean, found {}", pred.Domain().Domain.String())
	}
	return &SieveBinding{
		base:      base{typ: baseFlow.Domain(), plural: baseFlow.Plural(), sp: n.Sp},
		BaseFlow:  baseFlow,
		Predicate: pred,
	}, nil
}

func (b *binder) bindProjection(n *syntax.Projection, scope Scope) (Binding, *herr.Error) {
	baseFlow, err := b.bindExpr(n.Base, scope)
	if err != nil {
		return nil, err
	}
	inner, err := b.classScopeFor(scope, baseFlow)
	if err != nil {
		return nil, err
	}
	// `base^{a, b}` groups by a composite kernel; each element is exposed
	// under its own name inside the projection's scope.
	kernelExprs := []syntax.Expression{n.Kernel}
	if list, ok := n.Kernel.(*syntax.ListLiteral); ok {
		kernelExprs = list.Items
	}
	var kernel []Binding
	var labels []string
	for _, ke := range kernelExprs {
		kb, kerr := b.bindExpr(ke, inner)
		if kerr != nil {
			return nil, kerr
		}
		if serr := requireSingular("projection kernel", kb); serr != nil {
			return nil, serr
		}
		kernel = append(kernel, kb)
		labels = append(labels, labelFor(ke, kb))
	}
	proj := &ProjectionBinding{
		base:         base{typ: baseFlow.Domain(), plural: true, sp: n.Sp},
		BaseFlow:     baseFlow,
		Kernel:       kernel,
		KernelLabels: labels,
	}
	return proj, nil
}

func (b *binder) bindSelection(n *syntax.Selection, scope Scope) (Binding, *herr.Error) {
	baseFlow, err := b.bindExpr(n.Base, scope)
	if err != nil {
		return nil, err
	}
	inner, err := b.classScopeFor(scope, baseFlow)
	if err != nil {
		return nil, err
	}
	if proj, ok := baseFlow.(*ProjectionBinding); ok {
		inner2 := NewProjectionScope(scope, proj)
		// Column/attribute references inside a projection's selection
		// resolve through the kernel/complement scope, not the raw base
		// class, per spec §4.3's projection-scope rule: a kernel element
		// is exposed singular (one value per group), even though the
		// underlying attribute was plural-free to begin with.
		for i, k := range proj.Kernel {
			if i < len(proj.KernelLabels) && proj.KernelLabels[i] != "" {
				inner2.KernelName[catalog.NormalizeName(proj.KernelLabels[i])] = &KernelRefBinding{
					base:       base{typ: k.Domain(), plural: false, sp: k.Span()},
					Projection: proj,
					Index:      i,
				}
			}
		}
		items, labels, ierr := b.bindItems(n.Items, inner2)
		if ierr != nil {
			return nil, ierr
		}
		return &SelectionBinding{
			base:     base{typ: catalog.Type{Domain: catalog.DomainList, ListOf: &catalog.Type{Domain: catalog.DomainRecord, RecordOf: baseFlow.Domain().RecordOf}}, plural: baseFlow.Plural(), sp: n.Sp},
			BaseFlow: baseFlow, Items: items, Labels: labels,
		}, nil
	}
	items, labels, err := b.bindItems(n.Items, inner)
	if err != nil {
		return nil, err
	}
	listOf := catalog.Type{Domain: catalog.DomainRecord, RecordOf: baseFlow.Domain().RecordOf}
	return &SelectionBinding{
		base:     base{typ: catalog.Type{Domain: catalog.DomainList, ListOf: &listOf}, plural: baseFlow.Plural(), sp: n.Sp},
		BaseFlow: baseFlow, Items: items, Labels: labels,
	}, nil
}

// bindItems binds each selection item, expanding Wildcards into every
// column of the enclosing class scope and threading Assign items through
// scope.Define so later items (and the scope's owner) can see them.
func (b *binder) bindItems(exprs []syntax.Expression, scope Scope) ([]Binding, []string, *herr.Error) {
	var items []Binding
	var labels []string
	for _, e := range exprs {
		if w, ok := e.(*syntax.Wildcard); ok {
			cs, ok := scope.(*ClassScope)
			if !ok {
				return nil, nil, herr.Bind(w.Sp, "'*' requires an enclosing class scope")
			}
			cols := cs.Table.Columns
			if w.Index != nil {
				// `*N` selects the Nth attribute, 1-based.
				idx, convErr := strconv.Atoi(*w.Index)
				if convErr != nil || idx < 1 || idx > len(cols) {
					return nil, nil, herr.Bind(w.Sp, "'*{}' is out of range for class {}", *w.Index, cs.Class)
				}
				cols = cols[idx-1 : idx]
			}
			for _, col := range cols {
				items = append(items, &ColumnBinding{base: base{typ: col.Type, sp: w.Sp}, Column: col.SQLName(), Nullable: col.Nullable, Base: cs.Base})
				labels = append(labels, col.Name)
			}
			continue
		}
		bd, err := b.bindExpr(e, scope)
		if err != nil {
			return nil, nil, err
		}
		if serr := requireSingular("selection item", bd); serr != nil {
			return nil, nil, serr
		}
		items = append(items, bd)
		labels = append(labels, labelFor(e, bd))
	}
	return items, labels, nil
}

func labelFor(e syntax.Expression, bd Binding) string {
	switch n := e.(type) {
	case *syntax.Identifier:
		return n.Name
	case *syntax.Assign:
		return n.Name
	case *syntax.Composition:
		return labelFor(n.Right, bd)
	case *syntax.Sort:
		return labelFor(n.Base, bd)
	case *syntax.Group:
		return labelFor(n.Inner, bd)
	case *syntax.Segment:
		return labelFor(n.Inner, bd)
	case *syntax.Selection:
		return labelFor(n.Base, bd)
	case *syntax.InfixFuncCall:
		// An explicit `:as` label wins over anything derived (spec §4.6:
		// "label sources come from explicit as, selector identifiers, or
		// synthesized names").
		if catalog.NormalizeName(n.Name) == "as" && len(n.Args) == 1 {
			switch lbl := n.Args[0].(type) {
			case *syntax.StringLiteral:
				return lbl.Value
			case *syntax.Identifier:
				return lbl.Name
			}
		}
		return labelFor(n.Base, bd)
	}
	switch cb := bd.(type) {
	case *ColumnBinding:
		return cb.Column
	case *ClassBinding:
		return cb.Class
	}
	return ""
}

func (b *binder) bindListLiteral(n *syntax.ListLiteral, scope Scope) (Binding, *herr.Error) {
	var items []Binding
	var elem catalog.Type
	for i, e := range n.Items {
		bd, err := b.bindExpr(e, scope)
		if err != nil {
			return nil, err
		}
		items = append(items, bd)
		if i == 0 {
			elem = bd.Domain()
		}
	}
	return &ListBinding{base: base{typ: catalog.Type{Domain: catalog.DomainList, ListOf: &elem}, sp: n.Sp}, Items: items}, nil
}

func (b *binder) bindSort(n *syntax.Sort, scope Scope) (Binding, *herr.Error) {
	key, err := b.bindExpr(n.Base, scope)
	if err != nil {
		return nil, err
	}
	if serr := requireSingular("sort key", key); serr != nil {
		return nil, serr
	}
	return &SortBinding{base: base{typ: key.Domain(), plural: key.Plural(), sp: n.Sp}, Key: key, Desc: n.Dir == syntax.SortDesc}, nil
}

func (b *binder) bindCall(n *syntax.Call, scope Scope) (Binding, *herr.Error) {
	return b.resolveCall(n.Name, n.Args, n.Sp, scope)
}

func (b *binder) bindInfixFuncCall(n *syntax.InfixFuncCall, scope Scope) (Binding, *herr.Error) {
	args := append([]syntax.Expression{n.Base}, n.Args...)
	return b.resolveCall(n.Name, args, n.Sp, scope)
}

func (b *binder) resolveCall(name string, argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	n := catalog.NormalizeName(name)
	switch n {
	case "define":
		return b.bindDefineCall(argExprs, sp, scope)
	case "where":
		return b.bindWhereCall(argExprs, sp, scope)
	case "as":
		return b.bindAsCall(argExprs, sp, scope)
	case "limit":
		return b.bindLimitCall(argExprs, sp, scope)
	case "sort":
		return b.bindSortCall(argExprs, sp, scope)
	}
	var args []Binding
	for _, ae := range argExprs {
		bd, err := b.bindExpr(ae, scope)
		if err != nil {
			return nil, err
		}
		args = append(args, bd)
	}

	if aggregateNames[n] {
		if len(args) != 1 {
			return nil, herr.Bind(sp, "aggregate '{}' takes exactly one argument", n)
		}
		arg := args[0]
		if !arg.Plural() {
			return nil, herr.Plurality(sp, "aggregate '{}' requires a plural argument", n)
		}
		var resultDomain catalog.Type
		switch n {
		case "count", "exists":
			resultDomain = catalog.Simple(catalog.DomainInteger)
			if n == "exists" {
				resultDomain = catalog.Simple(catalog.DomainBoolean)
			}
		case "every":
			resultDomain = catalog.Simple(catalog.DomainBoolean)
		case "sum", "avg":
			d := arg.Domain().Domain
			if !catalog.IsNumeric(d) {
				d = catalog.DomainDecimal
			}
			resultDomain = catalog.Simple(d)
		default: // min, max
			resultDomain = arg.Domain()
		}
		return &CallBinding{
			base:      base{typ: resultDomain, plural: false, sp: sp},
			Name:      n, Args: args, Aggregate: true,
		}, nil
	}

	// Non-aggregate (scalar) function call: every argument must already be
	// singular relative to the enclosing flow (spec §4.3 plurality rule).
	for _, a := range args {
		if a.Plural() {
			return nil, herr.Plurality(sp, "function '{}' cannot take a plural argument directly; project or aggregate it first", n)
		}
	}
	var resultDomain catalog.Type
	if len(args) > 0 {
		resultDomain = args[0].Domain()
	} else {
		resultDomain = catalog.Simple(catalog.DomainUntyped)
	}
	return &CallBinding{base: base{typ: resultDomain, sp: sp}, Name: n, Args: args, Aggregate: false}, nil
}

// rebaseFlow applies wrap to base's flow. When base is a selection, the
// wrapper goes under it (onto the rows the selection ranges over) and the
// selection is rebuilt on top, so `/school{name}:limit(3)` limits rows, not
// a list value.
func rebaseFlow(sp herr.Span, base Binding, wrap func(Binding) Binding) Binding {
	if sel, ok := base.(*SelectionBinding); ok {
		return &SelectionBinding{
			base:     newBase(sel.Domain(), sel.Plural(), sp),
			BaseFlow: wrap(sel.BaseFlow), Items: sel.Items, Labels: sel.Labels,
		}
	}
	return wrap(base)
}

func newBase(t catalog.Type, plural bool, sp herr.Span) base {
	return base{typ: t, plural: plural, sp: sp}
}

// bindDefineCall implements `flow:define(x:=expr, ...)` (spec §4.3): each
// assignment becomes a calculated attribute visible in any scope later
// opened onto the result.
func (b *binder) bindDefineCall(argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	if len(argExprs) < 2 {
		return nil, herr.Bind(sp, "define takes a flow and at least one assignment")
	}
	baseB, err := b.bindExpr(argExprs[0], scope)
	if err != nil {
		return nil, err
	}
	cs, err := b.classScopeFor(scope, baseB)
	if err != nil {
		return nil, err
	}
	var defs []*AssignBinding
	for _, ae := range argExprs[1:] {
		if _, ok := ae.(*syntax.Assign); !ok {
			return nil, herr.Bind(ae.Span(), "define arguments must be assignments (name := expression)")
		}
		bd, aerr := b.bindExpr(ae, cs)
		if aerr != nil {
			return nil, aerr
		}
		defs = append(defs, bd.(*AssignBinding))
	}
	return &DefineBinding{base: newBase(baseB.Domain(), baseB.Plural(), sp), Base: baseB, Defs: defs}, nil
}

// bindWhereCall implements `expr:where(x:=...)`: the assignments are bound
// first so the head expression can refer to them by name or as $name.
func (b *binder) bindWhereCall(argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	if len(argExprs) < 2 {
		return nil, herr.Bind(sp, "where takes an expression and at least one assignment")
	}
	for _, ae := range argExprs[1:] {
		if _, ok := ae.(*syntax.Assign); !ok {
			return nil, herr.Bind(ae.Span(), "where arguments must be assignments (name := expression)")
		}
		if _, aerr := b.bindExpr(ae, scope); aerr != nil {
			return nil, aerr
		}
	}
	return b.bindExpr(argExprs[0], scope)
}

// bindAsCall implements `expr:as('label')`: the binding is the base's own;
// the label is consumed by labelFor.
func (b *binder) bindAsCall(argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	if len(argExprs) != 2 {
		return nil, herr.Bind(sp, "as takes an expression and a label")
	}
	switch argExprs[1].(type) {
	case *syntax.StringLiteral, *syntax.Identifier:
	default:
		return nil, herr.Bind(argExprs[1].Span(), "as label must be a quoted string or a name")
	}
	return b.bindExpr(argExprs[0], scope)
}

// bindLimitCall implements `flow:limit(n[, offset])` (spec §4.4).
func (b *binder) bindLimitCall(argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	if len(argExprs) < 2 || len(argExprs) > 3 {
		return nil, herr.Bind(sp, "limit takes a flow and one or two integer literals")
	}
	baseB, err := b.bindExpr(argExprs[0], scope)
	if err != nil {
		return nil, err
	}
	ints := make([]*int, 0, 2)
	for _, ae := range argExprs[1:] {
		lit, ok := ae.(*syntax.IntLiteral)
		if !ok {
			return nil, herr.Bind(ae.Span(), "limit bounds must be integer literals")
		}
		v, convErr := strconv.Atoi(lit.Text)
		if convErr != nil || v < 0 {
			return nil, herr.Bind(ae.Span(), "limit bound out of range: {}", lit.Text)
		}
		ints = append(ints, &v)
	}
	limit := ints[0]
	var offset *int
	if len(ints) > 1 {
		offset = ints[1]
	}
	return rebaseFlow(sp, baseB, func(fb Binding) Binding {
		return &LimitBinding{base: newBase(fb.Domain(), fb.Plural(), sp), Base: fb, Limit: limit, Offset: offset}
	}), nil
}

// bindSortCall implements `flow:sort(key[-|+], ...)`.
func (b *binder) bindSortCall(argExprs []syntax.Expression, sp herr.Span, scope Scope) (Binding, *herr.Error) {
	if len(argExprs) < 2 {
		return nil, herr.Bind(sp, "sort takes a flow and at least one key")
	}
	baseB, err := b.bindExpr(argExprs[0], scope)
	if err != nil {
		return nil, err
	}
	bindKeys := func(flowB Binding) ([]Binding, *herr.Error) {
		cs, cerr := b.classScopeFor(scope, flowB)
		if cerr != nil {
			return nil, cerr
		}
		var keys []Binding
		for _, ke := range argExprs[1:] {
			kb, kerr := b.bindExpr(ke, cs)
			if kerr != nil {
				return nil, kerr
			}
			if serr := requireSingular("sort key", kb); serr != nil {
				return nil, serr
			}
			keys = append(keys, kb)
		}
		return keys, nil
	}
	if sel, ok := baseB.(*SelectionBinding); ok {
		keys, kerr := bindKeys(sel.BaseFlow)
		if kerr != nil {
			return nil, kerr
		}
		ordered := &OrderBinding{base: newBase(sel.BaseFlow.Domain(), sel.BaseFlow.Plural(), sp), Base: sel.BaseFlow, Keys: keys}
		return &SelectionBinding{base: newBase(sel.Domain(), sel.Plural(), sp), BaseFlow: ordered, Items: sel.Items, Labels: sel.Labels}, nil
	}
	keys, kerr := bindKeys(baseB)
	if kerr != nil {
		return nil, kerr
	}
	return &OrderBinding{base: newBase(baseB.Domain(), baseB.Plural(), sp), Base: baseB, Keys: keys}, nil
}

func (b *binder) bindBinOp(n *syntax.BinOp, scope Scope) (Binding, *herr.Error) {
	left, err := b.bindExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := b.bindExpr(n.Right, scope)
	if err != nil {
		return nil, err
	}
	if perr := requireSingular("left operand of '"+n.Op+"'", left); perr != nil {
		return nil, perr
	}
	if perr := requireSingular("right operand of '"+n.Op+"'", right); perr != nil {
		return nil, perr
	}
	// `x = {a, b, c}` / `x != {...}` is a membership test: each element
	// coerces toward x's domain and the whole comparison compiles to IN.
	if lb, ok := right.(*ListBinding); ok && (n.Op == "=" || n.Op == "!=") {
		items := make([]Binding, len(lb.Items))
		for i, it := range lb.Items {
			coerced, cerr := coerceOperand(it, left.Domain())
			if cerr != nil {
				return nil, cerr
			}
			items[i] = coerced
		}
		name := "in"
		if n.Op == "!=" {
			name = "!in"
		}
		elem := left.Domain()
		list := &ListBinding{base: base{typ: catalog.Type{Domain: catalog.DomainList, ListOf: &elem}, sp: lb.Span()}, Items: items}
		return &CallBinding{
			base: base{typ: catalog.Simple(catalog.DomainBoolean), sp: n.Sp},
			Name: name, Args: []Binding{left, list},
		}, nil
	}

	result, coercedTo, serr := ResolveBinary(n.Sp, n.Op, left.Domain(), right.Domain())
	if serr != nil {
		return nil, serr
	}
	// Untyped quoted literals are coerced structurally toward the resolved
	// common domain: the content is parsed under the target's literal
	// grammar and retyped, or rejected (spec §4.3).
	if left, serr = coerceOperand(left, coercedTo); serr != nil {
		return nil, serr
	}
	if right, serr = coerceOperand(right, coercedTo); serr != nil {
		return nil, serr
	}
	return &CallBinding{
		base:      base{typ: result, plural: left.Plural() || right.Plural(), sp: n.Sp},
		Name:      n.Op,
		Args:      []Binding{left, right},
		Aggregate: false,
	}, nil
}

func coerceOperand(bd Binding, target catalog.Type) (Binding, *herr.Error) {
	lit, ok := bd.(*LiteralBinding)
	if !ok || lit.Domain().Domain != catalog.DomainUntyped || target.Domain == catalog.DomainUntyped {
		return bd, nil
	}
	if err := CoerceLiteral(lit.Span(), lit.Text, target.Domain); err != nil {
		return nil, err
	}
	return &LiteralBinding{base: base{typ: target, sp: lit.Span()}, Text: lit.Text}, nil
}

func (b *binder) bindUnaryOp(n *syntax.UnaryOp, scope Scope) (Binding, *herr.Error) {
	operand, err := b.bindExpr(n.Expr, scope)
	if err != nil {
		return nil, err
	}
	switch n.Op {
	case "!":
		if operand.Domain().Domain != catalog.DomainBoolean && operand.Domain().Domain != catalog.DomainUntyped {
			return nil, herr.Type(n.Sp, "'!' requires a boolean operand, found {}", operand.Domain().Domain.String())
		}
		return &CallBinding{base: base{typ: catalog.Simple(catalog.DomainBoolean), plural: operand.Plural(), sp: n.Sp}, Name: "!", Args: []Binding{operand}}, nil
	case "-":
		if !catalog.IsNumeric(operand.Domain().Domain) {
			return nil, herr.Type(n.Sp, "prefix '-' requires a numeric operand, found {}", operand.Domain().Domain.String())
		}
		return &CallBinding{base: base{typ: operand.Domain(), plural: operand.Plural(), sp: n.Sp}, Name: "neg", Args: []Binding{operand}}, nil
	}
	return nil, herr.Internal("unknown unary operator {}", n.Op)
}

// bindLink binds the `->` linking operator: the right side escapes the
// current scope entirely and resolves from the root, reaching a class no
// arrow path leads to (spec §6 item 11; §7's LinkError names the failure).
func (b *binder) bindLink(n *syntax.Link, scope Scope) (Binding, *herr.Error) {
	left, err := b.bindExpr(n.Left, scope)
	if err != nil {
		return nil, err
	}
	right, err := b.bindExpr(n.Right, b.root)
	if err != nil {
		if err.Kind == herr.KindBind {
			return nil, herr.Link(n.Sp, "linked class cannot be reached from the root: {}", err.Message()).InPhase(herr.PhaseBind)
		}
		return nil, err
	}
	if right.Domain().Domain != catalog.DomainRecord {
		return nil, herr.Link(n.Sp, "'->' must link to a class, found domain {}", right.Domain().Domain.String()).InPhase(herr.PhaseBind)
	}
	return &LinkBinding{base: base{typ: right.Domain(), plural: right.Plural(), sp: n.Sp}, Left: left, Right: right}, nil
}

func (b *binder) bindAssign(n *syntax.Assign, scope Scope) (Binding, *herr.Error) {
	expr, err := b.bindExpr(n.Expr, scope)
	if err != nil {
		return nil, err
	}
	if cs, ok := scope.(*ClassScope); ok {
		cs.Define(n.Name, expr)
		cs.CaptureReference(n.Name, expr)
	}
	return &AssignBinding{base: base{typ: expr.Domain(), plural: expr.Plural(), sp: n.Sp}, Name: n.Name, Expr: expr}, nil
}

// withSpan rewraps an already-built Binding (typically returned verbatim
// from a Scope lookup) with the span of the identifier that referenced it,
// so error reporting points at the use site rather than the declaration.
func withSpan(bd Binding, sp herr.Span) Binding {
	switch v := bd.(type) {
	case *ClassBinding:
		c := *v
		c.sp = sp
		return &c
	case *ColumnBinding:
		c := *v
		c.sp = sp
		return &c
	case *AssignBinding:
		c := *v
		c.sp = sp
		return &c
	default:
		return bd
	}
}
