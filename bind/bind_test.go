package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/parser"
)

func schoolView() *catalog.View {
	return &catalog.View{
		Engine: "sqlite",
		Tables: []catalog.Table{
			{
				Name: "department",
				Columns: []catalog.Column{
					{Name: "code", Type: catalog.Simple(catalog.DomainString)},
					{Name: "name", Type: catalog.Simple(catalog.DomainString), Nullable: true},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"code"}, Primary: true}},
			},
			{
				Name: "program",
				Columns: []catalog.Column{
					{Name: "school", Type: catalog.Simple(catalog.DomainString)},
					{Name: "code", Type: catalog.Simple(catalog.DomainString)},
					{Name: "department_code", Type: catalog.Simple(catalog.DomainString)},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"school", "code"}, Primary: true}},
				ForeignKeys: []catalog.ForeignKey{
					{Columns: []string{"department_code"}, Target: "department", TargetColumns: []string{"code"}},
				},
			},
		},
	}
}

func rootScope(t *testing.T) *RootScope {
	t.Helper()
	v := schoolView()
	m, merr := catalog.BuildModel(v)
	require.Nil(t, merr, "model error: %v", merr)
	return NewRootScope(m, v)
}

func bindSource(t *testing.T, src string) (Binding, *RootScope) {
	t.Helper()
	q, perr := parser.Parse(src)
	require.Nil(t, perr, "parse error: %v", perr)
	root := rootScope(t)
	bd, berr := Bind(q, root)
	require.Nil(t, berr, "bind error: %v", berr)
	return bd, root
}

func TestBindSimpleSelectionColumns(t *testing.T) {
	bd, _ := bindSource(t, "/department{code, name}")
	sel, ok := bd.(*SelectionBinding)
	require.True(t, ok)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, []string{"code", "name"}, sel.Labels)
	col, ok := sel.Items[0].(*ColumnBinding)
	require.True(t, ok)
	assert.Equal(t, "code", col.Column)
	assert.Equal(t, catalog.DomainString, col.Domain().Domain)
}

func TestBindCompositionThroughSingularArrow(t *testing.T) {
	bd, _ := bindSource(t, "/program{code, department.name}")
	sel := bd.(*SelectionBinding)
	require.Len(t, sel.Items, 2)
	comp, ok := sel.Items[1].(*CompositionBinding)
	require.True(t, ok)
	col, ok := comp.Right.(*ColumnBinding)
	require.True(t, ok)
	assert.Equal(t, "name", col.Column)
	assert.Equal(t, "name", sel.Labels[1])
}

func TestBindAggregateOverPluralReverseArrow(t *testing.T) {
	bd, _ := bindSource(t, "/department{code, count(program)}")
	sel := bd.(*SelectionBinding)
	call, ok := sel.Items[1].(*CallBinding)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
	assert.True(t, call.Aggregate)
	assert.Equal(t, catalog.DomainInteger, call.Domain().Domain)
}

func TestBindAggregateRejectsSingularArgument(t *testing.T) {
	q, perr := parser.Parse("/program{department:count()}")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "PluralityError", string(berr.Kind))
}

func TestBindRejectsPluralSelectionItem(t *testing.T) {
	q, perr := parser.Parse("/department{code, program.name}")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "PluralityError", string(berr.Kind))
}

func TestBindRejectsPluralSievePredicate(t *testing.T) {
	q, perr := parser.Parse("/department?program.code='cs101'")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "PluralityError", string(berr.Kind))
}

func TestBindSievePredicateMustBeBoolean(t *testing.T) {
	q, perr := parser.Parse("/department?code")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "TypeError", string(berr.Kind))
}

func TestBindSieveWithComparisonPredicate(t *testing.T) {
	bd, _ := bindSource(t, "/department?code='art'{code}")
	sel := bd.(*SelectionBinding)
	sieve, ok := sel.BaseFlow.(*SieveBinding)
	require.True(t, ok)
	cmp, ok := sieve.Predicate.(*CallBinding)
	require.True(t, ok)
	assert.Equal(t, "=", cmp.Name)
}

func TestBindUnresolvedNameFails(t *testing.T) {
	q, perr := parser.Parse("/department{bogus}")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "BindError", string(berr.Kind))
}

func TestBindDefineIntroducesCalculatedAttribute(t *testing.T) {
	bd, _ := bindSource(t, "/program:define(dept:=department.name){code, dept}")
	sel := bd.(*SelectionBinding)
	require.Len(t, sel.Items, 2)
	assert.Equal(t, "dept", sel.Labels[1])
	_, isDefine := sel.BaseFlow.(*DefineBinding)
	assert.True(t, isDefine, "the selection ranges over the define wrapper, got %T", sel.BaseFlow)
}

func TestBindLimitRebasesUnderSelection(t *testing.T) {
	bd, _ := bindSource(t, "/department{code}:limit(5)")
	sel, ok := bd.(*SelectionBinding)
	require.True(t, ok, "limit after a selection must stay a selection, got %T", bd)
	lim, ok := sel.BaseFlow.(*LimitBinding)
	require.True(t, ok, "expected LimitBinding under the selection, got %T", sel.BaseFlow)
	require.NotNil(t, lim.Limit)
	assert.Equal(t, 5, *lim.Limit)
}

func TestBindLimitRejectsNonLiteralBound(t *testing.T) {
	q, perr := parser.Parse("/department:limit(code)")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "BindError", string(berr.Kind))
}

func TestBindRejectsIncomparableOperands(t *testing.T) {
	q, perr := parser.Parse("/program?school='a'&code=1")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr, "comparing a string column to an integer literal must not resolve")
	assert.Equal(t, "TypeError", string(berr.Kind))
}

func TestBindLinkReportsLinkError(t *testing.T) {
	q, perr := parser.Parse("/program{code->nosuchclass}")
	require.Nil(t, perr)
	root := rootScope(t)
	_, berr := Bind(q, root)
	require.NotNil(t, berr)
	assert.Equal(t, "LinkError", string(berr.Kind))
}

func TestBindProjectionAndComplement(t *testing.T) {
	bd, _ := bindSource(t, "/program^department{department, count(^)}")
	sel := bd.(*SelectionBinding)
	proj, ok := sel.BaseFlow.(*ProjectionBinding)
	require.True(t, ok)
	require.Len(t, proj.Kernel, 1)

	call, ok := sel.Items[1].(*CallBinding)
	require.True(t, ok)
	require.Len(t, call.Args, 1)
	_, ok = call.Args[0].(*ComplementBinding)
	require.True(t, ok)
}
