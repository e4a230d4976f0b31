package term

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/bind"
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/flow"
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
					{Name: "credits", Type: catalog.Simple(catalog.DomainInteger), Nullable: true},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"school", "code"}, Primary: true}},
				ForeignKeys: []catalog.ForeignKey{
					{Columns: []string{"department_code"}, Target: "department", TargetColumns: []string{"code"}},
				},
			},
		},
	}
}

func compileSource(t *testing.T, src string) (*SegmentTerm, *Routes) {
	t.Helper()
	q, perr := parser.Parse(src)
	require.Nil(t, perr, "parse error: %v", perr)
	v := schoolView()
	m, merr := catalog.BuildModel(v)
	require.Nil(t, merr, "model error: %v", merr)
	root := bind.NewRootScope(m, v)
	bd, berr := bind.Bind(q, root)
	require.Nil(t, berr, "bind error: %v", berr)
	seg, eerr := flow.Encode(bd)
	require.Nil(t, eerr, "encode error: %v", eerr)
	st, routes, terr := Compile(seg)
	require.Nil(t, terr, "compile error: %v", terr)
	return st, routes
}

// unwrapOrder strips the OrderTerm every segment child ends in (the
// primary-key/kernel ordering tie-break).
func unwrapOrder(t *testing.T, tm Term) Term {
	t.Helper()
	ot, ok := tm.(*OrderTerm)
	require.True(t, ok, "expected the segment child to be the tie-break OrderTerm, got %T", tm)
	return ot.Child
}

func TestCompileSimpleSelection(t *testing.T) {
	st, routes := compileSource(t, "/department{code, name}")
	tt, ok := unwrapOrder(t, st.Child).(*TableTerm)
	require.True(t, ok, "expected TableTerm, got %T", st.Child)
	assert.Equal(t, "department", tt.Class)
	assert.Equal(t, tt.Tag(), routes.Flows[unwrapOrder(t, st.Child).Space()])
}

func TestCompileLinkJoinsInner(t *testing.T) {
	st, _ := compileSource(t, "/program{code, department.name}")
	// The link join is injected while resolving the select list, after the
	// ordering tie-break term is already in place, so it sits on top.
	jt, ok := st.Child.(*JoinTerm)
	require.True(t, ok, "expected JoinTerm, got %T", st.Child)
	assert.Equal(t, JoinInner, jt.Kind, "a total link joins inner")
	require.Len(t, jt.Conditions, 1)
	left, ok := jt.Conditions[0].Left.(*flow.ColumnUnit)
	require.True(t, ok)
	assert.Equal(t, "department_code", left.Column)
	right, ok := jt.Conditions[0].Right.(*flow.ColumnUnit)
	require.True(t, ok)
	assert.Equal(t, "code", right.Column)
}

func TestCompileCountAggregateBundlesSubquery(t *testing.T) {
	st, routes := compileSource(t, "/department{code, count(program)}")
	jt, ok := st.Child.(*JoinTerm)
	require.True(t, ok, "expected JoinTerm, got %T", st.Child)
	assert.Equal(t, JoinLeft, jt.Kind)

	pt, ok := jt.Right.(*ProjectionTerm)
	require.True(t, ok, "expected ProjectionTerm, got %T", jt.Right)
	require.Len(t, pt.Aggregates, 1)
	assert.Equal(t, "count", pt.Aggregates[0].Func)

	_, isTable := pt.Child.(*TableTerm)
	assert.True(t, isTable, "the direct-hop form groups the target table with no rejoin, got %T", pt.Child)

	require.Len(t, jt.Conditions, 1)
	_, isKernelUnit := jt.Conditions[0].Right.(*flow.KernelUnit)
	assert.True(t, isKernelUnit)
	assert.Len(t, routes.AggTag, 1)
}

func TestCompileAggregatesSharingFlowPairBundle(t *testing.T) {
	st, routes := compileSource(t, "/department{code, count(program), max(program.credits)}")
	jt, ok := st.Child.(*JoinTerm)
	require.True(t, ok, "expected a single aggregate join, got %T", st.Child)
	assert.Equal(t, JoinLeft, jt.Kind)
	_, leftIsJoin := jt.Left.(*JoinTerm)
	assert.False(t, leftIsJoin, "both aggregates share one (plural_flow, base_flow) pair and must not add a second join, got %T", jt.Left)

	pt, ok := jt.Right.(*ProjectionTerm)
	require.True(t, ok, "expected ProjectionTerm, got %T", jt.Right)
	require.Len(t, pt.Aggregates, 2, "the second aggregate appends to the first one's group")
	assert.Equal(t, "count", pt.Aggregates[0].Func)
	assert.Equal(t, "max", pt.Aggregates[1].Func)

	require.Len(t, routes.AggTag, 2)
	for _, agg := range pt.Aggregates {
		assert.Equal(t, pt.Tag(), routes.AggTag[agg.Unit], "every bundled unit routes to the shared term")
	}
	assert.Len(t, routes.AggGroups, 1)
}

func TestCompileQuotientComplementAggregateInlines(t *testing.T) {
	st, routes := compileSource(t, "/program^department{department.name, count(^)}")
	pt, ok := unwrapOrder(t, st.Child).(*ProjectionTerm)
	require.True(t, ok, "expected ProjectionTerm, got %T", st.Child)
	require.Len(t, pt.Aggregates, 1)
	assert.Equal(t, "count", pt.Aggregates[0].Func)

	// Grouping by a class joins its table so the kernel can read its
	// primary key, but the complement aggregate itself must not add a
	// bundled left-join subquery on top.
	_, isJoin := pt.Child.(*JoinTerm)
	assert.True(t, isJoin, "expected the kernel link join under the projection, got %T", pt.Child)
	assert.Equal(t, pt.Tag(), routes.Flows[pt.Space()])
	assert.Len(t, routes.AggTag, 1)
	assert.Equal(t, pt.Tag(), routes.AggTag[pt.Aggregates[0].Unit])
}

func TestCompileSieveBecomesFilterTerm(t *testing.T) {
	st, _ := compileSource(t, "/department?code='eng'{code}")
	ft, ok := unwrapOrder(t, st.Child).(*FilterTerm)
	require.True(t, ok, "expected FilterTerm, got %T", st.Child)
	_, isTable := ft.Child.(*TableTerm)
	assert.True(t, isTable)
}
