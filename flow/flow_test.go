package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/bind"
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

func encodeSource(t *testing.T, src string) (*Segment, *bind.RootScope) {
	t.Helper()
	q, perr := parser.Parse(src)
	require.Nil(t, perr, "parse error: %v", perr)
	v := schoolView()
	m, merr := catalog.BuildModel(v)
	require.Nil(t, merr, "model error: %v", merr)
	root := bind.NewRootScope(m, v)
	bd, berr := bind.Bind(q, root)
	require.Nil(t, berr, "bind error: %v", berr)
	seg, eerr := Encode(bd)
	require.Nil(t, eerr, "encode error: %v", eerr)
	return seg, root
}

// unordered strips the implicit primary-key/kernel tie-break OrderedFlow a
// segment flow always ends in.
func unordered(t *testing.T, f Flow) Flow {
	t.Helper()
	of, ok := f.(*OrderedFlow)
	require.True(t, ok, "expected the segment flow to carry the ordering tie-break, got %T", f)
	return of.BaseFlow
}

func TestEncodeSimpleSelection(t *testing.T) {
	seg, _ := encodeSource(t, "/department{code, name}")
	cf, ok := unordered(t, seg.Flow).(*ClassFlow)
	require.True(t, ok, "expected ClassFlow, got %T", seg.Flow)
	assert.Equal(t, "department", cf.Class)
	assert.Nil(t, cf.Arrow)
	require.Len(t, seg.Codes, 2)
	for _, c := range seg.Codes {
		cu, ok := c.(*ColumnUnit)
		require.True(t, ok, "expected ColumnUnit, got %T", c)
		assert.Same(t, cf, cu.On)
	}
}

func TestEncodeLinkTraversal(t *testing.T) {
	seg, _ := encodeSource(t, "/program{code, department.name}")
	require.Len(t, seg.Codes, 2)
	nameUnit := seg.Codes[1].(*ColumnUnit)
	deptFlow, ok := nameUnit.On.(*ClassFlow)
	require.True(t, ok)
	assert.Equal(t, "department", deptFlow.Class)
	require.NotNil(t, deptFlow.Arrow)
	assert.True(t, deptFlow.Arrow.Total, "department_code is NOT NULL, so the link is total")
}

func TestEncodeCountAggregate(t *testing.T) {
	seg, _ := encodeSource(t, "/department{code, count(program)}")
	require.Len(t, seg.Codes, 2)
	agg, ok := seg.Codes[1].(*AggregateUnit)
	require.True(t, ok, "expected AggregateUnit, got %T", seg.Codes[1])
	assert.Equal(t, "count", agg.Name)
	assert.Nil(t, agg.Operand)
	baseFlow, ok := agg.BaseFlow.(*ClassFlow)
	require.True(t, ok)
	assert.Equal(t, "department", baseFlow.Class)
	pluralFlow, ok := agg.PluralFlow.(*ClassFlow)
	require.True(t, ok)
	assert.Equal(t, "program", pluralFlow.Class)
	require.NotNil(t, pluralFlow.Arrow)
	assert.True(t, pluralFlow.Arrow.Reverse)
}

func TestEncodeSieveFilter(t *testing.T) {
	seg, _ := encodeSource(t, "/department?code='eng'{code}")
	ff, ok := unordered(t, seg.Flow).(*FilteredFlow)
	require.True(t, ok, "expected FilteredFlow, got %T", seg.Flow)
	formula, ok := ff.Predicate.(*FormulaCode)
	require.True(t, ok)
	assert.Equal(t, "=", formula.Signature)
}

func TestEncodeProjectionKernel(t *testing.T) {
	seg, _ := encodeSource(t, "/program^department{department.name, count(^)}")
	qf, ok := unordered(t, seg.Flow).(*QuotientFlow)
	require.True(t, ok, "expected QuotientFlow, got %T", seg.Flow)
	// A class-valued kernel expands to the target's primary key.
	require.Len(t, qf.Kernel, 1)
	kc, ok := qf.Kernel[0].(*ColumnUnit)
	require.True(t, ok, "expected the kernel to expand to a ColumnUnit, got %T", qf.Kernel[0])
	assert.Equal(t, "code", kc.Column)
	require.Len(t, seg.Codes, 2)
	agg, ok := seg.Codes[1].(*AggregateUnit)
	require.True(t, ok, "expected AggregateUnit, got %T", seg.Codes[1])
	cf, ok := agg.PluralFlow.(*ComplementFlow)
	require.True(t, ok, "expected ComplementFlow, got %T", agg.PluralFlow)
	assert.Same(t, qf, cf.Quotient)
	assert.Same(t, qf, agg.BaseFlow)
}

func TestEncodeInternsSharedLinkTraversals(t *testing.T) {
	seg, _ := encodeSource(t, "/program{code, department.name}?department.name='eng'")
	ff, ok := unordered(t, seg.Flow).(*FilteredFlow)
	require.True(t, ok, "expected FilteredFlow, got %T", seg.Flow)

	formula := ff.Predicate.(*FormulaCode)
	predUnit := formula.Operands[0].(*ColumnUnit)
	itemUnit := seg.Codes[1].(*ColumnUnit)
	assert.Same(t, predUnit.On, itemUnit.On,
		"the same link reached from the predicate and a selection item must share one flow node")
}

func TestEncodeLimitBecomesOrderedFlow(t *testing.T) {
	seg, _ := encodeSource(t, "/department:limit(3){code}")
	of := seg.Flow.(*OrderedFlow) // the tie-break level
	inner, ok := of.BaseFlow.(*OrderedFlow)
	require.True(t, ok, "expected the limit's own OrderedFlow, got %T", of.BaseFlow)
	require.NotNil(t, inner.Limit)
	assert.Equal(t, 3, *inner.Limit)
}
