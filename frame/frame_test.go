package frame

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/bind"
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/dialect"
	"github.com/htsql-go/htsql/flow"
	"github.com/htsql-go/htsql/parser"
	"github.com/htsql-go/htsql/term"
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

func assembleSource(t *testing.T, src string) (*SelectFrame, *dialect.Policy) {
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
	st, routes, terr := term.Compile(seg)
	require.Nil(t, terr, "compile error: %v", terr)
	policy, ok := dialect.Lookup(dialect.SQLite)
	require.True(t, ok)
	sf, aerr := Assemble(st, routes, policy)
	require.Nil(t, aerr, "assemble error: %v", aerr)
	return sf, policy
}

func TestAssembleSimpleSelection(t *testing.T) {
	sf, policy := assembleSource(t, "/department{code, name}")
	tf, ok := sf.From.(*TableFrame)
	require.True(t, ok, "expected TableFrame, got %T", sf.From)
	assert.Equal(t, "department", tf.Table)
	require.Len(t, sf.Columns, 2)

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "SELECT")
	assert.Contains(t, sql, "FROM \"department\"")
}

func TestAssembleLinkJoinsInner(t *testing.T) {
	sf, policy := assembleSource(t, "/program{code, department.name}")
	jf, ok := sf.From.(*JoinFrame)
	require.True(t, ok, "expected JoinFrame, got %T", sf.From)
	assert.Equal(t, JoinInner, jf.Kind)
	require.Len(t, jf.On, 1)
	assert.Contains(t, jf.On[0], "department_code")

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "JOIN")
	assert.NotContains(t, sql, "LEFT JOIN")
}

func TestAssembleCountAggregateRendersSubquery(t *testing.T) {
	sf, policy := assembleSource(t, "/department{code, count(program)}")
	jf, ok := sf.From.(*JoinFrame)
	require.True(t, ok, "expected JoinFrame, got %T", sf.From)
	assert.Equal(t, JoinLeft, jf.Kind)

	sub, ok := jf.Right.(*SubqueryFrame)
	require.True(t, ok, "expected SubqueryFrame, got %T", jf.Right)
	require.Len(t, sub.Select.Columns, 2, "grouping column plus the count")
	assert.Contains(t, sub.Select.Columns[1].Expr, "COUNT(*)")
	require.Len(t, sub.Select.GroupBy, 1)

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "LEFT JOIN")
	assert.Contains(t, sql, "GROUP BY")
	assert.Contains(t, sql, "COUNT(*)")
}

func TestAssembleQuotientComplementAggregateInlinesGroupBy(t *testing.T) {
	sf, policy := assembleSource(t, "/program^department{department.name, count(^)}")
	require.Len(t, sf.GroupBy, 1)
	require.Len(t, sf.Columns, 2)
	assert.Contains(t, sf.Columns[1].Expr, "COUNT(*)")

	// The class-valued kernel joins department to read its key; the
	// complement aggregate itself is computed inline, with no derived
	// subquery.
	jf, isJoin := sf.From.(*JoinFrame)
	require.True(t, isJoin, "expected the kernel link join, got %T", sf.From)
	_, isSub := jf.Right.(*SubqueryFrame)
	assert.False(t, isSub, "the complement aggregate must not bundle a subquery")

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "GROUP BY")
	assert.NotContains(t, sql, "LEFT JOIN")
}

func TestAssembleSieveBecomesWhereClause(t *testing.T) {
	sf, policy := assembleSource(t, "/department?code='eng'{code}")
	require.Len(t, sf.Where, 1)
	assert.Contains(t, sf.Where[0], "=")

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "WHERE")
	assert.Contains(t, sql, "'eng'")
}

func TestAssembleSortDecoratorOrdersByKey(t *testing.T) {
	sf, policy := assembleSource(t, "/department{code, code-}")
	require.NotEmpty(t, sf.OrderBy)
	assert.True(t, strings.HasSuffix(sf.OrderBy[0], "DESC"))

	sql := Serialize(sf, policy)
	assert.Contains(t, sql, "ORDER BY")
}
