package htsql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/dialect"
)

// schoolCatalog builds the §8 end-to-end scenario catalog: school,
// department (FK -> school), program (FK -> school, self-FK), course
// (FK -> department).
func schoolCatalog() *catalog.View {
	return &catalog.View{
		Engine: "pgsql",
		Tables: []catalog.Table{
			{
				Name: "school",
				Columns: []catalog.Column{
					{Name: "code", Type: catalog.Simple(catalog.DomainString)},
					{Name: "name", Type: catalog.Simple(catalog.DomainString)},
					{Name: "campus", Type: catalog.Simple(catalog.DomainString), Nullable: true},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"code"}, Primary: true}},
			},
			{
				Name: "department",
				Columns: []catalog.Column{
					{Name: "code", Type: catalog.Simple(catalog.DomainString)},
					{Name: "name", Type: catalog.Simple(catalog.DomainString)},
					{Name: "school_code", Type: catalog.Simple(catalog.DomainString)},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"code"}, Primary: true}},
				ForeignKeys: []catalog.ForeignKey{
					{Columns: []string{"school_code"}, Target: "school", TargetColumns: []string{"code"}},
				},
			},
			{
				Name: "course",
				Columns: []catalog.Column{
					{Name: "department_code", Type: catalog.Simple(catalog.DomainString)},
					{Name: "no", Type: catalog.Simple(catalog.DomainInteger)},
					{Name: "title", Type: catalog.Simple(catalog.DomainString)},
					{Name: "credits", Type: catalog.Simple(catalog.DomainInteger), Nullable: true},
				},
				UniqueKeys: []catalog.UniqueKey{{Columns: []string{"department_code", "no"}, Primary: true}},
				ForeignKeys: []catalog.ForeignKey{
					{Columns: []string{"department_code"}, Target: "department", TargetColumns: []string{"code"}},
				},
			},
		},
	}
}

func TestCompile_SimpleSelection(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/school{code, name}")
	require.Nil(t, err, "compile error: %v", err)
	assert.True(t, strings.Contains(res.SQL, "SELECT"))
	assert.True(t, strings.Contains(res.SQL, `"school"`) || strings.Contains(res.SQL, "school"))
	require.Len(t, res.Profile.Children, 2)
	assert.Equal(t, "code", res.Profile.Children[0].Label)
	assert.Equal(t, "name", res.Profile.Children[1].Label)
	assert.False(t, res.Profile.Children[0].Nullable)
}

func TestCompile_FilterAndSort(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/course?credits>3{title, credits-}")
	require.Nil(t, err, "compile error: %v", err)
	assert.True(t, strings.Contains(res.SQL, "WHERE"))
	assert.True(t, strings.Contains(res.SQL, "ORDER BY"))
}

func TestCompile_NestedSegment(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/department{code, /course{title}}")
	require.Nil(t, err, "compile error: %v", err)
	require.Len(t, res.Profile.Children, 2)
	assert.NotNil(t, res.NestedSQL[1])
}

func TestCompile_QuotientExcludesNullKernel(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/school^campus{campus, count(school)}")
	require.Nil(t, err, "compile error: %v", err)
	assert.True(t, strings.Contains(res.SQL, "GROUP BY"))
	assert.True(t, strings.Contains(res.SQL, "IS NOT NULL"), "a null campus must be excluded from the projection, not grouped on its own: %s", res.SQL)
}

func TestCompile_UnknownDialect(t *testing.T) {
	v := schoolCatalog()
	_, err := Compile(v, dialect.Name("nosuchdialect"), "/school{code}")
	require.NotNil(t, err)
	assert.Equal(t, "DialectError", string(err.Kind))
}

func TestCompile_CountAggregateEmptyGroupsYieldZero(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/school{code, count(department)}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "LEFT JOIN")
	assert.Contains(t, res.SQL, "GROUP BY")
	assert.Contains(t, res.SQL, "COALESCE", "a school with no departments must count 0, not null: %s", res.SQL)
}

func TestCompile_AggregatesSharingFlowPairShareOneSubquery(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/department{code, count(course), max(course.credits)}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Equal(t, 1, strings.Count(res.SQL, "LEFT JOIN"),
		"two aggregates over the same (plural_flow, base_flow) pair bundle into one subquery: %s", res.SQL)
	assert.Contains(t, res.SQL, "COUNT(*)")
	assert.Contains(t, res.SQL, "MAX(")
}

func TestCompile_SieveAfterSelectionSharesOneJoin(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/department{code, school.name}?school.campus='old'")
	require.Nil(t, err, "compile error: %v", err)
	assert.Equal(t, 1, strings.Count(res.SQL, "JOIN"),
		"the selection item and the predicate traverse the same link and must share one join: %s", res.SQL)
	assert.NotContains(t, res.SQL, "LEFT JOIN", "school_code is NOT NULL, so the link joins inner")
	assert.Contains(t, res.SQL, "WHERE")
}

func TestCompile_NestedSegmentCarriesLinkColumns(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/department{code, /course{title}}")
	require.Nil(t, err, "compile error: %v", err)
	inner := res.NestedSQL[1]
	require.NotNil(t, inner)
	assert.Equal(t, 1, inner.LinkWidth, "the inner statement leads with department's one-column key")
	assert.Contains(t, inner.SQL, "JOIN", "the nested statement joins back through the link")
	require.Len(t, inner.Profile.Children, 1, "link columns stay out of the nested profile")
	assert.Equal(t, "title", inner.Profile.Children[0].Label)
}

func TestCompile_LimitPaging(t *testing.T) {
	v := schoolCatalog()

	res, err := Compile(v, dialect.PgSQL, "/course:limit(2){title}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "LIMIT 2")

	res, err = Compile(v, dialect.MSSQL, "/course:limit(2){title}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "ROW_NUMBER() OVER")
	assert.NotContains(t, res.SQL, "LIMIT")
	// The wrapper projects the profile's columns explicitly; the synthetic
	// row-number column stays inside the derived table.
	assert.True(t, strings.HasPrefix(res.SQL, "SELECT [title]\n"), "paged wrapper must project the output columns, not *: %s", res.SQL)
	assert.NotContains(t, res.SQL, "SELECT *")

	v.Engine = "oracle"
	res, err = Compile(v, dialect.Oracle, "/course:limit(2, 4){title}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "OFFSET 4 ROWS")
	assert.Contains(t, res.SQL, "FETCH NEXT 2 ROWS ONLY")
}

func TestCompile_MatchRoutesThroughDialect(t *testing.T) {
	v := schoolCatalog()

	res, err := Compile(v, dialect.PgSQL, "/school?name~'art'{code}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "ILIKE '%art%'")

	res, err = Compile(v, dialect.Oracle, "/school?name~'art'{code}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "LOWER", "Oracle's LIKE is case-sensitive, so both sides fold")
}

func TestCompile_NullSafeEqualityPerDialect(t *testing.T) {
	v := schoolCatalog()

	res, err := Compile(v, dialect.PgSQL, "/school?campus=='old'{code}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "IS NOT DISTINCT FROM")

	res, err = Compile(v, dialect.MySQL, "/school?campus=='old'{code}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "<=>")

	res, err = Compile(v, dialect.MSSQL, "/school?campus=='old'{code}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "CASE WHEN", "no native null-safe equality; emulated with CASE")
}

func TestCompile_BooleanOutputWrapsOnZeroOneEngines(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.MSSQL, "/department{code, exists(course)}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "COALESCE", "a department with no courses must read false, not null")
	assert.Contains(t, res.SQL, "CASE WHEN", "booleans surface as 0/1 on engines without a native boolean")
}

func TestCompile_DefineAndAsLabel(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/school:define(title:=name){code, title:as('School Title')}")
	require.Nil(t, err, "compile error: %v", err)
	require.Len(t, res.Profile.Children, 2)
	assert.Equal(t, "School Title", res.Profile.Children[1].Label)
}

func TestCompile_MembershipCompilesToIn(t *testing.T) {
	v := schoolCatalog()
	res, err := Compile(v, dialect.PgSQL, "/school?code={'art', 'chem'}{name}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "IN ('art', 'chem')")
}

func TestCompile_TypeErrorOnIncomparableDomains(t *testing.T) {
	v := schoolCatalog()
	_, err := Compile(v, dialect.PgSQL, "/course?title=3")
	require.NotNil(t, err)
	assert.Equal(t, "TypeError", string(err.Kind))
}

func TestCompile_CalculatedFieldAndGlobalOverrides(t *testing.T) {
	v := schoolCatalog()
	v.Overrides.Calculated = []catalog.CalculatedField{
		{Table: "school", Name: "label", Expression: "code + ': ' + name"},
	}
	v.Overrides.Globals = []catalog.Global{
		{Name: "old_campus", Expression: "'old'"},
	}

	res, err := Compile(v, dialect.PgSQL, "/school?campus=old_campus{code, label}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, "||", "the calculated field's concatenation reaches the SQL")
	assert.Contains(t, res.SQL, "'old'")
	require.Len(t, res.Profile.Children, 2)
	assert.Equal(t, "label", res.Profile.Children[1].Label)
}

func TestCompile_RenamedColumnEmitsPhysicalName(t *testing.T) {
	v := schoolCatalog()
	v.Overrides.Renamed = map[string]string{"school.campus": "grounds"}

	res, err := Compile(v, dialect.PgSQL, "/school{code, grounds}")
	require.Nil(t, err, "compile error: %v", err)
	assert.Contains(t, res.SQL, `"campus"`, "SQL must read the physical column")
	assert.Equal(t, "grounds", res.Profile.Children[1].Label)

	_, err = Compile(v, dialect.PgSQL, "/school{campus}")
	require.NotNil(t, err, "the old name is gone once renamed")
}

func TestCompile_Determinism(t *testing.T) {
	v := schoolCatalog()
	a, err1 := Compile(v, dialect.PgSQL, "/school{code, name}")
	require.Nil(t, err1)
	b, err2 := Compile(v, dialect.PgSQL, "/school{code, name}")
	require.Nil(t, err2)
	assert.Equal(t, a.SQL, b.SQL)
}
