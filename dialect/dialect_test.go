package dialect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllMinimumDialectsRegistered(t *testing.T) {
	for _, name := range []Name{SQLite, PgSQL, MySQL, Oracle, MSSQL} {
		p, ok := Lookup(name)
		require.True(t, ok, "missing policy for %s", name)
		assert.Equal(t, name, p.Name)
		assert.NotNil(t, p.QuoteIdent)
		assert.NotNil(t, p.Concat)
		assert.Greater(t, p.MaxIdentifierLength, 0)
	}
}

func TestQuoteIdentPerEngine(t *testing.T) {
	pg, _ := Lookup(PgSQL)
	assert.Equal(t, `"foo"`, pg.QuoteIdent("foo"))

	my, _ := Lookup(MySQL)
	assert.Equal(t, "`foo`", my.QuoteIdent("foo"))

	ms, _ := Lookup(MSSQL)
	assert.Equal(t, "[foo]", ms.QuoteIdent("foo"))
}

func TestConcatPerEngine(t *testing.T) {
	my, _ := Lookup(MySQL)
	assert.Equal(t, "CONCAT(a, b)", my.Concat([]string{"a", "b"}))

	pg, _ := Lookup(PgSQL)
	assert.Equal(t, "a || b", pg.Concat([]string{"a", "b"}))

	ms, _ := Lookup(MSSQL)
	assert.Equal(t, "a + b", ms.Concat([]string{"a", "b"}))
}

func TestBooleanRepresentationDiffers(t *testing.T) {
	pg, _ := Lookup(PgSQL)
	my, _ := Lookup(MySQL)
	assert.Equal(t, BooleanNative, pg.Boolean)
	assert.Equal(t, BooleanZeroOne, my.Boolean)
}

func TestDistinctEqPerEngine(t *testing.T) {
	pg, _ := Lookup(PgSQL)
	require.NotNil(t, pg.DistinctEq)
	assert.Equal(t, "(a IS NOT DISTINCT FROM b)", pg.DistinctEq("a", "b"))

	my, _ := Lookup(MySQL)
	require.NotNil(t, my.DistinctEq)
	assert.Equal(t, "(a <=> b)", my.DistinctEq("a", "b"))

	ms, _ := Lookup(MSSQL)
	assert.Nil(t, ms.DistinctEq, "MSSQL has no native null-safe equality; the serializer emulates it")
}

func TestPagingStrategies(t *testing.T) {
	pg, _ := Lookup(PgSQL)
	or, _ := Lookup(Oracle)
	ms, _ := Lookup(MSSQL)
	assert.Equal(t, PagingLimitOffset, pg.Paging)
	assert.Equal(t, PagingFetchFirst, or.Paging)
	assert.Equal(t, PagingRowNumber, ms.Paging)
}
