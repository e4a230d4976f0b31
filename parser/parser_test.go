package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/syntax"
)

func TestParseSelectionOfTwoColumns(t *testing.T) {
	q, err := Parse("/school{code, name}")
	require.Nil(t, err)

	sel, ok := q.Body.(*syntax.Selection)
	require.True(t, ok, "expected Selection, got %T", q.Body)
	assert.Len(t, sel.Items, 2)
	base, ok := sel.Base.(*syntax.Identifier)
	require.True(t, ok)
	assert.Equal(t, "school", base.Name)
}

func TestParseSieveAndSortPrecedence(t *testing.T) {
	q, err := Parse("/course?credits>3{title, credits-}")
	require.Nil(t, err)

	sel, ok := q.Body.(*syntax.Selection)
	require.True(t, ok)
	sieve, ok := sel.Base.(*syntax.Sieve)
	require.True(t, ok)
	cmp, ok := sieve.Predicate.(*syntax.BinOp)
	require.True(t, ok)
	assert.Equal(t, ">", cmp.Op)

	require.Len(t, sel.Items, 2)
	sort, ok := sel.Items[1].(*syntax.Sort)
	require.True(t, ok)
	assert.Equal(t, syntax.SortDesc, sort.Dir)
}

func TestParseComposition(t *testing.T) {
	q, err := Parse("/department{code, school.name}")
	require.Nil(t, err)

	sel := q.Body.(*syntax.Selection)
	comp, ok := sel.Items[1].(*syntax.Composition)
	require.True(t, ok)
	assert.Equal(t, "school", comp.Left.(*syntax.Identifier).Name)
	assert.Equal(t, "name", comp.Right.(*syntax.Identifier).Name)
}

func TestParseProjectionAndAggregateCall(t *testing.T) {
	q, err := Parse("/school^campus{campus, count(school)}")
	require.Nil(t, err)

	sel, ok := q.Body.(*syntax.Selection)
	require.True(t, ok, "expected Selection wrapping the projection, got %T", q.Body)
	proj, ok := sel.Base.(*syntax.Projection)
	require.True(t, ok, "expected Projection as selection base, got %T", sel.Base)
	assert.Equal(t, "school", proj.Base.(*syntax.Identifier).Name)
	assert.Equal(t, "campus", proj.Kernel.(*syntax.Identifier).Name)
}

func TestParseInfixFunctionCall(t *testing.T) {
	q, err := Parse("/school:count()")
	require.Nil(t, err)
	call, ok := q.Body.(*syntax.InfixFuncCall)
	require.True(t, ok)
	assert.Equal(t, "count", call.Name)
}

func TestParseFormatDecorator(t *testing.T) {
	q, err := Parse("/school{code}/:json")
	require.Nil(t, err)
	assert.Equal(t, "json", q.Format)
}

func TestParseNestedSegmentItem(t *testing.T) {
	q, err := Parse("/school{code, /program{title}}")
	require.Nil(t, err)

	sel := q.Body.(*syntax.Selection)
	require.Len(t, sel.Items, 2)
	segItem, ok := sel.Items[1].(*syntax.Segment)
	require.True(t, ok, "expected Segment, got %T", sel.Items[1])
	innerSel, ok := segItem.Inner.(*syntax.Selection)
	require.True(t, ok)
	assert.Equal(t, "program", innerSel.Base.(*syntax.Identifier).Name)
}

func TestParseInfixBareArgument(t *testing.T) {
	q, err := Parse("/school:limit 3")
	require.Nil(t, err)
	call, ok := q.Body.(*syntax.InfixFuncCall)
	require.True(t, ok)
	assert.Equal(t, "limit", call.Name)
	require.Len(t, call.Args, 1)
	_, ok = call.Args[0].(*syntax.IntLiteral)
	assert.True(t, ok)
}

func TestParseExpressionRejectsLeadingSlash(t *testing.T) {
	_, err := ParseExpression("/school")
	require.NotNil(t, err)

	expr, err := ParseExpression("code + name")
	require.Nil(t, err)
	_, ok := expr.(*syntax.BinOp)
	assert.True(t, ok)
}

func TestParseUnexpectedTokenFails(t *testing.T) {
	_, err := Parse("/school{")
	require.NotNil(t, err)
}

func TestParseRendersBackToEquivalentSource(t *testing.T) {
	q, err := Parse("/department{code, school.name}?school.campus='old'")
	require.Nil(t, err)
	assert.Contains(t, q.String(), "department")
	assert.Contains(t, q.String(), "'old'")
}
