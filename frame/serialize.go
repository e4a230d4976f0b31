package frame

import (
	"strconv"
	"strings"

	"github.com/htsql-go/htsql/dialect"
)

// Serialize renders sf to SQL text under policy (spec §4.6's final stage).
// On an engine paging through ROW_NUMBER(), a limited/offset query is
// rendered without its own ORDER BY/paging and wrapped in the row-number
// filtering idiom instead.
func Serialize(sf *SelectFrame, policy *dialect.Policy) string {
	if policy.Paging == dialect.PagingRowNumber && (sf.Limit != nil || sf.Offset != nil) {
		return serializeRowNumberPaging(sf, policy)
	}
	var b strings.Builder
	writeSelect(&b, sf, policy)
	return b.String()
}

func writeSelect(b *strings.Builder, sf *SelectFrame, policy *dialect.Policy) {
	b.WriteString("SELECT ")
	if len(sf.Columns) == 0 {
		b.WriteString("1")
	}
	for i, c := range sf.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Expr)
		if c.Alias != "" {
			b.WriteString(" AS ")
			b.WriteString(policy.QuoteIdent(clipIdent(c.Alias, policy)))
		}
	}

	if sf.From != nil {
		b.WriteString("\nFROM ")
		serializeFrame(b, sf.From, policy)
	}

	if len(sf.Where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(sf.Where, " AND "))
	}

	if len(sf.GroupBy) > 0 {
		b.WriteString("\nGROUP BY ")
		b.WriteString(strings.Join(sf.GroupBy, ", "))
	}

	if len(sf.OrderBy) > 0 {
		b.WriteString("\nORDER BY ")
		b.WriteString(strings.Join(sf.OrderBy, ", "))
	}

	applyPaging(b, sf, policy)
}

// clipIdent truncates a generated output alias to the engine's maximum
// identifier length (spec §4.7). Physical table/column names are the
// catalog's own and are never clipped.
func clipIdent(name string, policy *dialect.Policy) string {
	if policy.MaxIdentifierLength > 0 && len(name) > policy.MaxIdentifierLength {
		return name[:policy.MaxIdentifierLength]
	}
	return name
}

func serializeFrame(b *strings.Builder, f Frame, policy *dialect.Policy) {
	switch n := f.(type) {
	case *TableFrame:
		b.WriteString(policy.QuoteIdent(n.Table))
		b.WriteString(" AS ")
		b.WriteString(policy.QuoteIdent(n.Alias))

	case *JoinFrame:
		serializeFrame(b, n.Left, policy)
		switch n.Kind {
		case JoinInner:
			b.WriteString("\nJOIN ")
		case JoinLeft:
			b.WriteString("\nLEFT JOIN ")
		case JoinCross:
			b.WriteString("\nCROSS JOIN ")
		}
		serializeFrame(b, n.Right, policy)
		if len(n.On) > 0 {
			b.WriteString(" ON ")
			b.WriteString(strings.Join(n.On, " AND "))
		}

	case *SubqueryFrame:
		b.WriteString("(")
		writeSelect(b, n.Select, policy)
		b.WriteString(") AS ")
		b.WriteString(policy.QuoteIdent(n.Alias))

	default:
		panic("frame: unsupported frame kind in serializeFrame")
	}
}

// applyPaging writes the LIMIT/OFFSET clause in the form the dialect
// expects (spec §4.7). PagingRowNumber writes nothing here: Serialize
// routes a limited/offset query on such an engine to
// serializeRowNumberPaging, which wraps the whole statement instead.
func applyPaging(b *strings.Builder, sf *SelectFrame, policy *dialect.Policy) {
	if sf.Limit == nil && sf.Offset == nil {
		return
	}
	switch policy.Paging {
	case dialect.PagingLimitOffset:
		if sf.Limit != nil {
			b.WriteString("\nLIMIT ")
			b.WriteString(strconv.Itoa(*sf.Limit))
		}
		if sf.Offset != nil {
			b.WriteString("\nOFFSET ")
			b.WriteString(strconv.Itoa(*sf.Offset))
		}
	case dialect.PagingFetchFirst:
		offset := 0
		if sf.Offset != nil {
			offset = *sf.Offset
		}
		b.WriteString("\nOFFSET ")
		b.WriteString(strconv.Itoa(offset))
		b.WriteString(" ROWS")
		if sf.Limit != nil {
			b.WriteString(" FETCH NEXT ")
			b.WriteString(strconv.Itoa(*sf.Limit))
			b.WriteString(" ROWS ONLY")
		}
	case dialect.PagingRowNumber:
		// Handled by Serialize wrapping the whole statement; see
		// serializeRowNumberPaging.
	}
}

// serializeRowNumberPaging renders sf with its ordering folded into a
// ROW_NUMBER() OVER (...) column computed inside the statement itself --
// where the FROM aliases the order keys reference are still in scope --
// then filters on the row number from a wrapping SELECT (the idiom for
// engines without native LIMIT/OFFSET/FETCH support). The wrapper projects
// the original columns by name, in order, so the synthetic row-number
// column never reaches the result set and the statement keeps the exact
// column count/order the output profile describes. Inner columns without
// an output label get a positional alias the wrapper re-labels away.
func serializeRowNumberPaging(sf *SelectFrame, policy *dialect.Policy) string {
	over := "ORDER BY (SELECT NULL)"
	if len(sf.OrderBy) > 0 {
		over = "ORDER BY " + strings.Join(sf.OrderBy, ", ")
	}

	innerCols := make([]ColumnExpr, 0, len(sf.Columns)+1)
	outerCols := make([]string, len(sf.Columns))
	seen := map[string]bool{}
	for i, c := range sf.Columns {
		label := clipIdent(c.Alias, policy)
		alias := label
		if alias == "" || seen[alias] {
			// A derived table rejects unnamed or duplicate columns; give
			// the inner column a positional alias and restore the label
			// (if any) on the wrapper's select list.
			alias = "c" + strconv.Itoa(i)
		}
		seen[alias] = true
		innerCols = append(innerCols, ColumnExpr{Expr: c.Expr, Alias: alias})
		outer := policy.QuoteIdent(alias)
		if label != "" && label != alias {
			outer += " AS " + policy.QuoteIdent(label)
		}
		outerCols[i] = outer
	}
	innerCols = append(innerCols, ColumnExpr{Expr: "ROW_NUMBER() OVER (" + over + ")", Alias: "__rn"})

	inner := *sf
	inner.Columns = innerCols
	inner.OrderBy, inner.Limit, inner.Offset = nil, nil, nil

	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(outerCols, ", "))
	b.WriteString("\nFROM (\n")
	writeSelect(&b, &inner, policy)
	b.WriteString("\n) AS ")
	b.WriteString(policy.QuoteIdent("__paged"))
	b.WriteString("\nWHERE ")
	b.WriteString(policy.QuoteIdent("__rn"))
	b.WriteString(" > ")
	off := 0
	if sf.Offset != nil {
		off = *sf.Offset
	}
	b.WriteString(strconv.Itoa(off))
	if sf.Limit != nil {
		b.WriteString(" AND ")
		b.WriteString(policy.QuoteIdent("__rn"))
		b.WriteString(" <= ")
		b.WriteString(strconv.Itoa(off + *sf.Limit))
	}
	b.WriteString("\nORDER BY ")
	b.WriteString(policy.QuoteIdent("__rn"))
	return b.String()
}
