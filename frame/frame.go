// Package frame implements the SQL intermediate representation the
// assembler builds from a term.Term tree, and the serializer that renders
// it to dialect-specific SQL text (spec §4.6, §4.7).
//
// No teacher file renders a SELECT statement from an intermediate
// representation (sqldef only ever diffs and emits DDL statements it reads
// verbatim from schema/ast.go), so Frame's shape follows plain SQL clause
// structure directly: unlike term.Term, which is indexed by flow identity,
// a Frame is indexed by the SQL alias its rows are exposed under.
package frame

// Frame is a node of the FROM clause: a table, a join of two frames, or a
// derived subquery.
type Frame interface{ isFrame() }

// TableFrame reads Table directly, exposed as Alias.
type TableFrame struct {
	Table string
	Alias string
}

func (*TableFrame) isFrame() {}

// JoinKind selects the SQL join keyword.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
)

// JoinFrame combines Left and Right with Kind, using the equalities in On
// (already-rendered "left_expr = right_expr" fragments).
type JoinFrame struct {
	Left, Right Frame
	Kind        JoinKind
	On          []string
}

func (*JoinFrame) isFrame() {}

// SubqueryFrame wraps an independently assembled Select as a derived table
// exposed as Alias (used for a bundled aggregate's correlated subquery,
// spec §4.5.3).
type SubqueryFrame struct {
	Select *SelectFrame
	Alias  string
}

func (*SubqueryFrame) isFrame() {}

// ColumnExpr is one entry of a SELECT list: an already-rendered SQL
// expression, optionally given an output Alias.
type ColumnExpr struct {
	Expr  string
	Alias string
}

// SelectFrame is a single SELECT statement: From is nil for a query with
// no table reference at all (a bare scalar expression).
type SelectFrame struct {
	From    Frame
	Columns []ColumnExpr
	Where   []string
	GroupBy []string
	OrderBy []string
	Limit   *int
	Offset  *int
}

func (*SelectFrame) isFrame() {}
