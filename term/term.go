// Package term implements the HTSQL compiler's relational IR (spec §3's
// term tree) and the compiler that lowers flow.Segment into it (spec
// §4.5), preceded by a constant-folding rewrite (rewrite.go). Aggregate
// bundling is done by the compiler itself (aggregate.go); no filter
// lifting is performed.
//
// No teacher file builds a relational IR (sqldef diffs DDL, it never
// plans a query), so the term variants below follow spec §3's own list
// one-for-one, kept in the same small-exported-struct idiom as flow/.
package term

import (
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/flow"
)

// Tag is a term tree node's unique, depth-first-assigned identity (spec
// §3: "a tag (unique id)"; spec §5: "alias assignment (monotonic counter
// per nested frame, depth-first order)").
type Tag int

// JoinKind selects the SQL join type a JoinTerm compiles to.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinCross
)

// Term is a node of the relational IR. Every term carries a tag and the
// flow (space) whose rows it produces one-to-one with its own rows.
type Term interface {
	Tag() Tag
	Space() flow.Flow
}

type base struct {
	tag   Tag
	space flow.Flow
}

func (b base) Tag() Tag        { return b.tag }
func (b base) Space() flow.Flow { return b.space }

// ScalarTerm is the one-row unit term (spec §3).
type ScalarTerm struct{ base }

// TableTerm reads Table directly (spec §3).
type TableTerm struct {
	base
	Table *catalog.Table
	Class string
}

// JoinCondition equates Left (evaluated against the left child's space)
// with Right (evaluated against the right child's space).
type JoinCondition struct {
	Left, Right flow.Code
}

// JoinTerm combines Left and Right under Kind using Conditions (spec §3).
type JoinTerm struct {
	base
	Left, Right Term
	Kind        JoinKind
	Conditions  []JoinCondition
}

// FilterTerm restricts Child to rows satisfying Predicate (spec §3).
type FilterTerm struct {
	base
	Child     Term
	Predicate flow.Code
}

// AggregateExpr is one aggregate column computed by a ProjectionTerm
// alongside its Kernel grouping (spec §4.5.3's "bundled subquery").
// Unit is the originating flow.AggregateUnit, kept so the routing table
// can map it back to this term and select index (Routes.AggTag).
type AggregateExpr struct {
	Func    string // count, exists, sum, avg, min, max, every
	Operand flow.Code
	Unit    *flow.AggregateUnit
}

// ProjectionTerm groups Child by Kernel (GROUP BY), optionally also
// computing Aggregates over the ungrouped Child rows (spec §3, §4.5.3).
type ProjectionTerm struct {
	base
	Child      Term
	Kernel     []flow.Code
	Aggregates []AggregateExpr
}

// OrderTerm attaches ORDER BY/LIMIT/OFFSET to Child (spec §3).
type OrderTerm struct {
	base
	Child  Term
	Order  []flow.OrderKey
	Limit  *int
	Offset *int
}

// WrapperTerm is an identity passthrough, folded into its parent by the
// assembler when trivial (spec §4.6).
type WrapperTerm struct {
	base
	Child Term
}

// SegmentTerm is the output term of one query segment: Codes/Labels mirror
// flow.Segment, with Nested holding the per-code compiled sub-segment for
// any flow.SegmentCode (spec §3, §4.5.4).
type SegmentTerm struct {
	base
	Child  Term
	Codes  []flow.Code
	Labels []string
	Nested map[int]*SegmentTerm // Codes index -> nested segment term, for embedded list columns
}

// AggPair identifies an aggregate bundling group (spec §4.5.3: "all
// aggregates sharing (plural_flow, base_flow) are grouped and computed in
// a single ProjectionTerm"). The encoder hash-conses flows, so two
// aggregate calls over the same link from the same context carry the
// identical flow pointers and compare equal here.
type AggPair struct {
	Plural flow.Flow
	Base   flow.Flow
}

// Routes is the term tree's routing index (spec §3: "a routing table
// mapping (unit, flow) -> term tag"). Flows maps a flow to the tag of the
// term currently providing its rows -- used both to decide whether a unit
// needs an injected join and, for a plain ColumnUnit/CoveringUnit, to
// resolve its physical location (the column name is the unit's own
// Column field, so no separate alias table is needed for those).
// AggTag maps each flow.AggregateUnit to the tag of the ProjectionTerm
// computing it (spec §4.5.3's "bundled subquery"); its synthetic select
// alias is derived at render time from its position within that term's
// Aggregates slice. AggGroups maps each (plural_flow, base_flow) pair to
// the same tag, so a later aggregate over the pair joins the existing
// group instead of building a second subquery.
type Routes struct {
	Flows     map[flow.Flow]Tag
	AggTag    map[*flow.AggregateUnit]Tag
	AggGroups map[AggPair]Tag
}

func NewRoutes() *Routes {
	return &Routes{
		Flows:     map[flow.Flow]Tag{},
		AggTag:    map[*flow.AggregateUnit]Tag{},
		AggGroups: map[AggPair]Tag{},
	}
}

// KernelAlias names the i'th kernel column's projected output (used by the
// frame assembler both for this term's own GROUP BY/SELECT and for any
// join condition correlating back to it).
func (pt *ProjectionTerm) KernelAlias(i int) string {
	return "k" + itoa(i)
}

// AggAlias names u's select-list column within pt, or "" if pt does not
// compute u.
func (pt *ProjectionTerm) AggAlias(u *flow.AggregateUnit) string {
	for i, a := range pt.Aggregates {
		if a.Unit == u {
			return "a" + itoa(i)
		}
	}
	return ""
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

func (r *Routes) clone() *Routes {
	c := NewRoutes()
	for k, v := range r.Flows {
		c.Flows[k] = v
	}
	for k, v := range r.AggTag {
		c.AggTag[k] = v
	}
	for k, v := range r.AggGroups {
		c.AggGroups[k] = v
	}
	return c
}

// merge copies other's entries into r in place, other's winning on key
// collision (used to fold a bundled aggregate's self-contained subquery
// routing into the enclosing segment's routes once the subquery's term is
// spliced into the main tree).
func (r *Routes) merge(other *Routes) {
	for k, v := range other.Flows {
		r.Flows[k] = v
	}
	for k, v := range other.AggTag {
		r.AggTag[k] = v
	}
	for k, v := range other.AggGroups {
		r.AggGroups[k] = v
	}
}
