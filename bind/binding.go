// Package bind implements the HTSQL binder (spec §4.3): scope-driven name
// resolution, signature-family overload resolution with numeric/untyped
// coercion, and plurality checking.
//
// There is no single teacher file that binds a query language against a
// live schema (sqldef never evaluates expressions, only diffs DDL), so
// this package is grounded on the teacher's general idiom of small,
// explicit, struct-based trees with exported fields and constructor
// functions (schema/ast.go's Table/Column/ForeignKey shapes) plus
// syssam-velox's predicate-algebra vocabulary (signature families: And/
// Or/Not/FieldEQ/FieldIn/FieldGT/... each keyed by a comparable field
// type) for how overload families are grouped.
package bind

import (
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/herr"
)

// Binding is a node in the binding tree: every binding carries the
// domain it produces and whether it is plural relative to its enclosing
// scope (spec §4.3).
type Binding interface {
	Domain() catalog.Type
	Plural() bool
	Span() herr.Span
}

type base struct {
	typ    catalog.Type
	plural bool
	sp     herr.Span
}

func (b base) Domain() catalog.Type { return b.typ }
func (b base) Plural() bool         { return b.plural }
func (b base) Span() herr.Span      { return b.sp }

// ClassBinding names a table-backed collection reached from the current
// scope (either a root class or an arrow traversal).
type ClassBinding struct {
	base
	Class string
	Table *catalog.Table
	// Arrow is nil when this is a root class reference.
	Arrow *catalog.Arrow
	Base  Binding
}

// ColumnBinding is a direct column reference. Column is the physical SQL
// column name (a renamed column resolves to its underlying name here);
// Nullable is the column's own declared nullability.
type ColumnBinding struct {
	base
	Column   string
	Nullable bool
	Base     Binding
}

// CompositionBinding threads Left's class scope into Right.
type CompositionBinding struct {
	base
	Left, Right Binding
}

// SieveBinding is a filter; Predicate must have domain boolean.
type SieveBinding struct {
	base
	BaseFlow  Binding
	Predicate Binding
}

// ProjectionBinding groups BaseFlow by Kernel. KernelLabels mirrors Kernel
// by position, carrying the name each kernel element is exposed under
// inside the projection's own scope (spec §4.3's named-kernel lookup).
type ProjectionBinding struct {
	base
	BaseFlow     Binding
	Kernel       []Binding
	KernelLabels []string
}

// ComplementBinding is `^` inside a projection scope: refers back to the
// ungrouped rows sharing the enclosing kernel value. The base class's own
// name is accepted as an alias for `^` (spec §8 scenario c: `count(school)`
// inside `/school^campus{...}` counts the complement, not the root class).
type ComplementBinding struct {
	base
	Projection *ProjectionBinding
}

// KernelRefBinding is a named kernel-element lookup inside a projection's
// selection scope (spec §4.3's "kernel scope exposes kernel elements").
// It is kept distinct from the raw kernel binding it mirrors so later
// phases route it through the quotient flow rather than through the
// ungrouped base the raw binding's own Base pointer still references.
type KernelRefBinding struct {
	base
	Projection *ProjectionBinding
	Index      int
}

// SelectionBinding produces a row segment from Items evaluated over Base.
type SelectionBinding struct {
	base
	BaseFlow Binding
	Items    []Binding
	Labels   []string
}

// SortBinding attaches a sort key and direction to an enclosing selection
// item list; Desc true means descending.
type SortBinding struct {
	base
	Key  Binding
	Desc bool
}

// LiteralBinding is a scalar constant; structurally coerced on demand by
// CoerceLiteral when a target domain is known.
type LiteralBinding struct {
	base
	Text string // canonical rendering used by the encoder/frame layers
}

// CallBinding is a resolved primitive or aggregate invocation.
type CallBinding struct {
	base
	Name      string
	Args      []Binding
	Aggregate bool
}

// LinkBinding is the `->` non-associative linking operator.
type LinkBinding struct {
	base
	Left, Right Binding
}

// ReferenceBinding is a `$name` lookup into the parallel reference
// namespace captured from an enclosing define/assign.
type ReferenceBinding struct {
	base
	Name   string
	Target Binding
}

// AssignBinding extends the current scope with a calculated-attribute
// factory bound to Expr.
type AssignBinding struct {
	base
	Name string
	Expr Binding
}

// WildcardBinding represents all attributes (or the Nth) of its base
// class scope. Bind does not construct it: a syntax.Wildcard selection
// item is expanded straight into concrete ColumnBindings, and expansion
// errors are reported at the wildcard's own syntax span.
type WildcardBinding struct {
	base
	Index *int
}

// ListBinding is an atomic `{items}` literal list (no base flow), used for
// in-list comparisons such as `code = {'art', 'chem'}`.
type ListBinding struct {
	base
	Items []Binding
}

// DefineBinding wraps Base with calculated attributes introduced by
// `define(x:=...)`; the definitions become visible in any class scope later
// opened onto this binding (spec §4.3).
type DefineBinding struct {
	base
	Base Binding
	Defs []*AssignBinding
}

// LimitBinding attaches `limit(n[, offset])` to Base; the encoder lowers it
// to an OrderedFlow carrying only limit/offset (spec §4.4: "Sort/limit
// attach to the enclosing flow as OrderedFlow").
type LimitBinding struct {
	base
	Base   Binding
	Limit  *int
	Offset *int
}

// OrderBinding attaches explicit `sort(keys...)` ordering to Base.
type OrderBinding struct {
	base
	Base Binding
	Keys []Binding // each either a SortBinding or a plain (ascending) key
}
