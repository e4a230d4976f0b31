// Package flow implements the HTSQL flow/code algebra (spec §3) and the
// encoder that lowers a bind.Binding tree into it (spec §4.4).
//
// There is no teacher analogue for a flow algebra (sqldef never models a
// "collection of rows a value ranges over"), so the variant shapes below
// follow spec §3's own vocabulary directly, kept in the teacher's general
// idiom of small exported structs with a shared marker interface rather
// than a tagged union with a Kind enum (cf. schema/ast.go's Table/View/
// Index family, which is likewise one Go type per DDL node kind).
package flow

import "github.com/htsql-go/htsql/catalog"

// Flow is a rooted chain describing the collection of rows a code value
// ranges over (spec §3). Base returns the flow it extends, or nil for a
// flow with no base (ScalarFlow).
type Flow interface {
	Base() Flow
	isFlow()
}

// ScalarFlow is the one-row flow at the root of every query (spec §3).
type ScalarFlow struct{}

func (ScalarFlow) Base() Flow { return nil }
func (ScalarFlow) isFlow()    {}

// ClassFlow traverses a class extent (Arrow == nil, the root reference to
// a table) or a link (Arrow != nil, a foreign-key traversal) from Base.
// Table is carried for convenience so later phases (the primary-key
// tie-break in the encoder, the join condition in the compiler) don't need
// to re-resolve it through a Model.
type ClassFlow struct {
	BaseFlow Flow
	Class    string
	Table    *catalog.Table
	Arrow    *catalog.Arrow // nil for a root class reference
}

func (f *ClassFlow) Base() Flow { return f.BaseFlow }
func (*ClassFlow) isFlow()      {}

// ProductFlow is the cross product of Base with Seed, used when two
// independent flows must be combined without a natural link between them
// (spec §3). Not produced by the core encoder rules in §4.4, which always
// threads a single current flow, but kept as a first-class variant for
// catalog overrides/globals that splice in an unrelated class.
type ProductFlow struct {
	BaseFlow Flow
	Seed     Flow
}

func (f *ProductFlow) Base() Flow { return f.BaseFlow }
func (*ProductFlow) isFlow()      {}

// FilteredFlow restricts Base to rows satisfying Predicate (spec §3, a
// sieve `?`). Predicate is encoded against the unfiltered Base so that a
// filter remains a property of the flow rather than of the surrounding
// expression (spec §4.4).
type FilteredFlow struct {
	BaseFlow  Flow
	Predicate Code
}

func (f *FilteredFlow) Base() Flow { return f.BaseFlow }
func (*FilteredFlow) isFlow()      {}

// OrderKey pairs a sort code with its direction.
type OrderKey struct {
	Code Code
	Desc bool
}

// OrderedFlow attaches sort/limit/offset to Base (spec §3).
type OrderedFlow struct {
	BaseFlow Flow
	Order    []OrderKey
	Limit    *int
	Offset   *int
}

func (f *OrderedFlow) Base() Flow { return f.BaseFlow }
func (*OrderedFlow) isFlow()      {}

// QuotientFlow groups Base by Kernel, one row per distinct kernel value
// (spec §3, a projection `^`).
type QuotientFlow struct {
	BaseFlow Flow
	Kernel   []Code
}

func (f *QuotientFlow) Base() Flow { return f.BaseFlow }
func (*QuotientFlow) isFlow()      {}

// ComplementFlow is the natural plural link from a QuotientFlow back to
// the ungrouped rows sharing its kernel value (spec §3, §4.3's `^` in a
// projection scope).
type ComplementFlow struct {
	Quotient *QuotientFlow
}

func (f *ComplementFlow) Base() Flow { return f.Quotient }
func (*ComplementFlow) isFlow()      {}

// Conforms reports whether a is a filtered/ordered extension of b, or vice
// versa (spec §3: "two flows are conforming when one is a filtered/ordered
// extension of the other"). Used by the compiler to decide whether two
// units can share a single term without an injected join.
func Conforms(a, b Flow) bool {
	return extends(a, b) || extends(b, a)
}

// extends reports whether a is reachable from b by zero or more
// FilteredFlow/OrderedFlow wrappers.
func extends(a, b Flow) bool {
	for f := a; f != nil; {
		if SameFlow(f, b) {
			return true
		}
		switch n := f.(type) {
		case *FilteredFlow:
			f = n.BaseFlow
		case *OrderedFlow:
			f = n.BaseFlow
		default:
			return false
		}
	}
	return false
}

// SameFlow reports whether a and b denote the identical flow node. Flow
// trees are never mutated once built and the encoder memoizes per binding,
// so pointer identity (for pointer variants) or trivial equality (for
// ScalarFlow) is exact, not approximate.
func SameFlow(a, b Flow) bool {
	if a == nil || b == nil {
		return a == b
	}
	if _, ok := a.(ScalarFlow); ok {
		_, ok2 := b.(ScalarFlow)
		return ok2
	}
	return a == b
}

// InnermostClass walks from f toward the root and returns the nearest
// enclosing ClassFlow, or nil if f's chain never passes through one (e.g.
// a pure QuotientFlow/ScalarFlow chain). Used for the primary-key
// tie-break (spec §4.5.4.d).
func InnermostClass(f Flow) *ClassFlow {
	for f != nil {
		if cf, ok := f.(*ClassFlow); ok {
			return cf
		}
		f = f.Base()
	}
	return nil
}
