package flow

import "github.com/htsql-go/htsql/catalog"

// Code is an expression over units (spec §3). Every code carries the
// domain it produces.
type Code interface {
	Domain() catalog.Type
	isCode()
}

// LiteralCode is a scalar constant already typed to its final domain (an
// untyped quoted literal is structurally coerced by the binder before
// reaching the encoder, per spec §4.3).
type LiteralCode struct {
	Typ  catalog.Type
	Text string // canonical rendering consumed by the frame serializer
}

func (c *LiteralCode) Domain() catalog.Type { return c.Typ }
func (*LiteralCode) isCode()                {}

// CastCode explicitly converts Operand to Typ (numeric widening, or a
// dialect-specific representation change surfaced by the assembler).
type CastCode struct {
	Typ     catalog.Type
	Operand Code
}

func (c *CastCode) Domain() catalog.Type { return c.Typ }
func (*CastCode) isCode()                {}

// FormulaCode applies a primitive operator or scalar function (named by
// Signature, the overload family resolved by bind.ResolveBinary /
// resolveCall) to Operands (spec §3).
type FormulaCode struct {
	Typ       catalog.Type
	Signature string
	Operands  []Code
}

func (c *FormulaCode) Domain() catalog.Type { return c.Typ }
func (*FormulaCode) isCode()                {}

// ListCode is an in-list literal (`{'a', 'b'}`), used on the right side of
// a membership test.
type ListCode struct {
	Typ   catalog.Type
	Items []Code
}

func (c *ListCode) Domain() catalog.Type { return c.Typ }
func (*ListCode) isCode()                {}

// Unit is a code attached to a specific flow (spec §3): the basic unit of
// cross-flow reference resolution that drives term injection in the
// compiler (spec §4.5.3).
type Unit interface {
	Code
	Flow() Flow
}

// ColumnUnit reads a physical column from the row currently at On.
// Nullable carries the column's own declared nullability through to the
// output profile.
type ColumnUnit struct {
	Typ      catalog.Type
	Column   string
	Nullable bool
	On       Flow
}

func (u *ColumnUnit) Domain() catalog.Type { return u.Typ }
func (*ColumnUnit) isCode()                {}
func (u *ColumnUnit) Flow() Flow           { return u.On }

// CompoundUnit wraps an arbitrary Code that is evaluated once per row of
// On and then treated as an atomic cross-flow reference (used for
// calculated fields and inlined references that must not be re-expanded
// at each use site, spec §4.4's "assignments are inlined ... via
// substitution").
type CompoundUnit struct {
	Typ   catalog.Type
	Inner Code
	On    Flow
}

func (u *CompoundUnit) Domain() catalog.Type { return u.Typ }
func (*CompoundUnit) isCode()                {}
func (u *CompoundUnit) Flow() Flow           { return u.On }

// KernelUnit reads the Index'th kernel element of Quotient (spec §3, §4.4).
type KernelUnit struct {
	Typ      catalog.Type
	Quotient *QuotientFlow
	Index    int
}

func (u *KernelUnit) Domain() catalog.Type { return u.Typ }
func (*KernelUnit) isCode()                {}
func (u *KernelUnit) Flow() Flow           { return u.Quotient }

// CoveringUnit tests existence of at least one row of On relative to its
// enclosing flow (spec §3: "existence"). Produced for bare class/
// complement references used where a boolean or count is expected.
type CoveringUnit struct {
	On Flow
}

func (u *CoveringUnit) Domain() catalog.Type { return catalog.Simple(catalog.DomainBoolean) }
func (*CoveringUnit) isCode()                {}
func (u *CoveringUnit) Flow() Flow           { return u.On }

// AggregateUnit collapses PluralFlow (a plural flow relative to BaseFlow,
// the aggregate's enclosing context) into a single scalar value per row of
// BaseFlow, computing Operand over each row of PluralFlow first (spec §3,
// §4.4). Operand is nil for the record-valued argument forms of
// count/exists (e.g. `count(department)`, counting rows rather than a
// scalar expression).
type AggregateUnit struct {
	Typ        catalog.Type
	Name       string // count, exists, sum, avg, min, max, every
	Operand    Code   // nil for count/exists over a bare class/complement
	PluralFlow Flow
	BaseFlow   Flow
}

func (u *AggregateUnit) Domain() catalog.Type { return u.Typ }
func (*AggregateUnit) isCode()                {}
func (u *AggregateUnit) Flow() Flow           { return u.BaseFlow }

// SegmentCode embeds a nested Segment as a list-valued output column
// (spec §3's record(class)/list(of) domains; spec §8 scenario f's nested
// `/school{code, /program{title}}`).
type SegmentCode struct {
	Inner *Segment
}

func (c *SegmentCode) Domain() catalog.Type {
	return catalog.Type{Domain: catalog.DomainList, ListOf: &catalog.Type{Domain: catalog.DomainRecord, RecordOf: c.Inner.RecordOf}}
}
func (*SegmentCode) isCode() {}

// Segment is the encoder's top-level output: a flow and the ordered list
// of codes/labels that make up one output row (spec glossary: "Segment:
// a term representing one output row/list").
type Segment struct {
	Flow     Flow
	Codes    []Code
	Labels   []string
	RecordOf string // class name this segment's rows belong to, "" for a scalar segment
}
