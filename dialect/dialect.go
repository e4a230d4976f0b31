// Package dialect supplies the per-engine policy table that every
// dialect-sensitive primitive in the compiler routes through (spec §4.7).
// No phase before serialization may branch on engine identity directly;
// it must instead consult a Policy field.
//
// Grounded on schema/generator.go's GeneratorMode enum and its mode-keyed
// dispatch (GenerateIdempotentDDLs switching on mode to pick a per-engine
// code path), generalized here from "which DDL generator to run" to "which
// policy values this compile should use".
package dialect

// Name identifies a target SQL engine (spec §6, minimum set).
type Name string

const (
	SQLite  Name = "sqlite"
	PgSQL   Name = "pgsql"
	MySQL   Name = "mysql"
	Oracle  Name = "oracle"
	MSSQL   Name = "mssql"
)

// BooleanRepr selects how a boolean-typed expression is represented in a
// SELECT list.
type BooleanRepr int

const (
	// BooleanNative emits the engine's native boolean literal/type.
	BooleanNative BooleanRepr = iota
	// BooleanZeroOne wraps the boolean expression in an explicit CASE that
	// projects to integer 0/1, for engines without a native boolean.
	BooleanZeroOne
)

// Paging selects how LIMIT/OFFSET is expressed.
type Paging int

const (
	PagingLimitOffset Paging = iota
	PagingRowNumber
	PagingFetchFirst
)

// Policy is the per-engine record described by spec §4.7.
type Policy struct {
	Name Name

	Boolean BooleanRepr
	Paging  Paging

	// DateLiteral/TimeLiteral/DateTimeLiteral format a literal value (an
	// already-formatted canonical string, e.g. "2024-01-02") into the
	// engine's literal syntax.
	DateLiteral     func(canonical string) string
	TimeLiteral     func(canonical string) string
	DateTimeLiteral func(canonical string) string

	// Concat renders a string concatenation of the given rendered operand
	// expressions.
	Concat func(operands []string) string

	// LikeCaseSensitive reports whether this engine's LIKE operator is
	// case-sensitive by default (ILIKE, if present, is always
	// case-insensitive and is exposed via ILikeOperator).
	LikeCaseSensitive bool
	ILikeOperator     string // "" if the engine has no native ILIKE

	// QuoteIdent quotes name as a delimited identifier for this engine.
	QuoteIdent func(name string) string

	// IntDivOperator renders integer division; IntDivTruncates reports
	// whether it truncates toward zero (true for all five dialects here).
	IntDivOperator   string
	IntDivTruncates  bool

	MaxIdentifierLength int

	// EveryEmptyTrue fixes the resolution of spec §9 open question (i):
	// every() over an empty flow yields boolean true.
	EveryEmptyTrue bool

	// MaxDistinctExpansion records a CASE-expansion depth limit for
	// emulating IS NOT DISTINCT FROM (==) on engines lacking it natively
	// (spec §9 open question (ii)). No compiler stage reads it: the
	// emulation is always a single CASE expansion and no DialectError is
	// raised for its depth.
	MaxDistinctExpansion int

	// NativeEnum reports whether the engine has a native enum type; when
	// false, enum domains are represented as CHECK-constrained strings and
	// an enum value used where the compiler cannot fold it to a string
	// literal raises a DialectError.
	NativeEnum bool

	// DistinctEq renders the engine's native null-safe equality of two
	// rendered operands (IS NOT DISTINCT FROM, <=>, IS), letting == compile
	// directly; nil means the engine has none and the assembler falls back
	// to a single CASE expansion (renderDistinctFrom).
	DistinctEq func(l, r string) string
}

var policies = map[Name]*Policy{}

func register(p *Policy) { policies[p.Name] = p }

// Lookup returns the Policy for name, or false if name is not one of the
// minimum supported dialect identifiers (spec §6).
func Lookup(name Name) (*Policy, bool) {
	p, ok := policies[name]
	return p, ok
}

func quoteWith(open, close byte) func(string) string {
	return func(name string) string {
		return string(open) + name + string(close)
	}
}
