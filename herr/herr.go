// Package herr defines the compiler's phase-tagged error kinds.
//
// Every error produced by any compiler phase carries the phase that
// produced it, a primary source span, up to three secondary spans for
// context, and a stable message template with slot values so callers can
// localize or otherwise re-render the message without parsing prose.
package herr

import (
	"fmt"
	"strings"
)

// Phase identifies which compiler stage raised an error.
type Phase int

const (
	PhaseScan Phase = iota
	PhaseParse
	PhaseBind
	PhaseEncode
	PhaseCompile
	PhaseAssemble
)

func (p Phase) String() string {
	switch p {
	case PhaseScan:
		return "scan"
	case PhaseParse:
		return "parse"
	case PhaseBind:
		return "bind"
	case PhaseEncode:
		return "encode"
	case PhaseCompile:
		return "compile"
	case PhaseAssemble:
		return "assemble"
	default:
		return "unknown"
	}
}

// Span is a half-open byte range into the original source text.
type Span struct {
	Start int
	End   int
	Line  int
	Col   int
}

// Kind names one of the nine error categories from the specification.
type Kind string

const (
	KindLex        Kind = "LexError"
	KindParse      Kind = "ParseError"
	KindBind       Kind = "BindError"
	KindType       Kind = "TypeError"
	KindPlurality  Kind = "PluralityError"
	KindLink       Kind = "LinkError"
	KindCatalog    Kind = "CatalogError"
	KindDialect    Kind = "DialectError"
	KindInternal   Kind = "InternalError"
)

// Error is the single error type returned by every compiler phase.
//
// Template is a message template with positional `{}` slots, e.g.
// "unresolved name {} in scope {}"; Slots holds the substitution values
// in template order. Message() renders Template with Slots filled
// in; callers that want localized display re-render Template themselves
// using Slots.
type Error struct {
	Kind     Kind
	Phase    Phase
	Template string
	Slots    []string
	Primary  Span
	Secondary []Span
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Phase, e.Message())
}

// Message renders Template by substituting each "{}" placeholder in order
// with the corresponding Slots entry.
func (e *Error) Message() string {
	var b strings.Builder
	slot := 0
	t := e.Template
	for {
		i := strings.Index(t, "{}")
		if i < 0 {
			b.WriteString(t)
			break
		}
		b.WriteString(t[:i])
		if slot < len(e.Slots) {
			b.WriteString(e.Slots[slot])
			slot++
		}
		t = t[i+2:]
	}
	return b.String()
}

func newErr(kind Kind, phase Phase, primary Span, template string, slots ...string) *Error {
	return &Error{Kind: kind, Phase: phase, Template: template, Slots: slots, Primary: primary}
}

// InPhase overrides the phase tag for an error raised outside its kind's
// usual stage (a LinkError detected during binding, say).
func (e *Error) InPhase(p Phase) *Error {
	e.Phase = p
	return e
}

// WithSecondary attaches up to three secondary spans for additional context.
func (e *Error) WithSecondary(spans ...Span) *Error {
	if len(spans) > 3 {
		spans = spans[:3]
	}
	e.Secondary = spans
	return e
}

func Lex(primary Span, template string, slots ...string) *Error {
	return newErr(KindLex, PhaseScan, primary, template, slots...)
}

func Parse(primary Span, template string, slots ...string) *Error {
	return newErr(KindParse, PhaseParse, primary, template, slots...)
}

func Bind(primary Span, template string, slots ...string) *Error {
	return newErr(KindBind, PhaseBind, primary, template, slots...)
}

func Type(primary Span, template string, slots ...string) *Error {
	return newErr(KindType, PhaseBind, primary, template, slots...)
}

func Plurality(primary Span, template string, slots ...string) *Error {
	return newErr(KindPlurality, PhaseBind, primary, template, slots...)
}

func Link(primary Span, template string, slots ...string) *Error {
	return newErr(KindLink, PhaseCompile, primary, template, slots...)
}

func Catalog(primary Span, template string, slots ...string) *Error {
	return newErr(KindCatalog, PhaseBind, primary, template, slots...)
}

func Dialect(primary Span, template string, slots ...string) *Error {
	return newErr(KindDialect, PhaseAssemble, primary, template, slots...)
}

// Internal must never be triggerable by well-formed input; it signals an
// invariant violation in the compiler itself.
func Internal(template string, slots ...string) *Error {
	return newErr(KindInternal, PhaseCompile, Span{}, template, slots...)
}
