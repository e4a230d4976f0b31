package bind

import (
	"github.com/htsql-go/htsql/catalog"
	"github.com/htsql-go/htsql/herr"
)

// family names a signature family (spec §4.3): primitive operators and
// functions are grouped by the shape of overload they admit.
type family int

const (
	familyComparableOrdered family = iota
	familyAdditive
	familyMultiplicative
	familyStringLike
	familyTemporal
	familyLogical
)

func familyFor(op string) (family, bool) {
	switch op {
	case "=", "!=", "==", "!==", "<", "<=", ">", ">=":
		return familyComparableOrdered, true
	case "+", "-":
		return familyAdditive, true
	case "*", "/":
		return familyMultiplicative, true
	case "~", "!~":
		return familyStringLike, true
	case "|", "&", "!":
		return familyLogical, true
	}
	return 0, false
}

// ResolveBinary resolves the overload for a binary operator given its
// operand domains (spec §4.3 "Overload resolution"): if domains are
// identical, the exact overload; otherwise coerce toward the most
// general domain along the numeric chain, or from untyped toward the
// other operand's domain. Returns the result domain and, when a coercion
// was required, the coerced domain each side should be reinterpreted as.
func ResolveBinary(sp herr.Span, op string, left, right catalog.Type) (result catalog.Type, coercedTo catalog.Type, err *herr.Error) {
	fam, ok := familyFor(op)
	if !ok {
		return catalog.Type{}, catalog.Type{}, herr.Internal("unknown operator family for {}", op)
	}

	switch fam {
	case familyLogical:
		if left.Domain != catalog.DomainBoolean && left.Domain != catalog.DomainUntyped {
			return catalog.Type{}, catalog.Type{}, herr.Type(sp, "no overload of {} for {}", op, left.Domain.String())
		}
		if right.Domain != catalog.DomainBoolean && right.Domain != catalog.DomainUntyped {
			return catalog.Type{}, catalog.Type{}, herr.Type(sp, "no overload of {} for {}", op, right.Domain.String())
		}
		return catalog.Simple(catalog.DomainBoolean), catalog.Simple(catalog.DomainBoolean), nil

	case familyStringLike:
		if !isStringish(left.Domain) || !isStringish(right.Domain) {
			return catalog.Type{}, catalog.Type{}, herr.Type(sp, "no overload of {} for ({}, {})", op, left.Domain.String(), right.Domain.String())
		}
		return catalog.Simple(catalog.DomainBoolean), catalog.Simple(catalog.DomainString), nil

	case familyComparableOrdered:
		common, cerr := coerce(sp, op, left, right)
		if cerr != nil {
			return catalog.Type{}, catalog.Type{}, cerr
		}
		return catalog.Simple(catalog.DomainBoolean), common, nil

	case familyAdditive, familyMultiplicative:
		common, cerr := coerce(sp, op, left, right)
		if cerr != nil {
			return catalog.Type{}, catalog.Type{}, cerr
		}
		if op == "/" && fam == familyMultiplicative && common.Domain == catalog.DomainInteger {
			// Division of two integers yields decimal (spec §4.3).
			return catalog.Simple(catalog.DomainDecimal), common, nil
		}
		return common, common, nil
	}

	return catalog.Type{}, catalog.Type{}, herr.Internal("unreachable signature family {}", op)
}

func isStringish(d catalog.Domain) bool {
	return d == catalog.DomainString || d == catalog.DomainUntyped
}

// coerce implements the numeric/untyped coercion chain: identical domains
// resolve exactly; otherwise numerics widen along integer -> decimal ->
// float, and untyped coerces toward the other operand's domain
// (spec §4.3).
func coerce(sp herr.Span, op string, left, right catalog.Type) (catalog.Type, *herr.Error) {
	if left.Domain == right.Domain {
		return left, nil
	}
	if catalog.IsNumeric(left.Domain) && catalog.IsNumeric(right.Domain) {
		return catalog.Simple(catalog.WidestNumeric(left.Domain, right.Domain)), nil
	}
	if left.Domain == catalog.DomainUntyped && right.Domain != catalog.DomainUntyped {
		return right, nil
	}
	if right.Domain == catalog.DomainUntyped && left.Domain != catalog.DomainUntyped {
		return left, nil
	}
	return catalog.Type{}, herr.Type(sp, "no overload of {} for ({}, {})", op, left.Domain.String(), right.Domain.String())
}

// CoerceLiteral parses lit's text under target's literal grammar,
// producing a ValueError-shaped TypeError on malformed content
// (spec §4.3: "content is parsed according to the target domain's literal
// grammar on coercion, failing with ValueError if malformed").
func CoerceLiteral(sp herr.Span, text string, target catalog.Domain) *herr.Error {
	switch target {
	case catalog.DomainInteger:
		if !digitsOnly(text, false) {
			return herr.Type(sp, "'{}' is not a valid integer literal", text)
		}
	case catalog.DomainDecimal, catalog.DomainFloat:
		if !digitsOnly(text, true) {
			return herr.Type(sp, "'{}' is not a valid {} literal", text, target.String())
		}
	case catalog.DomainBoolean:
		if text != "true" && text != "false" {
			return herr.Type(sp, "'{}' is not a valid boolean literal", text)
		}
	case catalog.DomainDate:
		if !matchesShape(text, "dddd-dd-dd") {
			return herr.Type(sp, "'{}' is not a valid date literal (expected YYYY-MM-DD)", text)
		}
	case catalog.DomainTime:
		if !matchesShape(text, "dd:dd:dd") && !matchesShape(text, "dd:dd") {
			return herr.Type(sp, "'{}' is not a valid time literal (expected HH:MM[:SS])", text)
		}
	case catalog.DomainDateTime:
		if !matchesShape(text, "dddd-dd-dd dd:dd:dd") && !matchesShape(text, "dddd-dd-dd dd:dd") {
			return herr.Type(sp, "'{}' is not a valid datetime literal (expected YYYY-MM-DD HH:MM[:SS])", text)
		}
	}
	return nil
}

func digitsOnly(text string, allowPoint bool) bool {
	if text == "" || text == "-" {
		return false
	}
	seenPoint := false
	for i, r := range text {
		if r == '-' && i == 0 {
			continue
		}
		if r == '.' && allowPoint && !seenPoint {
			seenPoint = true
			continue
		}
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// matchesShape checks text against a template where 'd' stands for one
// digit and every other byte matches itself.
func matchesShape(text, shape string) bool {
	if len(text) != len(shape) {
		return false
	}
	for i := 0; i < len(shape); i++ {
		if shape[i] == 'd' {
			if text[i] < '0' || text[i] > '9' {
				return false
			}
		} else if text[i] != shape[i] {
			return false
		}
	}
	return true
}

// EmptySetResult implements the per-function empty-set law for
// aggregates (spec §8 property 8): count/exists/sum on an empty flow
// produce 0/false/0; min/max/avg/every produce null/null/null/true.
func EmptySetResult(fn string, everyEmptyTrue bool) (isNull bool, literal string) {
	switch fn {
	case "count":
		return false, "0"
	case "exists":
		return false, "false"
	case "sum":
		return false, "0"
	case "every":
		if everyEmptyTrue {
			return false, "true"
		}
		return true, ""
	default: // min, max, avg
		return true, ""
	}
}
