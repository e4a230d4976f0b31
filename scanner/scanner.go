// Package scanner implements the HTSQL lexical scanner (spec §4.1).
//
// Grounded on ha1tch-tsqlparser/lexer/lexer.go's NextToken idiom: a
// position/readPosition/ch cursor advanced by readChar/peekChar, a
// switch-based NextToken dispatching on the current rune, and dedicated
// read* helpers per token shape (readIdentifier, readNumber, readString
// there; readName, readNumber, readString here). Percent-decoding has no
// analogue in the teacher (T-SQL has no such escape), so that stage is
// modeled after the teacher's own style of a small single-purpose pass
// (cf. readQuotedIdentifier's escape handling) rather than copied from
// anywhere.
package scanner

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/htsql-go/htsql/herr"
	"github.com/htsql-go/htsql/token"
)

// Scanner turns HTSQL source text into a stream of Tokens.
type Scanner struct {
	src     string
	decoded []byte
	posMap  []int // decoded byte index -> original byte offset

	pos int // current index into decoded
}

// New decodes src (percent-escapes, NUL-byte check) and returns a Scanner
// positioned at the start of the decoded stream.
func New(src string) (*Scanner, *herr.Error) {
	decoded, posMap, err := decode(src)
	if err != nil {
		return nil, err
	}
	return &Scanner{src: src, decoded: decoded, posMap: posMap}, nil
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexVal(b byte) int {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0')
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10
	default:
		return int(b-'A') + 10
	}
}

// decode resolves %HH escapes against the raw source and rejects stray
// NUL bytes, before any tokenization happens (spec §4.1).
func decode(src string) ([]byte, []int, *herr.Error) {
	decoded := make([]byte, 0, len(src))
	posMap := make([]int, 0, len(src))

	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == 0:
			return nil, nil, herr.Lex(spanAt(src, i, i+1), "illegal NUL byte")
		case c == '%':
			if i+2 >= len(src) || !isHexDigit(src[i+1]) || !isHexDigit(src[i+2]) {
				return nil, nil, herr.Lex(spanAt(src, i, i+1), "malformed percent escape at {}", offsetSlot(i))
			}
			v := hexVal(src[i+1])*16 + hexVal(src[i+2])
			if v == 0 {
				return nil, nil, herr.Lex(spanAt(src, i, i+3), "illegal NUL byte")
			}
			decoded = append(decoded, byte(v))
			posMap = append(posMap, i)
			i += 3
		default:
			decoded = append(decoded, c)
			posMap = append(posMap, i)
			i++
		}
	}
	return decoded, posMap, nil
}

func offsetSlot(i int) string { return itoa(i) }

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	p := len(buf)
	for n > 0 {
		p--
		buf[p] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[p:])
}

func spanAt(src string, start, end int) herr.Span {
	line, col := 1, 1
	for i := 0; i < start && i < len(src); i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return herr.Span{Start: start, End: end, Line: line, Col: col}
}

func (s *Scanner) origOffset(decodedPos int) int {
	if decodedPos < len(s.posMap) {
		return s.posMap[decodedPos]
	}
	return len(s.src)
}

func (s *Scanner) span(start, end int) herr.Span {
	return spanAt(s.src, s.origOffset(start), s.origOffset(end))
}

func (s *Scanner) peekRuneAt(pos int) (rune, int) {
	if pos >= len(s.decoded) {
		return 0, 0
	}
	r, size := utf8.DecodeRune(s.decoded[pos:])
	return r, size
}

func (s *Scanner) peekRune() (rune, int) { return s.peekRuneAt(s.pos) }

func (s *Scanner) skipWhitespace() {
	for {
		r, size := s.peekRune()
		if size == 0 || !unicode.IsSpace(r) {
			return
		}
		s.pos += size
	}
}

func isNameStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isNameCont(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// NextToken returns the next token from the input, or an error if the
// input cannot be tokenized (spec §7 LexError: illegal character,
// unterminated string).
func (s *Scanner) NextToken() (token.Token, *herr.Error) {
	s.skipWhitespace()
	start := s.pos

	r, size := s.peekRune()
	if size == 0 {
		return token.Token{Kind: token.END, Start: s.origOffset(start), End: s.origOffset(start)}, nil
	}

	switch {
	case isNameStart(r):
		return s.readName(start)
	case isDigit(r):
		return s.readNumber(start)
	case r == '\'':
		return s.readString(start)
	default:
		return s.readSymbol(start)
	}
}

func (s *Scanner) readName(start int) (token.Token, *herr.Error) {
	for {
		r, size := s.peekRune()
		if size == 0 || !isNameCont(r) {
			break
		}
		s.pos += size
	}
	lit := string(s.decoded[start:s.pos])
	return token.Token{Kind: token.NAME, Literal: lit, Start: s.origOffset(start), End: s.origOffset(s.pos)}, nil
}

func (s *Scanner) readNumber(start int) (token.Token, *herr.Error) {
	kind := token.INT
	for {
		r, size := s.peekRune()
		if size == 0 || !isDigit(r) {
			break
		}
		s.pos += size
	}

	if r, size := s.peekRune(); size != 0 && r == '.' {
		if r2, size2 := s.peekRuneAt(s.pos + size); size2 != 0 && isDigit(r2) {
			kind = token.DECIMAL
			s.pos += size
			for {
				r, size := s.peekRune()
				if size == 0 || !isDigit(r) {
					break
				}
				s.pos += size
			}
		}
	}

	if r, size := s.peekRune(); size != 0 && (r == 'e' || r == 'E') {
		save := s.pos
		s.pos += size
		if r2, size2 := s.peekRune(); size2 != 0 && (r2 == '+' || r2 == '-') {
			s.pos += size2
		}
		digitsStart := s.pos
		for {
			r, size := s.peekRune()
			if size == 0 || !isDigit(r) {
				break
			}
			s.pos += size
		}
		if s.pos == digitsStart {
			s.pos = save // not a valid exponent; leave it for the symbol scanner
		} else {
			kind = token.FLOAT
		}
	}

	lit := string(s.decoded[start:s.pos])
	return token.Token{Kind: kind, Literal: lit, Start: s.origOffset(start), End: s.origOffset(s.pos)}, nil
}

func (s *Scanner) readString(start int) (token.Token, *herr.Error) {
	s.pos++ // opening quote
	var b strings.Builder
	for {
		r, size := s.peekRune()
		if size == 0 {
			return token.Token{}, herr.Lex(s.span(start, s.pos), "unterminated string literal")
		}
		if r == '\'' {
			if r2, size2 := s.peekRuneAt(s.pos + size); size2 != 0 && r2 == '\'' {
				b.WriteByte('\'')
				s.pos += size + size2
				continue
			}
			s.pos += size
			break
		}
		b.WriteRune(r)
		s.pos += size
	}
	return token.Token{Kind: token.STRING, Literal: b.String(), Start: s.origOffset(start), End: s.origOffset(s.pos)}, nil
}

func (s *Scanner) readSymbol(start int) (token.Token, *herr.Error) {
	remaining := string(s.decoded[start:])
	for _, sym := range token.Symbols {
		if strings.HasPrefix(remaining, sym) {
			s.pos += len(sym)
			return token.Token{Kind: token.SYMBOL, Literal: sym, Start: s.origOffset(start), End: s.origOffset(s.pos)}, nil
		}
	}
	_, size := s.peekRune()
	if size == 0 {
		size = 1
	}
	return token.Token{}, herr.Lex(s.span(start, start+size), "illegal character {}", string(s.decoded[start:start+size]))
}
