package scanner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/htsql-go/htsql/token"
)

func scanAll(t *testing.T, src string) []token.Token {
	t.Helper()
	sc, err := New(src)
	require.Nil(t, err)
	var toks []token.Token
	for {
		tok, err := sc.NextToken()
		require.Nil(t, err)
		toks = append(toks, tok)
		if tok.Kind == token.END {
			return toks
		}
	}
}

func TestScanBasicQuery(t *testing.T) {
	toks := scanAll(t, "/school{code, name}")
	var kinds []token.Kind
	for _, tok := range toks {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{
		token.SYMBOL, token.NAME, token.SYMBOL, token.NAME, token.SYMBOL,
		token.NAME, token.SYMBOL, token.END,
	}, kinds)
}

func TestScanNumbers(t *testing.T) {
	toks := scanAll(t, "3 3.5 1.5e10 2e-3")
	require.Len(t, toks, 5)
	assert.Equal(t, token.INT, toks[0].Kind)
	assert.Equal(t, token.DECIMAL, toks[1].Kind)
	assert.Equal(t, token.FLOAT, toks[2].Kind)
	assert.Equal(t, token.FLOAT, toks[3].Kind)
}

func TestScanStringWithEscapedQuote(t *testing.T) {
	toks := scanAll(t, "'it''s ok'")
	require.Len(t, toks, 2)
	assert.Equal(t, token.STRING, toks[0].Kind)
	assert.Equal(t, "it's ok", toks[0].Literal)
}

func TestScanUnterminatedString(t *testing.T) {
	sc, err := New("'abc")
	require.Nil(t, err)
	_, scanErr := sc.NextToken()
	require.NotNil(t, scanErr)
}

func TestScanPercentDecoding(t *testing.T) {
	toks := scanAll(t, "%61%62%63")
	require.Len(t, toks, 2)
	assert.Equal(t, token.NAME, toks[0].Kind)
	assert.Equal(t, "abc", toks[0].Literal)
}

func TestScanNulByteIsError(t *testing.T) {
	_, err := New("abc\x00def")
	require.NotNil(t, err)
}

func TestScanMalformedPercentEscape(t *testing.T) {
	_, err := New("%zz")
	require.NotNil(t, err)
}

func TestScanLongestMatchSymbol(t *testing.T) {
	toks := scanAll(t, "!== != !")
	require.Len(t, toks, 4)
	assert.Equal(t, "!==", toks[0].Literal)
	assert.Equal(t, "!=", toks[1].Literal)
	assert.Equal(t, "!", toks[2].Literal)
}
