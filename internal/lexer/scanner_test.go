package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func types(toks []Token) []TokenType {
	out := make([]TokenType, len(toks))
	for i, t := range toks {
		out[i] = t.Type
	}
	return out
}

func TestScanTokensProducesKeywordsAndOperators(t *testing.T) {
	src := `fn add(a, b) { return a + b }`
	toks := NewScanner(src).ScanTokens()
	assert.Equal(t, []TokenType{
		TokenFn, TokenIdent, TokenLParen, TokenIdent, TokenComma, TokenIdent, TokenRParen,
		TokenLBrace, TokenReturn, TokenIdent, TokenPlus, TokenIdent, TokenRBrace, TokenEOF,
	}, types(toks))
}

func TestScanTokensHandlesClassTryCatchAndRange(t *testing.T) {
	src := `class Foo(Bar) { } try { x = 0..10 } catch (e) { throw e }`
	toks := NewScanner(src).ScanTokens()
	got := types(toks)
	require.Contains(t, got, TokenClass)
	require.Contains(t, got, TokenTry)
	require.Contains(t, got, TokenCatch)
	require.Contains(t, got, TokenThrow)
	require.Contains(t, got, TokenDotDot)
}

func TestScanTokensHandlesCompoundAssignAndLogicalKeywords(t *testing.T) {
	src := `x += 1 if x and y or not z`
	toks := NewScanner(src).ScanTokens()
	got := types(toks)
	assert.Contains(t, got, TokenPlusEq)
	assert.Contains(t, got, TokenAnd)
	assert.Contains(t, got, TokenOr)
	assert.Contains(t, got, TokenNot)
}

func TestScanTokensTracksLineAndColumn(t *testing.T) {
	src := "a\nbb"
	toks := NewScannerWithFile(src, "t.em").ScanTokens()
	require.Len(t, toks, 3) // a, bb, EOF
	assert.Equal(t, 1, toks[0].Line)
	assert.Equal(t, 2, toks[1].Line)
	assert.Equal(t, 1, toks[1].Column)
	assert.Equal(t, "t.em", toks[1].File)
}

func TestScanTokensParsesStringEscapesAndFloats(t *testing.T) {
	toks := NewScanner(`"a\nb" 3.14 42`).ScanTokens()
	require.Len(t, toks, 4)
	assert.Equal(t, TokenString, toks[0].Type)
	assert.Equal(t, "a\nb", toks[0].Lexeme)
	assert.Equal(t, TokenFloat, toks[1].Type)
	assert.Equal(t, TokenInt, toks[2].Type)
}

func TestScanTokensSkipsShebangAndComments(t *testing.T) {
	toks := NewScanner("#!/usr/bin/ember\n// comment\nx").ScanTokens()
	require.Len(t, toks, 2)
	assert.Equal(t, TokenIdent, toks[0].Type)
}
