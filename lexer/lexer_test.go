package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenize(t *testing.T, code string) []Token {
	t.Helper()
	l := New(code, 1)
	toks, errs := l.Tokenize()
	require.Empty(t, errs)
	return toks
}

func TestSplitLiteralAndCode(t *testing.T) {
	chunks := Split("before<?php echo 1; ?>after")
	require.Len(t, chunks, 3)
	assert.False(t, chunks[0].IsCode)
	assert.Equal(t, "before", chunks[0].Text)
	assert.True(t, chunks[1].IsCode)
	assert.Equal(t, " echo 1; ", chunks[1].Text)
	assert.False(t, chunks[2].IsCode)
	assert.Equal(t, "after", chunks[2].Text)
}

func TestSplitEchoShorthand(t *testing.T) {
	chunks := Split(`<?= "hi" ?>`)
	require.Len(t, chunks, 1)
	assert.True(t, chunks[0].IsCode)
	assert.Equal(t, ` echo  "hi" ;`, chunks[0].Text)
}

func TestSplitSwallowsTrailingNewlineAfterCloseTag(t *testing.T) {
	chunks := Split("<?php echo 1; ?>\nnext")
	require.Len(t, chunks, 2)
	assert.True(t, chunks[0].IsCode)
	assert.False(t, chunks[1].IsCode)
	assert.Equal(t, "next", chunks[1].Text)
}

func TestSplitNoTagsIsAllLiteral(t *testing.T) {
	chunks := Split("just html")
	require.Len(t, chunks, 1)
	assert.False(t, chunks[0].IsCode)
	assert.Equal(t, "just html", chunks[0].Text)
}

func TestLexNumbers(t *testing.T) {
	cases := map[string]TokenType{
		"42":      TLNumber,
		"0x1A":    TLNumber,
		"0b101":   TLNumber,
		"0o17":    TLNumber,
		"017":     TLNumber,
		"3.14":    TDNumber,
		"1.5e10":  TDNumber,
		"1_000":   TLNumber,
	}
	for src, want := range cases {
		toks := tokenize(t, src)
		require.GreaterOrEqual(t, len(toks), 1, src)
		assert.Equal(t, want, toks[0].Type, "source %q", src)
		assert.Equal(t, src, toks[0].Literal, "source %q", src)
	}
}

func TestLexKeywordsAreCaseInsensitive(t *testing.T) {
	for _, src := range []string{"if", "IF", "If", "iF"} {
		toks := tokenize(t, src)
		require.GreaterOrEqual(t, len(toks), 1)
		assert.Equal(t, TIf, toks[0].Type, "source %q", src)
	}
}

func TestLexVariable(t *testing.T) {
	toks := tokenize(t, "$count")
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TVariable, toks[0].Type)
	assert.Equal(t, "count", toks[0].Literal)
}

func TestLexSingleQuotedStringUnescapesOnlyBackslashAndQuote(t *testing.T) {
	toks := tokenize(t, `'it\'s \\ a test \n'`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TConstantString, toks[0].Type)
	assert.Equal(t, `it's \ a test \n`, toks[0].Literal)
}

func TestLexDoubleQuotedStringIsRawUntilCompiler(t *testing.T) {
	toks := tokenize(t, `"hello $name world"`)
	require.GreaterOrEqual(t, len(toks), 1)
	assert.Equal(t, TConstantString, toks[0].Type)
	assert.Equal(t, `hello $name world`, toks[0].Literal)
}

func TestLexLineAndHashComments(t *testing.T) {
	toks := tokenize(t, "1 // trailing comment\n# another\n2")
	var nums []string
	for _, tok := range toks {
		if tok.Type == TLNumber {
			nums = append(nums, tok.Literal)
		}
	}
	assert.Equal(t, []string{"1", "2"}, nums)
}

func TestLexHashArrayAccessIsNotAComment(t *testing.T) {
	// '#[' introduces an attribute in newer PHP-family grammars and must
	// not be treated as a line comment.
	toks := tokenize(t, "#[Foo] 1")
	require.GreaterOrEqual(t, len(toks), 1)
	assert.NotEqual(t, TEOF, toks[0].Type)
	assert.NotEqual(t, "1", toks[0].Literal)
}

func TestLexBlockComment(t *testing.T) {
	toks := tokenize(t, "1 /* skip\nthis */ 2")
	var nums []string
	for _, tok := range toks {
		if tok.Type == TLNumber {
			nums = append(nums, tok.Literal)
		}
	}
	assert.Equal(t, []string{"1", "2"}, nums)
}

func TestLexThreeTwoOneCharOperators(t *testing.T) {
	cases := []string{"<=>", "===", "!==", "??", "->", "=>", "::", "+", "-", "."}
	for _, op := range cases {
		toks := tokenize(t, "1 "+op+" 2")
		var found bool
		for _, tok := range toks {
			if tok.Literal == op {
				found = true
			}
		}
		assert.True(t, found, "operator %q not found in tokens %v", op, toks)
	}
}

func TestLexEndsWithEOF(t *testing.T) {
	toks := tokenize(t, "1;")
	require.NotEmpty(t, toks)
	assert.Equal(t, TEOF, toks[len(toks)-1].Type)
}
