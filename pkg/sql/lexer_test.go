package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	out := make([]TokenKind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_Basics(t *testing.T) {
	toks, err := Tokenize("SELECT o.[Order Id], N'it''s' FROM dbo.Orders o WHERE o.Total >= @min -- trailing")
	require.NoError(t, err)

	texts := make([]string, 0, len(toks))
	for _, tok := range toks {
		texts = append(texts, tok.Text)
	}
	assert.Equal(t, []string{
		"SELECT", "o", ".", "Order Id", ",", "it's", "FROM", "dbo", ".", "Orders", "o",
		"WHERE", "o", ".", "Total", ">=", "@min", "",
	}, texts)
	assert.Equal(t, TokenQuotedIdent, toks[3].Kind)
	assert.Equal(t, TokenString, toks[5].Kind)
	assert.Equal(t, TokenVariable, toks[16].Kind)
	assert.Equal(t, TokenEOF, toks[len(toks)-1].Kind)
}

func TestTokenize_Operators(t *testing.T) {
	toks, err := Tokenize("a<>b != c <= d !< e += 1 ? 0x1F 1.5e3")
	require.NoError(t, err)
	assert.Equal(t, []TokenKind{
		TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenIdent, TokenOperator, TokenIdent,
		TokenOperator, TokenIdent, TokenOperator, TokenNumber, TokenPlaceholder, TokenNumber, TokenNumber, TokenEOF,
	}, kinds(toks))
	assert.Equal(t, "<>", toks[1].Text)
	assert.Equal(t, "+=", toks[9].Text)
	assert.Equal(t, "0x1F", toks[12].Text)
	assert.Equal(t, "1.5e3", toks[13].Text)
}

func TestTokenize_NestedBlockComments(t *testing.T) {
	toks, err := Tokenize("SELECT /* outer /* inner */ still comment */ 1")
	require.NoError(t, err)
	require.Len(t, toks, 3)
	assert.Equal(t, "1", toks[1].Text)
}

func TestTokenize_DelimitedEscapes(t *testing.T) {
	toks, err := Tokenize(`[a]]b] "x""y"`)
	require.NoError(t, err)
	assert.Equal(t, "a]b", toks[0].Text)
	assert.Equal(t, `x"y`, toks[1].Text)
}

func TestTokenize_UnicodeIdentifiers(t *testing.T) {
	toks, err := Tokenize("SELECT Größe FROM t")
	require.NoError(t, err)
	assert.Equal(t, "Größe", toks[1].Text)
	assert.True(t, toks[2].IsKeyword("FROM"))
}

func TestTokenize_Errors(t *testing.T) {
	for _, src := range []string{"SELECT 'open", "SELECT [open", "SELECT /* open"} {
		_, err := Tokenize(src)
		assert.Error(t, err, src)
	}
}
