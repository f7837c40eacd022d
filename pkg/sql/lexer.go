package sql

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// TokenKind classifies a lexical token of T-SQL text.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenQuotedIdent
	TokenString
	TokenNumber
	TokenVariable
	TokenPlaceholder
	TokenOperator
	TokenLParen
	TokenRParen
	TokenComma
	TokenDot
	TokenSemicolon
	TokenOther
)

// Token is a single lexical unit. Text holds the identifier name without
// brackets or quotes, the string literal body without quotes, or the raw
// characters for everything else.
type Token struct {
	Kind TokenKind
	Text string
	Pos  int
}

// Upper returns the token text upper-cased, used for keyword matching.
func (t Token) Upper() string {
	return strings.ToUpper(t.Text)
}

// IsKeyword reports whether the token is a bare identifier equal to kw.
// kw must be upper case.
func (t Token) IsKeyword(kw string) bool {
	return t.Kind == TokenIdent && strings.EqualFold(t.Text, kw)
}

func (t Token) String() string {
	switch t.Kind {
	case TokenEOF:
		return "end of input"
	case TokenString:
		return fmt.Sprintf("'%s'", t.Text)
	case TokenQuotedIdent:
		return fmt.Sprintf("[%s]", t.Text)
	default:
		return fmt.Sprintf("%q", t.Text)
	}
}

// Tokenize splits T-SQL text into tokens, dropping whitespace and comments.
// It fails only on unterminated strings, quoted identifiers, or block comments.
func Tokenize(src string) ([]Token, error) {
	lx := &lexer{src: src}
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		lx.tokens = append(lx.tokens, tok)
		if tok.Kind == TokenEOF {
			return lx.tokens, nil
		}
	}
}

type lexer struct {
	src    string
	pos    int
	tokens []Token
}

func (lx *lexer) peekByte(offset int) byte {
	if lx.pos+offset < len(lx.src) {
		return lx.src[lx.pos+offset]
	}
	return 0
}

func (lx *lexer) next() (Token, error) {
	if err := lx.skipSpaceAndComments(); err != nil {
		return Token{}, err
	}
	if lx.pos >= len(lx.src) {
		return Token{Kind: TokenEOF, Pos: lx.pos}, nil
	}

	start := lx.pos
	c := lx.src[lx.pos]

	switch {
	case (c == 'N' || c == 'n') && lx.peekByte(1) == '\'':
		lx.pos++
		return lx.readString(start)
	case c == '\'':
		return lx.readString(start)
	case c == '[':
		return lx.readDelimited(start, ']')
	case c == '"':
		return lx.readDelimited(start, '"')
	case c == '@':
		lx.pos++
		for lx.pos < len(lx.src) && (lx.src[lx.pos] == '@' || isIdentByte(lx.src[lx.pos])) {
			lx.pos++
		}
		return Token{Kind: TokenVariable, Text: lx.src[start:lx.pos], Pos: start}, nil
	case c >= '0' && c <= '9', c == '.' && isDigit(lx.peekByte(1)):
		return lx.readNumber(start), nil
	case isIdentStart(c):
		for lx.pos < len(lx.src) {
			b := lx.src[lx.pos]
			if b < utf8.RuneSelf {
				if !isIdentByte(b) {
					break
				}
				lx.pos++
				continue
			}
			r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
			if r == utf8.RuneError || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
				break
			}
			lx.pos += size
		}
		if lx.pos > start {
			return Token{Kind: TokenIdent, Text: lx.src[start:lx.pos], Pos: start}, nil
		}
		_, size := utf8.DecodeRuneInString(lx.src[start:])
		lx.pos = start + size
		return Token{Kind: TokenOther, Text: lx.src[start:lx.pos], Pos: start}, nil
	}

	lx.pos++
	switch c {
	case '(':
		return Token{Kind: TokenLParen, Text: "(", Pos: start}, nil
	case ')':
		return Token{Kind: TokenRParen, Text: ")", Pos: start}, nil
	case ',':
		return Token{Kind: TokenComma, Text: ",", Pos: start}, nil
	case '.':
		return Token{Kind: TokenDot, Text: ".", Pos: start}, nil
	case ';':
		return Token{Kind: TokenSemicolon, Text: ";", Pos: start}, nil
	case '?':
		return Token{Kind: TokenPlaceholder, Text: "?", Pos: start}, nil
	case '<':
		if n := lx.peekByte(0); n == '=' || n == '>' {
			lx.pos++
		}
		return Token{Kind: TokenOperator, Text: lx.src[start:lx.pos], Pos: start}, nil
	case '>', '!':
		if n := lx.peekByte(0); n == '=' || (c == '!' && (n == '<' || n == '>')) {
			lx.pos++
		}
		return Token{Kind: TokenOperator, Text: lx.src[start:lx.pos], Pos: start}, nil
	case '=', '+', '-', '*', '/', '%', '&', '|', '^', '~':
		// Compound assignment operators (+=, -=, ...) are kept as one token.
		if c != '=' && c != '~' && lx.peekByte(0) == '=' {
			lx.pos++
		}
		return Token{Kind: TokenOperator, Text: lx.src[start:lx.pos], Pos: start}, nil
	}

	_, size := utf8.DecodeRuneInString(lx.src[start:])
	lx.pos = start + size
	return Token{Kind: TokenOther, Text: lx.src[start:lx.pos], Pos: start}, nil
}

func (lx *lexer) skipSpaceAndComments() error {
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			lx.pos++
		case c == '-' && lx.peekByte(1) == '-':
			for lx.pos < len(lx.src) && lx.src[lx.pos] != '\n' {
				lx.pos++
			}
		case c == '/' && lx.peekByte(1) == '*':
			// T-SQL block comments nest.
			start := lx.pos
			depth := 0
			for lx.pos < len(lx.src) {
				if lx.src[lx.pos] == '/' && lx.peekByte(1) == '*' {
					depth++
					lx.pos += 2
					continue
				}
				if lx.src[lx.pos] == '*' && lx.peekByte(1) == '/' {
					depth--
					lx.pos += 2
					if depth == 0 {
						break
					}
					continue
				}
				lx.pos++
			}
			if depth != 0 {
				return fmt.Errorf("unterminated block comment at offset %d", start)
			}
		default:
			if c >= utf8.RuneSelf {
				r, size := utf8.DecodeRuneInString(lx.src[lx.pos:])
				if unicode.IsSpace(r) {
					lx.pos += size
					continue
				}
			}
			return nil
		}
	}
	return nil
}

func (lx *lexer) readString(start int) (Token, error) {
	lx.pos++ // opening quote
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == '\'' {
			if lx.peekByte(1) == '\'' {
				sb.WriteByte('\'')
				lx.pos += 2
				continue
			}
			lx.pos++
			return Token{Kind: TokenString, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(c)
		lx.pos++
	}
	return Token{}, fmt.Errorf("unterminated string literal at offset %d", start)
}

func (lx *lexer) readDelimited(start int, closing byte) (Token, error) {
	lx.pos++
	var sb strings.Builder
	for lx.pos < len(lx.src) {
		c := lx.src[lx.pos]
		if c == closing {
			if lx.peekByte(1) == closing {
				sb.WriteByte(closing)
				lx.pos += 2
				continue
			}
			lx.pos++
			return Token{Kind: TokenQuotedIdent, Text: sb.String(), Pos: start}, nil
		}
		sb.WriteByte(c)
		lx.pos++
	}
	return Token{}, fmt.Errorf("unterminated quoted identifier at offset %d", start)
}

func (lx *lexer) readNumber(start int) Token {
	if lx.src[lx.pos] == '0' && (lx.peekByte(1) == 'x' || lx.peekByte(1) == 'X') {
		lx.pos += 2
		for lx.pos < len(lx.src) && isHexDigit(lx.src[lx.pos]) {
			lx.pos++
		}
		return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
	}
	for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
		lx.pos++
	}
	if lx.peekByte(0) == '.' {
		lx.pos++
		for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
			lx.pos++
		}
	}
	if e := lx.peekByte(0); e == 'e' || e == 'E' {
		n := lx.peekByte(1)
		if isDigit(n) || ((n == '+' || n == '-') && isDigit(lx.peekByte(2))) {
			lx.pos += 2
			for lx.pos < len(lx.src) && isDigit(lx.src[lx.pos]) {
				lx.pos++
			}
		}
	}
	return Token{Kind: TokenNumber, Text: lx.src[start:lx.pos], Pos: start}
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '$'
}
