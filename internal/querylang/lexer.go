package querylang

import (
	"strings"
)

// TokenKind identifies the type of lexical token.
type TokenKind int

const (
	TokEOF      TokenKind = iota
	TokWord               // bareword: field path, function name or unquoted value
	TokString             // quoted string (quotes stripped, escapes processed)
	TokField              // backquoted field name (quotes stripped)
	TokOr                 // OR (case-insensitive)
	TokAnd                // AND (case-insensitive)
	TokNot                // NOT (case-insensitive)
	TokIn                 // IN (case-insensitive)
	TokTrue               // TRUE (case-insensitive)
	TokFalse              // FALSE (case-insensitive)
	TokLParen             // (
	TokRParen             // )
	TokLBracket           // [
	TokRBracket           // ]
	TokComma              // ,
	TokEq                 // == or =
	TokNe                 // !=
	TokLt                 // <
	TokLe                 // <=
	TokGt                 // >
	TokGe                 // >=
)

func (k TokenKind) String() string {
	switch k {
	case TokEOF:
		return "EOF"
	case TokWord:
		return "WORD"
	case TokString:
		return "STRING"
	case TokField:
		return "FIELD"
	case TokOr:
		return "OR"
	case TokAnd:
		return "AND"
	case TokNot:
		return "NOT"
	case TokIn:
		return "IN"
	case TokTrue:
		return "TRUE"
	case TokFalse:
		return "FALSE"
	case TokLParen:
		return "("
	case TokRParen:
		return ")"
	case TokLBracket:
		return "["
	case TokRBracket:
		return "]"
	case TokComma:
		return ","
	case TokEq:
		return "=="
	case TokNe:
		return "!="
	case TokLt:
		return "<"
	case TokLe:
		return "<="
	case TokGt:
		return ">"
	case TokGe:
		return ">="
	default:
		return "UNKNOWN"
	}
}

// isComparison reports whether k is one of the comparison operator tokens.
func (k TokenKind) isComparison() bool {
	return k >= TokEq && k <= TokGe
}

// Token represents a lexical token.
type Token struct {
	Kind TokenKind
	Lit  string // for quoted strings: unescaped content without quotes
	Pos  int    // byte offset in input for error reporting
}

// Lexer tokenizes a condition string.
type Lexer struct {
	input string
	pos   int // current position in input
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Kind: TokEOF, Pos: l.pos}, nil
	}

	startPos := l.pos
	ch := l.input[l.pos]

	switch ch {
	case '(':
		return l.single(TokLParen), nil
	case ')':
		return l.single(TokRParen), nil
	case '[':
		return l.single(TokLBracket), nil
	case ']':
		return l.single(TokRBracket), nil
	case ',':
		return l.single(TokComma), nil
	case '=':
		if l.peekByte(1) == '=' {
			return l.double(TokEq), nil
		}
		return l.single(TokEq), nil
	case '!':
		if l.peekByte(1) == '=' {
			return l.double(TokNe), nil
		}
		return Token{}, newParseError(startPos, ErrUnexpectedToken, "unexpected character '!', did you mean '!='?")
	case '<':
		if l.peekByte(1) == '=' {
			return l.double(TokLe), nil
		}
		return l.single(TokLt), nil
	case '>':
		if l.peekByte(1) == '=' {
			return l.double(TokGe), nil
		}
		return l.single(TokGt), nil
	case '"', '\'':
		return l.scanQuotedString(ch)
	case '`':
		return l.scanQuotedField()
	}

	// Bareword (may be keyword)
	return l.scanBareword()
}

func (l *Lexer) single(kind TokenKind) Token {
	tok := Token{Kind: kind, Lit: l.input[l.pos : l.pos+1], Pos: l.pos}
	l.pos++
	return tok
}

func (l *Lexer) double(kind TokenKind) Token {
	tok := Token{Kind: kind, Lit: l.input[l.pos : l.pos+2], Pos: l.pos}
	l.pos += 2
	return tok
}

func (l *Lexer) peekByte(offset int) byte {
	if l.pos+offset < len(l.input) {
		return l.input[l.pos+offset]
	}
	return 0
}

// skipWhitespace advances past whitespace characters.
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r' {
			l.pos++
		} else {
			break
		}
	}
}

// scanQuotedString scans a quoted string, processing escape sequences.
func (l *Lexer) scanQuotedString(quote byte) (Token, error) {
	startPos := l.pos
	l.pos++ // skip opening quote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]

		if ch == quote {
			l.pos++ // skip closing quote
			return Token{Kind: TokString, Lit: sb.String(), Pos: startPos}, nil
		}

		if ch == '\\' {
			l.pos++
			if l.pos >= len(l.input) {
				return Token{}, newParseError(l.pos-1, ErrUnterminatedString, "unterminated string: escape at end of input")
			}

			escaped := l.input[l.pos]
			switch escaped {
			case '\\':
				sb.WriteByte('\\')
			case '"':
				sb.WriteByte('"')
			case '\'':
				sb.WriteByte('\'')
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			case 'r':
				sb.WriteByte('\r')
			default:
				return Token{}, newParseError(l.pos-1, ErrInvalidEscape, "invalid escape sequence: \\%c", escaped)
			}
			l.pos++
			continue
		}

		sb.WriteByte(ch)
		l.pos++
	}

	return Token{}, newParseError(startPos, ErrUnterminatedString, "unterminated string starting at position %d", startPos)
}

// scanQuotedField scans a backquoted field name. A doubled backquote stands
// for a literal one.
func (l *Lexer) scanQuotedField() (Token, error) {
	startPos := l.pos
	l.pos++ // skip opening backquote

	var sb strings.Builder
	for l.pos < len(l.input) {
		ch := l.input[l.pos]
		if ch == '`' {
			if l.peekByte(1) == '`' {
				sb.WriteByte('`')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Kind: TokField, Lit: sb.String(), Pos: startPos}, nil
		}
		sb.WriteByte(ch)
		l.pos++
	}

	return Token{}, newParseError(startPos, ErrUnterminatedString, "unterminated field name starting at position %d", startPos)
}

// scanBareword scans a bareword token, which may be a keyword.
func (l *Lexer) scanBareword() (Token, error) {
	startPos := l.pos
	for l.pos < len(l.input) && isBarewordChar(l.input[l.pos]) {
		l.pos++
	}

	lit := l.input[startPos:l.pos]
	return Token{Kind: classifyWord(lit), Lit: lit, Pos: startPos}, nil
}

// isBarewordChar returns true if ch can be part of a bareword.
// Barewords exclude whitespace, quotes, brackets and operator characters.
func isBarewordChar(ch byte) bool {
	switch ch {
	case ' ', '\t', '\n', '\r':
		return false
	case '(', ')', '[', ']', ',', '=', '!', '<', '>', '"', '\'', '`':
		return false
	default:
		return true
	}
}

// classifyWord checks if a word is a keyword (case-insensitive).
func classifyWord(word string) TokenKind {
	switch strings.ToUpper(word) {
	case "OR":
		return TokOr
	case "AND":
		return TokAnd
	case "NOT":
		return TokNot
	case "IN":
		return TokIn
	case "TRUE":
		return TokTrue
	case "FALSE":
		return TokFalse
	default:
		return TokWord
	}
}

// Peek returns the next token without consuming it.
func (l *Lexer) Peek() (Token, error) {
	savedPos := l.pos
	tok, err := l.Next()
	l.pos = savedPos
	return tok, err
}
