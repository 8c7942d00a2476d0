// Package lexer implements the synth lexical analyzer.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	serrors "github.com/synth-lang/synth/internal/errors"
	"github.com/synth-lang/synth/internal/position"
)

// TokenType represents the type of a token
type TokenType int

// String returns a string representation of the token type
func (tt TokenType) String() string {
	if name, ok := tokenNames[tt]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", int(tt))
}

// Token types
const (
	TokenEOF TokenType = iota
	TokenError

	// Payload tokens
	TokenIdentifier
	TokenNumber
	TokenString

	// Keywords
	TokenVar
	TokenMut
	TokenConst
	TokenPub
	TokenPriv
	TokenU32
	TokenI32
	TokenF32
	TokenBool
	TokenFn
	TokenTypeKeyword
	TokenTrue
	TokenFalse
	TokenIf
	TokenElse
	TokenFor
	TokenComp

	// Punctuation
	TokenDollar
	TokenAt
	TokenHash
	TokenPlus
	TokenMinus
	TokenStar
	TokenSlash
	TokenLBrace
	TokenRBrace
	TokenLParen
	TokenRParen
	TokenLBracket
	TokenRBracket
	TokenDot
	TokenComma
	TokenColon
	TokenSemicolon
	TokenAssign
)

// Token represents a lexical token
type Token struct {
	Type    TokenType
	Literal string
	Span    position.Span
}

// String returns a string representation of the token
func (t Token) String() string {
	switch t.Type {
	case TokenIdentifier, TokenNumber, TokenString, TokenError:
		return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
	default:
		return t.Type.String()
	}
}

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenIdentifier: "IDENTIFIER",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",

	TokenVar:         "var",
	TokenMut:         "mut",
	TokenConst:       "const",
	TokenPub:         "pub",
	TokenPriv:        "priv",
	TokenU32:         "u32",
	TokenI32:         "i32",
	TokenF32:         "f32",
	TokenBool:        "bool",
	TokenFn:          "fn",
	TokenTypeKeyword: "type",
	TokenTrue:        "true",
	TokenFalse:       "false",
	TokenIf:          "if",
	TokenElse:        "else",
	TokenFor:         "for",
	TokenComp:        "comp",

	TokenDollar:    "$",
	TokenAt:        "@",
	TokenHash:      "#",
	TokenPlus:      "+",
	TokenMinus:     "-",
	TokenStar:      "*",
	TokenSlash:     "/",
	TokenLBrace:    "{",
	TokenRBrace:    "}",
	TokenLParen:    "(",
	TokenRParen:    ")",
	TokenLBracket:  "[",
	TokenRBracket:  "]",
	TokenDot:       ".",
	TokenComma:     ",",
	TokenColon:     ":",
	TokenSemicolon: ";",
	TokenAssign:    "=",
}

var keywords = map[string]TokenType{
	"var":   TokenVar,
	"mut":   TokenMut,
	"const": TokenConst,
	"pub":   TokenPub,
	"priv":  TokenPriv,
	"u32":   TokenU32,
	"i32":   TokenI32,
	"f32":   TokenF32,
	"bool":  TokenBool,
	"fn":    TokenFn,
	"type":  TokenTypeKeyword,
	"true":  TokenTrue,
	"false": TokenFalse,
	"if":    TokenIf,
	"else":  TokenElse,
	"for":   TokenFor,
	"comp":  TokenComp,
}

var punctuation = map[byte]TokenType{
	'$': TokenDollar,
	'@': TokenAt,
	'#': TokenHash,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'.': TokenDot,
	',': TokenComma,
	':': TokenColon,
	';': TokenSemicolon,
	'=': TokenAssign,
}

// IsKeyword reports whether tt is a reserved word.
func (tt TokenType) IsKeyword() bool {
	return tt >= TokenVar && tt <= TokenComp
}

// Lexer represents the lexical analyzer
type Lexer struct {
	input        string
	filename     string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int  // line of the current char
	column       int  // column of the current char

	errors []*serrors.CompilerError
}

// New creates a new lexer instance
func New(input string) *Lexer {
	return NewWithFilename(input, "")
}

// NewWithFilename creates a new lexer whose spans name filename
func NewWithFilename(input, filename string) *Lexer {
	l := &Lexer{
		input:    input,
		filename: filename,
		line:     1,
	}
	l.readChar()
	return l
}

// readChar advances by one byte. Columns count runes, so UTF-8
// continuation bytes do not move the column.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	if l.ch&0xC0 != 0x80 {
		l.column++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

func (l *Lexer) pos() position.Position {
	return position.Position{
		Filename: l.filename,
		Line:     l.line,
		Column:   l.column,
		Offset:   l.position,
	}
}

func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// NextToken returns the next token. Lexical errors produce a TokenError
// whose literal is the message; the error itself is recorded in Errors.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	start := l.pos()

	if l.atEOF() {
		return l.newToken(TokenEOF, "", start)
	}

	if tt, ok := punctuation[l.ch]; ok {
		ch := l.ch
		l.readChar()
		return l.newToken(tt, string(ch), start)
	}

	switch {
	case l.ch == '"' || l.ch == '\'':
		return l.readString(start)
	case isDigit(l.ch):
		return l.readNumber(start)
	case isLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(start)
	case l.ch >= utf8.RuneSelf:
		r, _ := utf8.DecodeRuneInString(l.input[l.position:])
		if unicode.IsLetter(r) {
			return l.readIdentifier(start)
		}
	}

	r, size := utf8.DecodeRuneInString(l.input[l.position:])
	for i := 0; i < size; i++ {
		l.readChar()
	}
	return l.fail(serrors.InvalidCharacter(r, position.Span{Start: start, End: l.pos()}))
}

func (l *Lexer) newToken(tokenType TokenType, literal string, start position.Position) Token {
	return Token{
		Type:    tokenType,
		Literal: literal,
		Span:    position.Span{Start: start, End: l.pos()},
	}
}

func (l *Lexer) fail(err *serrors.CompilerError) Token {
	l.errors = append(l.errors, err)
	return Token{Type: TokenError, Literal: err.Message, Span: err.Span}
}

func (l *Lexer) readIdentifier(start position.Position) Token {
	begin := l.position
	for !l.atEOF() {
		if isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
			l.readChar()
			continue
		}
		if l.ch < utf8.RuneSelf {
			break
		}
		r, size := utf8.DecodeRuneInString(l.input[l.position:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			break
		}
		for i := 0; i < size; i++ {
			l.readChar()
		}
	}

	ident := l.input[begin:l.position]
	if tt, ok := keywords[ident]; ok {
		return l.newToken(tt, ident, start)
	}
	return l.newToken(TokenIdentifier, ident, start)
}

// readNumber accepts digits with at most one fractional part. A letter or a
// second dot glued to the literal makes it malformed.
func (l *Lexer) readNumber(start position.Position) Token {
	begin := l.position
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	if isLetter(l.ch) || l.ch == '_' || l.ch == '.' && isDigit(l.peekChar()) {
		for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' || l.ch == '.' {
			l.readChar()
		}
		literal := l.input[begin:l.position]
		return l.fail(serrors.MalformedNumber(literal, position.Span{Start: start, End: l.pos()}))
	}

	return l.newToken(TokenNumber, l.input[begin:l.position], start)
}

// readString reads a literal delimited by the opening quote character and
// returns its unescaped contents.
func (l *Lexer) readString(start position.Position) Token {
	quote := l.ch
	l.readChar()

	var sb strings.Builder
	for {
		if l.atEOF() {
			return l.fail(serrors.UnterminatedString(position.Span{Start: start, End: l.pos()}))
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch != '\\' {
			sb.WriteByte(l.ch)
			l.readChar()
			continue
		}

		escStart := l.pos()
		l.readChar()
		if l.atEOF() {
			return l.fail(serrors.UnterminatedString(position.Span{Start: start, End: l.pos()}))
		}
		switch l.ch {
		case 'n':
			sb.WriteByte('\n')
		case 't':
			sb.WriteByte('\t')
		case '\\', '"', '\'':
			sb.WriteByte(l.ch)
		default:
			r, size := utf8.DecodeRuneInString(l.input[l.position:])
			for i := 0; i < size; i++ {
				l.readChar()
			}
			return l.fail(serrors.InvalidEscape(r, position.Span{Start: escStart, End: l.pos()}))
		}
		l.readChar()
	}

	return l.newToken(TokenString, sb.String(), start)
}

// Errors returns the lexical errors encountered so far.
func (l *Lexer) Errors() []*serrors.CompilerError {
	return l.errors
}

// Tokenize lexes the whole input. Tokens are returned up to and including
// EOF; the first lexical error aborts.
func Tokenize(input, filename string) ([]Token, error) {
	l := NewWithFilename(input, filename)
	var tokens []Token
	for {
		tok := l.NextToken()
		if tok.Type == TokenError {
			return nil, l.errors[0]
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
