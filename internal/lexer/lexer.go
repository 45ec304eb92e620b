// Package lexer splits plan text into tokens.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rcliao/devplan/internal/model"
)

// TabWidth is the indent width a tab counts for.
const TabWidth = 4

// Error reports a character the lexer has no class for.
type Error struct {
	Pos    model.Pos `json:"pos"`
	Reason string    `json:"reason"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("lex error at %s: %s", e.Pos, e.Reason)
}

// Tokenize converts text into tokens. Blank and comment-only lines yield
// nothing; every other line yields an optional Indent, its tokens and a
// Newline. The last token is always EOF.
func Tokenize(text string) ([]model.Token, error) {
	l := &lexer{src: text, line: 1, col: 1}
	for l.off < len(l.src) {
		if err := l.lexLine(); err != nil {
			return nil, err
		}
	}
	l.emit(model.TokenEOF, "", l.pos())
	return l.tokens, nil
}

type lexer struct {
	src    string
	off    int
	line   int
	col    int
	tokens []model.Token
}

func (l *lexer) pos() model.Pos {
	return model.Pos{Line: l.line, Column: l.col, Offset: l.off}
}

func (l *lexer) emit(kind model.TokenKind, lexeme string, p model.Pos) {
	l.tokens = append(l.tokens, model.Token{Kind: kind, Lexeme: lexeme, Pos: p})
}

func (l *lexer) peek() (rune, int) {
	if l.off >= len(l.src) {
		return 0, 0
	}
	return utf8.DecodeRuneInString(l.src[l.off:])
}

func (l *lexer) advance(size int) {
	l.off += size
	l.col++
}

// lexLine consumes one physical line including its line break.
func (l *lexer) lexLine() error {
	start := l.pos()
	width := 0
	for {
		r, size := l.peek()
		if r == ' ' {
			width++
		} else if r == '\t' {
			width += TabWidth
		} else {
			break
		}
		l.advance(size)
	}

	emitted := false
	for {
		r, size := l.peek()
		if size == 0 || r == '\n' || r == '\r' || r == '#' {
			break
		}
		if r == ' ' || r == '\t' {
			l.advance(size)
			continue
		}
		if !emitted {
			emitted = true
			if width > 0 {
				l.emit(model.TokenIndent, strings.Repeat(" ", width), start)
			}
		}
		if err := l.lexToken(r, size); err != nil {
			return err
		}
	}

	// Comment runs to end of line.
	if r, _ := l.peek(); r == '#' {
		for {
			r, size := l.peek()
			if size == 0 || r == '\n' || r == '\r' {
				break
			}
			l.advance(size)
		}
	}

	if emitted {
		l.emit(model.TokenNewline, "", l.pos())
	}
	l.consumeLineBreak()
	return nil
}

func (l *lexer) consumeLineBreak() {
	r, size := l.peek()
	if r == '\r' {
		l.off += size
		r, size = l.peek()
	}
	if r == '\n' {
		l.off += size
	}
	l.line++
	l.col = 1
}

func (l *lexer) lexToken(r rune, size int) error {
	p := l.pos()
	switch {
	case r == '"':
		return l.lexString()
	case r == '=':
		l.advance(size)
		l.emit(model.TokenEquals, "=", p)
	case r == ',':
		l.advance(size)
		l.emit(model.TokenComma, ",", p)
	case r == '-' && strings.HasPrefix(l.src[l.off:], "->"):
		l.advance(1)
		l.advance(1)
		l.emit(model.TokenArrow, "->", p)
	case unicode.IsDigit(r):
		l.lexWord(p, true)
	case isIdentStart(r):
		l.lexWord(p, false)
	default:
		if unicode.IsControl(r) {
			return &Error{Pos: p, Reason: fmt.Sprintf("control character %U", r)}
		}
		return &Error{Pos: p, Reason: fmt.Sprintf("unexpected character %q", r)}
	}
	return nil
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_'
}

func isIdentPart(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' || r == ':' || r == '/' ||
		r == '-'
}

// lexWord reads an identifier or number. A word that starts with a digit is
// a number only if it matches \d+(\.\d+)?.
func (l *lexer) lexWord(p model.Pos, numeric bool) {
	start := l.off
	for {
		r, size := l.peek()
		if size == 0 || !isIdentPart(r) {
			break
		}
		// Leave "->" for the arrow token.
		if r == '-' && strings.HasPrefix(l.src[l.off:], "->") {
			break
		}
		l.advance(size)
	}
	word := l.src[start:l.off]
	if numeric && isNumber(word) {
		l.emit(model.TokenNumber, word, p)
		return
	}
	l.emit(model.TokenIdent, word, p)
}

func isNumber(s string) bool {
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0 && i < len(s)-1:
			dot = true
		default:
			return false
		}
	}
	return s != ""
}

func (l *lexer) lexString() error {
	p := l.pos()
	l.advance(1) // opening quote
	var sb strings.Builder
	for {
		r, size := l.peek()
		if size == 0 || r == '\n' || r == '\r' {
			return &Error{Pos: p, Reason: "unterminated string"}
		}
		l.advance(size)
		switch r {
		case '"':
			l.emit(model.TokenString, sb.String(), p)
			return nil
		case '\\':
			next, nsize := l.peek()
			if next == '"' || next == '\\' {
				sb.WriteRune(next)
				l.advance(nsize)
				continue
			}
			sb.WriteRune(r)
		default:
			if unicode.IsControl(r) && r != '\t' {
				return &Error{Pos: l.pos(), Reason: fmt.Sprintf("control character %U in string", r)}
			}
			sb.WriteRune(r)
		}
	}
}
