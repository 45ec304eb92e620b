package lexer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/rcliao/devplan/internal/model"
)

func kinds(tokens []model.Token) []model.TokenKind {
	out := make([]model.TokenKind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

func TestTokenize_EmptyInput(t *testing.T) {
	tokens, err := Tokenize("")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) != 1 || tokens[0].Kind != model.TokenEOF {
		t.Errorf("expected only EOF, got %v", tokens)
	}
}

func TestTokenize_TaskWithDependency(t *testing.T) {
	tokens, err := Tokenize("Task A\nTask B depends-on A")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []model.TokenKind{
		model.TokenIdent, model.TokenIdent, model.TokenNewline,
		model.TokenIdent, model.TokenIdent, model.TokenIdent, model.TokenIdent, model.TokenNewline,
		model.TokenEOF,
	}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if tokens[5].Lexeme != "depends-on" {
		t.Errorf("expected depends-on as one identifier, got %q", tokens[5].Lexeme)
	}
	if tokens[3].Pos.Line != 2 || tokens[3].Pos.Column != 1 {
		t.Errorf("second Task at %s, want 2:1", tokens[3].Pos)
	}
}

func TestTokenize_ValuesAndPunctuation(t *testing.T) {
	tokens, err := Tokenize(`Task api "Design \"API\"" duration=5 start=2025-01-31 progress=12.5`)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}

	tests := []struct {
		idx    int
		kind   model.TokenKind
		lexeme string
	}{
		{2, model.TokenString, `Design "API"`},
		{3, model.TokenIdent, "duration"},
		{4, model.TokenEquals, "="},
		{5, model.TokenNumber, "5"},
		{8, model.TokenIdent, "2025-01-31"},
		{11, model.TokenNumber, "12.5"},
	}
	for _, tt := range tests {
		got := tokens[tt.idx]
		if got.Kind != tt.kind || got.Lexeme != tt.lexeme {
			t.Errorf("token %d = %v %q, want %v %q", tt.idx, got.Kind, got.Lexeme, tt.kind, tt.lexeme)
		}
	}
}

func TestTokenize_ArrowSplitsWords(t *testing.T) {
	tokens, err := Tokenize("Dependency b->a")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []model.TokenKind{model.TokenIdent, model.TokenIdent, model.TokenArrow, model.TokenIdent, model.TokenNewline, model.TokenEOF}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Errorf("kinds = %v, want %v", got, want)
	}
}

func TestTokenize_IndentCommentsAndBlankLines(t *testing.T) {
	text := "# plan\n\nMilestone m1\n  Task a # inline\n\tNote \"x\"\n   \n"
	tokens, err := Tokenize(text)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	want := []model.TokenKind{
		model.TokenIdent, model.TokenIdent, model.TokenNewline,
		model.TokenIndent, model.TokenIdent, model.TokenIdent, model.TokenNewline,
		model.TokenIndent, model.TokenIdent, model.TokenString, model.TokenNewline,
		model.TokenEOF,
	}
	if got := kinds(tokens); !reflect.DeepEqual(got, want) {
		t.Fatalf("kinds = %v, want %v", got, want)
	}
	if tokens[3].Lexeme != "  " {
		t.Errorf("indent = %q, want two spaces", tokens[3].Lexeme)
	}
	if len(tokens[7].Lexeme) != TabWidth {
		t.Errorf("tab indent width = %d, want %d", len(tokens[7].Lexeme), TabWidth)
	}
	if tokens[0].Pos.Line != 3 {
		t.Errorf("first token line = %d, want 3", tokens[0].Pos.Line)
	}
}

func TestTokenize_CRLF(t *testing.T) {
	tokens, err := Tokenize("Task a\r\nTask b\r\n")
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	if len(tokens) != 7 {
		t.Fatalf("expected 7 tokens, got %d: %v", len(tokens), tokens)
	}
	if tokens[3].Pos.Line != 2 {
		t.Errorf("line = %d, want 2", tokens[3].Pos.Line)
	}
}

func TestTokenize_Errors(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		line   int
		column int
	}{
		{"brace", "Task a {", 1, 8},
		{"semicolon", "Task a;", 1, 7},
		{"lone dash", "Task - a", 1, 6},
		{"lone gt", "Task a > b", 1, 8},
		{"unterminated string", "Task a \"oops\nTask b", 1, 8},
		{"control character", "Task a\x01", 1, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			var lexErr *Error
			if !errors.As(err, &lexErr) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if lexErr.Pos.Line != tt.line || lexErr.Pos.Column != tt.column {
				t.Errorf("error at %s, want %d:%d", lexErr.Pos, tt.line, tt.column)
			}
		})
	}
}

func TestTokenize_UnusualInputStillTokenizes(t *testing.T) {
	inputs := []string{
		"Task Task Task",
		"= = , ,",
		"123 4.5 6.",
		"Frobnicate x y z",
		"Ünïcödé_ident \"ß\"",
	}
	for _, in := range inputs {
		if _, err := Tokenize(in); err != nil {
			t.Errorf("Tokenize(%q) = %v, want no error", in, err)
		}
	}
}

func TestTokenize_Deterministic(t *testing.T) {
	text := "Milestone m \"M\" date=\"2025-02-01\"\n  Task a duration=3\n  Task b depends-on a, m\n"
	first, err := Tokenize(text)
	if err != nil {
		t.Fatalf("tokenize: %v", err)
	}
	second, _ := Tokenize(text)
	if !reflect.DeepEqual(first, second) {
		t.Error("tokenizing the same text twice gave different tokens")
	}
}
