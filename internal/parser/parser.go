// Package parser builds a validated plan document from lexer tokens.
package parser

import (
	"strconv"
	"strings"

	"github.com/rcliao/devplan/internal/lexer"
	"github.com/rcliao/devplan/internal/model"
)

// attributeTypes lists the attributes each node kind accepts.
var attributeTypes = map[model.NodeKind]map[string]model.ValueType{
	model.KindMilestone: {
		"date":  model.TypeString,
		"color": model.TypeIdentifier,
	},
	model.KindTask: {
		"duration": model.TypeNumber,
		"start":    model.TypeString,
		"owner":    model.TypeIdentifier,
		"progress": model.TypeNumber,
		"color":    model.TypeIdentifier,
	},
	model.KindDependency: {
		"label": model.TypeString,
	},
	model.KindNote: {
		"author": model.TypeIdentifier,
	},
}

// allowedChildren lists which kinds may be nested under each kind.
var allowedChildren = map[model.NodeKind]map[model.NodeKind]bool{
	model.KindMilestone: {
		model.KindMilestone:  true,
		model.KindTask:       true,
		model.KindNote:       true,
		model.KindDependency: true,
	},
	model.KindTask: {
		model.KindTask:       true,
		model.KindNote:       true,
		model.KindDependency: true,
	},
}

var keywords = map[string]model.NodeKind{
	"milestone":  model.KindMilestone,
	"task":       model.KindTask,
	"dependency": model.KindDependency,
	"note":       model.KindNote,
}

const dependsOn = "depends-on"

// ParseText tokenizes and parses plan text.
func ParseText(text string) (*model.PlanDocument, error) {
	tokens, err := lexer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	return Parse(tokens)
}

// Parse builds a document from tokens and validates its references.
func Parse(tokens []model.Token) (*model.PlanDocument, error) {
	p := &parser{tokens: tokens, ids: map[string]model.Pos{}}
	root, err := p.document()
	if err != nil {
		return nil, err
	}
	doc := &model.PlanDocument{Nodes: freeze(root.children)}
	if err := validate(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// node is the mutable form used while the tree is being assembled.
type node struct {
	model.PlanNode
	children []*node
}

func freeze(nodes []*node) []model.PlanNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]model.PlanNode, len(nodes))
	for i, n := range nodes {
		out[i] = n.PlanNode
		out[i].Children = freeze(n.children)
	}
	return out
}

type level struct {
	indent int
	node   *node
}

type parser struct {
	tokens []model.Token
	pos    int
	ids    map[string]model.Pos
}

func (p *parser) peek() model.Token {
	if p.pos >= len(p.tokens) {
		return model.Token{Kind: model.TokenEOF}
	}
	return p.tokens[p.pos]
}

func (p *parser) peekAt(offset int) model.Token {
	if p.pos+offset >= len(p.tokens) {
		return model.Token{Kind: model.TokenEOF}
	}
	return p.tokens[p.pos+offset]
}

func (p *parser) next() model.Token {
	t := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind model.TokenKind, what string) (model.Token, error) {
	t := p.peek()
	if t.Kind != kind {
		return t, errorf(UnexpectedToken, t.Pos, "expected %s, got %s", what, describe(t))
	}
	return p.next(), nil
}

func describe(t model.Token) string {
	if t.Lexeme == "" {
		return t.Kind.String()
	}
	return t.Kind.String() + " " + strconv.Quote(t.Lexeme)
}

// document parses all lines, attaching each statement to its parent based on
// indentation. Indentation is measured from the first statement's column, and
// any line at or left of that column is top level.
func (p *parser) document() (*node, error) {
	root := &node{}
	stack := []level{{indent: -1, node: root}}
	base := -1

	for p.peek().Kind != model.TokenEOF {
		width := 0
		linePos := p.peek().Pos
		if p.peek().Kind == model.TokenIndent {
			width = len(p.next().Lexeme)
		}
		if base < 0 {
			base = width
		}
		width = max(width-base, 0)

		n, err := p.statement()
		if err != nil {
			return nil, err
		}

		top := stack[len(stack)-1]
		if width <= top.indent {
			for len(stack) > 1 && stack[len(stack)-1].indent > width {
				stack = stack[:len(stack)-1]
			}
			if stack[len(stack)-1].indent != width {
				return nil, errorf(InvalidIndent, linePos, "indentation does not match any enclosing level")
			}
			stack = stack[:len(stack)-1]
		}

		parent := stack[len(stack)-1].node
		if parent != root && !allowedChildren[parent.Kind][n.Kind] {
			return nil, errorf(InvalidNesting, n.Pos, "%s cannot be nested under %s", n.Kind, parent.Kind)
		}
		parent.children = append(parent.children, n)
		stack = append(stack, level{indent: width, node: n})
	}
	return root, nil
}

func (p *parser) statement() (*node, error) {
	kw := p.peek()
	if kw.Kind != model.TokenIdent {
		return nil, errorf(UnexpectedToken, kw.Pos, "expected node keyword, got %s", describe(kw))
	}
	kind, ok := keywords[strings.ToLower(kw.Lexeme)]
	if !ok {
		return nil, errorf(UnknownNodeType, kw.Pos, "unknown node type %q", kw.Lexeme)
	}
	p.next()

	var (
		n   *node
		err error
	)
	switch kind {
	case model.KindMilestone, model.KindTask:
		n, err = p.declaration(kind, kw.Pos)
	case model.KindDependency:
		n, err = p.dependency(kw.Pos)
	case model.KindNote:
		n, err = p.note(kw.Pos)
	}
	if err != nil {
		return nil, err
	}

	if err := p.attributes(n); err != nil {
		return nil, err
	}
	if _, err := p.expect(model.TokenNewline, "end of line"); err != nil {
		return nil, err
	}
	return n, nil
}

// reference reads an identifier naming a task or milestone. Bare numbers are
// accepted so plans can use "Task 1".
func (p *parser) reference(what string) (model.Token, error) {
	t := p.peek()
	if t.Kind != model.TokenIdent && t.Kind != model.TokenNumber {
		return t, errorf(UnexpectedToken, t.Pos, "expected %s, got %s", what, describe(t))
	}
	return p.next(), nil
}

func (p *parser) declaration(kind model.NodeKind, pos model.Pos) (*node, error) {
	id, err := p.reference(string(kind) + " identifier")
	if err != nil {
		return nil, err
	}
	if prev, dup := p.ids[id.Lexeme]; dup {
		e := errorf(DuplicateIdentifier, id.Pos, "%q already declared at %s", id.Lexeme, prev)
		e.ReferencedID = id.Lexeme
		return nil, e
	}
	p.ids[id.Lexeme] = id.Pos

	n := &node{PlanNode: model.PlanNode{Kind: kind, ID: id.Lexeme, Pos: pos}}
	if p.peek().Kind == model.TokenString {
		label := p.next()
		n.Attributes = append(n.Attributes, model.Attribute{
			Key:   "label",
			Value: model.Value{Type: model.TypeString, Text: label.Lexeme},
		})
	}

	if kind == model.KindTask && p.isDependsOn() {
		clause := p.next()
		for {
			ref, err := p.reference("dependency identifier")
			if err != nil {
				return nil, err
			}
			n.children = append(n.children, &node{PlanNode: model.PlanNode{
				Kind: model.KindDependency,
				Pos:  clause.Pos,
				Attributes: []model.Attribute{
					{Key: "from", Value: model.Value{Type: model.TypeIdentifier, Text: id.Lexeme}},
					{Key: "to", Value: model.Value{Type: model.TypeIdentifier, Text: ref.Lexeme}},
				},
			}})
			if p.peek().Kind != model.TokenComma {
				break
			}
			p.next()
		}
	}
	return n, nil
}

func (p *parser) isDependsOn() bool {
	t := p.peek()
	return t.Kind == model.TokenIdent && strings.EqualFold(t.Lexeme, dependsOn) &&
		p.peekAt(1).Kind != model.TokenEquals
}

func (p *parser) dependency(pos model.Pos) (*node, error) {
	from, err := p.reference("dependent identifier")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(model.TokenArrow, "'->'"); err != nil {
		return nil, err
	}
	to, err := p.reference("prerequisite identifier")
	if err != nil {
		return nil, err
	}
	return &node{PlanNode: model.PlanNode{
		Kind: model.KindDependency,
		Pos:  pos,
		Attributes: []model.Attribute{
			{Key: "from", Value: model.Value{Type: model.TypeIdentifier, Text: from.Lexeme}},
			{Key: "to", Value: model.Value{Type: model.TypeIdentifier, Text: to.Lexeme}},
		},
	}}, nil
}

func (p *parser) note(pos model.Pos) (*node, error) {
	text, err := p.expect(model.TokenString, "note text")
	if err != nil {
		return nil, err
	}
	return &node{PlanNode: model.PlanNode{
		Kind: model.KindNote,
		Pos:  pos,
		Attributes: []model.Attribute{
			{Key: "text", Value: model.Value{Type: model.TypeString, Text: text.Lexeme}},
		},
	}}, nil
}

// attributes reads key=value pairs up to the end of the line and checks each
// against the node kind's attribute table.
func (p *parser) attributes(n *node) error {
	known := attributeTypes[n.Kind]
	for p.peek().Kind == model.TokenIdent {
		keyTok := p.next()
		if _, err := p.expect(model.TokenEquals, "'=' after "+strconv.Quote(keyTok.Lexeme)); err != nil {
			return err
		}
		key := keyTok.Lexeme
		want, ok := known[key]
		if !ok {
			e := errorf(UnknownAttribute, keyTok.Pos, "%s does not accept attribute %q", n.Kind, key)
			e.Key = key
			return e
		}
		if _, dup := n.Attr(key); dup {
			e := errorf(DuplicateAttribute, keyTok.Pos, "attribute %q given twice", key)
			e.Key = key
			return e
		}

		valTok := p.next()
		val, got := toValue(valTok)
		if got == "" {
			return errorf(UnexpectedToken, valTok.Pos, "expected value for %q, got %s", key, describe(valTok))
		}
		if got != want {
			e := errorf(AttributeTypeMismatch, valTok.Pos, "attribute %q expects %s, got %s", key, want, got)
			e.Key = key
			return e
		}
		n.Attributes = append(n.Attributes, model.Attribute{Key: key, Value: val})
	}
	return nil
}

func toValue(t model.Token) (model.Value, model.ValueType) {
	switch t.Kind {
	case model.TokenString:
		return model.Value{Type: model.TypeString, Text: t.Lexeme}, model.TypeString
	case model.TokenIdent:
		return model.Value{Type: model.TypeIdentifier, Text: t.Lexeme}, model.TypeIdentifier
	case model.TokenNumber:
		f, err := strconv.ParseFloat(t.Lexeme, 64)
		if err != nil {
			return model.Value{}, ""
		}
		return model.Value{Type: model.TypeNumber, Text: t.Lexeme, Number: f}, model.TypeNumber
	}
	return model.Value{}, ""
}
