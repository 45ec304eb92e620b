// Package model defines the core plan, render and artifact data types.
package model

import (
	"fmt"
	"strconv"
)

// Pos is a location in plan source text.
type Pos struct {
	Line   int `json:"line" yaml:"line"`
	Column int `json:"column" yaml:"column"`
	Offset int `json:"-" yaml:"-"`
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// TokenKind classifies a lexeme.
type TokenKind int

const (
	TokenEOF TokenKind = iota
	TokenIdent
	TokenNumber
	TokenString
	TokenEquals
	TokenComma
	TokenArrow
	TokenIndent
	TokenNewline
)

var tokenNames = map[TokenKind]string{
	TokenEOF:     "EOF",
	TokenIdent:   "identifier",
	TokenNumber:  "number",
	TokenString:  "string",
	TokenEquals:  "'='",
	TokenComma:   "','",
	TokenArrow:   "'->'",
	TokenIndent:  "indent",
	TokenNewline: "newline",
}

func (k TokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return "token(" + strconv.Itoa(int(k)) + ")"
}

// Token is a single lexeme. For strings, Lexeme holds the unescaped text.
type Token struct {
	Kind   TokenKind
	Lexeme string
	Pos    Pos
}

// NodeKind is the closed set of plan elements.
type NodeKind string

const (
	KindMilestone  NodeKind = "milestone"
	KindTask       NodeKind = "task"
	KindDependency NodeKind = "dependency"
	KindNote       NodeKind = "note"
)

// ValidKinds are the allowed node kinds.
var ValidKinds = map[NodeKind]bool{
	KindMilestone:  true,
	KindTask:       true,
	KindDependency: true,
	KindNote:       true,
}

// ValueType is the declared type of an attribute value.
type ValueType string

const (
	TypeString     ValueType = "string"
	TypeNumber     ValueType = "number"
	TypeIdentifier ValueType = "identifier"
)

// Value is a typed attribute value.
type Value struct {
	Type   ValueType `json:"type" yaml:"type"`
	Text   string    `json:"text" yaml:"text"`
	Number float64   `json:"number,omitempty" yaml:"number,omitempty"`
}

// Attribute is one key=value pair on a node.
type Attribute struct {
	Key   string `json:"key" yaml:"key"`
	Value Value  `json:"value" yaml:"value"`
}

// PlanNode is one element of a plan document.
type PlanNode struct {
	Kind       NodeKind    `json:"kind" yaml:"kind"`
	ID         string      `json:"id,omitempty" yaml:"id,omitempty"`
	Attributes []Attribute `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Children   []PlanNode  `json:"children,omitempty" yaml:"children,omitempty"`
	Pos        Pos         `json:"pos" yaml:"pos"`
}

// Attr returns the attribute value for key.
func (n *PlanNode) Attr(key string) (Value, bool) {
	for _, a := range n.Attributes {
		if a.Key == key {
			return a.Value, true
		}
	}
	return Value{}, false
}

// AttrText returns the text of an attribute, or "" when absent.
func (n *PlanNode) AttrText(key string) string {
	v, _ := n.Attr(key)
	return v.Text
}

// Label is the display text of a task or milestone, falling back to its ID.
func (n *PlanNode) Label() string {
	if l := n.AttrText("label"); l != "" {
		return l
	}
	return n.ID
}

// PlanDocument is the root of a parsed plan.
type PlanDocument struct {
	Nodes []PlanNode `json:"nodes" yaml:"nodes"`
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func (d *PlanDocument) Walk(fn func(n *PlanNode, depth int) bool) {
	var walk func(nodes []PlanNode, depth int)
	walk = func(nodes []PlanNode, depth int) {
		for i := range nodes {
			if fn(&nodes[i], depth) {
				walk(nodes[i].Children, depth+1)
			}
		}
	}
	walk(d.Nodes, 0)
}

// Visit calls fn for every node in pre-order along with its enclosing node,
// which is nil at the top level.
func (d *PlanDocument) Visit(fn func(n, parent *PlanNode)) {
	var visit func(nodes []PlanNode, parent *PlanNode)
	visit = func(nodes []PlanNode, parent *PlanNode) {
		for i := range nodes {
			fn(&nodes[i], parent)
			visit(nodes[i].Children, &nodes[i])
		}
	}
	visit(d.Nodes, nil)
}

// Count returns how many nodes of the given kind the document holds.
func (d *PlanDocument) Count(kind NodeKind) int {
	n := 0
	d.Walk(func(node *PlanNode, _ int) bool {
		if node.Kind == kind {
			n++
		}
		return true
	})
	return n
}

// Find returns the task or milestone declared with id.
func (d *PlanDocument) Find(id string) *PlanNode {
	var found *PlanNode
	d.Walk(func(node *PlanNode, _ int) bool {
		if found == nil && node.ID == id && (node.Kind == KindTask || node.Kind == KindMilestone) {
			found = node
		}
		return found == nil
	})
	return found
}
