// Package canon implements the deterministic canonicalizer: parse, validate,
// normalize (N1–N7), serialize, hash, sign.
//
// Raw inputs are restricted JSON scenario documents. The canonicalizer maps
// every declared-equivalent description of a scenario to a single byte
// sequence whose content hash is the scenario's state identifier. Production
// of a canonical form is a pure function of the parsed tree: no hidden state,
// no best-effort recovery. Any stage failure is a terminal veto.
package canon

import (
	"sort"
	"strings"
)

// Kind identifies the node type in the scenario tree.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindEntity // "@name" reference, renamed to canonical ids during N2
	KindList   // ordered collection
	KindSet    // unordered collection, input form {"$set": [...]}
	KindRecord // keyed fields
)

// String returns the schema-facing name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindEntity:
		return "entity"
	case KindList:
		return "list"
	case KindSet:
		return "set"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Field is a single keyed entry of a record node.
type Field struct {
	Key   string
	Value *Node
}

// Node is one node of the parsed scenario tree. Exactly the members relevant
// to Kind are populated; the rest stay zero.
type Node struct {
	Kind   Kind
	Fields []Field // KindRecord
	Elems  []*Node // KindList, KindSet
	Str    string  // KindString, KindEntity (entity name without the "@")
	Num    float64 // KindNumber
	Bool   bool    // KindBool
}

// Clone returns a deep copy. Normalization stages operate on copies so the
// input tree is never mutated.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Kind: n.Kind, Str: n.Str, Num: n.Num, Bool: n.Bool}
	if n.Fields != nil {
		out.Fields = make([]Field, len(n.Fields))
		for i, f := range n.Fields {
			out.Fields[i] = Field{Key: f.Key, Value: f.Value.Clone()}
		}
	}
	if n.Elems != nil {
		out.Elems = make([]*Node, len(n.Elems))
		for i, e := range n.Elems {
			out.Elems[i] = e.Clone()
		}
	}
	return out
}

// Field returns the value of the named record field, or nil.
func (n *Node) Field(key string) *Node {
	if n == nil || n.Kind != KindRecord {
		return nil
	}
	for _, f := range n.Fields {
		if f.Key == key {
			return f.Value
		}
	}
	return nil
}

// SetField replaces or appends a record field, keeping keys sorted.
func (n *Node) SetField(key string, value *Node) {
	for i, f := range n.Fields {
		if f.Key == key {
			n.Fields[i].Value = value
			return
		}
	}
	n.Fields = append(n.Fields, Field{Key: key, Value: value})
	sort.Slice(n.Fields, func(i, j int) bool { return n.Fields[i].Key < n.Fields[j].Key })
}

// DropField removes a record field if present.
func (n *Node) DropField(key string) {
	for i, f := range n.Fields {
		if f.Key == key {
			n.Fields = append(n.Fields[:i], n.Fields[i+1:]...)
			return
		}
	}
}

// Equal reports deep structural equality.
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	if n.Kind != other.Kind {
		return false
	}
	switch n.Kind {
	case KindNull:
		return true
	case KindBool:
		return n.Bool == other.Bool
	case KindNumber:
		return n.Num == other.Num
	case KindString, KindEntity:
		return n.Str == other.Str
	case KindList, KindSet:
		if len(n.Elems) != len(other.Elems) {
			return false
		}
		for i := range n.Elems {
			if !n.Elems[i].Equal(other.Elems[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(n.Fields) != len(other.Fields) {
			return false
		}
		for i := range n.Fields {
			if n.Fields[i].Key != other.Fields[i].Key {
				return false
			}
			if !n.Fields[i].Value.Equal(other.Fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// Walk visits the tree depth-first in field/element order.
func (n *Node) Walk(visit func(*Node)) {
	if n == nil {
		return
	}
	visit(n)
	for _, f := range n.Fields {
		f.Value.Walk(visit)
	}
	for _, e := range n.Elems {
		e.Walk(visit)
	}
}

// Record constructs a record node from alternating key/value pairs.
// Test helper-grade constructor; keys are sorted on construction.
func Record(fields ...Field) *Node {
	n := &Node{Kind: KindRecord, Fields: fields}
	sort.Slice(n.Fields, func(i, j int) bool { return n.Fields[i].Key < n.Fields[j].Key })
	return n
}

// Str constructs a string node, interpreting the "@" prefix as an entity
// reference exactly like the parser does.
func Str(s string) *Node {
	if strings.HasPrefix(s, "@") {
		return &Node{Kind: KindEntity, Str: strings.TrimPrefix(s, "@")}
	}
	return &Node{Kind: KindString, Str: s}
}

// Num constructs a number node.
func Num(v float64) *Node { return &Node{Kind: KindNumber, Num: v} }

// Bool constructs a bool node.
func Bool(v bool) *Node { return &Node{Kind: KindBool, Bool: v} }

// List constructs an ordered collection node.
func List(elems ...*Node) *Node { return &Node{Kind: KindList, Elems: elems} }

// Set constructs an unordered collection node.
func Set(elems ...*Node) *Node { return &Node{Kind: KindSet, Elems: elems} }
