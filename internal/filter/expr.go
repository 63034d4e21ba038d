// Package filter evaluates the boolean filter expressions attached to a
// relationship panel.
package filter

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Expr is a filter expression. The set of implementations is closed:
// All, Any, Not, TypeIn, TypeEq, PathCompare and Invalid.
type Expr interface {
	exprNode()
}

// All is true when every child is true. An empty All is true.
type All struct {
	Children []Expr
}

// Any is true when at least one child is true. An empty Any is false.
type Any struct {
	Children []Expr
}

// Not negates its child.
type Not struct {
	Child Expr
}

// TypeIn is true when the note's normalized type is one of Types.
type TypeIn struct {
	Types []string
}

// TypeEq is true when the note's normalized type equals Type.
type TypeEq struct {
	Type string
}

// Op is a PathCompare operator.
type Op int

const (
	OpEq Op = iota
	OpGt
)

func (op Op) String() string {
	if op == OpGt {
		return "gt"
	}
	return "eq"
}

// PathCompare compares the value at a dotted metadata path. A trailing
// ".length" segment addresses the count of the value at the parent path.
type PathCompare struct {
	Path  string
	Op    Op
	Value any
}

// Invalid is a malformed expression. It evaluates to true.
type Invalid struct {
	Reason string
}

func (All) exprNode()         {}
func (Any) exprNode()         {}
func (Not) exprNode()         {}
func (TypeIn) exprNode()      {}
func (TypeEq) exprNode()      {}
func (PathCompare) exprNode() {}
func (Invalid) exprNode()     {}

// Node wraps an Expr so it can be decoded from entity configuration.
// Decoding never fails: malformed shapes decode to Invalid.
type Node struct {
	Expr Expr
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		n.Expr = Invalid{Reason: err.Error()}
		return nil
	}
	n.Expr = Decode(raw)
	return nil
}

// Decode builds an Expr from a generic decoded value:
//
//	{all: [...]} {any: [...]} {not: {...}}
//	{type: person}              TypeEq
//	{type: [person, company]}   TypeIn
//	{type: {in: [...]}} {type: {eq: x}}
//	{status: open}              PathCompare eq
//	{participants.length: {gt: 1}}
//
// A map with several keys is an implicit All.
func Decode(raw any) Expr {
	m, ok := raw.(map[string]any)
	if !ok {
		return Invalid{Reason: fmt.Sprintf("expected a mapping, got %T", raw)}
	}
	if len(m) == 0 {
		return All{}
	}

	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return decodeKey(keys[0], m[keys[0]])
	}
	children := make([]Expr, 0, len(keys))
	for _, k := range keys {
		children = append(children, decodeKey(k, m[k]))
	}
	return All{Children: children}
}

func decodeKey(key string, v any) Expr {
	switch key {
	case "all", "any":
		items, ok := v.([]any)
		if !ok {
			return Invalid{Reason: fmt.Sprintf("%s: expected a list", key)}
		}
		children := make([]Expr, 0, len(items))
		for _, item := range items {
			children = append(children, Decode(item))
		}
		if key == "all" {
			return All{Children: children}
		}
		return Any{Children: children}
	case "not":
		return Not{Child: Decode(v)}
	case "type":
		return decodeType(v)
	}
	return decodeCompare(key, v)
}

func decodeType(v any) Expr {
	switch vv := v.(type) {
	case string:
		return TypeEq{Type: vv}
	case []any:
		return TypeIn{Types: stringList(vv)}
	case map[string]any:
		if in, ok := vv["in"]; ok && len(vv) == 1 {
			switch list := in.(type) {
			case []any:
				return TypeIn{Types: stringList(list)}
			case string:
				return TypeIn{Types: []string{list}}
			}
		}
		if eq, ok := vv["eq"].(string); ok && len(vv) == 1 {
			return TypeEq{Type: eq}
		}
	}
	return Invalid{Reason: fmt.Sprintf("type: unsupported condition %v", v)}
}

func decodeCompare(path string, v any) Expr {
	path = strings.TrimSpace(path)
	if path == "" {
		return Invalid{Reason: "empty path"}
	}
	cond, ok := v.(map[string]any)
	if !ok {
		return PathCompare{Path: path, Op: OpEq, Value: v}
	}
	if len(cond) != 1 {
		return Invalid{Reason: fmt.Sprintf("%s: expected one operator", path)}
	}
	for op, value := range cond {
		switch op {
		case "eq":
			return PathCompare{Path: path, Op: OpEq, Value: value}
		case "gt":
			return PathCompare{Path: path, Op: OpGt, Value: value}
		}
		return Invalid{Reason: fmt.Sprintf("%s: unknown operator %q", path, op)}
	}
	return Invalid{Reason: path}
}

func stringList(items []any) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
