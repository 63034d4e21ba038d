// Package query evaluates relationship queries: ordered lists of traversal
// steps run against a corpus snapshot and a host note.
package query

import (
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Step is one operation in a clause. The set of implementations is closed:
// In, Out, NotIn, Unique, Not and Invalid.
type Step interface {
	stepNode()
}

// In discovers notes whose Properties reference the anchor. No properties
// means any property.
type In struct {
	Properties []string
	Types      []string
}

// Out discovers the existing notes the anchor references via Properties.
type Out struct {
	Properties []string
	Types      []string
}

// NotIn discovers like In, then drops notes whose type is in Types. The
// anchor's own references via Properties are discovered too.
type NotIn struct {
	Properties []string
	Types      []string
}

// Unique drops repeated notes from the working set, keeping the first.
type Unique struct{}

// Marker names what a Not step removes.
type Marker string

const MarkerHost Marker = "host"

// Not removes the host note from the working set.
type Not struct {
	Marker Marker
}

// Invalid is a malformed step. It leaves the working set unchanged.
type Invalid struct {
	Reason string
}

func (In) stepNode()      {}
func (Out) stepNode()     {}
func (NotIn) stepNode()   {}
func (Unique) stepNode()  {}
func (Not) stepNode()     {}
func (Invalid) stepNode() {}

// Clause is one alternative traversal path.
type Clause struct {
	Steps []Step
}

// Combine is how clause results are joined. Only union is supported.
const CombineUnion = "union"

// StepNode wraps a Step for decoding from entity configuration. Decoding
// never fails: malformed shapes decode to Invalid.
type StepNode struct {
	Step Step
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (n *StepNode) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		n.Step = Invalid{Reason: err.Error()}
		return nil
	}
	n.Step = DecodeStep(raw)
	return nil
}

// ClauseNode is the configuration form of a Clause: {steps: [...]}.
type ClauseNode struct {
	Steps []StepNode `yaml:"steps"`
}

// Clause converts the decoded node to a Clause.
func (c ClauseNode) Clause() Clause {
	steps := make([]Step, 0, len(c.Steps))
	for _, s := range c.Steps {
		steps = append(steps, s.Step)
	}
	return Clause{Steps: steps}
}

// DecodeStep builds a Step from a generic decoded value:
//
//	{in: {property: company, type: person}}
//	{out: {property: [team], type: [team]}}
//	{notIn: {property: linksTo, type: [task, person]}}
//	{unique: true}    or the bare string "unique"
//	{not: host}       or the bare string "not"
func DecodeStep(raw any) Step {
	if s, ok := raw.(string); ok {
		switch strings.TrimSpace(s) {
		case "unique":
			return Unique{}
		case "not":
			return Not{Marker: MarkerHost}
		}
		return Invalid{Reason: fmt.Sprintf("unknown step %q", s)}
	}

	m, ok := raw.(map[string]any)
	if !ok || len(m) != 1 {
		return Invalid{Reason: fmt.Sprintf("expected a single-key mapping, got %v", raw)}
	}
	for kind, body := range m {
		switch kind {
		case "in", "out", "notIn":
			props, types, err := decodeTraversal(body)
			if err != nil {
				return Invalid{Reason: kind + ": " + err.Error()}
			}
			switch kind {
			case "in":
				return In{Properties: props, Types: types}
			case "out":
				return Out{Properties: props, Types: types}
			default:
				return NotIn{Properties: props, Types: types}
			}
		case "unique":
			return Unique{}
		case "not":
			marker := body
			if bm, isMap := body.(map[string]any); isMap {
				marker = bm["marker"]
			}
			if s, isString := marker.(string); isString && Marker(strings.TrimSpace(s)) == MarkerHost {
				return Not{Marker: MarkerHost}
			}
			return Invalid{Reason: fmt.Sprintf("not: unsupported marker %v", marker)}
		}
		return Invalid{Reason: fmt.Sprintf("unknown step %q", kind)}
	}
	return Invalid{Reason: "empty step"}
}

func decodeTraversal(body any) (props, types []string, err error) {
	m, ok := body.(map[string]any)
	if !ok {
		return nil, nil, fmt.Errorf("expected a mapping")
	}
	for key := range m {
		switch key {
		case "property", "properties", "type":
		default:
			return nil, nil, fmt.Errorf("unknown field %q", key)
		}
	}
	props = names(m["property"])
	if len(props) == 0 {
		props = names(m["properties"])
	}
	types = names(m["type"])
	return props, types, nil
}

// names reads a string or a list of strings, trimmed, blanks dropped.
func names(v any) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	switch vv := v.(type) {
	case string:
		add(vv)
	case []any:
		for _, item := range vv {
			if s, ok := item.(string); ok {
				add(s)
			}
		}
	}
	return out
}

// String renders a step for logs.
func String(s Step) string {
	switch x := s.(type) {
	case In:
		return traversalString("in", x.Properties, x.Types)
	case Out:
		return traversalString("out", x.Properties, x.Types)
	case NotIn:
		return traversalString("notIn", x.Properties, x.Types)
	case Unique:
		return "unique"
	case Not:
		return "not(" + string(x.Marker) + ")"
	case Invalid:
		return "invalid(" + x.Reason + ")"
	}
	return fmt.Sprintf("%T", s)
}

func traversalString(kind string, props, types []string) string {
	t := append([]string(nil), types...)
	sort.Strings(t)
	return fmt.Sprintf("%s(%s; %s)", kind, strings.Join(props, ","), strings.Join(t, ","))
}
