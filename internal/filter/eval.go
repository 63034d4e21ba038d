package filter

import (
	"strings"

	"go.uber.org/zap"

	"github.com/marcopeg/mondo-sub000/internal/model"
)

const lengthSuffix = ".length"

// Evaluator matches notes against expressions, logging malformed ones.
type Evaluator struct {
	log *zap.Logger
}

// New returns an Evaluator. A nil logger discards output.
func New(log *zap.Logger) *Evaluator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Evaluator{log: log}
}

// Matches reports whether n satisfies expr. A nil expression matches.
func Matches(n model.Note, expr Expr) bool {
	return New(nil).Matches(n, expr)
}

// Matches reports whether n satisfies expr. A nil expression matches.
func (e *Evaluator) Matches(n model.Note, expr Expr) bool {
	switch x := expr.(type) {
	case nil:
		return true
	case All:
		for _, child := range x.Children {
			if !e.Matches(n, child) {
				return false
			}
		}
		return true
	case Any:
		for _, child := range x.Children {
			if e.Matches(n, child) {
				return true
			}
		}
		return false
	case Not:
		return !e.Matches(n, x.Child)
	case TypeIn:
		return n.HasType(x.Types) && len(x.Types) > 0
	case TypeEq:
		return n.NormalizedType() == model.NormalizeType(x.Type)
	case PathCompare:
		return comparePath(n.Metadata, x)
	case Invalid:
		e.log.Warn("ignoring invalid filter expression",
			zap.String("expr", x.Reason),
			zap.String("note", n.ID))
		return true
	}
	e.log.Warn("ignoring unknown filter expression", zap.String("note", n.ID))
	return true
}

func comparePath(metadata map[string]any, pc PathCompare) bool {
	var actual any
	if parent, ok := strings.CutSuffix(pc.Path, lengthSuffix); ok {
		v, found := lookupPath(metadata, parent)
		actual = countOf(v, found)
	} else {
		v, found := lookupPath(metadata, pc.Path)
		if !found {
			v = nil
		}
		actual = v
	}

	switch pc.Op {
	case OpGt:
		if actual == nil || pc.Value == nil {
			return false
		}
		return compareValues(actual, pc.Value) > 0
	default:
		if arr, ok := actual.([]any); ok {
			if _, wantArray := pc.Value.([]any); !wantArray {
				for _, item := range arr {
					if compareValues(item, pc.Value) == 0 {
						return true
					}
				}
				return false
			}
		}
		return compareValues(actual, pc.Value) == 0
	}
}

// lookupPath walks a dotted path through nested maps.
func lookupPath(metadata map[string]any, path string) (any, bool) {
	if v, ok := metadata[path]; ok {
		return v, true
	}
	var cur any = metadata
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// countOf is the .length of a value: array size, 1 for a present scalar,
// 0 when absent.
func countOf(v any, found bool) int {
	if !found || v == nil {
		return 0
	}
	switch vv := v.(type) {
	case []any:
		return len(vv)
	case []string:
		return len(vv)
	}
	return 1
}
