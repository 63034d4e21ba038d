// Package template renders the title and attribute templates of a creation
// recipe against a host note.
//
// Tokens are written in single braces:
//
//	{@this}         wikilink to the host note
//	{@this.prop}    the host's raw value for prop
//	{show}          the host's display title
//	{date}          now as YYYY-MM-DD
//	{datetime}      now as YYYY-MM-DDTHH:MM
//	{YYYY} {YY} {MM} {DD} {hh} {mm}
//
// Date tokens are case-insensitive except {MM} (month) and {mm} (minute),
// which are told apart by case. Unknown tokens are left as written.
package template

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/marcopeg/mondo-sub000/internal/dates"
	"github.com/marcopeg/mondo-sub000/internal/links"
	"github.com/marcopeg/mondo-sub000/internal/merge"
	"github.com/marcopeg/mondo-sub000/internal/model"
)

const thisToken = "@this"

var tokenRegex = regexp.MustCompile(`\{([^{}\s]+)\}`)

// Context is the input a template is rendered against.
type Context struct {
	Host model.Note
	Now  time.Time
}

// Render renders a template value. Strings are substituted, arrays and maps
// are walked recursively, other scalars pass through. ok is false when the
// value should be dropped: a whole-string {@this.prop} token whose property
// the host does not have.
func Render(value any, ctx Context) (any, bool) {
	switch v := value.(type) {
	case nil:
		return nil, true
	case string:
		return renderString(v, ctx)
	case []string:
		return Render(model.Clone(v), ctx)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			rendered, ok := Render(item, ctx)
			if !ok {
				continue
			}
			if s, isString := item.(string); isString && isWholePropertyToken(s) {
				if arr, isArray := rendered.([]any); isArray {
					out = append(out, arr...)
					continue
				}
			}
			out = append(out, rendered)
		}
		return out, true
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			if rendered, ok := Render(item, ctx); ok {
				out[key] = rendered
			}
		}
		return out, true
	default:
		return v, true
	}
}

// RenderTitle renders a title template to a single line of text.
func RenderTitle(tpl string, ctx Context) string {
	v, ok := renderString(tpl, ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(model.Stringify(v))
}

// RenderAttributes renders every attribute template, dropping unresolved
// values and the reserved identity keys.
func RenderAttributes(attrs map[string]any, ctx Context) map[string]any {
	out := make(map[string]any, len(attrs))
	for key, tpl := range attrs {
		if merge.IsReserved(key) {
			continue
		}
		if v, ok := Render(tpl, ctx); ok {
			out[key] = v
		}
	}
	return out
}

func renderString(s string, ctx Context) (any, bool) {
	if m := tokenRegex.FindStringSubmatch(s); m != nil && m[0] == s {
		if prop, isProp := propertyName(m[1]); isProp {
			v, found := hostProperty(ctx.Host, prop)
			if !found {
				return nil, false
			}
			return model.Clone(v), true
		}
	}

	return tokenRegex.ReplaceAllStringFunc(s, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if prop, isProp := propertyName(name); isProp {
			v, _ := hostProperty(ctx.Host, prop)
			return model.Stringify(v)
		}
		if out, ok := builtin(name, ctx); ok {
			return out
		}
		return tok
	}), true
}

func isWholePropertyToken(s string) bool {
	m := tokenRegex.FindStringSubmatch(s)
	if m == nil || m[0] != s {
		return false
	}
	_, isProp := propertyName(m[1])
	return isProp
}

// propertyName extracts prop from "@this.prop".
func propertyName(name string) (string, bool) {
	prop, ok := strings.CutPrefix(name, thisToken+".")
	if !ok || prop == "" {
		return "", false
	}
	return prop, true
}

// hostProperty reads prop from the host. "show" falls back to the display
// title so a recipe can always name the host.
func hostProperty(host model.Note, prop string) (any, bool) {
	if v, ok := host.Get(prop); ok && v != nil {
		return v, true
	}
	if prop == model.ShowKey && host.ID != "" {
		return host.Title(), true
	}
	return nil, false
}

func builtin(name string, ctx Context) (string, bool) {
	now := ctx.Now
	switch name {
	case thisToken:
		if ctx.Host.ID == "" {
			return "", true
		}
		return links.Link(ctx.Host.ID), true
	case "MM":
		return fmt.Sprintf("%02d", int(now.Month())), true
	case "mm":
		return fmt.Sprintf("%02d", now.Minute()), true
	}

	switch strings.ToLower(name) {
	case "show":
		return ctx.Host.Title(), true
	case "date":
		return dates.FormatDate(now), true
	case "datetime":
		return dates.FormatDatetime(now), true
	case "yyyy":
		return fmt.Sprintf("%04d", now.Year()), true
	case "yy":
		return fmt.Sprintf("%02d", now.Year()%100), true
	case "dd":
		return fmt.Sprintf("%02d", now.Day()), true
	case "hh":
		return fmt.Sprintf("%02d", now.Hour()), true
	}
	return "", false
}
