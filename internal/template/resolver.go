// Package template resolves named prompt templates against per-request
// variable sets. Everything in here is a pure string transform: no I/O, no
// side effects, byte-identical output for identical input.
package template

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"creatorlab/internal/domain"
)

var placeholderRegexp = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Resolved is the outcome of filling a template's prompt bodies.
type Resolved struct {
	SystemPrompt string
	UserPrompt   string
}

// Placeholders extracts every {{identifier}} referenced in text, deduplicated,
// in first-seen order.
func Placeholders(text string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, match := range placeholderRegexp.FindAllStringSubmatch(text, -1) {
		name := match[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// TemplateVariables lists the variables referenced by either prompt body of
// the template, deduplicated across both, first-seen order preserved.
func TemplateVariables(tpl domain.PromptTemplate) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, name := range append(Placeholders(tpl.SystemPrompt), Placeholders(tpl.UserPrompt)...) {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Resolve substitutes the variable set into both prompt bodies. A referenced
// variable that is absent resolves to an empty string when its spec marks it
// optional, and fails with MissingVariableError otherwise. Variables the
// template does not declare are treated as required.
func Resolve(tpl domain.PromptTemplate, vars map[string]any) (Resolved, error) {
	for _, name := range TemplateVariables(tpl) {
		if _, ok := vars[name]; ok {
			continue
		}
		spec, declared := tpl.VariableByName(name)
		if declared && !spec.Required {
			continue
		}
		return Resolved{}, &domain.MissingVariableError{Template: tpl.ID, Variable: name}
	}

	return Resolved{
		SystemPrompt: substitute(tpl.SystemPrompt, vars),
		UserPrompt:   substitute(tpl.UserPrompt, vars),
	}, nil
}

func substitute(text string, vars map[string]any) string {
	return placeholderRegexp.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholderRegexp.FindStringSubmatch(match)[1]
		value, ok := vars[name]
		if !ok {
			return ""
		}
		return Stringify(value)
	})
}

// Stringify renders a variable value the way prompts expect it: strings
// verbatim, slices joined with ", ", numbers without exponent notation.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, 0, len(v))
		for _, item := range v {
			parts = append(parts, Stringify(item))
		}
		return strings.Join(parts, ", ")
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
