// Package template implements the bespoke {{path}} substitution engine the
// flow core renders action config against: dot-path lookup with bracket
// array indices, JSON-in-string re-entry, whole-string vs interpolation
// substitution modes, and typed validation/coercion.
package template

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/flowcore/runner/engine/core"
)

// FieldType is the expected shape of a rendered variable, used to validate
// and coerce the resolved value before substitution.
type FieldType string

const (
	FieldString  FieldType = "string"
	FieldNumber  FieldType = "number"
	FieldBoolean FieldType = "boolean"
	FieldObject  FieldType = "object"
	FieldArray   FieldType = "array"
	FieldNull    FieldType = "null"
	FieldUnknown FieldType = "unknown"
)

// TemplateError is the spec-mandated error shape: which variable failed,
// and why. It satisfies error but is never wrapped in *core.Error so
// callers can errors.As it directly.
type TemplateError struct {
	Variable string
	Message  string
}

func (e *TemplateError) Error() string {
	return fmt.Sprintf("template error for variable %q: %s", e.Variable, e.Message)
}

// Engine holds named templates and renders them against a render context.
// The context bundler builds one Engine per render pass and registers a
// single template under "variables" or "input".
type Engine struct {
	templates map[string]core.JSON
}

func NewEngine() *Engine {
	return &Engine{templates: make(map[string]core.JSON)}
}

func (e *Engine) AddTemplate(name string, tmpl core.JSON) {
	e.templates[name] = tmpl
}

func (e *Engine) HasTemplate(name string) bool {
	_, ok := e.templates[name]
	return ok
}

// Variables extracts every {{...}} placeholder appearing anywhere in the
// named template, depth-first, duplicates included. Placeholders within one
// string and array elements keep their order; the keys of an object are
// visited in Go map iteration order, so the relative order of placeholders
// under different keys is not defined.
func (e *Engine) Variables(name string) ([]string, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return nil, &TemplateError{Variable: name, Message: "template not found"}
	}
	return extractVariables(tmpl)
}

func extractVariables(v core.JSON) ([]string, error) {
	var out []string
	switch {
	case v.IsObject():
		m, _ := v.Object()
		for _, vv := range m {
			sub, err := extractVariables(core.NewJSON(vv))
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	case v.IsArray():
		arr, _ := v.Array()
		for _, vv := range arr {
			sub, err := extractVariables(core.NewJSON(vv))
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
	case v.IsString():
		s, _ := v.String()
		start := 0
		for {
			openIdx := strings.Index(s[start:], "{{")
			if openIdx < 0 {
				break
			}
			openIdx += start
			closeIdx := strings.Index(s[openIdx:], "}}")
			if closeIdx < 0 {
				return nil, &TemplateError{Variable: s, Message: "unclosed template variable"}
			}
			closeIdx += openIdx
			out = append(out, strings.TrimSpace(s[openIdx+2:closeIdx]))
			start = closeIdx + 2
		}
	}
	return out, nil
}

// Render renders the named template against ctx, applying the expected
// field type found in validations for each variable. validations is keyed
// by the second dotted segment of the variable path, e.g. "name" in
// "variables.name".
func (e *Engine) Render(name string, ctx core.JSON, validations map[string]FieldType) (core.JSON, error) {
	tmpl, ok := e.templates[name]
	if !ok {
		return core.Null, &TemplateError{Variable: name, Message: "template not found"}
	}
	return renderValue(tmpl, ctx, validations)
}

func renderValue(value, ctx core.JSON, validations map[string]FieldType) (core.JSON, error) {
	switch {
	case value.IsObject():
		m, _ := value.Object()
		result := make(map[string]any, len(m))
		for k, v := range m {
			rv, err := renderValue(core.NewJSON(v), ctx, validations)
			if err != nil {
				return core.Null, err
			}
			result[k] = rv.Raw()
		}
		return core.NewJSON(result), nil
	case value.IsArray():
		arr, _ := value.Array()
		result := make([]any, len(arr))
		for i, v := range arr {
			rv, err := renderValue(core.NewJSON(v), ctx, validations)
			if err != nil {
				return core.Null, err
			}
			result[i] = rv.Raw()
		}
		return core.NewJSON(result), nil
	case value.IsString():
		s, _ := value.String()
		return renderString(s, ctx, validations)
	default:
		return value, nil
	}
}

func topLevelKey(variable string) string {
	parts := strings.SplitN(variable, ".", 3)
	if len(parts) >= 2 {
		return parts[1]
	}
	return variable
}

func renderString(s string, ctx core.JSON, validations map[string]FieldType) (core.JSON, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{{") && strings.HasSuffix(trimmed, "}}") {
		variable := strings.TrimSpace(trimmed[2 : len(trimmed)-2])
		key := topLevelKey(variable)
		if expected, ok := validations[key]; ok {
			value, found := getValueFromPath(ctx, variable)
			if found {
				if expected == FieldObject {
					if !value.IsObject() {
						return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected object, got: %v", value.Raw())}
					}
					return value, nil
				}
				return validateAndConvert(value, expected, variable)
			}
		} else if value, found := getValueFromPath(ctx, variable); found {
			return value, nil
		}
	}

	var b strings.Builder
	start := 0
	for {
		openIdx := strings.Index(s[start:], "{{")
		if openIdx < 0 {
			b.WriteString(s[start:])
			break
		}
		openIdx += start
		b.WriteString(s[start:openIdx])
		closeIdx := strings.Index(s[openIdx:], "}}")
		if closeIdx < 0 {
			return core.Null, &TemplateError{Variable: s, Message: "unclosed template variable"}
		}
		closeIdx += openIdx
		variable := strings.TrimSpace(s[openIdx+2 : closeIdx])
		key := topLevelKey(variable)

		value, found := getValueFromPath(ctx, variable)
		if !found {
			return core.Null, &TemplateError{Variable: variable, Message: "variable not found in context"}
		}

		if expected, ok := validations[key]; ok {
			if expected == FieldObject {
				if !value.IsObject() {
					return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected object, got: %v", value.Raw())}
				}
			} else {
				converted, err := validateAndConvert(value, expected, variable)
				if err != nil {
					return core.Null, err
				}
				value = converted
			}
		}

		b.WriteString(stringify(value))
		start = closeIdx + 2
	}
	return core.NewJSON(b.String()), nil
}

func stringify(v core.JSON) string {
	if s, ok := v.String(); ok {
		return s
	}
	switch raw := v.Raw().(type) {
	case nil:
		return "null"
	case bool:
		if raw {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", raw)
	}
}

// getValueFromPath resolves a dot path with optional key[N] bracket
// indices against ctx, re-entering any string value that itself parses as
// JSON (JSON-in-string) before continuing to the remaining path segments.
func getValueFromPath(ctx core.JSON, path string) (core.JSON, bool) {
	current := ctx
	parts := strings.Split(path, ".")
	for i, part := range parts {
		key := part
		var index = -1
		if idxStart := strings.Index(part, "["); idxStart >= 0 {
			idxEnd := strings.Index(part, "]")
			if idxEnd < 0 {
				idxEnd = len(part)
			}
			key = part[:idxStart]
			n, err := strconv.Atoi(part[idxStart+1 : idxEnd])
			if err != nil {
				return core.Null, false
			}
			index = n
		}
		m, ok := current.Object()
		if !ok {
			return core.Null, false
		}
		v, ok := m[key]
		if !ok {
			return core.Null, false
		}
		current = core.NewJSON(v)
		if index >= 0 {
			arr, ok := current.Array()
			if !ok || index >= len(arr) {
				return core.Null, false
			}
			current = core.NewJSON(arr[index])
		}
		if s, ok := current.String(); ok {
			if parsed, perr := core.ParseJSONString(s); perr == nil {
				if i < len(parts)-1 {
					return getValueFromPath(parsed, strings.Join(parts[i+1:], "."))
				}
				return parsed, true
			}
		}
	}
	return current, true
}

func validateAndConvert(value core.JSON, expected FieldType, variable string) (core.JSON, error) {
	switch expected {
	case FieldString:
		if value.IsString() {
			return value, nil
		}
		return core.NewJSON(stringify(value)), nil
	case FieldNumber:
		if value.IsNumber() {
			return value, nil
		}
		if s, ok := value.String(); ok {
			n, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("cannot convert value to number: %s", s)}
			}
			return core.NewJSON(n), nil
		}
		return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected number, got: %v", value.Raw())}
	case FieldBoolean:
		if value.IsBool() {
			return value, nil
		}
		if s, ok := value.String(); ok {
			switch s {
			case "true":
				return core.NewJSON(true), nil
			case "false":
				return core.NewJSON(false), nil
			default:
				return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("cannot convert value to boolean: %s", s)}
			}
		}
		return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected boolean, got: %v", value.Raw())}
	case FieldObject:
		if value.IsObject() {
			return value, nil
		}
		return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected object, got: %v", value.Raw())}
	case FieldArray:
		if value.IsArray() {
			return value, nil
		}
		return core.Null, &TemplateError{Variable: variable, Message: fmt.Sprintf("expected array, got: %v", value.Raw())}
	case FieldNull:
		return core.Null, nil
	default:
		return value, nil
	}
}
