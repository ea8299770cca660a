package agent

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// ParamType 参数的 JSON 类型。
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeNumber  ParamType = "number"
	TypeInteger ParamType = "integer"
	TypeBoolean ParamType = "boolean"
)

// ParamSpec 声明一个工具参数。Default 为 nil 表示无默认值。
type ParamSpec struct {
	Name        string      `json:"name"`
	Type        ParamType   `json:"type"`
	Description string      `json:"description,omitempty"`
	Required    bool        `json:"required,omitempty"`
	Default     interface{} `json:"default,omitempty"`
	Min         *float64    `json:"minimum,omitempty"`
	Max         *float64    `json:"maximum,omitempty"`
	Enum        []string    `json:"enum,omitempty"`
	Aliases     []string    `json:"aliases,omitempty"`
	// Cause 校验失败时 ParamError 包装的哨兵错误，可为空。
	Cause error `json:"-"`
}

// ToolSpec 工具名称、说明与参数表。
type ToolSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params"`
}

// ParamError 参数不符合声明。
type ParamError struct {
	Param   string
	Message string
	Cause   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %q: %s", e.Param, e.Message)
}

func (e *ParamError) Unwrap() error { return e.Cause }

func bound(v float64) *float64 { return &v }

// Args 绑定后的参数。值已按声明类型归一化：string / float64 / int / bool。
type Args struct {
	values   map[string]interface{}
	provided map[string]bool
}

// Provided 调用方是否显式传入该参数（含别名）。
func (a Args) Provided(name string) bool { return a.provided[name] }

func (a Args) Has(name string) bool {
	_, ok := a.values[name]
	return ok
}

func (a Args) String(name string) string {
	s, _ := a.values[name].(string)
	return s
}

func (a Args) Float(name string) float64 {
	f, _ := a.values[name].(float64)
	return f
}

func (a Args) Int(name string) int {
	i, _ := a.values[name].(int)
	return i
}

func (a Args) Bool(name string) bool {
	b, _ := a.values[name].(bool)
	return b
}

// Bind 按声明校验并归一化原始参数；未声明的参数被忽略。
func (s ToolSpec) Bind(raw map[string]interface{}) (Args, error) {
	args := Args{
		values:   make(map[string]interface{}, len(s.Params)),
		provided: make(map[string]bool, len(s.Params)),
	}
	for _, p := range s.Params {
		v, ok := lookup(raw, p)
		if !ok {
			if p.Required {
				return Args{}, &ParamError{Param: p.Name, Message: "is required", Cause: p.Cause}
			}
			if p.Default != nil {
				args.values[p.Name] = p.Default
			}
			continue
		}
		norm, err := p.coerce(v)
		if err != nil {
			return Args{}, err
		}
		args.values[p.Name] = norm
		args.provided[p.Name] = true
	}
	return args, nil
}

func lookup(raw map[string]interface{}, p ParamSpec) (interface{}, bool) {
	if v, ok := raw[p.Name]; ok && v != nil {
		return v, true
	}
	for _, alias := range p.Aliases {
		if v, ok := raw[alias]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

func (p ParamSpec) coerce(v interface{}) (interface{}, error) {
	out, err := p.normalize(v)
	if pe, ok := err.(*ParamError); ok {
		pe.Cause = p.Cause
	}
	return out, err
}

func (p ParamSpec) normalize(v interface{}) (interface{}, error) {
	switch p.Type {
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("expected string, got %T", v)}
		}
		s = strings.TrimSpace(s)
		if p.Required && s == "" {
			return nil, &ParamError{Param: p.Name, Message: "must not be empty"}
		}
		if len(p.Enum) > 0 {
			for _, e := range p.Enum {
				if strings.EqualFold(e, s) {
					return e, nil
				}
			}
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("must be one of %s", strings.Join(p.Enum, ", "))}
		}
		return s, nil
	case TypeNumber, TypeInteger:
		f, ok := toFloat(v)
		if !ok {
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("expected %s, got %T", p.Type, v)}
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, &ParamError{Param: p.Name, Message: "must be a finite number"}
		}
		if p.Type == TypeInteger && f != math.Trunc(f) {
			return nil, &ParamError{Param: p.Name, Message: "must be an integer"}
		}
		if p.Min != nil && f < *p.Min {
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("must be >= %g", *p.Min)}
		}
		if p.Max != nil && f > *p.Max {
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("must be <= %g", *p.Max)}
		}
		if p.Type == TypeInteger {
			return int(f), nil
		}
		return f, nil
	case TypeBoolean:
		b, ok := v.(bool)
		if !ok {
			return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("expected boolean, got %T", v)}
		}
		return b, nil
	}
	return nil, &ParamError{Param: p.Name, Message: fmt.Sprintf("unsupported parameter type %q", p.Type)}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// JSONSchema 生成 JSON Schema（object）。
func (s ToolSpec) JSONSchema() map[string]interface{} {
	props := make(map[string]interface{}, len(s.Params))
	required := make([]string, 0)
	for _, p := range s.Params {
		prop := map[string]interface{}{"type": string(p.Type)}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		if p.Min != nil {
			prop["minimum"] = *p.Min
		}
		if p.Max != nil {
			prop["maximum"] = *p.Max
		}
		if len(p.Enum) > 0 {
			prop["enum"] = p.Enum
		}
		props[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}
