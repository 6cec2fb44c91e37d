package model

import (
	"strconv"
	"strings"
)

// FieldKind declares how a fact field merges.
type FieldKind string

const (
	// KindScalar holds a single value. Last non-empty wins, but a filled
	// value is never replaced by an empty or placeholder value.
	KindScalar FieldKind = "scalar"
	// KindSet holds a deduplicated list. Merging is set union.
	KindSet FieldKind = "set"
	// KindNarrative holds free text. Materially new text is appended,
	// never replaced.
	KindNarrative FieldKind = "narrative"
)

// FieldSpec declares the merge policy and scoring category of one fact
// field. The policy lives here, once, not at call sites.
type FieldSpec struct {
	Name     string    `yaml:"name"`
	Kind     FieldKind `yaml:"kind"`
	Category string    `yaml:"category"`

	// Description guides the extraction model; it becomes the field's
	// description in the structured output schema.
	Description string `yaml:"description"`

	// Numeric scalars are validated against [Min, Max]; out-of-range values
	// are rejected and the prior value retained.
	Numeric bool    `yaml:"numeric"`
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`

	// MinChars is the richness threshold for narrative fields: shorter text
	// still merges but does not count as covered for completeness.
	MinChars int `yaml:"min_chars"`
}

// Category groups fields for the completeness score.
type Category struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Schema declares all fact fields, scoring categories and placeholder
// tokens. It is data loaded at startup, shared by the merger and the scorer.
type Schema struct {
	Fields       []FieldSpec `yaml:"fields"`
	Categories   []Category  `yaml:"categories"`
	Placeholders []string    `yaml:"placeholders"`

	byName map[string]*FieldSpec
}

// Field returns the spec for a field name, or nil if undeclared.
func (s *Schema) Field(name string) *FieldSpec {
	if s.byName == nil {
		s.byName = make(map[string]*FieldSpec, len(s.Fields))
		for i := range s.Fields {
			s.byName[s.Fields[i].Name] = &s.Fields[i]
		}
	}
	return s.byName[name]
}

// IsPlaceholder reports whether the value is one of the configured
// placeholder tokens. Placeholders are never written as real data.
func (s *Schema) IsPlaceholder(v string) bool {
	t := strings.ToLower(strings.TrimSpace(v))
	if t == "" {
		return true
	}
	for _, p := range s.Placeholders {
		if t == strings.ToLower(p) {
			return true
		}
	}
	return false
}

// Facts is the per-session fact store. Scalar and narrative fields hold
// string or float64 values, set fields hold []string. The store never
// regresses: no merge may move a field from filled to empty.
type Facts map[string]any

// Scalar returns the string form of a scalar field, or "" when unset.
func (f Facts) Scalar(name string) string {
	switch v := f[name].(type) {
	case string:
		return v
	case float64:
		return trimFloat(v)
	}
	return ""
}

// Number returns a numeric field value and whether it is set.
func (f Facts) Number(name string) (float64, bool) {
	v, ok := f[name].(float64)
	return v, ok
}

// Set returns the values of a set field.
func (f Facts) Set(name string) []string {
	switch v := f[name].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Narrative returns the text of a narrative field.
func (f Facts) Narrative(name string) string {
	s, _ := f[name].(string)
	return s
}

// Clone returns a deep copy of the store.
func (f Facts) Clone() Facts {
	c := make(Facts, len(f))
	for k, v := range f {
		if list, ok := v.([]string); ok {
			c[k] = append([]string(nil), list...)
			continue
		}
		c[k] = v
	}
	return c
}

func trimFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
