package engine

import (
	"context"
	"strconv"
	"strings"

	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/utils/logging"
)

// NarrativeSeparator joins appended narrative fragments.
const NarrativeSeparator = "\n\n"

// Rejection describes one partial-extraction field that did not merge. A
// rejection never fails the turn; the remaining fields still merge.
type Rejection struct {
	Field  string
	Value  any
	Reason string
}

// Merger folds partial extractions into the fact store using the per-field
// policies declared in the schema. Merging is deterministic and idempotent:
// applying the same partial twice is a no-op.
type Merger struct {
	schema *model.Schema
}

func NewMerger(schema *model.Schema) *Merger {
	return &Merger{schema: schema}
}

// Merge applies the partial to facts in place. Unset keys mean "not
// mentioned this turn", never "clear this field": no operation here may move
// a field from filled to empty, and placeholder tokens are never written.
func (m *Merger) Merge(ctx context.Context, facts model.Facts, partial map[string]any) []Rejection {
	var rejected []Rejection

	reject := func(field string, value any, reason string) {
		rejected = append(rejected, Rejection{Field: field, Value: value, Reason: reason})
		logging.From(ctx).Warn("extraction field rejected",
			"field", field,
			"reason", reason,
		)
	}

	for field, value := range partial {
		spec := m.schema.Field(field)
		if spec == nil {
			reject(field, value, "field not declared in schema")
			continue
		}

		switch spec.Kind {
		case model.KindScalar:
			m.mergeScalar(facts, spec, value, reject)
		case model.KindSet:
			m.mergeSet(facts, spec, value, reject)
		case model.KindNarrative:
			m.mergeNarrative(facts, spec, value, reject)
		}
	}

	return rejected
}

func (m *Merger) mergeScalar(facts model.Facts, spec *model.FieldSpec, value any, reject func(string, any, string)) {
	if spec.Numeric {
		num, ok := toNumber(value)
		if !ok {
			if s, isStr := value.(string); isStr && m.schema.IsPlaceholder(s) {
				return // placeholder, silently ignored
			}
			reject(spec.Name, value, "not a number")
			return
		}
		if num < spec.Min || num > spec.Max {
			reject(spec.Name, value, "out of range")
			return
		}
		facts[spec.Name] = num
		return
	}

	s, ok := value.(string)
	if !ok {
		reject(spec.Name, value, "not a string")
		return
	}
	if m.schema.IsPlaceholder(s) {
		return
	}
	facts[spec.Name] = strings.TrimSpace(s)
}

func (m *Merger) mergeSet(facts model.Facts, spec *model.FieldSpec, value any, reject func(string, any, string)) {
	incoming, ok := toStringList(value)
	if !ok {
		reject(spec.Name, value, "not a string list")
		return
	}

	current := facts.Set(spec.Name)
	seen := make(map[string]bool, len(current))
	for _, v := range current {
		seen[strings.ToLower(v)] = true
	}

	merged := append([]string(nil), current...)
	for _, v := range incoming {
		v = strings.TrimSpace(v)
		if m.schema.IsPlaceholder(v) || seen[strings.ToLower(v)] {
			continue
		}
		seen[strings.ToLower(v)] = true
		merged = append(merged, v)
	}

	if len(merged) > 0 {
		facts[spec.Name] = merged
	}
}

func (m *Merger) mergeNarrative(facts model.Facts, spec *model.FieldSpec, value any, reject func(string, any, string)) {
	s, ok := value.(string)
	if !ok {
		reject(spec.Name, value, "not a string")
		return
	}
	s = strings.TrimSpace(s)
	if m.schema.IsPlaceholder(s) {
		return
	}

	current := facts.Narrative(spec.Name)
	if current == "" {
		facts[spec.Name] = s
		return
	}

	// Near-duplicates do not merge: text already contained in the stored
	// narrative adds nothing. Anything else is appended, never replacing.
	if strings.Contains(strings.ToLower(current), strings.ToLower(s)) {
		return
	}
	facts[spec.Name] = current + NarrativeSeparator + s
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func toStringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, e := range list {
			s, ok := e.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		// A single mention arrives as a bare string.
		return []string{list}, true
	}
	return nil, false
}
