package engine

import (
	"github.com/navadimml/chitta/pkg/model"
)

// Scorer computes the weighted completeness of a fact store. The score is a
// pure function of the store: it performs no I/O and mutates nothing.
//
// Each category contributes weight * (covered fields / declared fields).
// Because coverage of a field can only go from false to true under the
// merge rules, the score is monotonic across any sequence of merges.
type Scorer struct {
	schema *model.Schema
}

func NewScorer(schema *model.Schema) *Scorer {
	return &Scorer{schema: schema}
}

// Score returns the completeness in [0, 1].
func (s *Scorer) Score(facts model.Facts) float64 {
	type tally struct {
		total   int
		covered int
	}
	byCategory := make(map[string]*tally, len(s.schema.Categories))
	for _, c := range s.schema.Categories {
		byCategory[c.Name] = &tally{}
	}

	for i := range s.schema.Fields {
		spec := &s.schema.Fields[i]
		t, ok := byCategory[spec.Category]
		if !ok {
			continue // field outside any weighted category does not score
		}
		t.total++
		if fieldCovered(facts, spec) {
			t.covered++
		}
	}

	var score float64
	for _, c := range s.schema.Categories {
		t := byCategory[c.Name]
		if t.total == 0 {
			continue
		}
		score += c.Weight * float64(t.covered) / float64(t.total)
	}

	// Weights may overshoot 1.0 by rounding; the score is capped.
	if score > 1.0 {
		score = 1.0
	}
	if score < 0 {
		score = 0
	}
	return score
}

// fieldCovered applies the per-kind richness threshold. A one-word answer
// to a narrative question must not inflate completeness, so narratives only
// count once they reach their configured minimum length.
func fieldCovered(facts model.Facts, spec *model.FieldSpec) bool {
	switch spec.Kind {
	case model.KindScalar:
		if spec.Numeric {
			_, ok := facts.Number(spec.Name)
			return ok
		}
		return facts.Scalar(spec.Name) != ""
	case model.KindSet:
		return len(facts.Set(spec.Name)) > 0
	case model.KindNarrative:
		text := facts.Narrative(spec.Name)
		if spec.MinChars > 0 {
			return len(text) >= spec.MinChars
		}
		return text != ""
	}
	return false
}
