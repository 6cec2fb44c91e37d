// Package playbook loads the declarative interview configuration: the fact
// schema, scoring weights, moments, cards and artifact catalog. The engine
// contains no moment logic in code; everything it reacts to is declared
// here. Malformed documents are rejected at load time, not at evaluation
// time.
package playbook

import (
	_ "embed"
	"math"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"gopkg.in/yaml.v3"
)

var ErrInvalidPlaybook = goerr.New("invalid playbook")

//go:embed default.yaml
var defaultPlaybookRaw []byte

// Playbook is the parsed configuration document.
type Playbook struct {
	Schema      model.Schema         `yaml:"schema"`
	Moments     []*model.Moment      `yaml:"moments"`
	Artifacts   []model.ArtifactSpec `yaml:"artifacts"`
	BaseActions []model.ActionID     `yaml:"base_actions"`
	MaxCards    int                  `yaml:"max_cards"`
}

// Load reads and validates a playbook file.
func Load(path string) (*Playbook, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read playbook", goerr.V("path", path))
	}
	return Parse(data)
}

// Default returns the built-in playbook.
func Default() (*Playbook, error) {
	return Parse(defaultPlaybookRaw)
}

// Parse decodes and validates a playbook document.
func Parse(data []byte) (*Playbook, error) {
	var pb Playbook
	if err := yaml.Unmarshal(data, &pb); err != nil {
		return nil, goerr.Wrap(err, "failed to parse playbook")
	}
	if err := pb.validate(); err != nil {
		return nil, err
	}
	if pb.MaxCards == 0 {
		pb.MaxCards = 3
	}
	return &pb, nil
}

func (pb *Playbook) validate() error {
	if len(pb.Schema.Fields) == 0 {
		return goerr.Wrap(ErrInvalidPlaybook, "no fact fields declared")
	}

	categories := make(map[string]bool, len(pb.Schema.Categories))
	var weightSum float64
	for _, c := range pb.Schema.Categories {
		if categories[c.Name] {
			return goerr.Wrap(ErrInvalidPlaybook, "duplicate category", goerr.V("category", c.Name))
		}
		categories[c.Name] = true
		if c.Weight < 0 {
			return goerr.Wrap(ErrInvalidPlaybook, "negative category weight", goerr.V("category", c.Name))
		}
		weightSum += c.Weight
	}
	if math.Abs(weightSum-1.0) > 0.01 {
		return goerr.Wrap(ErrInvalidPlaybook, "category weights must sum to 1.0",
			goerr.V("sum", weightSum))
	}

	fields := make(map[string]bool, len(pb.Schema.Fields))
	for _, f := range pb.Schema.Fields {
		if f.Name == "" {
			return goerr.Wrap(ErrInvalidPlaybook, "field without a name")
		}
		if fields[f.Name] {
			return goerr.Wrap(ErrInvalidPlaybook, "duplicate field", goerr.V("field", f.Name))
		}
		fields[f.Name] = true
		switch f.Kind {
		case model.KindScalar, model.KindSet, model.KindNarrative:
		default:
			return goerr.Wrap(ErrInvalidPlaybook, "unknown field kind",
				goerr.V("field", f.Name), goerr.V("kind", f.Kind))
		}
		if !categories[f.Category] {
			return goerr.Wrap(ErrInvalidPlaybook, "field references unknown category",
				goerr.V("field", f.Name), goerr.V("category", f.Category))
		}
		if f.Numeric && f.Max <= f.Min {
			return goerr.Wrap(ErrInvalidPlaybook, "numeric field needs min < max",
				goerr.V("field", f.Name))
		}
	}

	artifacts := make(map[model.ArtifactID]bool, len(pb.Artifacts))
	for _, a := range pb.Artifacts {
		if a.ID == "" {
			return goerr.Wrap(ErrInvalidPlaybook, "artifact without an id")
		}
		if artifacts[a.ID] {
			return goerr.Wrap(ErrInvalidPlaybook, "duplicate artifact", goerr.V("artifact", a.ID))
		}
		artifacts[a.ID] = true
	}

	moments := make(map[model.MomentID]bool, len(pb.Moments))
	for _, m := range pb.Moments {
		if err := m.Validate(); err != nil {
			return err
		}
		if moments[m.ID] {
			return goerr.Wrap(ErrInvalidPlaybook, "duplicate moment", goerr.V("moment", m.ID))
		}
		moments[m.ID] = true
		if m.Effects.Artifact != "" && !artifacts[m.Effects.Artifact] {
			return goerr.Wrap(ErrInvalidPlaybook, "moment requests undeclared artifact",
				goerr.V("moment", m.ID), goerr.V("artifact", m.Effects.Artifact))
		}
		if m.Effects.Card != nil && m.Effects.Card.Artifact != "" && !artifacts[m.Effects.Card.Artifact] {
			return goerr.Wrap(ErrInvalidPlaybook, "card references undeclared artifact",
				goerr.V("moment", m.ID), goerr.V("artifact", m.Effects.Card.Artifact))
		}
	}

	return nil
}

// ArtifactSpec returns the catalog entry for an artifact id, or nil.
func (pb *Playbook) ArtifactSpec(id model.ArtifactID) *model.ArtifactSpec {
	for i := range pb.Artifacts {
		if pb.Artifacts[i].ID == id {
			return &pb.Artifacts[i]
		}
	}
	return nil
}
