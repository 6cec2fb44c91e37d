// Package milestones is a builtin tool exposing typical developmental
// milestone ranges. The consult assistant calls it to anchor its answers
// instead of recalling ranges from model weights.
package milestones

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"google.golang.org/genai"
	"gopkg.in/yaml.v3"
)

//go:embed data.yaml
var milestoneDataRaw []byte

type milestone struct {
	Domain   string `yaml:"domain"`
	AgeFrom  int    `yaml:"age_from_months"`
	AgeTo    int    `yaml:"age_to_months"`
	Behavior string `yaml:"behavior"`
}

// Lookup answers milestone queries from the embedded reference table.
type Lookup struct {
	entries []milestone
}

// New loads the embedded milestone table.
func New() (*Lookup, error) {
	var doc struct {
		Milestones []milestone `yaml:"milestones"`
	}
	if err := yaml.Unmarshal(milestoneDataRaw, &doc); err != nil {
		return nil, goerr.Wrap(err, "failed to parse milestone data")
	}
	if len(doc.Milestones) == 0 {
		return nil, goerr.New("milestone table is empty")
	}
	return &Lookup{entries: doc.Milestones}, nil
}

func (l *Lookup) Spec() *genai.Tool {
	return &genai.Tool{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        "lookup_milestones",
				Description: "Look up typical developmental milestone ranges by age and domain. Use this before making any statement about what is typical for an age.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"age_months": {
							Type:        genai.TypeInteger,
							Description: "Child's age in months",
						},
						"domain": {
							Type:        genai.TypeString,
							Description: "Developmental domain to filter by (optional)",
							Enum:        []string{"speech", "motor", "social", "cognitive"},
						},
					},
					Required: []string{"age_months"},
				},
			},
		},
	}
}

func (l *Lookup) Execute(ctx context.Context, fc genai.FunctionCall) (*genai.FunctionResponse, error) {
	ageVal, ok := fc.Args["age_months"]
	if !ok {
		return nil, goerr.New("age_months is required")
	}
	age, ok := toInt(ageVal)
	if !ok {
		return nil, goerr.New("age_months must be a number", goerr.V("value", ageVal))
	}
	domain, _ := fc.Args["domain"].(string)

	var lines []string
	for _, m := range l.entries {
		if age < m.AgeFrom || age > m.AgeTo {
			continue
		}
		if domain != "" && m.Domain != domain {
			continue
		}
		lines = append(lines, fmt.Sprintf("- [%s, %d-%d months] %s", m.Domain, m.AgeFrom, m.AgeTo, m.Behavior))
	}

	text := "No milestone entries for this age."
	if len(lines) > 0 {
		text = fmt.Sprintf("Typical ranges around %d months:\n%s", age, strings.Join(lines, "\n"))
	}

	return &genai.FunctionResponse{
		Name:     fc.Name,
		Response: map[string]any{"result": text},
	}, nil
}

func (l *Lookup) Prompt(ctx context.Context) string {
	return "Use lookup_milestones for any question about whether a behavior is typical for an age. Milestone ranges are wide; present them as ranges, not cutoffs."
}

func (l *Lookup) Flags() []cli.Flag {
	return nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
