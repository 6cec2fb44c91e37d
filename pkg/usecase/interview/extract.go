package interview

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/extract.md
var extractPromptRaw string

var extractPromptTmpl = template.Must(template.New("extract").Parse(extractPromptRaw))

// extractionSchema builds the structured output schema from the playbook
// fields. Every field is optional; the model only reports what the message
// actually states.
func extractionSchema(schema *model.Schema) *genai.Schema {
	properties := make(map[string]*genai.Schema, len(schema.Fields))
	for i := range schema.Fields {
		spec := &schema.Fields[i]
		switch {
		case spec.Kind == model.KindSet:
			properties[spec.Name] = &genai.Schema{
				Type:        genai.TypeArray,
				Description: spec.Description,
				Items:       &genai.Schema{Type: genai.TypeString},
			}
		case spec.Numeric:
			properties[spec.Name] = &genai.Schema{
				Type:        genai.TypeNumber,
				Description: spec.Description,
			}
		default:
			properties[spec.Name] = &genai.Schema{
				Type:        genai.TypeString,
				Description: spec.Description,
			}
		}
	}

	return &genai.Schema{
		Type:       genai.TypeObject,
		Properties: properties,
	}
}

// extract runs the extraction pass over the latest parent message. It returns
// the partial fact map; keys absent from the result were not mentioned.
func (u *UseCase) extract(ctx context.Context, sess *model.Session, message string) (map[string]any, error) {
	knownFacts, err := json.MarshalIndent(sess.Facts, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal known facts")
	}

	var buf bytes.Buffer
	if err := extractPromptTmpl.Execute(&buf, map[string]any{
		"KnownFacts": string(knownFacts),
		"Fields":     sortedFieldNames(&u.playbook.Schema),
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute extract prompt template")
	}

	thinkingBudget := int32(0)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
		ResponseMIMEType:  "application/json",
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  &thinkingBudget,
		},
		ResponseSchema: extractionSchema(&u.playbook.Schema),
	}

	contents := []*genai.Content{
		genai.NewContentFromText(message, genai.RoleUser),
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to run extraction")
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, goerr.New("invalid extraction response structure")
	}

	rawJSON := resp.Candidates[0].Content.Parts[0].Text

	var partial map[string]any
	if err := json.Unmarshal([]byte(rawJSON), &partial); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal extraction JSON", goerr.V("json", rawJSON))
	}

	// A JSON null means "not mentioned", same as an absent key.
	for k, v := range partial {
		if v == nil {
			delete(partial, k)
		}
	}

	return partial, nil
}
