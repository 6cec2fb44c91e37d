package interview

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"strconv"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/model"
	"google.golang.org/genai"
)

//go:embed prompt/respond.md
var respondPromptRaw string

var respondPromptTmpl = template.Must(template.New("respond").Parse(respondPromptRaw))

// respond generates the assistant reply. It runs after the merge, so the
// reply already knows everything the current message contributed: facts,
// completeness and any moment guidance from this same turn.
func (u *UseCase) respond(ctx context.Context, sess *model.Session, completeness float64, guidance []string) (string, error) {
	factsJSON, err := json.MarshalIndent(sess.Facts, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal facts")
	}

	var missing []string
	for i := range u.playbook.Schema.Fields {
		spec := &u.playbook.Schema.Fields[i]
		if _, ok := sess.Facts[spec.Name]; !ok {
			missing = append(missing, spec.Name)
		}
	}

	var buf bytes.Buffer
	if err := respondPromptTmpl.Execute(&buf, map[string]any{
		"Facts":        string(factsJSON),
		"Completeness": strconv.FormatFloat(completeness, 'f', 2, 64),
		"Missing":      missing,
		"Guidance":     guidance,
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute respond prompt template")
	}

	contents := historyContents(sess)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
	}

	resp, err := u.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", goerr.Wrap(err, "failed to generate response")
	}

	text := adapter.ResponseText(resp)
	if text == "" {
		return "", goerr.New("empty response from model")
	}
	return text, nil
}

// historyContents converts the conversation log into model turns. System
// entries stay out of the transcript; they reach the model as guidance in
// the system instruction instead.
func historyContents(sess *model.Session) []*genai.Content {
	var contents []*genai.Content
	for _, e := range sess.Log {
		switch e.Role {
		case model.RoleParent:
			contents = append(contents, genai.NewContentFromText(e.Text, genai.RoleUser))
		case model.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(e.Text, genai.RoleModel))
		}
	}
	return contents
}
