// Package consult runs a free-form consultation chat grounded in what the
// interview already collected. Unlike the interview loop it extracts
// nothing; it answers questions, using the milestone tool for reference
// ranges.
package consult

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/repository"
	"github.com/navadimml/chitta/pkg/tool"
	"github.com/navadimml/chitta/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/consult.md
var consultPromptRaw string

var consultPromptTmpl = template.Must(template.New("consult").Parse(consultPromptRaw))

// Tool call loop cap per message.
const maxToolIterations = 16

// Session is one consultation conversation. The transcript lives in memory
// for the lifetime of the session; the interview session itself is read
// only here.
type Session struct {
	gemini   adapter.Gemini
	registry *tool.Registry

	sess    *model.Session
	history []*genai.Content
}

// NewInput contains parameters for opening a consultation.
type NewInput struct {
	Repo      repository.Repository
	Gemini    adapter.Gemini
	Registry  *tool.Registry
	SessionID model.SessionID
}

func New(ctx context.Context, input NewInput) (*Session, error) {
	sess, err := input.Repo.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to load session")
	}

	return &Session{
		gemini:   input.Gemini,
		registry: input.Registry,
		sess:     sess,
	}, nil
}

// Send sends one parent message and returns the assistant answer, running
// tool calls as the model requests them. When the accumulated transcript no
// longer fits the model context, the older part is summarized and the
// message retried once.
func (s *Session) Send(ctx context.Context, message string) (string, error) {
	config, err := s.buildConfig(ctx)
	if err != nil {
		return "", err
	}

	s.history = append(s.history, genai.NewContentFromText(message, genai.RoleUser))

	answer, err := s.generate(ctx, config)
	if isTokenLimitError(err) {
		logging.From(ctx).Info("consultation history exceeds context, compressing",
			"session", s.sess.ID, "entries", len(s.history))
		compressed, cerr := compressHistory(ctx, s.gemini, s.history)
		if cerr != nil {
			return "", goerr.Wrap(cerr, "failed to compress history")
		}
		s.history = compressed
		answer, err = s.generate(ctx, config)
	}
	if err != nil {
		return "", err
	}
	return answer, nil
}

func (s *Session) buildConfig(ctx context.Context) (*genai.GenerateContentConfig, error) {
	factsJSON, err := json.MarshalIndent(s.sess.Facts, "", "  ")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal facts")
	}

	var toolNotes string
	if s.registry != nil {
		toolNotes = s.registry.Prompts(ctx)
	}

	var buf bytes.Buffer
	if err := consultPromptTmpl.Execute(&buf, map[string]any{
		"Facts":     string(factsJSON),
		"ToolNotes": toolNotes,
	}); err != nil {
		return nil, goerr.Wrap(err, "failed to execute consult prompt template")
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
	}
	if s.registry != nil {
		config.Tools = s.registry.Specs()
	}
	return config, nil
}

// generate runs the tool call loop until the model answers in plain text.
func (s *Session) generate(ctx context.Context, config *genai.GenerateContentConfig) (string, error) {
	var answer string

	for i := 0; i < maxToolIterations; i++ {
		resp, err := s.gemini.GenerateContent(ctx, s.history, config)
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", goerr.New("empty consultation response")
		}

		content := resp.Candidates[0].Content
		s.history = append(s.history, content)

		hasFunctionCall := false
		for _, part := range content.Parts {
			if part.Text != "" {
				answer = part.Text
			}
			if part.FunctionCall == nil {
				continue
			}
			hasFunctionCall = true

			funcResp, execErr := s.registry.Execute(ctx, *part.FunctionCall)
			if execErr != nil {
				funcResp = &genai.FunctionResponse{
					Name:     part.FunctionCall.Name,
					Response: map[string]any{"error": execErr.Error()},
				}
			}
			s.history = append(s.history, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{{FunctionResponse: funcResp}},
			})
		}

		if !hasFunctionCall {
			break
		}
	}

	if answer == "" {
		return "", goerr.New("consultation produced no answer")
	}
	return answer, nil
}
