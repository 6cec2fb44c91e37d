// Package artifact generates the documents the playbook declares: video
// observation guidelines, profile reports. Generation happens outside the
// turn; the session only tracks the artifact status machine.
package artifact

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/playbook"
	"github.com/navadimml/chitta/pkg/repository"
	"github.com/navadimml/chitta/pkg/utils/logging"
	"google.golang.org/genai"
)

//go:embed prompt/generate.md
var generatePromptRaw string

var generatePromptTmpl = template.Must(template.New("generate").Parse(generatePromptRaw))

// Generator produces artifact content and drives the status machine:
// pending -> generating -> ready, or -> error with the failure recorded.
type Generator struct {
	repo     repository.Repository
	gemini   adapter.Gemini
	storage  adapter.Storage
	playbook *playbook.Playbook
}

// NewInput contains parameters for creating the generator.
type NewInput struct {
	Repo     repository.Repository
	Gemini   adapter.Gemini
	Storage  adapter.Storage
	Playbook *playbook.Playbook
}

func New(input NewInput) (*Generator, error) {
	if input.Repo == nil {
		return nil, goerr.New("repository is required")
	}
	if input.Gemini == nil {
		return nil, goerr.New("gemini client is required")
	}
	if input.Storage == nil {
		return nil, goerr.New("storage is required")
	}
	if input.Playbook == nil {
		return nil, goerr.New("playbook is required")
	}
	return &Generator{
		repo:     input.Repo,
		gemini:   input.Gemini,
		storage:  input.Storage,
		playbook: input.Playbook,
	}, nil
}

// Generate produces the artifact content for a session. The status machine
// is persisted at each step so a reader always sees the true state, and a
// failure lands on the record instead of being lost.
func (g *Generator) Generate(ctx context.Context, sessionID model.SessionID, artifactID model.ArtifactID) error {
	spec := g.playbook.ArtifactSpec(artifactID)
	if spec == nil {
		return goerr.New("unknown artifact", goerr.V("artifact", artifactID))
	}

	sess, err := g.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	record, ok := sess.Artifacts[artifactID]
	if !ok {
		return goerr.New("artifact not requested on session",
			goerr.V("session_id", sessionID), goerr.V("artifact", artifactID))
	}

	if err := record.Transition(model.StatusGenerating); err != nil {
		return err
	}
	if err := g.repo.PutSession(ctx, sess); err != nil {
		return err
	}

	content, genErr := g.generateContent(ctx, sess, spec)
	if genErr == nil {
		key := storageKey(sessionID, artifactID, record.Version)
		genErr = g.write(ctx, key, content)
		if genErr == nil {
			record.StorageKey = key
		}
	}

	if genErr != nil {
		record.Error = genErr.Error()
		if terr := record.Transition(model.StatusError); terr != nil {
			return terr
		}
		if perr := g.repo.PutSession(ctx, sess); perr != nil {
			return perr
		}
		logging.From(ctx).Error("artifact generation failed",
			"session", sessionID, "artifact", artifactID, "error", genErr)
		return goerr.Wrap(genErr, "failed to generate artifact",
			goerr.V("artifact", artifactID))
	}

	record.Error = ""
	if err := record.Transition(model.StatusReady); err != nil {
		return err
	}
	if err := g.repo.PutSession(ctx, sess); err != nil {
		return err
	}

	logging.From(ctx).Info("artifact ready",
		"session", sessionID, "artifact", artifactID, "version", record.Version)
	return nil
}

// Retry moves a failed artifact back to pending and generates again.
func (g *Generator) Retry(ctx context.Context, sessionID model.SessionID, artifactID model.ArtifactID) error {
	sess, err := g.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	record, ok := sess.Artifacts[artifactID]
	if !ok {
		return goerr.New("artifact not requested on session",
			goerr.V("session_id", sessionID), goerr.V("artifact", artifactID))
	}
	if record.Status != model.StatusError {
		return goerr.New("only failed artifacts can be retried",
			goerr.V("artifact", artifactID), goerr.V("status", record.Status))
	}
	if err := record.Transition(model.StatusPending); err != nil {
		return err
	}
	if err := g.repo.PutSession(ctx, sess); err != nil {
		return err
	}
	return g.Generate(ctx, sessionID, artifactID)
}

// Content loads the generated document of a ready artifact.
func (g *Generator) Content(ctx context.Context, sessionID model.SessionID, artifactID model.ArtifactID) (string, error) {
	sess, err := g.repo.GetSession(ctx, sessionID)
	if err != nil {
		return "", err
	}
	record, ok := sess.Artifacts[artifactID]
	if !ok || record.Status != model.StatusReady {
		return "", goerr.New("artifact is not ready",
			goerr.V("session_id", sessionID), goerr.V("artifact", artifactID))
	}

	r, err := g.storage.Get(ctx, record.StorageKey)
	if err != nil {
		return "", err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read artifact content",
			goerr.V("key", record.StorageKey))
	}
	return string(data), nil
}

func (g *Generator) generateContent(ctx context.Context, sess *model.Session, spec *model.ArtifactSpec) (string, error) {
	factsJSON, err := json.MarshalIndent(sess.Facts, "", "  ")
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal facts")
	}

	var buf bytes.Buffer
	if err := generatePromptTmpl.Execute(&buf, map[string]any{
		"Title": spec.Title,
		"Facts": string(factsJSON),
	}); err != nil {
		return "", goerr.Wrap(err, "failed to execute generate prompt template")
	}

	contents := []*genai.Content{
		genai.NewContentFromText("Write the document described in the system instruction.", genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(buf.String(), ""),
	}

	resp, err := g.gemini.GenerateContent(ctx, contents, config)
	if err != nil {
		return "", err
	}

	text := adapter.ResponseText(resp)
	if text == "" {
		return "", goerr.New("empty artifact content from model")
	}
	return text, nil
}

func (g *Generator) write(ctx context.Context, key, content string) error {
	w, err := g.storage.Put(ctx, key)
	if err != nil {
		return err
	}
	if _, err := w.Write([]byte(content)); err != nil {
		w.Close()
		return goerr.Wrap(err, "failed to write artifact content", goerr.V("key", key))
	}
	return w.Close()
}

func storageKey(sessionID model.SessionID, artifactID model.ArtifactID, version int) string {
	return fmt.Sprintf("sessions/%s/artifacts/%s/v%d.md", sessionID, artifactID, version)
}
