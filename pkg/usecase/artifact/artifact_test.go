package artifact_test

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/playbook"
	"github.com/navadimml/chitta/pkg/repository"
	"github.com/navadimml/chitta/pkg/usecase/artifact"
	"google.golang.org/genai"
)

type geminiMock struct {
	text string
	err  error
}

func (m *geminiMock) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Parts: []*genai.Part{{Text: m.text}}}},
		},
	}, nil
}

type storageMock struct {
	objects map[string][]byte
}

func newStorageMock() *storageMock {
	return &storageMock{objects: make(map[string][]byte)}
}

type storageWriter struct {
	bytes.Buffer
	done func([]byte)
}

func (w *storageWriter) Close() error {
	w.done(w.Bytes())
	return nil
}

func (s *storageMock) Put(ctx context.Context, key string) (io.WriteCloser, error) {
	return &storageWriter{done: func(data []byte) { s.objects[key] = data }}, nil
}

func (s *storageMock) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, goerr.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func setup(t *testing.T, mock *geminiMock) (*artifact.Generator, repository.Repository, *storageMock, *model.Session) {
	t.Helper()
	pb, err := playbook.Default()
	gt.NoError(t, err)

	repo := repository.NewMemory()
	store := newStorageMock()
	gen, err := artifact.New(artifact.NewInput{
		Repo:     repo,
		Gemini:   mock,
		Storage:  store,
		Playbook: pb,
	})
	gt.NoError(t, err)

	sess := model.NewSession()
	sess.Facts["child_name"] = "Mia"
	sess.Artifacts["video_guidelines"] = model.NewArtifact("video_guidelines")
	gt.NoError(t, repo.PutSession(context.Background(), sess))

	return gen, repo, store, sess
}

func TestGenerateSuccess(t *testing.T) {
	ctx := context.Background()
	gen, repo, _, sess := setup(t, &geminiMock{text: "# Guidelines for Mia\n\nFilm short clips during play."})

	gt.NoError(t, gen.Generate(ctx, sess.ID, "video_guidelines"))

	stored, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	a := stored.Artifacts["video_guidelines"]
	gt.Equal(t, a.Status, model.StatusReady)
	gt.Equal(t, a.Version, 1)
	gt.S(t, a.StorageKey).Contains("video_guidelines")

	content, err := gen.Content(ctx, sess.ID, "video_guidelines")
	gt.NoError(t, err)
	gt.S(t, content).Contains("Mia")
}

func TestGenerateFailureRecordsError(t *testing.T) {
	ctx := context.Background()
	gen, repo, _, sess := setup(t, &geminiMock{err: goerr.New("model unavailable")})

	gt.Error(t, gen.Generate(ctx, sess.ID, "video_guidelines"))

	stored, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	a := stored.Artifacts["video_guidelines"]
	gt.Equal(t, a.Status, model.StatusError)
	gt.S(t, a.Error).Contains("model unavailable")

	_, err = gen.Content(ctx, sess.ID, "video_guidelines")
	gt.Error(t, err)
}

func TestRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{err: goerr.New("model unavailable")}
	gen, repo, _, sess := setup(t, mock)

	gt.Error(t, gen.Generate(ctx, sess.ID, "video_guidelines"))

	mock.err = nil
	mock.text = "# Guidelines for Mia"
	gt.NoError(t, gen.Retry(ctx, sess.ID, "video_guidelines"))

	stored, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	a := stored.Artifacts["video_guidelines"]
	gt.Equal(t, a.Status, model.StatusReady)
	gt.Equal(t, a.Error, "")
	gt.Equal(t, a.Version, 1)
}

func TestRegenerateBumpsVersion(t *testing.T) {
	ctx := context.Background()
	gen, repo, store, sess := setup(t, &geminiMock{text: "# Guidelines for Mia"})

	gt.NoError(t, gen.Generate(ctx, sess.ID, "video_guidelines"))
	gt.NoError(t, gen.Generate(ctx, sess.ID, "video_guidelines"))

	stored, err := repo.GetSession(ctx, sess.ID)
	gt.NoError(t, err)
	a := stored.Artifacts["video_guidelines"]
	gt.Equal(t, a.Status, model.StatusReady)
	gt.Equal(t, a.Version, 2)
	gt.S(t, a.StorageKey).Contains("v2")
	gt.Equal(t, len(store.objects), 2)
}

func TestGenerateUnknownArtifact(t *testing.T) {
	ctx := context.Background()
	gen, _, _, sess := setup(t, &geminiMock{text: "x"})

	gt.Error(t, gen.Generate(ctx, sess.ID, "nonexistent"))
}

func TestRetryOnlyFromError(t *testing.T) {
	ctx := context.Background()
	gen, _, _, sess := setup(t, &geminiMock{text: "# Guidelines"})

	gt.NoError(t, gen.Generate(ctx, sess.ID, "video_guidelines"))
	gt.Error(t, gen.Retry(ctx, sess.ID, "video_guidelines"))
}
