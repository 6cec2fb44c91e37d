package interview_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/playbook"
	"github.com/navadimml/chitta/pkg/repository"
	"github.com/navadimml/chitta/pkg/usecase/interview"
	"google.golang.org/genai"
)

// geminiMock replays scripted responses in order. The first call of a turn
// is the extraction (structured output), the second is the reply.
type geminiMock struct {
	responses []string
	calls     int
	failAt    int // 1-based call index that returns an error, 0 to disable
}

func (m *geminiMock) GenerateContent(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	m.calls++
	if m.failAt > 0 && m.calls == m.failAt {
		return nil, goerr.New("model unavailable")
	}
	if len(m.responses) == 0 {
		return nil, goerr.New("no scripted response left")
	}
	text := m.responses[0]
	m.responses = m.responses[1:]

	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Role:  genai.RoleModel,
					Parts: []*genai.Part{{Text: text}},
				},
			},
		},
	}, nil
}

// generatorMock records requests and immediately marks the artifact ready.
type generatorMock struct {
	repo     repository.Repository
	requests []model.ArtifactID
}

func (g *generatorMock) Generate(ctx context.Context, sessionID model.SessionID, artifactID model.ArtifactID) error {
	g.requests = append(g.requests, artifactID)

	sess, err := g.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	a := sess.Artifacts[artifactID]
	if err := a.Transition(model.StatusGenerating); err != nil {
		return err
	}
	if err := a.Transition(model.StatusReady); err != nil {
		return err
	}
	return g.repo.PutSession(ctx, sess)
}

func newTestUseCase(t *testing.T, mock *geminiMock, gen interview.ArtifactGenerator) (*interview.UseCase, repository.Repository) {
	t.Helper()
	pb, err := playbook.Default()
	gt.NoError(t, err)

	repo := repository.NewMemory()
	uc, err := interview.New(interview.NewInput{
		Repo:      repo,
		Gemini:    mock,
		Playbook:  pb,
		Generator: gen,
	})
	gt.NoError(t, err)
	return uc, repo
}

func TestTurnMergesAndResponds(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{responses: []string{
		`{"child_name": "Mia", "age": 4, "primary_concerns": ["speech delay"]}`,
		"Thanks for telling me about Mia. When did you first notice her speech was behind?",
	}}
	uc, _ := newTestUseCase(t, mock, nil)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	result, err := uc.Turn(ctx, interview.TurnInput{
		SessionID: sess.ID,
		Message:   "My daughter Mia is 4 and barely speaks.",
	})
	gt.NoError(t, err)
	gt.S(t, result.ResponseText).Contains("Mia")
	gt.Number(t, result.Completeness).Greater(0)

	stored, err := uc.Get(ctx, sess.ID)
	gt.NoError(t, err)
	gt.Equal(t, stored.Facts.Scalar("child_name"), "Mia")
	num, ok := stored.Facts.Number("age")
	gt.True(t, ok)
	gt.Equal(t, num, 4)
	gt.A(t, stored.Facts.Set("primary_concerns")).Length(1)
	gt.Equal(t, stored.Turn, 1)
	gt.A(t, stored.Log).Length(2) // parent + assistant
}

func TestTurnFiresMomentWithoutLag(t *testing.T) {
	ctx := context.Background()
	// Identity complete plus two concern fields lands at 0.43, past the 0.3
	// threshold of concern_acknowledged on this very turn.
	mock := &geminiMock{responses: []string{
		`{"child_name": "Mia", "age": 4, "gender": "girl",
		  "primary_concerns": ["speech delay"], "concern_onset": "around her third birthday"}`,
		"That must be worrying. Tell me more about how Mia communicates at home.",
	}}
	uc, _ := newTestUseCase(t, mock, nil)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	result, err := uc.Turn(ctx, interview.TurnInput{
		SessionID: sess.ID,
		Message:   "Mia is my 4 year old girl, she started falling behind on speech around her third birthday.",
	})
	gt.NoError(t, err)
	gt.A(t, result.FiredMoments).Length(1)
	gt.Equal(t, result.FiredMoments[0], model.MomentID("concern_acknowledged"))
	gt.A(t, result.SystemMessages).Length(1)
	gt.S(t, result.SystemMessages[0]).Contains("Mia")
	gt.S(t, result.SystemMessages[0]).Contains("speech delay")

	stored, err := uc.Get(ctx, sess.ID)
	gt.NoError(t, err)
	gt.True(t, stored.HasFired("concern_acknowledged"))
}

func TestTurnFiresOnceOnly(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{responses: []string{
		`{"child_name": "Mia", "age": 4, "gender": "girl",
		  "primary_concerns": ["speech delay"], "concern_onset": "age three"}`,
		"Thanks for sharing.",
		`{}`,
		"Anything else about her daily routine?",
	}}
	uc, _ := newTestUseCase(t, mock, nil)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	first, err := uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Mia is 4, a girl, speech delay since age three."})
	gt.NoError(t, err)
	gt.A(t, first.FiredMoments).Length(1)

	// Condition still holds next turn; the moment must not fire again.
	second, err := uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Yes."})
	gt.NoError(t, err)
	gt.A(t, second.FiredMoments).Length(0)
}

func TestTurnFailureLeavesSessionUntouched(t *testing.T) {
	ctx := context.Background()
	// Extraction succeeds, the reply call fails: nothing of the turn may
	// survive, including the merged facts.
	mock := &geminiMock{
		responses: []string{`{"child_name": "Mia"}`},
		failAt:    2,
	}
	uc, _ := newTestUseCase(t, mock, nil)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	_, err = uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Her name is Mia."})
	gt.Error(t, err)

	stored, err := uc.Get(ctx, sess.ID)
	gt.NoError(t, err)
	gt.Equal(t, stored.Facts.Scalar("child_name"), "")
	gt.Equal(t, stored.Turn, 0)
	gt.A(t, stored.Log).Length(0)
}

func TestTurnShowsProgressCard(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{responses: []string{
		`{"child_name": "Mia"}`,
		"Nice to meet Mia!",
	}}
	uc, _ := newTestUseCase(t, mock, nil)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	result, err := uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Her name is Mia."})
	gt.NoError(t, err)

	// Low completeness keeps the persistent progress card visible.
	gt.A(t, result.Cards).Longer(0)
	gt.Equal(t, result.Cards[0].Moment, model.MomentID("interview_progress"))
	gt.S(t, result.Cards[0].Title).Contains("Mia")
}

const fullDetailsJSON = `{
	"child_name": "Mia", "age": 4, "gender": "girl",
	"primary_concerns": ["speech delay", "social withdrawal"],
	"concern_onset": "around her third birthday",
	"concern_details": "Mia mostly points instead of speaking, uses fewer than twenty words, and gets frustrated when we do not understand her. At daycare she plays alone and avoids the other children during group activities.",
	"strengths": ["puzzles", "drawing"],
	"developmental_history": "Pregnancy and birth were unremarkable. She walked at 13 months but her first words came late, around two years.",
	"family_context": "She lives with both parents and an older brother. We speak two languages at home, and we moved cities last spring.",
	"daily_routine": "She wakes at seven, attends daycare until four, plays quietly before dinner and sleeps at eight.",
	"parent_goals": "We want her to communicate her needs with words and feel confident joining other children in play."
}`

func TestTurnRequestsArtifactAndUnlocks(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{responses: []string{
		fullDetailsJSON,
		"Thank you, that gives a really full picture of Mia.",
	}}

	pb, err := playbook.Default()
	gt.NoError(t, err)
	repo := repository.NewMemory()
	gen := &generatorMock{repo: repo}
	uc, err := interview.New(interview.NewInput{
		Repo:      repo,
		Gemini:    mock,
		Playbook:  pb,
		Generator: gen,
	})
	gt.NoError(t, err)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)

	result, err := uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Here is everything about Mia."})
	gt.NoError(t, err)
	gt.Number(t, result.Completeness).GreaterOrEqual(0.8)

	fired := map[model.MomentID]bool{}
	for _, id := range result.FiredMoments {
		fired[id] = true
	}
	gt.True(t, fired["concern_acknowledged"])
	gt.True(t, fired["offer_guidelines"])

	// The generator received the request and marked the artifact ready.
	gt.A(t, gen.requests).Length(1)
	gt.Equal(t, gen.requests[0], model.ArtifactID("video_guidelines"))

	stored, err := uc.Get(ctx, sess.ID)
	gt.NoError(t, err)
	a := stored.Artifacts["video_guidelines"]
	gt.V(t, a).NotNil()
	gt.Equal(t, a.Status, model.StatusReady)

	// request_review comes from the moment unlock; the artifact enables show
	// up in the resolved state once it is ready.
	state, err := uc.State(ctx, sess.ID)
	gt.NoError(t, err)
	actions := map[model.ActionID]bool{}
	for _, id := range state.UnlockedActions {
		actions[id] = true
	}
	gt.True(t, actions["request_review"])
	gt.True(t, actions["view_guidelines"])
	gt.True(t, actions["consult"])
}

func TestMarkViewedDismissesCard(t *testing.T) {
	ctx := context.Background()
	mock := &geminiMock{responses: []string{
		fullDetailsJSON,
		"Thank you for all the detail.",
	}}

	pb, err := playbook.Default()
	gt.NoError(t, err)
	repo := repository.NewMemory()
	gen := &generatorMock{repo: repo}
	uc, err := interview.New(interview.NewInput{
		Repo:      repo,
		Gemini:    mock,
		Playbook:  pb,
		Generator: gen,
	})
	gt.NoError(t, err)

	sess, err := uc.Create(ctx)
	gt.NoError(t, err)
	_, err = uc.Turn(ctx, interview.TurnInput{SessionID: sess.ID, Message: "Here is everything about Mia."})
	gt.NoError(t, err)

	state, err := uc.State(ctx, sess.ID)
	gt.NoError(t, err)
	gt.True(t, hasCard(state.Cards, "offer_guidelines"))

	gt.NoError(t, uc.MarkViewed(ctx, sess.ID, "viewed_guidelines"))

	state, err = uc.State(ctx, sess.ID)
	gt.NoError(t, err)
	gt.False(t, hasCard(state.Cards, "offer_guidelines"))
}

func hasCard(cards []*model.Card, moment model.MomentID) bool {
	for _, c := range cards {
		if c.Moment == moment {
			return true
		}
	}
	return false
}
