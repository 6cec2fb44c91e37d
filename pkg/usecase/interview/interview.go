// Package interview runs the conversational interview loop: each parent
// message is extracted into partial facts, merged into the session store,
// scored, reconciled against the playbook moments and answered, all within
// one turn.
package interview

import (
	"context"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/engine"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/playbook"
	"github.com/navadimml/chitta/pkg/policy"
	"github.com/navadimml/chitta/pkg/repository"
)

// ArtifactGenerator produces the content of a requested artifact. Generation
// failures never fail a turn; the artifact record carries the error instead.
type ArtifactGenerator interface {
	Generate(ctx context.Context, sessionID model.SessionID, artifactID model.ArtifactID) error
}

// UseCase wires the turn pipeline. One UseCase serves all sessions; turns on
// the same session are serialized, turns on different sessions run freely.
type UseCase struct {
	repo      repository.Repository
	gemini    adapter.Gemini
	playbook  *playbook.Playbook
	policy    *policy.Policy
	generator ArtifactGenerator
	analytics adapter.Analytics

	merger     *engine.Merger
	scorer     *engine.Scorer
	reconciler *engine.Reconciler
	cards      *engine.CardResolver
	actions    *engine.ActionResolver

	mu    sync.Mutex
	locks map[model.SessionID]*sync.Mutex
}

// NewInput contains parameters for creating the interview use case. Policy,
// Generator and Analytics are optional.
type NewInput struct {
	Repo      repository.Repository
	Gemini    adapter.Gemini
	Playbook  *playbook.Playbook
	Policy    *policy.Policy
	Generator ArtifactGenerator
	Analytics adapter.Analytics
}

func New(input NewInput) (*UseCase, error) {
	if input.Repo == nil {
		return nil, goerr.New("repository is required")
	}
	if input.Gemini == nil {
		return nil, goerr.New("gemini client is required")
	}
	if input.Playbook == nil {
		return nil, goerr.New("playbook is required")
	}

	eval := engine.NewEvaluator()
	return &UseCase{
		repo:      input.Repo,
		gemini:    input.Gemini,
		playbook:  input.Playbook,
		policy:    input.Policy,
		generator: input.Generator,
		analytics: input.Analytics,

		merger:     engine.NewMerger(&input.Playbook.Schema),
		scorer:     engine.NewScorer(&input.Playbook.Schema),
		reconciler: engine.NewReconciler(input.Playbook.Moments, eval),
		cards:      engine.NewCardResolver(input.Playbook.Moments, eval),
		actions:    engine.NewActionResolver(input.Playbook.BaseActions, input.Playbook.Artifacts),

		locks: make(map[model.SessionID]*sync.Mutex),
	}, nil
}

// sessionLock returns the mutex serializing turns for one session.
func (u *UseCase) sessionLock(id model.SessionID) *sync.Mutex {
	u.mu.Lock()
	defer u.mu.Unlock()
	l, ok := u.locks[id]
	if !ok {
		l = &sync.Mutex{}
		u.locks[id] = l
	}
	return l
}

// Create starts a new interview session.
func (u *UseCase) Create(ctx context.Context) (*model.Session, error) {
	sess := model.NewSession()
	if err := u.repo.PutSession(ctx, sess); err != nil {
		return nil, goerr.Wrap(err, "failed to create session")
	}
	return sess, nil
}

// Get loads a session.
func (u *UseCase) Get(ctx context.Context, id model.SessionID) (*model.Session, error) {
	return u.repo.GetSession(ctx, id)
}

// List returns sessions, most recently updated first.
func (u *UseCase) List(ctx context.Context, offset, limit int) ([]*model.Session, error) {
	return u.repo.ListSessions(ctx, offset, limit)
}

// State resolves the current presentation state of a session without running
// a turn: completeness, visible cards and unlocked actions.
func (u *UseCase) State(ctx context.Context, id model.SessionID) (*model.TurnResult, error) {
	sess, err := u.repo.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	completeness := u.scorer.Score(sess.Facts)
	return &model.TurnResult{
		SessionID:       sess.ID,
		Completeness:    completeness,
		Cards:           u.cards.VisibleCards(ctx, sess, completeness, u.playbook.MaxCards),
		UnlockedActions: u.actions.UnlockedActions(sess),
	}, nil
}

// MarkViewed sets a viewer flag on the session, used by dismiss_when
// conditions such as flags.viewed_guidelines.
func (u *UseCase) MarkViewed(ctx context.Context, id model.SessionID, flag string) error {
	lock := u.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	sess, err := u.repo.GetSession(ctx, id)
	if err != nil {
		return err
	}
	sess.Flags[flag] = true
	return u.repo.PutSession(ctx, sess)
}

// sortedFieldNames lists schema fields in a stable order for prompts.
func sortedFieldNames(schema *model.Schema) []string {
	names := make([]string, 0, len(schema.Fields))
	for i := range schema.Fields {
		names = append(names, schema.Fields[i].Name)
	}
	sort.Strings(names)
	return names
}
