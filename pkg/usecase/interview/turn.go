package interview

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/engine"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/utils/logging"
)

// TurnInput is one parent message addressed to a session.
type TurnInput struct {
	SessionID model.SessionID
	Message   string
}

// Turn runs the full pipeline for one parent message:
//
//	extract -> merge -> score -> policy -> reconcile -> respond -> persist
//
// The pipeline mutates a clone and persists it only when every fallible step
// succeeded, so a failed turn leaves the stored session exactly as it was.
// The reply is generated after the merge and reconcile, so everything the
// message contributed is already visible to it.
func (u *UseCase) Turn(ctx context.Context, input TurnInput) (*model.TurnResult, error) {
	if input.Message == "" {
		return nil, goerr.New("empty message")
	}

	lock := u.sessionLock(input.SessionID)
	lock.Lock()
	defer lock.Unlock()

	stored, err := u.repo.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	sess := stored.Clone()
	sess.Append(model.RoleParent, input.Message)

	partial, err := u.extract(ctx, sess, input.Message)
	if err != nil {
		return nil, goerr.Wrap(err, "extraction failed", goerr.V("session_id", sess.ID))
	}

	rejections := u.merger.Merge(ctx, sess.Facts, partial)
	completeness := u.scorer.Score(sess.Facts)

	u.applyPolicy(ctx, sess, completeness)

	recon := u.reconciler.Reconcile(ctx, sess, completeness)
	for _, id := range recon.ArtifactRequests {
		if _, ok := sess.Artifacts[id]; !ok {
			sess.Artifacts[id] = model.NewArtifact(id)
		}
	}
	for _, msg := range recon.Messages {
		sess.Append(model.RoleSystem, msg)
	}

	reply, err := u.respond(ctx, sess, completeness, recon.Messages)
	if err != nil {
		return nil, goerr.Wrap(err, "response generation failed", goerr.V("session_id", sess.ID))
	}
	sess.Append(model.RoleAssistant, reply)
	sess.Turn++

	if err := u.repo.PutSession(ctx, sess); err != nil {
		return nil, goerr.Wrap(err, "failed to persist turn", goerr.V("session_id", sess.ID))
	}

	u.dispatchArtifacts(ctx, sess.ID, recon.ArtifactRequests)
	u.exportTurn(ctx, sess, completeness, recon, len(rejections))

	return &model.TurnResult{
		SessionID:       sess.ID,
		ResponseText:    reply,
		Completeness:    completeness,
		Cards:           u.cards.VisibleCards(ctx, sess, completeness, u.playbook.MaxCards),
		UnlockedActions: u.actions.UnlockedActions(sess),
		FiredMoments:    recon.NewlyFired,
		SystemMessages:  recon.Messages,
	}, nil
}

// applyPolicy evaluates the escalation rules and unions asserted flags into
// the session. Policy failure degrades to "no new flags"; the interview goes
// on without escalation rather than breaking.
func (u *UseCase) applyPolicy(ctx context.Context, sess *model.Session, completeness float64) {
	if u.policy == nil {
		return
	}

	flags, err := u.policy.Evaluate(ctx, map[string]any{
		"facts":        map[string]any(sess.Facts),
		"completeness": completeness,
		"turn":         sess.Turn,
	})
	if err != nil {
		logging.From(ctx).Warn("escalation policy evaluation failed",
			"session", sess.ID, "error", err)
		return
	}
	for k, v := range flags {
		sess.Flags[k] = v
	}
}

// dispatchArtifacts hands requested artifacts to the generator. Generation is
// best-effort here; a failure lands on the artifact record, not the turn.
func (u *UseCase) dispatchArtifacts(ctx context.Context, sessID model.SessionID, requests []model.ArtifactID) {
	if u.generator == nil {
		return
	}
	for _, id := range requests {
		if err := u.generator.Generate(ctx, sessID, id); err != nil {
			logging.From(ctx).Error("artifact generation failed",
				"session", sessID, "artifact", id, "error", err)
		}
	}
}

// exportTurn sends the turn metrics row. Export never fails a turn.
func (u *UseCase) exportTurn(ctx context.Context, sess *model.Session, completeness float64, recon *engine.ReconcileResult, rejected int) {
	if u.analytics == nil {
		return
	}

	fired := make([]string, 0, len(recon.NewlyFired))
	for _, id := range recon.NewlyFired {
		fired = append(fired, string(id))
	}

	row := &adapter.TurnRow{
		SessionID:      string(sess.ID),
		Turn:           sess.Turn,
		Completeness:   completeness,
		FiredMoments:   fired,
		RejectedFields: rejected,
		Timestamp:      time.Now(),
	}
	if err := u.analytics.InsertTurn(ctx, row); err != nil {
		logging.From(ctx).Warn("turn metrics export failed",
			"session", sess.ID, "error", err)
	}
}
