package engine

import (
	"context"
	"sort"

	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/utils/logging"
)

// ReconcileResult carries everything a turn's moment pass decided. Effects
// are accumulated here and executed by the caller; the engine itself touches
// no external system.
type ReconcileResult struct {
	NewlyFired       []model.MomentID
	Messages         []string
	ArtifactRequests []model.ArtifactID
	Unlocks          []model.ActionID
}

// Reconciler walks the moment registry once per turn, after the merger and
// scorer have run, and fires once-moments that are newly true. A moment
// whose prerequisite became true this turn fires this turn.
type Reconciler struct {
	moments []*model.Moment
	eval    *Evaluator
}

// NewReconciler orders moments by priority (descending) with moment id as a
// deterministic tie-break, so evaluation order survives reordering of
// unrelated moments in the playbook.
func NewReconciler(moments []*model.Moment, eval *Evaluator) *Reconciler {
	ordered := append([]*model.Moment(nil), moments...)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Priority != ordered[j].Priority {
			return ordered[i].Priority > ordered[j].Priority
		}
		return ordered[i].ID < ordered[j].ID
	})
	return &Reconciler{moments: ordered, eval: eval}
}

// Reconcile evaluates every registered moment against one snapshot of the
// session. Once-moments fire iff their condition holds and they are not in
// fired_moments; firing is recorded on the session and is irreversible.
// Persistent moments involve no bookkeeping here; their cards are handled
// by the card resolver.
func (r *Reconciler) Reconcile(ctx context.Context, sess *model.Session, completeness float64) *ReconcileResult {
	// One snapshot for the whole pass: every moment of this turn sees the
	// same post-merge state.
	ec := BuildContext(sess, completeness)

	result := &ReconcileResult{}
	for _, m := range r.moments {
		if m.FireMode != model.FireOnce {
			continue
		}
		if sess.HasFired(m.ID) {
			continue
		}
		if !r.eval.Eval(ctx, &m.When, ec) {
			continue
		}

		sess.MarkFired(m.ID)
		result.NewlyFired = append(result.NewlyFired, m.ID)

		if m.Effects.Message != "" {
			result.Messages = append(result.Messages, Substitute(m.Effects.Message, sess.Facts))
		}
		if m.Effects.Artifact != "" {
			result.ArtifactRequests = append(result.ArtifactRequests, m.Effects.Artifact)
		}
		if len(m.Effects.Unlocks) > 0 {
			sess.Unlock(m.Effects.Unlocks)
			result.Unlocks = append(result.Unlocks, m.Effects.Unlocks...)
		}

		logging.From(ctx).Info("moment fired",
			"moment", m.ID,
			"session", sess.ID,
			"completeness", completeness,
		)
	}

	return result
}
