package engine_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/navadimml/chitta/pkg/engine"
	"github.com/navadimml/chitta/pkg/model"
)

func onceMoment(t *testing.T, id string, priority int, when string, effects model.Effects) *model.Moment {
	t.Helper()
	return &model.Moment{
		ID:       model.MomentID(id),
		Priority: priority,
		FireMode: model.FireOnce,
		When:     *parseCondition(t, when),
		Effects:  effects,
	}
}

func TestMomentFiresExactlyOnce(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		onceMoment(t, "offer_guidelines", 80, `completeness: ">= 0.8"`, model.Effects{
			Artifact: "video_guidelines",
		}),
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	// Condition toggles true -> false -> true across turns; the moment
	// fires only the first time.
	result := rec.Reconcile(ctx, sess, 0.85)
	gt.Equal(t, result.NewlyFired, []model.MomentID{"offer_guidelines"})
	gt.Equal(t, result.ArtifactRequests, []model.ArtifactID{"video_guidelines"})

	result = rec.Reconcile(ctx, sess, 0.4)
	gt.A(t, result.NewlyFired).Length(0)

	result = rec.Reconcile(ctx, sess, 0.9)
	gt.A(t, result.NewlyFired).Length(0)

	gt.True(t, sess.HasFired("offer_guidelines"))
}

func TestMomentNoLagFiring(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		onceMoment(t, "named", 10, `facts.child_name: Mia`, model.Effects{
			Message: "Noted {child_name}.",
		}),
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	result := rec.Reconcile(ctx, sess, 0.1)
	gt.A(t, result.NewlyFired).Length(0)

	// The turn that merges the fact is the turn the moment fires.
	sess.Facts["child_name"] = "Mia"
	result = rec.Reconcile(ctx, sess, 0.15)
	gt.Equal(t, result.NewlyFired, []model.MomentID{"named"})
	gt.Equal(t, result.Messages, []string{"Noted Mia."})
}

func TestMomentAllNewlyTrueFireSameTurn(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		onceMoment(t, "low", 10, `completeness: ">= 0.3"`, model.Effects{}),
		onceMoment(t, "high", 90, `completeness: ">= 0.8"`, model.Effects{}),
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	// Both thresholds crossed in a single turn; both fire, higher priority
	// first.
	result := rec.Reconcile(ctx, sess, 0.85)
	gt.Equal(t, result.NewlyFired, []model.MomentID{"high", "low"})
}

func TestMomentPriorityOrderDeterministic(t *testing.T) {
	ctx := context.Background()
	a := onceMoment(t, "aaa", 50, `completeness: ">= 0"`, model.Effects{})
	b := onceMoment(t, "bbb", 50, `completeness: ">= 0"`, model.Effects{})

	// Same registry in both declaration orders: ties break by id, so the
	// firing order is identical.
	r1 := engine.NewReconciler([]*model.Moment{a, b}, engine.NewEvaluator())
	r2 := engine.NewReconciler([]*model.Moment{b, a}, engine.NewEvaluator())

	gt.Equal(t,
		r1.Reconcile(ctx, model.NewSession(), 0.5).NewlyFired,
		r2.Reconcile(ctx, model.NewSession(), 0.5).NewlyFired,
	)
}

func TestMomentPersistentHasNoBookkeeping(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		{
			ID:       "progress",
			FireMode: model.FirePersistent,
			When:     *parseCondition(t, `completeness: "< 0.8"`),
			Effects:  model.Effects{Card: &model.CardSpec{Title: "Keep going"}},
		},
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	result := rec.Reconcile(ctx, sess, 0.2)
	gt.A(t, result.NewlyFired).Length(0)
	gt.A(t, sess.FiredMoments).Length(0)
}

func TestMomentUnlockEffect(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		onceMoment(t, "unlock_review", 10, `completeness: ">= 0.5"`, model.Effects{
			Unlocks: []model.ActionID{"request_review"},
		}),
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	result := rec.Reconcile(ctx, sess, 0.6)
	gt.Equal(t, result.Unlocks, []model.ActionID{"request_review"})
	gt.Equal(t, sess.Unlocked, []model.ActionID{"request_review"})
}

func TestMomentConditionOnFired(t *testing.T) {
	ctx := context.Background()
	moments := []*model.Moment{
		onceMoment(t, "first", 90, `completeness: ">= 0.5"`, model.Effects{}),
		onceMoment(t, "second", 10, `fired.first: true`, model.Effects{}),
	}
	rec := engine.NewReconciler(moments, engine.NewEvaluator())
	sess := model.NewSession()

	// "second" sees the same snapshot as "first", so it fires one turn
	// later, once "first" is in fired_moments.
	result := rec.Reconcile(ctx, sess, 0.6)
	gt.Equal(t, result.NewlyFired, []model.MomentID{"first"})

	result = rec.Reconcile(ctx, sess, 0.6)
	gt.Equal(t, result.NewlyFired, []model.MomentID{"second"})
}
