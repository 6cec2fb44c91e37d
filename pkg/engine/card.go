package engine

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/navadimml/chitta/pkg/model"
)

var fieldToken = regexp.MustCompile(`\{([a-z0-9_]+)\}`)

// Substitute fills {field} tokens in a template from the fact store. Unset
// fields substitute to an empty string.
func Substitute(template string, facts model.Facts) string {
	return fieldToken.ReplaceAllStringFunc(template, func(tok string) string {
		name := tok[1 : len(tok)-1]
		if vals := facts.Set(name); len(vals) > 0 {
			return strings.Join(vals, ", ")
		}
		return facts.Scalar(name)
	})
}

// CardResolver derives the currently visible cards as a pure function of
// the session snapshot.
type CardResolver struct {
	moments []*model.Moment
	eval    *Evaluator
}

func NewCardResolver(moments []*model.Moment, eval *Evaluator) *CardResolver {
	return &CardResolver{moments: moments, eval: eval}
}

// VisibleCards computes the card set for this turn:
//
//   - a once-moment's card is visible from the turn it fired onward,
//   - a persistent moment's card is visible exactly while its condition holds,
//   - dismiss_when hides a card even though the owning condition holds,
//   - a card opening an artifact stays hidden until that artifact is ready,
//   - cards sort by priority descending and truncate to maxCount (hard cap).
func (r *CardResolver) VisibleCards(ctx context.Context, sess *model.Session, completeness float64, maxCount int) []*model.Card {
	ec := BuildContext(sess, completeness)

	var cards []*model.Card
	for _, m := range r.moments {
		spec := m.Effects.Card
		if spec == nil {
			continue
		}

		switch m.FireMode {
		case model.FireOnce:
			if !sess.HasFired(m.ID) {
				continue
			}
		case model.FirePersistent:
			if !r.eval.Eval(ctx, &m.When, ec) {
				continue
			}
		}

		if spec.DismissWhen != nil && r.eval.Eval(ctx, spec.DismissWhen, ec) {
			continue
		}

		if spec.Artifact != "" {
			a, ok := sess.Artifacts[spec.Artifact]
			if !ok || a.Status != model.StatusReady {
				continue
			}
		}

		cards = append(cards, &model.Card{
			Moment:   m.ID,
			Title:    Substitute(spec.Title, sess.Facts),
			Body:     Substitute(spec.Body, sess.Facts),
			Color:    spec.Color,
			Actions:  spec.Actions,
			Priority: spec.Priority,
		})
	}

	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Priority != cards[j].Priority {
			return cards[i].Priority > cards[j].Priority
		}
		return cards[i].Moment < cards[j].Moment
	})

	if maxCount > 0 && len(cards) > maxCount {
		cards = cards[:maxCount]
	}
	return cards
}
