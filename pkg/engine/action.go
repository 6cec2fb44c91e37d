package engine

import (
	"sort"

	"github.com/navadimml/chitta/pkg/model"
)

// ActionResolver derives the currently permitted actions. It is a pure set
// union: the always-available base set, actions granted by fired moments,
// and the enables of every ready artifact. Artifact readiness is a
// sufficient proxy for unlock state, so no moment conditions are
// re-evaluated here.
type ActionResolver struct {
	base      []model.ActionID
	artifacts map[model.ArtifactID]*model.ArtifactSpec
}

func NewActionResolver(base []model.ActionID, artifacts []model.ArtifactSpec) *ActionResolver {
	byID := make(map[model.ArtifactID]*model.ArtifactSpec, len(artifacts))
	for i := range artifacts {
		byID[artifacts[i].ID] = &artifacts[i]
	}
	return &ActionResolver{base: base, artifacts: byID}
}

// UnlockedActions returns the sorted, deduplicated action set for the
// session snapshot.
func (r *ActionResolver) UnlockedActions(sess *model.Session) []model.ActionID {
	seen := make(map[model.ActionID]bool)
	var out []model.ActionID

	add := func(ids []model.ActionID) {
		for _, id := range ids {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}

	add(r.base)
	add(sess.Unlocked)
	for id, a := range sess.Artifacts {
		if a.Status != model.StatusReady {
			continue
		}
		if spec, ok := r.artifacts[id]; ok {
			add(spec.Enables)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
