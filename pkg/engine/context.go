package engine

import (
	"github.com/navadimml/chitta/pkg/model"
)

// Context is the flattened, immutable snapshot conditions evaluate against.
// It is built once per turn, after the merge completes and before any moment
// evaluates, so every moment of one turn sees the same state.
type Context map[string]any

// BuildContext assembles the evaluation snapshot from a session and its
// freshly computed completeness.
func BuildContext(sess *model.Session, completeness float64) Context {
	facts := make(map[string]any, len(sess.Facts))
	for k, v := range sess.Facts {
		facts[k] = v
	}

	artifacts := make(map[string]any, len(sess.Artifacts))
	for id, a := range sess.Artifacts {
		artifacts[string(id)] = map[string]any{
			"status":  string(a.Status),
			"version": a.Version,
		}
	}

	flags := make(map[string]any, len(sess.Flags))
	for k, v := range sess.Flags {
		flags[k] = v
	}

	fired := make(map[string]any, len(sess.FiredMoments))
	for _, id := range sess.FiredMoments {
		fired[string(id)] = true
	}

	return Context{
		"facts":        facts,
		"completeness": completeness,
		"artifacts":    artifacts,
		"flags":        flags,
		"fired":        fired,
		"turn":         sess.Turn,
	}
}

// Resolve walks a dotted path through nested maps. The second return value
// is false when any segment is missing; a missing path is a defined absence,
// not an error.
func (c Context) Resolve(path string) (any, bool) {
	var cur any = map[string]any(c)
	start := 0
	for i := 0; i <= len(path); i++ {
		if i < len(path) && path[i] != '.' {
			continue
		}
		seg := path[start:i]
		start = i + 1
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}
