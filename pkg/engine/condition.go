package engine

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/utils/logging"
)

// Evaluator evaluates condition trees against a context snapshot. It is
// total: a missing path or a non-numeric value makes the clause false, never
// an error. Evaluating the same condition against the same snapshot always
// yields the same result.
type Evaluator struct {
	mu          sync.Mutex
	missingSeen map[string]struct{}
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		missingSeen: make(map[string]struct{}),
	}
}

// Eval returns whether the condition holds. An empty condition is true.
func (e *Evaluator) Eval(ctx context.Context, cond *model.Condition, ec Context) bool {
	for _, node := range cond.Nodes {
		if !e.evalNode(ctx, node, ec) {
			return false
		}
	}
	return true
}

func (e *Evaluator) evalNode(ctx context.Context, node model.CondNode, ec Context) bool {
	switch n := node.(type) {
	case model.Literal:
		v, ok := ec.Resolve(n.Path)
		if !ok {
			e.logMissing(ctx, n.Path)
			return false
		}
		return literalMatches(v, n.Value)

	case model.Compare:
		v, ok := ec.Resolve(n.Path)
		if !ok {
			e.logMissing(ctx, n.Path)
			return false
		}
		num, ok := asFloat(v)
		if !ok {
			return false
		}
		switch n.Op {
		case model.OpGTE:
			return num >= n.Value
		case model.OpLTE:
			return num <= n.Value
		case model.OpGT:
			return num > n.Value
		case model.OpLT:
			return num < n.Value
		}
		return false

	case model.AnyOf:
		for i := range n.Conds {
			if e.Eval(ctx, &n.Conds[i], ec) {
				return true
			}
		}
		return false

	case model.AllOf:
		for i := range n.Conds {
			if !e.Eval(ctx, &n.Conds[i], ec) {
				return false
			}
		}
		return true
	}
	return false
}

// logMissing warns once per distinct path to aid playbook debugging without
// flooding the log every turn.
func (e *Evaluator) logMissing(ctx context.Context, path string) {
	e.mu.Lock()
	_, seen := e.missingSeen[path]
	if !seen {
		e.missingSeen[path] = struct{}{}
	}
	e.mu.Unlock()

	if !seen {
		logging.From(ctx).Warn("condition path not found in context", "path", path)
	}
}

// literalMatches compares a context value to a condition literal. Numbers
// compare numerically regardless of concrete type, and a list value matches
// when it contains the literal (membership).
func literalMatches(ctxVal, lit any) bool {
	switch v := ctxVal.(type) {
	case []string:
		for _, e := range v {
			if literalMatches(e, lit) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range v {
			if literalMatches(e, lit) {
				return true
			}
		}
		return false
	}

	if a, ok := asFloat(ctxVal); ok {
		if b, ok := asFloat(lit); ok {
			return a == b
		}
	}

	if a, ok := ctxVal.(bool); ok {
		b, ok := lit.(bool)
		return ok && a == b
	}

	as, aok := stringValue(ctxVal)
	bs, bok := stringValue(lit)
	return aok && bok && as == bs
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringValue(v any) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case model.ArtifactStatus:
		return string(s), true
	}
	return "", false
}
