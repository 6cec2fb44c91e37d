// Package policy evaluates Rego escalation rules against the session fact
// store. Rules set session flags (e.g. escalated, urgent_review) that moment
// conditions can reference through the flags.* context paths.
package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
)

// Query is the entry point document every policy file contributes to.
const Query = "data.escalation"

// Policy evaluates escalation rules. A nil *Policy is valid and evaluates to
// no flags, so callers can pass through when no policy dir is configured.
type Policy struct {
	prepared *rego.PreparedEvalQuery
}

// Load reads all .rego files under policyDir and prepares the escalation
// query. Returns nil (not an error) when the directory holds no policy files.
func Load(ctx context.Context, policyDir string) (*Policy, error) {
	files, err := filepath.Glob(filepath.Join(policyDir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", policyDir))
	}
	if len(files) == 0 {
		return nil, nil
	}

	modules := make([]func(*rego.Rego), 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		modules = append(modules, rego.Module(file, string(data)))
	}

	return prepare(ctx, modules)
}

// Parse prepares a single in-memory policy module.
func Parse(ctx context.Context, name, source string) (*Policy, error) {
	return prepare(ctx, []func(*rego.Rego){rego.Module(name, source)})
}

func prepare(ctx context.Context, modules []func(*rego.Rego)) (*Policy, error) {
	options := make([]func(*rego.Rego), 0, len(modules)+1)
	options = append(options, rego.Query(Query))
	options = append(options, modules...)

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare escalation query")
	}

	return &Policy{prepared: &prepared}, nil
}

// Evaluate runs the escalation rules against the turn input and returns the
// flags the policy asserts. Flags already set on the session are never
// cleared by a later evaluation; the caller unions the result in.
func (p *Policy) Evaluate(ctx context.Context, input map[string]any) (map[string]any, error) {
	if p == nil {
		return nil, nil
	}

	rs, err := p.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to evaluate escalation policy")
	}

	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return nil, nil
	}

	doc, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return nil, goerr.New("escalation policy result is not an object")
	}

	flagsData, ok := doc["flags"]
	if !ok {
		return nil, nil
	}
	flags, ok := flagsData.(map[string]any)
	if !ok {
		return nil, goerr.New("escalation policy flags is not an object")
	}

	if len(flags) > 0 {
		logging.From(ctx).Info("escalation policy asserted flags", "flags", flags)
	}
	return flags, nil
}
