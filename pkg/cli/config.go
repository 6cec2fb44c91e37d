package cli

import (
	"context"
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/adapter"
	"github.com/navadimml/chitta/pkg/playbook"
	"github.com/navadimml/chitta/pkg/policy"
	"github.com/navadimml/chitta/pkg/repository"
	"github.com/navadimml/chitta/pkg/usecase/artifact"
	"github.com/navadimml/chitta/pkg/usecase/interview"
	"github.com/navadimml/chitta/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

// config holds configuration values
type config struct {
	// Repository
	project  string
	database string

	// LLM
	geminiProject  string
	geminiLocation string
	geminiModel    string

	// Playbook and policy
	playbookPath string
	policyDir    string

	// Artifact storage
	bucket string

	// Analytics
	bqDataset string
	bqTable   string

	// Consultation
	mcpConfig string

	// Logging
	logLevel string
}

// globalFlags returns common flags used across commands with destination config
func globalFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "project",
			Aliases:     []string{"p"},
			Usage:       "Google Cloud project ID",
			Sources:     cli.EnvVars("GOOGLE_CLOUD_PROJECT"),
			Destination: &cfg.project,
		},
		&cli.StringFlag{
			Name:        "database",
			Aliases:     []string{"d"},
			Usage:       "Firestore database ID",
			Value:       "(default)",
			Sources:     cli.EnvVars("FIRESTORE_DATABASE_ID"),
			Destination: &cfg.database,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "Log level (debug, info, warn, error)",
			Value:       "info",
			Sources:     cli.EnvVars("CHITTA_LOG_LEVEL"),
			Destination: &cfg.logLevel,
		},
	}
}

// llmFlags returns flags for LLM-related configuration with destination config
func llmFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "gemini-project",
			Usage:       "Google Cloud project ID for Gemini",
			Sources:     cli.EnvVars("GEMINI_PROJECT_ID"),
			Destination: &cfg.geminiProject,
		},
		&cli.StringFlag{
			Name:        "gemini-location",
			Usage:       "Google Cloud location for Gemini",
			Value:       "us-central1",
			Sources:     cli.EnvVars("GEMINI_LOCATION"),
			Destination: &cfg.geminiLocation,
		},
		&cli.StringFlag{
			Name:        "gemini-model",
			Usage:       "Gemini model name",
			Sources:     cli.EnvVars("GEMINI_MODEL"),
			Destination: &cfg.geminiModel,
		},
	}
}

// playbookFlags returns flags for the playbook and escalation policy
func playbookFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "playbook",
			Usage:       "Path to playbook YAML (built-in default when omitted)",
			Sources:     cli.EnvVars("CHITTA_PLAYBOOK"),
			Destination: &cfg.playbookPath,
		},
		&cli.StringFlag{
			Name:        "policy-dir",
			Usage:       "Directory of Rego escalation policies",
			Sources:     cli.EnvVars("CHITTA_POLICY_DIR"),
			Destination: &cfg.policyDir,
		},
	}
}

// storageFlags returns flags for artifact content storage
func storageFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bucket",
			Usage:       "Cloud Storage bucket for generated artifacts",
			Sources:     cli.EnvVars("CHITTA_BUCKET"),
			Destination: &cfg.bucket,
		},
	}
}

// analyticsFlags returns flags for turn metrics export
func analyticsFlags(cfg *config) []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "bq-dataset",
			Usage:       "BigQuery dataset for turn metrics (export disabled when omitted)",
			Sources:     cli.EnvVars("CHITTA_BQ_DATASET"),
			Destination: &cfg.bqDataset,
		},
		&cli.StringFlag{
			Name:        "bq-table",
			Usage:       "BigQuery table for turn metrics",
			Value:       "turns",
			Sources:     cli.EnvVars("CHITTA_BQ_TABLE"),
			Destination: &cfg.bqTable,
		},
	}
}

// withLogger attaches a logger at the configured level to the context.
func (cfg *config) withLogger(ctx context.Context) context.Context {
	logger := logging.New(cfg.logLevel, os.Stdout)
	logging.SetDefault(logger)
	return logging.With(ctx, logger)
}

// newRepository creates a repository. Without a project it falls back to the
// in-memory store, which only makes sense for single-process runs.
func (cfg *config) newRepository(ctx context.Context) (repository.Repository, error) {
	if cfg.project == "" {
		logging.From(ctx).Warn("no project configured, using in-memory repository")
		return repository.NewMemory(), nil
	}
	if cfg.database == "" {
		return nil, goerr.New("database is required")
	}

	repo, err := repository.NewFirestore(ctx, cfg.project, cfg.database)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create repository")
	}
	return repo, nil
}

// newGemini creates a new Gemini adapter instance
func (cfg *config) newGemini(ctx context.Context) (adapter.Gemini, error) {
	if cfg.geminiProject == "" {
		return nil, goerr.New("gemini-project is required")
	}
	if cfg.geminiLocation == "" {
		return nil, goerr.New("gemini-location is required")
	}

	var opts []adapter.GeminiOption
	if cfg.geminiModel != "" {
		opts = append(opts, adapter.WithGenerativeModel(cfg.geminiModel))
	}
	return adapter.NewGemini(ctx, cfg.geminiProject, cfg.geminiLocation, opts...)
}

// newPlaybook loads the configured playbook, or the built-in default.
func (cfg *config) newPlaybook() (*playbook.Playbook, error) {
	if cfg.playbookPath == "" {
		return playbook.Default()
	}
	return playbook.Load(cfg.playbookPath)
}

// newPolicy loads the escalation policy dir. Nil when not configured.
func (cfg *config) newPolicy(ctx context.Context) (*policy.Policy, error) {
	if cfg.policyDir == "" {
		return nil, nil
	}
	return policy.Load(ctx, cfg.policyDir)
}

// newStorage creates the artifact content storage.
func (cfg *config) newStorage(ctx context.Context) (adapter.Storage, error) {
	if cfg.bucket == "" {
		return nil, goerr.New("bucket is required")
	}
	return adapter.NewStorage(ctx, cfg.bucket)
}

// newAnalytics creates the BigQuery exporter. Nil when not configured.
func (cfg *config) newAnalytics(ctx context.Context) (adapter.Analytics, error) {
	if cfg.bqDataset == "" {
		return nil, nil
	}
	if cfg.project == "" {
		return nil, goerr.New("project is required for analytics")
	}
	table := cfg.bqTable
	if table == "" {
		table = "turns"
	}
	return adapter.NewAnalytics(ctx, cfg.project, cfg.bqDataset, table)
}

// newInterview assembles the interview use case with whatever optional
// pieces are configured: policy, artifact generation, analytics.
func (cfg *config) newInterview(ctx context.Context) (*interview.UseCase, repository.Repository, error) {
	repo, err := cfg.newRepository(ctx)
	if err != nil {
		return nil, nil, err
	}
	gemini, err := cfg.newGemini(ctx)
	if err != nil {
		return nil, nil, err
	}
	pb, err := cfg.newPlaybook()
	if err != nil {
		return nil, nil, err
	}
	pol, err := cfg.newPolicy(ctx)
	if err != nil {
		return nil, nil, err
	}
	analytics, err := cfg.newAnalytics(ctx)
	if err != nil {
		return nil, nil, err
	}

	var generator interview.ArtifactGenerator
	if cfg.bucket != "" {
		storage, err := cfg.newStorage(ctx)
		if err != nil {
			return nil, nil, err
		}
		gen, err := artifact.New(artifact.NewInput{
			Repo:     repo,
			Gemini:   gemini,
			Storage:  storage,
			Playbook: pb,
		})
		if err != nil {
			return nil, nil, err
		}
		generator = gen
	} else {
		logging.From(ctx).Warn("no bucket configured, artifact generation disabled")
	}

	uc, err := interview.New(interview.NewInput{
		Repo:      repo,
		Gemini:    gemini,
		Playbook:  pb,
		Policy:    pol,
		Generator: generator,
		Analytics: analytics,
	})
	if err != nil {
		return nil, nil, err
	}
	return uc, repo, nil
}
