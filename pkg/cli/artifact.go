package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/usecase/artifact"
	"github.com/urfave/cli/v3"
)

func artifactCommand() *cli.Command {
	var (
		cfg        config
		sessionID  model.SessionID
		artifactID model.ArtifactID
		retry      bool
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Session the artifact belongs to",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "artifact-id",
			Aliases:     []string{"a"},
			Usage:       "Artifact ID, e.g. video_guidelines",
			Destination: (*string)(&artifactID),
			Required:    true,
		},
		&cli.BoolFlag{
			Name:        "retry",
			Usage:       "Regenerate a failed artifact before reading it",
			Destination: &retry,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)

	return &cli.Command{
		Name:  "artifact",
		Usage: "Read a generated artifact document",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			repo, err := cfg.newRepository(ctx)
			if err != nil {
				return err
			}
			gemini, err := cfg.newGemini(ctx)
			if err != nil {
				return err
			}
			pb, err := cfg.newPlaybook()
			if err != nil {
				return err
			}
			storage, err := cfg.newStorage(ctx)
			if err != nil {
				return err
			}

			gen, err := artifact.New(artifact.NewInput{
				Repo:     repo,
				Gemini:   gemini,
				Storage:  storage,
				Playbook: pb,
			})
			if err != nil {
				return err
			}

			if retry {
				if err := gen.Retry(ctx, sessionID, artifactID); err != nil {
					return goerr.Wrap(err, "failed to retry artifact")
				}
			}

			content, err := gen.Content(ctx, sessionID, artifactID)
			if err != nil {
				return goerr.Wrap(err, "failed to read artifact")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", content)
			return nil
		},
	}
}
