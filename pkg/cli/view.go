package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/urfave/cli/v3"
)

func viewCommand() *cli.Command {
	var (
		cfg       config
		sessionID model.SessionID
		flag      string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Session ID to mark",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "flag",
			Usage:       "Viewer flag to set, e.g. viewed_guidelines",
			Destination: &flag,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)

	return &cli.Command{
		Name:  "view",
		Usage: "Set a viewer flag on a session, dismissing cards gated on it",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			if err := uc.MarkViewed(ctx, sessionID, flag); err != nil {
				return goerr.Wrap(err, "failed to set viewer flag")
			}

			fmt.Fprintf(c.Root().Writer, "Flag set: %s\n", flag)
			return nil
		},
	}
}
