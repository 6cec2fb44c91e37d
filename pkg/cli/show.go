package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/urfave/cli/v3"
)

func showCommand() *cli.Command {
	var (
		cfg       config
		sessionID model.SessionID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Session ID to show",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)

	return &cli.Command{
		Name:  "show",
		Usage: "Show the stored session and its current presentation state",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			sess, err := uc.Get(ctx, sessionID)
			if err != nil {
				return goerr.Wrap(err, "failed to load session")
			}

			state, err := uc.State(ctx, sessionID)
			if err != nil {
				return goerr.Wrap(err, "failed to resolve session state")
			}

			data, err := json.MarshalIndent(map[string]any{
				"session": sess,
				"state":   state,
			}, "", "  ")
			if err != nil {
				return goerr.Wrap(err, "failed to marshal session")
			}

			fmt.Fprintf(c.Root().Writer, "%s\n", string(data))
			return nil
		},
	}
}
