package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func listCommand() *cli.Command {
	var (
		cfg    config
		offset int64
		limit  int64
	)

	flags := []cli.Flag{
		&cli.IntFlag{
			Name:        "offset",
			Usage:       "Offset for pagination",
			Value:       0,
			Sources:     cli.EnvVars("CHITTA_LIST_OFFSET"),
			Destination: &offset,
		},
		&cli.IntFlag{
			Name:        "limit",
			Usage:       "Maximum number of sessions to list",
			Value:       100,
			Sources:     cli.EnvVars("CHITTA_LIST_LIMIT"),
			Destination: &limit,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)

	return &cli.Command{
		Name:  "list",
		Usage: "List interview sessions",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			sessions, err := uc.List(ctx, int(offset), int(limit))
			if err != nil {
				return goerr.Wrap(err, "failed to list sessions")
			}

			for _, sess := range sessions {
				fmt.Fprintf(c.Root().Writer, "%s\tturns=%d\tupdated=%s\n",
					sess.ID, sess.Turn, sess.UpdatedAt.Format("2006-01-02 15:04"))
			}

			return nil
		},
	}
}
