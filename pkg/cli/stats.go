package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func statsCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:  "stats",
		Usage: "Show per-session turn counts and completeness from the metrics table",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			analytics, err := cfg.newAnalytics(ctx)
			if err != nil {
				return err
			}
			if analytics == nil {
				return goerr.New("bq-dataset is required")
			}

			stats, err := analytics.SessionStats(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to query session stats")
			}

			for _, s := range stats {
				fmt.Fprintf(c.Root().Writer, "%s\tturns=%d\tcompleteness=%.0f%%\n",
					s.SessionID, s.Turns, s.Completeness*100)
			}

			return nil
		},
	}
}
