package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)

	return &cli.Command{
		Name:  "new",
		Usage: "Start a new interview session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			sess, err := uc.Create(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to create session")
			}

			fmt.Fprintf(c.Root().Writer, "Session created: %s\n", sess.ID)
			return nil
		},
	}
}
