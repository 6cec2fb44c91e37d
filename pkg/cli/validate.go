package cli

import (
	"context"
	"fmt"

	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

func validateCommand() *cli.Command {
	var cfg config

	flags := globalFlags(&cfg)
	flags = append(flags, playbookFlags(&cfg)...)

	return &cli.Command{
		Name:  "validate",
		Usage: "Validate a playbook and the escalation policies",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			pb, err := cfg.newPlaybook()
			if err != nil {
				return goerr.Wrap(err, "playbook validation failed")
			}

			fmt.Fprintf(c.Root().Writer, "Playbook OK: %d fields, %d moments, %d artifacts\n",
				len(pb.Schema.Fields), len(pb.Moments), len(pb.Artifacts))

			if cfg.policyDir != "" {
				pol, err := cfg.newPolicy(ctx)
				if err != nil {
					return goerr.Wrap(err, "policy validation failed")
				}
				if pol == nil {
					fmt.Fprintf(c.Root().Writer, "Policy dir has no .rego files\n")
				} else {
					fmt.Fprintf(c.Root().Writer, "Policies OK: %s\n", cfg.policyDir)
				}
			}

			return nil
		},
	}
}
