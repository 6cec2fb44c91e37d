package cli

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/usecase/interview"
	"github.com/urfave/cli/v3"
)

func sendCommand() *cli.Command {
	var (
		cfg       config
		sessionID model.SessionID
		message   string
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Session ID to send the message to",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "message",
			Aliases:     []string{"m"},
			Usage:       "Parent message",
			Destination: &message,
			Required:    true,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:  "send",
		Usage: "Run a single interview turn",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			result, err := uc.Turn(ctx, interview.TurnInput{
				SessionID: sessionID,
				Message:   message,
			})
			if err != nil {
				return goerr.Wrap(err, "turn failed")
			}

			printTurnResult(c.Root().Writer, result)
			return nil
		},
	}
}
