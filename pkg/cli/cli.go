// Package cli wires the chitta commands: interview sessions, consultation
// chat, artifact access and playbook tooling.
package cli

import (
	"context"

	"github.com/urfave/cli/v3"
)

type Error struct {
	Code    int
	Message string
}

func Run(ctx context.Context, argv []string) *Error {
	cmd := &cli.Command{
		Name:  "chitta",
		Usage: "Conversational intake engine for child development interviews",
		Commands: []*cli.Command{
			newCommand(),
			chatCommand(),
			sendCommand(),
			listCommand(),
			showCommand(),
			viewCommand(),
			consultCommand(),
			artifactCommand(),
			validateCommand(),
			statsCommand(),
		},
	}

	if err := cmd.Run(ctx, argv); err != nil {
		return &Error{
			Code:    1,
			Message: err.Error(),
		}
	}

	return nil
}
