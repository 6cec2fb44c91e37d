package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/chzyer/readline"
	"github.com/m-mizutani/goerr/v2"
	"github.com/navadimml/chitta/pkg/model"
	"github.com/navadimml/chitta/pkg/usecase/interview"
	"github.com/urfave/cli/v3"
)

func chatCommand() *cli.Command {
	var (
		cfg       config
		sessionID model.SessionID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Session ID to continue (a new session is started when omitted)",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)
	flags = append(flags, playbookFlags(&cfg)...)
	flags = append(flags, storageFlags(&cfg)...)
	flags = append(flags, analyticsFlags(&cfg)...)

	return &cli.Command{
		Name:  "chat",
		Usage: "Interactive interview session",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx = cfg.withLogger(ctx)

			uc, _, err := cfg.newInterview(ctx)
			if err != nil {
				return err
			}

			if sessionID == "" {
				sess, err := uc.Create(ctx)
				if err != nil {
					return goerr.Wrap(err, "failed to create session")
				}
				sessionID = sess.ID
				fmt.Fprintf(c.Root().Writer, "Session created: %s\n", sessionID)
			} else if _, err := uc.Get(ctx, sessionID); err != nil {
				return goerr.Wrap(err, "failed to load session")
			}

			rl, err := readline.New("> ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr))

			fmt.Fprintf(c.Root().Writer, "Interview started. Type 'exit' to quit.\n")

			for {
				line, err := rl.Readline()
				if errors.Is(err, readline.ErrInterrupt) {
					continue
				}
				if errors.Is(err, io.EOF) {
					break
				}
				if err != nil {
					return goerr.Wrap(err, "failed to read input")
				}

				message := strings.TrimSpace(line)
				if message == "exit" {
					break
				}
				if message == "" {
					continue
				}

				sp.Start()
				result, err := uc.Turn(ctx, interview.TurnInput{
					SessionID: sessionID,
					Message:   message,
				})
				sp.Stop()
				if err != nil {
					return goerr.Wrap(err, "turn failed")
				}

				printTurnResult(c.Root().Writer, result)
			}

			fmt.Fprintf(c.Root().Writer, "\nInterview session: %s\n", sessionID)
			return nil
		},
	}
}

// printTurnResult renders the assistant reply and the session surface: cards,
// completeness, unlocked actions.
func printTurnResult(w io.Writer, result *model.TurnResult) {
	fmt.Fprintf(w, "%s\n", result.ResponseText)

	for _, card := range result.Cards {
		fmt.Fprintf(w, "\n[%s] %s\n", card.Title, card.Body)
		if len(card.Actions) > 0 {
			fmt.Fprintf(w, "  actions: %s\n", joinActions(card.Actions))
		}
	}

	fmt.Fprintf(w, "\ncompleteness: %.0f%%", result.Completeness*100)
	if len(result.UnlockedActions) > 0 {
		fmt.Fprintf(w, "  unlocked: %s", joinActions(result.UnlockedActions))
	}
	fmt.Fprintf(w, "\n")
}

func joinActions(actions []model.ActionID) string {
	parts := make([]string, len(actions))
	for i, a := range actions {
		parts[i] = string(a)
	}
	return strings.Join(parts, ", ")
}
