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
	"github.com/navadimml/chitta/pkg/service/mcp"
	"github.com/navadimml/chitta/pkg/tool"
	"github.com/navadimml/chitta/pkg/tool/milestones"
	"github.com/navadimml/chitta/pkg/usecase/consult"
	"github.com/urfave/cli/v3"
)

func consultCommand() *cli.Command {
	var (
		cfg       config
		sessionID model.SessionID
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "session-id",
			Aliases:     []string{"id"},
			Usage:       "Interview session the consultation is grounded in",
			Sources:     cli.EnvVars("CHITTA_SESSION_ID"),
			Destination: (*string)(&sessionID),
			Required:    true,
		},
		&cli.StringFlag{
			Name:        "mcp-config",
			Usage:       "Path to MCP server configuration YAML",
			Sources:     cli.EnvVars("CHITTA_MCP_CONFIG"),
			Destination: &cfg.mcpConfig,
		},
	}
	flags = append(flags, globalFlags(&cfg)...)
	flags = append(flags, llmFlags(&cfg)...)

	return &cli.Command{
		Name:  "consult",
		Usage: "Free-form consultation grounded in the interview facts",
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

			lookup, err := milestones.New()
			if err != nil {
				return err
			}
			tools := []tool.Tool{lookup}

			mcpProvider, err := mcp.LoadAndConnect(ctx, cfg.mcpConfig)
			if err != nil {
				return goerr.Wrap(err, "failed to connect MCP servers")
			}
			if mcpProvider != nil {
				tools = append(tools, mcpProvider)
			}

			session, err := consult.New(ctx, consult.NewInput{
				Repo:      repo,
				Gemini:    gemini,
				Registry:  tool.New(tools...),
				SessionID: sessionID,
			})
			if err != nil {
				return goerr.Wrap(err, "failed to open consultation")
			}

			rl, err := readline.New("? ")
			if err != nil {
				return goerr.Wrap(err, "failed to initialize readline")
			}
			defer rl.Close()

			sp := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
				spinner.WithWriter(os.Stderr))

			fmt.Fprintf(c.Root().Writer, "Consultation started. Type 'exit' to quit.\n")

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
				answer, err := session.Send(ctx, message)
				sp.Stop()
				if err != nil {
					return goerr.Wrap(err, "failed to send message")
				}

				fmt.Fprintf(c.Root().Writer, "%s\n", answer)
			}

			return nil
		},
	}
}
