package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

const chatHelp = `Type a message and press Enter to send it. Commands:
  /new                  start a new session
  /switch <id>          open another session
  /rename <title>       rename the current session
  /delete [id]          delete a session (default: current)
  /retry [id]           resend a failed message (default: last failed)
  /discard [id]         drop a failed message (default: last failed)
  /sessions             list sessions
  /search <text>        list sessions matching text
  /help                 show this help
  /quit                 leave
`

func chatCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [session-id]",
		Short: "Open the interactive chat",
		Long: `chat opens your most recent session, or the given one, and sends every
line you type to the assistant. Lines starting with / are commands; /help
lists them.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			if err := a.requireUser(ctx); err != nil {
				return err
			}
			// A failed load still leaves a usable, empty workspace.
			if err := a.ws.Sessions.Load(ctx); err != nil {
				a.printf("%s", a.styles().Notice(err))
			}
			if len(args) == 1 {
				if err := a.ws.Sessions.Select(ctx, args[0]); err != nil {
					a.printf("%s", a.styles().Notice(err))
				}
			}
			return a.chatLoop(ctx)
		},
	}
}

func (a *app) chatLoop(ctx context.Context) error {
	a.printSidebar("")
	a.printf("\n")
	a.printThread()
	a.printf("%s", a.styles().Muted.Render("Type /help for commands."))
	a.printf("\n")

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		a.printf("> ")
		line, err := a.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("failed to read input: %w", err)
		}
		eof := errors.Is(err, io.EOF)
		line = strings.TrimRight(line, "\r\n")

		if strings.HasPrefix(strings.TrimSpace(line), "/") {
			quit, cmdErr := a.chatCommand(ctx, strings.TrimSpace(line))
			a.printf("%s", a.styles().Notice(cmdErr))
			if quit {
				return nil
			}
		} else if strings.TrimSpace(line) != "" {
			_, sendErr := a.ws.Thread.Send(ctx, line)
			a.printThread()
			a.printf("%s", a.styles().Notice(sendErr))
		}

		if eof {
			return nil
		}
	}
}

// chatCommand runs one slash command and reports whether to leave.
func (a *app) chatCommand(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/quit", "/exit", "/q":
		return true, nil
	case "/help":
		a.printf("%s", chatHelp)
	case "/new":
		s, err := a.ws.Sessions.Create(ctx)
		if err != nil {
			return false, err
		}
		if s == nil {
			return false, errNotSignedIn
		}
		a.printf("Started session %s\n", s.ID)
	case "/switch":
		if arg == "" {
			return false, errors.New("usage: /switch <session-id>")
		}
		if err := a.ws.Sessions.Select(ctx, arg); err != nil {
			return false, err
		}
		a.printThread()
	case "/rename":
		current := a.ws.Sessions.Current()
		if current == "" {
			return false, errors.New("no session selected")
		}
		if err := a.ws.Sessions.Rename(ctx, current, arg); err != nil {
			return false, err
		}
		a.printf("Renamed to %q\n", strings.TrimSpace(arg))
	case "/delete":
		id := arg
		if id == "" {
			id = a.ws.Sessions.Current()
		}
		if id == "" {
			return false, errors.New("no session selected")
		}
		if err := a.ws.Sessions.Delete(ctx, id); err != nil {
			return false, err
		}
		a.printf("Deleted session %s\n", id)
		a.printThread()
	case "/retry":
		id, err := a.failedID(arg)
		if err != nil {
			return false, err
		}
		_, err = a.ws.Thread.Retry(ctx, id)
		a.printThread()
		return false, err
	case "/discard":
		id, err := a.failedID(arg)
		if err != nil {
			return false, err
		}
		if err := a.ws.Thread.Discard(id); err != nil {
			return false, err
		}
		a.printThread()
	case "/sessions":
		a.printSidebar("")
	case "/search":
		a.printSidebar(arg)
	default:
		return false, fmt.Errorf("unknown command %s, try /help", name)
	}
	return false, nil
}

// failedID resolves a full or shortened message id among failed messages,
// defaulting to the latest one.
func (a *app) failedID(arg string) (string, error) {
	if arg == "" {
		m, ok := a.ws.Thread.LastFailed()
		if !ok {
			return "", errors.New("no failed messages")
		}
		return m.ID, nil
	}
	for _, m := range a.ws.Thread.Messages() {
		if strings.HasPrefix(m.ID, arg) {
			return m.ID, nil
		}
	}
	return "", fmt.Errorf("no message with id %s", arg)
}
