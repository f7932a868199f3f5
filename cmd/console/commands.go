package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/config"
	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/view"
)

var timeNow = time.Now

var errNotSignedIn = errors.New("not signed in, run `console login` first")

// newRootCmd builds the command tree. The returned func releases whatever
// the invoked command opened; call it after Execute.
func newRootCmd(loadConfig func() (*config.Config, error)) (*cobra.Command, func() error) {
	var (
		a     *app
		width int
	)

	root := &cobra.Command{
		Use:   "console",
		Short: "Terminal client for the conversational assistant",
		Long: `console signs you in to the assistant backend, manages your chat
sessions and lets you talk to the assistant from the terminal.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("error loading config: %w", err)
			}
			a, err = newApp(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}
			a.width = width
			return nil
		},
	}
	root.PersistentFlags().IntVarP(&width, "width", "w", view.DefaultWidth, "Render width in columns")

	// Commands reach the app through this accessor; it is set by the
	// pre-run hook before any RunE executes.
	get := func() *app { return a }

	root.AddCommand(
		loginCmd(get),
		registerCmd(get),
		logoutCmd(get),
		whoamiCmd(get),
		profileCmd(get),
		sessionsCmd(get),
		chatCmd(get),
		sendCmd(get),
		askCmd(get),
	)

	cleanup := func() error {
		if a == nil {
			return nil
		}
		err := a.Close()
		a = nil
		return err
	}
	return root, cleanup
}

// requireUser restores the cached session and fails if nobody is signed in.
func (a *app) requireUser(ctx context.Context) error {
	if !a.auth.CheckSession(ctx) {
		return errNotSignedIn
	}
	return nil
}

// prompt reads one line from input, printing label first.
func (a *app) prompt(label string) (string, error) {
	a.printf("%s: ", label)
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (a *app) valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.prompt(label)
}

func loginCmd(get func() *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			var err error
			if email, err = a.valueOrPrompt(email, "Email"); err != nil {
				return err
			}
			if password, err = a.valueOrPrompt(password, "Password"); err != nil {
				return err
			}
			if err := a.auth.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			a.printf("Signed in as %s\n", a.auth.User().Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	return cmd
}

func registerCmd(get func() *app) *cobra.Command {
	var email, username, password, region string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			fields := []struct {
				value *string
				label string
			}{
				{&email, "Email"},
				{&username, "Username"},
				{&password, "Password"},
				{&region, "Region"},
			}
			for _, f := range fields {
				v, err := a.valueOrPrompt(*f.value, f.label)
				if err != nil {
					return err
				}
				*f.value = v
			}
			if err := a.auth.Register(cmd.Context(), email, username, password, region); err != nil {
				return err
			}
			a.printf("Welcome, %s\n", a.auth.User().Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&username, "username", "", "Display name")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when empty)")
	cmd.Flags().StringVar(&region, "region", "", "Region")
	return cmd
}

func logoutCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget local credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			a.auth.Logout(cmd.Context())
			a.printf("Signed out\n")
			return nil
		},
	}
}

func whoamiCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			u := a.auth.User()
			a.printf("%s <%s> (%s)\n", u.Username, u.Email, u.Region)
			return nil
		},
	}
}

func profileCmd(get func() *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show or change your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showProfile(cmd.Context(), get())
		},
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show your profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showProfile(cmd.Context(), get())
		},
	}

	var update api.ProfileUpdate
	updateCmd := &cobra.Command{
		Use:   "update",
		Short: "Change username, email or region",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := a.auth.UpdateProfile(cmd.Context(), update); err != nil {
				return err
			}
			a.printf("Profile updated\n")
			return showProfile(cmd.Context(), a)
		},
	}
	updateCmd.Flags().StringVar(&update.Username, "username", "", "New username")
	updateCmd.Flags().StringVar(&update.Email, "email", "", "New email")
	updateCmd.Flags().StringVar(&update.Region, "region", "", "New region")

	picture := &cobra.Command{
		Use:   "picture <file>",
		Short: "Set your profile picture (image, at most 5MB)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open picture: %w", err)
			}
			defer f.Close()
			if _, err := a.auth.UpdateProfilePicture(cmd.Context(), f); err != nil {
				return err
			}
			a.printf("Profile picture updated\n")
			return nil
		},
	}

	theme := &cobra.Command{
		Use:       "theme <light|dark>",
		Short:     "Choose the color theme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(store.ThemeLight), string(store.ThemeDark)},
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			// Signed out is fine: the theme becomes the machine default.
			a.auth.CheckSession(cmd.Context())
			if err := a.auth.UpdateThemePreference(store.Theme(strings.ToLower(args[0]))); err != nil {
				return err
			}
			a.printf("Theme set to %s\n", a.auth.Theme())
			return nil
		},
	}

	cmd.AddCommand(show, updateCmd, picture, theme)
	return cmd
}

func showProfile(ctx context.Context, a *app) error {
	if err := a.requireUser(ctx); err != nil {
		return err
	}
	a.printf("%s", a.styles().Profile(a.auth.User(), a.auth.Theme(), a.width))
	return nil
}

func sessionsCmd(get func() *app) *cobra.Command {
	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List your chat sessions by day",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := a.ws.Sessions.Load(cmd.Context()); err != nil {
				return err
			}
			a.printSidebar(search)
			return nil
		},
	}
	list.Flags().StringVarP(&search, "search", "s", "", "Only sessions whose title or last message contains this")

	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Manage chat sessions",
		Args:    cobra.NoArgs,
		RunE:    list.RunE,
	}
	cmd.Flags().AddFlagSet(list.Flags())

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a new chat session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			s, err := a.ws.Sessions.Create(cmd.Context())
			if err != nil {
				return err
			}
			if s == nil {
				return errNotSignedIn
			}
			a.printf("Created session %s\n", s.ID)
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <session-id> <title...>",
		Short: "Rename a chat session",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")
			if err := a.ws.Sessions.Rename(cmd.Context(), args[0], title); err != nil {
				return err
			}
			a.printf("Renamed session %s to %q\n", args[0], strings.TrimSpace(title))
			return nil
		},
	}

	del := &cobra.Command{
		Use:     "delete <session-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a chat session and its messages",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			if err := a.requireUser(cmd.Context()); err != nil {
				return err
			}
			if err := a.ws.Sessions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printf("Deleted session %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, newCmd, rename, del)
	return cmd
}

func (a *app) printSidebar(query string) {
	buckets := a.ws.Sessions.Group(query)
	a.printf("%s", a.styles().Sidebar(buckets, a.ws.Sessions.Current(), query, timeNow(), a.width))
}

func sendCmd(get func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "send <session-id|new> <message...>",
		Short: "Send one message and print the thread",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			if err := a.requireUser(ctx); err != nil {
				return err
			}
			// "new" leaves nothing selected so Send starts a session.
			if args[0] != "new" {
				if err := a.ws.Sessions.Select(ctx, args[0]); err != nil {
					return err
				}
			}
			_, err := a.ws.Thread.Send(ctx, strings.Join(args[1:], " "))
			a.printThread()
			return err
		},
	}
}

func askCmd(get func() *app) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "ask <query...>",
		Short: "Ask the knowledge base directly, outside any chat",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := get()
			ctx := cmd.Context()
			if err := a.requireUser(ctx); err != nil {
				return err
			}
			if session != "" {
				if err := a.ws.Sessions.Select(ctx, session); err != nil {
					return err
				}
			}
			resp, err := a.ws.RAG.Ask(ctx, strings.Join(args, " "), session != "")
			if err != nil {
				return err
			}
			a.printf("%s", a.styles().Answer(resp, a.width))
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "Scope the query to a chat session")
	return cmd
}

func (a *app) printThread() {
	a.printf("%s", a.styles().Thread(a.ws.Thread.Messages(), a.ws.Thread.Responding(), a.width))
}
