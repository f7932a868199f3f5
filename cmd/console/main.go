package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"gwi.com/assistant-console/internal/api"
	"gwi.com/assistant-console/internal/auth"
	"gwi.com/assistant-console/internal/config"
	"gwi.com/assistant-console/internal/core"
	"gwi.com/assistant-console/internal/observability"
	"gwi.com/assistant-console/internal/store"
	"gwi.com/assistant-console/internal/view"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd(config.Load)
	err := root.ExecuteContext(ctx)
	if cerr := cleanup(); cerr != nil {
		fmt.Fprintln(os.Stderr, "Failed to close local cache:", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app is everything a command needs, built once per invocation.
type app struct {
	cfg    *config.Config
	cache  *store.SQLiteStore
	client *api.Client
	auth   *auth.State
	ws     *core.Workspace

	in    *bufio.Reader
	out   io.Writer
	width int
}

func newApp(cfg *config.Config, in io.Reader, out io.Writer) (*app, error) {
	if err := observability.Init(cfg.LogLevel, cfg.LogFile); err != nil {
		return nil, err
	}

	cache, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize local cache: %w", err)
	}

	base, err := url.Parse(cfg.APIURL)
	if err != nil {
		cache.Close()
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}
	jar, err := store.NewPersistentJar(cache, base)
	if err != nil {
		cache.Close()
		return nil, err
	}

	client := api.NewClient(cfg.APIURL,
		api.WithCookieJar(jar),
		api.WithTimeout(cfg.RequestTimeout),
		api.WithTokenSource(auth.CachedToken(cache, timeNow)),
	)
	state := auth.NewState(client, cache, api.NewLocalPictureStore(cache),
		auth.WithCredentialReset(jar.Reset),
	)
	ws := core.NewWorkspace(client, state, core.Config{
		LegacyFallback:      cfg.LegacyFallback,
		LegacyFallbackDelay: cfg.LegacyFallbackDelay,
	}, core.WithClock(timeNow))

	observability.Logger().Debug("Console initialized", "api_url", cfg.APIURL, "cache", cfg.DatabaseURL)
	return &app{
		cfg:    cfg,
		cache:  cache,
		client: client,
		auth:   state,
		ws:     ws,
		in:     bufio.NewReader(in),
		out:    out,
		width:  view.DefaultWidth,
	}, nil
}

func (a *app) Close() error {
	err := a.cache.Close()
	if cerr := observability.Close(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) styles() view.Styles {
	return view.NewStyles(a.auth.Theme())
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}
