package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"story-server/internal/client"
	"story-server/internal/config"
	"story-server/internal/localstore"
	"story-server/internal/studio"
	"story-server/internal/tokenstore"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
)

// app - зависимости команд, создаются в PersistentPreRunE.
type app struct {
	cfg    *config.ClientConfig
	logger zerolog.Logger
	tokens *tokenstore.FileStore
	api    *client.Client
	store  *localstore.Store
	studio *studio.Studio
}

var cli *app

var rootCmd = &cobra.Command{
	Use:   "storyctl",
	Short: "Author, publish and read branching stories",
	Long: `storyctl keeps story drafts in a local cache, checks them before publishing,
publishes them to the story server and lets you read published stories page by page.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		cli = a
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if cli != nil {
			cli.close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: user config dir/storyctl/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(loginCmd, logoutCmd, registerCmd, whoamiCmd, profileCmd)
	rootCmd.AddCommand(draftCmd, storiesCmd, readCmd, reviewCmd, likeCmd, unlikeCmd, tagsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newApp() (*app, error) {
	cfg, err := config.LoadClientConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := newLogger(cfg.Log.Level)

	tokens, err := tokenstore.Open(cfg.Store.TokenPath)
	if err != nil {
		return nil, err
	}
	store, err := localstore.Open(cfg.Store.DatabasePath, logger)
	if err != nil {
		_ = tokens.Close()
		return nil, err
	}
	api := client.New(cfg.API.BaseURL, tokens,
		client.WithTimeout(cfg.API.Timeout),
		client.WithLogger(logger),
	)
	return &app{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		api:    api,
		store:  store,
		studio: studio.New(api, store, logger),
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close local store")
	}
	if err := a.tokens.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close token store")
	}
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || level == "" {
		lvl = zerolog.WarnLevel
	}
	if verbose {
		lvl = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func parseID(raw, what string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s id %q: %w", what, raw, err)
	}
	return id, nil
}
