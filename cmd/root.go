package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/Yates-Labs/aethel/internal/config"
	gh "github.com/Yates-Labs/aethel/internal/github"
	"github.com/Yates-Labs/aethel/internal/journal"
	"github.com/Yates-Labs/aethel/internal/logging"
	"github.com/Yates-Labs/aethel/internal/narrative"
	"github.com/Yates-Labs/aethel/internal/store"
	"github.com/Yates-Labs/aethel/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags.
var version = "dev"

// env holds what PersistentPreRunE set up for the running command.
type env struct {
	cfg      *config.Config
	logger   *slog.Logger
	closers  []io.Closer
	shutdown func(context.Context) error
}

var app env

var rootCmd = &cobra.Command{
	Use:   "aethel",
	Short: "Aethel - a text adventure narrated by a language model",
	Long: `Aethel is a text adventure in the world of Aethel. A language model acts as
the Dungeon Master, and the running story is kept in "Story so far.txt" in a
local directory or a Git repository.

Configuration is read from the environment (and a .env file if present).
Logs and telemetry are written under AETHEL_LOG_DIR.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return teardown(cmd.Context())
	},
}

// Execute runs the root command
func Execute() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		_ = teardown(context.Background())
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.Init(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel})
	if err != nil {
		return err
	}
	app = env{cfg: cfg, logger: logger, closers: []io.Closer{closer}}

	if cfg.Telemetry {
		shutdown, err := telemetry.Init(cmd.Context(), telemetry.Options{Dir: cfg.LogDir, Version: version})
		if err != nil {
			logger.Warn("telemetry disabled", "error", err)
		} else {
			app.shutdown = shutdown
		}
	}

	logger.Debug("command started", "command", cmd.CommandPath(), "provider", cfg.Provider, "store", cfg.Store)
	return nil
}

func teardown(ctx context.Context) error {
	var errs []error
	if app.shutdown != nil {
		errs = append(errs, app.shutdown(ctx))
		app.shutdown = nil
	}
	// Close in reverse order so the log file goes last.
	for i := len(app.closers) - 1; i >= 0; i-- {
		errs = append(errs, app.closers[i].Close())
	}
	app.closers = nil
	return errors.Join(errs...)
}

// openStore builds the configured story store.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)

	switch cfg.Store {
	case config.StoreFile:
		s, err = store.NewFileStore(cfg.StoryDir)
	case config.StoreGitHub:
		opts := []store.GitHubOption{store.WithCommitter(cfg.CommitterName, cfg.CommitterEmail)}
		if cfg.StoryBranch != "" {
			opts = append(opts, store.WithBranch(cfg.StoryBranch))
		}
		s, err = store.NewGitHubStore(gh.NewClient(cfg.GitHubToken), cfg.StoryRepo, opts...)
	case config.StoreGit:
		s, err = store.NewGitStore(ctx, store.GitConfig{
			URL:         cfg.StoryRepo,
			Branch:      cfg.StoryBranch,
			Token:       cfg.GitHubToken,
			AuthorName:  cfg.CommitterName,
			AuthorEmail: cfg.CommitterEmail,
		})
	case config.StoreMemory:
		s = store.NewMemoryStore(nil)
	default:
		err = fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store, err)
	}

	return store.Traced(s, logger), nil
}

// newNarrator builds the configured provider and wraps it in a Narrator.
func newNarrator(cfg *config.Config, logger *slog.Logger) (*narrative.Narrator, error) {
	provider, err := narrative.NewProvider(cfg.LLMConfig())
	if err != nil {
		return nil, err
	}
	return narrative.NewNarrator(provider,
		narrative.WithRateLimit(cfg.RateLimit),
		narrative.WithLogger(logger.With("provider", provider.Name())),
	), nil
}

// openJournal opens the local journal, or returns nil when it is disabled.
func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if cfg.JournalPath == "" {
		return nil, nil
	}
	j, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return nil, err
	}
	app.closers = append(app.closers, j)
	return j, nil
}
