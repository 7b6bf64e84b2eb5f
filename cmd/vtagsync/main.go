package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/schaermu/vtagsync/internal/activation"
	"github.com/schaermu/vtagsync/internal/config"
	"github.com/schaermu/vtagsync/internal/reconcile"
	"github.com/schaermu/vtagsync/internal/report"
	"github.com/schaermu/vtagsync/internal/webhook"
)

var (
	// Set by goreleaser
	version = "dev"
	commit  = "none"
	date    = "unknown"

	// Global flags
	cfgFile   string
	logLevel  string
	logFormat string

	// Sync flags
	dryRun       bool
	outputFormat string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vtagsync",
	Short: "Keep v<major> floating tags pointed at the latest release",
	Long: `vtagsync maintains major-version floating tags (v1, v2, ...) so that each
points at the newest SemVer release of its major line.

It can run once (in CI or from a timer) or as a long-running webhook daemon
that reconciles whenever a release tag is pushed to GitHub.`,
	SilenceUsage: true,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile floating tags once",
	Long: `Sync lists the repository's tags, selects the latest release per major
version and creates or moves the matching v<major> tag. Each change is pushed
to the remote unless --no-push is given.

The run stops at the first tag that cannot be changed and exits non-zero.`,
	RunE: runSync,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long: `Serve performs an initial reconciliation and then listens for GitHub push
events. Pushes of release tags trigger a debounced reconciliation; pushes of
floating tags are ignored.

Requires serve.github_webhook_secret_file in the configuration.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "vtagsync %s\n", version)
		_, _ = fmt.Fprintf(out, "  commit: %s\n", commit)
		_, _ = fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/vtagsync/config.yaml when present)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel(), "log level (debug, info, warn, error); defaults to $LOG_LEVEL")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	// Repository flags, merged over the config file
	rootCmd.PersistentFlags().String("repo", ".", "path to the local repository (git backend)")
	rootCmd.PersistentFlags().String("remote", "origin", "remote to publish tags to (git backend)")
	rootCmd.PersistentFlags().String("backend", string(config.BackendGit), "tag backend (git, github)")
	rootCmd.PersistentFlags().String("github-repo", "", "owner/repo (github backend)")
	rootCmd.PersistentFlags().Bool("no-push", false, "change tags locally without publishing them")

	// Sync command flags
	syncCmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be done without making changes")
	syncCmd.Flags().StringVarP(&outputFormat, "output", "o", "table", "output format (json, table)")

	// Serve command flags
	serveCmd.Flags().String("listen", "", "listen address (overrides serve.listen_addr)")

	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(cmd.ErrOrStderr())

	reporter, err := report.New(outputFormat)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = config.MergeFlags(cfg, cmd.Flags())
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	engine := reconcile.NewEngine(client,
		reconcile.WithLogger(logger),
		reconcile.WithPublish(cfg.Publish),
		reconcile.WithDryRun(dryRun))

	res, err := engine.Run(ctx)
	if err != nil {
		logger.Error("reconciliation failed", "error", err)
		return err
	}

	if err := reporter.Report(cmd.OutOrStdout(), res); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if !res.Succeeded {
		return errors.New(res.Message)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := setupSignalHandler()
	defer cancel()

	logger := setupLogger(cmd.ErrOrStderr())

	cfg, err := loadConfig(logger)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	cfg = config.MergeFlags(cfg, cmd.Flags())
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	server, err := webhook.NewServer(cfg, client, logger)
	if err != nil {
		return err
	}

	listener, activated, err := activation.Listen(cfg.Serve.ListenAddr)
	if err != nil {
		return err
	}
	if activated {
		logger.Info("using systemd socket activation", "addr", listener.Addr().String())
	}

	return server.Start(ctx, listener)
}

// defaultLogLevel honours LOG_LEVEL so CI jobs can turn on debug output without flags.
func defaultLogLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "info"
}

// setupLogger logs to w; stdout is reserved for the run report.
func setupLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if logFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return slog.New(handler)
}

// loadConfig loads --config when given. Without it the default location is used
// if it exists, otherwise built-in defaults apply.
func loadConfig(logger *slog.Logger) (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			logger.Debug("no home directory, using default configuration", "error", err)
			return config.Default(), nil
		}
		configPath = filepath.Join(home, ".config", "vtagsync", "config.yaml")
		if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
			logger.Debug("no config file, using default configuration", "path", configPath)
			return config.Default(), nil
		}
	}

	logger.Info("loading configuration", "path", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger.Debug("configuration loaded",
		"backend", cfg.Backend,
		"repo", cfg.Repo.Path,
		"remote", cfg.Repo.Remote,
		"github", cfg.Repo.GitHub,
		"auth", cfg.AuthMethod())

	return cfg, nil
}

func setupSignalHandler() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
