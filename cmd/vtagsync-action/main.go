/*
Package main is the GitHub Actions entry point of vtagsync.
It reconciles the floating tags of a checked-out repository and reports the
result as the step output "response".
*/
package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jessevdk/go-flags"

	"github.com/schaermu/vtagsync/internal/action"
	"github.com/schaermu/vtagsync/internal/git"
	"github.com/schaermu/vtagsync/internal/reconcile"
	"github.com/schaermu/vtagsync/internal/report"
)

type Options struct {
	NoPush      bool   `long:"no-push"     description:"Change tags locally without pushing them"`
	Remote      string `long:"remote"      description:"Remote to push tags to" default:"origin"`
	Message     string `long:"message"     description:"Annotation message of floating tags"`
	Lightweight bool   `long:"lightweight" description:"Create lightweight instead of annotated floating tags"`
	LogLevel    string `long:"log-level"   description:"Log level (debug, info, warn, error)" env:"LOG_LEVEL" default:"info"`

	Args struct {
		Repo string `positional-arg-name:"REPO" description:"Path to the repository (default .)"`
	} `positional-args:"yes"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run parses args, reconciles and reports through the workflow command protocol.
// It returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	var opt Options
	parser := flags.NewParser(&opt, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = `Keeps v<major> floating tags pointed at the latest SemVer release of each
major line. Intended to run as a GitHub Actions step.`
	if _, err := parser.ParseArgs(args); err != nil {
		var flagErr *flags.Error
		if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
			_, _ = io.WriteString(stdout, err.Error()+"\n")
			return 0
		}
		_, _ = io.WriteString(stderr, err.Error()+"\n")
		return 2
	}

	repo := strings.TrimSpace(opt.Args.Repo)
	if repo == "" {
		repo = "."
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: parseLevel(opt.LogLevel)}))
	cmds := action.FromEnv(stdout)

	client := git.NewShellClient(repo, git.ShellOptions{
		Remote:   opt.Remote,
		Annotate: !opt.Lightweight,
		Message:  opt.Message,
	})
	engine := reconcile.NewEngine(client,
		reconcile.WithLogger(logger),
		reconcile.WithPublish(!opt.NoPush))

	res, err := engine.Run(ctx)
	if err != nil {
		return cmds.SetFailed(err.Error())
	}
	if !res.Succeeded {
		return cmds.SetFailed(res.Message)
	}

	var buf bytes.Buffer
	if err := (&report.JSONReporter{}).Report(&buf, res); err != nil {
		return cmds.SetFailed(err.Error())
	}
	if err := cmds.SetOutput("response", strings.TrimSpace(buf.String())); err != nil {
		return cmds.SetFailed(err.Error())
	}
	return 0
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return level
}
