// Package cli implements the rsyncer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/config"
)

// Version is set at build time with -ldflags "-X ...cli.Version=v1.2.3".
var Version = "dev"

type app struct {
	configPath string
	logLevel   string
	logger     *slog.Logger
}

// NewRootCommand builds the rsyncer command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:     "rsyncer",
		Short:   "Run and supervise rsync jobs",
		Version: Version,
		Long: `rsyncer runs rsync jobs described in a YAML or TOML job file, or built
ad hoc from flags. Each run is supervised: output goes to a private file,
the last progress line can be shown while it runs and the whole process
group is terminated on interrupt.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setupLogger(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "job file (default "+config.DefaultPath()+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newRunCommand(a),
		newShowCommand(a),
		newWatchCommand(a),
		newDryRunCommand(a),
		newVersionCommand(a),
	)
	return root
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		return 1
	}
	return 0
}

func (a *app) setupLogger(w io.Writer) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(a.logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q: %w", a.logLevel, err)
	}
	a.logger = slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	return nil
}

func (a *app) loadConfig() (*config.File, error) {
	path := a.configPath
	if path == "" {
		path = config.DefaultPath()
	}
	a.logger.Debug("loading job file", "path", path)
	return config.Load(path)
}

// selectJobs returns the named jobs, or every job when names is empty.
func (a *app) selectJobs(f *config.File, names []string) ([]config.Job, error) {
	if len(names) == 0 {
		return f.Jobs, nil
	}
	jobs := make([]config.Job, 0, len(names))
	for _, name := range names {
		job, err := f.Job(name)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *job)
	}
	return jobs, nil
}
