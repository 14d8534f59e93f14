package cli

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/internal/runner"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/supervisor"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/watch"
)

func newWatchCommand(a *app) *cobra.Command {
	var (
		debounce    time.Duration
		metricsAddr string
		initial     bool
	)

	cmd := &cobra.Command{
		Use:   "watch <job>",
		Short: "Re-run a job whenever its local sources change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, names []string) error {
			f, err := a.loadConfig()
			if err != nil {
				return err
			}
			job, err := f.Job(names[0])
			if err != nil {
				return err
			}
			if job.SourceRemote != "" {
				return fmt.Errorf("job %s has remote sources and cannot be watched", job.Name)
			}

			ctx := cmd.Context()
			progress := newProgressPrinter(cmd.ErrOrStderr())
			opts := []runner.Option{
				runner.WithLogger(a.logger),
				runner.WithProgress(time.Second, progress.Update),
			}

			if metricsAddr != "" {
				reg := prometheus.NewRegistry()
				obs := metrics.NewObserver(reg)
				opts = append(opts, runner.WithObserver(func(job string) supervisor.Observer {
					return obs.ForJob(job)
				}))
				stop, err := serveMetrics(ctx, a.logger, metricsAddr, reg)
				if err != nil {
					return err
				}
				defer stop()
			}

			r := runner.New(opts...)
			resync := func(ctx context.Context) error {
				res := r.RunJob(ctx, *job)
				progress.Finish()
				report(cmd.OutOrStdout(), []runner.JobResult{res})
				return res.Err
			}

			w, err := watch.New(job.Source, resync, watch.WithDebounce(debounce), watch.WithLogger(a.logger))
			if err != nil {
				return err
			}
			if initial {
				_ = resync(ctx)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "watching %d path(s) for %s\n", len(job.Source), job.Name)
			return w.Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&debounce, "debounce", watch.DefaultDebounce, "quiet period before a run")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9110")
	flags.BoolVar(&initial, "initial", true, "run once before waiting for changes")
	return cmd
}

// serveMetrics exposes reg on addr until the returned stop function is
// called.
func serveMetrics(ctx context.Context, logger *slog.Logger, addr string, reg *prometheus.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
