// Package runner executes configured jobs, a bounded number at a time, each
// under its own supervisor. Runs that end with a transient rsync exit code
// are retried with exponential backoff.
package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/config"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/supervisor"
)

const (
	defaultRetryInterval    = 2 * time.Second
	defaultProgressInterval = time.Second
)

// ProgressFunc receives the latest progress line of a running job.
type ProgressFunc func(job, line string)

// ObserverFunc returns the observer for a job's runs.
type ObserverFunc func(job string) supervisor.Observer

// JobResult is the outcome of one job.
type JobResult struct {
	Job      string
	Result   *supervisor.Result
	Attempts int
	Err      error
}

// Runner runs jobs.
type Runner struct {
	parallel         int
	retryInterval    time.Duration
	progressInterval time.Duration
	progress         ProgressFunc
	observer         ObserverFunc
	logger           *slog.Logger
	supervisorOpts   []supervisor.Option
}

// Option configures a Runner.
type Option func(*Runner)

// WithParallel caps the number of concurrent jobs. Values below one mean one.
func WithParallel(n int) Option {
	return func(r *Runner) {
		r.parallel = n
	}
}

// WithRetryInterval sets the first backoff delay between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(r *Runner) {
		r.retryInterval = d
	}
}

// WithProgress polls running jobs that have a progress option every interval
// and hands the last output line to fn.
func WithProgress(interval time.Duration, fn ProgressFunc) Option {
	return func(r *Runner) {
		if interval > 0 {
			r.progressInterval = interval
		}
		r.progress = fn
	}
}

// WithObserver attaches an observer to every supervised run.
func WithObserver(fn ObserverFunc) Option {
	return func(r *Runner) {
		r.observer = fn
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithSupervisorOptions passes extra options to every supervisor.
func WithSupervisorOptions(opts ...supervisor.Option) Option {
	return func(r *Runner) {
		r.supervisorOpts = append(r.supervisorOpts, opts...)
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		parallel:         1,
		retryInterval:    defaultRetryInterval,
		progressInterval: defaultProgressInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.parallel < 1 {
		r.parallel = 1
	}
	return r
}

// Run executes jobs and returns one JobResult per job in input order. The
// error joins the failures of all jobs that did not succeed.
func (r *Runner) Run(ctx context.Context, jobs []config.Job) ([]JobResult, error) {
	results := make([]JobResult, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.parallel)
	for i := range jobs {
		i := i
		job := jobs[i]
		g.Go(func() error {
			results[i] = r.RunJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	for _, res := range results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return results, errors.Join(errs...)
}

// RunJob executes a single job, retrying transient failures up to
// job.Retries times.
func (r *Runner) RunJob(ctx context.Context, job config.Job) JobResult {
	out := JobResult{Job: job.Name}

	spec, err := job.Spec()
	if err != nil {
		out.Err = err
		return out
	}

	logger := r.logger
	if logger != nil {
		logger = logger.With("job", job.Name)
	}

	operation := func() (*supervisor.Result, error) {
		out.Attempts++

		opts := append([]supervisor.Option{
			supervisor.WithLogger(logger),
			supervisor.WithOutput(job.Output),
		}, r.supervisorOpts...)
		if r.observer != nil {
			opts = append(opts, supervisor.WithObserver(r.observer(job.Name)))
		}

		sup, err := supervisor.New(spec, opts...)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if r.progress != nil && supervisor.HasProgress(sup.Args()) {
			stop := make(chan struct{})
			defer close(stop)
			go r.watchProgress(ctx, stop, job.Name, sup)
		}

		res, err := sup.RunToCompletion(ctx)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		if res.Err != nil && supervisor.IsTransient(res.ExitCode) {
			return res, res.Err
		}
		return res, nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(
			backoff.NewExponentialBackOff(backoff.WithInitialInterval(r.retryInterval)),
			uint64(max(job.Retries, 0)),
		),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		if logger != nil {
			logger.WarnContext(ctx, "transient rsync failure, retrying",
				"attempt", out.Attempts,
				"retry_in", next,
				"error", err)
		}
	}

	res, err := backoff.RetryNotifyWithData(operation, policy, notify)
	out.Result = res
	switch {
	case err != nil:
		out.Err = errors.WrapWithContext(err, errors.GetCode(err), "job failed",
			map[string]any{"job": job.Name, "attempts": out.Attempts})
	case res != nil && res.Err != nil:
		out.Err = errors.WrapWithContext(res.Err, errors.CodeExecutionFailed, "job failed",
			map[string]any{"job": job.Name, "attempts": out.Attempts})
	}
	return out
}

// watchProgress reports the last output line until stop is closed.
func (r *Runner) watchProgress(ctx context.Context, stop <-chan struct{}, job string, sup *supervisor.Supervisor) {
	ticker := time.NewTicker(r.progressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			if sup.State() != supervisor.Running {
				continue
			}
			line, err := sup.ReadLastProgressLine()
			if err == nil && line != "" {
				r.progress(job, line)
			}
		}
	}
}
