package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/config"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/internal/runner"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/metrics"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/supervisor"
)

type adHocFlags struct {
	sources    []string
	dest       string
	opts       []string
	srcRemote  string
	destRemote string
	output     string
	executable string
	retries    int
}

func (f *adHocFlags) set() bool {
	return len(f.sources) > 0 || f.dest != ""
}

// job builds a validated job from the flags. Each --opt is "name" for a
// flag or "name=value"; repeating a name collects its values into a list.
func (f *adHocFlags) job() (config.Job, error) {
	options := make(map[string]any)
	var order []string
	for _, raw := range f.opts {
		name, value, hasValue := strings.Cut(raw, "=")
		if _, seen := options[name]; !seen {
			order = append(order, name)
		}
		if !hasValue {
			options[name] = true
			continue
		}
		switch prev := options[name].(type) {
		case nil:
			options[name] = value
		case string:
			options[name] = []string{prev, value}
		case []string:
			options[name] = append(prev, value)
		default:
			return config.Job{}, fmt.Errorf("option %q given both as a flag and with a value", name)
		}
	}

	job := config.Job{
		Name:         "adhoc",
		Source:       f.sources,
		Dest:         f.dest,
		Executable:   f.executable,
		SourceRemote: f.srcRemote,
		DestRemote:   f.destRemote,
		Output:       f.output,
		Options:      options,
		Retries:      f.retries,
		OptionOrder:  order,
	}
	if err := config.Validate(&config.File{Jobs: []config.Job{job}}); err != nil {
		return config.Job{}, err
	}
	return job, nil
}

func newRunCommand(a *app) *cobra.Command {
	var (
		adHoc            adHocFlags
		parallel         int
		progressInterval time.Duration
		metricsFile      string
	)

	cmd := &cobra.Command{
		Use:   "run [job...]",
		Short: "Run jobs from the job file, or one ad-hoc transfer",
		Long: `Run the named jobs from the job file, or all of them when none are named.

With --src and --dest a single transfer is built from flags instead:

  rsyncer run --src ~/Pictures/ --dest /backup/pictures --dest-remote me@nas \
    --opt archive --opt info=progress2 --opt exclude=*.tmp`,
		RunE: func(cmd *cobra.Command, names []string) error {
			var jobs []config.Job
			if adHoc.set() {
				if len(names) > 0 {
					return fmt.Errorf("job names cannot be combined with --src/--dest")
				}
				job, err := adHoc.job()
				if err != nil {
					return err
				}
				jobs = []config.Job{job}
			} else {
				f, err := a.loadConfig()
				if err != nil {
					return err
				}
				if jobs, err = a.selectJobs(f, names); err != nil {
					return err
				}
				if !cmd.Flags().Changed("parallel") && f.Parallel > 0 {
					parallel = f.Parallel
				}
			}

			progress := newProgressPrinter(cmd.ErrOrStderr())
			opts := []runner.Option{
				runner.WithParallel(parallel),
				runner.WithLogger(a.logger),
				runner.WithProgress(progressInterval, progress.Update),
			}

			var reg *prometheus.Registry
			if metricsFile != "" {
				reg = prometheus.NewRegistry()
				obs := metrics.NewObserver(reg)
				opts = append(opts, runner.WithObserver(func(job string) supervisor.Observer {
					return obs.ForJob(job)
				}))
			}

			results, err := runner.New(opts...).Run(cmd.Context(), jobs)
			progress.Finish()
			report(cmd.OutOrStdout(), results)

			if reg != nil {
				if werr := prometheus.WriteToTextfile(metricsFile, reg); werr != nil {
					a.logger.Error("failed to write metrics", "path", metricsFile, "error", werr)
				}
			}
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringArrayVar(&adHoc.sources, "src", nil, "source path (repeatable)")
	flags.StringVar(&adHoc.dest, "dest", "", "destination path")
	flags.StringArrayVar(&adHoc.opts, "opt", nil, "rsync option as name or name=value (repeatable)")
	flags.StringVar(&adHoc.srcRemote, "src-remote", "", "remote host for the source, e.g. user@host")
	flags.StringVar(&adHoc.destRemote, "dest-remote", "", "remote host for the destination")
	flags.StringVar(&adHoc.output, "output", "", "keep rsync output in this file")
	flags.StringVar(&adHoc.executable, "exe", "", "rsync executable")
	flags.IntVar(&adHoc.retries, "retries", 0, "retries on transient failures")
	flags.IntVarP(&parallel, "parallel", "j", 1, "jobs to run at once")
	flags.DurationVar(&progressInterval, "progress-interval", time.Second, "how often to show progress")
	flags.StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this file when done")

	return cmd
}

// report prints one summary line per job.
func report(w io.Writer, results []runner.JobResult) {
	for _, r := range results {
		switch {
		case r.Result == nil:
			fmt.Fprintf(w, "%s: not run: %v\n", r.Job, r.Err)
		case r.Result.Success():
			fmt.Fprintf(w, "%s: ok in %s\n", r.Job, r.Result.Duration.Round(time.Millisecond))
		default:
			fmt.Fprintf(w, "%s: failed with exit code %d (%s) after %d attempt(s)\n",
				r.Job, r.Result.ExitCode, r.Result.Description, r.Attempts)
			if r.Result.LastLine != "" {
				fmt.Fprintf(w, "  %s\n", r.Result.LastLine)
			}
		}
	}
}
