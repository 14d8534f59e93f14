package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/executor"
)

func newDryRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run <job>",
		Short: "List what a job would change without transferring anything",
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
			spec, err := job.Spec()
			if err != nil {
				return err
			}

			args, err := command.Build(spec)
			if err != nil {
				return err
			}
			args = command.AddOption(args, "dry-run", command.Flag())
			args = command.AddOption(args, "itemize-changes", command.Flag())

			argv := command.Argv(spec, args)
			a.logger.Info("dry run", "job", job.Name, "command", args.String())

			res, err := executor.New(argv[0], argv[1:]...).Execute(cmd.Context(),
				executor.WithCapture(true, true, false),
				executor.WithStdoutWriter(cmd.OutOrStdout()),
				executor.WithStderrWriter(cmd.ErrOrStderr()),
				executor.WithLogger(a.logger),
			)
			if err != nil {
				if res != nil {
					return fmt.Errorf("dry run of %s exited with %d: %w", job.Name, res.ExitCode, err)
				}
				return err
			}
			return nil
		},
	}
}
