package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [job...]",
		Short: "Print the rsync command of jobs",
		RunE: func(cmd *cobra.Command, names []string) error {
			f, err := a.loadConfig()
			if err != nil {
				return err
			}
			jobs, err := a.selectJobs(f, names)
			if err != nil {
				return err
			}

			for _, job := range jobs {
				spec, err := job.Spec()
				if err != nil {
					return err
				}
				line, err := spec.ShellCommand()
				if err != nil {
					return err
				}
				if len(jobs) == 1 {
					fmt.Fprintln(cmd.OutOrStdout(), line)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", job.Name, line)
			}
			return nil
		},
	}
}
