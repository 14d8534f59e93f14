package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/executor"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/version"
)

var reportedFeatures = []version.Feature{
	version.FeatureInfoProgress2,
	version.FeatureMkpath,
	version.FeatureZstd,
}

func newVersionCommand(a *app) *cobra.Command {
	var exe string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show the rsyncer version and the installed rsync release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "rsyncer %s\n", Version)

			info, err := version.Probe(cmd.Context(), exe, executor.WithLogger(a.logger))
			if err != nil {
				return fmt.Errorf("probing %s: %w", exe, err)
			}
			fmt.Fprintf(out, "%s %s (protocol %d)\n", exe, info, info.Protocol)
			for _, f := range reportedFeatures {
				mark := "no"
				if info.Supports(f) {
					mark = "yes"
				}
				fmt.Fprintf(out, "  %-15s %s\n", f, mark)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&exe, "exe", command.DefaultExecutable, "rsync executable to probe")
	return cmd
}
