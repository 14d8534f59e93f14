package supervisor

import (
	"context"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
)

// Run builds a Supervisor for spec and runs it to completion. When the
// process exits with a non-zero code the failure is logged and returned in
// Result.Err.
func Run(ctx context.Context, spec *command.Spec, opts ...Option) (*Result, error) {
	sup, err := New(spec, opts...)
	if err != nil {
		return nil, err
	}

	res, err := sup.RunToCompletion(ctx)
	if err != nil {
		return nil, err
	}
	if res.Err != nil && sup.logger != nil {
		sup.logger.ErrorContext(ctx, "rsync failed",
			"exit_code", res.ExitCode,
			"description", res.Description,
			"last_line", res.LastLine)
	}
	return res, nil
}
