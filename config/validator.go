package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

var jobNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// validate is shared; validator.Validate caches struct metadata and is safe
// for concurrent use.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("jobname", func(fl validator.FieldLevel) bool {
		return jobNamePattern.MatchString(fl.Field().String())
	})
	return v
}

// Validate checks struct constraints and the rules that span jobs: names
// are unique and every option name and value can be rendered.
func Validate(f *File) error {
	if f == nil {
		return errors.New(errors.CodeInvalidInput, "job file is nil")
	}

	if err := validate.Struct(f); err != nil {
		return fieldErrors(err)
	}

	var problems []string
	seen := make(map[string]bool, len(f.Jobs))
	for _, j := range f.Jobs {
		if seen[j.Name] {
			problems = append(problems, fmt.Sprintf("job %q is defined more than once", j.Name))
		}
		seen[j.Name] = true

		for name, raw := range j.Options {
			if err := command.ValidateName(name); err != nil {
				problems = append(problems, fmt.Sprintf("job %q: option %q: %s", j.Name, name, messageOf(err)))
				continue
			}
			if _, _, err := command.ValueOf(raw); err != nil {
				problems = append(problems, fmt.Sprintf("job %q: option %q: %s", j.Name, name, messageOf(err)))
			}
		}
	}

	if len(problems) > 0 {
		return errors.New(errors.CodeInvalidConfig,
			fmt.Sprintf("job file validation failed: %s", strings.Join(problems, "; ")))
	}
	return nil
}

// fieldErrors flattens validator output into one INVALID_CONFIGURATION error.
func fieldErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, errors.CodeInvalidConfig, "job file validation failed")
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
	}
	return errors.WrapWithContext(err, errors.CodeInvalidConfig,
		fmt.Sprintf("job file validation failed: %s", strings.Join(fields, "; ")),
		map[string]any{"fields": fields})
}

func messageOf(err error) string {
	var perr errors.PlatformError
	if errors.As(err, &perr) {
		return perr.Message()
	}
	return err.Error()
}
