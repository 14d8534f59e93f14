// Package config loads named rsync jobs from YAML or TOML files.
//
// A job file lists jobs, each describing one synchronization:
//
//	parallel: 2
//	jobs:
//	  - name: photos
//	    source: [/home/me/Pictures/]
//	    dest: /mnt/backup/pictures
//	    dest_remote: me@nas
//	    options:
//	      archive: true
//	      delete: true
//	      info: progress2
//	      compress: false
//	    exclude: ["*.tmp"]
//	    retries: 2
//
// Options render in the order they are written. Option values follow the
// command package conventions: true renders a flag, a scalar renders
// "--name value", a list renders one entry per element and false drops the
// option.
//
// The default location is $XDG_CONFIG_HOME/rsyncer/jobs.yaml.
package config

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/adrg/xdg"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

// AppName is the directory job files live in under the XDG config dirs.
const AppName = "rsyncer"

var defaultFileNames = []string{"jobs.yaml", "jobs.yml", "jobs.toml"}

// File is the top level of a job file.
type File struct {
	// Parallel caps how many jobs run at once. Zero means one at a time.
	Parallel int `yaml:"parallel,omitempty" toml:"parallel" validate:"gte=0,lte=64"`

	Jobs []Job `yaml:"jobs" toml:"jobs" validate:"required,min=1,dive"`
}

// Job is one named synchronization.
type Job struct {
	Name         string         `yaml:"name" toml:"name" validate:"required,jobname"`
	Source       []string       `yaml:"source" toml:"source" validate:"required,min=1,dive,required"`
	Dest         string         `yaml:"dest" toml:"dest" validate:"required"`
	Executable   string         `yaml:"executable,omitempty" toml:"executable"`
	SourceRemote string         `yaml:"source_remote,omitempty" toml:"source_remote" validate:"excluded_with=DestRemote"`
	DestRemote   string         `yaml:"dest_remote,omitempty" toml:"dest_remote"`
	Output       string         `yaml:"output,omitempty" toml:"output"`
	Options      map[string]any `yaml:"options,omitempty" toml:"options"`
	Includes     []string       `yaml:"include,omitempty" toml:"include"`
	Excludes     []string       `yaml:"exclude,omitempty" toml:"exclude"`
	Retries      int            `yaml:"retries,omitempty" toml:"retries" validate:"gte=0,lte=10"`

	// OptionOrder lists option names in the order they were written. The
	// loaders fill it in; names missing from it come after, sorted.
	OptionOrder []string `yaml:"-" toml:"-"`
}

// Job returns the job called name.
func (f *File) Job(name string) (*Job, error) {
	for i := range f.Jobs {
		if f.Jobs[i].Name == name {
			return &f.Jobs[i], nil
		}
	}
	return nil, errors.NewWithContext(errors.CodeNotFound, "job not found",
		map[string]any{"job": name, "available": strings.Join(f.Names(), ", ")})
}

// Names lists the job names in file order.
func (f *File) Names() []string {
	names := make([]string, 0, len(f.Jobs))
	for _, j := range f.Jobs {
		names = append(names, j.Name)
	}
	return names
}

// Spec converts the job into a command spec. Options are emitted in the
// order the file lists them, followed by includes and then excludes. Options
// with no recorded order come last, sorted by name, so the rendered command
// is stable across loads.
func (j *Job) Spec() (*command.Spec, error) {
	var source command.Path
	if len(j.Source) == 1 {
		source = command.Single(j.Source[0])
	} else {
		source = command.Strings(j.Source...)
	}

	opts := []command.SpecOption{
		command.WithExecutable(j.Executable),
		command.WithSourceRemote(j.SourceRemote),
		command.WithDestRemote(j.DestRemote),
	}

	for _, name := range j.optionNames() {
		v, ok, err := command.ValueOf(j.Options[name])
		if err != nil {
			return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid option value",
				map[string]any{"job": j.Name, "option": name})
		}
		if !ok {
			continue
		}
		opts = append(opts, command.WithOption(name, v))
	}
	if len(j.Includes) > 0 {
		opts = append(opts, command.WithInclude(j.Includes...))
	}
	if len(j.Excludes) > 0 {
		opts = append(opts, command.WithExclude(j.Excludes...))
	}

	spec, err := command.NewSpec(source, j.Dest, opts...)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidConfig, "invalid job",
			map[string]any{"job": j.Name})
	}
	return spec, nil
}

func (j *Job) optionNames() []string {
	names := make([]string, 0, len(j.Options))
	for _, name := range j.OptionOrder {
		if _, ok := j.Options[name]; ok && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	var rest []string
	for name := range j.Options {
		if !slices.Contains(names, name) {
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

// DefaultPath returns the first existing job file under the XDG config
// directories, or $XDG_CONFIG_HOME/rsyncer/jobs.yaml when there is none.
func DefaultPath() string {
	for _, name := range defaultFileNames {
		if p, err := xdg.SearchConfigFile(filepath.Join(AppName, name)); err == nil {
			return p
		}
	}
	return filepath.Join(xdg.ConfigHome, AppName, defaultFileNames[0])
}
