// Package version detects the installed rsync release and the features it
// supports.
package version

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/executor"
)

// Feature names an rsync capability that depends on the release.
type Feature string

const (
	// FeatureInfoProgress2 is "--info=progress2" whole-transfer progress.
	FeatureInfoProgress2 Feature = "info-progress2"
	// FeatureMkpath is "--mkpath", creating missing destination components.
	FeatureMkpath Feature = "mkpath"
	// FeatureZstd is zstd compression via "--compress-choice=zstd".
	FeatureZstd Feature = "zstd"
)

var featureConstraints = map[Feature]string{
	FeatureInfoProgress2: ">= 3.1.0",
	FeatureMkpath:        ">= 3.2.3",
	FeatureZstd:          ">= 3.2.0",
}

var (
	versionPattern  = regexp.MustCompile(`version\s+v?(\d+\.\d+(?:\.\d+)?)`)
	protocolPattern = regexp.MustCompile(`protocol\s+version\s+(\d+)`)
)

// Info is the parsed output of "rsync --version".
type Info struct {
	Version  *semver.Version
	Protocol int
	Banner   string
}

// Parse extracts the release and protocol number from "rsync --version"
// output. Only the first line is consulted. A missing protocol number is
// reported as zero.
func Parse(output string) (*Info, error) {
	banner, _, _ := strings.Cut(strings.TrimSpace(output), "\n")
	banner = strings.TrimSpace(banner)

	m := versionPattern.FindStringSubmatch(banner)
	if m == nil {
		return nil, errors.NewWithContext(errors.CodeInvalidInput, "unrecognized rsync version banner",
			map[string]any{"banner": banner})
	}
	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeInvalidInput, "invalid rsync version",
			map[string]any{"version": m[1]})
	}

	info := &Info{Version: v, Banner: banner}
	if p := protocolPattern.FindStringSubmatch(banner); p != nil {
		info.Protocol, _ = strconv.Atoi(p[1])
	}
	return info, nil
}

// Satisfies checks the release against a semver constraint such as ">= 3.1".
func (i *Info) Satisfies(constraint string) (bool, error) {
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return false, errors.WrapWithContext(err, errors.CodeInvalidInput, "invalid version constraint",
			map[string]any{"constraint": constraint})
	}
	return c.Check(i.Version), nil
}

// Supports reports whether the release has feature. Unknown features are
// reported as unsupported.
func (i *Info) Supports(feature Feature) bool {
	constraint, ok := featureConstraints[feature]
	if !ok {
		return false
	}
	ok, err := i.Satisfies(constraint)
	return err == nil && ok
}

// String returns the release, e.g. "3.2.7".
func (i *Info) String() string {
	return i.Version.String()
}

// Probe runs "<exe> --version" under the C locale and parses the result.
// Stdout is always captured on its own, whatever capture opts request.
func Probe(ctx context.Context, exe string, opts ...executor.Option) (*Info, error) {
	all := make([]executor.Option, 0, len(opts)+2)
	all = append(all, executor.WithEnv(map[string]string{"LC_ALL": "C", "LANG": "C"}))
	all = append(all, opts...)
	all = append(all, executor.SilentMode())

	result, err := executor.New(exe, "--version").Execute(ctx, all...)
	if err != nil {
		return nil, err
	}
	return Parse(result.Stdout)
}
