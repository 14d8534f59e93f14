package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const jobsYAML = `
jobs:
  - name: ok
    executable: sh
    source: [-c]
    dest: echo hello
  - name: fail
    executable: sh
    source: [-c]
    dest: echo broken pipe; exit 23
  - name: itemize
    executable: sh
    source: [-c]
    dest: 'echo "$0 $@"'
  - name: remote
    source: [/data]
    source_remote: me@nas
    dest: /backup
`

func writeConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(jobsYAML), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestShow(t *testing.T) {
	cfg := writeConfig(t)

	out, _, err := execute(t, "--config", cfg, "show", "ok")
	require.NoError(t, err)
	assert.Equal(t, "sh -c echo hello\n", out)

	out, _, err = execute(t, "--config", cfg, "show", "ok", "remote")
	require.NoError(t, err)
	assert.Equal(t, "ok: sh -c echo hello\nremote: rsync me@nas:/data /backup\n", out)
}

func TestShow_UnknownJob(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t), "show", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "job not found")
}

func TestRun_Job(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "run", "ok")
	require.NoError(t, err)
	assert.Contains(t, out, "ok: ok in")
}

func TestRun_Failure(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "run", "ok", "fail")
	require.Error(t, err)
	assert.Contains(t, out, "ok: ok in")
	assert.Contains(t, out, "fail: failed with exit code 23 (partial transfer due to error) after 1 attempt(s)")
	assert.Contains(t, out, "  broken pipe")
}

func TestRun_MetricsFile(t *testing.T) {
	metricsPath := filepath.Join(t.TempDir(), "rsync.prom")

	_, _, err := execute(t, "--config", writeConfig(t), "run", "ok", "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `rsync_runs_total{job="ok",outcome="success"} 1`)
	assert.Contains(t, string(data), `rsync_exit_codes_total{code="0",job="ok"} 1`)
}

func TestRun_AdHoc(t *testing.T) {
	output := filepath.Join(t.TempDir(), "out.log")

	out, _, err := execute(t, "run",
		"--exe", "sh", "--src=-c", "--dest", "echo adhoc", "--output", output)
	require.NoError(t, err)
	assert.Contains(t, out, "adhoc: ok in")

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, "adhoc\n", string(data))
}

func TestRun_AdHocRejectsJobNames(t *testing.T) {
	_, _, err := execute(t, "run", "ok", "--src", "/a", "--dest", "/b")
	require.Error(t, err)
}

func TestRun_AdHocInvalid(t *testing.T) {
	_, _, err := execute(t, "run", "--src", "/a", "--dest", "/b",
		"--src-remote", "x", "--dest-remote", "y")
	require.Error(t, err)
}

func TestAdHocFlags_Options(t *testing.T) {
	f := adHocFlags{
		sources: []string{"/a"},
		dest:    "/b",
		opts:    []string{"archive", "exclude=*.tmp", "exclude=cache/", "exclude=.git", "bwlimit=500"},
	}
	job, err := f.job()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"archive": true,
		"exclude": []string{"*.tmp", "cache/", ".git"},
		"bwlimit": "500",
	}, job.Options)
	assert.Equal(t, []string{"archive", "exclude", "bwlimit"}, job.OptionOrder)

	spec, err := job.Spec()
	require.NoError(t, err)
	cmd, err := spec.ShellCommand()
	require.NoError(t, err)
	assert.Equal(t, "rsync /a /b --archive --exclude *.tmp --exclude cache/ --exclude .git --bwlimit 500", cmd)

	f.opts = []string{"archive", "archive=x"}
	_, err = f.job()
	assert.Error(t, err)
}

func TestDryRun(t *testing.T) {
	out, _, err := execute(t, "--config", writeConfig(t), "dry-run", "itemize")
	require.NoError(t, err)
	assert.Equal(t, "--dry-run --itemize-changes\n", out)
}

func TestDryRun_Failure(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t), "dry-run", "fail")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with 23")
}

func TestVersion(t *testing.T) {
	exe := filepath.Join(t.TempDir(), "fake-rsync")
	script := "#!/bin/sh\necho 'rsync  version 3.2.7  protocol version 31'\n"
	require.NoError(t, os.WriteFile(exe, []byte(script), 0o755))

	out, _, err := execute(t, "version", "--exe", exe)
	require.NoError(t, err)
	assert.Contains(t, out, "rsyncer "+Version)
	assert.Contains(t, out, "3.2.7 (protocol 31)")
	assert.Regexp(t, `mkpath\s+yes`, out)
}

func TestVersion_MissingExecutable(t *testing.T) {
	_, _, err := execute(t, "version", "--exe", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestWatch_RejectsRemoteSource(t *testing.T) {
	_, _, err := execute(t, "--config", writeConfig(t), "watch", "remote")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "remote sources")
}

func TestInvalidLogLevel(t *testing.T) {
	_, _, err := execute(t, "--log-level", "loud", "show")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--log-level")
}

func TestProgressPrinter_NotATerminal(t *testing.T) {
	var buf bytes.Buffer
	p := newProgressPrinter(&buf)
	p.Update("photos", "1,024 50%")
	p.Update("photos", "2,048 100%")
	p.Finish()
	assert.Equal(t, "[photos] 1,024 50%\n[photos] 2,048 100%\n", buf.String())
}
