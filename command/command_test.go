package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/errors"
)

func TestFormatPath(t *testing.T) {
	tests := []struct {
		name     string
		path     Path
		remote   string
		expected string
	}{
		{"local single", Single("/a/b"), "", "/a/b"},
		{"remote single", Single("/a/b"), "user@host", "user@host:/a/b"},
		{"collection", Strings("/a", "/b"), "", "/a /b"},
		{"nested collection", Paths{Single("/a"), Paths{Single("/b"), Paths{Single("/c")}}}, "", "/a /b /c"},
		{"collection ignores remote", Strings("/a", "/b"), "user@host", "/a /b"},
		{"string with spaces stays atomic", Single("/my docs"), "", "/my docs"},
		{"empty collection", Paths{}, "", ""},
		{"nil", nil, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormatPath(tt.path, tt.remote))
		})
	}
}

func TestFlatten(t *testing.T) {
	p := Paths{Paths{}, Single("x"), Paths{Paths{Single("y")}, Single("z")}}
	assert.Equal(t, []string{"x", "y", "z"}, Flatten(p))
	assert.Nil(t, Flatten(nil))
}

func TestRenderOption(t *testing.T) {
	tests := []struct {
		name     string
		option   string
		value    Value
		expected []string
	}{
		{"long flag", "verbose", Flag(), []string{"--verbose"}},
		{"short flag", "v", Flag(), []string{"-v"}},
		{"zero value is a flag", "archive", Value{}, []string{"--archive"}},
		{"list", "exclude", List("x", "y"), []string{"--exclude x", "--exclude y"}},
		{"underscore normalized", "backup_dir", String("/tmp"), []string{"--backup-dir /tmp"}},
		{"value not normalized", "suffix", String("_old"), []string{"--suffix _old"}},
		{"short with value", "e", String("ssh -p 2222"), []string{"-e ssh -p 2222"}},
		{"int", "bwlimit", Int(500), []string{"--bwlimit 500"}},
		{"empty list drops option", "exclude", List(), []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, RenderOption(tt.option, tt.value))
		})
	}
}

func TestValueOf(t *testing.T) {
	v, ok, err := ValueOf(true)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, v.IsFlag())

	_, ok, err = ValueOf(false)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err = ValueOf([]any{"a", 2})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []string{"--exclude a", "--exclude 2"}, RenderOption("exclude", v))

	v, _, err = ValueOf(int64(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"--timeout 3"}, RenderOption("timeout", v))

	_, _, err = ValueOf(map[string]any{})
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestNewSpec_DualRemote(t *testing.T) {
	_, err := NewSpec(Single("/src"), "/dst",
		WithSourceRemote("alice@a.example"),
		WithDestRemote("bob@b.example"),
	)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "both be remote")
}

func TestBuild_DualRemoteAfterMutation(t *testing.T) {
	spec, err := NewSpec(Single("/src"), "/dst", WithSourceRemote("alice@a.example"))
	require.NoError(t, err)

	spec.DestRemote = "bob@b.example"
	_, err = Build(spec)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestNewSpec_Validation(t *testing.T) {
	tests := []struct {
		name   string
		source Path
		dest   string
		opts   []SpecOption
	}{
		{"no source", nil, "/dst", nil},
		{"empty source collection", Paths{}, "/dst", nil},
		{"no dest", Single("/src"), "", nil},
		{"empty option name", Single("/src"), "/dst", []SpecOption{WithFlag("")}},
		{"dashed option name", Single("/src"), "/dst", []SpecOption{WithFlag("--verbose")}},
		{"option name with space", Single("/src"), "/dst", []SpecOption{WithFlag("dry run")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSpec(tt.source, tt.dest, tt.opts...)
			assert.ErrorIs(t, err, errors.ErrInvalidConfig)
		})
	}
}

func TestBuild(t *testing.T) {
	spec, err := NewSpec(Strings("/a", "/b"), "/backup",
		WithDestRemote("user@host"),
		WithFlag("archive", "v"),
		WithOption("backup_dir", String("/old")),
		WithExclude("*.tmp", "cache/"),
	)
	require.NoError(t, err)

	args, err := Build(spec)
	require.NoError(t, err)
	assert.Equal(t, Args{
		"rsync",
		"/a /b",
		"user@host:/backup",
		"--archive",
		"-v",
		"--backup-dir /old",
		"--exclude *.tmp",
		"--exclude cache/",
	}, args)
	assert.Equal(t, "rsync", args.Executable())
	assert.Len(t, args.Options(), 5)
}

func TestBuild_RemoteCollectionQualifiesEveryElement(t *testing.T) {
	spec, err := NewSpec(Strings("/a", "/b"), "/dst", WithSourceRemote("host"))
	require.NoError(t, err)

	args, err := Build(spec)
	require.NoError(t, err)
	assert.Equal(t, "host:/a host:/b", args[1])
}

func TestBuild_DeduplicatesOptions(t *testing.T) {
	spec, err := NewSpec(Single("/src"), "/dst",
		WithFlag("verbose", "verbose"),
		WithExclude("x"),
		WithExclude("x", "y"),
	)
	require.NoError(t, err)

	args, err := Build(spec)
	require.NoError(t, err)
	assert.Equal(t, []string{"--verbose", "--exclude x", "--exclude y"}, args.Options())
}

func TestBuild_CustomExecutable(t *testing.T) {
	spec, err := NewSpec(Single("/src"), "/dst", WithExecutable("/usr/local/bin/rsync"))
	require.NoError(t, err)

	cmd, err := spec.ShellCommand()
	require.NoError(t, err)
	assert.Equal(t, "/usr/local/bin/rsync /src /dst", cmd)
}

func TestAddOption_Idempotent(t *testing.T) {
	spec, err := NewSpec(Single("/src"), "/dst", WithFlag("a"))
	require.NoError(t, err)
	args, err := Build(spec)
	require.NoError(t, err)

	once := AddOption(args, "exclude", List("x", "y"))
	twice := AddOption(once, "exclude", List("x", "y"))

	assert.Equal(t, once, twice)
	assert.Equal(t, []string{"-a", "--exclude x", "--exclude y"}, twice.Options())
}

func TestAddOption_IdempotentOnShortVector(t *testing.T) {
	once := AddOption(nil, "v", Flag())
	twice := AddOption(once, "v", Flag())
	assert.Equal(t, Args{"-v"}, once)
	assert.Equal(t, Args{"-v"}, twice)

	short := AddOption(Args{"rsync"}, "exclude", List("x", "x", "y"))
	assert.Equal(t, Args{"rsync", "--exclude x", "--exclude y"}, short)
	assert.Equal(t, short, AddOption(short, "exclude", List("x", "y")))
}

func TestAddOption_DoesNotAliasInput(t *testing.T) {
	base := make(Args, 3, 10)
	copy(base, []string{"rsync", "/src", "/dst"})

	a := AddOption(base, "verbose", Flag())
	b := AddOption(base, "quiet", Flag())

	assert.Equal(t, []string{"--verbose"}, a.Options())
	assert.Equal(t, []string{"--quiet"}, b.Options())
}

func TestAddOption_PartialOverlap(t *testing.T) {
	args := Args{"rsync", "/src", "/dst", "--exclude x"}
	args = AddOption(args, "exclude", List("x", "y", "z"))
	assert.Equal(t, []string{"--exclude x", "--exclude y", "--exclude z"}, args.Options())
}

func TestArgv(t *testing.T) {
	spec, err := NewSpec(Strings("/my docs", "/b"), "/dst",
		WithSourceRemote("user@host"),
		WithFlag("archive"),
		WithOption("rsh", String("ssh -p 2222")),
	)
	require.NoError(t, err)
	args, err := Build(spec)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rsync",
		"user@host:/my docs",
		"user@host:/b",
		"/dst",
		"--archive",
		"--rsh",
		"ssh -p 2222",
	}, Argv(spec, args))
}
