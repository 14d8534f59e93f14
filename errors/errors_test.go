package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlatformError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"without cause", New(CodeInvalidConfig, "source and dest cannot both be remote"), "source and dest cannot both be remote"},
		{"with cause", Wrap(stderrors.New("exec: not found"), CodeSpawnFailed, "failed to start rsync"), "failed to start rsync: exec: not found"},
		{"formatted", Newf(CodeInvalidState, "cannot start from state %s", "running"), "cannot start from state running"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestSentinels_Is(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		target   error
		expected bool
	}{
		{"same code", New(CodeInvalidState, "already started"), ErrInvalidState, true},
		{"wrapped with fmt", fmt.Errorf("start: %w", New(CodeSpawnFailed, "boom")), ErrSpawnFailed, true},
		{"different code", New(CodeInvalidConfig, "bad"), ErrInvalidState, false},
		{"warning", Warning("nothing to terminate"), ErrUsageWarning, true},
		{"plain error", stderrors.New("plain"), ErrInvalidConfig, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Is(tt.err, tt.target))
		})
	}
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetCode(nil))
	assert.Equal(t, CodeUnknown, GetCode(stderrors.New("plain")))
	assert.Equal(t, CodeConflict, GetCode(fmt.Errorf("outer: %w", New(CodeConflict, "locked"))))
	assert.True(t, HasCode(New(CodeTimeout, "slow"), CodeTimeout))
	assert.False(t, HasCode(nil, CodeTimeout))
}

func TestIsWarning(t *testing.T) {
	assert.True(t, IsWarning(Warning("progress option not enabled")))
	assert.False(t, IsWarning(New(CodeInvalidState, "x")))
	assert.False(t, IsWarning(nil))
}

func TestWrapWithContext(t *testing.T) {
	cause := stderrors.New("permission denied")
	ctx := map[string]any{"path": "/tmp/out.log"}
	err := WrapWithContext(cause, CodeIO, "failed to open output", ctx)

	ctx["path"] = "mutated"

	var perr PlatformError
	require.True(t, As(err, &perr))
	assert.Equal(t, CodeIO, perr.Code())
	assert.Equal(t, "failed to open output", perr.Message())
	assert.Equal(t, "/tmp/out.log", perr.Context()["path"])
	assert.ErrorIs(t, err, cause)
}

func TestContext_NeverNil(t *testing.T) {
	perr := New(CodeInternal, "x")
	assert.NotNil(t, perr.Context())
}
