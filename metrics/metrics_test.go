package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/rsync/command"
	"github.com/input-output-hk/catalyst-forge-libs/rsync/supervisor"
)

func TestOutcome(t *testing.T) {
	tests := []struct {
		code     int
		expected string
	}{
		{0, OutcomeSuccess},
		{-1, OutcomeTerminated},
		{23, OutcomePartial},
		{24, OutcomePartial},
		{1, OutcomeFailure},
		{30, OutcomeFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, Outcome(tt.code), tt.code)
	}
}

func TestObserver(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewObserver(reg).ForJob("photos")

	obs.Started(100)
	obs.Started(101)
	assert.InDelta(t, 2, testutil.ToFloat64(obs.active.WithLabelValues("photos")), 0)

	obs.Exited(0, 2*time.Second)
	obs.Exited(23, time.Second)

	assert.InDelta(t, 0, testutil.ToFloat64(obs.active.WithLabelValues("photos")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(obs.runs.WithLabelValues("photos", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(obs.runs.WithLabelValues("photos", OutcomePartial)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(obs.exits.WithLabelValues("photos", "23")), 0)
	assert.Equal(t, 1, testutil.CollectAndCount(obs.duration, "rsync_run_duration_seconds"))
}

func TestObserver_SharedAcrossJobs(t *testing.T) {
	reg := prometheus.NewRegistry()
	base := NewObserver(reg)

	base.ForJob("a").Exited(0, time.Second)
	base.ForJob("b").Exited(-1, time.Second)

	assert.InDelta(t, 1, testutil.ToFloat64(base.runs.WithLabelValues("a", OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(base.runs.WithLabelValues("b", OutcomeTerminated)), 0)
	assert.Equal(t, 2, testutil.CollectAndCount(base.runs))
}

func TestObserver_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewObserver(reg)
	assert.Panics(t, func() { NewObserver(reg) })
}

func TestObserver_WithSupervisor(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs := NewObserver(reg).ForJob("shell")

	spec, err := command.NewSpec(command.Single("-c"), "exit 0", command.WithExecutable("sh"))
	require.NoError(t, err)

	res, err := supervisor.Run(context.Background(), spec, supervisor.WithObserver(obs))
	require.NoError(t, err)
	require.True(t, res.Success())

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(obs.runs.WithLabelValues("shell", OutcomeSuccess)) == 1
	}, 5*time.Second, 10*time.Millisecond)
}
