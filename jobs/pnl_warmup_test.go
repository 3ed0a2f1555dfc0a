package jobs

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/fleetcore/fleetcore/internal/jobs"
)

func newTestWarmupJob() *PnLWarmupJob {
	return &PnLWarmupJob{
		Metrics: jobmetrics.NewMetrics(prometheus.NewRegistry()),
	}
}

func TestPnLWarmupHandleBadPayloadSkipsRetry(t *testing.T) {
	job := newTestWarmupJob()

	task := asynq.NewTask(TaskPnLWarmup, []byte("{not json"))
	err := job.Handle(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestPnLWarmupHandlePropagatesBranchLoadError(t *testing.T) {
	// No pool and no branches in the payload: the branch lookup fails and
	// that error must survive the deferred metrics finaliser.
	job := newTestWarmupJob()

	task, err := NewPnLWarmupTask(PnLWarmupPayload{})
	require.NoError(t, err)

	err = job.Handle(context.Background(), task)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool not configured")
}

func TestPnLWarmupHandleCompletesWithExplicitBranches(t *testing.T) {
	job := newTestWarmupJob()

	task, err := NewPnLWarmupTask(PnLWarmupPayload{Branches: []string{"Dubai Marina"}})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
}
