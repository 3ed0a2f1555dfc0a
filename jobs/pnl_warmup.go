package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/fleetcore/fleetcore/internal/jobs"
	"github.com/fleetcore/fleetcore/internal/pnl"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PnLWarmupJob pre-populates the report cache for the standard windows, fleet
// wide and per active branch, so dashboard hits land warm.
type PnLWarmupJob struct {
	Reports *pnl.Service
	Cache   *pnl.Cache
	Pool    *pgxpool.Pool
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	clock   func() time.Time
}

// NewPnLWarmupJob wires dependencies for the warmup handler.
func NewPnLWarmupJob(reports *pnl.Service, cache *pnl.Cache, pool *pgxpool.Pool, logger *slog.Logger, metrics *jobmetrics.Metrics) *PnLWarmupJob {
	return &PnLWarmupJob{
		Reports: reports,
		Cache:   cache,
		Pool:    pool,
		Logger:  logger,
		Metrics: metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Handle processes P&L warmup tasks.
func (j *PnLWarmupJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil {
		return errors.New("pnl warmup: handler not configured")
	}
	var payload PnLWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskPnLWarmup)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.jobLogger()
	logger.Info("starting pnl warmup")

	branches := payload.Branches
	if len(branches) == 0 {
		var err error
		branches, err = j.fetchBranches(ctx)
		if err != nil {
			resultErr = err
			logger.Error("load warmup branches", slog.Any("error", err))
			return resultErr
		}
	}

	now := j.now()
	warmed := 0
	for _, q := range pnl.WarmupWindows(now) {
		if err := j.warmQuery(ctx, q); err != nil {
			resultErr = err
			logger.Error("warm fleet window", slog.Any("error", err))
			return resultErr
		}
		warmed++
		for _, branch := range branches {
			b := branch
			scoped := q
			scoped.Branch = &b
			if err := j.warmQuery(ctx, scoped); err != nil {
				resultErr = err
				logger.Error("warm branch window", slog.String("branch", branch), slog.Any("error", err))
				return resultErr
			}
			warmed++
		}
	}

	logger.Info("completed pnl warmup", slog.Int("windows", warmed), slog.Duration("duration", time.Since(now)))
	return resultErr
}

func (j *PnLWarmupJob) warmQuery(ctx context.Context, q pnl.Query) error {
	if j.Reports == nil {
		return nil
	}
	// Each window gets its own timeout so one slow query cannot stall the run.
	queryCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	key, err := j.Cache.BuildKey(queryCtx, q)
	if err != nil {
		return err
	}
	var report pnl.Report
	return j.Cache.FetchJSON(queryCtx, key, &report, func(ctx context.Context) (interface{}, error) {
		return j.Reports.Compute(ctx, q)
	})
}

func (j *PnLWarmupJob) fetchBranches(ctx context.Context) ([]string, error) {
	if j.Pool == nil {
		return nil, errors.New("pnl warmup: pool not configured")
	}
	rows, err := j.Pool.Query(ctx,
		`SELECT DISTINCT branch FROM bookings WHERE branch IS NOT NULL AND branch <> '' ORDER BY branch`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	branches := make([]string, 0)
	for rows.Next() {
		var branch string
		if err := rows.Scan(&branch); err != nil {
			return nil, err
		}
		branches = append(branches, branch)
	}
	return branches, rows.Err()
}

func (j *PnLWarmupJob) jobLogger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPnLWarmup))
	}
	return slog.Default().With(slog.String("job", TaskPnLWarmup))
}

func (j *PnLWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *PnLWarmupJob) now() time.Time {
	if j.clock != nil {
		return j.clock()
	}
	return time.Now().UTC()
}
