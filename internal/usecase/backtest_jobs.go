package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"TokenRank/internal/domain/models"
	"TokenRank/pkg/cache"
	"TokenRank/pkg/logger"
	"TokenRank/pkg/queue"

	"github.com/google/uuid"
)

const backtestJobType = "backtest.run"

var ErrJobNotFound = errors.New("backtest job not found")

// BacktestJobs runs backtests through the Redis queue and tracks their status in the cache.
type BacktestJobs struct {
	publisher queue.Publisher
	cache     cache.Service
	service   *BacktestService
	prefix    string
	ttl       time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewBacktestJobs(publisher queue.Publisher, c cache.Service, service *BacktestService, prefix string, ttl time.Duration, log *logger.Logger) *BacktestJobs {
	if log == nil {
		log = logger.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &BacktestJobs{
		publisher: publisher,
		cache:     c,
		service:   service,
		prefix:    prefix,
		ttl:       ttl,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Submit records the job as queued and enqueues it.
func (j *BacktestJobs) Submit(ctx context.Context, p models.BacktestJobPayload) (models.JobStatus, error) {
	switch p.Kind {
	case models.JobKindBacktest, models.JobKindGrid:
	default:
		return models.JobStatus{}, fmt.Errorf("unknown job kind %q", p.Kind)
	}
	p.JobID = uuid.NewString()

	status := models.JobStatus{ID: p.JobID, Kind: p.Kind, Status: models.JobQueued, UpdatedAt: j.now()}
	if err := j.put(ctx, status); err != nil {
		return models.JobStatus{}, err
	}
	if _, err := j.publisher.Enqueue(ctx, backtestJobType, p); err != nil {
		_ = j.cache.Delete(ctx, j.key(p.JobID))
		return models.JobStatus{}, fmt.Errorf("enqueue backtest job: %w", err)
	}

	j.log.Info("backtest job queued",
		logger.String("job_id", p.JobID),
		logger.String("kind", p.Kind),
		logger.String("strategy", p.Strategy))
	return status, nil
}

func (j *BacktestJobs) Status(ctx context.Context, id string) (models.JobStatus, error) {
	status, err := cache.GetTyped[models.JobStatus](ctx, j.cache, j.key(id))
	if errors.Is(err, cache.ErrCacheMiss) {
		return models.JobStatus{}, ErrJobNotFound
	}
	if err != nil {
		return models.JobStatus{}, fmt.Errorf("read job status: %w", err)
	}
	return status, nil
}

func (j *BacktestJobs) Name() string { return "backtest_job" }

func (j *BacktestJobs) Type() string { return backtestJobType }

func (j *BacktestJobs) Handle(ctx context.Context, msg queue.Message, payload json.RawMessage) error {
	p, err := queue.ParsePayload[models.BacktestJobPayload](payload)
	if err != nil {
		return err
	}
	if p.JobID == "" {
		p.JobID = msg.ID
	}

	status := models.JobStatus{ID: p.JobID, Kind: p.Kind, Status: models.JobRunning, UpdatedAt: j.now()}
	if err := j.put(ctx, status); err != nil {
		j.log.Warn("mark job running", logger.String("job_id", p.JobID), logger.Error(err))
	}

	switch p.Kind {
	case models.JobKindGrid:
		var results []models.GridSearchResult
		results, status.ReportID, err = j.service.GridSearch(ctx, p.Strategy, p.Limit, p.Grid)
		status.Results = results
	default:
		var report models.BacktestReport
		report, status.ReportID, err = j.service.Backtest(ctx, p.Strategy, p.Limit)
		report.Rounds = nil
		status.Report = &report
	}

	status.UpdatedAt = j.now()
	if err != nil {
		status.Status = models.JobFailed
		status.Error = err.Error()
		status.Report, status.Results = nil, nil
	} else {
		status.Status = models.JobDone
	}
	if putErr := j.put(context.Background(), status); putErr != nil {
		j.log.Error("store job status", logger.String("job_id", p.JobID), logger.Error(putErr))
	}
	return err
}

func (j *BacktestJobs) put(ctx context.Context, status models.JobStatus) error {
	if err := j.cache.Set(ctx, j.key(status.ID), status, j.ttl); err != nil {
		return fmt.Errorf("store job status: %w", err)
	}
	return nil
}

func (j *BacktestJobs) key(id string) string {
	return cache.Key(j.prefix, "job", id)
}

var _ queue.Job = (*BacktestJobs)(nil)
