package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/storage/models"
)

// CronName identifies the nightly sync in the cron_health table.
const CronName = "sync"

// Runner performs one sync run.
type Runner interface {
	Run(ctx context.Context) (*Result, error)
}

// CronHealthStore records the outcome of scheduled runs.
type CronHealthStore interface {
	Upsert(ctx context.Context, h *models.CronHealth) error
}

// Scheduler runs the sync on a cron schedule.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	health CronHealthStore
	spec   string
	log    zerolog.Logger

	entryID cron.EntryID
	mu      sync.RWMutex
}

// NewScheduler creates a scheduler for spec, a six-field cron expression
// with seconds. health may be nil.
func NewScheduler(runner Runner, health CronHealthStore, spec string, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds()),
		runner: runner,
		health: health,
		spec:   spec,
		log:    log.With().Str("component", "scheduler").Logger(),
	}
}

// Start registers the sync job and starts the cron loop.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(context.Background())
	})
	if err != nil {
		return fmt.Errorf("scheduling sync %q: %w", s.spec, err)
	}
	s.entryID = id
	s.cron.Start()

	s.log.Info().Str("schedule", s.spec).Msg("Sync scheduler started")
	return nil
}

// Stop waits for a running job to finish and stops the scheduler.
func (s *Scheduler) Stop() {
	s.log.Info().Msg("Stopping sync scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("Sync scheduler stopped")
}

// GetNextRun returns the next scheduled run time, or nil before Start.
func (s *Scheduler) GetNextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if entry.Next.IsZero() {
		return nil
	}
	next := entry.Next
	return &next
}

// runOnce executes a sync and records its health.
func (s *Scheduler) runOnce(ctx context.Context) {
	ranAt := time.Now().UTC()
	res, err := s.runner.Run(ctx)

	switch {
	case errors.Is(err, ErrSyncInProgress):
		s.log.Info().Msg("Skipping scheduled sync, a run is already in progress")
		return
	case err != nil:
		s.log.Error().Err(err).Msg("Scheduled sync could not start")
	default:
		s.log.Info().Str("status", res.Status).Msg("Scheduled sync finished")
	}

	s.recordHealth(ctx, ranAt, res, err)
}

func (s *Scheduler) recordHealth(ctx context.Context, ranAt time.Time, res *Result, runErr error) {
	if s.health == nil {
		return
	}

	h := &models.CronHealth{
		CronName:  CronName,
		LastRanAt: ranAt,
		Status:    models.CronStatusSuccess,
	}
	switch {
	case runErr != nil:
		h.Status = models.CronStatusFailure
		h.ErrorMsg = models.StringPtr(runErr.Error())
	case !res.Success:
		h.Status = models.CronStatusFailure
		h.ErrorMsg = models.StringPtr(failureMessage(res))
	}
	if res != nil {
		if b, err := json.Marshal(res); err == nil {
			h.Result = models.StringPtr(string(b))
		}
	}

	if err := s.health.Upsert(ctx, h); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record cron health")
	}
}

func failureMessage(res *Result) string {
	if res.Error != "" {
		return res.Error
	}
	if len(res.Errors) > 0 {
		return res.Errors[0].Error
	}
	return "Unknown error"
}
