// Package syncjob runs the external-site synchronization: it authenticates,
// scrapes the schedule, reconciles each boarding appointment into local dogs
// and boardings, and records an auditable outcome.
package syncjob

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/dog-boarding/backend/internal/logging"
	"github.com/dog-boarding/backend/internal/scraper"
	"github.com/dog-boarding/backend/internal/storage/models"
)

var (
	// ErrSyncInProgress is returned when a run is requested while another is executing.
	ErrSyncInProgress = errors.New("sync already in progress")
	// ErrStoreNotConfigured means the persistence gateways are missing.
	ErrStoreNotConfigured = errors.New("Supabase configuration missing")
	// ErrCredentialsMissing means no external site username or password is configured.
	ErrCredentialsMissing = errors.New("External site credentials not configured")
)

// Site is the external booking site as seen by a run.
type Site interface {
	Authenticate(ctx context.Context, username, password string) scraper.AuthResult
	FetchSchedule(ctx context.Context, cookies string) ([]scraper.Appointment, error)
	FetchAppointmentDetails(ctx context.Context, id, timestamp, cookies string) (*scraper.AppointmentDetails, error)
}

// Events receives run lifecycle notifications.
type Events interface {
	SyncStarted(logID string)
	SyncFinished(result *Result)
}

type noEvents struct{}

func (noEvents) SyncStarted(string)   {}
func (noEvents) SyncFinished(*Result) {}

// Result is the outcome of one run, as returned to callers.
type Result struct {
	SyncLogID           string             `json:"syncLogId,omitempty"`
	Success             bool               `json:"success"`
	Status              string             `json:"status"`
	AppointmentsFound   int                `json:"appointmentsFound"`
	AppointmentsCreated int                `json:"appointmentsCreated"`
	AppointmentsUpdated int                `json:"appointmentsUpdated"`
	AppointmentsFailed  int                `json:"appointmentsFailed"`
	Errors              []models.SyncError `json:"errors"`
	DurationMS          int64              `json:"durationMs"`

	// Error is set only when the run failed before or outside the
	// per-appointment loop.
	Error string `json:"error,omitempty"`
}

// Options configures a Service.
type Options struct {
	Username string
	Password string

	// RequestDelay is waited before every appointment detail fetch but the first.
	RequestDelay time.Duration

	// SessionTTL is how long a fresh login is reused across runs.
	SessionTTL time.Duration

	// RetryDelays are the waits before each retry of a login, schedule or
	// appointment request that failed temporarily. Empty disables retries.
	RetryDelays []time.Duration

	Logger zerolog.Logger
	Events Events
	Sleep  scraper.SleepFunc
	Now    func() time.Time
}

// Service orchestrates sync runs. At most one run executes at a time.
type Service struct {
	site       Site
	stores     Stores
	reconciler *Reconciler
	opts       Options
	log        zerolog.Logger
	running    atomic.Bool
}

// NewService creates a sync service.
func NewService(site Site, stores Stores, opts Options) *Service {
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 24 * time.Hour
	}
	if opts.Events == nil {
		opts.Events = noEvents{}
	}
	if opts.Sleep == nil {
		opts.Sleep = scraper.Sleep
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	log := opts.Logger.With().Str("component", "syncjob").Logger()

	return &Service{
		site:       site,
		stores:     stores,
		reconciler: NewReconciler(stores.Dogs, stores.Boardings, log),
		opts:       opts,
		log:        log,
	}
}

// Running reports whether a run is executing.
func (s *Service) Running() bool {
	return s.running.Load()
}

// WaitIdle blocks until no run is executing or ctx is done.
func (s *Service) WaitIdle(ctx context.Context) error {
	t := time.NewTicker(100 * time.Millisecond)
	defer t.Stop()
	for s.Running() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Run performs one sync. The returned error is non-nil only when the run
// could not start (missing configuration or a concurrent run); failures
// during the run are reported in the Result with status failed.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	if !s.stores.Configured() {
		return nil, ErrStoreNotConfigured
	}
	if s.opts.Username == "" || s.opts.Password == "" {
		return nil, ErrCredentialsMissing
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	runInProgress.Set(1)
	defer runInProgress.Set(0)

	start := s.opts.Now()
	result := &Result{
		Status: models.SyncStatusFailed,
		Errors: []models.SyncError{},
	}

	syncLog := &models.SyncLog{StartedAt: start}
	if err := s.stores.SyncLogs.Create(ctx, syncLog); err != nil {
		s.fail(ctx, result, nil, start, fmt.Errorf("creating sync log: %w", err))
		return result, nil
	}
	result.SyncLogID = syncLog.ID
	s.opts.Events.SyncStarted(syncLog.ID)
	s.log.Info().Str("sync_log_id", syncLog.ID).Msg("Sync started")

	if err := s.process(ctx, result); err != nil {
		s.fail(ctx, result, syncLog, start, err)
		return result, nil
	}

	s.finish(ctx, result, syncLog, start)
	return result, nil
}

// process authenticates, fetches and reconciles. Per-appointment failures
// are recorded in result; the returned error aborts the run.
func (s *Service) process(ctx context.Context, result *Result) error {
	cookies, cached, err := s.session(ctx)
	if err != nil {
		return err
	}

	appointments, err := s.fetchSchedule(ctx, cookies)
	if errors.Is(err, scraper.ErrSessionExpired) && cached {
		s.log.Info().Msg("Cached session rejected, logging in again")
		if err := s.stores.Settings.ClearSession(ctx); err != nil {
			s.log.Warn().Err(err).Msg("Failed to clear cached session")
		}
		if cookies, err = s.login(ctx); err != nil {
			return err
		}
		appointments, err = s.fetchSchedule(ctx, cookies)
	}
	if err != nil {
		return err
	}

	appointments = scraper.FilterBoardingAppointments(appointments)
	result.AppointmentsFound = len(appointments)
	s.log.Info().Int("appointments", len(appointments)).Msg("Boarding appointments found")

	for i, appt := range appointments {
		if i > 0 {
			if err := s.opts.Sleep(ctx, s.opts.RequestDelay); err != nil {
				return err
			}
		}

		outcome, err := s.syncAppointment(ctx, appt, cookies)
		if err != nil {
			msg := logging.SanitizeError(err)
			result.AppointmentsFailed++
			result.Errors = append(result.Errors, models.SyncError{ExternalID: appt.ID, Error: msg})
			appointmentsTotal.WithLabelValues("failed").Inc()
			s.log.Warn().Str("external_id", appt.ID).Str("error", msg).Msg("Appointment sync failed")
			continue
		}

		switch outcome {
		case OutcomeCreated:
			result.AppointmentsCreated++
		case OutcomeUpdated:
			result.AppointmentsUpdated++
		}
		appointmentsTotal.WithLabelValues(string(outcome)).Inc()
	}

	return nil
}

func (s *Service) fetchSchedule(ctx context.Context, cookies string) ([]scraper.Appointment, error) {
	return retry(ctx, s, "schedule", func() ([]scraper.Appointment, error) {
		return s.site.FetchSchedule(ctx, cookies)
	})
}

func (s *Service) syncAppointment(ctx context.Context, appt scraper.Appointment, cookies string) (Outcome, error) {
	details, err := retry(ctx, s, "appointment", func() (*scraper.AppointmentDetails, error) {
		return s.site.FetchAppointmentDetails(ctx, appt.ID, appt.Timestamp, cookies)
	})
	if err != nil {
		return "", err
	}
	return s.reconciler.Reconcile(ctx, details)
}

// session returns a usable cookie header, preferring an unexpired cached
// one. cached reports whether it came from the cache.
func (s *Service) session(ctx context.Context) (cookies string, cached bool, err error) {
	sess, err := s.stores.Settings.GetSession(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to read cached session")
	} else if sess.Valid(s.opts.Now()) {
		s.log.Debug().Time("expires_at", sess.ExpiresAt).Msg("Using cached session")
		return sess.Cookies, true, nil
	}

	cookies, err = s.login(ctx)
	return cookies, false, err
}

func (s *Service) login(ctx context.Context) (string, error) {
	auth, _ := retry(ctx, s, "login", func() (scraper.AuthResult, error) {
		auth := s.site.Authenticate(ctx, s.opts.Username, s.opts.Password)
		return auth, auth.Err
	})
	if !auth.Success {
		return "", fmt.Errorf("Authentication failed: %s", auth.Error)
	}

	expires := s.opts.Now().Add(s.opts.SessionTTL)
	if err := s.stores.Settings.StoreSession(ctx, auth.Cookies, expires); err != nil {
		s.log.Warn().Err(err).Msg("Failed to cache session")
	}
	return auth.Cookies, nil
}

// retry calls fn until it succeeds, fails permanently or the retry delays
// run out. The last value and error are returned.
func retry[T any](ctx context.Context, s *Service, op string, fn func() (T, error)) (T, error) {
	for attempt := 0; ; attempt++ {
		v, err := fn()
		if err == nil || attempt >= len(s.opts.RetryDelays) || !scraper.Temporary(err) || ctx.Err() != nil {
			return v, err
		}

		wait := s.opts.RetryDelays[attempt]
		retriesTotal.WithLabelValues(op).Inc()
		s.log.Warn().
			Str("operation", op).
			Int("attempt", attempt+1).
			Dur("retry_in", wait).
			Str("error", logging.SanitizeError(err)).
			Msg("Temporary failure, retrying")
		if serr := s.opts.Sleep(ctx, wait); serr != nil {
			return v, err
		}
	}
}

// classify sets the final status from the counters. A run where every
// appointment failed keeps status failed.
func classify(result *Result) {
	switch {
	case result.AppointmentsFailed == 0:
		result.Status = models.SyncStatusSuccess
		result.Success = true
	case result.AppointmentsFailed < result.AppointmentsFound:
		result.Status = models.SyncStatusPartial
		result.Success = true
	default:
		result.Status = models.SyncStatusFailed
		result.Success = false
	}
}

func (s *Service) finish(ctx context.Context, result *Result, syncLog *models.SyncLog, start time.Time) {
	classify(result)
	completed := s.opts.Now()
	result.DurationMS = completed.Sub(start).Milliseconds()

	message := fmt.Sprintf("Synced %d appointments", result.AppointmentsCreated+result.AppointmentsUpdated)
	if !result.Success {
		first := "Unknown error"
		if len(result.Errors) > 0 {
			first = result.Errors[0].Error
		}
		message = "Failed: " + first
	}

	s.persist(ctx, result, syncLog, completed, message)
	s.log.Info().
		Str("status", result.Status).
		Int("found", result.AppointmentsFound).
		Int("created", result.AppointmentsCreated).
		Int("updated", result.AppointmentsUpdated).
		Int("failed", result.AppointmentsFailed).
		Int64("duration_ms", result.DurationMS).
		Msg("Sync completed")
}

func (s *Service) fail(ctx context.Context, result *Result, syncLog *models.SyncLog, start time.Time, err error) {
	completed := s.opts.Now()
	msg := logging.SanitizeError(err)

	result.Success = false
	result.Status = models.SyncStatusFailed
	result.DurationMS = completed.Sub(start).Milliseconds()
	result.Errors = append(result.Errors, models.SyncError{Error: msg})
	result.Error = msg

	s.persist(ctx, result, syncLog, completed, msg)
	s.log.Error().Str("error", msg).Int64("duration_ms", result.DurationMS).Msg("Sync failed")
}

// persist writes the final sync log and settings summary. Write failures
// are logged and never change the result.
func (s *Service) persist(ctx context.Context, result *Result, syncLog *models.SyncLog, completed time.Time, message string) {
	if syncLog != nil {
		syncLog.Status = result.Status
		syncLog.CompletedAt = &completed
		syncLog.AppointmentsFound = result.AppointmentsFound
		syncLog.AppointmentsCreated = result.AppointmentsCreated
		syncLog.AppointmentsUpdated = result.AppointmentsUpdated
		syncLog.AppointmentsFailed = result.AppointmentsFailed
		syncLog.Errors = result.Errors
		syncLog.DurationMS = result.DurationMS
		if err := s.stores.SyncLogs.Complete(ctx, syncLog); err != nil {
			s.log.Error().Err(err).Str("sync_log_id", syncLog.ID).Msg("Failed to complete sync log")
		}
	}

	status := result.Status
	settings := &models.SyncSettings{
		LastSyncAt:      &completed,
		LastSyncStatus:  &status,
		LastSyncMessage: &message,
	}
	if err := s.stores.Settings.UpsertSummary(ctx, settings); err != nil {
		s.log.Error().Err(err).Msg("Failed to update sync settings")
	}

	runsTotal.WithLabelValues(result.Status).Inc()
	runDuration.Observe(float64(result.DurationMS) / 1000)
	s.opts.Events.SyncFinished(result)
}
