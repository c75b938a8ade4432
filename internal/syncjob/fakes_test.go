package syncjob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dog-boarding/backend/internal/scraper"
	"github.com/dog-boarding/backend/internal/storage/models"
)

type memDogs struct {
	mu        sync.Mutex
	dogs      []*models.Dog
	seq       int
	createErr error
	updates   int
}

func (m *memDogs) GetByExternalID(_ context.Context, externalID string) (*models.Dog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.dogs {
		if models.Deref(d.ExternalID) == externalID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memDogs) FindByName(_ context.Context, name string) (*models.Dog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found *models.Dog
	for _, d := range m.dogs {
		if !strings.EqualFold(d.Name, name) {
			continue
		}
		if found == nil || (d.IsManual() && !found.IsManual()) {
			found = d
		}
	}
	if found == nil {
		return nil, nil
	}
	cp := *found
	return &cp, nil
}

func (m *memDogs) Create(_ context.Context, d *models.Dog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.seq++
	d.ID = fmt.Sprintf("dog-%d", m.seq)
	cp := *d
	m.dogs = append(m.dogs, &cp)
	return nil
}

func (m *memDogs) Update(_ context.Context, d *models.Dog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.dogs {
		if existing.ID == d.ID {
			cp := *d
			m.dogs[i] = &cp
			m.updates++
			return nil
		}
	}
	return errors.New("dog not found")
}

func (m *memDogs) add(d models.Dog) *models.Dog {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	if d.ID == "" {
		d.ID = fmt.Sprintf("dog-%d", m.seq)
	}
	m.dogs = append(m.dogs, &d)
	return &d
}

func (m *memDogs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.dogs)
}

type memBoardings struct {
	mu        sync.Mutex
	boardings []*models.Boarding
	seq       int
}

func (m *memBoardings) GetByExternalID(_ context.Context, externalID string) (*models.Boarding, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range m.boardings {
		if models.Deref(b.ExternalID) == externalID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memBoardings) Create(_ context.Context, b *models.Boarding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	b.ID = fmt.Sprintf("boarding-%d", m.seq)
	cp := *b
	m.boardings = append(m.boardings, &cp)
	return nil
}

func (m *memBoardings) Update(_ context.Context, b *models.Boarding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.boardings {
		if existing.ID == b.ID {
			cp := *b
			m.boardings[i] = &cp
			return nil
		}
	}
	return errors.New("boarding not found")
}

func (m *memBoardings) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.boardings)
}

type memSyncLogs struct {
	mu        sync.Mutex
	created   []models.SyncLog
	completed []models.SyncLog
	createErr error
}

func (m *memSyncLogs) Create(_ context.Context, l *models.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	l.ID = fmt.Sprintf("log-%d", len(m.created)+1)
	l.Status = models.SyncStatusRunning
	m.created = append(m.created, *l)
	return nil
}

func (m *memSyncLogs) Complete(_ context.Context, l *models.SyncLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = append(m.completed, *l)
	return nil
}

type memSettings struct {
	mu        sync.Mutex
	summary   *models.SyncSettings
	session   *models.SessionCache
	upsertErr error
	cleared   int
}

func (m *memSettings) UpsertSummary(_ context.Context, s *models.SyncSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	cp := *s
	m.summary = &cp
	return nil
}

func (m *memSettings) GetSession(context.Context) (*models.SessionCache, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *memSettings) StoreSession(_ context.Context, cookies string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = &models.SessionCache{Cookies: cookies, ExpiresAt: expiresAt}
	return nil
}

func (m *memSettings) ClearSession(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	m.cleared++
	return nil
}

type memStores struct {
	dogs      *memDogs
	boardings *memBoardings
	logs      *memSyncLogs
	settings  *memSettings
}

func newMemStores() *memStores {
	return &memStores{
		dogs:      &memDogs{},
		boardings: &memBoardings{},
		logs:      &memSyncLogs{},
		settings:  &memSettings{},
	}
}

func (m *memStores) stores() Stores {
	return Stores{Dogs: m.dogs, Boardings: m.boardings, SyncLogs: m.logs, Settings: m.settings}
}

// fakeSite serves canned appointments. Details not listed in pages fail
// with a fetch error.
type fakeSite struct {
	mu sync.Mutex

	auth        scraper.AuthResult
	authFirst   []scraper.AuthResult
	logins      int
	validCookie string

	schedule     []scraper.Appointment
	scheduleErr  error
	scheduleErrs []error
	details      map[string]*scraper.AppointmentDetails
	detailErrs   map[string][]error
	fetched      []string
	gate         chan struct{}
}

func newFakeSite(appts ...scraper.AppointmentDetails) *fakeSite {
	s := &fakeSite{
		auth:        scraper.AuthResult{Success: true, Cookies: "session=fresh"},
		validCookie: "session=fresh",
		details:     make(map[string]*scraper.AppointmentDetails),
		detailErrs:  make(map[string][]error),
	}
	for i := range appts {
		a := appts[i]
		s.schedule = append(s.schedule, scraper.Appointment{ID: a.ExternalID, Title: "Boarding", Timestamp: a.Timestamp})
		s.details[a.ExternalID] = &a
	}
	return s
}

func (s *fakeSite) Authenticate(context.Context, string, string) scraper.AuthResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logins++
	if len(s.authFirst) > 0 {
		res := s.authFirst[0]
		s.authFirst = s.authFirst[1:]
		return res
	}
	return s.auth
}

func (s *fakeSite) FetchSchedule(_ context.Context, cookies string) ([]scraper.Appointment, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.scheduleErrs) > 0 {
		err := s.scheduleErrs[0]
		s.scheduleErrs = s.scheduleErrs[1:]
		return nil, err
	}
	if s.scheduleErr != nil {
		return nil, s.scheduleErr
	}
	if cookies != s.validCookie {
		return nil, scraper.ErrSessionExpired
	}
	return s.schedule, nil
}

func (s *fakeSite) FetchAppointmentDetails(_ context.Context, id, _ string, cookies string) (*scraper.AppointmentDetails, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, id)
	if errs := s.detailErrs[id]; len(errs) > 0 {
		s.detailErrs[id] = errs[1:]
		return nil, errs[0]
	}
	if cookies != s.validCookie {
		return nil, scraper.ErrSessionExpired
	}
	d, ok := s.details[id]
	if !ok {
		return nil, &scraper.FetchError{Resource: "appointment", ID: id, StatusCode: 404}
	}
	cp := *d
	return &cp, nil
}

func stay(id, pet string, in, out time.Time) scraper.AppointmentDetails {
	return scraper.AppointmentDetails{
		ExternalID:  id,
		Timestamp:   "1",
		PetName:     pet,
		ClientEmail: strings.ToLower(pet) + "@example.com",
		CheckIn:     &in,
		CheckOut:    &out,
	}
}

// recordingEvents captures lifecycle notifications.
type recordingEvents struct {
	mu       sync.Mutex
	started  []string
	finished []*Result
}

func (e *recordingEvents) SyncStarted(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.started = append(e.started, id)
}

func (e *recordingEvents) SyncFinished(r *Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.finished = append(e.finished, r)
}
