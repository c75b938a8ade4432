package postgrest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dog-boarding/backend/internal/storage/models"
)

type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   map[string]any
}

// fakeREST records requests and answers each with the next queued reply.
type fakeREST struct {
	mu      sync.Mutex
	reqs    []recorded
	replies []reply
}

type reply struct {
	status int
	body   string
}

func (f *fakeREST) queue(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.replies = append(f.replies, reply{status: status, body: body})
}

func (f *fakeREST) last(t *testing.T) recorded {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec := recorded{method: r.Method, path: r.URL.Path, query: r.URL.Query(), header: r.Header.Clone()}
	if raw, _ := io.ReadAll(r.Body); len(raw) > 0 {
		_ = json.Unmarshal(raw, &rec.body)
	}
	f.reqs = append(f.reqs, rec)

	rep := reply{status: http.StatusOK, body: "[]"}
	if len(f.replies) > 0 {
		rep, f.replies = f.replies[0], f.replies[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rep.status)
	_, _ = io.WriteString(w, rep.body)
}

func newTestRepos(t *testing.T) (*Repositories, *fakeREST) {
	t.Helper()
	fake := &fakeREST{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	c := NewClient(Options{URL: srv.URL + "/", Key: "anon-key", Logger: zerolog.Nop()})
	c.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return NewRepositories(c), fake
}

func TestClientSendsProjectKey(t *testing.T) {
	repos, fake := newTestRepos(t)

	_, err := repos.Dogs.GetByExternalID(context.Background(), "A100")
	require.NoError(t, err)

	req := fake.last(t)
	assert.Equal(t, "/rest/v1/dogs", req.path)
	assert.Equal(t, "anon-key", req.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", req.header.Get("Authorization"))
	assert.Equal(t, "eq.A100", req.query.Get("external_id"))
	assert.Equal(t, "*", req.query.Get("select"))
}

func TestDogLookups(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	t.Run("miss is nil", func(t *testing.T) {
		d, err := repos.Dogs.GetByExternalID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, d)
	})

	t.Run("hit decodes row", func(t *testing.T) {
		fake.queue(http.StatusOK, `[{"id":"d1","name":"Biscuit","source":"manual","external_id":null,"active":true,"day_rate":35,"night_rate":45,"created_at":"2024-01-01T00:00:00+00:00","updated_at":"2024-01-01T00:00:00+00:00"}]`)
		d, err := repos.Dogs.GetByID(ctx, "d1")
		require.NoError(t, err)
		require.NotNil(t, d)
		assert.Equal(t, "Biscuit", d.Name)
		assert.True(t, d.IsManual())
		assert.Equal(t, 45.0, d.NightRate)
	})

	t.Run("name match escapes wildcards", func(t *testing.T) {
		_, err := repos.Dogs.FindByName(ctx, "Mr_Bean 100%")
		require.NoError(t, err)

		req := fake.last(t)
		assert.Equal(t, `ilike.Mr\_Bean 100\%`, req.query.Get("name"))
		assert.Equal(t, "source.desc,created_at.asc", req.query.Get("order"))
		assert.Equal(t, "1", req.query.Get("limit"))
	})
}

func TestDogWrites(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	d := &models.Dog{Name: "Luna", Source: models.SourceExternal, ExternalID: models.StringPtr("A200"), Active: true}
	fake.queue(http.StatusCreated, `[{"id":"server-id","name":"Luna","source":"external","external_id":"A200","active":true}]`)
	require.NoError(t, repos.Dogs.Create(ctx, d))

	req := fake.last(t)
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "return=representation", req.header.Get("Prefer"))
	assert.Equal(t, "Luna", req.body["name"])
	assert.Equal(t, "A200", req.body["external_id"])
	assert.NotEmpty(t, req.body["id"])
	assert.Equal(t, "server-id", d.ID)

	t.Run("update", func(t *testing.T) {
		fake.queue(http.StatusOK, `[{"id":"server-id"}]`)
		d.Breed = models.StringPtr("Collie")
		require.NoError(t, repos.Dogs.Update(ctx, d))

		req := fake.last(t)
		assert.Equal(t, http.MethodPatch, req.method)
		assert.Equal(t, "eq.server-id", req.query.Get("id"))
		assert.Equal(t, "Collie", req.body["breed"])
	})

	t.Run("update of missing row", func(t *testing.T) {
		err := repos.Dogs.Update(ctx, &models.Dog{ID: "gone", Name: "x"})
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestBoardingWrites(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	in := time.Date(2024, 3, 10, 15, 0, 0, 0, time.UTC)
	b := &models.Boarding{
		DogID: "d1", ArrivalDateTime: in, DepartureDateTime: in.Add(48 * time.Hour),
		Source: models.SourceExternal, ExternalID: models.StringPtr("A300"), Status: models.BoardingStatusScheduled,
	}
	fake.queue(http.StatusCreated, "")
	require.NoError(t, repos.Boardings.Create(ctx, b))

	req := fake.last(t)
	assert.Equal(t, "/rest/v1/boardings", req.path)
	assert.Equal(t, "2024-03-10T15:00:00Z", req.body["arrival_datetime"])
	assert.NotEmpty(t, b.ID)

	_, err := repos.Boardings.ListByDog(ctx, "d1")
	require.NoError(t, err)
	req = fake.last(t)
	assert.Equal(t, "eq.d1", req.query.Get("dog_id"))
	assert.Equal(t, "arrival_datetime.asc", req.query.Get("order"))
}

func TestSyncLogs(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	l := &models.SyncLog{}
	require.NoError(t, repos.SyncLogs.Create(ctx, l))
	req := fake.last(t)
	assert.Equal(t, models.SyncStatusRunning, req.body["status"])
	assert.Equal(t, []any{}, req.body["errors"])

	done := time.Date(2024, 3, 1, 12, 1, 0, 0, time.UTC)
	l.Status = models.SyncStatusPartial
	l.CompletedAt = &done
	l.AppointmentsFound = 3
	l.AppointmentsFailed = 1
	l.Errors = []models.SyncError{{ExternalID: "A1", Error: "Failed to fetch appointment A1: 500"}}

	fake.queue(http.StatusOK, `[{"id":"`+l.ID+`"}]`)
	require.NoError(t, repos.SyncLogs.Complete(ctx, l))
	req = fake.last(t)
	assert.Equal(t, "eq."+l.ID, req.query.Get("id"))
	assert.Equal(t, "partial", req.body["status"])
	assert.Equal(t, float64(3), req.body["appointments_found"])
	require.Len(t, req.body["errors"], 1)

	_, err := repos.SyncLogs.List(ctx, 5)
	require.NoError(t, err)
	req = fake.last(t)
	assert.Equal(t, "started_at.desc", req.query.Get("order"))
	assert.Equal(t, "5", req.query.Get("limit"))
}

func TestSettingsSession(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	t.Run("no row", func(t *testing.T) {
		s, err := repos.Settings.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("null cookies", func(t *testing.T) {
		fake.queue(http.StatusOK, `[{"session_cookies":null,"session_expires_at":null}]`)
		s, err := repos.Settings.GetSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, s)
	})

	t.Run("stored", func(t *testing.T) {
		fake.queue(http.StatusOK, `[{"session_cookies":"session=abc","session_expires_at":"2024-03-02T12:00:00+00:00"}]`)
		s, err := repos.Settings.GetSession(ctx)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, "session=abc", s.Cookies)
		assert.True(t, s.Valid(time.Date(2024, 3, 2, 11, 0, 0, 0, time.UTC)))
	})

	t.Run("store upserts", func(t *testing.T) {
		require.NoError(t, repos.Settings.StoreSession(ctx, "session=xyz", time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
		req := fake.last(t)
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "id", req.query.Get("on_conflict"))
		assert.Contains(t, req.header.Get("Prefer"), "resolution=merge-duplicates")
		assert.Equal(t, float64(models.SyncSettingsID), req.body["id"])
		assert.Equal(t, "session=xyz", req.body["session_cookies"])
	})

	t.Run("clear nulls columns", func(t *testing.T) {
		require.NoError(t, repos.Settings.ClearSession(ctx))
		req := fake.last(t)
		assert.Equal(t, http.MethodPatch, req.method)
		assert.Equal(t, "eq.1", req.query.Get("id"))
		assert.Contains(t, req.body, "session_cookies")
		assert.Nil(t, req.body["session_cookies"])
	})

	t.Run("summary leaves session alone", func(t *testing.T) {
		status := models.SyncStatusSuccess
		require.NoError(t, repos.Settings.UpsertSummary(ctx, &models.SyncSettings{LastSyncStatus: &status}))
		req := fake.last(t)
		assert.Equal(t, "success", req.body["last_sync_status"])
		assert.NotContains(t, req.body, "session_cookies")
	})
}

func TestCronHealth(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	msg := "Authentication failed: Invalid credentials"
	require.NoError(t, repos.CronHealth.Upsert(ctx, &models.CronHealth{
		CronName: "sync", LastRanAt: time.Now(), Status: models.CronStatusFailure, ErrorMsg: &msg,
	}))
	req := fake.last(t)
	assert.Equal(t, "cron_name", req.query.Get("on_conflict"))
	assert.Equal(t, msg, req.body["error_msg"])

	h, err := repos.CronHealth.Get(ctx, "sync")
	require.NoError(t, err)
	assert.Nil(t, h)
}

func TestAPIErrors(t *testing.T) {
	ctx := context.Background()
	repos, fake := newTestRepos(t)

	fake.queue(http.StatusConflict, `{"code":"23505","message":"duplicate key value violates unique constraint \"dogs_external_id_key\"","details":null,"hint":null}`)
	err := repos.Dogs.Create(ctx, &models.Dog{Name: "Dup"})
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.Status)
	assert.Equal(t, "23505", apiErr.Code)
	assert.Contains(t, err.Error(), "duplicate key")

	fake.queue(http.StatusBadGateway, "<html>bad gateway</html>")
	_, err = repos.SyncLogs.List(ctx, 1)
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Bad Gateway", apiErr.Message)
}

func TestHealthy(t *testing.T) {
	repos, fake := newTestRepos(t)
	c := repos.Client()

	assert.True(t, c.Healthy(context.Background()))
	assert.Equal(t, "1", fake.last(t).query.Get("limit"))

	fake.queue(http.StatusUnauthorized, `{"message":"Invalid API key"}`)
	assert.False(t, c.Healthy(context.Background()))
}
