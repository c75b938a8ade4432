package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSite imitates the booking site: a CSRF-protected login form, a
// paginated schedule and appointment detail pages, all behind a session
// cookie.
type fakeSite struct {
	t        *testing.T
	server   *httptest.Server
	password string

	loginPageStatus int
	loginPosts      atomic.Int32
	lastLoginForm   map[string]string
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	site := &fakeSite{t: t, password: "s3cret"}

	mux := http.NewServeMux()
	mux.HandleFunc("/login", site.login)
	mux.HandleFunc("/schedule", site.schedule)
	mux.HandleFunc("/schedule/a/", site.appointment)

	site.server = httptest.NewServer(mux)
	t.Cleanup(site.server.Close)
	return site
}

func (s *fakeSite) client(t *testing.T) *Client {
	t.Helper()
	return NewClient(Options{
		BaseURL: s.server.URL,
		Timeout: 5 * time.Second,
		Logger:  zerolog.Nop(),
		Sleep:   func(context.Context, time.Duration) error { return nil },
	})
}

func (s *fakeSite) login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if s.loginPageStatus != 0 {
			w.WriteHeader(s.loginPageStatus)
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "XSRF-TOKEN", Value: "abc", Path: "/"})
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "pre", Path: "/", HttpOnly: true})
		fmt.Fprint(w, readFixture(s.t, "login.html"))
		return
	}

	s.loginPosts.Add(1)
	require.NoError(s.t, r.ParseForm())
	s.lastLoginForm = map[string]string{
		"username": r.PostFormValue("username"),
		"password": r.PostFormValue("password"),
		"_token":   r.PostFormValue("_token"),
		"cookie":   r.Header.Get("Cookie"),
	}

	switch {
	case r.PostFormValue("password") == "forbidden":
		w.WriteHeader(http.StatusForbidden)
	case r.PostFormValue("password") != s.password || r.PostFormValue("_token") != "tok123":
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `<p class="error">The username or password is incorrect</p>`)
	default:
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "post", Path: "/"})
		http.Redirect(w, r, "/schedule", http.StatusFound)
	}
}

func (s *fakeSite) authorized(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Cookie"), "session=post")
}

func (s *fakeSite) schedule(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	switch r.URL.Query().Get("page") {
	case "":
		fmt.Fprint(w, readFixture(s.t, "schedule.html"))
	case "2":
		fmt.Fprint(w, `<html><body>
			<a href="/schedule/a/A300/1710604800"><span>Overnight Stay</span></a>
			<a href="/schedule/a/A500/1710777600"><span>Boarding</span></a>
			<a class="next" href="/schedule?page=2">Next</a>
		</body></html>`)
	default:
		http.NotFound(w, r)
	}
}

func (s *fakeSite) appointment(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		fmt.Fprint(w, `<form action="/login"><input type="password" name="password"></form>`)
		return
	}
	switch {
	case strings.HasPrefix(r.URL.Path, "/schedule/a/BROKEN"):
		w.WriteHeader(http.StatusInternalServerError)
	case strings.HasPrefix(r.URL.Path, "/schedule/a/GONE"):
		http.NotFound(w, r)
	case strings.HasPrefix(r.URL.Path, "/schedule/a/MENU"):
		fmt.Fprint(w, `<nav><a href="/account/history">Login history</a> <a href="/account/pw">Change Password</a></nav>`)
		fmt.Fprint(w, readFixture(s.t, "appointment.html"))
	default:
		fmt.Fprint(w, readFixture(s.t, "appointment.html"))
	}
}

func TestAuthenticateSuccess(t *testing.T) {
	site := newFakeSite(t)

	res := site.client(t).Authenticate(context.Background(), "kennel", "s3cret")

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "XSRF-TOKEN=abc; session=post", res.Cookies)
	assert.Equal(t, "tok123", site.lastLoginForm["_token"])
	assert.Equal(t, "XSRF-TOKEN=abc; session=pre", site.lastLoginForm["cookie"])
}

func TestAuthenticateFailures(t *testing.T) {
	t.Run("empty credentials", func(t *testing.T) {
		site := newFakeSite(t)
		res := site.client(t).Authenticate(context.Background(), "kennel", "")
		assert.False(t, res.Success)
		assert.Equal(t, "Username and password are required", res.Error)
		assert.Zero(t, site.loginPosts.Load())
	})

	t.Run("invalid credentials", func(t *testing.T) {
		site := newFakeSite(t)
		res := site.client(t).Authenticate(context.Background(), "kennel", "wrong")
		assert.False(t, res.Success)
		assert.Equal(t, "Invalid credentials", res.Error)
		assert.NoError(t, res.Err)
	})

	t.Run("status without message", func(t *testing.T) {
		site := newFakeSite(t)
		res := site.client(t).Authenticate(context.Background(), "kennel", "forbidden")
		assert.Equal(t, "Login failed with status 403", res.Error)
		assert.False(t, Temporary(res.Err))
	})

	t.Run("login page unavailable", func(t *testing.T) {
		site := newFakeSite(t)
		site.loginPageStatus = http.StatusServiceUnavailable
		res := site.client(t).Authenticate(context.Background(), "kennel", "s3cret")
		assert.Equal(t, "Failed to load login page: 503", res.Error)
		assert.True(t, Temporary(res.Err))
	})

	t.Run("transport error", func(t *testing.T) {
		site := newFakeSite(t)
		c := site.client(t)
		site.server.Close()
		res := c.Authenticate(context.Background(), "kennel", "s3cret")
		assert.False(t, res.Success)
		assert.True(t, strings.HasPrefix(res.Error, "Authentication error: "), res.Error)
		assert.True(t, Temporary(res.Err), "connection refused is worth retrying")
	})
}

func TestTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"session expired", ErrSessionExpired, false},
		{"wrapped session expired", fmt.Errorf("schedule: %w", ErrSessionExpired), false},
		{"not found", &FetchError{Resource: "appointment", ID: "A1", StatusCode: 404}, false},
		{"server error", &FetchError{Resource: "schedule", StatusCode: 502}, true},
		{"breaker open", gobreaker.ErrOpenState, true},
		{"breaker half-open", gobreaker.ErrTooManyRequests, true},
		{"transport", &url.Error{Op: "Get", URL: "https://site.example/schedule", Err: errors.New("connection reset")}, true},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Temporary(tt.err))
		})
	}
}

func TestFetchSchedulePaginates(t *testing.T) {
	site := newFakeSite(t)
	var sleeps atomic.Int32
	c := NewClient(Options{
		BaseURL:          site.server.URL,
		Logger:           zerolog.Nop(),
		PageDelay:        time.Second,
		MaxSchedulePages: 5,
		Sleep: func(_ context.Context, d time.Duration) error {
			assert.Equal(t, time.Second, d)
			sleeps.Add(1)
			return nil
		},
	})

	got, err := c.FetchSchedule(context.Background(), "session=post")
	require.NoError(t, err)

	ids := make([]string, 0, len(got))
	for _, a := range got {
		ids = append(ids, a.ID)
	}
	assert.Equal(t, []string{"A100", "A200", "A300", "A400", "A500"}, ids)
	assert.EqualValues(t, 1, sleeps.Load(), "page 2 links to itself, so only two pages are fetched")
}

func TestFetchScheduleRespectsPageLimit(t *testing.T) {
	site := newFakeSite(t)
	c := NewClient(Options{BaseURL: site.server.URL, Logger: zerolog.Nop(), MaxSchedulePages: 1})

	got, err := c.FetchSchedule(context.Background(), "session=post")
	require.NoError(t, err)
	assert.Len(t, got, 4)
}

func TestFetchScheduleSessionExpired(t *testing.T) {
	site := newFakeSite(t)

	_, err := site.client(t).FetchSchedule(context.Background(), "session=stale")
	assert.ErrorIs(t, err, ErrSessionExpired)
}

func TestFetchAppointmentDetails(t *testing.T) {
	site := newFakeSite(t)
	c := site.client(t)
	ctx := context.Background()

	d, err := c.FetchAppointmentDetails(ctx, "A100", "1710432000", "session=post")
	require.NoError(t, err)
	assert.Equal(t, "A100", d.ExternalID)
	assert.Equal(t, site.server.URL+"/schedule/a/A100/1710432000", d.SourceURL)
	assert.Equal(t, "Luna", d.PetName)
	assert.True(t, d.HasStayDates())

	_, err = c.FetchAppointmentDetails(ctx, "GONE1", "", "session=post")
	var fetchErr *FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, "Failed to fetch appointment GONE1: 404", err.Error())

	_, err = c.FetchAppointmentDetails(ctx, "BROKEN", "1", "session=post")
	assert.EqualError(t, err, "Failed to fetch appointment BROKEN: 500")

	_, err = c.FetchAppointmentDetails(ctx, "A100", "1710432000", "session=stale")
	assert.ErrorIs(t, err, ErrSessionExpired)

	d, err = c.FetchAppointmentDetails(ctx, "MENU1", "1710432000", "session=post")
	require.NoError(t, err, "account menu labels are not a login page")
	assert.Equal(t, "Luna", d.PetName)
}

func TestAppointmentPath(t *testing.T) {
	assert.Equal(t, "/schedule/a/A1/123", AppointmentPath("A1", "123"))
	assert.Equal(t, "/schedule/a/A1", AppointmentPath("A1", ""))
}
