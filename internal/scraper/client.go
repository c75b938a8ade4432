// Package scraper talks to the external booking site, which has no API: it
// logs in with a form post, carries the session as a Cookie header and reads
// appointments out of the returned HTML.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// DefaultUserAgent identifies the sync to the external site.
const DefaultUserAgent = "Mozilla/5.0 (compatible; DogBoardingSync/2.0)"

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	UserAgent string

	// Timeout bounds each HTTP request.
	Timeout time.Duration

	// PageDelay is waited between consecutive schedule page requests.
	PageDelay time.Duration

	// MaxSchedulePages caps how many schedule pages are followed.
	MaxSchedulePages int

	Logger zerolog.Logger
	Sleep  SleepFunc
}

// Client is a session-less HTTP client for the external site. Callers pass
// the cookie header returned by Authenticate to every fetch.
type Client struct {
	baseURL  string
	http     *resty.Client
	breaker  *gobreaker.CircuitBreaker[*resty.Response]
	delay    time.Duration
	maxPages int
	sleep    SleepFunc
	log      zerolog.Logger
}

type noRedirectKey struct{}

// withoutRedirects marks requests made with ctx to return 3xx responses as-is.
func withoutRedirects(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRedirectKey{}, true)
}

// errServerStatus makes the breaker count 5xx responses as failures.
var errServerStatus = errors.New("server error status")

// NewClient creates a client for the site at opts.BaseURL.
func NewClient(opts Options) *Client {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.MaxSchedulePages <= 0 {
		opts.MaxSchedulePages = 10
	}
	if opts.Sleep == nil {
		opts.Sleep = Sleep
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", opts.UserAgent).
		SetTimeout(opts.Timeout).
		SetCookieJar(nil).
		SetRedirectPolicy(resty.RedirectPolicyFunc(func(req *http.Request, via []*http.Request) error {
			if v, _ := req.Context().Value(noRedirectKey{}).(bool); v {
				return http.ErrUseLastResponse
			}
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			return nil
		}))

	log := opts.Logger.With().Str("component", "scraper").Logger()

	breaker := gobreaker.NewCircuitBreaker[*resty.Response](gobreaker.Settings{
		Name:        "external-site",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("External site circuit breaker changed state")
			breakerState.Set(float64(to))
		},
	})

	return &Client{
		baseURL:  baseURL,
		http:     httpClient,
		breaker:  breaker,
		delay:    opts.PageDelay,
		maxPages: opts.MaxSchedulePages,
		sleep:    opts.Sleep,
		log:      log,
	}
}

// BaseURL returns the site root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// execute sends a request through the circuit breaker and records metrics.
// Transport errors and 5xx responses count against the breaker; the
// response is still returned for 5xx so callers can report the status.
func (c *Client) execute(endpoint string, send func() (*resty.Response, error)) (*resty.Response, error) {
	start := time.Now()
	resp, err := c.breaker.Execute(func() (*resty.Response, error) {
		resp, err := send()
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	})
	requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

	if errors.Is(err, errServerStatus) {
		err = nil
	}
	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	requestsTotal.WithLabelValues(endpoint, strconv.Itoa(resp.StatusCode())).Inc()
	return resp, nil
}

// get fetches path (or an absolute URL) with the session cookie header.
func (c *Client) get(ctx context.Context, endpoint, path, cookies string) (*resty.Response, error) {
	return c.execute(endpoint, func() (*resty.Response, error) {
		req := c.http.R().SetContext(ctx)
		if cookies != "" {
			req.SetHeader("Cookie", cookies)
		}
		return req.Get(path)
	})
}

// FetchError reports a non-OK response from the site.
type FetchError struct {
	// Resource is what was being fetched, e.g. "schedule" or "appointment".
	Resource   string
	ID         string
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("Failed to fetch %s %s: %d", e.Resource, e.ID, e.StatusCode)
	}
	return fmt.Sprintf("Failed to fetch %s: %d", e.Resource, e.StatusCode)
}

// ErrSessionExpired means the site answered with its login form.
var ErrSessionExpired = errors.New("Session expired. Re-authentication required.")

// Temporary reports whether a request that failed with err may succeed if
// sent again. An expired session and 4xx answers never do.
func Temporary(err error) bool {
	if err == nil || errors.Is(err, ErrSessionExpired) {
		return false
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return true
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.StatusCode >= http.StatusInternalServerError
	}
	var urlErr *url.Error
	var netErr net.Error
	return errors.As(err, &urlErr) || errors.As(err, &netErr)
}
