// Package postgrest is the Supabase persistence gateway. It stores the same
// tables as the SQLite repositories through the PostgREST HTTP interface.
package postgrest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned by updates that matched no row.
var ErrNotFound = errors.New("record not found")

// Prefer header values.
const (
	preferRepresentation = "return=representation"
	preferMergeUpsert    = "resolution=merge-duplicates,return=minimal"
)

// APIError is an error body returned by PostgREST.
type APIError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("supabase error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("supabase error %d (%s): %s", e.Status, e.Code, e.Message)
}

// Options configures a Client.
type Options struct {
	// URL is the Supabase project URL; /rest/v1 is appended.
	URL     string
	Key     string
	Timeout time.Duration
	Logger  zerolog.Logger
}

// Client issues PostgREST requests with the project key.
type Client struct {
	http *resty.Client
	log  zerolog.Logger
	now  func() time.Time
}

// NewClient creates a client for the project at opts.URL.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(opts.URL, "/")+"/rest/v1").
		SetHeader("apikey", opts.Key).
		SetAuthToken(opts.Key).
		SetHeader("Accept", "application/json").
		SetTimeout(opts.Timeout)
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal

	return &Client{
		http: httpClient,
		log:  opts.Logger.With().Str("component", "postgrest").Logger(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// request describes one call against a table.
type request struct {
	method string
	table  string
	query  url.Values
	body   any
	prefer string
}

func (c *Client) do(ctx context.Context, r request, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(r.query) > 0 {
		req.SetQueryParamsFromValues(r.query)
	}
	if r.body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(r.body)
	}
	if r.prefer != "" {
		req.SetHeader("Prefer", r.prefer)
	}

	resp, err := req.Execute(r.method, "/"+r.table)
	if err != nil {
		return fmt.Errorf("supabase %s %s: %w", r.method, r.table, err)
	}
	if resp.IsError() {
		return decodeError(resp)
	}

	if out == nil || len(resp.Body()) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decoding %s response: %w", r.table, err)
	}
	return nil
}

func decodeError(resp *resty.Response) error {
	apiErr := &APIError{Status: resp.StatusCode()}
	if err := json.Unmarshal(resp.Body(), apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode())
	}
	return apiErr
}

// first returns the first element of rows, or nil.
func first[T any](rows []T) *T {
	if len(rows) == 0 {
		return nil
	}
	return &rows[0]
}

func selectAll(extra ...string) url.Values {
	q := url.Values{"select": {"*"}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Add(extra[i], extra[i+1])
	}
	return q
}

func eq(v string) string {
	return "eq." + v
}

// ilikeExact matches v case-insensitively with no wildcards.
func ilikeExact(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "ilike." + r.Replace(v)
}

func newID() string {
	return uuid.NewString()
}

// Healthy reports whether the project answers a trivial query.
func (c *Client) Healthy(ctx context.Context) bool {
	err := c.do(ctx, request{
		method: http.MethodGet,
		table:  settingsTable,
		query:  url.Values{"select": {"id"}, "limit": {"1"}},
	}, nil)
	if err != nil {
		c.log.Debug().Err(err).Msg("Supabase health check failed")
		return false
	}
	return true
}

// Repositories bundles one gateway per table over a shared client.
type Repositories struct {
	client *Client

	Dogs       *DogTable
	Boardings  *BoardingTable
	SyncLogs   *SyncLogTable
	Settings   *SettingsTable
	CronHealth *CronHealthTable
}

// NewRepositories creates every table gateway over c.
func NewRepositories(c *Client) *Repositories {
	return &Repositories{
		client:     c,
		Dogs:       &DogTable{c: c},
		Boardings:  &BoardingTable{c: c},
		SyncLogs:   &SyncLogTable{c: c},
		Settings:   &SettingsTable{c: c},
		CronHealth: &CronHealthTable{c: c},
	}
}

// Client returns the shared client.
func (r *Repositories) Client() *Client {
	return r.client
}
