package scraper

import (
	"context"
	"net/url"
	"strings"
)

// FetchSchedule reads the schedule listing, following "next page" links up
// to the configured page limit, and returns every appointment found in
// discovery order with duplicates removed.
func (c *Client) FetchSchedule(ctx context.Context, cookies string) ([]Appointment, error) {
	var all []Appointment
	seenIDs := make(map[string]bool)
	visited := make(map[string]bool)
	next := c.baseURL + "/schedule"

	for page := 1; page <= c.maxPages; page++ {
		if page > 1 {
			if err := c.sleep(ctx, c.delay); err != nil {
				return nil, err
			}
		}
		visited[next] = true

		resp, err := c.get(ctx, "schedule", next, cookies)
		if err != nil {
			return nil, err
		}
		if !resp.IsSuccess() {
			return nil, &FetchError{Resource: "schedule", StatusCode: resp.StatusCode()}
		}
		body := resp.String()
		if looksLikeLoginForm(body) {
			return nil, ErrSessionExpired
		}

		found := ParseSchedulePage(body, c.baseURL)
		for _, a := range found {
			if !seenIDs[a.ID] {
				seenIDs[a.ID] = true
				all = append(all, a)
			}
		}
		c.log.Debug().Int("page", page).Int("appointments", len(found)).Msg("Schedule page parsed")

		nextURL, ok := ParsePagination(body, c.baseURL)
		if !ok || visited[nextURL] {
			break
		}
		next = nextURL
	}

	return all, nil
}

// AppointmentPath is the site path of an appointment's detail page.
func AppointmentPath(id, timestamp string) string {
	p := "/schedule/a/" + url.PathEscape(id)
	if timestamp != "" {
		p += "/" + url.PathEscape(timestamp)
	}
	return p
}

// FetchAppointmentDetails downloads and parses one appointment page.
func (c *Client) FetchAppointmentDetails(ctx context.Context, id, timestamp, cookies string) (*AppointmentDetails, error) {
	path := AppointmentPath(id, timestamp)

	resp, err := c.get(ctx, "appointment", path, cookies)
	if err != nil {
		return nil, err
	}
	if !resp.IsSuccess() {
		return nil, &FetchError{Resource: "appointment", ID: id, StatusCode: resp.StatusCode()}
	}

	// Case-sensitive: the login form is lower case, menu labels are not.
	body := resp.String()
	if strings.Contains(body, "login") && strings.Contains(body, "password") {
		return nil, ErrSessionExpired
	}

	details := ParseAppointmentPage(body, c.baseURL+path)
	details.ExternalID = id
	details.Timestamp = timestamp
	if len(details.Missing) > 0 {
		c.log.Debug().Str("external_id", id).Strs("missing", details.Missing).Msg("Appointment page partially parsed")
	}
	return &details, nil
}
