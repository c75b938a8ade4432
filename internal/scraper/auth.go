package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

// AuthResult is the outcome of a login attempt. On success Cookies holds the
// merged Cookie header for later requests; on failure Error says why and Err,
// when set, is the underlying transport or status error.
type AuthResult struct {
	Success bool
	Cookies string
	Error   string
	Err     error
}

func authFailure(cause error, format string, args ...any) AuthResult {
	return AuthResult{Error: fmt.Sprintf(format, args...), Err: cause}
}

// Authenticate logs in to the site with a form post. It never returns a Go
// error: every failure, including transport errors, is reported in the result.
func (c *Client) Authenticate(ctx context.Context, username, password string) AuthResult {
	if username == "" || password == "" {
		return authFailure(nil, "Username and password are required")
	}

	page, err := c.get(ctx, "login_page", "/login", "")
	if err != nil {
		return authFailure(err, "Authentication error: %s", err.Error())
	}
	if !page.IsSuccess() {
		return authFailure(&FetchError{Resource: "login page", StatusCode: page.StatusCode()},
			"Failed to load login page: %d", page.StatusCode())
	}

	pageCookies := page.Header().Values("Set-Cookie")
	form := map[string]string{
		"username": username,
		"password": password,
	}
	if token := ExtractCSRFToken(page.String()); token != "" {
		form["_token"] = token
		form["csrf_token"] = token
	} else {
		c.log.Debug().Msg("No CSRF token on login page")
	}

	resp, err := c.execute("login", func() (*resty.Response, error) {
		req := c.http.R().
			SetContext(withoutRedirects(ctx)).
			SetFormData(form)
		if cookies := MergeCookies(pageCookies...); cookies != "" {
			req.SetHeader("Cookie", cookies)
		}
		return req.Post("/login")
	})
	if err != nil {
		return authFailure(err, "Authentication error: %s", err.Error())
	}

	status := resp.StatusCode()
	if (status >= 300 && status < 400) || resp.IsSuccess() {
		cookies := append(append([]string{}, pageCookies...), resp.Header().Values("Set-Cookie")...)
		return AuthResult{Success: true, Cookies: MergeCookies(cookies...)}
	}

	body := resp.String()
	if strings.Contains(body, "invalid") || strings.Contains(body, "incorrect") {
		return authFailure(nil, "Invalid credentials")
	}
	return authFailure(&FetchError{Resource: "login", StatusCode: status}, "Login failed with status %d", status)
}
