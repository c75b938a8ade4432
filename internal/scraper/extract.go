package scraper

import (
	"html"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Appointment is one entry of the external schedule listing.
type Appointment struct {
	ID        string `json:"id"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Timestamp string `json:"timestamp"`
}

// AppointmentDetails is the data scraped from one appointment page. Any field
// may be empty; Missing names the ones the page did not yield.
type AppointmentDetails struct {
	ExternalID        string
	SourceURL         string
	Title             string
	Timestamp         string
	ServiceType       string
	Status            string
	ScheduledCheckIn  string
	ScheduledCheckOut string
	CheckIn           *time.Time
	CheckOut          *time.Time
	PetName           string
	PetBreed          string
	ClientName        string
	ClientEmail       string
	ClientPhone       string
	Missing           []string
}

// HasStayDates reports whether both check-in and check-out were parsed.
func (d *AppointmentDetails) HasStayDates() bool {
	return d.CheckIn != nil && d.CheckOut != nil
}

var (
	scheduleLinkPattern   = regexp.MustCompile(`href="([^"]*/schedule/a/([^/"]+)/(\d+)[^"]*)"`)
	boardingTitlePattern  = regexp.MustCompile(`(?i)>([^<]*(?:Boarding|Overnight|Night)[^<]*)<`)
	appointmentURLPattern = regexp.MustCompile(`/schedule/a/([^/?#"]+)(?:/(\d+))?`)

	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

	checkInLabel  = regexp.MustCompile(`(?i)^\s*check[- ]?in(?:\s+(?:date|time))?\s*:?\s*`)
	checkOutLabel = regexp.MustCompile(`(?i)^\s*check[- ]?out(?:\s+(?:date|time))?\s*:?\s*`)

	// Inline fallbacks for labels that share a text node with their value.
	checkInInline  = regexp.MustCompile(`(?i)check[- ]?in[:\s]+([^<]+)`)
	checkOutInline = regexp.MustCompile(`(?i)check[- ]?out[:\s]+([^<]+)`)

	scriptCSRFPattern = regexp.MustCompile(`csrfToken['"]?\s*[:=]\s*['"]([^'"]+)`)

	whitespace = regexp.MustCompile(`\s+`)
)

// titleWindow is how far past a schedule link the title is looked for.
const titleWindow = 500

// boardingKeywords mark a schedule title as an overnight stay.
var boardingKeywords = []string{"boarding", "overnight", "night"}

// cleanText decodes HTML entities, collapses whitespace and trims.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func parseDocument(page string) *goquery.Document {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		// The html tokenizer only fails on reader errors; a strings.Reader has none.
		doc, _ = goquery.NewDocumentFromReader(strings.NewReader(""))
	}
	return doc
}

// resolveURL makes href absolute against baseURL.
func resolveURL(baseURL, href string) string {
	href = html.UnescapeString(href)
	base, err := url.Parse(baseURL)
	if err != nil {
		return baseURL + href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return baseURL + href
	}
	return base.ResolveReference(ref).String()
}

// ExtractCSRFToken returns the first CSRF token found on a login page: the
// hidden _token input, the hidden csrf_token input, the csrf-token meta tag,
// then an inline csrfToken script assignment. It returns "" when none exists.
func ExtractCSRFToken(page string) string {
	doc := parseDocument(page)

	selectors := []struct{ sel, attr string }{
		{`input[name="_token"]`, "value"},
		{`input[name="csrf_token"]`, "value"},
		{`meta[name="csrf-token"]`, "content"},
	}
	for _, s := range selectors {
		if v := strings.TrimSpace(doc.Find(s.sel).First().AttrOr(s.attr, "")); v != "" {
			return v
		}
	}

	if m := scriptCSRFPattern.FindStringSubmatch(page); m != nil {
		return m[1]
	}
	return ""
}

// ParseSchedulePage lists the appointments linked from a schedule page, in
// document order, one per appointment ID. The title is the first text that
// mentions boarding, overnight or night within a short window after the link,
// and the window never reaches past the next link to a different appointment.
// When an appointment is linked more than once, a later link can supply the
// title the first one lacked.
func ParseSchedulePage(page, baseURL string) []Appointment {
	var appointments []Appointment
	index := make(map[string]int)

	links := scheduleLinkPattern.FindAllStringSubmatchIndex(page, -1)
	for i, loc := range links {
		id := page[loc[4]:loc[5]]

		end := min(loc[1]+titleWindow, len(page))
		for _, next := range links[i+1:] {
			if page[next[4]:next[5]] != id {
				end = min(end, next[0])
				break
			}
		}
		var title string
		if m := boardingTitlePattern.FindStringSubmatch(page[loc[1]:end]); m != nil {
			title = cleanText(m[1])
		}

		if j, ok := index[id]; ok {
			if appointments[j].Title == "" {
				appointments[j].Title = title
			}
			continue
		}
		index[id] = len(appointments)

		appointments = append(appointments, Appointment{
			ID:        id,
			URL:       resolveURL(baseURL, page[loc[2]:loc[3]]),
			Title:     title,
			Timestamp: page[loc[6]:loc[7]],
		})
	}

	return appointments
}

// FilterBoardingAppointments keeps the appointments whose title names an
// overnight stay.
func FilterBoardingAppointments(appointments []Appointment) []Appointment {
	var out []Appointment
	for _, a := range appointments {
		title := strings.ToLower(a.Title)
		for _, kw := range boardingKeywords {
			if strings.Contains(title, kw) {
				out = append(out, a)
				break
			}
		}
	}
	return out
}

// ParsePagination finds the "next page" link of a schedule page.
func ParsePagination(page, baseURL string) (string, bool) {
	doc := parseDocument(page)

	for _, sel := range []string{`a[class*="next"][href]`, `a[rel="next"][href]`, `link[rel="next"][href]`} {
		href := strings.TrimSpace(doc.Find(sel).First().AttrOr("href", ""))
		if href == "" || href == "#" || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			continue
		}
		return resolveURL(baseURL, href), true
	}
	return "", false
}

// looksLikeLoginForm reports whether a page is the site's login form rather
// than the content that was asked for.
func looksLikeLoginForm(page string) bool {
	return parseDocument(page).Find(`input[type="password"]`).Length() > 0
}

// ParseAppointmentPage extracts appointment fields from a detail page.
func ParseAppointmentPage(page, sourceURL string) AppointmentDetails {
	doc := parseDocument(page)
	body := doc.Find("body")
	if body.Length() == 0 {
		body = doc.Selection
	}
	text := cleanText(body.Text())

	d := AppointmentDetails{SourceURL: sourceURL}
	if m := appointmentURLPattern.FindStringSubmatch(sourceURL); m != nil {
		d.ExternalID = m[1]
		d.Timestamp = m[2]
	}

	d.Title = cleanText(doc.Find("title").First().Text())
	d.ServiceType = firstText(doc, "h1", `[class*="service"]`)
	d.Status = firstText(doc, `[class*="status"]`)
	d.ClientName = firstText(doc, `[class*="client"][class*="name"]`, `[class*="owner"][class*="name"]`)
	d.PetName = firstText(doc, `[class*="pet"][class*="name"]`, `[class*="dog"][class*="name"]`)
	d.PetBreed = firstText(doc, `[class*="breed"]`)

	d.ClientEmail = emailPattern.FindString(page)
	d.ClientPhone = strings.TrimSpace(phonePattern.FindString(text))

	d.ScheduledCheckIn = labeledValue(doc, checkInLabel)
	if d.ScheduledCheckIn == "" {
		d.ScheduledCheckIn = inlineValue(page, checkInInline)
	}
	d.ScheduledCheckOut = labeledValue(doc, checkOutLabel)
	if d.ScheduledCheckOut == "" {
		d.ScheduledCheckOut = inlineValue(page, checkOutInline)
	}
	d.CheckIn = ParseCheckDate(d.ScheduledCheckIn)
	d.CheckOut = ParseCheckDate(d.ScheduledCheckOut)

	for _, f := range []struct {
		name  string
		value string
	}{
		{"service_type", d.ServiceType},
		{"status", d.Status},
		{"check_in", d.ScheduledCheckIn},
		{"check_out", d.ScheduledCheckOut},
		{"pet_name", d.PetName},
		{"pet_breed", d.PetBreed},
		{"client_name", d.ClientName},
		{"client_email", d.ClientEmail},
		{"client_phone", d.ClientPhone},
	} {
		if f.value == "" {
			d.Missing = append(d.Missing, f.name)
		}
	}
	if d.CheckIn == nil && d.ScheduledCheckIn != "" {
		d.Missing = append(d.Missing, "check_in_datetime")
	}
	if d.CheckOut == nil && d.ScheduledCheckOut != "" {
		d.Missing = append(d.Missing, "check_out_datetime")
	}

	return d
}

// firstText returns the cleaned text of the first non-empty element matching
// any selector, trying selectors in order.
func firstText(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			found = cleanText(s.Text())
			return found == ""
		})
		if found != "" {
			return found
		}
	}
	return ""
}

// ownText is the text of an element's direct text children.
func ownText(s *goquery.Selection) string {
	return s.Contents().FilterFunction(func(_ int, c *goquery.Selection) bool {
		return goquery.NodeName(c) == "#text"
	}).Text()
}

// labeledValue finds an element whose own text starts with label and returns
// the value next to it: the rest of the element's text, or else the first
// non-empty sibling that follows the label element.
func labeledValue(doc *goquery.Document, label *regexp.Regexp) string {
	var value string
	doc.Find("body *").Not("script, style").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !label.MatchString(ownText(s)) {
			return true
		}
		full := s.Text()
		if loc := label.FindStringIndex(full); loc != nil {
			if rest := cleanText(full[loc[1]:]); rest != "" {
				value = rest
				return false
			}
		}
		for n := s.Nodes[0].NextSibling; n != nil; n = n.NextSibling {
			if v := cleanText(goquery.NewDocumentFromNode(n).Text()); v != "" {
				value = v
				return false
			}
		}
		return true
	})
	return value
}

func inlineValue(page string, pattern *regexp.Regexp) string {
	if m := pattern.FindStringSubmatch(page); m != nil {
		return cleanText(m[1])
	}
	return ""
}
