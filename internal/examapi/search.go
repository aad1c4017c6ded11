package examapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	appLog "cthexam/internal/log"
	"cthexam/internal/model"
)

// DefaultEndpoint is Chalmers' public list API.
const DefaultEndpoint = "https://www.chalmers.se/api/list/"

// alwaysShowInst is the institution id whose exams are listed even when
// their date has passed.
const alwaysShowInst = "1"

// StatusError is returned when the API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("received error from API (code %d): %s", e.StatusCode, e.Body)
}

// Client searches the exam schedule. It holds no state between calls.
type Client struct {
	endpoint string
	client   *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// NewClient creates a Client for endpoint, or DefaultEndpoint when empty.
//
// The client sets no timeout of its own; bound calls through ctx.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint: endpoint,
		client:   http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search returns the exams matching query in upstream order.
//
// If any result's course code equals query (case-insensitively), only
// those results are returned, so a course-code query is not diluted by
// fuzzy matches.
func (c *Client) Search(ctx context.Context, query string) ([]model.Exam, error) {
	reqURL, err := c.requestURL(query)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	appLog.Debug("exam search start", "query", query, "endpoint", c.endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("examapi: request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("examapi: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("examapi: decode body: %w", err)
	}

	parsed, err := Validate(data)
	if err != nil {
		// Callers log the failure; keep only the issue count here.
		var verr *ValidationError
		if errors.As(err, &verr) {
			appLog.Debug("exam search response invalid", "query", query, "issues", len(verr.Issues))
		}
		return nil, err
	}

	raws := preferExactMatches(parsed.Results, query)
	exams := make([]model.Exam, 0, len(raws))
	for _, raw := range raws {
		exams = append(exams, ParseExam(raw))
	}

	appLog.Debug("exam search done", "query", query, "results", len(parsed.Results), "returned", len(exams))
	return exams, nil
}

func (c *Client) requestURL(query string) (string, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("examapi: endpoint: %w", err)
	}
	payload, err := json.Marshal(newSearchVariables(query))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("variables", string(payload))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func preferExactMatches(results []RawExam, query string) []RawExam {
	exact := make([]RawExam, 0)
	for _, r := range results {
		if strings.EqualFold(r.Code, query) {
			exact = append(exact, r)
		}
	}
	if len(exact) > 0 {
		return exact
	}
	return results
}

// searchVariables is the "variables" query parameter. Apart from Search,
// every value is fixed and required as-is by the API.
type searchVariables struct {
	Filter    searchFilter `json:"filter"`
	Search    string       `json:"search"`
	Sort      []any        `json:"sort"`
	Indexes   string       `json:"indexes"`
	Language  string       `json:"language"`
	Context   string       `json:"context"`
	Highlight bool         `json:"highlight"`
	GroupBy   string       `json:"groupBy"`
	URL       []string     `json:"url"`
}

type searchFilter struct {
	And []filterClause `json:"_and"`
}

type filterClause struct {
	Or []map[string]map[string]string `json:"_or"`
}

func newSearchVariables(query string) searchVariables {
	return searchVariables{
		Filter: searchFilter{
			And: []filterClause{
				{Or: []map[string]map[string]string{
					{"exDate": {"_gte": "now/d"}},
					{"inst": {"_eq": alwaysShowInst}},
				}},
				{Or: []map[string]map[string]string{}},
			},
		},
		Search:    query,
		Sort:      []any{},
		Indexes:   "PewExamdates",
		Language:  "sv",
		Context:   "Tentamen",
		Highlight: false,
		GroupBy:   "collapse",
		URL: []string{
			"utbildning",
			"dina-studier",
			"tentamen-och-ovrig-examination",
			"sok-tentamensdatum",
		},
	}
}
