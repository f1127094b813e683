// Package client talks to the marketplace backend that serves assessments
// for taking and scores submissions.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SAP-F-2025/assessment-runner/internal/models"
	"golang.org/x/oauth2"
)

// ErrNotFound is returned when the backend answers 404 or an empty assessment.
var ErrNotFound = errors.New("not found")

// HTTPError reports a non-2xx backend response.
type HTTPError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

type Config struct {
	BaseURL string
	// Token is sent as a bearer token on every request when set.
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", cfg.BaseURL)
	}

	h := &http.Client{}
	if cfg.Token != "" {
		h = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Token,
			TokenType:   "Bearer",
		}))
	}
	if cfg.Timeout > 0 {
		h.Timeout = cfg.Timeout
	}

	return &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    h,
	}, nil
}

type takeResponse struct {
	Assessment *models.Assessment `json:"assessment"`
}

type submitResponse struct {
	Result json.RawMessage `json:"result"`
}

// TakeAssessment fetches GET /assessments/{id}/take.
func (c *Client) TakeAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	var out takeResponse
	if err := c.do(ctx, "take assessment", http.MethodGet, c.assessmentURL(id, "take"), nil, &out); err != nil {
		return nil, err
	}
	if out.Assessment == nil {
		return nil, fmt.Errorf("take assessment %s: %w", id, ErrNotFound)
	}
	return out.Assessment, nil
}

// SubmitAssessment posts answers and elapsed time to
// POST /assessments/{id}/submit and returns the scoring payload untouched.
func (c *Client) SubmitAssessment(ctx context.Context, id string, submission *models.Submission) (json.RawMessage, error) {
	body, err := json.Marshal(submission)
	if err != nil {
		return nil, fmt.Errorf("encode submission: %w", err)
	}

	var out submitResponse
	if err := c.do(ctx, "submit assessment", http.MethodPost, c.assessmentURL(id, "submit"), body, &out); err != nil {
		return nil, err
	}
	return out.Result, nil
}

func (c *Client) assessmentURL(id, action string) string {
	return c.baseURL + "/assessments/" + url.PathEscape(id) + "/" + action
}

func (c *Client) do(ctx context.Context, op, method, target string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	if res.StatusCode/100 != 2 {
		return &HTTPError{Op: op, StatusCode: res.StatusCode, Message: errorMessage(res.Body)}
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// errorMessage extracts {"message": "..."} or {"error": "..."} from an error body.
func errorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 4<<10))
	if err != nil || len(data) == 0 {
		return ""
	}
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(data, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	return ""
}
