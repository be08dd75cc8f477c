package botapi

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/planetary-social/planetary-cli/internal/feed"
	"github.com/planetary-social/planetary-cli/internal/ssb"
)

// APIError is a non-200 response from the bot API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("bot api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("bot api returned status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// Temporary reports whether retrying the request may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

type Client struct {
	http *resty.Client
}

type ClientOption func(*resty.Client)

func WithTimeout(d time.Duration) ClientOption {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// WithRetries retries rate limited and 5xx responses up to n times.
func WithRetries(n int, wait time.Duration) ClientOption {
	return func(c *resty.Client) {
		c.SetRetryCount(n).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(4 * wait).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if err != nil || resp == nil {
					return false
				}
				code := resp.StatusCode()
				return code == http.StatusTooManyRequests || code >= 500
			})
	}
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(10*time.Second).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// Feed fetches one page from the server. It implements feed.Store.
func (c *Client) Feed(ctx context.Context, s feed.Strategy, limit, offset int) ([]ssb.Message, error) {
	if limit < 1 || limit > MaxLimit {
		return nil, fmt.Errorf("page limit %d out of range [1, %d]", limit, MaxLimit)
	}
	params := map[string]string{
		"strategy": string(s.Kind),
		"limit":    strconv.Itoa(limit),
		"offset":   strconv.Itoa(offset),
	}
	if s.Identity != "" {
		params["identity"] = string(s.Identity)
	}
	if s.Seed != 0 {
		params["seed"] = strconv.FormatInt(s.Seed, 10)
	}
	if s.Root != "" {
		params["root"] = string(s.Root)
	}
	if s.Hashtag != "" {
		params["hashtag"] = s.Hashtag
	}

	var out FeedResponse
	var apiErr ErrorBody
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&out).
		SetError(&apiErr).
		Get("/v1/feed")
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode(), Code: apiErr.Code, Message: apiErr.Message}
	}
	return out.Messages, nil
}

// Health checks that the server is up and its store is usable.
func (c *Client) Health(ctx context.Context) error {
	var apiErr ErrorBody
	resp, err := c.http.R().SetContext(ctx).SetError(&apiErr).Get("/v1/healthz")
	if err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode(), Code: apiErr.Code, Message: apiErr.Message}
	}
	return nil
}

var _ feed.Store = (*Client)(nil)
