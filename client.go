package netatmo

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the Netatmo API base URL.
	DefaultBaseURL = "https://api.netatmo.com/"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultUserAgent identifies this library to the API.
	DefaultUserAgent = "netatmo-api-go"
)

// Response is the classified result of an authenticated API call.
// Body always holds the raw bytes. Data holds the decoded JSON object when
// the response declared a JSON content type; for any other content type
// (camera snapshots, vod playlists) Data is nil and Body is the payload.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
	Data        map[string]any
}

// IsJSON reports whether the response declared a JSON content type.
func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType, "application/json")
}

// Client is a Netatmo API client using a static access token, for callers
// that obtained a token out of band (e.g. from the developer portal).
// Use TokenManager for clients that should refresh tokens automatically.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *slog.Logger

	// tokenUpdater is consumed by TokenManager; it has no effect on a
	// static-token client, which never refreshes.
	tokenUpdater TokenUpdater

	// tokenMu guards token, which TokenManager rewrites on refresh while
	// other calls may be reading it.
	tokenMu sync.RWMutex
	token   string

	callsMu    sync.Mutex
	calls      int64
	callsStart time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL sets a custom base URL for the API.
// Token and authorization endpoints derive from it as well.
func WithBaseURL(url string) Option {
	return func(c *Client) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the HTTP request timeout.
// This option can be applied in any order relative to other options.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = &http.Client{}
		}
		c.httpClient.Timeout = timeout
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// newBaseClient builds a client with defaults applied, no token attached.
func newBaseClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   DefaultBaseURL,
		userAgent: DefaultUserAgent,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DisableKeepAlives:   false,
			},
		},
		callsStart: time.Now(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// NewClient creates a new Netatmo API client with a static access token.
// Returns ErrEmptyToken if accessToken is empty.
func NewClient(accessToken string, opts ...Option) (*Client, error) {
	if accessToken == "" {
		return nil, ErrEmptyToken
	}

	c := newBaseClient(opts...)
	c.token = accessToken
	return c, nil
}

// AuthorizedPost issues an authenticated POST to an API endpoint and returns
// the classified response. The endpoint is a bare API name ("getstationsdata")
// resolved against the base URL, or a full URL when it contains a scheme.
// Parameters are form-encoded with the access token attached.
func (c *Client) AuthorizedPost(ctx context.Context, endpoint string, params url.Values) (*Response, error) {
	return c.authorizedPost(ctx, endpoint, params, c.Token())
}

// authorizedPost attaches the given token and performs the call.
// TokenManager funnels through here after its expiry check.
func (c *Client) authorizedPost(ctx context.Context, endpoint string, params url.Values, token string) (*Response, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", token)

	target := c.apiURL(endpoint)
	c.countCall(endpoint)

	start := time.Now()
	resp, err := c.post(ctx, target, form)
	if err != nil {
		c.LogResponse(ctx, http.MethodPost, endpoint, statusCode(err), time.Since(start), err)
		return nil, err
	}
	c.LogResponse(ctx, http.MethodPost, endpoint, resp.StatusCode, time.Since(start), nil)

	return resp, nil
}

// post performs a form-encoded POST and classifies the response body by
// declared content type.
func (c *Client) post(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, &APIError{StatusCode: 0, Message: "failed to create request: " + err.Error()}
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded;charset=utf-8")
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: "failed to read response body: " + err.Error()}
	}

	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.LogAttrs(ctx, slog.LevelError, "api_error_status",
				slog.Int("status", resp.StatusCode),
				slog.String("url", rawURL),
			)
		}
		return nil, c.handleError(resp.StatusCode, body)
	}

	return c.classify(ctx, resp, body), nil
}

// classify builds a Response, decoding JSON bodies into Data. A body that
// fails to decode despite a JSON content type is logged and left as raw
// bytes only, so callers see "no data" rather than a hard failure.
func (c *Client) classify(ctx context.Context, resp *http.Response, body []byte) *Response {
	r := &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}

	if !r.IsJSON() {
		return r
	}

	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		if c.logger != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "invalid_json_response",
				slog.String("error", err.Error()),
				slog.String("body", truncatePreview(body)),
			)
		}
		return r
	}
	r.Data = data

	return r
}

// handleError converts HTTP error responses to an APIError, extracting the
// message from the API's error envelope when present.
func (c *Client) handleError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &APIError{
			StatusCode: statusCode,
			Message:    errResp.Error.Message,
			Body:       body,
		}
	}
	return &APIError{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(truncatePreview(body)),
		Body:       body,
	}
}

// countCall increments the naive API call counter and logs the running rate.
// Counting is the only rate-limit handling performed; nothing throttles.
func (c *Client) countCall(endpoint string) {
	c.callsMu.Lock()
	c.calls++
	count := c.calls
	elapsed := time.Since(c.callsStart)
	c.callsMu.Unlock()

	if c.logger != nil {
		c.logger.LogAttrs(context.Background(), slog.LevelDebug, "api_call",
			slog.String("endpoint", endpoint),
			slog.Int64("count", count),
			slog.Float64("per_minute", perMinute(count, elapsed)),
		)
	}
}

// APICallCount returns the number of API calls issued by this client and the
// observed calls-per-minute rate since the client was created.
func (c *Client) APICallCount() (int64, float64) {
	c.callsMu.Lock()
	defer c.callsMu.Unlock()
	return c.calls, perMinute(c.calls, time.Since(c.callsStart))
}

// perMinute computes the rounded-up calls-per-minute rate over whole elapsed
// minutes, matching the counter's diagnostic intent rather than a precise
// sliding window.
func perMinute(count int64, elapsed time.Duration) float64 {
	minutes := math.Ceil(elapsed.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return math.Ceil(float64(count) / minutes)
}

// apiURL resolves an endpoint name against the base URL. Absolute URLs pass
// through untouched so callers can post to URLs returned by the API itself.
func (c *Client) apiURL(endpoint string) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	return strings.TrimSuffix(c.baseURL, "/") + "/api/" + strings.TrimPrefix(endpoint, "/")
}

// tokenURL returns the OAuth token endpoint derived from the base URL.
func (c *Client) tokenURL() string {
	return strings.TrimSuffix(c.baseURL, "/") + "/oauth2/token"
}

// authorizeURL returns the OAuth consent endpoint derived from the base URL.
func (c *Client) authorizeURL() string {
	return strings.TrimSuffix(c.baseURL, "/") + "/oauth2/authorize"
}

// SetToken updates the client's access token.
func (c *Client) SetToken(token string) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	c.token = token
}

// Token returns the current access token.
func (c *Client) Token() string {
	c.tokenMu.RLock()
	defer c.tokenMu.RUnlock()
	return c.token
}

// statusCode extracts the HTTP status from an APIError, or 0.
func statusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
