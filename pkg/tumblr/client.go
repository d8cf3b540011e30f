package tumblr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dghubble/oauth1"
	apierrors "tagfinder/pkg/errors"
	"tagfinder/pkg/logger"
	"tagfinder/pkg/ratelimit"
)

// Credentials is the OAuth 1.0a consumer and token pair
type Credentials struct {
	ConsumerKey    string
	ConsumerSecret string
	Token          string
	TokenSecret    string
}

// Client is a typed, OAuth1-signed Tumblr API v2 client. It never retries;
// every failure comes back as an *errors.Error.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	limiter    ratelimit.Limiter
	logger     logger.Logger
}

// Option customizes a Client
type Option func(*clientOptions)

type clientOptions struct {
	baseURL   string
	userAgent string
	transport *http.Client
	limiter   ratelimit.Limiter
}

// WithBaseURL points the client at another API host, e.g. a test server
func WithBaseURL(u string) Option {
	return func(o *clientOptions) { o.baseURL = u }
}

// WithHTTPClient sets the client underneath the OAuth1 signer
func WithHTTPClient(c *http.Client) Option {
	return func(o *clientOptions) { o.transport = c }
}

// WithLimiter waits on l before every request
func WithLimiter(l ratelimit.Limiter) Option {
	return func(o *clientOptions) { o.limiter = l }
}

func WithUserAgent(ua string) Option {
	return func(o *clientOptions) { o.userAgent = ua }
}

// NewClient creates a client that signs every request with creds
func NewClient(creds Credentials, timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	o := clientOptions{baseURL: BaseURL, userAgent: "tagfinder/1.0"}
	for _, opt := range opts {
		opt(&o)
	}

	ctx := context.Background()
	if o.transport != nil {
		ctx = context.WithValue(ctx, oauth1.HTTPClient, o.transport)
	}
	cfg := oauth1.NewConfig(creds.ConsumerKey, creds.ConsumerSecret)
	httpClient := cfg.Client(ctx, oauth1.NewToken(creds.Token, creds.TokenSecret))
	httpClient.Timeout = timeout

	return &Client{
		httpClient: httpClient,
		baseURL:    o.baseURL,
		apiKey:     creds.ConsumerKey,
		userAgent:  o.userAgent,
		limiter:    o.limiter,
		logger:     log.WithField("component", "tumblr"),
	}
}

// Tagged returns up to limit posts for tag published before the given unix
// timestamp. Posts are returned as-is; callers validate them.
func (c *Client) Tagged(ctx context.Context, tag string, before int64, limit int) ([]Post, error) {
	var posts []Post
	if err := c.getJSON(ctx, TaggedURL(c.baseURL, tag, before, limit, c.apiKey), &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// BlogInfo fetches a blog's profile
func (c *Client) BlogInfo(ctx context.Context, blog string) (*BlogInfo, error) {
	var resp struct {
		Blog BlogInfo `json:"blog"`
	}
	if err := c.getJSON(ctx, BlogInfoURL(c.baseURL, blog, c.apiKey), &resp); err != nil {
		return nil, err
	}
	if err := resp.Blog.Validate(); err != nil {
		c.logger.WarnWithFields("malformed blog info", map[string]interface{}{"blog": blog})
		return nil, err
	}
	return &resp.Blog, nil
}

// envelope is the wrapper every v2 response comes in
type envelope struct {
	Meta struct {
		Status int    `json:"status"`
		Msg    string `json:"msg"`
	} `json:"meta"`
	Response json.RawMessage `json:"response"`
	Errors   []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	} `json:"errors"`
}

func (e envelope) message() string {
	if len(e.Errors) > 0 && e.Errors[0].Detail != "" {
		return e.Errors[0].Detail
	}
	return e.Meta.Msg
}

func (c *Client) doRequest(ctx context.Context, u string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, apierrors.New(apierrors.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"path":     req.URL.Path,
			"error":    err.Error(),
			"duration": time.Since(start),
		})
		return nil, apierrors.New(apierrors.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	logger.LogRequest(c.logger, req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	return resp, nil
}

// getJSON fetches u and decodes the envelope's response member into target
func (c *Client) getJSON(ctx context.Context, u string, target interface{}) error {
	resp, err := c.doRequest(ctx, u)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return apierrors.New(apierrors.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	var env envelope
	parseErr := json.Unmarshal(body, &env)

	if err := c.checkResponseStatus(resp, env); err != nil {
		return err
	}

	if parseErr != nil {
		preview := string(body)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"path":         resp.Request.URL.Path,
			"status":       resp.StatusCode,
			"error":        parseErr.Error(),
			"body_preview": preview,
		})
		return apierrors.New(apierrors.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", parseErr)
	}

	if len(env.Response) == 0 || string(env.Response) == "null" {
		return apierrors.New(apierrors.ErrorTypeMalformed, resp.StatusCode, "response envelope has no response member")
	}
	if err := json.Unmarshal(env.Response, target); err != nil {
		return apierrors.New(apierrors.ErrorTypeParsing, resp.StatusCode, "failed to decode response: %v", err)
	}
	return nil
}

// checkResponseStatus maps the HTTP status, and the envelope's meta status
// when the transport reports success, onto the error taxonomy
func (c *Client) checkResponseStatus(resp *http.Response, env envelope) error {
	status := resp.StatusCode
	if status < 400 && env.Meta.Status >= 400 {
		status = env.Meta.Status
	}
	if status < 400 {
		return nil
	}

	msg := env.message()
	if msg == "" {
		msg = http.StatusText(status)
	}

	errType := apierrors.TypeForStatus(status)
	fields := map[string]interface{}{
		"status":    status,
		"path":      resp.Request.URL.Path,
		"retryable": apierrors.IsRetryable(errType),
	}
	if errType == apierrors.ErrorTypeServerError {
		c.logger.ErrorWithFields(fmt.Sprintf("tumblr API %s", errType), fields)
	} else {
		c.logger.WarnWithFields(fmt.Sprintf("tumblr API %s", errType), fields)
	}

	return apierrors.New(errType, status, "%s", msg)
}
