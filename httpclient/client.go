package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Redirect modes, matching the fetch RequestInit values.
const (
	RedirectModeFollow = "follow"
	RedirectModeManual = "manual"
	RedirectModeError  = "error"
)

// DefaultMaxRedirects is the redirect limit applied in follow mode.
const DefaultMaxRedirects = 20

// Config holds client settings.
type Config struct {
	Timeout      time.Duration
	Retries      int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RateLimit is the sustained fetch rate per second; <= 0 disables it.
	RateLimit    float64
	Burst        int
	FailOnStatus bool
	MaxRedirects int
	UserAgent    string
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		MaxRedirects: DefaultMaxRedirects,
		UserAgent:    "edge-runtime/1.0",
	}
}

// Request is one outbound fetch.
type Request struct {
	Method   string
	URL      string
	Header   http.Header
	Body     []byte
	Redirect string
}

// Response is a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Client executes fetches. It is safe for concurrent use.
type Client struct {
	resty        *resty.Client
	limiter      *rate.Limiter
	failOnStatus bool
	maxRedirects int
	logger       *zap.Logger
}

type redirectModeKey struct{}

// New creates a client. A nil logger disables logging.
func New(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}

	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.Retries
	retry.RetryWaitMin = cfg.RetryWaitMin
	retry.RetryWaitMax = cfg.RetryWaitMax
	retry.CheckRetry = retryTransportErrors
	retry.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retry.Logger = leveledLogger{s: logger.Named("retry").Sugar()}
	// Redirects are decided by the outer client.
	retry.HTTPClient.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	c := &Client{
		limiter:      rate.NewLimiter(rate.Inf, 0),
		failOnStatus: cfg.FailOnStatus,
		maxRedirects: cfg.MaxRedirects,
		logger:       logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = max(1, int(cfg.RateLimit))
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	c.resty = resty.NewWithClient(retry.StandardClient()).
		SetLogger(logger.Named("resty").Sugar()).
		SetTimeout(cfg.Timeout).
		SetDoNotParseResponse(true).
		SetAllowGetMethodPayload(true).
		SetRedirectPolicy(resty.RedirectPolicyFunc(c.checkRedirect))
	if cfg.UserAgent != "" {
		c.resty.SetHeader("User-Agent", cfg.UserAgent)
	}
	return c
}

// retryTransportErrors retries connection failures only; any response,
// whatever its status, is final.
func retryTransportErrors(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err == nil {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	mode, _ := req.Context().Value(redirectModeKey{}).(string)
	origin := ""
	if len(via) > 0 {
		origin = via[0].URL.String()
	}
	switch mode {
	case RedirectModeManual:
		return http.ErrUseLastResponse
	case RedirectModeError:
		return &RedirectError{URL: origin, Location: req.URL.String(), Reason: "redirect mode is error"}
	}
	if len(via) > c.maxRedirects {
		return &RedirectError{URL: origin, Location: req.URL.String(), Reason: "too many redirects"}
	}
	return nil
}

// Do executes req and reads the whole response body.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method, err := validate(&req)
	if err != nil {
		return nil, err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &RateLimitError{Err: err}
	}

	ctx = context.WithValue(ctx, redirectModeKey{}, req.Redirect)
	r := c.resty.R().SetContext(ctx)
	if len(req.Header) > 0 {
		r.SetHeaderMultiValues(req.Header)
	}
	if req.Body != nil {
		r.SetBody(req.Body)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	if err != nil {
		c.logger.Debug("fetch failed",
			zap.String("method", method),
			zap.String("url", req.URL),
			zap.Error(err))
		return nil, err
	}

	raw := resp.RawBody()
	defer raw.Close()
	body, err := io.ReadAll(raw)
	if err != nil {
		return nil, &BodyError{Err: err}
	}

	out := &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   body,
	}
	c.logger.Debug("fetch",
		zap.String("method", method),
		zap.String("url", req.URL),
		zap.Int("status", out.Status),
		zap.Int("bytes", len(body)),
		zap.Duration("took", time.Since(start)))

	if c.failOnStatus && (out.Status < 200 || out.Status > 299) {
		return out, &StatusError{Code: out.Status, URL: req.URL}
	}
	return out, nil
}

func validate(req *Request) (string, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	u, err := url.Parse(req.URL)
	if err != nil {
		return "", &InvalidRequestError{Reason: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", &InvalidRequestError{Reason: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}
	if u.Host == "" {
		return "", &InvalidRequestError{Reason: "missing host in " + req.URL}
	}
	switch req.Redirect {
	case "", RedirectModeFollow, RedirectModeManual, RedirectModeError:
	default:
		return "", &InvalidRequestError{Reason: "unknown redirect mode " + req.Redirect}
	}
	return method, nil
}
