package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"

	"github.com/wippyai/edge-runtime/wire"
)

// InvalidRequestError rejects a request before any I/O.
type InvalidRequestError struct {
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return "invalid request: " + e.Reason
}

// RedirectError reports a redirect refused by the request's redirect mode
// or by the redirect limit.
type RedirectError struct {
	URL      string
	Location string
	Reason   string
}

func (e *RedirectError) Error() string {
	return fmt.Sprintf("redirect to %s refused: %s", e.Location, e.Reason)
}

// StatusError reports a non-2xx status when FailOnStatus is set.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// BodyError wraps a failure while reading the response body.
type BodyError struct {
	Err error
}

func (e *BodyError) Error() string {
	return "read body: " + e.Err.Error()
}

func (e *BodyError) Unwrap() error { return e.Err }

// RateLimitError reports that the limiter refused to wait for a token.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return "rate limit: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// Classify maps an error from Do onto a fetch error. It returns nil for a
// nil error.
func Classify(rawURL string, err error) *wire.RequestError {
	if err == nil {
		return nil
	}

	var (
		invalid  *InvalidRequestError
		status   *StatusError
		redirect *RedirectError
		body     *BodyError
		urlErr   *url.Error
		netErr   net.Error
	)
	kind := wire.UnknownKind
	switch {
	case errors.As(err, &invalid):
		kind = wire.RequestKind
	case errors.As(err, &status):
		kind = wire.StatusKind(status.Code)
	case errors.As(err, &redirect):
		kind = wire.RedirectKind
	case errors.Is(err, context.DeadlineExceeded),
		errors.As(err, &netErr) && netErr.Timeout():
		kind = wire.TimeoutKind
	case errors.As(err, &body):
		kind = wire.BodyKind
	case errors.As(err, &urlErr) && urlErr.Op == "parse":
		kind = wire.RequestKind
	}
	return wire.NewRequestError(kind, rawURL, err.Error())
}
