package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/net/http/httpguts"

	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/httpclient"
	"github.com/wippyai/edge-runtime/wire"
)

// Doer executes an outbound request. *httpclient.Client implements it.
type Doer interface {
	Do(ctx context.Context, req httpclient.Request) (*httpclient.Response, error)
}

// FetchEvent describes one completed fetch.
type FetchEvent struct {
	Method   string
	Host     string
	Status   int
	Kind     string // empty on success
	Duration time.Duration
}

// Options configures a Bridge.
type Options struct {
	// Allow lists host globs (doublestar syntax, e.g. "*.example.com").
	// Empty allows every host.
	Allow  []string
	Logger *zap.Logger
	// Observe is called after every fetch, successful or not.
	Observe func(FetchEvent)
}

// Bridge executes guest fetches.
type Bridge struct {
	client  Doer
	allow   []string
	logger  *zap.Logger
	observe func(FetchEvent)
}

// New creates a bridge over client.
func New(client Doer, opts Options) (*Bridge, error) {
	if client == nil {
		return nil, errors.InvalidInput(errors.PhaseBridge, "nil http client")
	}
	for _, p := range opts.Allow {
		if !doublestar.ValidatePattern(p) {
			return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
				Path("fetch", "allow").
				Value(p).
				Detail("invalid host pattern %q", p).
				Build()
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{
		client:  client,
		allow:   append([]string(nil), opts.Allow...),
		logger:  logger,
		observe: opts.Observe,
	}, nil
}

// Handle executes one serialized wire.Request and returns the serialized
// wire.Result. It never fails: every error is encoded in the result.
func (b *Bridge) Handle(ctx context.Context, payload []byte) []byte {
	out, err := json.Marshal(b.execute(ctx, payload))
	if err != nil {
		out, _ = json.Marshal(wire.Failure(wire.NewRequestError(wire.SerialKind, "", "encode reply: "+err.Error())))
	}
	return out
}

func (b *Bridge) execute(ctx context.Context, payload []byte) wire.Result {
	var req wire.Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return wire.Failure(wire.NewRequestError(wire.SerialKind, "", "decode request: "+err.Error()))
	}

	hreq, host, err := b.prepare(req)
	if err != nil {
		b.logger.Debug("fetch rejected", zap.String("url", req.URL), zap.Error(err))
		b.emit(FetchEvent{Method: hreq.Method, Host: host, Kind: wire.KindRequest})
		return wire.Failure(wire.NewRequestError(wire.RequestKind, req.URL, err.Error()))
	}

	start := time.Now()
	resp, err := b.client.Do(ctx, hreq)
	event := FetchEvent{Method: hreq.Method, Host: host, Duration: time.Since(start)}
	if resp != nil {
		event.Status = resp.Status
	}
	if err != nil {
		re := httpclient.Classify(req.URL, err)
		event.Kind = re.Kind.Name
		b.emit(event)
		b.logger.Debug("fetch failed",
			zap.String("method", hreq.Method),
			zap.String("url", req.URL),
			zap.Stringer("kind", re.Kind),
			zap.Error(err))
		return wire.Failure(re)
	}
	b.emit(event)

	return wire.Success(&wire.Response{
		Status:  resp.Status,
		Headers: collapseHeaders(resp.Header),
		Body:    wire.ByteArray(resp.Body),
	})
}

func (b *Bridge) emit(e FetchEvent) {
	if b.observe != nil {
		b.observe(e)
	}
}

// prepare validates req before any I/O.
func (b *Bridge) prepare(req wire.Request) (httpclient.Request, string, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}
	out := httpclient.Request{Method: method, URL: req.URL, Redirect: req.Redirect}
	if !httpguts.ValidHeaderFieldName(method) {
		return out, "", fmt.Errorf("invalid method %q", req.Method)
	}

	u, err := url.Parse(req.URL)
	if err != nil {
		return out, "", fmt.Errorf("invalid url: %w", err)
	}
	host := u.Hostname()
	if !b.allowed(host) {
		return out, host, fmt.Errorf("host %q is not allowed", host)
	}

	if len(req.Headers) > 0 {
		out.Header = make(http.Header, len(req.Headers))
		for _, name := range sortedKeys(req.Headers) {
			value := req.Headers[name]
			if !httpguts.ValidHeaderFieldName(name) {
				return out, host, fmt.Errorf("invalid header name %q", name)
			}
			if !httpguts.ValidHeaderFieldValue(value) {
				return out, host, fmt.Errorf("invalid value for header %q", name)
			}
			out.Header.Set(name, value)
		}
	}
	if req.Body != nil {
		out.Body = []byte(req.Body)
	}
	return out, host, nil
}

func (b *Bridge) allowed(host string) bool {
	if len(b.allow) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, p := range b.allow {
		if ok, _ := doublestar.Match(p, host); ok {
			return true
		}
	}
	return false
}

// collapseHeaders lowercases names and joins repeated values with ", ".
func collapseHeaders(h http.Header) wire.Headers {
	out := make(wire.Headers, len(h))
	for name, values := range h {
		key := strings.ToLower(name)
		if prev, ok := out[key]; ok {
			values = append([]string{prev}, values...)
		}
		out[key] = strings.Join(values, ", ")
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
