package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/runtime"
	"github.com/wippyai/edge-runtime/wire"
)

// DefaultMaxBody caps inbound request bodies.
const DefaultMaxBody = 10 << 20

// InvocationHeader carries the invocation ID on every handler response.
const InvocationHeader = "X-Edge-Invocation"

// Invoker runs one handler invocation. *runtime.Supervisor implements it.
type Invoker interface {
	Invoke(ctx context.Context, inv runtime.Invocation) ([]byte, error)
}

// Options configures a Server.
type Options struct {
	Invoker Invoker
	Script  string

	// Metrics and Gatherer back /metrics. Nil Metrics disables recording;
	// nil Gatherer serves the default registry.
	Metrics  *Metrics
	Gatherer prometheus.Gatherer

	MaxBody int64
	Logger  *zap.Logger
}

// Server turns inbound HTTP requests into invocations.
type Server struct {
	invoker  Invoker
	script   string
	metrics  *Metrics
	gatherer prometheus.Gatherer
	maxBody  int64
	logger   *zap.Logger
}

// New creates a server.
func New(opts Options) (*Server, error) {
	if opts.Invoker == nil {
		return nil, errors.InvalidInput(errors.PhaseServe, "nil invoker")
	}
	if strings.TrimSpace(opts.Script) == "" {
		return nil, errors.InvalidInput(errors.PhaseServe, "empty handler script")
	}
	s := &Server{
		invoker:  opts.Invoker,
		script:   opts.Script,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		maxBody:  opts.MaxBody,
		logger:   opts.Logger,
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.maxBody <= 0 {
		s.maxBody = DefaultMaxBody
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s, nil
}

// Handler returns the router:
//
//	/healthz  liveness probe
//	/metrics  prometheus metrics
//	/*        one invocation per request
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(s.accessLog)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("/*", s.invoke)
	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger.Info("serving", zap.String("addr", addr))

	select {
	case err := <-errc:
		return errors.Wrap(errors.PhaseServe, errors.KindInstantiation, err, "listen "+addr)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(errors.PhaseServe, errors.KindInstantiation, err, "shutdown")
	}
	if err := <-errc; err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	id := uuid.NewString()
	w.Header().Set(InvocationHeader, id)

	req, err := s.wireRequest(w, r)
	if err != nil {
		s.record("error", "bad_request", 0)
		writeError(w, http.StatusBadRequest, id, err.Error())
		return
	}

	start := time.Now()
	out, err := s.invoker.Invoke(r.Context(), runtime.Invocation{ID: id, Script: s.script, Request: req})
	elapsed := time.Since(start)
	if err != nil {
		reason := runtime.ExitReason(err)
		s.record("error", reason, elapsed)
		writeError(w, http.StatusBadGateway, id, reason)
		return
	}

	output, err := DecodeOutput(out)
	if err != nil {
		s.record("error", "bad_output", elapsed)
		s.logger.Warn("undecodable handler output", zap.String("invocation", id), zap.Error(err))
		writeError(w, http.StatusBadGateway, id, "invalid handler output")
		return
	}
	switch {
	case output.Response != nil:
		s.record("ok", "", elapsed)
		writeResponse(w, output.Response)
	case output.Rejection != nil:
		s.record("rejected", output.Rejection.Name, elapsed)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(out)
	default:
		s.record("ok", "", elapsed)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(out)
	}
}

func (s *Server) record(outcome, reason string, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	s.metrics.InvocationsTotal.WithLabelValues(outcome, reason).Inc()
	if elapsed > 0 {
		s.metrics.InvocationDuration.Observe(elapsed.Seconds())
	}
}

// wireRequest converts an inbound request into the handler's request.
func (s *Server) wireRequest(w http.ResponseWriter, r *http.Request) (wire.Request, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		return wire.Request{}, err
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p == "http" || p == "https" {
		scheme = p
	}

	headers := make(wire.Headers, len(r.Header))
	for name, values := range r.Header {
		headers[strings.ToLower(name)] = strings.Join(values, ", ")
	}
	if r.Host != "" {
		headers["host"] = r.Host
	}

	req := wire.Request{
		Method:  r.Method,
		URL:     scheme + "://" + r.Host + r.URL.RequestURI(),
		Headers: headers,
	}
	if len(body) > 0 {
		req.Body = wire.Body(body)
	}
	return req, nil
}

func writeResponse(w http.ResponseWriter, resp *wire.Response) {
	for name, value := range resp.Headers {
		switch strings.ToLower(name) {
		case "content-length", "transfer-encoding", "connection":
			continue
		}
		w.Header().Set(name, value)
	}
	status := resp.Status
	if status < 100 || status > 999 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(resp.Body)
}

func writeError(w http.ResponseWriter, status int, id, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg, "invocation": id})
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)))
	})
}
