package runtime

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/edge-runtime/bridge"
	"github.com/wippyai/edge-runtime/engine"
	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/guest"
	"github.com/wippyai/edge-runtime/httpclient"
	"github.com/wippyai/edge-runtime/polyfill"
	"github.com/wippyai/edge-runtime/wire"
)

// GuestName is argv[0] of every guest process.
const GuestName = "edge"

// Options configures a Supervisor.
type Options struct {
	Engine *engine.Config
	HTTP   httpclient.Config

	// Client overrides the HTTP client built from HTTP.
	Client bridge.Doer

	// Allow restricts fetch hosts. See bridge.Options.
	Allow []string

	// EnvPass selects host variables exposed to the guest.
	EnvPass []string
	// Environ is the host environment in KEY=VALUE form. Nil means os.Environ().
	Environ []string

	// Convention selects the fetch import the guest uses. Empty means packed.
	Convention guest.Convention

	// Stderr receives guest console output in addition to the log.
	Stderr io.Writer

	Logger  *zap.Logger
	Observe func(bridge.FetchEvent)
}

// Invocation is one handler run.
type Invocation struct {
	// ID tags log lines. Empty gets a random UUID.
	ID      string
	Script  string
	Request wire.Request
}

// Supervisor runs invocations against one compiled guest.
type Supervisor struct {
	engine     *engine.Engine
	module     *engine.Module
	bridge     *bridge.Bridge
	env        map[string]string
	convention guest.Convention
	stderr     io.Writer
	logger     *zap.Logger
	mu         sync.Mutex
}

// New compiles guestWasm and registers the fetch bridge.
func New(ctx context.Context, guestWasm []byte, opts Options) (*Supervisor, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	convention := opts.Convention
	switch convention {
	case "":
		convention = guest.ConventionPacked
	case guest.ConventionPacked, guest.ConventionLengthStack:
	default:
		return nil, errors.New(errors.PhaseConfig, errors.KindInvalidInput).
			Path("guest", "convention").
			Value(string(convention)).
			Detail("unknown convention %q", convention).
			Build()
	}

	env, err := PassEnv(opts.Environ, opts.EnvPass)
	if err != nil {
		return nil, err
	}
	env[guest.ConventionEnv] = string(convention)

	client := opts.Client
	if client == nil {
		client = httpclient.New(opts.HTTP, logger.Named("http"))
	}
	br, err := bridge.New(client, bridge.Options{
		Allow:   opts.Allow,
		Logger:  logger.Named("bridge"),
		Observe: opts.Observe,
	})
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(ctx, opts.Engine)
	if err != nil {
		return nil, err
	}
	if err := eng.RegisterHostModule(ctx, br.HostModule()); err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}
	mod, err := eng.LoadModule(ctx, guestWasm)
	if err != nil {
		_ = eng.Close(ctx)
		return nil, err
	}

	return &Supervisor{
		engine:     eng,
		module:     mod,
		bridge:     br,
		env:        env,
		convention: convention,
		stderr:     opts.Stderr,
		logger:     logger,
	}, nil
}

// Close releases the engine and the compiled guest.
func (s *Supervisor) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Close(ctx)
}

// Module returns the compiled guest.
func (s *Supervisor) Module() *engine.Module {
	return s.module
}

// Invoke runs the handler in inv.Script against inv.Request and returns the
// guest's stdout. Calls are serialized.
func (s *Supervisor) Invoke(ctx context.Context, inv Invocation) ([]byte, error) {
	if strings.TrimSpace(inv.Script) == "" {
		return nil, errors.InvalidInput(errors.PhaseInvoke, "empty handler script")
	}
	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	if inv.Request.Headers == nil {
		inv.Request.Headers = wire.Headers{}
	}
	reqJSON, err := json.Marshal(inv.Request)
	if err != nil {
		return nil, errors.Serialization(errors.PhaseInvoke, "request", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.logger.With(zap.String("invocation", inv.ID))
	var stdout, stderr bytes.Buffer
	var console io.Writer = &stderr
	if s.stderr != nil {
		console = io.MultiWriter(&stderr, s.stderr)
	}

	start := time.Now()
	err = s.module.Instantiate(ctx, engine.InstanceConfig{
		Stdin:  strings.NewReader(polyfill.Bundle(inv.Script)),
		Stdout: &stdout,
		Stderr: console,
		Args:   []string{GuestName, string(reqJSON)},
		Env:    s.env,
	})
	if stderr.Len() > 0 {
		log.Debug("guest console", zap.String("output", stderr.String()))
	}
	if err != nil {
		log.Warn("invocation failed",
			zap.String("method", inv.Request.Method),
			zap.String("url", inv.Request.URL),
			zap.String("reason", ExitReason(err)),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return nil, err
	}

	log.Info("invocation complete",
		zap.String("method", inv.Request.Method),
		zap.String("url", inv.Request.URL),
		zap.Int("bytes", stdout.Len()),
		zap.Duration("duration", time.Since(start)))
	return stdout.Bytes(), nil
}
