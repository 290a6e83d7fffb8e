package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"go.uber.org/zap"

	"github.com/wippyai/edge-runtime/errors"
)

const wasiModuleName = "wasi_snapshot_preview1"

// Engine wraps a wazero runtime shared by every module it loads.
type Engine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	hosts        map[string]api.Module
	hostsMu      sync.Mutex
	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages caps each instance's memory in 64KiB pages.
	// 0 keeps wazero's default of 65536 pages.
	MemoryLimitPages uint32

	// CacheDir persists compiled code between processes. Empty keeps the
	// cache in memory.
	CacheDir string
}

// New creates an engine. A nil cfg uses the defaults.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = &Config{}
	}

	var (
		cache wazero.CompilationCache
		err   error
	)
	if cfg.CacheDir != "" {
		cache, err = wazero.NewCompilationCacheWithDir(cfg.CacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "compilation cache "+cfg.CacheDir)
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	runtimeCfg := wazero.NewRuntimeConfig().
		WithCompilationCache(cache).
		WithCloseOnContextDone(true)
	if cfg.MemoryLimitPages > 0 {
		runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		cache:   cache,
		hosts:   make(map[string]api.Module),
	}, nil
}

// Close releases the runtime, every module it loaded, and the cache.
func (e *Engine) Close(ctx context.Context) error {
	err := e.runtime.Close(ctx)
	if cerr := e.cache.Close(ctx); err == nil {
		err = cerr
	}
	return err
}

// InitWASI instantiates WASI preview1 for this engine's runtime.
// Safe for concurrent calls.
func (e *Engine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}
	if e.runtime.Module(wasiModuleName) == nil {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, e.runtime); err != nil {
			if e.runtime.Module(wasiModuleName) == nil {
				return errors.Registration(wasiModuleName, "*", err)
			}
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// RegisterHostModule instantiates hm under its module name. A name can be
// registered once per engine.
func (e *Engine) RegisterHostModule(ctx context.Context, hm HostModule) error {
	e.hostsMu.Lock()
	defer e.hostsMu.Unlock()

	if _, ok := e.hosts[hm.Name]; ok {
		return errors.Registration(hm.Name, "*", fmt.Errorf("module already registered"))
	}

	builder := e.runtime.NewHostModuleBuilder(hm.Name)
	for _, fn := range hm.Functions {
		if fn.Func == nil {
			return errors.Registration(hm.Name, fn.Name, fmt.Errorf("nil function"))
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.goFunc(), fn.Params, fn.Results).
			WithName(fn.Name).
			Export(fn.Name)
	}

	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return errors.Registration(hm.Name, "*", err)
	}
	e.hosts[hm.Name] = mod

	Logger().Debug("host module registered",
		zap.String("module", hm.Name),
		zap.Int("functions", len(hm.Functions)))
	return nil
}

// Compile compiles wasm without checking its exports.
func (e *Engine) Compile(ctx context.Context, wasm []byte) (*Module, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile guest", err)
	}
	return &Module{engine: e, compiled: compiled}, nil
}

// LoadModule compiles wasm and checks the required guest surface.
func (e *Engine) LoadModule(ctx context.Context, wasm []byte) (*Module, error) {
	mod, err := e.Compile(ctx, wasm)
	if err != nil {
		return nil, err
	}
	if missing := mod.MissingExports(); len(missing) > 0 {
		_ = mod.Close(ctx)
		return nil, errors.NewMissingExportsError(missing)
	}

	Logger().Debug("guest compiled",
		zap.Int("bytes", len(wasm)),
		zap.Int("imports", len(mod.compiled.ImportedFunctions())),
		zap.Int("exports", len(mod.compiled.ExportedFunctions())))
	return mod, nil
}
