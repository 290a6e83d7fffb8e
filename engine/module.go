package engine

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"io"
	"sort"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	"github.com/wippyai/edge-runtime/abi"
	"github.com/wippyai/edge-runtime/errors"
)

// StderrTailSize bounds the stderr kept for guest exit errors.
const StderrTailSize = 4096

// Module is a compiled guest.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
}

// InstanceConfig holds the process view of one instance.
type InstanceConfig struct {
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Args   []string
	Env    map[string]string
}

// Instantiate creates an anonymous instance, runs _start to completion and
// closes the instance.
func (m *Module) Instantiate(ctx context.Context, cfg InstanceConfig) error {
	if err := m.engine.InitWASI(ctx); err != nil {
		return err
	}

	tail := &tailWriter{limit: StderrTailSize, next: cfg.Stderr}
	modCfg := wazero.NewModuleConfig().
		WithName("").
		WithStderr(tail).
		WithArgs(cfg.Args...).
		WithSysWalltime().
		WithSysNanotime().
		WithSysNanosleep().
		WithRandSource(rand.Reader)
	if cfg.Stdin != nil {
		modCfg = modCfg.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		modCfg = modCfg.WithStdout(cfg.Stdout)
	}
	keys := make([]string, 0, len(cfg.Env))
	for k := range cfg.Env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		modCfg = modCfg.WithEnv(k, cfg.Env[k])
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, modCfg)
	if mod != nil {
		_ = mod.Close(ctx)
	}
	if err != nil {
		err = classify(ctx, err, tail.String())
		Logger().Debug("guest failed", zap.Error(err))
	}
	return err
}

func classify(ctx context.Context, err error, stderr string) error {
	if cerr := ctx.Err(); cerr != nil {
		return errors.Wrap(errors.PhaseInstantiate, errors.KindInstantiation, cerr, "guest interrupted")
	}

	var exit *sys.ExitError
	if stderrors.As(err, &exit) {
		return errors.GuestExit(exit.ExitCode(), stderr)
	}

	var structured *errors.Error
	if stderrors.As(err, &structured) {
		if structured.Kind == errors.KindProtocol || structured.Kind == errors.KindOutOfBounds {
			return errors.Protocol(errors.PhaseInstantiate, structured.Error(), err)
		}
	}
	var violation *abi.ProtocolError
	if stderrors.As(err, &violation) {
		return errors.Protocol(errors.PhaseInstantiate, violation.Error(), err)
	}
	return errors.Instantiation(err)
}

// MissingExports lists the required exports the module lacks.
func (m *Module) MissingExports() []string {
	funcs := m.compiled.ExportedFunctions()
	mems := m.compiled.ExportedMemories()
	var missing []string
	for _, name := range RequiredExports {
		if name == ExportMemory {
			if _, ok := mems[name]; !ok {
				missing = append(missing, name)
			}
			continue
		}
		if _, ok := funcs[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// Symbol describes an import or export of a compiled module.
type Symbol struct {
	Module  string // import module; empty for exports
	Name    string
	Kind    string // "func" or "memory"
	Params  []string
	Results []string
}

// Imports lists imported functions and memories in declaration order.
func (m *Module) Imports() []Symbol {
	var out []Symbol
	for _, def := range m.compiled.ImportedFunctions() {
		mod, name, _ := def.Import()
		out = append(out, funcSymbol(mod, name, def))
	}
	for _, def := range m.compiled.ImportedMemories() {
		mod, name, _ := def.Import()
		out = append(out, Symbol{Module: mod, Name: name, Kind: api.ExternTypeMemoryName})
	}
	return out
}

// Exports lists exported functions and memories sorted by name.
func (m *Module) Exports() []Symbol {
	var out []Symbol
	for name, def := range m.compiled.ExportedFunctions() {
		out = append(out, funcSymbol("", name, def))
	}
	for name := range m.compiled.ExportedMemories() {
		out = append(out, Symbol{Name: name, Kind: api.ExternTypeMemoryName})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func funcSymbol(module, name string, def api.FunctionDefinition) Symbol {
	s := Symbol{Module: module, Name: name, Kind: api.ExternTypeFuncName}
	for _, t := range def.ParamTypes() {
		s.Params = append(s.Params, api.ValueTypeName(t))
	}
	for _, t := range def.ResultTypes() {
		s.Results = append(s.Results, api.ValueTypeName(t))
	}
	return s
}

// Close releases the compiled code.
func (m *Module) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// tailWriter forwards writes and keeps the last limit bytes.
type tailWriter struct {
	mu    sync.Mutex
	limit int
	buf   []byte
	next  io.Writer
}

func (w *tailWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf = append(w.buf, p...)
	if over := len(w.buf) - w.limit; over > 0 {
		w.buf = append(w.buf[:0], w.buf[over:]...)
	}
	w.mu.Unlock()
	if w.next != nil {
		return w.next.Write(p)
	}
	return len(p), nil
}

func (w *tailWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return string(w.buf)
}
