package guest

import (
	"fmt"
	"io"
	"sort"

	"github.com/dop251/goja"
)

// Options configures a guest Runtime.
type Options struct {
	// Stdout receives console.log output.
	Stdout io.Writer
	// Stderr receives console.error output.
	Stderr io.Writer
	// Log receives ___logger lines. Defaults to Stderr.
	Log io.Writer
	// Env is exposed to scripts as a frozen process.env.
	Env map[string]string
	// Transport carries fetch requests to the host.
	Transport Transport
}

// Runtime is a single goja engine with the edge bindings installed.
type Runtime struct {
	vm        *goja.Runtime
	opts      Options
	drainProg *goja.Program
}

// New creates a runtime. Bindings are not installed until Install is called.
func New(opts Options) *Runtime {
	if opts.Stdout == nil {
		opts.Stdout = io.Discard
	}
	if opts.Stderr == nil {
		opts.Stderr = io.Discard
	}
	if opts.Log == nil {
		opts.Log = opts.Stderr
	}
	if opts.Transport == nil {
		opts.Transport = DefaultTransport()
	}
	return &Runtime{
		vm:        goja.New(),
		opts:      opts,
		drainProg: goja.MustCompile("drain", "", false),
	}
}

// VM exposes the underlying engine.
func (r *Runtime) VM() *goja.Runtime {
	return r.vm
}

// Install defines every native binding on the global object. Calling it
// again replaces the previous definitions.
func (r *Runtime) Install() error {
	installers := []struct {
		name string
		fn   func() error
	}{
		{"console", r.installConsole},
		{"___logger", r.installLogger},
		{"___parseUrl", r.installURL},
		{"utf-8 codec", r.installCodec},
		{"___fetcher", r.installFetcher},
		{"process", r.installProcess},
	}
	for _, in := range installers {
		if err := in.fn(); err != nil {
			return fmt.Errorf("install %s: %w", in.name, err)
		}
	}
	return nil
}

// Eval runs script source in the global scope.
func (r *Runtime) Eval(name, src string) error {
	_, err := r.vm.RunScript(name, src)
	return err
}

// drain runs queued promise jobs. goja drains the queue whenever the
// outermost call returns, so running an empty program is enough.
func (r *Runtime) drain() error {
	_, err := r.vm.RunProgram(r.drainProg)
	return err
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
