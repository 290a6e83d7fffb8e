package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero/api"

	edgeruntime "github.com/wippyai/edge-runtime"
	"github.com/wippyai/edge-runtime/abi"
	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/internal/wasmtest"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	ctx := context.Background()
	eng, err := New(ctx, cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func TestNew(t *testing.T) {
	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{CacheDir: t.TempDir()}, "disk cache"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			eng := newTestEngine(t, tc.cfg)
			if eng.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestInitWASI_Idempotent(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := eng.InitWASI(ctx); err != nil {
			t.Fatalf("InitWASI #%d: %v", i, err)
		}
	}
	if eng.runtime.Module(wasiModuleName) == nil {
		t.Error("WASI module not instantiated")
	}
}

func TestLoadModule_MissingExports(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		wasm []byte
		want []string
	}{
		{
			name: "empty module",
			wasm: (&wasmtest.Module{}).Encode(),
			want: []string{"_start", "allocate", "memory", "pop_length", "push_length", "release"},
		},
		{
			name: "memory only",
			wasm: (&wasmtest.Module{Memory: 1, Exports: []wasmtest.Export{{Name: "memory", Kind: wasmtest.KindMemory}}}).Encode(),
			want: []string{"_start", "allocate", "pop_length", "push_length", "release"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.LoadModule(ctx, tt.wasm)
			var missing *errors.MissingExportsError
			if !stderrors.As(err, &missing) {
				t.Fatalf("err = %v, want MissingExportsError", err)
			}
			if strings.Join(missing.Exports, ",") != strings.Join(tt.want, ",") {
				t.Errorf("missing = %v, want %v", missing.Exports, tt.want)
			}
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMissingExport}) {
				t.Error("should match load/missing_export")
			}
		})
	}
}

func TestCompile_NoValidation(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	mod, err := eng.Compile(ctx, (&wasmtest.Module{}).Encode())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer mod.Close(ctx)
	if got := len(mod.MissingExports()); got != len(RequiredExports) {
		t.Errorf("missing %d exports, want %d", got, len(RequiredExports))
	}

	full, err := eng.Compile(ctx, wasmtest.Guest{Request: []byte("{}"), Import: wasmtest.ImportPacked}.Encode())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	defer full.Close(ctx)
	if missing := full.MissingExports(); len(missing) != 0 {
		t.Errorf("fixture guest lacks %v", missing)
	}
}

func TestLoadModule_Invalid(t *testing.T) {
	eng := newTestEngine(t, nil)
	_, err := eng.LoadModule(context.Background(), []byte("not wasm"))
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData}) {
		t.Errorf("err = %v", err)
	}
}

func TestRegisterHostModule_Twice(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()
	hm := HostModule{Name: "env", Functions: []HostFunction{{
		Name:    "noop",
		Func:    func(context.Context, edgeruntime.Guest, []uint64) {},
	}}}
	if err := eng.RegisterHostModule(ctx, hm); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	err := eng.RegisterHostModule(ctx, hm)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseHost, Kind: errors.KindRegistration}) {
		t.Errorf("err = %v", err)
	}
}

// observed records what a host function saw while the guest was blocked.
type observed struct {
	request []byte
	popped  uint32
	reply   []byte
	packed  uint64
}

func packedHost(obs *observed, reply []byte) HostModule {
	return HostModule{Name: "env", Functions: []HostFunction{{
		Name:    wasmtest.ImportPacked,
		Params:  []api.ValueType{I32, I32},
		Results: []api.ValueType{I64},
		Func: func(ctx context.Context, g edgeruntime.Guest, stack []uint64) {
			ptr, n := uint32(stack[0]), uint32(stack[1])
			req, err := g.Memory().Read(ptr, n)
			if err != nil {
				panic(err)
			}
			obs.request = req

			if err := g.PushLength(ctx, 77); err != nil {
				panic(err)
			}
			if obs.popped, err = g.PopLength(ctx); err != nil {
				panic(err)
			}

			out, err := g.Allocate(ctx, uint32(len(reply)))
			if err != nil {
				panic(err)
			}
			if err := g.Memory().Write(out, reply); err != nil {
				panic(err)
			}
			if obs.reply, err = g.Memory().Read(out, uint32(len(reply))); err != nil {
				panic(err)
			}
			obs.packed = abi.Pack(out, uint32(len(reply)))
			stack[0] = obs.packed
		},
	}}}
}

func TestInstantiate_HostCallback(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	obs := &observed{}
	if err := eng.RegisterHostModule(ctx, packedHost(obs, []byte(`{"Ok":{}}`))); err != nil {
		t.Fatal(err)
	}
	request := []byte(`{"method":"GET","url":"https://test.test"}`)
	mod, err := eng.LoadModule(ctx, wasmtest.Guest{Request: request, Import: wasmtest.ImportPacked}.Encode())
	if err != nil {
		t.Fatalf("LoadModule: %v", err)
	}
	defer mod.Close(ctx)

	if err := mod.Instantiate(ctx, InstanceConfig{Args: []string{"edge"}}); err != nil {
		t.Fatalf("Instantiate: %v", err)
	}
	if !bytes.Equal(obs.request, request) {
		t.Errorf("request = %q", obs.request)
	}
	if obs.popped != 77 {
		t.Errorf("popped = %d", obs.popped)
	}
	if string(obs.reply) != `{"Ok":{}}` {
		t.Errorf("reply = %q", obs.reply)
	}
	if ptr, n := abi.Unpack(obs.packed); ptr != 4096 || n != 9 {
		t.Errorf("packed = (%d, %d)", ptr, n)
	}
}

func TestInstantiate_FreshInstances(t *testing.T) {
	eng := newTestEngine(t, nil)
	ctx := context.Background()

	obs := &observed{}
	if err := eng.RegisterHostModule(ctx, packedHost(obs, []byte("x"))); err != nil {
		t.Fatal(err)
	}
	mod, err := eng.LoadModule(ctx, wasmtest.Guest{Request: []byte("r"), Import: wasmtest.ImportPacked}.Encode())
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := mod.Instantiate(ctx, InstanceConfig{}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
		// The bump allocator starts over in every instance.
		if ptr, _ := abi.Unpack(obs.packed); ptr != 4096 {
			t.Errorf("run %d allocated at %d", i, ptr)
		}
	}
}

func TestInstantiate_ProtocolPanic(t *testing.T) {
	tests := []struct {
		name string
		fail func(edgeruntime.Guest)
	}{
		{"protocol error", func(edgeruntime.Guest) {
			panic(&abi.ProtocolError{Op: "pop_length", Detail: "length stack underflow"})
		}},
		{"out of bounds read", func(g edgeruntime.Guest) {
			if _, err := g.Memory().Read(g.Memory().Size()-2, 8); err != nil {
				panic(err)
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := newTestEngine(t, nil)
			ctx := context.Background()
			hm := HostModule{Name: "env", Functions: []HostFunction{{
				Name:    wasmtest.ImportPacked,
				Params:  []api.ValueType{I32, I32},
				Results: []api.ValueType{I64},
				Func: func(_ context.Context, g edgeruntime.Guest, _ []uint64) {
					tt.fail(g)
				},
			}}}
			if err := eng.RegisterHostModule(ctx, hm); err != nil {
				t.Fatal(err)
			}
			mod, err := eng.LoadModule(ctx, wasmtest.Guest{Request: []byte("r"), Import: wasmtest.ImportPacked}.Encode())
			if err != nil {
				t.Fatal(err)
			}
			err = mod.Instantiate(ctx, InstanceConfig{})
			if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindProtocol}) {
				t.Errorf("err = %v, want instantiate/protocol", err)
			}
		})
	}
}

func TestModule_Inspect(t *testing.T) {
	eng := newTestEngine(t, nil)
	mod, err := eng.LoadModule(context.Background(), wasmtest.Guest{Request: []byte("r"), Import: wasmtest.ImportLengthStack}.Encode())
	if err != nil {
		t.Fatal(err)
	}

	imports := mod.Imports()
	if len(imports) != 1 {
		t.Fatalf("imports = %+v", imports)
	}
	imp := imports[0]
	if imp.Module != "env" || imp.Name != "send_request" || imp.Kind != "func" ||
		strings.Join(imp.Params, ",") != "i32" || strings.Join(imp.Results, ",") != "i32" {
		t.Errorf("import = %+v", imp)
	}

	var names []string
	for _, e := range mod.Exports() {
		names = append(names, e.Name)
	}
	if got := strings.Join(names, ","); got != "_start,allocate,memory,pop_length,push_length,release" {
		t.Errorf("exports = %s", got)
	}
}

func TestTailWriter(t *testing.T) {
	var sink bytes.Buffer
	w := &tailWriter{limit: 8, next: &sink}
	for _, s := range []string{"hello ", "wasm ", "world"} {
		if _, err := w.Write([]byte(s)); err != nil {
			t.Fatal(err)
		}
	}
	if got := w.String(); got != "sm world" {
		t.Errorf("tail = %q", got)
	}
	if sink.String() != "hello wasm world" {
		t.Errorf("forwarded = %q", sink.String())
	}
}
