package runtime

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/wippyai/edge-runtime/bridge"
	"github.com/wippyai/edge-runtime/errors"
	"github.com/wippyai/edge-runtime/guest"
	"github.com/wippyai/edge-runtime/httpclient"
	"github.com/wippyai/edge-runtime/internal/wasmtest"
	"github.com/wippyai/edge-runtime/wire"
)

func TestPassEnv(t *testing.T) {
	environ := []string{
		"API_KEY=k",
		"API_URL=https://x",
		"HOME=/root",
		"EMPTY=",
		guest.ConventionEnv + "=length-stack",
		"malformed",
	}
	tests := []struct {
		name     string
		patterns []string
		want     map[string]string
	}{
		{"none", nil, map[string]string{}},
		{"exact", []string{"HOME"}, map[string]string{"HOME": "/root"}},
		{"prefix", []string{"API_*"}, map[string]string{"API_KEY": "k", "API_URL": "https://x"}},
		{"all", []string{"*"}, map[string]string{"API_KEY": "k", "API_URL": "https://x", "HOME": "/root", "EMPTY": ""}},
		{"no match", []string{"PATH"}, map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := PassEnv(environ, tt.patterns)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("%s = %q, want %q", k, got[k], v)
				}
			}
		})
	}

	if _, err := PassEnv(environ, []string{"[oops"}); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}) {
		t.Errorf("invalid pattern: %v", err)
	}
}

func TestExitReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{errors.GuestExit(guest.ExitScript, "SyntaxError"), "script error"},
		{errors.GuestExit(guest.ExitContract, ""), "handler contract violation"},
		{errors.GuestExit(guest.ExitPanic, "panic: abi protocol violation in pop_length"), "guest panic (protocol violation)"},
		{errors.GuestExit(guest.ExitUsage, ""), "bad guest invocation"},
		{errors.GuestExit(70, ""), "guest exit"},
		{errors.Protocol(errors.PhaseInstantiate, "bad pointer", nil), "protocol"},
		{fmt.Errorf("wrapped: %w", errors.Instantiation(fmt.Errorf("boom"))), "instantiation"},
		{fmt.Errorf("plain"), "unknown"},
	}
	for _, tt := range tests {
		if got := ExitReason(tt.err); got != tt.want {
			t.Errorf("ExitReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

// upstream counts requests and the peak number in flight.
type upstream struct {
	*httptest.Server
	hits     atomic.Int32
	inFlight atomic.Int32
	peak     atomic.Int32
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.hits.Add(1)
		n := u.inFlight.Add(1)
		defer u.inFlight.Add(-1)
		for {
			p := u.peak.Load()
			if n <= p || u.peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(u.Close)
	return u
}

func fixtureGuest(t *testing.T, url, convention string) []byte {
	t.Helper()
	req, err := json.Marshal(wire.Request{Method: "GET", URL: url, Headers: wire.Headers{}})
	if err != nil {
		t.Fatal(err)
	}
	return wasmtest.Guest{Request: req, Import: convention}.Encode()
}

func newSupervisor(t *testing.T, wasm []byte, opts Options) *Supervisor {
	t.Helper()
	if opts.HTTP.Timeout == 0 {
		opts.HTTP = httpclient.DefaultConfig()
	}
	sup, err := New(context.Background(), wasm, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = sup.Close(context.Background()) })
	return sup
}

func TestNew_Errors(t *testing.T) {
	ctx := context.Background()
	valid := fixtureGuest(t, "http://127.0.0.1/", wasmtest.ImportPacked)

	tests := []struct {
		name string
		wasm []byte
		opts Options
		want *errors.Error
	}{
		{"bad convention", valid, Options{Convention: "smoke-signal"}, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}},
		{"bad allow pattern", valid, Options{Allow: []string{"[x"}}, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}},
		{"bad env pattern", valid, Options{EnvPass: []string{"[x"}}, &errors.Error{Phase: errors.PhaseConfig, Kind: errors.KindInvalidInput}},
		{"not wasm", []byte("nope"), Options{}, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindInvalidData}},
		{"missing exports", (&wasmtest.Module{Memory: 1, Exports: []wasmtest.Export{{Name: "memory", Kind: wasmtest.KindMemory}}}).Encode(), Options{}, &errors.Error{Phase: errors.PhaseLoad, Kind: errors.KindMissingExport}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sup, err := New(ctx, tt.wasm, tt.opts)
			if err == nil {
				_ = sup.Close(ctx)
				t.Fatal("expected error")
			}
			if !stderrors.Is(err, tt.want) {
				t.Errorf("err = %v, want [%s] %s", err, tt.want.Phase, tt.want.Kind)
			}
		})
	}
}

func TestInvoke_FixtureGuest(t *testing.T) {
	tests := []struct {
		importName string
		convention guest.Convention
	}{
		{wasmtest.ImportPacked, guest.ConventionPacked},
		{wasmtest.ImportLengthStack, guest.ConventionLengthStack},
	}
	for _, tt := range tests {
		t.Run(string(tt.convention), func(t *testing.T) {
			up := newUpstream(t)
			var events []bridge.FetchEvent
			sup := newSupervisor(t, fixtureGuest(t, up.URL+"/", tt.importName), Options{
				Convention: tt.convention,
				Observe:    func(e bridge.FetchEvent) { events = append(events, e) },
			})

			out, err := sup.Invoke(context.Background(), Invocation{Script: "function handleRequest() {}"})
			if err != nil {
				t.Fatalf("Invoke: %v", err)
			}
			if len(out) != 0 {
				t.Errorf("fixture guest wrote %q", out)
			}
			if up.hits.Load() != 1 || len(events) != 1 || events[0].Status != 200 {
				t.Errorf("hits = %d, events = %+v", up.hits.Load(), events)
			}
		})
	}
}

func TestInvoke_EmptyScript(t *testing.T) {
	sup := newSupervisor(t, fixtureGuest(t, "http://127.0.0.1/", wasmtest.ImportPacked), Options{})
	_, err := sup.Invoke(context.Background(), Invocation{Script: "  \n"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInvoke, Kind: errors.KindInvalidInput}) {
		t.Errorf("err = %v", err)
	}
}

func TestInvoke_Serialized(t *testing.T) {
	up := newUpstream(t)
	sup := newSupervisor(t, fixtureGuest(t, up.URL+"/", wasmtest.ImportPacked), Options{})

	const n = 8
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := sup.Invoke(context.Background(), Invocation{Script: "x"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Invoke: %v", err)
		}
	}
	if up.hits.Load() != n {
		t.Errorf("hits = %d, want %d", up.hits.Load(), n)
	}
	if up.peak.Load() != 1 {
		t.Errorf("peak concurrent fetches = %d, want 1", up.peak.Load())
	}
}

func TestInvoke_Canceled(t *testing.T) {
	up := newUpstream(t)
	sup := newSupervisor(t, fixtureGuest(t, up.URL+"/", wasmtest.ImportPacked), Options{})

	if _, err := sup.Invoke(context.Background(), Invocation{Script: "x"}); err != nil {
		t.Fatalf("warm-up: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sup.Invoke(ctx, Invocation{Script: "x"})
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseInstantiate, Kind: errors.KindInstantiation}) {
		t.Errorf("err = %v", err)
	}
}
