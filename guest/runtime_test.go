package guest

import (
	"bytes"
	"testing"

	"github.com/wippyai/edge-runtime/polyfill"
)

type testRuntime struct {
	*Runtime
	stdout *bytes.Buffer
	stderr *bytes.Buffer
}

func newTestRuntime(t *testing.T, transport Transport, env map[string]string) *testRuntime {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	rt := New(Options{Stdout: stdout, Stderr: stderr, Env: env, Transport: transport})
	if err := rt.Install(); err != nil {
		t.Fatalf("install: %v", err)
	}
	return &testRuntime{Runtime: rt, stdout: stdout, stderr: stderr}
}

func newPolyfilledRuntime(t *testing.T, transport Transport) *testRuntime {
	t.Helper()
	rt := newTestRuntime(t, transport, nil)
	if err := rt.Eval("web-platform-apis.js", polyfill.Source()); err != nil {
		t.Fatalf("eval polyfill: %v", err)
	}
	return rt
}

// run evaluates an expression and returns its string form.
func (r *testRuntime) run(t *testing.T, src string) string {
	t.Helper()
	v, err := r.vm.RunString(src)
	if err != nil {
		t.Fatalf("run %q: %v", src, err)
	}
	return v.String()
}

func TestInstall_Redefines(t *testing.T) {
	rt := newTestRuntime(t, nil, nil)
	rt.run(t, `console.log = function () {}; globalThis.___logger = 1;`)
	if err := rt.Install(); err != nil {
		t.Fatalf("second install: %v", err)
	}
	rt.run(t, `console.log("again")`)
	if rt.stdout.String() != "again\n" {
		t.Errorf("stdout = %q", rt.stdout.String())
	}
	if got := rt.run(t, `typeof ___logger`); got != "function" {
		t.Errorf("typeof ___logger = %s", got)
	}
}
