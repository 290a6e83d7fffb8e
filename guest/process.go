package guest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dop251/goja"

	"github.com/wippyai/edge-runtime/wire"
)

// Exit codes of the guest process. ExitPanic is what the Go runtime uses
// for an unrecovered panic, which is how marshaling violations abort.
const (
	ExitOK       = 0
	ExitScript   = 1
	ExitPanic    = 2
	ExitContract = 3
	ExitUsage    = 64
)

// Process describes the guest's process contract: the script arrives on
// Stdin, the request JSON in Args[1], and the response JSON leaves on Stdout.
type Process struct {
	Stdin     io.Reader
	Stdout    io.Writer
	Stderr    io.Writer
	Args      []string
	Environ   []string
	Prelude   string
	Transport Transport
}

// Run executes one invocation and returns the process exit code.
func (p Process) Run() int {
	if len(p.Args) < 2 {
		fmt.Fprintln(p.Stderr, "usage: guest <request-json> < script")
		return ExitUsage
	}
	var req wire.Request
	if err := json.Unmarshal([]byte(p.Args[1]), &req); err != nil {
		fmt.Fprintf(p.Stderr, "invalid request: %v\n", err)
		return ExitUsage
	}
	source, err := io.ReadAll(p.Stdin)
	if err != nil {
		fmt.Fprintf(p.Stderr, "read script: %v\n", err)
		return ExitUsage
	}

	env := ParseEnviron(p.Environ)
	transport := p.Transport
	if transport == nil {
		transport = transportFor(Convention(env[ConventionEnv]))
	}
	delete(env, ConventionEnv)

	rt := New(Options{
		Stdout:    p.Stderr,
		Stderr:    p.Stderr,
		Env:       env,
		Transport: transport,
	})
	if err := rt.Install(); err != nil {
		fmt.Fprintf(p.Stderr, "install bindings: %v\n", err)
		return ExitScript
	}
	if p.Prelude != "" {
		if err := rt.Eval("web-platform-apis.js", p.Prelude); err != nil {
			reportException(p.Stderr, err)
			return ExitScript
		}
	}
	if err := rt.Eval("handler.js", string(source)); err != nil {
		reportException(p.Stderr, err)
		return ExitScript
	}

	outcome, err := rt.Invoke(req)
	if err != nil {
		reportException(p.Stderr, err)
		if errors.Is(err, ErrHandlerMissing) || errors.Is(err, ErrNotSettled) {
			return ExitContract
		}
		return ExitScript
	}
	if outcome.Rejected != nil {
		fmt.Fprintf(p.Stderr, "handler rejected: %v\n", outcome.Rejected)
	}
	if _, err := p.Stdout.Write(outcome.Output); err != nil {
		fmt.Fprintf(p.Stderr, "write response: %v\n", err)
		return ExitScript
	}
	return ExitOK
}

// ParseEnviron converts KEY=VALUE pairs into a map.
func ParseEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

func reportException(w io.Writer, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		fmt.Fprintln(w, ex.String())
		return
	}
	fmt.Fprintln(w, err.Error())
}
