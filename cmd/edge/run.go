package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/edge-runtime/runtime"
	"github.com/wippyai/edge-runtime/wire"
)

type runFlags struct {
	handler     string
	request     string
	requestFile string
	method      string
	url         string
	body        string
	headers     []string
}

func newRunCmd(a *app) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Invoke a handler once and print its response JSON",
		Long: `Invoke a handler once and print its response JSON to stdout.

The request is taken from --request, --request-file, piped stdin, or built
from --method, --url, --header and --body, in that order. Pass --handler -
to read the handler from stdin instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			stdin := cmd.InOrStdin()

			var script string
			if f.handler == "-" {
				data, err := io.ReadAll(stdin)
				if err != nil {
					return fmt.Errorf("read handler: %w", err)
				}
				script = string(data)
				stdin = nil
			} else {
				s, err := readHandler(f.handler)
				if err != nil {
					return err
				}
				script = s
			}

			req, err := f.resolveRequest(stdin)
			if err != nil {
				return err
			}

			sup, err := a.supervisor(cmd.Context(), a.cfg.Supervisor())
			if err != nil {
				return err
			}
			defer sup.Close(cmd.Context())

			out, err := sup.Invoke(cmd.Context(), runtime.Invocation{Script: script, Request: req})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.handler, "handler", "", "handler script path, or - for stdin")
	fl.StringVar(&f.request, "request", "", "request JSON")
	fl.StringVar(&f.requestFile, "request-file", "", "file holding the request JSON")
	fl.StringVarP(&f.method, "method", "X", "GET", "request method when building a request")
	fl.StringVar(&f.url, "url", "http://localhost/", "request URL when building a request")
	fl.StringVarP(&f.body, "body", "d", "", "request body when building a request")
	fl.StringArrayVarP(&f.headers, "header", "H", nil, "request header as 'Name: value' (repeatable)")
	return cmd
}

// resolveRequest picks the request source. stdin is nil when it already
// carried the handler.
func (f *runFlags) resolveRequest(stdin io.Reader) (wire.Request, error) {
	var raw []byte
	switch {
	case f.request != "":
		raw = []byte(f.request)
	case f.requestFile != "":
		data, err := os.ReadFile(f.requestFile)
		if err != nil {
			return wire.Request{}, fmt.Errorf("read request: %w", err)
		}
		raw = data
	case stdin != nil && !isTerminal(stdin):
		data, err := io.ReadAll(stdin)
		if err != nil {
			return wire.Request{}, fmt.Errorf("read request: %w", err)
		}
		if len(strings.TrimSpace(string(data))) > 0 {
			raw = data
		}
	}
	if raw != nil {
		var req wire.Request
		if err := json.Unmarshal(raw, &req); err != nil {
			return wire.Request{}, fmt.Errorf("invalid request JSON: %w", err)
		}
		return req, nil
	}
	return f.buildRequest()
}

func (f *runFlags) buildRequest() (wire.Request, error) {
	req := wire.Request{
		Method:  strings.ToUpper(f.method),
		URL:     f.url,
		Headers: wire.Headers{},
	}
	for _, h := range f.headers {
		name, value, ok := strings.Cut(h, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return wire.Request{}, fmt.Errorf("invalid header %q, want 'Name: value'", h)
		}
		req.Headers[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(value)
	}
	if f.body != "" {
		req.Body = wire.Body(f.body)
	}
	return req, nil
}

func isTerminal(r io.Reader) bool {
	file, ok := r.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}
