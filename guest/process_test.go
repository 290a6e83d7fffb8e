package guest

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/wippyai/edge-runtime/polyfill"
	"github.com/wippyai/edge-runtime/wire"
)

const helloJSON = `{"method":"GET","url":"https://test.test","headers":{},"body":null}`

func runProcess(t *testing.T, handler, request string, transport Transport) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Process{
		Stdin:     strings.NewReader(polyfill.Bundle(handler)),
		Stdout:    &stdout,
		Stderr:    &stderr,
		Args:      []string{"guest", request},
		Environ:   []string{"GREETING=hi", ConventionEnv + "=packed"},
		Transport: transport,
	}.Run()
	return code, stdout.String(), stderr.String()
}

func TestProcess_HelloWorld(t *testing.T) {
	handler := `export async function handleRequest(request) {
		return new Response("Hello World!");
	}`
	code, stdout, stderr := runProcess(t, handler, helloJSON, nil)
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}

	var resp wire.Response
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout %q: %v", stdout, err)
	}
	if resp.Status != 200 {
		t.Errorf("status = %d", resp.Status)
	}
	if string(resp.Body) != "Hello World!" {
		t.Errorf("body = %q", resp.Body)
	}
	if ct := resp.Headers["content-type"]; ct != "text/plain;charset=UTF-8" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestProcess_FetchNotFound(t *testing.T) {
	tr := &recordingTransport{reply: wire.Success(&wire.Response{
		Status:  404,
		Headers: wire.Headers{"content-type": "text/plain"},
		Body:    wire.ByteArray("nope"),
	})}
	handler := `export const handleRequest = async (request) => {
		const upstream = await fetch("https://upstream.test/missing");
		return new Response(await upstream.text(), { status: upstream.status });
	};`
	code, stdout, stderr := runProcess(t, handler, helloJSON, tr)
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	var resp wire.Response
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatalf("stdout %q: %v", stdout, err)
	}
	if resp.Status != 404 || string(resp.Body) != "nope" {
		t.Errorf("response = %d %q", resp.Status, resp.Body)
	}
	if len(tr.requests) != 1 || tr.requests[0].URL != "https://upstream.test/missing" {
		t.Errorf("requests = %+v", tr.requests)
	}
}

func TestProcess_RequestAndEnv(t *testing.T) {
	handler := `async function handleRequest(request) {
		const body = await request.text();
		return Response.json({
			method: request.method,
			body: body,
			agent: request.headers.get("user-agent"),
			greeting: process.env.GREETING,
			convention: process.env.` + ConventionEnv + ` === undefined,
		});
	}`
	req := `{"method":"POST","url":"https://test.test/x","headers":{"User-Agent":"t"},"body":"ping"}`
	code, stdout, stderr := runProcess(t, handler, req, nil)
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	var resp wire.Response
	if err := json.Unmarshal([]byte(stdout), &resp); err != nil {
		t.Fatal(err)
	}
	want := `{"method":"POST","body":"ping","agent":"t","greeting":"hi","convention":true}`
	if string(resp.Body) != want {
		t.Errorf("body = %s, want %s", resp.Body, want)
	}
	if resp.Headers["content-type"] != "application/json" {
		t.Errorf("content-type = %q", resp.Headers["content-type"])
	}
}

func TestProcess_Rejection(t *testing.T) {
	handler := `async function handleRequest() {
		await fetch("https://down.test");
	}`
	tr := &recordingTransport{reply: wire.Failure(wire.NewRequestError(wire.TimeoutKind, "https://down.test", "operation timed out"))}
	code, stdout, stderr := runProcess(t, handler, helloJSON, tr)
	if code != ExitOK {
		t.Fatalf("exit code %d, stderr: %s", code, stderr)
	}
	if stdout != `{"error":"operation timed out","name":"RequestError","kind":"Timeout","url":"https://down.test"}` {
		t.Errorf("stdout = %s", stdout)
	}
	if !strings.Contains(stderr, "handler rejected") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestProcess_Failures(t *testing.T) {
	tests := []struct {
		name     string
		handler  string
		request  string
		wantCode int
		wantErr  string
	}{
		{"syntax error", `function handleRequest( {`, helloJSON, ExitScript, "SyntaxError"},
		{"top level throw", `throw new Error("boot failed"); function handleRequest() {}`, helloJSON, ExitScript, "boot failed"},
		{"missing handler", `var x = 1;`, helloJSON, ExitContract, "handleRequest"},
		{"bad request json", `function handleRequest() {}`, `{nope`, ExitUsage, "invalid request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, stderr := runProcess(t, tt.handler, tt.request, nil)
			if code != tt.wantCode {
				t.Errorf("exit code = %d, want %d", code, tt.wantCode)
			}
			if stdout != "" {
				t.Errorf("failed invocation wrote output: %q", stdout)
			}
			if !strings.Contains(stderr, tt.wantErr) {
				t.Errorf("stderr %q does not mention %q", stderr, tt.wantErr)
			}
		})
	}
}

func TestProcess_MissingArgs(t *testing.T) {
	var stderr bytes.Buffer
	code := Process{Stdin: strings.NewReader(""), Stdout: &bytes.Buffer{}, Stderr: &stderr, Args: []string{"guest"}}.Run()
	if code != ExitUsage {
		t.Errorf("exit code = %d", code)
	}
}
