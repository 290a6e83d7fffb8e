// Package edgeruntime runs JavaScript request handlers inside a WebAssembly sandbox.
//
// A handler script is evaluated by a guest program (cmd/guest) compiled for
// wasip1. The guest embeds a JavaScript engine, installs a small native surface
// (console, URL parsing, UTF-8 codec, fetch) and invokes the script's
// handleRequest function once. Outbound HTTP performed by the handler is
// delegated to the supervising host process through an imported function.
//
// # Architecture Overview
//
//	edgeruntime/         Root package with the Memory and Guest interfaces
//	├── abi/             Linear memory marshaling: allocator, length stack, packing
//	├── wire/            JSON shapes crossing the sandbox boundary
//	├── guest/           Guest side: bindings, fetch, execution trampoline
//	├── polyfill/        Fetch API object model evaluated before the handler
//	├── bridge/          Host side of fetch: send_request imports
//	├── httpclient/      Outbound HTTP client and error classification
//	├── engine/          wazero integration: compile, WASI, host modules
//	├── runtime/         Supervisor: compile once, instantiate per invocation
//	├── config/          Environment configuration
//	├── server/          HTTP front end turning requests into invocations
//	└── errors/          Structured error types
//
// # Quick Start
//
//	sup, err := runtime.New(ctx, guestWasm, runtime.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sup.Close(ctx)
//
//	out, err := sup.Invoke(ctx, runtime.Invocation{
//	    Script:  handlerSource,
//	    Request: wire.Request{Method: "GET", URL: "https://example.com"},
//	})
//
// # Boundary Protocol
//
// The guest exports allocate, release, push_length and pop_length. The host
// implements send_request and send_request_packed in the "env" module. With
// send_request the payload length travels out of band on the length stack;
// send_request_packed carries pointer and length explicitly and returns them
// packed into one i64.
package edgeruntime
