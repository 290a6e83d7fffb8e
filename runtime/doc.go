// Package runtime supervises edge function invocations.
//
// A Supervisor owns the wazero engine, the compiled guest and the fetch
// bridge. It is built once and runs one invocation at a time:
//
//	sup, err := runtime.New(ctx, guestWasm, runtime.Options{
//	    HTTP:    httpclient.DefaultConfig(),
//	    EnvPass: []string{"API_*"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer sup.Close(ctx)
//
//	out, err := sup.Invoke(ctx, runtime.Invocation{
//	    Script:  handlerSource,
//	    Request: wire.Request{Method: "GET", URL: "https://example.com/"},
//	})
//
// # Invocation
//
// Each invocation gets a fresh guest instance. The polyfill and the
// normalized handler source are written to the guest's stdin, the request
// JSON is passed as argv[1] and stdout is returned verbatim. Guest stderr is
// logged and, on failure, its tail is attached to the error.
//
// # Environment
//
// Host variables whose names match an EnvPass pattern (doublestar syntax,
// "*" for all) are copied into the guest environment, where the handler sees
// them as a frozen process.env.
//
// # Errors
//
// A guest that exits non-zero yields an errors.KindGuestExit error whose
// Value is the exit code; ExitReason describes the code. Bridge protocol
// violations trap the instance and surface as errors.KindProtocol.
package runtime
