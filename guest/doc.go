// Package guest is the sandboxed side of the edge runtime.
//
// A Runtime wraps one goja JavaScript engine. Install registers the native
// bindings the Fetch API polyfill and handler code rely on: console,
// ___logger, ___parseUrl, the UTF-8 codec, ___fetcher and process.env.
// Invoke calls the handler through the execution trampoline and returns the
// JSON bytes that become the process output.
//
// On wasip1 the fetch transport is the host import env.send_request_packed
// (or env.send_request when the length stack convention is selected). Native
// builds take an injected Transport, which is how the package is tested.
package guest
