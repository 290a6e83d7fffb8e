// Package server exposes a handler over HTTP. Every request outside
// /healthz and /metrics becomes one invocation; the handler's Response is
// written back as-is, a rejection becomes a 500 with the rejection JSON and
// a guest failure a 502.
package server
