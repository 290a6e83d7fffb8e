// Package polyfill ships the Fetch API object model evaluated ahead of every
// handler script: Headers, Request, Response, fetch, URL, URLSearchParams,
// Blob, TextEncoder and TextDecoder, built on the guest's native bindings.
package polyfill

import (
	_ "embed"
	"regexp"
	"strings"
)

//go:embed web-platform-apis.js
var source string

// Source returns the polyfill script.
func Source() string {
	return source
}

var (
	exportFunction = regexp.MustCompile(`(?m)^(\s*)export\s+((?:async\s+)?function\s*\*?\s*handleRequest\b)`)
	exportBinding  = regexp.MustCompile(`(?m)^(\s*)export\s+(?:const|let|var)\s+handleRequest\s*=`)
)

// NormalizeHandler rewrites an exported handleRequest declaration so the
// script evaluates as a classic script and the handler lands on globalThis.
func NormalizeHandler(src string) string {
	src = exportFunction.ReplaceAllString(src, "$1$2")
	return exportBinding.ReplaceAllString(src, "${1}globalThis.handleRequest =")
}

// Bundle concatenates the polyfill and the normalized handler source.
func Bundle(handler string) string {
	var b strings.Builder
	b.Grow(len(source) + len(handler) + 1)
	b.WriteString(source)
	b.WriteByte('\n')
	b.WriteString(NormalizeHandler(handler))
	return b.String()
}
