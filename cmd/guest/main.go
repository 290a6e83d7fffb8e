// Command guest is the wasm side of the edge runtime. Build it with
//
//	GOOS=wasip1 GOARCH=wasm go build -o guest.wasm ./cmd/guest
//
// The handler script (polyfill included) is read from stdin and the request
// JSON is taken from the first argument.
package main

import (
	"os"

	"github.com/wippyai/edge-runtime/guest"
)

func main() {
	os.Exit(guest.Process{
		Stdin:   os.Stdin,
		Stdout:  os.Stdout,
		Stderr:  os.Stderr,
		Args:    os.Args,
		Environ: os.Environ(),
	}.Run())
}
