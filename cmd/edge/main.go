// Command edge runs JavaScript edge handlers inside a WebAssembly sandbox.
//
//	edge run --guest guest.wasm --handler handler.js --request '{"method":"GET","url":"https://example.com/"}'
//	edge serve --guest guest.wasm --handler handler.js --addr :8080
//	edge inspect --guest guest.wasm
//	edge interactive --guest guest.wasm --handler handler.js
//
// Settings come from EDGE_* environment variables; flags override them.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
