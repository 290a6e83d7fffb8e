//go:build wasip1

// Command panicguest pops an empty length stack, aborting the way a
// marshaling violation aborts a real guest.
package main

import "github.com/wippyai/edge-runtime/abi"

func main() {
	abi.Default.Stack.Pop()
}
