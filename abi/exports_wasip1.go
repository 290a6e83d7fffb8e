//go:build wasip1

package abi

// Export names are part of the host contract.

//go:wasmexport allocate
func exportAllocate(length uint32) uint32 {
	return Default.Alloc.Allocate(length)
}

//go:wasmexport release
func exportRelease(ptr, length uint32) {
	Default.Alloc.Release(ptr, length)
}

//go:wasmexport push_length
func exportPushLength(v uint32) {
	Default.Stack.Push(v)
}

//go:wasmexport pop_length
func exportPopLength() uint32 {
	return Default.Stack.Pop()
}
