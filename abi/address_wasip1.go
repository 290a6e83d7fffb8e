//go:build wasip1

package abi

import "unsafe"

// address is the slice's location in linear memory.
func (a *Allocator) address(buf []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}
