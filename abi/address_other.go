//go:build !wasip1

package abi

const addressBase = 0x10000

// address hands out synthetic addresses on native builds, where the guest
// code runs in tests against an in-process host.
func (a *Allocator) address(buf []byte) uint32 {
	if a.next == 0 {
		a.next = addressBase
	}
	ptr := a.next
	a.next += (uint32(len(buf)) + 7) &^ 7
	return ptr
}
