package abi

import "sync"

// Allocator pins byte slices handed across the boundary so they stay alive
// while the other side holds their address.
type Allocator struct {
	pinned map[uint32][]byte
	next   uint32
	mu     sync.Mutex
}

// NewAllocator creates an empty allocator.
func NewAllocator() *Allocator {
	return &Allocator{pinned: make(map[uint32][]byte)}
}

// Allocate reserves length bytes and returns their address. A zero length
// request still yields a distinct non-zero address.
func (a *Allocator) Allocate(length uint32) uint32 {
	size := length
	if size == 0 {
		size = 1
	}
	buf := make([]byte, size)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pinned == nil {
		a.pinned = make(map[uint32][]byte)
	}
	ptr := a.address(buf)
	a.pinned[ptr] = buf[:length]
	return ptr
}

// Release unpins an allocation. The length must match the allocated size.
func (a *Allocator) Release(ptr, length uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.pinned[ptr]
	if !ok {
		panic(&ProtocolError{Op: "release", Detail: "unknown pointer"})
	}
	if uint32(len(buf)) != length {
		panic(&ProtocolError{Op: "release", Detail: "size does not match allocation"})
	}
	delete(a.pinned, ptr)
}

// Bytes returns the first length bytes of the allocation at ptr.
func (a *Allocator) Bytes(ptr, length uint32) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.pinned[ptr]
	if !ok {
		panic(&ProtocolError{Op: "read", Detail: "unknown pointer"})
	}
	if length > uint32(len(buf)) {
		panic(&ProtocolError{Op: "read", Detail: "length exceeds allocation"})
	}
	return buf[:length]
}

// Live returns the number of outstanding allocations.
func (a *Allocator) Live() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pinned)
}
