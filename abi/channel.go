package abi

// Channel is one side's view of the protocol state: its allocator and the
// shared length stack.
type Channel struct {
	Alloc *Allocator
	Stack *LengthStack
}

// Default is the guest's channel. The wasip1 exports operate on it.
var Default = &Channel{Alloc: NewAllocator(), Stack: &LengthStack{}}

// Send copies data into a fresh allocation, pushes its length and returns
// the pointer to hand to the other side.
func (c *Channel) Send(data []byte) uint32 {
	ptr := c.Alloc.Allocate(uint32(len(data)))
	copy(c.Alloc.Bytes(ptr, uint32(len(data))), data)
	c.Stack.Push(uint32(len(data)))
	return ptr
}

// Receive pops the length for ptr, copies the payload out and releases the
// allocation.
func (c *Channel) Receive(ptr uint32) []byte {
	length := c.Stack.Pop()
	return c.Take(ptr, length)
}

// Take copies length bytes at ptr and releases the allocation.
func (c *Channel) Take(ptr, length uint32) []byte {
	out := make([]byte, length)
	copy(out, c.Alloc.Bytes(ptr, length))
	c.Alloc.Release(ptr, length)
	return out
}

// Place copies data into a fresh allocation without touching the stack.
func (c *Channel) Place(data []byte) uint32 {
	ptr := c.Alloc.Allocate(uint32(len(data)))
	copy(c.Alloc.Bytes(ptr, uint32(len(data))), data)
	return ptr
}

// Reset clears pending lengths. Outstanding allocations stay pinned.
func (c *Channel) Reset() {
	c.Stack.Reset()
}
