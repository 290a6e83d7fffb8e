package abi

import "sync"

// StackCapacity is the number of pending lengths a LengthStack can hold.
const StackCapacity = 256

// LengthStack is a fixed capacity LIFO of pending transfer lengths.
type LengthStack struct {
	entries [StackCapacity]uint32
	n       int
	mu      sync.Mutex
}

// Push records the length of a buffer about to be handed to the other side.
func (s *LengthStack) Push(v uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == StackCapacity {
		panic(&ProtocolError{Op: "push_length", Detail: "length stack overflow"})
	}
	s.entries[s.n] = v
	s.n++
}

// Pop removes and returns the most recently pushed length.
func (s *LengthStack) Pop() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.n == 0 {
		panic(&ProtocolError{Op: "pop_length", Detail: "length stack underflow"})
	}
	s.n--
	return s.entries[s.n]
}

// Len returns the number of pending lengths.
func (s *LengthStack) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n
}

// Reset drops all pending lengths.
func (s *LengthStack) Reset() {
	s.mu.Lock()
	s.n = 0
	s.mu.Unlock()
}
