// Package abi implements the linear memory marshaling protocol shared by the
// guest and the host.
//
// The host import send_request takes a single pointer. Its length travels out
// of band on a LengthStack: the sender pushes the byte length immediately
// before handing the pointer over, and the receiver pops it before reading
// any bytes. Allocations are pinned by an Allocator until the side that no
// longer needs them calls release.
//
// The explicit convention packs a pointer and a length into one uint64 with
// Pack and Unpack, so no auxiliary stack is involved.
//
// Stack overflow, underflow and unknown releases are protocol violations.
// They panic with *ProtocolError and are never returned as ordinary errors.
package abi
