package abi

// Pack combines a pointer and a length into the i64 returned by explicit
// convention imports. The pointer occupies the high 32 bits.
func Pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unpack splits a value produced by Pack.
func Unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}
