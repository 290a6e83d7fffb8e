package wasmtest

const (
	opEnd       = 0x0b
	opCall      = 0x10
	opDrop      = 0x1a
	opLocalGet  = 0x20
	opGlobalGet = 0x23
	opGlobalSet = 0x24
	opI32Const  = 0x41
	opI32Add    = 0x6a
	opI64Store  = 0x37
)

// I32Const pushes v.
func I32Const(v int32) []byte { return appendI32([]byte{opI32Const}, v) }

// LocalGet pushes local idx.
func LocalGet(idx uint32) []byte { return appendU32([]byte{opLocalGet}, idx) }

// GlobalGet pushes global idx.
func GlobalGet(idx uint32) []byte { return appendU32([]byte{opGlobalGet}, idx) }

// GlobalSet pops into global idx.
func GlobalSet(idx uint32) []byte { return appendU32([]byte{opGlobalSet}, idx) }

// Call calls function idx.
func Call(idx uint32) []byte { return appendU32([]byte{opCall}, idx) }

// I64Store stores an i64 at the address below it with no offset.
func I64Store() []byte { return []byte{opI64Store, 0x03, 0x00} }

// Drop discards the top of the stack.
func Drop() []byte { return []byte{opDrop} }

// I32Add adds the two i32 values on top of the stack.
func I32Add() []byte { return []byte{opI32Add} }

// Seq concatenates instruction sequences.
func Seq(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}
