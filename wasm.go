package edgeruntime

import "context"

// Memory represents WASM linear memory
type Memory interface {
	Read(offset uint32, length uint32) ([]byte, error)
	Write(offset uint32, data []byte) error
	ReadU32(offset uint32) (uint32, error)
	WriteU32(offset uint32, value uint32) error
	Size() uint32
}

// Guest is the export surface a host function drives while the guest is
// blocked inside an import call.
type Guest interface {
	Memory() Memory
	Allocate(ctx context.Context, length uint32) (uint32, error)
	Release(ctx context.Context, ptr, length uint32) error
	PushLength(ctx context.Context, value uint32) error
	PopLength(ctx context.Context) (uint32, error)
}
