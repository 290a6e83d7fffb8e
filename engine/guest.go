package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	edgeruntime "github.com/wippyai/edge-runtime"
	"github.com/wippyai/edge-runtime/errors"
)

// Guest export names driven by host functions.
const (
	ExportAllocate   = "allocate"
	ExportRelease    = "release"
	ExportPushLength = "push_length"
	ExportPopLength  = "pop_length"
	ExportMemory     = "memory"
	ExportStart      = "_start"
)

// RequiredExports is the surface LoadModule checks for.
var RequiredExports = []string{
	ExportStart,
	ExportMemory,
	ExportAllocate,
	ExportRelease,
	ExportPushLength,
	ExportPopLength,
}

// guest adapts a running wazero module to edgeruntime.Guest.
type guest struct {
	mod api.Module
	mem *Memory
}

// NewGuest wraps mod, typically the caller passed to a host function.
func NewGuest(mod api.Module) edgeruntime.Guest {
	return &guest{mod: mod, mem: &Memory{mem: mod.Memory()}}
}

func (g *guest) Memory() edgeruntime.Memory {
	return g.mem
}

func (g *guest) Allocate(ctx context.Context, length uint32) (uint32, error) {
	res, err := g.call(ctx, ExportAllocate, uint64(length))
	if err != nil {
		return 0, errors.AllocationFailed(errors.PhaseBridge, length, err)
	}
	return uint32(res[0]), nil
}

func (g *guest) Release(ctx context.Context, ptr, length uint32) error {
	_, err := g.call(ctx, ExportRelease, uint64(ptr), uint64(length))
	return err
}

func (g *guest) PushLength(ctx context.Context, value uint32) error {
	_, err := g.call(ctx, ExportPushLength, uint64(value))
	return err
}

func (g *guest) PopLength(ctx context.Context) (uint32, error) {
	res, err := g.call(ctx, ExportPopLength)
	if err != nil {
		return 0, err
	}
	return uint32(res[0]), nil
}

func (g *guest) call(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	fn := g.mod.ExportedFunction(name)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseBridge, "export", name)
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.New(errors.PhaseBridge, errors.KindProtocol).
			Export(name).
			Cause(err).
			Build()
	}
	if want := len(fn.Definition().ResultTypes()); len(res) != want {
		return nil, errors.New(errors.PhaseBridge, errors.KindProtocol).
			Export(name).
			Detail("expected %d results, got %d", want, len(res)).
			Build()
	}
	return res, nil
}

// Memory wraps wazero memory with bounds-checked, copying access.
type Memory struct {
	mem api.Memory
}

// Read returns a copy of length bytes at offset.
func (m *Memory) Read(offset, length uint32) ([]byte, error) {
	if m.mem == nil {
		return nil, errors.NotInitialized(errors.PhaseBridge, "memory")
	}
	data, ok := m.mem.Read(offset, length)
	if !ok {
		return nil, errors.OutOfBounds(errors.PhaseBridge, offset, length, m.mem.Size())
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Write(offset uint32, data []byte) error {
	if m.mem == nil {
		return errors.NotInitialized(errors.PhaseBridge, "memory")
	}
	if !m.mem.Write(offset, data) {
		return errors.OutOfBounds(errors.PhaseBridge, offset, uint32(len(data)), m.mem.Size())
	}
	return nil
}

func (m *Memory) ReadU32(offset uint32) (uint32, error) {
	if m.mem == nil {
		return 0, errors.NotInitialized(errors.PhaseBridge, "memory")
	}
	v, ok := m.mem.ReadUint32Le(offset)
	if !ok {
		return 0, errors.OutOfBounds(errors.PhaseBridge, offset, 4, m.mem.Size())
	}
	return v, nil
}

func (m *Memory) WriteU32(offset uint32, value uint32) error {
	if m.mem == nil {
		return errors.NotInitialized(errors.PhaseBridge, "memory")
	}
	if !m.mem.WriteUint32Le(offset, value) {
		return errors.OutOfBounds(errors.PhaseBridge, offset, 4, m.mem.Size())
	}
	return nil
}

func (m *Memory) Size() uint32 {
	if m.mem == nil {
		return 0
	}
	return m.mem.Size()
}

var _ edgeruntime.Memory = (*Memory)(nil)
