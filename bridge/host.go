package bridge

import (
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	edgeruntime "github.com/wippyai/edge-runtime"
	"github.com/wippyai/edge-runtime/abi"
	"github.com/wippyai/edge-runtime/engine"
	"github.com/wippyai/edge-runtime/errors"
)

// Import module and function names.
const (
	ModuleName        = "env"
	SendRequest       = "send_request"
	SendRequestPacked = "send_request_packed"
)

// HostModule returns the env module exposing both fetch conventions.
func (b *Bridge) HostModule() engine.HostModule {
	return engine.HostModule{
		Name: ModuleName,
		Functions: []engine.HostFunction{
			{
				Name:    SendRequest,
				Params:  []api.ValueType{engine.I32},
				Results: []api.ValueType{engine.I32},
				Func: func(ctx context.Context, g edgeruntime.Guest, stack []uint64) {
					stack[0] = uint64(b.SendRequest(ctx, g, api.DecodeU32(stack[0])))
				},
			},
			{
				Name:    SendRequestPacked,
				Params:  []api.ValueType{engine.I32, engine.I32},
				Results: []api.ValueType{engine.I64},
				Func: func(ctx context.Context, g edgeruntime.Guest, stack []uint64) {
					stack[0] = b.SendRequestPacked(ctx, g, api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
				},
			},
		},
	}
}

// SendRequest serves the length-stack convention: the request length is on
// the guest's length stack, the reply length is pushed back and the reply
// address returned.
func (b *Bridge) SendRequest(ctx context.Context, g edgeruntime.Guest, ptr uint32) uint32 {
	length, err := g.PopLength(ctx)
	if err != nil {
		panic(errors.Protocol(errors.PhaseBridge, "pop request length", err))
	}
	reply := b.Handle(ctx, b.read(g, ptr, length))
	out := b.place(ctx, g, reply)
	if err := g.PushLength(ctx, uint32(len(reply))); err != nil {
		panic(errors.Protocol(errors.PhaseBridge, "push reply length", err))
	}
	return out
}

// SendRequestPacked serves the explicit convention and returns the reply
// as abi.Pack(ptr, len).
func (b *Bridge) SendRequestPacked(ctx context.Context, g edgeruntime.Guest, ptr, length uint32) uint64 {
	reply := b.Handle(ctx, b.read(g, ptr, length))
	out := b.place(ctx, g, reply)
	return abi.Pack(out, uint32(len(reply)))
}

func (b *Bridge) read(g edgeruntime.Guest, ptr, length uint32) []byte {
	data, err := g.Memory().Read(ptr, length)
	if err != nil {
		panic(errors.Protocol(errors.PhaseBridge, "read request", err))
	}
	return data
}

// place copies reply into a guest allocation. Ownership passes to the guest.
func (b *Bridge) place(ctx context.Context, g edgeruntime.Guest, reply []byte) uint32 {
	ptr, err := g.Allocate(ctx, uint32(len(reply)))
	if err != nil {
		panic(errors.Protocol(errors.PhaseBridge, "allocate reply", err))
	}
	if err := g.Memory().Write(ptr, reply); err != nil {
		panic(errors.Protocol(errors.PhaseBridge, "write reply", err))
	}
	b.logger.Debug("reply placed", zap.Uint32("ptr", ptr), zap.Int("bytes", len(reply)))
	return ptr
}
