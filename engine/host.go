package engine

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	edgeruntime "github.com/wippyai/edge-runtime"
)

// Value types accepted in host function signatures.
const (
	I32 = api.ValueTypeI32
	I64 = api.ValueTypeI64
)

// HostFunc implements an import. Params arrive on stack and results are
// written back to it, as in api.GoModuleFunc. Panicking traps the guest.
type HostFunc func(ctx context.Context, guest edgeruntime.Guest, stack []uint64)

// HostFunction is one function of a host module.
type HostFunction struct {
	Name    string
	Params  []api.ValueType
	Results []api.ValueType
	Func    HostFunc
}

// HostModule is a set of functions the guest imports from one module name.
type HostModule struct {
	Name      string
	Functions []HostFunction
}

func (f HostFunction) goFunc() api.GoModuleFunc {
	fn := f.Func
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		fn(ctx, NewGuest(mod), stack)
	}
}
