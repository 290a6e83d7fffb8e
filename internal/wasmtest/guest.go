package wasmtest

// Import names of the fetch functions a guest may use.
const (
	ImportPacked      = "send_request_packed"
	ImportLengthStack = "send_request"
)

// Guest describes a minimal edge guest: its _start hands Request to the
// named env import once and discards the reply. It exports a bump allocator
// and a single-slot length stack.
type Guest struct {
	Request []byte
	Import  string
}

const heapBase = 4096

// Encode assembles the guest module.
func (g Guest) Encode() []byte {
	fetchType := FuncType{Params: []byte{I32, I32}, Results: []byte{I64}}
	start := Seq(I32Const(0), I32Const(int32(len(g.Request))), Call(0), Drop())
	if g.Import == ImportLengthStack {
		fetchType = FuncType{Params: []byte{I32}, Results: []byte{I32}}
		start = Seq(I32Const(int32(len(g.Request))), Call(4), I32Const(0), Call(0), Drop())
	}

	return (&Module{
		Types: []FuncType{
			fetchType,
			{},
			{Params: []byte{I32}, Results: []byte{I32}},
			{Params: []byte{I32, I32}},
			{Params: []byte{I32}},
			{Results: []byte{I32}},
		},
		Imports: []Import{{Module: "env", Name: g.Import, Type: 0}},
		Funcs: []Func{
			{Type: 1, Body: start},
			{Type: 2, Body: Seq(GlobalGet(0), GlobalGet(0), LocalGet(0), I32Add(), GlobalSet(0))},
			{Type: 3},
			{Type: 4, Body: Seq(LocalGet(0), GlobalSet(1))},
			{Type: 5, Body: GlobalGet(1)},
		},
		Memory:  1,
		Globals: []Global{{Init: heapBase}, {Init: 0}},
		Exports: []Export{
			{Name: "memory", Kind: KindMemory, Index: 0},
			{Name: "_start", Kind: KindFunc, Index: 1},
			{Name: "allocate", Kind: KindFunc, Index: 2},
			{Name: "release", Kind: KindFunc, Index: 3},
			{Name: "push_length", Kind: KindFunc, Index: 4},
			{Name: "pop_length", Kind: KindFunc, Index: 5},
		},
		Data: []Data{{Offset: 0, Bytes: g.Request}},
	}).Encode()
}
