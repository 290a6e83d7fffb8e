// Package wasmtest assembles small core wasm modules for tests that need a
// guest without building one with the Go toolchain.
package wasmtest

// Value types.
const (
	I32 byte = 0x7f
	I64 byte = 0x7e
)

// Export kinds.
const (
	KindFunc   byte = 0x00
	KindMemory byte = 0x02
)

const (
	sectionType   = 1
	sectionImport = 2
	sectionFunc   = 3
	sectionMemory = 5
	sectionGlobal = 6
	sectionExport = 7
	sectionCode   = 10
	sectionData   = 11
)

// FuncType is a function signature.
type FuncType struct {
	Params  []byte
	Results []byte
}

// Import is a function import.
type Import struct {
	Module string
	Name   string
	Type   uint32
}

// Func is a defined function. Body holds the instructions without the
// trailing end opcode.
type Func struct {
	Type uint32
	Body []byte
}

// Global is a mutable i32 global with a constant initializer.
type Global struct {
	Init int32
}

// Export names a function or memory index.
type Export struct {
	Name  string
	Kind  byte
	Index uint32
}

// Data is an active data segment in memory 0.
type Data struct {
	Offset int32
	Bytes  []byte
}

// Module is the subset of the binary format the tests need.
type Module struct {
	Types   []FuncType
	Imports []Import
	Funcs   []Func
	Memory  uint32 // minimum pages; 0 means no memory
	Globals []Global
	Exports []Export
	Data    []Data
}

// Encode returns the module binary.
func (m *Module) Encode() []byte {
	out := &buffer{bytes: []byte{0x00, 'a', 's', 'm', 0x01, 0x00, 0x00, 0x00}}

	if len(m.Types) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Types)))
		for _, t := range m.Types {
			sec.byte(0x60)
			sec.u32(uint32(len(t.Params)))
			sec.raw(t.Params)
			sec.u32(uint32(len(t.Results)))
			sec.raw(t.Results)
		}
		out.section(sectionType, sec)
	}
	if len(m.Imports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Imports)))
		for _, imp := range m.Imports {
			sec.name(imp.Module)
			sec.name(imp.Name)
			sec.byte(KindFunc)
			sec.u32(imp.Type)
		}
		out.section(sectionImport, sec)
	}
	if len(m.Funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			sec.u32(f.Type)
		}
		out.section(sectionFunc, sec)
	}
	if m.Memory > 0 {
		sec := &buffer{}
		sec.u32(1)
		sec.byte(0x00)
		sec.u32(m.Memory)
		out.section(sectionMemory, sec)
	}
	if len(m.Globals) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.byte(I32)
			sec.byte(0x01)
			sec.raw(I32Const(g.Init))
			sec.byte(opEnd)
		}
		out.section(sectionGlobal, sec)
	}
	if len(m.Exports) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Exports)))
		for _, e := range m.Exports {
			sec.name(e.Name)
			sec.byte(e.Kind)
			sec.u32(e.Index)
		}
		out.section(sectionExport, sec)
	}
	if len(m.Funcs) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Funcs)))
		for _, f := range m.Funcs {
			body := &buffer{}
			body.u32(0) // no locals
			body.raw(f.Body)
			body.byte(opEnd)
			sec.u32(uint32(len(body.bytes)))
			sec.raw(body.bytes)
		}
		out.section(sectionCode, sec)
	}
	if len(m.Data) > 0 {
		sec := &buffer{}
		sec.u32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.byte(0x00)
			sec.raw(I32Const(d.Offset))
			sec.byte(opEnd)
			sec.u32(uint32(len(d.Bytes)))
			sec.raw(d.Bytes)
		}
		out.section(sectionData, sec)
	}
	return out.bytes
}

type buffer struct {
	bytes []byte
}

func (b *buffer) byte(v byte) { b.bytes = append(b.bytes, v) }

func (b *buffer) raw(v []byte) { b.bytes = append(b.bytes, v...) }

func (b *buffer) u32(v uint32) { b.bytes = appendU32(b.bytes, v) }

func (b *buffer) name(s string) {
	b.u32(uint32(len(s)))
	b.raw([]byte(s))
}

func (b *buffer) section(id byte, content *buffer) {
	b.byte(id)
	b.u32(uint32(len(content.bytes)))
	b.raw(content.bytes)
}

// appendU32 appends unsigned LEB128.
func appendU32(dst []byte, v uint32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		dst = append(dst, c)
		if v == 0 {
			return dst
		}
	}
}

// appendI32 appends signed LEB128.
func appendI32(dst []byte, v int32) []byte {
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && c&0x40 == 0) || (v == -1 && c&0x40 != 0) {
			return append(dst, c)
		}
		dst = append(dst, c|0x80)
	}
}
