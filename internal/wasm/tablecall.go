package wasm

import (
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmenc"
)

// Destructors of guest closures live in the guest's exported function table.
// wazero cannot call a table entry directly, so each session instantiates a
// tiny helper module that imports the table and exports
//
//	call(index, a, b) = call_indirect (type (i32, i32) -> ()) index
//
// The helper is generated per session because its import names the guest
// instance.

const (
	tableCallFn  = "call"
	tableCallSfx = "-tables"
)

// tableCallerModule builds the helper for the table exported as table by module.
func tableCallerModule(module, table string) []byte {
	out := wasmenc.Header()
	out = append(out, wasmenc.Section(wasmenc.SectionType,
		wasmenc.FuncType(2, 0),
		wasmenc.FuncType(3, 0),
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionImport,
		wasmenc.Import(module, table, wasmenc.ExternTable, wasmenc.FuncRef, 0x00, 0x00),
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionFunction, []byte{0x01})...)
	out = append(out, wasmenc.Section(wasmenc.SectionExport,
		wasmenc.Export(tableCallFn, wasmenc.ExternFunc, 0),
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionCode, wasmenc.Body(
		wasmenc.OpLocalGet, 0x01,
		wasmenc.OpLocalGet, 0x02,
		wasmenc.OpLocalGet, 0x00,
		wasmenc.OpCallIndirect, 0x00, 0x00,
		wasmenc.OpEnd,
	))...)
	return out
}
