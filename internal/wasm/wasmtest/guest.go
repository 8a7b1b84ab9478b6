// Package wasmtest provides a small hand-assembled guest for tests.
package wasmtest

import (
	"github.com/woxQAQ/wbg-host/internal/wasm/wasmenc"
)

// Exports and layout of Guest.
const (
	ImportModule    = "wbg"
	Malloc          = "malloc"
	Entry           = "run"
	Spin            = "spin"
	Fail            = "fail"
	DestructorTable = "__wbindgen_export_2"

	// HeapStart is the first address malloc returns.
	HeapStart = 2048
	// DestructorOut is where the destructor stores a+b.
	DestructorOut = 8
	// Greeting is the string run returns.
	Greeting = "hello"
)

// Guest assembles a guest shaped like wasm-bindgen output:
//
//	import wbg.__wbindgen_string_new (i32, i32) -> i32      func 0
//	import wbg.__wbindgen_throw      (i32, i32) -> ()       func 1
//	malloc(size) -> ptr        bump allocator from 2048      func 2
//	run() -> handle            string_new("hello")           func 3
//	dtor(a, b)                 stores a+b at address 8       func 4, table[0]
//	spin()                     loops forever                 func 5
//	fail()                     throw("hello")                func 6
//
// "hello" lives at address 16.
func Guest() []byte {
	out := wasmenc.Header()
	out = append(out, wasmenc.Section(wasmenc.SectionType,
		wasmenc.FuncType(2, 1), // 0
		wasmenc.FuncType(1, 1), // 1
		wasmenc.FuncType(2, 0), // 2
		wasmenc.FuncType(0, 1), // 3
		wasmenc.FuncType(0, 0), // 4
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionImport,
		wasmenc.Import(ImportModule, "__wbindgen_string_new", wasmenc.ExternFunc, 0),
		wasmenc.Import(ImportModule, "__wbindgen_throw", wasmenc.ExternFunc, 2),
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionFunction, []byte{1}, []byte{3}, []byte{2}, []byte{4}, []byte{4})...)
	out = append(out, wasmenc.Section(wasmenc.SectionTable, []byte{wasmenc.FuncRef, 0x00, 0x01})...)
	out = append(out, wasmenc.Section(wasmenc.SectionMemory, []byte{0x00, 0x01})...)
	out = append(out, wasmenc.Section(wasmenc.SectionGlobal, []byte{wasmenc.I32, 0x01, wasmenc.OpI32Const, 0x80, 0x10, wasmenc.OpEnd})...)
	out = append(out, wasmenc.Section(wasmenc.SectionExport,
		wasmenc.Export("memory", wasmenc.ExternMemory, 0),
		wasmenc.Export(Malloc, wasmenc.ExternFunc, 2),
		wasmenc.Export(Entry, wasmenc.ExternFunc, 3),
		wasmenc.Export(Spin, wasmenc.ExternFunc, 5),
		wasmenc.Export(Fail, wasmenc.ExternFunc, 6),
		wasmenc.Export(DestructorTable, wasmenc.ExternTable, 0),
	)...)
	out = append(out, wasmenc.Section(wasmenc.SectionElement, []byte{0x00, wasmenc.OpI32Const, 0x00, wasmenc.OpEnd, 0x01, 0x04})...)
	out = append(out, wasmenc.Section(wasmenc.SectionCode,
		wasmenc.Body(
			wasmenc.OpGlobalGet, 0x00,
			wasmenc.OpGlobalGet, 0x00,
			wasmenc.OpLocalGet, 0x00,
			wasmenc.OpI32Add,
			wasmenc.OpGlobalSet, 0x00,
			wasmenc.OpEnd,
		),
		wasmenc.Body(
			wasmenc.OpI32Const, 0x10,
			wasmenc.OpI32Const, 0x05,
			wasmenc.OpCall, 0x00,
			wasmenc.OpEnd,
		),
		wasmenc.Body(
			wasmenc.OpI32Const, DestructorOut,
			wasmenc.OpLocalGet, 0x00,
			wasmenc.OpLocalGet, 0x01,
			wasmenc.OpI32Add,
			wasmenc.OpI32Store, 0x02, 0x00,
			wasmenc.OpEnd,
		),
		wasmenc.Body(
			wasmenc.OpLoop, wasmenc.BlockEmpty,
			wasmenc.OpBr, 0x00,
			wasmenc.OpEnd,
			wasmenc.OpEnd,
		),
		wasmenc.Body(
			wasmenc.OpI32Const, 0x10,
			wasmenc.OpI32Const, 0x05,
			wasmenc.OpCall, 0x01,
			wasmenc.OpEnd,
		),
	)...)
	data := []byte{0x00, wasmenc.OpI32Const, 0x10, wasmenc.OpEnd}
	data = append(data, wasmenc.Name(Greeting)...)
	out = append(out, wasmenc.Section(wasmenc.SectionData, data)...)
	return out
}
