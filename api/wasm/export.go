package wasm

// This file defines the export contract for guests.
// Guests are compiled with a wasm-bindgen style toolchain and must export:
//
//	memory                       linear memory (exactly one)
//	run() -> i32                 entry point; returns a handle the host takes
//	__wbindgen_malloc(size) -> ptr
//	__wbindgen_realloc(ptr, old, new) -> ptr     optional
//	__wbindgen_exn_store(handle)                 optional
//	__wbindgen_export_2                          table of closure destructors
//
// NOTE: uint32 is used for pointers and lengths because WebAssembly uses a 32-bit
// linear memory model. All Wasm memory addresses are represented as 32-bit integers.

// Default export names. A guest bundle manifest may override each of them.
// The entry and the destructor table have no default and must be named.
const (
	ExportMalloc   = "__wbindgen_malloc"
	ExportRealloc  = "__wbindgen_realloc"
	ExportExnStore = "__wbindgen_exn_store"
)

// ImportModule is the module name guests import host capabilities from.
const ImportModule = "wbg"
