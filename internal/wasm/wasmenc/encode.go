// Package wasmenc encodes small WebAssembly binaries: enough for the host's
// generated helper modules and for hand-assembled test guests.
package wasmenc

// Section ids.
const (
	SectionType     = 1
	SectionImport   = 2
	SectionFunction = 3
	SectionTable    = 4
	SectionMemory   = 5
	SectionGlobal   = 6
	SectionExport   = 7
	SectionElement  = 9
	SectionCode     = 10
	SectionData     = 11
)

// Value and external kinds.
const (
	I32     = 0x7f
	FuncRef = 0x70

	ExternFunc   = 0x00
	ExternTable  = 0x01
	ExternMemory = 0x02
)

// Opcodes.
const (
	OpLoop         = 0x03
	OpBr           = 0x0c
	OpCall         = 0x10
	OpCallIndirect = 0x11
	OpLocalGet     = 0x20
	OpGlobalGet    = 0x23
	OpGlobalSet    = 0x24
	OpI32Store     = 0x36
	OpI32Const     = 0x41
	OpI32Add       = 0x6a
	OpEnd          = 0x0b

	BlockEmpty = 0x40
)

const funcTypeTag = 0x60

// Header returns the magic number and version 1.
func Header() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
}

// ULEB128 encodes v as an unsigned LEB128 number.
func ULEB128(v uint32) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

// Name encodes a length-prefixed UTF-8 name. Data segment bytes use the same
// encoding.
func Name(s string) []byte {
	return append(ULEB128(uint32(len(s))), s...)
}

// Section encodes a section holding a vector of items.
func Section(id byte, items ...[]byte) []byte {
	payload := ULEB128(uint32(len(items)))
	for _, item := range items {
		payload = append(payload, item...)
	}
	out := append([]byte{id}, ULEB128(uint32(len(payload)))...)
	return append(out, payload...)
}

// FuncType encodes a function type with i32 params and results.
func FuncType(params, results int) []byte {
	out := []byte{funcTypeTag}
	out = append(out, ULEB128(uint32(params))...)
	for i := 0; i < params; i++ {
		out = append(out, I32)
	}
	out = append(out, ULEB128(uint32(results))...)
	for i := 0; i < results; i++ {
		out = append(out, I32)
	}
	return out
}

// Body encodes a code entry without locals.
func Body(code ...byte) []byte {
	body := append([]byte{0x00}, code...)
	return append(ULEB128(uint32(len(body))), body...)
}

// Import encodes an import entry of the given kind followed by desc.
func Import(module, name string, kind byte, desc ...byte) []byte {
	out := append(Name(module), Name(name)...)
	out = append(out, kind)
	return append(out, desc...)
}

// Export encodes an export entry.
func Export(name string, kind byte, index uint32) []byte {
	out := append(Name(name), kind)
	return append(out, ULEB128(index)...)
}
