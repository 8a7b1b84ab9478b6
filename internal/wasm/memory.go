package wasm

import (
	"github.com/tetratelabs/wazero/api"
)

// Memory adapts a guest's exported memory to the bridge.
//
// Buffer returns a slice aliasing the whole memory. wazero replaces the backing
// array when memory grows, so a new buffer identity signals growth to the
// bridge's view cache.
type Memory struct {
	mem api.Memory
}

// NewMemory creates a memory adapter. The module must export a memory.
func NewMemory(module api.Module) *Memory {
	return &Memory{mem: module.Memory()}
}

// Buffer returns the current memory contents.
func (m *Memory) Buffer() []byte {
	buf, ok := m.mem.Read(0, m.mem.Size())
	if !ok {
		return nil
	}
	return buf
}

// Size returns the memory size in bytes.
func (m *Memory) Size() uint32 {
	return m.mem.Size()
}

// ReadBytes copies length bytes at ptr.
func (m *Memory) ReadBytes(ptr, length uint32) ([]byte, error) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return nil, &MemoryAccessError{Operation: "read", Address: ptr, Length: length}
	}
	return append([]byte(nil), buf...), nil
}

// ReadString reads length bytes at ptr as a string.
func (m *Memory) ReadString(ptr, length uint32) (string, error) {
	buf, ok := m.mem.Read(ptr, length)
	if !ok {
		return "", &MemoryAccessError{Operation: "read-string", Address: ptr, Length: length}
	}
	return string(buf), nil
}

// WriteBytes writes data at ptr.
func (m *Memory) WriteBytes(ptr uint32, data []byte) error {
	if !m.mem.Write(ptr, data) {
		return &MemoryAccessError{Operation: "write", Address: ptr, Length: uint32(len(data))}
	}
	return nil
}
