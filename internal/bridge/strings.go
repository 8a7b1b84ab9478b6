package bridge

import (
	"context"
	"fmt"
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Allocator allocates guest memory.
type Allocator interface {
	Malloc(ctx context.Context, size uint32) (uint32, error)
}

// Reallocator is implemented by allocators that can resize an allocation.
// When present, string encoding takes the ASCII fast path.
type Reallocator interface {
	Realloc(ctx context.Context, ptr, oldSize, newSize uint32) (uint32, error)
}

// Codec moves UTF-8 text between host strings and guest memory.
//
// The length of the most recent encode is kept in a single scratch slot and
// must be read with VectorLen before the next encode.
type Codec struct {
	views     *Views
	vectorLen uint32
}

// NewCodec creates a codec over the given views.
func NewCodec(views *Views) *Codec {
	return &Codec{views: views}
}

// DecodeString reads length bytes at ptr as strict UTF-8. A leading byte order
// mark is kept as part of the string.
func (c *Codec) DecodeString(ptr, length uint32) (string, error) {
	mem := c.views.Uint8()
	end := uint64(ptr) + uint64(length)
	if end > uint64(mem.Len()) {
		return "", &MemoryAccessError{Operation: "decode", Address: ptr, Length: length}
	}
	if length == 0 {
		return "", nil
	}

	out, _, err := transform.Bytes(encoding.UTF8Validator, mem.Subarray(int(ptr), int(end)))
	if err != nil {
		return "", &DecodeError{Ptr: ptr, Length: length, Err: err}
	}
	return string(out), nil
}

// EncodeString writes s into memory obtained from alloc and returns its
// address. The byte length is available from VectorLen afterwards.
func (c *Codec) EncodeString(ctx context.Context, s string, alloc Allocator) (uint32, error) {
	realloc, ok := alloc.(Reallocator)
	if !ok {
		return c.encodeFull(ctx, s, alloc)
	}

	size := utf16Len(s)
	ptr, err := alloc.Malloc(ctx, size)
	if err != nil {
		return 0, err
	}

	mem := c.views.Uint8()
	if uint64(ptr)+uint64(size) > uint64(mem.Len()) {
		return 0, &MemoryAccessError{Operation: "encode", Address: ptr, Length: size}
	}

	offset := uint32(0)
	for ; int(offset) < len(s); offset++ {
		b := s[offset]
		if b > 0x7f {
			break
		}
		mem.Set(int(ptr+offset), b)
	}

	if int(offset) != len(s) {
		rest := s[offset:]
		newSize := offset + utf16Len(rest)*3

		ptr, err = realloc.Realloc(ctx, ptr, size, newSize)
		if err != nil {
			return 0, err
		}

		encoded, err := encodeUTF8(rest)
		if err != nil {
			return 0, err
		}
		if uint32(len(encoded)) > newSize-offset {
			return 0, fmt.Errorf("encoded %d bytes into a %d byte reservation", len(encoded), newSize-offset)
		}

		// Realloc may have grown memory; fetch a fresh window.
		mem = c.views.Uint8()
		if uint64(ptr)+uint64(newSize) > uint64(mem.Len()) {
			return 0, &MemoryAccessError{Operation: "encode", Address: ptr, Length: newSize}
		}
		copy(mem.Subarray(int(ptr+offset), int(ptr+newSize)), encoded)
		offset += uint32(len(encoded))
	}

	c.vectorLen = offset
	return ptr, nil
}

// VectorLen returns the byte length recorded by the most recent EncodeString.
func (c *Codec) VectorLen() uint32 {
	return c.vectorLen
}

func (c *Codec) encodeFull(ctx context.Context, s string, alloc Allocator) (uint32, error) {
	buf, err := encodeUTF8(s)
	if err != nil {
		return 0, err
	}

	ptr, err := alloc.Malloc(ctx, uint32(len(buf)))
	if err != nil {
		return 0, err
	}

	mem := c.views.Uint8()
	end := uint64(ptr) + uint64(len(buf))
	if end > uint64(mem.Len()) {
		return 0, &MemoryAccessError{Operation: "encode", Address: ptr, Length: uint32(len(buf))}
	}
	copy(mem.Subarray(int(ptr), int(end)), buf)

	c.vectorLen = uint32(len(buf))
	return ptr, nil
}

// encodeUTF8 returns s as well-formed UTF-8, replacing ill-formed bytes with U+FFFD.
func encodeUTF8(s string) ([]byte, error) {
	out, err := unicode.UTF8.NewEncoder().String(s)
	if err != nil {
		return nil, err
	}
	return []byte(out), nil
}

// utf16Len counts s in UTF-16 code units; every ill-formed byte counts as one.
func utf16Len(s string) uint32 {
	n := uint32(0)
	for _, r := range s {
		if l := utf16.RuneLen(r); l > 1 {
			n += uint32(l)
		} else {
			n++
		}
	}
	return n
}
