package bridge

import (
	"encoding/binary"
	"math"
)

// LinearMemory is the guest's flat byte-addressable memory.
type LinearMemory interface {
	// Buffer returns the whole memory. A slice obtained before the memory grew
	// must not be used afterwards.
	Buffer() []byte
}

// Views caches one typed window per element type over guest memory. Each
// accessor rebuilds its window when the memory buffer changed identity.
type Views struct {
	mem LinearMemory

	u8  []byte
	i32 []byte
	f32 []byte
	f64 []byte

	rebuilds int
}

// NewViews creates view caches over mem.
func NewViews(mem LinearMemory) *Views {
	return &Views{mem: mem}
}

// Uint8 returns a byte window over current memory.
func (v *Views) Uint8() Uint8View {
	v.u8 = v.refresh(v.u8)
	return Uint8View{buf: v.u8}
}

// Int32 returns an int32 window over current memory.
func (v *Views) Int32() Int32View {
	v.i32 = v.refresh(v.i32)
	return Int32View{buf: v.i32}
}

// Float32 returns a float32 window over current memory.
func (v *Views) Float32() Float32View {
	v.f32 = v.refresh(v.f32)
	return Float32View{buf: v.f32}
}

// Float64 returns a float64 window over current memory.
func (v *Views) Float64() Float64View {
	v.f64 = v.refresh(v.f64)
	return Float64View{buf: v.f64}
}

// Rebuilds returns how many windows were rebuilt since creation.
func (v *Views) Rebuilds() int {
	return v.rebuilds
}

func (v *Views) refresh(cached []byte) []byte {
	cur := v.mem.Buffer()
	if cached != nil && sameBuffer(cached, cur) {
		return cached
	}
	v.rebuilds++
	return cur
}

func sameBuffer(a, b []byte) bool {
	if len(a) != len(b) || cap(a) != cap(b) {
		return false
	}
	if len(a) == 0 {
		return true
	}
	return &a[0] == &b[0]
}

// Uint8View is a byte window.
type Uint8View struct {
	buf []byte
}

// Len returns the number of elements.
func (w Uint8View) Len() int { return len(w.buf) }

// At returns element i.
func (w Uint8View) At(i int) uint8 { return w.buf[i] }

// Set stores element i.
func (w Uint8View) Set(i int, x uint8) { w.buf[i] = x }

// Subarray returns the bytes [start, end) aliasing guest memory.
func (w Uint8View) Subarray(start, end int) []byte { return w.buf[start:end:end] }

// Int32View is a little-endian int32 window; element i covers bytes [4i, 4i+4).
type Int32View struct {
	buf []byte
}

// Len returns the number of elements.
func (w Int32View) Len() int { return len(w.buf) / 4 }

// At returns element i.
func (w Int32View) At(i int) int32 {
	return int32(binary.LittleEndian.Uint32(w.buf[i*4:]))
}

// Set stores element i.
func (w Int32View) Set(i int, x int32) {
	binary.LittleEndian.PutUint32(w.buf[i*4:], uint32(x))
}

// Float32View is a little-endian float32 window.
type Float32View struct {
	buf []byte
}

// Len returns the number of elements.
func (w Float32View) Len() int { return len(w.buf) / 4 }

// At returns element i.
func (w Float32View) At(i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(w.buf[i*4:]))
}

// Set stores element i.
func (w Float32View) Set(i int, x float32) {
	binary.LittleEndian.PutUint32(w.buf[i*4:], math.Float32bits(x))
}

// Slice copies n elements starting at element i.
func (w Float32View) Slice(i, n int) []float32 {
	out := make([]float32, n)
	for k := range out {
		out[k] = w.At(i + k)
	}
	return out
}

// Float64View is a little-endian float64 window.
type Float64View struct {
	buf []byte
}

// Len returns the number of elements.
func (w Float64View) Len() int { return len(w.buf) / 8 }

// At returns element i.
func (w Float64View) At(i int) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(w.buf[i*8:]))
}

// Set stores element i.
func (w Float64View) Set(i int, x float64) {
	binary.LittleEndian.PutUint64(w.buf[i*8:], math.Float64bits(x))
}
