package bridge

import (
	"context"
	"fmt"
)

// fakeMemory is a growable linear memory. Growing always allocates a new
// buffer, like a real guest memory whose backing store moved.
type fakeMemory struct {
	buf []byte
}

func newFakeMemory(size int) *fakeMemory {
	return &fakeMemory{buf: make([]byte, size)}
}

func (m *fakeMemory) Buffer() []byte {
	return m.buf
}

func (m *fakeMemory) grow(delta int) {
	nb := make([]byte, len(m.buf)+delta)
	copy(nb, m.buf)
	m.buf = nb
}

type destructorCall struct {
	index, a, b uint32
}

// fakeGuest is a bump allocator with realloc and a destructor table recorder.
type fakeGuest struct {
	mem *fakeMemory
	top uint32

	mallocs  []uint32
	reallocs [][3]uint32
	dtors    []destructorCall
	exns     []Handle

	growOnRealloc int
	dtorErr       error
}

func newFakeGuest(mem *fakeMemory) *fakeGuest {
	return &fakeGuest{mem: mem, top: 8}
}

func (g *fakeGuest) Malloc(ctx context.Context, size uint32) (uint32, error) {
	g.mallocs = append(g.mallocs, size)
	return g.bump(size)
}

func (g *fakeGuest) Realloc(ctx context.Context, ptr, oldSize, newSize uint32) (uint32, error) {
	g.reallocs = append(g.reallocs, [3]uint32{ptr, oldSize, newSize})
	if g.growOnRealloc > 0 {
		g.mem.grow(g.growOnRealloc)
	}
	np, err := g.bump(newSize)
	if err != nil {
		return 0, err
	}
	copy(g.mem.buf[np:np+oldSize], g.mem.buf[ptr:ptr+oldSize])
	return np, nil
}

func (g *fakeGuest) CallDestructor(ctx context.Context, index, a, b uint32) error {
	g.dtors = append(g.dtors, destructorCall{index: index, a: a, b: b})
	return g.dtorErr
}

func (g *fakeGuest) bump(size uint32) (uint32, error) {
	ptr := g.top
	end := ptr + size
	if int(end) > len(g.mem.buf) {
		return 0, fmt.Errorf("out of memory: %d > %d", end, len(g.mem.buf))
	}
	g.top = (end + 7) &^ 7
	return ptr, nil
}

// mallocOnly hides Realloc so the codec takes the full-buffer path.
type mallocOnly struct {
	g *fakeGuest
}

func (m mallocOnly) Malloc(ctx context.Context, size uint32) (uint32, error) {
	return m.g.Malloc(ctx, size)
}

func (m mallocOnly) CallDestructor(ctx context.Context, index, a, b uint32) error {
	return m.g.CallDestructor(ctx, index, a, b)
}

// exnGuest adds an exception slot to fakeGuest.
type exnGuest struct {
	*fakeGuest
	err error
}

func (g *exnGuest) ExnStore(ctx context.Context, h Handle) error {
	if g.err != nil {
		return g.err
	}
	g.exns = append(g.exns, h)
	return nil
}
