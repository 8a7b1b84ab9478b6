package bridge

import (
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Handle is the integer token the guest holds in place of a host object.
type Handle uint32

const (
	// DefaultStackSize is the borrow stack size wasm-bindgen guests are compiled
	// against; their sentinels live at 32..35 and the first durable handle is 36.
	DefaultStackSize = 32

	sentinelCount = 4
)

// HeapConfig configures the handle layout.
type HeapConfig struct {
	// Number of borrow stack slots, including the never-used slot 0.
	StackSize int

	// Initial capacity of the durable range.
	InitialCapacity int
}

// Heap maps handles to host objects.
//
// Handle space is split into three disjoint ranges:
//
//	[0, StackSize)                   borrow stack, allocated downward
//	[StackSize, StackSize+4)         sentinels: undefined, null, true, false
//	[StackSize+4, ...)               durable slots with an intrusive free list
type Heap struct {
	stackSize Handle
	base      Handle

	entries []heapEntry
	next    Handle
	live    int

	stack []any
	sp    Handle
}

type heapEntry struct {
	value any
	next  Handle
	free  bool
}

// NewHeap creates a heap with the given layout.
func NewHeap(cfg HeapConfig) *Heap {
	if cfg.StackSize < 2 {
		cfg.StackSize = DefaultStackSize
	}
	if cfg.InitialCapacity < 0 {
		cfg.InitialCapacity = 0
	}

	stackSize := Handle(cfg.StackSize)
	base := stackSize + sentinelCount

	return &Heap{
		stackSize: stackSize,
		base:      base,
		entries:   make([]heapEntry, 0, cfg.InitialCapacity),
		next:      base,
		stack:     make([]any, stackSize),
		sp:        stackSize,
	}
}

// Undefined returns the reserved handle for undefined.
func (h *Heap) Undefined() Handle { return h.stackSize }

// Null returns the reserved handle for null.
func (h *Heap) Null() Handle { return h.stackSize + 1 }

// True returns the reserved handle for true.
func (h *Heap) True() Handle { return h.stackSize + 2 }

// False returns the reserved handle for false.
func (h *Heap) False() Handle { return h.stackSize + 3 }

// Base returns the first durable handle.
func (h *Heap) Base() Handle { return h.base }

// Store inserts v and returns a fresh or recycled handle.
func (h *Heap) Store(v any) Handle {
	idx := h.next
	if int(idx-h.base) == len(h.entries) {
		h.entries = append(h.entries, heapEntry{free: true, next: idx + 1})
	}

	e := &h.entries[idx-h.base]
	h.next = e.next
	*e = heapEntry{value: v}
	h.live++

	return idx
}

// Get returns the object behind hd without releasing it.
func (h *Heap) Get(hd Handle) (any, error) {
	switch {
	case hd < h.stackSize:
		if hd == 0 || hd < h.sp {
			return nil, &InvalidHandleError{Handle: hd, Operation: "get"}
		}
		return h.stack[hd], nil
	case hd < h.base:
		return h.sentinel(hd), nil
	}

	e, ok := h.entry(hd)
	if !ok {
		return nil, &InvalidHandleError{Handle: hd, Operation: "get"}
	}
	return e.value, nil
}

// Take returns the object behind hd and releases the handle.
func (h *Heap) Take(hd Handle) (any, error) {
	v, err := h.Get(hd)
	if err != nil {
		return nil, err
	}
	if err := h.Drop(hd); err != nil {
		return nil, err
	}
	return v, nil
}

// Drop releases hd. Borrowed and reserved handles are never released here.
func (h *Heap) Drop(hd Handle) error {
	if hd < h.base {
		return nil
	}

	e, ok := h.entry(hd)
	if !ok {
		return &InvalidHandleError{Handle: hd, Operation: "drop"}
	}

	*e = heapEntry{free: true, next: h.next}
	h.next = hd
	h.live--

	return nil
}

// Clone stores the object behind hd under a second handle.
func (h *Heap) Clone(hd Handle) (Handle, error) {
	v, err := h.Get(hd)
	if err != nil {
		return 0, err
	}
	return h.Store(v), nil
}

// Len returns the number of live durable handles.
func (h *Heap) Len() int {
	return h.live
}

// Borrow pushes v onto the borrow stack. The returned handle must be released
// with Unborrow before the call that created it returns.
func (h *Heap) Borrow(v any) (Handle, error) {
	if h.sp == 1 {
		return 0, &BorrowStackExhaustedError{Depth: int(h.stackSize) - 1}
	}
	h.sp--
	h.stack[h.sp] = v
	return h.sp, nil
}

// Unborrow pops hd, which must be the most recent borrow.
func (h *Heap) Unborrow(hd Handle) error {
	if hd != h.sp || h.sp == h.stackSize {
		return &BorrowOrderError{Handle: hd, Top: h.sp}
	}
	h.stack[h.sp] = nil
	h.sp++
	return nil
}

// WithBorrowed borrows v for the duration of fn. The slot is released when fn
// returns, whether it succeeds, fails or panics.
func (h *Heap) WithBorrowed(v any, fn func(Handle) error) (err error) {
	hd, err := h.Borrow(v)
	if err != nil {
		return err
	}
	defer func() {
		if uerr := h.Unborrow(hd); uerr != nil && err == nil {
			err = uerr
		}
	}()
	return fn(hd)
}

// StackPointer returns the current top of the borrow stack. It equals the stack
// size when nothing is borrowed.
func (h *Heap) StackPointer() Handle {
	return h.sp
}

func (h *Heap) entry(hd Handle) (*heapEntry, bool) {
	i := int(hd - h.base)
	if i >= len(h.entries) {
		return nil, false
	}
	e := &h.entries[i]
	if e.free {
		return nil, false
	}
	return e, true
}

func (h *Heap) sentinel(hd Handle) any {
	switch hd - h.stackSize {
	case 0:
		return protocol.Undefined{}
	case 1:
		return protocol.Null{}
	case 2:
		return true
	default:
		return false
	}
}
