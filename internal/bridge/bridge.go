// Package bridge implements the value-exchange layer between a host with
// garbage-collected objects and a guest with flat linear memory: a handle table,
// typed memory views, a UTF-8 string codec and reference-counted closure
// trampolines.
//
// A Bridge is owned by exactly one guest instance and is used from a single
// goroutine; it performs no locking.
package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Guest is the set of guest exports the bridge relies on.
type Guest interface {
	Allocator

	// CallDestructor calls entry index of the guest's destructor table with
	// the closure state words.
	CallDestructor(ctx context.Context, index, a, b uint32) error
}

// ExceptionStore is implemented by guests that keep their own exception slot.
type ExceptionStore interface {
	ExnStore(ctx context.Context, h Handle) error
}

// Config configures a bridge.
type Config struct {
	Heap HeapConfig
}

// Bridge holds all marshaling state for one guest instance.
type Bridge struct {
	heap  *Heap
	views *Views
	codec *Codec

	mem   LinearMemory
	guest Guest

	exception    any
	hasException bool

	logger *zap.Logger
}

// New creates a bridge. Attach must be called before memory is touched.
func New(cfg Config, logger *zap.Logger) *Bridge {
	b := &Bridge{
		heap:   NewHeap(cfg.Heap),
		logger: logger.With(zap.String("component", "bridge")),
	}
	b.views = NewViews(attachedMemory{b})
	b.codec = NewCodec(b.views)
	return b
}

// attachedMemory defers to whatever memory is attached; it reads as empty before.
type attachedMemory struct {
	b *Bridge
}

func (m attachedMemory) Buffer() []byte {
	if m.b.mem == nil {
		return nil
	}
	return m.b.mem.Buffer()
}

// Attach binds guest memory and exports once the guest is instantiated.
func (b *Bridge) Attach(mem LinearMemory, guest Guest) {
	b.mem = mem
	b.guest = guest
}

// Attached reports whether Attach has been called.
func (b *Bridge) Attached() bool {
	return b.mem != nil && b.guest != nil
}

// Heap returns the handle table.
func (b *Bridge) Heap() *Heap { return b.heap }

// Views returns the typed memory views.
func (b *Bridge) Views() *Views { return b.views }

// Codec returns the string codec.
func (b *Bridge) Codec() *Codec { return b.codec }

// Logger returns the bridge logger.
func (b *Bridge) Logger() *zap.Logger { return b.logger }

// DecodeString reads a guest string.
func (b *Bridge) DecodeString(ptr, length uint32) (string, error) {
	return b.codec.DecodeString(ptr, length)
}

// PassString copies s into guest memory and returns its address and byte length.
func (b *Bridge) PassString(ctx context.Context, s string) (uint32, uint32, error) {
	if b.guest == nil {
		return 0, 0, &NotAttachedError{Operation: "pass-string"}
	}
	ptr, err := b.codec.EncodeString(ctx, s, b.guest)
	if err != nil {
		return 0, 0, err
	}
	return ptr, b.codec.VectorLen(), nil
}

// WriteStringResult passes s to the guest and writes its pointer and length as
// two consecutive 32-bit words at retptr. When present is false both words are 0.
func (b *Bridge) WriteStringResult(ctx context.Context, retptr uint32, s string, present bool) error {
	var ptr, n uint32
	if present {
		var err error
		if ptr, n, err = b.PassString(ctx, s); err != nil {
			return err
		}
	}
	if err := b.WriteU32(retptr, ptr); err != nil {
		return err
	}
	return b.WriteU32(retptr+4, n)
}

// WriteU32 stores a little-endian 32-bit word at addr.
func (b *Bridge) WriteU32(addr, v uint32) error {
	buf, err := b.Bytes(addr, 4)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(buf, v)
	return nil
}

// WriteF64 stores a little-endian float64 at addr.
func (b *Bridge) WriteF64(addr uint32, v float64) error {
	buf, err := b.Bytes(addr, 8)
	if err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
	return nil
}

// Bytes returns n bytes at ptr aliasing guest memory. The slice is only valid
// until the guest next runs.
func (b *Bridge) Bytes(ptr, n uint32) ([]byte, error) {
	mem := b.views.Uint8()
	end := uint64(ptr) + uint64(n)
	if end > uint64(mem.Len()) {
		return nil, &MemoryAccessError{Operation: "bytes", Address: ptr, Length: n}
	}
	return mem.Subarray(int(ptr), int(end)), nil
}

// Float32s copies n float32 elements starting at byte address ptr.
func (b *Bridge) Float32s(ptr, n uint32) ([]float32, error) {
	if ptr%4 != 0 {
		return nil, &MemoryAccessError{Operation: "f32-unaligned", Address: ptr, Length: n * 4}
	}
	view := b.views.Float32()
	if uint64(ptr/4)+uint64(n) > uint64(view.Len()) {
		return nil, &MemoryAccessError{Operation: "f32", Address: ptr, Length: n * 4}
	}
	return view.Slice(int(ptr/4), int(n)), nil
}

// WrapClosure creates a trampoline for guest closure state (a, bb) whose
// destructor is entry dtor of the guest's destructor table.
func (b *Bridge) WrapClosure(a, bb, dtor uint32, invoke Invoker) *Closure {
	return NewClosure(a, bb, invoke, func(ctx context.Context, a, bb uint32) error {
		if b.guest == nil {
			return &NotAttachedError{Operation: "closure-destructor"}
		}
		b.logger.Debug("Destroying closure",
			zap.Uint32("destructor", dtor),
			zap.Uint32("a", a),
			zap.Uint32("b", bb),
		)
		return b.guest.CallDestructor(ctx, dtor, a, bb)
	})
}

// HandleError records a host-side failure for the guest to observe. The value
// is handed to the guest's exception slot when it has one, otherwise kept in
// the bridge until TakeException.
func (b *Bridge) HandleError(ctx context.Context, err error) {
	v := ExceptionValue(err)

	b.logger.Debug("Host capability raised", zap.Error(err))

	if store, ok := b.guest.(ExceptionStore); ok {
		h := b.heap.Store(v)
		serr := store.ExnStore(ctx, h)
		if serr == nil {
			return
		}
		b.logger.Warn("Guest exception slot unavailable", zap.Error(serr))
		_ = b.heap.Drop(h)
	}

	b.exception = v
	b.hasException = true
}

// TakeException returns and clears the bridge's own exception slot.
func (b *Bridge) TakeException() (any, bool) {
	if !b.hasException {
		return nil, false
	}
	v := b.exception
	b.exception = nil
	b.hasException = false
	return v, true
}

// ExceptionValue returns the host value a failure is thrown as: the value a
// guest threw, a host error object, or a new Error carrying err's message.
func ExceptionValue(err error) any {
	var guestErr *GuestError
	if errors.As(err, &guestErr) {
		return guestErr.Value
	}
	var ev *protocol.ErrorValue
	if errors.As(err, &ev) {
		return ev
	}
	return &protocol.ErrorValue{Name: "Error", Message: err.Error(), Cause: err}
}
