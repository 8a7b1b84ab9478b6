package bridge

import (
	"fmt"
)

// InvalidHandleError occurs when a handle does not refer to a live slot.
type InvalidHandleError struct {
	Handle    Handle
	Operation string
}

func (e *InvalidHandleError) Error() string {
	return fmt.Sprintf("invalid handle %d (op=%s)", e.Handle, e.Operation)
}

// BorrowStackExhaustedError occurs when nested borrows exceed the stack size.
// It signals a logic error in the caller, never a transient condition.
type BorrowStackExhaustedError struct {
	Depth int
}

func (e *BorrowStackExhaustedError) Error() string {
	return fmt.Sprintf("out of borrow stack (depth %d)", e.Depth)
}

// BorrowOrderError occurs when a borrowed handle is released out of stack order.
type BorrowOrderError struct {
	Handle Handle
	Top    Handle
}

func (e *BorrowOrderError) Error() string {
	return fmt.Sprintf("borrowed handle %d released out of order (top is %d)", e.Handle, e.Top)
}

// DecodeError occurs when guest bytes are not valid UTF-8.
type DecodeError struct {
	Ptr    uint32
	Length uint32
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode string (ptr=%d, len=%d): %v", e.Ptr, e.Length, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// MemoryAccessError occurs when a guest memory range is out of bounds.
type MemoryAccessError struct {
	Operation string
	Address   uint32
	Length    uint32
}

func (e *MemoryAccessError) Error() string {
	return fmt.Sprintf("memory access out of bounds (op=%s, addr=%d, len=%d)",
		e.Operation, e.Address, e.Length)
}

// GuestError carries a value thrown by the guest. The host always surfaces it.
type GuestError struct {
	Value any
}

func (e *GuestError) Error() string {
	return "guest threw: " + DebugString(e.Value)
}

func (e *GuestError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// HostCapabilityError wraps a failure raised by a host capability.
type HostCapabilityError struct {
	Capability string
	Err        error
}

func (e *HostCapabilityError) Error() string {
	return fmt.Sprintf("host capability '%s' failed: %v", e.Capability, e.Err)
}

func (e *HostCapabilityError) Unwrap() error {
	return e.Err
}

// ClosureDestroyedError occurs when a closure is invoked after its destructor ran.
type ClosureDestroyedError struct {
	A, B uint32
}

func (e *ClosureDestroyedError) Error() string {
	return fmt.Sprintf("closure invoked recursively or after being dropped (state %d/%d)", e.A, e.B)
}

// NotAttachedError occurs when the bridge is used before guest memory is attached.
type NotAttachedError struct {
	Operation string
}

func (e *NotAttachedError) Error() string {
	return fmt.Sprintf("bridge not attached to a guest (op=%s)", e.Operation)
}
