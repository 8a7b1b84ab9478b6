package imports

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func TestStringNew(t *testing.T) {
	h := newHarness(t)
	ptr, n := h.putString("flagship ⚓")

	stack := h.mustCall("__wbindgen_string_new", ptr, n)
	if got := h.get(stack[0]); got != "flagship ⚓" {
		t.Errorf("string_new stored %#v", got)
	}
}

func TestNumberNew_Normalizes(t *testing.T) {
	h := newHarness(t)
	stack := h.mustCall("__wbindgen_number_new", api.EncodeF64(2.5))
	if got := h.get(stack[0]); got != 2.5 {
		t.Errorf("number_new stored %#v", got)
	}
}

func TestPredicates(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Bridge.Heap()

	tests := []struct {
		key  string
		v    uint64
		want uint64
	}{
		{"__wbindgen_is_undefined", uint64(heap.Undefined()), 1},
		{"__wbindgen_is_undefined", uint64(heap.Null()), 0},
		{"__wbindgen_is_undefined", 0, 1},
		{"__wbindgen_is_null", uint64(heap.Null()), 1},
		{"__wbindgen_is_object", h.store(protocol.NewObject()), 1},
		{"__wbindgen_is_object", uint64(heap.Null()), 0},
		{"__wbindgen_is_string", h.store("x"), 1},
		{"__wbindgen_is_function", h.store(protocol.FunctionFunc(nil)), 1},
		{"__wbindgen_is_function", h.store("x"), 0},
	}
	for _, tt := range tests {
		stack := h.mustCall(tt.key, tt.v)
		if stack[0] != tt.want {
			t.Errorf("%s(%d) = %d, want %d", tt.key, tt.v, stack[0], tt.want)
		}
	}
}

func TestBooleanGet(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Bridge.Heap()

	for v, want := range map[uint64]uint64{
		uint64(heap.True()):  1,
		uint64(heap.False()): 0,
		h.store("true"):      2,
	} {
		if got := h.mustCall("__wbindgen_boolean_get", v)[0]; got != want {
			t.Errorf("boolean_get(%d) = %d, want %d", v, got, want)
		}
	}
}

func TestNumberGet(t *testing.T) {
	h := newHarness(t)
	const retptr = 64

	h.mustCall("__wbindgen_number_get", retptr, h.store(float64(42.25)))
	if h.u32(retptr) != 1 {
		t.Error("number should be present")
	}
	got := math.Float64frombits(uint64(h.u32(retptr+8)) | uint64(h.u32(retptr+12))<<32)
	if got != 42.25 {
		t.Errorf("number = %v, want 42.25", got)
	}

	h.mustCall("__wbindgen_number_get", retptr, h.store("42"))
	if h.u32(retptr) != 0 {
		t.Error("string should not read as a number")
	}
}

func TestStringGet(t *testing.T) {
	h := newHarness(t)
	const retptr = 64

	h.mustCall("__wbindgen_string_get", retptr, h.store("hull"))
	if s, ok := h.readString(retptr); !ok || s != "hull" {
		t.Errorf("string_get = %q, %v", s, ok)
	}

	h.mustCall("__wbindgen_string_get", retptr, h.store(3.0))
	if _, ok := h.readString(retptr); ok {
		t.Error("number should read as absent")
	}
}

func TestDebugString(t *testing.T) {
	h := newHarness(t)
	const retptr = 64

	h.mustCall("__wbindgen_debug_string", retptr, h.store([]any{1.0, "a"}))
	s, _ := h.readString(retptr)
	if s != `[1, "a"]` {
		t.Errorf("debug_string = %q", s)
	}
}

func TestDropAndClone(t *testing.T) {
	h := newHarness(t)
	heap := h.env.Bridge.Heap()

	hd := h.store("cargo")
	clone := h.mustCall("__wbindgen_object_clone_ref", hd)[0]
	if clone == hd {
		t.Fatal("clone returned the same handle")
	}

	h.mustCall("__wbindgen_object_drop_ref", hd)
	if got := h.get(clone); got != "cargo" {
		t.Errorf("clone holds %#v after original dropped", got)
	}
	h.mustCall("__wbindgen_object_drop_ref", clone)
	if heap.Len() != 0 {
		t.Errorf("heap has %d live handles", heap.Len())
	}

	// Sentinels are never released.
	h.mustCall("__wbindgen_object_drop_ref", uint64(heap.Undefined()))
}

func TestDropRef_InvalidHandleTraps(t *testing.T) {
	h := newHarness(t)
	_, err := h.call("__wbindgen_object_drop_ref", 9999)
	hostErr := asHostError(t, err)
	if hostErr.Capability != "__wbindgen_object_drop_ref" {
		t.Errorf("capability = %q", hostErr.Capability)
	}
	var invalid *bridge.InvalidHandleError
	if !errors.As(err, &invalid) {
		t.Errorf("expected InvalidHandleError in chain, got %v", err)
	}
}

func TestThrow_KeepsGuestError(t *testing.T) {
	h := newHarness(t)
	ptr, n := h.putString("engine stalled")

	_, err := h.call("__wbindgen_throw", ptr, n)
	var guestErr *bridge.GuestError
	if !errors.As(err, &guestErr) {
		t.Fatalf("expected GuestError, got %T (%v)", err, err)
	}
	var hostErr *bridge.HostCapabilityError
	if errors.As(err, &hostErr) {
		t.Error("guest error should not be wrapped as a host failure")
	}
	ev, ok := guestErr.Value.(*protocol.ErrorValue)
	if !ok || ev.Message != "engine stalled" {
		t.Errorf("thrown value = %#v", guestErr.Value)
	}
}

func TestRethrow_TakesHandle(t *testing.T) {
	h := newHarness(t)
	hd := h.store("boom")

	_, err := h.call("__wbindgen_rethrow", hd)
	var guestErr *bridge.GuestError
	if !errors.As(err, &guestErr) || guestErr.Value != "boom" {
		t.Fatalf("rethrow = %v", err)
	}
	if h.env.Bridge.Heap().Len() != 0 {
		t.Error("rethrow should release the handle")
	}
}

func TestArgumentTypeMismatchTraps(t *testing.T) {
	h := newHarness(t)
	_, err := h.call("Performance.now", h.store("not a clock"))

	hostErr := asHostError(t, err)
	var ev *protocol.ErrorValue
	if !errors.As(hostErr, &ev) || ev.Name != "TypeError" {
		t.Fatalf("expected TypeError, got %v", err)
	}
	var argErr *ArgumentError
	if !errors.As(err, &argErr) {
		t.Fatal("expected ArgumentError cause")
	}
	if argErr.Index != 0 || argErr.Want != "Performance" {
		t.Errorf("argument error = %+v", argErr)
	}
}

func TestCatchingShimStoresException(t *testing.T) {
	h := newHarness(t)
	ptr, n := h.putString("not a url")

	stack, err := h.call("URL.new", ptr, n)
	if err != nil {
		t.Fatalf("catching shim trapped: %v", err)
	}
	if stack[0] != 0 {
		t.Errorf("result = %d, want 0", stack[0])
	}

	ev, ok := h.exception().(*protocol.ErrorValue)
	if !ok || ev.Name != "TypeError" {
		t.Errorf("exception = %#v", ev)
	}
}

func TestGlobals(t *testing.T) {
	h := newHarness(t)
	for _, key := range []string{"global.globalThis", "global.self", "global.window"} {
		stack := h.mustCall(key)
		if h.get(stack[0]) != h.host.Window() {
			t.Errorf("%s did not return the window", key)
		}
	}

	stack := h.mustCall("global.global")
	if stack[0] != 0 {
		t.Errorf("global should fail with a zero result, got %d", stack[0])
	}
	if ev, ok := h.exception().(*protocol.ErrorValue); !ok || ev.Name != "ReferenceError" {
		t.Errorf("exception = %#v", ev)
	}
}

func TestMemoryBuffer(t *testing.T) {
	h := newHarness(t)
	mem := h.mustCall("__wbindgen_memory")[0]
	buf := h.mustCall("buffer", mem)[0]

	ab, ok := h.get(buf).(*protocol.ArrayBuffer)
	if !ok || len(ab.Data) != len(h.mem.buf) {
		t.Fatalf("buffer = %#v", h.get(buf))
	}
	h.mem.buf[100] = 7
	if ab.Data[100] != 7 {
		t.Error("buffer should alias guest memory")
	}
}

func TestObjectSetAndReflect(t *testing.T) {
	h := newHarness(t)
	obj := protocol.NewObject()
	target := h.store(obj)

	h.mustCall("Object.set", target, h.store("speed"), h.store(3.0))
	if got := obj.Get("speed"); got != 3.0 {
		t.Errorf("speed = %#v", got)
	}
	if h.env.Bridge.Heap().Len() != 1 {
		t.Error("Object.set should take key and value handles")
	}

	stack := h.mustCall("Reflect.set", target, h.store(1.0), h.store("one"))
	if stack[0] != 1 || obj.Get("1") != "one" {
		t.Errorf("Reflect.set = %d, obj[1] = %#v", stack[0], obj.Get("1"))
	}

	stack = h.mustCall("Reflect.set", h.store("str"), h.store("k"), h.store("v"))
	if stack[0] != 0 {
		t.Error("Reflect.set on a string should fail")
	}
	h.exception()
}

func TestFunctionCall(t *testing.T) {
	h := newHarness(t)
	var gotThis, gotArg any
	fn := h.store(protocol.FunctionFunc(func(_ context.Context, this any, args ...any) (any, error) {
		gotThis, gotArg = this, args[0]
		return "done", nil
	}))

	stack := h.mustCall("Function.call1", fn, h.store("this"), h.store("arg"))
	if h.get(stack[0]) != "done" || gotThis != "this" || gotArg != "arg" {
		t.Errorf("call1 = %#v (this %#v, arg %#v)", h.get(stack[0]), gotThis, gotArg)
	}

	failing := h.store(protocol.FunctionFunc(func(context.Context, any, ...any) (any, error) {
		return nil, protocol.NewError("sunk")
	}))
	stack = h.mustCall("Function.call0", failing, uint64(h.env.Bridge.Heap().Undefined()))
	if stack[0] != 0 {
		t.Errorf("result = %d, want 0", stack[0])
	}
	if ev, ok := h.exception().(*protocol.ErrorValue); !ok || ev.Message != "sunk" {
		t.Errorf("exception = %#v", ev)
	}
}
