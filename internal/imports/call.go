package imports

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"runtime"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// GuestCaller invokes guest exports by name.
type GuestCaller interface {
	CallExport(ctx context.Context, name string, params ...uint64) ([]uint64, error)
}

// Env is what shims of one guest instance operate on.
type Env struct {
	Bridge *bridge.Bridge
	Host   apiwasm.Host
	Guest  GuestCaller

	// PromiseInvoke is the guest export that runs a promise executor with
	// (a, b, resolve, reject).
	PromiseInvoke string

	Logger *zap.Logger

	memory *Memory
}

// Memory returns the host object standing for guest memory.
func (e *Env) Memory() *Memory {
	if e.memory == nil {
		e.memory = &Memory{b: e.Bridge}
	}
	return e.memory
}

// Memory is guest linear memory seen as a host object.
type Memory struct {
	b *bridge.Bridge
}

// Buffer returns the current memory contents. It aliases guest memory and is
// stale once memory grows.
func (m *Memory) Buffer() *protocol.ArrayBuffer {
	u8 := m.b.Views().Uint8()
	return &protocol.ArrayBuffer{Data: u8.Subarray(0, u8.Len())}
}

// Get serves the "buffer" property.
func (m *Memory) Get(key string) any {
	if key == "buffer" {
		return m.Buffer()
	}
	return protocol.Undefined{}
}

// GoFunc returns the wazero host function serving b.
func (b Binding) GoFunc(env *Env) api.GoModuleFunc {
	s := b.Shim
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		c := &Call{ctx: ctx, env: env, shim: s, stack: stack}
		if s.Catching {
			defer c.recoverCaught()
		} else {
			defer c.recoverTrap()
		}
		s.Fn(c)
	}
}

// Call is one invocation of a shim. Argument accessors and Return panic on
// failure; the shim's wrapper turns the panic into a trap or, for catching
// shims, into a stored exception.
//
// Results overwrite the argument stack, so every argument must be read
// before Return is called.
type Call struct {
	ctx   context.Context
	env   *Env
	shim  *Shim
	stack []uint64
}

// Context returns the context of the guest call.
func (c *Call) Context() context.Context { return c.ctx }

// Env returns the shim environment.
func (c *Call) Env() *Env { return c.env }

// Host returns the host capabilities.
func (c *Call) Host() apiwasm.Host { return c.env.Host }

// Fail aborts the shim with err.
func (c *Call) Fail(err error) {
	panic(err)
}

// Check aborts the shim when err is non-nil.
func (c *Call) Check(err error) {
	if err != nil {
		panic(err)
	}
}

// U32 returns argument i as an unsigned 32-bit integer.
func (c *Call) U32(i int) uint32 { return api.DecodeU32(c.stack[i]) }

// I32 returns argument i as a signed 32-bit integer.
func (c *Call) I32(i int) int32 { return api.DecodeI32(c.stack[i]) }

// F32 returns argument i as a float32.
func (c *Call) F32(i int) float32 { return api.DecodeF32(c.stack[i]) }

// F64 returns argument i as a float64.
func (c *Call) F64(i int) float64 { return api.DecodeF64(c.stack[i]) }

// Bool returns argument i as a boolean (non-zero is true).
func (c *Call) Bool(i int) bool { return c.U32(i) != 0 }

// Object returns the host object behind handle argument i. Handle 0 is how
// guests pass an absent optional reference and reads as undefined.
func (c *Call) Object(i int) any {
	hd := bridge.Handle(c.U32(i))
	if hd == 0 {
		return protocol.Undefined{}
	}
	v, err := c.env.Bridge.Heap().Get(hd)
	c.Check(err)
	return v
}

// Take returns the host object behind handle argument i and releases the handle.
func (c *Call) Take(i int) any {
	v, err := c.env.Bridge.Heap().Take(bridge.Handle(c.U32(i)))
	c.Check(err)
	return v
}

// Str decodes the string whose pointer is argument i and length argument i+1.
func (c *Call) Str(i int) string {
	s, err := c.env.Bridge.DecodeString(c.U32(i), c.U32(i+1))
	c.Check(err)
	return s
}

// OptStr is Str for optional strings; a zero pointer means absent.
func (c *Call) OptStr(i int) (string, bool) {
	if c.U32(i) == 0 {
		return "", false
	}
	return c.Str(i), true
}

// Float32s copies the f32 array whose pointer is argument i and element count i+1.
func (c *Call) Float32s(i int) []float32 {
	data, err := c.env.Bridge.Float32s(c.U32(i), c.U32(i+1))
	c.Check(err)
	return data
}

// Bytes returns the byte range whose pointer is argument i and length i+1.
// The slice aliases guest memory.
func (c *Call) Bytes(i int) []byte {
	data, err := c.env.Bridge.Bytes(c.U32(i), c.U32(i+1))
	c.Check(err)
	return data
}

// Store places v in the handle table.
func (c *Call) Store(v any) bridge.Handle {
	return c.env.Bridge.Heap().Store(hostValue(v))
}

// Return stores v and returns its handle.
func (c *Call) Return(v any) {
	c.stack[0] = api.EncodeU32(uint32(c.Store(v)))
}

// ReturnOpt returns handle 0 for nil, undefined and null, otherwise stores v.
func (c *Call) ReturnOpt(v any) {
	if isNone(v) {
		c.stack[0] = 0
		return
	}
	c.Return(v)
}

// ReturnU32 returns an unsigned 32-bit integer.
func (c *Call) ReturnU32(v uint32) { c.stack[0] = api.EncodeU32(v) }

// ReturnI32 returns a signed 32-bit integer.
func (c *Call) ReturnI32(v int32) { c.stack[0] = api.EncodeI32(v) }

// ReturnF64 returns a float64.
func (c *Call) ReturnF64(v float64) { c.stack[0] = api.EncodeF64(v) }

// ReturnBool returns 1 or 0.
func (c *Call) ReturnBool(v bool) {
	if v {
		c.ReturnU32(1)
		return
	}
	c.ReturnU32(0)
}

// WriteString passes s to the guest and writes pointer and length at retptr.
// An absent string is written as two zero words.
func (c *Call) WriteString(retptr uint32, s string, present bool) {
	c.Check(c.env.Bridge.WriteStringResult(c.ctx, retptr, s, present))
}

// Arg returns handle argument i as a T, failing with a TypeError otherwise.
func Arg[T any](c *Call, i int, want string) T {
	v := c.Object(i)
	t, ok := v.(T)
	if !ok {
		panic(&protocol.ErrorValue{
			Name:    "TypeError",
			Message: fmt.Sprintf("%s is not a %s", bridge.DebugString(v), want),
			Cause:   &ArgumentError{Shim: c.shim.Key, Index: i, Want: want, Got: v},
		})
	}
	return t
}

func (c *Call) recoverCaught() {
	r := recover()
	if r == nil {
		return
	}
	err := recoveredError(r)
	if c.ctx.Err() != nil {
		panic(err)
	}

	for i := range c.shim.Results {
		c.stack[i] = 0
	}
	c.env.Bridge.HandleError(c.ctx, &bridge.HostCapabilityError{Capability: c.shim.Key, Err: err})
}

func (c *Call) recoverTrap() {
	r := recover()
	if r == nil {
		return
	}
	err := recoveredError(r)

	var guestErr *bridge.GuestError
	if errors.As(err, &guestErr) {
		panic(err)
	}
	panic(&bridge.HostCapabilityError{Capability: c.shim.Key, Err: err})
}

// recoveredError converts a recovered panic value to an error. Go runtime
// errors are programming bugs and keep unwinding.
func recoveredError(r any) error {
	switch v := r.(type) {
	case runtime.Error:
		panic(v)
	case error:
		return v
	}
	return fmt.Errorf("%v", r)
}

// hostValue normalizes Go numbers to float64, the only host number type.
func hostValue(v any) any {
	switch v.(type) {
	case float64:
		return v
	case int, int32, int64, uint32, uint64, float32:
		n, _ := protocol.ToNumber(v)
		return n
	}
	return v
}

func isNone(v any) bool {
	if protocol.IsLikeNone(v) {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func:
		return rv.IsNil()
	}
	return false
}
