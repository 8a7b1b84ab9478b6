package protocol

// Host value model shared by the bridge, the import shims and the host environment.
// Guest code only ever sees handles; these are the Go values those handles stand for.

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
)

// Undefined is the host "undefined" value.
type Undefined struct{}

// Null is the host "null" value.
type Null struct{}

func (Undefined) String() string { return "undefined" }
func (Null) String() string      { return "null" }

// IsLikeNone reports whether v is nil, Undefined or Null.
func IsLikeNone(v any) bool {
	switch v.(type) {
	case nil, Undefined, Null, *Undefined, *Null:
		return true
	}
	return false
}

// Function is a host-callable value. Guest closures and host callbacks both
// implement it.
type Function interface {
	Call(ctx context.Context, this any, args ...any) (any, error)
}

// FunctionFunc adapts a plain Go func to Function.
type FunctionFunc func(ctx context.Context, this any, args ...any) (any, error)

// Call invokes f.
func (f FunctionFunc) Call(ctx context.Context, this any, args ...any) (any, error) {
	return f(ctx, this, args...)
}

// NamedFunction is a Function that carries a name for debug output.
type NamedFunction struct {
	Name string
	Fn   Function
}

// Call forwards to the wrapped function.
func (n *NamedFunction) Call(ctx context.Context, this any, args ...any) (any, error) {
	return n.Fn.Call(ctx, this, args...)
}

// Object is a plain property bag ("new Object()").
type Object struct {
	keys  []string
	props map[string]any
}

// NewObject creates an empty object.
func NewObject() *Object {
	return &Object{props: make(map[string]any)}
}

// Get returns the property value, or Undefined when absent.
func (o *Object) Get(key string) any {
	v, ok := o.props[key]
	if !ok {
		return Undefined{}
	}
	return v
}

// Set assigns a property, keeping insertion order for new keys.
func (o *Object) Set(key string, v any) {
	if _, ok := o.props[key]; !ok {
		o.keys = append(o.keys, key)
	}
	o.props[key] = v
}

// Has reports whether the property exists.
func (o *Object) Has(key string) bool {
	_, ok := o.props[key]
	return ok
}

// Keys returns property names in insertion order.
func (o *Object) Keys() []string {
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// MarshalJSON encodes the object with keys in insertion order. Values that are
// not representable (functions, sentinels) are skipped.
func (o *Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, k := range o.keys {
		v := o.props[k]
		if _, ok := v.(Function); ok || v == nil {
			continue
		}
		switch v.(type) {
		case Undefined, *Undefined:
			continue
		case Null, *Null:
			v = nil
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		key, _ := json.Marshal(k)
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// PropertyGetter is implemented by host values exposing named properties.
type PropertyGetter interface {
	Get(key string) any
}

// PropertySetter is implemented by host values accepting property writes.
type PropertySetter interface {
	Set(key string, v any)
}

// ErrorValue is a host error object ("new Error(msg)").
type ErrorValue struct {
	Name    string
	Message string
	Cause   error
}

// NewError creates an ErrorValue named "Error".
func NewError(msg string) *ErrorValue {
	return &ErrorValue{Name: "Error", Message: msg}
}

// NewTypeError creates an ErrorValue named "TypeError".
func NewTypeError(format string, args ...any) *ErrorValue {
	return &ErrorValue{Name: "TypeError", Message: fmt.Sprintf(format, args...)}
}

func (e *ErrorValue) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

func (e *ErrorValue) Unwrap() error {
	return e.Cause
}

// ArrayBuffer is a host-owned byte buffer.
type ArrayBuffer struct {
	Data []byte
}

// Float32Array is a typed array over host memory.
type Float32Array struct {
	Data []float32
}

// Len returns the element count.
func (a *Float32Array) Len() int { return len(a.Data) }

// SetFrom copies src into a starting at offset.
func (a *Float32Array) SetFrom(src []float32, offset int) error {
	if offset < 0 || offset+len(src) > len(a.Data) {
		return fmt.Errorf("offset %d with %d elements is out of bounds for length %d", offset, len(src), len(a.Data))
	}
	copy(a.Data[offset:], src)
	return nil
}

// Uint8Array is a typed byte array.
type Uint8Array struct {
	Data []byte
}

// Len returns the element count.
func (a *Uint8Array) Len() int { return len(a.Data) }

// TypeOf mirrors the host "typeof" operator for the value model.
func TypeOf(v any) string {
	switch v.(type) {
	case Undefined, *Undefined:
		return "undefined"
	case nil, Null, *Null:
		return "object"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint32, uint64:
		return "number"
	case string:
		return "string"
	case Function:
		return "function"
	default:
		return "object"
	}
}

// ToNumber converts numeric host values to float64.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// ToInt32 converts n to a 32-bit integer the way an i32 wasm parameter
// receives a host number: NaN and infinities become 0, everything else is
// truncated and wrapped modulo 2^32.
func ToInt32(n float64) int32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	m := math.Mod(math.Trunc(n), 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return int32(uint32(m))
}
