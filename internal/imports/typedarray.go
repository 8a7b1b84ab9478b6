package imports

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Typed arrays built from an ArrayBuffer are copies. Guests build a view over
// memory and immediately copy it into a fresh array or hand it to a host API,
// so aliasing is never observed.
func typedArrayShims() []*Shim {
	return []*Shim{
		{
			Key: "buffer", Base: "__wbg_buffer", Capability: CapObject,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				switch v := c.Object(0).(type) {
				case *Memory:
					c.Return(v.Buffer())
				case *protocol.Float32Array:
					c.Return(&protocol.ArrayBuffer{Data: encodeFloat32s(v.Data)})
				case protocol.PropertyGetter:
					c.Return(v.Get("buffer"))
				default:
					c.Fail(protocol.NewTypeError("%T has no buffer", v))
				}
			},
		},
		{
			Key: "Float32Array.newWithByteOffsetAndLength", Base: "__wbg_newwithbyteoffsetandlength", Capability: CapObject,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				buf := Arg[*protocol.ArrayBuffer](c, 0, "ArrayBuffer")
				data, err := float32sFrom(buf.Data, c.U32(1), c.U32(2))
				c.Check(err)
				c.Return(&protocol.Float32Array{Data: data})
			},
		},
		{
			Key: "Float32Array.new", Base: "__wbg_new", Capability: CapObject,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				switch v := c.Object(0).(type) {
				case *protocol.Float32Array:
					c.Return(&protocol.Float32Array{Data: append([]float32(nil), v.Data...)})
				case *protocol.ArrayBuffer:
					if len(v.Data)%4 != 0 {
						c.Fail(rangeError("byte length of Float32Array should be a multiple of 4"))
					}
					data, err := float32sFrom(v.Data, 0, uint32(len(v.Data)/4))
					c.Check(err)
					c.Return(&protocol.Float32Array{Data: data})
				default:
					n, ok := protocol.ToNumber(v)
					if !ok || n < 0 || n > math.MaxInt32 || n != math.Trunc(n) {
						c.Fail(rangeError("invalid typed array length"))
					}
					c.Return(&protocol.Float32Array{Data: make([]float32, int(n))})
				}
			},
		},
		{
			Key: "Float32Array.length", Base: "__wbg_length", Capability: CapObject,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				v := Arg[interface{ Len() int }](c, 0, "typed array")
				c.ReturnU32(uint32(v.Len()))
			},
		},
		{
			Key: "Float32Array.set", Base: "__wbg_set", Capability: CapObject,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				dst := Arg[*protocol.Float32Array](c, 0, "Float32Array")
				src := Arg[*protocol.Float32Array](c, 1, "Float32Array")
				if err := dst.SetFrom(src.Data, int(c.U32(2))); err != nil {
					c.Fail(rangeError(err.Error()))
				}
			},
		},
	}
}

func rangeError(msg string) *protocol.ErrorValue {
	return &protocol.ErrorValue{Name: "RangeError", Message: msg}
}

// float32sFrom decodes n little-endian floats starting at byte offset off.
func float32sFrom(buf []byte, off, n uint32) ([]float32, error) {
	if off%4 != 0 {
		return nil, rangeError("start offset of Float32Array should be a multiple of 4")
	}
	end := uint64(off) + uint64(n)*4
	if end > uint64(len(buf)) {
		return nil, rangeError(fmt.Sprintf("invalid typed array length: %d", n))
	}

	out := make([]float32, n)
	for i := range out {
		p := off + uint32(i)*4
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[p:]))
	}
	return out, nil
}

func encodeFloat32s(data []float32) []byte {
	out := make([]byte, len(data)*4)
	for i, f := range data {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}
