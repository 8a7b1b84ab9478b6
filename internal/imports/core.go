package imports

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// coreShims are the __wbindgen_* intrinsics every guest links against.
func coreShims() []*Shim {
	core := func(base string, params, results []api.ValueType, fn func(*Call)) *Shim {
		return &Shim{
			Key:        base,
			Base:       base,
			Capability: CapCore,
			Params:     params,
			Results:    results,
			Fn:         fn,
		}
	}

	return []*Shim{
		core("__wbindgen_object_drop_ref", []api.ValueType{i32}, nil, dropRef),
		core("__wbindgen_cb_forget", []api.ValueType{i32}, nil, dropRef),

		core("__wbindgen_cb_drop", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			v := c.Take(0)
			closure, ok := v.(*bridge.Closure)
			if !ok {
				c.Fail(protocol.NewTypeError("%s is not a closure", bridge.DebugString(v)))
			}
			c.ReturnBool(closure.Drop())
		}),

		core("__wbindgen_object_clone_ref", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			h, err := c.env.Bridge.Heap().Clone(bridge.Handle(c.U32(0)))
			c.Check(err)
			c.ReturnU32(uint32(h))
		}),

		core("__wbindgen_string_new", []api.ValueType{i32, i32}, []api.ValueType{i32}, func(c *Call) {
			c.Return(c.Str(0))
		}),

		core("__wbindgen_number_new", []api.ValueType{f64}, []api.ValueType{i32}, func(c *Call) {
			c.Return(c.F64(0))
		}),

		core("__wbindgen_is_undefined", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			_, ok := c.Object(0).(protocol.Undefined)
			c.ReturnBool(ok)
		}),

		core("__wbindgen_is_null", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			_, ok := c.Object(0).(protocol.Null)
			c.ReturnBool(ok)
		}),

		core("__wbindgen_is_object", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			v := c.Object(0)
			c.ReturnBool(protocol.TypeOf(v) == "object" && !protocol.IsLikeNone(v))
		}),

		core("__wbindgen_is_function", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			_, ok := c.Object(0).(protocol.Function)
			c.ReturnBool(ok)
		}),

		core("__wbindgen_is_string", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			_, ok := c.Object(0).(string)
			c.ReturnBool(ok)
		}),

		core("__wbindgen_number_get", []api.ValueType{i32, i32}, nil, func(c *Call) {
			retptr := c.U32(0)
			n, ok := protocol.ToNumber(c.Object(1))
			if !ok {
				n = 0
			}
			c.Check(c.env.Bridge.WriteF64(retptr+8, n))
			var present uint32
			if ok {
				present = 1
			}
			c.Check(c.env.Bridge.WriteU32(retptr, present))
		}),

		core("__wbindgen_string_get", []api.ValueType{i32, i32}, nil, func(c *Call) {
			retptr := c.U32(0)
			s, ok := c.Object(1).(string)
			c.WriteString(retptr, s, ok)
		}),

		core("__wbindgen_boolean_get", []api.ValueType{i32}, []api.ValueType{i32}, func(c *Call) {
			switch v := c.Object(0).(type) {
			case bool:
				c.ReturnBool(v)
			default:
				c.ReturnU32(2)
			}
		}),

		core("__wbindgen_debug_string", []api.ValueType{i32, i32}, nil, func(c *Call) {
			retptr := c.U32(0)
			c.WriteString(retptr, bridge.DebugString(c.Object(1)), true)
		}),

		core("__wbindgen_throw", []api.ValueType{i32, i32}, nil, func(c *Call) {
			panic(&bridge.GuestError{Value: protocol.NewError(c.Str(0))})
		}),

		core("__wbindgen_rethrow", []api.ValueType{i32}, nil, func(c *Call) {
			panic(&bridge.GuestError{Value: c.Take(0)})
		}),

		core("__wbindgen_memory", nil, []api.ValueType{i32}, func(c *Call) {
			c.Return(c.env.Memory())
		}),
	}
}

func dropRef(c *Call) {
	c.Check(c.env.Bridge.Heap().Drop(bridge.Handle(c.U32(0))))
}
