package imports

import (
	"errors"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func promiseShims() []*Shim {
	return []*Shim{
		{
			// new Promise(executor) where the executor is guest closure state (a, b)
			// that is only valid during this call.
			Key: "Promise.new", Base: "__wbg_new", Capability: CapObject,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				a, b := c.U32(0), c.U32(1)
				if c.env.PromiseInvoke == "" {
					c.Fail(errors.New("guest does not declare a promise executor export"))
				}

				p, err := c.Host().NewPromise(func(resolve, reject protocol.Function) error {
					if a == 0 {
						return protocol.NewError("promise executor invoked recursively")
					}
					cur := a
					a = 0
					defer func() { a = cur }()

					c.env.Logger.Debug("Running promise executor",
						zap.String("export", c.env.PromiseInvoke),
						zap.Uint32("a", cur),
						zap.Uint32("b", b),
					)
					_, err := c.env.Guest.CallExport(c.ctx, c.env.PromiseInvoke,
						api.EncodeU32(cur),
						api.EncodeU32(b),
						api.EncodeU32(uint32(c.Store(resolve))),
						api.EncodeU32(uint32(c.Store(reject))),
					)
					return err
				})
				a, b = 0, 0
				c.Check(err)
				c.Return(p)
			},
		},
		{
			Key: "Promise.resolve", Base: "__wbg_resolve", Capability: CapObject,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.Return(c.Host().ResolvedPromise(c.Object(0)))
			},
		},
		{
			Key: "Promise.then", Base: "__wbg_then", Capability: CapObject,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				p := Arg[apiwasm.Promise](c, 0, "Promise")
				onFulfilled := optFunction(c.Object(1))
				c.Return(p.Then(onFulfilled, nil))
			},
		},
		{
			Key: "Promise.then2", Base: "__wbg_then", Capability: CapObject,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				p := Arg[apiwasm.Promise](c, 0, "Promise")
				onFulfilled := optFunction(c.Object(1))
				onRejected := optFunction(c.Object(2))
				c.Return(p.Then(onFulfilled, onRejected))
			},
		},
	}
}

// optFunction returns v as a function, or nil when it is not callable.
func optFunction(v any) protocol.Function {
	fn, _ := v.(protocol.Function)
	return fn
}
