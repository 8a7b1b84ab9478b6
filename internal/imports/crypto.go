package imports

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func cryptoShims() []*Shim {
	return []*Shim{
		{
			// obj.crypto; undefined when the object has none.
			Key: "crypto", Base: "__wbg_crypto", Capability: CapCrypto,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				switch v := c.Object(0).(type) {
				case apiwasm.Window:
					var crypto any = protocol.Undefined{}
					if wc := v.Crypto(); !isNone(wc) {
						crypto = wc
					}
					c.Return(crypto)
				case protocol.PropertyGetter:
					c.Return(v.Get("crypto"))
				default:
					if protocol.IsLikeNone(v) {
						c.Fail(protocol.NewTypeError("cannot read property 'crypto' of %s", protocol.TypeOf(v)))
					}
					c.Return(protocol.Undefined{})
				}
			},
		},
		{
			// crypto.getRandomValues as a property, used for feature detection.
			Key: "Crypto.getRandomValuesProperty", Base: "__wbg_getRandomValues", Capability: CapCrypto,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				crypto, ok := c.Object(0).(apiwasm.Crypto)
				if !ok {
					c.Return(protocol.Undefined{})
					return
				}
				c.Return(&protocol.NamedFunction{
					Name: "getRandomValues",
					Fn: protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
						var buf *protocol.Uint8Array
						if len(args) > 0 {
							buf, _ = args[0].(*protocol.Uint8Array)
						}
						if buf == nil {
							return nil, protocol.NewTypeError("argument 1 is not an integer typed array")
						}
						return buf, crypto.GetRandomValues(buf.Data)
					}),
				})
			},
		},
		{
			Key: "Crypto.getRandomValues", Base: "__wbg_getRandomValues", Capability: CapCrypto,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				crypto := Arg[apiwasm.Crypto](c, 0, "Crypto")
				c.Check(crypto.GetRandomValues(c.Bytes(1)))
			},
		},
		{
			Key: "Crypto.randomFillSync", Base: "__wbg_randomFillSync", Capability: CapCrypto,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				crypto := Arg[apiwasm.NodeCrypto](c, 0, "node crypto module")
				c.Check(crypto.RandomFillSync(c.Bytes(1)))
			},
		},
	}
}
