package imports

import (
	"github.com/tetratelabs/wazero/api"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func fetchShims() []*Shim {
	return []*Shim{
		instanceOf[apiwasm.Response]("Response", CapFetch),

		{
			Key: "Window.fetch", Base: "__wbg_fetch", Capability: CapFetch,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				w := Arg[apiwasm.Window](c, 0, "Window")
				c.Return(w.Fetch(c.Object(1)))
			},
		},
		{
			Key: "Window.fetchWithStr", Base: "__wbg_fetch", Capability: CapFetch,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				w := Arg[apiwasm.Window](c, 0, "Window")
				c.Return(w.Fetch(c.Str(1)))
			},
		},
		{
			Key: "Request.newWithStr", Base: "__wbg_newwithstr", Capability: CapFetch, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				req, err := c.Host().NewRequest(c.Str(0))
				c.Check(err)
				c.Return(req)
			},
		},
		{
			Key: "Response.text", Base: "__wbg_text", Capability: CapFetch, Catching: true,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				p, err := Arg[apiwasm.Response](c, 0, "Response").Text()
				c.Check(err)
				c.Return(p)
			},
		},
		{
			Key: "Response.status", Base: "__wbg_status", Capability: CapFetch,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnU32(uint32(Arg[apiwasm.Response](c, 0, "Response").Status()))
			},
		},
		{
			Key: "URL.new", Base: "__wbg_new", Capability: CapURL, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				u, err := c.Host().NewURL(c.Str(0))
				c.Check(err)
				c.Return(u)
			},
		},
		{
			Key: "URL.href", Base: "__wbg_href", Capability: CapURL,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				retptr := c.U32(0)
				c.WriteString(retptr, Arg[apiwasm.URL](c, 1, "URL").Href(), true)
			},
		},
		{
			// Serves both Location.origin (which may throw) and URL.origin.
			Key: "origin", Base: "__wbg_origin", Capability: CapURL, Catching: true,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				retptr := c.U32(0)
				var origin string
				switch v := c.Object(1).(type) {
				case apiwasm.Location:
					o, err := v.Origin()
					c.Check(err)
					origin = o
				case apiwasm.URL:
					origin = v.Origin()
				default:
					c.Fail(protocol.NewTypeError("%T has no origin", v))
				}
				c.WriteString(retptr, origin, true)
			},
		},
	}
}
