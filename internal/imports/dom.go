package imports

import (
	"github.com/tetratelabs/wazero/api"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// instanceOf builds an "instanceof" check shim for host interface T.
func instanceOf[T any](class string, capability Capability) *Shim {
	return &Shim{
		Key: class + ".instanceof", Base: "__wbg_instanceof_" + class, Capability: capability,
		Params:  []api.ValueType{i32},
		Results: []api.ValueType{i32},
		Fn: func(c *Call) {
			_, ok := c.Object(0).(T)
			c.ReturnBool(ok)
		},
	}
}

func domShims() []*Shim {
	return []*Shim{
		instanceOf[apiwasm.Window]("Window", CapDOM),
		instanceOf[apiwasm.HTMLElement]("HtmlElement", CapDOM),
		instanceOf[apiwasm.Canvas]("HtmlCanvasElement", CapDOM),

		{
			Key: "Window.document", Base: "__wbg_document", Capability: CapDOM,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnOpt(Arg[apiwasm.Window](c, 0, "Window").Document())
			},
		},
		{
			Key: "Window.location", Base: "__wbg_location", Capability: CapDOM,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.Return(Arg[apiwasm.Window](c, 0, "Window").Location())
			},
		},
		{
			Key: "Window.innerWidth", Base: "__wbg_innerWidth", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				w, err := Arg[apiwasm.Window](c, 0, "Window").InnerWidth()
				c.Check(err)
				c.Return(w)
			},
		},
		{
			Key: "Window.innerHeight", Base: "__wbg_innerHeight", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				h, err := Arg[apiwasm.Window](c, 0, "Window").InnerHeight()
				c.Check(err)
				c.Return(h)
			},
		},
		{
			Key: "Window.performance", Base: "__wbg_performance", Capability: CapTiming,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnOpt(Arg[apiwasm.Window](c, 0, "Window").Performance())
			},
		},
		{
			Key: "Window.requestAnimationFrame", Base: "__wbg_requestAnimationFrame", Capability: CapTiming, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				w := Arg[apiwasm.Window](c, 0, "Window")
				cb := Arg[protocol.Function](c, 1, "function")
				id, err := w.RequestAnimationFrame(cb)
				c.Check(err)
				c.ReturnI32(id)
			},
		},
		{
			Key: "Performance.now", Base: "__wbg_now", Capability: CapTiming,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{f64},
			Fn: func(c *Call) {
				c.ReturnF64(Arg[apiwasm.Performance](c, 0, "Performance").Now())
			},
		},
		{
			Key: "EventTarget.addEventListener", Base: "__wbg_addEventListener", Capability: CapDOM, Catching: true,
			Params: []api.ValueType{i32, i32, i32, i32, i32},
			Fn: func(c *Call) {
				target := Arg[apiwasm.EventTarget](c, 0, "EventTarget")
				typ := c.Str(1)
				listener := c.Object(3)
				options := c.Object(4)
				if protocol.IsLikeNone(listener) {
					return
				}
				fn, ok := listener.(protocol.Function)
				if !ok {
					c.Fail(protocol.NewTypeError("the listener provided is not a function"))
				}
				c.Check(target.AddEventListener(typ, fn, options))
			},
		},
		{
			Key: "Event.new", Base: "__wbg_new", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				ev, err := c.Host().NewEvent(c.Str(0))
				c.Check(err)
				c.Return(ev)
			},
		},
		{
			Key: "Event.type", Base: "__wbg_type", Capability: CapDOM,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				retptr := c.U32(0)
				c.WriteString(retptr, Arg[apiwasm.Event](c, 1, "Event").Type(), true)
			},
		},
		{
			Key: "Sized.width", Base: "__wbg_width", Capability: CapDOM,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnU32(Arg[apiwasm.Sized](c, 0, "sized element").Width())
			},
		},
		{
			Key: "Sized.height", Base: "__wbg_height", Capability: CapDOM,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnU32(Arg[apiwasm.Sized](c, 0, "sized element").Height())
			},
		},
		{
			Key: "Resizable.setWidth", Base: "__wbg_width", Capability: CapDOM,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Resizable](c, 0, "resizable element").SetWidth(c.U32(1))
			},
		},
		{
			Key: "Resizable.setHeight", Base: "__wbg_height", Capability: CapDOM,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Resizable](c, 0, "resizable element").SetHeight(c.U32(1))
			},
		},
		{
			Key: "Canvas.getContext", Base: "__wbg_getContext", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				canvas := Arg[apiwasm.Canvas](c, 0, "HTMLCanvasElement")
				ctx, err := canvas.GetContext(c.Str(1), protocol.Undefined{})
				c.Check(err)
				c.ReturnOpt(ctx)
			},
		},
		{
			Key: "Canvas.getContextWithOptions", Base: "__wbg_getContext", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				canvas := Arg[apiwasm.Canvas](c, 0, "HTMLCanvasElement")
				kind := c.Str(1)
				options := c.Object(3)
				ctx, err := canvas.GetContext(kind, options)
				c.Check(err)
				c.ReturnOpt(ctx)
			},
		},
		{
			Key: "Image.new", Base: "__wbg_new", Capability: CapDOM, Catching: true,
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				img, err := c.Host().NewImage()
				c.Check(err)
				c.Return(img)
			},
		},
		{
			Key: "Image.src", Base: "__wbg_src", Capability: CapDOM,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Image](c, 0, "HTMLImageElement").SetSrc(c.Str(1))
			},
		},
		{
			Key: "Image.crossOrigin", Base: "__wbg_crossOrigin", Capability: CapDOM,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				img := Arg[apiwasm.Image](c, 0, "HTMLImageElement")
				img.SetCrossOrigin(c.OptStr(1))
			},
		},
		{
			Key: "Image.onload", Base: "__wbg_onload", Capability: CapDOM,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Image](c, 0, "HTMLImageElement").SetOnload(optFunction(c.Object(1)))
			},
		},
		{
			Key: "Image.onerror", Base: "__wbg_onerror", Capability: CapDOM,
			Params: []api.ValueType{i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Image](c, 0, "HTMLImageElement").SetOnerror(optFunction(c.Object(1)))
			},
		},
		{
			Key: "Document.body", Base: "__wbg_body", Capability: CapDOM,
			Params:  []api.ValueType{i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				c.ReturnOpt(Arg[apiwasm.Document](c, 0, "Document").Body())
			},
		},
		{
			Key: "Document.createElement", Base: "__wbg_createElement", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				doc := Arg[apiwasm.Document](c, 0, "Document")
				el, err := doc.CreateElement(c.Str(1))
				c.Check(err)
				c.Return(el)
			},
		},
		{
			Key: "Element.className", Base: "__wbg_className", Capability: CapDOM,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				Arg[apiwasm.Element](c, 0, "Element").SetClassName(c.Str(1))
			},
		},
		{
			Key: "Node.textContent", Base: "__wbg_textContent", Capability: CapDOM,
			Params: []api.ValueType{i32, i32, i32},
			Fn: func(c *Call) {
				node := Arg[apiwasm.Node](c, 0, "Node")
				node.SetTextContent(c.OptStr(1))
			},
		},
		{
			Key: "Node.appendChild", Base: "__wbg_appendChild", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				parent := Arg[apiwasm.Node](c, 0, "Node")
				child := Arg[apiwasm.Node](c, 1, "Node")
				res, err := parent.AppendChild(child)
				c.Check(err)
				c.Return(res)
			},
		},
		{
			Key: "Node.removeChild", Base: "__wbg_removeChild", Capability: CapDOM, Catching: true,
			Params:  []api.ValueType{i32, i32},
			Results: []api.ValueType{i32},
			Fn: func(c *Call) {
				parent := Arg[apiwasm.Node](c, 0, "Node")
				child := Arg[apiwasm.Node](c, 1, "Node")
				res, err := parent.RemoveChild(child)
				c.Check(err)
				c.Return(res)
			},
		},
	}
}
