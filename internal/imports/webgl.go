package imports

import (
	"fmt"

	"github.com/tetratelabs/wazero/api"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
)

// ints returns n i32 value types.
func ints(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = i32
	}
	return out
}

// glMethod builds a shim for a WebGLRenderingContext method whose receiver is argument 0.
func glMethod(name string, params, results []api.ValueType, fn func(c *Call, gl apiwasm.GLContext)) *Shim {
	return &Shim{
		Key:        "WebGL." + name,
		Base:       "__wbg_" + name,
		Capability: CapWebGL,
		Params:     params,
		Results:    results,
		Fn: func(c *Call) {
			fn(c, Arg[apiwasm.GLContext](c, 0, "WebGLRenderingContext"))
		},
	}
}

func catching(s *Shim) *Shim {
	s.Catching = true
	return s
}

func webglShims() []*Shim {
	shims := []*Shim{
		instanceOf[apiwasm.GLContext]("WebGlRenderingContext", CapWebGL),

		glMethod("canvas", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.Canvas())
		}),
		glMethod("drawingBufferWidth", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnI32(gl.DrawingBufferWidth())
		}),
		glMethod("drawingBufferHeight", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnI32(gl.DrawingBufferHeight())
		}),
		catching(glMethod("getExtension", ints(3), ints(1), func(c *Call, gl apiwasm.GLContext) {
			ext, err := gl.GetExtension(c.Str(1))
			c.Check(err)
			c.ReturnOpt(ext)
		})),
		catching(glMethod("getParameter", ints(2), ints(1), func(c *Call, gl apiwasm.GLContext) {
			v, err := gl.GetParameter(c.U32(1))
			c.Check(err)
			c.Return(v)
		})),

		glMethod("createBuffer", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.CreateBuffer())
		}),
		glMethod("createProgram", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.CreateProgram())
		}),
		glMethod("createShader", ints(2), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.CreateShader(c.U32(1)))
		}),
		glMethod("createTexture", ints(1), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.CreateTexture())
		}),
		glMethod("deleteProgram", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.DeleteProgram(c.Object(1))
		}),
		glMethod("deleteShader", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.DeleteShader(c.Object(1))
		}),

		glMethod("shaderSource", ints(4), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.ShaderSource(c.Object(1), c.Str(2))
		}),
		glMethod("compileShader", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.CompileShader(c.Object(1))
		}),
		glMethod("getShaderParameter", ints(3), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.Return(gl.GetShaderParameter(c.Object(1), c.U32(2)))
		}),
		glMethod("attachShader", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.AttachShader(c.Object(1), c.Object(2))
		}),
		glMethod("detachShader", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.DetachShader(c.Object(1), c.Object(2))
		}),
		glMethod("linkProgram", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.LinkProgram(c.Object(1))
		}),
		glMethod("getProgramParameter", ints(3), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.Return(gl.GetProgramParameter(c.Object(1), c.U32(2)))
		}),
		glMethod("useProgram", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.UseProgram(c.Object(1))
		}),
		glMethod("getActiveAttrib", ints(3), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.GetActiveAttrib(c.Object(1), c.U32(2)))
		}),
		glMethod("getActiveUniform", ints(3), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.GetActiveUniform(c.Object(1), c.U32(2)))
		}),
		glMethod("getAttribLocation", ints(4), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnI32(gl.GetAttribLocation(c.Object(1), c.Str(2)))
		}),
		glMethod("getUniformLocation", ints(4), ints(1), func(c *Call, gl apiwasm.GLContext) {
			c.ReturnOpt(gl.GetUniformLocation(c.Object(1), c.Str(2)))
		}),

		glMethod("bindBuffer", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.BindBuffer(c.U32(1), c.Object(2))
		}),
		glMethod("bufferData", ints(4), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.BufferData(c.U32(1), c.Object(2), c.U32(3))
		}),
		glMethod("bindTexture", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.BindTexture(c.U32(1), c.Object(2))
		}),
		glMethod("activeTexture", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.ActiveTexture(c.U32(1))
		}),
		glMethod("texParameteri", ints(4), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.TexParameteri(c.U32(1), c.U32(2), c.I32(3))
		}),
		glMethod("pixelStorei", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.PixelStorei(c.U32(1), c.I32(2))
		}),
		glMethod("generateMipmap", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.GenerateMipmap(c.U32(1))
		}),
		catching(glMethod("texImage2D", ints(10), nil, func(c *Call, gl apiwasm.GLContext) {
			c.Check(gl.TexImage2D(c.U32(1), c.I32(2), c.I32(3), c.I32(4), c.I32(5), c.I32(6), c.U32(7), c.U32(8), c.Object(9)))
		})),
		catching(glMethod("texImage2D", ints(7), nil, func(c *Call, gl apiwasm.GLContext) {
			c.Check(gl.TexImage2DSource(c.U32(1), c.I32(2), c.I32(3), c.U32(4), c.U32(5), c.Object(6)))
		})),

		glMethod("enableVertexAttribArray", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.EnableVertexAttribArray(c.U32(1))
		}),
		glMethod("vertexAttribPointer", ints(7), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.VertexAttribPointer(c.U32(1), c.I32(2), c.U32(3), c.Bool(4), c.I32(5), c.I32(6))
		}),

		glMethod("uniform1f", []api.ValueType{i32, i32, f32}, nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Uniform1f(c.Object(1), c.F32(2))
		}),
		glMethod("uniform2f", []api.ValueType{i32, i32, f32, f32}, nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Uniform2f(c.Object(1), c.F32(2), c.F32(3))
		}),
		glMethod("uniform3f", []api.ValueType{i32, i32, f32, f32, f32}, nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Uniform3f(c.Object(1), c.F32(2), c.F32(3), c.F32(4))
		}),
		glMethod("uniform4f", []api.ValueType{i32, i32, f32, f32, f32, f32}, nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Uniform4f(c.Object(1), c.F32(2), c.F32(3), c.F32(4), c.F32(5))
		}),
		glMethod("uniform1i", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Uniform1i(c.Object(1), c.I32(2))
		}),

		glMethod("enable", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Enable(c.U32(1))
		}),
		glMethod("disable", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Disable(c.U32(1))
		}),
		glMethod("blendFunc", ints(3), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.BlendFunc(c.U32(1), c.U32(2))
		}),
		glMethod("clearColor", []api.ValueType{i32, f32, f32, f32, f32}, nil, func(c *Call, gl apiwasm.GLContext) {
			gl.ClearColor(c.F32(1), c.F32(2), c.F32(3), c.F32(4))
		}),
		glMethod("clear", ints(2), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Clear(c.U32(1))
		}),
		glMethod("viewport", ints(5), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.Viewport(c.I32(1), c.I32(2), c.I32(3), c.I32(4))
		}),

		{
			Key: "WebGL.getProgramInfoLog", Base: "__wbg_getProgramInfoLog", Capability: CapWebGL,
			Params: ints(3),
			Fn: func(c *Call) {
				retptr := c.U32(0)
				gl := Arg[apiwasm.GLContext](c, 1, "WebGLRenderingContext")
				log, ok := gl.GetProgramInfoLog(c.Object(2))
				c.WriteString(retptr, log, ok)
			},
		},
		{
			Key: "WebGL.getShaderInfoLog", Base: "__wbg_getShaderInfoLog", Capability: CapWebGL,
			Params: ints(3),
			Fn: func(c *Call) {
				retptr := c.U32(0)
				gl := Arg[apiwasm.GLContext](c, 1, "WebGLRenderingContext")
				log, ok := gl.GetShaderInfoLog(c.Object(2))
				c.WriteString(retptr, log, ok)
			},
		},

		{
			Key: "ANGLE.drawArraysInstancedANGLE", Base: "__wbg_drawArraysInstancedANGLE", Capability: CapWebGL,
			Params: ints(5),
			Fn: func(c *Call) {
				ext := Arg[apiwasm.InstancedArrays](c, 0, "ANGLE_instanced_arrays")
				ext.DrawArraysInstancedANGLE(c.U32(1), c.I32(2), c.I32(3), c.I32(4))
			},
		},
		{
			Key: "ANGLE.vertexAttribDivisorANGLE", Base: "__wbg_vertexAttribDivisorANGLE", Capability: CapWebGL,
			Params: ints(3),
			Fn: func(c *Call) {
				ext := Arg[apiwasm.InstancedArrays](c, 0, "ANGLE_instanced_arrays")
				ext.VertexAttribDivisorANGLE(c.U32(1), c.U32(2))
			},
		},

		{
			Key: "ActiveInfo.size", Base: "__wbg_size", Capability: CapWebGL,
			Params:  ints(1),
			Results: ints(1),
			Fn: func(c *Call) {
				c.ReturnI32(Arg[apiwasm.ActiveInfo](c, 0, "WebGLActiveInfo").Size())
			},
		},
		{
			Key: "ActiveInfo.type", Base: "__wbg_type", Capability: CapWebGL,
			Params:  ints(1),
			Results: ints(1),
			Fn: func(c *Call) {
				c.ReturnU32(Arg[apiwasm.ActiveInfo](c, 0, "WebGLActiveInfo").Type())
			},
		},
		{
			Key: "ActiveInfo.name", Base: "__wbg_name", Capability: CapWebGL,
			Params: ints(2),
			Fn: func(c *Call) {
				retptr := c.U32(0)
				c.WriteString(retptr, Arg[apiwasm.ActiveInfo](c, 1, "WebGLActiveInfo").Name(), true)
			},
		},
	}

	for n := 1; n <= 4; n++ {
		shims = append(shims, glMethod(fmt.Sprintf("uniform%dfv", n), ints(4), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.UniformNfv(n, c.Object(1), c.Float32s(2))
		}))
	}
	for n := 2; n <= 4; n++ {
		shims = append(shims, glMethod(fmt.Sprintf("uniformMatrix%dfv", n), ints(5), nil, func(c *Call, gl apiwasm.GLContext) {
			gl.UniformMatrixNfv(n, c.Object(1), c.Bool(2), c.Float32s(3))
		}))
	}

	// Both texImage2D forms share a key otherwise.
	for _, s := range shims {
		if s.Base == "__wbg_texImage2D" && len(s.Params) == 7 {
			s.Key = "WebGL.texImage2DSource"
		}
	}

	return shims
}
