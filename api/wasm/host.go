package wasm

import (
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Host defines the capabilities a guest can reach through its imports.
// Objects returned by a Host are handed to the guest as handles; the import
// shims discover what they can do through the interfaces below.
type Host interface {
	// Global returns a global binding: "globalThis", "self", "window" or "global".
	Global(name string) (any, error)

	NewImage() (Image, error)
	NewURL(raw string) (URL, error)
	NewRequest(url string) (Request, error)
	NewEvent(typ string) (Event, error)

	// NewPromise runs executor synchronously with resolve and reject functions.
	NewPromise(executor func(resolve, reject protocol.Function) error) (Promise, error)
	ResolvedPromise(v any) Promise

	// Require loads a host module by name.
	Require(module string) (any, error)

	// NewFunction compiles body into a callable.
	NewFunction(body string) (protocol.Function, error)
}

// EventTarget accepts event listeners.
type EventTarget interface {
	AddEventListener(typ string, listener protocol.Function, options any) error
}

// Node is a member of the document tree.
type Node interface {
	EventTarget
	AppendChild(child Node) (Node, error)
	RemoveChild(child Node) (Node, error)
	// SetTextContent replaces the node's children with text; present=false clears it.
	SetTextContent(text string, present bool)
}

// Element is a tagged document node.
type Element interface {
	Node
	TagName() string
	SetClassName(name string)
}

// HTMLElement marks elements of the HTML namespace.
type HTMLElement interface {
	Element
	HTML()
}

// Document is the root of the document tree.
type Document interface {
	Node
	// Body returns nil when the document has no body.
	Body() Element
	CreateElement(tag string) (Element, error)
}

// Location exposes the page address.
type Location interface {
	Origin() (string, error)
}

// Performance is the high-resolution clock.
type Performance interface {
	// Now returns milliseconds since the environment started.
	Now() float64
}

// Crypto fills buffers with secure random bytes.
type Crypto interface {
	GetRandomValues(buf []byte) error
}

// NodeCrypto is the require("crypto") flavour of Crypto.
type NodeCrypto interface {
	RandomFillSync(buf []byte) error
}

// Window is the top-level browsing context.
type Window interface {
	EventTarget
	// Document returns nil when there is no document.
	Document() Document
	Location() Location
	InnerWidth() (float64, error)
	InnerHeight() (float64, error)
	// Performance returns nil when there is no clock.
	Performance() Performance
	RequestAnimationFrame(cb protocol.Function) (int32, error)
	Fetch(input any) Promise
	Crypto() Crypto
}

// Sized is implemented by anything with pixel dimensions.
type Sized interface {
	Width() uint32
	Height() uint32
}

// Resizable is a Sized value whose dimensions can be assigned.
type Resizable interface {
	Sized
	SetWidth(w uint32)
	SetHeight(h uint32)
}

// Canvas is a drawing surface element.
type Canvas interface {
	HTMLElement
	Resizable
	// GetContext returns nil when the context kind is not available.
	GetContext(kind string, options any) (any, error)
}

// Image is an image element that loads asynchronously.
type Image interface {
	HTMLElement
	Sized
	SetSrc(src string)
	// SetCrossOrigin assigns the CORS mode; present=false removes it.
	SetCrossOrigin(mode string, present bool)
	SetOnload(fn protocol.Function)
	SetOnerror(fn protocol.Function)
}

// URL is a parsed absolute URL.
type URL interface {
	Href() string
	Origin() string
}

// Request describes a fetch request.
type Request interface {
	URL() string
	Method() string
}

// Response is the result of a fetch.
type Response interface {
	Status() int
	// Text returns a promise for the body decoded as UTF-8.
	Text() (Promise, error)
}

// Event is a named occurrence delivered to listeners.
type Event interface {
	Type() string
}

// Promise is an eventual value. Continuations run on the host event loop.
type Promise interface {
	Then(onFulfilled, onRejected protocol.Function) Promise
}

// ActiveInfo describes an active attribute or uniform of a program.
type ActiveInfo interface {
	Size() int32
	Type() uint32
	Name() string
}

// InstancedArrays is the ANGLE_instanced_arrays extension.
type InstancedArrays interface {
	DrawArraysInstancedANGLE(mode uint32, first, count, primcount int32)
	VertexAttribDivisorANGLE(index, divisor uint32)
}

// GLContext is a WebGL 1 rendering context. GL objects (buffers, programs,
// shaders, textures, uniform locations) are opaque values created by the context.
type GLContext interface {
	Canvas() Canvas
	DrawingBufferWidth() int32
	DrawingBufferHeight() int32
	GetExtension(name string) (any, error)
	GetParameter(pname uint32) (any, error)

	CreateBuffer() any
	CreateProgram() any
	CreateShader(kind uint32) any
	CreateTexture() any
	DeleteProgram(program any)
	DeleteShader(shader any)

	ShaderSource(shader any, source string)
	CompileShader(shader any)
	GetShaderParameter(shader any, pname uint32) any
	GetShaderInfoLog(shader any) (string, bool)
	AttachShader(program, shader any)
	DetachShader(program, shader any)
	LinkProgram(program any)
	GetProgramParameter(program any, pname uint32) any
	GetProgramInfoLog(program any) (string, bool)
	UseProgram(program any)
	GetActiveAttrib(program any, index uint32) ActiveInfo
	GetActiveUniform(program any, index uint32) ActiveInfo
	GetAttribLocation(program any, name string) int32
	GetUniformLocation(program any, name string) any

	BindBuffer(target uint32, buffer any)
	BufferData(target uint32, data any, usage uint32)
	BindTexture(target uint32, texture any)
	ActiveTexture(unit uint32)
	TexParameteri(target, pname uint32, param int32)
	PixelStorei(pname uint32, param int32)
	GenerateMipmap(target uint32)
	TexImage2D(target uint32, level, internalFormat int32, width, height, border int32, format, typ uint32, pixels any) error
	TexImage2DSource(target uint32, level, internalFormat int32, format, typ uint32, source any) error

	EnableVertexAttribArray(index uint32)
	VertexAttribPointer(index uint32, size int32, typ uint32, normalized bool, stride, offset int32)

	Uniform1f(location any, x float32)
	Uniform2f(location any, x, y float32)
	Uniform3f(location any, x, y, z float32)
	Uniform4f(location any, x, y, z, w float32)
	Uniform1i(location any, x int32)
	UniformNfv(n int, location any, data []float32)
	UniformMatrixNfv(n int, location any, transpose bool, data []float32)

	Enable(capability uint32)
	Disable(capability uint32)
	BlendFunc(sfactor, dfactor uint32)
	ClearColor(r, g, b, a float32)
	Clear(mask uint32)
	Viewport(x, y, width, height int32)
}
