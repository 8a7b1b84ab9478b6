package hostenv

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// WebGL enums the recorder interprets.
const (
	glFragmentShader = 0x8B30
	glVertexShader   = 0x8B31

	glShaderType       = 0x8B4F
	glDeleteStatus     = 0x8B80
	glCompileStatus    = 0x8B81
	glLinkStatus       = 0x8B82
	glActiveUniforms   = 0x8B86
	glActiveAttributes = 0x8B89

	glMaxTextureSize        = 0x0D33
	glMaxVertexAttribs      = 0x8869
	glMaxTextureImageUnits  = 0x8872
	glMaxCombinedImageUnits = 0x8B4D
	glVendor                = 0x1F00
	glRenderer              = 0x1F01
	glVersion               = 0x1F02
	glShadingLanguage       = 0x8B8C
)

var glslTypes = map[string]uint32{
	"float":       0x1406,
	"int":         0x1404,
	"bool":        0x8B56,
	"vec2":        0x8B50,
	"vec3":        0x8B51,
	"vec4":        0x8B52,
	"ivec2":       0x8B53,
	"ivec3":       0x8B54,
	"ivec4":       0x8B55,
	"mat2":        0x8B5A,
	"mat3":        0x8B5B,
	"mat4":        0x8B5C,
	"sampler2D":   0x8B5E,
	"samplerCube": 0x8B60,
}

// GLCommand is one recorded context call.
type GLCommand struct {
	Name string
	Args []any
}

func (c GLCommand) String() string {
	parts := make([]string, len(c.Args))
	for i, a := range c.Args {
		parts[i] = fmt.Sprint(a)
	}
	return c.Name + "(" + strings.Join(parts, ", ") + ")"
}

// GLObject identifies a buffer, texture, shader or program.
type GLObject struct {
	Kind string
	ID   uint32
}

func (o *GLObject) String() string {
	return o.Kind + "#" + strconv.FormatUint(uint64(o.ID), 10)
}

// GLBuffer is a vertex or index buffer.
type GLBuffer struct{ GLObject }

// GLTexture is a texture object.
type GLTexture struct{ GLObject }

// GLShader is a shader object.
type GLShader struct {
	GLObject

	kind     uint32
	source   string
	compiled bool
	deleted  bool
}

// GLProgram is a program object.
type GLProgram struct {
	GLObject

	shaders  []*GLShader
	linked   bool
	deleted  bool
	infoLog  string
	attribs  []*GLActiveInfo
	uniforms []*GLActiveInfo
}

// GLActiveInfo describes an active attribute or uniform.
type GLActiveInfo struct {
	size int32
	typ  uint32
	name string
}

// Size returns the array size, 1 for scalars.
func (a *GLActiveInfo) Size() int32 { return a.size }

// Type returns the GL type enum.
func (a *GLActiveInfo) Type() uint32 { return a.typ }

// Name returns the variable name; arrays carry a "[0]" suffix.
func (a *GLActiveInfo) Name() string { return a.name }

// GLUniformLocation refers to a uniform of a linked program.
type GLUniformLocation struct {
	program *GLProgram
	name    string
}

func (l *GLUniformLocation) String() string {
	return l.program.String() + "." + l.name
}

// GLContext records WebGL calls instead of rendering them.
type GLContext struct {
	canvas *Canvas
	logger *zap.Logger

	nextID   uint32
	commands []GLCommand
	counts   map[string]int
	program  *GLProgram
}

func newGLContext(canvas *Canvas, logger *zap.Logger) *GLContext {
	return &GLContext{
		canvas: canvas,
		logger: logger.With(zap.String("component", "webgl")),
		counts: make(map[string]int),
	}
}

func (g *GLContext) record(name string, args ...any) {
	g.commands = append(g.commands, GLCommand{Name: name, Args: args})
	g.counts[name]++
	if ce := g.logger.Check(zap.DebugLevel, "GL command"); ce != nil {
		ce.Write(zap.Stringer("command", g.commands[len(g.commands)-1]))
	}
}

func (g *GLContext) newObject(kind string) GLObject {
	g.nextID++
	return GLObject{Kind: kind, ID: g.nextID}
}

// Commands returns the recorded calls in order.
func (g *GLContext) Commands() []GLCommand {
	return append([]GLCommand(nil), g.commands...)
}

// Count returns how many times name was called.
func (g *GLContext) Count(name string) int {
	return g.counts[name]
}

// Draws returns the number of draw calls.
func (g *GLContext) Draws() int {
	return g.counts["drawArraysInstancedANGLE"] + g.counts["drawArrays"] + g.counts["drawElements"]
}

// WriteLog writes one recorded call per line.
func (g *GLContext) WriteLog(w io.Writer) error {
	for _, c := range g.commands {
		if _, err := fmt.Fprintln(w, c.String()); err != nil {
			return err
		}
	}
	return nil
}

// Canvas returns the owning canvas.
func (g *GLContext) Canvas() apiwasm.Canvas { return g.canvas }

// DrawingBufferWidth returns the canvas width.
func (g *GLContext) DrawingBufferWidth() int32 { return int32(g.canvas.width) }

// DrawingBufferHeight returns the canvas height.
func (g *GLContext) DrawingBufferHeight() int32 { return int32(g.canvas.height) }

// GetExtension returns ANGLE_instanced_arrays; other extensions are unavailable.
func (g *GLContext) GetExtension(name string) (any, error) {
	g.record("getExtension", name)
	if name == "ANGLE_instanced_arrays" {
		return &instancedArrays{gl: g}, nil
	}
	return nil, nil
}

// GetParameter answers the limits and strings guests commonly query.
func (g *GLContext) GetParameter(pname uint32) (any, error) {
	switch pname {
	case glMaxTextureSize:
		return 4096.0, nil
	case glMaxVertexAttribs:
		return 16.0, nil
	case glMaxTextureImageUnits:
		return 16.0, nil
	case glMaxCombinedImageUnits:
		return 32.0, nil
	case glVendor:
		return "wbg-host", nil
	case glRenderer:
		return "wbg-host command recorder", nil
	case glVersion:
		return "WebGL 1.0", nil
	case glShadingLanguage:
		return "WebGL GLSL ES 1.0", nil
	}
	return protocol.Null{}, nil
}

// CreateBuffer creates a buffer object.
func (g *GLContext) CreateBuffer() any {
	b := &GLBuffer{g.newObject("buffer")}
	g.record("createBuffer", b)
	return b
}

// CreateProgram creates a program object.
func (g *GLContext) CreateProgram() any {
	p := &GLProgram{GLObject: g.newObject("program")}
	g.record("createProgram", p)
	return p
}

// CreateShader creates a shader of kind; unknown kinds yield nil.
func (g *GLContext) CreateShader(kind uint32) any {
	if kind != glVertexShader && kind != glFragmentShader {
		g.record("createShader", kind)
		return nil
	}
	s := &GLShader{GLObject: g.newObject("shader"), kind: kind}
	g.record("createShader", s)
	return s
}

// CreateTexture creates a texture object.
func (g *GLContext) CreateTexture() any {
	t := &GLTexture{g.newObject("texture")}
	g.record("createTexture", t)
	return t
}

// DeleteProgram marks program deleted.
func (g *GLContext) DeleteProgram(program any) {
	if p, ok := program.(*GLProgram); ok {
		p.deleted = true
	}
	g.record("deleteProgram", program)
}

// DeleteShader marks shader deleted.
func (g *GLContext) DeleteShader(shader any) {
	if s, ok := shader.(*GLShader); ok {
		s.deleted = true
	}
	g.record("deleteShader", shader)
}

// ShaderSource assigns source text.
func (g *GLContext) ShaderSource(shader any, source string) {
	if s, ok := shader.(*GLShader); ok {
		s.source = source
	}
	g.record("shaderSource", shader, len(source))
}

// CompileShader succeeds for any non-empty source.
func (g *GLContext) CompileShader(shader any) {
	if s, ok := shader.(*GLShader); ok {
		s.compiled = strings.TrimSpace(s.source) != ""
	}
	g.record("compileShader", shader)
}

// GetShaderParameter answers COMPILE_STATUS, SHADER_TYPE and DELETE_STATUS.
func (g *GLContext) GetShaderParameter(shader any, pname uint32) any {
	s, ok := shader.(*GLShader)
	if !ok {
		return protocol.Null{}
	}
	switch pname {
	case glCompileStatus:
		return s.compiled
	case glShaderType:
		return float64(s.kind)
	case glDeleteStatus:
		return s.deleted
	}
	return protocol.Null{}
}

// GetShaderInfoLog returns the compile log.
func (g *GLContext) GetShaderInfoLog(shader any) (string, bool) {
	s, ok := shader.(*GLShader)
	if !ok {
		return "", false
	}
	if !s.compiled {
		return "ERROR: 0:1: empty shader source", true
	}
	return "", true
}

// AttachShader attaches shader to program.
func (g *GLContext) AttachShader(program, shader any) {
	p, pok := program.(*GLProgram)
	s, sok := shader.(*GLShader)
	if pok && sok {
		p.shaders = append(p.shaders, s)
	}
	g.record("attachShader", program, shader)
}

// DetachShader detaches shader from program.
func (g *GLContext) DetachShader(program, shader any) {
	if p, ok := program.(*GLProgram); ok {
		for i, s := range p.shaders {
			if s == shader {
				p.shaders = append(p.shaders[:i], p.shaders[i+1:]...)
				break
			}
		}
	}
	g.record("detachShader", program, shader)
}

// LinkProgram links when one compiled vertex and one compiled fragment shader
// are attached, and derives active attributes and uniforms from their sources.
func (g *GLContext) LinkProgram(program any) {
	g.record("linkProgram", program)

	p, ok := program.(*GLProgram)
	if !ok {
		return
	}

	var vs, fs *GLShader
	for _, s := range p.shaders {
		switch {
		case s.kind == glVertexShader && s.compiled:
			vs = s
		case s.kind == glFragmentShader && s.compiled:
			fs = s
		}
	}
	if vs == nil || fs == nil {
		p.linked = false
		p.infoLog = "ERROR: program needs a compiled vertex and fragment shader"
		return
	}

	p.linked = true
	p.infoLog = ""
	p.attribs = parseDeclarations(vs.source, "attribute", nil)
	p.uniforms = parseDeclarations(fs.source, "uniform", parseDeclarations(vs.source, "uniform", nil))
}

// GetProgramParameter answers LINK_STATUS, DELETE_STATUS and the active counts.
func (g *GLContext) GetProgramParameter(program any, pname uint32) any {
	p, ok := program.(*GLProgram)
	if !ok {
		return protocol.Null{}
	}
	switch pname {
	case glLinkStatus:
		return p.linked
	case glDeleteStatus:
		return p.deleted
	case glActiveAttributes:
		return float64(len(p.attribs))
	case glActiveUniforms:
		return float64(len(p.uniforms))
	}
	return protocol.Null{}
}

// GetProgramInfoLog returns the link log.
func (g *GLContext) GetProgramInfoLog(program any) (string, bool) {
	p, ok := program.(*GLProgram)
	if !ok {
		return "", false
	}
	return p.infoLog, true
}

// UseProgram selects program for drawing.
func (g *GLContext) UseProgram(program any) {
	p, _ := program.(*GLProgram)
	g.program = p
	g.record("useProgram", program)
}

// GetActiveAttrib returns attribute index of program, or nil.
func (g *GLContext) GetActiveAttrib(program any, index uint32) apiwasm.ActiveInfo {
	p, ok := program.(*GLProgram)
	if !ok || int(index) >= len(p.attribs) {
		return nil
	}
	return p.attribs[index]
}

// GetActiveUniform returns uniform index of program, or nil.
func (g *GLContext) GetActiveUniform(program any, index uint32) apiwasm.ActiveInfo {
	p, ok := program.(*GLProgram)
	if !ok || int(index) >= len(p.uniforms) {
		return nil
	}
	return p.uniforms[index]
}

// GetAttribLocation returns the attribute's index, or -1.
func (g *GLContext) GetAttribLocation(program any, name string) int32 {
	p, ok := program.(*GLProgram)
	if !ok {
		return -1
	}
	for i, a := range p.attribs {
		if a.name == name {
			return int32(i)
		}
	}
	return -1
}

// GetUniformLocation returns a location for an active uniform, or nil.
func (g *GLContext) GetUniformLocation(program any, name string) any {
	p, ok := program.(*GLProgram)
	if !ok {
		return nil
	}
	for _, u := range p.uniforms {
		if u.name == name || strings.TrimSuffix(u.name, "[0]") == name {
			return &GLUniformLocation{program: p, name: name}
		}
	}
	return nil
}

// BindBuffer binds buffer to target.
func (g *GLContext) BindBuffer(target uint32, buffer any) {
	g.record("bindBuffer", target, buffer)
}

// BufferData uploads data; only its size is recorded.
func (g *GLContext) BufferData(target uint32, data any, usage uint32) {
	size := 0
	switch d := data.(type) {
	case *protocol.Float32Array:
		size = d.Len() * 4
	case *protocol.Uint8Array:
		size = d.Len()
	case *protocol.ArrayBuffer:
		size = len(d.Data)
	default:
		if n, ok := protocol.ToNumber(data); ok {
			size = int(n)
		}
	}
	g.record("bufferData", target, size, usage)
}

// BindTexture binds texture to target.
func (g *GLContext) BindTexture(target uint32, texture any) {
	g.record("bindTexture", target, texture)
}

// ActiveTexture selects a texture unit.
func (g *GLContext) ActiveTexture(unit uint32) {
	g.record("activeTexture", unit)
}

// TexParameteri sets a texture parameter.
func (g *GLContext) TexParameteri(target, pname uint32, param int32) {
	g.record("texParameteri", target, pname, param)
}

// PixelStorei sets a pixel storage mode.
func (g *GLContext) PixelStorei(pname uint32, param int32) {
	g.record("pixelStorei", pname, param)
}

// GenerateMipmap records mipmap generation.
func (g *GLContext) GenerateMipmap(target uint32) {
	g.record("generateMipmap", target)
}

// TexImage2D uploads raw pixels, which may be null.
func (g *GLContext) TexImage2D(target uint32, level, internalFormat int32, width, height, border int32, format, typ uint32, pixels any) error {
	if width < 0 || height < 0 {
		return &protocol.ErrorValue{Name: "RangeError", Message: "negative texture size"}
	}
	g.record("texImage2D", target, level, internalFormat, width, height, border, format, typ)
	return nil
}

// TexImage2DSource uploads an image-like source.
func (g *GLContext) TexImage2DSource(target uint32, level, internalFormat int32, format, typ uint32, source any) error {
	s, ok := source.(apiwasm.Sized)
	if !ok {
		return protocol.NewTypeError("texImage2D: source is not an image, canvas or bitmap")
	}
	g.record("texImage2D", target, level, internalFormat, s.Width(), s.Height(), format, typ)
	return nil
}

// EnableVertexAttribArray enables an attribute array.
func (g *GLContext) EnableVertexAttribArray(index uint32) {
	g.record("enableVertexAttribArray", index)
}

// VertexAttribPointer describes an attribute array layout.
func (g *GLContext) VertexAttribPointer(index uint32, size int32, typ uint32, normalized bool, stride, offset int32) {
	g.record("vertexAttribPointer", index, size, typ, normalized, stride, offset)
}

// Uniform1f sets a float uniform.
func (g *GLContext) Uniform1f(location any, x float32) {
	g.record("uniform1f", location, x)
}

// Uniform2f sets a vec2 uniform.
func (g *GLContext) Uniform2f(location any, x, y float32) {
	g.record("uniform2f", location, x, y)
}

// Uniform3f sets a vec3 uniform.
func (g *GLContext) Uniform3f(location any, x, y, z float32) {
	g.record("uniform3f", location, x, y, z)
}

// Uniform4f sets a vec4 uniform.
func (g *GLContext) Uniform4f(location any, x, y, z, w float32) {
	g.record("uniform4f", location, x, y, z, w)
}

// Uniform1i sets an int or sampler uniform.
func (g *GLContext) Uniform1i(location any, x int32) {
	g.record("uniform1i", location, x)
}

// UniformNfv sets a float vector uniform of width n.
func (g *GLContext) UniformNfv(n int, location any, data []float32) {
	g.record(fmt.Sprintf("uniform%dfv", n), location, len(data))
}

// UniformMatrixNfv sets an n-by-n matrix uniform.
func (g *GLContext) UniformMatrixNfv(n int, location any, transpose bool, data []float32) {
	g.record(fmt.Sprintf("uniformMatrix%dfv", n), location, transpose, len(data))
}

// Enable turns on a capability.
func (g *GLContext) Enable(capability uint32) { g.record("enable", capability) }

// Disable turns off a capability.
func (g *GLContext) Disable(capability uint32) { g.record("disable", capability) }

// BlendFunc sets blending factors.
func (g *GLContext) BlendFunc(sfactor, dfactor uint32) {
	g.record("blendFunc", sfactor, dfactor)
}

// ClearColor sets the clear color.
func (g *GLContext) ClearColor(r, gr, b, a float32) {
	g.record("clearColor", r, gr, b, a)
}

// Clear clears the buffers in mask.
func (g *GLContext) Clear(mask uint32) { g.record("clear", mask) }

// Viewport sets the viewport rectangle.
func (g *GLContext) Viewport(x, y, width, height int32) {
	g.record("viewport", x, y, width, height)
}

type instancedArrays struct {
	gl *GLContext
}

func (e *instancedArrays) DrawArraysInstancedANGLE(mode uint32, first, count, primcount int32) {
	e.gl.record("drawArraysInstancedANGLE", mode, first, count, primcount)
}

func (e *instancedArrays) VertexAttribDivisorANGLE(index, divisor uint32) {
	e.gl.record("vertexAttribDivisorANGLE", index, divisor)
}

// parseDeclarations collects "attribute"/"uniform" declarations of a GLSL ES
// source, appending names not already in infos.
func parseDeclarations(source, qualifier string, infos []*GLActiveInfo) []*GLActiveInfo {
	seen := make(map[string]bool, len(infos))
	for _, info := range infos {
		seen[info.name] = true
	}

	for _, stmt := range strings.Split(stripComments(source), ";") {
		fields := strings.Fields(stmt)
		if len(fields) < 3 || fields[0] != qualifier {
			continue
		}
		fields = fields[1:]
		if fields[0] == "lowp" || fields[0] == "mediump" || fields[0] == "highp" {
			fields = fields[1:]
		}
		if len(fields) < 2 {
			continue
		}

		typ, ok := glslTypes[fields[0]]
		if !ok {
			continue
		}

		for _, decl := range strings.Split(strings.Join(fields[1:], ""), ",") {
			name, size := decl, int32(1)
			if i := strings.IndexByte(decl, '['); i > 0 && strings.HasSuffix(decl, "]") {
				n, err := strconv.Atoi(decl[i+1 : len(decl)-1])
				if err != nil || n < 1 {
					continue
				}
				name, size = decl[:i]+"[0]", int32(n)
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			infos = append(infos, &GLActiveInfo{size: size, typ: typ, name: name})
		}
	}
	return infos
}

func stripComments(src string) string {
	var b strings.Builder
	for _, line := range strings.Split(src, "\n") {
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

var (
	_ apiwasm.GLContext       = (*GLContext)(nil)
	_ apiwasm.InstancedArrays = (*instancedArrays)(nil)
)
