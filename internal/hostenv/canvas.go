package hostenv

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Canvas is a canvas element whose only context kind is the WebGL recorder.
type Canvas struct {
	Element

	env    *Env
	width  uint32
	height uint32
	gl     *GLContext
}

func newCanvas(env *Env, el Element) *Canvas {
	return &Canvas{Element: el, env: env, width: 300, height: 150}
}

// Width returns the drawing buffer width.
func (c *Canvas) Width() uint32 { return c.width }

// Height returns the drawing buffer height.
func (c *Canvas) Height() uint32 { return c.height }

// SetWidth resizes the drawing buffer.
func (c *Canvas) SetWidth(w uint32) { c.width = w }

// SetHeight resizes the drawing buffer.
func (c *Canvas) SetHeight(h uint32) { c.height = h }

// GetContext returns the WebGL recorder for "webgl" and "experimental-webgl",
// creating it on first use. Other kinds are unavailable.
func (c *Canvas) GetContext(kind string, options any) (any, error) {
	switch kind {
	case "webgl", "experimental-webgl":
	default:
		c.env.logger.Debug("Canvas context kind unavailable", zap.String("kind", kind))
		return nil, nil
	}

	if c.gl == nil {
		c.gl = newGLContext(c, c.env.logger)
		c.env.contexts = append(c.env.contexts, c.gl)
	}
	return c.gl, nil
}

// Image is an img element. Assigning a source starts an asynchronous load that
// ends with onload or onerror on the loop.
type Image struct {
	Element

	env         *Env
	src         string
	crossOrigin string
	hasCORS     bool
	width       uint32
	height      uint32
	complete    bool

	onload  protocol.Function
	onerror protocol.Function
}

func newImage(env *Env, el Element) *Image {
	return &Image{Element: el, env: env}
}

// Src returns the assigned source.
func (i *Image) Src() string { return i.src }

// CrossOrigin returns the CORS mode and whether one is set.
func (i *Image) CrossOrigin() (string, bool) { return i.crossOrigin, i.hasCORS }

// Complete reports whether the last load finished.
func (i *Image) Complete() bool { return i.complete }

// Width returns the decoded width, 0 before load.
func (i *Image) Width() uint32 { return i.width }

// Height returns the decoded height, 0 before load.
func (i *Image) Height() uint32 { return i.height }

// SetCrossOrigin assigns the CORS mode.
func (i *Image) SetCrossOrigin(mode string, present bool) {
	i.crossOrigin, i.hasCORS = mode, present
	if !present {
		i.crossOrigin = ""
	}
}

// SetOnload assigns the load handler.
func (i *Image) SetOnload(fn protocol.Function) { i.onload = fn }

// SetOnerror assigns the error handler.
func (i *Image) SetOnerror(fn protocol.Function) { i.onerror = fn }

// SetSrc assigns the source and starts loading it.
func (i *Image) SetSrc(src string) {
	i.src = src
	i.complete = false

	target, err := i.env.resolveURL(src)
	if err != nil {
		i.env.loop.Post(func(ctx context.Context) error {
			return i.finish(ctx, 0, 0, err)
		})
		return
	}

	i.env.loop.Async(func() Task {
		data, err := i.env.download(target)
		if err != nil {
			return func(ctx context.Context) error { return i.finish(ctx, 0, 0, err) }
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return func(ctx context.Context) error { return i.finish(ctx, 0, 0, err) }
		}

		i.env.logger.Debug("Image decoded",
			zap.String("src", target),
			zap.String("format", format),
			zap.Int("width", cfg.Width),
			zap.Int("height", cfg.Height),
		)
		return func(ctx context.Context) error {
			return i.finish(ctx, uint32(cfg.Width), uint32(cfg.Height), nil)
		}
	})
}

func (i *Image) finish(ctx context.Context, w, h uint32, loadErr error) error {
	i.complete = true

	handler, ev := i.onload, NewEvent("load")
	if loadErr != nil {
		i.env.logger.Warn("Image load failed", zap.String("src", i.src), zap.Error(loadErr))
		handler, ev = i.onerror, NewEvent("error")
	} else {
		i.width, i.height = w, h
	}

	if handler == nil {
		return nil
	}
	_, err := handler.Call(ctx, i, ev)
	return err
}

var (
	_ apiwasm.Canvas = (*Canvas)(nil)
	_ apiwasm.Image  = (*Image)(nil)
)
