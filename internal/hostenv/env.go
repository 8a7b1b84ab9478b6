// Package hostenv is a headless host environment for guests: a window and
// document tree, a WebGL command recorder, fetch over net/http, timers and
// secure random bytes, all driven by a single event loop.
package hostenv

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Config configures a host environment.
type Config struct {
	// BaseURL resolves relative fetch and image URLs. Empty rejects them.
	BaseURL string

	// Origin is reported as location.origin and sent as the Origin header.
	// Empty derives it from BaseURL.
	Origin string

	FetchTimeout   time.Duration
	ViewportWidth  int
	ViewportHeight int

	// FrameInterval paces animation frames; zero runs them back to back.
	FrameInterval time.Duration

	// MaxBodyBytes caps buffered fetch and image bodies. Zero means 64 MiB.
	MaxBodyBytes int64

	// HTTPClient overrides the client used for fetch and image loads.
	HTTPClient *http.Client
}

// Env is the headless host. It implements apiwasm.Host.
type Env struct {
	cfg    Config
	base   *url.URL
	client *http.Client
	logger *zap.Logger

	loop        *Loop
	window      *Window
	document    *Document
	location    *Location
	performance *Performance
	crypto      *Crypto
	contexts    []*GLContext
}

// New creates an environment with an empty document whose body is attached.
func New(cfg Config, logger *zap.Logger) (*Env, error) {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.ViewportWidth <= 0 {
		cfg.ViewportWidth = 1280
	}
	if cfg.ViewportHeight <= 0 {
		cfg.ViewportHeight = 720
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	e := &Env{
		cfg:         cfg,
		client:      cfg.HTTPClient,
		logger:      logger.With(zap.String("component", "hostenv")),
		performance: &Performance{start: time.Now()},
		crypto:      NewCrypto(),
	}
	if e.client == nil {
		e.client = &http.Client{}
	}

	origin := cfg.Origin
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil || !base.IsAbs() {
			return nil, protocol.NewTypeError("invalid base URL '%s'", cfg.BaseURL)
		}
		e.base = base
		if origin == "" {
			origin = originOf(base)
		}
	}
	if origin == "" {
		origin = "null"
	}
	e.location = &Location{origin: origin}

	e.loop = NewLoop(cfg.FrameInterval, e.performance.Now, logger)
	e.window = &Window{env: e}
	e.document = &Document{env: e}
	e.document.body = &Element{tag: "body"}
	if _, err := e.document.AppendChild(e.document.body); err != nil {
		return nil, err
	}

	e.logger.Info("Host environment created",
		zap.String("origin", origin),
		zap.Int("viewport_width", cfg.ViewportWidth),
		zap.Int("viewport_height", cfg.ViewportHeight),
	)
	return e, nil
}

// Loop returns the event loop.
func (e *Env) Loop() *Loop { return e.loop }

// Window returns the top-level window.
func (e *Env) Window() *Window { return e.window }

// Document returns the document.
func (e *Env) Document() *Document { return e.document }

// Contexts returns the WebGL contexts created so far.
func (e *Env) Contexts() []*GLContext {
	return append([]*GLContext(nil), e.contexts...)
}

// Global returns globalThis, self or window. "global" only exists in Node.js
// hosts and is not defined here.
func (e *Env) Global(name string) (any, error) {
	switch name {
	case "globalThis", "self", "window":
		return e.window, nil
	}
	return nil, &protocol.ErrorValue{Name: "ReferenceError", Message: name + " is not defined"}
}

// NewImage creates a detached img element.
func (e *Env) NewImage() (apiwasm.Image, error) {
	return newImage(e, Element{tag: "img"}), nil
}

// NewURL parses an absolute URL.
func (e *Env) NewURL(raw string) (apiwasm.URL, error) {
	return ParseURL(raw)
}

// NewRequest creates a GET request, resolving raw against the base URL.
func (e *Env) NewRequest(raw string) (apiwasm.Request, error) {
	return e.newRequest(raw)
}

// NewEvent creates an event.
func (e *Env) NewEvent(typ string) (apiwasm.Event, error) {
	return NewEvent(typ), nil
}

// NewPromise runs executor synchronously. An executor failure rejects the promise.
func (e *Env) NewPromise(executor func(resolve, reject protocol.Function) error) (apiwasm.Promise, error) {
	p := e.newPromise()
	resolve, reject := p.resolvingFunctions()
	if err := executor(resolve, reject); err != nil {
		p.Reject(bridge.ExceptionValue(err))
	}
	return p, nil
}

// ResolvedPromise returns a promise settled with v.
func (e *Env) ResolvedPromise(v any) apiwasm.Promise {
	p := e.newPromise()
	p.Resolve(v)
	return p
}

// Require is unavailable; there is no module system.
func (e *Env) Require(module string) (any, error) {
	return nil, &protocol.ErrorValue{Name: "ReferenceError", Message: "require is not defined"}
}

// NewFunction supports only "return this", which evaluates to the window.
// Every other body is rejected as dynamic code generation.
func (e *Env) NewFunction(body string) (protocol.Function, error) {
	if body != "return this" {
		return nil, &protocol.ErrorValue{
			Name:    "EvalError",
			Message: "code generation from strings is disallowed in this host",
		}
	}
	return &protocol.NamedFunction{
		Name: "anonymous",
		Fn: protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
			return e.window, nil
		}),
	}, nil
}

func (e *Env) newPromise() *Promise {
	return newPromise(e.loop, e.logger)
}

// Performance is the high-resolution clock.
type Performance struct {
	start time.Time
}

// Now returns milliseconds elapsed since the environment was created.
func (p *Performance) Now() float64 {
	return float64(time.Since(p.start).Microseconds()) / 1000
}

var (
	_ apiwasm.Host     = (*Env)(nil)
	_ apiwasm.Window   = (*Window)(nil)
	_ apiwasm.Document = (*Document)(nil)
	_ apiwasm.Promise  = (*Promise)(nil)
	_ apiwasm.Response = (*Response)(nil)
)
