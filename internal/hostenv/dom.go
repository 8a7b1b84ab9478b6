package hostenv

import (
	"context"
	"reflect"
	"strings"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// treeNode is implemented by every node type of the headless document.
type treeNode interface {
	apiwasm.Node
	base() *node
}

// listeners keeps event listeners per event type in registration order.
type listeners struct {
	byType map[string][]protocol.Function
}

// AddEventListener registers listener for typ. Registering the same listener
// twice for one type is a no-op.
func (l *listeners) AddEventListener(typ string, listener protocol.Function, options any) error {
	if listener == nil {
		return protocol.NewTypeError("listener for %q is not callable", typ)
	}
	if l.byType == nil {
		l.byType = make(map[string][]protocol.Function)
	}
	for _, existing := range l.byType[typ] {
		if sameFunction(existing, listener) {
			return nil
		}
	}
	l.byType[typ] = append(l.byType[typ], listener)
	return nil
}

// ListenerCount returns the number of listeners registered for typ.
func (l *listeners) ListenerCount(typ string) int {
	return len(l.byType[typ])
}

func (l *listeners) dispatch(ctx context.Context, target any, ev *Event) error {
	for _, fn := range append([]protocol.Function(nil), l.byType[ev.typ]...) {
		if _, err := fn.Call(ctx, target, ev); err != nil {
			return err
		}
	}
	return nil
}

// sameFunction compares callables by identity. Func-typed values are never equal.
func sameFunction(a, b protocol.Function) bool {
	ta := reflect.TypeOf(a)
	if ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// node is the shared part of document nodes.
type node struct {
	listeners

	parent   treeNode
	children []treeNode
	text     string
}

func (n *node) base() *node { return n }

// Children returns the child nodes.
func (n *node) Children() []apiwasm.Node {
	out := make([]apiwasm.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// TextContent returns the node's own text.
func (n *node) TextContent() string {
	return n.text
}

// SetTextContent replaces all children with text.
func (n *node) SetTextContent(text string, present bool) {
	for _, c := range n.children {
		c.base().parent = nil
	}
	n.children = nil
	if present {
		n.text = text
	} else {
		n.text = ""
	}
}

func (n *node) appendChild(self treeNode, child apiwasm.Node) (apiwasm.Node, error) {
	c, ok := child.(treeNode)
	if !ok {
		return nil, protocol.NewTypeError("parameter is not of type 'Node'")
	}
	for p := treeNode(self); p != nil; p = p.base().parent {
		if p == c {
			return nil, &protocol.ErrorValue{
				Name:    "HierarchyRequestError",
				Message: "the new child element contains the parent",
			}
		}
	}

	if old := c.base().parent; old != nil {
		old.base().detach(c)
	}
	c.base().parent = self
	n.children = append(n.children, c)
	return child, nil
}

func (n *node) removeChild(child apiwasm.Node) (apiwasm.Node, error) {
	c, ok := child.(treeNode)
	if !ok || !n.detach(c) {
		return nil, &protocol.ErrorValue{
			Name:    "NotFoundError",
			Message: "the node to be removed is not a child of this node",
		}
	}
	c.base().parent = nil
	return child, nil
}

func (n *node) detach(c treeNode) bool {
	for i, existing := range n.children {
		if existing == c {
			n.children = append(n.children[:i], n.children[i+1:]...)
			return true
		}
	}
	return false
}

// Element is a generic HTML element.
type Element struct {
	node

	tag       string
	className string
}

// TagName returns the upper-case tag name.
func (e *Element) TagName() string { return strings.ToUpper(e.tag) }

// ClassName returns the class attribute.
func (e *Element) ClassName() string { return e.className }

// SetClassName assigns the class attribute.
func (e *Element) SetClassName(name string) { e.className = name }

// HTML marks the element as part of the HTML namespace.
func (e *Element) HTML() {}

// AppendChild appends child, moving it from its previous parent.
func (e *Element) AppendChild(child apiwasm.Node) (apiwasm.Node, error) {
	return e.appendChild(e, child)
}

// RemoveChild detaches child.
func (e *Element) RemoveChild(child apiwasm.Node) (apiwasm.Node, error) {
	return e.removeChild(child)
}

// Document is the root of the headless tree.
type Document struct {
	node

	env  *Env
	body *Element
}

// Body returns the body element.
func (d *Document) Body() apiwasm.Element {
	if d.body == nil {
		return nil
	}
	return d.body
}

// CreateElement creates a detached element for tag.
func (d *Document) CreateElement(tag string) (apiwasm.Element, error) {
	if tag == "" || strings.ContainsAny(tag, " <>\"'/=") {
		return nil, &protocol.ErrorValue{
			Name:    "InvalidCharacterError",
			Message: "the tag name provided ('" + tag + "') is not a valid name",
		}
	}

	el := Element{tag: strings.ToLower(tag)}
	switch el.tag {
	case "canvas":
		return newCanvas(d.env, el), nil
	case "img":
		return newImage(d.env, el), nil
	}
	return &el, nil
}

// AppendChild appends child to the document.
func (d *Document) AppendChild(child apiwasm.Node) (apiwasm.Node, error) {
	return d.appendChild(d, child)
}

// RemoveChild detaches child from the document.
func (d *Document) RemoveChild(child apiwasm.Node) (apiwasm.Node, error) {
	return d.removeChild(child)
}

// Event is a dispatched occurrence.
type Event struct {
	typ string
}

// NewEvent creates an event of the given type.
func NewEvent(typ string) *Event {
	return &Event{typ: typ}
}

// Type returns the event type.
func (e *Event) Type() string { return e.typ }

// Window is the headless top-level context.
type Window struct {
	listeners

	env *Env
}

// Document returns the window's document.
func (w *Window) Document() apiwasm.Document {
	return w.env.document
}

// Location returns the page location.
func (w *Window) Location() apiwasm.Location {
	return w.env.location
}

// InnerWidth returns the viewport width in CSS pixels.
func (w *Window) InnerWidth() (float64, error) {
	return float64(w.env.cfg.ViewportWidth), nil
}

// InnerHeight returns the viewport height in CSS pixels.
func (w *Window) InnerHeight() (float64, error) {
	return float64(w.env.cfg.ViewportHeight), nil
}

// Performance returns the high-resolution clock.
func (w *Window) Performance() apiwasm.Performance {
	return w.env.performance
}

// RequestAnimationFrame schedules cb for the next frame.
func (w *Window) RequestAnimationFrame(cb protocol.Function) (int32, error) {
	if cb == nil {
		return 0, protocol.NewTypeError("the callback provided as parameter 1 is not a function")
	}
	return w.env.loop.RequestAnimationFrame(cb), nil
}

// Fetch starts a request for input (a URL string, URL or Request).
func (w *Window) Fetch(input any) apiwasm.Promise {
	return w.env.fetch(input)
}

// Crypto returns the secure random source.
func (w *Window) Crypto() apiwasm.Crypto {
	return w.env.crypto
}

// Get exposes named globals of the window to generic property access.
func (w *Window) Get(key string) any {
	switch key {
	case "window", "self", "globalThis":
		return w
	case "document":
		return w.env.document
	case "crypto":
		return w.env.crypto
	case "performance":
		return w.env.performance
	case "location":
		return w.env.location
	}
	return protocol.Undefined{}
}

// Dispatch delivers ev to the window's listeners on the loop.
func (w *Window) Dispatch(ev *Event) {
	w.env.loop.Post(func(ctx context.Context) error {
		w.env.logger.Debug("Dispatching window event", zap.String("type", ev.typ))
		return w.dispatch(ctx, w, ev)
	})
}
