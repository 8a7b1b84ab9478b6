package imports

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/internal/hostenv"
)

type fakeMemory struct {
	buf []byte
}

func (m *fakeMemory) Buffer() []byte { return m.buf }

type exportCall struct {
	name   string
	params []uint64
}

// fakeGuest is a bump allocator that records export and destructor calls.
// Export behaviour is scripted through onExport.
type fakeGuest struct {
	mem *fakeMemory
	top uint32

	exports []exportCall
	dtors   [][3]uint32

	onExport func(ctx context.Context, name string, params []uint64) ([]uint64, error)
}

func (g *fakeGuest) Malloc(ctx context.Context, size uint32) (uint32, error) {
	ptr := g.top
	end := ptr + size
	if int(end) > len(g.mem.buf) {
		return 0, fmt.Errorf("out of memory: %d > %d", end, len(g.mem.buf))
	}
	g.top = (end + 7) &^ 7
	return ptr, nil
}

func (g *fakeGuest) CallDestructor(ctx context.Context, index, a, b uint32) error {
	g.dtors = append(g.dtors, [3]uint32{index, a, b})
	return nil
}

func (g *fakeGuest) CallExport(ctx context.Context, name string, params ...uint64) ([]uint64, error) {
	g.exports = append(g.exports, exportCall{name: name, params: append([]uint64(nil), params...)})
	if g.onExport != nil {
		return g.onExport(ctx, name, params)
	}
	return nil, nil
}

type harness struct {
	t     *testing.T
	table *Table
	env   *Env
	host  *hostenv.Env
	guest *fakeGuest
	mem   *fakeMemory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	host, err := hostenv.New(hostenv.Config{BaseURL: "https://ships.example/app/"}, logger)
	if err != nil {
		t.Fatalf("hostenv.New() failed: %v", err)
	}

	mem := &fakeMemory{buf: make([]byte, 4096)}
	guest := &fakeGuest{mem: mem, top: 1024}

	b := bridge.New(bridge.Config{}, logger)
	b.Attach(mem, guest)

	return &harness{
		t:     t,
		table: DefaultTable(),
		env: &Env{
			Bridge:        b,
			Host:          host,
			Guest:         guest,
			PromiseInvoke: "invoke2_mut",
			Logger:        logger,
		},
		host:  host,
		guest: guest,
		mem:   mem,
	}
}

// call runs the shim registered under key with args and returns the stack.
func (h *harness) call(key string, args ...uint64) ([]uint64, error) {
	h.t.Helper()
	s, ok := h.table.Lookup(key)
	if !ok {
		h.t.Fatalf("no shim %q", key)
	}
	return h.invoke(s, args...)
}

func (h *harness) invoke(s *Shim, args ...uint64) (stack []uint64, err error) {
	h.t.Helper()
	if len(args) != len(s.Params) {
		h.t.Fatalf("%s takes %d arguments, got %d", s.Key, len(s.Params), len(args))
	}

	stack = make([]uint64, max(len(s.Params), len(s.Results)))
	copy(stack, args)

	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				e = fmt.Errorf("%v", r)
			}
			err = e
		}
	}()
	fn := Binding{Shim: s}.GoFunc(h.env)
	fn(context.Background(), nil, stack)
	return stack, nil
}

// mustCall is call for shims that must not trap.
func (h *harness) mustCall(key string, args ...uint64) []uint64 {
	h.t.Helper()
	stack, err := h.call(key, args...)
	if err != nil {
		h.t.Fatalf("%s trapped: %v", key, err)
	}
	return stack
}

func (h *harness) store(v any) uint64 {
	return uint64(h.env.Bridge.Heap().Store(v))
}

func (h *harness) get(hd uint64) any {
	h.t.Helper()
	v, err := h.env.Bridge.Heap().Get(bridge.Handle(hd))
	if err != nil {
		h.t.Fatalf("Get(%d) failed: %v", hd, err)
	}
	return v
}

// putString writes s into guest memory and returns pointer and length.
func (h *harness) putString(s string) (uint64, uint64) {
	h.t.Helper()
	ptr, n, err := h.env.Bridge.PassString(context.Background(), s)
	if err != nil {
		h.t.Fatalf("PassString() failed: %v", err)
	}
	return uint64(ptr), uint64(n)
}

func (h *harness) readString(retptr uint32) (string, bool) {
	h.t.Helper()
	ptr := h.u32(retptr)
	n := h.u32(retptr + 4)
	if ptr == 0 {
		return "", false
	}
	s, err := h.env.Bridge.DecodeString(ptr, n)
	if err != nil {
		h.t.Fatalf("DecodeString() failed: %v", err)
	}
	return s, true
}

func (h *harness) u32(addr uint32) uint32 {
	b := h.mem.buf[addr : addr+4]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// exception returns the pending exception recorded by a catching shim.
func (h *harness) exception() any {
	h.t.Helper()
	v, ok := h.env.Bridge.TakeException()
	if !ok {
		h.t.Fatal("no exception recorded")
	}
	return v
}

func asHostError(t *testing.T, err error) *bridge.HostCapabilityError {
	t.Helper()
	var hostErr *bridge.HostCapabilityError
	if !errors.As(err, &hostErr) {
		t.Fatalf("expected HostCapabilityError, got %T (%v)", err, err)
	}
	return hostErr
}
