package hostenv

import (
	"context"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func double() protocol.Function {
	return protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		return args[0].(float64) * 2, nil
	})
}

func TestPromise_ThenChain(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))

	last := p.Then(double(), nil).Then(double(), nil).(*Promise)
	p.Resolve(3.0)

	if last.State() != "pending" {
		t.Fatalf("reactions ran synchronously")
	}
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if last.State() != "fulfilled" || last.Value() != 12.0 {
		t.Errorf("last = %s %v, want fulfilled 12", last.State(), last.Value())
	}
}

func TestPromise_ThenAfterSettle(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))
	p.Resolve(1.0)

	next := p.Then(double(), nil).(*Promise)
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if next.Value() != 2.0 {
		t.Errorf("value = %v, want 2", next.Value())
	}
}

func TestPromise_RejectionPassesThrough(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))

	var caught any
	p.Then(double(), nil).Then(nil, protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		caught = args[0]
		return protocol.Undefined{}, nil
	}))
	p.Reject("nope")

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if caught != "nope" {
		t.Errorf("caught = %v, want nope", caught)
	}
}

func TestPromise_HandlerErrorRejects(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))

	thrown := protocol.NewError("from guest")
	next := p.Then(protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		return nil, &bridge.GuestError{Value: thrown}
	}), nil).(*Promise)
	p.Resolve(1.0)

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if next.State() != "rejected" {
		t.Fatalf("state = %s, want rejected", next.State())
	}
	if next.Value() != thrown {
		t.Errorf("reason = %v, want the thrown value", next.Value())
	}
}

func TestPromise_AdoptsPromise(t *testing.T) {
	loop := newTestLoop(t)
	logger := zaptest.NewLogger(t)
	outer := newPromise(loop, logger)
	inner := newPromise(loop, logger)

	outer.Resolve(inner)
	if outer.State() != "pending" {
		t.Fatalf("outer settled before inner")
	}

	inner.Resolve("inner value")
	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if outer.Value() != "inner value" {
		t.Errorf("outer = %v, want inner value", outer.Value())
	}
}

func TestPromise_SelfResolution(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))

	p.Resolve(p)

	if p.State() != "rejected" {
		t.Fatalf("state = %s, want rejected", p.State())
	}
	if ev, ok := p.Value().(*protocol.ErrorValue); !ok || ev.Name != "TypeError" {
		t.Errorf("reason = %v, want TypeError", p.Value())
	}
}

func TestPromise_SettlesOnce(t *testing.T) {
	loop := newTestLoop(t)
	p := newPromise(loop, zaptest.NewLogger(t))

	resolve, reject := p.resolvingFunctions()
	resolve.Call(context.Background(), nil, "first")
	reject.Call(context.Background(), nil, "second")
	resolve.Call(context.Background(), nil, "third")

	if p.State() != "fulfilled" || p.Value() != "first" {
		t.Errorf("p = %s %v, want fulfilled first", p.State(), p.Value())
	}
}
