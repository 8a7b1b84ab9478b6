package hostenv

import (
	"context"

	"go.uber.org/zap"

	apiwasm "github.com/woxQAQ/wbg-host/api/wasm"
	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

type promiseState int

const (
	promisePending promiseState = iota
	promiseFulfilled
	promiseRejected
)

func (s promiseState) String() string {
	switch s {
	case promiseFulfilled:
		return "fulfilled"
	case promiseRejected:
		return "rejected"
	default:
		return "pending"
	}
}

// Promise is an eventual value whose reactions run as loop tasks.
type Promise struct {
	loop   *Loop
	logger *zap.Logger

	state     promiseState
	value     any
	reactions []reaction
}

type reaction struct {
	onFulfilled protocol.Function
	onRejected  protocol.Function
	next        *Promise
}

func newPromise(loop *Loop, logger *zap.Logger) *Promise {
	return &Promise{loop: loop, logger: logger}
}

// State returns "pending", "fulfilled" or "rejected".
func (p *Promise) State() string {
	return p.state.String()
}

// Value returns the settled value or rejection reason.
func (p *Promise) Value() any {
	return p.value
}

// Then registers reactions and returns the derived promise.
func (p *Promise) Then(onFulfilled, onRejected protocol.Function) apiwasm.Promise {
	next := newPromise(p.loop, p.logger)
	r := reaction{onFulfilled: onFulfilled, onRejected: onRejected, next: next}

	if p.state == promisePending {
		p.reactions = append(p.reactions, r)
	} else {
		p.schedule(r)
	}
	return next
}

// Resolve settles p with v. A promise value is adopted instead of nested.
func (p *Promise) Resolve(v any) {
	if p.state != promisePending {
		return
	}
	if other, ok := v.(*Promise); ok {
		if other == p {
			p.Reject(protocol.NewTypeError("chaining cycle detected for promise"))
			return
		}
		other.Then(
			protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
				p.Resolve(firstArg(args))
				return protocol.Undefined{}, nil
			}),
			protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
				p.Reject(firstArg(args))
				return protocol.Undefined{}, nil
			}),
		)
		return
	}
	p.settle(promiseFulfilled, v)
}

// Reject settles p with reason.
func (p *Promise) Reject(reason any) {
	if p.state != promisePending {
		return
	}
	p.settle(promiseRejected, reason)
}

func (p *Promise) settle(state promiseState, v any) {
	p.state = state
	p.value = v

	reactions := p.reactions
	p.reactions = nil
	for _, r := range reactions {
		p.schedule(r)
	}
}

func (p *Promise) schedule(r reaction) {
	state, value := p.state, p.value

	p.loop.Post(func(ctx context.Context) error {
		handler := r.onFulfilled
		if state == promiseRejected {
			handler = r.onRejected
		}

		if handler == nil {
			if state == promiseRejected {
				r.next.Reject(value)
			} else {
				r.next.Resolve(value)
			}
			return nil
		}

		res, err := handler.Call(ctx, protocol.Undefined{}, value)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			p.logger.Warn("Promise reaction failed", zap.Error(err))
			r.next.Reject(bridge.ExceptionValue(err))
			return nil
		}
		r.next.Resolve(res)
		return nil
	})
}

// resolvingFunctions returns the resolve and reject callables handed to executors.
func (p *Promise) resolvingFunctions() (resolve, reject protocol.Function) {
	resolve = &protocol.NamedFunction{
		Name: "resolve",
		Fn: protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
			p.Resolve(firstArg(args))
			return protocol.Undefined{}, nil
		}),
	}
	reject = &protocol.NamedFunction{
		Name: "reject",
		Fn: protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
			p.Reject(firstArg(args))
			return protocol.Undefined{}, nil
		}),
	}
	return resolve, reject
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return protocol.Undefined{}
	}
	return args[0]
}
