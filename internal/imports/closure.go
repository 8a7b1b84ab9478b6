package imports

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"

	"github.com/woxQAQ/wbg-host/internal/bridge"
	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// ArgKind says how a host argument is passed to a guest closure.
type ArgKind string

const (
	// ArgOwned stores the argument under a new handle the guest takes over.
	ArgOwned ArgKind = "owned"
	// ArgBorrowed passes a borrow stack handle valid only during the call.
	ArgBorrowed ArgKind = "borrowed"
	// ArgF64 converts the argument to a number.
	ArgF64 ArgKind = "f64"
	// ArgI32 converts the argument to a 32-bit integer.
	ArgI32 ArgKind = "i32"
)

// ClosureSpec describes one closure wrapper import of a guest.
type ClosureSpec struct {
	// Destructor is the guest function table index freeing the closure state.
	Destructor uint32 `yaml:"destructor"`

	// Invoke is the guest export called with (a, b, args...).
	Invoke string `yaml:"invoke"`

	Args []ArgKind `yaml:"args"`
}

// Validate checks that the spec names an invoke export and known argument kinds.
func (s ClosureSpec) Validate() error {
	if s.Invoke == "" {
		return fmt.Errorf("closure has no invoke export")
	}
	for i, k := range s.Args {
		switch k {
		case ArgOwned, ArgBorrowed, ArgF64, ArgI32:
		default:
			return fmt.Errorf("closure argument %d has unknown kind '%s'", i, k)
		}
	}
	return nil
}

// closureShim builds the shim for closure wrapper import name. The guest calls
// it with (a, b, descriptor) and receives a handle to a host function.
func closureShim(name string, spec ClosureSpec) (*Shim, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	return &Shim{
		Key:        name,
		Base:       name,
		Capability: CapCore,
		Params:     []api.ValueType{i32, i32, i32},
		Results:    []api.ValueType{i32},
		Fn: func(c *Call) {
			a, b := c.U32(0), c.U32(1)
			env := c.env
			closure := env.Bridge.WrapClosure(a, b, spec.Destructor, closureInvoker(env, spec))
			c.Return(closure)
		},
	}, nil
}

func closureInvoker(env *Env, spec ClosureSpec) bridge.Invoker {
	return func(ctx context.Context, a, b uint32, args ...any) (any, error) {
		heap := env.Bridge.Heap()
		params := []uint64{api.EncodeU32(a), api.EncodeU32(b)}

		var borrowed []bridge.Handle
		defer func() {
			for i := len(borrowed) - 1; i >= 0; i-- {
				_ = heap.Unborrow(borrowed[i])
			}
		}()

		for i, kind := range spec.Args {
			var v any = protocol.Undefined{}
			if i < len(args) {
				v = hostValue(args[i])
			}

			switch kind {
			case ArgOwned:
				params = append(params, api.EncodeU32(uint32(heap.Store(v))))
			case ArgBorrowed:
				hd, err := heap.Borrow(v)
				if err != nil {
					return nil, err
				}
				borrowed = append(borrowed, hd)
				params = append(params, api.EncodeU32(uint32(hd)))
			case ArgF64:
				n, _ := protocol.ToNumber(v)
				params = append(params, api.EncodeF64(n))
			case ArgI32:
				n, _ := protocol.ToNumber(v)
				params = append(params, api.EncodeI32(protocol.ToInt32(n)))
			}
		}

		if _, err := env.Guest.CallExport(ctx, spec.Invoke, params...); err != nil {
			return nil, err
		}
		// Callbacks run from the loop have no Session.Call to drain the slot.
		if v, ok := env.Bridge.TakeException(); ok {
			return nil, &bridge.GuestError{Value: v}
		}
		return protocol.Undefined{}, nil
	}
}
