package guest

import (
	"context"

	"github.com/woxQAQ/wbg-host/internal/hostenv"
	"github.com/woxQAQ/wbg-host/internal/wasm"
)

// Instance is a running guest: its session and the host environment it
// drives.
type Instance struct {
	Bundle  *Bundle
	Session *wasm.Session
	Host    *hostenv.Env
}

// Run calls the manifest's entry export and returns the value it hands back.
func (i *Instance) Run(ctx context.Context) (any, error) {
	entry := i.Bundle.Manifest.Entry
	if entry == "" {
		return nil, &NoEntryError{BundleName: i.Bundle.Name()}
	}
	return i.Session.Run(ctx, entry)
}

// RunFrames pumps the host event loop for n animation frames.
func (i *Instance) RunFrames(ctx context.Context, n int) error {
	return i.Host.Loop().RunFrames(ctx, n)
}

// Settle runs queued host work, such as fetches and promise continuations,
// until none is left.
func (i *Instance) Settle(ctx context.Context) error {
	return i.Host.Loop().Run(ctx)
}

// Close releases the session.
func (i *Instance) Close(ctx context.Context) error {
	return i.Session.Close(ctx)
}
