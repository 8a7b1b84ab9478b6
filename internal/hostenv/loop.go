package hostenv

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

// Task is a unit of work executed on the loop goroutine.
type Task func(ctx context.Context) error

// Loop is the host's single logical thread.
//
// Guest calls and every continuation that touches guest state run inside
// Run, Drain or RunFrames on the goroutine that owns the loop. Background
// work started with Async completes elsewhere and posts its continuation back.
type Loop struct {
	mu      sync.Mutex
	queue   []Task
	pending int
	wake    chan struct{}

	frames    map[int32]protocol.Function
	order     []int32
	nextFrame int32

	interval time.Duration
	clock    func() float64
	logger   *zap.Logger
}

// NewLoop creates a loop. Frames are paced by interval; zero runs them back to back.
// clock supplies animation frame timestamps.
func NewLoop(interval time.Duration, clock func() float64, logger *zap.Logger) *Loop {
	return &Loop{
		wake:     make(chan struct{}, 1),
		frames:   make(map[int32]protocol.Function),
		interval: interval,
		clock:    clock,
		logger:   logger.With(zap.String("component", "event-loop")),
	}
}

// Post queues t. Safe to call from any goroutine.
func (l *Loop) Post(t Task) {
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()
	l.signal()
}

// Async runs work on a new goroutine and queues the task it returns.
// The loop counts the work as pending until then, so Run does not return early.
func (l *Loop) Async(work func() Task) {
	l.mu.Lock()
	l.pending++
	l.mu.Unlock()

	go func() {
		t := work()

		l.mu.Lock()
		l.pending--
		if t != nil {
			l.queue = append(l.queue, t)
		}
		l.mu.Unlock()
		l.signal()
	}()
}

// RequestAnimationFrame schedules fn for the next frame and returns its id.
func (l *Loop) RequestAnimationFrame(fn protocol.Function) int32 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextFrame++
	id := l.nextFrame
	l.frames[id] = fn
	l.order = append(l.order, id)
	return id
}

// CancelAnimationFrame removes a scheduled frame callback.
func (l *Loop) CancelAnimationFrame(id int32) {
	l.mu.Lock()
	delete(l.frames, id)
	l.mu.Unlock()
}

// PendingFrames returns the number of scheduled frame callbacks.
func (l *Loop) PendingFrames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// Drain runs queued tasks until the queue is empty. It does not wait for
// background work. The first task error stops the loop and is returned.
func (l *Loop) Drain(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		l.mu.Lock()
		if len(l.queue) == 0 {
			l.mu.Unlock()
			return nil
		}
		t := l.queue[0]
		l.queue[0] = nil
		l.queue = l.queue[1:]
		l.mu.Unlock()

		if err := t(ctx); err != nil {
			l.logger.Error("Task failed", zap.Error(err))
			return err
		}
	}
}

// Run executes tasks until no work is queued or pending, or ctx is done.
// Animation frames are not run; see RunFrames.
func (l *Loop) Run(ctx context.Context) error {
	for {
		if err := l.Drain(ctx); err != nil {
			return err
		}

		l.mu.Lock()
		idle := l.pending == 0 && len(l.queue) == 0
		l.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunFrames runs n animation frames, draining tasks before each one.
func (l *Loop) RunFrames(ctx context.Context, n int) error {
	var tick <-chan time.Time
	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for i := 0; i < n; i++ {
		if err := l.Drain(ctx); err != nil {
			return err
		}

		if tick != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-tick:
			}
		}

		if err := l.runFrame(ctx); err != nil {
			return err
		}
	}

	return l.Drain(ctx)
}

func (l *Loop) runFrame(ctx context.Context) error {
	l.mu.Lock()
	order := l.order
	frames := l.frames
	l.order = nil
	l.frames = make(map[int32]protocol.Function)
	l.mu.Unlock()

	ts := l.clock()
	for _, id := range order {
		fn, ok := frames[id]
		if !ok {
			continue
		}
		if _, err := fn.Call(ctx, protocol.Undefined{}, ts); err != nil {
			l.logger.Error("Animation frame callback failed",
				zap.Int32("frame_id", id),
				zap.Error(err),
			)
			return err
		}
	}
	return nil
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
