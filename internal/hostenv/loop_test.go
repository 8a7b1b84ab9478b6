package hostenv

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zaptest"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

func newTestLoop(t *testing.T) *Loop {
	ts := 0.0
	return NewLoop(0, func() float64 { ts += 16; return ts }, zaptest.NewLogger(t))
}

func TestLoop_RunsTasksInOrder(t *testing.T) {
	loop := newTestLoop(t)

	var got []int
	for i := 1; i <= 3; i++ {
		loop.Post(func(ctx context.Context) error {
			got = append(got, i)
			if i == 1 {
				loop.Post(func(ctx context.Context) error {
					got = append(got, 4)
					return nil
				})
			}
			return nil
		})
	}

	if err := loop.Run(context.Background()); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, got); diff != "" {
		t.Errorf("task order mismatch (-want +got):\n%s", diff)
	}
}

func TestLoop_WaitsForAsync(t *testing.T) {
	loop := newTestLoop(t)

	done := false
	loop.Async(func() Task {
		time.Sleep(10 * time.Millisecond)
		return func(ctx context.Context) error {
			done = true
			return nil
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := loop.Run(ctx); err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if !done {
		t.Error("Run() returned before the async continuation ran")
	}
}

func TestLoop_TaskErrorStops(t *testing.T) {
	loop := newTestLoop(t)
	boom := errors.New("boom")

	ran := false
	loop.Post(func(ctx context.Context) error { return boom })
	loop.Post(func(ctx context.Context) error { ran = true; return nil })

	if err := loop.Run(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("Run() error = %v, want %v", err, boom)
	}
	if ran {
		t.Error("task after the failing one should not run")
	}
}

func TestLoop_Cancelled(t *testing.T) {
	loop := newTestLoop(t)

	release := make(chan struct{})
	defer close(release)
	loop.Async(func() Task {
		<-release
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := loop.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want %v", err, context.DeadlineExceeded)
	}
}

func TestLoop_AnimationFrames(t *testing.T) {
	loop := newTestLoop(t)

	var stamps []float64
	var frame protocol.Function
	frame = protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		stamps = append(stamps, args[0].(float64))
		loop.RequestAnimationFrame(frame)
		return protocol.Undefined{}, nil
	})
	loop.RequestAnimationFrame(frame)

	cancelled := loop.RequestAnimationFrame(protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		t.Error("cancelled frame callback ran")
		return nil, nil
	}))
	loop.CancelAnimationFrame(cancelled)

	if err := loop.RunFrames(context.Background(), 3); err != nil {
		t.Fatalf("RunFrames() failed: %v", err)
	}
	if diff := cmp.Diff([]float64{16, 32, 48}, stamps); diff != "" {
		t.Errorf("frame timestamps mismatch (-want +got):\n%s", diff)
	}
	if got := loop.PendingFrames(); got != 1 {
		t.Errorf("PendingFrames() = %d, want 1", got)
	}
}

func TestLoop_FrameErrorStops(t *testing.T) {
	loop := newTestLoop(t)
	boom := errors.New("frame failed")

	calls := 0
	loop.RequestAnimationFrame(protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		calls++
		return nil, boom
	}))

	if err := loop.RunFrames(context.Background(), 5); !errors.Is(err, boom) {
		t.Fatalf("RunFrames() error = %v, want %v", err, boom)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}
