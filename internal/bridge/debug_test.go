package bridge

import (
	"context"
	"errors"
	"testing"

	"github.com/woxQAQ/wbg-host/pkg/protocol"
)

type canvasLike struct{}

func TestDebugString(t *testing.T) {
	obj := protocol.NewObject()
	obj.Set("w", 2.0)

	fn := protocol.FunctionFunc(func(ctx context.Context, this any, args ...any) (any, error) {
		return nil, nil
	})

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "null"},
		{"undefined", protocol.Undefined{}, "undefined"},
		{"null", protocol.Null{}, "null"},
		{"bool", true, "true"},
		{"string", "hi", `"hi"`},
		{"integer", 42.0, "42"},
		{"fraction", 0.25, "0.25"},
		{"function", fn, "Function"},
		{"named function", &protocol.NamedFunction{Name: "tick", Fn: fn}, "Function(tick)"},
		{"array", []any{1.0, "a", protocol.Null{}}, `[1, "a", null]`},
		{"object", obj, `Object({"w":2})`},
		{"error value", protocol.NewTypeError("bad %s", "arg"), "TypeError: bad arg"},
		{"go error", errors.New("io"), "Error: io"},
		{"class", &canvasLike{}, "canvasLike"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DebugString(tt.in); got != tt.want {
				t.Errorf("DebugString() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGuestErrorMessage(t *testing.T) {
	err := &GuestError{Value: "panicked at src/lib.rs"}
	if err.Error() != `guest threw: "panicked at src/lib.rs"` {
		t.Errorf("Error() = %s", err.Error())
	}
	if errors.Unwrap(err) != nil {
		t.Error("string values should not unwrap")
	}

	inner := protocol.NewError("x")
	if !errors.Is(&GuestError{Value: inner}, inner) {
		t.Error("error values should unwrap")
	}
}
