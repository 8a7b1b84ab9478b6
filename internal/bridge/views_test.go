package bridge

import (
	"testing"
)

func TestViewsRebuildAfterGrow(t *testing.T) {
	mem := newFakeMemory(64)
	v := NewViews(mem)

	u8 := v.Uint8()
	if u8.Len() != 64 {
		t.Fatalf("Len() = %d, want 64", u8.Len())
	}
	u8.Set(3, 0xAB)

	v.Uint8()
	if v.Rebuilds() != 1 {
		t.Errorf("Rebuilds() = %d, want 1 for an unchanged buffer", v.Rebuilds())
	}

	mem.grow(64)

	fresh := v.Uint8()
	if fresh.Len() != 128 {
		t.Errorf("Len() after grow = %d, want 128", fresh.Len())
	}
	if fresh.At(3) != 0xAB {
		t.Errorf("At(3) = %#x, want 0xab", fresh.At(3))
	}
	if v.Rebuilds() != 2 {
		t.Errorf("Rebuilds() = %d, want 2", v.Rebuilds())
	}

	fresh.Set(100, 7)
	if mem.buf[100] != 7 {
		t.Error("write through fresh view did not reach memory")
	}
}

func TestViewsAreIndependent(t *testing.T) {
	mem := newFakeMemory(32)
	v := NewViews(mem)

	v.Uint8()
	v.Int32()
	if v.Rebuilds() != 2 {
		t.Errorf("Rebuilds() = %d, want 2", v.Rebuilds())
	}

	mem.grow(32)
	v.Int32()
	if v.Rebuilds() != 3 {
		t.Errorf("Rebuilds() = %d, want 3", v.Rebuilds())
	}
	if v.Uint8().Len() != 64 {
		t.Error("Uint8 view should also observe the grown buffer")
	}
}

func TestTypedViewsLittleEndian(t *testing.T) {
	mem := newFakeMemory(32)
	v := NewViews(mem)

	v.Int32().Set(1, -2)
	want := []byte{0xFE, 0xFF, 0xFF, 0xFF}
	for i, b := range want {
		if mem.buf[4+i] != b {
			t.Fatalf("byte %d = %#x, want %#x", 4+i, mem.buf[4+i], b)
		}
	}
	if got := v.Int32().At(1); got != -2 {
		t.Errorf("Int32 At(1) = %d, want -2", got)
	}

	v.Float64().Set(2, 1.5)
	if got := v.Float64().At(2); got != 1.5 {
		t.Errorf("Float64 At(2) = %v, want 1.5", got)
	}
	// 1.5 is 0x3FF8000000000000.
	if mem.buf[23] != 0x3F || mem.buf[22] != 0xF8 {
		t.Errorf("unexpected float64 encoding % x", mem.buf[16:24])
	}

	f32 := v.Float32()
	f32.Set(0, 0.5)
	f32.Set(1, -1)
	got := f32.Slice(0, 2)
	if got[0] != 0.5 || got[1] != -1 {
		t.Errorf("Slice() = %v, want [0.5 -1]", got)
	}
	if f32.Len() != 8 {
		t.Errorf("Float32 Len() = %d, want 8", f32.Len())
	}
}

func TestUint8ViewSubarrayAliases(t *testing.T) {
	mem := newFakeMemory(16)
	v := NewViews(mem)

	sub := v.Uint8().Subarray(4, 8)
	sub[0] = 9
	if mem.buf[4] != 9 {
		t.Error("Subarray should alias guest memory")
	}
	if cap(sub) != 4 {
		t.Errorf("cap(Subarray) = %d, want 4", cap(sub))
	}
}
