package natgen

import "testing"

func newTestFrame() *Frame {
	return NewFrame(NewDiagnostics(OutputSilent))
}

// TestFrameAllocateNegativeOffsets checks the invariant that every
// stored name has a strictly negative frame offset (zero is reserved as
// unknown).
func TestFrameAllocateNegativeOffsets(t *testing.T) {
	f := newTestFrame()
	off := f.Allocate("a", 8, 1)
	if off >= 0 {
		t.Fatalf("Allocate returned non-negative offset %d", off)
	}
	if f.Offset("a") != off {
		t.Fatalf("Offset(a) = %d, want %d", f.Offset("a"), off)
	}
}

// TestFrameBottomUpAllocation checks that successive allocations grow the
// frame strictly downward without overlapping.
func TestFrameBottomUpAllocation(t *testing.T) {
	f := newTestFrame()
	offA := f.Allocate("a", 8, 1)
	offB := f.Allocate("b", 4, 1)
	if offB >= offA {
		t.Fatalf("second allocation (%d) did not move further from the base than the first (%d)", offB, offA)
	}
	if offA-offB != 4 {
		t.Fatalf("allocation gap = %d, want 4 (size of b)", offA-offB)
	}
}

// TestFrameARM64AlignmentBump checks arm64's 8-byte alignment honoring for
// a 1-byte guard variable (e.g. a defer guard) followed by an 8-byte slot.
func TestFrameARM64AlignmentBump(t *testing.T) {
	f := newTestFrame()
	f.Allocate("guard", 1, 8)
	off := f.Allocate("x", 8, 8)
	if off%8 != 0 {
		t.Fatalf("arm64-aligned allocation landed at unaligned offset %d", off)
	}
}

// TestFrameSizeRoundedTo16 checks FrameSize's call-boundary alignment rule.
func TestFrameSizeRoundedTo16(t *testing.T) {
	f := newTestFrame()
	f.Allocate("a", 1, 1)
	if fs := f.FrameSize(); fs != 16 {
		t.Fatalf("FrameSize() = %d, want 16 (rounded up from 1)", fs)
	}
}

// TestFrameUnknownVariableIsFatal checks that looking up an unallocated
// variable's offset is fatal.
func TestFrameUnknownVariableIsFatal(t *testing.T) {
	expectNError(t, func() {
		f := newTestFrame()
		f.Offset("nosuchvar")
	})
}

// TestFrameDeferGuardsReverseOrder checks that the epilogue walks defers
// in reverse declaration order.
func TestFrameDeferGuardsReverseOrder(t *testing.T) {
	f := newTestFrame()
	g1, _ := f.NewDeferGuard()
	g2, _ := f.NewDeferGuard()
	g3, _ := f.NewDeferGuard()

	got := f.DeferGuards()
	want := []string{g3, g2, g1}
	if len(got) != len(want) {
		t.Fatalf("DeferGuards() length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("DeferGuards()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

// TestFrameHas checks the Has predicate the lowerer uses to decide whether
// an AssignStmt needs a fresh slot.
func TestFrameHas(t *testing.T) {
	f := newTestFrame()
	if f.Has("x") {
		t.Fatal("Has(x) should be false before allocation")
	}
	f.Allocate("x", 8, 1)
	if !f.Has("x") {
		t.Fatal("Has(x) should be true after allocation")
	}
}
