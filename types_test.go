package natgen

import "testing"

// withFatalCapture overrides fatalExit so an NError call panics instead of
// exiting the test process, and registers a cleanup that restores the
// original when the test ends.
func withFatalCapture(t *testing.T) {
	t.Helper()
	orig := fatalExit
	fatalExit = func(code int) {} // swallow the exit; NError's trailing panic takes over
	t.Cleanup(func() { fatalExit = orig })
}

// expectNError runs fn and fails the test unless it panics (an n_error
// call), matching "never returns" fatal semantics.
func expectNError(t *testing.T, fn func()) {
	t.Helper()
	withFatalCapture(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a fatal generator error, got none")
		}
	}()
	fn()
}

func newTestTypes() *TypeTable {
	return NewTypeTable(NewDiagnostics(OutputSilent))
}

// TestPrimitiveSizes checks the hard-wired primitive size/alignment table.
func TestPrimitiveSizes(t *testing.T) {
	tt := newTestTypes()
	cases := []struct {
		kind       Kind
		size, align int
	}{
		{KindI8, 1, 1}, {KindU8, 1, 1}, {KindBool, 1, 1}, {KindChar, 1, 1},
		{KindI16, 2, 2}, {KindU16, 2, 2},
		{KindInt, 4, 4}, {KindU32, 4, 4}, {KindF32, 4, 4}, {KindRune, 4, 4},
		{KindI64, 8, 8}, {KindU64, 8, 8}, {KindIsize, 8, 8}, {KindUsize, 8, 8},
		{KindF64, 8, 8}, {KindFloatLiteral, 8, 8}, {KindIntLiteral, 8, 8},
		{KindPointer, 8, 8},
		{KindEnum, 4, 4},
	}
	for _, c := range cases {
		idx := tt.Define(TypeDef{Kind: c.kind})
		if got := tt.SizeOf(idx); got != c.size {
			t.Errorf("SizeOf(%v) = %d, want %d", c.kind, got, c.size)
		}
		if got := tt.AlignOf(idx); got != c.align {
			t.Errorf("AlignOf(%v) = %d, want %d", c.kind, got, c.align)
		}
	}
}

// TestStructLayoutPaddingAndAlignment exercises the sequential
// struct layout rule with a field whose alignment forces padding, and
// checks the no-overlap and alignment invariants layoutOf must uphold.
func TestStructLayoutPaddingAndAlignment(t *testing.T) {
	tt := newTestTypes()
	i8 := tt.Define(TypeDef{Kind: KindI8})
	i64 := tt.Define(TypeDef{Kind: KindI64})
	u16 := tt.Define(TypeDef{Kind: KindU16})

	st := tt.Define(TypeDef{
		Kind: KindStruct,
		Name: "Mixed",
		Fields: []StructField{
			{Name: "a", Type: i8},  // offset 0, size 1
			{Name: "b", Type: i64}, // needs 8-byte alignment -> offset 8
			{Name: "c", Type: u16}, // offset 16, size 2
		},
	})

	if off := tt.FieldOffset(st, "a"); off != 0 {
		t.Errorf("offset(a) = %d, want 0", off)
	}
	if off := tt.FieldOffset(st, "b"); off != 8 {
		t.Errorf("offset(b) = %d, want 8 (padding after the i8)", off)
	}
	if off := tt.FieldOffset(st, "c"); off != 16 {
		t.Errorf("offset(c) = %d, want 16", off)
	}

	// struct alignment = max field alignment = 8 (from the i64 field).
	if align := tt.AlignOf(st); align != 8 {
		t.Errorf("AlignOf(Mixed) = %d, want 8", align)
	}
	// total size rounded up to struct alignment: 16+2=18 -> 24.
	if size := tt.SizeOf(st); size != 24 {
		t.Errorf("SizeOf(Mixed) = %d, want 24", size)
	}
	if size := tt.SizeOf(st); size%tt.AlignOf(st) != 0 {
		t.Errorf("size_of(t) %% align_of(t) != 0: %d %% %d", size, tt.AlignOf(st))
	}

	// Check the no-overlap invariant: offset(f_{i+1}) >= offset(f_i) +
	// size_of(f_i), and that every offset is aligned.
	def := tt.Def(st)
	layout := tt.layoutOf(st)
	for i := 0; i+1 < len(def.Fields); i++ {
		fi, fi1 := def.Fields[i], def.Fields[i+1]
		if layout.offsets[i+1] < layout.offsets[i]+tt.SizeOf(fi.Type) {
			t.Errorf("field %q overlaps field %q", fi1.Name, fi.Name)
		}
	}
	for i, f := range def.Fields {
		if layout.offsets[i]%tt.AlignOf(f.Type) != 0 {
			t.Errorf("field %q at offset %d is not aligned to %d", f.Name, layout.offsets[i], tt.AlignOf(f.Type))
		}
	}
}

// TestStructLayoutMemoized checks that a struct's layout is computed once
// and the cached result is reused on subsequent queries.
func TestStructLayoutMemoized(t *testing.T) {
	tt := newTestTypes()
	i64 := tt.Define(TypeDef{Kind: KindI64})
	st := tt.Define(TypeDef{Kind: KindStruct, Name: "Pair", Fields: []StructField{
		{Name: "x", Type: i64}, {Name: "y", Type: i64},
	}})
	first := tt.layoutOf(st)
	second, ok := tt.layouts[st]
	if !ok {
		t.Fatal("layout was not memoized")
	}
	if first.size != second.size || first.align != second.align {
		t.Fatal("memoized layout diverges from the first computation")
	}
}

// TestCyclicStructIsFatal checks that a self-referential struct type
// trips layoutOf's inflight-recursion guard with a fatal error.
func TestCyclicStructIsFatal(t *testing.T) {
	diag := NewDiagnostics(OutputSilent)
	tt := NewTypeTable(diag)

	// Build a one-element type-def cycle: A has a field of type A itself
	// (self-reference is the simplest cycle to construct without a second
	// pass to backpatch a mutual B->A reference).
	var selfIdx TypeIndex
	selfIdx = tt.Define(TypeDef{Kind: KindStruct, Name: "Self", Fields: []StructField{
		{Name: "next", Type: selfIdx},
	}})

	expectNError(t, func() {
		tt.layoutOf(selfIdx)
	})
}

// TestUnknownTypeIndexIsFatal checks that querying an out-of-range type
// index is a generator bug, not a panic from an out-of-bounds slice access.
func TestUnknownTypeIndexIsFatal(t *testing.T) {
	tt := newTestTypes()
	expectNError(t, func() {
		tt.SizeOf(TypeIndex(999))
	})
}

// TestIsFloatAndIsStruct checks the two predicate helpers the lowerer
// dispatches on.
func TestIsFloatAndIsStruct(t *testing.T) {
	tt := newTestTypes()
	f64 := tt.Define(TypeDef{Kind: KindF64})
	i64 := tt.Define(TypeDef{Kind: KindI64})
	st := tt.Define(TypeDef{Kind: KindStruct, Name: "S"})

	if !tt.IsFloat(f64) {
		t.Error("f64 should report IsFloat")
	}
	if tt.IsFloat(i64) {
		t.Error("i64 should not report IsFloat")
	}
	if !tt.IsStruct(st) {
		t.Error("struct type should report IsStruct")
	}
	if tt.IsStruct(i64) {
		t.Error("i64 should not report IsStruct")
	}
}
