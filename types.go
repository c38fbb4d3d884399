package natgen

import "fmt"

// Kind enumerates the primitive and aggregate type tags the generator
// understands
type Kind int

const (
	KindI8 Kind = iota
	KindU8
	KindI16
	KindU16
	KindInt // "int" — 32-bit
	KindU32
	KindF32
	KindI64
	KindU64
	KindIsize
	KindUsize
	KindF64
	KindFloatLiteral
	KindIntLiteral
	KindBool
	KindChar
	KindRune
	KindPointer
	KindStruct
	KindEnum
)

// TypeIndex is an opaque handle into the shared type table, assigned by the
// (external) type checker.
type TypeIndex int

// StructField describes one field of a struct type in declaration order.
type StructField struct {
	Name string
	Type TypeIndex
}

// TypeDef is one entry in the shared type table. Primitives only need Kind;
// struct/enum types carry additional declaration data.
type TypeDef struct {
	Kind   Kind
	Name   string        // struct/enum name, empty for primitives/pointer
	Fields []StructField // struct fields in declaration order
	Elem   TypeIndex      // pointee type, for KindPointer
}

type structLayout struct {
	size    int
	align   int
	offsets []int // per-field byte offset, parallel to TypeDef.Fields
}

// TypeTable is the shared type table plus a
// memoised layout cache keyed by type index "Type-symbol
// cache". Grounded on the teacher's lazy lambdaOffsets-style memoisation
// (codegen.go), generalised to layout computation.
type TypeTable struct {
	defs    []TypeDef
	layouts map[TypeIndex]structLayout
	inflight map[TypeIndex]bool // cycle detection while computing a layout
	diag    *Diagnostics
}

// NewTypeTable creates an empty type table bound to a diagnostic sink for
// fatal cyclic-struct errors.
func NewTypeTable(diag *Diagnostics) *TypeTable {
	return &TypeTable{
		layouts:  make(map[TypeIndex]structLayout),
		inflight: make(map[TypeIndex]bool),
		diag:     diag,
	}
}

// Define registers a type and returns its index.
func (t *TypeTable) Define(def TypeDef) TypeIndex {
	t.defs = append(t.defs, def)
	return TypeIndex(len(t.defs) - 1)
}

func (t *TypeTable) def(idx TypeIndex) TypeDef {
	if int(idx) < 0 || int(idx) >= len(t.defs) {
		t.diag.NError(fmt.Sprintf("unknown type index %d", idx))
	}
	return t.defs[idx]
}

// primitiveSize is the hard-wired table from spec.md §4.2.
func primitiveSize(k Kind) (size, align int, ok bool) {
	switch k {
	case KindI8, KindU8, KindBool, KindChar:
		return 1, 1, true
	case KindI16, KindU16:
		return 2, 2, true
	case KindInt, KindU32, KindF32, KindRune:
		return 4, 4, true
	case KindI64, KindU64, KindIsize, KindUsize, KindF64, KindFloatLiteral, KindIntLiteral, KindPointer:
		return 8, 8, true
	case KindEnum:
		return 4, 4, true
	default:
		return 0, 0, false
	}
}

// SizeOf returns the size in bytes of t, computing and memoising struct
// layout lazily on first query.
func (tt *TypeTable) SizeOf(t TypeIndex) int {
	def := tt.def(t)
	if size, _, ok := primitiveSize(def.Kind); ok {
		return size
	}
	if def.Kind == KindStruct {
		return tt.layoutOf(t).size
	}
	tt.diag.NError(fmt.Sprintf("size_of: unhandled type kind for %q", def.Name))
	return 0
}

// AlignOf returns the alignment in bytes of t.
func (tt *TypeTable) AlignOf(t TypeIndex) int {
	def := tt.def(t)
	if _, align, ok := primitiveSize(def.Kind); ok {
		return align
	}
	if def.Kind == KindStruct {
		return tt.layoutOf(t).align
	}
	tt.diag.NError(fmt.Sprintf("align_of: unhandled type kind for %q", def.Name))
	return 0
}

// FieldOffset returns the byte offset of the named field within struct type
// t, computing layout on demand.
func (tt *TypeTable) FieldOffset(t TypeIndex, fieldName string) int {
	def := tt.def(t)
	layout := tt.layoutOf(t)
	for i, f := range def.Fields {
		if f.Name == fieldName {
			return layout.offsets[i]
		}
	}
	tt.diag.NError(fmt.Sprintf("struct %q has no field %q", def.Name, fieldName))
	return 0
}

// layoutOf computes (and memoises) sequential struct layout: fields in
// declaration order, padding inserted to satisfy each field's alignment,
// struct alignment = max field alignment, size rounded up to that alignment.
// Cyclic struct types are a fatal generator bug rather than
// infinite recursion.
func (tt *TypeTable) layoutOf(t TypeIndex) structLayout {
	if layout, ok := tt.layouts[t]; ok {
		return layout
	}
	if tt.inflight[t] {
		tt.diag.NError(fmt.Sprintf("cyclic struct type %q", tt.def(t).Name))
	}
	tt.inflight[t] = true
	defer delete(tt.inflight, t)

	def := tt.def(t)
	offsets := make([]int, len(def.Fields))
	offset := 0
	maxAlign := 1
	for i, f := range def.Fields {
		fsize := tt.SizeOf(f.Type)
		falign := tt.AlignOf(f.Type)
		if falign > maxAlign {
			maxAlign = falign
		}
		offset = alignUp(offset, falign)
		offsets[i] = offset
		offset += fsize
	}
	size := alignUp(offset, maxAlign)
	layout := structLayout{size: size, align: maxAlign, offsets: offsets}
	tt.layouts[t] = layout
	return layout
}

func alignUp(n, align int) int {
	if align <= 1 {
		return n
	}
	return (n + align - 1) &^ (align - 1)
}

// IsFloat reports whether t is a floating-point type.
func (tt *TypeTable) IsFloat(t TypeIndex) bool {
	k := tt.def(t).Kind
	return k == KindF32 || k == KindF64 || k == KindFloatLiteral
}

// IsStruct reports whether t is a struct type.
func (tt *TypeTable) IsStruct(t TypeIndex) bool {
	return tt.def(t).Kind == KindStruct
}

// Def exposes the raw type definition (used by the lowerer for field
// resolution and by the enum table).
func (tt *TypeTable) Def(t TypeIndex) TypeDef {
	return tt.def(t)
}
