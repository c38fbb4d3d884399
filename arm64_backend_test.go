package natgen

import (
	"encoding/binary"
	"testing"
)

func newTestARM64(t *testing.T) (*Generator, *ARM64Backend) {
	t.Helper()
	g := NewGenerator(Preferences{Arch: ArchARM64, OS: OSRaw})
	g.frame = NewFrame(g.Diag)
	g.labels = NewLabelTable(g.Diag)
	return g, g.arm64
}

func readWord(t *testing.T, buf []byte, offset int) uint32 {
	t.Helper()
	return binary.LittleEndian.Uint32(buf[offset : offset+4])
}

// TestARM64MovabsSingleChunk checks that a value fitting in the low 16 bits
// emits only the MOVZ instruction (MOVK with a zero chunk is skipped).
func TestARM64MovabsSingleChunk(t *testing.T) {
	_, a := newTestARM64(t)
	a.Movabs("x0", 0x1234)
	got := a.g.Buf.Bytes()
	if len(got) != 4 {
		t.Fatalf("length = %d, want 4 (MOVZ only)", len(got))
	}
	word := readWord(t, got, 0)
	want := uint32(0xD2800000 | (0x1234 << 5))
	if word != want {
		t.Fatalf("MOVZ word = 0x%08x, want 0x%08x", word, want)
	}
}

// TestARM64MovabsFourChunks checks a value needing all three MOVK
// instructions in addition to the initial MOVZ, and that the round trip
// reconstructs the original 64-bit value.
func TestARM64MovabsFourChunks(t *testing.T) {
	_, a := newTestARM64(t)
	const imm = uint64(0x0102030405060708)
	a.Movabs("x0", imm)
	got := a.g.Buf.Bytes()
	if len(got) != 16 {
		t.Fatalf("length = %d, want 16 (MOVZ + 3x MOVK)", len(got))
	}

	var rebuilt uint64
	for i := 0; i < 4; i++ {
		word := readWord(t, got, i*4)
		chunk := uint16((word >> 5) & 0xFFFF)
		rebuilt |= uint64(chunk) << (16 * i)
	}
	if rebuilt != imm {
		t.Fatalf("round-tripped immediate = 0x%x, want 0x%x", rebuilt, imm)
	}
}

// TestARM64AddSubEncoding checks ADD/SUB Xd, Xd, Xm against hand-computed
// instruction words.
func TestARM64AddSubEncoding(t *testing.T) {
	_, a := newTestARM64(t)
	a.Add("x0", "x1")
	got := readWord(t, a.g.Buf.Bytes(), 0)
	want := uint32(0x8B000000 | (1 << 16) | (0 << 5) | 0)
	if got != want {
		t.Fatalf("ADD word = 0x%08x, want 0x%08x", got, want)
	}

	_, a2 := newTestARM64(t)
	a2.Sub("x2", "x3")
	got2 := readWord(t, a2.g.Buf.Bytes(), 0)
	want2 := uint32(0xCB000000 | (3 << 16) | (2 << 5) | 2)
	if got2 != want2 {
		t.Fatalf("SUB word = 0x%08x, want 0x%08x", got2, want2)
	}
}

// TestARM64JmpAndBranch26Patch checks the unconditional branch placeholder
// and its imm26 patch, analogous to the amd64 rel32 jump test.
func TestARM64JmpAndBranch26Patch(t *testing.T) {
	g, a := newTestARM64(t)
	label := g.labels.NewLabel()
	a.Jmp(label)
	word := readWord(t, g.Buf.Bytes(), 0)
	if word&0xFC000000 != 0x14000000 {
		t.Fatalf("B opcode bits = 0x%08x, want top byte 0x14", word)
	}

	g.Buf.AppendBytes(make([]byte, 12))
	g.labels.Bind(label, g.Buf.Pos())
	g.labels.PatchAll(g.Buf)

	patched := readWord(t, g.Buf.Bytes(), 0)
	imm26 := int32(patched&0x03FFFFFF<<6) >> 6
	if int(imm26)*4 != 16 {
		t.Fatalf("branch displacement = %d, want 16", int(imm26)*4)
	}
}

// TestARM64CallFnMarksARM64Branch checks that CallFn records a pending call
// flagged for the imm26 merge-patch.
func TestARM64CallFnMarksARM64Branch(t *testing.T) {
	g, a := newTestARM64(t)
	a.CallFn("helper")
	if len(g.pendingCalls) != 1 || !g.pendingCalls[0].ARM64Branch {
		t.Fatalf("expected an ARM64Branch pending call, got %+v", g.pendingCalls)
	}
	word := readWord(t, g.Buf.Bytes(), 0)
	if word&0xFC000000 != 0x94000000 {
		t.Fatalf("BL opcode bits = 0x%08x, want top byte 0x94", word)
	}
}

// TestARM64FnDeclEpilogueRoundTrip checks the AAPCS64 prologue/epilogue
// instruction words.
func TestARM64FnDeclEpilogueRoundTrip(t *testing.T) {
	_, a := newTestARM64(t)
	a.FnDecl(16)
	a.FnEpilogue(16)
	got := a.g.Buf.Bytes()
	if len(got) != 24 { // 6 instructions x 4 bytes
		t.Fatalf("length = %d, want 24", len(got))
	}
	if readWord(t, got, 0) != 0xA9BF7BFD {
		t.Fatalf("STP prologue word wrong: 0x%08x", readWord(t, got, 0))
	}
	if readWord(t, got, 20) != 0xD65F03C0 {
		t.Fatalf("final RET word wrong: 0x%08x", readWord(t, got, 20))
	}
}

// TestARM64PopSSEIsFatal checks that the arm64 float path's unimplemented
// stub is a fatal error when exercised.
func TestARM64PopSSEIsFatal(t *testing.T) {
	expectNError(t, func() {
		_, a := newTestARM64(t)
		a.PopSSE("v0")
	})
}

// TestARM64UnknownRegisterIsFatal mirrors the amd64 equivalent for the
// arm64 register table.
func TestARM64UnknownRegisterIsFatal(t *testing.T) {
	expectNError(t, func() {
		_, a := newTestARM64(t)
		a.Mov64("not_a_register", "x0")
	})
}
