package natgen

import "testing"

func newTestAMD64(t *testing.T) (*Generator, *AMD64Backend) {
	t.Helper()
	g := NewGenerator(Preferences{Arch: ArchAMD64, OS: OSRaw})
	g.frame = NewFrame(g.Diag)
	g.labels = NewLabelTable(g.Diag)
	return g, g.amd64
}

// TestAMD64MovabsEncoding checks the exact byte pattern for "mov rax, imm64"
// (REX.W + B8+rd + imm64).
func TestAMD64MovabsEncoding(t *testing.T) {
	_, a := newTestAMD64(t)
	a.Movabs("rax", 0x0102030405060708)
	got := a.g.Buf.Bytes()
	want := []byte{0x48, 0xB8, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, got[i], want[i])
		}
	}
}

// TestAMD64MovabsExtendedRegisterREX checks that an r8-r15 destination sets
// REX.B in the REX prefix + opcode encoding.
func TestAMD64MovabsExtendedRegisterREX(t *testing.T) {
	_, a := newTestAMD64(t)
	a.Movabs("r9", 1)
	got := a.g.Buf.Bytes()
	if got[0] != 0x49 { // REX.W | REX.B
		t.Fatalf("REX byte = 0x%02x, want 0x49", got[0])
	}
	if got[1] != 0xB9 { // B8 + (r9 low 3 bits = 1)
		t.Fatalf("opcode byte = 0x%02x, want 0xB9", got[1])
	}
}

// TestAMD64IntegerRoundTrip exercises the integer-literal round-trip
// across a spread of i64 values.
func TestAMD64IntegerRoundTrip(t *testing.T) {
	values := []int64{0, 1, -1, 42, -42, 1 << 40, -(1 << 40), 9223372036854775807}
	for _, v := range values {
		_, a := newTestAMD64(t)
		a.Movabs("rax", uint64(v))
		got := a.g.Buf.Bytes()
		if got[0] != 0x48 || got[1] != 0xB8 {
			t.Fatalf("value %d: unexpected prefix % x", v, got[:2])
		}
		readBack := int64(0)
		for i := 0; i < 8; i++ {
			readBack |= int64(got[2+i]) << (8 * i)
		}
		if readBack != v {
			t.Fatalf("round-tripped value = %d, want %d", readBack, v)
		}
	}
}

// TestAMD64AddEncoding checks the "add dst, src" encoding (REX.W + 01 /r).
func TestAMD64AddEncoding(t *testing.T) {
	_, a := newTestAMD64(t)
	a.Add("rax", "rcx")
	got := a.g.Buf.Bytes()
	want := []byte{0x48, 0x01, 0xC8}
	if len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("got % x, want % x", got, want)
	}
}

// TestAMD64JmpPlaceholderAndPatch checks the jump placeholder plus the
// label patcher's resulting displacement.
func TestAMD64JmpPlaceholderAndPatch(t *testing.T) {
	g, a := newTestAMD64(t)
	label := g.labels.NewLabel()
	a.Jmp(label)
	got := g.Buf.Bytes()
	if got[0] != 0xE9 {
		t.Fatalf("jmp opcode = 0x%02x, want 0xE9", got[0])
	}
	if g.Buf.ReadU32(1) != 0 {
		t.Fatalf("placeholder displacement should be zero before patching")
	}

	g.Buf.AppendBytes(make([]byte, 6))
	g.labels.Bind(label, g.Buf.Pos())
	g.labels.PatchAll(g.Buf)

	disp := int32(g.Buf.ReadU32(1))
	if int(disp) != 6 { // target(11) - (patchpos(1)+4) = 6
		t.Fatalf("patched displacement = %d, want 6", disp)
	}
}

// TestAMD64CjmpConditionCodes spot-checks the Jcc opcode table.
func TestAMD64CjmpConditionCodes(t *testing.T) {
	cases := map[JumpCond]byte{
		CondEQ: 0x84, CondNE: 0x85, CondLT: 0x8C,
		CondLE: 0x8E, CondGT: 0x8F, CondGE: 0x8D,
	}
	for cond, want := range cases {
		_, a := newTestAMD64(t)
		label := a.g.labels.NewLabel()
		a.Cjmp(cond, label)
		got := a.g.Buf.Bytes()
		if got[0] != 0x0F || got[1] != want {
			t.Fatalf("cond %v: got 0x%02x 0x%02x, want 0x0F 0x%02x", cond, got[0], got[1], want)
		}
	}
}

// TestAMD64CallFnRecordsPendingCall checks that CallFn emits E8 rel32 and
// registers a PendingCall for the post-pass patcher.
func TestAMD64CallFnRecordsPendingCall(t *testing.T) {
	g, a := newTestAMD64(t)
	a.CallFn("helper")
	got := g.Buf.Bytes()
	if got[0] != 0xE8 {
		t.Fatalf("call opcode = 0x%02x, want 0xE8", got[0])
	}
	if len(g.pendingCalls) != 1 || g.pendingCalls[0].Callee != "helper" {
		t.Fatalf("pending call not recorded: %+v", g.pendingCalls)
	}
}

// TestAMD64FnDeclEpilogueRoundTrip checks the System V prologue/epilogue
// byte sequences.
func TestAMD64FnDeclEpilogueRoundTrip(t *testing.T) {
	_, a := newTestAMD64(t)
	a.FnDecl(32)
	a.FnEpilogue()
	got := a.g.Buf.Bytes()
	want := []byte{
		0x55,             // push rbp
		0x48, 0x89, 0xE5, // mov rbp, rsp
		0x48, 0x81, 0xEC, 0x20, 0x00, 0x00, 0x00, // sub rsp, 32
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0x5D, // pop rbp
		0xC3, // ret
	}
	if len(got) != len(want) {
		t.Fatalf("length = %d, want %d (% x)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d = 0x%02x, want 0x%02x", i, got[i], want[i])
		}
	}
}

// TestAMD64GenExitSyscallSequence checks the exit() lowering:
// mov rax, 60 ; mov rdi, code ; syscall.
func TestAMD64GenExitSyscallSequence(t *testing.T) {
	_, a := newTestAMD64(t)
	a.GenExit(40)
	got := a.g.Buf.Bytes()
	if len(got) != 22 {
		t.Fatalf("length = %d, want 22 (two movabs + syscall)", len(got))
	}
	// syscall is the final two bytes: 0F 05.
	if got[20] != 0x0F || got[21] != 0x05 {
		t.Fatalf("trailing bytes = % x, want 0f 05", got[20:])
	}
}

// TestAMD64UnknownRegisterIsFatal checks the register lookup's fatal path.
func TestAMD64UnknownRegisterIsFatal(t *testing.T) {
	expectNError(t, func() {
		_, a := newTestAMD64(t)
		a.Movabs("not_a_register", 0)
	})
}
