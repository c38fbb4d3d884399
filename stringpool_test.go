package natgen

import "testing"

// TestDecodeEscapesTable exercises the escape rules: \\ \a \b \f
// \n \r \t \v \uXXXX \xHH \0-\7 and octal triples.
func TestDecodeEscapesTable(t *testing.T) {
	diag := NewDiagnostics(OutputSilent)
	cases := []struct {
		name string
		in   string
		want []byte
	}{
		{"newline", `a\nb`, []byte{'a', '\n', 'b'}},
		{"tab", `x\ty`, []byte{'x', '\t', 'y'}},
		{"backslash", `\\`, []byte{'\\'}},
		{"bell", `\a`, []byte{0x07}},
		{"backspace", `\b`, []byte{0x08}},
		{"formfeed", `\f`, []byte{0x0c}},
		{"carriage-return", `\r`, []byte{0x0d}},
		{"vtab", `\v`, []byte{0x0b}},
		{"hex", `\x41`, []byte{0x41}},
		{"octal-single", `\7`, []byte{0x07}},
		{"octal-triple", `\101`, []byte{0x41}}, // octal 101 = 'A' = 0x41
		{"plain", "hello", []byte("hello")},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := DecodeEscapes(diag, c.in)
			if string(got) != string(c.want) {
				t.Errorf("DecodeEscapes(%q) = % x, want % x", c.in, got, c.want)
			}
		})
	}
}

// TestDecodeEscapesUnicodeLittleEndian checks that \uXXXX encodes
// little-endian UTF-16 bytes without surrogate pairing, rather than UTF-8.
func TestDecodeEscapesUnicodeLittleEndian(t *testing.T) {
	diag := NewDiagnostics(OutputSilent)
	got := DecodeEscapes(diag, "\\u0042")
	want := []byte{0x42, 0x00} // UTF-16LE code unit for 'B'
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("DecodeEscapes(\\u0042) = % x, want % x", got, want)
	}
}

// TestDecodeEscapesInvalidIsFatal checks that an unrecognised escape
// sequence is fatal.
func TestDecodeEscapesInvalidIsFatal(t *testing.T) {
	expectNError(t, func() {
		diag := NewDiagnostics(OutputSilent)
		DecodeEscapes(diag, `\q`)
	})
}

// TestDecodeEscapesDanglingBackslashIsFatal checks the trailing-backslash
// edge case.
func TestDecodeEscapesDanglingBackslashIsFatal(t *testing.T) {
	expectNError(t, func() {
		diag := NewDiagnostics(OutputSilent)
		DecodeEscapes(diag, `abc\`)
	})
}

// TestStringPoolRel32Patch checks the rel32 patch formula: the patched
// field holds string_address - (displacement_pos + 4).
func TestStringPoolRel32Patch(t *testing.T) {
	diag := NewDiagnostics(OutputSilent)
	pool := NewStringPool(diag)

	var buf CodeBuffer
	buf.AppendBytes([]byte{0x00, 0x00, 0x00, 0x00, 0x00}) // 5 bytes of "code"
	refPos := buf.AppendU32(0)                            // the rel32 displacement field

	pool.AllocateString([]byte("hi"), refPos, RelocRel32)
	pool.Layout(&buf)
	pool.Patch(&buf, 0)

	addr := pool.entries[0].addr
	want := int32(addr - (refPos + 4))
	got := int32(buf.ReadU32(refPos))
	if got != want {
		t.Fatalf("patched rel32 = %d, want %d", got, want)
	}
}

// TestStringPoolAbs64Patch checks the absolute addressing kind writes the
// full virtual address (base + buffer-relative offset).
func TestStringPoolAbs64Patch(t *testing.T) {
	diag := NewDiagnostics(OutputSilent)
	pool := NewStringPool(diag)

	var buf CodeBuffer
	refPos := buf.AppendU64(0)

	pool.AllocateString([]byte("data"), refPos, RelocAbs64)
	pool.Layout(&buf)
	const base = uint64(0x400000)
	pool.Patch(&buf, base)

	addr := pool.entries[0].addr
	want := base + uint64(addr)
	gotLo := buf.ReadU32(refPos)
	gotHi := buf.ReadU32(refPos + 4)
	got := uint64(gotLo) | uint64(gotHi)<<32
	if got != want {
		t.Fatalf("patched abs64 = 0x%x, want 0x%x", got, want)
	}
}

// TestStringPoolUnlaidEntryIsFatal checks that patching before layout is
// a generator bug and reported as fatal.
func TestStringPoolUnlaidEntryIsFatal(t *testing.T) {
	expectNError(t, func() {
		diag := NewDiagnostics(OutputSilent)
		pool := NewStringPool(diag)
		var buf CodeBuffer
		pool.AllocateString([]byte("x"), 0, RelocRel32)
		pool.Patch(&buf, 0) // Layout was never called
	})
}
