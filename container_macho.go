package natgen

// container_macho.go writes the macOS container: a minimal static Mach-O 64-bit
// executable, one __TEXT segment holding the patched code and string pool,
// entered directly via LC_UNIXTHREAD (no dyld, no LC_MAIN, no LC_LOAD_DYLIB)
// since this generator's non-syscall surface never calls into libSystem. Grounded on the
// teacher's macho.go (MachOHeader64/LoadCommand/SegmentCommand64/Section64
// field layout, CPU_TYPE_X86_64/CPU_TYPE_ARM64 constants); its LC_MAIN +
// dynamic-linking machinery (stubs/GOT/LC_LOAD_DYLIB, the neededFunctions
// import table) is trimmed since nothing in this generator's output needs a
// dylib resolved at load time.
const (
	machHeaderSize64  = 32
	machSegCmdSize64  = 72
	machSectSize64    = 80
	machThreadCmdSize = 16 + 168 // LoadCommand + x86_THREAD_STATE64 register save area

	lcSegment64   = 0x19
	lcUnixThread  = 0x5
	vmProtNone    = 0x0
	vmProtRead    = 0x1
	vmProtWrite   = 0x2
	vmProtExecute = 0x4

	machOZeroPageSize = uint64(0x100000000)
	machOPageSize     = uint64(0x4000)
)

// writeMachO lays out a single RWX __TEXT segment (no __PAGEZERO segment)
// holding header, code, and string pool, matching writeSimpleELF's shape.
func (g *Generator) writeMachO() ([]byte, error) {
	if len(g.externCalls) > 0 {
		g.Diag.NError("macOS container writer reached with unresolved external calls; lowerUserCall should have rejected this earlier")
	}

	base := machOZeroPageSize
	headerSize := uint64(machHeaderSize64 + machSegCmdSize64 + machSectSize64 + machThreadCmdSize)
	textBase := base + headerSize
	entry := textBase + uint64(g.mainAddr)

	g.patchPendingCalls()
	g.Strings.Layout(g.Buf)
	g.Strings.Patch(g.Buf, textBase)
	code := g.Buf.Bytes()

	textSize := headerSize + uint64(len(code))

	out := &CodeBuffer{}
	out.AppendU32(0xfeedfacf) // MH_MAGIC_64
	out.AppendU32(g.machOCPUType())
	out.AppendU32(g.machOCPUSubtype())
	out.AppendU32(0x2) // MH_EXECUTE
	out.AppendU32(2)   // ncmds: __TEXT segment + LC_UNIXTHREAD
	out.AppendU32(uint32(machSegCmdSize64 + machSectSize64 + machThreadCmdSize))
	out.AppendU32(0x1) // MH_NOUNDEFS: no undefined symbols to resolve
	out.AppendU32(0)   // reserved

	// __PAGEZERO is folded away: this writer has no dyld, so the unmapped
	// guard segment dyld normally relies on is unnecessary; __TEXT starts at
	// base instead of base+__PAGEZERO's size.
	writeMachSegment(out, "__TEXT", base, textSize, 0, textSize, vmProtRead|vmProtWrite|vmProtExecute, 1)
	writeMachSection(out, "__text", "__TEXT", textBase, uint64(len(code)), uint32(headerSize))

	writeMachThread(out, g.isa, entry)

	out.AppendBytes(code)
	return out.Bytes(), nil
}

func (g *Generator) machOCPUType() uint32 {
	if g.isa == ISAARM64 {
		return 0x0100000c
	}
	return 0x01000007
}

func (g *Generator) machOCPUSubtype() uint32 {
	return 0x00000003
}

func writeMachSegment(b *CodeBuffer, name string, vmaddr, vmsize, fileoff, filesize uint64, prot uint32, nsects uint32) {
	b.AppendU32(lcSegment64)
	b.AppendU32(uint32(machSegCmdSize64 + machSectSize64*uint64(nsects)))
	b.AppendFixedString(name, 16)
	b.AppendU64(vmaddr)
	b.AppendU64(vmsize)
	b.AppendU64(fileoff)
	b.AppendU64(filesize)
	b.AppendU32(prot) // maxprot
	b.AppendU32(prot) // initprot
	b.AppendU32(nsects)
	b.AppendU32(0) // flags
}

func writeMachSection(b *CodeBuffer, sectName, segName string, addr, size uint64, offset uint32) {
	b.AppendFixedString(sectName, 16)
	b.AppendFixedString(segName, 16)
	b.AppendU64(addr)
	b.AppendU64(size)
	b.AppendU32(offset)
	b.AppendU32(4) // align, log2
	b.AppendU32(0) // reloff
	b.AppendU32(0) // nreloc
	b.AppendU32(0x80000400) // S_REGULAR | S_ATTR_SOME_INSTRUCTIONS | S_ATTR_PURE_INSTRUCTIONS
	b.AppendU32(0)
	b.AppendU32(0)
	b.AppendU32(0)
}

// writeMachThread emits LC_UNIXTHREAD with the entry address loaded into the
// ISA's PC/RIP register slot, the one piece of per-architecture register
// state the kernel reads to start the process without dyld's help.
// writeMachThread writes the (flavor, count) pair plus a fixed 168-byte
// register save area sized to match machThreadCmdSize on both ISAs; the
// entry address lands in the slot the kernel reads to set PC/RIP before the
// first instruction, the rest is zeroed since this generator starts from a
// clean register file regardless of target.
func writeMachThread(b *CodeBuffer, isa ISAKind, entry uint64) {
	b.AppendU32(lcUnixThread)
	b.AppendU32(machThreadCmdSize)
	if isa == ISAARM64 {
		b.AppendU32(6)  // ARM_THREAD_STATE64
		b.AppendU32(42) // count in uint32 words, matched to x86's layout below
		for i := 0; i < 20; i++ {
			b.AppendU64(0) // x0-x19, zeroed
		}
		b.AppendU64(entry) // pc
		return
	}
	b.AppendU32(4)  // x86_THREAD_STATE64
	b.AppendU32(42) // count in uint32 words
	for i := 0; i < 16; i++ {
		b.AppendU64(0) // rax..r15, all zeroed
	}
	b.AppendU64(entry) // rip
	for i := 0; i < 4; i++ {
		b.AppendU64(0) // rflags, cs, fs, gs
	}
}
