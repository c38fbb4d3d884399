package natgen

import (
	"encoding/binary"
	"fmt"
)

// ARM64Backend implements the arm64 instruction encoders against the
// AAPCS64 subset. Grounded on the teacher's arm64_instructions.go (fixed
// 32-bit little-endian instruction words, arm64GPRegs encoding table) and
// arm64_codegen.go/arm64_backend.go, re-architected the same
// way as AMD64Backend: no interface, no back-pointer.
type ARM64Backend struct {
	g *Generator
}

// NewARM64Backend constructs the backend bound to g.
func NewARM64Backend(g *Generator) *ARM64Backend { return &ARM64Backend{g: g} }

func (a *ARM64Backend) reg(name string) uint32 {
	r, ok := arm64Registers[name]
	if !ok {
		a.g.Diag.NError(fmt.Sprintf("unknown arm64 register %q", name))
	}
	return r
}

// emit appends one 32-bit little-endian instruction word and returns its
// offset. Every arm64 instruction passes through this one chokepoint, so the
// verbose-mode per-instruction trace (byte offset, encoded bytes, mnemonic)
// lives here rather than at each caller.
func (a *ARM64Backend) emit(instr uint32, mnemonic string) int {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], instr)
	pos := a.g.Buf.AppendBytes(buf[:])
	a.g.traceInstr(pos, mnemonic)
	return pos
}

// Movabs materialises a 64-bit immediate into dst via four MOVZ/MOVK
// instructions (16 bits at a time), giving the same integer round-trip
// guarantee on arm64 that Movabs gives on amd64.
func (a *ARM64Backend) Movabs(dst string, imm uint64) {
	rd := a.reg(dst)
	chunks := [4]uint16{
		uint16(imm), uint16(imm >> 16), uint16(imm >> 32), uint16(imm >> 48),
	}
	// MOVZ Xd, #imm16, LSL #0: sf=1,opc=10,100101,hw=00
	a.emit(0xD2800000|(uint32(chunks[0])<<5)|rd, fmt.Sprintf("movz %s, #0x%x", dst, chunks[0]))
	for shift := 1; shift < 4; shift++ {
		if chunks[shift] == 0 {
			continue
		}
		// MOVK Xd, #imm16, LSL #(16*shift): sf=1,opc=11,100101,hw=shift
		a.emit(0xF2800000|(uint32(shift)<<21)|(uint32(chunks[shift])<<5)|rd,
			fmt.Sprintf("movk %s, #0x%x, lsl #%d", dst, chunks[shift], 16*shift))
	}
}

// Mov64 emits ORR Xd, XZR, Xm (the canonical arm64 register-move idiom).
func (a *ARM64Backend) Mov64(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0xAA0003E0|(rm<<16)|rd, fmt.Sprintf("mov %s, %s", dst, src))
}

// strImm emits STR Xt, [Xn, #imm] (unsigned offset, 8-byte scaled), or
// STUR Xt, [Xn, #imm] (signed 9-bit, unscaled) for a negative imm down to
// -256; a lower offset is fatal.
func (a *ARM64Backend) strImm(rt, rn uint32, imm int32, mnemonic string) {
	if imm < 0 {
		if imm < -256 {
			a.g.Diag.NError(fmt.Sprintf("arm64 store offset %d is below -256", imm))
		}
		a.emit(0xF8000000|((uint32(imm)&0x1FF)<<12)|(rn<<5)|rt, mnemonic)
		return
	}
	scaled := uint32(imm/8) & 0xFFF
	a.emit(0xF9000000|(scaled<<10)|(rn<<5)|rt, mnemonic)
}

// ldrImm emits LDR Xt, [Xn, #imm] (unsigned offset, 8-byte scaled), or
// LDUR Xt, [Xn, #imm] (signed 9-bit, unscaled) for a negative imm down to
// -256; a lower offset is fatal.
func (a *ARM64Backend) ldrImm(rt, rn uint32, imm int32, mnemonic string) {
	if imm < 0 {
		if imm < -256 {
			a.g.Diag.NError(fmt.Sprintf("arm64 load offset %d is below -256", imm))
		}
		a.emit(0xF8400000|((uint32(imm)&0x1FF)<<12)|(rn<<5)|rt, mnemonic)
		return
	}
	scaled := uint32(imm/8) & 0xFFF
	a.emit(0xF9400000|(scaled<<10)|(rn<<5)|rt, mnemonic)
}

// MovRegToVar stores src into the frame-resident variable name: STR Xt,
// [X29, #offset].
func (a *ARM64Backend) MovRegToVar(name, src string) {
	off := int32(a.g.frame.Offset(name))
	a.strImm(a.reg(src), a.reg("fp"), off, fmt.Sprintf("str %s, [fp, #%d] ; %s", src, off, name))
}

// MovVarToReg loads the frame-resident variable name into dst: LDR Xt,
// [X29, #offset].
func (a *ARM64Backend) MovVarToReg(dst, name string) {
	off := int32(a.g.frame.Offset(name))
	a.ldrImm(a.reg(dst), a.reg("fp"), off, fmt.Sprintf("ldr %s, [fp, #%d] ; %s", dst, off, name))
}

// MovDeref loads from [base, #imm] into dst.
func (a *ARM64Backend) MovDeref(dst, base string, imm int32) {
	a.ldrImm(a.reg(dst), a.reg(base), imm, fmt.Sprintf("ldr %s, [%s, #%d]", dst, base, imm))
}

// MovStore stores src into [base, #imm].
func (a *ARM64Backend) MovStore(base string, imm int32, src string) {
	a.strImm(a.reg(src), a.reg(base), imm, fmt.Sprintf("str %s, [%s, #%d]", src, base, imm))
}

// LeaVarToReg computes the effective address of a frame-resident variable:
// ADD Xd, X29, #offset (SUB if the offset is negative, which it always is
// for a frame slot below the base pointer).
func (a *ARM64Backend) LeaVarToReg(dst, name string) {
	off := a.g.frame.Offset(name)
	rd, fp := a.reg(dst), a.reg("fp")
	if off >= 0 {
		a.emit(0x91000000|(uint32(off&0xFFF)<<10)|(fp<<5)|rd, fmt.Sprintf("add %s, fp, #%d ; %s", dst, off, name))
	} else {
		a.emit(0xD1000000|(uint32((-off)&0xFFF)<<10)|(fp<<5)|rd, fmt.Sprintf("sub %s, fp, #%d ; %s", dst, -off, name))
	}
}

// LeaRel materialises a placeholder 64-bit absolute address into dst via a
// fixed-width MOVZ+MOVK*3 sequence (all four words always emitted, unlike
// Movabs, so the patch site has a deterministic layout) and returns the
// offset of the first instruction for a RelocARM64MovzAbs64 patch, used for
// string-literal addressing.
func (a *ARM64Backend) LeaRel(dst string) int {
	rd := a.reg(dst)
	start := a.emit(0xD2800000|rd, fmt.Sprintf("movz %s, #0", dst))            // MOVZ Xd, #0
	a.emit(0xF2A00000|rd, fmt.Sprintf("movk %s, #0, lsl #16", dst))            // MOVK Xd, #0, LSL #16
	a.emit(0xF2C00000|rd, fmt.Sprintf("movk %s, #0, lsl #32", dst))            // MOVK Xd, #0, LSL #32
	a.emit(0xF2E00000|rd, fmt.Sprintf("movk %s, #0, lsl #48", dst))            // MOVK Xd, #0, LSL #48
	return start
}

// AddImm emits ADD Xd, Xd, #imm (unsigned imm12).
func (a *ARM64Backend) AddImm(dst string, imm uint32) {
	rd := a.reg(dst)
	a.emit(0x91000000|((imm&0xFFF)<<10)|(rd<<5)|rd, fmt.Sprintf("add %s, %s, #0x%x", dst, dst, imm))
}

// Add emits ADD Xd, Xd, Xm.
func (a *ARM64Backend) Add(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0x8B000000|(rm<<16)|(rd<<5)|rd, fmt.Sprintf("add %s, %s, %s", dst, dst, src))
}

// Sub emits SUB Xd, Xd, Xm.
func (a *ARM64Backend) Sub(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0xCB000000|(rm<<16)|(rd<<5)|rd, fmt.Sprintf("sub %s, %s, %s", dst, dst, src))
}

// SubImm emits SUB Xd, Xd, #imm.
func (a *ARM64Backend) SubImm(dst string, imm uint32) {
	rd := a.reg(dst)
	a.emit(0xD1000000|((imm&0xFFF)<<10)|(rd<<5)|rd, fmt.Sprintf("sub %s, %s, #0x%x", dst, dst, imm))
}

// Mul emits MUL Xd, Xd, Xm (MADD Xd, Xd, Xm, XZR).
func (a *ARM64Backend) Mul(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0x9B007C00|(rm<<16)|(rd<<5)|rd, fmt.Sprintf("mul %s, %s, %s", dst, dst, src))
}

// Div emits SDIV Xd, Xd, Xm.
func (a *ARM64Backend) Div(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0x9AC00C00|(rm<<16)|(rd<<5)|rd, fmt.Sprintf("sdiv %s, %s, %s", dst, dst, src))
}

// BitandReg emits AND Xd, Xd, Xm.
func (a *ARM64Backend) BitandReg(dst, src string) {
	rd, rm := a.reg(dst), a.reg(src)
	a.emit(0x8A000000|(rm<<16)|(rd<<5)|rd, fmt.Sprintf("and %s, %s, %s", dst, dst, src))
}

// CmpReg emits CMP Xn, Xm (SUBS XZR, Xn, Xm).
func (a *ARM64Backend) CmpReg(r1, r2 string) {
	rn, rm := a.reg(r1), a.reg(r2)
	a.emit(0xEB00001F|(rm<<16)|(rn<<5), fmt.Sprintf("cmp %s, %s", r1, r2))
}

// CmpVar loads the variable into a scratch register and compares against
// an immediate: LDR x9, [fp, #off] ; CMP x9, #imm.
func (a *ARM64Backend) CmpVar(name string, imm uint32) {
	a.MovVarToReg("x9", name)
	a.emit(0xF100001F|((imm&0xFFF)<<10)|(a.reg("x9")<<5), fmt.Sprintf("cmp x9, #0x%x ; %s", imm, name))
}

// IncVar increments a frame variable in place.
func (a *ARM64Backend) IncVar(name string) {
	a.MovVarToReg("x9", name)
	a.AddImm("x9", 1)
	a.MovRegToVar(name, "x9")
}

// DecVar decrements a frame variable in place.
func (a *ARM64Backend) DecVar(name string) {
	a.MovVarToReg("x9", name)
	a.SubImm("x9", 1)
	a.MovRegToVar(name, "x9")
}

// Push emits STR with pre-indexed addressing onto the stack: STR Xt,
// [SP, #-16]!.
func (a *ARM64Backend) Push(src string) {
	rt := a.reg(src)
	a.emit(0xF81F0FE0|rt, fmt.Sprintf("str %s, [sp, #-16]!", src))
}

// Pop emits LDR with post-indexed addressing off the stack: LDR Xt,
// [SP], #16.
func (a *ARM64Backend) Pop(dst string) {
	rt := a.reg(dst)
	a.emit(0xF84107E0|rt, fmt.Sprintf("ldr %s, [sp], #16", dst))
}

// PopSSE has no arm64 implementation: marks the arm64 float path
// as unimplemented stubs, fatal if exercised.
func (a *ARM64Backend) PopSSE(dst string) {
	a.g.Diag.NError("arm64 floating-point path is not implemented")
}

// MovVarToFloatReg has no arm64 implementation: a float-kind identifier
// read is part of the same unimplemented arm64 float path as PopSSE.
func (a *ARM64Backend) MovVarToFloatReg(dst, name string) {
	a.g.Diag.NError("arm64 floating-point path is not implemented")
}

func (c JumpCond) arm64Cond() uint32 {
	switch c {
	case CondEQ:
		return 0x0
	case CondNE:
		return 0x1
	case CondLT:
		return 0xB
	case CondLE:
		return 0xD
	case CondGT:
		return 0xC
	case CondGE:
		return 0xA
	}
	return 0xE // AL, unreachable for valid input
}

func (c JumpCond) arm64Mnemonic() string {
	switch c {
	case CondEQ:
		return "b.eq"
	case CondNE:
		return "b.ne"
	case CondLT:
		return "b.lt"
	case CondLE:
		return "b.le"
	case CondGT:
		return "b.gt"
	case CondGE:
		return "b.ge"
	}
	return "b.al"
}

// Jmp emits an unconditional branch (B, imm26) with a placeholder offset,
// recording the patch against label.
func (a *ARM64Backend) Jmp(label LabelID) {
	pos := a.emit(0x14000000, fmt.Sprintf("b L%d", label))
	a.g.labels.RecordPatch(label, pos, RelocARM64Branch26, pos)
}

// Cjmp emits a conditional branch (B.cond, imm19) with a placeholder
// offset.
func (a *ARM64Backend) Cjmp(cond JumpCond, label LabelID) {
	pos := a.emit(0x54000000|cond.arm64Cond(), fmt.Sprintf("%s L%d", cond.arm64Mnemonic(), label))
	a.g.labels.RecordPatch(label, pos, RelocARM64Branch19, pos)
}

// CallFn emits BL with a placeholder offset and a pending-call record.
func (a *ARM64Backend) CallFn(callee string) {
	pos := a.emit(0x94000000, fmt.Sprintf("bl %s", callee))
	a.g.pendingCalls = append(a.g.pendingCalls, PendingCall{Offset: pos, Callee: callee, ARM64Branch: true})
}

// Ret emits RET (to LR).
func (a *ARM64Backend) Ret() {
	a.emit(0xD65F03C0, "ret")
}

// Syscall emits SVC #0, the Linux arm64 syscall instruction.
func (a *ARM64Backend) Syscall() {
	a.emit(0xD4000001, "svc #0")
}

// GenExit lowers exit() to the Linux arm64 exit syscall sequence: mov x8,
// 93 ; mov x0, code ; svc #0.
func (a *ARM64Backend) GenExit(code int64) {
	a.Movabs("x8", 93)
	a.Movabs("x0", uint64(code))
	a.Syscall()
}

// FnDecl emits the AAPCS64 prologue: STP X29, X30, [SP, #-16]! ; MOV X29,
// SP ; SUB SP, SP, #frameSize (frameSize already 16-byte aligned).
func (a *ARM64Backend) FnDecl(frameSize int) {
	a.emit(0xA9BF7BFD, "stp x29, x30, [sp, #-16]!")
	a.emit(0x910003FD, "mov x29, sp")
	if frameSize > 0 {
		a.SubImm("sp", uint32(frameSize))
	}
}

// FnEpilogue restores sp/x29/x30 and returns: ADD SP, SP, #frameSize ; LDP
// X29, X30, [SP], #16 ; RET.
func (a *ARM64Backend) FnEpilogue(frameSize int) {
	if frameSize > 0 {
		a.AddImm("sp", uint32(frameSize))
	}
	a.emit(0xA8C17BFD, "ldp x29, x30, [sp], #16")
	a.Ret()
}
