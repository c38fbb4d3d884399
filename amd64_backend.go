package natgen

import "fmt"

// AMD64Backend implements the amd64 instruction encoders, the
// System V calling convention subset, control flow primitives and
// compare/branch support. Grounded on the teacher's mov.go/add.go/
// div.go/and.go/cmp.go (REX prefix + opcode + ModR/M + SIB + displacement +
// immediate encoding), re-architected: no interface, no
// back-pointer — the Generator holds this struct inline and every method
// takes g explicitly instead of the backend closing over it.
type AMD64Backend struct {
	g *Generator
}

// NewAMD64Backend constructs the backend bound to g's buffer/diagnostics.
func NewAMD64Backend(g *Generator) *AMD64Backend { return &AMD64Backend{g: g} }

func rexPrefix(w, r, x, b bool) byte {
	rex := byte(0x40)
	if w {
		rex |= 0x08
	}
	if r {
		rex |= 0x04
	}
	if x {
		rex |= 0x02
	}
	if b {
		rex |= 0x01
	}
	return rex
}

func modRM(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 7) << 3) | (rm & 7)
}

func (a *AMD64Backend) reg(name string) amd64Reg {
	r, ok := amd64Registers[name]
	if !ok {
		a.g.Diag.NError(fmt.Sprintf("unknown amd64 register %q", name))
	}
	return r
}

// Movabs loads a full 64-bit immediate into dst: REX.W + B8+rd + imm64,
// satisfying integer-literal round-trip invariant.
func (a *AMD64Backend) Movabs(dst string, imm uint64) {
	start := a.g.Buf.Pos()
	r := a.reg(dst)
	a.g.Buf.AppendByte(rexPrefix(true, false, false, r.needsRex))
	a.g.Buf.AppendByte(0xB8 + r.encoding)
	a.g.Buf.AppendU64(imm)
	a.g.traceInstr(start, fmt.Sprintf("movabs %s, 0x%x", dst, imm))
}

// Mov64 moves src into dst (register-to-register, 64-bit): REX.W + 89 /r.
func (a *AMD64Backend) Mov64(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, d.needsRex))
	a.g.Buf.AppendByte(0x89)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	a.g.traceInstr(start, fmt.Sprintf("mov %s, %s", dst, src))
}

// Mov encodes a 32-bit register move (used for bool/int32-width values):
// 89 /r, no REX.W.
func (a *AMD64Backend) Mov(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(0x89)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	_ = d
	a.g.traceInstr(start, fmt.Sprintf("mov %s, %s (32-bit)", dst, src))
}

// MovStore stores src into [rbp+disp]: REX.W + 89 /r with a disp32 ModRM.
func (a *AMD64Backend) MovStore(disp int32, src string) {
	start := a.g.Buf.Pos()
	s := a.reg(src)
	bp := a.reg("rbp")
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, bp.needsRex))
	a.g.Buf.AppendByte(0x89)
	a.g.Buf.AppendByte(modRM(2, s.encoding, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("mov [rbp%+d], %s", disp, src))
}

// MovStoreBase stores src into [base+disp] against an arbitrary base
// register (not necessarily rbp): REX.W + 89 /r with a disp32 ModRM. Used
// for indirect stores through a pointer, e.g. the hidden struct-return
// pointer argument. base must not be rsp/r12 (SIB-requiring encodings),
// which the generator never selects as a base here.
func (a *AMD64Backend) MovStoreBase(base string, disp int32, src string) {
	start := a.g.Buf.Pos()
	b := a.reg(base)
	s := a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, b.needsRex))
	a.g.Buf.AppendByte(0x89)
	a.g.Buf.AppendByte(modRM(2, s.encoding, b.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("mov [%s%+d], %s", base, disp, src))
}

// MovDeref loads from [rbp+disp] into dst: REX.W + 8B /r with a disp32
// ModRM.
func (a *AMD64Backend) MovDeref(dst string, disp int32) {
	start := a.g.Buf.Pos()
	d := a.reg(dst)
	bp := a.reg("rbp")
	a.g.Buf.AppendByte(rexPrefix(true, d.needsRex, false, bp.needsRex))
	a.g.Buf.AppendByte(0x8B)
	a.g.Buf.AppendByte(modRM(2, d.encoding, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("mov %s, [rbp%+d]", dst, disp))
}

// MovVarToReg loads the frame-resident variable name into dst.
func (a *AMD64Backend) MovVarToReg(dst, name string) {
	a.MovDeref(dst, int32(a.g.frame.Offset(name)))
}

// MovRegToVar stores src into the frame-resident variable name.
func (a *AMD64Backend) MovRegToVar(name, src string) {
	a.MovStore(int32(a.g.frame.Offset(name)), src)
}

// MovVarToXMM loads the frame-resident variable name, a float-kind local,
// into the xmm register dst: F2 0F 10 /r (MOVSD xmm, [rbp+disp]), the
// float-identifier counterpart of MovVarToReg per spec's Identifier
// lowering rule ("float -> load into F0").
func (a *AMD64Backend) MovVarToXMM(dst, name string) {
	start := a.g.Buf.Pos()
	x, ok := amd64XMM[dst]
	if !ok {
		a.g.Diag.NError(fmt.Sprintf("unknown xmm register %q", dst))
	}
	bp := a.reg("rbp")
	disp := int32(a.g.frame.Offset(name))
	a.g.Buf.AppendByte(0xF2)
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(0x10)
	a.g.Buf.AppendByte(modRM(2, x, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("movsd %s, [rbp%+d] ; %s", dst, disp, name))
}

// LeaVarToReg loads the effective address of a frame-resident variable
// into dst: REX.W + 8D /r with a disp32 ModRM, used for struct identifiers.
func (a *AMD64Backend) LeaVarToReg(dst, name string) {
	start := a.g.Buf.Pos()
	d := a.reg(dst)
	bp := a.reg("rbp")
	off := int32(a.g.frame.Offset(name))
	a.g.Buf.AppendByte(rexPrefix(true, d.needsRex, false, bp.needsRex))
	a.g.Buf.AppendByte(0x8D)
	a.g.Buf.AppendByte(modRM(2, d.encoding, bp.encoding))
	a.g.Buf.AppendU32(uint32(off))
	a.g.traceInstr(start, fmt.Sprintf("lea %s, [rbp%+d] ; %s", dst, off, name))
}

// LeaRel emits a RIP-relative LEA into dst with a zero disp32 placeholder
// and returns the placeholder's offset; the caller records the relocation
// (e.g. against a pooled string) for string-literal addressing.
func (a *AMD64Backend) LeaRel(dst string) int {
	start := a.g.Buf.Pos()
	d := a.reg(dst)
	a.g.Buf.AppendByte(rexPrefix(true, d.needsRex, false, false))
	a.g.Buf.AppendByte(0x8D)
	a.g.Buf.AppendByte(modRM(0, d.encoding, 5)) // ModRM.rm=101 -> RIP-relative
	pos := a.g.Buf.AppendU32(0)                  // placeholder disp32, returns its offset
	a.g.traceInstr(start, fmt.Sprintf("lea %s, [rip+?]", dst))
	return pos
}

// AddImm adds an immediate to dst: REX.W + 81 /0 id.
func (a *AMD64Backend) AddImm(dst string, imm int32) {
	start := a.g.Buf.Pos()
	d := a.reg(dst)
	a.g.Buf.AppendByte(rexPrefix(true, false, false, d.needsRex))
	a.g.Buf.AppendByte(0x81)
	a.g.Buf.AppendByte(modRM(3, 0, d.encoding))
	a.g.Buf.AppendU32(uint32(imm))
	a.g.traceInstr(start, fmt.Sprintf("add %s, 0x%x", dst, imm))
}

// Add adds src into dst: REX.W + 01 /r.
func (a *AMD64Backend) Add(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, d.needsRex))
	a.g.Buf.AppendByte(0x01)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	a.g.traceInstr(start, fmt.Sprintf("add %s, %s", dst, src))
}

// Sub subtracts src from dst: REX.W + 29 /r.
func (a *AMD64Backend) Sub(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, d.needsRex))
	a.g.Buf.AppendByte(0x29)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	a.g.traceInstr(start, fmt.Sprintf("sub %s, %s", dst, src))
}

// SubImm subtracts an immediate from dst: REX.W + 81 /5 id.
func (a *AMD64Backend) SubImm(dst string, imm int32) {
	start := a.g.Buf.Pos()
	d := a.reg(dst)
	a.g.Buf.AppendByte(rexPrefix(true, false, false, d.needsRex))
	a.g.Buf.AppendByte(0x81)
	a.g.Buf.AppendByte(modRM(3, 5, d.encoding))
	a.g.Buf.AppendU32(uint32(imm))
	a.g.traceInstr(start, fmt.Sprintf("sub %s, 0x%x", dst, imm))
}

// Mul multiplies dst by src (IMUL r64, r/m64): REX.W + 0F AF /r.
func (a *AMD64Backend) Mul(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, d.needsRex, false, s.needsRex))
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(0xAF)
	a.g.Buf.AppendByte(modRM(3, d.encoding, s.encoding))
	a.g.traceInstr(start, fmt.Sprintf("imul %s, %s", dst, src))
}

// Div divides rax:rdx by src, leaving the quotient in rax and remainder in
// rdx (CQO; IDIV r/m64): REX.W + 99 ; REX.W + F7 /7.
func (a *AMD64Backend) Div(src string) {
	cqoStart := a.g.Buf.Pos()
	s := a.reg(src)
	a.g.Buf.AppendByte(0x48) // REX.W
	a.g.Buf.AppendByte(0x99) // CQO: sign-extend rax into rdx:rax
	a.g.traceInstr(cqoStart, "cqo")
	idivStart := a.g.Buf.Pos()
	a.g.Buf.AppendByte(rexPrefix(true, false, false, s.needsRex))
	a.g.Buf.AppendByte(0xF7)
	a.g.Buf.AppendByte(modRM(3, 7, s.encoding))
	a.g.traceInstr(idivStart, fmt.Sprintf("idiv %s", src))
}

// BitandReg ANDs src into dst: REX.W + 21 /r.
func (a *AMD64Backend) BitandReg(dst, src string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(dst), a.reg(src)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, d.needsRex))
	a.g.Buf.AppendByte(0x21)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	a.g.traceInstr(start, fmt.Sprintf("and %s, %s", dst, src))
}

// CmpReg compares two registers: REX.W + 39 /r.
func (a *AMD64Backend) CmpReg(r1, r2 string) {
	start := a.g.Buf.Pos()
	d, s := a.reg(r1), a.reg(r2)
	a.g.Buf.AppendByte(rexPrefix(true, s.needsRex, false, d.needsRex))
	a.g.Buf.AppendByte(0x39)
	a.g.Buf.AppendByte(modRM(3, s.encoding, d.encoding))
	a.g.traceInstr(start, fmt.Sprintf("cmp %s, %s", r1, r2))
}

// CmpVar compares a frame variable against an immediate: REX.W + 81 /7 id
// against [rbp+disp].
func (a *AMD64Backend) CmpVar(name string, imm int32) {
	start := a.g.Buf.Pos()
	bp := a.reg("rbp")
	disp := int32(a.g.frame.Offset(name))
	a.g.Buf.AppendByte(rexPrefix(true, false, false, bp.needsRex))
	a.g.Buf.AppendByte(0x81)
	a.g.Buf.AppendByte(modRM(2, 7, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.Buf.AppendU32(uint32(imm))
	a.g.traceInstr(start, fmt.Sprintf("cmp [rbp%+d], 0x%x ; %s", disp, imm, name))
}

// Push pushes src: 50+r.
func (a *AMD64Backend) Push(src string) {
	start := a.g.Buf.Pos()
	r := a.reg(src)
	if r.needsRex {
		a.g.Buf.AppendByte(0x41)
	}
	a.g.Buf.AppendByte(0x50 + r.encoding)
	a.g.traceInstr(start, fmt.Sprintf("push %s", src))
}

// Pop pops into dst: 58+r.
func (a *AMD64Backend) Pop(dst string) {
	start := a.g.Buf.Pos()
	r := a.reg(dst)
	if r.needsRex {
		a.g.Buf.AppendByte(0x41)
	}
	a.g.Buf.AppendByte(0x58 + r.encoding)
	a.g.traceInstr(start, fmt.Sprintf("pop %s", dst))
}

// PopSSE pops the top of the float stack into an xmm register, used by the
// amd64 float-literal path's stack round-trip ("amd64 via
// stack round-trip through R0"): MOVQ xmm, [rsp] ; ADD rsp, 8.
func (a *AMD64Backend) PopSSE(dst string) {
	start := a.g.Buf.Pos()
	x, ok := amd64XMM[dst]
	if !ok {
		a.g.Diag.NError(fmt.Sprintf("unknown xmm register %q", dst))
	}
	a.g.Buf.AppendByte(0xF3)
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(0x7E)
	a.g.Buf.AppendByte(modRM(1, x, 4)) // [rsp+disp8], SIB follows
	a.g.Buf.AppendByte(0x24)           // SIB: scale=0,index=none,base=rsp
	a.g.Buf.AppendByte(0x00)
	a.g.traceInstr(start, fmt.Sprintf("movq %s, [rsp]", dst))
	a.SubImmRSP(8) // pops: rsp += 8
}

// SubImmRSP adjusts rsp by imm (negative imm grows the stack).
func (a *AMD64Backend) SubImmRSP(imm int32) {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0x48)
	a.g.Buf.AppendByte(0x81)
	if imm < 0 {
		a.g.Buf.AppendByte(modRM(3, 5, 4))
		a.g.Buf.AppendU32(uint32(-imm))
		a.g.traceInstr(start, fmt.Sprintf("sub rsp, 0x%x", -imm))
	} else {
		a.g.Buf.AppendByte(modRM(3, 0, 4))
		a.g.Buf.AppendU32(uint32(imm))
		a.g.traceInstr(start, fmt.Sprintf("add rsp, 0x%x", imm))
	}
}

// IncVar increments a frame variable in place: REX.W + FF /0 against
// [rbp+disp].
func (a *AMD64Backend) IncVar(name string) {
	start := a.g.Buf.Pos()
	bp := a.reg("rbp")
	disp := int32(a.g.frame.Offset(name))
	a.g.Buf.AppendByte(rexPrefix(true, false, false, bp.needsRex))
	a.g.Buf.AppendByte(0xFF)
	a.g.Buf.AppendByte(modRM(2, 0, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("inc [rbp%+d] ; %s", disp, name))
}

// DecVar decrements a frame variable in place: REX.W + FF /1.
func (a *AMD64Backend) DecVar(name string) {
	start := a.g.Buf.Pos()
	bp := a.reg("rbp")
	disp := int32(a.g.frame.Offset(name))
	a.g.Buf.AppendByte(rexPrefix(true, false, false, bp.needsRex))
	a.g.Buf.AppendByte(0xFF)
	a.g.Buf.AppendByte(modRM(2, 1, bp.encoding))
	a.g.Buf.AppendU32(uint32(disp))
	a.g.traceInstr(start, fmt.Sprintf("dec [rbp%+d] ; %s", disp, name))
}

// JumpCond enumerates the condition codes If/Match lowering needs.
type JumpCond int

const (
	CondEQ JumpCond = iota
	CondNE
	CondLT
	CondLE
	CondGT
	CondGE
)

func (c JumpCond) amd64Tcc() byte {
	switch c {
	case CondEQ:
		return 0x84 // JE
	case CondNE:
		return 0x85 // JNE
	case CondLT:
		return 0x8C // JL
	case CondLE:
		return 0x8E // JLE
	case CondGT:
		return 0x8F // JG
	case CondGE:
		return 0x8D // JGE
	}
	return 0x90 // JNS, unreachable for valid input
}

func (c JumpCond) mnemonic() string {
	switch c {
	case CondEQ:
		return "je"
	case CondNE:
		return "jne"
	case CondLT:
		return "jl"
	case CondLE:
		return "jle"
	case CondGT:
		return "jg"
	case CondGE:
		return "jge"
	}
	return "jns"
}

// Jmp emits an unconditional near jump (E9 rel32) with a placeholder
// displacement, recording the patch against label in the active label
// table.
func (a *AMD64Backend) Jmp(label LabelID) {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0xE9)
	pos := a.g.Buf.AppendU32(0)
	a.g.labels.RecordPatch(label, pos, RelocRel32, pos-1)
	a.g.traceInstr(start, fmt.Sprintf("jmp L%d", label))
}

// Cjmp emits a conditional near jump (0F 8x rel32) with a placeholder
// displacement, recording the patch the same way Jmp does.
func (a *AMD64Backend) Cjmp(cond JumpCond, label LabelID) {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(cond.amd64Tcc())
	pos := a.g.Buf.AppendU32(0)
	a.g.labels.RecordPatch(label, pos, RelocRel32, pos-2)
	a.g.traceInstr(start, fmt.Sprintf("%s L%d", cond.mnemonic(), label))
}

// CallFn places no arguments itself (the lowerer has already done so per
// the active ABI) and emits a near call (E8 rel32) with a pending-call
// record against callee, resolved in the post-pass.
func (a *AMD64Backend) CallFn(callee string) {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0xE8)
	pos := a.g.Buf.AppendU32(0)
	a.g.pendingCalls = append(a.g.pendingCalls, PendingCall{Offset: pos, Callee: callee})
	a.g.traceInstr(start, fmt.Sprintf("call %s", callee))
}

// Ret emits a near return (C3), used at a function's single return label.
func (a *AMD64Backend) Ret() {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0xC3)
	a.g.traceInstr(start, "ret")
}

// Syscall emits the SYSCALL instruction (0F 05).
func (a *AMD64Backend) Syscall() {
	start := a.g.Buf.Pos()
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(0x05)
	a.g.traceInstr(start, "syscall")
}

// GenExit lowers the exit() call form to the Linux amd64 exit syscall
// sequence: mov rax, 60 ; mov rdi, code ; syscall
func (a *AMD64Backend) GenExit(code int64) {
	a.Movabs("rax", 60)
	a.Movabs("rdi", uint64(code))
	a.Syscall()
}

// FnDecl emits the System V prologue: push rbp ; mov rbp, rsp ; sub rsp,
// frameSize
func (a *AMD64Backend) FnDecl(frameSize int) {
	a.Push("rbp")
	a.Mov64("rbp", "rsp")
	if frameSize > 0 {
		a.SubImm("rsp", int32(frameSize))
	}
}

// FnEpilogue restores rsp/rbp and returns: mov rsp, rbp ; pop rbp ; ret.
func (a *AMD64Backend) FnEpilogue() {
	a.Mov64("rsp", "rbp")
	a.Pop("rbp")
	a.Ret()
}

// Cvtsd2ss narrows an IEEE-754 double in xmm0 to a float for the f32
// return-lowering rule: F2 0F 5A /r.
func (a *AMD64Backend) Cvtsd2ss(dst, src string) {
	start := a.g.Buf.Pos()
	d, ok1 := amd64XMM[dst]
	s, ok2 := amd64XMM[src]
	if !ok1 || !ok2 {
		a.g.Diag.NError("cvtsd2ss: operand is not an xmm register")
	}
	a.g.Buf.AppendByte(0xF2)
	a.g.Buf.AppendByte(0x0F)
	a.g.Buf.AppendByte(0x5A)
	a.g.Buf.AppendByte(modRM(3, d, s))
	a.g.traceInstr(start, fmt.Sprintf("cvtsd2ss %s, %s", dst, src))
}
