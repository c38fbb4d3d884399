package natgen

// isa_dispatch.go is the architecture-agnostic wrap around both backends:
// each method here switches on the Generator's ISAKind tag and
// delegates to the matching per-ISA backend method, so lower_expr.go/
// lower_stmt.go never need to know which ISA is active.

func (g *Generator) movImmToReg(dst string, imm uint64) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Movabs(dst, imm)
	case ISAARM64:
		g.arm64.Movabs(dst, imm)
	}
}

func (g *Generator) movRegToReg(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Mov64(dst, src)
	case ISAARM64:
		g.arm64.Mov64(dst, src)
	}
}

func (g *Generator) movVarToReg(dst, name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovVarToReg(dst, name)
	case ISAARM64:
		g.arm64.MovVarToReg(dst, name)
	}
}

func (g *Generator) movRegToVar(name, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovRegToVar(name, src)
	case ISAARM64:
		g.arm64.MovRegToVar(name, src)
	}
}

func (g *Generator) leaVarToReg(dst, name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.LeaVarToReg(dst, name)
	case ISAARM64:
		g.arm64.LeaVarToReg(dst, name)
	}
}

// movVarToFloatReg loads a float-kind frame-resident variable into the
// primary float register, the Identifier-lowering counterpart of
// movVarToReg for "float -> load into F0". Fatal on arm64, whose
// floating-point path is unimplemented stubs per spec.
func (g *Generator) movVarToFloatReg(dst, name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovVarToXMM(dst, name)
	case ISAARM64:
		g.arm64.MovVarToFloatReg(dst, name)
	}
}

// movDerefOffset loads the 8 bytes at [framebase+offset] into dst, the
// shared primitive behind frame-relative reads (struct field access,
// multi-register struct-return chunks).
func (g *Generator) movDerefOffset(dst string, offset int32) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovDeref(dst, offset)
	case ISAARM64:
		g.arm64.MovDeref(dst, "fp", offset)
	}
}

// movStoreThroughReg stores src into [base+offset] where base is an
// arbitrary register holding a pointer (not necessarily the frame base),
// used for the hidden struct-return pointer convention.
func (g *Generator) movStoreThroughReg(base string, offset int32, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovStoreBase(base, offset, src)
	case ISAARM64:
		g.arm64.MovStore(base, offset, src)
	}
}

// hiddenReturnPtrReg names the scratch register used to hold the
// _return_val_addr pointer value while copying an oversized struct return,
// distinct from R0/R1/scratch so it never collides with a chunk in flight.
func (g *Generator) hiddenReturnPtrReg() string {
	if g.isa == ISAARM64 {
		return "x9"
	}
	return "r10"
}

func (g *Generator) add(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Add(dst, src)
	case ISAARM64:
		g.arm64.Add(dst, src)
	}
}

func (g *Generator) addImm(dst string, imm int64) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.AddImm(dst, int32(imm))
	case ISAARM64:
		g.arm64.AddImm(dst, uint32(imm))
	}
}

func (g *Generator) sub(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Sub(dst, src)
	case ISAARM64:
		g.arm64.Sub(dst, src)
	}
}

func (g *Generator) mul(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Mul(dst, src)
	case ISAARM64:
		g.arm64.Mul(dst, src)
	}
}

func (g *Generator) div(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		// x86 division operates rax:rdx / src -> quotient in rax.
		if dst != "rax" {
			g.movRegToReg("rax", dst)
		}
		g.amd64.Div(src)
		if dst != "rax" {
			g.movRegToReg(dst, "rax")
		}
	case ISAARM64:
		g.arm64.Div(dst, src)
	}
}

func (g *Generator) bitandReg(dst, src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.BitandReg(dst, src)
	case ISAARM64:
		g.arm64.BitandReg(dst, src)
	}
}

func (g *Generator) cmpReg(r1, r2 string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.CmpReg(r1, r2)
	case ISAARM64:
		g.arm64.CmpReg(r1, r2)
	}
}

func (g *Generator) jmp(label LabelID) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Jmp(label)
	case ISAARM64:
		g.arm64.Jmp(label)
	}
}

func (g *Generator) cjmp(cond JumpCond, label LabelID) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Cjmp(cond, label)
	case ISAARM64:
		g.arm64.Cjmp(cond, label)
	}
}

func (g *Generator) incVar(name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.IncVar(name)
	case ISAARM64:
		g.arm64.IncVar(name)
	}
}

func (g *Generator) decVar(name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.DecVar(name)
	case ISAARM64:
		g.arm64.DecVar(name)
	}
}

func (g *Generator) pushReg(src string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Push(src)
	case ISAARM64:
		g.arm64.Push(src)
	}
}

func (g *Generator) popReg(dst string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Pop(dst)
	case ISAARM64:
		g.arm64.Pop(dst)
	}
}

func (g *Generator) ret() {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Ret()
	case ISAARM64:
		g.arm64.Ret()
	}
}

func (g *Generator) genExit(code int64) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.GenExit(code)
	case ISAARM64:
		g.arm64.GenExit(code)
	}
}

// argRegs returns the integer argument registers for the active ISA's
// calling convention.
func (g *Generator) argRegs() []string {
	if g.isa == ISAARM64 {
		return AAPCS64.IntArgRegs
	}
	return SystemVAMD64.IntArgRegs
}
