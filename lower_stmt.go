package natgen

import "fmt"

// LowerStmt dispatches on the statement's AST kind over the whole
// statement list: assignment, block, branch, const decl, defer decl,
// expression, function decl, C-style for, range-based for, generic for,
// hash statement, asm, assert, import/module, struct/enum decl, return.
func (g *Generator) LowerStmt(s Stmt) {
	switch st := s.(type) {
	case FuncDecl:
		g.lowerFuncDecl(st)
	case AssignStmt:
		g.lowerAssign(st)
	case BlockStmt:
		for _, inner := range st.Body {
			g.LowerStmt(inner)
		}
	case BranchStmt:
		g.lowerBranch(st)
	case ConstDecl:
		// No-op at emission time: constants are folded by the upstream
		// constant-evaluator collaborator.
	case DeferStmt:
		g.lowerDefer(st)
	case ExprStmt:
		g.LowerExpr(st.X)
	case ForCStmt:
		g.lowerForC(st)
	case ForRangeStmt:
		g.lowerForRange(st)
	case ForGenericStmt:
		g.lowerForGeneric(st)
	case HashStmt:
		g.Buf.AppendBytes(st.Bytes)
	case AsmStmt:
		g.Diag.VError("inline asm statements are not lowerable by this generator", Position{})
	case AssertStmt:
		g.lowerAssert(st)
	case ImportStmt, ModuleStmt:
		// No-op at emission time.
	case StructDecl:
		// No-op: layout already lives in the shared type table.
	case EnumDecl:
		// No-op at emission time: the enum-value table is built eagerly in
		// a pre-pass before any statement is lowered.
	case ReturnStmt:
		g.lowerReturn(st)
	default:
		g.Diag.NError(fmt.Sprintf("lower_stmt: unhandled statement kind %T", s))
	}
}

func (g *Generator) lowerFuncDecl(fd FuncDecl) {
	qualified := QualifiedMethodName(fd.Receiver, fd.Name)
	g.currentFunc = qualified
	g.frame = NewFrame(g.Diag)
	g.labels = NewLabelTable(g.Diag)
	g.assertFail = 0
	g.deferBodies = nil
	g.currentHasReturn = fd.HasReturn
	g.currentReturnType = fd.ReturnType

	// Size the frame by replaying the hidden return slot and the parameters
	// ahead of the body, in the order they are allocated below.
	scan := NewFrame(g.Diag)
	if fd.HasReturn && g.Types.IsStruct(fd.ReturnType) && g.Types.SizeOf(fd.ReturnType) > 16 {
		scan.Allocate(hiddenReturnVarName, 8, frameAlign(g))
	}
	for _, p := range fd.Params {
		scan.Allocate(p.Name, g.Types.SizeOf(p.Type), frameAlign(g))
	}
	scanStmts(g, scan, fd.Body)
	frameSize := scan.FrameSize()

	entry := g.Buf.Pos()
	g.DefineFunction(qualified, entry)

	switch g.isa {
	case ISAAMD64:
		g.amd64.FnDecl(frameSize)
	case ISAARM64:
		g.arm64.FnDecl(frameSize)
	}

	// A struct return wider than two registers is passed back through a
	// hidden pointer argument occupying the first integer argument register,
	// per spec's aggregate-return convention.
	argRegs := g.argRegs()
	argBase := 0
	if fd.HasReturn && g.Types.IsStruct(fd.ReturnType) && g.Types.SizeOf(fd.ReturnType) > 16 {
		g.frame.Allocate(hiddenReturnVarName, 8, frameAlign(g))
		g.movRegToVar(hiddenReturnVarName, argRegs[0])
		argBase = 1
	}

	// Bind parameters into the frame following the ABI's argument registers.
	for i, p := range fd.Params {
		if i+argBase >= len(argRegs) {
			g.Diag.VError("too many parameters for register-only ABI in this generator", Position{})
			break
		}
		size := g.Types.SizeOf(p.Type)
		off := g.frame.Allocate(p.Name, size, frameAlign(g))
		_ = off
		g.movRegToVar(p.Name, argRegs[i+argBase])
	}

	returnLabel := g.labels.NewLabel()
	g.returnLabel = returnLabel

	for _, stmt := range fd.Body {
		g.LowerStmt(stmt)
	}

	g.labels.Bind(returnLabel, g.Buf.Pos())
	g.emitDefers()

	switch g.isa {
	case ISAAMD64:
		g.amd64.FnEpilogue()
	case ISAARM64:
		g.arm64.FnEpilogue(frameSize)
	}

	g.labels.PatchAll(g.Buf)
	g.labels = nil
	g.frame = nil
	g.currentFunc = ""
}

// emitDefers walks registered defer guards in reverse declaration order,
// each guarded by its flag variable.
func (g *Generator) emitDefers() {
	for _, guard := range g.frame.DeferGuards() {
		skip := g.labels.NewLabel()
		g.movVarToReg(g.scratch(), guard)
		g.cmpVarZero(guard)
		g.cjmp(CondEQ, skip)
		if body, ok := g.deferBodies[guard]; ok {
			for _, stmt := range body {
				g.LowerStmt(stmt)
			}
		}
		g.labels.Bind(skip, g.Buf.Pos())
	}
}

func (g *Generator) cmpVarZero(name string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.CmpVar(name, 0)
	case ISAARM64:
		g.arm64.CmpVar(name, 0)
	}
}

func (g *Generator) lowerAssign(st AssignStmt) {
	if si, ok := st.Value.(StructInitExpr); ok {
		g.lowerStructInitInto(st.Name, si, st.New)
		return
	}
	g.LowerExpr(st.Value)
	if st.New && !g.frame.Has(st.Name) {
		g.frame.Allocate(st.Name, 8, frameAlign(g))
	}
	g.movRegToVar(st.Name, g.R0())
}

func (g *Generator) lowerStructInitInto(name string, si StructInitExpr, isNew bool) {
	if isNew && !g.frame.Has(name) {
		g.frame.Allocate(name, g.Types.SizeOf(si.Type), g.Types.AlignOf(si.Type))
	}
	for _, fv := range si.Fields {
		g.LowerExpr(fv.Value)
		offset := g.Types.FieldOffset(si.Type, fv.Name)
		g.storeFieldInVar(name, offset, g.R0())
	}
	g.leaVarToReg(g.R0(), name)
}

func (g *Generator) storeFieldInVar(varName string, fieldOffset int, src string) {
	base := g.frame.Offset(varName)
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovStore(int32(base+fieldOffset), src)
	case ISAARM64:
		g.arm64.MovStore("fp", int32(base+fieldOffset), src)
	}
}

func (g *Generator) lowerBranch(st BranchStmt) {
	target := g.labels.Resolve(st.Name)
	switch st.Kind {
	case "break":
		g.jmp(target.End)
	case "continue":
		g.jmp(target.Start)
	default:
		g.Diag.NError("unknown branch kind " + st.Kind)
	}
}

func (g *Generator) lowerDefer(st DeferStmt) {
	guard, _ := g.frame.NewDeferGuard()
	g.movImmToReg(g.scratch(), 1)
	g.movRegToVar(guard, g.scratch())
	if g.deferBodies == nil {
		g.deferBodies = make(map[string][]Stmt)
	}
	g.deferBodies[guard] = st.Body
}

func (g *Generator) lowerForC(st ForCStmt) {
	if st.Init != nil {
		g.LowerStmt(st.Init)
	}
	start := g.labels.NewLabel()
	end := g.labels.NewLabel()
	g.labels.PushLoop(st.Name, start, end)
	g.labels.Bind(start, g.Buf.Pos())
	if st.Cond != nil {
		g.lowerCondJumpIfFalse(st.Cond, end)
	}
	for _, stmt := range st.Body {
		g.LowerStmt(stmt)
	}
	if st.Post != nil {
		g.LowerStmt(st.Post)
	}
	g.jmp(start)
	g.labels.Bind(end, g.Buf.Pos())
	g.labels.PopLoop()
}

func (g *Generator) lowerForRange(st ForRangeStmt) {
	if !g.frame.Has(st.Var) {
		g.frame.Allocate(st.Var, 8, frameAlign(g))
	}
	g.LowerExpr(st.Lo)
	g.movRegToVar(st.Var, g.R0())

	start := g.labels.NewLabel()
	end := g.labels.NewLabel()
	g.labels.PushLoop(st.Name, start, end)
	g.labels.Bind(start, g.Buf.Pos())

	g.LowerExpr(st.Hi)
	g.movRegToReg(g.scratch(), g.R0())
	g.movVarToReg(g.R0(), st.Var)
	g.cmpReg(g.R0(), g.scratch())
	g.cjmp(CondGE, end)

	for _, stmt := range st.Body {
		g.LowerStmt(stmt)
	}
	g.incVar(st.Var)
	g.jmp(start)
	g.labels.Bind(end, g.Buf.Pos())
	g.labels.PopLoop()
}

func (g *Generator) lowerForGeneric(st ForGenericStmt) {
	g.Diag.VError("iteration kinds other than numeric range are not lowerable by this generator", Position{})
}

func (g *Generator) lowerAssert(st AssertStmt) {
	g.lowerCondJumpIfFalse(st.Cond, g.assertFailLabel())
}

// assertFailLabel lazily creates (once per function) a shared
// assertion-failure tail that exits the process.
func (g *Generator) assertFailLabel() LabelID {
	if g.assertFail == 0 {
		pass := g.labels.NewLabel()
		g.jmp(pass)
		fail := g.labels.NewLabel()
		g.labels.Bind(fail, g.Buf.Pos())
		g.genExit(1)
		g.labels.Bind(pass, g.Buf.Pos())
		g.assertFail = fail
	}
	return g.assertFail
}

// lowerCondJumpIfFalse evaluates cond and jumps to target when it is
// false, used by If/for-condition/assert lowering.
func (g *Generator) lowerCondJumpIfFalse(cond Expr, target LabelID) {
	infix, ok := cond.(InfixExpr)
	if !ok {
		g.LowerExpr(cond)
		g.movImmToReg(g.scratch(), 0)
		g.cmpReg(g.R0(), g.scratch())
		g.cjmp(CondEQ, target)
		return
	}
	g.LowerExpr(infix.Left)
	g.movRegToReg(g.scratch(), g.R0())
	g.LowerExpr(infix.Right)
	g.cmpReg(g.scratch(), g.R0())
	g.cjmp(negateCond(infixCond(infix.Op)), target)
}

func infixCond(op string) JumpCond {
	switch op {
	case "==":
		return CondEQ
	case "!=":
		return CondNE
	case "<":
		return CondLT
	case "<=":
		return CondLE
	case ">":
		return CondGT
	case ">=":
		return CondGE
	}
	return CondEQ
}

func negateCond(c JumpCond) JumpCond {
	switch c {
	case CondEQ:
		return CondNE
	case CondNE:
		return CondEQ
	case CondLT:
		return CondGE
	case CondGE:
		return CondLT
	case CondGT:
		return CondLE
	case CondLE:
		return CondGT
	}
	return c
}

// lowerReturn lowers a return statement per spec's Return-lowering rules: an
// f32-declared return narrows a float-literal expression with cvtsd2ss, and a
// struct-typed return is placed by the size-tiered aggregate convention
// instead of the ordinary single-register result path.
func (g *Generator) lowerReturn(st ReturnStmt) {
	if st.Value == nil {
		g.jmp(g.returnLabel)
		return
	}

	if g.currentHasReturn && g.Types.IsStruct(g.currentReturnType) {
		g.lowerStructReturn(st.Value)
		g.jmp(g.returnLabel)
		return
	}

	g.LowerExpr(st.Value)

	if _, isFloatLit := st.Value.(FloatLit); isFloatLit && g.currentHasReturn && g.Types.Def(g.currentReturnType).Kind == KindF32 {
		g.narrowF32ToF0()
	}

	g.jmp(g.returnLabel)
}

// narrowF32ToF0 truncates the double-precision value already sitting in F0
// down to single precision, for a function whose declared return type is f32.
func (g *Generator) narrowF32ToF0() {
	if g.isa != ISAAMD64 {
		g.Diag.NError("f32 return narrowing is not implemented on this architecture")
		return
	}
	g.amd64.Cvtsd2ss(g.F0(), g.F0())
}

// lowerStructReturn places a struct-valued return per its size tier: up to
// 8 bytes dereferenced straight into R0 (masked to the exact size), up to 16
// bytes split across R0/R1, and anything larger copied in 8-byte chunks
// through the hidden _return_val_addr pointer argument.
func (g *Generator) lowerStructReturn(value Expr) {
	id, ok := value.(Ident)
	if !ok {
		g.Diag.VError("struct return value must be a variable", Position{})
		return
	}

	size := g.Types.SizeOf(id.Type)
	base := int32(g.frame.Offset(id.Name))

	switch {
	case size <= 8:
		g.movDerefOffset(g.R0(), base)
		g.maskToSize(g.R0(), size, "")
	case size <= 16:
		g.movDerefOffset(g.R0(), base)
		g.movDerefOffset(g.R1(), base+8)
		if rem := size - 8; rem < 8 {
			// R0 already holds the first chunk's final value and must survive
			// the masking of R1.
			g.maskToSize(g.R1(), rem, g.R0())
		}
	default:
		g.lowerHiddenStructReturn(base, size)
	}
}

// maskToSize clears every byte above the low size bytes of dst, for a
// struct return narrower than a full register. avoid, if non-empty, names a
// register currently holding a live value that the chosen scratch register
// must not alias (R0/R1 and the generic scratch alias on arm64).
func (g *Generator) maskToSize(dst string, size int, avoid string) {
	if size >= 8 {
		return
	}
	tmp := dst
	for _, cand := range []string{g.scratch(), g.hiddenReturnPtrReg(), g.R0(), g.R1()} {
		if cand != dst && cand != avoid {
			tmp = cand
			break
		}
	}
	mask := uint64(1)<<(uint(size)*8) - 1
	g.movImmToReg(tmp, mask)
	g.bitandReg(dst, tmp)
}

// lowerHiddenStructReturn copies a struct larger than 16 bytes, starting at
// frame offset srcBase, into the caller-supplied buffer addressed by
// _return_val_addr: whole 8-byte chunks first, then a masked tail of
// size mod 8 bytes.
func (g *Generator) lowerHiddenStructReturn(srcBase int32, size int) {
	ptr := g.hiddenReturnPtrReg()
	g.movVarToReg(ptr, hiddenReturnVarName)

	chunks := size / 8
	tail := size % 8
	for i := 0; i < chunks; i++ {
		off := int32(i * 8)
		g.movDerefOffset(g.scratch(), srcBase+off)
		g.movStoreThroughReg(ptr, off, g.scratch())
	}
	if tail > 0 {
		off := int32(chunks * 8)
		g.movDerefOffset(g.scratch(), srcBase+off)
		g.maskToSize(g.scratch(), tail, ptr)
		g.movStoreThroughReg(ptr, off, g.scratch())
	}
}
