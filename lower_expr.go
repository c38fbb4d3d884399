package natgen

import "fmt"

// LowerExpr lowers an expression, leaving its integer/pointer result in
// g.R0() (or, for a float literal on amd64, in g.F0()), by
// convention that every expression leaves its result in a fixed register.
func (g *Generator) LowerExpr(e Expr) {
	switch x := e.(type) {
	case IntLit:
		g.movImmToReg(g.R0(), uint64(x.Value))
	case FloatLit:
		g.lowerFloatLit(x)
	case BoolLit:
		if x.Value {
			g.movImmToReg(g.R0(), 1)
		} else {
			g.movImmToReg(g.R0(), 0)
		}
	case StringLit:
		g.lowerStringLit(x, g.R0())
	case Ident:
		g.lowerIdent(x)
	case Selector:
		g.lowerSelector(x)
	case InfixExpr:
		g.lowerInfix(x)
	case PrefixExpr:
		g.lowerPrefix(x)
	case PostfixExpr:
		g.lowerPostfix(x)
	case CallExpr:
		g.lowerCall(x)
	case IfExpr:
		g.lowerIfExpr(x)
	case MatchExpr:
		g.lowerMatchExpr(x)
	case CastExpr:
		// Every value lives in a full-width register in this generator;
		// narrowing/widening casts are a no-op at the register level.
		g.LowerExpr(x.Operand)
	case ParenExpr:
		g.LowerExpr(x.Inner)
	case UnsafeExpr:
		g.LowerExpr(x.Inner)
	case LikelyExpr:
		// No branch-hint instruction is emitted; the hint does not change
		// the lowered code, only a real optimizer's layout choices.
		g.LowerExpr(x.Inner)
	case LockExpr:
		// Single-threaded generator: no lock/unlock sequence is emitted.
		g.LowerExpr(x.Inner)
	case StructInitExpr:
		g.Diag.VError("a struct literal must be directly assigned to a variable", Position{})
	default:
		g.Diag.NError(fmt.Sprintf("lower_expr: unhandled expression kind %T", e))
	}
}

// lowerIdent dispatches a variable read by its static kind, per spec's
// Identifier-lowering rule: integer/pointer/bool load from the frame into
// R0, float loads into F0, and struct loads its effective address into R0
// rather than dereferencing it. An identifier whose type index has no entry
// in the type table is read as an integer load.
func (g *Generator) lowerIdent(id Ident) {
	if int(id.Type) < 0 || int(id.Type) >= len(g.Types.defs) {
		g.movVarToReg(g.R0(), id.Name)
		return
	}
	switch {
	case g.Types.IsFloat(id.Type):
		g.movVarToFloatReg(g.F0(), id.Name)
	case g.Types.IsStruct(id.Type):
		g.leaVarToReg(g.R0(), id.Name)
	default:
		g.movVarToReg(g.R0(), id.Name)
	}
}

func (g *Generator) lowerFloatLit(lit FloatLit) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Movabs(g.scratch(), lit.Bits)
		g.amd64.Push(g.scratch())
		g.amd64.PopSSE(g.F0())
	case ISAARM64:
		g.Diag.NError("floating-point literals are not lowerable on arm64 by this generator")
	}
}

// lowerStringLit decodes (unless Raw) lit's escapes, pools the bytes and
// materialises their address into dst.
func (g *Generator) lowerStringLit(lit StringLit, dst string) int {
	var bytes []byte
	if lit.Raw {
		bytes = []byte(lit.Value)
	} else {
		bytes = DecodeEscapes(g.Diag, lit.Value)
	}
	switch g.isa {
	case ISAAMD64:
		pos := g.amd64.LeaRel(dst)
		g.Strings.AllocateString(bytes, pos, RelocRel32)
	case ISAARM64:
		pos := g.arm64.LeaRel(dst)
		g.Strings.AllocateString(bytes, pos, RelocARM64MovzAbs64)
	}
	return len(bytes)
}

// lowerSelector supports two shapes: an enum field reference (EnumName.Field,
// resolved against the eagerly-built enum table and materialised as an
// immediate) and field access on a frame-resident struct
// variable, computing the field's combined frame offset directly rather than
// materialising an intermediate pointer.
func (g *Generator) lowerSelector(sel Selector) {
	id, ok := sel.Base.(Ident)
	if !ok {
		g.Diag.VError("field access is only lowerable on a local struct variable", Position{})
		return
	}
	if !g.frame.Has(id.Name) {
		if v, ok := g.Enums.Value(id.Name, sel.Field); ok {
			g.movImmToReg(g.R0(), uint64(v))
			return
		}
		g.Diag.VError(fmt.Sprintf("%q is neither a local variable nor a known enum", id.Name), Position{})
		return
	}
	offset := g.frame.Offset(id.Name) + g.Types.FieldOffset(id.Type, sel.Field)
	switch g.isa {
	case ISAAMD64:
		g.amd64.MovDeref(g.R0(), int32(offset))
	case ISAARM64:
		g.arm64.MovDeref(g.R0(), "fp", int32(offset))
	}
}

// lowerInfix evaluates right into a scratch register, left into R0 (so
// division's dividend already sits in the ABI's required register on
// amd64), then applies op.
func (g *Generator) lowerInfix(x InfixExpr) {
	switch x.Op {
	case "==", "!=", "<", "<=", ">", ">=":
		g.lowerComparison(x)
		return
	}
	g.LowerExpr(x.Right)
	g.movRegToReg(g.scratch(), g.R0())
	g.LowerExpr(x.Left)
	switch x.Op {
	case "+":
		g.add(g.R0(), g.scratch())
	case "-":
		g.sub(g.R0(), g.scratch())
	case "*":
		g.mul(g.R0(), g.scratch())
	case "/":
		g.div(g.R0(), g.scratch())
	case "&":
		g.bitandReg(g.R0(), g.scratch())
	default:
		g.Diag.VError(fmt.Sprintf("operator %q is not lowerable by this generator", x.Op), Position{})
	}
}

// lowerComparison produces a 0/1 boolean result in R0, since neither
// backend's encoder set includes a SETcc-style instruction.
func (g *Generator) lowerComparison(x InfixExpr) {
	g.LowerExpr(x.Right)
	g.movRegToReg(g.scratch(), g.R0())
	g.LowerExpr(x.Left)
	g.cmpReg(g.R0(), g.scratch())

	trueLabel := g.labels.NewLabel()
	end := g.labels.NewLabel()
	g.cjmp(infixCond(x.Op), trueLabel)
	g.movImmToReg(g.R0(), 0)
	g.jmp(end)
	g.labels.Bind(trueLabel, g.Buf.Pos())
	g.movImmToReg(g.R0(), 1)
	g.labels.Bind(end, g.Buf.Pos())
}

func (g *Generator) lowerPrefix(x PrefixExpr) {
	switch x.Op {
	case "-":
		g.LowerExpr(x.Operand)
		g.movRegToReg(g.scratch(), g.R0())
		g.movImmToReg(g.R0(), 0)
		g.sub(g.R0(), g.scratch())
	case "!":
		g.LowerExpr(x.Operand)
		g.movRegToReg(g.scratch(), g.R0())
		g.movImmToReg(g.R0(), 1)
		g.sub(g.R0(), g.scratch())
	default:
		g.Diag.VError(fmt.Sprintf("prefix operator %q is not lowerable by this generator", x.Op), Position{})
	}
}

func (g *Generator) lowerPostfix(x PostfixExpr) {
	switch x.Op {
	case "++":
		g.incVar(x.Operand.Name)
	case "--":
		g.decVar(x.Operand.Name)
	default:
		g.Diag.NError("unknown postfix operator " + x.Op)
	}
	g.movVarToReg(g.R0(), x.Operand.Name)
}

func (g *Generator) lowerIfExpr(x IfExpr) {
	elseLabel := g.labels.NewLabel()
	end := g.labels.NewLabel()
	g.lowerCondJumpIfFalse(x.Cond, elseLabel)
	for _, stmt := range x.Then {
		g.LowerStmt(stmt)
	}
	g.jmp(end)
	g.labels.Bind(elseLabel, g.Buf.Pos())
	for _, stmt := range x.Else {
		g.LowerStmt(stmt)
	}
	g.labels.Bind(end, g.Buf.Pos())
}

// lowerMatchExpr holds the subject in a scratch register across every arm
// comparison (first-match-wins, default arm falls through last).
func (g *Generator) lowerMatchExpr(x MatchExpr) {
	g.LowerExpr(x.Subject)
	g.movRegToReg(g.scratch(), g.R0())

	end := g.labels.NewLabel()
	armLabels := make([]LabelID, len(x.Arms))
	defaultIdx := -1
	for i, arm := range x.Arms {
		if arm.Values == nil {
			defaultIdx = i
			continue
		}
		armLabels[i] = g.labels.NewLabel()
		for _, v := range arm.Values {
			g.LowerExpr(v)
			g.cmpReg(g.scratch(), g.R0())
			g.cjmp(CondEQ, armLabels[i])
		}
	}
	if defaultIdx >= 0 {
		for _, stmt := range x.Arms[defaultIdx].Body {
			g.LowerStmt(stmt)
		}
	}
	g.jmp(end)
	for i, arm := range x.Arms {
		if arm.Values == nil {
			continue
		}
		g.labels.Bind(armLabels[i], g.Buf.Pos())
		for _, stmt := range arm.Body {
			g.LowerStmt(stmt)
		}
		g.jmp(end)
	}
	g.labels.Bind(end, g.Buf.Pos())
}

// lowerCall dispatches CallExpr: the fixed built-in forms this generator
// recognizes (exit, println/print/eprintln/eprint, C.syscall), then falls back
// to a direct user/method call through the active ABI.
func (g *Generator) lowerCall(ce CallExpr) {
	switch ce.Callee {
	case "exit":
		g.lowerExit(ce.Args)
	case "println", "print", "eprintln", "eprint":
		g.lowerPrintCall(ce.Callee, ce.Args)
	case "C.syscall":
		g.lowerRawSyscall(ce.Args)
	default:
		g.lowerUserCall(ce)
	}
}

func (g *Generator) lowerExit(args []Expr) {
	if len(args) != 1 {
		g.Diag.VError("exit expects exactly one argument", Position{})
		return
	}
	if lit, ok := args[0].(IntLit); ok {
		g.genExit(lit.Value)
		return
	}
	g.LowerExpr(args[0])
	switch g.isa {
	case ISAAMD64:
		g.amd64.Mov64("rdi", "rax")
		g.amd64.Movabs("rax", 60)
		g.amd64.Syscall()
	case ISAARM64:
		g.arm64.Mov64("x0", "x0")
		g.arm64.Movabs("x8", 93)
		g.arm64.Syscall()
	}
}

// lowerPrintCall lowers the four print forms to a direct write(2) syscall
// for string-literal arguments, or through the matching stringify built-in
// otherwise.
func (g *Generator) lowerPrintCall(name string, args []Expr) {
	if len(args) != 1 {
		g.Diag.VError(name+" expects exactly one argument", Position{})
		return
	}
	fd := int64(1)
	if name == "eprintln" || name == "eprint" {
		fd = 2
	}
	newline := name == "println" || name == "eprintln"

	addrReg := g.scratch()
	lenReg := g.R1()
	if lenReg == addrReg {
		lenReg = "x2" // arm64's scratch and R1 are both x1
	}

	if lit, ok := args[0].(StringLit); ok {
		var bytes []byte
		if lit.Raw {
			bytes = []byte(lit.Value)
		} else {
			bytes = DecodeEscapes(g.Diag, lit.Value)
		}
		if newline {
			bytes = append(bytes, '\n')
		}
		switch g.isa {
		case ISAAMD64:
			pos := g.amd64.LeaRel(addrReg)
			g.Strings.AllocateString(bytes, pos, RelocRel32)
		case ISAARM64:
			pos := g.arm64.LeaRel(addrReg)
			g.Strings.AllocateString(bytes, pos, RelocARM64MovzAbs64)
		}
		g.movImmToReg(lenReg, uint64(len(bytes)))
		g.emitWriteSyscall(fd, addrReg, lenReg)
		return
	}

	// Non-string argument: lower it, call the matching built-in, then write
	// the buffer whose address is read from R0 and length from R1 after the
	// call. The current built-in bodies set neither register.
	builtin := g.stringifyBuiltin(args[0])
	g.LowerExpr(args[0])
	g.movRegToReg(g.argRegs()[0], g.R0())
	g.builtins.Reference(builtin)
	g.EmitCall(builtin)
	g.emitWriteSyscall(fd, g.R0(), g.R1())
}

func (g *Generator) stringifyBuiltin(arg Expr) string {
	switch arg.(type) {
	case BoolLit:
		return "bool_to_string"
	default:
		return "int_to_string"
	}
}

// emitWriteSyscall lowers a sys_write(fd, addr, len) call directly, bypassing
// libc, matching the teacher's direct-to-syscall exit/print style.
func (g *Generator) emitWriteSyscall(fd int64, addrReg, lenReg string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.Mov64("rsi", addrReg)
		g.amd64.Mov64("rdx", lenReg)
		g.amd64.Movabs("rdi", uint64(fd))
		g.amd64.Movabs("rax", 1) // sys_write
		g.amd64.Syscall()
	case ISAARM64:
		g.arm64.Mov64("x2", lenReg) // first: lenReg may be x1
		g.arm64.Mov64("x1", addrReg)
		g.arm64.Movabs("x0", uint64(fd))
		g.arm64.Movabs("x8", 64) // sys_write
		g.arm64.Syscall()
	}
}

// lowerRawSyscall lowers the generic C.syscall(number, a, b, c) escape hatch
// straight to the host syscall convention. Each argument is evaluated into
// R0 and pushed, then all are popped into their registers, so evaluating a
// later argument cannot overwrite an earlier one.
func (g *Generator) lowerRawSyscall(args []Expr) {
	if len(args) == 0 || len(args) > 4 {
		g.Diag.VError("C.syscall takes between 1 and 4 arguments", Position{})
		return
	}
	for _, arg := range args {
		g.LowerExpr(arg)
		g.pushReg(g.R0())
	}
	switch g.isa {
	case ISAAMD64:
		regs := amd64SyscallArgRegs
		for i := len(args) - 1; i >= 0; i-- {
			g.popReg(regs[i])
		}
		g.amd64.Syscall()
	case ISAARM64:
		regs := []string{"x8", "x0", "x1", "x2"}
		for i := len(args) - 1; i >= 0; i-- {
			g.popReg(regs[i])
		}
		g.arm64.Syscall()
	}
}

// lowerUserCall places each argument in the active ABI's integer argument
// registers (no stack-spilled arguments beyond the register file) and emits
// a direct call. A callee absent from the program's own declared-function
// set is treated as an external (libc-style) symbol resolved by the linker
// rather than this generator. Linux targets defer it to the external
// linker; macOS/Windows targets reject it here since no link step exists
// for those containers.
func (g *Generator) lowerUserCall(ce CallExpr) {
	argRegs := g.argRegs()
	if len(ce.Args) > len(argRegs) {
		g.Diag.VError(fmt.Sprintf("call to %q exceeds the register-only argument budget", ce.Callee), Position{})
		return
	}
	if !g.declaredFuncs[ce.Callee] {
		if g.prefs.OS != OSLinux {
			g.Diag.VError(fmt.Sprintf("call to external symbol %q is not lowerable for this container format", ce.Callee), Position{})
			return
		}
		g.MarkExternal(ce.Callee)
	}
	// Push every evaluated argument first, then pop into the argument
	// registers: on arm64 R0 is also the first argument register.
	for _, arg := range ce.Args {
		g.LowerExpr(arg)
		g.pushReg(g.R0())
	}
	for i := len(ce.Args) - 1; i >= 0; i-- {
		g.popReg(argRegs[i])
	}
	g.EmitCall(ce.Callee)
}
