package natgen

// scanFrameSize computes a function body's total frame size ahead of
// emission by replaying every allocation point against a scratch Frame,
// without emitting any instructions. Because Frame.Allocate is purely
// additive (no slot reuse across scopes, so variable
// addresses stay stable within a function body), replaying the same
// traversal order that LowerStmt uses yields exactly the frame size the
// real emission pass will need, letting the prologue reserve the right
// amount of stack space up front instead of back-patching a "sub rsp"
// immediate after the fact.
func scanFrameSize(g *Generator, body []Stmt) int {
	scratch := NewFrame(g.Diag)
	scanStmts(g, scratch, body)
	return scratch.FrameSize()
}

func scanStmts(g *Generator, f *Frame, stmts []Stmt) {
	for _, s := range stmts {
		scanStmt(g, f, s)
	}
}

func scanStmt(g *Generator, f *Frame, s Stmt) {
	switch st := s.(type) {
	case AssignStmt:
		if st.New && !f.Has(st.Name) {
			allocateForValue(g, f, st.Name, st.Value)
		}
	case BlockStmt:
		scanStmts(g, f, st.Body)
	case DeferStmt:
		f.NewDeferGuard()
		scanStmts(g, f, st.Body)
	case ForCStmt:
		if st.Init != nil {
			scanStmt(g, f, st.Init)
		}
		scanStmts(g, f, st.Body)
	case ForRangeStmt:
		if !f.Has(st.Var) {
			f.Allocate(st.Var, 8, frameAlign(g))
		}
		scanStmts(g, f, st.Body)
	case ForGenericStmt:
		if !f.Has(st.Var) {
			f.Allocate(st.Var, 8, frameAlign(g))
		}
		scanStmts(g, f, st.Body)
	case ExprStmt:
		scanExprStmt(g, f, st.X)
	}
}

// allocateForValue allocates a frame slot sized for value's static type,
// or a struct's full layout size for a struct-init expression.
func allocateForValue(g *Generator, f *Frame, name string, value Expr) {
	if si, ok := value.(StructInitExpr); ok {
		f.Allocate(name, g.Types.SizeOf(si.Type), g.Types.AlignOf(si.Type))
		return
	}
	f.Allocate(name, 8, frameAlign(g))
}

// scanExprStmt walks expression forms that themselves carry nested
// statement lists (if/match used as a statement).
func scanExprStmt(g *Generator, f *Frame, e Expr) {
	switch x := e.(type) {
	case IfExpr:
		scanStmts(g, f, x.Then)
		scanStmts(g, f, x.Else)
	case MatchExpr:
		for _, arm := range x.Arms {
			scanStmts(g, f, arm.Body)
		}
	case ParenExpr:
		scanExprStmt(g, f, x.Inner)
	case UnsafeExpr:
		scanExprStmt(g, f, x.Inner)
	}
}

// frameAlign returns the stack alignment granularity for the active ISA:
// byte-granular on amd64, 8-byte on arm64.
func frameAlign(g *Generator) int {
	if g.isa == ISAARM64 {
		return 8
	}
	return 1
}
