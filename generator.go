package natgen

import (
	"fmt"
	"os"
	"strings"
)

// ISAKind tags which concrete backend a Generator drives. Rather than a
// polymorphic CodeGenerator interface with a cyclic backend->generator
// back-pointer, the Generator owns both backend structs inline and
// switches on this tag at every emission site, passing itself explicitly.
type ISAKind int

const (
	ISAAMD64 ISAKind = iota
	ISAARM64
)

// Generator is the root state object: the output
// byte buffer, symbol tables, patch lists, label tables, per-function stack
// state, and the selected architecture backend, all owned for the duration
// of one build.
type Generator struct {
	prefs Preferences
	isa   ISAKind
	amd64 *AMD64Backend
	arm64 *ARM64Backend

	Buf     *CodeBuffer // code/text buffer
	Types   *TypeTable
	Strings *StringPool
	Enums   *EnumTable
	Diag    *Diagnostics

	labels *LabelTable // installed fresh per function
	frame  *Frame      // installed fresh per function

	funcAddr      map[string]int    // function-address map
	pendingCalls  []PendingCall     // pending-call list
	builtins      *BuiltinDirectory
	externCalls   []string          // names requiring linker resolution
	unresolved    []PendingCall     // pending-call entries left for the linker's relocation section
	declaredFuncs map[string]bool   // every FuncDecl name seen in the program, used for the linker decision

	mainAddr    int
	mainBound   bool
	currentFunc string
	lines       int // top-level statements lowered, reported as the line count of the (line-count, byte-count) metric

	returnLabel LabelID           // current function's single return target
	assertFail  LabelID           // lazily-created shared assertion-failure tail, per function
	deferBodies map[string][]Stmt // guard variable name -> deferred statement body

	currentHasReturn  bool      // whether the function currently being lowered declares a return type
	currentReturnType TypeIndex // its declared return type, valid only when currentHasReturn
}

// hiddenReturnVarName is the frame slot holding the caller-supplied pointer
// for a struct return wider than two registers ("_return_val_addr" in
// spec.md's aggregate-return convention).
const hiddenReturnVarName = "_return_val_addr"

// PendingCall records {offset of displacement field, callee name}, resolved
// in a single post-pass using the function-address map.
type PendingCall struct {
	Offset      int
	Callee      string
	ARM64Branch bool // true for a BL instruction word needing an imm26 merge-patch
}

// NewGenerator constructs a Generator for the given target, ready to accept
// top-level statements via LowerStmt.
func NewGenerator(prefs Preferences) *Generator {
	diag := NewDiagnostics(prefs.OutputMode)
	g := &Generator{
		prefs:         prefs,
		Buf:           &CodeBuffer{},
		Types:         NewTypeTable(diag),
		Strings:       NewStringPool(diag),
		Enums:         NewEnumTable(),
		Diag:          diag,
		funcAddr:      make(map[string]int),
		declaredFuncs: make(map[string]bool),
	}
	g.builtins = NewBuiltinDirectory(g)
	g.isa = resolveISA(prefs.Arch)
	switch g.isa {
	case ISAAMD64:
		g.amd64 = NewAMD64Backend(g)
	case ISAARM64:
		g.arm64 = NewARM64Backend(g)
	}
	return g
}

// resolveISA maps the external Arch preference onto the internal ISAKind,
// defaulting ArchAuto to the host's GOARCH via ResolveArch in platform.go.
func resolveISA(a Arch) ISAKind {
	resolved := ResolveArch(a, hostArch)
	if resolved == ArchARM64 {
		return ISAARM64
	}
	return ISAAMD64
}

func (k ISAKind) archString() string {
	if k == ISAARM64 {
		return "arm64"
	}
	return "amd64"
}

// Metrics is the (line-count, byte-count) pair Generate returns.
type Metrics struct {
	Lines int
	Bytes int
}

// Generate runs the full pipeline: lower every top-level statement,
// finalise built-ins, lay out strings, patch calls and labels, then hand
// off to the selected container writer (and, if external symbols remain,
// the linker).
func Generate(prog *Program, prefs Preferences) (Metrics, error) {
	g := NewGenerator(prefs)

	// Pre-pass: build the enum-value table eagerly, before any
	// expression that might reference an enum field is lowered, and record
	// every declared function name so lowerUserCall can tell a forward
	// reference to a not-yet-lowered function apart from a genuine external
	// symbol.
	for _, stmt := range prog.Statements {
		switch st := stmt.(type) {
		case EnumDecl:
			g.Enums.Build(st)
		case FuncDecl:
			g.declaredFuncs[QualifiedMethodName(st.Receiver, st.Name)] = true
		}
	}

	for _, stmt := range prog.Statements {
		g.LowerStmt(stmt)
		g.lines++
	}

	g.builtins.EmitPending()

	out, err := g.finalize()
	if err != nil {
		return Metrics{}, err
	}
	// linkExternalELF's path already wrote prefs.Path via the system linker
	// and re-read it back into out; writing it again here is a harmless
	// no-op that keeps a single write site for every other container format.
	if err := os.WriteFile(g.prefs.Path, out, 0o775); err != nil {
		return Metrics{}, fmt.Errorf("natgen: writing %s: %w", g.prefs.Path, err)
	}
	if g.prefs.OS.Format() == ContainerPE {
		if err := finalizePEAttributes(g.prefs.Path); err != nil {
			return Metrics{}, err
		}
	}
	return Metrics{Lines: g.lines, Bytes: len(out)}, nil
}

// finalize lays out the string pool, patches pending calls against the
// function-address map, resolves the main entry, and delegates to the
// container writer selected by prefs.OS.
func (g *Generator) finalize() ([]byte, error) {
	mainOff, ok := g.funcAddr["main.main"]
	if !ok {
		g.Diag.NError("no main.main entry point defined")
	}
	g.mainAddr = mainOff
	g.mainBound = true

	switch g.prefs.OS.Format() {
	case ContainerELF:
		return g.writeELF()
	case ContainerMachO:
		return g.writeMachO()
	case ContainerPE:
		return g.writePE()
	default:
		return g.writeRaw()
	}
}

// writeRaw emits the headerless mode: the text section, the laid-out string
// pool, with calls/labels patched and nothing else.
func (g *Generator) writeRaw() ([]byte, error) {
	g.patchPendingCalls()
	g.Strings.Layout(g.Buf)
	g.Strings.Patch(g.Buf, 0)
	return g.Buf.Bytes(), nil
}

// patchPendingCalls resolves the pending-call list against the
// function-address map in a single post-pass. A call to a
// name not present in the map is deferred to the linker when the referent
// is an external symbol (recorded via MarkExternal), otherwise fatal.
func (g *Generator) patchPendingCalls() {
	for _, pc := range g.pendingCalls {
		addr, ok := g.funcAddr[pc.Callee]
		if !ok {
			if g.isExternal(pc.Callee) {
				g.unresolved = append(g.unresolved, pc)
				continue // left for the linker's relocation section
			}
			g.Diag.NError(fmt.Sprintf("call to unresolved function %q", pc.Callee))
		}
		if pc.ARM64Branch {
			disp := int32(addr - pc.Offset)
			imm26 := uint32(disp/4) & 0x03FFFFFF
			word := g.Buf.ReadU32(pc.Offset)
			g.Buf.WriteU32(pc.Offset, (word &^ 0x03FFFFFF) | imm26)
			continue
		}
		disp := int32(addr - (pc.Offset + 4))
		g.Buf.WriteI32(pc.Offset, disp)
	}
}

func (g *Generator) isExternal(name string) bool {
	for _, n := range g.externCalls {
		if n == name {
			return true
		}
	}
	return false
}

// MarkExternal records that name is resolved outside this build: the call
// site is left for the linker rather than raising a generator bug at patch
// time.
func (g *Generator) MarkExternal(name string) {
	if !g.isExternal(name) {
		g.externCalls = append(g.externCalls, name)
	}
}

// DefineFunction records name's entry offset in the function-address map.
// qualifiedName follows the "<receiver-type>.<method>" convention for
// methods; "main.main" is the well-known entry point.
func (g *Generator) DefineFunction(qualifiedName string, offset int) {
	g.funcAddr[qualifiedName] = offset
}

// EmitCall emits a call instruction with a pending-call record awaiting
// that post-pass; the caller has already placed the arguments.
func (g *Generator) EmitCall(callee string) {
	switch g.isa {
	case ISAAMD64:
		g.amd64.CallFn(callee)
	case ISAARM64:
		g.arm64.CallFn(callee)
	}
}

// R0 returns the primary integer result register for the active ISA; by
// convention every expression leaves its result there.
func (g *Generator) R0() string {
	if g.isa == ISAARM64 {
		return "x0"
	}
	return "rax"
}

// R1 returns the secondary integer register used for ≤16-byte struct
// returns.
func (g *Generator) R1() string {
	if g.isa == ISAARM64 {
		return "x1"
	}
	return "rdx"
}

// F0 returns the primary float result register for the active ISA.
func (g *Generator) F0() string {
	if g.isa == ISAARM64 {
		return "v0"
	}
	return "xmm0"
}

// scratch returns a caller-clobbered scratch register not used to hold a
// live result, for intermediate computation in infix/prefix lowering.
func (g *Generator) scratch() string {
	if g.isa == ISAARM64 {
		return "x1"
	}
	return "rcx"
}

// QualifiedMethodName builds the "<receiver-type>.<method>" name used for
// methods.
func QualifiedMethodName(receiver, method string) string {
	if receiver == "" {
		return method
	}
	return strings.Join([]string{receiver, method}, ".")
}

// traceInstr annotates one emitted instruction to stderr when is_verbose is
// set: its starting byte offset in hex, its encoded bytes, and a
// human-readable mnemonic comment, per spec's verbose-output contract.
// Grounded on the teacher's VerboseMode-gated per-byte trace in emit.go,
// generalised here to one line per instruction rather than one print per
// byte.
func (g *Generator) traceInstr(start int, mnemonic string) {
	if !g.prefs.IsVerbose {
		return
	}
	fmt.Fprintf(os.Stderr, "  %06x: % x\t; %s\n", start, g.Buf.Bytes()[start:], mnemonic)
}
