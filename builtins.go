package natgen

// BuiltinDirectory is a lazily-populated
// directory of built-in helpers (int_to_string, bool_to_string),
// emitted once at footer time with their entry addresses recorded.
// Grounded on the teacher's conditional runtime-helper
// emission (usesPrintf/RuntimeFeatures flags gating helper generation in
// codegen.go), generalised from a fixed flag set to an arbitrary
// name-keyed directory.
type BuiltinDirectory struct {
	g        *Generator
	declared map[string]bool // referenced at least once
	emitted  map[string]int  // name -> entry offset, filled in at EmitPending
	order    []string        // first-reference order, for deterministic output
}

// NewBuiltinDirectory creates an empty directory bound to g.
func NewBuiltinDirectory(g *Generator) *BuiltinDirectory {
	return &BuiltinDirectory{
		g:        g,
		declared: make(map[string]bool),
		emitted:  make(map[string]int),
	}
}

// Reference records that name is needed, registering it once for later body
// emission. Nothing enters the function-address map here: call sites are
// lowered immediately as pending calls, which resolve after EmitPending
// defines the entry.
func (d *BuiltinDirectory) Reference(name string) {
	if d.declared[name] {
		return
	}
	d.declared[name] = true
	d.order = append(d.order, name)
}

// GetBuiltinArgReg returns the ISA-specific register for argument index of
// a built-in call. Built-ins take a single argument in this
// generator's supported set, so index must be 0.
func (d *BuiltinDirectory) GetBuiltinArgReg(index int) string {
	if index != 0 {
		d.g.Diag.NError("built-in helpers take exactly one argument")
	}
	switch d.g.isa {
	case ISAAMD64:
		return SystemVAMD64.IntArgRegs[0]
	default:
		return AAPCS64.IntArgRegs[0]
	}
}

// EmitPending emits the body of every referenced built-in and records its
// entry address in the function-address map, so the earlier pending-call
// sites resolve through the normal post-pass.
func (d *BuiltinDirectory) EmitPending() {
	for _, name := range d.order {
		entry := d.g.Buf.Pos()
		switch name {
		case "int_to_string":
			d.emitIntToString()
		case "bool_to_string":
			d.emitBoolToString()
		default:
			d.g.Diag.NError("unknown built-in " + name)
		}
		d.emitted[name] = entry
		d.g.DefineFunction(name, entry)
	}
}

// emitIntToString emits the int_to_string entry point: a prologue with a
// 32-byte frame followed directly by the epilogue. The body performs no
// decimal conversion and sets no address or length register.
func (d *BuiltinDirectory) emitIntToString() {
	switch d.g.isa {
	case ISAAMD64:
		d.g.amd64.FnDecl(32)
		d.g.amd64.FnEpilogue()
	case ISAARM64:
		d.g.arm64.FnDecl(32)
		d.g.arm64.FnEpilogue(32)
	}
}

// emitBoolToString emits the bool_to_string entry point: a prologue with a
// 16-byte frame followed directly by the epilogue. No "true"/"false"
// strings are pooled and no address or length is returned.
func (d *BuiltinDirectory) emitBoolToString() {
	switch d.g.isa {
	case ISAAMD64:
		d.g.amd64.FnDecl(16)
		d.g.amd64.FnEpilogue()
	case ISAARM64:
		d.g.arm64.FnDecl(16)
		d.g.arm64.FnEpilogue(16)
	}
}
