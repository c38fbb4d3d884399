package natgen

// CallingConvention describes how arguments and return values travel
// between caller and callee for one ISA. Grounded on the
// teacher's CallingConvention interface (calling_convention.go), trimmed
// from its four-ABI table (it also models Microsoft x64 and a RISC-V
// convention) down to the two ABIs this generator actually targets: the
// System V AMD64 subset and the AAPCS64 subset.
type CallingConvention struct {
	IntArgRegs    []string
	FloatArgRegs  []string
	IntReturnReg  string
	FloatReturnReg string
	CalleeSaved   []string
}

// SystemVAMD64 is the System V AMD64 ABI subset used here: first
// six integer args in rdi,rsi,rdx,rcx,r8,r9; first eight float args in
// xmm0..xmm7; callee preserves rbx,rbp,r12-r15; return in rax/xmm0.
var SystemVAMD64 = CallingConvention{
	IntArgRegs:     []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"},
	FloatArgRegs:   []string{"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7"},
	IntReturnReg:   "rax",
	FloatReturnReg: "xmm0",
	CalleeSaved:    []string{"rbx", "rbp", "r12", "r13", "r14", "r15"},
}

// AAPCS64 is the arm64 AAPCS64 subset used here: x0..x7 integer
// args, x29 frame pointer, lr (x30) return address, return in x0.
var AAPCS64 = CallingConvention{
	IntArgRegs:   []string{"x0", "x1", "x2", "x3", "x4", "x5", "x6", "x7"},
	IntReturnReg: "x0",
	CalleeSaved:  []string{"x19", "x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28"},
}

// amd64SyscallArgRegs is the host syscall convention used for
// C.syscall lowering: arguments in rax, rdi, rsi, rdx for amd64.
var amd64SyscallArgRegs = []string{"rax", "rdi", "rsi", "rdx"}
