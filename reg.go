package natgen

// reg.go holds the two ISAs' register encodings. Grounded on the teacher's
// reg.go (x86_64Registers map) and arm64_instructions.go (arm64GPRegs map),
// trimmed to the general-purpose and float registers this generator actually
// touches — the teacher's AVX zmm/ymm tables have no home here, since there
// is no SIMD component.

// amd64Reg is the REX.B/ModRM encoding plus REX-required flag for one
// 64-bit general-purpose register.
type amd64Reg struct {
	encoding byte
	needsRex bool // r8-r15 require a REX prefix bit
}

var amd64Registers = map[string]amd64Reg{
	"rax": {0, false}, "rcx": {1, false}, "rdx": {2, false}, "rbx": {3, false},
	"rsp": {4, false}, "rbp": {5, false}, "rsi": {6, false}, "rdi": {7, false},
	"r8": {0, true}, "r9": {1, true}, "r10": {2, true}, "r11": {3, true},
	"r12": {4, true}, "r13": {5, true}, "r14": {6, true}, "r15": {7, true},
}

var amd64XMM = map[string]byte{
	"xmm0": 0, "xmm1": 1, "xmm2": 2, "xmm3": 3,
	"xmm4": 4, "xmm5": 5, "xmm6": 6, "xmm7": 7,
}

// arm64Registers maps the AAPCS64 general-purpose register names to their
// 5-bit encodings, per the teacher's arm64GPRegs table.
var arm64Registers = map[string]uint32{
	"x0": 0, "x1": 1, "x2": 2, "x3": 3, "x4": 4, "x5": 5, "x6": 6, "x7": 7,
	"x8": 8, "x9": 9, "x10": 10, "x11": 11, "x12": 12, "x13": 13, "x14": 14, "x15": 15,
	"x16": 16, "x17": 17, "x18": 18, "x19": 19, "x20": 20, "x21": 21, "x22": 22, "x23": 23,
	"x24": 24, "x25": 25, "x26": 26, "x27": 27, "x28": 28,
	"x29": 29, "fp": 29,
	"x30": 30, "lr": 30,
	"sp": 31, "xzr": 31,
}
