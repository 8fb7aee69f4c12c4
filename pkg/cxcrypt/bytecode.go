package cxcrypt

import "fmt"

// Opcode は鍵プログラムの命令です
type Opcode uint32

// 命令の一覧。名前は x86 の対応する命令に由来します。
const (
	OpNop Opcode = iota
	OpRetn
	OpMovEDIArg
	OpPushEBX
	OpPopEBX
	OpPushECX
	OpPopECX
	OpMovEAXEBX
	OpMovEBXEAX
	OpMovECXEBX
	OpMovEAXEDI
	OpMovEAXImmed
	OpMovEAXIndirect
	OpAndEAXImmed
	OpAndEBXImmed
	OpAndECX0F
	OpXorEAXImmed
	OpAddEAXImmed
	OpSubEAXImmed
	OpAddEAXEBX
	OpSubEAXEBX
	OpImulEAXEBX
	OpOrEAXEBX
	OpNotEAX
	OpNegEAX
	OpIncEAX
	OpDecEAX
	OpShrEBX1
	OpShlEAX1
	OpShrEAXCL
	OpShlEAXCL
)

var opcodeNames = [...]string{
	OpNop:            "NOP",
	OpRetn:           "RETN",
	OpMovEDIArg:      "MOV EDI, ARG",
	OpPushEBX:        "PUSH EBX",
	OpPopEBX:         "POP EBX",
	OpPushECX:        "PUSH ECX",
	OpPopECX:         "POP ECX",
	OpMovEAXEBX:      "MOV EAX, EBX",
	OpMovEBXEAX:      "MOV EBX, EAX",
	OpMovECXEBX:      "MOV ECX, EBX",
	OpMovEAXEDI:      "MOV EAX, EDI",
	OpMovEAXImmed:    "MOV EAX, IMM",
	OpMovEAXIndirect: "MOV EAX, ~CB[EAX]",
	OpAndEAXImmed:    "AND EAX, IMM",
	OpAndEBXImmed:    "AND EBX, IMM",
	OpAndECX0F:       "AND ECX, 0F",
	OpXorEAXImmed:    "XOR EAX, IMM",
	OpAddEAXImmed:    "ADD EAX, IMM",
	OpSubEAXImmed:    "SUB EAX, IMM",
	OpAddEAXEBX:      "ADD EAX, EBX",
	OpSubEAXEBX:      "SUB EAX, EBX",
	OpImulEAXEBX:     "IMUL EAX, EBX",
	OpOrEAXEBX:       "OR EAX, EBX",
	OpNotEAX:         "NOT EAX",
	OpNegEAX:         "NEG EAX",
	OpIncEAX:         "INC EAX",
	OpDecEAX:         "DEC EAX",
	OpShrEBX1:        "SHR EBX, 1",
	OpShlEAX1:        "SHL EAX, 1",
	OpShrEAXCL:       "SHR EAX, CL",
	OpShlEAXCL:       "SHL EAX, CL",
}

// String は命令のニーモニックを返します
func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint32(op))
}

// hasImmediate は命令が直後に32ビットの即値を持つかどうかを返します
func (op Opcode) hasImmediate() bool {
	switch op {
	case OpMovEAXImmed, OpAndEAXImmed, OpAndEBXImmed, OpXorEAXImmed, OpAddEAXImmed, OpSubEAXImmed:
		return true
	}
	return false
}
