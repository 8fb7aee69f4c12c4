package cxcrypt

import (
	"fmt"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

// LengthLimit はプログラムの長さの上限 (x86 換算のバイト数)
const LengthLimit = 0x80

// Program は種ごとに合成される鍵プログラムです。
// code には命令と即値が順に並びます。合成後は変更されません。
type Program struct {
	seed   uint32
	gen    crypto.Generator
	cb     *ControlBlock
	code   []uint32
	length int
	limit  int
}

func newProgram(seed uint32, gen crypto.Generator, cb *ControlBlock, limit int) *Program {
	return &Program{
		seed:  seed,
		gen:   gen,
		cb:    cb,
		code:  make([]uint32, 0, limit),
		limit: limit,
	}
}

// Seed はプログラムの種を返します
func (p *Program) Seed() uint32 {
	return p.seed
}

// Len はプログラムの長さを返します
func (p *Program) Len() int {
	return p.length
}

// Code は命令列のコピーを返します
func (p *Program) Code() []uint32 {
	return append([]uint32(nil), p.code...)
}

func (p *Program) random() uint32 {
	return p.gen.Next()
}

// clear は命令列を消去します。生成器の状態はそのまま残ります。
func (p *Program) clear() {
	p.code = p.code[:0]
	p.length = 0
}

func (p *Program) emit(op Opcode, length int) bool {
	if p.length+length > p.limit {
		return false
	}
	p.length += length
	p.code = append(p.code, uint32(op))
	return true
}

func (p *Program) emitNop(count int) bool {
	if p.length+count > p.limit {
		return false
	}
	p.length += count
	return true
}

func (p *Program) emitUint32(v uint32) bool {
	if p.length+4 > p.limit {
		return false
	}
	p.length += 4
	p.code = append(p.code, v)
	return true
}

func (p *Program) emitRandom() bool {
	return p.emitUint32(p.random())
}

// Execute は arg を引数としてプログラムを実行し、EAX の値を返します
func (p *Program) Execute(arg uint32) (uint32, error) {
	var eax, ebx, ecx, edi uint32
	stack := make([]uint32, 0, 8)

	immediate := func(i *int) (uint32, error) {
		*i++
		if *i >= len(p.code) {
			return 0, fmt.Errorf("%w: missing immediate", ErrUnknownOpcode)
		}
		return p.code[*i], nil
	}
	pop := func() (uint32, error) {
		if len(stack) == 0 {
			return 0, ErrStackImbalance
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for i := 0; i < len(p.code); i++ {
		var err error
		switch op := Opcode(p.code[i]); op {
		case OpMovEDIArg:
			edi = arg
		case OpMovEAXEDI:
			eax = edi
		case OpMovEAXEBX:
			eax = ebx
		case OpMovEBXEAX:
			ebx = eax
		case OpMovECXEBX:
			ecx = ebx
		case OpMovEAXIndirect:
			if p.cb == nil || eax >= ControlBlockWords {
				return 0, fmt.Errorf("%w: %#x", ErrControlBlockIndex, eax)
			}
			eax = ^p.cb[eax]
		case OpMovEAXImmed:
			eax, err = immediate(&i)
		case OpAndEAXImmed:
			var v uint32
			v, err = immediate(&i)
			eax &= v
		case OpAndEBXImmed:
			var v uint32
			v, err = immediate(&i)
			ebx &= v
		case OpXorEAXImmed:
			var v uint32
			v, err = immediate(&i)
			eax ^= v
		case OpAddEAXImmed:
			var v uint32
			v, err = immediate(&i)
			eax += v
		case OpSubEAXImmed:
			var v uint32
			v, err = immediate(&i)
			eax -= v
		case OpAndECX0F:
			ecx &= 0x0F
		case OpAddEAXEBX:
			eax += ebx
		case OpSubEAXEBX:
			eax -= ebx
		case OpImulEAXEBX:
			eax *= ebx
		case OpOrEAXEBX:
			eax |= ebx
		case OpNotEAX:
			eax = ^eax
		case OpNegEAX:
			eax = -eax
		case OpIncEAX:
			eax++
		case OpDecEAX:
			eax--
		case OpShrEBX1:
			ebx >>= 1
		case OpShlEAX1:
			eax <<= 1
		case OpShrEAXCL:
			eax >>= byte(ecx)
		case OpShlEAXCL:
			eax <<= byte(ecx)
		case OpPushEBX:
			stack = append(stack, ebx)
		case OpPushECX:
			stack = append(stack, ecx)
		case OpPopEBX:
			ebx, err = pop()
		case OpPopECX:
			ecx, err = pop()
		case OpNop:
		case OpRetn:
			if len(stack) != 0 {
				return 0, ErrStackImbalance
			}
			return eax, nil
		default:
			return 0, fmt.Errorf("%w: %#x at %d", ErrUnknownOpcode, uint32(op), i)
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, ErrNoReturn
}

// Disassemble はプログラムをニーモニックの列に変換します
func (p *Program) Disassemble() []string {
	var lines []string
	for i := 0; i < len(p.code); i++ {
		op := Opcode(p.code[i])
		if op.hasImmediate() && i+1 < len(p.code) {
			lines = append(lines, fmt.Sprintf("%s %#08x", op, p.code[i+1]))
			i++
			continue
		}
		lines = append(lines, op.String())
	}
	return lines
}
