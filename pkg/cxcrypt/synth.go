package cxcrypt

import (
	"fmt"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

// maxStage はプログラム合成の最大段数
const maxStage = 5

// Orders はタイトルごとに異なる分岐の並び順です
type Orders struct {
	Prolog [3]byte
	Odd    [6]byte
	Even   [8]byte
}

// DefaultOrders は並び替えのない順序表
var DefaultOrders = Orders{
	Prolog: [3]byte{0, 1, 2},
	Odd:    [6]byte{0, 1, 2, 3, 4, 5},
	Even:   [8]byte{0, 1, 2, 3, 4, 5, 6, 7},
}

// Validate は各順序表が順列になっているか確認します
func (o Orders) Validate() error {
	if err := checkPermutation("prolog", o.Prolog[:]); err != nil {
		return err
	}
	if err := checkPermutation("odd", o.Odd[:]); err != nil {
		return err
	}
	return checkPermutation("even", o.Even[:])
}

func checkPermutation(name string, order []byte) error {
	seen := make([]bool, len(order))
	for _, v := range order {
		if int(v) >= len(order) || seen[v] {
			return fmt.Errorf("%w: %s order %v", ErrInvalidOrder, name, order)
		}
		seen[v] = true
	}
	return nil
}

// GenerateProgram は種と生成器から鍵プログラムを合成します。
// 段数5から始め、長さの上限を超えた場合は命令列を消去して段数を減らします。
func GenerateProgram(seed uint32, gen crypto.Generator, cb *ControlBlock, orders Orders) (*Program, error) {
	return generateProgram(seed, gen, cb, orders, LengthLimit)
}

func generateProgram(seed uint32, gen crypto.Generator, cb *ControlBlock, orders Orders, limit int) (*Program, error) {
	s := &synthesizer{
		program: newProgram(seed, gen, cb, limit),
		orders:  orders,
	}
	for stage := maxStage; stage > 0; stage-- {
		if s.emitCode(stage) {
			return s.program, nil
		}
		s.program.clear()
	}
	return nil, fmt.Errorf("%w: seed %#x", ErrProgramTooLarge, seed)
}

type synthesizer struct {
	program *Program
	orders  Orders
}

func (s *synthesizer) emitCode(stage int) bool {
	p := s.program
	return p.emitNop(5) &&
		p.emit(OpMovEDIArg, 4) &&
		s.emitBody(stage) &&
		p.emitNop(5) &&
		p.emit(OpRetn, 1)
}

// emitSubBody は乱数に応じて emitBody または emitBody2 を呼び出します
func (s *synthesizer) emitSubBody(stage int) bool {
	if s.program.random()&1 != 0 {
		return s.emitBody(stage)
	}
	return s.emitBody2(stage)
}

func (s *synthesizer) emitBody(stage int) bool {
	if stage == 1 {
		return s.emitProlog()
	}
	p := s.program
	if !p.emit(OpPushEBX, 1) {
		return false
	}
	if !s.emitSubBody(stage - 1) {
		return false
	}
	if !p.emit(OpMovEBXEAX, 2) {
		return false
	}
	if !s.emitSubBody(stage - 1) {
		return false
	}
	return s.emitOddBranch() && p.emit(OpPopEBX, 1)
}

func (s *synthesizer) emitBody2(stage int) bool {
	if stage == 1 {
		return s.emitProlog()
	}
	return s.emitSubBody(stage-1) && s.emitEvenBranch()
}

func (s *synthesizer) emitProlog() bool {
	p := s.program
	switch s.orders.Prolog[p.random()%3] {
	case 0:
		// MOV EAX, IMMED
		return p.emit(OpMovEAXImmed, 1) && p.emitRandom()
	case 1:
		// MOV EAX, EDI
		return p.emit(OpMovEAXEDI, 2)
	case 2:
		// MOV EAX, ~CB[rand & 0x3FF]
		return p.emitNop(5) &&
			p.emit(OpMovEAXImmed, 2) &&
			p.emitUint32(p.random()&0x3FF) &&
			p.emit(OpMovEAXIndirect, 0)
	}
	return false
}

func (s *synthesizer) emitEvenBranch() bool {
	p := s.program
	switch s.orders.Even[p.random()&7] {
	case 0:
		return p.emit(OpNotEAX, 2)
	case 1:
		return p.emit(OpDecEAX, 1)
	case 2:
		return p.emit(OpNegEAX, 2)
	case 3:
		return p.emit(OpIncEAX, 1)
	case 4:
		return p.emitNop(5) &&
			p.emit(OpAndEAXImmed, 1) &&
			p.emitUint32(0x3FF) &&
			p.emit(OpMovEAXIndirect, 3)
	case 5:
		// 隣接ビットの入れ替え
		return p.emit(OpPushEBX, 1) &&
			p.emit(OpMovEBXEAX, 2) &&
			p.emit(OpAndEBXImmed, 2) &&
			p.emitUint32(0xAAAAAAAA) &&
			p.emit(OpAndEAXImmed, 1) &&
			p.emitUint32(0x55555555) &&
			p.emit(OpShrEBX1, 2) &&
			p.emit(OpShlEAX1, 2) &&
			p.emit(OpOrEAXEBX, 2) &&
			p.emit(OpPopEBX, 1)
	case 6:
		return p.emit(OpXorEAXImmed, 1) && p.emitRandom()
	case 7:
		if p.random()&1 != 0 {
			return p.emit(OpAddEAXImmed, 1) && p.emitRandom()
		}
		return p.emit(OpSubEAXImmed, 1) && p.emitRandom()
	}
	return false
}

func (s *synthesizer) emitOddBranch() bool {
	p := s.program
	switch s.orders.Odd[p.random()%6] {
	case 0:
		return p.emit(OpPushECX, 1) &&
			p.emit(OpMovECXEBX, 2) &&
			p.emit(OpAndECX0F, 3) &&
			p.emit(OpShrEAXCL, 2) &&
			p.emit(OpPopECX, 1)
	case 1:
		return p.emit(OpPushECX, 1) &&
			p.emit(OpMovECXEBX, 2) &&
			p.emit(OpAndECX0F, 3) &&
			p.emit(OpShlEAXCL, 2) &&
			p.emit(OpPopECX, 1)
	case 2:
		return p.emit(OpAddEAXEBX, 2)
	case 3:
		return p.emit(OpNegEAX, 2) && p.emit(OpAddEAXEBX, 2)
	case 4:
		return p.emit(OpImulEAXEBX, 3)
	case 5:
		return p.emit(OpSubEAXEBX, 2)
	}
	return false
}
