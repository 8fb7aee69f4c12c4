package cxcrypt

import (
	"fmt"
	"sync"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

const (
	seedCount = 0x80

	// defaultSeed2 は GeneratorDual の第2状態語が指定されていない場合の値
	defaultSeed2 = 0x9E3779B9
)

// Params は Cx/Hx 系スキームのタイトルごとのパラメータです
type Params struct {
	Mask      uint32 // 分割位置の計算に使うハッシュのマスク
	Offset    uint32 // 分割位置に加える値
	Orders    Orders
	Generator crypto.GeneratorKind
	Seed2     uint32 // GeneratorDual の第2状態語
}

// DefaultParams は既定のパラメータ
var DefaultParams = Params{
	Mask:      0x1FF,
	Offset:    0x3DB,
	Orders:    DefaultOrders,
	Generator: crypto.GeneratorLCG,
}

// Split はエントリのハッシュから分割位置を計算します
func (p Params) Split(hash uint32) int64 {
	return int64(hash&p.Mask) + int64(p.Offset)
}

func (p Params) newGenerator(seed uint32) crypto.Generator {
	aux := p.Seed2
	if aux == 0 {
		aux = defaultSeed2
	}
	return crypto.NewGenerator(p.Generator, seed, aux)
}

type programSlot struct {
	once    sync.Once
	program *Program
	err     error
}

// Engine は種ごとの鍵プログラムを保持し、ハッシュから鍵を導出します。
// プログラムは最初に必要になったときに一度だけ合成されます。
type Engine struct {
	params Params
	cb     *ControlBlock
	slots  [seedCount]programSlot
}

// NewEngine は新しい Engine を作成します
func NewEngine(params Params, cb *ControlBlock) (*Engine, error) {
	if err := params.Orders.Validate(); err != nil {
		return nil, err
	}
	return &Engine{params: params, cb: cb}, nil
}

// Params はパラメータを返します
func (e *Engine) Params() Params {
	return e.params
}

// Program は種 seed (0-127) のプログラムを返します
func (e *Engine) Program(seed uint32) (*Program, error) {
	if seed >= seedCount {
		return nil, fmt.Errorf("cxcrypt: seed %#x out of range", seed)
	}
	slot := &e.slots[seed]
	slot.once.Do(func() {
		slot.program, slot.err = GenerateProgram(seed, e.params.newGenerator(seed), e.cb, e.params.Orders)
	})
	return slot.program, slot.err
}

// Execute はハッシュの下位7ビットで選んだプログラムを残りのビットとその反転で実行します
func (e *Engine) Execute(hash uint32) (uint32, uint32, error) {
	program, err := e.Program(hash & (seedCount - 1))
	if err != nil {
		return 0, 0, err
	}
	arg := hash >> 7
	r1, err := program.Execute(arg)
	if err != nil {
		return 0, 0, err
	}
	r2, err := program.Execute(^arg)
	if err != nil {
		return 0, 0, err
	}
	return r1, r2, nil
}
