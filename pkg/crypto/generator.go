package crypto

import "fmt"

// Generator は32ビットの疑似乱数列を返す生成器です。
// 同じ初期値からは常に同じ列を返す必要があります。
type Generator interface {
	Next() uint32
}

// GeneratorKind は生成器の種類を表します
type GeneratorKind int

const (
	// GeneratorLCG は LCG と XOR を組み合わせた標準の生成器
	GeneratorLCG GeneratorKind = iota
	// GeneratorMT はメルセンヌ・ツイスタ (RNGMT)
	GeneratorMT
	// GeneratorDual は2つの状態語を交差させる生成器
	GeneratorDual
)

// String は生成器の名前を返します
func (k GeneratorKind) String() string {
	switch k {
	case GeneratorLCG:
		return "lcg"
	case GeneratorMT:
		return "mt"
	case GeneratorDual:
		return "dual"
	default:
		return fmt.Sprintf("GeneratorKind(%d)", int(k))
	}
}

// ParseGeneratorKind は名前から生成器の種類を返します
func ParseGeneratorKind(name string) (GeneratorKind, error) {
	switch name {
	case "", "lcg":
		return GeneratorLCG, nil
	case "mt":
		return GeneratorMT, nil
	case "dual":
		return GeneratorDual, nil
	}
	return 0, fmt.Errorf("unknown generator %q", name)
}

// NewGenerator は種類と初期値から生成器を作成します。
// aux は GeneratorDual の第2状態語にのみ使用されます。
func NewGenerator(kind GeneratorKind, seed, aux uint32) Generator {
	switch kind {
	case GeneratorMT:
		return NewRNGMT(seed)
	case GeneratorDual:
		return NewDualLCG(seed, aux)
	default:
		return NewLCG(seed)
	}
}

// LCG は線形合同法の出力に直前の状態を混ぜる生成器です。
type LCG struct {
	seed uint32
}

// NewLCG は新しい LCG を作成します
func NewLCG(seed uint32) *LCG {
	return &LCG{seed: seed}
}

// Next は次の値を返します
func (g *LCG) Next() uint32 {
	s := g.seed
	g.seed = 1103515245*s + 12345
	return g.seed ^ (s << 16) ^ (s >> 16)
}

// DualLCG は2つの状態語をそれぞれシフトとXORで更新し、出力で交差させる生成器です。
type DualLCG struct {
	a uint32
	b uint32
}

// NewDualLCG は新しい DualLCG を作成します
func NewDualLCG(seed, aux uint32) *DualLCG {
	return &DualLCG{a: seed, b: aux}
}

// Next は次の値を返します
func (g *DualLCG) Next() uint32 {
	s := g.a ^ (g.a << 17)
	s ^= s<<18 | s>>15
	g.a = ^s

	r := g.b ^ (g.b << 13)
	r ^= r >> 17
	g.b = r ^ (r << 5)

	return g.a ^ g.b
}
