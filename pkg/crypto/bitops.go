// Package crypto はXP3アーカイブの暗号スキームで共通に使用するビット演算と疑似乱数生成器を提供します。
//
// 主な機能:
//   - RotByteL / RotByteR: 8ビット回転
//   - RotL32 / RotR32: 32ビット回転
//   - XOR / XORKey: XORベースの変換
//   - LCG: 線形合同法とXORを組み合わせた生成器
//   - RNGMT: メルセンヌ・ツイスタ疑似乱数生成器
//   - DualLCG: 2つの状態語を交差させる生成器
package crypto

import "math/bits"

// RotByteL は v を左に count ビット回転します。count は 8 を法として扱います。
func RotByteL(v byte, count int) byte {
	return bits.RotateLeft8(v, count&7)
}

// RotByteR は v を右に count ビット回転します。
func RotByteR(v byte, count int) byte {
	return bits.RotateLeft8(v, -(count & 7))
}

// RotL32 は v を左に count ビット回転します。
func RotL32(v uint32, count int) uint32 {
	return bits.RotateLeft32(v, count&31)
}

// RotR32 は v を右に count ビット回転します。
func RotR32(v uint32, count int) uint32 {
	return bits.RotateLeft32(v, -(count & 31))
}

// SwapBits16 は隣接するビットの組を入れ替えます (0xAAAA と 0x5555 の交換)。
func SwapBits16(v uint16) uint16 {
	return (v&0xAAAA)>>1 | (v&0x5555)<<1
}

// InterleaveSwap32 は32ビット値の隣接ビットを入れ替えます。
func InterleaveSwap32(v uint32) uint32 {
	return (v&0x55555555)<<1 | (v&0xAAAAAAAA)>>1
}
