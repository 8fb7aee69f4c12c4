package scheme

import (
	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// inRange は絶対位置 pos が offset から始まる長さ n の範囲に含まれるか判定します
func inRange(pos, offset int64, n int) bool {
	return pos >= offset && pos < offset+int64(n)
}

// XorCrypt は全バイトを固定の鍵で XOR します
type XorCrypt struct {
	Key byte
}

// Name はスキーム名 "xor" を返します
func (c XorCrypt) Name() string { return "xor" }

// Decrypt は鍵で XOR します
func (c XorCrypt) Decrypt(_ *xp3.Entry, _ int64, buf []byte) error {
	crypto.XOR(buf, c.Key)
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c XorCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

// HashAfterCrypt は true を返します。チェックサムは暗号化後のデータで計算されます。
func (c XorCrypt) HashAfterCrypt() bool { return true }

// HashXorCrypt はハッシュの下位バイトで XOR します
type HashXorCrypt struct{}

// Name はスキーム名 "hash" を返します
func (HashXorCrypt) Name() string { return "hash" }

// Decrypt はハッシュの下位バイトで XOR します
func (HashXorCrypt) Decrypt(e *xp3.Entry, _ int64, buf []byte) error {
	crypto.XOR(buf, byte(e.Hash))
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c HashXorCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

// HashAfterCrypt は false を返します
func (HashXorCrypt) HashAfterCrypt() bool { return false }

// FateCrypt は 0x36 で XOR し、2箇所の固定位置に追加の XOR を行います
type FateCrypt struct{}

const (
	fateKey        = 0x36
	fateExtraPos1  = 0x13
	fateExtraPos2  = 0x2EA29
	fateExtraByte1 = 0x01
	fateExtraByte2 = 0x03
)

// Name はスキーム名 "fate" を返します
func (FateCrypt) Name() string { return "fate" }

// Decrypt は 0x36 で XOR し、固定位置のバイトを補正します
func (FateCrypt) Decrypt(_ *xp3.Entry, offset int64, buf []byte) error {
	crypto.XOR(buf, fateKey)
	if inRange(fateExtraPos1, offset, len(buf)) {
		buf[fateExtraPos1-offset] ^= fateExtraByte1
	}
	if inRange(fateExtraPos2, offset, len(buf)) {
		buf[fateExtraPos2-offset] ^= fateExtraByte2
	}
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c FateCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

// HashAfterCrypt は true を返します。チェックサムは暗号化後のデータで計算されます。
func (FateCrypt) HashAfterCrypt() bool { return true }

// MizukakeCrypt は 0x103 の位置の1バイトを増減し、全体を 0xB6 で XOR します。
// 暗号化と復号は逆の手順です。
type MizukakeCrypt struct{}

const (
	mizukakeKey = 0xB6
	mizukakePos = 0x103
)

// Name はスキーム名 "mizukake" を返します
func (MizukakeCrypt) Name() string { return "mizukake" }

// Decrypt は固定位置のバイトを1減らしてから XOR します
func (MizukakeCrypt) Decrypt(_ *xp3.Entry, offset int64, buf []byte) error {
	if inRange(mizukakePos, offset, len(buf)) {
		buf[mizukakePos-offset]--
	}
	crypto.XOR(buf, mizukakeKey)
	return nil
}

// Encrypt は XOR してから固定位置のバイトを1増やします
func (MizukakeCrypt) Encrypt(_ *xp3.Entry, offset int64, buf []byte) error {
	crypto.XOR(buf, mizukakeKey)
	if inRange(mizukakePos, offset, len(buf)) {
		buf[mizukakePos-offset]++
	}
	return nil
}

// HashAfterCrypt は false を返します
func (MizukakeCrypt) HashAfterCrypt() bool { return false }

// SeitenCrypt はハッシュと位置から作った鍵のビットに応じて XOR、加算、減算を行います
type SeitenCrypt struct{}

// Name はスキーム名 "seiten" を返します
func (SeitenCrypt) Name() string { return "seiten" }

func seitenMask(key uint32) byte {
	return byte(key>>(key&0x18) | key>>8)
}

// Decrypt は位置ごとの鍵のビットに応じて XOR、加算、減算を行います
func (SeitenCrypt) Decrypt(e *xp3.Entry, offset int64, buf []byte) error {
	for i := range buf {
		key := e.Hash ^ uint32(offset+int64(i))
		v := buf[i]
		if key&2 != 0 {
			v ^= seitenMask(key)
		}
		if key&4 != 0 {
			v += byte(key)
		}
		if key&8 != 0 {
			v -= byte(key >> 16)
		}
		buf[i] = v
	}
	return nil
}

// Encrypt は Decrypt の手順を逆順に行います
func (SeitenCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	for i := range buf {
		key := e.Hash ^ uint32(offset+int64(i))
		v := buf[i]
		if key&8 != 0 {
			v += byte(key >> 16)
		}
		if key&4 != 0 {
			v -= byte(key)
		}
		if key&2 != 0 {
			v ^= seitenMask(key)
		}
		buf[i] = v
	}
	return nil
}

// HashAfterCrypt は false を返します
func (SeitenCrypt) HashAfterCrypt() bool { return false }

// FlyingShineCrypt はハッシュから求めた鍵で XOR し、ビット回転します
type FlyingShineCrypt struct{}

func flyingShineKey(hash uint32) (shift int, key byte) {
	shift = int(hash & 0xFF)
	if shift == 0 {
		shift = 0x0F
	}
	key = byte(hash >> 8)
	if key == 0 {
		key = 0xF0
	}
	return shift, key
}

// Name はスキーム名 "flyingshine" を返します
func (FlyingShineCrypt) Name() string { return "flyingshine" }

// Decrypt は XOR してから右に回転します
func (FlyingShineCrypt) Decrypt(e *xp3.Entry, _ int64, buf []byte) error {
	shift, key := flyingShineKey(e.Hash)
	for i, b := range buf {
		buf[i] = crypto.RotByteR(b^key, shift)
	}
	return nil
}

// Encrypt は左に回転してから XOR します
func (FlyingShineCrypt) Encrypt(e *xp3.Entry, _ int64, buf []byte) error {
	shift, key := flyingShineKey(e.Hash)
	for i, b := range buf {
		buf[i] = crypto.RotByteL(b, shift) ^ key
	}
	return nil
}

// HashAfterCrypt は false を返します
func (FlyingShineCrypt) HashAfterCrypt() bool { return false }

// AkabeiCrypt はハッシュと種から作った32バイトの表で循環 XOR します
type AkabeiCrypt struct {
	Seed uint32
}

// Name はスキーム名 "akabei" を返します
func (c AkabeiCrypt) Name() string { return "akabei" }

// KeyTable はエントリのハッシュに対応する32バイトの鍵表を返します
func (c AkabeiCrypt) KeyTable(hash uint32) [32]byte {
	h := (hash ^ c.Seed) & 0x7FFFFFFF
	h = h<<31 | h
	var key [32]byte
	for i := range key {
		key[i] = byte(h)
		h = (h&0xFFFFFFFE)<<23 | h>>8
	}
	return key
}

// Decrypt は鍵表で循環 XOR します
func (c AkabeiCrypt) Decrypt(e *xp3.Entry, offset int64, buf []byte) error {
	key := c.KeyTable(e.Hash)
	crypto.XORKey(buf, key[:], offset)
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c AkabeiCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

// HashAfterCrypt は false を返します
func (c AkabeiCrypt) HashAfterCrypt() bool { return false }
