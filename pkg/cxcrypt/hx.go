package cxcrypt

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// HeaderSize は別の鍵で保護される先頭の範囲
const HeaderSize = 16

const (
	// maxSpanLength は1つの鍵ストリームで扱える長さ (2^32 ブロック)
	maxSpanLength = int64(1) << 38

	// spanCacheSize は保持する展開済みの鍵の数
	spanCacheSize = 256
)

var hxSalt = []byte("xp3 hx filter")

// FilterKey はエントリごとの Hx の鍵です。
// 鍵の展開方法はこのパッケージ独自のもので、既存タイトルの Hx アーカイブとの互換性はありません。
// 分割位置の前後で独立した鍵ストリームを使い、先頭 HeaderSize バイトには Header を重ねます。
type FilterKey struct {
	Sub    [2]uint64
	Split  int64
	Header [HeaderSize]byte
}

// HxParams は Hx 系スキームのパラメータです
type HxParams struct {
	Params
	HeaderSeed uint32 // ヘッダ鍵の導出に使う値
	NameKey    uint32 // 0 以外の場合、インデックスの名前がスクランブルされている
}

// spanStreams はエントリごとに展開済みの鍵ストリームの鍵を保持します
type spanStreams struct {
	hash   uint32
	split  int64
	keys   [2][chacha20.KeySize]byte
	header [HeaderSize]byte
}

func newSpanStreams(hash uint32, key FilterKey) (*spanStreams, error) {
	s := &spanStreams{hash: hash, split: key.Split, header: key.Header}
	for i, sub := range key.Sub {
		kdf := hkdf.New(sha3.New256, binary.LittleEndian.AppendUint64(nil, sub), hxSalt, []byte{byte(i)})
		if _, err := io.ReadFull(kdf, s.keys[i][:]); err != nil {
			return nil, fmt.Errorf("failed to expand span key: %w", err)
		}
	}
	return s, nil
}

// apply は展開後オフセット offset の buf を変換します
func (s *spanStreams) apply(offset int64, buf []byte) error {
	if offset < HeaderSize {
		for i := offset; i < HeaderSize && i-offset < int64(len(buf)); i++ {
			buf[i-offset] ^= s.header[i]
		}
	}
	if offset < s.split {
		n := int(min(s.split-offset, int64(len(buf))))
		if err := s.xorSpan(0, offset, buf[:n]); err != nil {
			return err
		}
		offset += int64(n)
		buf = buf[n:]
	}
	if len(buf) > 0 {
		return s.xorSpan(1, offset-s.split, buf)
	}
	return nil
}

// xorSpan は span 番目の鍵ストリームを区間先頭からの位置 pos から重ねます
func (s *spanStreams) xorSpan(span int, pos int64, buf []byte) error {
	if pos < 0 || pos > maxSpanLength-int64(len(buf)) {
		return fmt.Errorf("%w: [%d,+%d)", ErrSpanTooLong, pos, len(buf))
	}
	var nonce [chacha20.NonceSize]byte
	binary.LittleEndian.PutUint32(nonce[:], s.hash)
	c, err := chacha20.NewUnauthenticatedCipher(s.keys[span][:], nonce[:])
	if err != nil {
		return err
	}
	c.SetCounter(uint32(pos / 64))
	if skip := pos % 64; skip > 0 {
		var discard [64]byte
		c.XORKeyStream(discard[:skip], discard[:skip])
	}
	c.XORKeyStream(buf, buf)
	return nil
}

// headerKey はハッシュとヘッダ用の値を二重にハッシュして先頭範囲の鍵を作ります
func headerKey(hash, seed uint32) [HeaderSize]byte {
	var in [8]byte
	binary.LittleEndian.PutUint32(in[0:], hash)
	binary.LittleEndian.PutUint32(in[4:], seed)
	first := sha3.Sum256(in[:])
	second := sha3.Sum256(first[:])
	var key [HeaderSize]byte
	copy(key[:], second[:])
	return key
}

// spanCache は展開済みの鍵を上限付きで保持します。上限を超えると古いものから捨てます。
type spanCache struct {
	mu    sync.Mutex
	items map[uint32]*spanStreams
	order []uint32
}

func (c *spanCache) get(hash uint32) (*spanStreams, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.items[hash]
	return s, ok
}

// put は s を保持し、既に同じハッシュの鍵があればそちらを返します
func (c *spanCache) put(hash uint32, s *spanStreams) *spanStreams {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.items[hash]; ok {
		return prev
	}
	if c.items == nil {
		c.items = make(map[uint32]*spanStreams, spanCacheSize)
	}
	if len(c.order) >= spanCacheSize {
		delete(c.items, c.order[0])
		c.order = c.order[1:]
	}
	c.items[hash] = s
	c.order = append(c.order, hash)
	return s
}

func (c *spanCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// keyDeriver はハッシュから2つの副鍵を導出します
type keyDeriver func(hash uint32) (uint64, error)

// hxBase は Hx と Hx lite に共通の処理です
type hxBase struct {
	name   string
	params HxParams
	derive keyDeriver
	cache  spanCache
}

// Name はスキーム名を返します
func (h *hxBase) Name() string {
	return h.name
}

// HashAfterCrypt は false を返します
func (h *hxBase) HashAfterCrypt() bool {
	return false
}

// FilterKey はエントリのハッシュから鍵を導出します
func (h *hxBase) FilterKey(hash uint32) (FilterKey, error) {
	k1, err := h.derive(hash)
	if err != nil {
		return FilterKey{}, err
	}
	k2, err := h.derive((hash >> 16) ^ hash)
	if err != nil {
		return FilterKey{}, err
	}
	return FilterKey{
		Sub:    [2]uint64{k1, k2},
		Split:  h.params.Split(hash),
		Header: headerKey(hash, h.params.HeaderSeed),
	}, nil
}

func (h *hxBase) streams(hash uint32) (*spanStreams, error) {
	if s, ok := h.cache.get(hash); ok {
		return s, nil
	}
	key, err := h.FilterKey(hash)
	if err != nil {
		return nil, err
	}
	s, err := newSpanStreams(hash, key)
	if err != nil {
		return nil, err
	}
	return h.cache.put(hash, s), nil
}

// Decrypt はエントリのハッシュから導出した鍵ストリームで復号します
func (h *hxBase) Decrypt(e *xp3.Entry, offset int64, buf []byte) error {
	s, err := h.streams(e.Hash)
	if err != nil {
		return err
	}
	return s.apply(offset, buf)
}

// Encrypt は ErrEncryptUnsupported を返します
func (h *hxBase) Encrypt(*xp3.Entry, int64, []byte) error {
	return xp3.ErrEncryptUnsupported
}

// ReadName はスクランブルされた名前を元に戻して読み込みます
func (h *hxBase) ReadName(r *xp3.IndexReader) (string, error) {
	if h.params.NameKey == 0 {
		return r.ReadName()
	}
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	b, err := r.ReadBytes(int(n) * 2)
	if err != nil {
		return "", err
	}
	return xp3.DecodeUTF16(scrambleUnits(b, h.params.NameKey))
}

// scrambleUnits は UTF-16 の各文字に LCG の出力を XOR したコピーを返します
func scrambleUnits(b []byte, nameKey uint32) []byte {
	out := make([]byte, len(b))
	g := crypto.NewLCG(nameKey ^ uint32(len(b)/2))
	for i := 0; i+1 < len(b); i += 2 {
		u := binary.LittleEndian.Uint16(b[i:]) ^ uint16(g.Next())
		binary.LittleEndian.PutUint16(out[i:], u)
	}
	return out
}

// ScrambleName は名前を Hx のスクランブル形式 (UTF-16LE) に変換します
func ScrambleName(name string, nameKey uint32) ([]byte, error) {
	b, err := xp3.EncodeUTF16(name)
	if err != nil {
		return nil, err
	}
	return scrambleUnits(b, nameKey), nil
}

// HxCrypt は鍵プログラムで副鍵を導出し、ChaCha20 の鍵ストリームで復号する Hx スキームです。
// 復号専用です。
type HxCrypt struct {
	*hxBase
	holder *engineHolder
}

// NewHx は新しい HxCrypt を作成します
func NewHx(name string, params HxParams, opts ...Option) (*HxCrypt, error) {
	holder, err := newEngineHolder(params.Params, opts)
	if err != nil {
		return nil, err
	}
	h := &HxCrypt{holder: holder}
	h.hxBase = &hxBase{
		name:   name,
		params: params,
		derive: func(hash uint32) (uint64, error) {
			engine, err := holder.get()
			if err != nil {
				return 0, err
			}
			r1, r2, err := engine.Execute(hash)
			if err != nil {
				return 0, err
			}
			return uint64(r1)<<32 | uint64(r2), nil
		},
	}
	return h, nil
}

// Init は制御ブロックを読み込みます
func (h *HxCrypt) Init(a xp3.ArchiveView) error {
	return h.holder.init(a)
}

// HxLiteCrypt は鍵プログラムを使わず、生成器の出力を1回の演算で混ぜて副鍵を導出する Hx スキームです。
// 制御ブロックは不要です。復号専用です。
type HxLiteCrypt struct {
	*hxBase
}

// NewHxLite は新しい HxLiteCrypt を作成します
func NewHxLite(name string, params HxParams) (*HxLiteCrypt, error) {
	if err := params.Orders.Validate(); err != nil {
		return nil, err
	}
	return &HxLiteCrypt{hxBase: &hxBase{
		name:   name,
		params: params,
		derive: func(hash uint32) (uint64, error) {
			return liteSubKey(params.Params, hash), nil
		},
	}}, nil
}

// liteSubKey は種で初期化した生成器の出力とハッシュの残りのビットから副鍵を計算します
func liteSubKey(p Params, hash uint32) uint64 {
	g := p.newGenerator(hash & (seedCount - 1))
	x := hash >> 7
	a := g.Next() ^ x
	b := g.Next() + ^x
	a = crypto.RotL32(a, int(b&31)) * 0x9E3779B1
	return uint64(a)<<32 | uint64(b^(a>>16))
}
