// Package cxcrypt は鍵プログラムを合成して鍵を導出する Cx/Hx 系の暗号スキームを提供します。
//
// エントリのハッシュの下位7ビットを種として、乱数生成器から分岐のない小さなプログラムを合成し、
// 制御ブロックを参照しながら実行して鍵を得ます。合成されたプログラムは種ごとに保持されます。
package cxcrypt

import (
	"fmt"
	"sync"

	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// Option は Cx/Hx スキームの設定です
type Option func(*config)

type config struct {
	cb     *ControlBlock
	plugin string
}

// WithControlBlock は制御ブロックを直接指定します。プラグインモジュールは読み込みません。
func WithControlBlock(cb *ControlBlock) Option {
	return func(c *config) {
		c.cb = cb
	}
}

// WithPlugin はプラグインモジュールのパスを指定します
func WithPlugin(path string) Option {
	return func(c *config) {
		c.plugin = path
	}
}

// engineHolder は制御ブロックの読み込みと Engine の作成を一度だけ行います
type engineHolder struct {
	params Params
	config config

	mu     sync.Mutex
	engine *Engine
}

func (h *engineHolder) init(a xp3.ArchiveView) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine != nil {
		return nil
	}
	cb := h.config.cb
	if cb == nil {
		var err error
		if cb, err = locateControlBlock(h.config.plugin, a.Path()); err != nil {
			return err
		}
	}
	engine, err := NewEngine(h.params, cb)
	if err != nil {
		return err
	}
	h.engine = engine
	return nil
}

func (h *engineHolder) get() (*Engine, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.engine == nil {
		return nil, fmt.Errorf("%w: control block not loaded", xp3.ErrMissingMaterial)
	}
	return h.engine, nil
}

func newEngineHolder(params Params, opts []Option) (*engineHolder, error) {
	h := &engineHolder{params: params}
	for _, opt := range opts {
		opt(&h.config)
	}
	if err := params.Orders.Validate(); err != nil {
		return nil, err
	}
	if h.config.cb != nil {
		engine, err := NewEngine(params, h.config.cb)
		if err != nil {
			return nil, err
		}
		h.engine = engine
	}
	return h, nil
}

// CxCrypt は2段階の鍵で XOR する Cx スキームです。暗号化と復号は同じ変換です。
type CxCrypt struct {
	name string
	*engineHolder
}

// NewCx は新しい CxCrypt を作成します
func NewCx(name string, params Params, opts ...Option) (*CxCrypt, error) {
	h, err := newEngineHolder(params, opts)
	if err != nil {
		return nil, err
	}
	return &CxCrypt{name: name, engineHolder: h}, nil
}

// Name はスキーム名を返します
func (c *CxCrypt) Name() string {
	return c.name
}

// HashAfterCrypt は false を返します
func (c *CxCrypt) HashAfterCrypt() bool {
	return false
}

// Init は制御ブロックを読み込みます
func (c *CxCrypt) Init(a xp3.ArchiveView) error {
	return c.init(a)
}

// Decrypt は分割位置より前をエントリのハッシュ、後を再導出したハッシュで復号します
func (c *CxCrypt) Decrypt(e *xp3.Entry, offset int64, buf []byte) error {
	engine, err := c.get()
	if err != nil {
		return err
	}
	hash := e.Hash
	if split := engine.params.Split(hash); offset < split {
		n := int(min(split-offset, int64(len(buf))))
		if err := decode(engine, hash, offset, buf[:n]); err != nil {
			return err
		}
		offset += int64(n)
		buf = buf[n:]
	}
	if len(buf) > 0 {
		return decode(engine, (hash>>16)^hash, offset, buf)
	}
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c *CxCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

// decode は1段階分の変換を行います。key1 と key2 はエントリ内の絶対位置です。
func decode(engine *Engine, hash uint32, offset int64, buf []byte) error {
	r1, r2, err := engine.Execute(hash)
	if err != nil {
		return err
	}
	key1 := int64(r2 >> 16)
	key2 := int64(r2 & 0xFFFF)
	key3 := byte(r1)
	if key1 == key2 {
		key2++
	}
	if key3 == 0 {
		key3 = 1
	}

	end := offset + int64(len(buf))
	if key2 >= offset && key2 < end {
		buf[key2-offset] ^= byte(r1 >> 16)
	}
	if key1 >= offset && key1 < end {
		buf[key1-offset] ^= byte(r1 >> 8)
	}
	for i := range buf {
		buf[i] ^= key3
	}
	return nil
}
