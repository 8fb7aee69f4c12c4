// Package scheme は名前付きの暗号スキームの登録とタイトル表を提供します。
//
// スキームは "name" または "name:arg" 形式の指定文字列で作成します。
//
//	c, err := scheme.New("xor:0x5a")
//	c, err := scheme.New("cx:mask=0x1ff,offset=0x3db", scheme.WithPlugin("game.tpm"))
package scheme

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/shiroemons/go-xp3/pkg/cxcrypt"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// Options はスキームの作成時に渡される外部の材料です
type Options struct {
	Plugin       string                // 制御ブロックを含むプラグインモジュールのパス
	ControlBlock *cxcrypt.ControlBlock // 読み込み済みの制御ブロック
}

// Option は Options を設定します
type Option func(*Options)

// WithPlugin はプラグインモジュールのパスを指定します
func WithPlugin(path string) Option {
	return func(o *Options) {
		o.Plugin = path
	}
}

// WithControlBlock は制御ブロックを直接指定します
func WithControlBlock(cb *cxcrypt.ControlBlock) Option {
	return func(o *Options) {
		o.ControlBlock = cb
	}
}

// Factory は指定文字列の引数部分からスキームを作成します
type Factory func(arg string, o Options) (xp3.Crypt, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register はスキームを登録します。同じ名前を2回登録するとパニックします。
func Register(name string, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, ok := registry[name]; ok {
		panic("scheme: Register called twice for " + name)
	}
	registry[name] = f
}

// New は "name" または "name:arg" 形式の指定からスキームを作成します
func New(spec string, opts ...Option) (xp3.Crypt, error) {
	name, arg, _ := strings.Cut(strings.TrimSpace(spec), ":")
	name = strings.ToLower(name)

	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
	}

	var o Options
	for _, opt := range opts {
		opt(&o)
	}
	return f(arg, o)
}

// Names は登録済みのスキーム名を昇順で返します
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func noArg(name string, c xp3.Crypt) Factory {
	return func(arg string, _ Options) (xp3.Crypt, error) {
		if arg != "" {
			return nil, fmt.Errorf("%w: %s takes no argument", ErrInvalidSpec, name)
		}
		return c, nil
	}
}

func cxOptions(o Options) []cxcrypt.Option {
	var opts []cxcrypt.Option
	if o.ControlBlock != nil {
		opts = append(opts, cxcrypt.WithControlBlock(o.ControlBlock))
	}
	if o.Plugin != "" {
		opts = append(opts, cxcrypt.WithPlugin(o.Plugin))
	}
	return opts
}

func init() {
	Register("none", noArg("none", xp3.NoCrypt{}))
	Register("hash", noArg("hash", HashXorCrypt{}))
	Register("fate", noArg("fate", FateCrypt{}))
	Register("mizukake", noArg("mizukake", MizukakeCrypt{}))
	Register("seiten", noArg("seiten", SeitenCrypt{}))
	Register("flyingshine", noArg("flyingshine", FlyingShineCrypt{}))

	Register("xor", func(arg string, _ Options) (xp3.Crypt, error) {
		if arg == "" {
			return XorCrypt{Key: 0xFF}, nil
		}
		key, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("%w: xor key %q: %w", ErrInvalidSpec, arg, err)
		}
		return XorCrypt{Key: byte(key)}, nil
	})
	Register("akabei", func(arg string, _ Options) (xp3.Crypt, error) {
		seed, err := parseUint32(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: akabei seed %q: %w", ErrInvalidSpec, arg, err)
		}
		return AkabeiCrypt{Seed: seed}, nil
	})
	Register("prefixlist", func(arg string, _ Options) (xp3.Crypt, error) {
		if arg != "" {
			return nil, fmt.Errorf("%w: prefixlist takes no argument", ErrInvalidSpec)
		}
		// 状態を持つため毎回新しい値を返す
		return NewPrefixList(nil), nil
	})
	Register("cx", func(arg string, o Options) (xp3.Crypt, error) {
		params, err := ParseCxSpec(arg)
		if err != nil {
			return nil, err
		}
		return cxcrypt.NewCx("cx", params.Params, cxOptions(o)...)
	})
	Register("hx", func(arg string, o Options) (xp3.Crypt, error) {
		params, err := ParseCxSpec(arg)
		if err != nil {
			return nil, err
		}
		return cxcrypt.NewHx("hx", params, cxOptions(o)...)
	})
	Register("hxlite", func(arg string, _ Options) (xp3.Crypt, error) {
		params, err := ParseCxSpec(arg)
		if err != nil {
			return nil, err
		}
		return cxcrypt.NewHxLite("hxlite", params)
	})
}
