package cxcrypt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// ControlBlockWords は制御ブロックの語数
const ControlBlockWords = 1024

// ControlBlockSignature はプラグインモジュール内で制御ブロックの直前に置かれる識別子
var ControlBlockSignature = []byte(" Encryption control block")

// ControlBlock はプラグインモジュールから取り出した1024語の表です
type ControlBlock [ControlBlockWords]uint32

// FindControlBlock はモジュールのバイト列から制御ブロックを取り出します。
// 識別子は4バイト境界で探し、その直後の4バイト境界から1024語をビット反転して読み込みます。
func FindControlBlock(module []byte) (*ControlBlock, error) {
	sig := ControlBlockSignature
	for i := 0; i+len(sig) <= len(module); i += 4 {
		if !bytes.Equal(module[i:i+len(sig)], sig) {
			continue
		}
		start := (i + len(sig) + 3) &^ 3
		if start+ControlBlockWords*4 > len(module) {
			return nil, fmt.Errorf("%w: truncated after signature at %#x", ErrControlBlockNotFound, i)
		}
		cb := new(ControlBlock)
		for j := range cb {
			cb[j] = ^binary.LittleEndian.Uint32(module[start+j*4:])
		}
		return cb, nil
	}
	return nil, ErrControlBlockNotFound
}

// LoadControlBlock はプラグインモジュールのファイルから制御ブロックを読み込みます
func LoadControlBlock(path string) (*ControlBlock, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plugin module: %w", err)
	}
	cb, err := FindControlBlock(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cb, nil
}

// FindPlugins はアーカイブのディレクトリとその plugin サブディレクトリにある *.tpm を列挙します
func FindPlugins(archivePath string) []string {
	if archivePath == "" {
		return nil
	}
	dir := filepath.Dir(archivePath)
	var found []string
	for _, d := range []string{dir, filepath.Join(dir, "plugin")} {
		matches, _ := filepath.Glob(filepath.Join(d, "*.tpm"))
		sort.Strings(matches)
		found = append(found, matches...)
	}
	return found
}

// locateControlBlock は明示されたパス、またはアーカイブ周辺のプラグインから制御ブロックを読み込みます
func locateControlBlock(explicit, archivePath string) (*ControlBlock, error) {
	if explicit != "" {
		cb, err := LoadControlBlock(explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", xp3.ErrMissingMaterial, err)
		}
		return cb, nil
	}
	plugins := FindPlugins(archivePath)
	for _, path := range plugins {
		if cb, err := LoadControlBlock(path); err == nil {
			return cb, nil
		}
	}
	return nil, fmt.Errorf("%w: no plugin module with a control block near %q (%d candidates)",
		xp3.ErrMissingMaterial, archivePath, len(plugins))
}

// SeededControlBlock は LCG で埋めた制御ブロックを返します。
// テストや独自タイトルの作成に使用します。
func SeededControlBlock(seed uint32) *ControlBlock {
	g := crypto.NewLCG(seed)
	cb := new(ControlBlock)
	for i := range cb {
		cb[i] = g.Next()
	}
	return cb
}

// Module は制御ブロックを識別子付きのモジュール形式で返します。FindControlBlock の逆変換です。
func (cb *ControlBlock) Module() []byte {
	module := make([]byte, 0, 4+len(ControlBlockSignature)+3+ControlBlockWords*4)
	module = append(module, "TPM\x00"...)
	module = append(module, ControlBlockSignature...)
	for len(module)%4 != 0 {
		module = append(module, 0)
	}
	for _, w := range cb {
		module = binary.LittleEndian.AppendUint32(module, ^w)
	}
	return module
}
