package xp3

import (
	"errors"
	"fmt"
)

var (
	// ErrFormatMismatch はXP3形式ではない場合のエラー。
	// 形式判定では次の形式を試すべきことを示します。
	ErrFormatMismatch = errors.New("xp3: not an XP3 archive")

	// ErrCorrupted は構造的な不整合 (範囲外オフセット、サイズの桁あふれ等) を示すエラー
	ErrCorrupted = errors.New("xp3: corrupted archive")

	// ErrMissingMaterial は制御ブロックやプラグインモジュールなど復号に必要な資料がない場合のエラー
	ErrMissingMaterial = errors.New("xp3: missing cryptographic material")

	// ErrEncryptUnsupported は復号専用のスキームで暗号化を要求した場合のエラー
	ErrEncryptUnsupported = errors.New("xp3: scheme does not support encryption")

	// ErrDuplicateName は書き込み時に同じエントリ名が指定された場合のエラー
	ErrDuplicateName = errors.New("xp3: duplicate entry name")

	// ErrEntryNotFound はエントリが見つからない場合のエラー
	ErrEntryNotFound = errors.New("xp3: entry not found")

	// ErrClosed は閉じたアーカイブやストリームを使用した場合のエラー
	ErrClosed = errors.New("xp3: use of closed archive")

	// ErrUnsafePath は抽出先ディレクトリの外を指すエントリ名の場合のエラー
	ErrUnsafePath = errors.New("xp3: unsafe entry path")
)

// IsFormatMismatch は err が形式不一致 (構造破損を含む) かどうかを返します
func IsFormatMismatch(err error) bool {
	return errors.Is(err, ErrFormatMismatch)
}

// corruptf はオープン時に検出した構造破損のエラーを作成します。
// 形式判定が次の形式に進めるよう ErrFormatMismatch も包みます。
func corruptf(format string, a ...any) error {
	return fmt.Errorf("%w: %w: %s", ErrFormatMismatch, ErrCorrupted, fmt.Sprintf(format, a...))
}

// EntryError はエントリの読み書き中に発生したエラー
type EntryError struct {
	Op     string // 実行していた操作
	Entry  string // エントリ名
	Scheme string // 暗号スキーム名
	Err    error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *EntryError) Error() string {
	if e.Scheme != "" {
		return fmt.Sprintf("xp3: %s %s (scheme %s): %v", e.Op, e.Entry, e.Scheme, e.Err)
	}
	return fmt.Sprintf("xp3: %s %s: %v", e.Op, e.Entry, e.Err)
}

// Unwrap は元のエラーを返します
func (e *EntryError) Unwrap() error {
	return e.Err
}
