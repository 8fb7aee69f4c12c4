// Package errors は xp3tool のカスタムエラータイプを提供します
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrFilesNotFound は指定されたファイルの一部がアーカイブにない場合のエラー
	ErrFilesNotFound = errors.New("指定されたファイルがアーカイブに見つかりません")

	// ErrNoSourceFiles は作成元のディレクトリにファイルがない場合のエラー
	ErrNoSourceFiles = errors.New("作成元のディレクトリにファイルがありません")
)

// ArchiveError はアーカイブ関連のエラー
type ArchiveError struct {
	Op   string // 実行していた操作
	Path string // ファイルパス
	Err  error  // 元のエラー
}

// Error はエラーメッセージを返します
func (e *ArchiveError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返します
func (e *ArchiveError) Unwrap() error {
	return e.Err
}

// NewArchiveError は新しいArchiveErrorを作成します
func NewArchiveError(op, path string, err error) *ArchiveError {
	return &ArchiveError{
		Op:   op,
		Path: path,
		Err:  err,
	}
}
