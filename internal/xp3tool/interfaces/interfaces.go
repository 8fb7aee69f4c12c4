// Package interfaces は xp3tool コマンドで使用するインターフェースを定義します
package interfaces

import "io"

// FileSystem はファイルシステム操作のインターフェース
type FileSystem interface {
	FileExists(filename string) bool
	MkdirAll(path string, perm uint32) error
	Create(filename string) (io.WriteCloser, error)
	Open(filename string) (io.ReadCloser, error)
	// WalkFiles は dir 以下の通常ファイルを '/' 区切りの相対パスで昇順に返します
	WalkFiles(dir string) ([]string, error)
}
