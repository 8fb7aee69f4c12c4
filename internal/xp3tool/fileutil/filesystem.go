// Package fileutil はファイル操作のユーティリティ関数を提供します
package fileutil

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
)

// OSFileSystem は実際のOSファイルシステムを使用する実装
type OSFileSystem struct{}

// NewOSFileSystem は新しいOSFileSystemを作成します
func NewOSFileSystem() *OSFileSystem {
	return &OSFileSystem{}
}

// FileExists はファイルが存在するか確認します
func (f *OSFileSystem) FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// MkdirAll はディレクトリを作成します
func (f *OSFileSystem) MkdirAll(path string, perm uint32) error {
	if err := os.MkdirAll(path, os.FileMode(perm)); err != nil {
		return fmt.Errorf("%w: %w", ErrCreateDirectory, err)
	}
	return nil
}

// Create はファイルを作成します
func (f *OSFileSystem) Create(filename string) (io.WriteCloser, error) {
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCreateFile, err)
	}
	return file, nil
}

// Open はファイルを読み込み用に開きます
func (f *OSFileSystem) Open(filename string) (io.ReadCloser, error) {
	return os.Open(filename)
}

// WalkFiles は dir 以下の通常ファイルを '/' 区切りの相対パスで昇順に返します
func (f *OSFileSystem) WalkFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadDirectory, err)
	}
	slices.Sort(files)
	return files, nil
}
