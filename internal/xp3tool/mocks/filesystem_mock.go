// Package mocks はテスト用のモック実装を提供します
package mocks

import (
	"bytes"
	"errors"
	"io"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// MockFileSystem はテスト用のファイルシステムモック。
// 並列の抽出から呼ばれるため排他制御を行います。
type MockFileSystem struct {
	mu    sync.Mutex
	Files map[string][]byte
	Dirs  map[string]bool
	Error error
}

// NewMockFileSystem は新しいMockFileSystemを作成します
func NewMockFileSystem() *MockFileSystem {
	return &MockFileSystem{
		Files: make(map[string][]byte),
		Dirs:  make(map[string]bool),
	}
}

// FileExists はファイルが存在するか確認します
func (fs *MockFileSystem) FileExists(filename string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	_, exists := fs.Files[filename]
	return exists
}

// File は書き込まれたファイルの内容を返します
func (fs *MockFileSystem) File(filename string) ([]byte, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	data, ok := fs.Files[filename]
	return data, ok
}

// MkdirAll はディレクトリを作成します
func (fs *MockFileSystem) MkdirAll(path string, perm uint32) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return fs.Error
	}
	fs.Dirs[path] = true
	return nil
}

// Create はファイルを作成します。内容は Close で反映されます。
func (fs *MockFileSystem) Create(filename string) (io.WriteCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	if !fs.Dirs[filepath.Dir(filename)] {
		return nil, errors.New("directory not found")
	}
	return &mockFile{fs: fs, name: filename}, nil
}

// Open はファイルを読み込み用に開きます
func (fs *MockFileSystem) Open(filename string) (io.ReadCloser, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	data, exists := fs.Files[filename]
	if !exists {
		return nil, errors.New("file not found")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WalkFiles は dir 以下のファイルを '/' 区切りの相対パスで昇順に返します
func (fs *MockFileSystem) WalkFiles(dir string) ([]string, error) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.Error != nil {
		return nil, fs.Error
	}
	prefix := filepath.ToSlash(dir) + "/"
	var files []string
	for name := range fs.Files {
		slashed := filepath.ToSlash(name)
		if rel, ok := strings.CutPrefix(slashed, prefix); ok {
			files = append(files, path.Clean(rel))
		}
	}
	if len(files) == 0 && !fs.Dirs[dir] {
		return nil, errors.New("directory not found")
	}
	slices.Sort(files)
	return files, nil
}

// mockFile は MockFileSystem に書き込むファイル
type mockFile struct {
	fs   *MockFileSystem
	name string
	buf  bytes.Buffer
}

func (f *mockFile) Write(p []byte) (int, error) {
	return f.buf.Write(p)
}

func (f *mockFile) Close() error {
	f.fs.mu.Lock()
	defer f.fs.mu.Unlock()
	f.fs.Files[f.name] = f.buf.Bytes()
	return nil
}
