package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/shiroemons/go-xp3/internal/xp3tool/errors"
	"github.com/shiroemons/go-xp3/internal/xp3tool/fileutil"
	"github.com/shiroemons/go-xp3/internal/xp3tool/mocks"
	"github.com/shiroemons/go-xp3/pkg/scheme"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

func TestCreator_Create(t *testing.T) {
	tests := []struct {
		name      string
		opts      CreateOptions
		encrypted bool
	}{
		{"既定の設定", CreateOptions{}, false},
		{"圧縮と分割", CreateOptions{Compress: true, CompressIndex: true, SegmentSize: 100}, false},
		{"暗号化", CreateOptions{Crypt: scheme.SeitenCrypt{}, Encrypt: true, Compress: true}, true},
		{"スキームなしの暗号化指定は無視", CreateOptions{Encrypt: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := mocks.NewMockFileSystem()
			for _, f := range sampleFiles {
				fs.Files[filepath.Join("src", filepath.FromSlash(f.name))] = f.data
			}
			archivePath := filepath.Join(t.TempDir(), "new.xp3")

			n, err := NewCreator(zerolog.Nop(), fs).Create(context.Background(), archivePath, "src", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, len(sampleFiles), n)

			opts := []xp3.Option{}
			if tt.opts.Crypt != nil {
				opts = append(opts, xp3.WithCrypt(tt.opts.Crypt))
			}
			a, err := xp3.Open(archivePath, opts...)
			require.NoError(t, err)
			defer a.Close()

			for _, f := range sampleFiles {
				e, ok := a.Lookup(f.name)
				require.True(t, ok, f.name)
				assert.Equal(t, tt.encrypted, e.Encrypted)
				got, err := a.ReadEntry(e)
				require.NoError(t, err)
				assert.Equal(t, f.data, got)
			}
		})
	}
}

func TestCreator_FromDisk(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "sub", "a.txt"), []byte("a"), 0o644))
	archivePath := filepath.Join(t.TempDir(), "disk.xp3")

	n, err := NewCreator(zerolog.Nop(), fileutil.NewOSFileSystem()).Create(context.Background(), archivePath, src, CreateOptions{Compress: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	a, err := xp3.Open(archivePath)
	require.NoError(t, err)
	defer a.Close()
	_, ok := a.Lookup("sub/a.txt")
	assert.True(t, ok)
}

func TestCreator_Errors(t *testing.T) {
	t.Run("空のディレクトリ", func(t *testing.T) {
		fs := mocks.NewMockFileSystem()
		fs.Dirs["src"] = true
		_, err := NewCreator(zerolog.Nop(), fs).Create(context.Background(), filepath.Join(t.TempDir(), "x.xp3"), "src", CreateOptions{})
		require.ErrorIs(t, err, apperrors.ErrNoSourceFiles)
	})

	t.Run("復号専用のスキーム", func(t *testing.T) {
		fs := mocks.NewMockFileSystem()
		fs.Files[filepath.Join("src", "a.txt")] = []byte("a")
		c, err := scheme.New("hxlite")
		require.NoError(t, err)

		_, err = NewCreator(zerolog.Nop(), fs).Create(context.Background(), filepath.Join(t.TempDir(), "x.xp3"), "src", CreateOptions{Crypt: c, Encrypt: true})
		require.ErrorIs(t, err, xp3.ErrEncryptUnsupported)
	})
}
