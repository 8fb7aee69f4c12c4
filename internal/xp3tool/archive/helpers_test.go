package archive

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/shiroemons/go-xp3/pkg/xp3"
)

type testFile struct {
	name string
	data []byte
}

// writeTestArchive は dir/name にアーカイブを作成します
func writeTestArchive(t *testing.T, dir, name string, c xp3.Crypt, files ...testFile) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	var opts []xp3.WriterOption
	if c != nil {
		opts = append(opts, xp3.WithWriterCrypt(c))
	}
	w, err := xp3.NewWriter(f, opts...)
	require.NoError(t, err)
	for _, file := range files {
		require.NoError(t, w.Add(file.name, bytes.NewReader(file.data), xp3.AddOptions{Compress: true, Encrypt: c != nil}))
	}
	require.NoError(t, w.Close())
	return path
}

var sampleFiles = []testFile{
	{"scenario/first.ks", []byte("*start\n[cm]\nはじめまして\n")},
	{"image/bg01.png", bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 300)},
	{"startup.tjs", []byte("Scripts.execStorage(\"system.tjs\");")},
}
