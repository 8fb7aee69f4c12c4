package scheme

import (
	"bytes"
	"fmt"
	"hash/adler32"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiroemons/go-xp3/pkg/xp3"
)

func writePrefixArchive(t *testing.T, list string, files map[string][]byte, limits map[uint32]int64) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.xp3")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := xp3.NewWriter(f, xp3.WithWriterCrypt(NewPrefixList(limits)))
	require.NoError(t, err)
	if list != "" {
		require.NoError(t, w.Add(PrefixListEntry, strings.NewReader(list), xp3.AddOptions{}))
	}
	for name, data := range files {
		require.NoError(t, w.Add(name, bytes.NewReader(data), xp3.AddOptions{Compress: true, Encrypt: true}))
	}
	require.NoError(t, w.Close())
	return path
}

func TestPrefixList_Bootstrap(t *testing.T) {
	data := bytes.Repeat([]byte("prefix list payload "), 50)
	hash := adler32.Checksum(data)
	limits := map[uint32]int64{hash: 5}
	list := fmt.Sprintf("# hash,limit\n%08x,5\ninvalid line\n", hash)

	path := writePrefixArchive(t, list, map[string][]byte{"payload.txt": data}, limits)

	archive, err := xp3.Open(path, xp3.WithCrypt(NewPrefixList(nil)))
	require.NoError(t, err)
	defer archive.Close()

	e, ok := archive.Lookup("payload.txt")
	require.True(t, ok)
	assert.True(t, e.Encrypted)

	raw, err := archive.OpenRaw(e)
	require.NoError(t, err)
	stored := new(bytes.Buffer)
	_, err = stored.ReadFrom(raw)
	require.NoError(t, err)
	require.NoError(t, raw.Close())
	assert.NotEqual(t, data[:5], stored.Bytes()[:5])
	assert.Equal(t, data[5:], stored.Bytes()[5:])

	got, err := archive.ReadEntry(e)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestPrefixList_MissingList(t *testing.T) {
	data := []byte("no list here")
	path := writePrefixArchive(t, "", map[string][]byte{"a.txt": data}, map[uint32]int64{})

	archive, err := xp3.Open(path, xp3.WithCrypt(NewPrefixList(nil)))
	require.NoError(t, err)
	defer archive.Close()

	e, ok := archive.Lookup("a.txt")
	require.True(t, ok)
	_, err = archive.ReadEntry(e)
	require.ErrorIs(t, err, xp3.ErrMissingMaterial)
}

func TestPrefixList_NotLoaded(t *testing.T) {
	err := NewPrefixList(nil).Decrypt(&xp3.Entry{}, 0, make([]byte, 4))
	require.ErrorIs(t, err, xp3.ErrMissingMaterial)
}

func TestParsePrefixList(t *testing.T) {
	limits, err := ParsePrefixList(strings.NewReader("0000abcd, 0x20\nDEADBEEF,16\n# comment\n12,-1\nbad\n"))
	require.NoError(t, err)
	assert.Equal(t, map[uint32]int64{0xABCD: 0x20, 0xDEADBEEF: 16}, limits)

	c := NewPrefixList(limits)
	assert.Equal(t, int64(16), c.Limit(0xDEADBEEF))
	assert.Equal(t, int64(DefaultPrefixLimit), c.Limit(1))
}
