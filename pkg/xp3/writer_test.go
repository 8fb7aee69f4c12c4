package xp3

import (
	"bytes"
	"errors"
	"fmt"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntry struct {
	name string
	data []byte
	opts AddOptions
}

func writeArchive(t *testing.T, entries []testEntry, opts ...WriterOption) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "out.xp3")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, opts...)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, w.Add(e.name, bytes.NewReader(e.data), e.opts))
	}
	require.NoError(t, w.Close())
	return path
}

func TestWriter_RoundTrip(t *testing.T) {
	big := bytes.Repeat([]byte("segment "), 1000)
	entries := []testEntry{
		{name: "plain.txt", data: []byte("plain text")},
		{name: "packed.bin", data: big, opts: AddOptions{Compress: true, Timestamp: 132000000000000000}},
		{name: "日本語/ファイル.ks", data: []byte("マルチバイト")},
		{name: "empty", data: nil, opts: AddOptions{Compress: true}},
	}

	tests := []struct {
		name string
		opts []WriterOption
	}{
		{"既定の設定", nil},
		{"非圧縮インデックス", []WriterOption{WithIndexCompression(false)}},
		{"セグメント分割", []WriterOption{WithSegmentSize(1000)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArchive(t, entries, tt.opts...)
			archive, err := Open(path)
			require.NoError(t, err)
			defer archive.Close()

			require.Len(t, archive.Entries(), len(entries))
			for _, want := range entries {
				e, ok := archive.Lookup(want.name)
				require.True(t, ok, want.name)
				assert.Equal(t, int64(len(want.data)), e.PlainSize)
				assert.Equal(t, adler32.Checksum(want.data), e.Hash)
				assert.Equal(t, want.opts.Timestamp, e.Timestamp)
				got, err := archive.ReadEntry(e)
				require.NoError(t, err)
				assert.Equal(t, len(want.data), len(got))
				assert.True(t, bytes.Equal(want.data, got), want.name)
			}
		})
	}
}

func TestWriter_SegmentSplit(t *testing.T) {
	data := make([]byte, 32)
	for i := range data {
		data[i] = byte(i)
	}
	path := writeArchive(t, []testEntry{{name: "split", data: data}}, WithSegmentSize(10))
	archive, err := Open(path)
	require.NoError(t, err)
	defer archive.Close()

	e := archive.Entries()[0]
	require.Len(t, e.Segments, 4)
	var sizes []int64
	for _, s := range e.Segments {
		sizes = append(sizes, s.PlainSize)
	}
	assert.Equal(t, []int64{10, 10, 10, 2}, sizes)
	got, err := archive.ReadEntry(e)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestWriter_Encrypt(t *testing.T) {
	plain := []byte("encrypted payload")

	for _, afterHash := range []bool{false, true} {
		t.Run(fmt.Sprintf("HashAfterCrypt=%v", afterHash), func(t *testing.T) {
			crypt := xorCrypt{key: 0x5A, afterHash: afterHash}
			path := writeArchive(t, []testEntry{{name: "e", data: plain, opts: AddOptions{Encrypt: true, Compress: true}}},
				WithWriterCrypt(crypt))

			archive, err := Open(path, WithCrypt(crypt))
			require.NoError(t, err)
			defer archive.Close()

			e := archive.Entries()[0]
			assert.True(t, e.Encrypted)
			cipher := bytes.Clone(plain)
			for i := range cipher {
				cipher[i] ^= 0x5A
			}
			if afterHash {
				assert.Equal(t, adler32.Checksum(cipher), e.Hash)
			} else {
				assert.Equal(t, adler32.Checksum(plain), e.Hash)
			}
			got, err := archive.ReadEntry(e)
			require.NoError(t, err)
			assert.Equal(t, plain, got)
		})
	}
}

type decryptOnly struct{ xorCrypt }

func (decryptOnly) Encrypt(*Entry, int64, []byte) error { return ErrEncryptUnsupported }

func TestWriter_Errors(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "err.xp3"))
	require.NoError(t, err)
	defer f.Close()

	w, err := NewWriter(f, WithWriterCrypt(decryptOnly{}))
	require.NoError(t, err)

	require.NoError(t, w.Add("a", strings.NewReader("a"), AddOptions{}))
	err = w.Add("a", strings.NewReader("again"), AddOptions{})
	assert.ErrorIs(t, err, ErrDuplicateName)

	err = w.Add("b", strings.NewReader("b"), AddOptions{Encrypt: true})
	assert.ErrorIs(t, err, ErrEncryptUnsupported)

	assert.Error(t, w.Add("", strings.NewReader(""), AddOptions{}))

	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Add("c", strings.NewReader("c"), AddOptions{}), ErrClosed)

	archive, err := Open(f.Name())
	require.NoError(t, err)
	defer archive.Close()
	require.Len(t, archive.Entries(), 1)
	assert.Equal(t, "a", archive.Entries()[0].Name)
}

// archiveKeyCrypt はアーカイブ内の key.bin から鍵を読み込むスキーム
type archiveKeyCrypt struct {
	calls int
	path  string
	key   []byte
}

func (c *archiveKeyCrypt) Name() string { return "archivekey" }

func (c *archiveKeyCrypt) Init(a ArchiveView) error {
	c.calls++
	c.path = a.Path()
	e, ok := a.Lookup("key.bin")
	if !ok {
		return ErrMissingMaterial
	}
	rc, err := a.OpenRaw(e)
	if err != nil {
		return err
	}
	defer rc.Close()
	c.key, err = io.ReadAll(rc)
	return err
}

func (c *archiveKeyCrypt) Decrypt(_ *Entry, offset int64, buf []byte) error {
	if len(c.key) == 0 {
		return ErrMissingMaterial
	}
	for i := range buf {
		buf[i] ^= c.key[(offset+int64(i))%int64(len(c.key))]
	}
	return nil
}

func (c *archiveKeyCrypt) Encrypt(e *Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

func (c *archiveKeyCrypt) HashAfterCrypt() bool { return false }

func TestWriter_InitBeforeEncrypt(t *testing.T) {
	plain := []byte("payload encrypted with a key stored in the archive")
	key := []byte{0x11, 0x22, 0x33}

	crypt := &archiveKeyCrypt{}
	path := writeArchive(t, []testEntry{
		{name: "key.bin", data: key, opts: AddOptions{Compress: true}},
		{name: "a.txt", data: plain, opts: AddOptions{Encrypt: true}},
		{name: "b.txt", data: plain, opts: AddOptions{Encrypt: true, Compress: true}},
	}, WithWriterCrypt(crypt))

	assert.Equal(t, 1, crypt.calls)
	assert.Equal(t, path, crypt.path)
	assert.Equal(t, key, crypt.key)

	archive, err := Open(path, WithCrypt(&archiveKeyCrypt{}))
	require.NoError(t, err)
	defer archive.Close()

	for _, name := range []string{"a.txt", "b.txt"} {
		e, ok := archive.Lookup(name)
		require.True(t, ok)
		raw, err := archive.OpenRaw(e)
		require.NoError(t, err)
		stored, err := io.ReadAll(raw)
		require.NoError(t, err)
		require.NoError(t, raw.Close())
		if !e.Compressed {
			assert.NotEqual(t, plain, stored)
		}

		got, err := archive.ReadEntry(e)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestWriter_InitFailure(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "nokey.xp3"))
	require.NoError(t, err)
	defer f.Close()

	crypt := &archiveKeyCrypt{}
	w, err := NewWriter(f, WithWriterCrypt(crypt))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		err = w.Add(fmt.Sprintf("%d.txt", i), strings.NewReader("data"), AddOptions{Encrypt: true})
		require.ErrorIs(t, err, ErrMissingMaterial)
		var entryErr *EntryError
		require.True(t, errors.As(err, &entryErr))
		assert.Equal(t, "init", entryErr.Op)
	}
	assert.Equal(t, 1, crypt.calls)
	require.NoError(t, w.Add("plain.txt", strings.NewReader("data"), AddOptions{}))
	require.NoError(t, w.Close())
}

func TestWriterView_OpenRawAfterPrefix(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "prefixed.bin"))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Write(bytes.Repeat([]byte{0xCC}, 37))
	require.NoError(t, err)
	w, err := NewWriter(f, WithSegmentSize(4))
	require.NoError(t, err)
	require.NoError(t, w.Add("k", strings.NewReader("0123456789"), AddOptions{Compress: true}))

	view := writerView{w}
	assert.Equal(t, f.Name(), view.Path())
	require.Len(t, view.Entries(), 1)
	e, ok := view.Lookup("k")
	require.True(t, ok)
	rc, err := view.OpenRaw(e)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, []byte("0123456789"), got)
	assert.Equal(t, int64(headerSize), e.Segments[0].Offset)
}
