package xp3

import (
	"bytes"
	"errors"
	"hash/adler32"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_PlainEntry(t *testing.T) {
	payload := []byte("hello world")
	index := chunk(tagFile,
		infoChunk(t, 0, 11, 11, "a.txt"),
		segmChunk(segSpec{offset: dataStart, plain: 11, stored: 11}),
		adlrChunk(adler32.Checksum(payload)),
	)

	for _, compressIndex := range []bool{false, true} {
		archive, err := openBytes(t, buildArchive(t, payload, index, compressIndex))
		require.NoError(t, err)

		require.Len(t, archive.Entries(), 1)
		e := archive.Entries()[0]
		assert.Equal(t, "a.txt", e.Name)
		assert.Equal(t, int64(11), e.PlainSize)
		assert.False(t, e.Encrypted)
		assert.Equal(t, adler32.Checksum(payload), e.Hash)

		got, err := archive.ReadEntry(e)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
		require.NoError(t, archive.Close())
	}
}

func TestOpen_FormatMismatch(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"空のファイル", nil},
		{"不正な識別子", make([]byte, 64)},
		{"ヘッダのみ", Magic},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openBytes(t, tt.data)
			require.Error(t, err)
			assert.True(t, IsFormatMismatch(err))
		})
	}
}

func TestOpen_Corruption(t *testing.T) {
	payload := []byte("0123456789")
	validFile := func(segs ...segSpec) []byte {
		return chunk(tagFile, infoChunk(t, 0, 10, 10, "x"), segmChunk(segs...), adlrChunk(1))
	}

	tests := []struct {
		name  string
		index []byte
	}{
		{
			name:  "範囲外のセグメント",
			index: validFile(segSpec{offset: 0x7FFFFFFF, plain: 10, stored: 10}),
		},
		{
			name:  "ファイル末尾を越えるセグメント",
			index: validFile(segSpec{offset: 1 << 20, plain: 10, stored: 10}),
		},
		{
			name:  "巨大なセグメントサイズ",
			index: validFile(segSpec{offset: dataStart, plain: 10, stored: 1 << 62}),
		},
		{
			name:  "展開後サイズの合計が不一致",
			index: validFile(segSpec{offset: dataStart, plain: 5, stored: 5}),
		},
		{
			name:  "親チャンクを越えるチャンク",
			index: cat([]byte(tagFile), le64(1000), make([]byte, 16)),
		},
		{
			name:  "エントリなし",
			index: chunk("junk", []byte{1, 2, 3}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := openBytes(t, buildArchive(t, payload, tt.index, false))
			require.Error(t, err)
			assert.True(t, IsFormatMismatch(err))
			assert.ErrorIs(t, err, ErrCorrupted)
		})
	}
}

func TestOpen_IndexSizeBeyondFile(t *testing.T) {
	archive := cat(Magic, le64(dataStart), []byte{indexEncodeRaw}, le64(1<<40))
	_, err := openBytes(t, archive)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)

	archive = cat(Magic, le64(dataStart), []byte{indexEncodeZlib}, le64(4), le64(MaxIndexSize+1), []byte{0, 0, 0, 0})
	_, err = openBytes(t, archive)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestOpen_Version2Header(t *testing.T) {
	payload := []byte("v2 data")
	cushionLen := uint64(cushionHeaderSize - headerSize)
	dataOffset := uint64(cushionHeaderSize)
	index := chunk(tagFile,
		infoChunk(t, 0, uint64(len(payload)), uint64(len(payload)), "v2.txt"),
		segmChunk(segSpec{offset: dataOffset, plain: uint64(len(payload)), stored: uint64(len(payload))}),
		adlrChunk(0),
	)
	indexOffset := dataOffset + uint64(len(payload))
	cushion := cat(le32(1), []byte{indexContinue}, make([]byte, 8), le64(indexOffset))
	require.Len(t, cushion, int(cushionLen))

	data := cat(Magic, le64(cushionOffset), cushion, payload, []byte{indexEncodeRaw}, le64(uint64(len(index))), index)
	archive, err := openBytes(t, data)
	require.NoError(t, err)

	e, ok := archive.Lookup("v2.txt")
	require.True(t, ok)
	got, err := archive.ReadEntry(e)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestOpen_NameResolution(t *testing.T) {
	payload := []byte("abcd")
	seg := segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4})
	file := func(name string, hash uint32) []byte {
		return chunk(tagFile, infoChunk(t, 0, 4, 4, name), seg, adlrChunk(hash))
	}

	t.Run("ハッシュ名前表で解決", func(t *testing.T) {
		index := cat(file("", 0x1234), hnfnChunk(t, 0x1234, "scenario/first.ks"))
		archive, err := openBytes(t, buildArchive(t, payload, index, true))
		require.NoError(t, err)
		_, ok := archive.Lookup("scenario/first.ks")
		assert.True(t, ok)
	})

	t.Run("ハッシュ形式の名前を置き換え", func(t *testing.T) {
		index := cat(hnfnChunk(t, 0xCAFE, "image/bg.png"), file("0123456789abcdef0123456789abcdef", 0xCAFE))
		archive, err := openBytes(t, buildArchive(t, payload, index, false))
		require.NoError(t, err)
		assert.Equal(t, "image/bg.png", archive.Entries()[0].Name)
	})

	t.Run("競合する対応は破棄", func(t *testing.T) {
		index := cat(file("", 0xABCD), hnfnChunk(t, 0xABCD, "a.txt"), hnfnChunk(t, 0xABCD, "b.txt"), hnfnChunk(t, 0xABCD, "a.txt"))
		archive, err := openBytes(t, buildArchive(t, payload, index, false))
		require.NoError(t, err)
		assert.Equal(t, "0000ABCD", archive.Entries()[0].Name)
	})

	t.Run("名前一覧で解決", func(t *testing.T) {
		index := file("", 0xDEADBEEF)
		archive, err := openBytes(t, buildArchive(t, payload, index, false),
			WithNameList(NameList{"deadbeef": "sound/se.ogg"}))
		require.NoError(t, err)
		assert.Equal(t, "sound/se.ogg", archive.Entries()[0].Name)
	})

	t.Run("重複した名前は後のものを除外", func(t *testing.T) {
		index := cat(file("dup.txt", 1), file("dup.txt", 2), file("other.txt", 3))
		archive, err := openBytes(t, buildArchive(t, payload, index, false))
		require.NoError(t, err)
		require.Len(t, archive.Entries(), 2)
		e, _ := archive.Lookup("dup.txt")
		assert.Equal(t, uint32(1), e.Hash)
	})
}

func TestOpen_AmbiguousEntryDiscarded(t *testing.T) {
	payload := []byte("abcd")
	seg := segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4})
	index := cat(
		chunk(tagFile, infoChunk(t, 0, 4, 4, "twice-info"), infoChunk(t, 0, 4, 4, "other"), seg, adlrChunk(1)),
		chunk(tagFile, infoChunk(t, 0, 4, 4, "twice-adlr"), seg, adlrChunk(1), adlrChunk(2)),
		chunk(tagFile, infoChunk(t, 0, 4, 4, "good"), seg, adlrChunk(3), chunk("zzzz", []byte{9})),
		chunk("unkn", []byte("ignored")),
	)
	archive, err := openBytes(t, buildArchive(t, payload, index, false))
	require.NoError(t, err)
	require.Len(t, archive.Entries(), 1)
	assert.Equal(t, "good", archive.Entries()[0].Name)
}

func TestArchive_Enumerate(t *testing.T) {
	archive := &Archive{curIndex: -1}
	assert.False(t, archive.EnumFirst())
	assert.False(t, archive.EnumNext())
	assert.Equal(t, "", archive.GetEntryName())
	assert.Equal(t, int64(0), archive.GetOriginalSize())
	assert.Nil(t, archive.GetEntry())

	payload := []byte("aaaabbbb")
	index := cat(
		chunk(tagFile, infoChunk(t, 0, 4, 4, "a"), segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4}), adlrChunk(1)),
		chunk(tagFile, infoChunk(t, 0, 4, 4, "b"), segmChunk(segSpec{offset: dataStart + 4, plain: 4, stored: 4}), adlrChunk(2)),
	)
	archive, err := openBytes(t, buildArchive(t, payload, index, false))
	require.NoError(t, err)

	var names []string
	for ok := archive.EnumFirst(); ok; ok = archive.EnumNext() {
		names = append(names, archive.GetEntryName())
		assert.Equal(t, int64(4), archive.GetOriginalSize())
		assert.Equal(t, int64(4), archive.GetCompressedSize())
	}
	assert.Equal(t, []string{"a", "b"}, names)
}

type countingInit struct {
	xorCrypt
	calls int
	err   error
}

func (c *countingInit) Init(ArchiveView) error {
	c.calls++
	return c.err
}

func TestArchive_InitOnce(t *testing.T) {
	payload := []byte("xyz")
	index := chunk(tagFile, infoChunk(t, infoFlagEncrypted, 3, 3, "enc"),
		segmChunk(segSpec{offset: dataStart, plain: 3, stored: 3}), adlrChunk(1))
	data := buildArchive(t, payload, index, false)

	crypt := &countingInit{err: ErrMissingMaterial}
	archive, err := openBytes(t, data, WithCrypt(crypt))
	require.NoError(t, err)
	e := archive.Entries()[0]

	for i := 0; i < 3; i++ {
		_, err := archive.OpenEntry(e)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrMissingMaterial)
		var entryErr *EntryError
		require.True(t, errors.As(err, &entryErr))
		assert.Equal(t, "enc", entryErr.Entry)
		assert.Equal(t, "testxor", entryErr.Scheme)
	}
	assert.Equal(t, 1, crypt.calls)

	raw, err := archive.OpenRaw(e)
	require.NoError(t, err)
	got, err := io.ReadAll(raw)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestArchive_ExtractCallback(t *testing.T) {
	payload := []byte("data")
	index := chunk(tagFile, infoChunk(t, 0, 4, 4, "cb"), segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4}), adlrChunk(1))
	archive, err := openBytes(t, buildArchive(t, payload, index, false))
	require.NoError(t, err)
	require.True(t, archive.EnumFirst())

	var sink writerFunc
	err = archive.Extract(&sink, func(string) bool { return false })
	assert.Error(t, err)
	assert.Empty(t, sink)

	var messages []string
	err = archive.Extract(&sink, func(msg string) bool {
		messages = append(messages, msg)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, writerFunc("data"), sink)
	assert.Equal(t, []string{"cb", " extracting...", " finished.\n"}, messages)
}

type writerFunc []byte

func (w *writerFunc) Write(p []byte) (int, error) {
	*w = append(*w, p...)
	return len(p), nil
}

func TestOpen_File(t *testing.T) {
	payload := []byte("on disk")
	index := chunk(tagFile, infoChunk(t, 0, 7, 7, "disk.txt"), segmChunk(segSpec{offset: dataStart, plain: 7, stored: 7}), adlrChunk(0x55))
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xp3")
	require.NoError(t, os.WriteFile(path, buildArchive(t, payload, index, true), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.lst"), []byte("disk.txt:renamed.txt\n"), 0644))

	archive, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, path, archive.Path())
	_, ok := archive.Lookup("renamed.txt")
	assert.True(t, ok)
	require.NoError(t, archive.Close())

	archive, err = Open(path, WithoutAutoNameList())
	require.NoError(t, err)
	_, ok = archive.Lookup("disk.txt")
	assert.True(t, ok)
	require.NoError(t, archive.Close())

	_, err = archive.OpenEntry(archive.Entries()[0])
	assert.ErrorIs(t, err, ErrClosed)

	_, err = Open(path + ".missing")
	assert.Error(t, err)
}

func TestOpen_MissingNameListFile(t *testing.T) {
	payload := []byte("abcd")
	index := chunk(tagFile, infoChunk(t, 0, 4, 4, ""), segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4}), adlrChunk(0xDEADBEEF))
	data := buildArchive(t, payload, index, false)
	dir := t.TempDir()
	path := filepath.Join(dir, "data.xp3")
	require.NoError(t, os.WriteFile(path, data, 0644))
	missing := filepath.Join(dir, "missing.lst")

	t.Run("Open", func(t *testing.T) {
		var logs bytes.Buffer
		archive, err := Open(path, WithNameListFile(missing), WithLogger(zerolog.New(&logs)))
		require.NoError(t, err)
		defer archive.Close()
		require.Len(t, archive.Entries(), 1)
		assert.Equal(t, "DEADBEEF", archive.Entries()[0].Name)
		assert.Contains(t, logs.String(), "name list ignored")
		assert.Contains(t, logs.String(), `"level":"warn"`)

		got, err := archive.ReadEntry(archive.Entries()[0])
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("OpenReader", func(t *testing.T) {
		archive, err := openBytes(t, data, WithNameListFile(missing))
		require.NoError(t, err)
		assert.Equal(t, "DEADBEEF", archive.Entries()[0].Name)
	})

	t.Run("ディレクトリを指定", func(t *testing.T) {
		archive, err := openBytes(t, data, WithNameListFile(dir))
		require.NoError(t, err)
		assert.Equal(t, "DEADBEEF", archive.Entries()[0].Name)
	})
}

func TestArchive_ExtractAll(t *testing.T) {
	path := writeArchive(t, []testEntry{
		{name: "script/first.ks", data: []byte("first")},
		{name: "image\\bg.tlg", data: []byte("bg"), opts: AddOptions{Compress: true}},
	})
	archive, err := Open(path)
	require.NoError(t, err)
	defer archive.Close()

	dir := t.TempDir()
	require.NoError(t, archive.ExtractAll(dir, nil))

	got, err := os.ReadFile(filepath.Join(dir, "script", "first.ks"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(got))
	got, err = os.ReadFile(filepath.Join(dir, "image", "bg.tlg"))
	require.NoError(t, err)
	assert.Equal(t, "bg", string(got))
}

func TestEntryPath(t *testing.T) {
	tests := []struct {
		name    string
		entry   string
		want    string
		wantErr bool
	}{
		{"通常のパス", "a/b.txt", filepath.Join("out", "a", "b.txt"), false},
		{"バックスラッシュ区切り", "a\\b.txt", filepath.Join("out", "a", "b.txt"), false},
		{"親ディレクトリへの脱出", "../evil.txt", "", true},
		{"絶対パス", "/etc/passwd", "", true},
		{"空の名前", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EntryPath("out", tt.entry)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrUnsafePath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// rejectingFilter はストリームを受け取ったまま失敗するフィルタ
type rejectingFilter struct {
	xorCrypt
	got io.ReadCloser
}

func (f *rejectingFilter) FilterEntry(_ *Entry, rc io.ReadCloser) (io.ReadCloser, error) {
	f.got = rc
	return nil, ErrCorrupted
}

func TestArchive_FilterErrorClosesStream(t *testing.T) {
	payload := []byte("abcd")
	index := chunk(tagFile, infoChunk(t, 0, 4, 4, "a.txt"), segmChunk(segSpec{offset: dataStart, plain: 4, stored: 4}), adlrChunk(1))
	filter := &rejectingFilter{}
	archive, err := openBytes(t, buildArchive(t, payload, index, false), WithCrypt(filter))
	require.NoError(t, err)

	_, err = archive.OpenEntry(archive.Entries()[0])
	require.ErrorIs(t, err, ErrCorrupted)
	require.NotNil(t, filter.got)
	_, err = filter.got.Read(make([]byte, 4))
	assert.ErrorIs(t, err, ErrClosed)
}
