package xp3

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/require"
)

// dataStart は buildArchive が生成するアーカイブのデータ領域の開始位置
const dataStart = headerSize

func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func cat(parts ...[]byte) []byte {
	return bytes.Join(parts, nil)
}

func chunk(tag string, body ...[]byte) []byte {
	b := cat(body...)
	return cat([]byte(tag), le64(uint64(len(b))), b)
}

func utf16Name(t *testing.T, name string) []byte {
	t.Helper()
	b, err := EncodeUTF16(name)
	require.NoError(t, err)
	return cat(le16(uint16(len(b)/2)), b)
}

func infoChunk(t *testing.T, flags uint32, plain, stored uint64, name string) []byte {
	return chunk(tagInfo, le32(flags), le64(plain), le64(stored), utf16Name(t, name))
}

type segSpec struct {
	compressed bool
	offset     uint64
	plain      uint64
	stored     uint64
}

func segmChunk(segs ...segSpec) []byte {
	var body []byte
	for _, s := range segs {
		var flags uint32
		if s.compressed {
			flags = 1
		}
		body = cat(body, le32(flags), le64(s.offset), le64(s.plain), le64(s.stored))
	}
	return chunk(tagSegm, body)
}

func adlrChunk(hash uint32) []byte {
	return chunk(tagAdlr, le32(hash))
}

func hnfnChunk(t *testing.T, hash uint32, name string) []byte {
	return chunk(tagHashName, le32(hash), utf16Name(t, name))
}

func compress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// buildArchive はヘッダ、データ領域、インデックスからなるアーカイブを組み立てます。
// データ領域は dataStart から始まります。
func buildArchive(t *testing.T, data, index []byte, compressIndex bool) []byte {
	t.Helper()
	indexOffset := uint64(dataStart + len(data))
	var block []byte
	if compressIndex {
		packed := compress(t, index)
		block = cat([]byte{indexEncodeZlib}, le64(uint64(len(packed))), le64(uint64(len(index))), packed)
	} else {
		block = cat([]byte{indexEncodeRaw}, le64(uint64(len(index))), index)
	}
	return cat(Magic, le64(indexOffset), data, block)
}

func openBytes(t *testing.T, archive []byte, opts ...Option) (*Archive, error) {
	t.Helper()
	return OpenReader(bytes.NewReader(archive), int64(len(archive)), opts...)
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// xorCrypt はテスト用の単純なスキーム
type xorCrypt struct {
	key       byte
	afterHash bool
}

func (c xorCrypt) Name() string { return "testxor" }

func (c xorCrypt) Decrypt(_ *Entry, _ int64, buf []byte) error {
	for i := range buf {
		buf[i] ^= c.key
	}
	return nil
}

func (c xorCrypt) Encrypt(e *Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}

func (c xorCrypt) HashAfterCrypt() bool { return c.afterHash }
