package xp3

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// IndexReader は展開済みインデックスのリトルエンディアン読み込みを行います。
// NameReader を実装するスキームは info チャンクの名前部分をこれで読み込みます。
type IndexReader struct {
	buf []byte
	pos int
}

// NewIndexReader は buf を読み込む IndexReader を作成します
func NewIndexReader(buf []byte) *IndexReader {
	return &IndexReader{buf: buf}
}

// Remaining は未読のバイト数を返します
func (r *IndexReader) Remaining() int {
	return len(r.buf) - r.pos
}

// Pos は現在の読み込み位置を返します
func (r *IndexReader) Pos() int {
	return r.pos
}

func (r *IndexReader) need(n int) error {
	if n < 0 || n > r.Remaining() {
		return corruptf("index read of %d bytes at %d overruns %d-byte block", n, r.pos, len(r.buf))
	}
	return nil
}

// ReadBytes は n バイトを読み込みます。返されるスライスは内部バッファを参照します。
func (r *IndexReader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Skip は n バイト読み飛ばします
func (r *IndexReader) Skip(n int) error {
	_, err := r.ReadBytes(n)
	return err
}

// ReadUint16 は uint16 を読み込みます
func (r *IndexReader) ReadUint16() (uint16, error) {
	b, err := r.ReadBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadUint32 は uint32 を読み込みます
func (r *IndexReader) ReadUint32() (uint32, error) {
	b, err := r.ReadBytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadUint64 は uint64 を読み込みます
func (r *IndexReader) ReadUint64() (uint64, error) {
	b, err := r.ReadBytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// ReadSize は uint64 を読み込み、int64 に収まることを確認します
func (r *IndexReader) ReadSize() (int64, error) {
	v, err := r.ReadUint64()
	if err != nil {
		return 0, err
	}
	if v > uint64(maxInt64) {
		return 0, corruptf("size %#x out of range", v)
	}
	return int64(v), nil
}

// ReadUTF16 は count 文字分の UTF-16LE 文字列を読み込みます
func (r *IndexReader) ReadUTF16(count int) (string, error) {
	b, err := r.ReadBytes(count * 2)
	if err != nil {
		return "", err
	}
	return DecodeUTF16(b)
}

// ReadName は uint16 の文字数に続く UTF-16LE の名前を読み込みます
func (r *IndexReader) ReadName() (string, error) {
	n, err := r.ReadUint16()
	if err != nil {
		return "", err
	}
	return r.ReadUTF16(int(n))
}

// readChunk はタグ、長さ、本体からなるチャンクを1つ読み込みます
func (r *IndexReader) readChunk() (string, []byte, error) {
	tag, err := r.ReadBytes(4)
	if err != nil {
		return "", nil, err
	}
	size, err := r.ReadUint64()
	if err != nil {
		return "", nil, err
	}
	if size > uint64(r.Remaining()) {
		return "", nil, corruptf("chunk %q of %d bytes overruns parent (%d left)", tag, size, r.Remaining())
	}
	body, _ := r.ReadBytes(int(size))
	return string(tag), body, nil
}

// DecodeUTF16 は UTF-16LE のバイト列を文字列に変換します
func DecodeUTF16(b []byte) (string, error) {
	out, err := utf16le.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("failed to decode UTF-16 name: %w", err)
	}
	return string(out), nil
}

// EncodeUTF16 は文字列を UTF-16LE のバイト列に変換します
func EncodeUTF16(s string) ([]byte, error) {
	out, err := utf16le.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("failed to encode UTF-16 name: %w", err)
	}
	return out, nil
}
