package xp3

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/shiroemons/go-xp3/pkg/crypto"
)

var (
	mdfMagic = []byte("mdf\x00")
	textBOM  = []byte{0xFF, 0xFE}
)

const mdfHeaderSize = 8

const (
	textModeXOR      = 0
	textModeSwapBits = 1
	textModeZlib     = 2
)

// DefaultReadFilter は zlib で圧縮された "mdf" ストリームと、
// FE FE で始まる難読化テキストを元に戻します。それ以外はそのまま返します。
func DefaultReadFilter(e *Entry, rc io.ReadCloser) (io.ReadCloser, error) {
	br := bufio.NewReader(rc)
	head, _ := br.Peek(mdfHeaderSize + 2)

	switch {
	case isMdf(head):
		var header [mdfHeaderSize]byte
		if _, err := io.ReadFull(br, header[:]); err != nil {
			return nil, err
		}
		size := binary.LittleEndian.Uint32(header[4:])
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, &EntryError{Op: "filter", Entry: e.Name, Err: fmt.Errorf("%w: mdf stream: %w", ErrCorrupted, err)}
		}
		return &multiCloser{Reader: io.LimitReader(zr, int64(size)), closers: []io.Closer{zr, rc}}, nil

	case len(head) >= 5 && head[0] == 0xFE && head[1] == 0xFE && head[3] == 0xFF && head[4] == 0xFE:
		mode := head[2]
		if mode > textModeZlib {
			break
		}
		br.Discard(5)
		return decodeText(e, mode, br, rc)
	}
	return &multiCloser{Reader: br, closers: []io.Closer{rc}}, nil
}

// isMdf は head が "mdf\0" ヘッダと zlib ヘッダで始まるか判定します
func isMdf(head []byte) bool {
	if len(head) < mdfHeaderSize+2 || !bytes.HasPrefix(head, mdfMagic) {
		return false
	}
	cmf, flg := head[mdfHeaderSize], head[mdfHeaderSize+1]
	return cmf&0x0F == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

func decodeText(e *Entry, mode byte, br *bufio.Reader, rc io.ReadCloser) (io.ReadCloser, error) {
	if mode == textModeZlib {
		var sizes [16]byte
		if _, err := io.ReadFull(br, sizes[:]); err != nil {
			return nil, &EntryError{Op: "filter", Entry: e.Name, Err: fmt.Errorf("%w: text header: %w", ErrCorrupted, err)}
		}
		unpacked := int64(binary.LittleEndian.Uint64(sizes[8:]))
		zr, err := zlib.NewReader(br)
		if err != nil {
			return nil, &EntryError{Op: "filter", Entry: e.Name, Err: fmt.Errorf("%w: text stream: %w", ErrCorrupted, err)}
		}
		body := io.MultiReader(bytes.NewReader(textBOM), io.LimitReader(zr, unpacked))
		return &multiCloser{Reader: body, closers: []io.Closer{zr, rc}}, nil
	}
	tr := &textReader{r: br, mode: mode}
	return &multiCloser{Reader: io.MultiReader(bytes.NewReader(textBOM), tr), closers: []io.Closer{rc}}, nil
}

// textReader は UTF-16 の文字単位で難読化を解除します
type textReader struct {
	r       io.Reader
	mode    byte
	pending []byte
	err     error
}

func (t *textReader) Read(p []byte) (int, error) {
	if len(t.pending) > 0 {
		n := copy(p, t.pending)
		t.pending = t.pending[n:]
		return n, nil
	}
	if t.err != nil {
		return 0, t.err
	}
	buf := make([]byte, max(len(p)&^1, 2))
	n, err := io.ReadFull(t.r, buf)
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		err = io.EOF
	}
	t.err = err
	n &^= 1
	for i := 0; i < n; i += 2 {
		c := binary.LittleEndian.Uint16(buf[i:])
		binary.LittleEndian.PutUint16(buf[i:], t.decode(c))
	}
	copied := copy(p, buf[:n])
	t.pending = buf[copied:n]
	if copied == 0 {
		return 0, t.err
	}
	return copied, nil
}

func (t *textReader) decode(c uint16) uint16 {
	switch t.mode {
	case textModeXOR:
		if c >= 0x20 {
			c ^= ((c & 0xFE) << 8) ^ 1
		}
	case textModeSwapBits:
		c = crypto.SwapBits16(c)
	}
	return c
}
