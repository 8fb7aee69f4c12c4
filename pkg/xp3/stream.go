package xp3

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// entryStream はセグメントを順に連結して読み込むストリームです。
// crypt が nil でなければ展開後のオフセットで復号します。
type entryStream struct {
	r      io.ReaderAt
	entry  *Entry
	crypt  Crypt
	segIdx int

	cur       io.Reader
	closer    io.Closer
	remaining int64 // 現在のセグメントの残りバイト数
	pos       int64
	err       error
}

func newEntryStream(r io.ReaderAt, entry *Entry, crypt Crypt) *entryStream {
	return &entryStream{r: r, entry: entry, crypt: crypt}
}

// Read は io.Reader を実装します
func (s *entryStream) Read(p []byte) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	for s.remaining == 0 {
		if err := s.nextSegment(); err != nil {
			s.err = err
			return 0, err
		}
	}

	if int64(len(p)) > s.remaining {
		p = p[:s.remaining]
	}
	n, err := s.cur.Read(p)
	if n > 0 && s.crypt != nil {
		if cerr := s.crypt.Decrypt(s.entry, s.pos, p[:n]); cerr != nil {
			s.err = &EntryError{Op: "decrypt", Entry: s.entry.Name, Scheme: s.crypt.Name(), Err: cerr}
			return 0, s.err
		}
	}
	s.pos += int64(n)
	s.remaining -= int64(n)

	if err != nil {
		if errors.Is(err, io.EOF) && s.remaining == 0 {
			err = nil
		} else {
			if errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			s.err = &EntryError{
				Op:    "read",
				Entry: s.entry.Name,
				Err:   fmt.Errorf("%w: segment %d: %w", ErrCorrupted, s.segIdx-1, err),
			}
			if n == 0 {
				return 0, s.err
			}
			err = nil
		}
	}
	return n, err
}

func (s *entryStream) nextSegment() error {
	if s.closer != nil {
		s.closer.Close()
		s.closer = nil
	}
	if s.segIdx >= len(s.entry.Segments) {
		return io.EOF
	}
	seg := s.entry.Segments[s.segIdx]
	s.segIdx++

	section := io.NewSectionReader(s.r, seg.Offset, seg.StoredSize)
	if seg.Compressed {
		if seg.PlainSize == 0 {
			s.cur, s.remaining = section, 0
			return nil
		}
		zr, err := zlib.NewReader(section)
		if err != nil {
			return &EntryError{
				Op:    "read",
				Entry: s.entry.Name,
				Err:   fmt.Errorf("%w: segment %d: %w", ErrCorrupted, s.segIdx-1, err),
			}
		}
		s.cur, s.closer = zr, zr
	} else {
		s.cur = section
	}
	s.remaining = seg.PlainSize
	return nil
}

// Close は io.Closer を実装します
func (s *entryStream) Close() error {
	if s.closer != nil {
		s.closer.Close()
		s.closer = nil
	}
	s.err = ErrClosed
	return nil
}

// multiCloser は変換後のリーダーと元のストリームをまとめて閉じます
type multiCloser struct {
	io.Reader
	closers []io.Closer
}

func (m *multiCloser) Close() error {
	var errs []error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
