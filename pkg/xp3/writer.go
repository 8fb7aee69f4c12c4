package xp3

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
)

const infoFlagEncrypted = 0x80000000

// WriterOption は書き込みの設定です
type WriterOption func(*Writer)

// WithWriterCrypt は暗号化に使うスキームを指定します
func WithWriterCrypt(c Crypt) WriterOption {
	return func(w *Writer) {
		if c != nil {
			w.crypt = c
		}
	}
}

// WithSegmentSize はセグメントの最大サイズを指定します。0 は分割しません。
func WithSegmentSize(n int64) WriterOption {
	return func(w *Writer) {
		if n > 0 {
			w.segmentSize = n
		}
	}
}

// WithIndexCompression はインデックスを zlib で圧縮するかどうかを指定します
func WithIndexCompression(compress bool) WriterOption {
	return func(w *Writer) {
		w.compressIndex = compress
	}
}

// WithWriterLogger はロガーを指定します
func WithWriterLogger(l zerolog.Logger) WriterOption {
	return func(w *Writer) {
		w.log = l
	}
}

// AddOptions はエントリ追加時の設定です
type AddOptions struct {
	Compress  bool   // セグメントを zlib で圧縮する
	Encrypt   bool   // スキームで暗号化する
	Timestamp uint64 // FILETIME。0 の場合 time チャンクを書き込みません。
}

// Writer はXP3アーカイブを書き込みます
type Writer struct {
	w             io.WriteSeeker
	start         int64
	pos           int64
	crypt         Crypt
	segmentSize   int64
	compressIndex bool
	log           zerolog.Logger

	entries []*Entry
	names   map[string]bool
	closed  bool

	initDone bool
	initErr  error
}

// NewWriter は w の現在位置からアーカイブを書き込む Writer を作成します。
// インデックスの位置は Close で書き込まれます。
func NewWriter(w io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	start, err := w.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}
	xw := &Writer{
		w:             w,
		start:         start,
		crypt:         NoCrypt{},
		compressIndex: true,
		log:           zerolog.Nop(),
		names:         make(map[string]bool),
	}
	for _, opt := range opts {
		opt(xw)
	}

	header := make([]byte, headerSize)
	copy(header, Magic)
	if _, err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	xw.pos = headerSize
	return xw, nil
}

// Add は r の内容を name のエントリとして追加します
func (w *Writer) Add(name string, r io.Reader, opts AddOptions) error {
	if w.closed {
		return ErrClosed
	}
	if name == "" {
		return &EntryError{Op: "add", Entry: name, Err: errors.New("empty entry name")}
	}
	if w.names[name] {
		return &EntryError{Op: "add", Entry: name, Err: ErrDuplicateName}
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return &EntryError{Op: "add", Entry: name, Err: err}
	}
	entry := &Entry{
		Name:      name,
		PlainSize: int64(len(data)),
		Encrypted: opts.Encrypt,
		Timestamp: opts.Timestamp,
	}

	if opts.Encrypt {
		if err := w.initCrypt(); err != nil {
			return &EntryError{Op: "init", Entry: name, Scheme: w.crypt.Name(), Err: err}
		}
		if err := w.encrypt(entry, data); err != nil {
			return &EntryError{Op: "encrypt", Entry: name, Scheme: w.crypt.Name(), Err: err}
		}
	} else {
		entry.Hash = adler32.Checksum(data)
	}

	if err := w.writeSegments(entry, data, opts.Compress); err != nil {
		return &EntryError{Op: "write", Entry: name, Err: err}
	}
	w.names[name] = true
	w.entries = append(w.entries, entry)
	w.log.Debug().Str("entry", name).Int64("size", entry.PlainSize).Int64("stored", entry.StoredSize).Int("segments", len(entry.Segments)).Msg("entry added")
	return nil
}

// initCrypt は最初の暗号化エントリの前にスキームの初期化を一度だけ行います
func (w *Writer) initCrypt() error {
	if !w.initDone {
		w.initDone = true
		if in, ok := w.crypt.(Initializer); ok {
			w.initErr = in.Init(writerView{w})
			if w.initErr != nil {
				w.log.Error().Err(w.initErr).Msg("scheme initialization failed")
			}
		}
	}
	return w.initErr
}

// writerView は書き込み中のアーカイブを ArchiveView として見せます。
// OpenRaw は書き込み先が io.ReaderAt を実装している場合だけ使えます。
type writerView struct {
	w *Writer
}

// Path は書き込み先がファイルであればそのパスを返します
func (v writerView) Path() string {
	if f, ok := v.w.w.(interface{ Name() string }); ok {
		return f.Name()
	}
	return ""
}

// Entries はこれまでに追加したエントリを返します
func (v writerView) Entries() []*Entry {
	return v.w.entries
}

// Lookup は追加済みのエントリを名前で検索します
func (v writerView) Lookup(name string) (*Entry, bool) {
	for _, e := range v.w.entries {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// OpenRaw は書き込み済みのエントリを格納されたまま読み込みます
func (v writerView) OpenRaw(e *Entry) (io.ReadCloser, error) {
	r, ok := v.w.w.(io.ReaderAt)
	if !ok {
		return nil, &EntryError{Op: "read", Entry: e.Name, Err: errors.New("writer output is not readable")}
	}
	shifted := *e
	shifted.Segments = make([]Segment, len(e.Segments))
	for i, seg := range e.Segments {
		seg.Offset += v.w.start
		shifted.Segments[i] = seg
	}
	return newEntryStream(r, &shifted, nil), nil
}

func (w *Writer) encrypt(entry *Entry, data []byte) error {
	if w.crypt.HashAfterCrypt() {
		if err := w.crypt.Encrypt(entry, 0, data); err != nil {
			return err
		}
		entry.Hash = adler32.Checksum(data)
		return nil
	}
	entry.Hash = adler32.Checksum(data)
	return w.crypt.Encrypt(entry, 0, data)
}

func (w *Writer) writeSegments(entry *Entry, data []byte, compress bool) error {
	segSize := w.segmentSize
	if segSize == 0 || segSize > int64(len(data)) {
		segSize = int64(len(data))
	}

	for off := int64(0); ; off += segSize {
		end := min(off+segSize, int64(len(data)))
		chunk := data[off:end]
		seg := Segment{Offset: w.pos, PlainSize: int64(len(chunk))}

		stored := chunk
		if compress && len(chunk) > 0 {
			var buf bytes.Buffer
			zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
			if err != nil {
				return err
			}
			if _, err := zw.Write(chunk); err != nil {
				return err
			}
			if err := zw.Close(); err != nil {
				return err
			}
			stored = buf.Bytes()
			seg.Compressed = true
			entry.Compressed = true
		}
		if _, err := w.w.Write(stored); err != nil {
			return err
		}
		seg.StoredSize = int64(len(stored))
		w.pos += seg.StoredSize
		entry.StoredSize += seg.StoredSize
		entry.Segments = append(entry.Segments, seg)

		if end >= int64(len(data)) {
			return nil
		}
	}
}

// Close はインデックスを書き込み、ヘッダのインデックス位置を更新します。
// 下位の WriteSeeker は閉じません。
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	index, err := w.buildIndex()
	if err != nil {
		return err
	}
	indexPos := w.pos

	var block bytes.Buffer
	if w.compressIndex {
		var packed bytes.Buffer
		zw, err := zlib.NewWriterLevel(&packed, zlib.BestCompression)
		if err != nil {
			return err
		}
		if _, err := zw.Write(index); err != nil {
			return err
		}
		if err := zw.Close(); err != nil {
			return err
		}
		block.WriteByte(indexEncodeZlib)
		binary.Write(&block, binary.LittleEndian, uint64(packed.Len()))
		binary.Write(&block, binary.LittleEndian, uint64(len(index)))
		block.Write(packed.Bytes())
	} else {
		block.WriteByte(indexEncodeRaw)
		binary.Write(&block, binary.LittleEndian, uint64(len(index)))
		block.Write(index)
	}
	if _, err := w.w.Write(block.Bytes()); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	end := w.pos + int64(block.Len())

	if _, err := w.w.Seek(w.start+int64(len(Magic)), io.SeekStart); err != nil {
		return err
	}
	var offset [8]byte
	binary.LittleEndian.PutUint64(offset[:], uint64(indexPos))
	if _, err := w.w.Write(offset[:]); err != nil {
		return fmt.Errorf("failed to write index offset: %w", err)
	}
	if _, err := w.w.Seek(w.start+end, io.SeekStart); err != nil {
		return err
	}
	w.log.Debug().Int("entries", len(w.entries)).Int64("index", indexPos).Int("indexSize", len(index)).Msg("archive written")
	return nil
}

func (w *Writer) buildIndex() ([]byte, error) {
	var index bytes.Buffer
	for _, e := range w.entries {
		name, err := EncodeUTF16(e.Name)
		if err != nil {
			return nil, err
		}
		if len(name)/2 > 0xFFFF {
			return nil, &EntryError{Op: "write", Entry: e.Name, Err: errors.New("name too long")}
		}

		var info bytes.Buffer
		var flags uint32
		if e.Encrypted {
			flags = infoFlagEncrypted
		}
		binary.Write(&info, binary.LittleEndian, flags)
		binary.Write(&info, binary.LittleEndian, uint64(e.PlainSize))
		binary.Write(&info, binary.LittleEndian, uint64(e.StoredSize))
		binary.Write(&info, binary.LittleEndian, uint16(len(name)/2))
		info.Write(name)

		var segm bytes.Buffer
		for _, seg := range e.Segments {
			var segFlags uint32
			if seg.Compressed {
				segFlags = 1
			}
			binary.Write(&segm, binary.LittleEndian, segFlags)
			binary.Write(&segm, binary.LittleEndian, uint64(seg.Offset))
			binary.Write(&segm, binary.LittleEndian, uint64(seg.PlainSize))
			binary.Write(&segm, binary.LittleEndian, uint64(seg.StoredSize))
		}

		var file bytes.Buffer
		writeChunk(&file, tagInfo, info.Bytes())
		writeChunk(&file, tagSegm, segm.Bytes())
		var adlr [4]byte
		binary.LittleEndian.PutUint32(adlr[:], e.Hash)
		writeChunk(&file, tagAdlr, adlr[:])
		if e.Timestamp != 0 {
			var ts [8]byte
			binary.LittleEndian.PutUint64(ts[:], e.Timestamp)
			writeChunk(&file, tagTime, ts[:])
		}
		writeChunk(&index, tagFile, file.Bytes())
	}
	return index.Bytes(), nil
}

func writeChunk(buf *bytes.Buffer, tag string, body []byte) {
	buf.WriteString(tag)
	binary.Write(buf, binary.LittleEndian, uint64(len(body)))
	buf.Write(body)
}
