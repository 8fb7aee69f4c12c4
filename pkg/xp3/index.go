package xp3

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
	"github.com/rs/zerolog"
)

const (
	tagFile     = "File"
	tagInfo     = "info"
	tagSegm     = "segm"
	tagAdlr     = "adlr"
	tagTime     = "time"
	tagHashName = "hnfn"
	tagEliF     = "eliF"

	// deflate の最大圧縮率
	maxDeflateRatio = 1032
)

// readIndexOffset はヘッダを読み込み、インデックスの絶対オフセットを返します
func readIndexOffset(r io.ReaderAt, base, size int64) (int64, error) {
	if size-base < headerSize {
		return 0, fmt.Errorf("%w: file too small", ErrFormatMismatch)
	}
	var header [headerSize]byte
	if _, err := r.ReadAt(header[:], base); err != nil {
		return 0, fmt.Errorf("failed to read header: %w", err)
	}
	if !bytes.Equal(header[:len(Magic)], Magic) {
		return 0, fmt.Errorf("%w: invalid signature", ErrFormatMismatch)
	}

	offset := binary.LittleEndian.Uint64(header[len(Magic):])
	if offset == cushionOffset {
		if size-base < cushionHeaderSize {
			return 0, corruptf("truncated version 2 header")
		}
		var cushion [cushionHeaderSize - cushionMinorOffset]byte
		if _, err := r.ReadAt(cushion[:], base+cushionMinorOffset); err != nil {
			return 0, fmt.Errorf("failed to read version 2 header: %w", err)
		}
		minor := binary.LittleEndian.Uint32(cushion[0:])
		if minor != 1 || cushion[cushionOffset-cushionMinorOffset] != indexContinue {
			return 0, corruptf("unsupported version 2 header (minor %d)", minor)
		}
		offset = binary.LittleEndian.Uint64(cushion[cushionIndexOffset-cushionMinorOffset:])
	}
	if offset >= uint64(size-base) {
		return 0, corruptf("index offset %#x beyond end of file", offset)
	}
	return base + int64(offset), nil
}

// readIndex はインデックスブロックを読み込み、必要に応じて展開します
func readIndex(r io.ReaderAt, offset, size int64, log zerolog.Logger) ([]byte, error) {
	var head [17]byte
	n, err := r.ReadAt(head[:], offset)
	if n < 9 {
		return nil, corruptf("truncated index header: %v", err)
	}
	flag := head[0]
	if flag&indexContinue != 0 {
		log.Debug().Uint8("flag", flag).Msg("ignoring index continuation bit")
	}

	switch flag & indexEncodeMask {
	case indexEncodeRaw:
		length := binary.LittleEndian.Uint64(head[1:9])
		start := offset + 9
		if length > MaxIndexSize || length > uint64(size-start) {
			return nil, corruptf("raw index of %d bytes out of bounds", length)
		}
		data := make([]byte, length)
		if _, err := r.ReadAt(data, start); err != nil {
			return nil, corruptf("failed to read index: %v", err)
		}
		return data, nil

	case indexEncodeZlib:
		if n < len(head) {
			return nil, corruptf("truncated compressed index header: %v", err)
		}
		packed := binary.LittleEndian.Uint64(head[1:9])
		unpacked := binary.LittleEndian.Uint64(head[9:17])
		start := offset + 17
		if packed > uint64(size-start) {
			return nil, corruptf("compressed index of %d bytes out of bounds", packed)
		}
		if unpacked > MaxIndexSize || unpacked > packed*maxDeflateRatio+64 {
			return nil, corruptf("index size %d exceeds limit", unpacked)
		}
		zr, err := zlib.NewReader(io.NewSectionReader(r, start, int64(packed)))
		if err != nil {
			return nil, corruptf("failed to decompress index: %v", err)
		}
		defer zr.Close()
		data := make([]byte, unpacked)
		if _, err := io.ReadFull(zr, data); err != nil {
			return nil, corruptf("failed to decompress index: %v", err)
		}
		log.Debug().Uint64("packed", packed).Uint64("unpacked", unpacked).Msg("index decompressed")
		return data, nil

	default:
		return nil, fmt.Errorf("%w: unknown index encoding %d", ErrFormatMismatch, flag&indexEncodeMask)
	}
}

// indexParser はインデックスのチャンク列を解析します
type indexParser struct {
	base   int64
	size   int64
	crypt  Crypt
	names  NameList
	log    zerolog.Logger
	parent *Archive

	entries   []*Entry
	hashNames map[uint32]string
	conflicts map[uint32]bool
}

func (p *indexParser) parse(data []byte) ([]*Entry, error) {
	p.hashNames = make(map[uint32]string)
	p.conflicts = make(map[uint32]bool)

	r := NewIndexReader(data)
	for r.Remaining() > 0 {
		if r.Remaining() < 12 {
			p.log.Debug().Int("bytes", r.Remaining()).Msg("ignoring trailing index bytes")
			break
		}
		tag, body, err := r.readChunk()
		if err != nil {
			return nil, err
		}
		switch tag {
		case tagFile:
			entry, err := p.parseFile(body)
			if err != nil {
				return nil, err
			}
			if entry == nil {
				continue
			}
			if len(p.entries) >= MaxEntries {
				return nil, corruptf("more than %d entries", MaxEntries)
			}
			p.entries = append(p.entries, entry)
		case tagHashName, tagEliF:
			if err := p.parseHashName(body); err != nil {
				return nil, err
			}
		default:
			p.log.Debug().Str("tag", tag).Int("size", len(body)).Msg("skipping unknown chunk")
		}
	}

	entries := p.resolveNames()
	if len(entries) == 0 {
		return nil, corruptf("archive has no entries")
	}
	return entries, nil
}

// parseFile は File チャンクを解析します。曖昧なエントリの場合は nil を返します。
func (p *indexParser) parseFile(body []byte) (*Entry, error) {
	entry := &Entry{parent: p.parent}
	var hasInfo, hasAdlr, discard bool
	var segCount int

	r := NewIndexReader(body)
	for r.Remaining() >= 12 {
		tag, chunk, err := r.readChunk()
		if err != nil {
			return nil, err
		}
		cr := NewIndexReader(chunk)
		switch tag {
		case tagInfo:
			if hasInfo {
				discard = true
				continue
			}
			hasInfo = true
			if err := p.parseInfo(cr, entry); err != nil {
				return nil, err
			}
		case tagSegm:
			if cr.Remaining()%segmentRecordSize != 0 {
				return nil, corruptf("segm chunk of %d bytes is not a multiple of %d", cr.Remaining(), segmentRecordSize)
			}
			segCount += cr.Remaining() / segmentRecordSize
			if segCount > MaxSegments {
				return nil, corruptf("entry has more than %d segments", MaxSegments)
			}
			for cr.Remaining() > 0 {
				seg, err := p.parseSegment(cr)
				if err != nil {
					return nil, err
				}
				entry.Segments = append(entry.Segments, seg)
			}
		case tagAdlr:
			if hasAdlr {
				discard = true
				continue
			}
			hasAdlr = true
			if entry.Hash, err = cr.ReadUint32(); err != nil {
				return nil, err
			}
		case tagTime:
			if entry.Timestamp, err = cr.ReadUint64(); err != nil {
				return nil, err
			}
		default:
			p.log.Debug().Str("tag", tag).Msg("skipping unknown file sub-chunk")
		}
	}

	if discard {
		p.log.Warn().Str("entry", entry.Name).Msg("discarding entry with repeated info or adlr chunk")
		return nil, nil
	}
	if !hasInfo {
		p.log.Warn().Int("segments", len(entry.Segments)).Msg("discarding entry without info chunk")
		return nil, nil
	}
	for _, seg := range entry.Segments {
		if seg.Compressed {
			entry.Compressed = true
			break
		}
	}
	if err := entry.checkPlacement(p.base, p.size); err != nil {
		return nil, err
	}
	return entry, nil
}

func (p *indexParser) parseInfo(r *IndexReader, entry *Entry) error {
	flags, err := r.ReadUint32()
	if err != nil {
		return err
	}
	entry.Encrypted = flags != 0
	if entry.PlainSize, err = r.ReadSize(); err != nil {
		return err
	}
	if entry.StoredSize, err = r.ReadSize(); err != nil {
		return err
	}
	if nr, ok := p.crypt.(NameReader); ok {
		entry.Name, err = nr.ReadName(r)
	} else {
		entry.Name, err = r.ReadName()
	}
	if err != nil {
		return fmt.Errorf("%w: failed to read entry name: %w", ErrFormatMismatch, err)
	}
	return nil
}

func (p *indexParser) parseSegment(r *IndexReader) (Segment, error) {
	var seg Segment
	flags, err := r.ReadUint32()
	if err != nil {
		return seg, err
	}
	seg.Compressed = flags&1 != 0
	offset, err := r.ReadSize()
	if err != nil {
		return seg, err
	}
	if seg.PlainSize, err = r.ReadSize(); err != nil {
		return seg, err
	}
	if seg.StoredSize, err = r.ReadSize(); err != nil {
		return seg, err
	}
	if offset > p.size-p.base {
		return seg, corruptf("segment offset %#x beyond end of file", offset)
	}
	seg.Offset = p.base + offset
	return seg, nil
}

// parseHashName はハッシュ名前表を解析します。
// 同じハッシュに異なる名前が対応する場合、その対応は破棄します。
func (p *indexParser) parseHashName(body []byte) error {
	r := NewIndexReader(body)
	hash, err := r.ReadUint32()
	if err != nil {
		return err
	}
	name, err := r.ReadName()
	if err != nil {
		return err
	}
	if p.conflicts[hash] {
		return nil
	}
	if prev, ok := p.hashNames[hash]; ok && prev != name {
		p.log.Warn().Uint32("hash", hash).Str("name", name).Str("previous", prev).Msg("conflicting hash name mapping dropped")
		delete(p.hashNames, hash)
		p.conflicts[hash] = true
		return nil
	}
	p.hashNames[hash] = name
	return nil
}

// resolveNames は各エントリの名前を決定し、重複するエントリを除外します
func (p *indexParser) resolveNames() []*Entry {
	seen := make(map[string]bool, len(p.entries))
	entries := make([]*Entry, 0, len(p.entries))
	for _, entry := range p.entries {
		entry.Name = p.resolveName(entry)
		if seen[entry.Name] {
			p.log.Warn().Str("entry", entry.Name).Msg("duplicate entry name dropped")
			continue
		}
		seen[entry.Name] = true
		entries = append(entries, entry)
	}
	return entries
}

func (p *indexParser) resolveName(entry *Entry) string {
	if entry.Name != "" && !isHashedName(entry.Name) {
		if name, ok := p.names[entry.Name]; ok {
			return name
		}
		return entry.Name
	}
	if name, ok := p.hashNames[entry.Hash]; ok && name != "" {
		return name
	}
	if name, ok := p.names.Lookup(entry.Name, entry.Hash); ok {
		return name
	}
	if entry.Name != "" {
		return entry.Name
	}
	return fmt.Sprintf("%08X", entry.Hash)
}
