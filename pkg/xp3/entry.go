package xp3

import "io"

// Segment はエントリの内容の一部を保持するコンテナ内の連続したバイト範囲です
type Segment struct {
	Offset     int64 // コンテナ先頭からの絶対オフセット
	PlainSize  int64 // 展開後のサイズ
	StoredSize int64 // 格納サイズ
	Compressed bool
}

// Entry はXP3アーカイブ内のエントリを表します。
// インデックス解析後は変更されません。
type Entry struct {
	Name       string
	PlainSize  int64
	StoredSize int64
	Compressed bool
	Encrypted  bool
	Hash       uint32 // adlr チャンクのチェックサム
	Timestamp  uint64 // FILETIME
	Segments   []Segment

	parent *Archive
}

// GetEntryName はエントリ名を取得します
func (e *Entry) GetEntryName() string {
	return e.Name
}

// GetOriginalSize は元のサイズを取得します
func (e *Entry) GetOriginalSize() int64 {
	return e.PlainSize
}

// GetCompressedSize は格納サイズを取得します
func (e *Entry) GetCompressedSize() int64 {
	return e.StoredSize
}

// Extract はエントリを抽出して w に書き込みます
func (e *Entry) Extract(w io.Writer, callback Callback) error {
	if e.parent == nil {
		return ErrClosed
	}
	return e.parent.ExtractEntry(e, w, callback)
}

// checkPlacement はセグメントがデータ領域内にあり、展開後サイズの合計が一致するか確認します
func (e *Entry) checkPlacement(base, size int64) error {
	var total int64
	for i, seg := range e.Segments {
		if seg.StoredSize > size || seg.Offset < base || seg.Offset > size || seg.Offset+seg.StoredSize > size {
			return corruptf("entry %q segment %d [%d,+%d) outside container of %d bytes", e.Name, i, seg.Offset, seg.StoredSize, size)
		}
		if !seg.Compressed && seg.PlainSize != seg.StoredSize {
			return corruptf("entry %q raw segment %d size mismatch (%d != %d)", e.Name, i, seg.PlainSize, seg.StoredSize)
		}
		if total > maxInt64-seg.PlainSize {
			return corruptf("entry %q segment sizes overflow", e.Name)
		}
		total += seg.PlainSize
	}
	if total != e.PlainSize {
		return corruptf("entry %q segments hold %d bytes, info declares %d", e.Name, total, e.PlainSize)
	}
	return nil
}
