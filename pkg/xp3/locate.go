package xp3

import (
	"bytes"
	"debug/pe"
	"io"
)

const (
	locateAlign  = 0x10
	locateWindow = 64 << 10
)

// LocateSignature はアーカイブ本体の開始位置を探します。
// 実行ファイルの場合はオーバーレイ、次に .rsrc セクションを16バイト境界で走査します。
// 見つからない場合は (0, false) を返します。
func LocateSignature(r io.ReaderAt, size int64) (int64, bool) {
	if hasMagicAt(r, 0, size) {
		return 0, true
	}
	var mz [2]byte
	if _, err := r.ReadAt(mz[:], 0); err != nil || mz != [2]byte{'M', 'Z'} {
		return 0, false
	}
	f, err := pe.NewFile(r)
	if err != nil {
		return 0, false
	}
	defer f.Close()

	var overlay int64
	for _, s := range f.Sections {
		if end := int64(s.Offset) + int64(s.Size); end > overlay {
			overlay = end
		}
	}
	if overlay > 0 && overlay < size {
		if off, ok := scanSignature(r, overlay, size); ok {
			return off, true
		}
	}
	if rsrc := f.Section(".rsrc"); rsrc != nil {
		start := int64(rsrc.Offset)
		end := min(start+int64(rsrc.Size), size)
		if off, ok := scanSignature(r, start, end); ok {
			return off, true
		}
	}
	return 0, false
}

// scanSignature は [start, end) を16バイト境界で走査して識別子を探します
func scanSignature(r io.ReaderAt, start, end int64) (int64, bool) {
	if rem := start % locateAlign; rem != 0 {
		start += locateAlign - rem
	}
	buf := make([]byte, locateWindow+len(Magic))
	for pos := start; pos+int64(len(Magic)) <= end; pos += locateWindow {
		n, _ := r.ReadAt(buf[:min(int64(len(buf)), end-pos)], pos)
		for i := 0; i+len(Magic) <= n && i < locateWindow; i += locateAlign {
			if bytes.Equal(buf[i:i+len(Magic)], Magic) {
				return pos + int64(i), true
			}
		}
	}
	return 0, false
}

func hasMagicAt(r io.ReaderAt, offset, size int64) bool {
	if size-offset < int64(len(Magic)) {
		return false
	}
	buf := make([]byte, len(Magic))
	if _, err := r.ReadAt(buf, offset); err != nil {
		return false
	}
	return bytes.Equal(buf, Magic)
}
