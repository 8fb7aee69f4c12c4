package xp3

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
)

// NameList はハッシュ化またはスクランブルされた名前から本来の名前への対応表です。
// キーは8桁16進のハッシュ (小文字) またはインデックスに格納された名前です。
type NameList map[string]string

// ParseNameList は "key,name" または "key:name" 形式の行からなる名前一覧を解析します。
// UTF-8 として不正な場合は Shift-JIS として読み込みます。
func ParseNameList(data []byte) NameList {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	text := string(data)
	if !utf8.Valid(data) {
		if decoded, err := japanese.ShiftJIS.NewDecoder().Bytes(data); err == nil {
			text = string(decoded)
		}
	}

	list := make(NameList)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		sep := strings.IndexAny(line, ",:")
		if sep <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:sep])
		name := strings.TrimSpace(line[sep+1:])
		if key == "" || name == "" {
			continue
		}
		if isHashedName(key) {
			key = strings.ToLower(key)
		}
		list[key] = name
	}
	return list
}

// LoadNameList は名前一覧ファイルを読み込みます
func LoadNameList(path string) (NameList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read name list: %w", err)
	}
	return ParseNameList(data), nil
}

// FindNameList はアーカイブと同じディレクトリにある名前一覧ファイルを探します。
// "<archive>.lst" と "names.lst" の順に探し、見つからなければ空文字列を返します。
func FindNameList(archivePath string) string {
	dir := filepath.Dir(archivePath)
	base := strings.TrimSuffix(filepath.Base(archivePath), filepath.Ext(archivePath))
	for _, candidate := range []string{
		filepath.Join(dir, base+".lst"),
		filepath.Join(dir, "names.lst"),
	} {
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate
		}
	}
	return ""
}

// Lookup は格納された名前、次にハッシュで本来の名前を検索します
func (nl NameList) Lookup(stored string, hash uint32) (string, bool) {
	if nl == nil {
		return "", false
	}
	if stored != "" {
		if name, ok := nl[stored]; ok {
			return name, true
		}
		if name, ok := nl[strings.ToLower(stored)]; ok {
			return name, true
		}
	}
	name, ok := nl[fmt.Sprintf("%08x", hash)]
	return name, ok
}

// isHashedName は名前が16進のハッシュ値の形をしているか判定します
func isHashedName(name string) bool {
	switch len(name) {
	case 8, 16, 32, 40, 64:
	default:
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F') {
			return false
		}
	}
	return true
}
