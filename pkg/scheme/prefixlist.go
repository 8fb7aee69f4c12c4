package scheme

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shiroemons/go-xp3/pkg/crypto"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

const (
	// PrefixListEntry はエントリごとの暗号化範囲を記録したアーカイブ内のファイル名
	PrefixListEntry = "crypt.lst"

	// DefaultPrefixLimit は一覧にないエントリの暗号化範囲
	DefaultPrefixLimit = 0x100

	prefixListKey = 0x5A
)

// PrefixListCrypt はエントリ先頭の一定範囲だけをハッシュ由来の鍵で XOR します。
// 範囲はアーカイブ自身の crypt.lst から初期化時に読み込みます。
type PrefixListCrypt struct {
	limits map[uint32]int64
}

// NewPrefixList は範囲の一覧を指定して PrefixListCrypt を作成します。
// limits が nil の場合は Init でアーカイブから読み込みます。
func NewPrefixList(limits map[uint32]int64) *PrefixListCrypt {
	return &PrefixListCrypt{limits: limits}
}

// Name はスキーム名を返します
func (c *PrefixListCrypt) Name() string { return "prefixlist" }

// HashAfterCrypt は false を返します
func (c *PrefixListCrypt) HashAfterCrypt() bool { return false }

// Init はアーカイブ内の crypt.lst を復号せずに読み込みます
func (c *PrefixListCrypt) Init(a xp3.ArchiveView) error {
	if c.limits != nil {
		return nil
	}
	e, ok := a.Lookup(PrefixListEntry)
	if !ok {
		return fmt.Errorf("%w: %s not found in archive", xp3.ErrMissingMaterial, PrefixListEntry)
	}
	rc, err := a.OpenRaw(e)
	if err != nil {
		return err
	}
	defer rc.Close()

	limits, err := ParsePrefixList(rc)
	if err != nil {
		return err
	}
	c.limits = limits
	return nil
}

// ParsePrefixList は "hash,limit" 形式の行を読み込みます。hash は16進数です。
// 解釈できない行は無視します。
func ParsePrefixList(r io.Reader) (map[uint32]int64, error) {
	limits := make(map[uint32]int64)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		hashText, limitText, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		hash, err := strconv.ParseUint(strings.TrimPrefix(strings.TrimSpace(hashText), "0x"), 16, 32)
		if err != nil {
			continue
		}
		limit, err := strconv.ParseInt(strings.TrimSpace(limitText), 0, 64)
		if err != nil || limit < 0 {
			continue
		}
		limits[uint32(hash)] = limit
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", PrefixListEntry, err)
	}
	return limits, nil
}

// Limit はエントリのハッシュに対する暗号化範囲を返します
func (c *PrefixListCrypt) Limit(hash uint32) int64 {
	if limit, ok := c.limits[hash]; ok {
		return limit
	}
	return DefaultPrefixLimit
}

// Decrypt は範囲内のバイトを XOR します
func (c *PrefixListCrypt) Decrypt(e *xp3.Entry, offset int64, buf []byte) error {
	if c.limits == nil {
		return fmt.Errorf("%w: %s not loaded", xp3.ErrMissingMaterial, PrefixListEntry)
	}
	limit := c.Limit(e.Hash)
	if offset >= limit {
		return nil
	}
	n := int(min(limit-offset, int64(len(buf))))
	crypto.XOR(buf[:n], byte(e.Hash)^prefixListKey)
	return nil
}

// Encrypt は Decrypt と同じ変換です
func (c *PrefixListCrypt) Encrypt(e *xp3.Entry, offset int64, buf []byte) error {
	return c.Decrypt(e, offset, buf)
}
