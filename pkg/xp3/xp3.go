// Package xp3 はXP3アーカイブ (タグ付きチャンクのインデックスとセグメント分割されたデータ領域を持つ形式) の
// 読み込みと書き込みを行うパッケージです。
//
// 暗号化されたタイトルでは Crypt を WithCrypt で指定します。Crypt はエントリごとの
// バイト範囲変換を提供し、必要に応じて初期化 (Initializer)、名前の読み込み (NameReader)、
// 読み込み後のフィルタ (ReadFilter) を実装します。
//
// 基本的な使い方:
//
//	archive, err := xp3.Open("data.xp3", xp3.WithCrypt(crypt))
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//	for ok := archive.EnumFirst(); ok; ok = archive.EnumNext() {
//	    entry := archive.GetEntry()
//	    // エントリを処理...
//	}
package xp3

import "io"

// Magic はXP3アーカイブの識別子
var Magic = []byte{'X', 'P', '3', '\r', '\n', ' ', '\n', 0x1a, 0x8b, 0x67, 0x01}

const (
	headerSize = 0x13 // magic(11) + index offset(8)

	// バージョン2のヘッダ (cushion) の値
	cushionOffset      = 0x17
	cushionMinorOffset = 0x13
	cushionIndexOffset = 0x20
	cushionHeaderSize  = 0x28

	indexEncodeMask = 0x07
	indexEncodeRaw  = 0
	indexEncodeZlib = 1
	indexContinue   = 0x80

	segmentRecordSize = 0x1c

	maxInt64 = int64(^uint64(0) >> 1)
)

// 解析時の上限値
const (
	// MaxIndexSize はインデックスの展開後サイズの上限
	MaxIndexSize = 256 << 20
	// MaxEntries はエントリ数の上限
	MaxEntries = 1 << 22
	// MaxSegments はエントリあたりのセグメント数の上限
	MaxSegments = 1 << 20
)

// Callback は抽出の進捗報告に使用します。false を返すと処理を中断します。
type Callback func(msg string) bool

// ArchiveReader はアーカイブの列挙と抽出の基本インターフェース
type ArchiveReader interface {
	// Close はアーカイブファイルを閉じます
	Close() error

	// EnumFirst は最初のエントリに移動します
	EnumFirst() bool

	// EnumNext は次のエントリに移動します
	EnumNext() bool

	// GetEntryName は現在のエントリ名を取得します
	GetEntryName() string

	// GetOriginalSize は元のサイズを取得します
	GetOriginalSize() int64

	// GetCompressedSize は格納サイズを取得します
	GetCompressedSize() int64

	// GetEntry は現在のエントリを取得します
	GetEntry() *Entry

	// Extract は現在のエントリを抽出します
	Extract(w io.Writer, callback Callback) error
}
