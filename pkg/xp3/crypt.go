package xp3

import "io"

// Crypt はエントリ単位のバイト範囲変換を提供する暗号スキームです。
// offset はエントリの展開後データ内の位置で、同じエントリの任意の範囲に
// 任意の順序で適用できる必要があります。
type Crypt interface {
	// Name はスキーム名を返します
	Name() string

	// Decrypt は buf を展開後オフセット offset の位置のデータとして復号します
	Decrypt(e *Entry, offset int64, buf []byte) error

	// Encrypt は Decrypt の逆変換です。復号専用のスキームは ErrEncryptUnsupported を返します。
	Encrypt(e *Entry, offset int64, buf []byte) error

	// HashAfterCrypt は adlr チェックサムを暗号化後のデータで計算するかどうかを返します
	HashAfterCrypt() bool
}

// Initializer は最初の暗号化エントリの読み込み前に一度だけ呼ばれる初期化処理です。
// 失敗した場合はその結果が記録され、以降の読み込みでも同じエラーを返します。
type Initializer interface {
	Init(a ArchiveView) error
}

// NameReader は info チャンクの名前フィールドを独自の方法で読み込むスキームが実装します
type NameReader interface {
	ReadName(r *IndexReader) (string, error)
}

// ReadFilter はエントリのストリームを読み込み後に変換するスキームが実装します。
// 実装しないスキームには DefaultReadFilter が適用されます。
type ReadFilter interface {
	FilterEntry(e *Entry, rc io.ReadCloser) (io.ReadCloser, error)
}

// ArchiveView は初期化処理が参照できるアーカイブの読み取り専用ビューです
type ArchiveView interface {
	// Path はアーカイブのパスを返します。io.ReaderAt から開いた場合は空文字列です。
	Path() string

	// Entries はエントリの一覧を返します
	Entries() []*Entry

	// Lookup は名前でエントリを検索します
	Lookup(name string) (*Entry, bool)

	// OpenRaw は復号もフィルタも行わずにエントリを開きます
	OpenRaw(e *Entry) (io.ReadCloser, error)
}

// NoCrypt は暗号化されていないアーカイブのスキームです
type NoCrypt struct{}

// Name はスキーム名を返します
func (NoCrypt) Name() string { return "none" }

// Decrypt は何もしません
func (NoCrypt) Decrypt(*Entry, int64, []byte) error { return nil }

// Encrypt は何もしません
func (NoCrypt) Encrypt(*Entry, int64, []byte) error { return nil }

// HashAfterCrypt は false を返します
func (NoCrypt) HashAfterCrypt() bool { return false }
