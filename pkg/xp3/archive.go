package xp3

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// Option はアーカイブを開く際の設定です
type Option func(*options)

type options struct {
	crypt        Crypt
	logger       zerolog.Logger
	names        NameList
	namesPath    string
	noAutoNames  bool
	noReadFilter bool
}

// WithCrypt は暗号スキームを指定します。省略時は NoCrypt です。
func WithCrypt(c Crypt) Option {
	return func(o *options) {
		if c != nil {
			o.crypt = c
		}
	}
}

// WithLogger はロガーを指定します。省略時は何も出力しません。
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithNameList は名前一覧を指定します
func WithNameList(nl NameList) Option {
	return func(o *options) {
		o.names = nl
	}
}

// WithNameListFile は名前一覧ファイルのパスを指定します
func WithNameListFile(path string) Option {
	return func(o *options) {
		o.namesPath = path
	}
}

// WithoutAutoNameList はアーカイブと同じ場所にある名前一覧の自動読み込みを無効にします
func WithoutAutoNameList() Option {
	return func(o *options) {
		o.noAutoNames = true
	}
}

// WithoutReadFilter は読み込み後のフィルタを無効にします
func WithoutReadFilter() Option {
	return func(o *options) {
		o.noReadFilter = true
	}
}

// Archive は開かれたXP3アーカイブを表します。
// 解析後のエントリ一覧は変更されず、複数のゴルーチンから同時にエントリを読み込めます。
// 列挙用のカーソル (EnumFirst/EnumNext) はゴルーチン間で共有できません。
type Archive struct {
	path    string
	file    *os.File
	r       io.ReaderAt
	size    int64
	base    int64
	entries []*Entry
	byName  map[string]*Entry
	crypt   Crypt
	log     zerolog.Logger
	filter  bool

	curIndex int

	initMu   sync.Mutex
	initDone bool
	initErr  error
}

// Open はアーカイブファイルを開きます。
// 実行ファイルに埋め込まれたアーカイブも開けます。
func Open(path string, opts ...Option) (*Archive, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	// エラー時にクリーンアップするためのフラグ
	success := false
	defer func() {
		if !success {
			file.Close()
		}
	}()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}

	o := buildOptions(opts)
	if o.names == nil && o.namesPath == "" && !o.noAutoNames {
		o.namesPath = FindNameList(path)
	}
	o.loadNames()

	a, err := open(file, info.Size(), o)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	a.path = path
	a.file = file
	success = true
	return a, nil
}

// OpenReader は r からアーカイブを開きます。r は Close するまで有効である必要があります。
func OpenReader(r io.ReaderAt, size int64, opts ...Option) (*Archive, error) {
	o := buildOptions(opts)
	o.loadNames()
	return open(r, size, o)
}

// loadNames は名前一覧ファイルを読み込みます。
// 読み込めない場合は警告を出して名前一覧なしで続けます。
func (o *options) loadNames() {
	if o.namesPath == "" {
		return
	}
	names, err := LoadNameList(o.namesPath)
	if err != nil {
		o.logger.Warn().Err(err).Str("path", o.namesPath).Msg("name list ignored")
		return
	}
	o.logger.Debug().Str("path", o.namesPath).Int("names", len(names)).Msg("name list loaded")
	o.names = names
}

func buildOptions(opts []Option) *options {
	o := &options{crypt: NoCrypt{}, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func open(r io.ReaderAt, size int64, o *options) (*Archive, error) {
	base, ok := LocateSignature(r, size)
	if !ok {
		return nil, fmt.Errorf("%w: signature not found", ErrFormatMismatch)
	}
	log := o.logger.With().Str("scheme", o.crypt.Name()).Logger()
	if base > 0 {
		log.Debug().Int64("base", base).Msg("embedded archive found")
	}

	indexOffset, err := readIndexOffset(r, base, size)
	if err != nil {
		return nil, err
	}
	data, err := readIndex(r, indexOffset, size, log)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		r:        r,
		size:     size,
		base:     base,
		crypt:    o.crypt,
		log:      log,
		filter:   !o.noReadFilter,
		curIndex: -1,
	}
	parser := &indexParser{
		base:   base,
		size:   size,
		crypt:  o.crypt,
		names:  o.names,
		log:    log,
		parent: a,
	}
	a.entries, err = parser.parse(data)
	if err != nil {
		return nil, err
	}
	a.byName = make(map[string]*Entry, len(a.entries))
	for _, e := range a.entries {
		a.byName[e.Name] = e
	}
	log.Debug().Int("entries", len(a.entries)).Int64("index", indexOffset).Msg("archive opened")
	return a, nil
}

// Close はアーカイブファイルを閉じます
func (a *Archive) Close() error {
	a.r = nil
	if a.file != nil {
		err := a.file.Close()
		a.file = nil
		return err
	}
	return nil
}

// Path はアーカイブのパスを返します
func (a *Archive) Path() string {
	return a.path
}

// Base はコンテナ内のアーカイブ本体の開始位置を返します
func (a *Archive) Base() int64 {
	return a.base
}

// Scheme は使用している暗号スキームを返します
func (a *Archive) Scheme() Crypt {
	return a.crypt
}

// Entries はエントリの一覧を返します
func (a *Archive) Entries() []*Entry {
	return a.entries
}

// Lookup は名前でエントリを検索します
func (a *Archive) Lookup(name string) (*Entry, bool) {
	e, ok := a.byName[name]
	return e, ok
}

// EnumFirst は最初のエントリに移動します
func (a *Archive) EnumFirst() bool {
	if len(a.entries) == 0 {
		return false
	}
	a.curIndex = 0
	return true
}

// EnumNext は次のエントリに移動します
func (a *Archive) EnumNext() bool {
	if a.curIndex < 0 || a.curIndex >= len(a.entries)-1 {
		return false
	}
	a.curIndex++
	return true
}

// GetEntry は現在のエントリを取得します
func (a *Archive) GetEntry() *Entry {
	if a.curIndex < 0 || a.curIndex >= len(a.entries) {
		return nil
	}
	return a.entries[a.curIndex]
}

// GetEntryName は現在のエントリ名を取得します
func (a *Archive) GetEntryName() string {
	if e := a.GetEntry(); e != nil {
		return e.Name
	}
	return ""
}

// GetOriginalSize は元のサイズを取得します
func (a *Archive) GetOriginalSize() int64 {
	if e := a.GetEntry(); e != nil {
		return e.PlainSize
	}
	return 0
}

// GetCompressedSize は格納サイズを取得します
func (a *Archive) GetCompressedSize() int64 {
	if e := a.GetEntry(); e != nil {
		return e.StoredSize
	}
	return 0
}

// OpenRaw は復号もフィルタも行わずにエントリを開きます
func (a *Archive) OpenRaw(e *Entry) (io.ReadCloser, error) {
	if a.r == nil {
		return nil, ErrClosed
	}
	return newEntryStream(a.r, e, nil), nil
}

// OpenEntry はエントリの内容を読み込むストリームを開きます。
// 暗号化されたエントリでは最初の呼び出しでスキームの初期化を行います。
func (a *Archive) OpenEntry(e *Entry) (io.ReadCloser, error) {
	if a.r == nil {
		return nil, ErrClosed
	}
	var crypt Crypt
	if e.Encrypted {
		if err := a.initCrypt(); err != nil {
			return nil, &EntryError{Op: "init", Entry: e.Name, Scheme: a.crypt.Name(), Err: err}
		}
		crypt = a.crypt
	}
	var rc io.ReadCloser = newEntryStream(a.r, e, crypt)
	if !a.filter {
		return rc, nil
	}
	if f, ok := a.crypt.(ReadFilter); ok {
		filtered, err := f.FilterEntry(e, rc)
		if err != nil {
			rc.Close()
			return nil, err
		}
		return filtered, nil
	}
	filtered, err := DefaultReadFilter(e, rc)
	if err != nil {
		rc.Close()
		return nil, err
	}
	return filtered, nil
}

// initCrypt はスキームの初期化を一度だけ行い、その結果を保持します
func (a *Archive) initCrypt() error {
	a.initMu.Lock()
	defer a.initMu.Unlock()
	if !a.initDone {
		a.initDone = true
		if in, ok := a.crypt.(Initializer); ok {
			a.initErr = in.Init(a)
			if a.initErr != nil {
				a.log.Error().Err(a.initErr).Msg("scheme initialization failed")
			}
		}
	}
	return a.initErr
}

// Extract は現在のエントリを抽出します
func (a *Archive) Extract(w io.Writer, callback Callback) error {
	e := a.GetEntry()
	if e == nil {
		return ErrEntryNotFound
	}
	return a.ExtractEntry(e, w, callback)
}

// ExtractEntry は指定されたエントリを抽出して w に書き込みます
func (a *Archive) ExtractEntry(e *Entry, w io.Writer, callback Callback) error {
	if callback != nil {
		if !callback(e.Name) {
			return fmt.Errorf("%s: extraction cancelled", e.Name)
		}
		if !callback(" extracting...") {
			return fmt.Errorf("%s: extraction cancelled", e.Name)
		}
	}

	rc, err := a.OpenEntry(e)
	if err != nil {
		return err
	}
	defer rc.Close()
	if _, err := io.Copy(w, rc); err != nil {
		return err
	}

	if callback != nil {
		callback(" finished.\n")
	}
	return nil
}

// ReadEntry はエントリの内容をすべて読み込みます
func (a *Archive) ReadEntry(e *Entry) ([]byte, error) {
	rc, err := a.OpenEntry(e)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// ExtractAll はすべてのエントリを dir 以下に抽出します。
// dir の外を指すエントリ名は ErrUnsafePath になります。
func (a *Archive) ExtractAll(dir string, callback Callback) error {
	for _, e := range a.entries {
		path, err := EntryPath(dir, e.Name)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := a.extractFile(e, path, callback); err != nil {
			return err
		}
	}
	return nil
}

func (a *Archive) extractFile(e *Entry, path string, callback Callback) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := a.ExtractEntry(e, f, callback); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EntryPath はエントリ名を dir 以下のパスに変換します
func EntryPath(dir, name string) (string, error) {
	rel := filepath.FromSlash(strings.ReplaceAll(name, "\\", "/"))
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}
	return filepath.Join(dir, rel), nil
}
