package scheme

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// Title はタイトルと、そのアーカイブで使われるスキームの対応です
type Title struct {
	Name     string   // 表示名
	Scheme   string   // New に渡すスキームの指定
	Patterns []string // アーカイブ名または同じディレクトリの実行ファイル名に一致するパターン (小文字)
}

// Crypt はタイトルのスキームを作成します
func (t Title) Crypt(opts ...Option) (xp3.Crypt, error) {
	return New(t.Scheme, opts...)
}

// Prompt は複数の候補から1つを選ばせ、そのインデックスを返します
type Prompt func(candidates []Title) (int, error)

// TitleTable はタイトルの一覧です
type TitleTable []Title

// DefaultTitles は組み込みのタイトル表です
var DefaultTitles = TitleTable{
	{Name: "Fate/stay night", Scheme: "fate", Patterns: []string{"fate*.exe", "fate*.xp3"}},
	{Name: "Mizukake", Scheme: "mizukake", Patterns: []string{"mizukake*.exe"}},
	{Name: "Seiten Ragnarok", Scheme: "seiten", Patterns: []string{"seiten*.exe", "seiten*.xp3"}},
	{Name: "FlyingShine", Scheme: "flyingshine", Patterns: []string{"flyingshine*.exe", "fs_*.exe"}},
}

// Match はアーカイブ名または実行ファイル名のいずれかがパターンに一致するかを返します
func (t Title) Match(names []string) bool {
	for _, pattern := range t.Patterns {
		for _, name := range names {
			if ok, _ := filepath.Match(pattern, name); ok {
				return true
			}
		}
	}
	return false
}

// Resolve はアーカイブのパスからタイトルを推定します。
// 一致なしは ErrUnknownTitle、複数一致は prompt で選択し、prompt が nil なら ErrAmbiguousTitle を返します。
func (tt TitleTable) Resolve(archivePath string, prompt Prompt) (Title, error) {
	names := candidateNames(archivePath)

	var matches []Title
	for _, t := range tt {
		if t.Match(names) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return Title{}, fmt.Errorf("%w: %s", ErrUnknownTitle, filepath.Base(archivePath))
	case 1:
		return matches[0], nil
	}

	if prompt == nil {
		return Title{}, fmt.Errorf("%w: %d candidates for %s", ErrAmbiguousTitle, len(matches), filepath.Base(archivePath))
	}
	idx, err := prompt(matches)
	if err != nil {
		return Title{}, err
	}
	if idx < 0 || idx >= len(matches) {
		return Title{}, fmt.Errorf("%w: selection %d out of range", ErrAmbiguousTitle, idx)
	}
	return matches[idx], nil
}

// ResolveTitle は DefaultTitles からタイトルを推定します
func ResolveTitle(archivePath string, prompt Prompt) (Title, error) {
	return DefaultTitles.Resolve(archivePath, prompt)
}

// candidateNames はアーカイブ名と同じディレクトリの実行ファイル名を小文字で返します
func candidateNames(archivePath string) []string {
	names := []string{strings.ToLower(filepath.Base(archivePath))}

	entries, err := os.ReadDir(filepath.Dir(archivePath))
	if err != nil {
		return names
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if strings.HasSuffix(name, ".exe") {
			names = append(names, name)
		}
	}
	return names
}
