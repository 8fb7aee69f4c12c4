// Package app はアプリケーションのメインロジックを実装します
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/shiroemons/go-xp3/internal/xp3tool/archive"
	"github.com/shiroemons/go-xp3/internal/xp3tool/config"
	apperrors "github.com/shiroemons/go-xp3/internal/xp3tool/errors"
	"github.com/shiroemons/go-xp3/internal/xp3tool/fileutil"
	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
	"github.com/shiroemons/go-xp3/pkg/scheme"
)

// App はアプリケーションのメインロジックを管理します
type App struct {
	config *config.Config
	logger zerolog.Logger
	opener *archive.Opener
	fs     interfaces.FileSystem
	out    io.Writer
}

// Options はAppの設定オプション
type Options struct {
	FileSystem interfaces.FileSystem
	Prompt     scheme.Prompt
	Titles     scheme.TitleTable
	Out        io.Writer
}

// New は新しいAppを作成します。タイトルが曖昧な場合は標準入力で選択させます。
func New(cfg *config.Config, logger zerolog.Logger) *App {
	return NewWithOptions(cfg, logger, Options{
		Prompt: archive.NewPrompt(os.Stdin, os.Stderr),
	})
}

// NewWithOptions は新しいAppをオプション付きで作成します
func NewWithOptions(cfg *config.Config, logger zerolog.Logger, opts Options) *App {
	fs := opts.FileSystem
	if fs == nil {
		fs = fileutil.NewOSFileSystem()
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	opener := archive.NewOpener(cfg, logger, opts.Prompt)
	if opts.Titles != nil {
		opener = opener.WithTitles(opts.Titles)
	}

	return &App{
		config: cfg,
		logger: logger,
		opener: opener,
		fs:     fs,
		out:    out,
	}
}

// List はアーカイブ内のファイル一覧を表示します
func (a *App) List(ctx context.Context, archivePath string) error {
	arc, err := a.opener.Open(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	defer arc.Close()

	line := strings.Repeat("-", 72)
	fmt.Fprintln(a.out, line)
	fmt.Fprintf(a.out, "%-40s %10s %10s %3s %8s\n", "name", "size", "stored", "enc", "hash")
	fmt.Fprintln(a.out, line)

	if !arc.EnumFirst() {
		return nil
	}
	for do := true; do; do = arc.EnumNext() {
		e := arc.GetEntry()
		enc := ""
		if e.Encrypted {
			enc = "*"
		}
		fmt.Fprintf(a.out, "%-40s %10d %10d %3s %08x\n", e.Name, e.PlainSize, e.StoredSize, enc, e.Hash)
	}
	fmt.Fprintln(a.out, line)
	fmt.Fprintf(a.out, "%d files (scheme %s)\n", len(arc.Entries()), arc.Scheme().Name())
	return nil
}

// Extract はアーカイブからファイルを抽出します。files が空の場合はすべてのファイルが対象です。
func (a *App) Extract(ctx context.Context, archivePath, outDir string, files []string, workers int) error {
	arc, err := a.opener.Open(ctx, archivePath)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrOpenArchive, err)
	}
	defer arc.Close()

	ex := archive.NewExtractor(a.logger, a.fs, workers)
	result, err := ex.Extract(ctx, arc, outDir, files)
	for _, name := range result.NotFound {
		a.logger.Warn().Str("file", name).Msg("File not found in archive")
	}
	fmt.Fprintf(a.out, "%d files extracted\n", result.Extracted)

	if err != nil {
		return fmt.Errorf("%w: %w", ErrExtract, err)
	}
	if len(result.NotFound) > 0 {
		return fmt.Errorf("%w: %s", apperrors.ErrFilesNotFound, strings.Join(result.NotFound, ", "))
	}
	return nil
}

// Create は srcDir 以下のファイルからアーカイブを作成します。
// 暗号化する場合は設定のスキームを使います。
func (a *App) Create(ctx context.Context, archivePath, srcDir string, opts archive.CreateOptions) error {
	if opts.Encrypt && opts.Crypt == nil {
		spec := a.config.SchemeSpec()
		if spec == "" {
			return apperrors.NewArchiveError("create", archivePath, fmt.Errorf("%w: --encrypt requires --scheme", scheme.ErrInvalidSpec))
		}
		c, err := scheme.New(spec, a.config.SchemeOptions()...)
		if err != nil {
			return apperrors.NewArchiveError("scheme", spec, err)
		}
		opts.Crypt = c
	}

	n, err := archive.NewCreator(a.logger, a.fs).Create(ctx, archivePath, srcDir, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "%d files written to %s\n", n, archivePath)
	return nil
}

// Schemes は登録済みのスキームとタイトル表を表示します
func (a *App) Schemes() {
	fmt.Fprintln(a.out, "schemes:")
	for _, name := range scheme.Names() {
		fmt.Fprintf(a.out, "  %s\n", name)
	}
	fmt.Fprintln(a.out, "titles:")
	for _, t := range scheme.DefaultTitles {
		fmt.Fprintf(a.out, "  %-20s %-12s %s\n", t.Name, t.Scheme, strings.Join(t.Patterns, " "))
	}
}
