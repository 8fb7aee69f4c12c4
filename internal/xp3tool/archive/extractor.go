package archive

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// DefaultWorkers は並列抽出の既定のワーカー数
const DefaultWorkers = 4

// Extractor はアーカイブからファイルを抽出します
type Extractor struct {
	logger  zerolog.Logger
	fs      interfaces.FileSystem
	workers int
}

// NewExtractor は新しいExtractorを作成します。workers が 0 以下の場合は DefaultWorkers を使います。
func NewExtractor(logger zerolog.Logger, fs interfaces.FileSystem, workers int) *Extractor {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Extractor{
		logger:  logger,
		fs:      fs,
		workers: workers,
	}
}

// Result は抽出の結果です
type Result struct {
	Extracted int      // 抽出したファイル数
	NotFound  []string // 指定されたがアーカイブになかった名前
}

// Select は抽出対象のエントリと見つからなかった名前を返します。
// names が空の場合はすべてのエントリが対象です。
func Select(a *xp3.Archive, names []string) ([]*xp3.Entry, []string) {
	if len(names) == 0 {
		return a.Entries(), nil
	}
	var entries []*xp3.Entry
	var notFound []string
	for _, name := range names {
		if e, ok := a.Lookup(name); ok {
			entries = append(entries, e)
		} else {
			notFound = append(notFound, name)
		}
	}
	slices.Sort(notFound)
	return entries, notFound
}

// Extract は outDir 以下にエントリを並列で抽出します。
// 最初のエラーで残りのジョブは中断され、それまでの件数とともに返します。
func (e *Extractor) Extract(ctx context.Context, a *xp3.Archive, outDir string, names []string) (Result, error) {
	entries, notFound := Select(a, names)
	result := Result{NotFound: notFound}

	if err := e.fs.MkdirAll(outDir, 0o755); err != nil {
		return result, err
	}

	var extracted atomic.Int64
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for _, entry := range entries {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			if err := e.extractEntry(a, entry, outDir); err != nil {
				e.logger.Error().Err(err).Str("entry", entry.Name).Msg("Failed to extract")
				return fmt.Errorf("%w: %s: %w", ErrExtractFailed, entry.Name, err)
			}
			extracted.Add(1)
			e.logger.Debug().Str("entry", entry.Name).Int64("size", entry.PlainSize).Msg("Extracted")
			return nil
		})
	}
	err := g.Wait()
	result.Extracted = int(extracted.Load())
	return result, err
}

func (e *Extractor) extractEntry(a *xp3.Archive, entry *xp3.Entry, outDir string) error {
	path, err := xp3.EntryPath(outDir, entry.Name)
	if err != nil {
		return err
	}
	if err := e.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := e.fs.Create(path)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(out)
	if err := a.ExtractEntry(entry, w, nil); err != nil {
		out.Close()
		return err
	}
	if err := w.Flush(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
