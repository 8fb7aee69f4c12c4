package archive

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"

	apperrors "github.com/shiroemons/go-xp3/internal/xp3tool/errors"
	"github.com/shiroemons/go-xp3/internal/xp3tool/interfaces"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// CreateOptions はアーカイブ作成の設定です
type CreateOptions struct {
	Crypt         xp3.Crypt // nil の場合は暗号化しません
	Compress      bool
	Encrypt       bool
	CompressIndex bool
	SegmentSize   int64
}

// Creator はディレクトリからアーカイブを作成します
type Creator struct {
	logger zerolog.Logger
	fs     interfaces.FileSystem
}

// NewCreator は新しいCreatorを作成します
func NewCreator(logger zerolog.Logger, fs interfaces.FileSystem) *Creator {
	return &Creator{logger: logger, fs: fs}
}

// Create は srcDir 以下のファイルを archivePath に書き込み、追加したファイル数を返します
func (c *Creator) Create(ctx context.Context, archivePath, srcDir string, opts CreateOptions) (int, error) {
	files, err := c.fs.WalkFiles(srcDir)
	if err != nil {
		return 0, err
	}
	if len(files) == 0 {
		return 0, apperrors.NewArchiveError("create", srcDir, apperrors.ErrNoSourceFiles)
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return 0, apperrors.NewArchiveError("create", archivePath, err)
	}
	defer out.Close()

	wopts := []xp3.WriterOption{
		xp3.WithIndexCompression(opts.CompressIndex),
		xp3.WithSegmentSize(opts.SegmentSize),
		xp3.WithWriterLogger(c.logger),
	}
	if opts.Crypt != nil {
		wopts = append(wopts, xp3.WithWriterCrypt(opts.Crypt))
	}
	w, err := xp3.NewWriter(out, wopts...)
	if err != nil {
		return 0, err
	}

	for _, name := range files {
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		default:
		}
		if err := c.add(w, srcDir, name, opts); err != nil {
			return 0, apperrors.NewArchiveError("add", name, err)
		}
	}
	if err := w.Close(); err != nil {
		return 0, apperrors.NewArchiveError("create", archivePath, err)
	}
	if err := out.Close(); err != nil {
		return 0, apperrors.NewArchiveError("create", archivePath, err)
	}
	c.logger.Info().Str("archive", archivePath).Int("files", len(files)).Msg("Created archive")
	return len(files), nil
}

func (c *Creator) add(w *xp3.Writer, srcDir, name string, opts CreateOptions) error {
	r, err := c.fs.Open(filepath.Join(srcDir, filepath.FromSlash(path.Clean(name))))
	if err != nil {
		return err
	}
	defer r.Close()

	return w.Add(name, r, xp3.AddOptions{
		Compress: opts.Compress,
		Encrypt:  opts.Encrypt && opts.Crypt != nil,
	})
}
