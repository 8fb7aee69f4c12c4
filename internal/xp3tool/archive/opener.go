// Package archive はアーカイブの操作を行います
package archive

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/shiroemons/go-xp3/internal/xp3tool/config"
	apperrors "github.com/shiroemons/go-xp3/internal/xp3tool/errors"
	"github.com/shiroemons/go-xp3/pkg/scheme"
	"github.com/shiroemons/go-xp3/pkg/xp3"
)

// Opener はスキームを選択してアーカイブを開きます
type Opener struct {
	cfg    *config.Config
	logger zerolog.Logger
	titles scheme.TitleTable
	prompt scheme.Prompt
}

// NewOpener は新しいOpenerを作成します。prompt が nil の場合、タイトルが曖昧なときはエラーになります。
func NewOpener(cfg *config.Config, logger zerolog.Logger, prompt scheme.Prompt) *Opener {
	return &Opener{
		cfg:    cfg,
		logger: logger,
		titles: scheme.DefaultTitles,
		prompt: prompt,
	}
}

// WithTitles はタイトル表を差し替えた Opener を返します
func (o *Opener) WithTitles(titles scheme.TitleTable) *Opener {
	c := *o
	c.titles = titles
	return &c
}

// Crypt はアーカイブに使用するスキームを決定します。
// 明示的な指定、タイトル表による推定、スキームなしの順に試します。
func (o *Opener) Crypt(archivePath string) (xp3.Crypt, error) {
	if spec := o.cfg.SchemeSpec(); spec != "" {
		c, err := scheme.New(spec, o.cfg.SchemeOptions()...)
		if err != nil {
			return nil, apperrors.NewArchiveError("scheme", spec, err)
		}
		return c, nil
	}

	title, err := o.titles.Resolve(archivePath, o.prompt)
	switch {
	case errors.Is(err, scheme.ErrUnknownTitle):
		o.logger.Debug().Str("archive", archivePath).Msg("No title matched, reading without decryption")
		return xp3.NoCrypt{}, nil
	case err != nil:
		return nil, apperrors.NewArchiveError("detect title", archivePath, err)
	}

	o.logger.Info().Str("title", title.Name).Str("scheme", title.Scheme).Msg("Detected title")
	c, err := title.Crypt(o.cfg.SchemeOptions()...)
	if err != nil {
		return nil, apperrors.NewArchiveError("scheme", title.Scheme, err)
	}
	return c, nil
}

// Open はスキームを選択してアーカイブを開きます
func (o *Opener) Open(ctx context.Context, archivePath string) (*xp3.Archive, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	c, err := o.Crypt(archivePath)
	if err != nil {
		return nil, err
	}

	opts := []xp3.Option{
		xp3.WithCrypt(c),
		xp3.WithLogger(o.logger),
	}
	if o.cfg.Names != "" {
		opts = append(opts, xp3.WithNameListFile(o.cfg.Names))
	}

	a, err := xp3.Open(archivePath, opts...)
	if err != nil {
		return nil, apperrors.NewArchiveError("open", archivePath, err)
	}
	o.logger.Debug().
		Str("archive", archivePath).
		Str("scheme", c.Name()).
		Int("entries", len(a.Entries())).
		Int64("base", a.Base()).
		Msg("Opened archive")
	return a, nil
}
