package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"

	"github.com/shiroemons/go-xp3/internal/xp3tool/app"
	"github.com/shiroemons/go-xp3/internal/xp3tool/archive"
	"github.com/shiroemons/go-xp3/internal/xp3tool/config"
)

// runContext はサブコマンドに渡される実行時の値
type runContext struct {
	ctx context.Context
	app *app.App
}

type ListCmd struct {
	Archive string `arg:"" type:"existingfile" help:"Archive to list"`
}

func (c *ListCmd) Run(rc *runContext) error {
	return rc.app.List(rc.ctx, c.Archive)
}

type ExtractCmd struct {
	Archive string   `arg:"" type:"existingfile" help:"Archive to extract"`
	Files   []string `arg:"" optional:"" help:"Entries to extract (all when omitted)"`
	Output  string   `short:"o" default:"." type:"path" help:"Output directory"`
	Workers int      `short:"w" default:"4" help:"Number of parallel extraction workers"`
}

func (c *ExtractCmd) Run(rc *runContext) error {
	return rc.app.Extract(rc.ctx, c.Archive, c.Output, c.Files, c.Workers)
}

type CreateCmd struct {
	Archive       string `arg:"" type:"path" help:"Archive to write"`
	Source        string `arg:"" type:"existingdir" help:"Directory holding the files to pack"`
	Compress      bool   `help:"Compress file segments with zlib"`
	Encrypt       bool   `help:"Encrypt files with the scheme given by --scheme"`
	CompressIndex bool   `default:"true" negatable:"" help:"Compress the archive index"`
	SegmentSize   int64  `default:"0" help:"Split files into segments of this many bytes (0 keeps one segment)"`
}

func (c *CreateCmd) Run(rc *runContext) error {
	return rc.app.Create(rc.ctx, c.Archive, c.Source, archive.CreateOptions{
		Compress:      c.Compress,
		Encrypt:       c.Encrypt,
		CompressIndex: c.CompressIndex,
		SegmentSize:   c.SegmentSize,
	})
}

type SchemesCmd struct{}

func (c *SchemesCmd) Run(rc *runContext) error {
	rc.app.Schemes()
	return nil
}

type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("xp3tool version %s\n", config.Version)
	return nil
}

type CLI struct {
	config.Config

	List    ListCmd    `cmd:"" help:"List the files in an archive"`
	Extract ExtractCmd `cmd:"" help:"Extract files from an archive"`
	Create  CreateCmd  `cmd:"" help:"Create an archive from a directory"`
	Schemes SchemesCmd `cmd:"" help:"List the available schemes and known titles"`
	Version VersionCmd `cmd:"" help:"Display the app version and exit"`
}

func main() {
	cli := CLI{}
	kctx := kong.Parse(
		&cli,
		kong.Name("xp3tool"),
		kong.Description("XP3 archive reader and writer"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Summary: true,
			Tree:    true,
		}),
	)

	logger, err := config.NewLogger(&cli.Config)
	kctx.FatalIfErrorf(err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rc := &runContext{
		ctx: ctx,
		app: app.New(&cli.Config, logger),
	}
	if err := kctx.Run(rc); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		stop()
		os.Exit(1)
	}
}
