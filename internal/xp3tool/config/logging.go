package config

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrInvalidLogOutput は未知の出力形式が指定された場合のエラー
	ErrInvalidLogOutput = errors.New("logging: unknown output format")

	// ErrInvalidLogLevel は未知のログレベルが指定された場合のエラー
	ErrInvalidLogLevel = errors.New("logging: unknown level")
)

// NewLogger は設定からロガーを作成します
func NewLogger(cfg *Config) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.Nop(), ErrInvalidLogLevel
	}

	var output io.Writer
	switch cfg.LogOutput {
	case "console", "":
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	case "stdout":
		output = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339, NoColor: true}
	case "stderr":
		output = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339, NoColor: true}
	case "json":
		output = os.Stderr
	default:
		return zerolog.Nop(), ErrInvalidLogOutput
	}

	return zerolog.New(output).Level(lvl).With().Timestamp().Logger(), nil
}
