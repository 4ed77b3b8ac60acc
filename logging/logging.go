// Package logging builds the process logger from config.LogConfig.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/warp/loyalty-engine/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New returns a logger writing to stdout, or to a rotating file when
// cfg.File is set. The returned closer releases the file.
func New(cfg config.LogConfig) (*slog.Logger, io.Closer) {
	var (
		out    io.Writer = os.Stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		out, closer = rotator, rotator
	}
	return slog.New(NewHandler(out, cfg)), closer
}

// NewHandler picks the text or JSON handler for cfg.Format.
func NewHandler(w io.Writer, cfg config.LogConfig) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     cfg.Level,
		AddSource: cfg.AddSource,
	}
	if cfg.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
