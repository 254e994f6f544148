package internal

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the root logger. JSON goes to w; the text format is a
// colored handler on w when w is a terminal.
func NewLogger(cfg ApplicationConfig, w *os.File) *slog.Logger {
	if cfg.LogFormat == LogFormatText {
		var out io.Writer = colorable.NewColorable(w)
		return slog.New(tint.NewHandler(out, &tint.Options{
			Level:      cfg.LogLevel,
			TimeFormat: "15:04:05.000",
			NoColor:    !isatty.IsTerminal(w.Fd()),
		}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
}
