// Command shelving inspects and mutates a JSONL data directory through the
// shelving storage stack: reads and writes go through schema validation
// and the debug logging provider, and watch streams live changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

func main() {
	if err := newRootCommand().Execute(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "shelving: %v\n", err)
		os.Exit(1)
	}
}

// initLogger builds the CLI logger: colored tint output on a terminal,
// plain text otherwise.
func initLogger(level string, noColor bool) *slog.Logger {
	ll := &slog.LevelVar{}
	switch level {
	case "debug":
		ll.Set(slog.LevelDebug)
	case "warn":
		ll.Set(slog.LevelWarn)
	case "error":
		ll.Set(slog.LevelError)
	default:
		ll.Set(slog.LevelInfo)
	}
	return slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      ll,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor || !isatty.IsTerminal(os.Stderr.Fd()),
	}))
}
