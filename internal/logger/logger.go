package logger

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log is the global logger instance
var Log *slog.Logger

type Options struct {
	IsDev     bool
	SentryDSN string
	// LogFile enables a rotating JSON file sink in addition to stdout
	LogFile string
}

// Init initializes the global logger based on environment
// Development: Text format with Debug level
// Production: JSON format with Info level
// Optionally sends errors to Sentry and mirrors records into a rotating file
func Init(opts Options) {
	Log = slog.New(newHandler(opts, os.Stdout))
	slog.SetDefault(Log)
}

func newHandler(opts Options, stdout io.Writer) slog.Handler {
	var level slog.Level
	var handlers []slog.Handler

	// Base handler for stdout (always enabled)
	if opts.IsDev {
		level = slog.LevelDebug
		handlers = append(handlers, slog.NewTextHandler(stdout, &slog.HandlerOptions{
			Level: level,
		}))
	} else {
		level = slog.LevelInfo
		handlers = append(handlers, slog.NewJSONHandler(stdout, &slog.HandlerOptions{
			Level: level,
		}))
	}

	if opts.LogFile != "" {
		err := os.MkdirAll(filepath.Dir(opts.LogFile), 0755)
		if err == nil {
			handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
				Filename:   opts.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
				Compress:   true,
			}, &slog.HandlerOptions{Level: level}))
		}
	}

	// Optional Sentry handler (sends errors only)
	if opts.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              opts.SentryDSN,
			TracesSampleRate: 1.0,
		})
		if err == nil {
			handlers = append(handlers, slogsentry.Option{
				Level: slog.LevelError,
			}.NewSentryHandler())
		}
	}

	// Use multi-handler if we have multiple, otherwise use single
	if len(handlers) > 1 {
		return slogmulti.Fanout(handlers...)
	}
	return handlers[0]
}
