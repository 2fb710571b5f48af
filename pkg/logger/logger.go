// nolint: sloglint
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultLevel is the minimum reporting level before Init is called.
const DefaultLevel = slog.LevelDebug

var (
	lvl = new(slog.LevelVar)

	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:       lvl,
		ReplaceAttr: levelAttrReplacer,
	}))
)

func init() {
	lvl.Set(DefaultLevel)
	slog.SetDefault(logger)
	// `log` is only allowed while debugging
	slog.SetLogLoggerLevel(slog.LevelDebug)
}

// Config is the logger configuration.
type Config struct {
	// Output is the log format, `text` (default) or `json`.
	Output string `mapstructure:"output" env:"OUTPUT" envDefault:"text"`

	// Debug enables debug level, source locations and error stack traces.
	Debug bool `mapstructure:"debug" env:"DEBUG" envDefault:"false"`

	// Level overrides the minimum reporting level, e.g. "warn" or "critical". Ignored when Debug is enabled.
	Level string `mapstructure:"level" env:"LEVEL"`

	// Redact lists extra attribute keys whose values are masked, on top of DefaultRedactedKeys.
	Redact []string `mapstructure:"redact"`
}

// SetLevel sets the minimum reporting level and returns the previous one.
func SetLevel(level slog.Level) (old slog.Level) {
	old = lvl.Level()
	lvl.Set(level)
	return old
}

// Init replaces the global logger and the slog default logger.
func Init(cfg Config) error {
	handler, err := newHandler(cfg, os.Stdout)
	if err != nil {
		return errors.WithStack(err)
	}
	logger = slog.New(handler)
	slog.SetDefault(logger)
	return nil
}

func newHandler(cfg Config, w io.Writer) (slog.Handler, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	lvl.Set(level)

	replacers := []attrReplacer{
		levelAttrReplacer,
		errorAttrReplacer,
		redactAttrReplacer(append(DefaultRedactedKeys, cfg.Redact...)...),
	}
	var middlewares []middleware
	options := &slog.HandlerOptions{Level: lvl}
	if cfg.Debug {
		lvl.Set(slog.LevelDebug)
		options.AddSource = true
		middlewares = append(middlewares, middlewareErrorStackTrace())
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Output) {
	case "json":
		options.ReplaceAttr = chainAttrReplacers(append(replacers, durationToMsAttrReplacer)...)
		handler = slog.NewJSONHandler(w, options)
	case "", "text":
		options.ReplaceAttr = chainAttrReplacers(replacers...)
		handler = slog.NewTextHandler(w, options)
	default:
		return nil, errors.Errorf("unsupported logger output %q", cfg.Output)
	}
	return withMiddlewares(handler, middlewares...), nil
}

// With returns the global logger with the given attributes.
func With(args ...any) *slog.Logger {
	return logger.With(args...)
}

// Warn logs at [slog.LevelWarn] without a context.
func Warn(msg string, args ...any) {
	log(context.Background(), logger, slog.LevelWarn, msg, args...)
}

// Panic logs at [LevelPanic] and then panics.
func Panic(msg string, args ...any) {
	log(context.Background(), logger, LevelPanic, msg, args...)
	panic(msg)
}

// LogAttrs logs attrs at the given level from the logger in ctx.
func LogAttrs(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	l := FromContext(ctx)
	if !l.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, callerPC(1))
	r.AddAttrs(attrs...)
	_ = l.Handler().Handle(ctx, r)
}

// log must be called directly by an exported function, the caller pc is taken at a fixed depth.
func log(ctx context.Context, l *slog.Logger, level slog.Level, msg string, args ...any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.Enabled(ctx, level) {
		return
	}
	r := slog.NewRecord(time.Now(), level, msg, callerPC(2))
	r.Add(args...)
	_ = l.Handler().Handle(ctx, r)
}

// callerPC returns the pc of the frame depth levels above the caller of callerPC.
func callerPC(depth int) uintptr {
	var pcs [1]uintptr
	runtime.Callers(2+depth, pcs[:])
	return pcs[0]
}
