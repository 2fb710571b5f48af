package logger

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/errbase"
)

// errorAttrReplacer renders error values as their message only.
func errorAttrReplacer(groups []string, attr slog.Attr) slog.Attr {
	if len(groups) == 0 && attr.Key == ErrorKey {
		if err, ok := attr.Value.Any().(error); ok && err != nil {
			return slog.String(ErrorKey, err.Error())
		}
	}
	return attr
}

// middlewareErrorStackTrace adds the verbose error and the deepest captured stack of the first error attribute.
func middlewareErrorStackTrace() middleware {
	return func(next handleFunc) handleFunc {
		return func(ctx context.Context, rec slog.Record) error {
			rec.Attrs(func(attr slog.Attr) bool {
				if attr.Key != ErrorKey {
					return true
				}
				err, ok := attr.Value.Any().(error)
				if !ok || err == nil {
					return true
				}
				rec.AddAttrs(slog.String(ErrorVerboseKey, fmt.Sprintf("%+v", err)))
				if frames := stackFrames(err); len(frames) > 0 {
					rec.AddAttrs(slog.Any(ErrorStackTraceKey, frames))
				}
				return false
			})
			return next(ctx, rec)
		}
	}
}

// stackFrames formats the deepest stack attached to err as "function file:line", runtime frames excluded.
func stackFrames(err error) []string {
	var trace errbase.StackTrace
	for e := err; e != nil; e = errors.UnwrapOnce(e) {
		if provider, ok := e.(errbase.StackTraceProvider); ok {
			trace = provider.StackTrace()
		}
	}
	if len(trace) == 0 {
		return nil
	}

	pcs := make([]uintptr, len(trace))
	for i, frame := range trace {
		pcs[i] = uintptr(frame)
	}
	var lines []string
	frames := runtime.CallersFrames(pcs)
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !strings.HasPrefix(frame.Function, "runtime.") {
			lines = append(lines, fmt.Sprintf("%s %s:%d", frame.Function, frame.File, frame.Line))
		}
		if !more {
			return lines
		}
	}
}
