package logger

import (
	"context"
	"log/slog"
)

type (
	handleFunc func(context.Context, slog.Record) error
	middleware func(handleFunc) handleFunc
)

// middlewareHandler runs records through middlewares before the wrapped handler.
type middlewareHandler struct {
	slog.Handler
	middlewares []middleware
}

func withMiddlewares(handler slog.Handler, middlewares ...middleware) slog.Handler {
	if len(middlewares) == 0 {
		return handler
	}
	return &middlewareHandler{Handler: handler, middlewares: middlewares}
}

func (h *middlewareHandler) Handle(ctx context.Context, rec slog.Record) error {
	handle := h.Handler.Handle
	for i := len(h.middlewares) - 1; i >= 0; i-- {
		handle = h.middlewares[i](handle)
	}
	return handle(ctx, rec)
}

func (h *middlewareHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &middlewareHandler{Handler: h.Handler.WithAttrs(attrs), middlewares: h.middlewares}
}

func (h *middlewareHandler) WithGroup(name string) slog.Handler {
	return &middlewareHandler{Handler: h.Handler.WithGroup(name), middlewares: h.middlewares}
}
