package logger

import (
	"log/slog"

	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

// Keys for log attributes.
const (
	TimeKey            = slog.TimeKey
	LevelKey           = slog.LevelKey
	MessageKey         = slog.MessageKey
	SourceKey          = slog.SourceKey
	ErrorKey           = slogx.ErrorKey
	ErrorVerboseKey    = "error_verbose"
	ErrorStackTraceKey = "error_stacktrace"
)

// Keys shared by escrow components, so log queries can join ingestion, projection and sweep records.
const (
	EventKey       = slogx.EventKey
	ChainKey       = slogx.ChainKey
	OrderIDKey     = slogx.OrderIDKey
	DealAddressKey = slogx.DealAddressKey
	SlotKey        = slogx.SlotKey
	SignatureKey   = slogx.SignatureKey
)
