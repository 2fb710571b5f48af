// Package slogx holds typed slog attribute constructors, including the keys escrow records share.
package slogx

import (
	"fmt"
	"log/slog"
	"time"
)

// ErrorKey is the attribute key of error values.
const ErrorKey = "error"

// Keys shared by escrow components, so ingestion, projection and sweep records can be joined.
const (
	EventKey       = "event"
	ChainKey       = "chain"
	OrderIDKey     = "order_id"
	DealAddressKey = "deal_address"
	SlotKey        = "slot"
	SignatureKey   = "signature"
)

// Event tags a record operators alert on, such as ingestion_degraded or dispute_open.
func Event(name string) slog.Attr { return slog.String(EventKey, name) }

func Chain(chain fmt.Stringer) slog.Attr { return Stringer(ChainKey, chain) }

func OrderID(orderID fmt.Stringer) slog.Attr { return Stringer(OrderIDKey, orderID) }

func DealAddress(address string) slog.Attr { return slog.String(DealAddressKey, address) }

func Slot(slot uint64) slog.Attr { return slog.Uint64(SlotKey, slot) }

// Signature is the ledger transaction signature of a submission or an ingested event.
func Signature(signature string) slog.Attr { return slog.String(SignatureKey, signature) }

// Error returns an empty attribute for a nil error, which handlers drop.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any(ErrorKey, err)
}

func String(key, value string) slog.Attr { return slog.String(key, value) }

func Stringer(key string, value fmt.Stringer) slog.Attr { return slog.String(key, value.String()) }

func Strings(key string, values []string) slog.Attr { return slog.Any(key, values) }

func Int(key string, value int) slog.Attr { return slog.Int64(key, int64(value)) }

func Uint64(key string, value uint64) slog.Attr { return slog.Uint64(key, value) }

func Duration(key string, value time.Duration) slog.Attr { return slog.Duration(key, value) }
