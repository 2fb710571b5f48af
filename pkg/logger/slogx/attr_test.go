package slogx

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type chain string

func (c chain) String() string { return string(c) }

func TestEscrowAttrs(t *testing.T) {
	assert.Equal(t, slog.String("event", "dispute_open"), Event("dispute_open"))
	assert.Equal(t, slog.String("chain", "localnet"), Chain(chain("localnet")))
	assert.Equal(t, slog.Uint64("slot", 42), Slot(42))
	assert.Equal(t, slog.String("signature", "sig"), Signature("sig"))
	assert.True(t, Error(nil).Equal(slog.Attr{}))
	assert.Equal(t, ErrorKey, Error(errors.New("boom")).Key)
}
