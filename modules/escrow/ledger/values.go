package ledger

import (
	"bytes"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/codec"
)

// valueReader reads typed fields from a decoded struct value. The first error is kept on the root reader.
type valueReader struct {
	value  codec.Value
	parent *valueReader
	err    error
}

func (r *valueReader) root() *valueReader {
	for r.parent != nil {
		r = r.parent
	}
	return r
}

func (r *valueReader) fail(err error) {
	if root := r.root(); root.err == nil {
		root.err = err
	}
}

func (r *valueReader) field(name string) codec.Value {
	v, err := r.value.Field(name)
	if err != nil {
		r.fail(err)
	}
	return v
}

func (r *valueReader) child(name string) *valueReader {
	return &valueReader{value: r.field(name), parent: r}
}

func (r *valueReader) bytes(name string) []byte {
	return r.field(name).Bytes
}

// text reads a NUL padded string. NUL bytes and invalid UTF-8 are dropped so the value can be stored as JSON text.
func (r *valueReader) text(name string) string {
	s := string(bytes.TrimRight(r.bytes(name), "\x00"))
	return strings.ToValidUTF8(strings.ReplaceAll(s, "\x00", ""), "")
}

func (r *valueReader) publicKey(name string) string {
	v := r.field(name)
	if len(v.Bytes) == 0 {
		return ""
	}
	return v.PublicKeyString()
}

func (r *valueReader) uint(name string) uint64 {
	return r.field(name).Uint
}

func (r *valueReader) time(name string) time.Time {
	return time.Unix(r.field(name).Int, 0).UTC()
}

func enumValue[T any](r *valueReader, name string, values []T) T {
	var zero T
	v := r.field(name)
	if v.Kind != codec.KindEnum {
		return zero
	}
	if int(v.Index) >= len(values) {
		r.fail(errors.Wrapf(errs.InvalidArgument, "field %q: unmapped variant %q", name, v.Variant))
		return zero
	}
	return values[v.Index]
}

// valueWriter builds the struct value of an event for encoding.
type valueWriter struct {
	fields map[string]codec.Value
	err    error
}

func (w *valueWriter) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *valueWriter) bytes(name string, b []byte) {
	w.fields[name] = codec.BytesValue(b)
}

func (w *valueWriter) publicKey(name, key string) {
	b, err := codec.ParsePublicKey(key)
	if err != nil {
		w.fail(errors.Wrapf(err, "field %q", name))
		return
	}
	w.fields[name] = codec.PublicKeyValue(b)
}

func (w *valueWriter) uint(name string, kind codec.Kind, v uint64) {
	w.fields[name] = codec.UintValue(kind, v)
}

func (w *valueWriter) enum(name, variant string) {
	w.fields[name] = codec.EnumValue(variant)
}

func enumVariant[T comparable](w *valueWriter, v T, values []T, variants []string) string {
	for i, value := range values {
		if value == v {
			return variants[i]
		}
	}
	w.fail(errors.Wrapf(errs.InvalidArgument, "value %v has no ledger variant", v))
	return ""
}
