package codec

import (
	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

// Value is a decoded value. Only the fields matching Kind are set.
type Value struct {
	Kind    Kind
	Bytes   []byte           // KindPublicKey, KindFixedBytes
	Uint    uint64           // KindU8, KindU16, KindU32, KindU64
	Int     int64            // KindI64
	Bool    bool             // KindBool
	Variant string           // KindEnum
	Index   uint8            // KindEnum
	Fields  map[string]Value // KindStruct
	Some    *Value           // KindOption, nil is None
}

func PublicKeyValue(b []byte) Value { return Value{Kind: KindPublicKey, Bytes: b} }

func BytesValue(b []byte) Value { return Value{Kind: KindFixedBytes, Bytes: b} }

func UintValue(kind Kind, v uint64) Value { return Value{Kind: kind, Uint: v} }

func IntValue(v int64) Value { return Value{Kind: KindI64, Int: v} }

func BoolValue(v bool) Value { return Value{Kind: KindBool, Bool: v} }

func EnumValue(variant string) Value { return Value{Kind: KindEnum, Variant: variant} }

func StructValue(fields map[string]Value) Value { return Value{Kind: KindStruct, Fields: fields} }

func SomeValue(v Value) Value { return Value{Kind: KindOption, Some: &v} }

func NoneValue() Value { return Value{Kind: KindOption} }

// Field returns the struct field with the given name.
func (v Value) Field(name string) (Value, error) {
	if v.Kind != KindStruct {
		return Value{}, errors.Wrapf(errs.InvalidArgument, "value is %s, not struct", v.Kind)
	}
	field, ok := v.Fields[name]
	if !ok {
		return Value{}, errors.Wrapf(errs.NotFound, "field %q", name)
	}
	return field, nil
}

// PublicKeyString returns the base58 encoding of a public key value.
func (v Value) PublicKeyString() string {
	return base58.Encode(v.Bytes)
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) ([]byte, error) {
	b := base58.Decode(s)
	if len(b) != PublicKeySize {
		return nil, errors.Wrapf(errs.InvalidParameters, "invalid public key %q", s)
	}
	return b, nil
}
