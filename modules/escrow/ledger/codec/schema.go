// Package codec decodes ledger event payloads with an explicit schema.
//
// Payloads are Borsh encoded: little-endian integers, 1 byte booleans, 1 byte enum
// discriminants, 1 byte option tags followed by the value, struct fields in order.
package codec

import "fmt"

// Kind is the closed set of field types supported by the codec.
type Kind uint8

const (
	KindPublicKey Kind = iota + 1
	KindFixedBytes
	KindU8
	KindU16
	KindU32
	KindU64
	KindI64
	KindBool
	KindEnum
	KindStruct
	KindOption
)

var kindNames = map[Kind]string{
	KindPublicKey:  "publicKey",
	KindFixedBytes: "fixedBytes",
	KindU8:         "u8",
	KindU16:        "u16",
	KindU32:        "u32",
	KindU64:        "u64",
	KindI64:        "i64",
	KindBool:       "bool",
	KindEnum:       "enum",
	KindStruct:     "struct",
	KindOption:     "option",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// PublicKeySize is the size of an ed25519 public key.
const PublicKeySize = 32

// Type describes the layout of a value.
type Type struct {
	Kind     Kind
	Size     int      // KindFixedBytes
	Variants []string // KindEnum, unit variants in discriminant order
	Fields   []Field  // KindStruct
	Elem     *Type    // KindOption
}

type Field struct {
	Name string
	Type Type
}

func PublicKey() Type { return Type{Kind: KindPublicKey} }

func FixedBytes(n int) Type { return Type{Kind: KindFixedBytes, Size: n} }

func U8() Type { return Type{Kind: KindU8} }

func U16() Type { return Type{Kind: KindU16} }

func U32() Type { return Type{Kind: KindU32} }

func U64() Type { return Type{Kind: KindU64} }

func I64() Type { return Type{Kind: KindI64} }

func Bool() Type { return Type{Kind: KindBool} }

func Enum(variants ...string) Type { return Type{Kind: KindEnum, Variants: variants} }

func Struct(fields ...Field) Type { return Type{Kind: KindStruct, Fields: fields} }

func Option(elem Type) Type { return Type{Kind: KindOption, Elem: &elem} }

func F(name string, t Type) Field { return Field{Name: name, Type: t} }
