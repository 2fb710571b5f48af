package codec

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/pkg/bufferpool"
)

var (
	ErrShortBuffer  = errors.New("short buffer")
	ErrTrailingData = errors.New("trailing data")
)

// Decode decodes data according to t. The whole buffer must be consumed.
func Decode(t Type, data []byte) (Value, error) {
	d := decoder{data: data}
	v, err := d.decode(t, "")
	if err != nil {
		return Value{}, errors.WithStack(err)
	}
	if d.off != len(d.data) {
		return Value{}, errors.Wrapf(ErrTrailingData, "%d bytes left", len(d.data)-d.off)
	}
	return v, nil
}

type decoder struct {
	data []byte
	off  int
}

func (d *decoder) take(n int, path string) ([]byte, error) {
	if n < 0 || d.off+n > len(d.data) {
		return nil, errors.Wrapf(ErrShortBuffer, "field %q: need %d bytes at offset %d, have %d", path, n, d.off, len(d.data)-d.off)
	}
	b := d.data[d.off : d.off+n]
	d.off += n
	return b, nil
}

func (d *decoder) decode(t Type, path string) (Value, error) {
	switch t.Kind {
	case KindPublicKey:
		b, err := d.take(PublicKeySize, path)
		if err != nil {
			return Value{}, err
		}
		return PublicKeyValue(bytes.Clone(b)), nil
	case KindFixedBytes:
		b, err := d.take(t.Size, path)
		if err != nil {
			return Value{}, err
		}
		return BytesValue(bytes.Clone(b)), nil
	case KindU8, KindBool:
		b, err := d.take(1, path)
		if err != nil {
			return Value{}, err
		}
		if t.Kind == KindU8 {
			return UintValue(KindU8, uint64(b[0])), nil
		}
		if b[0] > 1 {
			return Value{}, errors.Wrapf(errs.InvalidArgument, "field %q: invalid bool %d", path, b[0])
		}
		return BoolValue(b[0] == 1), nil
	case KindU16:
		b, err := d.take(2, path)
		if err != nil {
			return Value{}, err
		}
		return UintValue(KindU16, uint64(binary.LittleEndian.Uint16(b))), nil
	case KindU32:
		b, err := d.take(4, path)
		if err != nil {
			return Value{}, err
		}
		return UintValue(KindU32, uint64(binary.LittleEndian.Uint32(b))), nil
	case KindU64:
		b, err := d.take(8, path)
		if err != nil {
			return Value{}, err
		}
		return UintValue(KindU64, binary.LittleEndian.Uint64(b)), nil
	case KindI64:
		b, err := d.take(8, path)
		if err != nil {
			return Value{}, err
		}
		return IntValue(int64(binary.LittleEndian.Uint64(b))), nil
	case KindEnum:
		b, err := d.take(1, path)
		if err != nil {
			return Value{}, err
		}
		if int(b[0]) >= len(t.Variants) {
			return Value{}, errors.Wrapf(errs.InvalidArgument, "field %q: enum discriminant %d out of range", path, b[0])
		}
		return Value{Kind: KindEnum, Variant: t.Variants[b[0]], Index: b[0]}, nil
	case KindStruct:
		fields := make(map[string]Value, len(t.Fields))
		for _, f := range t.Fields {
			v, err := d.decode(f.Type, joinPath(path, f.Name))
			if err != nil {
				return Value{}, err
			}
			fields[f.Name] = v
		}
		return StructValue(fields), nil
	case KindOption:
		b, err := d.take(1, path)
		if err != nil {
			return Value{}, err
		}
		switch b[0] {
		case 0:
			return NoneValue(), nil
		case 1:
			if t.Elem == nil {
				return Value{}, errors.Wrapf(errs.InvalidArgument, "field %q: option without element type", path)
			}
			v, err := d.decode(*t.Elem, path)
			if err != nil {
				return Value{}, err
			}
			return SomeValue(v), nil
		default:
			return Value{}, errors.Wrapf(errs.InvalidArgument, "field %q: invalid option tag %d", path, b[0])
		}
	}
	return Value{}, errors.Wrapf(errs.Unsupported, "field %q: kind %s", path, t.Kind)
}

// Encode encodes v according to t.
func Encode(t Type, v Value) ([]byte, error) {
	buf := bufferpool.Get()
	defer buf.Free()
	if err := encode(buf, t, v, ""); err != nil {
		return nil, errors.WithStack(err)
	}
	return buf.Clone(), nil
}

func encode(buf *bufferpool.Buffer, t Type, v Value, path string) error {
	if v.Kind != t.Kind {
		return errors.Wrapf(errs.InvalidArgument, "field %q: expected %s value, got %s", path, t.Kind, v.Kind)
	}
	switch t.Kind {
	case KindPublicKey:
		if len(v.Bytes) != PublicKeySize {
			return errors.Wrapf(errs.InvalidArgument, "field %q: public key must be %d bytes", path, PublicKeySize)
		}
		buf.Write(v.Bytes)
	case KindFixedBytes:
		if len(v.Bytes) > t.Size {
			return errors.Wrapf(errs.InvalidArgument, "field %q: %d bytes exceeds size %d", path, len(v.Bytes), t.Size)
		}
		buf.Write(v.Bytes)
		buf.Write(make([]byte, t.Size-len(v.Bytes)))
	case KindU8:
		if v.Uint > 0xff {
			return errors.Wrapf(errs.InvalidArgument, "field %q: %d overflows u8", path, v.Uint)
		}
		buf.WriteByte(byte(v.Uint))
	case KindU16:
		if v.Uint > 0xffff {
			return errors.Wrapf(errs.InvalidArgument, "field %q: %d overflows u16", path, v.Uint)
		}
		buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(v.Uint)))
	case KindU32:
		if v.Uint > 0xffffffff {
			return errors.Wrapf(errs.InvalidArgument, "field %q: %d overflows u32", path, v.Uint)
		}
		buf.Write(binary.LittleEndian.AppendUint32(nil, uint32(v.Uint)))
	case KindU64:
		buf.Write(binary.LittleEndian.AppendUint64(nil, v.Uint))
	case KindI64:
		buf.Write(binary.LittleEndian.AppendUint64(nil, uint64(v.Int)))
	case KindBool:
		if v.Bool {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case KindEnum:
		index := -1
		for i, variant := range t.Variants {
			if variant == v.Variant {
				index = i
				break
			}
		}
		if index < 0 {
			return errors.Wrapf(errs.InvalidArgument, "field %q: unknown enum variant %q", path, v.Variant)
		}
		buf.WriteByte(byte(index))
	case KindStruct:
		for _, f := range t.Fields {
			fv, ok := v.Fields[f.Name]
			if !ok {
				return errors.Wrapf(errs.InvalidArgument, "field %q is missing", joinPath(path, f.Name))
			}
			if err := encode(buf, f.Type, fv, joinPath(path, f.Name)); err != nil {
				return err
			}
		}
	case KindOption:
		if v.Some == nil {
			buf.WriteByte(0)
			return nil
		}
		buf.WriteByte(1)
		if t.Elem == nil {
			return errors.Wrapf(errs.InvalidArgument, "field %q: option without element type", path)
		}
		return encode(buf, *t.Elem, *v.Some, path)
	default:
		return errors.Wrapf(errs.Unsupported, "field %q: kind %s", path, t.Kind)
	}
	return nil
}

func joinPath(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}
