package entity

import (
	"bytes"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

// OrderIDLength is the size of the order identifier seed used by the ledger.
const OrderIDLength = 16

// OrderID is the externally supplied campaign order identifier, NUL padded or truncated to 16 bytes.
type OrderID [OrderIDLength]byte

// NewOrderID encodes s into an OrderID. Longer inputs are truncated to 16 bytes, shorter inputs are right padded with NUL.
func NewOrderID(s string) (OrderID, error) {
	var id OrderID
	if s == "" {
		return id, errors.Wrap(errs.InvalidParameters, "order id is required")
	}
	if bytes.IndexByte([]byte(s), 0) >= 0 {
		return id, errors.Wrap(errs.InvalidParameters, "order id must not contain NUL bytes")
	}
	copy(id[:], s)
	return id, nil
}

// OrderIDFromBytes converts a raw 16 byte buffer to OrderID. The buffer must hold an id
// NewOrderID can produce: not empty, with NUL bytes only as trailing padding.
func OrderIDFromBytes(b []byte) (OrderID, error) {
	var id OrderID
	if len(b) != OrderIDLength {
		return id, errors.Wrapf(errs.InvalidParameters, "order id must be exactly %d bytes, got %d", OrderIDLength, len(b))
	}
	trimmed := bytes.TrimRight(b, "\x00")
	if len(trimmed) == 0 {
		return id, errors.Wrap(errs.InvalidParameters, "order id is required")
	}
	if bytes.IndexByte(trimmed, 0) >= 0 {
		return id, errors.Wrap(errs.InvalidParameters, "order id must not contain NUL bytes")
	}
	copy(id[:], b)
	return id, nil
}

// String decodes the order id by trimming the NUL padding.
func (o OrderID) String() string {
	return string(bytes.TrimRight(o[:], "\x00"))
}

func (o OrderID) Bytes() []byte {
	return o[:]
}

func (o OrderID) IsZero() bool {
	return o == OrderID{}
}

func (o OrderID) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

func (o *OrderID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.WithStack(err)
	}
	id, err := NewOrderID(s)
	if err != nil {
		return errors.WithStack(err)
	}
	*o = id
	return nil
}
