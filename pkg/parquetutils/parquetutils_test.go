package parquetutils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testRecord struct {
	Name  string `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Slot  int64  `parquet:"name=slot, type=INT64"`
	Valid bool   `parquet:"name=valid, type=BOOLEAN"`
}

func TestWriteAllReadAll(t *testing.T) {
	records := []testRecord{
		{Name: "DealCreated", Slot: 100, Valid: true},
		{Name: "DealAccepted", Slot: 105, Valid: true},
		{Name: "PaymentReleased", Slot: 230, Valid: false},
	}

	data, err := WriteAll(records)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	actual, err := ReadBytes[testRecord](data)
	require.NoError(t, err)
	assert.Equal(t, records, actual)
}
