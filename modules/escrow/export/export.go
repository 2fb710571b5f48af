// Package export dumps the indexed escrow event log into parquet files for offline analysis.
package export

import (
	"context"
	"encoding/json"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/pkg/parquetutils"
)

const DefaultBatchSize = 1000

// EventRecord is one parquet row of the event log.
type EventRecord struct {
	ChainID    string `parquet:"name=chain_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	ProgramID  string `parquet:"name=program_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	OrderID    string `parquet:"name=order_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventName  string `parquet:"name=event_name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Signature  string `parquet:"name=signature, type=BYTE_ARRAY, convertedtype=UTF8"`
	EventIndex int32  `parquet:"name=event_index, type=INT32"`
	Slot       int64  `parquet:"name=slot, type=INT64"`
	Payload    string `parquet:"name=payload, type=BYTE_ARRAY, convertedtype=UTF8"`
	CreatedAt  int64  `parquet:"name=created_at, type=INT64, convertedtype=TIMESTAMP_MILLIS"`
}

// Result is an encoded export.
type Result struct {
	Data     []byte
	Count    int
	LastSlot uint64
}

// Events pages through the event log of the chain starting at fromSlot and encodes it as one parquet file.
func Events(ctx context.Context, escrowDg datagateway.EscrowReaderDataGateway, chainID common.ChainID, fromSlot uint64, batchSize int32) (Result, error) {
	batchSize = utils.Default(batchSize, DefaultBatchSize)

	var (
		records  []EventRecord
		lastSlot uint64
	)
	for offset := int32(0); ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return Result{}, errors.WithStack(err)
		}
		events, err := escrowDg.ListEventsForExport(ctx, chainID, fromSlot, batchSize, offset)
		if err != nil {
			return Result{}, errors.Wrap(err, "failed to list events")
		}
		for _, event := range events {
			record, err := newEventRecord(event)
			if err != nil {
				return Result{}, errors.WithStack(err)
			}
			records = append(records, record)
			lastSlot = max(lastSlot, event.Slot)
		}
		if len(events) < int(batchSize) {
			break
		}
	}

	data, err := parquetutils.WriteAll(records)
	if err != nil {
		return Result{}, errors.Wrap(err, "failed to encode events")
	}
	return Result{Data: data, Count: len(records), LastSlot: lastSlot}, nil
}

func newEventRecord(event entity.EscrowEvent) (EventRecord, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return EventRecord{}, errors.Wrapf(err, "failed to marshal payload of %s", event.Signature)
	}
	return EventRecord{
		ChainID:    event.ChainID.String(),
		ProgramID:  event.ProgramID,
		OrderID:    event.CampaignOrderID.String(),
		EventName:  string(event.EventName),
		Signature:  event.Signature,
		EventIndex: int32(event.EventIndex),
		Slot:       int64(event.Slot),
		Payload:    string(payload),
		CreatedAt:  event.CreatedAt.UnixMilli(),
	}, nil
}
