package datagateway

import (
	"context"

	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
)

type EscrowDataGateway interface {
	EscrowReaderDataGateway
	EscrowWriterDataGateway

	// BeginEscrowTx returns a new EscrowDataGateway with transaction enabled. All write operations performed in this datagateway must be committed to persist changes.
	BeginEscrowTx(ctx context.Context) (EscrowDataGatewayWithTx, error)
}

type EscrowDataGatewayWithTx interface {
	EscrowDataGateway
	Tx
}

type EscrowReaderDataGateway interface {
	// GetIndexerState returns the ingestion cursor of the chain. Returns errs.NotFound if nothing was ingested yet.
	GetIndexerState(ctx context.Context, chainID common.ChainID) (entity.IndexerState, error)

	// GetEventsByOrderID returns every event of the deal in replay order.
	GetEventsByOrderID(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.EscrowEvent, error)
	// ListEventsForExport returns the events of the chain starting at fromSlot in replay order.
	ListEventsForExport(ctx context.Context, chainID common.ChainID, fromSlot uint64, limit, offset int32) ([]entity.EscrowEvent, error)

	// GetDeal returns the projected deal. Returns errs.NotFound if the deal was never projected.
	GetDeal(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) (entity.Deal, error)
	// ListDeals returns projected deals ordered by creation time. Zero value filter fields are ignored.
	ListDeals(ctx context.Context, filter entity.DealFilter) ([]entity.Deal, error)
	// GetTransitions returns the status audit trail of the deal ordered by slot.
	GetTransitions(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.Transition, error)
}

type EscrowWriterDataGateway interface {
	// CreateEvents inserts the events, ignoring the ones already stored. Returns the newly inserted events.
	CreateEvents(ctx context.Context, events []entity.EscrowEvent) ([]entity.EscrowEvent, error)
	SetIndexerState(ctx context.Context, state entity.IndexerState) error
	UpsertDeal(ctx context.Context, deal entity.Deal) error
	// UpsertTransitions stores the transitions. An already recorded status keeps the earliest slot.
	UpsertTransitions(ctx context.Context, transitions []entity.Transition) error
}
