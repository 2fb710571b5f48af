package indexer

import (
	"context"

	"github.com/mutual-network/escrow-indexer/internal/subscription"
)

type IndexerWorker interface {
	Run(ctx context.Context) error
	Shutdown() error
}

// Batch is a contiguous slot window [FromSlot, ToSlot] with every input observed in it.
// An empty batch still advances the cursor.
type Batch[T any] struct {
	FromSlot uint64
	ToSlot   uint64
	Inputs   []T
}

type Processor[T any] interface {
	Name() string

	// Process durably processes the batch, including the cursor update. The indexer only
	// advances past the batch after Process returns nil.
	Process(ctx context.Context, batch Batch[T]) error

	// CurrentSlot returns the last fully processed slot. Returns errs.NotFound if nothing was processed yet.
	CurrentSlot(ctx context.Context) (uint64, error)

	// Shutdown gracefully stops the processor and releases its resources.
	Shutdown(ctx context.Context) error
}

type Datasource[T any] interface {
	Name() string

	// LatestSlot returns the latest slot observed by the datasource.
	LatestSlot(ctx context.Context) (uint64, error)

	// FetchAsync fetches inputs of slots [from, to] and sends them as ordered, contiguous batches.
	// The subscription is closed after the last batch is delivered.
	FetchAsync(ctx context.Context, from, to uint64, ch chan<- Batch[T]) (*subscription.ClientSubscription[Batch[T]], error)
}
