package ledger

import (
	"context"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/internal/subscription"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	cstream "github.com/planxnx/concurrent-stream"
)

const (
	defaultWindowSize  = 1000
	defaultPageSize    = 500
	defaultConcurrency = 4
)

// Make sure to implement the Datasource interface
var _ indexer.Datasource[RawEvent] = (*Datasource)(nil)

// Datasource streams the ledger event log as contiguous slot windows.
// Resuming from a slot always goes through FetchHistoricalEvents, so a reconnect never assumes gap-free delivery.
type Datasource struct {
	client           Client
	windowSize       uint64
	pageSize         int
	concurrency      int
	pollInterval     time.Duration
	maxRetryInterval time.Duration
}

func NewDatasource(client Client, conf config.IngestionConfig) *Datasource {
	return &Datasource{
		client:      client,
		windowSize:  utils.Default(conf.WindowSize, defaultWindowSize),
		pageSize:    utils.Default(conf.PageSize, defaultPageSize),
		concurrency: utils.Default(conf.Concurrency, defaultConcurrency),

		pollInterval:     utils.Default(conf.PollingInterval, indexer.DefaultPollingInterval),
		maxRetryInterval: utils.Default(conf.MaxRetryInterval, indexer.DefaultMaxRetryInterval),
	}
}

func (d *Datasource) Name() string {
	return "EscrowLedger"
}

func (d *Datasource) LatestSlot(ctx context.Context) (uint64, error) {
	slot, err := d.client.LatestSlot(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get latest slot")
	}
	return slot, nil
}

type windowResult struct {
	batch indexer.Batch[RawEvent]
	err   error
}

// FetchAsync fetches windows of [from, to] in parallel and delivers them in slot order.
// Delivery stops at the first failed window, so a batch is never sent past a gap.
func (d *Datasource) FetchAsync(ctx context.Context, from, to uint64, ch chan<- indexer.Batch[RawEvent]) (*subscription.ClientSubscription[indexer.Batch[RawEvent]], error) {
	sub := subscription.NewSubscription(ch)
	if from > to {
		sub.Complete()
		return sub.Client(), nil
	}

	out := make(chan windowResult)
	stream := cstream.NewStream(ctx, d.concurrency, out)

	go func() {
		defer close(out)
		_ = stream.Wait()
	}()

	// Fan-out windows to the subscription channel in order
	go func() {
		for {
			select {
			case result, ok := <-out:
				if !ok {
					sub.Complete()
					return
				}
				if result.err != nil {
					if err := sub.SendError(ctx, result.err); err != nil {
						logger.WarnContext(ctx, "Failed to send fetch error", slogx.Error(err))
					}
					sub.Unsubscribe()
					return
				}
				if err := sub.Send(ctx, result.batch); err != nil {
					logger.WarnContext(ctx, "Failed to dispatch events", slogx.Error(err),
						slogx.Uint64("from", result.batch.FromSlot),
						slogx.Uint64("to", result.batch.ToSlot),
					)
					sub.Unsubscribe()
					return
				}
			case <-ctx.Done():
				sub.Unsubscribe()
				return
			}
		}
	}()

	go func() {
		defer stream.Close()
		done := sub.Done()
		for start := from; start <= to; {
			end := min(to, start+d.windowSize-1)
			if end < start { // overflow
				end = to
			}
			windowFrom, windowTo := start, end
			select {
			case <-done:
				return
			case <-ctx.Done():
				return
			default:
				stream.Go(func() windowResult {
					events, err := d.fetchWindow(ctx, windowFrom, windowTo)
					if err != nil {
						logger.ErrorContext(ctx, "Failed to fetch events", err,
							slogx.Uint64("from", windowFrom),
							slogx.Uint64("to", windowTo),
						)
						return windowResult{err: errors.Wrapf(err, "failed to fetch events: from_slot: %d, to_slot: %d", windowFrom, windowTo)}
					}
					return windowResult{batch: indexer.Batch[RawEvent]{FromSlot: windowFrom, ToSlot: windowTo, Inputs: events}}
				})
			}
			if end == to {
				break
			}
			start = end + 1
		}
	}()

	return sub.Client(), nil
}

// SubscribeEvents polls the ledger from fromSlot (inclusive) and sends the observed events in slot order.
// The stream only ends when ctx is done or the client unsubscribes. A failed poll is reported on Err
// and retried with backoff from the first undelivered slot.
func (d *Datasource) SubscribeEvents(ctx context.Context, chainID common.ChainID, fromSlot uint64, ch chan<- []RawEvent) (*subscription.ClientSubscription[[]RawEvent], error) {
	if !chainID.IsSupported() {
		return nil, errors.Wrapf(errs.Unsupported, "%q chain is not supported", chainID)
	}
	sub := subscription.NewSubscription(ch)
	ctx = logger.WithContext(ctx, slogx.Chain(chainID))
	go d.poll(ctx, sub, fromSlot)
	return sub.Client(), nil
}

func (d *Datasource) poll(ctx context.Context, sub *subscription.Subscription[[]RawEvent], cursor uint64) {
	defer sub.Unsubscribe()

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = d.pollInterval
	retry.MaxInterval = max(d.maxRetryInterval, d.pollInterval)
	retry.MaxElapsedTime = 0

	var wait time.Duration
	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-time.After(wait):
		}

		var err error
		cursor, err = d.pollOnce(ctx, sub, cursor)
		if err == nil {
			retry.Reset()
			wait = d.pollInterval
			continue
		}
		if ctx.Err() != nil || errors.Is(err, errs.Closed) {
			return
		}
		wait = retry.NextBackOff()
		logger.WarnContext(ctx, "Failed to poll ledger events, retrying",
			slogx.Error(err),
			slogx.Uint64("from", cursor),
			slogx.Duration("retry_in", wait),
		)
		sendCtx, cancel := context.WithTimeout(ctx, wait)
		err = sub.SendError(sendCtx, err)
		cancel()
		if errors.Is(err, errs.Closed) {
			return
		}
	}
}

// pollOnce delivers the events of [cursor, latest] and returns the next undelivered slot.
func (d *Datasource) pollOnce(ctx context.Context, sub *subscription.Subscription[[]RawEvent], cursor uint64) (uint64, error) {
	latest, err := d.LatestSlot(ctx)
	if err != nil {
		return cursor, errors.WithStack(err)
	}
	if latest < cursor {
		return cursor, nil
	}

	batches := make(chan indexer.Batch[RawEvent])
	fetch, err := d.FetchAsync(ctx, cursor, latest, batches)
	if err != nil {
		return cursor, errors.WithStack(err)
	}
	defer fetch.Unsubscribe()
	for {
		select {
		case batch := <-batches:
			if len(batch.Inputs) > 0 {
				if err := sub.Send(ctx, batch.Inputs); err != nil {
					return cursor, errors.WithStack(err)
				}
			}
			cursor = batch.ToSlot + 1
		case err := <-fetch.Err():
			return cursor, errors.WithStack(err)
		case <-fetch.Done():
			select {
			case err := <-fetch.Err():
				return cursor, errors.WithStack(err)
			default:
			}
			return cursor, nil
		case <-ctx.Done():
			return cursor, errors.WithStack(ctx.Err())
		}
	}
}

func (d *Datasource) fetchWindow(ctx context.Context, from, to uint64) ([]RawEvent, error) {
	var events []RawEvent
	for offset := 0; ; offset += d.pageSize {
		page, err := d.client.FetchHistoricalEvents(ctx, EventQuery{
			FromSlot: from,
			ToSlot:   to,
			Limit:    d.pageSize,
			Offset:   offset,
		})
		if err != nil {
			return nil, errors.WithStack(err)
		}
		for _, event := range page {
			if event.Slot < from || event.Slot > to {
				return nil, errors.Errorf("ledger returned event at slot %d outside window [%d, %d]", event.Slot, from, to)
			}
		}
		events = append(events, page...)
		if len(page) < d.pageSize {
			return events, nil
		}
	}
}
