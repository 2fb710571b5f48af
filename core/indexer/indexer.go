package indexer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

const (
	// DefaultPollingInterval is the default polling interval for the indexer polling worker
	DefaultPollingInterval = 5 * time.Second

	// DefaultDegradedAfter is the number of consecutive failed rounds before the indexer reports itself degraded.
	DefaultDegradedAfter = 3

	DefaultMaxRetryInterval = 2 * time.Minute

	shutdownTimeout = 180 * time.Second
)

type Config struct {
	// StartSlot is the first slot to index when no cursor is persisted yet.
	StartSlot        uint64
	PollingInterval  time.Duration
	MaxRetryInterval time.Duration
	DegradedAfter    int
}

// Status is a point-in-time view of the indexer progress.
type Status struct {
	Slot        uint64
	Initialized bool
	Degraded    bool
	Failures    int
	LastError   string
	LastErrorAt time.Time
	UpdatedAt   time.Time
}

// Indexer generic cursor indexer for fetching and processing slot ordered data.
//
// The cursor is the last fully processed slot. Each round re-reads from the cursor slot
// (inclusive), since a slot may still receive events after it was first observed.
// Processors must therefore be idempotent.
type Indexer[T any] struct {
	Processor  Processor[T]
	Datasource Datasource[T]
	config     Config

	mu     sync.RWMutex
	status Status

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

// New create new generic indexer
func New[T any](processor Processor[T], datasource Datasource[T], config ...Config) *Indexer[T] {
	conf, _ := utils.Optional(config)
	conf.PollingInterval = utils.Default(conf.PollingInterval, DefaultPollingInterval)
	conf.MaxRetryInterval = utils.Default(conf.MaxRetryInterval, DefaultMaxRetryInterval)
	conf.DegradedAfter = utils.Default(conf.DegradedAfter, DefaultDegradedAfter)
	return &Indexer[T]{
		Processor:  processor,
		Datasource: datasource,
		config:     conf,

		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Status returns the current progress of the indexer.
func (i *Indexer[T]) Status() Status {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.status
}

func (i *Indexer[T]) Shutdown() error {
	return i.ShutdownWithContext(context.Background())
}

func (i *Indexer[T]) ShutdownWithTimeout(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return i.ShutdownWithContext(ctx)
}

func (i *Indexer[T]) ShutdownWithContext(ctx context.Context) (err error) {
	i.quitOnce.Do(func() {
		close(i.quit)
		select {
		case <-i.done:
		case <-time.After(shutdownTimeout):
			err = errors.Wrap(errs.Timeout, "indexer shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "indexer shutdown context canceled")
		}
	})
	return
}

func (i *Indexer[T]) Run(ctx context.Context) (err error) {
	defer close(i.done)

	ctx = logger.WithContext(ctx,
		slog.String("package", "indexer"),
		slog.String("processor", i.Processor.Name()),
		slog.String("datasource", i.Datasource.Name()),
	)

	cursor, err := i.Processor.CurrentSlot(ctx)
	if err != nil {
		if !errors.Is(err, errs.NotFound) {
			return errors.Wrap(err, "can't init state, failed to get indexer current slot")
		}
		logger.InfoContext(ctx, "No persisted cursor, starting from configured slot", slogx.Uint64("start_slot", i.config.StartSlot))
		i.setCursor(i.config.StartSlot, false)
	} else {
		logger.InfoContext(ctx, "Resuming from persisted cursor", slogx.Slot(cursor))
		i.setCursor(cursor, true)
	}

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = i.config.PollingInterval
	retry.MaxInterval = i.config.MaxRetryInterval
	retry.MaxElapsedTime = 0

	ticker := time.NewTicker(i.config.PollingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-i.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping indexer")
			if err := i.Processor.Shutdown(ctx); err != nil {
				logger.ErrorContext(ctx, "Failed to shutdown processor", err)
				return errors.Wrap(err, "processor shutdown failed")
			}
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := i.process(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				wait := retry.NextBackOff()
				i.recordFailure(ctx, err, wait)
				ticker.Reset(wait)
				continue
			}
			if i.recordSuccess() {
				logger.InfoContext(ctx, "Ingestion recovered", slogx.Event("ingestion_recovered"))
				retry.Reset()
				ticker.Reset(i.config.PollingInterval)
			}
			logger.DebugContext(ctx, "Waiting for next polling interval")
		}
	}
}

func (i *Indexer[T]) process(ctx context.Context) error {
	latest, err := i.Datasource.LatestSlot(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to get latest slot")
	}

	from := i.Status().Slot
	if from > latest {
		return nil
	}

	logger.DebugContext(ctx, "Start fetching input data", slogx.Uint64("from", from), slogx.Uint64("to", latest))
	ch := make(chan Batch[T])
	subscription, err := i.Datasource.FetchAsync(ctx, from, latest, ch)
	if err != nil {
		return errors.Wrap(err, "failed to fetch input data")
	}
	defer subscription.Unsubscribe()

	expected := from
	for {
		select {
		case <-i.quit:
			return nil
		case batch := <-ch:
			if batch.FromSlot != expected || batch.ToSlot < batch.FromSlot {
				return errors.Wrapf(errs.InternalError, "batch is not contiguous, expected from slot %d, got [%d, %d]", expected, batch.FromSlot, batch.ToSlot)
			}

			startAt := time.Now()
			ctx := logger.WithContext(ctx,
				slogx.Uint64("from", batch.FromSlot),
				slogx.Uint64("to", batch.ToSlot),
				slogx.Int("total_inputs", len(batch.Inputs)),
			)
			if err := i.Processor.Process(ctx, batch); err != nil {
				return errors.WithStack(err)
			}

			i.setCursor(batch.ToSlot, true)
			expected = batch.ToSlot + 1

			if len(batch.Inputs) > 0 {
				logger.InfoContext(ctx, "Processed inputs successfully",
					slogx.Event("processed_inputs"),
					slogx.Uint64("current_slot", batch.ToSlot),
					slogx.Duration("duration", time.Since(startAt)),
				)
			}
		case err := <-subscription.Err():
			if err != nil {
				return errors.Wrap(err, "got error while fetch async")
			}
		case <-subscription.Done():
			select {
			case err := <-subscription.Err():
				if err != nil {
					return errors.Wrap(err, "got error while fetch async")
				}
			default:
			}
			if err := ctx.Err(); err != nil {
				return errors.Wrap(err, "context done")
			}
			if expected <= latest {
				return errors.Wrapf(errs.Unavailable, "fetch ended at slot %d before reaching slot %d", expected, latest)
			}
			return nil
		case <-ctx.Done():
			return errors.WithStack(ctx.Err())
		}
	}
}

func (i *Indexer[T]) setCursor(slot uint64, initialized bool) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.status.Slot = slot
	i.status.Initialized = initialized
	i.status.UpdatedAt = time.Now()
}

func (i *Indexer[T]) recordFailure(ctx context.Context, err error, wait time.Duration) {
	i.mu.Lock()
	i.status.Failures++
	i.status.LastError = err.Error()
	i.status.LastErrorAt = time.Now()
	becameDegraded := !i.status.Degraded && i.status.Failures >= i.config.DegradedAfter
	if becameDegraded {
		i.status.Degraded = true
	}
	failures := i.status.Failures
	i.mu.Unlock()

	if becameDegraded {
		logger.ErrorContext(ctx, "Ingestion degraded, data may be stale", err,
			slogx.Event("ingestion_degraded"),
			slogx.Int("failures", failures),
			slogx.Duration("retry_in", wait),
		)
		return
	}
	logger.WarnContext(ctx, "Indexer failed while processing, retrying",
		slogx.Error(err),
		slogx.Int("failures", failures),
		slogx.Duration("retry_in", wait),
	)
}

// recordSuccess resets the failure state. It reports whether the indexer was failing before.
func (i *Indexer[T]) recordSuccess() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	wasFailing := i.status.Failures > 0
	i.status.Failures = 0
	i.status.Degraded = false
	return wasFailing
}
