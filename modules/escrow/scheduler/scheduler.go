// Package scheduler runs the periodic sweep over projected deals: it expires stale offers,
// reports open disputes and settles vesting deals.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/metrics"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSweepInterval     = 5 * time.Minute
	DefaultOfferExpiry       = 24 * time.Hour
	DefaultRejectWaitTimeout = time.Minute
	DefaultConcurrency       = 8

	maxRejectPollInterval = time.Second
	shutdownTimeout       = 60 * time.Second
)

// Report summarizes one sweep.
type Report struct {
	Skipped      bool `json:"skipped"`
	Expired      int  `json:"expired"`
	OpenDisputes int  `json:"openDisputes"`
	Settled      int  `json:"settled"`
	Released     int  `json:"released"`
	Failures     int  `json:"failures"`
}

type Scheduler struct {
	escrowDg datagateway.EscrowReaderDataGateway
	client   ledger.Client
	settler  *settlement.Settler
	locker   locker.Locker
	chainID  common.ChainID
	admin    string
	config   config.SchedulerConfig
	now      func() time.Time

	running atomic.Bool

	quitOnce sync.Once
	quit     chan struct{}
	done     chan struct{}
}

func New(escrowDg datagateway.EscrowReaderDataGateway, client ledger.Client, settler *settlement.Settler, dealLocker locker.Locker, chainID common.ChainID, admin string, conf config.SchedulerConfig) *Scheduler {
	conf.SweepInterval = utils.Default(conf.SweepInterval, DefaultSweepInterval)
	conf.OfferExpiry = utils.Default(conf.OfferExpiry, DefaultOfferExpiry)
	conf.RejectWaitTimeout = utils.Default(conf.RejectWaitTimeout, DefaultRejectWaitTimeout)
	conf.Concurrency = utils.Default(conf.Concurrency, DefaultConcurrency)
	return &Scheduler{
		escrowDg: escrowDg,
		client:   client,
		settler:  settler,
		locker:   dealLocker,
		chainID:  chainID,
		admin:    admin,
		config:   conf,
		now:      time.Now,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithClock overrides the clock used to find expired offers and dispute ages.
func (s *Scheduler) WithClock(now func() time.Time) *Scheduler {
	s.now = now
	return s
}

func (s *Scheduler) Run(ctx context.Context) error {
	defer close(s.done)
	ctx = logger.WithContext(ctx, slog.String("package", "scheduler"))

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.quit:
			logger.InfoContext(ctx, "Got quit signal, stopping scheduler")
			return nil
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				logger.ErrorContext(ctx, "Sweep failed", err)
			}
		}
	}
}

// Shutdown stops the sweep loop and waits for the in-flight sweep.
func (s *Scheduler) Shutdown(ctx context.Context) (err error) {
	s.quitOnce.Do(func() {
		close(s.quit)
		select {
		case <-s.done:
		case <-time.After(shutdownTimeout):
			err = errors.Wrap(errs.Timeout, "scheduler shutdown timeout")
		case <-ctx.Done():
			err = errors.Wrap(ctx.Err(), "scheduler shutdown context canceled")
		}
	})
	return
}

// Sweep runs one pass. A sweep started while another one is in flight is skipped.
// Per-deal failures are logged and counted, they are retried by the next sweep.
func (s *Scheduler) Sweep(ctx context.Context) (Report, error) {
	if !s.running.CompareAndSwap(false, true) {
		metrics.SweepsSkipped.Inc()
		logger.InfoContext(ctx, "Previous sweep still in flight, skipping")
		return Report{Skipped: true}, nil
	}
	defer s.running.Store(false)

	start := time.Now()
	defer func() {
		metrics.SweepDuration.Observe(time.Since(start).Seconds())
	}()

	var report Report
	if err := s.expire(ctx, &report); err != nil {
		return report, errors.Wrap(err, "failed to expire offers")
	}
	if err := s.reportDisputes(ctx, &report); err != nil {
		return report, errors.Wrap(err, "failed to report disputes")
	}
	if err := s.settle(ctx, &report); err != nil {
		return report, errors.Wrap(err, "failed to settle vesting deals")
	}

	logger.InfoContext(ctx, "Sweep finished",
		slogx.Int("expired", report.Expired),
		slogx.Int("open_disputes", report.OpenDisputes),
		slogx.Int("settled", report.Settled),
		slogx.Int("released", report.Released),
		slogx.Int("failures", report.Failures),
		slogx.Duration("duration", time.Since(start)),
	)
	return report, nil
}

func (s *Scheduler) expire(ctx context.Context, report *Report) error {
	deals, err := s.escrowDg.ListDeals(ctx, entity.DealFilter{
		ChainID:       s.chainID,
		Statuses:      []entity.DealStatus{entity.DealStatusCreated},
		CreatedBefore: s.now().Add(-s.config.OfferExpiry),
	})
	if err != nil {
		return errors.Wrap(err, "failed to list expired offers")
	}
	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			return errors.WithStack(err)
		}
		dealCtx := logger.WithContext(ctx, slogx.OrderID(deal.OrderID))
		rejected, err := s.rejectExpired(dealCtx, deal.OrderID)
		if err != nil {
			report.Failures++
			logger.ErrorContext(dealCtx, "Failed to reject expired offer", err)
			continue
		}
		if !rejected {
			continue
		}
		report.Expired++
		metrics.DealsExpired.Inc()
		if err := s.waitForStatus(dealCtx, deal.OrderID, entity.DealStatusRejected); err != nil {
			logger.WarnContext(dealCtx, "Rejected offer not projected yet", slogx.Error(err))
		}
	}
	return nil
}

// rejectExpired submits RejectDeal under the deal lock when the ledger account is still CREATED.
func (s *Scheduler) rejectExpired(ctx context.Context, orderID entity.OrderID) (bool, error) {
	unlock, err := s.locker.Lock(ctx, locker.DealKey(s.chainID, orderID))
	if err != nil {
		return false, errors.Wrap(err, "failed to lock deal")
	}
	defer unlock()

	deal, err := s.escrowDg.GetDeal(ctx, s.chainID, orderID)
	if err != nil {
		return false, errors.Wrap(err, "failed to get deal")
	}
	if deal.Status != entity.DealStatusCreated {
		return false, nil
	}
	account, err := s.client.GetDeal(ctx, deal.DealAddress)
	if err != nil {
		return false, errors.Wrap(err, "failed to read ledger account")
	}
	if account.Status != entity.DealStatusCreated {
		logger.DebugContext(ctx, "Offer already left CREATED on the ledger", slogx.String("status", account.Status.String()))
		return false, nil
	}
	sub, err := s.client.RejectDeal(ctx, deal.DealAddress, s.admin)
	if err != nil {
		metrics.LedgerSubmissionErrors.WithLabelValues("reject_deal").Inc()
		return false, errors.Wrap(err, "failed to submit reject")
	}
	logger.InfoContext(ctx, "Expired offer rejected",
		slogx.Event("offer_expired"),
		slogx.Signature(sub.Signature),
	)
	return true, nil
}

// waitForStatus polls the projection until the deal reaches status or the reject wait timeout elapses.
func (s *Scheduler) waitForStatus(ctx context.Context, orderID entity.OrderID, status entity.DealStatus) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.RejectWaitTimeout)
	defer cancel()

	ticker := time.NewTicker(max(min(maxRejectPollInterval, s.config.RejectWaitTimeout/10), time.Millisecond))
	defer ticker.Stop()
	for {
		deal, err := s.escrowDg.GetDeal(ctx, s.chainID, orderID)
		if err != nil && !errors.Is(err, errs.NotFound) {
			return errors.Wrap(err, "failed to get deal")
		}
		if err == nil && deal.Status == status {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(errs.Timeout, "deal is still %s", deal.Status)
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) reportDisputes(ctx context.Context, report *Report) error {
	deals, err := s.escrowDg.ListDeals(ctx, entity.DealFilter{
		ChainID:  s.chainID,
		Statuses: []entity.DealStatus{entity.DealStatusDisputed},
	})
	if err != nil {
		return errors.Wrap(err, "failed to list disputed deals")
	}
	now := s.now()
	for _, deal := range deals {
		logger.WarnContext(ctx, "Dispute is open",
			slogx.Event("dispute_open"),
			slogx.OrderID(deal.OrderID),
			slogx.String("reason", string(deal.DisputeReason)),
			slogx.Duration("open_for", now.Sub(deal.DisputedAt)),
		)
	}
	report.OpenDisputes = len(deals)
	metrics.OpenDisputes.Set(float64(len(deals)))
	return nil
}

func (s *Scheduler) settle(ctx context.Context, report *Report) error {
	deals, err := s.escrowDg.ListDeals(ctx, entity.DealFilter{
		ChainID: s.chainID,
		Statuses: []entity.DealStatus{
			entity.DealStatusPartiallyEligible,
			entity.DealStatusPartialCompleted,
			entity.DealStatusFullyEligible,
		},
	})
	if err != nil {
		return errors.Wrap(err, "failed to list vesting deals")
	}

	var mu sync.Mutex
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(s.config.Concurrency)
	for _, deal := range deals {
		eg.Go(func() error {
			dealCtx := logger.WithContext(ectx, slogx.OrderID(deal.OrderID))
			outcome, err := s.settler.Settle(dealCtx, deal.OrderID, false)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				report.Settled++
				if outcome.Release != nil {
					report.Released++
				}
			case errors.Is(err, errs.ExceedsVestedAmount):
				report.Failures++
				metrics.ConsistencyWarnings.WithLabelValues("scheduler").Inc()
				logger.WarnContext(dealCtx, "Release refused by the ledger, not retrying",
					slogx.Event("vesting_consistency_warning"),
					slogx.Error(err),
				)
			case errors.Is(err, errs.InvalidState):
				// the deal left the vesting path since it was listed
				logger.DebugContext(dealCtx, "Deal is no longer vesting", slogx.Error(err))
			default:
				report.Failures++
				logger.ErrorContext(dealCtx, "Failed to settle deal", err)
			}
			return nil
		})
	}
	return errors.WithStack(eg.Wait())
}
