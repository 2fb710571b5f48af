// Package projector folds the ordered event history of a deal into the Deal aggregate.
package projector

import (
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/samber/lo"
)

// Projection is the result of folding the history of one deal.
type Projection struct {
	Deal entity.Deal
	// Transitions holds one entry per status reached, with the earliest slot reporting it.
	Transitions []entity.Transition
	// Warnings are events that disagree with the projected state and were skipped.
	Warnings []Warning
}

type Warning struct {
	Event entity.EventKey
	Slot  uint64
	Err   error
}

// Project replays events in (createdAt, slot, eventIndex) order. The first DealCreated seeds the
// aggregate; every other event is applied by the state machine. Duplicated events are ignored.
// Returns errs.NotFound if the creation event is not part of the history.
func Project(events []entity.EscrowEvent) (Projection, error) {
	events = lo.UniqBy(events, func(e entity.EscrowEvent) entity.EventKey { return e.Key() })
	events = slices.Clone(events)
	slices.SortStableFunc(events, entity.CompareReplayOrder)

	seedIndex := slices.IndexFunc(events, func(e entity.EscrowEvent) bool {
		return e.EventName == entity.EventDealCreated
	})
	if seedIndex < 0 {
		return Projection{}, errors.Wrap(errs.NotFound, "deal creation event is not ingested")
	}

	f := &fold{transitions: make(map[entity.DealStatus]entity.Transition)}
	if err := f.seed(events[seedIndex]); err != nil {
		return Projection{}, err
	}
	for i, event := range events {
		if i == seedIndex || event.EventName == entity.EventDealCreated {
			continue
		}
		f.apply(event)
	}

	transitions := lo.Values(f.transitions)
	slices.SortFunc(transitions, func(a, b entity.Transition) int {
		if a.Slot != b.Slot {
			if a.Slot < b.Slot {
				return -1
			}
			return 1
		}
		return a.Status.Rank() - b.Status.Rank()
	})
	return Projection{
		Deal:        f.deal,
		Transitions: transitions,
		Warnings:    f.warnings,
	}, nil
}

type fold struct {
	deal        entity.Deal
	transitions map[entity.DealStatus]entity.Transition
	warnings    []Warning
}

func (f *fold) seed(event entity.EscrowEvent) error {
	p := event.Payload
	if p.Amount == nil || p.Decimals == nil || p.VestingCondition == nil {
		return errors.Wrapf(errs.InvalidArgument, "creation event %s is missing deal terms", event.Signature)
	}
	f.deal = entity.Deal{
		OrderID:          event.CampaignOrderID,
		ChainID:          event.ChainID,
		DealAddress:      p.DealAddress,
		ProjectOwner:     p.ProjectOwner,
		KOL:              p.KOL,
		Mint:             p.Mint,
		Amount:           *p.Amount,
		Decimals:         *p.Decimals,
		VestingType:      p.VestingType,
		VestingCondition: *p.VestingCondition,
		Channel:          p.Channel,
		Status:           entity.DealStatusCreated,
		StartTime:        unixTime(p.StartTime),
		CreatedAt:        event.CreatedAt,
		DisputeReason:    entity.DisputeReasonNone,
	}
	f.touch(event)
	f.transition(entity.DealStatusCreated, event)
	return nil
}

// apply applies a non-creation event. Events that do not move the deal forward are no-ops.
func (f *fold) apply(event entity.EscrowEvent) {
	d := &f.deal
	p := event.Payload

	switch event.EventName {
	case entity.EventDealAccepted:
		if f.advance(event, entity.DealStatusAccepted, entity.DealStatusCreated) {
			d.AcceptTime = unixTime(p.AcceptTime)
		}
	case entity.EventDealRejected:
		f.advance(event, entity.DealStatusRejected, entity.DealStatusCreated)
	case entity.EventEligibilityUpdated:
		target := lo.FromPtr(p.NewEligibilityStatus)
		if target == "" {
			target = lo.FromPtr(p.Status)
		}
		switch target {
		case entity.DealStatusPartiallyEligible:
			f.advance(event, target, entity.DealStatusAccepted)
		case entity.DealStatusFullyEligible:
			f.advance(event, target, entity.DealStatusAccepted, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted)
		default:
			f.warn(event, errors.Wrapf(errs.InvalidArgument, "unexpected eligibility status %q", target))
		}
	case entity.EventPaymentReleased:
		f.release(event)
	case entity.EventDealDisputed:
		if f.advance(event, entity.DealStatusDisputed,
			entity.DealStatusAccepted, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted, entity.DealStatusFullyEligible,
		) {
			d.DisputeReason = p.DisputeReason
			d.DisputeDetail = p.DisputeDetail
			d.DisputedAt = event.CreatedAt
		}
	case entity.EventDisputeResolved:
		if d.Status != entity.DealStatusDisputed {
			f.earliest(entity.DealStatusResolved, event)
			return
		}
		released := lo.FromPtr(p.ReleasedAmount)
		if released > d.Amount {
			f.warn(event, errors.Wrapf(errs.ExceedsVestedAmount, "resolved released amount %d exceeds deal amount %d", released, d.Amount))
			return
		}
		d.ReleasedAmount = max(d.ReleasedAmount, released)
		f.advance(event, entity.DealStatusResolved, entity.DealStatusDisputed)
	default:
		f.warn(event, errors.Wrapf(errs.Unsupported, "event %s", event.EventName))
	}
}

func (f *fold) release(event entity.EscrowEvent) {
	d := &f.deal
	released := lo.FromPtr(event.Payload.ReleasedAmount)
	if released > d.Amount {
		f.warn(event, errors.Wrapf(errs.ExceedsVestedAmount, "released amount %d exceeds deal amount %d", released, d.Amount))
		return
	}
	switch d.Status {
	case entity.DealStatusAccepted, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted, entity.DealStatusFullyEligible:
	default:
		if d.Status == entity.DealStatusCompleted {
			f.earliest(entity.DealStatusCompleted, event)
		}
		return
	}
	if released > d.ReleasedAmount {
		d.ReleasedAmount = released
		f.touch(event)
	}
	switch {
	case d.ReleasedAmount == d.Amount:
		f.advance(event, entity.DealStatusCompleted, d.Status)
	case d.Status == entity.DealStatusAccepted || d.Status == entity.DealStatusPartiallyEligible:
		f.advance(event, entity.DealStatusPartialCompleted, d.Status)
	}
}

// advance moves the deal to target if the current status is one of from.
// Returns false if the event was a no-op.
func (f *fold) advance(event entity.EscrowEvent, target entity.DealStatus, from ...entity.DealStatus) bool {
	if f.deal.Status == target {
		f.earliest(target, event)
		return false
	}
	if !lo.Contains(from, f.deal.Status) {
		return false
	}
	f.deal.Status = target
	f.touch(event)
	f.transition(target, event)
	return true
}

func (f *fold) transition(status entity.DealStatus, event entity.EscrowEvent) {
	f.transitions[status] = entity.Transition{
		OrderID:        f.deal.OrderID,
		ChainID:        f.deal.ChainID,
		Status:         status,
		Slot:           event.Slot,
		Signature:      event.Signature,
		TransitionedAt: event.CreatedAt,
	}
}

// earliest keeps the lowest slot reporting an already reached status.
func (f *fold) earliest(status entity.DealStatus, event entity.EscrowEvent) {
	if t, ok := f.transitions[status]; ok && event.Slot < t.Slot {
		f.transition(status, event)
	}
}

func (f *fold) touch(event entity.EscrowEvent) {
	if event.Slot >= f.deal.LastSlot {
		f.deal.LastSlot = event.Slot
		f.deal.LastSignature = event.Signature
	}
	if event.CreatedAt.After(f.deal.UpdatedAt) {
		f.deal.UpdatedAt = event.CreatedAt
	}
}

func (f *fold) warn(event entity.EscrowEvent, err error) {
	f.warnings = append(f.warnings, Warning{Event: event.Key(), Slot: event.Slot, Err: err})
}

func unixTime(sec *int64) time.Time {
	if sec == nil {
		return time.Time{}
	}
	return time.Unix(*sec, 0).UTC()
}
