// Package memory is an in-process EscrowDataGateway. Transactions are serialized and
// rolled back by restoring a snapshot taken at begin.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/samber/lo"
)

var ErrTxAlreadyExists = errors.New("Transaction already exists. Call Commit() or Rollback() first.")

type dealKey struct {
	chainID common.ChainID
	orderID entity.OrderID
}

type state struct {
	events      map[entity.EventKey]entity.EscrowEvent
	deals       map[dealKey]entity.Deal
	transitions map[dealKey]map[entity.DealStatus]entity.Transition
	indexer     map[common.ChainID]entity.IndexerState
}

func newState() *state {
	return &state{
		events:      make(map[entity.EventKey]entity.EscrowEvent),
		deals:       make(map[dealKey]entity.Deal),
		transitions: make(map[dealKey]map[entity.DealStatus]entity.Transition),
		indexer:     make(map[common.ChainID]entity.IndexerState),
	}
}

func (s *state) clone() *state {
	c := &state{
		events:      maps.Clone(s.events),
		deals:       maps.Clone(s.deals),
		transitions: make(map[dealKey]map[entity.DealStatus]entity.Transition, len(s.transitions)),
		indexer:     maps.Clone(s.indexer),
	}
	for k, v := range s.transitions {
		c.transitions[k] = maps.Clone(v)
	}
	return c
}

type store struct {
	txMu sync.Mutex // held by a transaction from begin to commit/rollback, and by each write outside a transaction
	mu   sync.RWMutex
	data *state
}

type Repository struct {
	store    *store
	inTx     bool
	snapshot *state
}

var _ datagateway.EscrowDataGatewayWithTx = (*Repository)(nil)

func NewRepository() *Repository {
	return &Repository{store: &store{data: newState()}}
}

func (r *Repository) read(fn func(s *state)) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	fn(r.store.data)
}

func (r *Repository) write(fn func(s *state)) {
	if !r.inTx {
		r.store.txMu.Lock()
		defer r.store.txMu.Unlock()
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	fn(r.store.data)
}

func (r *Repository) BeginEscrowTx(ctx context.Context) (datagateway.EscrowDataGatewayWithTx, error) {
	if r.inTx {
		return nil, errors.WithStack(ErrTxAlreadyExists)
	}
	r.store.txMu.Lock()
	var snapshot *state
	r.read(func(s *state) { snapshot = s.clone() })
	return &Repository{store: r.store, inTx: true, snapshot: snapshot}, nil
}

func (r *Repository) Commit(ctx context.Context) error {
	if !r.inTx {
		return nil
	}
	r.inTx = false
	r.snapshot = nil
	r.store.txMu.Unlock()
	return nil
}

func (r *Repository) Rollback(ctx context.Context) error {
	if !r.inTx {
		return nil
	}
	r.store.mu.Lock()
	r.store.data = r.snapshot
	r.store.mu.Unlock()
	r.inTx = false
	r.snapshot = nil
	r.store.txMu.Unlock()
	return nil
}

func (r *Repository) GetIndexerState(ctx context.Context, chainID common.ChainID) (entity.IndexerState, error) {
	var (
		st entity.IndexerState
		ok bool
	)
	r.read(func(s *state) { st, ok = s.indexer[chainID] })
	if !ok {
		return entity.IndexerState{}, errors.WithStack(errs.NotFound)
	}
	return st, nil
}

func (r *Repository) GetEventsByOrderID(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.EscrowEvent, error) {
	var events []entity.EscrowEvent
	r.read(func(s *state) {
		for _, e := range s.events {
			if e.ChainID == chainID && e.CampaignOrderID == orderID {
				events = append(events, e)
			}
		}
	})
	slices.SortFunc(events, compareEvents)
	return events, nil
}

func (r *Repository) ListEventsForExport(ctx context.Context, chainID common.ChainID, fromSlot uint64, limit, offset int32) ([]entity.EscrowEvent, error) {
	var events []entity.EscrowEvent
	r.read(func(s *state) {
		for _, e := range s.events {
			if e.ChainID == chainID && e.Slot >= fromSlot {
				events = append(events, e)
			}
		}
	})
	slices.SortFunc(events, compareEvents)
	return paginate(events, limit, offset), nil
}

func (r *Repository) GetDeal(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) (entity.Deal, error) {
	var (
		deal entity.Deal
		ok   bool
	)
	r.read(func(s *state) { deal, ok = s.deals[dealKey{chainID, orderID}] })
	if !ok {
		return entity.Deal{}, errors.WithStack(errs.NotFound)
	}
	return deal, nil
}

func (r *Repository) ListDeals(ctx context.Context, filter entity.DealFilter) ([]entity.Deal, error) {
	var deals []entity.Deal
	r.read(func(s *state) {
		for _, d := range s.deals {
			if matchDeal(d, filter) {
				deals = append(deals, d)
			}
		}
	})
	slices.SortFunc(deals, func(a, b entity.Deal) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.OrderID.String(), b.OrderID.String())
	})
	return paginate(deals, filter.Limit, filter.Offset), nil
}

func (r *Repository) GetTransitions(ctx context.Context, chainID common.ChainID, orderID entity.OrderID) ([]entity.Transition, error) {
	var transitions []entity.Transition
	r.read(func(s *state) {
		transitions = lo.Values(s.transitions[dealKey{chainID, orderID}])
	})
	slices.SortFunc(transitions, func(a, b entity.Transition) int {
		if c := cmp.Compare(a.Slot, b.Slot); c != 0 {
			return c
		}
		return cmp.Compare(a.Status.Rank(), b.Status.Rank())
	})
	return transitions, nil
}

func (r *Repository) CreateEvents(ctx context.Context, events []entity.EscrowEvent) ([]entity.EscrowEvent, error) {
	inserted := make([]entity.EscrowEvent, 0, len(events))
	r.write(func(s *state) {
		for _, e := range events {
			key := e.Key()
			if _, ok := s.events[key]; ok {
				continue
			}
			s.events[key] = e
			inserted = append(inserted, e)
		}
	})
	return inserted, nil
}

func (r *Repository) SetIndexerState(ctx context.Context, st entity.IndexerState) error {
	r.write(func(s *state) { s.indexer[st.ChainID] = st })
	return nil
}

func (r *Repository) UpsertDeal(ctx context.Context, deal entity.Deal) error {
	if deal.OrderID.IsZero() {
		return errors.Wrap(errs.InvalidArgument, "deal order id is required")
	}
	r.write(func(s *state) { s.deals[dealKey{deal.ChainID, deal.OrderID}] = deal })
	return nil
}

func (r *Repository) UpsertTransitions(ctx context.Context, transitions []entity.Transition) error {
	r.write(func(s *state) {
		for _, t := range transitions {
			key := dealKey{t.ChainID, t.OrderID}
			byStatus, ok := s.transitions[key]
			if !ok {
				byStatus = make(map[entity.DealStatus]entity.Transition)
				s.transitions[key] = byStatus
			}
			if existing, ok := byStatus[t.Status]; ok && existing.Slot <= t.Slot {
				continue
			}
			byStatus[t.Status] = t
		}
	})
	return nil
}

func compareEvents(a, b entity.EscrowEvent) int {
	if c := entity.CompareReplayOrder(a, b); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Signature, b.Signature); c != 0 {
		return c
	}
	return cmp.Compare(a.EventName, b.EventName)
}

func matchDeal(d entity.Deal, filter entity.DealFilter) bool {
	if filter.ChainID != "" && d.ChainID != filter.ChainID {
		return false
	}
	if len(filter.Statuses) > 0 && !lo.Contains(filter.Statuses, d.Status) {
		return false
	}
	if filter.KOL != "" && d.KOL != filter.KOL {
		return false
	}
	if filter.ProjectOwner != "" && d.ProjectOwner != filter.ProjectOwner {
		return false
	}
	if !filter.CreatedBefore.IsZero() && d.CreatedAt.After(filter.CreatedBefore) {
		return false
	}
	return true
}

// paginate applies offset and limit. A limit lower or equal to zero returns everything after offset.
func paginate[T any](items []T, limit, offset int32) []T {
	if offset > 0 {
		if int(offset) >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && int(limit) < len(items) {
		items = items[:limit]
	}
	return items
}
