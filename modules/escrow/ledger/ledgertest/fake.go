// Package ledgertest provides an in-memory escrow ledger for tests.
package ledgertest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/codec"
)

var _ ledger.Client = (*Fake)(nil)

// Fake is an in-memory ledger enforcing the escrow program preconditions.
// Every accepted instruction lands in its own slot and emits the matching event.
type Fake struct {
	mu        sync.Mutex
	programID string
	slot      uint64
	now       func() time.Time
	accounts  map[string]*account
	balances  map[string]uint64
	events    []ledger.RawEvent
	failures  map[string]error
	calls     map[string]int
}

type account struct {
	ledger.AccountState
	decimals         uint8
	vestingType      entity.VestingType
	vestingCondition entity.VestingCondition
	channel          entity.Channel
}

func New(programID string) *Fake {
	return &Fake{
		programID: programID,
		now:       time.Now,
		accounts:  map[string]*account{},
		balances:  map[string]uint64{},
		failures:  map[string]error{},
		calls:     map[string]int{},
	}
}

// SetNow overrides the clock used for event block times.
func (f *Fake) SetNow(now func() time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = now
}

func (f *Fake) SetBalance(owner, mint string, amount uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[owner+"/"+mint] = amount
}

// Fail makes every following call of method return err, nil clears it.
func (f *Fake) Fail(method string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failures, method)
		return
	}
	f.failures[method] = err
}

// Calls returns the number of calls of method, including failed ones.
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Events returns a copy of the emitted event log.
func (f *Fake) Events() []ledger.RawEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ledger.RawEvent(nil), f.events...)
}

// AppendRaw appends an arbitrary event in a new slot and returns the slot.
func (f *Fake) AppendRaw(data []byte) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slot++
	f.events = append(f.events, ledger.RawEvent{
		Signature: fmt.Sprintf("raw-%d", f.slot),
		Slot:      f.slot,
		BlockTime: f.now().Unix(),
		ProgramID: f.programID,
		Data:      data,
	})
	return f.slot
}

// Batch returns the events emitted in slots [from, latest] as one ingestion batch.
func (f *Fake) Batch(from uint64) indexer.Batch[ledger.RawEvent] {
	f.mu.Lock()
	defer f.mu.Unlock()
	batch := indexer.Batch[ledger.RawEvent]{FromSlot: from, ToSlot: max(from, f.slot)}
	for _, event := range f.events {
		if event.Slot >= from {
			batch.Inputs = append(batch.Inputs, event)
		}
	}
	return batch
}

// Key returns a deterministic base58 public key made of b.
func Key(b byte) string {
	return codec.PublicKeyValue(bytes.Repeat([]byte{b}, codec.PublicKeySize)).PublicKeyString()
}

// DealAddress derives the deterministic account address of an order.
func DealAddress(programID string, orderID entity.OrderID) string {
	sum := sha256.Sum256(append([]byte("deal"+programID), orderID.Bytes()...))
	return codec.PublicKeyValue(sum[:]).PublicKeyString()
}

func (f *Fake) enter(method string) error {
	f.calls[method]++
	return f.failures[method]
}

func (f *Fake) emit(event ledger.Event) (ledger.Submission, error) {
	data, err := ledger.EncodeEvent(event)
	if err != nil {
		return ledger.Submission{}, errors.WithStack(err)
	}
	f.slot++
	sub := ledger.Submission{Signature: fmt.Sprintf("sig-%d", f.slot), Slot: f.slot}
	f.events = append(f.events, ledger.RawEvent{
		Signature: sub.Signature,
		Slot:      sub.Slot,
		BlockTime: f.now().Unix(),
		ProgramID: f.programID,
		Data:      data,
	})
	return sub, nil
}

func (f *Fake) account(dealAddress string) (*account, error) {
	acc, ok := f.accounts[dealAddress]
	if !ok {
		return nil, errors.Wrapf(errs.NotFound, "deal account %s", dealAddress)
	}
	return acc, nil
}

func (a *account) header() ledger.EventHeader {
	return ledger.EventHeader{
		OrderID:      a.OrderID,
		DealAddress:  a.DealAddress,
		ProjectOwner: a.ProjectOwner,
		KOL:          a.KOL,
	}
}

func requireStatus(acc *account, allowed ...entity.DealStatus) error {
	for _, status := range allowed {
		if acc.Status == status {
			return nil
		}
	}
	return errors.Wrapf(errs.InvalidState, "deal is %s", acc.Status)
}

func (f *Fake) CreateDeal(_ context.Context, params ledger.CreateDealParams) (ledger.CreateDealResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateDeal"); err != nil {
		return ledger.CreateDealResult{}, err
	}
	if err := ledger.ValidateCreateDeal(params); err != nil {
		return ledger.CreateDealResult{}, err
	}
	if f.balances[params.ProjectOwner+"/"+params.Mint] < params.Amount {
		return ledger.CreateDealResult{}, errors.Wrap(errs.InsufficientFunds, "payer balance is less than amount")
	}
	orderID, _ := entity.NewOrderID(params.OrderID)
	address := DealAddress(f.programID, orderID)
	if _, exists := f.accounts[address]; exists {
		return ledger.CreateDealResult{}, errors.Wrapf(errs.InvalidState, "deal %s already exists", orderID)
	}
	f.balances[params.ProjectOwner+"/"+params.Mint] -= params.Amount

	acc := &account{
		AccountState: ledger.AccountState{
			DealAddress:  address,
			OrderID:      orderID,
			ProjectOwner: params.ProjectOwner,
			KOL:          params.KOL,
			Mint:         params.Mint,
			Amount:       params.Amount,
			Status:       entity.DealStatusCreated,
		},
		decimals:         6,
		vestingType:      params.VestingType,
		vestingCondition: params.VestingCondition,
		channel:          params.Channel,
	}
	if acc.channel == "" {
		acc.channel = entity.ChannelTwitter
	}
	f.accounts[address] = acc
	sub, err := f.emit(ledger.DealCreated{
		EventHeader:      acc.header(),
		Mint:             acc.Mint,
		Amount:           acc.Amount,
		Decimals:         acc.decimals,
		VestingType:      acc.vestingType,
		VestingCondition: acc.vestingCondition,
		Channel:          acc.channel,
		StartTime:        f.now().UTC().Truncate(time.Second),
	})
	if err != nil {
		return ledger.CreateDealResult{}, err
	}
	return ledger.CreateDealResult{DealAddress: address, Submission: sub}, nil
}

func (f *Fake) AcceptDeal(_ context.Context, dealAddress, kol string) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("AcceptDeal"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	if acc.KOL != kol {
		return ledger.Submission{}, errors.Wrap(errs.Unauthorized, "caller is not the designated kol")
	}
	if err := requireStatus(acc, entity.DealStatusCreated); err != nil {
		return ledger.Submission{}, err
	}
	acc.Status = entity.DealStatusAccepted
	return f.emit(ledger.DealAccepted{EventHeader: acc.header(), AcceptTime: f.now().UTC().Truncate(time.Second)})
}

func (f *Fake) RejectDeal(_ context.Context, dealAddress, _ string) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("RejectDeal"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	if err := requireStatus(acc, entity.DealStatusCreated); err != nil {
		return ledger.Submission{}, err
	}
	acc.Status = entity.DealStatusRejected
	f.balances[acc.ProjectOwner+"/"+acc.Mint] += acc.Amount
	return f.emit(ledger.DealRejected{EventHeader: acc.header()})
}

func (f *Fake) SetEligibility(_ context.Context, dealAddress, _ string, status entity.DealStatus) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("SetEligibility"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	switch status {
	case entity.DealStatusPartiallyEligible:
		err = requireStatus(acc, entity.DealStatusAccepted)
	case entity.DealStatusFullyEligible:
		err = requireStatus(acc, entity.DealStatusAccepted, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted)
	default:
		err = errors.Wrapf(errs.InvalidParameters, "%s is not an eligibility status", status)
	}
	if err != nil {
		return ledger.Submission{}, err
	}
	acc.Status = status
	return f.emit(ledger.EligibilityUpdated{EventHeader: acc.header(), NewEligibilityStatus: status})
}

func (f *Fake) ReleasePayment(_ context.Context, dealAddress string, amount uint64) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ReleasePayment"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	if err := requireStatus(acc, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted, entity.DealStatusFullyEligible); err != nil {
		return ledger.Submission{}, err
	}
	if amount == 0 || amount > acc.Amount-acc.ReleasedAmount {
		return ledger.Submission{}, errors.Wrapf(errs.ExceedsVestedAmount, "release %d with %d of %d released", amount, acc.ReleasedAmount, acc.Amount)
	}
	acc.ReleasedAmount += amount
	f.balances[acc.KOL+"/"+acc.Mint] += amount
	if acc.ReleasedAmount == acc.Amount {
		acc.Status = entity.DealStatusCompleted
	} else if acc.Status == entity.DealStatusPartiallyEligible {
		acc.Status = entity.DealStatusPartialCompleted
	}
	return f.emit(ledger.PaymentReleased{EventHeader: acc.header(), ClaimAmount: amount, ReleasedAmount: acc.ReleasedAmount})
}

func (f *Fake) DisputeDeal(_ context.Context, params ledger.DisputeParams) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DisputeDeal"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(params.DealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	if params.Disputer != acc.ProjectOwner && params.Disputer != acc.KOL {
		return ledger.Submission{}, errors.Wrap(errs.Unauthorized, "disputer is not a party of the deal")
	}
	if err := requireStatus(acc, entity.DealStatusAccepted, entity.DealStatusPartiallyEligible, entity.DealStatusPartialCompleted, entity.DealStatusFullyEligible); err != nil {
		return ledger.Submission{}, err
	}
	acc.Status = entity.DealStatusDisputed
	return f.emit(ledger.DealDisputed{EventHeader: acc.header(), Disputer: params.Disputer, Reason: params.Reason, Detail: params.Detail})
}

func (f *Fake) ResolveDispute(_ context.Context, dealAddress, _ string, resolution entity.Resolution) (ledger.Submission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("ResolveDispute"); err != nil {
		return ledger.Submission{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.Submission{}, err
	}
	if err := requireStatus(acc, entity.DealStatusDisputed); err != nil {
		return ledger.Submission{}, err
	}
	kolAmount, err := resolution.KOLAmount(acc.Amount, acc.ReleasedAmount)
	if err != nil {
		return ledger.Submission{}, err
	}
	acc.ReleasedAmount += kolAmount
	acc.Status = entity.DealStatusResolved
	refund := acc.Amount - acc.ReleasedAmount
	f.balances[acc.KOL+"/"+acc.Mint] += kolAmount
	f.balances[acc.ProjectOwner+"/"+acc.Mint] += refund
	return f.emit(ledger.DisputeResolved{
		EventHeader:    acc.header(),
		Resolution:     resolution.Kind,
		KOLAmount:      kolAmount,
		ReleasedAmount: acc.ReleasedAmount,
		RefundAmount:   refund,
	})
}

func (f *Fake) GetDeal(_ context.Context, dealAddress string) (ledger.AccountState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetDeal"); err != nil {
		return ledger.AccountState{}, err
	}
	acc, err := f.account(dealAddress)
	if err != nil {
		return ledger.AccountState{}, err
	}
	return acc.AccountState, nil
}

func (f *Fake) GetTokenBalance(_ context.Context, owner, mint string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetTokenBalance"); err != nil {
		return 0, err
	}
	return f.balances[owner+"/"+mint], nil
}

func (f *Fake) LatestSlot(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("LatestSlot"); err != nil {
		return 0, err
	}
	return f.slot, nil
}

func (f *Fake) FetchHistoricalEvents(_ context.Context, query ledger.EventQuery) ([]ledger.RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("FetchHistoricalEvents"); err != nil {
		return nil, err
	}
	var matched []ledger.RawEvent
	for _, event := range f.events {
		if event.Slot >= query.FromSlot && event.Slot <= query.ToSlot {
			matched = append(matched, event)
		}
	}
	if query.Offset >= len(matched) {
		return nil, nil
	}
	matched = matched[query.Offset:]
	if query.Limit > 0 && len(matched) > query.Limit {
		matched = matched[:query.Limit]
	}
	return append([]ledger.RawEvent(nil), matched...), nil
}
