package ledger

import (
	"crypto/sha256"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/codec"
)

// Event is a decoded ledger event. The set of variants is closed:
// DealCreated, DealAccepted, DealRejected, EligibilityUpdated, PaymentReleased, DealDisputed, DisputeResolved.
type Event interface {
	Name() entity.EventName
	Header() EventHeader
	Payload() entity.EventPayload
	fields(w *valueWriter)
}

// EventHeader holds the fields shared by every escrow event.
type EventHeader struct {
	OrderID      entity.OrderID
	DealAddress  string
	ProjectOwner string
	KOL          string
}

func (h EventHeader) Header() EventHeader { return h }

func (h EventHeader) payload(name entity.EventName) entity.EventPayload {
	return entity.EventPayload{
		EventName:    name,
		OrderID:      h.OrderID,
		DealAddress:  h.DealAddress,
		ProjectOwner: h.ProjectOwner,
		KOL:          h.KOL,
	}
}

type DealCreated struct {
	EventHeader
	Mint             string
	Amount           uint64
	Decimals         uint8
	VestingType      entity.VestingType
	VestingCondition entity.VestingCondition
	Channel          entity.Channel
	StartTime        time.Time
}

type DealAccepted struct {
	EventHeader
	AcceptTime time.Time
}

type DealRejected struct {
	EventHeader
}

type EligibilityUpdated struct {
	EventHeader
	NewEligibilityStatus entity.DealStatus
}

type PaymentReleased struct {
	EventHeader
	ClaimAmount    uint64
	ReleasedAmount uint64
}

type DealDisputed struct {
	EventHeader
	Disputer string
	Reason   entity.DisputeReason
	Detail   string
}

type DisputeResolved struct {
	EventHeader
	Resolution     entity.ResolutionKind
	KOLAmount      uint64
	ReleasedAmount uint64
	RefundAmount   uint64
}

func (DealCreated) Name() entity.EventName        { return entity.EventDealCreated }
func (DealAccepted) Name() entity.EventName       { return entity.EventDealAccepted }
func (DealRejected) Name() entity.EventName       { return entity.EventDealRejected }
func (EligibilityUpdated) Name() entity.EventName { return entity.EventEligibilityUpdated }
func (PaymentReleased) Name() entity.EventName    { return entity.EventPaymentReleased }
func (DealDisputed) Name() entity.EventName       { return entity.EventDealDisputed }
func (DisputeResolved) Name() entity.EventName    { return entity.EventDisputeResolved }

func (e DealCreated) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	condition := e.VestingCondition
	startTime := e.StartTime.Unix()
	p.Mint = e.Mint
	p.Amount = &e.Amount
	p.Decimals = &e.Decimals
	p.VestingType = e.VestingType
	p.VestingCondition = &condition
	p.Channel = e.Channel
	p.StartTime = &startTime
	return p
}

func (e DealAccepted) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	acceptTime := e.AcceptTime.Unix()
	p.AcceptTime = &acceptTime
	return p
}

func (e DealRejected) Payload() entity.EventPayload {
	return e.payload(e.Name())
}

func (e EligibilityUpdated) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	status := e.NewEligibilityStatus
	p.Status = &status
	p.NewEligibilityStatus = &status
	return p
}

func (e PaymentReleased) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	p.ClaimAmount = &e.ClaimAmount
	p.ReleasedAmount = &e.ReleasedAmount
	return p
}

func (e DealDisputed) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	p.Disputer = e.Disputer
	p.DisputeReason = e.Reason
	p.DisputeDetail = e.Detail
	return p
}

func (e DisputeResolved) Payload() entity.EventPayload {
	p := e.payload(e.Name())
	p.Resolution = e.Resolution
	p.KOLAmount = &e.KOLAmount
	p.ReleasedAmount = &e.ReleasedAmount
	p.RefundAmount = &e.RefundAmount
	return p
}

// DiscriminatorSize is the size of the event discriminator prefix.
const DiscriminatorSize = 8

// Discriminator returns the 8 byte prefix identifying the event in the ledger logs.
func Discriminator(name entity.EventName) [DiscriminatorSize]byte {
	var d [DiscriminatorSize]byte
	sum := sha256.Sum256([]byte("event:" + string(name)))
	copy(d[:], sum[:DiscriminatorSize])
	return d
}

var (
	ErrUnknownEvent = errors.New("unknown event discriminator")

	// ledger side enum variants, in discriminant order
	vestingTypeVariants = []string{"None", "Time", "MarketCap"}
	channelVariants     = []string{"Twitter", "Telegram"}
	statusVariants      = []string{"Created", "Accepted", "Rejected", "PartiallyEligible", "FullyEligible", "PartialCompleted", "Completed", "Disputed", "Resolved"}
	reasonVariants      = []string{"None", "Unresolved", "Other"}
	resolutionVariants  = []string{"FavorKol", "FavorOwner", "Custom"}

	vestingTypeValues = []entity.VestingType{entity.VestingTypeNone, entity.VestingTypeTime, entity.VestingTypeMarketCap}
	channelValues     = []entity.Channel{entity.ChannelTwitter, entity.ChannelTelegram}
	statusValues      = []entity.DealStatus{
		entity.DealStatusCreated, entity.DealStatusAccepted, entity.DealStatusRejected,
		entity.DealStatusPartiallyEligible, entity.DealStatusFullyEligible, entity.DealStatusPartialCompleted,
		entity.DealStatusCompleted, entity.DealStatusDisputed, entity.DealStatusResolved,
	}
	reasonValues     = []entity.DisputeReason{entity.DisputeReasonNone, entity.DisputeReasonUnresolved, entity.DisputeReasonOther}
	resolutionValues = []entity.ResolutionKind{entity.ResolutionFavorKOL, entity.ResolutionFavorOwner, entity.ResolutionCustom}
)

// DisputeDetailSize is the size of the dispute detail buffer in the ledger account.
const DisputeDetailSize = 64

var headerFields = []codec.Field{
	codec.F("orderId", codec.FixedBytes(entity.OrderIDLength)),
	codec.F("dealAddress", codec.PublicKey()),
	codec.F("projectOwner", codec.PublicKey()),
	codec.F("kol", codec.PublicKey()),
}

func eventSchema(fields ...codec.Field) codec.Type {
	return codec.Struct(append(append([]codec.Field{}, headerFields...), fields...)...)
}

type eventDef struct {
	name   entity.EventName
	schema codec.Type
	decode func(r *valueReader, h EventHeader) Event
}

var eventDefs = []eventDef{
	{
		name: entity.EventDealCreated,
		schema: eventSchema(
			codec.F("mint", codec.PublicKey()),
			codec.F("amount", codec.U64()),
			codec.F("decimals", codec.U8()),
			codec.F("vestingType", codec.Enum(vestingTypeVariants...)),
			codec.F("vestingCondition", codec.Struct(
				codec.F("duration", codec.U64()),
				codec.F("marketCapThreshold", codec.U64()),
			)),
			codec.F("channel", codec.Enum(channelVariants...)),
			codec.F("startTime", codec.I64()),
		),
		decode: func(r *valueReader, h EventHeader) Event {
			condition := r.child("vestingCondition")
			return DealCreated{
				EventHeader: h,
				Mint:        r.publicKey("mint"),
				Amount:      r.uint("amount"),
				Decimals:    uint8(r.uint("decimals")),
				VestingType: enumValue(r, "vestingType", vestingTypeValues),
				VestingCondition: entity.VestingCondition{
					DurationSeconds:       condition.uint("duration"),
					MarketCapThresholdUSD: condition.uint("marketCapThreshold"),
				},
				Channel:   enumValue(r, "channel", channelValues),
				StartTime: r.time("startTime"),
			}
		},
	},
	{
		name:   entity.EventDealAccepted,
		schema: eventSchema(codec.F("acceptTime", codec.I64())),
		decode: func(r *valueReader, h EventHeader) Event {
			return DealAccepted{EventHeader: h, AcceptTime: r.time("acceptTime")}
		},
	},
	{
		name:   entity.EventDealRejected,
		schema: eventSchema(),
		decode: func(_ *valueReader, h EventHeader) Event {
			return DealRejected{EventHeader: h}
		},
	},
	{
		name:   entity.EventEligibilityUpdated,
		schema: eventSchema(codec.F("newEligibilityStatus", codec.Enum(statusVariants...))),
		decode: func(r *valueReader, h EventHeader) Event {
			return EligibilityUpdated{EventHeader: h, NewEligibilityStatus: enumValue(r, "newEligibilityStatus", statusValues)}
		},
	},
	{
		name: entity.EventPaymentReleased,
		schema: eventSchema(
			codec.F("claimAmount", codec.U64()),
			codec.F("releasedAmount", codec.U64()),
		),
		decode: func(r *valueReader, h EventHeader) Event {
			return PaymentReleased{EventHeader: h, ClaimAmount: r.uint("claimAmount"), ReleasedAmount: r.uint("releasedAmount")}
		},
	},
	{
		name: entity.EventDealDisputed,
		schema: eventSchema(
			codec.F("disputer", codec.PublicKey()),
			codec.F("reason", codec.Enum(reasonVariants...)),
			codec.F("detail", codec.FixedBytes(DisputeDetailSize)),
		),
		decode: func(r *valueReader, h EventHeader) Event {
			return DealDisputed{
				EventHeader: h,
				Disputer:    r.publicKey("disputer"),
				Reason:      enumValue(r, "reason", reasonValues),
				Detail:      r.text("detail"),
			}
		},
	},
	{
		name: entity.EventDisputeResolved,
		schema: eventSchema(
			codec.F("resolution", codec.Enum(resolutionVariants...)),
			codec.F("kolAmount", codec.U64()),
			codec.F("releasedAmount", codec.U64()),
			codec.F("refundAmount", codec.U64()),
		),
		decode: func(r *valueReader, h EventHeader) Event {
			return DisputeResolved{
				EventHeader:    h,
				Resolution:     enumValue(r, "resolution", resolutionValues),
				KOLAmount:      r.uint("kolAmount"),
				ReleasedAmount: r.uint("releasedAmount"),
				RefundAmount:   r.uint("refundAmount"),
			}
		},
	},
}

var (
	defsByDiscriminator = make(map[[DiscriminatorSize]byte]eventDef, len(eventDefs))
	defsByName          = make(map[entity.EventName]eventDef, len(eventDefs))
)

func init() {
	for _, def := range eventDefs {
		defsByDiscriminator[Discriminator(def.name)] = def
		defsByName[def.name] = def
	}
}

// DecodeEvent decodes a discriminator prefixed event. Unknown discriminators return ErrUnknownEvent.
func DecodeEvent(data []byte) (Event, error) {
	if len(data) < DiscriminatorSize {
		return nil, errors.Wrapf(codec.ErrShortBuffer, "event data is %d bytes", len(data))
	}
	var d [DiscriminatorSize]byte
	copy(d[:], data[:DiscriminatorSize])
	def, ok := defsByDiscriminator[d]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownEvent, "discriminator %x", d)
	}
	value, err := codec.Decode(def.schema, data[DiscriminatorSize:])
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", def.name)
	}

	r := &valueReader{value: value}
	orderID, err := entity.OrderIDFromBytes(r.bytes("orderId"))
	if r.err == nil && err != nil {
		r.err = err
	}
	header := EventHeader{
		OrderID:      orderID,
		DealAddress:  r.publicKey("dealAddress"),
		ProjectOwner: r.publicKey("projectOwner"),
		KOL:          r.publicKey("kol"),
	}
	event := def.decode(r, header)
	if r.err != nil {
		return nil, errors.Wrapf(r.err, "failed to map %s", def.name)
	}
	return event, nil
}

// EncodeEvent encodes the event with its discriminator prefix.
func EncodeEvent(event Event) ([]byte, error) {
	def, ok := defsByName[event.Name()]
	if !ok {
		return nil, errors.Wrapf(errs.Unsupported, "event %s", event.Name())
	}
	h := event.Header()
	w := &valueWriter{fields: map[string]codec.Value{}}
	w.bytes("orderId", h.OrderID.Bytes())
	w.publicKey("dealAddress", h.DealAddress)
	w.publicKey("projectOwner", h.ProjectOwner)
	w.publicKey("kol", h.KOL)
	event.fields(w)
	if w.err != nil {
		return nil, errors.WithStack(w.err)
	}
	body, err := codec.Encode(def.schema, codec.StructValue(w.fields))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to encode %s", def.name)
	}
	d := Discriminator(def.name)
	return append(d[:], body...), nil
}

func (e DealCreated) fields(w *valueWriter) {
	w.publicKey("mint", e.Mint)
	w.uint("amount", codec.KindU64, e.Amount)
	w.uint("decimals", codec.KindU8, uint64(e.Decimals))
	w.enum("vestingType", enumVariant(w, e.VestingType, vestingTypeValues, vestingTypeVariants))
	w.fields["vestingCondition"] = codec.StructValue(map[string]codec.Value{
		"duration":           codec.UintValue(codec.KindU64, e.VestingCondition.DurationSeconds),
		"marketCapThreshold": codec.UintValue(codec.KindU64, e.VestingCondition.MarketCapThresholdUSD),
	})
	w.enum("channel", enumVariant(w, e.Channel, channelValues, channelVariants))
	w.fields["startTime"] = codec.IntValue(e.StartTime.Unix())
}

func (e DealAccepted) fields(w *valueWriter) {
	w.fields["acceptTime"] = codec.IntValue(e.AcceptTime.Unix())
}

func (DealRejected) fields(*valueWriter) {}

func (e EligibilityUpdated) fields(w *valueWriter) {
	w.enum("newEligibilityStatus", enumVariant(w, e.NewEligibilityStatus, statusValues, statusVariants))
}

func (e PaymentReleased) fields(w *valueWriter) {
	w.uint("claimAmount", codec.KindU64, e.ClaimAmount)
	w.uint("releasedAmount", codec.KindU64, e.ReleasedAmount)
}

func (e DealDisputed) fields(w *valueWriter) {
	w.publicKey("disputer", e.Disputer)
	w.enum("reason", enumVariant(w, e.Reason, reasonValues, reasonVariants))
	w.bytes("detail", []byte(e.Detail))
}

func (e DisputeResolved) fields(w *valueWriter) {
	w.enum("resolution", enumVariant(w, e.Resolution, resolutionValues, resolutionVariants))
	w.uint("kolAmount", codec.KindU64, e.KOLAmount)
	w.uint("releasedAmount", codec.KindU64, e.ReleasedAmount)
	w.uint("refundAmount", codec.KindU64, e.RefundAmount)
}
