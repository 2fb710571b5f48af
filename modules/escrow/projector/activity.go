package projector

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/pkg/decimals"
	"github.com/samber/lo"
)

// ActivityEntry is a human readable line of the deal activity feed.
type ActivityEntry struct {
	EventName   entity.EventName `json:"eventName"`
	Description string           `json:"description"`
	Slot        uint64           `json:"slot"`
	Signature   string           `json:"signature"`
	At          time.Time        `json:"at"`
}

// Activity describes every non-creation event of the deal in replay order.
func Activity(deal entity.Deal, events []entity.EscrowEvent) []ActivityEntry {
	events = lo.UniqBy(events, func(e entity.EscrowEvent) entity.EventKey { return e.Key() })
	events = slices.Clone(events)
	slices.SortStableFunc(events, entity.CompareReplayOrder)

	entries := make([]ActivityEntry, 0, len(events))
	for _, event := range events {
		if event.EventName == entity.EventDealCreated {
			continue
		}
		entries = append(entries, ActivityEntry{
			EventName:   event.EventName,
			Description: describe(deal, event.Payload),
			Slot:        event.Slot,
			Signature:   event.Signature,
			At:          event.CreatedAt,
		})
	}
	return entries
}

func describe(deal entity.Deal, p entity.EventPayload) string {
	amount := func(v *uint64) string {
		return decimals.ToDecimal(lo.FromPtr(v), deal.Decimals).String()
	}
	channel := channelName(deal.Channel)

	switch p.EventName {
	case entity.EventDealAccepted:
		return fmt.Sprintf("KOL accepted the %s campaign", channel)
	case entity.EventDealRejected:
		return "Offer was rejected, funds returned to the project owner"
	case entity.EventEligibilityUpdated:
		status := lo.FromPtr(p.NewEligibilityStatus)
		if status == "" {
			status = lo.FromPtr(p.Status)
		}
		return describeEligibility(deal, status, channel)
	case entity.EventPaymentReleased:
		return fmt.Sprintf("Released %s to the KOL, %s of %s paid out",
			amount(p.ClaimAmount), amount(p.ReleasedAmount), amount(&deal.Amount))
	case entity.EventDealDisputed:
		by := "the KOL"
		if p.Disputer == deal.ProjectOwner {
			by = "the project owner"
		}
		reason := strings.ToLower(string(p.DisputeReason))
		if p.DisputeDetail != "" {
			return fmt.Sprintf("Deal disputed by %s (%s): %s", by, reason, p.DisputeDetail)
		}
		return fmt.Sprintf("Deal disputed by %s (%s)", by, reason)
	case entity.EventDisputeResolved:
		outcome := map[entity.ResolutionKind]string{
			entity.ResolutionFavorKOL:   "in favor of the KOL",
			entity.ResolutionFavorOwner: "in favor of the project owner",
			entity.ResolutionCustom:     "with a custom split",
		}[p.Resolution]
		return fmt.Sprintf("Dispute resolved %s: %s to the KOL, %s refunded",
			outcome, amount(p.KOLAmount), amount(p.RefundAmount))
	}
	return string(p.EventName)
}

func describeEligibility(deal entity.Deal, status entity.DealStatus, channel string) string {
	switch deal.VestingType {
	case entity.VestingTypeTime:
		if status == entity.DealStatusPartiallyEligible {
			return fmt.Sprintf("%s post verified, first unlock available, remainder vests over %s",
				channel, formatDuration(deal.VestingCondition.Duration()))
		}
		return "Vesting period completed, full amount eligible"
	case entity.VestingTypeMarketCap:
		threshold := decimals.ToDecimal(deal.VestingCondition.MarketCapThresholdUSD, 0).StringFixed(0)
		if status == entity.DealStatusPartiallyEligible {
			return fmt.Sprintf("%s post verified, first unlock available, remainder unlocks at $%s market cap", channel, threshold)
		}
		return fmt.Sprintf("Market cap reached $%s, full amount eligible", threshold)
	}
	return fmt.Sprintf("%s post verified, full amount eligible", channel)
}

func channelName(channel entity.Channel) string {
	switch channel {
	case entity.ChannelTelegram:
		return "Telegram"
	default:
		return "Twitter"
	}
}

func formatDuration(d time.Duration) string {
	if days := d / (24 * time.Hour); days > 0 && d%(24*time.Hour) == 0 {
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return d.String()
}
