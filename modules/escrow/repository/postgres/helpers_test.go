package postgres

import "github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres/gen"

func mapUpsertParamsToModel(p gen.UpsertDealParams) gen.EscrowDeal {
	return gen.EscrowDeal(p)
}

func mapCreateParamsToModel(p gen.CreateEventParams) gen.EscrowEvent {
	return gen.EscrowEvent{
		ChainID:         p.ChainID,
		ProgramID:       p.ProgramID,
		CampaignOrderID: p.CampaignOrderID,
		EventName:       p.EventName,
		Signature:       p.Signature,
		EventIndex:      p.EventIndex,
		Slot:            p.Slot,
		Data:            p.Data,
		CreatedAt:       p.CreatedAt,
	}
}
