package usecase

import (
	"time"

	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
)

// IngestionStatus exposes the progress of the ingestion loop.
type IngestionStatus interface {
	Status() indexer.Status
}

type Usecase struct {
	escrowDg  datagateway.EscrowReaderDataGateway
	client    ledger.Client
	settler   *settlement.Settler
	locker    locker.Locker
	ingestion IngestionStatus
	chainID   common.ChainID
	programID string
	admin     string
	now       func() time.Time
}

func New(escrowDg datagateway.EscrowReaderDataGateway, client ledger.Client, settler *settlement.Settler, dealLocker locker.Locker, ingestion IngestionStatus, chainID common.ChainID, programID, admin string) *Usecase {
	return &Usecase{
		escrowDg:  escrowDg,
		client:    client,
		settler:   settler,
		locker:    dealLocker,
		ingestion: ingestion,
		chainID:   chainID,
		programID: programID,
		admin:     admin,
		now:       time.Now,
	}
}
