package postgres

import (
	"github.com/jackc/pgx/v5"
	"github.com/mutual-network/escrow-indexer/internal/postgres"
	"github.com/mutual-network/escrow-indexer/modules/escrow/datagateway"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/postgres/gen"
)

type Repository struct {
	db      postgres.DB
	queries *gen.Queries
	tx      pgx.Tx
}

var _ datagateway.EscrowDataGatewayWithTx = (*Repository)(nil)

func NewRepository(db postgres.DB) *Repository {
	return &Repository{
		db:      db,
		queries: gen.New(db),
	}
}
