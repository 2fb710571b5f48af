package usecase

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
)

type Info struct {
	ChainID     common.ChainID
	ProgramID   string
	Slot        uint64 // last durable slot
	Initialized bool
	Degraded    bool
	Failures    int
	LastError   string
	LastErrorAt time.Time
}

func (u *Usecase) GetInfo(ctx context.Context) (Info, error) {
	info := Info{ChainID: u.chainID, ProgramID: u.programID}
	state, err := u.escrowDg.GetIndexerState(ctx, u.chainID)
	switch {
	case err == nil:
		info.Slot = state.Slot
		info.Initialized = true
	case !errors.Is(err, errs.NotFound):
		return Info{}, errors.Wrap(err, "failed to get indexer state")
	}
	if u.ingestion != nil {
		status := u.ingestion.Status()
		info.Degraded = status.Degraded
		info.Failures = status.Failures
		info.LastError = status.LastError
		info.LastErrorAt = status.LastErrorAt
	}
	return info, nil
}
