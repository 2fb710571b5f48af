package httphandler

import (
	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
)

type getInfoResult struct {
	ChainID     string `json:"chainId"`
	ProgramID   string `json:"programId"`
	IndexedSlot uint64 `json:"indexedSlot"`
	Initialized bool   `json:"initialized"`
	Degraded    bool   `json:"degraded"`
	Failures    int    `json:"failures"`
	LastError   string `json:"lastError,omitempty"`
	LastErrorAt *int64 `json:"lastErrorAt,omitempty"` // unix timestamp
}

type getInfoResponse = common.HttpResponse[getInfoResult]

func (h *HttpHandler) GetInfo(ctx *fiber.Ctx) (err error) {
	info, err := h.usecase.GetInfo(ctx.UserContext())
	if err != nil {
		return errors.Wrap(err, "error during GetInfo")
	}

	resp := getInfoResponse{
		Result: &getInfoResult{
			ChainID:     string(info.ChainID),
			ProgramID:   info.ProgramID,
			IndexedSlot: info.Slot,
			Initialized: info.Initialized,
			Degraded:    info.Degraded,
			Failures:    info.Failures,
			LastError:   info.LastError,
			LastErrorAt: unixOrNil(info.LastErrorAt),
		},
	}
	return errors.WithStack(ctx.JSON(resp))
}
