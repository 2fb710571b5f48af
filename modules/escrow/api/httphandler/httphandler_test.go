package httphandler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/core/indexer"
	"github.com/mutual-network/escrow-indexer/modules/escrow"
	"github.com/mutual-network/escrow-indexer/modules/escrow/api/httphandler"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger"
	"github.com/mutual-network/escrow-indexer/modules/escrow/ledger/ledgertest"
	"github.com/mutual-network/escrow-indexer/modules/escrow/locker"
	"github.com/mutual-network/escrow-indexer/modules/escrow/repository/memory"
	"github.com/mutual-network/escrow-indexer/modules/escrow/settlement"
	"github.com/mutual-network/escrow-indexer/modules/escrow/usecase"
	"github.com/mutual-network/escrow-indexer/modules/escrow/vesting"
	"github.com/mutual-network/escrow-indexer/pkg/errorhandler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	owner = ledgertest.Key(1)
	kol   = ledgertest.Key(2)
	mint  = ledgertest.Key(3)
	admin = ledgertest.Key(9)
)

type degradedIngestion struct{}

func (degradedIngestion) Status() indexer.Status {
	return indexer.Status{Degraded: true, Failures: 4, LastError: "ledger unavailable"}
}

type suite struct {
	fake      *ledgertest.Fake
	processor *escrow.Processor
	app       *fiber.App
}

func newSuite(t *testing.T) *suite {
	t.Helper()
	rules, err := vesting.NewRules(config.Default().Vesting)
	require.NoError(t, err)

	fake := ledgertest.New("program")
	fake.SetBalance(owner, mint, 1_000_000)
	repo := memory.NewRepository()
	dealLocker := locker.NewMemory()
	settler := settlement.New(repo, fake, nil, rules, dealLocker, common.ChainLocalnet, admin)
	uc := usecase.New(repo, fake, settler, dealLocker, degradedIngestion{}, common.ChainLocalnet, "program", admin)

	app := fiber.New(fiber.Config{ErrorHandler: errorhandler.NewHTTPErrorHandler()})
	require.NoError(t, httphandler.New(uc).Mount(app))

	return &suite{
		fake:      fake,
		processor: escrow.NewProcessor(repo, dealLocker, common.ChainLocalnet, "program"),
		app:       app,
	}
}

func (s *suite) sync(t *testing.T) {
	t.Helper()
	require.NoError(t, s.processor.Process(context.Background(), s.fake.Batch(0)))
}

func (s *suite) acceptedDeal(t *testing.T, orderID string) string {
	t.Helper()
	ctx := context.Background()
	result, err := s.fake.CreateDeal(ctx, ledger.CreateDealParams{
		OrderID:      orderID,
		ProjectOwner: owner,
		KOL:          kol,
		Mint:         mint,
		Amount:       1_000,
		VestingType:  entity.VestingTypeNone,
	})
	require.NoError(t, err)
	_, err = s.fake.AcceptDeal(ctx, result.DealAddress, kol)
	require.NoError(t, err)
	return result.DealAddress
}

func (s *suite) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func result(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	res, ok := body["result"].(map[string]any)
	require.True(t, ok, "response has no result: %v", body)
	return res
}

func TestReadRoutes(t *testing.T) {
	s := newSuite(t)
	s.acceptedDeal(t, "order-1")
	s.sync(t)

	t.Run("info", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/info", "")
		require.Equal(t, http.StatusOK, status)
		res := result(t, body)
		assert.Equal(t, "localnet", res["chainId"])
		assert.Equal(t, true, res["initialized"])
		assert.Equal(t, true, res["degraded"])
		assert.EqualValues(t, 2, res["indexedSlot"])
	})

	t.Run("list_by_status", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals?status=accepted", "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, result(t, body)["list"], 1)

		status, body = s.do(t, http.MethodGet, "/escrow/v1/deals?status=CREATED,REJECTED", "")
		require.Equal(t, http.StatusOK, status)
		assert.Empty(t, result(t, body)["list"])
	})

	t.Run("list_with_invalid_status", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals?status=PAID", "")
		assert.Equal(t, http.StatusBadRequest, status)
		assert.Contains(t, body["error"], "validation error")
	})

	t.Run("get_deal_with_preview", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals/order-1", "")
		require.Equal(t, http.StatusOK, status)
		res := result(t, body)
		assert.Equal(t, "order-1", res["orderId"])
		assert.Equal(t, "ACCEPTED", res["status"])
		evaluation := res["evaluation"].(map[string]any)
		assert.EqualValues(t, 0, evaluation["claimableNow"])
		assert.Len(t, res["transitions"], 2)
	})

	t.Run("get_unknown_deal", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals/missing", "")
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", body["code"])
	})

	t.Run("events_in_replay_order", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals/order-1/events", "")
		require.Equal(t, http.StatusOK, status)
		list := result(t, body)["list"].([]any)
		require.Len(t, list, 2)
		assert.Equal(t, string(entity.EventDealCreated), list[0].(map[string]any)["eventName"])
		assert.Equal(t, string(entity.EventDealAccepted), list[1].(map[string]any)["eventName"])
	})

	t.Run("activity", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/deals/order-1/activity", "")
		require.Equal(t, http.StatusOK, status)
		assert.Len(t, result(t, body)["list"], 1)
	})
}

func TestSettleRoutes(t *testing.T) {
	s := newSuite(t)
	s.acceptedDeal(t, "order-1")
	s.sync(t)

	t.Run("claim_before_verification_releases_nothing", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/claim", "")
		require.Equal(t, http.StatusOK, status)
		assert.EqualValues(t, 0, result(t, body)["released"])
	})

	t.Run("verify_releases_everything", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/verify", "")
		require.Equal(t, http.StatusOK, status)
		res := result(t, body)
		assert.EqualValues(t, 1_000, res["released"])
		assert.NotEmpty(t, res["releaseSignature"])
	})

	t.Run("completed_deal_is_conflict", func(t *testing.T) {
		s.sync(t)
		status, body := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/claim", "")
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "INVALID_STATE", body["code"])
	})
}

func TestResolveRoute(t *testing.T) {
	ctx := context.Background()
	s := newSuite(t)
	address := s.acceptedDeal(t, "order-1")
	_, err := s.fake.DisputeDeal(ctx, ledger.DisputeParams{DealAddress: address, Disputer: kol, Reason: entity.DisputeReasonOther, Detail: "post removed"})
	require.NoError(t, err)
	s.sync(t)

	t.Run("open_disputes", func(t *testing.T) {
		status, body := s.do(t, http.MethodGet, "/escrow/v1/disputes", "")
		require.Equal(t, http.StatusOK, status)
		list := result(t, body)["list"].([]any)
		require.Len(t, list, 1)
		assert.Equal(t, "OTHER", list[0].(map[string]any)["disputeReason"])
	})

	t.Run("invalid_resolution", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/resolve", `{"resolution":"split"}`)
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("custom_amount_above_remaining", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/resolve", `{"resolution":"custom","amount":1001}`)
		assert.Equal(t, http.StatusUnprocessableEntity, status)
		assert.Equal(t, "EXCEEDS_VESTED_AMOUNT", body["code"])
		assert.Zero(t, s.fake.Calls("ResolveDispute"))
	})

	t.Run("custom_resolution", func(t *testing.T) {
		status, body := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/resolve", `{"resolution":"custom","amount":300}`)
		require.Equal(t, http.StatusOK, status)
		assert.NotEmpty(t, result(t, body)["signature"])

		s.sync(t)
		status, body = s.do(t, http.MethodGet, "/escrow/v1/deals/order-1", "")
		require.Equal(t, http.StatusOK, status)
		assert.Equal(t, "RESOLVED", result(t, body)["status"])
		assert.EqualValues(t, 300, result(t, body)["releasedAmount"])
	})

	t.Run("resolved_twice_is_conflict", func(t *testing.T) {
		status, _ := s.do(t, http.MethodPost, "/escrow/v1/deals/order-1/resolve", `{"resolution":"favor_kol"}`)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, 1, s.fake.Calls("ResolveDispute"))
	})
}
