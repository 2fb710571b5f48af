package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cenkalti/backoff/v4"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/modules/escrow/config"
	"github.com/mutual-network/escrow-indexer/modules/escrow/internal/entity"
	"github.com/mutual-network/escrow-indexer/pkg/httpclient"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/valyala/fasthttp"
)

const defaultMaxRetries = 5

// ledger gateway error codes
const (
	codeInvalidParameters   = -32001
	codeUnauthorized        = -32002
	codeInvalidState        = -32003
	codeInsufficientFunds   = -32004
	codeExceedsVestedAmount = -32005

	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
)

var rpcErrorKinds = map[int]error{
	codeInvalidParameters:   errs.InvalidParameters,
	codeUnauthorized:        errs.Unauthorized,
	codeInvalidState:        errs.InvalidState,
	codeInsufficientFunds:   errs.InsufficientFunds,
	codeExceedsVestedAmount: errs.ExceedsVestedAmount,
	codeMethodNotFound:      errs.Unsupported,
	codeInvalidParams:       errs.InvalidParameters,
}

// errNotSent marks failures where the request is known to not have been processed.
var errNotSent = errors.New("request not processed")

var _ Client = (*RPCClient)(nil)

// RPCClient is a JSON-RPC 2.0 client of the ledger gateway.
type RPCClient struct {
	http       *httpclient.Client
	programID  string
	maxRetries uint64
	nextID     atomic.Int64
}

func NewRPCClient(conf config.LedgerConfig, programID string) (*RPCClient, error) {
	client, err := httpclient.New(conf.URL, httpclient.Config{
		Debug:     conf.Debug,
		Headers:   conf.Headers,
		Timeout:   conf.Timeout,
		RateLimit: conf.RateLimit,
		Burst:     conf.Burst,
	})
	if err != nil {
		return nil, errors.Wrap(err, "can't create ledger http client")
	}
	return &RPCClient{
		http:       client,
		programID:  programID,
		maxRetries: utils.Default(conf.MaxRetries, defaultMaxRetries),
	}, nil
}

type jsonRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
	ID      int64  `json:"id"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *jsonRPCError   `json:"error"`
}

type jsonRPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *jsonRPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

func (c *RPCClient) call(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(jsonRPCRequest{
		JSONRPC: "2.0",
		Method:  method,
		Params:  []any{params},
		ID:      c.nextID.Add(1),
	})
	if err != nil {
		return errors.Wrapf(err, "can't marshal %s request", method)
	}

	resp, err := c.http.Post(ctx, "", httpclient.RequestOptions{Body: body})
	if err != nil {
		return errors.Wrapf(err, "ledger call %s", method)
	}
	switch status := resp.StatusCode(); {
	case status == fasthttp.StatusTooManyRequests:
		return errors.Mark(errors.Wrapf(errs.Unavailable, "ledger call %s: rate limited", method), errNotSent)
	case status >= fasthttp.StatusInternalServerError:
		return errors.Wrapf(errs.Unavailable, "ledger call %s: status %d", method, status)
	case status >= fasthttp.StatusBadRequest:
		return errors.Mark(errors.Wrapf(errs.InternalError, "ledger call %s: status %d", method, status), errNotSent)
	}

	var rpcResp jsonRPCResponse
	if err := resp.UnmarshalBody(&rpcResp); err != nil {
		return errors.Wrapf(errs.Unavailable, "ledger call %s: %v", method, err)
	}
	if rpcResp.Error != nil {
		kind, ok := rpcErrorKinds[rpcResp.Error.Code]
		if !ok {
			kind = errs.InternalError
		}
		return errors.Wrapf(kind, "ledger call %s: %s", method, rpcResp.Error.Error())
	}
	if len(rpcResp.Result) == 0 || bytes.Equal(rpcResp.Result, []byte("null")) {
		return errors.Wrapf(errs.NotFound, "ledger call %s: empty result", method)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return errors.Wrapf(err, "can't unmarshal %s result", method)
	}
	return nil
}

// read calls an idempotent method, retrying transient failures with exponential backoff.
func (c *RPCClient) read(ctx context.Context, method string, params any, out any) error {
	attempt := 0
	operation := func() error {
		attempt++
		err := c.call(ctx, method, params, out)
		if err == nil {
			return nil
		}
		if !errs.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.WarnContext(ctx, "Ledger read failed, retrying", slogx.Error(err),
			slog.String("method", method),
			slog.Int("attempt", attempt),
		)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return errors.WithStack(err)
	}
	return nil
}

// submit sends a mutating instruction once.
func (c *RPCClient) submit(ctx context.Context, method string, params any, out any) error {
	err := c.call(ctx, method, params, out)
	if err == nil {
		return nil
	}
	if errors.Is(err, errNotSent) || !errs.IsRetryable(err) {
		return err
	}
	logger.ErrorContext(ctx, "Ledger submission outcome unknown", err,
		slog.String("method", method),
	)
	return errors.WithSecondaryError(
		errors.Wrapf(errs.AmbiguousSubmission, "ledger call %s, re-read state before retrying", method),
		err,
	)
}

func (c *RPCClient) instruction(ctx context.Context, method string, params any) (Submission, error) {
	var result Submission
	if err := c.submit(ctx, method, params, &result); err != nil {
		return Submission{}, err
	}
	return result, nil
}

func (c *RPCClient) CreateDeal(ctx context.Context, params CreateDealParams) (CreateDealResult, error) {
	if err := ValidateCreateDeal(params); err != nil {
		return CreateDealResult{}, err
	}
	balance, err := c.GetTokenBalance(ctx, params.ProjectOwner, params.Mint)
	if err != nil {
		return CreateDealResult{}, errors.Wrap(err, "can't get payer balance")
	}
	if balance < params.Amount {
		return CreateDealResult{}, errors.Wrapf(errs.InsufficientFunds, "payer balance %d is less than amount %d", balance, params.Amount)
	}

	orderID, _ := entity.NewOrderID(params.OrderID)
	payload := map[string]any{
		"programId":        c.programID,
		"orderId":          orderID.String(),
		"projectOwner":     params.ProjectOwner,
		"kol":              params.KOL,
		"mint":             params.Mint,
		"amount":           params.Amount,
		"vestingType":      params.VestingType,
		"vestingCondition": params.VestingCondition,
	}
	if params.Channel != "" {
		payload["channel"] = params.Channel
	}

	var result CreateDealResult
	if err := c.submit(ctx, "escrow_createDeal", payload, &result); err != nil {
		return CreateDealResult{}, err
	}
	return result, nil
}

func (c *RPCClient) AcceptDeal(ctx context.Context, dealAddress, kol string) (Submission, error) {
	if err := validatePublicKey("dealAddress", dealAddress); err != nil {
		return Submission{}, err
	}
	if err := validatePublicKey("kol", kol); err != nil {
		return Submission{}, err
	}
	return c.instruction(ctx, "escrow_acceptDeal", map[string]any{"dealAddress": dealAddress, "kol": kol})
}

func (c *RPCClient) RejectDeal(ctx context.Context, dealAddress, admin string) (Submission, error) {
	if err := validatePublicKey("dealAddress", dealAddress); err != nil {
		return Submission{}, err
	}
	return c.instruction(ctx, "escrow_rejectDeal", map[string]any{"dealAddress": dealAddress, "admin": admin})
}

func (c *RPCClient) ReleasePayment(ctx context.Context, dealAddress string, amount uint64) (Submission, error) {
	if err := validatePublicKey("dealAddress", dealAddress); err != nil {
		return Submission{}, err
	}
	if amount == 0 {
		return Submission{}, errors.Wrap(errs.InvalidParameters, "release amount must be greater than zero")
	}
	return c.instruction(ctx, "escrow_releasePayment", map[string]any{"dealAddress": dealAddress, "amount": amount})
}

func (c *RPCClient) DisputeDeal(ctx context.Context, params DisputeParams) (Submission, error) {
	if err := validatePublicKey("dealAddress", params.DealAddress); err != nil {
		return Submission{}, err
	}
	if err := validatePublicKey("disputer", params.Disputer); err != nil {
		return Submission{}, err
	}
	if _, err := entity.ParseDisputeReason(string(params.Reason)); err != nil {
		return Submission{}, err
	}
	if len(params.Detail) > DisputeDetailSize {
		return Submission{}, errors.Wrapf(errs.InvalidParameters, "dispute detail exceeds %d bytes", DisputeDetailSize)
	}
	return c.instruction(ctx, "escrow_disputeDeal", params)
}

func (c *RPCClient) ResolveDispute(ctx context.Context, dealAddress, admin string, resolution entity.Resolution) (Submission, error) {
	if err := validatePublicKey("dealAddress", dealAddress); err != nil {
		return Submission{}, err
	}
	switch resolution.Kind {
	case entity.ResolutionFavorKOL, entity.ResolutionFavorOwner:
	case entity.ResolutionCustom:
		if resolution.Amount == 0 {
			return Submission{}, errors.Wrap(errs.InvalidParameters, "custom resolution requires an amount")
		}
	default:
		return Submission{}, errors.Wrapf(errs.InvalidParameters, "unknown resolution %q", resolution.Kind)
	}
	return c.instruction(ctx, "escrow_resolveDispute", map[string]any{
		"dealAddress": dealAddress,
		"admin":       admin,
		"resolution":  resolution,
	})
}

func (c *RPCClient) SetEligibility(ctx context.Context, dealAddress, admin string, status entity.DealStatus) (Submission, error) {
	if err := validatePublicKey("dealAddress", dealAddress); err != nil {
		return Submission{}, err
	}
	if status != entity.DealStatusPartiallyEligible && status != entity.DealStatusFullyEligible {
		return Submission{}, errors.Wrapf(errs.InvalidParameters, "%s is not an eligibility status", status)
	}
	return c.instruction(ctx, "escrow_setEligibility", map[string]any{
		"dealAddress": dealAddress,
		"admin":       admin,
		"status":      status,
	})
}

func (c *RPCClient) GetDeal(ctx context.Context, dealAddress string) (AccountState, error) {
	var state AccountState
	if err := c.read(ctx, "escrow_getDeal", map[string]any{"dealAddress": dealAddress}, &state); err != nil {
		return AccountState{}, err
	}
	return state, nil
}

func (c *RPCClient) GetTokenBalance(ctx context.Context, owner, mint string) (uint64, error) {
	var result struct {
		Amount uint64 `json:"amount"`
	}
	if err := c.read(ctx, "token_getBalance", map[string]any{"owner": owner, "mint": mint}, &result); err != nil {
		if errors.Is(err, errs.NotFound) {
			return 0, nil
		}
		return 0, err
	}
	return result.Amount, nil
}

func (c *RPCClient) LatestSlot(ctx context.Context) (uint64, error) {
	var slot uint64
	if err := c.read(ctx, "chain_getSlot", map[string]any{"commitment": "finalized"}, &slot); err != nil {
		return 0, err
	}
	return slot, nil
}

func (c *RPCClient) FetchHistoricalEvents(ctx context.Context, query EventQuery) ([]RawEvent, error) {
	if query.ToSlot < query.FromSlot {
		return nil, errors.Wrapf(errs.InvalidArgument, "invalid slot range [%d, %d]", query.FromSlot, query.ToSlot)
	}
	params := map[string]any{
		"programId": c.programID,
		"fromSlot":  query.FromSlot,
		"toSlot":    query.ToSlot,
		"limit":     query.Limit,
		"offset":    query.Offset,
	}
	var events []RawEvent
	if err := c.read(ctx, "escrow_getEvents", params, &events); err != nil {
		if errors.Is(err, errs.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return events, nil
}
