package errorhandler

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/mutual-network/escrow-indexer/common"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

var kindStatus = map[errs.ErrorKind]int{
	errs.InvalidParameters:       http.StatusBadRequest,
	errs.InvalidVestingCondition: http.StatusBadRequest,
	errs.InvalidArgument:         http.StatusBadRequest,
	errs.ArgumentRequired:        http.StatusBadRequest,
	errs.Unauthorized:            http.StatusForbidden,
	errs.NotFound:                http.StatusNotFound,
	errs.InvalidState:            http.StatusConflict,
	errs.InsufficientFunds:       http.StatusConflict,
	errs.ExceedsVestedAmount:     http.StatusUnprocessableEntity,
	errs.AmbiguousSubmission:     http.StatusAccepted,
	errs.Unsupported:             http.StatusNotImplemented,
}

// StatusOf returns the HTTP status code for the error kind found in err.
func StatusOf(err error) int {
	if errs.IsRetryable(err) {
		return http.StatusServiceUnavailable
	}
	if kind, ok := errs.Kind(err); ok {
		if status, ok := kindStatus[kind]; ok {
			return status
		}
	}
	if e := new(errs.PublicError); errors.As(err, &e) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func NewHTTPErrorHandler() func(ctx *fiber.Ctx, err error) error {
	return func(ctx *fiber.Ctx, err error) error {
		if e := new(fiber.Error); errors.As(err, &e) {
			return errors.WithStack(ctx.Status(e.Code).JSON(common.HttpResponse[any]{Error: &e.Message}))
		}

		status := StatusOf(err)
		message := "Internal Server Error"
		resp := common.HttpResponse[any]{
			Error:     &message,
			Retryable: errs.IsRetryable(err),
		}
		if kind, ok := errs.Kind(err); ok {
			resp.Code = errs.KindCode(kind)
		}
		if e := new(errs.PublicError); errors.As(err, &e) {
			message = e.Message()
			if e.Code() != "" {
				resp.Code = e.Code()
			}
		} else if status != http.StatusInternalServerError {
			message = err.Error()
		}

		if status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx.UserContext(), "Something went wrong, unhandled api error", err,
				slogx.Event("api_unhandled_error"),
				slogx.Int("status", status),
			)
		}

		return errors.WithStack(ctx.Status(status).JSON(resp))
	}
}
