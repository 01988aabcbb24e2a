package driver

import (
	"errors"

	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/service"

	"github.com/gin-gonic/gin"
)

type mappedHandlerError struct {
	target error
	code   int
	msg    string
}

func respondError(c *gin.Context, code int, msg string, err error) {
	if err != nil {
		logger.Debugw("handler_request_failed", "msg", msg, "error", err)
	}
	response.Error(c, code, msg)
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			respondError(c, rule.code, rule.msg, nil)
			return
		}
	}
	respondError(c, fallbackCode, fallbackMsg, err)
}

var driverDeliveryErrorRules = []mappedHandlerError{
	{target: service.ErrDeliveryNotFound, code: response.CodeNotFound, msg: "delivery not found"},
	{target: service.ErrDriverNotFound, code: response.CodeNotFound, msg: "driver not found"},
	{target: service.ErrOfferNotFound, code: response.CodeNotFound, msg: "assignment offer not found"},
	{target: service.ErrDriverMismatch, code: response.CodeForbidden, msg: "delivery belongs to another driver"},
	{target: service.ErrDriverBusy, code: response.CodeConflict, msg: "driver already holds an active delivery"},
	{target: service.ErrOfferExpired, code: response.CodeConflict, msg: "assignment offer expired"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, msg: "illegal status transition"},
	{target: service.ErrInvalidCoordinates, code: response.CodeBadRequest, msg: "invalid coordinates"},
}
