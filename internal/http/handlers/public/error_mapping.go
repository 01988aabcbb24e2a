package public

import (
	"errors"

	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
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

var orderErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrStoreNotFound, code: response.CodeNotFound, msg: "store not found"},
	{target: service.ErrInvalidOrderItem, code: response.CodeBadRequest, msg: "order item invalid"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, msg: "illegal status transition"},
	{target: service.ErrVersionConflict, code: response.CodeConflict, msg: "status version conflict"},
	{target: service.ErrPaymentRequired, code: response.CodeBadRequest, msg: "payment must be captured first"},
}

var deliveryErrorRules = []mappedHandlerError{
	{target: service.ErrDeliveryNotFound, code: response.CodeNotFound, msg: "delivery not found"},
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrIllegalTransition, code: response.CodeBadRequest, msg: "illegal status transition"},
}

var paymentErrorRules = []mappedHandlerError{
	{target: service.ErrOrderNotFound, code: response.CodeNotFound, msg: "order not found"},
	{target: service.ErrPaymentAmountMismatch, code: response.CodeBadRequest, msg: "payment amount mismatch"},
	{target: service.ErrPaymentNotCaptured, code: response.CodeBadRequest, msg: "payment not captured"},
	{target: service.ErrRefundExceedsCapture, code: response.CodeBadRequest, msg: "refund exceeds captured amount"},
	{target: service.ErrVersionConflict, code: response.CodeConflict, msg: "status version conflict"},
}
