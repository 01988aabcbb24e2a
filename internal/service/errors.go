package service

import "errors"

// 服务层错误定义
var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrDeliveryNotFound = errors.New("delivery not found")
	ErrDriverNotFound   = errors.New("driver not found")
	ErrOfferNotFound    = errors.New("assignment offer not found")
	ErrStoreNotFound    = errors.New("store not found")

	ErrIllegalTransition = errors.New("illegal status transition")
	ErrVersionConflict   = errors.New("status version conflict")
	ErrPaymentRequired   = errors.New("payment must be captured before confirmation")

	ErrDriverMismatch    = errors.New("driver does not own this delivery")
	ErrDriverBusy        = errors.New("driver already holds an active delivery")
	ErrNoDriverAvailable = errors.New("no driver available")
	ErrOfferExpired      = errors.New("assignment offer expired")

	ErrPaymentAmountMismatch = errors.New("payment amount mismatch")
	ErrPaymentNotCaptured    = errors.New("payment has not been captured")
	ErrRefundExceedsCapture  = errors.New("refund exceeds captured amount")

	ErrInvalidOrderItem   = errors.New("invalid order item")
	ErrInvalidCoordinates = errors.New("invalid coordinates")
)
