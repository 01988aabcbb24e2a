package public

import (
	"io"
	"net/http"

	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/logger"
	"github.com/liveshop-next/internal/models"

	"github.com/gin-gonic/gin"
)

// CapturePaymentRequest 通用网关扣款回执
type CapturePaymentRequest struct {
	OrderNo          string `json:"order_no" binding:"required"`
	GatewayPaymentID string `json:"gateway_payment_id" binding:"required"`
	Amount           string `json:"amount" binding:"required"`
	Currency         string `json:"currency" binding:"required"`
}

// RefundPaymentRequest 退款请求。金额缺省表示按剩余可退全额退款。
type RefundPaymentRequest struct {
	OrderID uint   `json:"order_id" binding:"required"`
	Amount  string `json:"amount"`
	Reason  string `json:"reason"`
}

// CapturePayment 网关扣款回执对账入口（同一流水号重复通知幂等）
func (h *Handler) CapturePayment(c *gin.Context) {
	var req CapturePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount, err := models.NewMoneyFromString(req.Amount)
	if err != nil {
		respondError(c, response.CodeBadRequest, "invalid amount", err)
		return
	}

	order, err := h.PaymentService.ConfirmCapture(req.OrderNo, req.GatewayPaymentID, amount, req.Currency)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "capture failed")
		return
	}
	response.Success(c, order)
}

// RefundPayment 全额/部分退款
func (h *Handler) RefundPayment(c *gin.Context) {
	var req RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	amount := models.Money{}
	if req.Amount != "" {
		parsed, err := models.NewMoneyFromString(req.Amount)
		if err != nil {
			respondError(c, response.CodeBadRequest, "invalid amount", err)
			return
		}
		amount = parsed
	}

	record, err := h.PaymentService.Refund(req.OrderID, amount, req.Reason)
	if err != nil {
		respondWithMappedError(c, err, paymentErrorRules, response.CodeInternal, "refund failed")
		return
	}
	response.Success(c, record)
}

// WechatPayNotify 微信支付扣款通知：验签解密后走统一对账
func (h *Handler) WechatPayNotify(c *gin.Context) {
	if h.WechatPayAdapter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"code": "FAIL", "message": "gateway disabled"})
		return
	}
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "read body failed"})
		return
	}
	headers := map[string]string{
		"Wechatpay-Timestamp": c.GetHeader("Wechatpay-Timestamp"),
		"Wechatpay-Nonce":     c.GetHeader("Wechatpay-Nonce"),
		"Wechatpay-Signature": c.GetHeader("Wechatpay-Signature"),
		"Wechatpay-Serial":    c.GetHeader("Wechatpay-Serial"),
	}

	notification, err := h.WechatPayAdapter.VerifyAndDecodeWebhook(c.Request.Context(), headers, body)
	if err != nil {
		logger.Warnw("wechatpay_notify_verify_failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"code": "FAIL", "message": "verify failed"})
		return
	}
	if !notification.Success {
		// 非成功交易通知只需应答，不入账
		logger.Infow("wechatpay_notify_ignored",
			"event_type", notification.EventType,
			"order_no", notification.OrderNo,
		)
		c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "message": "成功"})
		return
	}

	if _, err := h.PaymentService.ConfirmCapture(notification.OrderNo, notification.TransactionID, notification.Amount, notification.Currency); err != nil {
		logger.Errorw("wechatpay_notify_capture_failed",
			"order_no", notification.OrderNo,
			"transaction_id", notification.TransactionID,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{"code": "FAIL", "message": "capture failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": "SUCCESS", "message": "成功"})
}
