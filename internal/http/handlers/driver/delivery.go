package driver

import (
	"time"

	"github.com/liveshop-next/internal/constants"
	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/location"
	"github.com/liveshop-next/internal/models"

	"github.com/gin-gonic/gin"
)

// UpdateDeliveryStatusRequest 骑手推进配送状态请求。
// final_earnings 仅 delivered 时生效，缺省按平台策略结算。
type UpdateDeliveryStatusRequest struct {
	Status        string `json:"status" binding:"required"`
	FinalEarnings string `json:"final_earnings"`
	TipAmount     string `json:"tip_amount"`
	Reason        string `json:"reason"`
}

// ReportLocationRequest 位置上报请求
type ReportLocationRequest struct {
	Lat        float64    `json:"lat"`
	Lng        float64    `json:"lng"`
	Accuracy   *float64   `json:"accuracy"`
	RecordedAt *time.Time `json:"recorded_at"`
}

// ToggleAvailabilityRequest 接单开关请求
type ToggleAvailabilityRequest struct {
	Available *bool `json:"available" binding:"required"`
}

// AvailableDeliveries 当前邀约中的配送单（等待本骑手应答）
func (h *Handler) AvailableDeliveries(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	assigned, err := h.DeliveryRepo.ListByStatus(constants.DeliveryStatusDriverAssigned, 100)
	if err != nil {
		respondError(c, response.CodeInternal, "list deliveries failed", err)
		return
	}
	mine := make([]models.Delivery, 0, 1)
	for _, delivery := range assigned {
		if delivery.DriverID != nil && *delivery.DriverID == driverID {
			mine = append(mine, delivery)
		}
	}
	response.Success(c, mine)
}

// GetDelivery 查询配送单
func (h *Handler) GetDelivery(c *gin.Context) {
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.DeliveryService.GetByID(deliveryID)
	if err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeInternal, "get delivery failed")
		return
	}
	response.Success(c, delivery)
}

// AcceptDelivery 接受邀约
func (h *Handler) AcceptDelivery(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.DispatchEngine.Accept(deliveryID, driverID)
	if err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeInternal, "accept failed")
		return
	}
	response.Success(c, delivery)
}

// RejectDelivery 拒绝邀约，引擎立刻转向下一位候选骑手
func (h *Handler) RejectDelivery(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	if err := h.DispatchEngine.Reject(deliveryID, driverID); err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeInternal, "reject failed")
		return
	}
	response.Success(c, gin.H{"delivery_id": deliveryID, "rejected": true})
}

// UpdateDeliveryStatus 推进配送里程碑；delivered 走结算收尾，failed 需给出原因
func (h *Handler) UpdateDeliveryStatus(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req UpdateDeliveryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	var delivery *models.Delivery
	var err error
	switch req.Status {
	case constants.DeliveryStatusDelivered:
		tip := models.Money{}
		if req.TipAmount != "" {
			tip, err = models.NewMoneyFromString(req.TipAmount)
			if err != nil {
				respondError(c, response.CodeBadRequest, "invalid tip amount", err)
				return
			}
		}
		var finalEarnings *models.Money
		if req.FinalEarnings != "" {
			earnings, parseErr := models.NewMoneyFromString(req.FinalEarnings)
			if parseErr != nil {
				respondError(c, response.CodeBadRequest, "invalid final earnings", parseErr)
				return
			}
			finalEarnings = &earnings
		}
		delivery, err = h.DeliveryService.Complete(deliveryID, driverID, finalEarnings, tip)
	case constants.DeliveryStatusFailed:
		delivery, err = h.DeliveryService.Fail(deliveryID, driverID, req.Reason)
	default:
		delivery, err = h.DeliveryService.DriverTransition(deliveryID, driverID, req.Status)
	}
	if err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeInternal, "update status failed")
		return
	}
	response.Success(c, delivery)
}

// ReportLocation 位置上报：写入有损缓冲，立即应答
func (h *Handler) ReportLocation(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	var req ReportLocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	report := location.Report{
		DriverID: driverID,
		Lat:      req.Lat,
		Lng:      req.Lng,
		Accuracy: req.Accuracy,
	}
	if req.RecordedAt != nil {
		report.RecordedAt = *req.RecordedAt
	}
	if err := h.Tracker.Ingest(report); err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeBadRequest, "invalid location report")
		return
	}
	response.Success(c, gin.H{"accepted": true})
}

// ToggleAvailability 接单开关
func (h *Handler) ToggleAvailability(c *gin.Context) {
	driverID, ok := getDriverID(c)
	if !ok {
		return
	}
	var req ToggleAvailabilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}
	if err := h.DeliveryService.ToggleAvailability(driverID, *req.Available); err != nil {
		respondWithMappedError(c, err, driverDeliveryErrorRules, response.CodeInternal, "toggle availability failed")
		return
	}
	response.Success(c, gin.H{"driver_id": driverID, "available": *req.Available})
}
