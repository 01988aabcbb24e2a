package public

import (
	"github.com/liveshop-next/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetDelivery 查询配送单
func (h *Handler) GetDelivery(c *gin.Context) {
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	delivery, err := h.DeliveryService.GetByID(deliveryID)
	if err != nil {
		respondWithMappedError(c, err, deliveryErrorRules, response.CodeInternal, "get delivery failed")
		return
	}
	response.Success(c, delivery)
}

// GetDeliveryTracking 按时间升序返回配送轨迹
func (h *Handler) GetDeliveryTracking(c *gin.Context) {
	deliveryID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	points, err := h.DeliveryService.TrackingPoints(deliveryID)
	if err != nil {
		respondWithMappedError(c, err, deliveryErrorRules, response.CodeInternal, "get tracking failed")
		return
	}
	response.Success(c, gin.H{
		"delivery_id": deliveryID,
		"points":      points,
	})
}
