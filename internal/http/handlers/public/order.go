package public

import (
	"github.com/liveshop-next/internal/http/response"
	"github.com/liveshop-next/internal/models"
	"github.com/liveshop-next/internal/service"

	"github.com/gin-gonic/gin"
)

// OrderItemRequest 订单项请求
type OrderItemRequest struct {
	ProductID uint   `json:"product_id" binding:"required"`
	VariantID *uint  `json:"variant_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity" binding:"required"`
	UnitPrice string `json:"unit_price" binding:"required"`
}

// CreateOrderRequest 创建订单请求
type CreateOrderRequest struct {
	TenantID       uint               `json:"tenant_id"`
	StoreID        uint               `json:"store_id" binding:"required"`
	CustomerID     uint               `json:"customer_id" binding:"required"`
	Currency       string             `json:"currency"`
	DropoffAddress string             `json:"dropoff_address" binding:"required"`
	DropoffLat     float64            `json:"dropoff_lat"`
	DropoffLng     float64            `json:"dropoff_lng"`
	Items          []OrderItemRequest `json:"items" binding:"required"`
}

// TransitionOrderRequest 订单状态转移请求
type TransitionOrderRequest struct {
	TargetStatus    string `json:"target_status" binding:"required"`
	ExpectedVersion *int   `json:"expected_version" binding:"required"`
}

// CreateOrder 创建订单
func (h *Handler) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	items := make([]service.CreateOrderItem, 0, len(req.Items))
	for _, item := range req.Items {
		price, err := models.NewMoneyFromString(item.UnitPrice)
		if err != nil {
			respondError(c, response.CodeBadRequest, "order item invalid", err)
			return
		}
		items = append(items, service.CreateOrderItem{
			ProductID: item.ProductID,
			VariantID: item.VariantID,
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: price,
		})
	}

	order, err := h.OrderService.Create(service.CreateOrderInput{
		TenantID:       req.TenantID,
		StoreID:        req.StoreID,
		CustomerID:     req.CustomerID,
		Currency:       req.Currency,
		DropoffAddress: req.DropoffAddress,
		DropoffLat:     req.DropoffLat,
		DropoffLng:     req.DropoffLng,
		Items:          items,
	})
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "create order failed")
		return
	}
	response.Success(c, order)
}

// GetOrder 查询订单
func (h *Handler) GetOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.GetByID(orderID)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "get order failed")
		return
	}
	response.Success(c, order)
}

// TransitionOrder 带版本校验的订单状态转移
func (h *Handler) TransitionOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	var req TransitionOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "bad request", err)
		return
	}

	order, err := h.OrderService.Transition(orderID, req.TargetStatus, *req.ExpectedVersion)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "order transition failed")
		return
	}
	response.Success(c, order)
}

// DisputeOrder 已送达订单进入争议
func (h *Handler) DisputeOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.Dispute(orderID)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "dispute order failed")
		return
	}
	response.Success(c, order)
}

// ResolveOrder 争议关闭
func (h *Handler) ResolveOrder(c *gin.Context) {
	orderID, ok := parseUintParam(c, "id")
	if !ok {
		return
	}
	order, err := h.OrderService.Resolve(orderID)
	if err != nil {
		respondWithMappedError(c, err, orderErrorRules, response.CodeInternal, "resolve order failed")
		return
	}
	response.Success(c, order)
}
