package constants

// 实体类型常量（状态矩阵维度）
const (
	EntityKindOrder    = "order"
	EntityKindDelivery = "delivery"
)

// 订单状态常量
const (
	OrderStatusPending        = "pending"
	OrderStatusConfirmed      = "confirmed"
	OrderStatusPreparing      = "preparing"
	OrderStatusReadyForPickup = "ready_for_pickup"
	OrderStatusPickedUp       = "picked_up"
	OrderStatusInTransit      = "in_transit"
	OrderStatusDelivered      = "delivered"
	OrderStatusFailed         = "failed"
	OrderStatusCancelled      = "cancelled"
	OrderStatusRefunded       = "refunded"
	OrderStatusDisputed       = "disputed"
	OrderStatusResolved       = "resolved"
)

// 配送状态常量
const (
	DeliveryStatusPending         = "pending"
	DeliveryStatusSearchingDriver = "searching_driver"
	DeliveryStatusDriverAssigned  = "driver_assigned"
	DeliveryStatusDriverAccepted  = "driver_accepted"
	DeliveryStatusAtPickup        = "at_pickup"
	DeliveryStatusPickedUp        = "picked_up"
	DeliveryStatusInTransit       = "in_transit"
	DeliveryStatusAtDropoff       = "at_dropoff"
	DeliveryStatusDelivered       = "delivered"
	DeliveryStatusFailed          = "failed"
	DeliveryStatusCancelled       = "cancelled"
)

// 支付状态常量（与订单状态相互独立）
const (
	PaymentStatusPending           = "pending"
	PaymentStatusCaptured          = "captured"
	PaymentStatusRefunded          = "refunded"
	PaymentStatusPartiallyRefunded = "partially_refunded"
)

// 支付流水类型常量
const (
	PaymentKindCapture = "capture"
	PaymentKindRefund  = "refund"
)

// 支付流水状态常量
const (
	PaymentRecordApplied        = "applied"
	PaymentRecordAmountMismatch = "amount_mismatch"
)

// 配送取消原因常量
const (
	CancelReasonNoDriverAvailable = "no_driver_available"
	CancelReasonStoreCancelled    = "store_cancelled"
	CancelReasonCustomerCancelled = "customer_cancelled"
)

// 操作者角色常量（身份由外部签发，令牌只携带 id + role）
const (
	RoleStoreStaff = "store_staff"
	RoleCustomer   = "customer"
	RoleDriver     = "driver"
	RoleOps        = "ops"
)

// 事件类型常量
const (
	EventOrderStatusChanged    = "order.status_changed"
	EventDeliveryStatusChanged = "delivery.status_changed"
	EventLocationUpdated       = "delivery.location_updated"
)

// 事件主题前缀常量
const (
	TopicOrderPrefix    = "order:"
	TopicDeliveryPrefix = "delivery:"
	TopicStorePrefix    = "store:"
)

// 队列常量
const (
	QueueDefault            = "default"
	TaskDispatchOfferExpire = "dispatch:offer_expire"
	TaskDispatchDeadline    = "dispatch:search_deadline"
	TaskOrderAutoRefund     = "order:auto_refund"
)

// 缓存默认配置常量
const (
	RedisPrefixDefault = "ls"
)

// 币种常量
const (
	SiteCurrencyDefault = "CNY"
)
