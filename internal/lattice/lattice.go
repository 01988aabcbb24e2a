package lattice

import (
	"sort"

	"github.com/liveshop-next/internal/constants"
)

// 订单状态转移表（固定闭合，不提供任何绕行入口）
var orderEdges = map[string]map[string]bool{
	constants.OrderStatusPending: {
		constants.OrderStatusConfirmed: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusConfirmed: {
		constants.OrderStatusPreparing: true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPreparing: {
		constants.OrderStatusReadyForPickup: true,
		constants.OrderStatusCancelled:      true,
	},
	constants.OrderStatusReadyForPickup: {
		constants.OrderStatusPickedUp:  true,
		constants.OrderStatusCancelled: true,
	},
	constants.OrderStatusPickedUp: {
		constants.OrderStatusInTransit: true,
	},
	constants.OrderStatusInTransit: {
		constants.OrderStatusDelivered: true,
		constants.OrderStatusFailed:    true,
	},
	constants.OrderStatusDisputed: {
		constants.OrderStatusResolved: true,
	},
	constants.OrderStatusDelivered: {},
	constants.OrderStatusCancelled: {},
	constants.OrderStatusRefunded:  {},
	constants.OrderStatusFailed:    {},
	constants.OrderStatusResolved:  {},
}

// 配送状态转移表
var deliveryEdges = map[string]map[string]bool{
	constants.DeliveryStatusPending: {
		constants.DeliveryStatusSearchingDriver: true,
		constants.DeliveryStatusCancelled:       true,
	},
	constants.DeliveryStatusSearchingDriver: {
		constants.DeliveryStatusDriverAssigned: true,
		constants.DeliveryStatusCancelled:      true,
	},
	constants.DeliveryStatusDriverAssigned: {
		constants.DeliveryStatusDriverAccepted:  true,
		constants.DeliveryStatusSearchingDriver: true,
		constants.DeliveryStatusCancelled:       true,
	},
	constants.DeliveryStatusDriverAccepted: {
		constants.DeliveryStatusAtPickup:  true,
		constants.DeliveryStatusCancelled: true,
	},
	constants.DeliveryStatusAtPickup: {
		constants.DeliveryStatusPickedUp:  true,
		constants.DeliveryStatusCancelled: true,
	},
	constants.DeliveryStatusPickedUp: {
		constants.DeliveryStatusInTransit: true,
		constants.DeliveryStatusCancelled: true,
	},
	constants.DeliveryStatusInTransit: {
		constants.DeliveryStatusAtDropoff: true,
		constants.DeliveryStatusFailed:    true,
	},
	constants.DeliveryStatusAtDropoff: {
		constants.DeliveryStatusDelivered: true,
		constants.DeliveryStatusFailed:    true,
	},
	constants.DeliveryStatusDelivered: {},
	constants.DeliveryStatusFailed:    {},
	constants.DeliveryStatusCancelled: {},
}

func tableFor(kind string) map[string]map[string]bool {
	switch kind {
	case constants.EntityKindOrder:
		return orderEdges
	case constants.EntityKindDelivery:
		return deliveryEdges
	default:
		return nil
	}
}

// IsValid 判断状态是否属于该实体的状态集
func IsValid(kind, status string) bool {
	table := tableFor(kind)
	if table == nil {
		return false
	}
	_, ok := table[status]
	return ok
}

// IsLegal 判断 from→to 是否为合法转移（未知状态一律非法）
func IsLegal(kind, from, to string) bool {
	table := tableFor(kind)
	if table == nil {
		return false
	}
	next, ok := table[from]
	if !ok {
		return false
	}
	if !IsValid(kind, to) {
		return false
	}
	return next[to]
}

// IsTerminal 判断状态是否为终态（无任何出边）
func IsTerminal(kind, status string) bool {
	table := tableFor(kind)
	if table == nil {
		return false
	}
	next, ok := table[status]
	if !ok {
		return false
	}
	return len(next) == 0
}

// AllowedNext 返回某状态的全部合法后继（字典序，便于展示与测试）
func AllowedNext(kind, from string) []string {
	table := tableFor(kind)
	if table == nil {
		return nil
	}
	next, ok := table[from]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(next))
	for to := range next {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Statuses 返回该实体的全部状态（字典序）
func Statuses(kind string) []string {
	table := tableFor(kind)
	if table == nil {
		return nil
	}
	out := make([]string, 0, len(table))
	for status := range table {
		out = append(out, status)
	}
	sort.Strings(out)
	return out
}
