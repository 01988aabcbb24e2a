package authz

import (
	"github.com/liveshop-next/internal/constants"
)

// builtinPolicy 内置角色策略
type builtinPolicy struct {
	role   string
	object string
	action string
}

// 角色基线：门店推单、顾客查单、骑手履约、运营退款
var builtinPolicies = []builtinPolicy{
	{constants.RoleStoreStaff, "/orders", "POST"},
	{constants.RoleStoreStaff, "/orders/:id", "GET"},
	{constants.RoleStoreStaff, "/orders/:id/status", "PUT"},
	{constants.RoleStoreStaff, "/deliveries/:id", "GET"},
	{constants.RoleStoreStaff, "/deliveries/:id/tracking", "GET"},
	{constants.RoleStoreStaff, "/realtime/stores/:id", "GET"},
	{constants.RoleStoreStaff, "/realtime/orders/:id", "GET"},

	{constants.RoleCustomer, "/orders/:id", "GET"},
	{constants.RoleCustomer, "/deliveries/:id", "GET"},
	{constants.RoleCustomer, "/deliveries/:id/tracking", "GET"},
	{constants.RoleCustomer, "/realtime/orders/:id", "GET"},
	{constants.RoleCustomer, "/realtime/deliveries/:id", "GET"},

	{constants.RoleDriver, "/deliveries/available", "GET"},
	{constants.RoleDriver, "/deliveries/:id", "GET"},
	{constants.RoleDriver, "/deliveries/:id/accept", "POST"},
	{constants.RoleDriver, "/deliveries/:id/reject", "POST"},
	{constants.RoleDriver, "/deliveries/:id/status", "PUT"},
	{constants.RoleDriver, "/deliveries/location", "PUT"},
	{constants.RoleDriver, "/deliveries/toggle-availability", "POST"},
	{constants.RoleDriver, "/realtime/deliveries/:id", "GET"},

	{constants.RoleOps, "/orders/:id", "GET"},
	{constants.RoleOps, "/orders/:id/status", "PUT"},
	{constants.RoleOps, "/deliveries/:id", "GET"},
	{constants.RoleOps, "/deliveries/:id/tracking", "GET"},
	{constants.RoleOps, "/orders/:id/dispute", "POST"},
	{constants.RoleOps, "/orders/:id/resolve", "POST"},
	{constants.RoleOps, "/payments/refund", "POST"},
	{constants.RoleOps, "/realtime/orders/:id", "GET"},
	{constants.RoleOps, "/realtime/deliveries/:id", "GET"},
	{constants.RoleOps, "/realtime/stores/:id", "GET"},
}

// Bootstrap 写入内置角色策略（已存在的策略跳过）
func Bootstrap(s *Service) error {
	for _, p := range builtinPolicies {
		if err := s.GrantRolePolicy(p.role, p.object, p.action); err != nil {
			return err
		}
	}
	return s.ReloadPolicy()
}
