package auth

import (
	"strings"
)

// Inventory permissions.
//
// Format:
//   - "*" full access
//   - "inventory.*" every inventory action
//   - "inventory.orders.receive" a single action
const (
	PermRead          = "inventory.read"
	PermWrite         = "inventory.write"
	PermOrdersManage  = "inventory.orders.manage"
	PermOrdersReceive = "inventory.orders.receive"
	PermAlertsResolve = "inventory.alerts.resolve"
	PermAlertsSweep   = "inventory.alerts.sweep"
)

// HasPermission reports whether granted covers required, honoring "*" and
// "prefix.*" wildcards.
func HasPermission(granted []string, required string) bool {
	if required == "" {
		return true
	}

	for _, p := range granted {
		if p == "*" || p == required {
			return true
		}
		if prefix, ok := strings.CutSuffix(p, ".*"); ok && strings.HasPrefix(required, prefix+".") {
			return true
		}
	}
	return false
}

// HasAnyPermission reports whether granted covers at least one of required.
func HasAnyPermission(granted []string, required ...string) bool {
	for _, req := range required {
		if HasPermission(granted, req) {
			return true
		}
	}
	return false
}
