// Package dispatch maps an authenticated session to its landing route.
package dispatch

import "github.com/vittapay/portal-gateway/internal/domain"

// Landing routes for the portal shells.
const (
	RouteAdminLayout       = "/admin"
	RouteDistributor       = "/distributor/dashboard"
	RoutePlanSelection     = "/distributor/select-plan"
	RouteSuperAdmin        = "/superadmin/dashboard"
	RouteRetailerDashboard = "/retailer/dashboard"
)

// Route decides the landing destination for a session. The rules are an
// ordered decision, first match wins, and the ordering is load-bearing:
// header roles outrank distributor-ness because a header account can carry a
// distributor-shaped payload from the shared login endpoint.
func Route(session domain.Session) string {
	switch {
	case session.Role.IsHeader():
		return RouteAdminLayout
	case session.Role == domain.RoleDistributor:
		if session.Plan == "" {
			return RoutePlanSelection
		}
		return RouteDistributor
	case session.Role == domain.RoleSuperDistributor || session.Role == domain.RoleAdmin:
		return RouteSuperAdmin
	default:
		return RouteRetailerDashboard
	}
}
