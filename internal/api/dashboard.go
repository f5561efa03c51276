package api

import (
	"context"
	"fmt"

	"github.com/unihub/realtime/internal/model"
)

var dashboardPaths = map[model.Role]string{
	model.RoleStudent:      "/student/dashboard",
	model.RoleLandlord:     "/landlord/dashboard",
	model.RoleFoodProvider: "/food-provider/dashboard",
	model.RoleAdmin:        "/admin/dashboard",
}

// DashboardPath returns the endpoint serving role's dashboard.
func DashboardPath(role model.Role) (string, error) {
	path, ok := dashboardPaths[role]
	if !ok {
		return "", fmt.Errorf("%w: %q", model.ErrInvalidRole, role)
	}
	return path, nil
}

// FetchDashboard returns the dashboard snapshot for role.
func (c *Client) FetchDashboard(ctx context.Context, role model.Role) (map[string]any, error) {
	path, err := DashboardPath(role)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if err := c.get(ctx, path, nil, &data); err != nil {
		return nil, fmt.Errorf("fetch %s dashboard: %w", role, err)
	}
	if data == nil {
		data = map[string]any{}
	}

	c.logger.Debug("fetched dashboard", "role", role, "keys", len(data))
	return data, nil
}
