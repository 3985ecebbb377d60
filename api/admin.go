package api

import (
	"context"
	"net/http"
)

// DashboardStats returns the admin dashboard summary.
func (c *Client) DashboardStats(ctx context.Context) (*DashboardStats, error) {
	var out DashboardStats
	if err := c.do(ctx, http.MethodGet, "/dashboard/stats", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSettings returns the pricing settings.
func (c *Client) GetSettings(ctx context.Context) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, http.MethodGet, "/settings/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateSettings replaces the pricing settings.
func (c *Client) UpdateSettings(ctx context.Context, in Settings) (*Settings, error) {
	var out Settings
	if err := c.do(ctx, http.MethodPut, "/settings/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
