package api

import (
	"context"
	"net/http"
)

// MyDealerProfile returns the dealer profile linked to the current user.
func (c *Client) MyDealerProfile(ctx context.Context) (*Dealer, error) {
	var out Dealer
	if err := c.do(ctx, http.MethodGet, "/dealers/my-profile", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateDealerProfile creates the current user's dealer profile.
func (c *Client) CreateDealerProfile(ctx context.Context, in DealerInput) (*Dealer, error) {
	var out Dealer
	if err := c.do(ctx, http.MethodPost, "/dealers/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateDealerProfile patches the current user's dealer profile.
func (c *Client) UpdateDealerProfile(ctx context.Context, in DealerInput) (*Dealer, error) {
	var out Dealer
	if err := c.do(ctx, http.MethodPut, "/dealers/my-profile", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminListDealers lists every dealer. Admin only.
func (c *Client) AdminListDealers(ctx context.Context) ([]Dealer, error) {
	var out []Dealer
	if err := c.do(ctx, http.MethodGet, "/dealers/admin/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AdminCreateDealer creates a dealer on behalf of a company. Admin only.
func (c *Client) AdminCreateDealer(ctx context.Context, in DealerInput) (*Dealer, error) {
	var out Dealer
	if err := c.do(ctx, http.MethodPost, "/dealers/admin/create", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
