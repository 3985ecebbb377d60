package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

// ProductQuery pages through the catalog. Zero Limit uses the server default.
type ProductQuery struct {
	Skip  int
	Limit int
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Skip > 0 {
		v.Set("skip", strconv.Itoa(q.Skip))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	return v
}

// ListProducts returns a page of the catalog.
func (c *Client) ListProducts(ctx context.Context, q ProductQuery) ([]Product, error) {
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products/", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetProduct fetches one product.
func (c *Client) GetProduct(ctx context.Context, productID string) (*Product, error) {
	var out Product
	if err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(productID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SearchProducts matches products by name.
func (c *Client) SearchProducts(ctx context.Context, term string, q ProductQuery) ([]Product, error) {
	v := q.values()
	v.Set("query", term)
	var out []Product
	if err := c.do(ctx, http.MethodGet, "/products/search/", v, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
