package api

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// CreatePurchaseOrder submits a new order for a dealer.
func (c *Client) CreatePurchaseOrder(ctx context.Context, in PurchaseOrderCreate) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodPost, "/purchase-orders/", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MyPurchaseOrders lists the current dealer's orders.
func (c *Client) MyPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	if err := c.do(ctx, http.MethodGet, "/purchase-orders/my-orders", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetPurchaseOrder fetches one of the current dealer's orders.
func (c *Client) GetPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodGet, "/purchase-orders/"+strconv.Itoa(poID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePurchaseOrder replaces the lines of a draft order.
func (c *Client) UpdatePurchaseOrder(ctx context.Context, poID int, in PurchaseOrderUpdate) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodPut, "/purchase-orders/"+strconv.Itoa(poID), nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPurchaseOrder moves a draft order to submitted.
func (c *Client) SubmitPurchaseOrder(ctx context.Context, poID int) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodPost, "/purchase-orders/"+strconv.Itoa(poID)+"/submit", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AdminListPurchaseOrders lists orders across all dealers. Admin only.
func (c *Client) AdminListPurchaseOrders(ctx context.Context) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	if err := c.do(ctx, http.MethodGet, "/purchase-orders/admin/all", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func adminOrderPath(dealerID string, poID int) string {
	return "/purchase-orders/admin/dealers/" + url.PathEscape(dealerID) + "/" + strconv.Itoa(poID)
}

// AdminGetPurchaseOrder fetches any dealer's order. Admin only.
func (c *Client) AdminGetPurchaseOrder(ctx context.Context, dealerID string, poID int) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodGet, adminOrderPath(dealerID, poID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ApprovePurchaseOrder approves a submitted order. Admin only.
func (c *Client) ApprovePurchaseOrder(ctx context.Context, dealerID string, poID int) (*PurchaseOrder, error) {
	var out PurchaseOrder
	if err := c.do(ctx, http.MethodPost, adminOrderPath(dealerID, poID)+"/approve", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MaxInvoiceSize bounds DownloadInvoice.
const MaxInvoiceSize = 20 << 20

// DownloadInvoice returns the PDF invoice of an approved order.
func (c *Client) DownloadInvoice(ctx context.Context, poID int) ([]byte, error) {
	resp, err := c.send(ctx, http.MethodGet, "/purchase-orders/"+strconv.Itoa(poID)+"/invoice", nil, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, MaxInvoiceSize))
}
