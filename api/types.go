package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Role values the API assigns to users.
const (
	RoleBuyer = "buyer"
	RoleAdmin = "admin"
)

// User status values.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Purchase order lifecycle.
const (
	OrderDraft     = "draft"
	OrderSubmitted = "submitted"
	OrderApproved  = "approved"
	OrderInvoiced  = "invoiced"
	OrderCancelled = "cancelled"
)

// Time decodes API timestamps, which may be RFC 3339 or naive ISO 8601
// without a zone (interpreted as UTC).
type Time struct {
	time.Time
}

var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func (t *Time) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == "" {
		t.Time = time.Time{}
		return nil
	}
	if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		t.Time = parsed
		return nil
	}
	for _, layout := range naiveLayouts {
		if parsed, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("api: unrecognized timestamp %q", raw)
}

func (t Time) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// LoginRequest is the body of POST /users/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by POST /users/login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// RegisterRequest is the body of POST /users/register.
type RegisterRequest struct {
	Email         string `json:"email"`
	Password      string `json:"password"`
	FullName      string `json:"full_name"`
	Role          string `json:"role,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
}

// UserRecord is the server's view of an account.
type UserRecord struct {
	UserID        string `json:"user_id"`
	Email         string `json:"email"`
	FullName      string `json:"full_name,omitempty"`
	Role          string `json:"role,omitempty"`
	ContactNumber string `json:"contact_number,omitempty"`
	Status        string `json:"status,omitempty"`
}

// PasswordResetRequest is the body of POST /users/reset-password.
type PasswordResetRequest struct {
	Email              string `json:"email"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

// Dealer is a dealer company profile.
type Dealer struct {
	DealerID        string `json:"dealer_id,omitempty"`
	UserID          string `json:"user_id,omitempty"`
	CustomerCode    string `json:"customer_code,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	ContactPerson   string `json:"contact_person,omitempty"`
	ContactNumber   string `json:"contact_number,omitempty"`
	Email           string `json:"email,omitempty"`
	BillingAddress  string `json:"billing_address,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
}

// DealerInput creates or updates a dealer profile.
type DealerInput struct {
	CustomerCode    string `json:"customer_code,omitempty"`
	CompanyName     string `json:"company_name,omitempty"`
	ContactPerson   string `json:"contact_person,omitempty"`
	ContactNumber   string `json:"contact_number,omitempty"`
	BillingAddress  string `json:"billing_address,omitempty"`
	ShippingAddress string `json:"shipping_address,omitempty"`
}

// Product is a catalog entry.
type Product struct {
	ProductID         string   `json:"product_id"`
	Name              string   `json:"name"`
	PackSize          string   `json:"pack_size,omitempty"`
	TradePriceInclVAT float64  `json:"trade_price_incl_vat"`
	StockQty          int      `json:"stock_qty"`
	Status            string   `json:"status,omitempty"`
	Image             string   `json:"image,omitempty"`
	VAT               *float64 `json:"vat,omitempty"`
	MRP               *float64 `json:"mrp,omitempty"`
	SKUCode           string   `json:"sku_code,omitempty"`
	CreatedAt         Time     `json:"created_at"`
	UpdatedAt         Time     `json:"updated_at"`
}

// PurchaseOrderItemCreate is one requested line of a new order.
type PurchaseOrderItemCreate struct {
	ProductID string  `json:"product_id"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

// PurchaseOrderCreate is the body of POST /purchase-orders/.
type PurchaseOrderCreate struct {
	DealerID        string                    `json:"dealer_id"`
	ExternalRefCode string                    `json:"external_ref_code,omitempty"`
	Items           []PurchaseOrderItemCreate `json:"items"`
}

// PurchaseOrderUpdate is the body of PUT /purchase-orders/{id}.
type PurchaseOrderUpdate struct {
	ExternalRefCode string                    `json:"external_ref_code,omitempty"`
	Items           []PurchaseOrderItemCreate `json:"items"`
}

// PurchaseOrderItem is a stored order line.
type PurchaseOrderItem struct {
	POItemID         int      `json:"po_item_id"`
	POID             int      `json:"po_id"`
	ProductID        string   `json:"product_id"`
	Product          *Product `json:"product,omitempty"`
	PackSizeSnapshot string   `json:"pack_size_snapshot"`
	Quantity         int      `json:"quantity"`
	UnitPrice        float64  `json:"unit_price"`
	TotalPrice       float64  `json:"total_price"`
}

// PurchaseOrder is a dealer order with totals and lines.
type PurchaseOrder struct {
	POID            int                 `json:"po_id"`
	PONumber        string              `json:"po_number"`
	DealerID        string              `json:"dealer_id"`
	Dealer          *Dealer             `json:"dealer,omitempty"`
	CreatedByUser   string              `json:"created_by_user"`
	ExternalRefCode string              `json:"external_ref_code,omitempty"`
	PODate          Time                `json:"po_date"`
	Status          string              `json:"status"`
	TotalExVAT      float64             `json:"total_ex_vat"`
	VATPercent      float64             `json:"vat_percent"`
	VATAmount       float64             `json:"vat_amount"`
	TotalIncVAT     float64             `json:"total_inc_vat"`
	ApprovedAt      Time                `json:"approved_at"`
	CreatedAt       Time                `json:"created_at"`
	UpdatedAt       Time                `json:"updated_at"`
	Items           []PurchaseOrderItem `json:"items"`
	CombinedPOID    *int                `json:"combined_po_id,omitempty"`
}

// NamedValue is a chart point in dashboard stats.
type NamedValue struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// MonthlyTotal is a revenue point in dashboard stats.
type MonthlyTotal struct {
	Name  string  `json:"name"`
	Total float64 `json:"total"`
}

// DashboardStats is the admin dashboard summary.
type DashboardStats struct {
	TotalOrders       int             `json:"total_orders"`
	PendingOrders     int             `json:"pending_orders"`
	TotalInvoices     int             `json:"total_invoices"`
	OutstandingAmount float64         `json:"outstanding_amount"`
	TotalDealers      int             `json:"total_dealers"`
	RecentOrders      []PurchaseOrder `json:"recent_orders"`
	TopProducts       []NamedValue    `json:"top_products"`
	MonthlyRevenue    []MonthlyTotal  `json:"monthly_revenue"`
	DealerStats       []NamedValue    `json:"dealer_stats"`
}

// Settings are the admin-editable pricing settings (percentages).
type Settings struct {
	VAT        float64 `json:"vat"`
	Commission float64 `json:"commission"`
}
