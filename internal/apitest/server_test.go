package apitest

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/askgroup/dealerportal/api"
)

func newClient(t *testing.T, s *Server, token string) *api.Client {
	t.Helper()
	c, err := api.New(api.Options{BaseURL: s.URL(), Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		c.Use(api.BearerAuth(api.TokenSourceFunc(func() string { return token })))
	}
	return c
}

func TestLoginDetails(t *testing.T) {
	s := Start(t)
	s.AddUser("a@b.com", "correct-horse", api.RoleBuyer)
	c := newClient(t, s, "")
	ctx := context.Background()

	tok, err := c.Login(ctx, api.LoginRequest{Email: "a@b.com", Password: "correct-horse"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tok.TokenType != "bearer" || strings.Count(tok.AccessToken, ".") != 2 {
		t.Fatalf("unexpected token response %+v", tok)
	}

	_, err = c.Login(ctx, api.LoginRequest{Email: "a@b.com", Password: "wrong-horse"})
	if !errors.Is(err, api.ErrUnauthorized) || api.Detail(err) != "Incorrect email or password" {
		t.Fatalf("expected 401 detail, got %v", err)
	}

	s.SetStatus("a@b.com", api.StatusInactive)
	_, err = c.Login(ctx, api.LoginRequest{Email: "a@b.com", Password: "correct-horse"})
	if api.Detail(err) != "Inactive user" {
		t.Fatalf("expected inactive detail, got %v", err)
	}
}

func TestRegisterAndReset(t *testing.T) {
	s := Start(t)
	c := newClient(t, s, "")
	ctx := context.Background()

	rec, err := c.Register(ctx, api.RegisterRequest{Email: "new@b.com", Password: "correct-horse", FullName: "New"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if rec.Role != api.RoleBuyer || rec.Status != api.StatusActive || rec.UserID == "" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if _, err := c.Register(ctx, api.RegisterRequest{Email: "new@b.com", Password: "correct-horse"}); api.Detail(err) != "Email already registered" {
		t.Fatalf("expected duplicate detail, got %v", err)
	}

	err = c.ResetPassword(ctx, api.PasswordResetRequest{Email: "new@b.com", NewPassword: "another-pass", ConfirmNewPassword: "different"})
	if api.Detail(err) != "Passwords do not match" {
		t.Fatalf("expected mismatch detail, got %v", err)
	}
	err = c.ResetPassword(ctx, api.PasswordResetRequest{Email: "nobody@b.com", NewPassword: "another-pass", ConfirmNewPassword: "another-pass"})
	if !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected 404, got %v", err)
	}
	if err := c.ResetPassword(ctx, api.PasswordResetRequest{Email: "new@b.com", NewPassword: "another-pass", ConfirmNewPassword: "another-pass"}); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, err := c.Login(ctx, api.LoginRequest{Email: "new@b.com", Password: "another-pass"}); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}
}

func TestOrderLifecycle(t *testing.T) {
	s := Start(t)
	buyer := s.AddUser("buyer@b.com", "correct-horse", api.RoleBuyer)
	admin := s.AddUser("admin@b.com", "correct-horse", api.RoleAdmin)
	dealer := s.AddDealer(buyer.UserID, "Acme")
	soap := s.AddProduct("Soap", 11.5, 10)

	ctx := context.Background()
	bc := newClient(t, s, s.Token(buyer.UserID))
	ac := newClient(t, s, s.Token(admin.UserID))

	po, err := bc.CreatePurchaseOrder(ctx, api.PurchaseOrderCreate{
		DealerID: dealer.DealerID,
		Items:    []api.PurchaseOrderItemCreate{{ProductID: soap.ProductID, Quantity: 2, UnitPrice: 11.5}},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if po.Status != api.OrderDraft || po.TotalIncVAT != 23 || po.PONumber != "PO-00001" {
		t.Fatalf("unexpected order %+v", po)
	}

	if _, err := ac.CreatePurchaseOrder(ctx, api.PurchaseOrderCreate{DealerID: dealer.DealerID}); !errors.Is(err, api.ErrForbidden) {
		t.Fatalf("expected admin create to be forbidden, got %v", err)
	}
	if _, err := bc.DashboardStats(ctx); api.Detail(err) != "Insufficient permissions" {
		t.Fatalf("expected buyer dashboard denial, got %v", err)
	}

	if _, err := bc.SubmitPurchaseOrder(ctx, po.POID); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, err := bc.SubmitPurchaseOrder(ctx, po.POID); api.Detail(err) != "Only draft orders can be submitted." {
		t.Fatalf("expected resubmit failure, got %v", err)
	}
	if _, err := bc.DownloadInvoice(ctx, po.POID); err == nil {
		t.Fatal("expected invoice to require approval")
	}

	if _, err := ac.ApprovePurchaseOrder(ctx, dealer.DealerID, po.POID); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	pdf, err := bc.DownloadInvoice(ctx, po.POID)
	if err != nil {
		t.Fatalf("invoice failed: %v", err)
	}
	if !strings.HasPrefix(string(pdf), "%PDF-1.4") {
		t.Fatalf("unexpected invoice %q", pdf)
	}

	stats, err := ac.DashboardStats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalOrders != 1 || stats.TotalInvoices != 1 || stats.TotalDealers != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestRevokedAndExpiredTokens(t *testing.T) {
	s := Start(t)
	u := s.AddUser("a@b.com", "correct-horse", "")
	ctx := context.Background()

	if _, err := newClient(t, s, s.ExpiredToken(u.UserID)).MyDealerProfile(ctx); api.Detail(err) != "Could not validate credentials" {
		t.Fatalf("expected expired token rejection, got %v", err)
	}

	c := newClient(t, s, s.Token(u.UserID))
	if _, err := c.MyDealerProfile(ctx); api.Detail(err) != "Dealer profile not found" {
		t.Fatalf("expected missing profile, got %v", err)
	}
	s.Revoke(u.UserID)
	if _, err := c.MyDealerProfile(ctx); !errors.Is(err, api.ErrUnauthorized) {
		t.Fatalf("expected revoked token rejection, got %v", err)
	}

	reqs := s.Requests()
	if len(reqs) != 3 || reqs[2].Path != "/api/v1/dealers/my-profile" || !strings.HasPrefix(reqs[2].Authorization, "Bearer ") {
		t.Fatalf("unexpected request log %+v", reqs)
	}
}

func TestProductSearch(t *testing.T) {
	s := Start(t)
	s.AddProduct("Blue Soap", 5, 1)
	s.AddProduct("Shampoo", 7, 1)
	c := newClient(t, s, "")
	ctx := context.Background()

	hits, err := c.SearchProducts(ctx, "soap", api.ProductQuery{})
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].Name != "Blue Soap" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if _, err := c.SearchProducts(ctx, " ", api.ProductQuery{}); api.Detail(err) != "Search query cannot be empty" {
		t.Fatalf("expected empty query rejection, got %v", err)
	}
	all, err := c.ListProducts(ctx, api.ProductQuery{Skip: 1, Limit: 5})
	if err != nil || len(all) != 1 || all[0].Name != "Shampoo" {
		t.Fatalf("unexpected page %+v %v", all, err)
	}
	if _, err := c.GetProduct(ctx, "missing"); !errors.Is(err, api.ErrNotFound) {
		t.Fatalf("expected 404, got %v", err)
	}
}
