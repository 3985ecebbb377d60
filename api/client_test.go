package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := New(Options{BaseURL: srv.URL + "/api/v1", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return c, srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestBearerAuthReadsTokenPerRequest(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Header.Get("Authorization"))
		mu.Unlock()
		writeJSON(w, http.StatusOK, []Product{})
	}))

	token := "first"
	c.Use(BearerAuth(TokenSourceFunc(func() string { return token })))

	ctx := context.Background()
	if _, err := c.ListProducts(ctx, ProductQuery{}); err != nil {
		t.Fatal(err)
	}
	token = ""
	if _, err := c.ListProducts(ctx, ProductQuery{}); err != nil {
		t.Fatal(err)
	}
	token = "second"
	if _, err := c.ListProducts(ctx, ProductQuery{}); err != nil {
		t.Fatal(err)
	}

	want := []string{"Bearer first", "", "Bearer second"}
	mu.Lock()
	defer mu.Unlock()
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("request %d: expected %q, got %q", i, want[i], seen[i])
		}
	}
}

func TestRequestIDStamped(t *testing.T) {
	ids := make(chan string, 1)
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids <- r.Header.Get(RequestIDHeader)
		writeJSON(w, http.StatusOK, Settings{VAT: 15})
	}))
	c.Use(RequestID())

	s, err := c.GetSettings(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if s.VAT != 15 {
		t.Fatalf("expected vat 15, got %v", s.VAT)
	}
	if id := <-ids; len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
}

func TestUnauthorizedResponseHookAndError(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect email or password"})
	}))

	var hits atomic.Int32
	c.OnResponse(OnUnauthorized(func(*http.Response) { hits.Add(1) }))

	_, err := c.Login(context.Background(), LoginRequest{Email: "a@b.com", Password: "nope"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err.Error() != "Incorrect email or password" {
		t.Fatalf("expected server detail, got %q", err.Error())
	}
	if Detail(err) != "Incorrect email or password" {
		t.Fatalf("Detail mismatch: %q", Detail(err))
	}
	if hits.Load() != 1 {
		t.Fatalf("expected hook to fire once, got %d", hits.Load())
	}
}

func TestValidationDetailListJoined(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": []map[string]any{
				{"loc": []any{"body", "email"}, "msg": "value is not a valid email address"},
				{"loc": []any{"body", "password"}, "msg": "field required"},
			},
		})
	}))

	_, err := c.Register(context.Background(), RegisterRequest{Email: "bad"})
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("unexpected status %d", apiErr.StatusCode)
	}
	if apiErr.Detail != "value is not a valid email address; field required" {
		t.Fatalf("unexpected detail %q", apiErr.Detail)
	}
}

func TestErrorWithoutDetailUsesStatus(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := c.GetPurchaseOrder(context.Background(), 42)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if Detail(err) != "" {
		t.Fatalf("expected empty detail, got %q", Detail(err))
	}
}

func TestTransportFailureWrapped(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	c, err := New(Options{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	srv.Close()

	if _, err := c.MyDealerProfile(context.Background()); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestListProductsQueryAndTimestamps(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/products/" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.URL.Query().Get("skip") != "10" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"product_id":"p1","name":"Soap","trade_price_incl_vat":12.5,"stock_qty":3,
			"created_at":"2024-05-01T10:20:30.123456","updated_at":null}]`))
	}))

	products, err := c.ListProducts(context.Background(), ProductQuery{Skip: 10, Limit: 5})
	if err != nil {
		t.Fatal(err)
	}
	if len(products) != 1 || products[0].Name != "Soap" {
		t.Fatalf("unexpected products %+v", products)
	}
	want := time.Date(2024, 5, 1, 10, 20, 30, 123456000, time.UTC)
	if !products[0].CreatedAt.Equal(want) {
		t.Fatalf("expected %v, got %v", want, products[0].CreatedAt.Time)
	}
	if !products[0].UpdatedAt.IsZero() {
		t.Fatal("expected zero updated_at for null")
	}
}

func TestDownloadInvoice(t *testing.T) {
	c, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/purchase-orders/7/invoice" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 fake"))
	}))

	pdf, err := c.DownloadInvoice(context.Background(), 7)
	if err != nil {
		t.Fatal(err)
	}
	if string(pdf) != "%PDF-1.4 fake" {
		t.Fatalf("unexpected body %q", pdf)
	}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	if _, err := New(Options{BaseURL: "ftp://example.com"}); err == nil {
		t.Fatal("expected scheme error")
	}
	c, err := New(Options{})
	if err != nil {
		t.Fatal(err)
	}
	if c.BaseURL() != DefaultBaseURL {
		t.Fatalf("expected default base url, got %q", c.BaseURL())
	}
}
