package apitest

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/jwt"
	"github.com/askgroup/dealerportal/password"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

const (
	// Secret signs every token the fake issues.
	Secret = "apitest-secret"
	// TokenTTL is the lifetime of tokens returned by the login route.
	TokenTTL = 30 * time.Minute
	// DefaultVAT is the initial settings VAT percentage.
	DefaultVAT = 15.0
)

type account struct {
	record api.UserRecord
	hash   string
}

// Request is one request the fake received.
type Request struct {
	Method        string
	Path          string
	Authorization string
}

// Server is an in-memory dealer API. The zero value is not usable; call New.
type Server struct {
	tokens *jwt.Manager
	hasher *password.Hasher
	router *mux.Router
	url    string

	mu        sync.Mutex
	accounts  map[string]*account // lowercased email
	byID      map[string]*account
	dealers   map[string]*api.Dealer
	products  []api.Product
	orders    map[int]*api.PurchaseOrder
	nextPO    int
	nextItem  int
	settings  api.Settings
	revoked   map[string]bool
	requests  []Request
	customers int
}

// New returns an unstarted fake. Serve it with any http.Server, or use Start.
func New() *Server {
	tokens, err := jwt.NewManager(jwt.Config{SigningMethod: jwt.MethodHS256, Secret: []byte(Secret)})
	if err != nil {
		panic(err)
	}
	hasher, err := password.New(password.FastConfig())
	if err != nil {
		panic(err)
	}

	s := &Server{
		tokens:   tokens,
		hasher:   hasher,
		accounts: make(map[string]*account),
		byID:     make(map[string]*account),
		dealers:  make(map[string]*api.Dealer),
		orders:   make(map[int]*api.PurchaseOrder),
		revoked:  make(map[string]bool),
		settings: api.Settings{VAT: DefaultVAT},
	}
	s.router = s.routes()
	return s
}

// Start serves a new fake on a loopback listener until the test ends.
func Start(tb testing.TB) *Server {
	tb.Helper()
	s := New()
	srv := httptest.NewServer(s)
	tb.Cleanup(srv.Close)
	s.url = srv.URL + "/api/v1"
	return s
}

// URL is the API base URL of a started fake.
func (s *Server) URL() string {
	return s.url
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.record)
	v1 := r.PathPrefix("/api/v1").Subrouter()

	v1.HandleFunc("/users/register", s.handleRegister).Methods(http.MethodPost)
	v1.HandleFunc("/users/login", s.handleLogin).Methods(http.MethodPost)
	v1.HandleFunc("/users/reset-password", s.handleResetPassword).Methods(http.MethodPost)

	v1.HandleFunc("/dealers/", s.authed(s.handleCreateDealer)).Methods(http.MethodPost)
	v1.HandleFunc("/dealers/my-profile", s.authed(s.handleMyDealer)).Methods(http.MethodGet)
	v1.HandleFunc("/dealers/my-profile", s.authed(s.handleUpdateDealer)).Methods(http.MethodPut)
	v1.HandleFunc("/dealers/admin/all", s.admin(s.handleListDealers)).Methods(http.MethodGet)
	v1.HandleFunc("/dealers/admin/create", s.admin(s.handleCreateDealer)).Methods(http.MethodPost)

	v1.HandleFunc("/products/", s.handleListProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/search/", s.handleSearchProducts).Methods(http.MethodGet)
	v1.HandleFunc("/products/{product_id}", s.handleGetProduct).Methods(http.MethodGet)

	v1.HandleFunc("/purchase-orders/", s.buyer(s.handleCreateOrder)).Methods(http.MethodPost)
	v1.HandleFunc("/purchase-orders/my-orders", s.buyer(s.handleMyOrders)).Methods(http.MethodGet)
	v1.HandleFunc("/purchase-orders/admin/all", s.admin(s.handleAllOrders)).Methods(http.MethodGet)
	v1.HandleFunc("/purchase-orders/admin/dealers/{dealer_id}/{po_id:[0-9]+}", s.admin(s.handleAdminGetOrder)).Methods(http.MethodGet)
	v1.HandleFunc("/purchase-orders/admin/dealers/{dealer_id}/{po_id:[0-9]+}/approve", s.admin(s.handleApproveOrder)).Methods(http.MethodPost)
	v1.HandleFunc("/purchase-orders/{po_id:[0-9]+}", s.buyer(s.handleGetOrder)).Methods(http.MethodGet)
	v1.HandleFunc("/purchase-orders/{po_id:[0-9]+}", s.buyer(s.handleUpdateOrder)).Methods(http.MethodPut)
	v1.HandleFunc("/purchase-orders/{po_id:[0-9]+}/submit", s.buyer(s.handleSubmitOrder)).Methods(http.MethodPost)
	v1.HandleFunc("/purchase-orders/{po_id:[0-9]+}/invoice", s.authed(s.handleInvoice)).Methods(http.MethodGet)

	v1.HandleFunc("/dashboard/stats", s.admin(s.handleDashboard)).Methods(http.MethodGet)
	v1.HandleFunc("/settings/", s.authed(s.handleGetSettings)).Methods(http.MethodGet)
	v1.HandleFunc("/settings/", s.admin(s.handleUpdateSettings)).Methods(http.MethodPut)
	return r
}

/* ==================== SEEDING ==================== */

// AddUser creates an active account and returns its record. It panics when
// plain is shorter than the hasher minimum.
func (s *Server) AddUser(email, plain, role string) api.UserRecord {
	hash, err := s.hasher.Hash(plain)
	if err != nil {
		panic(fmt.Sprintf("apitest: AddUser %s: %v", email, err))
	}
	if role == "" {
		role = api.RoleBuyer
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := &account{
		record: api.UserRecord{
			UserID: uuid.NewString(),
			Email:  email,
			Role:   role,
			Status: api.StatusActive,
		},
		hash: hash,
	}
	s.accounts[strings.ToLower(email)] = acct
	s.byID[acct.record.UserID] = acct
	return acct.record
}

// SetStatus changes an account's status. Inactive accounts cannot log in.
func (s *Server) SetStatus(email, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct, ok := s.accounts[strings.ToLower(email)]; ok {
		acct.record.Status = status
	}
}

// AddDealer attaches a dealer profile to userID.
func (s *Server) AddDealer(userID, companyName string) api.Dealer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.insertDealerLocked(userID, api.DealerInput{CompanyName: companyName})
}

// AddProduct appends an active catalog entry.
func (s *Server) AddProduct(name string, priceInclVAT float64, stock int) api.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := api.Product{
		ProductID:         uuid.NewString(),
		Name:              name,
		TradePriceInclVAT: priceInclVAT,
		StockQty:          stock,
		Status:            api.StatusActive,
		CreatedAt:         api.Time{Time: time.Now().UTC()},
	}
	s.products = append(s.products, p)
	return p
}

// Token issues a valid access token for userID.
func (s *Server) Token(userID string) string {
	return s.issue(userID, TokenTTL)
}

// ExpiredToken issues a token for userID that expired a minute ago.
func (s *Server) ExpiredToken(userID string) string {
	return s.issue(userID, -time.Minute)
}

func (s *Server) issue(userID string, ttl time.Duration) string {
	s.mu.Lock()
	acct, ok := s.byID[userID]
	var record api.UserRecord
	if ok {
		record = acct.record
	}
	s.mu.Unlock()
	if !ok {
		panic("apitest: unknown user " + userID)
	}
	token, err := s.tokens.Issue(userID, record.Email, record.Role, ttl)
	if err != nil {
		panic(err)
	}
	return token
}

// Revoke makes every later authenticated request from userID fail with 401.
func (s *Server) Revoke(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[userID] = true
}

// Requests returns the requests received so far, oldest first.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Order returns a stored order by id.
func (s *Server) Order(poID int) (api.PurchaseOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	po, ok := s.orders[poID]
	if !ok {
		return api.PurchaseOrder{}, false
	}
	return *po, true
}

/* ==================== MIDDLEWARE ==================== */

type authedFunc func(w http.ResponseWriter, r *http.Request, acct *account)

const credentialsDetail = "Could not validate credentials"

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// currentAccount resolves the bearer token. On failure it returns the
// 401 detail instead.
func (s *Server) currentAccount(r *http.Request) (*account, string) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, "Not authenticated"
	}
	claims, err := s.tokens.Decode(token)
	if err != nil {
		return nil, credentialsDetail
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.byID[claims.Subject]
	if !ok || s.revoked[claims.Subject] {
		return nil, credentialsDetail
	}
	return acct, ""
}

func (s *Server) authed(h authedFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		acct, detail := s.currentAccount(r)
		if acct == nil {
			w.Header().Set("WWW-Authenticate", "Bearer")
			writeDetail(w, http.StatusUnauthorized, detail)
			return
		}
		if acct.record.Status != api.StatusActive {
			writeDetail(w, http.StatusBadRequest, "Inactive user")
			return
		}
		h(w, r, acct)
	}
}

func (s *Server) admin(h authedFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, acct *account) {
		if acct.record.Role != api.RoleAdmin {
			writeDetail(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		h(w, r, acct)
	})
}

func (s *Server) buyer(h authedFunc) http.HandlerFunc {
	return s.authed(func(w http.ResponseWriter, r *http.Request, acct *account) {
		if acct.record.Role != api.RoleBuyer {
			writeDetail(w, http.StatusForbidden, "Not authorized")
			return
		}
		h(w, r, acct)
	})
}

/* ==================== USERS ==================== */

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in api.RegisterRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if !strings.Contains(in.Email, "@") {
		writeValidation(w, "email", "value is not a valid email address")
		return
	}
	role := in.Role
	if role == "" {
		role = api.RoleBuyer
	}
	if role != api.RoleBuyer && role != api.RoleAdmin {
		writeValidation(w, "role", "role must be buyer or admin")
		return
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		writeValidation(w, "password", "password is too short")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(in.Email)
	if _, exists := s.accounts[key]; exists {
		writeDetail(w, http.StatusBadRequest, "Email already registered")
		return
	}
	acct := &account{
		record: api.UserRecord{
			UserID:        uuid.NewString(),
			Email:         in.Email,
			FullName:      in.FullName,
			Role:          role,
			ContactNumber: in.ContactNumber,
			Status:        api.StatusActive,
		},
		hash: hash,
	}
	s.accounts[key] = acct
	s.byID[acct.record.UserID] = acct
	writeJSON(w, http.StatusCreated, acct.record)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in api.LoginRequest
	if !decodeBody(w, r, &in) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(in.Email)]
	var record api.UserRecord
	var hash string
	if ok {
		record, hash = acct.record, acct.hash
	}
	s.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if match, err := s.hasher.Verify(in.Password, hash); err != nil || !match {
		writeDetail(w, http.StatusUnauthorized, "Incorrect email or password")
		return
	}
	if record.Status != api.StatusActive {
		writeDetail(w, http.StatusBadRequest, "Inactive user")
		return
	}

	token, err := s.tokens.Issue(record.UserID, record.Email, record.Role, TokenTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, api.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var in api.PasswordResetRequest
	if !decodeBody(w, r, &in) {
		return
	}
	if in.NewPassword != in.ConfirmNewPassword {
		writeDetail(w, http.StatusBadRequest, "Passwords do not match")
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(in.Email)]
	s.mu.Unlock()
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		writeValidation(w, "new_password", "password is too short")
		return
	}
	s.mu.Lock()
	acct.hash = hash
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successfully"})
}

/* ==================== DEALERS ==================== */

func (s *Server) insertDealerLocked(userID string, in api.DealerInput) *api.Dealer {
	s.customers++
	code := in.CustomerCode
	if code == "" {
		code = fmt.Sprintf("C%04d", s.customers)
	}
	d := &api.Dealer{
		DealerID:        uuid.NewString(),
		UserID:          userID,
		CustomerCode:    code,
		CompanyName:     in.CompanyName,
		ContactPerson:   in.ContactPerson,
		ContactNumber:   in.ContactNumber,
		BillingAddress:  in.BillingAddress,
		ShippingAddress: in.ShippingAddress,
	}
	if acct, ok := s.byID[userID]; ok {
		d.Email = acct.record.Email
	}
	s.dealers[d.DealerID] = d
	return d
}

func (s *Server) dealerForLocked(userID string) *api.Dealer {
	for _, d := range s.dealers {
		if d.UserID == userID {
			return d
		}
	}
	return nil
}

func (s *Server) handleCreateDealer(w http.ResponseWriter, r *http.Request, acct *account) {
	var in api.DealerInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusCreated, s.insertDealerLocked(acct.record.UserID, in))
}

func (s *Server) handleMyDealer(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dealerForLocked(acct.record.UserID)
	if d == nil {
		writeDetail(w, http.StatusNotFound, "Dealer profile not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleUpdateDealer(w http.ResponseWriter, r *http.Request, acct *account) {
	var in api.DealerInput
	if !decodeBody(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.dealerForLocked(acct.record.UserID)
	if d == nil {
		writeDetail(w, http.StatusNotFound, "Dealer profile not found")
		return
	}
	setIfNotEmpty(&d.CompanyName, in.CompanyName)
	setIfNotEmpty(&d.ContactPerson, in.ContactPerson)
	setIfNotEmpty(&d.ContactNumber, in.ContactNumber)
	setIfNotEmpty(&d.BillingAddress, in.BillingAddress)
	setIfNotEmpty(&d.ShippingAddress, in.ShippingAddress)
	writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleListDealers(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.Dealer, 0, len(s.dealers))
	for _, d := range s.dealers {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerCode < out[j].CustomerCode })
	writeJSON(w, http.StatusOK, out)
}

/* ==================== PRODUCTS ==================== */

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, page(s.products, r))
}

func (s *Server) handleSearchProducts(w http.ResponseWriter, r *http.Request) {
	term := strings.TrimSpace(r.URL.Query().Get("query"))
	if term == "" {
		writeDetail(w, http.StatusBadRequest, "Search query cannot be empty")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var hits []api.Product
	for _, p := range s.products {
		if strings.Contains(strings.ToLower(p.Name), strings.ToLower(term)) {
			hits = append(hits, p)
		}
	}
	writeJSON(w, http.StatusOK, page(hits, r))
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["product_id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.productLocked(id); ok {
		writeJSON(w, http.StatusOK, p)
		return
	}
	writeDetail(w, http.StatusNotFound, "Product not found")
}

func (s *Server) productLocked(id string) (api.Product, bool) {
	for _, p := range s.products {
		if p.ProductID == id {
			return p, true
		}
	}
	return api.Product{}, false
}

func page(products []api.Product, r *http.Request) []api.Product {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	if skip < 0 || skip >= len(products) {
		return []api.Product{}
	}
	end := min(skip+limit, len(products))
	return append([]api.Product{}, products[skip:end]...)
}

/* ==================== PURCHASE ORDERS ==================== */

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	var in api.PurchaseOrderCreate
	if !decodeBody(w, r, &in) {
		return
	}
	if len(in.Items) == 0 {
		writeValidation(w, "items", "at least one item is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.dealers[in.DealerID]
	if !ok || d.UserID != acct.record.UserID {
		writeDetail(w, http.StatusNotFound, "Dealer not found or access denied")
		return
	}

	s.nextPO++
	now := api.Time{Time: time.Now().UTC()}
	po := &api.PurchaseOrder{
		POID:            s.nextPO,
		PONumber:        fmt.Sprintf("PO-%05d", s.nextPO),
		DealerID:        d.DealerID,
		CreatedByUser:   acct.record.UserID,
		ExternalRefCode: in.ExternalRefCode,
		PODate:          now,
		Status:          api.OrderDraft,
		CreatedAt:       now,
	}
	if !s.setItemsLocked(w, po, in.Items) {
		s.nextPO--
		return
	}
	s.orders[po.POID] = po
	writeJSON(w, http.StatusCreated, po)
}

func (s *Server) setItemsLocked(w http.ResponseWriter, po *api.PurchaseOrder, items []api.PurchaseOrderItemCreate) bool {
	lines := make([]api.PurchaseOrderItem, 0, len(items))
	var gross float64
	for _, it := range items {
		p, ok := s.productLocked(it.ProductID)
		if !ok {
			writeDetail(w, http.StatusNotFound, "Product with id "+it.ProductID+" not found")
			return false
		}
		if it.Quantity <= 0 {
			writeValidation(w, "quantity", "quantity must be greater than 0")
			return false
		}
		s.nextItem++
		total := round2(float64(it.Quantity) * it.UnitPrice)
		gross += total
		product := p
		lines = append(lines, api.PurchaseOrderItem{
			POItemID:         s.nextItem,
			POID:             po.POID,
			ProductID:        p.ProductID,
			Product:          &product,
			PackSizeSnapshot: p.PackSize,
			Quantity:         it.Quantity,
			UnitPrice:        it.UnitPrice,
			TotalPrice:       total,
		})
	}

	po.Items = lines
	po.VATPercent = s.settings.VAT
	po.TotalIncVAT = round2(gross)
	po.TotalExVAT = round2(gross / (1 + s.settings.VAT/100))
	po.VATAmount = round2(po.TotalIncVAT - po.TotalExVAT)
	return true
}

func (s *Server) ownOrderLocked(w http.ResponseWriter, r *http.Request, acct *account) *api.PurchaseOrder {
	poID, _ := strconv.Atoi(mux.Vars(r)["po_id"])
	po, ok := s.orders[poID]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Purchase order not found")
		return nil
	}
	if acct.record.Role != api.RoleAdmin && po.CreatedByUser != acct.record.UserID {
		writeDetail(w, http.StatusForbidden, "Not authorized")
		return nil
	}
	return po
}

func (s *Server) handleMyOrders(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []api.PurchaseOrder{}
	for _, po := range s.sortedOrdersLocked() {
		if po.CreatedByUser == acct.record.UserID {
			out = append(out, po)
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAllOrders(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.sortedOrdersLocked())
}

func (s *Server) sortedOrdersLocked() []api.PurchaseOrder {
	out := make([]api.PurchaseOrder, 0, len(s.orders))
	for _, po := range s.orders {
		out = append(out, *po)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].POID < out[j].POID })
	return out
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if po := s.ownOrderLocked(w, r, acct); po != nil {
		writeJSON(w, http.StatusOK, po)
	}
}

func (s *Server) handleUpdateOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	var in api.PurchaseOrderUpdate
	if !decodeBody(w, r, &in) {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	po := s.ownOrderLocked(w, r, acct)
	if po == nil {
		return
	}
	if po.Status != api.OrderDraft {
		writeDetail(w, http.StatusBadRequest, "Only draft orders can be updated.")
		return
	}
	updated := *po
	if in.ExternalRefCode != "" {
		updated.ExternalRefCode = in.ExternalRefCode
	}
	if len(in.Items) > 0 && !s.setItemsLocked(w, &updated, in.Items) {
		return
	}
	updated.UpdatedAt = api.Time{Time: time.Now().UTC()}
	*po = updated
	writeJSON(w, http.StatusOK, po)
}

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	po := s.ownOrderLocked(w, r, acct)
	if po == nil {
		return
	}
	if po.Status != api.OrderDraft {
		writeDetail(w, http.StatusBadRequest, "Only draft orders can be submitted.")
		return
	}
	po.Status = api.OrderSubmitted
	po.UpdatedAt = api.Time{Time: time.Now().UTC()}
	writeJSON(w, http.StatusOK, po)
}

func (s *Server) adminOrderLocked(w http.ResponseWriter, r *http.Request) *api.PurchaseOrder {
	vars := mux.Vars(r)
	poID, _ := strconv.Atoi(vars["po_id"])
	po, ok := s.orders[poID]
	if !ok || po.DealerID != vars["dealer_id"] {
		writeDetail(w, http.StatusNotFound, "Purchase order not found")
		return nil
	}
	return po
}

func (s *Server) handleAdminGetOrder(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if po := s.adminOrderLocked(w, r); po != nil {
		writeJSON(w, http.StatusOK, po)
	}
}

func (s *Server) handleApproveOrder(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	po := s.adminOrderLocked(w, r)
	if po == nil {
		return
	}
	if po.Status != api.OrderSubmitted {
		writeDetail(w, http.StatusBadRequest, "Only submitted orders can be approved.")
		return
	}
	now := api.Time{Time: time.Now().UTC()}
	po.Status = api.OrderApproved
	po.ApprovedAt = now
	po.UpdatedAt = now
	writeJSON(w, http.StatusOK, po)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request, acct *account) {
	s.mu.Lock()
	po := s.ownOrderLocked(w, r, acct)
	var snapshot api.PurchaseOrder
	if po != nil {
		snapshot = *po
	}
	s.mu.Unlock()
	if po == nil {
		return
	}
	if snapshot.Status != api.OrderApproved && snapshot.Status != api.OrderInvoiced {
		writeDetail(w, http.StatusBadRequest, "Invoice is only available for approved orders.")
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="invoice-%s.pdf"`, snapshot.PONumber))
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "%%PDF-1.4\n%% invoice %s total %.2f\n%%%%EOF\n", snapshot.PONumber, snapshot.TotalIncVAT)
}

/* ==================== ADMIN ==================== */

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()

	orders := s.sortedOrdersLocked()
	stats := api.DashboardStats{
		TotalOrders:  len(orders),
		TotalDealers: len(s.dealers),
	}
	for _, po := range orders {
		switch po.Status {
		case api.OrderSubmitted:
			stats.PendingOrders++
		case api.OrderApproved, api.OrderInvoiced:
			stats.TotalInvoices++
			stats.OutstandingAmount += po.TotalIncVAT
		}
	}
	stats.OutstandingAmount = round2(stats.OutstandingAmount)
	for i := len(orders) - 1; i >= 0 && len(stats.RecentOrders) < 5; i-- {
		stats.RecentOrders = append(stats.RecentOrders, orders[i])
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request, _ *account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.settings)
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request, _ *account) {
	var in api.Settings
	if !decodeBody(w, r, &in) {
		return
	}
	if in.VAT < 0 || in.VAT > 100 || in.Commission < 0 || in.Commission > 100 {
		writeValidation(w, "vat", "percentages must be between 0 and 100")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings = in
	writeJSON(w, http.StatusOK, s.settings)
}

/* ==================== ENCODING ==================== */

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeValidation(w http.ResponseWriter, field, msg string) {
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"detail": []map[string]any{{"loc": []string{"body", field}, "msg": msg, "type": "value_error"}},
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeValidation(w, "body", "invalid JSON body")
		return false
	}
	return true
}

func setIfNotEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
