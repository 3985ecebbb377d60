package dealerportal

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"sync"

	"github.com/askgroup/dealerportal/api"
	"github.com/askgroup/dealerportal/guard"
	"github.com/askgroup/dealerportal/jwt"
	"github.com/askgroup/dealerportal/storage"
)

// SessionState is the startup state machine of a SessionStore.
type SessionState int

const (
	// StateLoading holds until Restore has run.
	StateLoading SessionState = iota
	StateAuthenticated
	StateUnauthenticated
)

func (s SessionState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateUnauthenticated:
		return "unauthenticated"
	default:
		return "unknown"
	}
}

// User is the identity decoded from the access token. FullName is never
// populated: there is no profile round trip.
type User struct {
	ID       string `json:"user_id"`
	Email    string `json:"email"`
	FullName string `json:"full_name,omitempty"`
	Role     string `json:"role"`
	Status   string `json:"status"`
}

func userFromClaims(c *jwt.Claims) *User {
	return &User{
		ID:     c.Subject,
		Email:  c.Email,
		Role:   c.Role,
		Status: api.StatusActive,
	}
}

// SessionOptions wires a SessionStore. Only API is required for the
// network operations; the rest have working defaults.
type SessionOptions struct {
	Storage storage.Storage
	// Decoder defaults to a decode-only manager.
	Decoder *jwt.Manager
	API     *api.Client
	Logger  *log.Logger
	Metrics *Metrics
	Audit   AuditSink
	// LoginPath is passed to redirect hooks on forced logout.
	LoginPath string
}

// SessionStore is the single source of truth for who is signed in.
//
// The token and user are always set and cleared together. The mutex is
// never held across network or storage calls, so response interceptors
// that fire during Login may re-enter the store.
type SessionStore struct {
	storage   storage.Storage
	decoder   *jwt.Manager
	api       *api.Client
	logger    *log.Logger
	metrics   *Metrics
	audit     AuditSink
	loginPath string

	mu       sync.RWMutex
	state    SessionState
	token    string
	user     *User
	inflight int
	hooks    []func(path string)
}

// NewSessionStore builds a store in StateLoading. When opts.API is set the
// store installs itself on the client as bearer source and 401 handler.
func NewSessionStore(opts SessionOptions) (*SessionStore, error) {
	decoder := opts.Decoder
	if decoder == nil {
		var err error
		decoder, err = jwt.NewManager(jwt.Config{})
		if err != nil {
			return nil, err
		}
	}
	st := opts.Storage
	if st == nil {
		st = storage.NewMemoryStorage()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	loginPath := opts.LoginPath
	if loginPath == "" {
		loginPath = guard.LoginPath
	}

	s := &SessionStore{
		storage:   st,
		decoder:   decoder,
		api:       opts.API,
		logger:    logger,
		metrics:   opts.Metrics,
		audit:     opts.Audit,
		loginPath: loginPath,
		state:     StateLoading,
	}

	if s.api != nil {
		s.api.Use(api.BearerAuth(s))
		s.api.OnResponse(api.OnUnauthorized(s.handleUnauthorized))
	}

	return s, nil
}

// Restore runs the startup decode step: a stored, decodable token yields
// StateAuthenticated; anything else yields StateUnauthenticated with
// storage cleared. It never returns an error.
func (s *SessionStore) Restore(ctx context.Context) SessionState {
	token, err := s.storage.Get(ctx, storage.TokenKey)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.clearStorage(ctx)
		return s.settle(StateUnauthenticated, "", nil)
	case err != nil:
		s.logger.Printf("dealerportal: session storage read failed: %v", err)
		return s.settle(StateUnauthenticated, "", nil)
	}

	claims, err := s.decoder.Decode(token)
	if err != nil {
		s.clearStorage(ctx)
		s.metrics.Inc(MetricRestoreInvalid)
		emitAudit(ctx, s.audit, AuditSessionInvalid, nil, err, nil)
		return s.settle(StateUnauthenticated, "", nil)
	}

	u := userFromClaims(claims)
	if err := s.persistUser(ctx, u); err != nil {
		s.logger.Printf("dealerportal: session storage write failed: %v", err)
	}
	s.metrics.Inc(MetricRestoreSuccess)
	emitAudit(ctx, s.audit, AuditSessionRestored, u, nil, nil)
	return s.settle(StateAuthenticated, token, u)
}

func (s *SessionStore) settle(state SessionState, token string, u *User) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.token = token
	s.user = u
	return state
}

// State returns the current state.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Loading is true before Restore and while Login, Register or
// ResetPassword is in flight.
func (s *SessionStore) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state == StateLoading || s.inflight > 0
}

// IsAuthenticated reports whether a token and user are held.
func (s *SessionStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != "" && s.user != nil
}

// Token returns the bearer token, or "" when signed out. It satisfies
// api.TokenSource.
func (s *SessionStore) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns a copy of the signed-in user, or nil.
func (s *SessionStore) User() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Role returns the signed-in user's role, or "".
func (s *SessionStore) Role() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return ""
	}
	return s.user.Role
}

// HasRole compares role case-insensitively. It is false when signed out.
func (s *SessionStore) HasRole(role string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil || s.user.Role == "" {
		return false
	}
	return strings.EqualFold(s.user.Role, role)
}

// OnRedirect registers fn to be called with the login path whenever a 401
// forces the session closed.
func (s *SessionStore) OnRedirect(fn func(path string)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.hooks = append(s.hooks, fn)
	s.mu.Unlock()
}

// Logout clears the token, the user and durable storage. It makes no
// network call and always succeeds; the in-memory state is cleared before
// it returns.
func (s *SessionStore) Logout(ctx context.Context) {
	u := s.drop()
	s.clearStorage(ctx)
	s.metrics.Inc(MetricLogout)
	emitAudit(ctx, s.audit, AuditLogout, u, nil, nil)
}

// ForceLogout ends the session the way a 401 does: it clears everything
// and notifies redirect hooks with the login path.
func (s *SessionStore) ForceLogout(ctx context.Context) {
	u := s.drop()
	s.clearStorage(ctx)
	if u != nil {
		s.metrics.Inc(MetricForcedLogout)
		s.logger.Printf("dealerportal: session for user %s ended by 401", u.ID)
		emitAudit(ctx, s.audit, AuditForcedLogout, u, nil, nil)
	}

	s.mu.RLock()
	hooks := make([]func(string), len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()
	for _, fn := range hooks {
		fn(s.loginPath)
	}
}

func (s *SessionStore) handleUnauthorized(resp *http.Response) {
	ctx := context.Background()
	if resp != nil && resp.Request != nil {
		ctx = context.WithoutCancel(resp.Request.Context())
	}
	s.ForceLogout(ctx)
}

func (s *SessionStore) drop() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.user
	s.token = ""
	s.user = nil
	s.state = StateUnauthenticated
	return u
}

func (s *SessionStore) clearStorage(ctx context.Context) {
	if err := s.storage.Delete(ctx, storage.TokenKey, storage.UserKey); err != nil {
		s.logger.Printf("dealerportal: session storage clear failed: %v", err)
	}
}

func (s *SessionStore) persistUser(ctx context.Context, u *User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return err
	}
	return s.storage.Set(ctx, storage.UserKey, string(data))
}

func (s *SessionStore) beginLoading() {
	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()
}

func (s *SessionStore) endLoading() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}
